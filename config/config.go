package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// DefaultMonitorCron runs the health sweep every five minutes
const DefaultMonitorCron = "0 */5 * * * *"

// Config holds application configuration loaded from environment variables
type Config struct {
	Port             string
	AdminID          string
	PGURL            string
	SQLiteEventsPath string
	PriceFeedURL     string
	PriceFeedKey     string
	MonitorCron      string
	PolicyFile       string
	LogLevel         string
	LogFormat        string

	Policy *Policy
}

// Load reads configuration from environment variables. A .env file in the
// working directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getenv("PORT", "8080"),
		AdminID:          strings.TrimSpace(os.Getenv("ADMIN_ID")),
		PGURL:            os.Getenv("PG_URL"),
		SQLiteEventsPath: os.Getenv("SQLITE_EVENTS_PATH"),
		PriceFeedURL:     os.Getenv("PRICE_FEED_URL"),
		PriceFeedKey:     os.Getenv("PRICE_FEED_KEY"),
		MonitorCron:      getenv("MONITOR_CRON", DefaultMonitorCron),
		PolicyFile:       os.Getenv("POLICY_FILE"),
		LogLevel:         getenv("LOG_LEVEL", "info"),
		LogFormat:        getenv("LOG_FORMAT", "text"),
		Policy:           &Policy{},
	}

	if cfg.PolicyFile != "" {
		p, err := LoadPolicy(cfg.PolicyFile)
		if err != nil {
			return nil, err
		}
		cfg.Policy = p
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings and the formats of the optional ones
func (c *Config) Validate() error {
	if c.AdminID == "" {
		return fmt.Errorf("ADMIN_ID environment variable is required")
	}
	if c.PriceFeedURL != "" && c.PriceFeedKey == "" {
		return fmt.Errorf("PRICE_FEED_KEY is required when PRICE_FEED_URL is set")
	}
	if _, err := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor).Parse(c.MonitorCron); err != nil {
		return fmt.Errorf("invalid MONITOR_CRON %q: %w", c.MonitorCron, err)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("invalid LOG_FORMAT %q: must be text or json", c.LogFormat)
	}
	if c.Policy != nil {
		return c.Policy.Validate()
	}
	return nil
}

// ConfigureLogging applies the log level and format to the standard logger
func (c *Config) ConfigureLogging() {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	if c.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
