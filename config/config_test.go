package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/epeers/commitvault/internal/models"
)

// withEnv sets the given variables for the test and restores them afterwards
func withEnv(t *testing.T, vars map[string]string) {
	t.Helper()
	for k, v := range vars {
		t.Setenv(k, v)
		if v == "" {
			os.Unsetenv(k)
		}
	}
}

// inTempDir changes to an empty directory so godotenv.Load() finds no .env file
func inTempDir(t *testing.T) string {
	t.Helper()
	origDir, _ := os.Getwd()
	tmpDir := t.TempDir()
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("failed to change directory: %v", err)
	}
	t.Cleanup(func() { os.Chdir(origDir) })
	return tmpDir
}

func TestConfigLoad_Defaults(t *testing.T) {
	inTempDir(t)
	withEnv(t, map[string]string{
		"ADMIN_ID": "admin", "PORT": "", "MONITOR_CRON": "", "POLICY_FILE": "",
		"LOG_LEVEL": "", "LOG_FORMAT": "", "PRICE_FEED_URL": "", "PRICE_FEED_KEY": "",
	})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("expected default PORT to be '8080', got %q", cfg.Port)
	}
	if cfg.MonitorCron != DefaultMonitorCron {
		t.Errorf("expected default MONITOR_CRON, got %q", cfg.MonitorCron)
	}
	if cfg.AdminID != "admin" {
		t.Errorf("expected ADMIN_ID 'admin', got %q", cfg.AdminID)
	}
}

func TestConfigLoad_MissingAdmin(t *testing.T) {
	inTempDir(t)
	withEnv(t, map[string]string{"ADMIN_ID": ""})

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing ADMIN_ID, got nil")
	}
}

func TestConfigLoad_DotEnv(t *testing.T) {
	dir := inTempDir(t)
	withEnv(t, map[string]string{"ADMIN_ID": "", "PORT": ""})

	content := "ADMIN_ID=root\nPORT=9090\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write .env: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.AdminID != "root" || cfg.Port != "9090" {
		t.Errorf("expected .env values, got admin=%q port=%q", cfg.AdminID, cfg.Port)
	}
}

func TestConfigValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			AdminID:     "admin",
			MonitorCron: DefaultMonitorCron,
			LogLevel:    "info",
			LogFormat:   "text",
			Policy:      &Policy{},
		}
	}
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad cron", func(c *Config) { c.MonitorCron = "every minute" }},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }},
		{"bad format", func(c *Config) { c.LogFormat = "xml" }},
		{"feed without key", func(c *Config) { c.PriceFeedURL = "http://feed" }},
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("base config should be valid: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			if err := c.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

const samplePolicy = `
rate_limits:
  - function: create_commitment
    window: 1m
    max_calls: 10
exempt: [monitor]
recorders: [oracle, auditor]
pools:
  - id: 1
    risk_level: low
    apy_bps: 500
    max_capacity: 1000000
  - id: 2
    risk_level: high
    apy_bps: 2500
    max_capacity: 250000
balances:
  alice:
    XLM: 5000
monitor:
  identity: sweeper
  max_staleness: 30m
  reference_prices:
    XLM: "0.10"
`

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy([]byte(samplePolicy))
	if err != nil {
		t.Fatalf("ParsePolicy failed: %v", err)
	}
	if len(p.RateLimits) != 1 || p.RateLimits[0].Window != time.Minute || p.RateLimits[0].MaxCalls != 10 {
		t.Errorf("unexpected rate limits %+v", p.RateLimits)
	}
	if len(p.Recorders) != 2 || len(p.Exempt) != 1 {
		t.Errorf("unexpected recorders %v / exempt %v", p.Recorders, p.Exempt)
	}
	if len(p.Pools) != 2 || p.Pools[1].RiskLevel != models.RiskHigh {
		t.Errorf("unexpected pools %+v", p.Pools)
	}
	if p.MonitorIdentity() != "sweeper" || p.Monitor.MaxStaleness != 30*time.Minute {
		t.Errorf("unexpected monitor policy %+v", p.Monitor)
	}
	if p.Balances["alice"]["XLM"] != 5000 {
		t.Errorf("unexpected balances %v", p.Balances)
	}
	prices, err := p.ReferencePrices()
	if err != nil || prices["XLM"].String() != "0.1" {
		t.Errorf("unexpected reference prices %v, %v", prices, err)
	}
}

func TestParsePolicyRejects(t *testing.T) {
	tests := map[string]string{
		"short window":   "rate_limits:\n  - function: settle\n    window: 10ms\n    max_calls: 1\n",
		"duplicate pool": "pools:\n  - {id: 1, risk_level: low, max_capacity: 1}\n  - {id: 1, risk_level: low, max_capacity: 1}\n",
		"bad risk":       "pools:\n  - {id: 1, risk_level: extreme, max_capacity: 1}\n",
		"zero capacity":  "pools:\n  - {id: 1, risk_level: low, max_capacity: 0}\n",
		"negative price": "monitor:\n  reference_prices:\n    XLM: \"-1\"\n",
		"malformed yaml": "pools: [",
		"zero balance":   "balances:\n  bob:\n    XLM: 0\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParsePolicy([]byte(doc)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestMonitorIdentityDefault(t *testing.T) {
	if got := (&Policy{}).MonitorIdentity(); got != "monitor" {
		t.Errorf("expected default identity 'monitor', got %q", got)
	}
}
