package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/epeers/commitvault/config"
	_ "github.com/epeers/commitvault/docs"
	"github.com/epeers/commitvault/internal/allocation"
	"github.com/epeers/commitvault/internal/compliance"
	"github.com/epeers/commitvault/internal/custody"
	"github.com/epeers/commitvault/internal/errs"
	"github.com/epeers/commitvault/internal/events"
	"github.com/epeers/commitvault/internal/guard"
	"github.com/epeers/commitvault/internal/handlers"
	"github.com/epeers/commitvault/internal/ledger"
	"github.com/epeers/commitvault/internal/monitor"
	"github.com/epeers/commitvault/internal/pricefeed"
	"github.com/epeers/commitvault/internal/repository"
	"github.com/epeers/commitvault/internal/util"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// @title CommitVault API
// @version 1.0
// @description Commitment escrow, compliance attestation and yield allocation.
// @BasePath /v1
// @securityDefinitions.apikey CallerID
// @in header
// @name X-Caller-ID
func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg.ConfigureLogging()
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize storage
	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	// Initialize event sinks
	sinks := []events.Sink{events.NewLogSink(log.StandardLogger())}
	if cfg.SQLiteEventsPath != "" {
		sqlite, err := events.NewSQLiteSink(cfg.SQLiteEventsPath)
		if err != nil {
			log.Fatalf("Failed to open event recorder: %v", err)
		}
		sinks = append(sinks, sqlite)
	}
	pub := events.NewPublisher(sinks...)
	defer pub.Close()

	// Initialize components
	clock := util.SystemClock{}
	limiter := guard.NewRateLimiter(clock)
	vault := custody.NewVault()
	l := ledger.New(store, vault, custody.NewRegistry(), limiter, clock, pub)
	c := compliance.New(store, l, limiter, clock, pub)
	a := allocation.New(store, l, limiter, clock, pub)
	for _, initFn := range []func(string) error{l.Initialize, c.Initialize, a.Initialize} {
		if err := initFn(cfg.AdminID); err != nil {
			log.Fatalf("Failed to initialize: %v", err)
		}
	}

	monitorID := cfg.Policy.MonitorIdentity()
	if err := applyPolicy(ctx, cfg, vault, limiter, l, c, a); err != nil {
		log.Fatalf("Failed to apply policy: %v", err)
	}

	// Initialize monitor
	refPrices, _ := cfg.Policy.ReferencePrices()
	sweeper := monitor.NewSweeper(l, c, priceFeed(cfg), clock, monitor.Config{
		Identity:        monitorID,
		ReferencePrices: refPrices,
		MaxStaleness:    cfg.Policy.Monitor.MaxStaleness,
	})
	scheduler, err := monitor.NewScheduler(ctx, sweeper, cfg.MonitorCron)
	if err != nil {
		log.Fatalf("Failed to schedule monitor: %v", err)
	}

	// Setup Gin router
	lister, _ := pub.Lister()
	router := handlers.NewRouter(handlers.Deps{
		Ledger:     l,
		Compliance: c,
		Allocation: a,
		Events:     lister,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return scheduler.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")

		// Give outstanding requests 5 seconds to complete
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.WithError(err).Error("Server exited with error")
		os.Exit(1)
	}
	log.Info("Server exited")
}

// openStore selects Postgres when PG_URL is set and the in-memory store otherwise
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	if cfg.PGURL == "" {
		log.Warn("PG_URL not set, using in-memory store")
		return repository.NewMemoryStore(), nil
	}
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	store, err := repository.NewPostgresStore(connectCtx, cfg.PGURL)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureSchema(connectCtx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

// priceFeed returns the configured price source, or nil when none is set
func priceFeed(cfg *config.Config) pricefeed.Feed {
	if cfg.PriceFeedURL == "" {
		return nil
	}
	client := pricefeed.NewClient(cfg.PriceFeedURL, cfg.PriceFeedKey)
	return pricefeed.NewCachedFeed(client, pricefeed.NewMemoryCache(time.Minute, time.Now))
}

// applyPolicy installs rate limits, capabilities, seed pools and vault
// balances from the policy file
func applyPolicy(ctx context.Context, cfg *config.Config, vault *custody.Vault, limiter *guard.RateLimiter,
	l *ledger.Ledger, c *compliance.Engine, a *allocation.Engine) error {
	p := cfg.Policy
	admin := cfg.AdminID

	for _, rl := range p.RateLimits {
		if err := limiter.SetLimit(rl.Function, rl.Window, rl.MaxCalls); err != nil {
			return err
		}
	}
	for _, who := range p.Exempt {
		limiter.SetExempt(who, true)
	}

	monitorID := p.MonitorIdentity()
	if err := l.Access().Grant(admin, monitorID, guard.CapValueUpdater); err != nil {
		return err
	}
	if err := c.AddRecorder(ctx, admin, monitorID); err != nil {
		return err
	}
	for _, who := range p.Recorders {
		if err := c.AddRecorder(ctx, admin, who); err != nil {
			return err
		}
	}

	for _, sp := range p.Pools {
		_, err := a.RegisterPool(ctx, admin, sp.ID, sp.RiskLevel, sp.APYBps, sp.MaxCapacity)
		if errors.Is(err, errs.ErrAlreadyProcessed) {
			log.Debugf("pool %d already registered", sp.ID)
			continue
		}
		if err != nil {
			return err
		}
	}

	for owner, assets := range p.Balances {
		for asset, amount := range assets {
			if err := vault.Deposit(ctx, owner, asset, amount); err != nil {
				return err
			}
		}
	}
	return nil
}
