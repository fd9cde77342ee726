package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rtuszik/discogsdash/internal/app"
	"github.com/rtuszik/discogsdash/internal/config"
	"github.com/rtuszik/discogsdash/internal/constants"
	"github.com/rtuszik/discogsdash/internal/discogs"
	"github.com/rtuszik/discogsdash/internal/domain"
	httpapp "github.com/rtuszik/discogsdash/internal/http"
	"github.com/rtuszik/discogsdash/internal/httpclient"
	"github.com/rtuszik/discogsdash/internal/logger"
	"github.com/rtuszik/discogsdash/internal/oauth"
	"github.com/rtuszik/discogsdash/internal/pricing"
	"github.com/rtuszik/discogsdash/internal/retry"
	"github.com/rtuszik/discogsdash/internal/scheduler"
	"github.com/rtuszik/discogsdash/internal/store"
	"github.com/rtuszik/discogsdash/internal/supervisor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	appLogger := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	db, err := store.NewSQLiteDB(cfg.Database.Path)
	if err != nil {
		appLogger.Error("Failed to init DB", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if !cfg.CatalogConfigured() {
		appLogger.Warn("Catalog identity incomplete, syncs will fail until DISCOGS_USERNAME, DISCOGS_CONSUMER_KEY and DISCOGS_CONSUMER_SECRET are set")
	}

	policy := retry.Policy{
		MaxRetries:      cfg.Retry.MaxRetries,
		BaseDelay:       cfg.Retry.BaseDelay,
		MaxDelay:        cfg.Retry.MaxDelay,
		Multiplier:      cfg.Retry.Multiplier,
		Jitter:          cfg.Retry.Jitter,
		RateLimitBuffer: cfg.Retry.RateLimitBuffer,
	}

	oauthCfg := oauth.Config{
		ConsumerKey:    cfg.Discogs.ConsumerKey,
		ConsumerSecret: cfg.Discogs.ConsumerSecret,
		BaseURL:        cfg.Discogs.APIURL,
		AuthorizeURL:   cfg.Discogs.AuthorizeURL,
		UserAgent:      cfg.Discogs.UserAgent,
	}

	// Signing sits innermost: each attempt is signed after pacing and the breaker.
	transport := httpclient.NewClient(&http.Client{
		Timeout:   constants.DefaultHTTPTimeout,
		Transport: oauth.NewTransport(oauthCfg, db, httpclient.DefaultTransport()),
	}, httpclient.Config{
		Name:              constants.BreakerName,
		RequestsPerMinute: cfg.Discogs.RequestsPerMinute,
		FailureThreshold:  constants.BreakerFailureThreshold,
		OpenTimeout:       constants.BreakerOpenTimeout,
		Logger:            appLogger,
	})

	auth := oauth.NewManager(oauthCfg, transport, store.NewTicketCache(db), db, policy, appLogger)

	catalog := discogs.NewClient(discogs.Config{
		BaseURL:   cfg.Discogs.APIURL,
		UserAgent: cfg.Discogs.UserAgent,
		PageSize:  cfg.Sync.PageSize,
	}, transport, policy, appLogger)

	progress := store.NewProgressStore(store.NewSettingsRepo(db))
	resetInterruptedRun(progress, appLogger)

	var prices pricing.SuggestionSource = catalog
	if cfg.Pricing.CacheTTL > 0 {
		prices = pricing.NewCachedSource(catalog, db, cfg.Pricing.CacheTTL, appLogger)
	}

	syncService := app.NewSyncService(app.SyncConfig{
		Username:       cfg.Discogs.Username,
		ConsumerKey:    cfg.Discogs.ConsumerKey,
		ConsumerSecret: cfg.Discogs.ConsumerSecret,
	}, catalog, pricing.NewResolver(prices, cfg.Pricing.ConditionPriority), db, progress, auth, appLogger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	h := httpapp.NewHandler(syncService, progress, auth, db, appLogger)
	h.RegisterRoutes(r)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	tree := supervisor.NewTree(appLogger.WithComponent("supervisor").Logger, supervisor.TreeConfig{
		ShutdownTimeout: constants.DefaultShutdownTimeout,
	})
	tree.AddAPIService(supervisor.NewHTTPServerService(srv, constants.DefaultShutdownTimeout))
	tree.AddJobService(scheduler.New(cfg.Sync.Schedule, syncService, appLogger))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appLogger.Info("Server listening", "addr", srv.Addr)
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		appLogger.Error("Supervisor stopped", "error", err)
		os.Exit(1)
	}
	appLogger.Info("Server exiting")
}

// resetInterruptedRun marks a run left "running" by a previous process as
// failed so pollers do not wait on it forever.
func resetInterruptedRun(progress *store.ProgressStore, log *logger.Logger) {
	ctx := context.Background()
	status, err := progress.Status(ctx)
	if err != nil {
		log.Warn("Failed to read sync status", "error", err)
		return
	}
	if status.State != domain.SyncStateRunning {
		return
	}
	if err := progress.ReportStatus(ctx, domain.SyncStateError, "sync interrupted by restart"); err != nil {
		log.Warn("Failed to reset interrupted sync", "error", err)
	}
}
