package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"habitrefund/internal/apiclient"
	"habitrefund/internal/auth"
	"habitrefund/internal/cache"
	"habitrefund/internal/catalog"
	"habitrefund/internal/config"
	"habitrefund/internal/database"
	"habitrefund/internal/events"
	"habitrefund/internal/features"
	"habitrefund/internal/native"
	"habitrefund/internal/navigation"
	"habitrefund/internal/session"
	"habitrefund/internal/settlement"
	"habitrefund/internal/tracing"
)

// app holds every long-lived collaborator of the client.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	out    io.Writer

	db          *database.DB
	cache       cache.Cache
	tracer      *tracing.Tracer
	flags       *features.Manager
	events      *events.Manager
	store       session.Store
	nav         *navigation.History
	client      *apiclient.Client
	resolver    *auth.Resolver
	catalog     *catalog.Catalog
	settlements *settlement.Service
	checkout    native.Checkout

	closeOnce sync.Once
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, out: os.Stdout}

	// Initialize database
	db, err := database.NewDB(cfg.Storage.TokenDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	a.db = db
	a.store = session.NewDBStore(db, logger)

	tracer, err := tracing.InitTracing(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: "habitrefund-client",
		Environment: cfg.Tracing.Environment,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracer = tracer

	a.cache = newCache(ctx, cfg.Cache, logger)

	a.flags = features.NewManager()
	a.flags.Register(features.FeatureNativeLogin, cfg.Features.NativeLogin, "Try the host app login handoff first")
	a.flags.Register(features.FeatureChallengeOverride, cfg.Features.ChallengeOverride, "Let the server catalog replace the built-in one")
	a.flags.Register(features.FeatureEventHooks, cfg.Features.EventHooks, "Log lifecycle events")
	a.flags.Register(features.FeatureAutoApproveCheckout, cfg.Features.AutoApproveCheckout, "Confirm live payments without a prompt")

	a.events = events.NewManager(a.flags.IsEnabled(features.FeatureEventHooks))
	a.subscribeAudit()

	start := navigation.RouteLogin
	if a.store.Get() != "" {
		start = navigation.RouteHome
	}
	a.nav = navigation.NewHistory(start)
	a.nav.OnNavigate(func(path string) {
		logger.Debug("navigated", "route", path)
	})

	a.client = apiclient.New(a.store, a.nav, apiclient.Options{
		BaseURL: cfg.Backend.BaseURL,
		Tracer:  tracer,
		Logger:  logger,
	})

	var login native.Login = native.Unavailable{}
	if cfg.Native.AuthorizationCode != "" {
		login = native.StaticLogin{
			AuthorizationCode: cfg.Native.AuthorizationCode,
			Referrer:          cfg.Native.Referrer,
		}
	}
	a.resolver = auth.NewResolver(a.client, login, a.store, a.nav, auth.Options{
		Flags:  a.flags,
		Events: a.events,
		Logger: logger,
	})

	a.catalog = catalog.New(a.client, catalog.Options{
		Cache:  a.cache,
		TTL:    cfg.Cache.TTL(),
		Flags:  a.flags,
		Logger: logger,
	})
	a.settlements = settlement.NewService(a.client)

	if a.flags.IsEnabled(features.FeatureAutoApproveCheckout) {
		a.checkout = native.AutoApprove{}
	} else {
		a.checkout = native.NewPromptCheckout(os.Stdin, os.Stdout)
	}

	return a, nil
}

// newCache prefers Redis when configured and falls back to memory when it
// cannot be reached.
func newCache(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) cache.Cache {
	if cfg.RedisAddr == "" {
		return cache.NewInMemoryCache()
	}
	rc, err := cache.NewRedisCache(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Warn("redis unavailable, using in-memory catalog cache", "addr", cfg.RedisAddr, "error", err)
		return cache.NewInMemoryCache()
	}
	return rc
}

func (a *app) subscribeAudit() {
	audit := func(ctx context.Context, e events.Event) error {
		a.logger.Info("event", "type", string(e.Type), "at", e.Timestamp, "data", e.Data)
		return nil
	}
	for _, t := range []events.EventType{
		events.EventSessionEstablished,
		events.EventSessionEnded,
		events.EventPaymentCompleted,
		events.EventPaymentFailed,
		events.EventProofSubmitted,
	} {
		a.events.Subscribe(t, audit)
	}
	a.events.OnError(func(e events.Event, err error) {
		a.logger.Error("event handler failed", "type", string(e.Type), "error", err)
	})
}

// Close releases every resource. Safe to call more than once.
func (a *app) Close() {
	a.closeOnce.Do(func() {
		a.events.Shutdown()

		if rc, ok := a.cache.(*cache.RedisCache); ok {
			rc.Close()
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.Shutdown(ctx); err != nil {
			a.logger.Warn("tracing shutdown failed", "error", err)
		}

		if err := a.db.Close(); err != nil {
			a.logger.Warn("database close failed", "error", err)
		}
	})
}
