package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"habitrefund/internal/config"
	"habitrefund/internal/middleware"
	"habitrefund/internal/models"
	"habitrefund/internal/stubbackend"
	"habitrefund/internal/tracing"
)

func main() {
	configFile := flag.String("config", "", "Configuration file path (JSON)")
	envFile := flag.String("env", ".env", "Dotenv file loaded before the environment is read")
	mode := flag.String("mode", "", "Payment mode override (mock or live)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if err := config.LoadDotEnv(*envFile); err != nil {
		logger.Error("failed to load dotenv file", "path", *envFile, "error", err)
		os.Exit(1)
	}
	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *mode != "" {
		cfg.Stub.PaymentMode = *mode
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	tracer, err := tracing.InitTracing(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: "habitrefund-stub",
		Environment: cfg.Tracing.Environment,
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	stub := stubbackend.New(stubbackend.Options{
		Mode:           models.PaymentMode(cfg.Stub.PaymentMode),
		AllowedOrigins: cfg.Security.Origins(),
		Logger:         logger,
	})

	r := chi.NewRouter()

	// Middleware (order matters)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.TracingMiddleware(tracer))

	if cfg.RateLimit.Enabled {
		rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.Rate, time.Duration(cfg.RateLimit.Window)*time.Second)
		defer rateLimiter.Stop()
		r.Use(middleware.RateLimitMiddleware(rateLimiter))
	}

	r.Mount("/", stub.Router())

	server := &http.Server{
		Addr:              cfg.Stub.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		logger.Info("shutting down stub backend")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("error closing server", "error", err)
		}
		tracing.Shutdown(shutdownCtx)
	}()

	logger.Info("starting stub backend", "addr", server.Addr, "payment_mode", cfg.Stub.PaymentMode)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}
