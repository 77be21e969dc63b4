package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"habitrefund/internal/auth"
	"habitrefund/internal/catalog"
	"habitrefund/internal/handler"
	"habitrefund/internal/middleware"
	"habitrefund/internal/models"
	"habitrefund/internal/payment"
	"habitrefund/internal/proof"
	"habitrefund/internal/settlement"
)

var errLoginRequired = errors.New("로그인이 필요합니다. `habitrefund login`을 먼저 실행하세요.")

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "serve":
		return a.serve(ctx)
	case "login":
		return a.login(ctx)
	case "logout":
		if err := a.resolver.Logout(ctx); err != nil {
			return err
		}
		a.catalog.Invalidate(ctx)
		return nil
	}

	if a.store.Get() == "" {
		return errLoginRequired
	}

	switch cmd {
	case "challenges":
		return a.listChallenges(ctx)
	case "deposit":
		if len(args) != 1 {
			return errors.New("usage: habitrefund deposit <challenge-id>")
		}
		return a.deposit(ctx, args[0])
	case "proof":
		if len(args) < 1 || len(args) > 2 {
			return errors.New("usage: habitrefund proof <challenge-id> [photo]")
		}
		photo := ""
		if len(args) == 2 {
			photo = args[1]
		}
		return a.submitProof(ctx, args[0], photo)
	case "history":
		if len(args) == 1 {
			return a.settlementOf(ctx, args[0])
		}
		return a.history(ctx)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *app) serve(ctx context.Context) error {
	h := handler.NewHandler(handler.Deps{
		Client:      a.client,
		Store:       a.store,
		Nav:         a.nav,
		Resolver:    a.resolver,
		Catalog:     a.catalog,
		Settlements: a.settlements,
		Checkout:    a.checkout,
		Events:      a.events,
		Flags:       a.flags,
		App:         a.cfg.App,
		Logger:      a.logger,
		MaxBodySize: a.cfg.Security.MaxRequestBodySize,
	})

	var rateLimiter *middleware.RateLimiter
	if a.cfg.RateLimit.Enabled {
		rateLimiter = middleware.NewRateLimiter(a.cfg.RateLimit.Rate, time.Duration(a.cfg.RateLimit.Window)*time.Second)
		defer rateLimiter.Stop()
	}

	r := handler.NewRouter(h, handler.RouterOptions{
		AllowedOrigins: a.cfg.Security.Origins(),
		RateLimiter:    rateLimiter,
		Tracer:         a.tracer,
		RequestLog:     true,
	})

	server := &http.Server{
		Addr:              a.cfg.Shell.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.logger.Info("starting presentation shell",
		"addr", server.Addr,
		"backend", a.cfg.Backend.BaseURL,
		"route", a.nav.Current(),
	)
	if rateLimiter != nil {
		a.logger.Info("rate limiting enabled", "rate", a.cfg.RateLimit.Rate, "window_seconds", a.cfg.RateLimit.Window)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down presentation shell")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func (a *app) login(ctx context.Context) error {
	att, err := a.resolver.Resolve(ctx)
	if err != nil {
		msg := auth.MessageLoginFailed
		if att.Reason != nil {
			msg = att.Reason.Error()
		}
		return errors.New(msg)
	}
	fmt.Fprintf(a.out, "로그인 완료 (%s)\n", a.nav.Current())
	return nil
}

func (a *app) listChallenges(ctx context.Context) error {
	listing := a.catalog.List(ctx)
	if listing.Error != "" {
		fmt.Fprintf(a.out, "%s%s\n", handler.MessageBackendFailed, listing.Error)
	}
	fmt.Fprintln(a.out, handler.MessageOfficialOnly)
	for _, ch := range listing.Items {
		fmt.Fprintf(a.out, "%-12s %s (%s)\n", ch.ID, ch.Title, catalog.Summary(ch))
	}
	return nil
}

func (a *app) deposit(ctx context.Context, id string) error {
	ch, ok := a.catalog.Find(ctx, id)
	if !ok {
		return errors.New(handler.MessageChallengeNotFound)
	}

	ctrl := payment.NewController(a.client, a.checkout, a.nav, payment.Options{
		Events: a.events,
		Logger: a.logger,
	})
	ctrl.Subscribe(func(s payment.Snapshot) {
		fmt.Fprintf(a.out, "· %s\n", s.State)
	})

	fmt.Fprintf(a.out, "%s: %s\n", ch.Title, catalog.DepositLabel(ch))
	snap, err := ctrl.Start(ctx, ch)
	if err != nil {
		return errors.New(snap.Message)
	}
	fmt.Fprintf(a.out, "결제 완료 (payment %s). 다음: %s\n", snap.PaymentID, a.nav.Current())
	return nil
}

func (a *app) submitProof(ctx context.Context, id, photoPath string) error {
	ch, ok := a.catalog.Find(ctx, id)
	if !ok {
		return errors.New(handler.MessageProofNotFound)
	}

	ctrl := proof.NewController(a.client, a.nav, proof.Options{
		Events: a.events,
		Logger: a.logger,
		After: func(d time.Duration, fn func()) {
			time.Sleep(d)
			fn()
		},
	})

	var photo proof.Photo
	if photoPath != "" {
		photo = proof.FilePhoto{Path: photoPath}
	}

	res, err := ctrl.Submit(ctx, ch, photo)
	if err != nil {
		msg := res.Message
		if msg == "" {
			msg = proof.MessageFailed
		}
		return errors.New(msg)
	}
	fmt.Fprintln(a.out, res.Message)
	return a.history(ctx)
}

func (a *app) history(ctx context.Context) error {
	items, err := a.settlements.List(ctx)
	if err != nil {
		a.logger.Warn("settlement list failed", "error", err)
		return errors.New(settlement.MessageLoadFailed)
	}
	if len(items) == 0 {
		fmt.Fprintln(a.out, handler.MessageHistoryEmpty)
		return nil
	}
	for _, st := range items {
		a.printSettlement(st)
	}
	return nil
}

func (a *app) settlementOf(ctx context.Context, id string) error {
	st, err := a.settlements.Get(ctx, id)
	if err != nil {
		a.logger.Warn("settlement lookup failed", "challenge_id", id, "error", err)
		return errors.New(settlement.MessageLoadFailed)
	}
	if st == nil {
		fmt.Fprintln(a.out, handler.MessageHistoryEmpty)
		return nil
	}
	a.printSettlement(*st)
	return nil
}

func (a *app) printSettlement(st models.Settlement) {
	row := settlement.Describe(st)
	fmt.Fprintf(a.out, "%s  %s", row.Title, row.Description)
	if row.Badge != "" {
		fmt.Fprintf(a.out, "  [%s]", row.Badge)
	}
	fmt.Fprintln(a.out)
}
