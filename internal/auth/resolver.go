// Package auth resolves a usable session token.
//
// The native login handoff is tried first; when it is unavailable or fails
// the resolver falls back to the stub exchange, which issues a demo session.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"habitrefund/internal/apiclient"
	"habitrefund/internal/events"
	"habitrefund/internal/features"
	"habitrefund/internal/models"
	"habitrefund/internal/native"
	"habitrefund/internal/navigation"
	"habitrefund/internal/session"
)

const (
	PathTossExchange = "/v1/auth/toss/exchange"
	PathStubExchange = "/v1/auth/exchange"
)

// MessageLoginFailed is shown when neither path produced a token.
const MessageLoginFailed = "로그인에 실패했습니다."

var (
	// ErrTokenMissing is returned when an exchange response carries no token.
	ErrTokenMissing = errors.New("token missing")
	// ErrBusy is returned when a login is already in flight.
	ErrBusy = errors.New("login already in progress")
	// ErrGrantExpired is returned when the authorization code outlived its TTL.
	ErrGrantExpired = errors.New("authorization code expired")
)

// AttemptKind tags the outcome of one login path.
type AttemptKind int

const (
	NativeUnavailable AttemptKind = iota
	Exchanged
	Failed
)

func (k AttemptKind) String() string {
	switch k {
	case NativeUnavailable:
		return "native_unavailable"
	case Exchanged:
		return "exchanged"
	default:
		return "failed"
	}
}

// Attempt is the tagged result of one login path.
type Attempt struct {
	Kind   AttemptKind
	Token  string
	Reason error
}

// Resolver produces and persists a session token.
type Resolver struct {
	client *apiclient.Client
	login  native.Login
	store  session.Store
	nav    navigation.Navigator
	flags  *features.Manager
	events *events.Manager
	logger *slog.Logger
	now    func() time.Time

	mu   sync.Mutex
	busy bool
}

// Options holds the optional collaborators of a Resolver.
type Options struct {
	Flags  *features.Manager
	Events *events.Manager
	Logger *slog.Logger
	Now    func() time.Time
}

// NewResolver creates a resolver. A nil Flags manager leaves the native path
// enabled.
func NewResolver(client *apiclient.Client, login native.Login, store session.Store, nav navigation.Navigator, opts Options) *Resolver {
	if login == nil {
		login = native.Unavailable{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Resolver{
		client: client,
		login:  login,
		store:  store,
		nav:    nav,
		flags:  opts.Flags,
		events: opts.Events,
		logger: opts.Logger,
		now:    opts.Now,
	}
}

// TokenFrom extracts the session token, preferring sessionToken.
func TokenFrom(resp *models.ExchangeResponse) (string, error) {
	if resp == nil {
		return "", ErrTokenMissing
	}
	if resp.SessionToken != "" {
		return resp.SessionToken, nil
	}
	if resp.AccessToken != "" {
		return resp.AccessToken, nil
	}
	return "", ErrTokenMissing
}

// Resolve runs the native path, then the stub path if needed, persists the
// token and moves to the authenticated landing view.
func (r *Resolver) Resolve(ctx context.Context) (Attempt, error) {
	if !r.acquire() {
		return Attempt{Kind: Failed, Reason: ErrBusy}, ErrBusy
	}
	defer r.release()

	path := "toss"
	attempt := r.tryNative(ctx)
	if attempt.Kind != Exchanged {
		r.logger.Info("native login not used, falling back to stub exchange",
			"kind", attempt.Kind.String(),
			"reason", errString(attempt.Reason),
		)
		path = "stub"
		attempt = r.tryStub(ctx)
	}

	if attempt.Kind != Exchanged {
		r.logger.Warn("login failed", "reason", errString(attempt.Reason))
		return attempt, fmt.Errorf("login: %w", attempt.Reason)
	}

	if err := r.store.Set(attempt.Token); err != nil {
		return Attempt{Kind: Failed, Reason: err}, fmt.Errorf("persist session token: %w", err)
	}

	r.logger.Info("session established", "path", path)
	r.events.PublishSessionEstablished(ctx, path)
	r.nav.Navigate(navigation.RouteHome)
	return attempt, nil
}

// Logout drops the session and returns to the login view.
func (r *Resolver) Logout(ctx context.Context) error {
	if err := r.store.Clear(); err != nil {
		return fmt.Errorf("clear session token: %w", err)
	}
	r.events.PublishSessionEnded(ctx)
	r.nav.Navigate(navigation.RouteLogin)
	return nil
}

// Busy reports whether a login is in flight.
func (r *Resolver) Busy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.busy
}

func (r *Resolver) tryNative(ctx context.Context) Attempt {
	if r.flags != nil && !r.flags.IsEnabled(features.FeatureNativeLogin) {
		return Attempt{Kind: NativeUnavailable, Reason: native.ErrUnavailable}
	}

	grant, err := r.login.AppLogin(ctx)
	if errors.Is(err, native.ErrUnavailable) {
		return Attempt{Kind: NativeUnavailable, Reason: err}
	}
	if err != nil {
		return Attempt{Kind: Failed, Reason: err}
	}
	if grant.Expired(r.now()) {
		return Attempt{Kind: Failed, Reason: ErrGrantExpired}
	}

	resp, err := apiclient.Post[models.ExchangeResponse](ctx, r.client, PathTossExchange, models.AuthorizationExchangeRequest{
		AuthorizationCode: grant.AuthorizationCode,
		Referrer:          grant.Referrer,
	}, "")
	return exchanged(resp, err)
}

func (r *Resolver) tryStub(ctx context.Context) Attempt {
	resp, err := apiclient.Post[models.ExchangeResponse](ctx, r.client, PathStubExchange, struct{}{}, "")
	return exchanged(resp, err)
}

func exchanged(resp *models.ExchangeResponse, err error) Attempt {
	if err != nil {
		return Attempt{Kind: Failed, Reason: err}
	}
	token, err := TokenFrom(resp)
	if err != nil {
		return Attempt{Kind: Failed, Reason: err}
	}
	return Attempt{Kind: Exchanged, Token: token}
}

func (r *Resolver) acquire() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.busy {
		return false
	}
	r.busy = true
	return true
}

func (r *Resolver) release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.busy = false
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
