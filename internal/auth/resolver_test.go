package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"habitrefund/internal/apiclient"
	"habitrefund/internal/features"
	"habitrefund/internal/models"
	"habitrefund/internal/native"
	"habitrefund/internal/navigation"
	"habitrefund/internal/session"
)

type fakeBackend struct {
	tossCalls int32
	stubCalls int32
	tossBody  models.AuthorizationExchangeRequest
	tossResp  func(w http.ResponseWriter)
	stubResp  func(w http.ResponseWriter)
}

func (f *fakeBackend) router() chi.Router {
	r := chi.NewRouter()
	r.Post(PathTossExchange, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.tossCalls, 1)
		json.NewDecoder(r.Body).Decode(&f.tossBody)
		if f.tossResp != nil {
			f.tossResp(w)
			return
		}
		w.Write([]byte(`{"sessionToken":"toss-token"}`))
	})
	r.Post(PathStubExchange, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.stubCalls, 1)
		if f.stubResp != nil {
			f.stubResp(w)
			return
		}
		w.Write([]byte(`{"accessToken":"stub-token"}`))
	})
	return r
}

func setupResolver(t *testing.T, f *fakeBackend, login native.Login, opts Options) (*Resolver, *session.MemoryStore, *navigation.History) {
	t.Helper()
	srv := httptest.NewServer(f.router())
	t.Cleanup(srv.Close)

	store := session.NewMemoryStore("")
	nav := navigation.NewHistory(navigation.RouteLogin)
	client := apiclient.New(store, nav, apiclient.Options{BaseURL: srv.URL})
	return NewResolver(client, login, store, nav, opts), store, nav
}

func TestTokenFrom(t *testing.T) {
	tests := []struct {
		name    string
		resp    *models.ExchangeResponse
		want    string
		wantErr bool
	}{
		{"session token wins", &models.ExchangeResponse{SessionToken: "s", AccessToken: "a"}, "s", false},
		{"access token fallback", &models.ExchangeResponse{AccessToken: "a"}, "a", false},
		{"neither", &models.ExchangeResponse{}, "", true},
		{"nil body", nil, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TokenFrom(tt.resp)
			if (err != nil) != tt.wantErr {
				t.Fatalf("TokenFrom() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("TokenFrom() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolve_NativeExchange(t *testing.T) {
	f := &fakeBackend{}
	login := native.StaticLogin{AuthorizationCode: "code-1", Referrer: "DEFAULT"}
	r, store, nav := setupResolver(t, f, login, Options{})

	attempt, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if attempt.Kind != Exchanged || attempt.Token != "toss-token" {
		t.Errorf("Unexpected attempt %+v", attempt)
	}
	if store.Get() != "toss-token" {
		t.Errorf("Expected token persisted, got %q", store.Get())
	}
	if f.tossBody.AuthorizationCode != "code-1" || f.tossBody.Referrer != "DEFAULT" {
		t.Errorf("Unexpected exchange body %+v", f.tossBody)
	}
	if f.stubCalls != 0 {
		t.Errorf("Stub exchange must not run after native success, got %d calls", f.stubCalls)
	}
	if nav.Current() != navigation.RouteHome {
		t.Errorf("Expected navigation to home, got %q", nav.Current())
	}
}

func TestResolve_FallsBackWhenNativeFails(t *testing.T) {
	// native exchange returns 500; stub returns accessToken only
	f := &fakeBackend{
		tossResp: func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":"exchange failed"}`))
		},
	}
	login := native.StaticLogin{AuthorizationCode: "code-1"}
	r, store, nav := setupResolver(t, f, login, Options{})

	attempt, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if attempt.Token != "stub-token" || store.Get() != "stub-token" {
		t.Errorf("Expected stub token, attempt %+v stored %q", attempt, store.Get())
	}
	if f.tossCalls != 1 || f.stubCalls != 1 {
		t.Errorf("Expected one call per path, got toss=%d stub=%d", f.tossCalls, f.stubCalls)
	}
	if nav.Current() != navigation.RouteHome {
		t.Errorf("Expected navigation to home, got %q", nav.Current())
	}
}

func TestResolve_NativeUnavailable(t *testing.T) {
	f := &fakeBackend{}
	r, store, _ := setupResolver(t, f, native.Unavailable{}, Options{})

	if _, err := r.Resolve(context.Background()); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if f.tossCalls != 0 {
		t.Errorf("Native exchange must not be called, got %d", f.tossCalls)
	}
	if store.Get() != "stub-token" {
		t.Errorf("Expected stub token, got %q", store.Get())
	}
}

func TestResolve_ExpiredGrantFallsBack(t *testing.T) {
	issued := time.Date(2025, 12, 21, 9, 0, 0, 0, time.UTC)
	login := native.StaticLogin{
		AuthorizationCode: "stale",
		Now:               func() time.Time { return issued },
	}
	f := &fakeBackend{}
	r, store, _ := setupResolver(t, f, login, Options{
		Now: func() time.Time { return issued.Add(native.AuthorizationCodeTTL + time.Second) },
	})

	if _, err := r.Resolve(context.Background()); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if f.tossCalls != 0 {
		t.Errorf("Expired code must not be exchanged, got %d calls", f.tossCalls)
	}
	if store.Get() != "stub-token" {
		t.Errorf("Expected stub token, got %q", store.Get())
	}
}

func TestResolve_NativeDisabledByFlag(t *testing.T) {
	flags := features.NewManager()
	flags.Register(features.FeatureNativeLogin, false, "native login")

	f := &fakeBackend{}
	login := native.StaticLogin{AuthorizationCode: "code-1"}
	r, _, _ := setupResolver(t, f, login, Options{Flags: flags})

	if _, err := r.Resolve(context.Background()); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if f.tossCalls != 0 || f.stubCalls != 1 {
		t.Errorf("Expected stub only, got toss=%d stub=%d", f.tossCalls, f.stubCalls)
	}
}

func TestResolve_BothPathsFail(t *testing.T) {
	f := &fakeBackend{
		stubResp: func(w http.ResponseWriter) {
			w.Write([]byte(`{}`))
		},
	}
	r, store, nav := setupResolver(t, f, native.Unavailable{}, Options{})

	attempt, err := r.Resolve(context.Background())
	if !errors.Is(err, ErrTokenMissing) {
		t.Fatalf("Expected ErrTokenMissing, got %v", err)
	}
	if attempt.Kind != Failed {
		t.Errorf("Expected failed attempt, got %v", attempt.Kind)
	}
	if store.Get() != "" {
		t.Errorf("Expected no token, got %q", store.Get())
	}
	if nav.Current() != navigation.RouteLogin {
		t.Errorf("Expected to stay on login, got %q", nav.Current())
	}
}

func TestResolve_RejectsConcurrentLogin(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	f := &fakeBackend{
		stubResp: func(w http.ResponseWriter) {
			close(entered)
			<-release
			w.Write([]byte(`{"sessionToken":"s"}`))
		},
	}
	r, _, _ := setupResolver(t, f, native.Unavailable{}, Options{})

	done := make(chan error, 1)
	go func() {
		_, err := r.Resolve(context.Background())
		done <- err
	}()
	<-entered

	if !r.Busy() {
		t.Error("Expected resolver to report busy")
	}
	if _, err := r.Resolve(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("Expected ErrBusy, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("First login failed: %v", err)
	}
}

func TestLogout(t *testing.T) {
	f := &fakeBackend{}
	r, store, nav := setupResolver(t, f, native.Unavailable{}, Options{})
	store.Set("tok")

	if err := r.Logout(context.Background()); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if store.Get() != "" {
		t.Errorf("Expected token cleared, got %q", store.Get())
	}
	if nav.Current() != navigation.RouteLogin {
		t.Errorf("Expected login route, got %q", nav.Current())
	}
}
