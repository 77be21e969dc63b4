// Package navigation models the client's routes and the current view.
package navigation

import (
	"net/url"
	"strings"
	"sync"
)

const (
	RouteLogin   = "/login"
	RouteHome    = "/"
	RouteHistory = "/history"
	RouteHelp    = "/help"
	RouteTerms   = "/terms"
	RoutePrivacy = "/privacy"
	RouteSupport = "/support"
)

// ReasonUnlinked annotates a login redirect caused by a revoked session.
const ReasonUnlinked = "unlinked"

// Navigator exposes the current view and moves between views.
type Navigator interface {
	Current() string
	Navigate(path string)
}

// ChallengePath returns the challenge detail route.
func ChallengePath(id string) string {
	return "/challenge/" + url.PathEscape(id)
}

// ProofPath returns the proof submission route.
func ProofPath(id string) string {
	return "/proof/" + url.PathEscape(id)
}

// LoginPath returns the login route, annotated with reason when non-empty.
func LoginPath(reason string) string {
	if reason == "" {
		return RouteLogin
	}
	return RouteLogin + "?reason=" + url.QueryEscape(reason)
}

// IsLogin reports whether path points at the login view.
func IsLogin(path string) bool {
	return strings.HasPrefix(path, RouteLogin)
}

// Reason extracts the reason annotation from a login path.
func Reason(path string) string {
	u, err := url.Parse(path)
	if err != nil {
		return ""
	}
	return u.Query().Get("reason")
}

// MaxHistory bounds the paths a History retains.
const MaxHistory = 64

// History is an in-memory Navigator that keeps the most recent MaxHistory
// visited paths.
type History struct {
	mu      sync.RWMutex
	entries []string
	onMove  []func(path string)
}

// NewHistory creates a history positioned at start.
func NewHistory(start string) *History {
	return &History{entries: []string{start}}
}

// Current returns the active path.
func (h *History) Current() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.entries[len(h.entries)-1]
}

// Navigate pushes path and notifies listeners.
func (h *History) Navigate(path string) {
	h.mu.Lock()
	h.entries = append(h.entries, path)
	if n := len(h.entries) - MaxHistory; n > 0 {
		h.entries = append(h.entries[:0], h.entries[n:]...)
	}
	listeners := append([]func(string){}, h.onMove...)
	h.mu.Unlock()

	for _, fn := range listeners {
		fn(path)
	}
}

// Entries returns a copy of the retained paths, oldest first.
func (h *History) Entries() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]string(nil), h.entries...)
}

// OnNavigate registers a listener called after every navigation.
func (h *History) OnNavigate(fn func(path string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onMove = append(h.onMove, fn)
}
