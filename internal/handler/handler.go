// Package handler is the presentation shell: every screen is served as a
// JSON view and every user action arrives as an intent. Screens only read
// controller state; intents only dispatch to controllers.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"habitrefund/internal/apiclient"
	"habitrefund/internal/auth"
	"habitrefund/internal/catalog"
	"habitrefund/internal/config"
	"habitrefund/internal/events"
	"habitrefund/internal/features"
	"habitrefund/internal/idempotency"
	"habitrefund/internal/models"
	"habitrefund/internal/native"
	"habitrefund/internal/navigation"
	"habitrefund/internal/payment"
	"habitrefund/internal/proof"
	"habitrefund/internal/session"
	"habitrefund/internal/settlement"
)

// Deps are the collaborators of the shell.
type Deps struct {
	Client      *apiclient.Client
	Store       session.Store
	Nav         navigation.Navigator
	Resolver    *auth.Resolver
	Catalog     *catalog.Catalog
	Settlements *settlement.Service
	Checkout    native.Checkout
	Events      *events.Manager
	Flags       *features.Manager
	Keys        idempotency.Generator
	App         config.AppConfig
	Logger      *slog.Logger
	// MaxBodySize caps intent bodies, photo uploads included.
	MaxBodySize int64
	// After schedules the post-proof redirect. Defaults to time.AfterFunc.
	After func(time.Duration, func())
}

// Handler provides HTTP handlers for the shell.
type Handler struct {
	deps   Deps
	logger *slog.Logger

	mu       sync.Mutex
	payments map[string]*payment.Controller
	proofs   map[string]*proof.Controller
	results  map[string]proof.Result
}

// NewHandler creates a new handler instance.
func NewHandler(deps Deps) *Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.MaxBodySize <= 0 {
		deps.MaxBodySize = 16 << 20
	}
	return &Handler{
		deps:     deps,
		logger:   deps.Logger,
		payments: make(map[string]*payment.Controller),
		proofs:   make(map[string]*proof.Controller),
		results:  make(map[string]proof.Result),
	}
}

// paymentFor returns the payment controller of one challenge screen.
func (h *Handler) paymentFor(challengeID string) *payment.Controller {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.payments[challengeID]
	if !ok {
		c = payment.NewController(h.deps.Client, h.deps.Checkout, h.deps.Nav, payment.Options{
			Keys:   h.deps.Keys,
			Events: h.deps.Events,
			Logger: h.logger,
		})
		h.payments[challengeID] = c
	}
	return c
}

// proofFor returns the proof controller of one challenge screen.
func (h *Handler) proofFor(challengeID string) *proof.Controller {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.proofs[challengeID]
	if !ok {
		c = proof.NewController(h.deps.Client, h.deps.Nav, proof.Options{
			Keys:   h.deps.Keys,
			Events: h.deps.Events,
			Logger: h.logger,
			After:  h.deps.After,
		})
		h.proofs[challengeID] = c
	}
	return c
}

func (h *Handler) lastProofResult(challengeID string) (proof.Result, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	res, ok := h.results[challengeID]
	return res, ok
}

func (h *Handler) setProofResult(challengeID string, res proof.Result) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.results[challengeID] = res
}

// cancelRedirects stops pending post-proof redirects.
func (h *Handler) cancelRedirects() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.proofs {
		c.CancelRedirect()
	}
}

// resetScreens forgets per-challenge screen state of the previous session.
func (h *Handler) resetScreens() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.payments = make(map[string]*payment.Controller)
	h.proofs = make(map[string]*proof.Controller)
	h.results = make(map[string]proof.Result)
}

// findChallenge resolves id in the effective catalog.
func (h *Handler) findChallenge(r *http.Request, id string) (models.Challenge, bool) {
	return h.deps.Catalog.Find(r.Context(), id)
}

// visit records that the user is looking at path.
func (h *Handler) visit(path string) {
	if h.deps.Nav.Current() != path {
		h.deps.Nav.Navigate(path)
	}
}

// respondJSON sends a JSON response with the given status code.
func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response with the given status code and message.
func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, models.ErrorResponse{Error: message})
}
