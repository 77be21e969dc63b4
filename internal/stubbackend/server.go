// Package stubbackend is a demo implementation of the habit refund backend
// API for local development and tests. All state is in memory.
package stubbackend

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"habitrefund/internal/catalog"
	"habitrefund/internal/idempotency"
	"habitrefund/internal/models"
	"habitrefund/internal/validation"
)

// MaxBodyBytes caps request bodies; a base64 photo is about 4/3 of its size.
const MaxBodyBytes = validation.MaxPhotoBytes*4/3 + 1<<20

// Options configures a Server.
type Options struct {
	Mode           models.PaymentMode
	Challenges     []models.Challenge
	AllowedOrigins []string
	Logger         *slog.Logger
}

// Server holds every session, payment and settlement in memory.
type Server struct {
	logger         *slog.Logger
	allowedOrigins []string

	mu          sync.Mutex
	mode        models.PaymentMode
	challenges  []models.Challenge
	tokens      map[string]bool
	nextPayment int64
	payments    map[string]*payment
	idem        map[string][]byte
	settlements map[string]map[string]*models.Settlement // token -> challenge id
}

type payment struct {
	intent   models.PaymentIntent
	owner    string
	executed bool
}

// New creates a stub backend. Mode defaults to mock and Challenges to the
// official catalog.
func New(opts Options) *Server {
	if opts.Mode == "" {
		opts.Mode = models.PaymentModeMock
	}
	if opts.Challenges == nil {
		opts.Challenges = catalog.Official()
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Server{
		logger:         opts.Logger,
		allowedOrigins: opts.AllowedOrigins,
		mode:           opts.Mode,
		challenges:     opts.Challenges,
		tokens:         make(map[string]bool),
		payments:       make(map[string]*payment),
		idem:           make(map[string][]byte),
		settlements:    make(map[string]map[string]*models.Settlement),
	}
}

// SetMode switches the mode reported for new payments.
func (s *Server) SetMode(mode models.PaymentMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
}

// Revoke invalidates token, as when the user unlinks the app.
func (s *Server) Revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
}

// Settle records the backend's verdict for a challenge of token's user.
func (s *Server) Settle(token, challengeID string, status models.SettlementStatus, refundable bool, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settlementsOf(token)[challengeID] = &models.Settlement{
		ChallengeID: challengeID,
		Status:      status,
		Refundable:  refundable,
		Message:     message,
	}
}

// Router returns the HTTP handler for the /v1 API.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", idempotency.Header},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/auth/exchange", s.handleStubExchange)
		r.Post("/auth/toss/exchange", s.handleTossExchange)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/challenges", s.handleChallenges)
			r.Post("/payments/create", s.handlePaymentCreate)
			r.Post("/payments/execute", s.handlePaymentExecute)
			r.Post("/proofs/submit", s.handleProofSubmit)
			r.Get("/settlements", s.handleSettlements)
			r.Get("/settlements/{challengeId}", s.handleSettlement)
		})
	})

	return r
}

func (s *Server) issueToken() string {
	token := "stub_" + uuid.NewString()
	s.mu.Lock()
	s.tokens[token] = true
	s.mu.Unlock()
	return token
}

func (s *Server) handleStubExchange(w http.ResponseWriter, r *http.Request) {
	token := s.issueToken()
	s.logger.Info("stub session issued")
	writeJSON(w, http.StatusOK, models.ExchangeResponse{AccessToken: token, Mode: "stub"})
}

func (s *Server) handleTossExchange(w http.ResponseWriter, r *http.Request) {
	var req models.AuthorizationExchangeRequest
	if !decode(w, r, &req) {
		return
	}
	if req.AuthorizationCode == "" || req.Referrer == "" {
		badRequest(w, "missing_fields", map[string]string{"authorizationCode": "required", "referrer": "required"})
		return
	}

	token := s.issueToken()
	s.logger.Info("toss session issued", "referrer", req.Referrer)
	writeJSON(w, http.StatusOK, models.ExchangeResponse{SessionToken: token, Mode: "toss"})
}

type ctxKey string

const ctxTokenKey ctxKey = "token"

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		if h == "" || !strings.HasPrefix(strings.ToLower(h), "bearer ") {
			unauthorized(w, "missing_bearer_token")
			return
		}
		token := strings.TrimSpace(h[len("Bearer "):])

		s.mu.Lock()
		valid := s.tokens[token]
		s.mu.Unlock()
		if !valid {
			unauthorized(w, "invalid_token")
			return
		}

		ctx := context.WithValue(r.Context(), ctxTokenKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func tokenFrom(r *http.Request) string {
	token, _ := r.Context().Value(ctxTokenKey).(string)
	return token
}

func (s *Server) handleChallenges(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	items := append([]models.Challenge(nil), s.challenges...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, models.ChallengesResponse{Items: items})
}

func (s *Server) handlePaymentCreate(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePaymentRequest
	if !decode(w, r, &req) {
		return
	}
	if req.ChallengeID == "" || req.Amount <= 0 {
		badRequest(w, "invalid_fields", nil)
		return
	}

	token := tokenFrom(r)
	idemKey := r.Header.Get(idempotency.Header)
	if idemKey == "" {
		idemKey = "mp-" + uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if cached, ok := s.idem[scopedKey("make-payment", token, idemKey)]; ok {
		writeRaw(w, cached)
		return
	}

	ch, ok := catalog.Lookup(s.challenges, req.ChallengeID)
	if !ok {
		badRequest(w, "unknown_challenge", req.ChallengeID)
		return
	}
	if ch.Deposit != req.Amount {
		badRequest(w, "amount_mismatch", map[string]int64{"expected": ch.Deposit})
		return
	}

	s.nextPayment++
	id := models.NumericPaymentID(s.nextPayment)

	intent := models.PaymentIntent{
		PaymentID:   id,
		OrderNo:     "order-" + uuid.NewString(),
		PayToken:    string(s.mode) + "_pt_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Status:      "CREATED",
		ChallengeID: req.ChallengeID,
		Amount:      req.Amount,
		Mode:        s.mode,
	}
	s.payments[id.String()] = &payment{intent: intent, owner: token}

	resp, _ := json.Marshal(intent)
	s.idem[scopedKey("make-payment", token, idemKey)] = resp

	s.logger.Info("payment created",
		"payment_id", id.String(),
		"challenge_id", req.ChallengeID,
		"mode", string(s.mode),
	)
	writeRaw(w, resp)
}

func (s *Server) handlePaymentExecute(w http.ResponseWriter, r *http.Request) {
	var req models.ExecutePaymentRequest
	if !decode(w, r, &req) {
		return
	}
	if req.PaymentID.IsZero() {
		badRequest(w, "missing_fields", nil)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[req.PaymentID.String()]
	if !ok || p.owner != tokenFrom(r) {
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "payment_not_found"})
		return
	}

	// keyed by payment id: a repeated execute returns the same result
	if !p.executed {
		p.executed = true
		p.intent.Status = "DONE"
		s.logger.Info("payment executed", "payment_id", req.PaymentID.String())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"paymentId": p.intent.PaymentID,
		"status":    p.intent.Status,
	})
}

func (s *Server) handleProofSubmit(w http.ResponseWriter, r *http.Request) {
	var req models.ProofSubmission
	if !decode(w, r, &req) {
		return
	}
	if req.ChallengeID == "" || (req.ImageBase64 == "") == (req.ImageHash == "") {
		badRequest(w, "invalid_fields", "exactly one of imageBase64 and imageHash is required")
		return
	}
	if req.ImageBase64 != "" {
		if _, err := base64.StdEncoding.DecodeString(req.ImageBase64); err != nil {
			badRequest(w, "invalid_image", err.Error())
			return
		}
	}

	token := tokenFrom(r)
	idemKey := r.Header.Get(idempotency.Header)

	s.mu.Lock()
	defer s.mu.Unlock()

	if idemKey != "" {
		if cached, ok := s.idem[scopedKey("proof-submit", token, idemKey)]; ok {
			writeRaw(w, cached)
			return
		}
	}

	if !s.paidLocked(token, req.ChallengeID) {
		writeJSON(w, http.StatusConflict, models.ErrorResponse{Error: "deposit_required"})
		return
	}

	st := &models.Settlement{
		ChallengeID: req.ChallengeID,
		Status:      models.SettlementRunning,
		Message:     "검증 대기 중",
	}
	s.settlementsOf(token)[req.ChallengeID] = st

	resp, _ := json.Marshal(map[string]any{"ok": true, "settlement": st})
	if idemKey != "" {
		s.idem[scopedKey("proof-submit", token, idemKey)] = resp
	}

	s.logger.Info("proof accepted", "challenge_id", req.ChallengeID, "photo", req.ImageBase64 != "")
	writeRaw(w, resp)
}

func (s *Server) handleSettlements(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byChallenge := s.settlementsOf(tokenFrom(r))
	items := make([]models.Settlement, 0, len(byChallenge))
	for _, ch := range s.challenges {
		if st, ok := byChallenge[ch.ID]; ok {
			items = append(items, *st)
		}
	}
	writeJSON(w, http.StatusOK, models.SettlementsResponse{Items: items})
}

func (s *Server) handleSettlement(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "challengeId")

	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.settlementsOf(tokenFrom(r))[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "settlement_not_found"})
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) paidLocked(token, challengeID string) bool {
	for _, p := range s.payments {
		if p.owner == token && p.executed && p.intent.ChallengeID == challengeID {
			return true
		}
	}
	return false
}

func (s *Server) settlementsOf(token string) map[string]*models.Settlement {
	m, ok := s.settlements[token]
	if !ok {
		m = make(map[string]*models.Settlement)
		s.settlements[token] = m
	}
	return m
}

func scopedKey(scope, token, key string) string {
	return scope + "|" + token + "|" + key
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		badRequest(w, "invalid_json", err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeRaw(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func badRequest(w http.ResponseWriter, msg string, details any) {
	writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: msg, Details: details})
}

func unauthorized(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: msg})
}
