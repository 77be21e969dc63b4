package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"habitrefund/internal/features"
	"habitrefund/internal/middleware"
	"habitrefund/internal/navigation"
	"habitrefund/internal/tracing"
)

// RouterOptions configures the shell router.
type RouterOptions struct {
	AllowedOrigins []string
	// RateLimiter is optional.
	RateLimiter *middleware.RateLimiter
	Tracer      *tracing.Tracer
	// RequestLog enables chi's request logger.
	RequestLog bool
}

// NewRouter mounts every screen and intent of h.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()

	// Middleware (order matters)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	if opts.RequestLog {
		r.Use(chimw.Logger)
	}
	r.Use(chimw.Recoverer)
	r.Use(middleware.TracingMiddleware(opts.Tracer))
	if opts.RateLimiter != nil {
		r.Use(middleware.RateLimitMiddleware(opts.RateLimiter))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/route", h.GetRoute)
		r.Get("/features", h.GetFeatures)

		r.Route("/screens", func(r chi.Router) {
			r.Get("/login", h.LoginScreen)
			r.Get("/legal/{page}", h.LegalScreen)

			r.Group(func(r chi.Router) {
				r.Use(h.RequireAuth)
				r.Get("/home", h.HomeScreen)
				r.Get("/challenge/{id}", h.ChallengeScreen)
				r.Get("/proof/{id}", h.ProofScreen)
				r.Get("/history", h.HistoryScreen)
			})
		})

		r.Route("/intents", func(r chi.Router) {
			r.Post("/login", h.Login)

			r.Group(func(r chi.Router) {
				r.Use(h.RequireAuth)
				r.Post("/logout", h.Logout)
				r.Post("/challenge/{id}/deposit", h.Deposit)
				r.Post("/proof/{id}", h.SubmitProof)
			})
		})
	})

	return r
}

// AuthRequired is the body of a 401 from the shell.
type AuthRequired struct {
	Error    string `json:"error"`
	Redirect string `json:"redirect"`
}

// RequireAuth rejects requests without a session and moves the user to the
// login view, as the route guard of the app does.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.deps.Store.Get() == "" {
			if !navigation.IsLogin(h.deps.Nav.Current()) {
				h.deps.Nav.Navigate(navigation.RouteLogin)
			}
			h.respondJSON(w, http.StatusUnauthorized, AuthRequired{
				Error:    "login_required",
				Redirect: navigation.RouteLogin,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetRoute handles GET /api/route
func (h *Handler) GetRoute(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"route": h.deps.Nav.Current()})
}

// GetFeatures handles GET /api/features
func (h *Handler) GetFeatures(w http.ResponseWriter, r *http.Request) {
	if h.deps.Flags == nil {
		h.respondJSON(w, http.StatusOK, []features.FeatureFlag{})
		return
	}
	h.respondJSON(w, http.StatusOK, h.deps.Flags.List())
}
