package router

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/clinic-assistant/internal/assistant"
	"github.com/wolfman30/clinic-assistant/internal/auth"
	httpmiddleware "github.com/wolfman30/clinic-assistant/internal/http/middleware"
	"github.com/wolfman30/clinic-assistant/internal/webchat"
	"github.com/wolfman30/clinic-assistant/pkg/logging"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Assistant          *assistant.Handler
	WebChat            *webchat.Handler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
	AuthSecret         string
	RateLimiter        *httpmiddleware.RateLimiter
	HealthChecks       map[string]HealthCheck
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/health", healthHandler(cfg.HealthChecks))
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Assistant routes: anonymous callers allowed, bearer tokens attach the user
	if cfg.Assistant != nil {
		r.Route("/ai", func(ai chi.Router) {
			ai.Use(httpmiddleware.Authenticate(cfg.AuthSecret))
			if cfg.RateLimiter != nil {
				ai.Use(cfg.RateLimiter.Middleware)
			}
			ai.Post("/ask", cfg.Assistant.Ask)
			ai.Get("/history", cfg.Assistant.History)
			ai.Delete("/history", cfg.Assistant.ClearHistory)
			ai.Get("/doctors", cfg.Assistant.SearchDoctors)
			if cfg.WebChat != nil {
				ai.Get("/ws", cfg.WebChat.HandleWebSocket)
				ai.Post("/chat/message", cfg.WebChat.HandleMessage)
			}
		})
	}

	// Admin routes (JWT with admin role)
	if cfg.Assistant != nil && cfg.AuthSecret != "" {
		r.Route("/admin/ai", func(admin chi.Router) {
			admin.Use(httpmiddleware.Authenticate(cfg.AuthSecret))
			admin.Use(httpmiddleware.RequireRole(auth.RoleAdmin))
			admin.Get("/stats", cfg.Assistant.AdminStats)
			admin.Get("/users/{userID}/history", cfg.Assistant.AdminUserHistory)
		})
	}

	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		resp := map[string]string{"status": "ok"}
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				resp[name] = "unavailable"
				resp["status"] = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp[name] = "ok"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
