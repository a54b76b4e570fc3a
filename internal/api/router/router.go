package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	httpmiddleware "github.com/wolfman30/requirements-analyzer/internal/http/middleware"
	"github.com/wolfman30/requirements-analyzer/internal/intake"
	"github.com/wolfman30/requirements-analyzer/pkg/logging"
)

// ReadinessCheck reports whether a backing dependency is reachable.
type ReadinessCheck func(ctx context.Context) error

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Intake             *intake.Handler
	AdminAuthSecret    string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// Optional. Applied to the synchronous analysis endpoints.
	RateLimiter *httpmiddleware.RateLimiter

	// Optional named checks run by /ready.
	ReadinessChecks map[string]ReadinessCheck
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", health)
	r.Get("/ready", ready(cfg.ReadinessChecks))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.Intake != nil {
		// the websocket upgrade must not go through the compressing writer
		r.Get("/v1/analyses/stream", cfg.Intake.Stream)

		r.Group(func(api chi.Router) {
			api.Use(middleware.Compress(5))
			api.Route("/v1", func(v1 chi.Router) {
				v1.Group(func(limited chi.Router) {
					if cfg.RateLimiter != nil {
						limited.Use(cfg.RateLimiter.Middleware)
					}
					limited.Post("/analyses", cfg.Intake.Analyze)
					limited.Post("/analyses/jobs", cfg.Intake.EnqueueJob)
				})
				v1.Get("/analyses/jobs/{jobID}", cfg.Intake.GetJob)
				v1.Get("/conversations/{conversationID}/analyses", cfg.Intake.ConversationHistory)
			})

			api.Route("/admin", func(admin chi.Router) {
				admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
				admin.Get("/stats", cfg.Intake.Stats)
			})
		})
	}

	return r
}

func health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func ready(checks map[string]ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}
		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}
		writeJSON(w, status, map[string]any{"status": overall, "checks": results})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
