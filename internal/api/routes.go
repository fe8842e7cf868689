package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"secretpass/config"
	"secretpass/internal/secrets"
	"secretpass/web"
)

func SetupRouter(svc *secrets.Service, cfg *config.Config, logger *zap.Logger) *chi.Mux {
	h := NewHandler(svc, cfg, logger)

	r := chi.NewRouter()

	// Global middleware. Forwarding headers are client-controlled, so
	// RealIP only runs behind a trusted proxy.
	if cfg.Server.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{cfg.Server.BaseURL},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		MaxAge:         86400,
	}))

	// Health
	r.Get("/health", h.Health)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.AllowContentType("application/json"))

		reveal := func(next http.Handler) http.Handler { return next }
		if cfg.RateLimit.Enabled {
			apiLimiter := NewRateLimiter(cfg.RateLimit.RequestsPerMin, time.Minute)
			revealLimiter := NewRateLimiter(cfg.RateLimit.RevealPerMin, time.Minute)

			r.Use(apiLimiter.Middleware)
			reveal = revealLimiter.Middleware
		}

		r.Get("/health", h.HealthStatus)
		r.Post("/secret", h.CreateSecret)
		r.With(reveal).Get("/secret/{id}", h.RevealSecret)
	})

	// Frontend
	r.Get("/", h.Index)
	r.Get("/view.html", h.ViewPage)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(web.StaticFS())))

	return r
}
