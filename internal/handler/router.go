package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/openshelf/openshelf/internal/metrics"
	"github.com/openshelf/openshelf/internal/repository"
)

// Router assembles the HTTP API.
type Router struct {
	authHandler    *AuthHandler
	bookHandler    *BookHandler
	loanHandler    *LoanHandler
	authMiddleware func(http.Handler) http.Handler
	metrics        *metrics.Metrics
	health         repository.DatabaseHealth
	allowedOrigins []string
	logger         zerolog.Logger
}

// RouterConfig contains configuration for the router.
type RouterConfig struct {
	AuthHandler    *AuthHandler
	BookHandler    *BookHandler
	LoanHandler    *LoanHandler
	AuthMiddleware func(http.Handler) http.Handler
	Metrics        *metrics.Metrics
	Health         repository.DatabaseHealth
	AllowedOrigins []string
	Logger         zerolog.Logger
}

// NewRouter creates a new Router.
func NewRouter(cfg RouterConfig) *Router {
	return &Router{
		authHandler:    cfg.AuthHandler,
		bookHandler:    cfg.BookHandler,
		loanHandler:    cfg.LoanHandler,
		authMiddleware: cfg.AuthMiddleware,
		metrics:        cfg.Metrics,
		health:         cfg.Health,
		allowedOrigins: cfg.AllowedOrigins,
		logger:         cfg.Logger.With().Str("component", "router").Logger(),
	}
}

// Handler returns the main HTTP handler.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(rt.requestLogger)
	r.Use(middleware.Recoverer)

	if rt.metrics != nil {
		r.Use(rt.metrics.Middleware)
	}

	if len(rt.allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   rt.allowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/health", rt.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(rt.authMiddleware)

		rt.authHandler.RegisterRoutes(r)
		rt.bookHandler.RegisterRoutes(r)
		rt.loanHandler.RegisterRoutes(r)
	})

	return r
}

// requestLogger logs one line per request.
func (rt *Router) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		rt.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

// handleHealth reports process and database health.
func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK

	if rt.health != nil {
		if err := rt.health.Ping(r.Context()); err != nil {
			rt.logger.Error().Err(err).Msg("health check failed")
			status = "unhealthy"
			code = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, code, map[string]string{"status": status})
}
