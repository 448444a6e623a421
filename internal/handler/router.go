package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/prn-tf/stockwarden/internal/auth"
	"github.com/prn-tf/stockwarden/internal/domain"
	"github.com/prn-tf/stockwarden/internal/repository"
)

// Router assembles the HTTP API.
type Router struct {
	config RouterConfig
	logger zerolog.Logger
}

// RouterConfig contains configuration for the router.
type RouterConfig struct {
	AuthHandler    *AuthHandler
	ProductHandler *ProductHandler
	ReportHandler  *ReportHandler
	UserHandler    *UserHandler

	Authenticator *auth.Authenticator
	Tokens        *auth.TokenIssuer

	// Database is checked by /health. Nil reports the in-memory backend.
	Database repository.DatabaseHealth

	// Metrics is served at MetricsPath when set.
	Metrics     http.Handler
	MetricsPath string

	// RateLimiter guards the auth routes when set.
	RateLimiter *RateLimiter

	// RequestTimeout bounds every request. Zero disables it.
	RequestTimeout time.Duration

	// MaxBodySize caps request bodies in bytes. Zero means defaultMaxBodySize.
	MaxBodySize int64

	// TrustProxyHeaders takes the client address from X-Forwarded-For and
	// X-Real-IP. Only enable it behind a proxy that overwrites those headers;
	// otherwise clients choose their own rate limit bucket.
	TrustProxyHeaders bool

	Logger zerolog.Logger
}

// defaultMaxBodySize is used when RouterConfig.MaxBodySize is unset.
const defaultMaxBodySize = 1 << 20

// NewRouter creates a new Router.
func NewRouter(config RouterConfig) *Router {
	if config.MetricsPath == "" {
		config.MetricsPath = "/metrics"
	}
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = defaultMaxBodySize
	}
	return &Router{
		config: config,
		logger: config.Logger.With().Str("component", "router").Logger(),
	}
}

// Handler returns the main HTTP handler.
func (rt *Router) Handler() http.Handler {
	cfg := rt.config
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if cfg.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(
		rt.accessLog,
		middleware.Recoverer,
		middleware.RequestSize(cfg.MaxBodySize),
	)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	// Health check (no auth)
	r.Get("/health", rt.handleHealth)
	if cfg.Metrics != nil {
		r.Handle(cfg.MetricsPath, cfg.Metrics)
	}

	full := auth.Middleware(cfg.Tokens, cfg.Authenticator, auth.StageFull)
	role := func(required domain.Role) func(http.Handler) http.Handler {
		return chi.Chain(full, auth.RequireRole(cfg.Authenticator, required)).Handler
	}
	viewer, manager, admin := role(domain.RoleViewer), role(domain.RoleManager), role(domain.RoleAdmin)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			if cfg.RateLimiter != nil {
				r.Use(cfg.RateLimiter.Middleware)
			}
			cfg.AuthHandler.RegisterRoutes(r)
		})
		r.Route("/products", func(r chi.Router) {
			cfg.ProductHandler.RegisterRoutes(r, viewer, manager)
		})
		r.Route("/reports", func(r chi.Router) {
			cfg.ReportHandler.RegisterRoutes(r, viewer, manager)
		})
		r.Route("/users", func(r chi.Router) {
			cfg.UserHandler.RegisterRoutes(r, admin)
		})
	})

	return r
}

// handleHealth reports database reachability.
func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	if rt.config.Database == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "database": "memory"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := rt.config.Database.Health(ctx); err != nil {
		rt.logger.Warn().Err(err).Msg("health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "database": "unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "database": "ok"})
}

func (rt *Router) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		rt.logger.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
