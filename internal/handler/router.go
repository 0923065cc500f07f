package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/prn-tf/harper-profiles/internal/middleware"
)

// Router assembles the HTTP surface of the profile service.
type Router struct {
	userHandler    *UserHandler
	authMiddleware func(http.Handler) http.Handler
	rateLimiter    *middleware.RateLimiter
	metricsPath    string
	logger         zerolog.Logger
}

// RouterConfig contains configuration for the router.
type RouterConfig struct {
	UserHandler    *UserHandler
	AuthMiddleware func(http.Handler) http.Handler
	RateLimiter    *middleware.RateLimiter // nil disables rate limiting
	MetricsPath    string                  // empty disables the metrics endpoint
	Logger         zerolog.Logger
}

// NewRouter creates a new Router.
func NewRouter(config RouterConfig) *Router {
	return &Router{
		userHandler:    config.UserHandler,
		authMiddleware: config.AuthMiddleware,
		rateLimiter:    config.RateLimiter,
		metricsPath:    config.MetricsPath,
		logger:         config.Logger.With().Str("component", "router").Logger(),
	}
}

// Handler returns the main HTTP handler. Middleware order: recovery first,
// then request logging, then auth, then rate limiting (which buckets by the
// authenticated subject).
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(rt.logger))
	r.Use(middleware.RequestLogger(rt.logger))
	r.Use(rt.authMiddleware)
	if rt.rateLimiter != nil {
		r.Use(rt.rateLimiter.Middleware())
	}

	r.Get("/healthz", rt.handleHealth)
	if rt.metricsPath != "" {
		r.Handle(rt.metricsPath, promhttp.Handler())
	}

	r.Route("/api/users", rt.userHandler.RegisterRoutes)

	return r
}

// handleHealth handles health check requests.
func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}
