package api

import (
	"net/http"
	"time"

	"fsguard/internal/guard"
	"fsguard/internal/metrics"
	"fsguard/internal/scan"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Reloader re-reads the configuration.
type Reloader interface {
	Reload() error
}

type routerConfig struct {
	limiter      *RateLimiter
	maxBodyBytes int64
}

// RouterOption configures NewRouter.
type RouterOption func(*routerConfig)

// WithRateLimit limits each client to r requests per second with bursts
// of burst. A zero r disables limiting.
func WithRateLimit(r float64, burst int) RouterOption {
	return func(c *routerConfig) {
		if r > 0 {
			c.limiter = NewRateLimiter(rate.Limit(r), burst)
		}
	}
}

// WithMaxBodyBytes caps request bodies. The default is 1 MiB.
func WithMaxBodyBytes(n int64) RouterOption {
	return func(c *routerConfig) {
		if n > 0 {
			c.maxBodyBytes = n
		}
	}
}

// NewRouter builds the chi router serving every guarded operation.
//
// Routes:
//   - POST /v1/validate
//   - POST /v1/files/delete
//   - POST /v1/directories/delete
//   - POST /v1/move
//   - POST /v1/organize
//   - POST /v1/cleanup
//   - POST /v1/duplicates
//   - POST /v1/config/reload
//   - GET /health
//   - GET /metrics
func NewRouter(g *guard.Guard, scanner *scan.Scanner, reloader Reloader, logger zerolog.Logger, opts ...RouterOption) http.Handler {
	h := &handlers{guard: g, scanner: scanner, reloader: reloader, logger: logger}
	cfg := routerConfig{maxBodyBytes: 1 << 20}
	for _, opt := range opts {
		opt(&cfg)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestSize(cfg.maxBodyBytes))
	if cfg.limiter != nil {
		r.Use(cfg.limiter.Middleware)
	}

	r.Get("/health", metrics.HealthHandler)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.AllowContentType("application/json"))
		r.Post("/validate", h.validate)
		r.Post("/files/delete", h.deleteFile)
		r.Post("/directories/delete", h.deleteDirectory)
		r.Post("/move", h.move)
		r.Post("/organize", h.organize)
		r.Post("/cleanup", h.cleanup)
		r.Post("/duplicates", h.duplicates)
		r.Post("/config/reload", h.reload)
	})

	return r
}

// requestLogger logs each request and records it by route pattern, so
// paths carrying user data never become metric labels.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			duration := time.Since(start)
			metrics.RecordHTTPRequest(route, r.Method, ww.Status(), duration)

			logger.Info().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("route", route).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", duration).
				Msg("API request completed")
		})
	}
}
