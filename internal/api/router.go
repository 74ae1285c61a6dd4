package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ashureev/printdesk/internal/identity"
	"github.com/ashureev/printdesk/internal/middleware"
)

// RouterConfig configures NewRouter.
type RouterConfig struct {
	AllowedOrigins []string
	IsDevelopment  bool
	// Frontend serves everything outside /api and /ws; nil disables it.
	Frontend http.Handler
	// AccessLog enables chi's request logger.
	AccessLog bool
	// TrustProxyHeaders rewrites RemoteAddr from X-Forwarded-For / X-Real-IP.
	// The rate limiter keys on RemoteAddr, so leave it off unless a proxy
	// in front strips client-supplied values.
	TrustProxyHeaders bool
}

// NewRouter mounts h behind the standard middleware stack.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	if cfg.TrustProxyHeaders {
		r.Use(chiMiddleware.RealIP)
	}
	if cfg.AccessLog {
		r.Use(chiMiddleware.Logger)
	}
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(identity.Middleware(cfg.IsDevelopment))

	h.RegisterRoutes(r)

	if cfg.Frontend != nil {
		r.Handle("/*", cfg.Frontend)
	}
	return r
}
