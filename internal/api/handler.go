// Package api provides the HTTP and WebSocket adapter for the printdesk assistant.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/printdesk/internal/agent"
	"github.com/ashureev/printdesk/internal/domain"
)

// defaultMaxRequestBodySize is the default maximum allowed request body size (1MB).
const defaultMaxRequestBodySize = 1 << 20

// ChatService is the conversation API the handlers drive. *agent.Service satisfies it.
type ChatService interface {
	Respond(ctx context.Context, sessionID, message string, intent agent.Intent) (*agent.Response, error)
	State(ctx context.Context, sessionID string) (domain.ConversationState, error)
	RegisterArtwork(ctx context.Context, sessionID string, art domain.ArtworkData) (domain.ConversationState, error)
	Reset(ctx context.Context, sessionID string) error
	Handlers() []agent.HandlerInfo
}

// Pinger reports store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures a Handler.
type Options struct {
	MaxRequestBodyBytes int64
	Limiter             *RateLimiter // nil disables rate limiting
	Connections         *ConnRegistry
	Logger              *slog.Logger
}

// Handler serves the chat API.
type Handler struct {
	svc     ChatService
	db      Pinger
	maxBody int64
	limiter *RateLimiter
	conns   *ConnRegistry
	logger  *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(svc ChatService, db Pinger, opts Options) *Handler {
	if opts.MaxRequestBodyBytes <= 0 {
		opts.MaxRequestBodyBytes = defaultMaxRequestBodySize
	}
	if opts.Connections == nil {
		opts.Connections = NewConnRegistry()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default().With("component", "api")
	}
	return &Handler{
		svc:     svc,
		db:      db,
		maxBody: opts.MaxRequestBodyBytes,
		limiter: opts.Limiter,
		conns:   opts.Connections,
		logger:  opts.Logger,
	}
}

// Connections returns the registry of open chat WebSockets.
func (h *Handler) Connections() *ConnRegistry {
	return h.conns
}

// RegisterRoutes registers the chat API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", h.HandleChat)
		r.Get("/session", h.GetSession)
		r.Put("/session/artwork", h.PutArtwork)
		r.Delete("/session", h.DeleteSession)
		r.Get("/handlers", h.ListHandlers)
		r.Get("/health", h.Health)
	})
	r.Get("/ws/chat", h.ServeWS)
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// statusFor maps service errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, agent.ErrContractViolation):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody reads a size-limited JSON body into v and writes the error
// response itself when decoding fails.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
