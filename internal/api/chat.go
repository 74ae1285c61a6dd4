package api

import (
	"net/http"
	"strings"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ashureev/printdesk/internal/agent"
	"github.com/ashureev/printdesk/internal/identity"
)

// IntentPayload is the classified intent supplied with a chat message.
type IntentPayload struct {
	Type       string            `json:"type"`
	Confidence float64           `json:"confidence,omitempty"`
	Slots      map[string]string `json:"slots,omitempty"`
}

// ChatRequest is the body of POST /api/chat and of each /ws/chat frame.
type ChatRequest struct {
	Message string         `json:"message"`
	Intent  *IntentPayload `json:"intent,omitempty"`
}

// intent builds the agent intent. An absent intent leaves the type empty so
// the service can classify the message.
func (c ChatRequest) intent() agent.Intent {
	if c.Intent == nil {
		return agent.NewIntent("", c.Message, 0, nil)
	}
	return agent.NewIntent(c.Intent.Type, c.Message, c.Intent.Confidence, c.Intent.Slots)
}

// HandleChat handles POST /api/chat.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	sessionID := identity.SessionIDFromContext(r.Context())

	if h.limiter != nil && !h.limiter.Allow(identity.IPFromRequest(r)) {
		Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	var req ChatRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		Error(w, http.StatusBadRequest, "message is required")
		return
	}

	h.logger.Info("chat request",
		"session_id", sessionID,
		"request_id", chiMiddleware.GetReqID(r.Context()),
		"message_length", len(req.Message),
	)

	ctx := agent.ContextWithChannel(r.Context(), agent.ChannelHTTP)
	resp, err := h.svc.Respond(ctx, sessionID, req.Message, req.intent())
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("chat turn failed", "session_id", sessionID, "error", err)
			Error(w, status, "failed to process message")
			return
		}
		Error(w, status, err.Error())
		return
	}
	JSON(w, http.StatusOK, resp)
}
