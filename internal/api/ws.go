package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/coder/websocket"

	"github.com/ashureev/printdesk/internal/agent"
	"github.com/ashureev/printdesk/internal/identity"
)

// ConnRegistry tracks the open chat WebSocket of each session. A new
// connection for a session replaces the old one.
type ConnRegistry struct {
	mu     sync.Mutex
	active map[string]*websocket.Conn
}

// NewConnRegistry creates an empty registry.
func NewConnRegistry() *ConnRegistry {
	return &ConnRegistry{active: make(map[string]*websocket.Conn)}
}

// Register adds conn for sessionID, closing any connection it replaces.
func (m *ConnRegistry) Register(sessionID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.active[sessionID]; ok && existing != conn {
		_ = existing.Close(websocket.StatusNormalClosure, "session replaced")
	}
	m.active[sessionID] = conn
	slog.Info("chat socket registered", "session_id", sessionID)
}

// Unregister removes conn if it is still the session's current connection.
func (m *ConnRegistry) Unregister(sessionID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, ok := m.active[sessionID]; ok && current == conn {
		delete(m.active, sessionID)
		slog.Info("chat socket unregistered", "session_id", sessionID)
	}
}

// CloseSession closes the session's connection, if any. It is used when a
// session is reset or expires.
func (m *ConnRegistry) CloseSession(sessionID string) {
	m.mu.Lock()
	conn, ok := m.active[sessionID]
	delete(m.active, sessionID)
	m.mu.Unlock()

	if ok {
		_ = conn.Close(websocket.StatusNormalClosure, "session closed")
		slog.Info("chat socket closed", "session_id", sessionID)
	}
}

// Len returns the number of open sockets.
func (m *ConnRegistry) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

type wsError struct {
	Error string `json:"error"`
}

// ServeWS upgrades GET /ws/chat. Each text frame carries a ChatRequest and is
// answered with one Response frame.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := identity.SessionIDFromContext(r.Context())
	clientIP := identity.IPFromRequest(r)

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("failed to accept WebSocket", "error", err, "session_id", sessionID)
		return
	}
	ws.SetReadLimit(h.maxBody)
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			h.logger.Debug("failed to close websocket", "error", closeErr, "session_id", sessionID)
		}
	}()

	h.conns.Register(sessionID, ws)
	defer h.conns.Unregister(sessionID, ws)

	ctx := agent.ContextWithChannel(r.Context(), agent.ChannelWebSocket)
	for {
		typ, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				h.logger.Debug("WebSocket closed by client", "session_id", sessionID)
			} else if ctx.Err() == nil {
				h.logger.Warn("WebSocket read error", "error", err, "session_id", sessionID)
			}
			return
		}
		if typ != websocket.MessageText {
			if err := writeJSON(ctx, ws, wsError{Error: "text frames only"}); err != nil {
				return
			}
			continue
		}

		if err := writeJSON(ctx, ws, h.handleFrame(ctx, sessionID, clientIP, data)); err != nil {
			h.logger.Debug("WebSocket write failed", "error", err, "session_id", sessionID)
			return
		}
	}
}

func (h *Handler) handleFrame(ctx context.Context, sessionID, clientIP string, data []byte) any {
	if h.limiter != nil && !h.limiter.Allow(clientIP) {
		return wsError{Error: "rate limit exceeded"}
	}

	var req ChatRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return wsError{Error: "invalid message"}
	}
	if strings.TrimSpace(req.Message) == "" {
		return wsError{Error: "message is required"}
	}

	resp, err := h.svc.Respond(ctx, sessionID, req.Message, req.intent())
	if err != nil {
		if statusFor(err) >= http.StatusInternalServerError {
			h.logger.Error("chat turn failed", "session_id", sessionID, "error", err)
			return wsError{Error: "failed to process message"}
		}
		return wsError{Error: err.Error()}
	}
	return resp
}

func writeJSON(ctx context.Context, ws *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return ws.Write(ctx, websocket.MessageText, data)
}
