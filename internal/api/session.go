package api

import (
	"net/http"

	"github.com/ashureev/printdesk/internal/domain"
	"github.com/ashureev/printdesk/internal/identity"
)

// ArtworkRequest is the body of PUT /api/session/artwork.
type ArtworkRequest struct {
	FileName string `json:"fileName"`
	Format   string `json:"format"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// GetSession returns the session's conversation state.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := identity.SessionIDFromContext(r.Context())
	state, err := h.svc.State(r.Context(), sessionID)
	if err != nil {
		h.writeServiceError(w, sessionID, "load session", err)
		return
	}
	JSON(w, http.StatusOK, state)
}

// PutArtwork records the pixel dimensions of the session's artwork.
func (h *Handler) PutArtwork(w http.ResponseWriter, r *http.Request) {
	sessionID := identity.SessionIDFromContext(r.Context())

	var req ArtworkRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	state, err := h.svc.RegisterArtwork(r.Context(), sessionID, domain.ArtworkData{
		FileName: req.FileName,
		Format:   req.Format,
		Dimensions: domain.ArtworkDimensions{
			Pixels: &domain.PixelDimensions{Width: req.Width, Height: req.Height},
		},
	})
	if err != nil {
		h.writeServiceError(w, sessionID, "register artwork", err)
		return
	}
	JSON(w, http.StatusOK, state)
}

// DeleteSession discards the session's state and closes its chat sockets.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := identity.SessionIDFromContext(r.Context())
	if err := h.svc.Reset(r.Context(), sessionID); err != nil {
		h.writeServiceError(w, sessionID, "reset session", err)
		return
	}
	h.conns.CloseSession(sessionID)
	w.WriteHeader(http.StatusNoContent)
}

// ListHandlers returns the handler registry in evaluation order.
func (h *Handler) ListHandlers(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]any{"handlers": h.svc.Handlers()})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, sessionID, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(op+" failed", "session_id", sessionID, "error", err)
		Error(w, status, op+" failed")
		return
	}
	Error(w, status, err.Error())
}
