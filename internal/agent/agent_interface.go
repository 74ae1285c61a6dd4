package agent

import (
	"context"

	"github.com/ashureev/printdesk/internal/domain"
)

// Handler produces a response for the intents it claims.
type Handler interface {
	// Name identifies the handler; it must be unique within a router.
	Name() string

	// Version is reported in response metadata.
	Version() string

	// Priority orders evaluation. Lower values are evaluated first.
	Priority() int

	// CanHandle reports whether the handler claims the intent.
	CanHandle(intent Intent) bool

	// Handle builds the response. Expected, user-facing failures are
	// responses with Success=false; returned errors are treated as handler
	// faults and replaced by a generic apology.
	Handle(ctx context.Context, message string, intent Intent, hctx HandlerContext) (*Response, error)
}

// HandlerContext is the read-only view of session state given to handlers.
// Changes go back through Response.Patch.
type HandlerContext struct {
	state domain.ConversationState
}

// NewHandlerContext builds a context over a private copy of state.
func NewHandlerContext(state domain.ConversationState) HandlerContext {
	return HandlerContext{state: state.Clone()}
}

// SessionID returns the owning session.
func (c HandlerContext) SessionID() string {
	return c.state.SessionID
}

// Answers returns a copy of the answers given so far, oldest first.
func (c HandlerContext) Answers() []domain.AnswerRecord {
	out := make([]domain.AnswerRecord, len(c.state.AnswersGiven))
	copy(out, c.state.AnswersGiven)
	return out
}

// LastAnswer returns the most recent answer.
func (c HandlerContext) LastAnswer() (domain.AnswerRecord, bool) {
	return c.state.LastAnswer()
}

// Artwork returns a copy of the last uploaded artwork's data.
func (c HandlerContext) Artwork() (domain.ArtworkData, bool) {
	if c.state.Metadata.Artwork == nil {
		return domain.ArtworkData{}, false
	}
	return c.state.Metadata.Artwork.Clone(), true
}

// ArtworkPixels returns the pixel dimensions of the last uploaded artwork.
func (c HandlerContext) ArtworkPixels() (domain.PixelDimensions, bool) {
	return c.state.Metadata.Artwork.Pixels()
}

// Value returns a session metadata value.
func (c HandlerContext) Value(key string) (string, bool) {
	v, ok := c.state.Metadata.Values[key]
	return v, ok
}
