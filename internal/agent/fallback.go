package agent

import (
	"context"
	"math"

	"github.com/ashureev/printdesk/internal/templates"
)

// FallbackHandler asks for clarification when no other handler claims an intent.
type FallbackHandler struct {
	catalog *templates.Catalog
	chooser *Chooser
}

// NewFallbackHandler creates a fallback handler.
func NewFallbackHandler(catalog *templates.Catalog, chooser *Chooser) *FallbackHandler {
	return &FallbackHandler{catalog: catalog, chooser: chooser}
}

func (h *FallbackHandler) Name() string    { return "fallback" }
func (h *FallbackHandler) Version() string { return "1.0.0" }

// Priority is the lowest possible; the router evaluates the fallback last regardless.
func (h *FallbackHandler) Priority() int { return math.MaxInt }

func (h *FallbackHandler) CanHandle(Intent) bool { return true }

func (h *FallbackHandler) Handle(_ context.Context, _ string, _ Intent, _ HandlerContext) (*Response, error) {
	return &Response{
		Content: h.chooser.Phrase(h.catalog, templates.Fallback),
		Success: boolPtr(true),
		Metadata: ResponseMetadata{
			Confidence:       0.5,
			Sentiment:        SentimentNeutral,
			RequiresFollowUp: true,
		},
		Suggestions: []Suggestion{
			{Type: SuggestionRephrase, Text: "Try rephrasing your question", Action: "rephrase", Priority: 1},
			{Type: SuggestionHelp, Text: "See what I can help with", Action: "show_help", Priority: 2},
		},
	}, nil
}
