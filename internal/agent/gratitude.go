package agent

import (
	"context"

	"github.com/ashureev/printdesk/internal/templates"
)

// GratitudeHandler acknowledges thanks from the customer.
type GratitudeHandler struct {
	catalog *templates.Catalog
	chooser *Chooser
}

// NewGratitudeHandler creates a gratitude handler.
func NewGratitudeHandler(catalog *templates.Catalog, chooser *Chooser) *GratitudeHandler {
	return &GratitudeHandler{catalog: catalog, chooser: chooser}
}

func (h *GratitudeHandler) Name() string    { return "gratitude" }
func (h *GratitudeHandler) Version() string { return "1.0.0" }
func (h *GratitudeHandler) Priority() int   { return 10 }

func (h *GratitudeHandler) CanHandle(intent Intent) bool {
	return intent.Is(IntentGratitude)
}

func (h *GratitudeHandler) Handle(_ context.Context, _ string, _ Intent, _ HandlerContext) (*Response, error) {
	return &Response{
		Content: h.chooser.Phrase(h.catalog, templates.Gratitude),
		Success: boolPtr(true),
		Metadata: ResponseMetadata{
			Confidence:       0.95,
			Sentiment:        SentimentPositive,
			RequiresFollowUp: false,
		},
	}, nil
}
