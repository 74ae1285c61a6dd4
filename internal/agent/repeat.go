package agent

import (
	"context"
	"strings"

	"github.com/ashureev/printdesk/internal/templates"
)

// RepeatHandler restates the most recent answer in different words.
type RepeatHandler struct {
	catalog *templates.Catalog
	chooser *Chooser
}

// NewRepeatHandler creates a repeat handler.
func NewRepeatHandler(catalog *templates.Catalog, chooser *Chooser) *RepeatHandler {
	return &RepeatHandler{catalog: catalog, chooser: chooser}
}

func (h *RepeatHandler) Name() string    { return "repeat" }
func (h *RepeatHandler) Version() string { return "1.0.0" }
func (h *RepeatHandler) Priority() int   { return 20 }

func (h *RepeatHandler) CanHandle(intent Intent) bool {
	return intent.Is(IntentRepeat)
}

func (h *RepeatHandler) Handle(_ context.Context, _ string, _ Intent, hctx HandlerContext) (*Response, error) {
	last, ok := hctx.LastAnswer()
	if !ok || strings.TrimSpace(last.Answer) == "" {
		return &Response{
			Content: h.chooser.Phrase(h.catalog, templates.Clarify),
			Success: boolPtr(true),
			Metadata: ResponseMetadata{
				Confidence:       0.9,
				Sentiment:        SentimentNeutral,
				RequiresFollowUp: true,
			},
		}, nil
	}

	tmpl := h.chooser.Phrase(h.catalog, templates.Repeat)
	return &Response{
		Content: strings.ReplaceAll(tmpl, templates.AnswerPlaceholder, last.Answer),
		Success: boolPtr(true),
		Metadata: ResponseMetadata{
			Confidence: 0.9,
			Sentiment:  SentimentNeutral,
		},
	}, nil
}
