package agent

import (
	"context"
	"strconv"

	"github.com/ashureev/printdesk/internal/domain"
	"github.com/ashureev/printdesk/internal/printcalc"
)

// PrintSizeHandler answers the inverse question: how large the uploaded
// artwork can be printed at a target DPI.
type PrintSizeHandler struct {
	defaultDPI int
}

// NewPrintSizeHandler creates a print size handler. A non-positive
// defaultDPI falls back to printcalc.DefaultTargetDPI.
func NewPrintSizeHandler(defaultDPI int) *PrintSizeHandler {
	if defaultDPI <= 0 {
		defaultDPI = printcalc.DefaultTargetDPI
	}
	return &PrintSizeHandler{defaultDPI: defaultDPI}
}

func (h *PrintSizeHandler) Name() string    { return "print_size" }
func (h *PrintSizeHandler) Version() string { return "1.0.0" }
func (h *PrintSizeHandler) Priority() int   { return 40 }

func (h *PrintSizeHandler) CanHandle(intent Intent) bool {
	return intent.Is(IntentDPIToSize) || mentionsPrintSizeQuery(intent.OriginalMessage)
}

func (h *PrintSizeHandler) Handle(_ context.Context, message string, intent Intent, hctx HandlerContext) (*Response, error) {
	px, ok := hctx.ArtworkPixels()
	if !ok {
		return guidanceResponse(missingArtworkMessage, SuggestionUpload), nil
	}

	dpi := h.targetDPI(message, intent)
	size, err := printcalc.SizeForDPI(px.Width, px.Height, dpi)
	if err != nil {
		return nil, err
	}

	content := printcalc.FormatPrintSize(size)
	return &Response{
		Content: content,
		Success: boolPtr(true),
		Data:    size,
		Metadata: ResponseMetadata{
			Confidence: 0.9,
			Sentiment:  SentimentNeutral,
		},
		Patch: &domain.StatePatch{
			AppendAnswer: &domain.AnswerRecord{Question: message, Answer: content},
		},
	}, nil
}

func (h *PrintSizeHandler) targetDPI(message string, intent Intent) int {
	if raw, ok := intent.Slot("dpi"); ok {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return v
		}
	}
	if v, ok := parseTargetDPI(message); ok {
		return v
	}
	return h.defaultDPI
}
