package agent

import (
	"context"

	"github.com/ashureev/printdesk/internal/domain"
	"github.com/ashureev/printdesk/internal/printcalc"
)

const (
	missingArtworkMessage = "To work out the print resolution I need your artwork's pixel dimensions. " +
		"Please upload your artwork first, then ask again with the size you'd like, for example \"30 × 40 cm\"."
	missingSizeMessage = "I couldn't find a print size in your message. " +
		"Please give the size with a unit, for example \"30 × 40 cm\" or \"12 × 16 in\"."
)

// SizeCalculationHandler answers "what DPI will I get at this size" using the
// pixel dimensions of the session's uploaded artwork.
type SizeCalculationHandler struct{}

// NewSizeCalculationHandler creates a size calculation handler.
func NewSizeCalculationHandler() *SizeCalculationHandler {
	return &SizeCalculationHandler{}
}

func (h *SizeCalculationHandler) Name() string    { return "size_calculation" }
func (h *SizeCalculationHandler) Version() string { return "1.2.0" }
func (h *SizeCalculationHandler) Priority() int   { return 30 }

func (h *SizeCalculationHandler) CanHandle(intent Intent) bool {
	return intent.Is(IntentSizeToDPI) || mentionsSizeForDPI(intent.OriginalMessage)
}

func (h *SizeCalculationHandler) Handle(_ context.Context, message string, _ Intent, hctx HandlerContext) (*Response, error) {
	px, ok := hctx.ArtworkPixels()
	if !ok {
		return guidanceResponse(missingArtworkMessage, SuggestionUpload), nil
	}

	size, ok := parsePrintSize(message)
	if !ok {
		return guidanceResponse(missingSizeMessage, SuggestionRephrase), nil
	}

	result, err := printcalc.DPIForSize(px.Width, px.Height, size.WidthCm, size.HeightCm)
	if err != nil {
		return guidanceResponse(missingSizeMessage, SuggestionRephrase), nil
	}

	content := printcalc.FormatSizeResult(result)
	return &Response{
		Content: content,
		Success: boolPtr(true),
		Data:    result,
		Metadata: ResponseMetadata{
			Confidence: 0.95,
			Sentiment:  SentimentNeutral,
		},
		Patch: &domain.StatePatch{
			AppendAnswer: &domain.AnswerRecord{Question: message, Answer: content},
		},
	}, nil
}

// guidanceResponse is an expected, recoverable failure shown to the customer.
func guidanceResponse(content string, next SuggestionType) *Response {
	s := Suggestion{Type: next, Priority: 1}
	switch next {
	case SuggestionUpload:
		s.Text = "Upload your artwork"
		s.Action = "upload_artwork"
	default:
		s.Text = "Tell me the print size, e.g. 30 × 40 cm"
		s.Action = "rephrase"
	}
	return &Response{
		Content: content,
		Success: boolPtr(false),
		Metadata: ResponseMetadata{
			Confidence:       0.6,
			Sentiment:        SentimentNeutral,
			RequiresFollowUp: true,
		},
		Suggestions: []Suggestion{s},
	}
}
