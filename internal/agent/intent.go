package agent

import (
	"maps"
	"math"
	"strings"
)

// Intent types understood by the built-in handlers.
const (
	IntentGratitude = "gratitude"
	IntentRepeat    = "repeat"
	IntentSizeToDPI = "size_to_dpi"
	IntentDPIToSize = "dpi_to_size"
)

// Intent is a classified inbound message. It is immutable once built with NewIntent.
type Intent struct {
	Type            string  `json:"type"`
	OriginalMessage string  `json:"originalMessage"`
	Confidence      float64 `json:"confidence,omitempty"`
	slots           map[string]string
}

// NewIntent builds an intent, copying slots so later changes by the caller
// are not observed.
func NewIntent(intentType, message string, confidence float64, slots map[string]string) Intent {
	return Intent{
		Type:            strings.TrimSpace(intentType),
		OriginalMessage: message,
		Confidence:      confidence,
		slots:           maps.Clone(slots),
	}
}

// Slot returns an extracted slot value.
func (i Intent) Slot(key string) (string, bool) {
	v, ok := i.slots[key]
	return v, ok
}

// Slots returns a copy of all extracted slots.
func (i Intent) Slots() map[string]string {
	return maps.Clone(i.slots)
}

// Is reports whether the intent has exactly the given type. Types are
// case-sensitive identifiers.
func (i Intent) Is(intentType string) bool {
	return i.Type == intentType
}

// Validate checks the shape of an intent supplied by a caller.
func (i Intent) Validate() error {
	if i.Type == "" {
		return &ContractViolationError{Field: "intent.type", Reason: "must not be empty"}
	}
	if math.IsNaN(i.Confidence) || i.Confidence < 0 || i.Confidence > 1 {
		return &ContractViolationError{Field: "intent.confidence", Reason: "must be within [0,1]"}
	}
	return nil
}
