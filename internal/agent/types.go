// Package agent implements the intent-routed response pipeline of the
// printdesk assistant.
package agent

import (
	"time"

	"github.com/ashureev/printdesk/internal/domain"
)

// Sentiment tags the emotional tone of a response.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// SuggestionType categorizes follow-up suggestions.
type SuggestionType string

const (
	// SuggestionRephrase asks the customer to restate the message.
	SuggestionRephrase SuggestionType = "rephrase"
	// SuggestionHelp points the customer at the help topics.
	SuggestionHelp SuggestionType = "help"
	// SuggestionUpload asks the customer to upload artwork.
	SuggestionUpload SuggestionType = "upload"
)

// Suggestion is a follow-up action offered with a response.
type Suggestion struct {
	Type     SuggestionType `json:"type"`
	Text     string         `json:"text"`
	Action   string         `json:"action"`
	Priority int            `json:"priority"`
}

// ResponseMetadata carries routing diagnostics for a response.
type ResponseMetadata struct {
	HandlerName      string        `json:"handlerName"`
	HandlerVersion   string        `json:"handlerVersion"`
	Confidence       float64       `json:"confidence"`
	ProcessingTime   time.Duration `json:"processingTime,omitempty"`
	Sentiment        Sentiment     `json:"sentiment,omitempty"`
	RequiresFollowUp bool          `json:"requiresFollowUp"`
	Unresolved       bool          `json:"unresolved,omitempty"`
	Error            string        `json:"error,omitempty"`
	TurnID           string        `json:"turnId,omitempty"`
}

// Response is the reply produced for one turn.
type Response struct {
	Content     string           `json:"content"`
	Success     *bool            `json:"success,omitempty"`
	Metadata    ResponseMetadata `json:"metadata"`
	Suggestions []Suggestion     `json:"suggestions,omitempty"`
	Data        any              `json:"data,omitempty"`

	// Patch is the state change the handler asks the session owner to apply.
	Patch *domain.StatePatch `json:"-"`
}

// Succeeded reports whether the response is not an explicit failure.
func (r *Response) Succeeded() bool {
	return r.Success == nil || *r.Success
}

// HandlerInfo describes a registered handler.
type HandlerInfo struct {
	Name     string `json:"name"`
	Version  string `json:"version"`
	Priority int    `json:"priority"`
	Fallback bool   `json:"fallback,omitempty"`
}

func boolPtr(v bool) *bool {
	return &v
}
