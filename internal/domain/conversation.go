// Package domain contains core domain types for the printdesk assistant.
package domain

import (
	"maps"
	"time"
)

// AnswerRecord is one answer the assistant gave during a session.
type AnswerRecord struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Timestamp time.Time `json:"timestamp"`
}

// Metadata holds domain data extracted during a session.
type Metadata struct {
	Artwork *ArtworkData      `json:"artworkData,omitempty"`
	Values  map[string]string `json:"values,omitempty"`
}

// ConversationState is the accumulated memory of one chat session.
//
// AnswersGiven is append-only and chronological: the last element is the
// most recent answer. Apply is the only way a turn changes a state.
type ConversationState struct {
	SessionID    string         `json:"sessionId"`
	AnswersGiven []AnswerRecord `json:"answersGiven"`
	Metadata     Metadata       `json:"metadata"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// NewConversationState returns an empty state for a session.
func NewConversationState(sessionID string, now time.Time) ConversationState {
	return ConversationState{
		SessionID: sessionID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// LastAnswer returns the most recent answer, if any.
func (s ConversationState) LastAnswer() (AnswerRecord, bool) {
	if len(s.AnswersGiven) == 0 {
		return AnswerRecord{}, false
	}
	return s.AnswersGiven[len(s.AnswersGiven)-1], true
}

// Clone returns a deep copy so callers cannot alias the receiver's slices or maps.
func (s ConversationState) Clone() ConversationState {
	out := s
	if s.AnswersGiven != nil {
		out.AnswersGiven = make([]AnswerRecord, len(s.AnswersGiven))
		copy(out.AnswersGiven, s.AnswersGiven)
	}
	out.Metadata.Values = maps.Clone(s.Metadata.Values)
	if s.Metadata.Artwork != nil {
		art := s.Metadata.Artwork.Clone()
		out.Metadata.Artwork = &art
	}
	return out
}

// StatePatch is the set of changes a single turn may make to a state.
type StatePatch struct {
	AppendAnswer *AnswerRecord     `json:"appendAnswer,omitempty"`
	SetArtwork   *ArtworkData      `json:"setArtwork,omitempty"`
	SetValues    map[string]string `json:"setValues,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p *StatePatch) IsEmpty() bool {
	return p == nil || (p.AppendAnswer == nil && p.SetArtwork == nil && len(p.SetValues) == 0)
}

// Apply returns a new state with the patch applied. The receiver is not modified.
// A zero answer timestamp is replaced with now.
func (s ConversationState) Apply(p *StatePatch, now time.Time) ConversationState {
	out := s.Clone()
	if p.IsEmpty() {
		return out
	}

	if p.AppendAnswer != nil {
		rec := *p.AppendAnswer
		if rec.Timestamp.IsZero() {
			rec.Timestamp = now
		}
		out.AnswersGiven = append(out.AnswersGiven, rec)
	}
	if p.SetArtwork != nil {
		art := p.SetArtwork.Clone()
		out.Metadata.Artwork = &art
	}
	if len(p.SetValues) > 0 {
		if out.Metadata.Values == nil {
			out.Metadata.Values = make(map[string]string, len(p.SetValues))
		}
		maps.Copy(out.Metadata.Values, p.SetValues)
	}
	out.UpdatedAt = now
	return out
}
