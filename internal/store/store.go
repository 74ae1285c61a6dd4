// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/printdesk/internal/domain"
)

// Repository persists conversation state snapshots keyed by session ID.
type Repository interface {
	// GetConversation returns the stored state, or nil if the session is unknown.
	GetConversation(ctx context.Context, sessionID string) (*domain.ConversationState, error)

	// UpsertConversation creates or replaces the snapshot for state.SessionID.
	UpsertConversation(ctx context.Context, state *domain.ConversationState) error

	// DeleteConversation removes a session's state. Unknown sessions are not an error.
	DeleteConversation(ctx context.Context, sessionID string) error

	// GetExpiredConversations lists sessions not updated within ttl.
	GetExpiredConversations(ctx context.Context, ttl time.Duration) ([]string, error)

	// DeleteIfIdle removes a session only if it is still not updated within
	// ttl and reports whether it was removed.
	DeleteIfIdle(ctx context.Context, sessionID string, ttl time.Duration) (bool, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
