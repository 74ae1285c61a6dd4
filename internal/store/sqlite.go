package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ashureev/printdesk/internal/domain"
	"github.com/ashureev/printdesk/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	writeMu sync.Mutex // serializes writers to avoid SQLITE_BUSY
	now     func() time.Time
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db, now: time.Now}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS conversations (
		session_id TEXT PRIMARY KEY,
		answers_json TEXT NOT NULL DEFAULT '[]',
		metadata_json TEXT NOT NULL DEFAULT '{}',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_updated ON conversations(updated_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetConversation retrieves the state snapshot for a session.
func (s *SQLiteStore) GetConversation(ctx context.Context, sessionID string) (*domain.ConversationState, error) {
	query := `
		SELECT session_id, answers_json, metadata_json, created_at, updated_at
		FROM conversations WHERE session_id = ?`

	var (
		state                     domain.ConversationState
		answersJSON, metadataJSON string
		createdAt, updatedAt      int64
	)
	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(
		&state.SessionID, &answersJSON, &metadataJSON, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan conversation row: %w", err)
	}

	if err := json.Unmarshal([]byte(answersJSON), &state.AnswersGiven); err != nil {
		return nil, fmt.Errorf("decode answers for %s: %w", sessionID, err)
	}
	if err := json.Unmarshal([]byte(metadataJSON), &state.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata for %s: %w", sessionID, err)
	}
	state.CreatedAt = time.UnixMilli(createdAt)
	state.UpdatedAt = time.UnixMilli(updatedAt)

	return &state, nil
}

// UpsertConversation creates or replaces a conversation snapshot.
func (s *SQLiteStore) UpsertConversation(ctx context.Context, state *domain.ConversationState) error {
	if state == nil || state.SessionID == "" {
		return errors.New("upsert conversation: session id is required")
	}

	answers := state.AnswersGiven
	if answers == nil {
		answers = []domain.AnswerRecord{}
	}
	answersJSON, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}
	metadataJSON, err := json.Marshal(state.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	now := s.now()
	createdAt := state.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	updatedAt := state.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now
	}

	query := `
	INSERT INTO conversations (session_id, answers_json, metadata_json, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(session_id) DO UPDATE SET
		answers_json = excluded.answers_json,
		metadata_json = excluded.metadata_json,
		updated_at = excluded.updated_at`

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err = s.db.ExecContext(ctx, query,
		state.SessionID, string(answersJSON), string(metadataJSON),
		createdAt.UnixMilli(), updatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("upsert conversation: %w", err)
	}
	return nil
}

// DeleteConversation removes a session's state, retrying on SQLITE_BUSY.
func (s *SQLiteStore) DeleteConversation(ctx context.Context, sessionID string) error {
	err := shared.RetryOnConflict(ctx, shared.DefaultRetryPolicy, func() error {
		return s.deleteConversationOnce(ctx, sessionID)
	}, func(attempt int, delay time.Duration, err error) {
		slog.Debug("DeleteConversation hit a locked database, retrying",
			"session_id", sessionID,
			"attempt", attempt,
			"delay", delay,
			"error", err)
	})
	if err != nil {
		return fmt.Errorf("delete conversation %s: %w", sessionID, err)
	}
	return nil
}

func (s *SQLiteStore) deleteConversationOnce(ctx context.Context, sessionID string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return nil
}

// GetExpiredConversations lists session IDs idle for longer than ttl.
func (s *SQLiteStore) GetExpiredConversations(ctx context.Context, ttl time.Duration) ([]string, error) {
	threshold := s.now().Add(-ttl).UnixMilli()
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id FROM conversations WHERE updated_at < ? ORDER BY updated_at`, threshold)
	if err != nil {
		return nil, fmt.Errorf("query expired conversations: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close expired conversations rows", "error", closeErr)
		}
	}()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan expired conversation row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired conversations: %w", err)
	}
	return ids, nil
}

// DeleteIfIdle removes a session only if it is still idle for longer than
// ttl, so a turn that refreshed it after GetExpiredConversations keeps its
// state. It reports whether a row was removed.
func (s *SQLiteStore) DeleteIfIdle(ctx context.Context, sessionID string, ttl time.Duration) (bool, error) {
	var removed bool
	err := shared.RetryOnConflict(ctx, shared.DefaultRetryPolicy, func() error {
		var err error
		removed, err = s.deleteIfIdleOnce(ctx, sessionID, ttl)
		return err
	}, func(attempt int, delay time.Duration, err error) {
		slog.Debug("DeleteIfIdle hit a locked database, retrying",
			"session_id", sessionID,
			"attempt", attempt,
			"delay", delay,
			"error", err)
	})
	if err != nil {
		return false, fmt.Errorf("delete idle conversation %s: %w", sessionID, err)
	}
	return removed, nil
}

func (s *SQLiteStore) deleteIfIdleOnce(ctx context.Context, sessionID string, ttl time.Duration) (bool, error) {
	threshold := s.now().Add(-ttl).UnixMilli()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM conversations WHERE session_id = ? AND updated_at < ?`, sessionID, threshold)
	if err != nil {
		return false, fmt.Errorf("delete idle conversation: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete idle conversation: %w", err)
	}
	return n > 0, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
