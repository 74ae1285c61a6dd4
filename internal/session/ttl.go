// Package session expires idle conversations.
package session

import (
	"context"
	"log/slog"
	"time"
)

// Default sweep settings.
const (
	DefaultTTL      = 24 * time.Hour
	DefaultInterval = 5 * time.Minute
)

// Repository is the subset of store.Repository the sweeper needs.
type Repository interface {
	GetExpiredConversations(ctx context.Context, ttl time.Duration) ([]string, error)
	DeleteIfIdle(ctx context.Context, sessionID string, ttl time.Duration) (bool, error)
}

// TTLConfig controls the sweeper.
type TTLConfig struct {
	TTL      time.Duration
	Interval time.Duration
}

func (c TTLConfig) withDefaults() TTLConfig {
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	return c
}

// CleanupCallback is called after a session is removed by the TTL worker.
type CleanupCallback func(sessionID string)

// StartTTLWorker runs a background goroutine that periodically deletes
// conversations idle for longer than cfg.TTL. The returned channel is closed
// once the worker has stopped after ctx is cancelled.
func StartTTLWorker(ctx context.Context, repo Repository, cfg TTLConfig, onCleanup CleanupCallback) <-chan struct{} {
	cfg = cfg.withDefaults()
	done := make(chan struct{})
	ticker := time.NewTicker(cfg.Interval)

	go func() {
		defer close(done)
		defer ticker.Stop()
		slog.Info("TTL worker started", "interval", cfg.Interval, "ttl", cfg.TTL)

		for {
			select {
			case <-ticker.C:
				Sweep(ctx, repo, cfg.TTL, onCleanup)
			case <-ctx.Done():
				slog.Info("TTL worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
	return done
}

// Sweep deletes expired conversations once and returns how many were removed.
func Sweep(ctx context.Context, repo Repository, ttl time.Duration, onCleanup CleanupCallback) int {
	expired, err := repo.GetExpiredConversations(ctx, ttl)
	if err != nil {
		slog.Error("TTL worker failed to get expired conversations", "error", err)
		return 0
	}
	if len(expired) == 0 {
		return 0
	}

	slog.Info("TTL worker found expired conversations", "count", len(expired))

	cleaned := 0
	for _, id := range expired {
		if ctx.Err() != nil {
			slog.Debug("TTL worker: context canceled, cleanup incomplete", "remaining", len(expired)-cleaned)
			break
		}
		removed, err := repo.DeleteIfIdle(ctx, id, ttl)
		if err != nil {
			slog.Warn("TTL worker failed to delete conversation", "error", err, "session_id", id)
			continue
		}
		if !removed {
			slog.Debug("TTL worker skipped refreshed conversation", "session_id", id)
			continue
		}
		cleaned++
		if onCleanup != nil {
			onCleanup(id)
		}
	}

	slog.Info("TTL worker cleanup completed", "cleaned", cleaned)
	return cleaned
}
