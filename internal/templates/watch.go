package templates

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the catalog from path whenever the file is written or
// replaced. A reload that fails validation keeps the current sets.
// The watcher stops when ctx is done.
func (c *Catalog) Watch(ctx context.Context, path string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create template watcher: %w", err)
	}
	// Editors often replace files via rename, so watch the directory.
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch template dir %s: %w", dir, err)
	}

	target := filepath.Clean(path)
	go func() {
		defer func() {
			if err := watcher.Close(); err != nil {
				logger.Warn("failed to close template watcher", "error", err)
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				sets, err := readFile(path)
				if err != nil {
					logger.Warn("template reload rejected, keeping previous catalog", "path", path, "error", err)
					continue
				}
				c.Replace(sets)
				logger.Info("template catalog reloaded", "path", path)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("template watcher error", "error", err)
			}
		}
	}()
	return nil
}
