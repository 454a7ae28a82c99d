package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/doridoridoriand/latencybar/internal/log"
	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 50 * time.Millisecond

// Watch reloads kv whenever its file is written or replaced and passes the
// resulting settings to onChange. Invalid edits are logged and skipped. It
// blocks until ctx is done.
func Watch(ctx context.Context, kv *FileKV, logger *log.Logger, onChange func(Settings)) error {
	if logger == nil {
		logger = log.Discard()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	// Editors replace files by rename, so the directory is watched.
	dir := filepath.Dir(kv.Path())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	target := filepath.Clean(kv.Path())

	var debounce *time.Timer
	var fire <-chan time.Time
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(watchDebounce)
			} else {
				debounce.Reset(watchDebounce)
			}
			fire = debounce.C
		case <-fire:
			fire = nil
			if err := kv.Reload(); err != nil {
				logger.Warn("settings reload failed", map[string]interface{}{"path": kv.Path(), "error": err.Error()})
				continue
			}
			s, err := LoadSettings(kv)
			if err != nil {
				logger.Warn("ignoring invalid settings", map[string]interface{}{"path": kv.Path(), "error": err.Error()})
				continue
			}
			logger.Info("settings reloaded", map[string]interface{}{"path": kv.Path(), "host": s.Host, "interval": s.Interval.String()})
			onChange(s)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("settings watcher error", map[string]interface{}{"error": err.Error()})
		}
	}
}
