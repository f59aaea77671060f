package storage

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadFunc is called with the affected blob key after an external
// write settles.
type ReloadFunc func(key string)

// Watch monitors an FS provider's state directory and calls cb for
// blobs changed by external writers, until ctx is cancelled.
//
// Events are debounced: editors and the provider's own atomic renames
// produce bursts, so each key waits 200ms of quiet before reload.
// isSelfWrite lets the caller suppress reloads for content it just
// persisted itself (compared by hash, not timing).
func Watch(ctx context.Context, fs *FS, logger *slog.Logger, isSelfWrite func(key string) bool, cb ReloadFunc) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(fs.Dir()); err != nil {
		return err
	}

	logger.Info("state watcher started", slog.String("dir", fs.Dir()))

	const quiet = 200 * time.Millisecond
	pending := make(map[string]struct{})
	var timer *time.Timer
	var timerCh <-chan time.Time

	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(quiet)
			timerCh = timer.C
		} else {
			timer.Reset(quiet)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("state watcher stopped")
			return nil

		case <-timerCh:
			for key := range pending {
				delete(pending, key)
				if isSelfWrite != nil && isSelfWrite(key) {
					logger.Debug("state watcher: own write, skipping", slog.String("key", key))
					continue
				}
				logger.Info("state watcher: external change", slog.String("key", key))
				if cb != nil {
					cb(key)
				}
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			name := filepath.Base(ev.Name)
			if !strings.HasSuffix(name, blobExt) || strings.HasPrefix(name, ".") {
				continue
			}
			pending[strings.TrimSuffix(name, blobExt)] = struct{}{}
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("state watcher error", slog.String("error", watchErr.Error()))
		}
	}
}
