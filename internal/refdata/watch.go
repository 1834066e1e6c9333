package refdata

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce collapses the burst of events an editor save produces.
const DefaultDebounce = 250 * time.Millisecond

// Watch refreshes the store from path now and again whenever the file
// changes, until ctx is done. The parent directory is watched so that
// atomic replace-by-rename saves are seen. Refresh failures are logged and
// the watch continues; onRefresh, when set, sees every attempt.
func Watch(ctx context.Context, store Store, path string, debounce time.Duration, onRefresh func(n int, err error)) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	path = filepath.Clean(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	refresh := func() {
		n, err := Refresh(ctx, store, path)
		if err != nil && ctx.Err() == nil {
			slog.Warn("refdata: refresh failed", "path", path, "err", err)
		}
		if onRefresh != nil && ctx.Err() == nil {
			onRefresh(n, err)
		}
	}
	refresh()

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("refdata: watcher error", "err", err)

		case <-timer.C:
			refresh()
		}
	}
}
