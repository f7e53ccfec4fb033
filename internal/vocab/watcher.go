package vocab

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Holder provides concurrency-safe access to the active Vocabulary and
// swaps in replacements atomically. A replacement that fails to load or
// validate is discarded and the previous vocabulary stays active.
type Holder struct {
	path string

	mu  sync.RWMutex
	cur *Vocabulary
}

// NewHolder wraps an initial vocabulary. path may be empty when the
// built-in default is used; Reload and Watch then report an error.
func NewHolder(path string, initial *Vocabulary) *Holder {
	return &Holder{path: path, cur: initial}
}

// Current returns the active vocabulary.
func (h *Holder) Current() *Vocabulary {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cur
}

// Reload re-reads the vocabulary file and swaps it in if it validates.
func (h *Holder) Reload() error {
	if h.path == "" {
		return errors.New("no vocabulary file configured")
	}
	v, err := Load(h.path)
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.cur = v
	h.mu.Unlock()
	slog.Info("vocabulary reloaded", "path", h.path, "patterns", len(v.patterns))
	return nil
}

// Watch reloads the vocabulary whenever the file changes, blocking
// until ctx is cancelled. The parent directory is watched so editors
// that replace the file by rename are picked up too. Events are
// debounced because most editors emit several in a row.
func (h *Holder) Watch(ctx context.Context) error {
	if h.path == "" {
		return errors.New("no vocabulary file configured")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(h.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	slog.Info("watching vocabulary file", "path", h.path)

	var debounce *time.Timer
	const debounceDelay = 500 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			slog.Info("vocabulary watcher stopped")
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != filepath.Base(h.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDelay, func() {
				if err := h.Reload(); err != nil {
					slog.Error("vocabulary reload failed, keeping previous", "error", err)
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("vocabulary watcher error", "error", err)
		}
	}
}
