package config

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 300 * time.Millisecond

// ChangeHandler receives the freshly loaded config.
type ChangeHandler func(cfg *Config)

// Watcher reloads the config file when its content changes. The parent
// directory is watched so editors that save by rename are still seen.
type Watcher struct {
	path     string
	fsw      *fsnotify.Watcher
	onChange ChangeHandler
	debounce time.Duration
	digest   [sha256.Size]byte
}

func NewWatcher(path string, onChange ChangeHandler) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	w := &Watcher{path: abs, fsw: fsw, onChange: onChange, debounce: reloadDebounce}
	if data, err := os.ReadFile(abs); err == nil {
		w.digest = sha256.Sum256(data)
	}
	return w, nil
}

// Run handles file events until ctx is done, then releases the watch.
func (w *Watcher) Run(ctx context.Context) {
	defer w.fsw.Close()
	slog.Info("config watcher started", "path", w.path)

	var settle <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) == w.path && ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				settle = time.After(w.debounce)
			}
		case <-settle:
			settle = nil
			w.reload()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("config watcher error", "error", err)
		}
	}
}

// reload skips saves that leave the content unchanged.
func (w *Watcher) reload() {
	data, err := os.ReadFile(w.path)
	if err != nil {
		slog.Warn("config reload failed", "error", err)
		return
	}
	digest := sha256.Sum256(data)
	if digest == w.digest {
		return
	}

	cfg, err := Load(w.path)
	if err != nil {
		slog.Error("config reload failed", "path", w.path, "error", err)
		return
	}
	w.digest = digest
	w.onChange(cfg)
}
