package watch

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a file must be quiet before a change is reported.
const DefaultDebounce = 100 * time.Millisecond

// Watcher reports changes to a single file. The parent directory is
// watched so editors that replace the file on save are still seen.
type Watcher struct {
	Path     string
	Debounce time.Duration
	Changes  <-chan string // Read-only external channel

	changes chan string
	done    chan struct{}
	watcher *fsnotify.Watcher
}

func New(path string) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ch := make(chan string, 1)
	return &Watcher{
		Path:     abs,
		Debounce: DefaultDebounce,
		Changes:  ch,
		changes:  ch,
		done:     make(chan struct{}),
		watcher:  fw,
	}, nil
}

// Start begins watching. If it fails the watcher is closed and must not
// be stopped.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(filepath.Dir(w.Path)); err != nil {
		w.watcher.Close()
		return err
	}
	go w.loop()
	return nil
}

// Stop closes the watcher and the Changes channel.
func (w *Watcher) Stop() {
	w.watcher.Close()
	<-w.done
	close(w.changes)
}

func (w *Watcher) loop() {
	defer close(w.done)

	var pending time.Time
	ticker := time.NewTicker(w.Debounce)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.Path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				pending = time.Now()
			}

		case <-ticker.C:
			if !pending.IsZero() && time.Since(pending) >= w.Debounce {
				w.emit()
				pending = time.Time{}
			}

		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// emit never blocks; a change already queued covers this one.
func (w *Watcher) emit() {
	select {
	case w.changes <- w.Path:
	default:
	}
}

// Run calls fn once and then after every change to path until ctx ends.
// Errors from fn are logged and do not stop the loop.
func Run(ctx context.Context, path string, log *slog.Logger, fn func(context.Context) error) error {
	w, err := New(path)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Stop()

	rebuild := func() {
		if err := fn(ctx); err != nil {
			log.Error("rebuild failed", "path", path, "error", err)
		}
	}

	rebuild()
	log.Info("watching for changes", "path", w.Path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.Changes:
			log.Info("change detected", "path", w.Path)
			rebuild()
		}
	}
}
