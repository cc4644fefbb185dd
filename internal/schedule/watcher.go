package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// LoadFile loads the schedule stored in path.
func LoadFile(path string) (Definition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{Index: -1, Err: err}
	}
	defer func() { _ = f.Close() }()
	return Load(f)
}

// Watcher reloads a schedule file whenever it changes. A schedule that fails to load is published as a nil Definition, so the
// caller disables scheduling until the file is fixed.
type Watcher struct {
	Debounce time.Duration
	path     string
	logger   *slog.Logger
	updates  chan Definition
}

func NewWatcher(path string, logger *slog.Logger) *Watcher {
	return &Watcher{
		Debounce: 500 * time.Millisecond,
		path:     path,
		logger:   logger,
		updates:  make(chan Definition, 1),
	}
}

// Updates returns the channel on which reloaded schedules are published.
func (w *Watcher) Updates() <-chan Definition {
	return w.updates
}

// Run publishes a new Definition each time the schedule file changes, until ctx is done. If the file can't be watched, Run logs
// the error and returns nil: the current schedule remains in place, but is no longer reloaded.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := w.watch()
	if err != nil {
		w.logger.Error("failed to watch schedule. schedule will not be reloaded", "path", w.path, "err", err)
		return nil
	}
	defer func() { _ = fw.Close() }()
	file := filepath.Base(w.path)

	w.logger.Debug("started", "path", w.path)
	defer w.logger.Debug("stopped")

	var reload <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) == file && ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				reload = time.After(w.Debounce)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("schedule watcher error", "err", err)
		case <-reload:
			reload = nil
			w.publish(ctx, w.load())
		}
	}
}

// watch watches the schedule's directory: editors often replace the file rather than write to it.
func (w *Watcher) watch() (*fsnotify.Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("schedule watcher: %w", err)
	}
	dir := filepath.Dir(w.path)
	if err = fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("schedule watcher: %w", err)
	}
	return fw, nil
}

func (w *Watcher) load() Definition {
	definition, err := LoadFile(w.path)
	if err != nil {
		w.logger.Error("failed to reload schedule. scheduling disabled", "err", err)
		return nil
	}
	w.logger.Info("schedule reloaded", "days", len(definition))
	return definition
}

func (w *Watcher) publish(ctx context.Context, definition Definition) {
	select {
	case w.updates <- definition:
	case <-ctx.Done():
	}
}
