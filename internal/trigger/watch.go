package trigger

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// LocalWatcher is a best-effort local-change watcher (§9 domain-stack
// fsnotify entry): on any write/create/remove/rename under the watched
// root, it calls nudge (normally Scheduler.Nudge) to pull next_run_at
// closer to now. It never triggers a run itself — the Scheduler's own loop
// remains the only thing that calls RunFunc on this path, preserving the
// three-trigger contract of §4.7.
type LocalWatcher struct {
	fsw    *fsnotify.Watcher
	nudge  func()
	logger *slog.Logger
}

// NewLocalWatcher recursively watches root and every subdirectory present
// at construction time. Directories created later are picked up lazily: a
// Create event for a new directory adds a watch on it.
func NewLocalWatcher(root string, nudge func(), logger *slog.Logger) (*LocalWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fsw.Add(path)
		}
		return nil
	})
	if err != nil {
		fsw.Close()
		return nil, err
	}

	return &LocalWatcher{fsw: fsw, nudge: nudge, logger: logger}, nil
}

// Close releases the underlying inotify/kqueue handle.
func (w *LocalWatcher) Close() error {
	return w.fsw.Close()
}

// Run drains events until ctx is canceled. Meant to be started once in its
// own goroutine.
func (w *LocalWatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("local watcher error", slog.String("error", err.Error()))
		}
	}
}

func (w *LocalWatcher) handle(ev fsnotify.Event) {
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			_ = w.fsw.Add(ev.Name)
		}
	}
	w.nudge()
}
