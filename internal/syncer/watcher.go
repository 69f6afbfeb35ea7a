package syncer

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet window after the last file event before a
// reconciliation pass runs. Editors and downloads touch files several
// times in quick succession; the window collapses those into one pass.
const DefaultDebounce = 2 * time.Second

// Watcher triggers reconciliation passes from file system events on the
// documents tree, subdirectories included. An optional interval ticker
// catches changes the event stream misses, such as moves from another
// volume.
type Watcher struct {
	engine   *Engine
	root     string
	debounce time.Duration
	interval time.Duration
}

// NewWatcher creates a watcher over rootDir. Interval 0 disables the
// periodic pass; debounce 0 gets the default window.
func NewWatcher(engine *Engine, rootDir string, debounce, interval time.Duration) (*Watcher, error) {
	if engine == nil {
		return nil, fmt.Errorf("syncer: engine is required")
	}
	if rootDir == "" {
		return nil, fmt.Errorf("syncer: watch directory is required")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		engine:   engine,
		root:     rootDir,
		debounce: debounce,
		interval: interval,
	}, nil
}

// Run watches until the context is cancelled, invoking fn after every
// reconciliation pass. An initial pass runs before the event loop so the
// index converges even when the directory is already quiet.
func (w *Watcher) Run(ctx context.Context, fn func(Report)) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("start file watcher: %w", err)
	}
	defer fw.Close()

	if err := watchTree(fw, w.root); err != nil {
		return fmt.Errorf("watch %s: %w", w.root, err)
	}

	w.runPass(ctx, fn)

	var tickC <-chan time.Time
	if w.interval > 0 {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		tickC = ticker.C
	}

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()
	armed := false

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create != 0 && isDir(event.Name) {
				// A new folder may already hold files whose events
				// predate the watch; the pass below picks them up.
				if err := watchTree(fw, event.Name); err != nil {
					slog.Warn("watch new directory",
						slog.String("path", event.Name),
						slog.String("error", err.Error()))
				}
			} else if !w.relevant(event) {
				continue
			}
			if armed && !timer.Stop() {
				<-timer.C
			}
			timer.Reset(w.debounce)
			armed = true

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch error", slog.String("error", err.Error()))

		case <-timer.C:
			armed = false
			w.runPass(ctx, fn)

		case <-tickC:
			w.runPass(ctx, fn)
		}
	}
}

// watchTree registers root and every directory below it.
func watchTree(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fw.Add(path)
		}
		return nil
	})
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// relevant filters events down to content changes on supported files.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&fsnotify.Chmod != 0 && event.Op&^fsnotify.Chmod == 0 {
		return false
	}
	return w.engine.Supported(event.Name)
}

func (w *Watcher) runPass(ctx context.Context, fn func(Report)) {
	report, err := w.engine.Sync(ctx, w.root)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Error("sync pass failed", slog.String("error", err.Error()))
		return
	}
	if fn != nil {
		fn(report)
	}
}
