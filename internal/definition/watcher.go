package definition

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Op is the kind of change seen on a definition file.
type Op string

const (
	OpAdd    Op = "add"
	OpUpdate Op = "update"
	OpRemove Op = "remove"
)

// Change describes one modification under the definitions path.
type Change struct {
	Op   Op
	File string
}

// Watcher reports changes to the definitions directory or table file.
// Definitions are re-read on every start, so changes only need to be
// surfaced, not applied.
type Watcher struct {
	Events chan Change

	w      *fsnotify.Watcher
	dir    string
	only   string // base name to keep when watching a table file
	logger *slog.Logger
}

// NewWatcher watches path until ctx is canceled. For a table file the parent
// directory is watched so editors that replace the file are still seen.
func NewWatcher(ctx context.Context, path string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Watcher{Events: make(chan Change, 16), dir: path, logger: logger}
	if fi, err := os.Stat(path); err != nil || !fi.IsDir() {
		w.dir, w.only = filepath.Split(filepath.Clean(path))
		if w.dir == "" {
			w.dir = "."
		}
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(w.dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.w = fw

	go w.watch(ctx)
	return w, nil
}

func (w *Watcher) watch(ctx context.Context) {
	defer func() { _ = w.w.Close() }()
	defer close(w.Events)

	for {
		select {
		case <-ctx.Done():
			return

		case err, ok := <-w.w.Errors:
			if !ok {
				return
			}
			w.logger.Warn("definition watcher error", "error", err)

		case evt, ok := <-w.w.Events:
			if !ok {
				return
			}
			c, ok := translate(evt)
			if !ok || (w.only != "" && c.File != w.only) {
				continue
			}
			select {
			case w.Events <- c:
			case <-ctx.Done():
				return
			}
		}
	}
}

func translate(evt fsnotify.Event) (Change, bool) {
	name := filepath.Base(evt.Name)
	switch {
	case evt.Op&fsnotify.Write != 0:
		return Change{Op: OpUpdate, File: name}, true
	case evt.Op&fsnotify.Create != 0:
		return Change{Op: OpAdd, File: name}, true
	case evt.Op&(fsnotify.Rename|fsnotify.Remove) != 0:
		// fsnotify reports a rename only on the old name
		return Change{Op: OpRemove, File: name}, true
	}
	return Change{}, false
}
