package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"

	"knowledge-ingest-platform/internal/logger"
)

// Watcher observes a set of project roots for file additions, modifications
// and removals, and emits one debounced logical Event per changed identity.
// Identities are absolute paths.
type Watcher struct {
	fsw     *fsnotify.Watcher
	out     chan Event
	deb     *debouncer
	ignores []glob.Glob
}

// New creates a watcher over the given roots. Every root must exist and be a
// directory; a missing root is a fatal setup error, not a skipped one.
// Ignore globs are matched against slash-separated absolute paths before any
// event enters the pipeline.
func New(roots []string, ignoreGlobs []string, settleWindow time.Duration) (*Watcher, error) {
	compiled := make([]glob.Glob, 0, len(ignoreGlobs))
	for _, pattern := range ignoreGlobs {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid ignore glob %q: %w", pattern, err)
		}
		compiled = append(compiled, g)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem watcher: %w", err)
	}

	out := make(chan Event, 256)
	w := &Watcher{
		fsw:     fsw,
		out:     out,
		deb:     newDebouncer(settleWindow, out),
		ignores: compiled,
	}

	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			fsw.Close()
			return nil, fmt.Errorf("watch root %s: %w", root, err)
		}
		if err := w.addRecursive(abs); err != nil {
			fsw.Close()
			return nil, err
		}
	}

	return w, nil
}

// addRecursive registers watches on a directory tree. fsnotify watches are
// non-recursive, so every subdirectory needs its own watch descriptor.
func (w *Watcher) addRecursive(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("watch root %s: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch root %s: not a directory", root)
	}

	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walk %s: %w", path, err)
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.ignored(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			// Watch-descriptor exhaustion or permission failure is fatal
			// for this root.
			return fmt.Errorf("add watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) ignored(path string) bool {
	slashed := filepath.ToSlash(path)
	for _, g := range w.ignores {
		if g.Match(slashed) {
			return true
		}
	}
	return false
}

// Events returns the stream of debounced logical events.
func (w *Watcher) Events() <-chan Event {
	return w.out
}

// Run pumps raw filesystem events through the ignore filter and debouncer
// until the context is cancelled. Delivery failures for one identity are
// logged and never stop delivery for others.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.deb.stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleRaw(ev)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Filesystem watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleRaw(ev fsnotify.Event) {
	// New directories need watches of their own before files inside them
	// produce events.
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if !w.ignored(ev.Name) {
				if err := w.addRecursive(ev.Name); err != nil {
					logger.Warn("Failed to watch new directory", "path", ev.Name, "error", err)
				}
			}
			return
		}
	}

	if w.ignored(ev.Name) {
		return
	}

	var kind Kind
	switch {
	case ev.Op&fsnotify.Create != 0:
		kind = KindCreated
	case ev.Op&fsnotify.Write != 0:
		kind = KindModified
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		kind = KindDeleted
	default:
		// Chmod-only events carry no content change.
		return
	}

	w.deb.observe(ev.Name, kind)
}

// Close releases the underlying watch descriptors.
func (w *Watcher) Close() error {
	w.deb.stop()
	return w.fsw.Close()
}
