package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWatcher(t *testing.T, root string, ignores []string) *Watcher {
	t.Helper()
	w, err := New([]string{root}, ignores, 50*time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go w.Run(ctx)

	return w
}

func waitForEvent(t *testing.T, w *Watcher, identity string, kind Kind) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-w.Events():
			if ev.Identity == identity && ev.Kind == kind {
				return
			}
		case <-deadline:
			t.Fatalf("no %s event for %s", kind, identity)
		}
	}
}

func TestWatcherMissingRootFails(t *testing.T) {
	_, err := New([]string{"/nonexistent/root/dir"}, nil, 50*time.Millisecond)
	assert.Error(t, err)
}

func TestWatcherFileLifecycle(t *testing.T) {
	root := t.TempDir()
	w := newTestWatcher(t, root, nil)

	path := filepath.Join(root, "a.py")
	require.NoError(t, os.WriteFile(path, []byte("print(1)"), 0o644))
	waitForEvent(t, w, path, KindCreated)

	require.NoError(t, os.WriteFile(path, []byte("print(2)"), 0o644))
	waitForEvent(t, w, path, KindModified)

	require.NoError(t, os.Remove(path))
	waitForEvent(t, w, path, KindDeleted)
}

func TestWatcherIgnoresGlobs(t *testing.T) {
	root := t.TempDir()
	w := newTestWatcher(t, root, []string{"**/*.log"})

	ignored := filepath.Join(root, "noise.log")
	tracked := filepath.Join(root, "kept.txt")
	require.NoError(t, os.WriteFile(ignored, []byte("ignored"), 0o644))
	require.NoError(t, os.WriteFile(tracked, []byte("kept"), 0o644))

	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-w.Events():
			assert.NotEqual(t, ignored, ev.Identity)
			if ev.Identity == tracked {
				return
			}
		case <-deadline:
			t.Fatal("no event for tracked file")
		}
	}
}

func TestWatcherPicksUpNewSubdirectories(t *testing.T) {
	root := t.TempDir()
	w := newTestWatcher(t, root, nil)

	sub := filepath.Join(root, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))

	// Give the watcher a moment to register the new directory
	time.Sleep(200 * time.Millisecond)

	path := filepath.Join(sub, "nested.txt")
	require.NoError(t, os.WriteFile(path, []byte("nested"), 0o644))
	waitForEvent(t, w, path, KindCreated)
}
