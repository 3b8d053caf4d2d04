package sweeper

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knowledge-ingest-platform/internal/pipeline"
	"knowledge-ingest-platform/internal/store"
	"knowledge-ingest-platform/internal/watcher"
	"knowledge-ingest-platform/models"
)

type recordingProcessor struct {
	mu   sync.Mutex
	seen []watcher.Event
}

func (r *recordingProcessor) Process(_ context.Context, _ string, identity string, kind watcher.Kind) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, watcher.Event{Identity: identity, Kind: kind})
	return nil
}

func (r *recordingProcessor) events() map[string]watcher.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]watcher.Kind, len(r.seen))
	for _, ev := range r.seen {
		out[ev.Identity] = ev.Kind
	}
	return out
}

func TestScanProjectSubmitsFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.py"), []byte("print(1)"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "b.txt"), []byte("text"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".git", "config"), []byte("[core]"), 0o644))

	p := &recordingProcessor{}
	coordinator := pipeline.NewCoordinator(p, 4)

	sw, err := New(coordinator, store.NewMemoryStore(), time.Hour, []string{"**/.git/**", "**/.git"})
	require.NoError(t, err)

	require.NoError(t, sw.ScanProject(context.Background(), "proj", root))
	coordinator.Wait()

	got := p.events()
	assert.Equal(t, watcher.KindCreated, got[filepath.Join(root, "a.py")])
	assert.Equal(t, watcher.KindCreated, got[filepath.Join(root, "sub", "b.txt")])
	assert.NotContains(t, got, filepath.Join(root, ".git", "config"))
}

func TestSweepRemoteResubmitsLiveItems(t *testing.T) {
	ctx := context.Background()

	st := store.NewMemoryStore()
	require.NoError(t, st.UpsertItem(ctx, &models.TrackedItem{
		Identity: "https://example.com/doc", ProjectAlias: "proj", Status: models.StatusChunked,
	}))
	require.NoError(t, st.UpsertItem(ctx, &models.TrackedItem{
		Identity: "/p/local.py", ProjectAlias: "proj", Status: models.StatusChunked,
	}))
	require.NoError(t, st.UpsertItem(ctx, &models.TrackedItem{
		Identity: "https://example.com/gone", ProjectAlias: "proj", Deleted: true,
	}))

	p := &recordingProcessor{}
	coordinator := pipeline.NewCoordinator(p, 4)

	sw, err := New(coordinator, st, time.Hour, nil)
	require.NoError(t, err)

	require.NoError(t, sw.SweepRemote(ctx))
	coordinator.Wait()

	got := p.events()
	assert.Equal(t, watcher.KindModified, got["https://example.com/doc"])
	assert.NotContains(t, got, "/p/local.py", "local files are covered by the watcher")
	assert.NotContains(t, got, "https://example.com/gone")
}

func TestSweeperInvalidGlob(t *testing.T) {
	p := &recordingProcessor{}
	coordinator := pipeline.NewCoordinator(p, 1)

	_, err := New(coordinator, store.NewMemoryStore(), time.Hour, []string{"[invalid"})
	assert.Error(t, err)
}
