package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knowledge-ingest-platform/models"
)

func TestMemoryStoreItemRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	_, err := m.GetItem(ctx, "/p/a.py")
	assert.ErrorIs(t, err, ErrNotFound)

	item := &models.TrackedItem{
		ProjectAlias: "proj",
		Identity:     "/p/a.py",
		ContentHash:  "abc",
		Status:       models.StatusChunked,
		LastSyncedAt: time.Now().UTC(),
	}
	require.NoError(t, m.UpsertItem(ctx, item))

	got, err := m.GetItem(ctx, "/p/a.py")
	require.NoError(t, err)
	assert.Equal(t, "abc", got.ContentHash)
	assert.Equal(t, models.StatusChunked, got.Status)
}

func TestMemoryStoreReplaceChunks(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	item := &models.TrackedItem{Identity: "/p/a.py", Status: models.StatusChunked}
	first := []models.Chunk{
		{ChunkID: "/p/a.py:0", ParentIdentity: "/p/a.py", Order: 0, Text: "one"},
		{ChunkID: "/p/a.py:1", ParentIdentity: "/p/a.py", Order: 1, Text: "two"},
	}
	require.NoError(t, m.ReplaceChunks(ctx, item, first))

	second := []models.Chunk{
		{ChunkID: "/p/a.py:0", ParentIdentity: "/p/a.py", Order: 0, Text: "replaced"},
	}
	require.NoError(t, m.ReplaceChunks(ctx, item, second))

	chunks, err := m.GetChunks(ctx, "/p/a.py")
	require.NoError(t, err)
	require.Len(t, chunks, 1, "old chunk set must be fully replaced")
	assert.Equal(t, "replaced", chunks[0].Text)
}

func TestMemoryStoreTombstone(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	assert.ErrorIs(t, m.Tombstone(ctx, "/p/missing.py"), ErrNotFound)

	item := &models.TrackedItem{Identity: "/p/a.py", Status: models.StatusChunked}
	chunks := []models.Chunk{{ChunkID: "/p/a.py:0", ParentIdentity: "/p/a.py", Order: 0, Text: "one"}}
	require.NoError(t, m.ReplaceChunks(ctx, item, chunks))

	require.NoError(t, m.Tombstone(ctx, "/p/a.py"))

	got, err := m.GetItem(ctx, "/p/a.py")
	require.NoError(t, err)
	assert.True(t, got.Deleted)
	require.NotNil(t, got.DeletedAt)

	remaining, err := m.GetChunks(ctx, "/p/a.py")
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestMemoryStoreWritesCounter(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	assert.Equal(t, 0, m.Writes())

	item := &models.TrackedItem{Identity: "/p/a.py"}
	require.NoError(t, m.UpsertItem(ctx, item))
	require.NoError(t, m.ReplaceChunks(ctx, item, nil))
	assert.Equal(t, 2, m.Writes())

	_, err := m.GetItem(ctx, "/p/a.py")
	require.NoError(t, err)
	assert.Equal(t, 2, m.Writes(), "reads must not count as writes")
}

func TestMemoryStoreListRemoteItems(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	require.NoError(t, m.UpsertItem(ctx, &models.TrackedItem{Identity: "/p/a.py", ProjectAlias: "proj"}))
	require.NoError(t, m.UpsertItem(ctx, &models.TrackedItem{Identity: "https://example.com/doc", ProjectAlias: "proj"}))
	require.NoError(t, m.UpsertItem(ctx, &models.TrackedItem{Identity: "https://example.com/gone", ProjectAlias: "proj", Deleted: true}))

	remote, err := m.ListRemoteItems(ctx)
	require.NoError(t, err)
	require.Len(t, remote, 1)
	assert.Equal(t, "https://example.com/doc", remote[0].Identity)
}

func TestMemoryStoreProjects(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	_, err := m.GetProject(ctx, "proj")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.UpsertProject(ctx, &models.Project{Alias: "proj", Root: "/p", Active: true}))
	require.NoError(t, m.UpsertProject(ctx, &models.Project{Alias: "other", Root: "/q", Active: true}))

	got, err := m.GetProject(ctx, "proj")
	require.NoError(t, err)
	assert.Equal(t, "/p", got.Root)

	all, err := m.ListProjects(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
