package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"knowledge-ingest-platform/models"
)

// MemoryStore is an in-process Store used in tests and as the fast tier of a
// fanout. All operations copy on the way in and out.
type MemoryStore struct {
	mu       sync.RWMutex
	items    map[string]models.TrackedItem
	chunks   map[string][]models.Chunk
	projects map[string]models.Project
	writes   int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:    make(map[string]models.TrackedItem),
		chunks:   make(map[string][]models.Chunk),
		projects: make(map[string]models.Project),
	}
}

// Writes reports how many mutating operations have been applied.
func (m *MemoryStore) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

func (m *MemoryStore) GetItem(_ context.Context, identity string) (*models.TrackedItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[identity]
	if !ok {
		return nil, ErrNotFound
	}
	cp := item
	return &cp, nil
}

func (m *MemoryStore) UpsertItem(_ context.Context, item *models.TrackedItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[item.Identity] = *item
	m.writes++
	return nil
}

func (m *MemoryStore) ReplaceChunks(_ context.Context, item *models.TrackedItem, chunks []models.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[item.Identity] = *item
	cp := make([]models.Chunk, len(chunks))
	copy(cp, chunks)
	m.chunks[item.Identity] = cp
	m.writes++
	return nil
}

func (m *MemoryStore) Tombstone(_ context.Context, identity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[identity]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	item.Deleted = true
	item.DeletedAt = &now
	m.items[identity] = item
	delete(m.chunks, identity)
	m.writes++
	return nil
}

func (m *MemoryStore) GetChunks(_ context.Context, parentIdentity string) ([]models.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stored, ok := m.chunks[parentIdentity]
	if !ok {
		return []models.Chunk{}, nil
	}
	cp := make([]models.Chunk, len(stored))
	copy(cp, stored)
	sort.Slice(cp, func(i, j int) bool { return cp[i].Order < cp[j].Order })
	return cp, nil
}

func (m *MemoryStore) ListItems(_ context.Context, projectAlias string) ([]models.TrackedItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.TrackedItem
	for _, item := range m.items {
		if item.ProjectAlias == projectAlias {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identity < out[j].Identity })
	return out, nil
}

func (m *MemoryStore) ListRemoteItems(_ context.Context) ([]models.TrackedItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.TrackedItem
	for _, item := range m.items {
		if !item.Deleted && models.IsRemote(item.Identity) {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identity < out[j].Identity })
	return out, nil
}

func (m *MemoryStore) UpsertProject(_ context.Context, project *models.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[project.Alias] = *project
	m.writes++
	return nil
}

func (m *MemoryStore) GetProject(_ context.Context, alias string) (*models.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	project, ok := m.projects[alias]
	if !ok {
		return nil, ErrNotFound
	}
	cp := project
	return &cp, nil
}

func (m *MemoryStore) ListProjects(_ context.Context) ([]models.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Project, 0, len(m.projects))
	for _, project := range m.projects {
		out = append(out, project)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Alias < out[j].Alias })
	return out, nil
}
