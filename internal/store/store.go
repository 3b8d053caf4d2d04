package store

import (
	"context"
	"errors"

	"knowledge-ingest-platform/models"
)

// ErrNotFound is returned when a lookup matches no record.
var ErrNotFound = errors.New("record not found")

// Store persists tracked items, their chunks and project registrations.
// ReplaceChunks and Tombstone are atomic: readers never observe an item
// whose metadata and chunk set disagree.
type Store interface {
	GetItem(ctx context.Context, identity string) (*models.TrackedItem, error)
	UpsertItem(ctx context.Context, item *models.TrackedItem) error

	// ReplaceChunks writes the item's new metadata and swaps its full chunk
	// set in one step.
	ReplaceChunks(ctx context.Context, item *models.TrackedItem, chunks []models.Chunk) error

	// Tombstone marks the item deleted and removes its chunks. Missing
	// identities return ErrNotFound.
	Tombstone(ctx context.Context, identity string) error

	GetChunks(ctx context.Context, parentIdentity string) ([]models.Chunk, error)

	ListItems(ctx context.Context, projectAlias string) ([]models.TrackedItem, error)
	ListRemoteItems(ctx context.Context) ([]models.TrackedItem, error)

	UpsertProject(ctx context.Context, project *models.Project) error
	GetProject(ctx context.Context, alias string) (*models.Project, error)
	ListProjects(ctx context.Context) ([]models.Project, error)
}
