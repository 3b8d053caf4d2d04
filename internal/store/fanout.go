package store

import (
	"context"

	"knowledge-ingest-platform/internal/logger"
	"knowledge-ingest-platform/models"
)

// Fanout mirrors every write to a secondary store while serving reads from
// the primary. The secondary is best-effort: its failures are logged and do
// not fail the write.
type Fanout struct {
	primary   Store
	secondary Store
}

func NewFanout(primary, secondary Store) *Fanout {
	return &Fanout{primary: primary, secondary: secondary}
}

func (f *Fanout) GetItem(ctx context.Context, identity string) (*models.TrackedItem, error) {
	return f.primary.GetItem(ctx, identity)
}

func (f *Fanout) UpsertItem(ctx context.Context, item *models.TrackedItem) error {
	if err := f.primary.UpsertItem(ctx, item); err != nil {
		return err
	}
	if err := f.secondary.UpsertItem(ctx, item); err != nil {
		logger.Warn("Secondary store upsert failed", "identity", item.Identity, "error", err)
	}
	return nil
}

func (f *Fanout) ReplaceChunks(ctx context.Context, item *models.TrackedItem, chunks []models.Chunk) error {
	if err := f.primary.ReplaceChunks(ctx, item, chunks); err != nil {
		return err
	}
	if err := f.secondary.ReplaceChunks(ctx, item, chunks); err != nil {
		logger.Warn("Secondary store chunk replace failed", "identity", item.Identity, "error", err)
	}
	return nil
}

func (f *Fanout) Tombstone(ctx context.Context, identity string) error {
	if err := f.primary.Tombstone(ctx, identity); err != nil {
		return err
	}
	if err := f.secondary.Tombstone(ctx, identity); err != nil && err != ErrNotFound {
		logger.Warn("Secondary store tombstone failed", "identity", identity, "error", err)
	}
	return nil
}

func (f *Fanout) GetChunks(ctx context.Context, parentIdentity string) ([]models.Chunk, error) {
	return f.primary.GetChunks(ctx, parentIdentity)
}

func (f *Fanout) ListItems(ctx context.Context, projectAlias string) ([]models.TrackedItem, error) {
	return f.primary.ListItems(ctx, projectAlias)
}

func (f *Fanout) ListRemoteItems(ctx context.Context) ([]models.TrackedItem, error) {
	return f.primary.ListRemoteItems(ctx)
}

func (f *Fanout) UpsertProject(ctx context.Context, project *models.Project) error {
	if err := f.primary.UpsertProject(ctx, project); err != nil {
		return err
	}
	if err := f.secondary.UpsertProject(ctx, project); err != nil {
		logger.Warn("Secondary store project upsert failed", "alias", project.Alias, "error", err)
	}
	return nil
}

func (f *Fanout) GetProject(ctx context.Context, alias string) (*models.Project, error) {
	return f.primary.GetProject(ctx, alias)
}

func (f *Fanout) ListProjects(ctx context.Context) ([]models.Project, error) {
	return f.primary.ListProjects(ctx)
}
