package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"knowledge-ingest-platform/internal/acquire"
	"knowledge-ingest-platform/internal/logger"
	"knowledge-ingest-platform/internal/store"
	"knowledge-ingest-platform/internal/telemetry"
	"knowledge-ingest-platform/internal/watcher"
	"knowledge-ingest-platform/models"
)

// Fingerprinter computes a content hash for an identity and returns the raw
// bytes it read along the way.
type Fingerprinter interface {
	Fingerprint(ctx context.Context, identity string) (string, []byte, error)
}

// Acquirer runs the strategy chain for an identity.
type Acquirer interface {
	AcquireWith(ctx context.Context, identity string, prefetched []byte) (*acquire.Result, error)
}

// Enricher produces a description for acquired text. A (nil, nil) return
// means enrichment was skipped, which is not an error.
type Enricher interface {
	Enrich(ctx context.Context, identity, text string) (*models.EnrichmentResult, error)
}

// Chunker splits acquired text into ordered chunks.
type Chunker interface {
	ChunkText(parentIdentity, text string) []models.Chunk
}

// Pipeline drives one change event through fingerprint, acquisition,
// enrichment and chunk persistence.
type Pipeline struct {
	fingerprinter Fingerprinter
	acquirer      Acquirer
	enricher      Enricher
	chunker       Chunker
	store         store.Store
	metrics       *telemetry.Metrics
}

func New(fp Fingerprinter, acq Acquirer, enr Enricher, chk Chunker, st store.Store) *Pipeline {
	return &Pipeline{
		fingerprinter: fp,
		acquirer:      acq,
		enricher:      enr,
		chunker:       chk,
		store:         st,
	}
}

// SetMetrics attaches instrument recording. A nil-metrics pipeline records
// nothing.
func (p *Pipeline) SetMetrics(m *telemetry.Metrics) {
	p.metrics = m
}

// Process handles a single debounced change event. Acquisition and enrichment
// failures are absorbed: the item records the failure and Process returns nil
// so one bad item never stalls its neighbors. Only infrastructure errors
// (store failures, cancellation) propagate.
func (p *Pipeline) Process(ctx context.Context, projectAlias, identity string, kind watcher.Kind) error {
	runID := uuid.NewString()
	started := time.Now()

	tracer := otel.Tracer("pipeline")
	ctx, span := tracer.Start(ctx, "pipeline.process")
	defer span.End()
	span.SetAttributes(
		attribute.String("pipeline.run_id", runID),
		attribute.String("pipeline.identity", identity),
		attribute.String("pipeline.kind", string(kind)),
	)

	log := logger.With("run_id", runID, "project", projectAlias, "identity", identity, "kind", string(kind))

	if kind == watcher.KindDeleted {
		err := p.store.Tombstone(ctx, identity)
		if errors.Is(err, store.ErrNotFound) {
			log.Debug("Delete for untracked identity, nothing to do")
			return nil
		}
		if err != nil {
			return err
		}
		log.Info("Item tombstoned")
		p.recordItem(string(kind), "tombstoned", started)
		return nil
	}

	hash, raw, err := p.fingerprinter.Fingerprint(ctx, identity)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("Fingerprint failed", "error", err)
		p.recordItem(string(kind), models.StatusFailed, started)
		return p.recordFailure(ctx, projectAlias, identity, "fingerprint: "+err.Error())
	}

	existing, err := p.store.GetItem(ctx, identity)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}

	// Unchanged content short-circuits with zero writes
	if existing != nil && !existing.Deleted &&
		existing.ContentHash == hash && existing.Status == models.StatusChunked {
		log.Debug("Content hash unchanged, skipping")
		span.SetAttributes(attribute.Bool("pipeline.short_circuit", true))
		p.recordItem(string(kind), "unchanged", started)
		return nil
	}

	item := &models.TrackedItem{
		ProjectAlias: projectAlias,
		Identity:     identity,
		Status:       models.StatusAcquiring,
		LastSyncedAt: time.Now().UTC(),
	}
	if existing != nil {
		// Carry the last successful ingest's fields until this run replaces
		// them; a failure along the way must not erase them.
		item.ID = existing.ID
		item.ContentHash = existing.ContentHash
		item.Title = existing.Title
		item.StrategyUsed = existing.StrategyUsed
		item.Enrichment = existing.Enrichment
	}
	if err := p.store.UpsertItem(ctx, item); err != nil {
		return err
	}

	result, err := p.acquirer.AcquireWith(ctx, identity, raw)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("Acquisition exhausted", "error", err)
		span.SetAttributes(attribute.Bool("pipeline.acquisition_failed", true))
		if p.metrics != nil {
			p.metrics.RecordAcquisitionFailure(models.IsRemote(identity))
		}
		p.recordItem(string(kind), models.StatusFailed, started)
		return p.recordFailure(ctx, projectAlias, identity, err.Error())
	}
	log.Info("Content acquired", "strategy", result.Strategy, "chars", len(result.Text))

	item.Status = models.StatusEnriching
	item.Title = result.Title
	item.StrategyUsed = result.Strategy
	if err := p.store.UpsertItem(ctx, item); err != nil {
		return err
	}

	enrichment, err := p.enricher.Enrich(ctx, identity, result.Text)
	switch {
	case err != nil:
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Enrichment is additive; its failure never blocks persistence
		log.Warn("Enrichment failed, proceeding without it", "error", err)
		span.SetAttributes(attribute.Bool("pipeline.enrichment_failed", true))
		if p.metrics != nil {
			p.metrics.RecordEnrichmentFailure()
		}
	case enrichment != nil:
		item.Enrichment = enrichment
	default:
		// Intentional skip: a description of earlier content must not be
		// persisted against the new chunk set.
		item.Enrichment = nil
	}

	chunks := p.chunker.ChunkText(identity, result.Text)

	if err := ctx.Err(); err != nil {
		return err
	}

	item.Status = models.StatusChunked
	item.ContentHash = hash
	item.LastError = ""
	item.Deleted = false
	item.DeletedAt = nil
	item.LastSyncedAt = time.Now().UTC()
	if err := p.store.ReplaceChunks(ctx, item, chunks); err != nil {
		return err
	}

	log.Info("Item ingested", "chunks", len(chunks), "status", item.Status)
	span.SetAttributes(attribute.Int("pipeline.chunks", len(chunks)))
	p.recordItem(string(kind), item.Status, started)
	if p.metrics != nil {
		p.metrics.RecordChunks(len(chunks), item.StrategyUsed)
	}
	return nil
}

func (p *Pipeline) recordItem(kind, status string, started time.Time) {
	if p.metrics == nil {
		return
	}
	p.metrics.RecordItem(kind, status, time.Since(started).Seconds())
}

// recordFailure marks the item failed without touching its chunks. The
// previous successful chunk set, if any, stays serveable.
func (p *Pipeline) recordFailure(ctx context.Context, projectAlias, identity, reason string) error {
	existing, err := p.store.GetItem(ctx, identity)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}

	item := &models.TrackedItem{
		ProjectAlias: projectAlias,
		Identity:     identity,
		Status:       models.StatusFailed,
		LastError:    reason,
		LastSyncedAt: time.Now().UTC(),
	}
	if existing != nil {
		item.ID = existing.ID
		item.ContentHash = existing.ContentHash
		item.Title = existing.Title
		item.StrategyUsed = existing.StrategyUsed
		item.Enrichment = existing.Enrichment
	}
	return p.store.UpsertItem(ctx, item)
}
