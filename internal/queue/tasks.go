package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hibiken/asynq"

	"knowledge-ingest-platform/internal/logger"
	"knowledge-ingest-platform/internal/pipeline"
	"knowledge-ingest-platform/internal/watcher"
)

const (
	// TaskReingestItem forces a full pipeline run for one identity,
	// bypassing nothing except the debounce window.
	TaskReingestItem = "item:reingest"
)

type ReingestPayload struct {
	ProjectAlias string `json:"project_alias"`
	Identity     string `json:"identity"`
	Kind         string `json:"kind"`
}

// NewReingestTask builds a manual re-ingest task for an identity.
func NewReingestTask(projectAlias, identity string, kind watcher.Kind) (*asynq.Task, error) {
	payload, err := json.Marshal(ReingestPayload{
		ProjectAlias: projectAlias,
		Identity:     identity,
		Kind:         string(kind),
	})
	if err != nil {
		return nil, err
	}

	// The target queue is chosen at enqueue time from ASYNQ_QUEUE.
	return asynq.NewTask(
		TaskReingestItem,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
	), nil
}

// TaskProcessor handles queued tasks by feeding them through the same
// pipeline the watcher uses. Runs for the same identity are serialized;
// asynq's concurrency setting only caps distinct identities.
type TaskProcessor struct {
	pipeline pipeline.Processor
	locks    sync.Map // identity -> *sync.Mutex
}

func NewTaskProcessor(p pipeline.Processor) *TaskProcessor {
	return &TaskProcessor{pipeline: p}
}

func (p *TaskProcessor) identityLock(identity string) *sync.Mutex {
	mu, _ := p.locks.LoadOrStore(identity, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (p *TaskProcessor) HandleReingest(ctx context.Context, t *asynq.Task) error {
	var payload ReingestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	kind := watcher.Kind(payload.Kind)
	switch kind {
	case watcher.KindCreated, watcher.KindModified, watcher.KindDeleted:
	case "":
		kind = watcher.KindModified
	default:
		return fmt.Errorf("unknown kind %q: %w", payload.Kind, asynq.SkipRetry)
	}

	logger.Info("Re-ingesting item", "project", payload.ProjectAlias, "identity", payload.Identity, "kind", string(kind))

	mu := p.identityLock(payload.Identity)
	mu.Lock()
	defer mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	return p.pipeline.Process(ctx, payload.ProjectAlias, payload.Identity, kind)
}
