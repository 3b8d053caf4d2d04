package pipeline

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"knowledge-ingest-platform/internal/logger"
	"knowledge-ingest-platform/internal/watcher"
)

// Processor handles one debounced change event.
type Processor interface {
	Process(ctx context.Context, projectAlias, identity string, kind watcher.Kind) error
}

type identityState struct {
	// queued holds at most one superseding event that arrived while a run
	// for this identity was in flight. A newer arrival overwrites it.
	queued *watcher.Event
}

// Coordinator fans events out to the pipeline under two constraints: a global
// worker cap, and at most one in-flight run per identity. Events for a busy
// identity coalesce; only the newest queued event runs next.
type Coordinator struct {
	processor Processor
	workers   *semaphore.Weighted

	mu      sync.Mutex
	running map[string]*identityState
	wg      sync.WaitGroup
}

func NewCoordinator(processor Processor, workerCount int) *Coordinator {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &Coordinator{
		processor: processor,
		workers:   semaphore.NewWeighted(int64(workerCount)),
		running:   make(map[string]*identityState),
	}
}

// Submit schedules one event. If a run for the event's identity is already in
// flight, the event is queued behind it, replacing any previously queued one.
func (c *Coordinator) Submit(ctx context.Context, projectAlias string, event watcher.Event) {
	c.mu.Lock()
	if st, ok := c.running[event.Identity]; ok {
		ev := event
		st.queued = &ev
		c.mu.Unlock()
		return
	}
	c.running[event.Identity] = &identityState{}
	c.mu.Unlock()

	c.wg.Add(1)
	go c.runIdentity(ctx, projectAlias, event)
}

func (c *Coordinator) runIdentity(ctx context.Context, projectAlias string, event watcher.Event) {
	defer c.wg.Done()

	for {
		if err := c.workers.Acquire(ctx, 1); err != nil {
			c.clear(event.Identity)
			return
		}
		err := c.processor.Process(ctx, projectAlias, event.Identity, event.Kind)
		c.workers.Release(1)

		if err != nil && ctx.Err() == nil {
			logger.Error("Pipeline run failed", "identity", event.Identity, "kind", string(event.Kind), "error", err)
		}

		c.mu.Lock()
		st := c.running[event.Identity]
		if st == nil || st.queued == nil || ctx.Err() != nil {
			delete(c.running, event.Identity)
			c.mu.Unlock()
			return
		}
		event = *st.queued
		st.queued = nil
		c.mu.Unlock()
	}
}

func (c *Coordinator) clear(identity string) {
	c.mu.Lock()
	delete(c.running, identity)
	c.mu.Unlock()
}

// Run consumes debounced events for one project until ctx is cancelled or the
// channel closes.
func (c *Coordinator) Run(ctx context.Context, projectAlias string, events <-chan watcher.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			c.Submit(ctx, projectAlias, event)
		}
	}
}

// Wait blocks until all in-flight identity runs finish.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}
