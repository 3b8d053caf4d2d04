package enrich

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"knowledge-ingest-platform/internal/logger"
	"knowledge-ingest-platform/models"
)

// ErrQueueClosed is returned for submissions after Close.
var ErrQueueClosed = errors.New("enrichment queue closed")

// Provider turns acquired text into an enrichment result.
type Provider interface {
	Describe(ctx context.Context, identity, text string) (*models.EnrichmentResult, error)
}

type job struct {
	ctx      context.Context
	identity string
	text     string
	resp     chan jobResult
}

type jobResult struct {
	result *models.EnrichmentResult
	err    error
}

// Queue serializes provider calls behind a request-spacing limiter and a
// concurrency cap. Jobs dispatch in submission order; a job that misses its
// caller's deadline while queued is dropped without a provider call.
type Queue struct {
	provider    Provider
	limiter     *rate.Limiter
	workers     *semaphore.Weighted
	maxBytes    int64
	callTimeout time.Duration

	jobs      chan *job
	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

func NewQueue(provider Provider, rpm, concurrency int, maxBytes int64, callTimeout time.Duration) *Queue {
	if rpm <= 0 {
		rpm = 10
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Queue{
		provider:    provider,
		limiter:     rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1),
		workers:     semaphore.NewWeighted(int64(concurrency)),
		maxBytes:    maxBytes,
		callTimeout: callTimeout,
		jobs:        make(chan *job, 256),
		done:        make(chan struct{}),
	}
}

// Start launches the dispatcher. It returns immediately.
func (q *Queue) Start(ctx context.Context) {
	q.wg.Add(1)
	go q.dispatch(ctx)
}

func (q *Queue) dispatch(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.done:
			return
		case j := <-q.jobs:
			// Callers that gave up while queued get skipped before
			// spending a rate token.
			if j.ctx.Err() != nil {
				j.resp <- jobResult{err: j.ctx.Err()}
				continue
			}

			if err := q.limiter.Wait(ctx); err != nil {
				j.resp <- jobResult{err: err}
				return
			}
			if err := q.workers.Acquire(ctx, 1); err != nil {
				j.resp <- jobResult{err: err}
				return
			}

			go func(j *job) {
				defer q.workers.Release(1)

				callCtx := j.ctx
				if q.callTimeout > 0 {
					var cancel context.CancelFunc
					callCtx, cancel = context.WithTimeout(j.ctx, q.callTimeout)
					defer cancel()
				}

				result, err := q.provider.Describe(callCtx, j.identity, j.text)
				j.resp <- jobResult{result: result, err: err}
			}(j)
		}
	}
}

// Enrich submits text for description and blocks until the result is ready
// or ctx expires. Oversized and empty inputs are skipped, not failed: both
// return (nil, nil).
func (q *Queue) Enrich(ctx context.Context, identity, text string) (*models.EnrichmentResult, error) {
	if text == "" {
		return nil, nil
	}
	if q.maxBytes > 0 && int64(len(text)) > q.maxBytes {
		logger.Debug("Skipping enrichment for oversized content",
			"identity", identity, "bytes", len(text), "max_bytes", q.maxBytes)
		return nil, nil
	}

	j := &job{
		ctx:      ctx,
		identity: identity,
		text:     text,
		resp:     make(chan jobResult, 1),
	}

	select {
	case <-q.done:
		return nil, ErrQueueClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	case q.jobs <- j:
	}

	select {
	case <-q.done:
		return nil, ErrQueueClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-j.resp:
		return r.result, r.err
	}
}

// Close stops the dispatcher. In-flight provider calls finish on their own.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.done)
	})
	q.wg.Wait()
}
