package acquire

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"knowledge-ingest-platform/internal/logger"
	"knowledge-ingest-platform/models"
)

// ErrExhausted marks a terminal acquisition failure: every strategy in the
// chain failed or timed out.
var ErrExhausted = errors.New("all acquisition strategies failed")

// Result is the normalized output of a successful acquisition.
type Result struct {
	Text     string
	Title    string
	Strategy string
}

// Strategy turns an identity into normalized text. Implementations differ in
// cost and robustness; the orchestrator tries them strictly in order.
type Strategy interface {
	Name() string
	Timeout() time.Duration
	Acquire(ctx context.Context, identity string, prefetched []byte) (*Result, error)
}

// Orchestrator holds the ordered strategy chain per item class. Local files
// use a single read-from-disk strategy; remote documents fall through an
// ordered list expressing a cost-first preference.
type Orchestrator struct {
	local     []Strategy
	remote    []Strategy
	minLength int
}

func NewOrchestrator(local, remote []Strategy, minLength int) *Orchestrator {
	return &Orchestrator{
		local:     local,
		remote:    remote,
		minLength: minLength,
	}
}

// Acquire runs the strategy chain for identity until the first success.
func (o *Orchestrator) Acquire(ctx context.Context, identity string) (*Result, error) {
	return o.AcquireWith(ctx, identity, nil)
}

// AcquireWith is Acquire with optionally prefetched raw bytes. Only local
// strategies may reuse them: the local fingerprint read is already the
// canonical read, while a remote fingerprint fetch may have used a cheaper
// path than the chain below.
func (o *Orchestrator) AcquireWith(ctx context.Context, identity string, prefetched []byte) (*Result, error) {
	chain := o.local
	if models.IsRemote(identity) {
		chain = o.remote
		prefetched = nil
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("no acquisition strategies configured for %s", identity)
	}

	var failures []error
	for _, s := range chain {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		strategyCtx, cancel := context.WithTimeout(ctx, s.Timeout())
		result, err := s.Acquire(strategyCtx, identity, prefetched)
		cancel()

		if err != nil {
			logger.Debug("Acquisition strategy failed", "strategy", s.Name(), "identity", identity, "error", err)
			failures = append(failures, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}

		if reason := o.trivialReason(result.Text); reason != "" {
			logger.Debug("Acquisition strategy returned trivial content", "strategy", s.Name(), "identity", identity, "reason", reason)
			failures = append(failures, fmt.Errorf("%s: %s", s.Name(), reason))
			continue
		}

		result.Strategy = s.Name()
		return result, nil
	}

	return nil, errors.Join(append([]error{ErrExhausted}, failures...)...)
}

// trivialReason reports why content fails the success criterion, or "" if it
// passes. Trivial content: empty, below the minimum length threshold, or
// dominated by null bytes (binary).
func (o *Orchestrator) trivialReason(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "empty content"
	}
	if len(trimmed) < o.minLength {
		return fmt.Sprintf("content below minimum length (%d < %d)", len(trimmed), o.minLength)
	}
	if looksBinary(text) {
		return "binary content"
	}
	return ""
}
