package acquire

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStrategy struct {
	name       string
	result     *Result
	err        error
	calls      int
	prefetched []byte
}

func (f *fakeStrategy) Name() string           { return f.name }
func (f *fakeStrategy) Timeout() time.Duration { return time.Second }

func (f *fakeStrategy) Acquire(_ context.Context, _ string, prefetched []byte) (*Result, error) {
	f.calls++
	f.prefetched = prefetched
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func TestOrchestratorFirstStrategyWins(t *testing.T) {
	first := &fakeStrategy{name: "cheap", result: &Result{Text: "enough content here", Title: "t"}}
	second := &fakeStrategy{name: "expensive", result: &Result{Text: "should not be needed"}}
	o := NewOrchestrator(nil, []Strategy{first, second}, 8)

	result, err := o.Acquire(context.Background(), "https://example.com/doc")
	require.NoError(t, err)

	assert.Equal(t, "cheap", result.Strategy)
	assert.Equal(t, "enough content here", result.Text)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 0, second.calls, "later strategies must not run after a success")
}

func TestOrchestratorFallsThroughOnError(t *testing.T) {
	first := &fakeStrategy{name: "cheap", err: errors.New("blocked")}
	second := &fakeStrategy{name: "expensive", result: &Result{Text: "recovered content"}}
	o := NewOrchestrator(nil, []Strategy{first, second}, 8)

	result, err := o.Acquire(context.Background(), "https://example.com/doc")
	require.NoError(t, err)

	assert.Equal(t, "expensive", result.Strategy)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
}

func TestOrchestratorTrivialContentIsFailure(t *testing.T) {
	short := &fakeStrategy{name: "short", result: &Result{Text: "hi"}}
	good := &fakeStrategy{name: "good", result: &Result{Text: "substantial content"}}
	o := NewOrchestrator(nil, []Strategy{short, good}, 8)

	result, err := o.Acquire(context.Background(), "https://example.com/doc")
	require.NoError(t, err)

	assert.Equal(t, "good", result.Strategy)
}

func TestOrchestratorExhaustion(t *testing.T) {
	first := &fakeStrategy{name: "one", err: errors.New("boom")}
	second := &fakeStrategy{name: "two", result: &Result{Text: ""}}
	o := NewOrchestrator(nil, []Strategy{first, second}, 8)

	_, err := o.Acquire(context.Background(), "https://example.com/doc")
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrExhausted)
	// The summary names every strategy with its failure
	assert.Contains(t, err.Error(), "one: boom")
	assert.Contains(t, err.Error(), "two: empty content")
}

func TestOrchestratorLocalChainForPaths(t *testing.T) {
	local := &fakeStrategy{name: "local", result: &Result{Text: "file content here"}}
	remote := &fakeStrategy{name: "remote", result: &Result{Text: "web content here"}}
	o := NewOrchestrator([]Strategy{local}, []Strategy{remote}, 8)

	result, err := o.Acquire(context.Background(), "/project/a.py")
	require.NoError(t, err)

	assert.Equal(t, "local", result.Strategy)
	assert.Equal(t, 0, remote.calls)
}

func TestOrchestratorPrefetchedBytes(t *testing.T) {
	local := &fakeStrategy{name: "local", result: &Result{Text: "file content here"}}
	remote := &fakeStrategy{name: "remote", result: &Result{Text: "web content here"}}
	o := NewOrchestrator([]Strategy{local}, []Strategy{remote}, 8)

	raw := []byte("raw bytes")

	_, err := o.AcquireWith(context.Background(), "/project/a.py", raw)
	require.NoError(t, err)
	assert.Equal(t, raw, local.prefetched, "local strategies reuse the fingerprint read")

	_, err = o.AcquireWith(context.Background(), "https://example.com/doc", raw)
	require.NoError(t, err)
	assert.Nil(t, remote.prefetched, "remote strategies must re-acquire")
}

func TestOrchestratorNoStrategies(t *testing.T) {
	o := NewOrchestrator(nil, nil, 8)
	_, err := o.Acquire(context.Background(), "/project/a.py")
	assert.Error(t, err)
}

func TestOrchestratorCancelledContext(t *testing.T) {
	s := &fakeStrategy{name: "never", result: &Result{Text: "content"}}
	o := NewOrchestrator([]Strategy{s}, nil, 8)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Acquire(ctx, "/project/a.py")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, s.calls)
}
