package acquire

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStrategyReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.py")
	require.NoError(t, os.WriteFile(path, []byte("print(1)"), 0o644))

	s := NewLocalStrategy(5 * time.Second)
	result, err := s.Acquire(context.Background(), path, nil)
	require.NoError(t, err)

	assert.Equal(t, "print(1)", result.Text)
	assert.Equal(t, "a.py", result.Title)
}

func TestLocalStrategyUsesPrefetchedBytes(t *testing.T) {
	// No file on disk: the prefetched bytes must be enough
	s := NewLocalStrategy(5 * time.Second)
	result, err := s.Acquire(context.Background(), "/nonexistent/b.txt", []byte("prefetched content"))
	require.NoError(t, err)

	assert.Equal(t, "prefetched content", result.Text)
	assert.Equal(t, "b.txt", result.Title)
}

func TestLocalStrategyMissingFile(t *testing.T) {
	s := NewLocalStrategy(5 * time.Second)
	_, err := s.Acquire(context.Background(), filepath.Join(t.TempDir(), "missing.txt"), nil)
	assert.Error(t, err)
}

func TestLocalStrategyCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewLocalStrategy(5 * time.Second)
	_, err := s.Acquire(ctx, "/any/path.txt", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocalStrategyInvalidPDF(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.pdf")
	require.NoError(t, os.WriteFile(path, []byte("not a pdf"), 0o644))

	s := NewLocalStrategy(5 * time.Second)
	_, err := s.Acquire(context.Background(), path, nil)
	assert.Error(t, err)
}
