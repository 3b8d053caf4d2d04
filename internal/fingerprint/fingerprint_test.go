package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintLocalFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.py")
	content := []byte("print(1)")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	sum := sha256.Sum256(content)
	want := hex.EncodeToString(sum[:])

	f := New()
	hash, raw, err := f.Fingerprint(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, want, hash)
	assert.Equal(t, content, raw)
}

func TestFingerprintLocalMissingFile(t *testing.T) {
	f := New()
	_, _, err := f.Fingerprint(context.Background(), filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestFingerprintStableAcrossReads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.md")
	require.NoError(t, os.WriteFile(path, []byte("# stable content"), 0o644))

	f := New()
	first, _, err := f.Fingerprint(context.Background(), path)
	require.NoError(t, err)
	second, _, err := f.Fingerprint(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestFingerprintChangesWithContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.md")
	require.NoError(t, os.WriteFile(path, []byte("version one"), 0o644))

	f := New()
	before, _, err := f.Fingerprint(context.Background(), path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("version two"), 0o644))
	after, _, err := f.Fingerprint(context.Background(), path)
	require.NoError(t, err)

	assert.NotEqual(t, before, after)
}

func TestFingerprintRemote(t *testing.T) {
	body := []byte("<html><body>remote content</body></html>")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer srv.Close()

	sum := sha256.Sum256(body)
	want := hex.EncodeToString(sum[:])

	f := New()
	hash, raw, err := f.Fingerprint(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, want, hash)
	assert.Equal(t, body, raw)
}

func TestFingerprintRemoteErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := New()
	_, _, err := f.Fingerprint(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestHash(t *testing.T) {
	sum := sha256.Sum256([]byte("abc"))
	assert.Equal(t, hex.EncodeToString(sum[:]), Hash([]byte("abc")))
}
