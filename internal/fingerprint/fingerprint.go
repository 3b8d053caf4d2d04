package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"knowledge-ingest-platform/models"
)

// maxRemoteBytes bounds how much of a remote body the fingerprint read pulls.
const maxRemoteBytes = 10 << 20 // 10MB

// Fingerprinter computes the content hash that decides whether downstream
// work is necessary. Local identities read from disk; remote identities use
// the cheapest fetch available (a plain GET), which is not the canonical
// acquisition path.
type Fingerprinter struct {
	client *http.Client
}

func New() *Fingerprinter {
	return &Fingerprinter{
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Fingerprint reads the current bytes at identity and returns their SHA-256
// hex digest along with the raw content. For local files the raw bytes are
// the canonical content and may be reused directly by acquisition; for
// remote identities the caller discards them and re-acquires through the
// full strategy chain.
func (f *Fingerprinter) Fingerprint(ctx context.Context, identity string) (string, []byte, error) {
	if models.IsRemote(identity) {
		return f.fingerprintRemote(ctx, identity)
	}
	return fingerprintLocal(identity)
}

func fingerprintLocal(path string) (string, []byte, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Hash(content), content, nil
}

func (f *Fingerprinter) fingerprintRemote(ctx context.Context, url string) (string, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", nil, fmt.Errorf("invalid URL %s: %w", url, err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("fingerprint fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", nil, fmt.Errorf("fingerprint fetch %s: HTTP %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteBytes))
	if err != nil {
		return "", nil, fmt.Errorf("fingerprint read %s: %w", url, err)
	}

	return Hash(body), body, nil
}

// Hash returns the hex-encoded SHA-256 digest of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
