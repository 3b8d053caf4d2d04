package acquire

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/brotli"
	genai "github.com/google/generative-ai-go/genai"
	"golang.org/x/net/html/charset"
)

// maxGroundedHTMLBytes bounds how much page source is sent to the model.
const maxGroundedHTMLBytes = 100000

// GroundedFetchStrategy fetches a page over plain HTTP and has the
// generative model extract its readable text. Cheap and fast, but fragile
// against bot-resistant or JavaScript-heavy sources; it sits first in the
// remote chain.
type GroundedFetchStrategy struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	http    *http.Client
}

func NewGroundedFetchStrategy(client *genai.Client, model string, timeout time.Duration) *GroundedFetchStrategy {
	return &GroundedFetchStrategy{
		client:  client,
		model:   model,
		timeout: timeout,
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DisableCompression: false,
			},
		},
	}
}

func (s *GroundedFetchStrategy) Name() string { return "grounded-fetch" }

func (s *GroundedFetchStrategy) Timeout() time.Duration { return s.timeout }

func (s *GroundedFetchStrategy) Acquire(ctx context.Context, identity string, _ []byte) (*Result, error) {
	if s.client == nil {
		return nil, fmt.Errorf("gemini client not configured")
	}

	normalized, err := normalizeURL(identity)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	html, err := s.fetchHTML(ctx, normalized)
	if err != nil {
		return nil, err
	}

	title := ""
	if doc, parseErr := goquery.NewDocumentFromReader(strings.NewReader(html)); parseErr == nil {
		title = pageTitle(doc)
	}

	if len(html) > maxGroundedHTMLBytes {
		html = html[:maxGroundedHTMLBytes]
	}

	model := s.client.GenerativeModel(s.model)
	model.SetTemperature(0.1)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(`You are a precise web page text extractor. Extract ALL readable text content from this HTML exactly as it appears, maintaining the document's natural flow. Skip navigation menus, scripts, styles and advertisements. Do not summarize, interpret, or modify the content.`)},
	}

	resp, err := model.GenerateContent(ctx,
		genai.Text("Extract the readable text content from this web page:\n\n"+html),
	)
	if err != nil {
		return nil, fmt.Errorf("grounded extraction failed: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("no text extracted by model")
	}

	var extracted strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if textPart, ok := part.(genai.Text); ok {
			extracted.WriteString(string(textPart))
		}
	}

	return &Result{Text: strings.TrimSpace(extracted.String()), Title: title}, nil
}

func (s *GroundedFetchStrategy) fetchHTML(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch %s: HTTP %d", url, resp.StatusCode)
	}

	var bodyReader io.Reader = resp.Body
	// Brotli is not handled by the standard transport; gzip is.
	if strings.Contains(resp.Header.Get("Content-Encoding"), "br") {
		bodyReader = brotli.NewReader(bodyReader)
	}

	// Decode charset to UTF-8
	utf8Reader, err := charset.NewReader(bodyReader, resp.Header.Get("Content-Type"))
	if err == nil {
		bodyReader = utf8Reader
	}

	body, err := io.ReadAll(io.LimitReader(bodyReader, 10<<20))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", url, err)
	}
	return string(body), nil
}
