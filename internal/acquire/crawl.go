package acquire

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/brotli"
	colly "github.com/gocolly/colly/v2"
	"golang.org/x/net/html/charset"
)

var (
	// Global HTTP transport with compression enabled
	crawlTransport = &http.Transport{
		DisableCompression: false,
	}
)

// CrawlStrategy discovers and aggregates content by following links from the
// starting URL, shallow (depth 2) and domain-bound. The most robust and most
// expensive remote strategy; it runs last in the chain.
type CrawlStrategy struct {
	maxPages int
	timeout  time.Duration
}

func NewCrawlStrategy(maxPages int, timeout time.Duration) *CrawlStrategy {
	if maxPages <= 0 {
		maxPages = 10
	}
	return &CrawlStrategy{maxPages: maxPages, timeout: timeout}
}

func (s *CrawlStrategy) Name() string { return "shallow-crawl" }

func (s *CrawlStrategy) Timeout() time.Duration { return s.timeout }

type crawledPage struct {
	url     string
	title   string
	content string
}

func (s *CrawlStrategy) Acquire(ctx context.Context, identity string, _ []byte) (*Result, error) {
	type crawlOutcome struct {
		result *Result
		err    error
	}

	// colly has no context plumbing; run the crawl aside so cancellation at
	// least abandons the wait.
	outcomeCh := make(chan crawlOutcome, 1)
	go func() {
		result, err := s.crawl(identity)
		outcomeCh <- crawlOutcome{result: result, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case outcome := <-outcomeCh:
		return outcome.result, outcome.err
	}
}

func (s *CrawlStrategy) crawl(startURL string) (*Result, error) {
	parsedURL, err := url.Parse(startURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme == "" {
		parsedURL.Scheme = "https"
		startURL = parsedURL.String()
	}

	normalizedStartURL, err := normalizeURL(startURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL format: %w", err)
	}

	// Determine allowed domains from the start hostname
	var allowedDomains []string
	hostname := parsedURL.Hostname()
	if hostname != "" {
		hostnameClean := strings.TrimPrefix(strings.ToLower(hostname), "www.")
		allowedDomains = []string{hostnameClean, "www." + hostnameClean, hostname}
	}

	// A fresh collector per crawl - each crawl gets its own state
	options := []colly.CollectorOption{
		colly.Async(true),
		colly.MaxDepth(2),
	}
	if len(allowedDomains) > 0 {
		options = append(options, colly.AllowedDomains(allowedDomains...))
	}

	c := colly.NewCollector(options...)
	c.WithTransport(crawlTransport)

	if s.timeout > 0 {
		c.SetRequestTimeout(s.timeout)
	} else {
		c.SetRequestTimeout(60 * time.Second)
	}

	c.UserAgent = browserUserAgent

	c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       2 * time.Second,
		RandomDelay: 1 * time.Second,
	})

	var (
		pagesMu  sync.Mutex
		pages    []crawledPage
		startErr error
	)
	processed := sync.Map{}
	queued := sync.Map{}

	// Browser-like headers to avoid 403 Forbidden
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
		r.Headers.Set("Accept-Encoding", "gzip, deflate, br, zstd")
		r.Headers.Set("Connection", "keep-alive")
		r.Headers.Set("Upgrade-Insecure-Requests", "1")

		if reqURL, err := url.Parse(r.URL.String()); err == nil {
			r.Headers.Set("Referer", fmt.Sprintf("%s://%s/", reqURL.Scheme, reqURL.Host))
		}
	})

	c.OnResponse(func(r *colly.Response) {
		// Skip binary files (PDFs, images, etc.)
		contentType := r.Headers.Get("Content-Type")
		if contentType != "" && !strings.Contains(contentType, "text/html") && !strings.Contains(contentType, "application/xhtml+xml") {
			return
		}

		contentEncoding := r.Headers.Get("Content-Encoding")
		var bodyReader io.Reader = bytes.NewReader(r.Body)

		// Brotli is not handled by the standard transport; gzip is.
		if strings.Contains(contentEncoding, "br") {
			brReader := brotli.NewReader(bodyReader)
			if decompressed, err := io.ReadAll(brReader); err == nil {
				r.Body = decompressed
				bodyReader = bytes.NewReader(decompressed)
			}
		}

		// Decode charset to UTF-8
		if len(r.Body) > 0 {
			if utf8Reader, err := charset.NewReader(bodyReader, contentType); err == nil {
				if decodedBody, readErr := io.ReadAll(utf8Reader); readErr == nil && len(decodedBody) > 0 {
					r.Body = decodedBody
				}
			}
		}
	})

	c.OnHTML("html", func(e *colly.HTMLElement) {
		pagesMu.Lock()
		defer pagesMu.Unlock()

		if len(pages) >= s.maxPages {
			return
		}

		normalizedURL, err := normalizeURL(e.Request.URL.String())
		if err != nil {
			return
		}
		if _, exists := processed.LoadOrStore(normalizedURL, true); exists {
			return
		}

		doc := e.DOM
		title := strings.TrimSpace(doc.Find("title").Text())
		content := extractMainContent(e.DOM)
		if len(content) < 50 {
			content = collapseBlankLines(doc.Find("body").Text())
		}
		if len(strings.Fields(content)) < 10 {
			// Skip pages with too little content
			return
		}

		pages = append(pages, crawledPage{url: normalizedURL, title: title, content: content})

		// Follow links
		if len(pages) < s.maxPages {
			linkCount := 0
			doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
				if len(pages) >= s.maxPages || linkCount >= 20 {
					return
				}

				href, exists := sel.Attr("href")
				if !exists || href == "" {
					return
				}
				hrefLower := strings.ToLower(href)
				if strings.HasPrefix(href, "#") ||
					strings.HasPrefix(hrefLower, "javascript:") ||
					strings.HasPrefix(hrefLower, "mailto:") ||
					strings.HasPrefix(hrefLower, "tel:") {
					return
				}

				absoluteURL := e.Request.AbsoluteURL(href)
				if absoluteURL == "" {
					return
				}
				normalized, err := normalizeURL(absoluteURL)
				if err != nil {
					return
				}

				if _, queuedExists := queued.LoadOrStore(normalized, true); queuedExists {
					return
				}
				if _, processedExists := processed.Load(normalized); processedExists {
					return
				}

				if isURLAllowed(normalized, allowedDomains) {
					linkCount++
					c.Visit(normalized)
				}
			})
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		normalizedErrURL, _ := normalizeURL(r.Request.URL.String())
		if normalizedErrURL != normalizedStartURL {
			return
		}

		pagesMu.Lock()
		defer pagesMu.Unlock()
		if startErr == nil && len(pages) == 0 {
			switch {
			case r.StatusCode == 403:
				startErr = fmt.Errorf("access forbidden (403): the site blocked the crawler")
			case r.StatusCode == 429:
				startErr = fmt.Errorf("rate limited (429): too many requests")
			case r.StatusCode >= 500:
				startErr = fmt.Errorf("server error (%d)", r.StatusCode)
			default:
				startErr = fmt.Errorf("failed to crawl %s: %w", normalizedStartURL, err)
			}
		}
	})

	queued.Store(normalizedStartURL, true)
	if err := c.Visit(normalizedStartURL); err != nil && !strings.Contains(err.Error(), "already visited") {
		return nil, fmt.Errorf("failed to start crawl: %w", err)
	}
	c.Wait()

	pagesMu.Lock()
	defer pagesMu.Unlock()

	if len(pages) == 0 {
		if startErr != nil {
			return nil, startErr
		}
		return nil, fmt.Errorf("no pages crawled from %s", normalizedStartURL)
	}

	// The starting page leads; discovered pages follow as titled sections.
	var text strings.Builder
	text.WriteString(pages[0].content)
	for _, page := range pages[1:] {
		text.WriteString("\n\n")
		if page.title != "" {
			text.WriteString(page.title)
			text.WriteString("\n")
		}
		text.WriteString(page.content)
	}

	return &Result{Text: text.String(), Title: pages[0].title}, nil
}

// isURLAllowed checks if a URL should be followed during a crawl
func isURLAllowed(urlStr string, allowedDomains []string) bool {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}

	if len(allowedDomains) > 0 {
		hostname := strings.ToLower(parsed.Hostname())
		hostnameClean := strings.TrimPrefix(hostname, "www.")
		domainAllowed := false
		for _, allowedDomain := range allowedDomains {
			allowedDomain = strings.ToLower(strings.TrimPrefix(allowedDomain, "www."))
			if hostnameClean == allowedDomain || strings.HasSuffix(hostnameClean, "."+allowedDomain) {
				domainAllowed = true
				break
			}
		}
		if !domainAllowed {
			return false
		}
	}

	// Filter out common non-content URLs
	excludedPatterns := []string{
		"/wp-json/", "/api/", "/ajax/",
		".pdf", ".jpg", ".jpeg", ".png", ".gif", ".svg", ".css", ".js", ".xml",
		"/feed/", "/rss/", "/atom/",
		"/search?", "/?s=",
		"/wp-admin/", "/wp-includes/",
	}

	pathLower := strings.ToLower(parsed.Path)
	queryLower := strings.ToLower(parsed.RawQuery)
	for _, pattern := range excludedPatterns {
		if strings.Contains(pathLower, pattern) || strings.Contains(queryLower, pattern) {
			return false
		}
	}

	return true
}
