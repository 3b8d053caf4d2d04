package acquire

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
)

// ScrapeStrategy renders a page in a headless browser before extracting its
// text. Slower and heavier than a plain fetch, but works against
// JavaScript-heavy sources.
type ScrapeStrategy struct {
	timeout          time.Duration
	waitSelector     string
	networkIdleAfter time.Duration
}

func NewScrapeStrategy(timeout time.Duration) *ScrapeStrategy {
	return &ScrapeStrategy{
		timeout:          timeout,
		networkIdleAfter: 1200 * time.Millisecond,
	}
}

func (s *ScrapeStrategy) Name() string { return "browser-scrape" }

func (s *ScrapeStrategy) Timeout() time.Duration { return s.timeout }

func (s *ScrapeStrategy) Acquire(ctx context.Context, identity string, _ []byte) (*Result, error) {
	normalized, err := normalizeURL(identity)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	html, err := s.renderPageHTML(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("render failed: %w", err)
	}
	if html == "" {
		return nil, fmt.Errorf("empty page after render")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse rendered HTML: %w", err)
	}

	return &Result{
		Text:  extractMainContent(doc.Selection),
		Title: pageTitle(doc),
	}, nil
}

// renderPageHTML launches a headless browser, waits for readiness and network idle, then returns HTML
func (s *ScrapeStrategy) renderPageHTML(ctx context.Context, urlStr string) (string, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx,
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.UserAgent(browserUserAgent),
	)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	var html string

	// Step 1: Navigate
	if err := chromedp.Run(browserCtx, chromedp.Navigate(urlStr)); err != nil {
		return "", err
	}

	// Step 2: Quick ready check (soft-fail)
	{
		stepCtx, cancelStep := context.WithTimeout(browserCtx, 10*time.Second)
		defer cancelStep()
		_ = chromedp.Run(stepCtx, chromedp.WaitReady("body", chromedp.ByQuery))
	}

	// Step 3: Optional selector wait (soft-fail)
	if s.waitSelector != "" {
		stepCtx, cancelStep := context.WithTimeout(browserCtx, 15*time.Second)
		defer cancelStep()
		_ = chromedp.Run(stepCtx, chromedp.WaitVisible(s.waitSelector, chromedp.ByQuery))
	}

	// Step 4: Optional network idle (soft-fail, cap to 5s)
	if s.networkIdleAfter > 0 {
		idleCap := s.networkIdleAfter
		if idleCap > 5*time.Second {
			idleCap = 5 * time.Second
		}
		stepCtx, cancelStep := context.WithTimeout(browserCtx, idleCap+1*time.Second)
		defer cancelStep()
		_ = chromedp.Run(stepCtx, waitForNetworkIdle(idleCap))
	}

	// Step 5: Always attempt to read HTML
	if err := chromedp.Run(browserCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

// waitForNetworkIdle waits until no network requests are in flight for the given duration
func waitForNetworkIdle(d time.Duration) chromedp.ActionFunc {
	// Heuristic implemented in the page: track last network activity via PerformanceObserver
	js := `(function(waitMs){
      return new Promise((resolve)=>{
        if (!('PerformanceObserver' in window)) {
          setTimeout(resolve, waitMs);
          return;
        }
        let last = Date.now();
        const obs = new PerformanceObserver(()=>{ last = Date.now(); });
        try { obs.observe({entryTypes:['resource','navigation']}); } catch(e) {}
        const tick = () => {
          if (Date.now()-last >= waitMs) { try { obs.disconnect(); } catch(e){} resolve(); return; }
          setTimeout(tick, 100);
        };
        tick();
      });
    })(%d);`
	return func(ctx context.Context) error {
		return chromedp.Run(ctx, chromedp.Evaluate(fmt.Sprintf(js, int(d.Milliseconds())), nil))
	}
}
