package scrape

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	appLog "poolcal/internal/log"
)

const defaultBrowserTimeout = 60 * time.Second

// BrowserFetcher renders pages in headless Chromium via chromedp, for sites
// that fill in their schedules with JavaScript.
type BrowserFetcher struct {
	// Timeout bounds one page load. Zero means defaultBrowserTimeout.
	Timeout time.Duration
	// Settle is an extra wait after the body is ready for late scripts.
	Settle time.Duration
	// UserAgent overrides Chromium's user agent when set.
	UserAgent string
}

func (f *BrowserFetcher) Fetch(parentCtx context.Context, pageURL string) ([]byte, error) {
	if pageURL == "" {
		return nil, fmt.Errorf("scrape: page URL is required")
	}
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = defaultBrowserTimeout
	}
	settle := f.Settle
	if settle <= 0 {
		settle = 3 * time.Second
	}

	opts := chromedp.DefaultExecAllocatorOptions[:]
	if f.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(f.UserAgent))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(parentCtx, opts...)
	defer allocCancel()

	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, timeout)
	defer timeoutCancel()

	var page string
	tasks := chromedp.Tasks{
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(settle),
		chromedp.OuterHTML("html", &page, chromedp.ByQuery),
	}
	if err := chromedp.Run(ctx, tasks); err != nil {
		return nil, fmt.Errorf("scrape: chromedp run failed for %s: %w", redactURL(pageURL), err)
	}

	appLog.Info("page rendered", "url", redactURL(pageURL), "bytes", len(page))
	return []byte(page), nil
}
