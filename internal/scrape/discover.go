package scrape

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	appLog "poolcal/internal/log"
	"poolcal/internal/model"
)

// Discovery locates pool pages on a listing page by link text.
type Discovery struct {
	Homepage string
	// HrefContains must appear in the link target, e.g. "hallenbaeder".
	HrefContains string
	// Match maps a pool name to a lower-case fragment of its link text.
	Match     map[string]string
	UserAgent string
	Timeout   time.Duration
}

// Discover visits the homepage once and returns one facility per Match
// entry that was found, sorted by name. The last matching link wins.
func (d Discovery) Discover(ctx context.Context) ([]model.Facility, error) {
	if d.Homepage == "" {
		return nil, nil
	}

	opts := []colly.CollectorOption{colly.StdlibContext(ctx)}
	if d.UserAgent != "" {
		opts = append(opts, colly.UserAgent(d.UserAgent))
	}
	c := colly.NewCollector(opts...)
	if d.Timeout > 0 {
		c.SetRequestTimeout(d.Timeout)
	}

	found := make(map[string]string)
	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		text := strings.ToLower(cleanText(e.Text))
		href := e.Request.AbsoluteURL(e.Attr("href"))
		if href == "" || (d.HrefContains != "" && !strings.Contains(href, d.HrefContains)) {
			return
		}
		for name, fragment := range d.Match {
			if fragment != "" && strings.Contains(text, strings.ToLower(fragment)) {
				found[name] = href
			}
		}
	})

	if err := c.Visit(d.Homepage); err != nil {
		return nil, fmt.Errorf("scrape: discover on %s: %w", redactURL(d.Homepage), err)
	}

	facilities := make([]model.Facility, 0, len(found))
	for name, href := range found {
		facilities = append(facilities, model.Facility{Name: name, URL: href})
	}
	sort.Slice(facilities, func(i, j int) bool { return facilities[i].Name < facilities[j].Name })

	appLog.Info("pool discovery done", "homepage", redactURL(d.Homepage), "found", len(facilities), "wanted", len(d.Match))
	return facilities, nil
}
