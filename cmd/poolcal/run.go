package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"poolcal/internal/config"
	"poolcal/internal/ics"
	appLog "poolcal/internal/log"
	"poolcal/internal/model"
	"poolcal/internal/oracle"
	"poolcal/internal/schedule"
	"poolcal/internal/scrape"
)

// discoverer finds additional facilities at run time.
type discoverer interface {
	Discover(ctx context.Context) ([]model.Facility, error)
}

// runner executes one fetch → extract → write cycle over all facilities.
type runner struct {
	cfg      *config.Config
	fetcher  scrape.Fetcher
	discover discoverer
	pipeline *schedule.Pipeline
	sink     ics.Sink
	// publish, if set, receives every facility result.
	publish func(...schedule.Result)
	now     func() time.Time
}

func newRunner(ctx context.Context, cfg *config.Config) (*runner, error) {
	var labeler schedule.Labeler
	if schedule.Mode(cfg.Resolver) == schedule.ModeOracle {
		l, err := oracle.NewGemini(ctx, "", cfg.Oracle.Model, cfg.Oracle.CacheSize,
			time.Duration(cfg.Oracle.TimeoutSeconds)*time.Second)
		if err != nil {
			return nil, fmt.Errorf("oracle: %w", err)
		}
		labeler = l
	}

	p, err := schedule.New(cfg.Options(), labeler)
	if err != nil {
		return nil, err
	}

	timeout := time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second
	var fetcher scrape.Fetcher
	switch cfg.Fetch.Mode {
	case "http":
		fetcher = scrape.NewHTTPFetcher(cfg.Fetch.CacheDir, cfg.Fetch.UserAgent, timeout)
	default:
		fetcher = &scrape.BrowserFetcher{Timeout: timeout, UserAgent: cfg.Fetch.UserAgent}
	}

	return &runner{
		cfg:     cfg,
		fetcher: fetcher,
		discover: scrape.Discovery{
			Homepage:     cfg.Discover.Homepage,
			HrefContains: cfg.Discover.HrefContains,
			Match:        cfg.Discover.Match,
			UserAgent:    cfg.Fetch.UserAgent,
			Timeout:      timeout,
		},
		pipeline: p,
		sink:     &ics.FileSink{Dir: cfg.OutputDir},
		now:      time.Now,
	}, nil
}

// facilities merges configured pools with discovered ones. A configured
// pool wins over a discovered one with the same id or page URL.
func (r *runner) facilities(ctx context.Context) []model.Facility {
	out := make([]model.Facility, 0, len(r.cfg.Pools))
	seenID := map[string]bool{}
	seenURL := map[string]bool{}
	for _, p := range r.cfg.Pools {
		out = append(out, model.Facility{ID: p.ID, Name: p.Name, URL: p.URL})
		seenID[p.ID] = true
		seenURL[urlKey(p.URL)] = true
	}

	if r.discover == nil || r.cfg.Discover.Homepage == "" {
		return out
	}
	found, err := r.discover.Discover(ctx)
	if err != nil {
		appLog.Error("pool discovery failed; using configured pools only", err)
		return out
	}
	for _, f := range found {
		if f.ID == "" {
			f.ID = config.Slug(f.Name)
		}
		if seenID[f.ID] || seenURL[urlKey(f.URL)] {
			appLog.Debug("discovered pool already configured", "id", f.ID, "url", f.URL)
			continue
		}
		seenID[f.ID] = true
		seenURL[urlKey(f.URL)] = true
		out = append(out, f)
	}
	return out
}

// urlKey compares page URLs regardless of case and trailing slash.
func urlKey(u string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(u)), "/")
}

// runOnce processes every facility with bounded concurrency. A failing
// facility is logged and reported but never stops the others.
func (r *runner) runOnce(ctx context.Context) ([]schedule.Result, error) {
	start := r.now()
	facilities := r.facilities(ctx)

	var (
		mu      sync.Mutex
		results = make([]schedule.Result, len(facilities))
		errs    []error
	)

	var g errgroup.Group
	g.SetLimit(r.cfg.Concurrency)
	for i, f := range facilities {
		g.Go(func() error {
			res, err := r.runFacility(ctx, f, start)
			if err != nil {
				appLog.Error("facility failed", err, "facility", f.ID)
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	facts := 0
	for _, res := range results {
		facts += len(res.Facts)
	}
	appLog.Info("refresh completed",
		"facilities", len(facilities),
		"failed", len(errs),
		"facts", facts,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return results, errors.Join(errs...)
}

func (r *runner) runFacility(ctx context.Context, f model.Facility, today time.Time) (schedule.Result, error) {
	res := schedule.Result{Facility: f}

	page, err := r.fetcher.Fetch(ctx, f.URL)
	if err != nil {
		return res, fmt.Errorf("%s: fetch: %w", f.ID, err)
	}
	blocks, err := scrape.Blocks(page)
	if err != nil {
		return res, fmt.Errorf("%s: blocks: %w", f.ID, err)
	}

	res = r.pipeline.Run(ctx, f, blocks, today)

	if err := r.sink.Write(ctx, f.ID, res.Occurrences); err != nil {
		return res, fmt.Errorf("%s: write: %w", f.ID, err)
	}
	if r.publish != nil {
		r.publish(res)
	}
	return res, nil
}
