package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poolcal/internal/config"
	"poolcal/internal/ics"
	"poolcal/internal/model"
	"poolcal/internal/schedule"
)

const poolA = `<html><body>
<div class="intro"><p>Öffnungszeiten täglich 10:00 – 20:00 Uhr</p></div>
<div class="early"><h3>Frühschwimmen</h3><p>Montag – Freitag 06:00 – 08:00 Uhr</p></div>
</body></html>`

type fakeFetcher map[string]string

func (f fakeFetcher) Fetch(_ context.Context, pageURL string) ([]byte, error) {
	page, ok := f[pageURL]
	if !ok {
		return nil, errors.New("connection refused")
	}
	return []byte(page), nil
}

type fakeDiscovery []model.Facility

func (d fakeDiscovery) Discover(context.Context) ([]model.Facility, error) { return d, nil }

func testRunner(t *testing.T) (*runner, *config.Config) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.OutputDir = t.TempDir()
	cfg.Pools = []config.PoolConfig{
		{ID: "bad_a", Name: "Bad A", URL: "https://pools.test/a"},
		{ID: "bad_c", Name: "Bad C", URL: "https://pools.test/c"},
	}
	cfg.Discover.Homepage = "https://pools.test/"

	p, err := schedule.New(cfg.Options(), nil)
	require.NoError(t, err)

	loc, err := time.LoadLocation(cfg.Timezone)
	require.NoError(t, err)

	return &runner{
		cfg: cfg,
		fetcher: fakeFetcher{
			"https://pools.test/a": poolA,
			"https://pools.test/b": "<html><body></body></html>",
		},
		discover: fakeDiscovery{
			{Name: "Bad B", URL: "https://pools.test/b"},
			{ID: "bad_a", Name: "Bad A (listing)", URL: "https://pools.test/elsewhere"},
		},
		pipeline: p,
		sink:     &ics.FileSink{Dir: cfg.OutputDir},
		now:      func() time.Time { return time.Date(2025, 1, 15, 12, 0, 0, 0, loc) },
	}, cfg
}

func TestFacilitiesMergesDiscovery(t *testing.T) {
	r, _ := testRunner(t)
	got := r.facilities(context.Background())
	require.Len(t, got, 3)
	assert.Equal(t, "bad_a", got[0].ID)
	assert.Equal(t, "https://pools.test/a", got[0].URL)
	assert.Equal(t, "bad_c", got[1].ID)
	assert.Equal(t, model.Facility{ID: "bad_b", Name: "Bad B", URL: "https://pools.test/b"}, got[2])
}

func TestFacilitiesSkipsDiscoveredCopiesOfConfiguredPools(t *testing.T) {
	r, _ := testRunner(t)
	defaults := config.DefaultConfig()
	r.cfg.Pools = defaults.Pools
	r.discover = fakeDiscovery{
		{Name: "Georg-Arnhold-Bad Halle", URL: "https://dresdner-baeder.de/hallenbaeder/georg-arnhold-bad-halle/"},
		{Name: "Georg-Arnhold-Bad", URL: "https://dresdner-baeder.de/hallenbaeder/georg-arnhold-bad-halle"},
		{Name: "Hallenbad Klotzsche", URL: "https://dresdner-baeder.de/hallenbaeder/klotzsche/"},
	}

	got := r.facilities(context.Background())
	require.Len(t, got, 3)

	perURL := map[string]int{}
	for _, f := range got {
		perURL[urlKey(f.URL)]++
	}
	for u, n := range perURL {
		assert.Equal(t, 1, n, u)
	}
	assert.Equal(t, "georgarnholdbad_halle", got[1].ID)
	assert.Equal(t, "hallenbad_klotzsche", got[2].ID)
}

func TestRunOnceIsolatesFailures(t *testing.T) {
	r, cfg := testRunner(t)

	var mu sync.Mutex
	published := map[string]int{}
	r.publish = func(results ...schedule.Result) {
		mu.Lock()
		defer mu.Unlock()
		for _, res := range results {
			published[res.Facility.ID] = len(res.Facts)
		}
	}

	results, err := r.runOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad_c: fetch")
	require.Len(t, results, 3)

	assert.Len(t, results[0].Facts, 12)
	assert.Empty(t, results[2].Facts)
	assert.Equal(t, map[string]int{"bad_a": 12, "bad_b": 0}, published)

	assert.FileExists(t, filepath.Join(cfg.OutputDir, "schedule_bad_a.ics"))
	assert.FileExists(t, filepath.Join(cfg.OutputDir, "schedule_bad_b.ics"))
	assert.NoFileExists(t, filepath.Join(cfg.OutputDir, "schedule_bad_c.ics"))

	occ, err := ics.ReadFile(filepath.Join(cfg.OutputDir, "schedule_bad_a.ics"))
	require.NoError(t, err)
	assert.Len(t, occ, 12)
}

func TestPreviewPrintsUpcomingSessions(t *testing.T) {
	r, cfg := testRunner(t)
	_, _ = r.runOnce(context.Background())

	var buf bytes.Buffer
	require.NoError(t, runPreview(&buf, cfg, 7, r.now()))
	out := buf.String()

	assert.Contains(t, out, "Donnerstag 2025-01-16\n  06:00–08:00  Frühschwimmen (Bad A)\n  10:00–20:00  Öffentliches Schwimmen (Bad A)\n")
	assert.Contains(t, out, "Samstag 2025-01-18\n  10:00–20:00  Öffentliches Schwimmen (Bad A)\n")
	assert.NotContains(t, out, "2025-01-22")
}

func TestPreviewWithoutCalendars(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.OutputDir = filepath.Join(t.TempDir(), "none")
	require.NoError(t, os.MkdirAll(cfg.OutputDir, 0o755))

	err := runPreview(&bytes.Buffer{}, cfg, 7, time.Now())
	assert.Error(t, err)
}
