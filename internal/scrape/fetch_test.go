package scrape_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poolcal/internal/scrape"
)

func TestHTTPFetcherCachesByETag(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	var conditional atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "poolcal-test", r.UserAgent())
		if r.Header.Get("If-None-Match") == `"v1"` {
			conditional.Add(1)
		}
		switch int(status.Load()) {
		case http.StatusOK:
			w.Header().Set("ETag", `"v1"`)
			_, _ = w.Write([]byte("<p>Montag 06:00 – 08:00</p>"))
		case http.StatusNotModified:
			w.WriteHeader(http.StatusNotModified)
		default:
			http.Error(w, "down", http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	f := scrape.NewHTTPFetcher(t.TempDir(), "poolcal-test", 5*time.Second)
	ctx := context.Background()

	body, err := f.Fetch(ctx, srv.URL+"/bad")
	require.NoError(t, err)
	assert.Contains(t, string(body), "Montag")

	status.Store(http.StatusNotModified)
	cached, err := f.Fetch(ctx, srv.URL+"/bad")
	require.NoError(t, err)
	assert.Equal(t, body, cached)
	assert.Equal(t, int32(1), conditional.Load())

	status.Store(http.StatusBadGateway)
	fallback, err := f.Fetch(ctx, srv.URL+"/bad")
	require.NoError(t, err)
	assert.Equal(t, body, fallback)

	_, err = f.Fetch(ctx, srv.URL+"/never-cached")
	assert.Error(t, err)
}

func TestHTTPFetcherRejectsEmptyURL(t *testing.T) {
	f := scrape.NewHTTPFetcher(t.TempDir(), "", 0)
	_, err := f.Fetch(context.Background(), "")
	assert.Error(t, err)
}
