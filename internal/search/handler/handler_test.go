package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seniorliving/directory-search/internal/analytics"
	"github.com/seniorliving/directory-search/internal/directory"
	"github.com/seniorliving/directory-search/internal/search/cache"
	"github.com/seniorliving/directory-search/internal/search/engine"
	"github.com/seniorliving/directory-search/pkg/config"
	apperrors "github.com/seniorliving/directory-search/pkg/errors"
	"github.com/seniorliving/directory-search/pkg/metrics"
)

type stubProvider struct {
	snap       *directory.Snapshot
	err        error
	refreshErr error
	refreshes  int
}

func (p *stubProvider) Get(context.Context) (*directory.Snapshot, error) {
	return p.snap, p.err
}

func (p *stubProvider) Refresh(context.Context) (*directory.Snapshot, error) {
	p.refreshes++
	if p.refreshErr != nil {
		return nil, p.refreshErr
	}
	return p.snap, nil
}

type recordingTracker struct {
	mu     sync.Mutex
	events []analytics.SearchEvent
}

func (r *recordingTracker) Track(e analytics.SearchEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingTracker) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = string(e.Type)
	}
	return out
}

func snapshot() *directory.Snapshot {
	cities := []directory.City{
		{Name: "Austin", State: "Texas", Slug: "austin-tx", Population: 961855},
		{Name: "Austintown", State: "Ohio", Slug: "austintown-oh", Population: 29000},
		{Name: "Boise", State: "Idaho", Slug: "boise-id", Population: 235000},
	}
	facilities := []directory.Facility{
		{ID: "f1", Name: "Sunrise of Austin", State: "TX", CitySlug: "austin-tx", Rating: 4.5,
			CareTypes: []string{"memory-care"}, Amenities: []string{"pool"}},
	}
	return directory.NewSnapshot(cities, facilities, directory.Meta{Source: "stub"})
}

type fixture struct {
	handler  *Handler
	provider *stubProvider
	tracker  *recordingTracker
	cache    *cache.QueryCache
	metrics  *metrics.Metrics
	mux      *http.ServeMux
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	m := metrics.New(prometheus.NewRegistry())
	f := &fixture{
		provider: &stubProvider{snap: snapshot()},
		tracker:  &recordingTracker{},
		cache:    cache.New(nil, config.RedisConfig{LocalTTL: time.Minute}, m),
		metrics:  m,
		mux:      http.NewServeMux(),
	}
	f.handler = New(f.provider, engine.New(engine.TextScored), f.cache, f.tracker, Config{Metrics: m, MaxSuggestions: 5})
	f.handler.Register(f.mux)
	return f
}

func (f *fixture) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestSearch(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/search?q=austin&limit=2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	resp := decode[engine.Response](t, rec)
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, 2, resp.Limit)
	assert.Equal(t, 2, resp.Pages)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "Austin", resp.Results[0].Name())
	assert.Equal(t, "Austintown", resp.Results[1].Name())

	assert.Equal(t, []string{string(analytics.EventSearch)}, f.tracker.types())
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.SearchQueriesTotal.WithLabelValues("hit")))
}

func TestSearchServesFromCache(t *testing.T) {
	f := newFixture(t)

	f.do(t, http.MethodGet, "/api/v1/search?q=austin")
	rec := f.do(t, http.MethodGet, "/api/v1/search?q=Austin")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "hit", rec.Header().Get("X-Cache"))

	hits, misses := f.cache.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
	require.Len(t, f.tracker.events, 2)
	assert.True(t, f.tracker.events[1].CacheHit)
}

func TestSearchZeroResult(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/search?q=zzzzzz")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[map[string]any](t, rec)
	assert.EqualValues(t, 0, resp["total"])
	assert.Equal(t, []any{}, resp["results"])
	assert.Equal(t, []string{string(analytics.EventZeroResult)}, f.tracker.types())
}

func TestSearchFilters(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/search?type=Memory+Care&amenities=pool&cost=bogus")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[engine.Response](t, rec)
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "Sunrise of Austin", resp.Results[0].Name())

	require.Len(t, f.tracker.events, 1)
	assert.Equal(t, map[string]string{"type": "memory-care", "amenities": "pool"}, f.tracker.events[0].Filters)
}

func TestSearchUnavailable(t *testing.T) {
	f := newFixture(t)
	f.provider.err = apperrors.Unavailable(fmt.Errorf("all sources failed"))

	rec := f.do(t, http.MethodGet, "/api/v1/search?q=austin")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	body := decode[apperrors.Body](t, rec)
	assert.Equal(t, apperrors.ErrDataUnavailable.Error(), body.Error)
	assert.Equal(t, "all sources failed", body.Message)
	assert.Empty(t, f.tracker.types())
}

func TestAutocomplete(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/autocomplete?q=aus")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[SuggestResponse](t, rec)
	assert.Equal(t, "aus", resp.Query)
	require.Len(t, resp.Suggestions, 2)
	assert.Equal(t, "austin-tx", resp.Suggestions[0].Slug)

	rec = f.do(t, http.MethodGet, "/api/v1/autocomplete?q=a")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[SuggestResponse](t, rec).Suggestions)

	assert.Equal(t, []string{string(analytics.EventAutocomplete)}, f.tracker.types())
}

func TestRefresh(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodGet, "/api/v1/search?q=austin")
	require.Equal(t, 1, f.cache.Entries())

	rec := f.do(t, http.MethodPost, "/api/v1/feed/refresh")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[map[string]any](t, rec)
	assert.Equal(t, "refreshed", body["status"])
	assert.EqualValues(t, 3, body["cities"])
	assert.EqualValues(t, 1, body["facilities"])
	assert.Equal(t, 0, f.cache.Entries())
	assert.Equal(t, 1, f.provider.refreshes)
	assert.Contains(t, f.tracker.types(), string(analytics.EventFeedRefresh))

	rec = f.do(t, http.MethodGet, "/api/v1/feed/refresh")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRefreshFailure(t *testing.T) {
	f := newFixture(t)
	f.provider.refreshErr = apperrors.Unavailable(fmt.Errorf("feed down"))

	rec := f.do(t, http.MethodPost, "/api/v1/feed/refresh")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCacheEndpoints(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodGet, "/api/v1/search?q=austin")
	f.do(t, http.MethodGet, "/api/v1/search?q=austin")

	rec := f.do(t, http.MethodGet, "/api/v1/cache/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[map[string]any](t, rec)
	assert.EqualValues(t, 1, stats["hits"])
	assert.EqualValues(t, 1, stats["misses"])
	assert.Equal(t, "50.0%", stats["hit_rate"])

	rec = f.do(t, http.MethodPost, "/api/v1/cache/invalidate")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, f.cache.Entries())
}

func TestCacheDisabled(t *testing.T) {
	h := New(&stubProvider{snap: snapshot()}, engine.New(engine.TextScored), nil, nil, Config{})
	mux := http.NewServeMux()
	h.Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/search?q=boise", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
