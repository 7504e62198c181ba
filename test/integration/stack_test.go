// Package integration wires the search service in process: file feed sources,
// provider, engine, query cache, analytics and the HTTP middleware chain,
// served through httptest. Redis, Kafka and Postgres are left out; see
// postgres_test.go for the database-backed pieces.
package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seniorliving/directory-search/internal/analytics"
	"github.com/seniorliving/directory-search/internal/autocomplete"
	"github.com/seniorliving/directory-search/internal/autocomplete/wsserver"
	"github.com/seniorliving/directory-search/internal/directory"
	"github.com/seniorliving/directory-search/internal/directory/feed"
	"github.com/seniorliving/directory-search/internal/search/cache"
	"github.com/seniorliving/directory-search/internal/search/engine"
	"github.com/seniorliving/directory-search/internal/search/handler"
	"github.com/seniorliving/directory-search/pkg/config"
	apperrors "github.com/seniorliving/directory-search/pkg/errors"
	"github.com/seniorliving/directory-search/pkg/health"
	"github.com/seniorliving/directory-search/pkg/metrics"
	"github.com/seniorliving/directory-search/pkg/middleware"
)

const feedTestdata = "../../internal/directory/feed/testdata"

type stack struct {
	server     *httptest.Server
	provider   *feed.Provider
	aggregator *analytics.Aggregator
}

func newStack(t *testing.T, sources ...string) *stack {
	t.Helper()
	m := metrics.New(prometheus.NewRegistry())
	feedCfg := config.FeedConfig{LoadTimeout: 5 * time.Second}

	var srcs []feed.Source
	for _, uri := range sources {
		src, err := feed.NewSource(uri, feedCfg, feed.Deps{})
		require.NoError(t, err)
		srcs = append(srcs, src)
	}
	provider := feed.NewProvider(srcs, feedCfg.LoadTimeout, m)
	queryCache := cache.New(nil, config.RedisConfig{LocalTTL: time.Minute}, m)
	provider.OnRefresh(func(*directory.Snapshot) {
		_ = queryCache.Invalidate(context.Background())
	})

	ctx, cancel := context.WithCancel(context.Background())
	aggregator := analytics.NewAggregator()
	collector := analytics.NewCollector(aggregator, 100, 1, 10*time.Millisecond)
	collector.Start(ctx)
	t.Cleanup(func() {
		cancel()
		collector.Wait()
	})

	eng := engine.New("")
	searchH := handler.New(provider, eng, queryCache, collector, handler.Config{Metrics: m})
	ws := wsserver.New(provider, eng, collector, m, wsserver.Config{
		Session: autocomplete.Config{Debounce: 20 * time.Millisecond},
	})
	analyticsH := analytics.NewHandler(aggregator, nil)

	checker := health.NewChecker()
	checker.Register("feed", provider.Check)
	checker.Register("cache", queryCache.Check)

	api := http.NewServeMux()
	searchH.Register(api)
	api.HandleFunc("GET /api/v1/analytics", analyticsH.Stats)
	api.HandleFunc("GET /health/ready", checker.ReadyHandler())

	root := http.NewServeMux()
	root.Handle("GET /api/v1/autocomplete/ws", ws)
	root.Handle("/", middleware.Timeout(5*time.Second)(api))

	var chain http.Handler = root
	chain = middleware.CORS(middleware.DefaultCORSConfig(nil))(chain)
	chain = middleware.RequestID(chain)
	chain = middleware.Metrics(m)(chain)

	srv := httptest.NewServer(chain)
	t.Cleanup(srv.Close)
	return &stack{server: srv, provider: provider, aggregator: aggregator}
}

func (s *stack) get(t *testing.T, path string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(s.server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestSearchThroughStack(t *testing.T) {
	s := newStack(t, filepath.Join(feedTestdata, "search-index.json"))

	var page engine.Response
	resp := s.get(t, "/api/v1/search?q=Austin", &page)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(middleware.RequestIDHeader))

	require.Equal(t, 2, page.Total)
	assert.Equal(t, "Austin", page.Results[0].Name())
	assert.Equal(t, "city", string(page.Results[0].Type))
	assert.Equal(t, "Sunrise of Austin", page.Results[1].Name())

	resp = s.get(t, "/api/v1/search?q=Austin", nil)
	assert.Equal(t, "hit", resp.Header.Get("X-Cache"))

	assert.Eventually(t, func() bool {
		return s.aggregator.Stats().TotalSearches == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.EqualValues(t, 1, s.aggregator.Stats().CacheHits)

	var stats analytics.AggregatedStats
	s.get(t, "/api/v1/analytics", &stats)
	require.NotEmpty(t, stats.TopQueries)
	assert.Equal(t, "austin", stats.TopQueries[0].Query)
}

func TestFallbackToCombinedDocument(t *testing.T) {
	dir := t.TempDir()
	corrupt := filepath.Join(dir, "search-index.json")
	require.NoError(t, os.WriteFile(corrupt, []byte(`{"cities": [`), 0o644))

	s := newStack(t, corrupt, filepath.Join(feedTestdata, "combined_data.json"))

	var page engine.Response
	resp := s.get(t, "/api/v1/search?q=portland", &page)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotZero(t, page.Total)
	assert.Equal(t, "Portland", page.Results[0].Name())

	var report health.Report
	resp = s.get(t, "/health/ready", &report)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, health.StatusUp, report.Components["feed"].Status)
}

func TestAllSourcesUnavailable(t *testing.T) {
	dir := t.TempDir()
	s := newStack(t, filepath.Join(dir, "missing.json"), filepath.Join(dir, "also-missing.json"))

	var body apperrors.Body
	resp := s.get(t, "/api/v1/search?q=austin", &body)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, apperrors.ErrDataUnavailable.Error(), body.Error)

	resp = s.get(t, "/health/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestRefreshPicksUpNewFeed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "search-index.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"cities":[{"slug":"salem-or","name":"Salem","state":"Oregon"}]}`), 0o644))
	s := newStack(t, path)

	var page engine.Response
	s.get(t, "/api/v1/search?q=bend", &page)
	assert.Zero(t, page.Total)

	require.NoError(t, os.WriteFile(path, []byte(`{"cities":[{"slug":"bend-or","name":"Bend","state":"Oregon"}]}`), 0o644))
	resp, err := http.Post(s.server.URL+"/api/v1/feed/refresh", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	s.get(t, "/api/v1/search?q=bend", &page)
	require.Equal(t, 1, page.Total)
	assert.Equal(t, "Bend", page.Results[0].Name())
}

func TestAutocompleteWebsocketThroughMiddleware(t *testing.T) {
	s := newStack(t, filepath.Join(feedTestdata, "search-index.json"))

	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/api/v1/autocomplete/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.WriteJSON(wsserver.Event{Type: "input", Value: "bo"}))
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var msg wsserver.Message
		require.NoError(t, ws.ReadJSON(&msg))
		if msg.View != nil && msg.View.State == autocomplete.Suggesting {
			require.Len(t, msg.View.Suggestions, 1)
			assert.Equal(t, "boise-id", msg.View.Suggestions[0].Slug)
			return
		}
	}
}
