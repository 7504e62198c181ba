package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seniorliving/directory-search/pkg/kafka"
)

func TestAggregatorRecord(t *testing.T) {
	agg := NewAggregator()
	agg.Record(SearchEvent{Type: EventSearch, Term: "austin", Total: 4, LatencyMs: 2, Filters: map[string]string{"state": "TX"}})
	agg.Record(SearchEvent{Type: EventSearch, Term: "austin", Total: 4, LatencyMs: 4, CacheHit: true})
	agg.Record(SearchEvent{Type: EventZeroResult, Term: "atlantis", Total: 0, LatencyMs: 6})
	agg.Record(SearchEvent{Type: EventAutocomplete, Term: "au"})
	agg.Record(SearchEvent{Type: EventFeedRefresh})

	stats := agg.Stats()
	assert.Equal(t, int64(3), stats.TotalSearches)
	assert.Equal(t, int64(1), stats.Suggestions)
	assert.Equal(t, int64(1), stats.FeedRefreshes)
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(2), stats.CacheMisses)
	assert.Equal(t, int64(1), stats.ZeroResultCount)
	assert.InDelta(t, 4.0, stats.AvgLatencyMs, 1e-9)
	assert.Equal(t, []QueryCount{{"austin", 2}, {"atlantis", 1}}, stats.TopQueries)
	assert.Equal(t, []QueryCount{{"atlantis", 1}}, stats.ZeroResultQueries)
	assert.Equal(t, []QueryCount{{"state=TX", 1}}, stats.TopFilters)
}

func TestHandleEventDecodesJSON(t *testing.T) {
	agg := NewAggregator()
	value, err := json.Marshal(SearchEvent{Type: EventSearch, Term: "boise", Total: 1})
	require.NoError(t, err)

	require.NoError(t, HandleEvent(agg)(context.Background(), []byte("search"), value))
	assert.Error(t, HandleEvent(agg)(context.Background(), nil, []byte("not json")))
	assert.Equal(t, int64(1), agg.Stats().TotalSearches)
}

type recordingPublisher struct {
	mu      sync.Mutex
	batches [][]kafka.Event
	err     error
}

func (p *recordingPublisher) PublishBatch(ctx context.Context, events []kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, append([]kafka.Event(nil), events...))
	return p.err
}

func (p *recordingPublisher) total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, b := range p.batches {
		n += len(b)
	}
	return n
}

func TestCollectorBatchesAndFlushesOnClose(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCollector(pub, 100, 3, time.Hour)
	c.Start(context.Background())

	for range 7 {
		c.Track(SearchEvent{Type: EventSearch, Term: "austin"})
	}
	c.Close()

	assert.Equal(t, 7, pub.total())
	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.batches, 3)
	assert.Len(t, pub.batches[0], 3)
	assert.Equal(t, "search", pub.batches[0][0].Key)
	assert.False(t, pub.batches[0][0].Value.(SearchEvent).Timestamp.IsZero())
}

func TestCollectorFlushesOnCancel(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	ctx, cancel := context.WithCancel(context.Background())
	c := NewCollector(pub, 10, 50, time.Hour)
	c.Start(ctx)
	c.Track(SearchEvent{Type: EventSearch})
	c.Track(SearchEvent{Type: EventSearch})

	// let the loop pick both events up before cancelling
	require.Eventually(t, func() bool { return len(c.eventCh) == 0 }, time.Second, time.Millisecond)
	cancel()
	c.Wait()
	assert.Equal(t, 2, pub.total())
}

func TestCollectorIntoAggregator(t *testing.T) {
	agg := NewAggregator()
	c := NewCollector(agg, 10, 1, time.Hour)
	c.Start(context.Background())
	c.Track(SearchEvent{Type: EventSearch, Term: "reno", Total: 2})
	c.Close()
	assert.Equal(t, int64(1), agg.Stats().TotalSearches)
}

type fakeHistory struct{ limit int }

func (f *fakeHistory) ListSnapshots(ctx context.Context, limit int) ([]AggregatedStats, error) {
	f.limit = limit
	return []AggregatedStats{{TotalSearches: 9}}, nil
}

func TestHandler(t *testing.T) {
	agg := NewAggregator()
	agg.Record(SearchEvent{Type: EventSearch, Term: "austin", Total: 1})
	hist := &fakeHistory{}
	h := NewHandler(agg, hist)

	rec := httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var stats AggregatedStats
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, int64(1), stats.TotalSearches)

	rec = httptest.NewRecorder()
	h.History(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/history?limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, hist.limit)

	rec = httptest.NewRecorder()
	NewHandler(agg, nil).History(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/history", nil))
	assert.JSONEq(t, "[]", rec.Body.String())
}
