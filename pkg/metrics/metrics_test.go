package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.CacheHitsTotal.Inc()
	m.FeedLoadsTotal.WithLabelValues("file", "ok").Inc()

	// A second registry must not collide with the first.
	assert.NotPanics(t, func() { New(prometheus.NewRegistry()) })

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "cache_hits_total 1"))
	assert.True(t, strings.Contains(string(body), `feed_loads_total{source="file",status="ok"} 1`))
}
