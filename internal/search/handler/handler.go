// Package handler is the HTTP adapter over the search pipeline.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/seniorliving/directory-search/internal/analytics"
	"github.com/seniorliving/directory-search/internal/directory"
	"github.com/seniorliving/directory-search/internal/search/cache"
	"github.com/seniorliving/directory-search/internal/search/engine"
	"github.com/seniorliving/directory-search/internal/search/query"
	"github.com/seniorliving/directory-search/internal/search/ranker"
	"github.com/seniorliving/directory-search/internal/search/textmatch"
	apperrors "github.com/seniorliving/directory-search/pkg/errors"
	"github.com/seniorliving/directory-search/pkg/logger"
	"github.com/seniorliving/directory-search/pkg/metrics"
	"github.com/seniorliving/directory-search/pkg/middleware"
	"github.com/seniorliving/directory-search/pkg/tracing"
)

// SnapshotProvider hands out the resident snapshot.
type SnapshotProvider interface {
	Get(ctx context.Context) (*directory.Snapshot, error)
	Refresh(ctx context.Context) (*directory.Snapshot, error)
}

// EventTracker receives analytics events.
type EventTracker interface {
	Track(event analytics.SearchEvent)
}

// Config tunes request parsing and suggestion lists.
type Config struct {
	Limits         query.Limits
	MinInputLength int
	MaxSuggestions int
	Tracing        bool
	Metrics        *metrics.Metrics
}

type Handler struct {
	provider  SnapshotProvider
	engine    *engine.Engine
	cache     *cache.QueryCache
	collector EventTracker
	cfg       Config
	logger    *slog.Logger
}

// New wires the handler. queryCache and collector may be nil.
func New(provider SnapshotProvider, eng *engine.Engine, queryCache *cache.QueryCache, collector EventTracker, cfg Config) *Handler {
	if cfg.MinInputLength <= 0 {
		cfg.MinInputLength = 2
	}
	if cfg.MaxSuggestions <= 0 {
		cfg.MaxSuggestions = engine.DefaultSuggestions
	}
	return &Handler{
		provider:  provider,
		engine:    eng,
		cache:     queryCache,
		collector: collector,
		cfg:       cfg,
		logger:    slog.Default().With("component", "search-handler"),
	}
}

// Register mounts the search routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/autocomplete", h.Autocomplete)
	mux.HandleFunc("POST /api/v1/feed/refresh", h.Refresh)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	q, problems := query.Parse(r.URL.Query(), h.cfg.Limits)
	for _, p := range problems {
		log.Debug("ignoring filter value", "problem", p)
	}

	if h.cfg.Tracing {
		var span *tracing.Span
		ctx, span = tracing.StartSpan(ctx, "search", middleware.GetRequestID(ctx))
		defer func() {
			span.End()
			span.Log()
		}()
	}

	snap, err := h.provider.Get(ctx)
	if err != nil {
		log.Error("search data unavailable", "error", err)
		h.observe("error", "", 0, time.Since(start))
		h.writeError(w, err)
		return
	}

	var (
		resp     engine.Response
		cacheHit bool
	)
	compute := func() (engine.Response, error) {
		return h.engine.Search(ctx, snap, q), nil
	}
	if h.cache != nil {
		resp, cacheHit, err = h.cache.GetOrCompute(ctx, snap.Version(), q, compute)
	} else {
		resp, err = compute()
	}
	if err != nil {
		log.Error("search execution failed", "term", q.Term, "error", err)
		h.observe("error", "", 0, time.Since(start))
		h.writeError(w, err)
		return
	}

	latency := time.Since(start)
	resultType := "hit"
	eventType := analytics.EventSearch
	if resp.Total == 0 {
		resultType = "zero_result"
		eventType = analytics.EventZeroResult
	}
	cacheStatus := "miss"
	if cacheHit {
		cacheStatus = "hit"
	}
	h.observe(resultType, cacheStatus, resp.Total, latency)

	log.Info("search completed",
		"term", q.Term,
		"total", resp.Total,
		"returned", len(resp.Results),
		"page", resp.Page,
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)
	h.track(analytics.SearchEvent{
		Type:            eventType,
		Term:            q.Term,
		Filters:         filterSummary(q.Filters),
		Total:           resp.Total,
		Returned:        len(resp.Results),
		Page:            resp.Page,
		LatencyMs:       latency.Milliseconds(),
		CacheHit:        cacheHit,
		SnapshotVersion: snap.Version(),
		RequestID:       middleware.GetRequestID(ctx),
	})

	w.Header().Set("X-Cache", cacheStatus)
	h.writeJSON(w, http.StatusOK, resp)
}

// SuggestResponse is the one-shot autocomplete payload.
type SuggestResponse struct {
	Query       string              `json:"query"`
	Suggestions []ranker.CityResult `json:"suggestions"`
}

// Autocomplete returns the top city suggestions for q without debouncing;
// interactive clients use the websocket session instead.
func (h *Handler) Autocomplete(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	term := textmatch.Normalize(r.URL.Query().Get("q"))
	if textmatch.Len(term) < h.cfg.MinInputLength {
		h.writeJSON(w, http.StatusOK, SuggestResponse{Query: term, Suggestions: []ranker.CityResult{}})
		return
	}

	snap, err := h.provider.Get(ctx)
	if err != nil {
		logger.FromContext(ctx).Error("autocomplete data unavailable", "error", err)
		h.writeError(w, err)
		return
	}
	suggestions := h.engine.Suggest(snap, term, h.cfg.MaxSuggestions)
	h.track(analytics.SearchEvent{
		Type:            analytics.EventAutocomplete,
		Term:            term,
		Total:           len(suggestions),
		Returned:        len(suggestions),
		LatencyMs:       time.Since(start).Milliseconds(),
		SnapshotVersion: snap.Version(),
		RequestID:       middleware.GetRequestID(ctx),
	})
	h.writeJSON(w, http.StatusOK, SuggestResponse{Query: term, Suggestions: suggestions})
}

// Refresh reloads the feed and drops cached responses.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	snap, err := h.provider.Refresh(ctx)
	if err != nil {
		log.Error("feed refresh failed", "error", err)
		h.writeError(w, err)
		return
	}
	if h.cache != nil {
		if err := h.cache.Invalidate(ctx); err != nil {
			log.Warn("cache invalidation after refresh failed", "error", err)
		}
	}
	h.track(analytics.SearchEvent{
		Type:            analytics.EventFeedRefresh,
		SnapshotVersion: snap.Version(),
		RequestID:       middleware.GetRequestID(ctx),
	})
	log.Info("feed refreshed", "source", snap.Source(), "version", snap.Version())

	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":     "refreshed",
		"source":     snap.Source(),
		"version":    snap.Version(),
		"cities":     len(snap.Cities()),
		"facilities": len(snap.Facilities()),
		"loaded_at":  snap.LoadedAt().Format(time.RFC3339),
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"entries":  h.cache.Entries(),
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, apperrors.Body{Error: "cache disabled", Message: "caching is disabled"})
		return
	}

	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) observe(resultType, cacheStatus string, total int, latency time.Duration) {
	m := h.cfg.Metrics
	if m == nil {
		return
	}
	m.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	if cacheStatus != "" {
		m.SearchLatency.WithLabelValues(cacheStatus).Observe(latency.Seconds())
		m.SearchResultsCount.Observe(float64(total))
	}
}

func (h *Handler) track(event analytics.SearchEvent) {
	if h.collector != nil {
		h.collector.Track(event)
	}
}

func filterSummary(f query.Filters) map[string]string {
	out := make(map[string]string)
	if f.State != "" {
		out["state"] = f.State
	}
	if f.CareType != "" {
		out["type"] = f.CareType
	}
	if f.CostBracket != "" {
		out["cost"] = string(f.CostBracket)
	}
	if len(f.Amenities) > 0 {
		out["amenities"] = strings.Join(f.Amenities, ",")
	}
	if f.RatingFloor != nil {
		out["rating"] = strconv.Itoa(*f.RatingFloor)
	}
	if f.Geo != nil {
		out["distance"] = strconv.FormatFloat(f.Geo.RadiusMiles, 'f', -1, 64)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	h.writeJSON(w, apperrors.HTTPStatusCode(err), apperrors.Response(err))
}
