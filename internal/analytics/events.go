package analytics

import "time"

type EventType string

const (
	EventSearch       EventType = "search"
	EventZeroResult   EventType = "zero_result"
	EventAutocomplete EventType = "autocomplete"
	EventFeedRefresh  EventType = "feed_refresh"
)

// SearchEvent describes one served search, suggestion list, or refresh.
type SearchEvent struct {
	Type            EventType         `json:"type"`
	Term            string            `json:"term"`
	Filters         map[string]string `json:"filters,omitempty"`
	Total           int               `json:"total"`
	Returned        int               `json:"returned"`
	Page            int               `json:"page,omitempty"`
	LatencyMs       int64             `json:"latency_ms"`
	CacheHit        bool              `json:"cache_hit"`
	SnapshotVersion string            `json:"snapshot_version,omitempty"`
	Timestamp       time.Time         `json:"timestamp"`
	RequestID       string            `json:"request_id,omitempty"`
}
