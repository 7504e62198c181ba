package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

// History lists persisted snapshots, newest first.
type History interface {
	ListSnapshots(ctx context.Context, limit int) ([]AggregatedStats, error)
}

type Handler struct {
	aggregator *Aggregator
	history    History
	logger     *slog.Logger
}

// NewHandler serves live stats from aggregator and, when history is non-nil,
// persisted snapshots.
func NewHandler(aggregator *Aggregator, history History) *Handler {
	return &Handler{
		aggregator: aggregator,
		history:    history,
		logger:     slog.Default().With("component", "analytics-handler"),
	}
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.aggregator.Stats())
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.writeJSON(w, http.StatusOK, []AggregatedStats{})
		return
	}
	limit := 24
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 500 {
		limit = v
	}
	snapshots, err := h.history.ListSnapshots(r.Context(), limit)
	if err != nil {
		h.logger.Error("listing analytics snapshots failed", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "analytics history unavailable"})
		return
	}
	h.writeJSON(w, http.StatusOK, snapshots)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}
