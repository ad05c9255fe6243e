package http

import (
	"net/http"
	"strconv"

	"github.com/mathhub/mdh-explorer/internal/cache"
	"github.com/mathhub/mdh-explorer/internal/observability"
)

// StatsResponse is the response of GET /v1/stats.
type StatsResponse struct {
	Filters   []observability.PropertyStats `json:"filters"`
	Exports   []observability.PropertyStats `json:"exports"`
	Cache     *cache.MetricsSnapshot        `json:"cache,omitempty"`
	RequestID string                        `json:"request_id"`
}

// StatsHandler handles GET /v1/stats requests.
type StatsHandler struct {
	stats        *observability.FilterStats
	cacheMetrics func() cache.MetricsSnapshot
}

// NewStatsHandler creates a new stats handler. Either argument may be nil.
func NewStatsHandler(stats *observability.FilterStats, cacheMetrics func() cache.MetricsSnapshot) *StatsHandler {
	return &StatsHandler{stats: stats, cacheMetrics: cacheMetrics}
}

// ServeHTTP reports the top filters and exports, limited by ?top=N
// (default 10).
func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(r.URL.Query().Get("top"))
	if err != nil || n <= 0 {
		n = 10
	}

	resp := StatsResponse{
		Filters:   []observability.PropertyStats{},
		Exports:   []observability.PropertyStats{},
		RequestID: GetRequestID(r.Context()),
	}
	if h.stats != nil {
		resp.Filters = h.stats.TopFilters(n)
		resp.Exports = h.stats.TopExports(n)
	}
	if h.cacheMetrics != nil {
		snap := h.cacheMetrics()
		resp.Cache = &snap
	}
	writeJSON(w, http.StatusOK, resp)
}
