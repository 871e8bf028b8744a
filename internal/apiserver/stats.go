package apiserver

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/shellforge/execd/internal/stats"
)

// StatsHandler serves GET /v1/stats/execution.
type StatsHandler struct {
	aggregator *stats.Aggregator
	logger     *zap.Logger
}

// NewStatsHandler builds a StatsHandler.
func NewStatsHandler(aggregator *stats.Aggregator, logger *zap.Logger) *StatsHandler {
	return &StatsHandler{aggregator: aggregator, logger: logger.Named("stats_handler")}
}

type durationResponse struct {
	Average *float64 `json:"average"`
	Median  *float64 `json:"median"`
	Max     *float64 `json:"max"`
	Min     *float64 `json:"min"`
	Stddev  *float64 `json:"stddev"`
}

type cacheStatsResponse struct {
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

type commandsStatsResponse struct {
	Total uint64 `json:"total"`
}

type statsResponse struct {
	Ran      uint64                `json:"ran"`
	Duration durationResponse      `json:"duration"`
	Commands commandsStatsResponse `json:"commands"`
	Cache    cacheStatsResponse    `json:"cache"`
}

// Snapshot handles GET /v1/stats/execution.
func (h *StatsHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	snap := h.aggregator.Snapshot()
	JSON(w, http.StatusOK, statsResponse{
		Ran: snap.Ran,
		Duration: durationResponse{
			Average: snap.Duration.Average,
			Median:  snap.Duration.Median,
			Max:     snap.Duration.Max,
			Min:     snap.Duration.Min,
			Stddev:  snap.Duration.Stddev,
		},
		Commands: commandsStatsResponse{Total: snap.Commands.Total},
		Cache: cacheStatsResponse{
			Hits:    snap.Cache.Hits,
			Misses:  snap.Cache.Misses,
			HitRate: snap.Cache.HitRate,
		},
	})
}
