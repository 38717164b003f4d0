package handler

import "net/http"

// DepthReporter reports one point-in-time value, such as a queue depth.
type DepthReporter interface {
	Depth() int
}

// ConnectionCounter reports a live count, such as open connections.
type ConnectionCounter interface {
	Count() int
}

// MetricsHandler serves a human-readable JSON snapshot.
// Raw Prometheus metrics (counters, histograms) are available at /metrics
// via promhttp.Handler and are separate from this endpoint.
type MetricsHandler struct {
	ready    DepthReporter
	presence ConnectionCounter
}

func NewMetricsHandler(ready DepthReporter, presence ConnectionCounter) *MetricsHandler {
	return &MetricsHandler{ready: ready, presence: presence}
}

// GetMetrics handles GET /api/v1/metrics
//
// @Summary  Ready-queue depth and live connection snapshot
// @Tags     metrics
// @Produce  json
// @Success  200  {object}  map[string]int
// @Router   /api/v1/metrics [get]
func (h *MetricsHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]int{
		"ready_queue_depth": h.ready.Depth(),
		"live_connections":  h.presence.Count(),
	})
}
