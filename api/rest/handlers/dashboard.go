package handlers

import (
	"log"
	"net/http"

	"decen-ai-backend/core/monitoring"
)

// DashboardHandler serves aggregate platform statistics.
type DashboardHandler struct {
	collector *monitoring.Collector
}

// NewDashboardHandler creates a dashboard handler.
func NewDashboardHandler(collector *monitoring.Collector) *DashboardHandler {
	return &DashboardHandler{collector: collector}
}

// Stats handles GET /v1/dashboard/stats
func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.collector.Snapshot()
	if err != nil {
		log.Printf("Failed to collect dashboard stats: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to collect statistics")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
