package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/phoenix-eye/phoenix-eye-api/api"
	"github.com/phoenix-eye/phoenix-eye-api/config"
)

// MetricsSummaryHandler returns overall request metrics for the ops console
func MetricsSummaryHandler(w http.ResponseWriter, r *http.Request) {
	summary := api.GetMetrics().GetSummary()

	b, err := json.Marshal(summary)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// MetricsRoutesHandler returns per-route request metrics
func MetricsRoutesHandler(w http.ResponseWriter, r *http.Request) {
	routes := api.GetMetrics().GetRouteMetrics()

	b, err := json.Marshal(routes)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}
