package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/self-labs/hass-stack/common/middleware"
	"github.com/self-labs/hass-stack/execution/internal/handlers"
)

// NewRouter constructs a ServeMux with execution API routes registered.
func NewRouter(h *handlers.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/stats", h.HandleStats)
	mux.HandleFunc("/api/v1/fills", h.HandleFills)
	mux.HandleFunc("/api/v1/dlq", h.HandleDLQ)

	// Health endpoints
	mux.HandleFunc("/healthz", h.Health)
	mux.HandleFunc("/readyz", h.Ready)

	// Prometheus metrics
	mux.Handle("/metrics", promhttp.Handler())

	return middleware.RequestID(mux)
}
