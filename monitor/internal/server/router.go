package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/self-labs/hass-stack/common/middleware"
	"github.com/self-labs/hass-stack/monitor/internal/handlers"
)

// NewRouter constructs a ServeMux with monitor API routes registered.
func NewRouter(h *handlers.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/alerts", h.HandleAlerts)
	mux.HandleFunc("/api/v1/agents", h.HandleAgents)

	// Health endpoints
	mux.HandleFunc("/healthz", h.Health)
	mux.HandleFunc("/readyz", h.Ready)

	// Prometheus metrics
	mux.Handle("/metrics", promhttp.Handler())

	return middleware.RequestID(mux)
}
