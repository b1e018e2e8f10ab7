package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/self-labs/hass-stack/common/middleware"
	"github.com/self-labs/hass-stack/risk/internal/handlers"
)

// NewRouter constructs a ServeMux with risk API routes registered.
func NewRouter(h *handlers.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/validate", h.HandleValidate)
	mux.HandleFunc("/api/v1/portfolio", h.HandlePortfolio)
	mux.HandleFunc("/api/v1/report", h.HandleReport)
	mux.HandleFunc("/api/v1/verdicts", h.HandleVerdicts)
	mux.HandleFunc("/api/v1/positions", h.HandlePositions)

	// Health endpoints
	mux.HandleFunc("/healthz", h.Health)
	mux.HandleFunc("/readyz", h.Ready)

	// Prometheus metrics
	mux.Handle("/metrics", promhttp.Handler())

	return middleware.RequestID(mux)
}
