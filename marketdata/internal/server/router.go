package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/self-labs/hass-stack/common/middleware"
	"github.com/self-labs/hass-stack/marketdata/internal/handlers"
)

// NewRouter constructs a ServeMux with market data API routes registered.
func NewRouter(h *handlers.Handler) http.Handler {
	mux := http.NewServeMux()

	// Feed ingestion and query endpoints
	mux.HandleFunc("/api/v1/ticks", h.HandleTicks)
	mux.HandleFunc("/api/v1/bars", h.HandleBars)
	mux.HandleFunc("/api/v1/indicators", h.HandleIndicators)

	// Health endpoints
	mux.HandleFunc("/healthz", h.Health)
	mux.HandleFunc("/readyz", h.Ready)

	// Prometheus metrics
	mux.Handle("/metrics", promhttp.Handler())

	return middleware.RequestID(mux)
}
