package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Tick ingestion metrics
	TicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hass_marketdata_ticks_total",
			Help: "Total number of ticks received",
		},
		[]string{"symbol", "status"},
	)

	BarsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hass_marketdata_bars_completed_total",
			Help: "Total number of completed OHLCV bars",
		},
		[]string{"symbol"},
	)

	// Signal metrics
	SignalsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hass_marketdata_signals_emitted_total",
			Help: "Total number of trading signals published",
		},
		[]string{"indicator", "direction"},
	)

	IndicatorDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hass_marketdata_indicator_duration_seconds",
			Help:    "Duration of indicator evaluation in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Publish metrics
	PublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hass_marketdata_publish_errors_total",
			Help: "Total number of bus publish errors",
		},
	)

	// Rate limiting metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hass_marketdata_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"token"},
	)
)
