package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ContractsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hass_options_contracts_processed_total",
			Help: "Total number of option contracts processed",
		},
	)

	SignalsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hass_options_signals_emitted_total",
			Help: "Total number of flow signals published",
		},
		[]string{"signal_type", "direction"},
	)

	EnrichDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hass_options_enrich_duration_seconds",
			Help:    "Duration of Greeks enrichment per snapshot in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	PublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hass_options_publish_errors_total",
			Help: "Total number of bus publish errors",
		},
	)
)
