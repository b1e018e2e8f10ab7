package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ItemsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hass_media_items_processed_total",
			Help: "Total number of news items processed",
		},
	)

	SignalsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hass_media_signals_emitted_total",
			Help: "Total number of sentiment signals published",
		},
		[]string{"direction"},
	)

	CredibilityUpdates = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hass_media_credibility_updates_total",
			Help: "Total number of source credibility updates",
		},
	)

	PublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hass_media_publish_errors_total",
			Help: "Total number of bus publish errors",
		},
	)
)
