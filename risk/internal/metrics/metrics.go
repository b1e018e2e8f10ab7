// Package metrics defines Prometheus metrics for the risk agent.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ValidationsTotal counts trade validations by outcome.
	ValidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hass_risk_validations_total",
		Help: "Total trade validations processed by outcome",
	}, []string{"outcome"})

	// ChecksFailed counts individual risk check failures.
	ChecksFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hass_risk_checks_failed_total",
		Help: "Risk check failures by check name",
	}, []string{"check"})

	// ValidationDuration tracks validation latency.
	ValidationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hass_risk_validation_duration_seconds",
		Help:    "Time spent validating a proposed trade",
		Buckets: prometheus.DefBuckets,
	})

	// ValueAtRisk is the latest one day portfolio VaR estimate.
	ValueAtRisk = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hass_risk_value_at_risk_dollars",
		Help: "Current one day value at risk estimate",
	})

	// Leverage is the latest gross leverage ratio.
	Leverage = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hass_risk_leverage_ratio",
		Help: "Current gross exposure over portfolio value",
	})

	// AlertsRaised counts portfolio limit breach alerts.
	AlertsRaised = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hass_risk_alerts_raised_total",
		Help: "Portfolio limit breach alerts by kind",
	}, []string{"kind"})

	// PublishErrors counts failed bus publishes.
	PublishErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hass_risk_publish_errors_total",
		Help: "Messages that failed to publish to the bus",
	})
)
