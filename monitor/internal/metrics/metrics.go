// Package metrics defines Prometheus metrics for the system monitor.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SweepsTotal counts completed monitoring sweeps.
	SweepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hass_monitor_sweeps_total",
		Help: "Completed monitoring sweeps",
	})

	// AlertsRaised counts newly raised alerts by level.
	AlertsRaised = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hass_monitor_alerts_raised_total",
		Help: "Newly raised alerts by level",
	}, []string{"level"})

	// AlertsResolved counts alerts that cleared.
	AlertsResolved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hass_monitor_alerts_resolved_total",
		Help: "Alerts that cleared on a later sweep",
	})

	// ActiveAlerts is the current active alert count.
	ActiveAlerts = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hass_monitor_active_alerts",
		Help: "Currently active alerts",
	})

	// NotificationErrors counts failed channel deliveries.
	NotificationErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hass_monitor_notification_errors_total",
		Help: "Alert notifications that failed to deliver",
	})

	// MessagesObserved counts bus messages folded into agent stats.
	MessagesObserved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hass_monitor_messages_observed_total",
		Help: "Bus messages observed per source agent",
	}, []string{"agent"})

	// PublishErrors counts failed bus publishes.
	PublishErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hass_monitor_publish_errors_total",
		Help: "Messages that failed to publish to the bus",
	})
)
