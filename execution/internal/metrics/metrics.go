// Package metrics defines Prometheus metrics for the execution agent.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OrdersTotal counts orders by terminal status.
	OrdersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hass_execution_orders_total",
		Help: "Orders processed by terminal status",
	}, []string{"status"})

	// StrategySelected counts strategy choices.
	StrategySelected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hass_execution_strategy_selected_total",
		Help: "Execution strategy selections",
	}, []string{"strategy"})

	// FillsPublished counts fills published to the bus.
	FillsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hass_execution_fills_published_total",
		Help: "Fill events published to the bus",
	})

	// SlippageBps tracks realized slippage per fill.
	SlippageBps = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hass_execution_slippage_bps",
		Help:    "Realized slippage in basis points",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 50},
	})

	// SlicedOrders counts orders split for market impact.
	SlicedOrders = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hass_execution_sliced_orders_total",
		Help: "Orders sliced because estimated impact exceeded the threshold",
	})

	// DLQWrites counts orders sent to the dead letter queue.
	DLQWrites = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hass_execution_dlq_writes_total",
		Help: "Failed orders written to the DLQ",
	})

	// StaleResubmits counts stale orders cancelled and resubmitted.
	StaleResubmits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hass_execution_stale_resubmits_total",
		Help: "Stale active orders cancelled and resubmitted",
	})

	// PublishErrors counts failed bus publishes.
	PublishErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hass_execution_publish_errors_total",
		Help: "Messages that failed to publish to the bus",
	})
)
