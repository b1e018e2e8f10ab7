// Package metrics defines Prometheus metrics for the coordinator.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DispatchedTotal counts envelopes delivered to handlers by type.
	DispatchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hass_coordinator_dispatched_total",
		Help: "Envelopes delivered through the priority lanes by type",
	}, []string{"type"})

	// RateLimited counts envelopes rejected by the per-type budget.
	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hass_coordinator_rate_limited_total",
		Help: "Envelopes rejected by the per-type rate limit",
	}, []string{"type"})

	// LaneDrops counts envelopes dropped because a lane was full.
	LaneDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hass_coordinator_lane_drops_total",
		Help: "Envelopes dropped due to a full priority lane",
	}, []string{"lane"})

	// QueueDepth is the current backlog per priority lane.
	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "hass_coordinator_queue_depth",
		Help: "Queued envelopes per priority lane",
	}, []string{"lane"})

	// HandlerErrors counts handler failures by envelope type.
	HandlerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hass_coordinator_handler_errors_total",
		Help: "Dispatch handler failures by envelope type",
	}, []string{"type"})

	// HeartbeatsTotal counts heartbeats folded into the registry.
	HeartbeatsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hass_coordinator_heartbeats_total",
		Help: "Agent heartbeats received by agent name",
	}, []string{"agent"})

	// RecoveryActions counts recovery protocol reactions by action.
	RecoveryActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hass_coordinator_recovery_actions_total",
		Help: "Recovery protocol reactions by action taken",
	}, []string{"action"})

	// RegimeTransitions counts market regime changes by target regime.
	RegimeTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hass_coordinator_regime_transitions_total",
		Help: "Market regime transitions by entered regime",
	}, []string{"regime"})

	// PublishErrors counts failed bus publishes.
	PublishErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hass_coordinator_publish_errors_total",
		Help: "Messages that failed to publish to the bus",
	})
)
