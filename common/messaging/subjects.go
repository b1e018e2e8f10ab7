// Package messaging defines standard subject names for the HASS message bus.
package messaging

// Subject constants for the HASS message bus.
// Follow the pattern: {domain}.{action}.{resource}
const (
	// Market data subjects - published by the market data agent
	SubjectMarketBars    = "market.bars.completed"    // Completed OHLCV bars (append .{symbol} for one instrument)
	SubjectMarketSignals = "market.signals.technical" // Technical analysis signals

	// Options flow subjects - published by the options agent
	SubjectOptionsFlow    = "market.signals.options" // Unusual options activity signals
	SubjectOptionsSurface = "market.greeks.surface"  // Recomputed Greeks snapshots

	// Media subjects - published by the media agent
	SubjectMediaSentiment = "market.signals.sentiment" // Scored sentiment events

	// Risk subjects - request/reply validation plus published verdicts
	SubjectRiskValidate = "risk.requests.validate" // Proposed order validation (request/reply)
	SubjectRiskVetoed   = "risk.orders.vetoed"     // Orders the risk engine refused
	SubjectRiskAlerts   = "risk.alerts.breached"   // Portfolio limit breaches

	// Order lifecycle subjects - approved orders flow to execution
	SubjectOrdersApproved  = "orders.submit.approved" // Risk-approved orders for execution
	SubjectOrdersFills     = "orders.fills.completed" // Completed fills
	SubjectOrdersCancelled = "orders.state.cancelled" // Cancelled orders
	SubjectOrdersRejected  = "orders.state.rejected"  // Broker-rejected orders

	// Agent coordination subjects - published by agents, consumed by the coordinator
	SubjectAgentsHeartbeat  = "agents.heartbeat.status"  // Periodic agent liveness (append .{agent})
	SubjectAgentsRegistered = "agents.lifecycle.started" // Agent registration announcements
	SubjectControlRegime    = "control.regime.changed"   // Market regime transitions
	SubjectControlHalt      = "control.trading.halted"   // System-wide trading halt

	// System subjects - health and operational alerts
	SubjectSystemAlerts = "system.alerts.raised"   // Threshold breaches from the monitor
	SubjectSystemErrors = "system.errors.reported" // Agent failures graded E0..E3, consumed by the coordinator
)

// Queue group names for load-balanced consumers.
// Workers in the same queue group share messages (each message processed once).
const (
	QueueRiskWorkers      = "risk-workers"      // Pool of order validators
	QueueExecutionWorkers = "execution-workers" // Pool of order executors
	QueueMonitorWorkers   = "monitor-workers"   // Pool of alert processors
)

// MarketBarSubject returns the subject for one instrument's completed bars.
// Example: market.bars.completed.AAPL
func MarketBarSubject(symbol string) string {
	return SubjectMarketBars + "." + symbol
}

// AgentHeartbeatSubject returns the heartbeat subject for a named agent.
// Example: agents.heartbeat.status.market_data
func AgentHeartbeatSubject(agent string) string {
	return SubjectAgentsHeartbeat + "." + agent
}
