// Package models defines the coordinator's view of the agent fleet.
package models

import "time"

// AgentStatus is the lifecycle state the coordinator tracks per agent.
type AgentStatus string

const (
	StatusInitializing AgentStatus = "initializing"
	StatusActive       AgentStatus = "active"
	StatusDegraded     AgentStatus = "degraded"
	StatusIsolated     AgentStatus = "isolated"
	StatusStopped      AgentStatus = "stopped"
)

// Routable reports whether the dispatcher may deliver messages to an
// agent in this state.
func (s AgentStatus) Routable() bool {
	switch s {
	case StatusActive, StatusDegraded:
		return true
	}
	return false
}

// AgentInfo is the registry record for one agent.
type AgentInfo struct {
	Name          string      `json:"name"`
	Status        AgentStatus `json:"status"`
	Priority      int         `json:"priority"`
	RegisteredAt  time.Time   `json:"registered_at"`
	LastHeartbeat time.Time   `json:"last_heartbeat"`
	ErrorCount    int64       `json:"error_count"`
}

// Regime is the system-wide market regime.
type Regime string

const (
	RegimeNormal   Regime = "NORMAL"
	RegimeElevated Regime = "ELEVATED"
	RegimeCrisis   Regime = "CRISIS"
)

// SizingMultiplier returns the position sizing scale published with the
// regime. Risk-approved sizes are multiplied by this downstream.
func (r Regime) SizingMultiplier() float64 {
	switch r {
	case RegimeElevated:
		return 0.5
	case RegimeCrisis:
		return 0.25
	default:
		return 1.0
	}
}

// RegimeState is the regime plus the inputs that produced it.
type RegimeState struct {
	Regime            Regime    `json:"regime"`
	SizingMultiplier  float64   `json:"sizing_multiplier"`
	VIX               float64   `json:"vix"`
	P0QueueSaturation float64   `json:"p0_queue_saturation"`
	ChangedAt         time.Time `json:"changed_at"`
}

// ErrorReport is what an agent sends the coordinator when an operation
// fails. Severity uses the E0..E3 wire scale.
type ErrorReport struct {
	Agent     string    `json:"agent"`
	Severity  string    `json:"severity"`
	Operation string    `json:"operation"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}
