// Package checker applies the monitoring thresholds to one sweep's
// observations and emits the breaches it finds.
package checker

import (
	"fmt"
	"time"

	"github.com/self-labs/hass-stack/monitor/internal/models"
	"github.com/self-labs/hass-stack/monitor/internal/stats"
)

// Thresholds are the sweep limits.
type Thresholds struct {
	// MaxQueueDepth is the dispatcher backlog limit per lane.
	MaxQueueDepth int
	// HeartbeatInterval is the expected beat cadence; an agent is
	// stale after three missed beats.
	HeartbeatInterval time.Duration
	// MaxErrorRate is the tolerated share of failed operations.
	MaxErrorRate float64
	// MaxLatencyMS is the tolerated heartbeat propagation delay.
	MaxLatencyMS float64
}

// DefaultThresholds returns the standard sweep limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxQueueDepth:     1000,
		HeartbeatInterval: 10 * time.Second,
		MaxErrorRate:      0.05,
		MaxLatencyMS:      100.0,
	}
}

// Inputs is everything one sweep observed.
type Inputs struct {
	Agents       []stats.AgentSample
	Queues       map[string]int
	BusConnected bool
	Now          time.Time
}

// Check returns the breaches for one sweep. The returned alerts carry
// level, source, metric and values; identity and dedup are the alert
// manager's job.
func (t Thresholds) Check(in Inputs) []*models.Alert {
	var breaches []*models.Alert

	if !in.BusConnected {
		breaches = append(breaches, &models.Alert{
			Level:     models.LevelCritical,
			Source:    "bus",
			Metric:    "connectivity",
			Message:   "message bus connection lost",
			Value:     0,
			Threshold: 1,
		})
	}

	for lane, depth := range in.Queues {
		if depth <= t.MaxQueueDepth {
			continue
		}
		level := models.LevelError
		if lane == "P0" {
			// Backlog on the critical lane means halts and risk
			// breaches are waiting behind other traffic.
			level = models.LevelCritical
		}
		breaches = append(breaches, &models.Alert{
			Level:     level,
			Source:    "coordinator",
			Metric:    "queue_depth_" + lane,
			Message:   fmt.Sprintf("%s lane backlog %d above limit %d", lane, depth, t.MaxQueueDepth),
			Value:     float64(depth),
			Threshold: float64(t.MaxQueueDepth),
		})
	}

	staleAfter := 3 * t.HeartbeatInterval
	for _, agent := range in.Agents {
		if !agent.LastHeartbeat.IsZero() {
			age := in.Now.Sub(agent.LastHeartbeat)
			if age > staleAfter {
				breaches = append(breaches, &models.Alert{
					Level:     models.LevelError,
					Source:    agent.Agent,
					Metric:    "heartbeat_age",
					Message:   fmt.Sprintf("agent %s silent for %s", agent.Agent, age.Round(time.Second)),
					Value:     age.Seconds(),
					Threshold: staleAfter.Seconds(),
				})
			}
		}

		if agent.Messages > 0 && agent.ErrorRate > t.MaxErrorRate {
			level := models.LevelWarning
			if agent.ErrorRate > 2*t.MaxErrorRate {
				level = models.LevelError
			}
			breaches = append(breaches, &models.Alert{
				Level:     level,
				Source:    agent.Agent,
				Metric:    "error_rate",
				Message:   fmt.Sprintf("agent %s error rate %.1f%% above %.1f%%", agent.Agent, agent.ErrorRate*100, t.MaxErrorRate*100),
				Value:     agent.ErrorRate,
				Threshold: t.MaxErrorRate,
			})
		}

		if agent.LatencyMS > t.MaxLatencyMS {
			breaches = append(breaches, &models.Alert{
				Level:     models.LevelWarning,
				Source:    agent.Agent,
				Metric:    "latency",
				Message:   fmt.Sprintf("agent %s heartbeat latency %.0fms above %.0fms", agent.Agent, agent.LatencyMS, t.MaxLatencyMS),
				Value:     agent.LatencyMS,
				Threshold: t.MaxLatencyMS,
			})
		}
	}

	return breaches
}
