// Package recovery reacts to agent error reports on the E0..E3 scale.
// A halt stops the whole system, an isolation takes one agent out of
// rotation, a retry waits for the agent to come back, and everything
// else is logged. Agents that burn through their error budget are
// degraded regardless of severity.
package recovery

import (
	"context"
	"fmt"
	"time"

	"github.com/self-labs/hass-stack/common/envelope"
	"github.com/self-labs/hass-stack/common/logging"
	"github.com/self-labs/hass-stack/common/messaging"
	"github.com/self-labs/hass-stack/common/retry"
	"github.com/self-labs/hass-stack/coordinator/internal/metrics"
	"github.com/self-labs/hass-stack/coordinator/internal/models"
	"github.com/self-labs/hass-stack/coordinator/internal/registry"
)

const agentName = "coordinator"

// Protocol applies the recovery reaction for each reported error.
type Protocol struct {
	registry *registry.Registry
	bus      messaging.Publisher
	logger   *logging.Logger

	// policy paces the reinstatement probe after an E2 report.
	policy retry.Policy
	// budget is the error count per window that degrades an agent.
	budget int64
}

func New(reg *registry.Registry, bus messaging.Publisher, logger *logging.Logger, budget int64) *Protocol {
	return &Protocol{
		registry: reg,
		bus:      bus,
		logger:   logger,
		policy:   retry.DefaultPolicy,
		budget:   budget,
	}
}

// Handle applies the reaction for one error report.
func (p *Protocol) Handle(ctx context.Context, report models.ErrorReport) error {
	severity := retry.ParseSeverity(report.Severity)
	metrics.RecoveryActions.WithLabelValues(severity.Action()).Inc()

	count, err := p.registry.RecordError(ctx, report.Agent)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to record error against budget",
			logging.Agent(report.Agent), logging.Error(err))
	}

	switch severity {
	case retry.SeverityHalt:
		return p.broadcastHalt(ctx, report)
	case retry.SeverityIsolate:
		if err := p.registry.SetStatus(ctx, report.Agent, models.StatusIsolated); err != nil {
			return fmt.Errorf("isolate agent %s: %w", report.Agent, err)
		}
		p.logger.WarnContext(ctx, "agent isolated",
			logging.Agent(report.Agent), logging.Error(fmt.Errorf("%s", report.Error)))
	case retry.SeverityRetry:
		go p.probeReinstatement(report.Agent, report.Timestamp)
	default:
		p.logger.WarnContext(ctx, "agent reported error",
			logging.Agent(report.Agent), logging.Error(fmt.Errorf("%s", report.Error)))
	}

	if count > p.budget {
		p.degradeOnBudgetBreach(ctx, report.Agent, count)
	}
	return nil
}

// broadcastHalt publishes the system-wide trading halt. Every agent
// listens for this and stops taking new work.
func (p *Protocol) broadcastHalt(ctx context.Context, report models.ErrorReport) error {
	halt := map[string]interface{}{
		"reason":    report.Error,
		"agent":     report.Agent,
		"operation": report.Operation,
		"halted_at": time.Now().UTC(),
	}
	env, err := envelope.New(envelope.TypeControl, envelope.PriorityP0, agentName, "broadcast", halt)
	if err != nil {
		return fmt.Errorf("build halt envelope: %w", err)
	}
	data, err := env.Encode()
	if err != nil {
		return fmt.Errorf("encode halt envelope: %w", err)
	}
	if err := p.bus.Publish(ctx, messaging.SubjectControlHalt, data); err != nil {
		metrics.PublishErrors.Inc()
		return fmt.Errorf("publish halt: %w", err)
	}
	p.logger.ErrorContext(ctx, "trading halted",
		logging.Agent(report.Agent), logging.Subject(messaging.SubjectControlHalt))
	return nil
}

// probeReinstatement waits with backoff for the agent to heartbeat
// after the failure. An agent that never comes back is degraded.
func (p *Protocol) probeReinstatement(agent string, since time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	err := p.policy.Do(ctx, func() error {
		info, err := p.registry.Get(ctx, agent)
		if err != nil {
			return retry.Wrap(retry.SeverityRetry, err)
		}
		if !info.LastHeartbeat.After(since) {
			return retry.Wrap(retry.SeverityRetry, fmt.Errorf("agent %s silent since failure", agent))
		}
		if info.Status == models.StatusDegraded {
			return p.registry.SetStatus(ctx, agent, models.StatusActive)
		}
		return nil
	})
	if err != nil {
		p.logger.WarnContext(ctx, "agent did not recover, degrading",
			logging.Agent(agent), logging.Error(err))
		if err := p.registry.SetStatus(ctx, agent, models.StatusDegraded); err != nil {
			p.logger.ErrorContext(ctx, "failed to degrade agent",
				logging.Agent(agent), logging.Error(err))
		}
	}
}

func (p *Protocol) degradeOnBudgetBreach(ctx context.Context, agent string, count int64) {
	info, err := p.registry.Get(ctx, agent)
	if err != nil {
		return
	}
	if info.Status != models.StatusActive {
		return
	}
	if err := p.registry.SetStatus(ctx, agent, models.StatusDegraded); err != nil {
		p.logger.ErrorContext(ctx, "failed to degrade agent",
			logging.Agent(agent), logging.Error(err))
		return
	}
	p.logger.WarnContext(ctx, "error budget breached, agent degraded",
		logging.Agent(agent), logging.Error(fmt.Errorf("%d errors in window", count)))
}

// SetPolicy overrides the reinstatement backoff. Used by tests and by
// operators who want a slower probe.
func (p *Protocol) SetPolicy(policy retry.Policy) {
	p.policy = policy
}
