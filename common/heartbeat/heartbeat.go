// Package heartbeat publishes agent liveness to the coordinator. Every
// agent runs a Beacon: it announces itself once on startup, then beats
// on an interval so the registry record stays alive.
package heartbeat

import (
	"context"
	"time"

	"github.com/self-labs/hass-stack/common/envelope"
	"github.com/self-labs/hass-stack/common/logging"
	"github.com/self-labs/hass-stack/common/messaging"
	"github.com/self-labs/hass-stack/common/retry"
)

// DefaultInterval is the standard beat interval. The coordinator
// expires records after three missed beats.
const DefaultInterval = 10 * time.Second

// Beacon announces an agent and keeps its registry record alive.
type Beacon struct {
	bus      messaging.Publisher
	agent    string
	priority int
	interval time.Duration
	logger   *logging.Logger

	sequence uint64
}

// NewBeacon builds a beacon for the named agent. Priority is the
// agent's dispatch tier (0 for risk and execution, higher for signal
// sources).
func NewBeacon(bus messaging.Publisher, agent string, priority int, interval time.Duration, logger *logging.Logger) *Beacon {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Beacon{
		bus:      bus,
		agent:    agent,
		priority: priority,
		interval: interval,
		logger:   logger,
	}
}

type registration struct {
	Agent     string    `json:"agent"`
	Priority  int       `json:"priority"`
	StartedAt time.Time `json:"started_at"`
}

type beat struct {
	Agent    string    `json:"agent"`
	Sequence uint64    `json:"sequence"`
	SentAt   time.Time `json:"sent_at"`
}

type errorReport struct {
	Agent     string    `json:"agent"`
	Severity  string    `json:"severity"`
	Operation string    `json:"operation"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// Run announces the agent and beats until ctx is cancelled.
func (b *Beacon) Run(ctx context.Context) {
	if err := b.announce(ctx); err != nil {
		b.logger.ErrorContext(ctx, "failed to announce agent",
			logging.Agent(b.agent), logging.Error(err))
	}

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := b.Beat(ctx); err != nil {
				b.logger.WarnContext(ctx, "failed to publish heartbeat",
					logging.Agent(b.agent), logging.Error(err))
			}
		}
	}
}

func (b *Beacon) announce(ctx context.Context) error {
	payload := registration{
		Agent:     b.agent,
		Priority:  b.priority,
		StartedAt: time.Now().UTC(),
	}
	return b.publish(ctx, messaging.SubjectAgentsRegistered, envelope.PriorityP1, payload)
}

// Beat publishes a single heartbeat.
func (b *Beacon) Beat(ctx context.Context) error {
	b.sequence++
	payload := beat{
		Agent:    b.agent,
		Sequence: b.sequence,
		SentAt:   time.Now().UTC(),
	}
	return b.publish(ctx, messaging.AgentHeartbeatSubject(b.agent), envelope.PriorityP2, payload)
}

// ReportError tells the coordinator that an operation failed and how
// severe the failure is on the E0..E3 scale.
func (b *Beacon) ReportError(ctx context.Context, severity retry.Severity, operation string, opErr error) error {
	payload := errorReport{
		Agent:     b.agent,
		Severity:  severity.String(),
		Operation: operation,
		Error:     opErr.Error(),
		Timestamp: time.Now().UTC(),
	}
	return b.publish(ctx, messaging.SubjectSystemErrors, envelope.PriorityP1, payload)
}

func (b *Beacon) publish(ctx context.Context, subject string, priority envelope.Priority, payload interface{}) error {
	env, err := envelope.New(envelope.TypeSystem, priority, b.agent, "coordinator", payload)
	if err != nil {
		return err
	}
	return messaging.PublishEnvelope(ctx, b.bus, subject, env)
}
