// Package service runs the system monitor: it observes bus traffic to
// build per-agent health stats, sweeps them against the thresholds on
// an interval, and pushes new alerts to the notification channels.
package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/self-labs/hass-stack/common/envelope"
	"github.com/self-labs/hass-stack/common/logging"
	"github.com/self-labs/hass-stack/common/messaging"
	"github.com/self-labs/hass-stack/monitor/internal/alerts"
	"github.com/self-labs/hass-stack/monitor/internal/checker"
	"github.com/self-labs/hass-stack/monitor/internal/metrics"
	"github.com/self-labs/hass-stack/monitor/internal/models"
	"github.com/self-labs/hass-stack/monitor/internal/notification"
	"github.com/self-labs/hass-stack/monitor/internal/stats"
)

const agentName = "monitor"

// QueueSource supplies the coordinator's lane depths.
type QueueSource interface {
	Queues(ctx context.Context) (map[string]int, error)
}

// Service wires the tracker, checker and alert manager to the bus.
type Service struct {
	tracker    *stats.Tracker
	thresholds checker.Thresholds
	manager    *alerts.Manager
	channel    notification.Channel
	coord      QueueSource
	bus        messaging.Client
	logger     *logging.Logger

	subs []messaging.Subscription

	// external collects breaches pushed from the bus (risk alerts)
	// between sweeps.
	mu       sync.Mutex
	external map[string]*models.Alert
}

func New(tracker *stats.Tracker, thresholds checker.Thresholds, manager *alerts.Manager, channel notification.Channel, coord QueueSource, bus messaging.Client, logger *logging.Logger) *Service {
	return &Service{
		tracker:    tracker,
		thresholds: thresholds,
		manager:    manager,
		channel:    channel,
		coord:      coord,
		bus:        bus,
		logger:     logger,
		external:   make(map[string]*models.Alert),
	}
}

// Start subscribes to the observed subjects. Traffic subjects feed the
// per-agent stats; risk alerts become monitor alerts directly.
func (s *Service) Start() error {
	for _, subject := range []string{"market.>", "orders.>", messaging.SubjectSystemErrors} {
		sub, err := s.bus.Subscribe(subject, s.observe)
		if err != nil {
			return err
		}
		s.subs = append(s.subs, sub)
	}

	beatSub, err := s.bus.Subscribe(messaging.SubjectAgentsHeartbeat+".>", s.observeHeartbeat)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, beatSub)

	riskSub, err := s.bus.QueueSubscribe(messaging.SubjectRiskAlerts, messaging.QueueMonitorWorkers, s.handleRiskAlert)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, riskSub)

	return nil
}

// Stop unsubscribes all active subscriptions.
func (s *Service) Stop() {
	for _, sub := range s.subs {
		if err := sub.Unsubscribe(); err != nil {
			s.logger.ErrorContext(context.Background(), "failed to unsubscribe",
				logging.Subject(sub.Subject()), logging.Error(err))
		}
	}
	s.subs = nil
}

// observe counts one message against its source agent. Error reports
// count as errors for the source named inside the report.
func (s *Service) observe(ctx context.Context, msg *messaging.Message) error {
	env, err := envelope.Decode(msg.Data)
	if err != nil {
		return nil
	}
	now := time.Now()

	if msg.Subject == messaging.SubjectSystemErrors {
		var report struct {
			Agent string `json:"agent"`
		}
		if err := env.DecodePayload(&report); err != nil || report.Agent == "" {
			return nil
		}
		s.tracker.ObserveError(report.Agent, now)
		metrics.MessagesObserved.WithLabelValues(report.Agent).Inc()
		return nil
	}

	s.tracker.ObserveMessage(env.Source, now)
	metrics.MessagesObserved.WithLabelValues(env.Source).Inc()
	return nil
}

// observeHeartbeat records liveness and propagation latency.
func (s *Service) observeHeartbeat(ctx context.Context, msg *messaging.Message) error {
	env, err := envelope.Decode(msg.Data)
	if err != nil {
		return nil
	}
	s.tracker.ObserveHeartbeat(env.Source, env.Timestamp, time.Now())
	metrics.MessagesObserved.WithLabelValues(env.Source).Inc()
	return nil
}

// handleRiskAlert converts a portfolio limit breach into a monitor
// alert. Risk re-publishes while breached, so the alert stays active
// through the sweep dedup.
func (s *Service) handleRiskAlert(ctx context.Context, msg *messaging.Message) error {
	env, err := envelope.Decode(msg.Data)
	if err != nil {
		return nil
	}
	kind := env.Metadata["kind"]
	if kind == "" {
		kind = "limit_breach"
	}

	var report struct {
		ValueAtRisk float64 `json:"value_at_risk"`
		Leverage    float64 `json:"leverage"`
	}
	value := 0.0
	if err := env.DecodePayload(&report); err == nil {
		value = report.ValueAtRisk
		if strings.Contains(kind, "leverage") {
			value = report.Leverage
		}
	}

	alert := &models.Alert{
		Level:   models.LevelCritical,
		Source:  env.Source,
		Metric:  kind,
		Message: "portfolio limit breached: " + kind,
		Value:   value,
	}
	s.mu.Lock()
	s.external[alert.Key()] = alert
	s.mu.Unlock()
	return nil
}

func (s *Service) drainExternal() []*models.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Alert, 0, len(s.external))
	for _, alert := range s.external {
		out = append(out, alert)
	}
	s.external = make(map[string]*models.Alert)
	return out
}

// SweepLoop runs Sweep on an interval until ctx is cancelled.
func (s *Service) SweepLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep evaluates the thresholds once and delivers new alerts.
func (s *Service) Sweep(ctx context.Context) {
	now := time.Now()
	metrics.SweepsTotal.Inc()

	queues, err := s.coord.Queues(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "coordinator unreachable", logging.Error(err))
	}

	in := checker.Inputs{
		Agents:       s.tracker.Snapshot(now),
		Queues:       queues,
		BusConnected: s.bus.IsConnected(),
		Now:          now,
	}
	breaches := s.thresholds.Check(in)
	if err != nil {
		breaches = append(breaches, &models.Alert{
			Level:     models.LevelWarning,
			Source:    "coordinator",
			Metric:    "api_unreachable",
			Message:   "coordinator status API unreachable",
			Value:     0,
			Threshold: 1,
		})
	}
	breaches = append(breaches, s.drainExternal()...)

	raised, resolved := s.manager.Sync(now, breaches)
	metrics.ActiveAlerts.Set(float64(len(s.manager.Active())))

	for _, alert := range raised {
		metrics.AlertsRaised.WithLabelValues(string(alert.Level)).Inc()
		if err := s.channel.Send(ctx, alert); err != nil {
			metrics.NotificationErrors.Inc()
			s.logger.ErrorContext(ctx, "failed to deliver alert",
				logging.Error(err))
		}
		if alert.Level == models.LevelCritical {
			s.publishCritical(ctx, alert)
		}
	}
	for range resolved {
		metrics.AlertsResolved.Inc()
	}
	if len(resolved) > 0 {
		s.logger.InfoContext(ctx, "alerts resolved")
	}
}

// publishCritical broadcasts a critical alert on the system subject so
// agents can react without polling the monitor.
func (s *Service) publishCritical(ctx context.Context, alert *models.Alert) {
	env, err := envelope.New(envelope.TypeSystem, envelope.PriorityP0, agentName, "broadcast", alert)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to build alert envelope", logging.Error(err))
		return
	}
	data, err := env.Encode()
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to encode alert", logging.Error(err))
		return
	}
	if err := s.bus.Publish(ctx, messaging.SubjectSystemAlerts, data); err != nil {
		metrics.PublishErrors.Inc()
		s.logger.ErrorContext(ctx, "failed to publish alert", logging.Error(err))
	}
}

// ActiveAlerts returns the current alert set.
func (s *Service) ActiveAlerts() []*models.Alert {
	return s.manager.Active()
}

// AlertHistory returns up to limit past alerts, newest first.
func (s *Service) AlertHistory(limit int) []*models.Alert {
	return s.manager.History(limit)
}

// AgentStats returns the current per-agent observations.
func (s *Service) AgentStats() []stats.AgentSample {
	return s.tracker.Snapshot(time.Now())
}
