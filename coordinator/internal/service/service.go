// Package service runs the coordinator: it feeds bus traffic through
// the priority dispatcher, keeps the agent registry current, applies
// the recovery protocol to reported errors, and publishes market
// regime transitions.
package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/self-labs/hass-stack/common/envelope"
	"github.com/self-labs/hass-stack/common/logging"
	"github.com/self-labs/hass-stack/common/messaging"
	"github.com/self-labs/hass-stack/coordinator/internal/dispatcher"
	"github.com/self-labs/hass-stack/coordinator/internal/metrics"
	"github.com/self-labs/hass-stack/coordinator/internal/models"
	"github.com/self-labs/hass-stack/coordinator/internal/recovery"
	"github.com/self-labs/hass-stack/coordinator/internal/regime"
	"github.com/self-labs/hass-stack/coordinator/internal/registry"
)

const agentName = "coordinator"

// vixSymbol is the instrument whose closes drive regime detection.
const vixSymbol = "VIX"

// Service wires the coordinator components to the bus.
type Service struct {
	registry   *registry.Registry
	dispatcher *dispatcher.Dispatcher
	recovery   *recovery.Protocol
	detector   *regime.Detector
	bus        messaging.Client
	logger     *logging.Logger

	subs []messaging.Subscription

	mu      sync.Mutex
	lastVIX float64
}

func New(reg *registry.Registry, disp *dispatcher.Dispatcher, rec *recovery.Protocol, det *regime.Detector, bus messaging.Client, logger *logging.Logger) *Service {
	return &Service{
		registry:   reg,
		dispatcher: disp,
		recovery:   rec,
		detector:   det,
		bus:        bus,
		logger:     logger,
	}
}

// Start registers the dispatch handlers and subscribes to the
// coordination subjects. Inbound envelopes are not handled inline;
// they go through the priority lanes.
func (s *Service) Start() error {
	s.dispatcher.Register(envelope.TypeSystem, s.handleSystem)
	s.dispatcher.Register(envelope.TypeMarketData, s.handleBar)

	subjects := []string{
		messaging.SubjectAgentsRegistered,
		messaging.SubjectAgentsHeartbeat + ".>",
		messaging.SubjectSystemErrors,
		messaging.MarketBarSubject(vixSymbol),
	}
	for _, subject := range subjects {
		sub, err := s.bus.Subscribe(subject, s.enqueue)
		if err != nil {
			return err
		}
		s.subs = append(s.subs, sub)
	}
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

// enqueue decodes an inbound message and places it on its priority
// lane. The originating subject rides along as metadata so the type
// handlers can tell heartbeats, registrations and errors apart.
func (s *Service) enqueue(ctx context.Context, msg *messaging.Message) error {
	env, err := envelope.Decode(msg.Data)
	if err != nil {
		s.logger.WarnContext(ctx, "dropping malformed message",
			logging.Subject(msg.Subject), logging.Error(err))
		return nil
	}
	env.WithMeta("subject", msg.Subject)

	if err := s.dispatcher.Enqueue(env); err != nil {
		s.logger.WarnContext(ctx, "dropping message",
			logging.Subject(msg.Subject), logging.Priority(string(env.Priority)), logging.Error(err))
	}
	return nil
}

// handleSystem routes SYSTEM envelopes by their originating subject.
func (s *Service) handleSystem(ctx context.Context, env *envelope.Envelope) error {
	subject := env.Metadata["subject"]
	switch {
	case strings.HasPrefix(subject, messaging.SubjectAgentsHeartbeat):
		return s.handleHeartbeat(ctx, env)
	case subject == messaging.SubjectAgentsRegistered:
		return s.handleRegistration(ctx, env)
	case subject == messaging.SubjectSystemErrors:
		return s.handleErrorReport(ctx, env)
	}
	return nil
}

type beatPayload struct {
	Agent string `json:"agent"`
}

func (s *Service) handleHeartbeat(ctx context.Context, env *envelope.Envelope) error {
	var b beatPayload
	if err := env.DecodePayload(&b); err != nil {
		return err
	}
	if b.Agent == "" {
		return nil
	}
	metrics.HeartbeatsTotal.WithLabelValues(b.Agent).Inc()
	return s.registry.Heartbeat(ctx, b.Agent)
}

type registrationPayload struct {
	Agent    string `json:"agent"`
	Priority int    `json:"priority"`
}

func (s *Service) handleRegistration(ctx context.Context, env *envelope.Envelope) error {
	var reg registrationPayload
	if err := env.DecodePayload(&reg); err != nil {
		return err
	}
	if reg.Agent == "" {
		return nil
	}
	if _, err := s.registry.Register(ctx, reg.Agent, reg.Priority); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "agent registered", logging.Agent(reg.Agent))
	return nil
}

func (s *Service) handleErrorReport(ctx context.Context, env *envelope.Envelope) error {
	var report models.ErrorReport
	if err := env.DecodePayload(&report); err != nil {
		return err
	}
	if report.Agent == "" {
		return nil
	}
	return s.recovery.Handle(ctx, report)
}

type barPayload struct {
	Symbol string  `json:"symbol"`
	Close  float64 `json:"close"`
}

// handleBar keeps the latest VIX close for the regime loop.
func (s *Service) handleBar(ctx context.Context, env *envelope.Envelope) error {
	var bar barPayload
	if err := env.DecodePayload(&bar); err != nil {
		return err
	}
	if bar.Symbol != vixSymbol || bar.Close <= 0 {
		return nil
	}
	s.mu.Lock()
	s.lastVIX = bar.Close
	s.mu.Unlock()
	return nil
}

// RegimeLoop re-evaluates the market regime on an interval and
// publishes transitions. Blocks until ctx is cancelled.
func (s *Service) RegimeLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.EvaluateRegime(ctx)
		}
	}
}

// EvaluateRegime folds the current readings into the detector and
// broadcasts the new state when the regime changes.
func (s *Service) EvaluateRegime(ctx context.Context) models.RegimeState {
	s.mu.Lock()
	vix := s.lastVIX
	s.mu.Unlock()

	state, changed := s.detector.Evaluate(vix, s.dispatcher.Saturation(0))
	if !changed {
		return state
	}

	metrics.RegimeTransitions.WithLabelValues(string(state.Regime)).Inc()
	s.logger.WarnContext(ctx, "market regime changed",
		logging.Priority(string(envelope.PriorityP0)),
		logging.Subject(messaging.SubjectControlRegime))

	env, err := envelope.New(envelope.TypeControl, envelope.PriorityP0, agentName, "broadcast", state)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to build regime envelope", logging.Error(err))
		return state
	}
	data, err := env.Encode()
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to encode regime envelope", logging.Error(err))
		return state
	}
	if err := s.bus.Publish(ctx, messaging.SubjectControlRegime, data); err != nil {
		metrics.PublishErrors.Inc()
		s.logger.ErrorContext(ctx, "failed to publish regime change", logging.Error(err))
	}
	return state
}

// Agents returns the registry contents.
func (s *Service) Agents(ctx context.Context) ([]*models.AgentInfo, error) {
	return s.registry.List(ctx)
}

// Regime returns the current regime state.
func (s *Service) Regime() models.RegimeState {
	return s.detector.State()
}

// LaneDepths returns the backlog per priority lane.
func (s *Service) LaneDepths() map[string]int {
	depths := make(map[string]int, 4)
	for lane := 0; lane < 4; lane++ {
		depths["P"+string(rune('0'+lane))] = s.dispatcher.Depth(lane)
	}
	return depths
}
