// Package service runs the risk agent: it validates proposed trades
// arriving over the bus, routes approved orders to execution, and
// watches the portfolio for limit breaches.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/self-labs/hass-stack/common/envelope"
	"github.com/self-labs/hass-stack/common/logging"
	"github.com/self-labs/hass-stack/common/messaging"
	"github.com/self-labs/hass-stack/risk/internal/engine"
	"github.com/self-labs/hass-stack/risk/internal/metrics"
	"github.com/self-labs/hass-stack/risk/internal/models"
	"github.com/self-labs/hass-stack/risk/internal/repository"
)

const agentName = "risk_management"

// Service wires the risk engine to the bus and the audit store.
type Service struct {
	engine *engine.Engine
	repo   repository.Repository
	bus    messaging.Client
	logger *logging.Logger

	subs []messaging.Subscription
}

func New(eng *engine.Engine, repo repository.Repository, bus messaging.Client, logger *logging.Logger) *Service {
	return &Service{engine: eng, repo: repo, bus: bus, logger: logger}
}

// Start restores portfolio state and subscribes to the validation and
// market data subjects.
func (s *Service) Start(ctx context.Context) error {
	snapshot, err := s.repo.LatestSnapshot(ctx)
	if err != nil {
		return err
	}
	s.engine.SetPortfolio(*snapshot)

	validateSub, err := s.bus.QueueSubscribe(messaging.SubjectRiskValidate, messaging.QueueRiskWorkers, s.handleValidate)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, validateSub)

	signalSub, err := s.bus.QueueSubscribe("market.signals.>", messaging.QueueRiskWorkers, s.handleSignal)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, signalSub)

	barSub, err := s.bus.Subscribe(messaging.SubjectMarketBars+".>", s.handleBar)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, barSub)

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

// Validate runs a single request through the engine, records the verdict,
// and publishes the routing message for the outcome.
func (s *Service) Validate(ctx context.Context, req models.ValidationRequest) models.ValidationResult {
	start := time.Now()
	result := s.engine.Validate(req)
	metrics.ValidationDuration.Observe(time.Since(start).Seconds())

	outcome := "approved"
	if !result.Approved {
		outcome = "vetoed"
		for _, check := range result.FailedChecks {
			metrics.ChecksFailed.WithLabelValues(check).Inc()
		}
	}
	metrics.ValidationsTotal.WithLabelValues(outcome).Inc()

	verdict := &models.Verdict{
		ID:           uuid.NewString(),
		SignalID:     req.SignalID,
		Symbol:       req.Symbol,
		Direction:    req.Direction,
		Approved:     result.Approved,
		PositionSize: result.PositionSize,
		RiskLevel:    result.RiskLevel,
		FailedChecks: result.FailedChecks,
		CreatedAt:    result.Timestamp,
	}
	if verdict.FailedChecks == nil {
		verdict.FailedChecks = []string{}
	}
	if err := s.repo.RecordVerdict(ctx, verdict); err != nil {
		s.logger.ErrorContext(ctx, "failed to record verdict",
			logging.Symbol(req.Symbol), logging.SignalID(req.SignalID), logging.Error(err))
	}

	if result.Approved {
		s.publishResult(ctx, messaging.SubjectOrdersApproved, envelope.TypeOrder, envelope.PriorityP1, "execution", req, result)
		s.logger.InfoContext(ctx, "trade approved",
			logging.Symbol(req.Symbol), logging.SignalID(req.SignalID))
	} else {
		s.publishResult(ctx, messaging.SubjectRiskVetoed, envelope.TypeRisk, envelope.PriorityP1, "broadcast", req, result)
		s.logger.InfoContext(ctx, "trade vetoed",
			logging.Symbol(req.Symbol), logging.SignalID(req.SignalID))
	}

	return result
}

// approvedOrder is the payload routed to execution for approved trades
// and broadcast on the veto subject for refused ones.
type approvedOrder struct {
	SignalID     string           `json:"signal_id"`
	Symbol       string           `json:"symbol"`
	Direction    models.Direction `json:"direction"`
	Confidence   float64          `json:"confidence"`
	Price        float64          `json:"price"`
	PositionSize float64          `json:"position_size"`
	StopLoss     float64          `json:"stop_loss"`
	TakeProfit   float64          `json:"take_profit"`
	RiskLevel    models.RiskLevel `json:"risk_level"`
	FailedChecks []string         `json:"failed_checks,omitempty"`
}

func (s *Service) publishResult(ctx context.Context, subject string, typ envelope.Type, priority envelope.Priority, destination string, req models.ValidationRequest, result models.ValidationResult) {
	order := approvedOrder{
		SignalID:     req.SignalID,
		Symbol:       req.Symbol,
		Direction:    req.Direction,
		Confidence:   req.Confidence,
		Price:        req.Price,
		PositionSize: result.PositionSize,
		StopLoss:     result.StopLoss,
		TakeProfit:   result.TakeProfit,
		RiskLevel:    result.RiskLevel,
		FailedChecks: result.FailedChecks,
	}

	env, err := envelope.New(typ, priority, agentName, destination, order)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to build result envelope", logging.Error(err))
		return
	}
	env.CorrelationID = req.SignalID
	data, err := env.Encode()
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to encode result", logging.Error(err))
		return
	}
	if err := s.bus.Publish(ctx, subject, data); err != nil {
		metrics.PublishErrors.Inc()
		s.logger.ErrorContext(ctx, "failed to publish result",
			logging.Subject(subject), logging.Error(err))
	}
}

// Engine exposes the underlying engine for report queries.
func (s *Service) Engine() *engine.Engine {
	return s.engine
}

// Verdicts returns recent validation decisions.
func (s *Service) Verdicts(ctx context.Context, symbol string, limit int) ([]*models.Verdict, error) {
	return s.repo.ListVerdicts(ctx, symbol, limit)
}

// MonitorLoop periodically recomputes portfolio risk and raises alerts
// when standing limits are breached. Blocks until ctx is cancelled.
func (s *Service) MonitorLoop(ctx context.Context, interval time.Duration, limits engine.Limits) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkLimits(ctx, limits)
		}
	}
}

func (s *Service) checkLimits(ctx context.Context, limits engine.Limits) {
	report := s.engine.Report()
	metrics.ValueAtRisk.Set(report.ValueAtRisk)
	metrics.Leverage.Set(report.Leverage)

	portfolio := s.engine.Portfolio()
	if err := s.repo.SaveSnapshot(ctx, &portfolio); err != nil {
		s.logger.ErrorContext(ctx, "failed to save portfolio snapshot", logging.Error(err))
	}

	if portfolio.TotalValue > 0 && report.ValueAtRisk > portfolio.TotalValue*limits.MaxPortfolioRisk {
		s.raiseAlert(ctx, "var_breach", report)
	}
	if report.Leverage > limits.MaxLeverage {
		s.raiseAlert(ctx, "leverage_breach", report)
	}
}

func (s *Service) raiseAlert(ctx context.Context, kind string, report models.RiskReport) {
	metrics.AlertsRaised.WithLabelValues(kind).Inc()

	env, err := envelope.New(envelope.TypeRisk, envelope.PriorityP0, agentName, "broadcast", report)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to build alert envelope", logging.Error(err))
		return
	}
	env.WithMeta("kind", kind)
	data, err := env.Encode()
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to encode alert", logging.Error(err))
		return
	}
	if err := s.bus.Publish(ctx, messaging.SubjectRiskAlerts, data); err != nil {
		metrics.PublishErrors.Inc()
		s.logger.ErrorContext(ctx, "failed to publish alert", logging.Error(err))
		return
	}
	s.logger.WarnContext(ctx, "portfolio limit breached", logging.Subject(messaging.SubjectRiskAlerts))
}

// handleValidate serves the request/reply validation subject.
func (s *Service) handleValidate(ctx context.Context, msg *messaging.Message) error {
	env, err := envelope.Decode(msg.Data)
	if err != nil {
		s.logger.WarnContext(ctx, "dropping malformed validation request", logging.Error(err))
		return nil
	}

	var req models.ValidationRequest
	if err := env.DecodePayload(&req); err != nil {
		s.logger.WarnContext(ctx, "dropping undecodable validation payload", logging.Error(err))
		return nil
	}

	result := s.Validate(ctx, req)

	if msg.Reply == "" {
		return nil
	}
	reply, err := envelope.New(envelope.TypeRisk, envelope.PriorityP1, agentName, env.Source, result)
	if err != nil {
		return err
	}
	reply.CorrelationID = env.ID
	data, err := reply.Encode()
	if err != nil {
		return err
	}
	return s.bus.Publish(ctx, msg.Reply, data)
}

// signalPayload is the field subset shared by every signal source.
type signalPayload struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Direction  string    `json:"direction"`
	Confidence float64   `json:"confidence"`
	Price      float64   `json:"price"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// handleSignal converts an inbound trading signal into a validation run.
// HOLD signals, signals without a price, and signals past their expiry
// are observed but not traded.
func (s *Service) handleSignal(ctx context.Context, msg *messaging.Message) error {
	env, err := envelope.Decode(msg.Data)
	if err != nil {
		s.logger.WarnContext(ctx, "dropping malformed signal", logging.Error(err))
		return nil
	}

	var sig signalPayload
	if err := env.DecodePayload(&sig); err != nil {
		s.logger.WarnContext(ctx, "dropping undecodable signal payload", logging.Error(err))
		return nil
	}

	var direction models.Direction
	switch sig.Direction {
	case "BUY":
		direction = models.Long
	case "SELL":
		direction = models.Short
	default:
		return nil
	}
	if sig.Price <= 0 {
		return nil
	}
	if !sig.ExpiresAt.IsZero() && time.Now().After(sig.ExpiresAt) {
		return nil
	}

	s.Validate(ctx, models.ValidationRequest{
		SignalID:   sig.ID,
		Symbol:     sig.Symbol,
		Direction:  direction,
		Confidence: sig.Confidence,
		Price:      sig.Price,
	})
	return nil
}

// barPayload is the bar field subset the risk engine needs.
type barPayload struct {
	Symbol string  `json:"symbol"`
	Open   float64 `json:"open"`
	Close  float64 `json:"close"`
}

// handleBar folds completed bars into the return history and marks open
// positions to the latest close.
func (s *Service) handleBar(ctx context.Context, msg *messaging.Message) error {
	env, err := envelope.Decode(msg.Data)
	if err != nil {
		return nil
	}

	var bar barPayload
	if err := env.DecodePayload(&bar); err != nil {
		return nil
	}
	if bar.Symbol == "" || bar.Open <= 0 || bar.Close <= 0 {
		return nil
	}

	s.engine.RecordReturn(bar.Symbol, (bar.Close-bar.Open)/bar.Open)

	pos, err := s.repo.GetPosition(ctx, bar.Symbol)
	if err != nil {
		return nil
	}
	pos.CurrentPrice = bar.Close
	pnl := (bar.Close - pos.EntryPrice) * pos.Quantity
	if pos.Direction == models.Short {
		pnl = -pnl
	}
	pos.UnrealizedPnL = pnl
	pos.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpsertPosition(ctx, pos); err != nil {
		s.logger.ErrorContext(ctx, "failed to mark position",
			logging.Symbol(bar.Symbol), logging.Error(err))
	}

	portfolio := s.engine.Portfolio()
	if held, ok := portfolio.Positions[bar.Symbol]; ok {
		held.CurrentPrice = bar.Close
		held.UnrealizedPnL = pnl
		portfolio.Positions[bar.Symbol] = held
		s.engine.SetPortfolio(portfolio)
	}
	return nil
}
