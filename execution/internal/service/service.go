// Package service runs the execution agent: it consumes risk-approved
// orders, selects an execution strategy, places orders with the broker,
// and publishes fills.
package service

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/self-labs/hass-stack/common/envelope"
	"github.com/self-labs/hass-stack/common/logging"
	"github.com/self-labs/hass-stack/common/messaging"
	"github.com/self-labs/hass-stack/execution/internal/archive"
	"github.com/self-labs/hass-stack/execution/internal/broker"
	"github.com/self-labs/hass-stack/execution/internal/metrics"
	"github.com/self-labs/hass-stack/execution/internal/models"
	"github.com/self-labs/hass-stack/execution/internal/strategy"
	"github.com/self-labs/hass-stack/execution/internal/tracker"
)

const agentName = "execution"

// conditionBars is the lookback for market condition estimates.
const conditionBars = 20

// DeadLetter receives orders that could not be executed.
type DeadLetter interface {
	Write(ctx context.Context, order models.Order, cause error, reason string) error
}

// approvedOrder mirrors the payload the risk agent publishes on the
// approved orders subject.
type approvedOrder struct {
	SignalID     string  `json:"signal_id"`
	Symbol       string  `json:"symbol"`
	Direction    string  `json:"direction"` // LONG or SHORT
	Price        float64 `json:"price"`
	PositionSize float64 `json:"position_size"`
	StopLoss     float64 `json:"stop_loss"`
	TakeProfit   float64 `json:"take_profit"`
}

type condState struct {
	closes  []float64
	volumes []float64
	spread  float64
}

// Service wires the broker, tracker, archive and DLQ to the bus.
type Service struct {
	broker  broker.Broker
	tracker *tracker.Tracker
	archive archive.Archiver
	dlq     DeadLetter
	bus     messaging.Client
	logger  *logging.Logger

	mu         sync.Mutex
	conditions map[string]*condState

	subs []messaging.Subscription
}

func New(b broker.Broker, tr *tracker.Tracker, ar archive.Archiver, dlq DeadLetter, bus messaging.Client, logger *logging.Logger) *Service {
	return &Service{
		broker:     b,
		tracker:    tr,
		archive:    ar,
		dlq:        dlq,
		bus:        bus,
		logger:     logger,
		conditions: map[string]*condState{},
	}
}

// Start subscribes to approved orders and bar completions.
func (s *Service) Start() error {
	orderSub, err := s.bus.QueueSubscribe(messaging.SubjectOrdersApproved, messaging.QueueExecutionWorkers, s.handleApproved)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, orderSub)

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

// Tracker exposes execution quality statistics.
func (s *Service) Tracker() *tracker.Tracker {
	return s.tracker
}

// Archive exposes the fill archive for queries.
func (s *Service) Archive() archive.Archiver {
	return s.archive
}

// StaleSweepLoop periodically cancels and resubmits stale active orders.
// Blocks until ctx is cancelled.
func (s *Service) StaleSweepLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepStale(ctx)
		}
	}
}

func (s *Service) sweepStale(ctx context.Context) {
	for _, stale := range s.tracker.Stale(time.Now()) {
		if err := s.broker.Cancel(ctx, stale.ID); err != nil {
			s.logger.ErrorContext(ctx, "failed to cancel stale order",
				logging.OrderID(stale.ID), logging.Error(err))
			continue
		}
		s.tracker.Release(stale.ID)
		s.publishLifecycle(ctx, messaging.SubjectOrdersCancelled, stale, models.StatusCancelled)
		metrics.OrdersTotal.WithLabelValues(string(models.StatusCancelled)).Inc()
		metrics.StaleResubmits.Inc()

		// Resubmit as a market order to get it done.
		resubmit := stale
		resubmit.ID = uuid.NewString()
		resubmit.Type = models.Market
		resubmit.LimitPrice = 0
		resubmit.SubmittedAt = time.Now().UTC()
		s.execute(ctx, resubmit)
	}
}

// ExecuteApproved turns a risk-approved trade into one or more orders
// and runs them through the broker.
func (s *Service) ExecuteApproved(ctx context.Context, approved approvedOrder) {
	if approved.Price <= 0 || approved.PositionSize <= 0 {
		return
	}

	direction := "BUY"
	if approved.Direction == "SHORT" {
		direction = "SELL"
	}

	order := models.Order{
		ID:          uuid.NewString(),
		SignalID:    approved.SignalID,
		Symbol:      approved.Symbol,
		Type:        models.Market,
		Direction:   direction,
		Quantity:    math.Floor(approved.PositionSize / approved.Price),
		TimeInForce: "DAY",
		Status:      models.StatusPending,
		SubmittedAt: time.Now().UTC(),
		StopLoss:    approved.StopLoss,
		TakeProfit:  approved.TakeProfit,
	}
	if order.Quantity <= 0 {
		return
	}

	mc := s.conditionsFor(order.Symbol)
	order.Strategy = strategy.Select(order, mc)
	metrics.StrategySelected.WithLabelValues(string(order.Strategy)).Inc()

	impact := strategy.Impact(order, mc)
	slices := strategy.SliceCount(impact)
	if math.IsInf(impact, 1) {
		slices = 1
	}
	if slices > 1 {
		metrics.SlicedOrders.Inc()
		s.logger.InfoContext(ctx, "slicing order for impact",
			logging.Symbol(order.Symbol), logging.OrderID(order.ID))
	}

	childQty := math.Floor(order.Quantity / float64(slices))
	if childQty <= 0 {
		childQty = order.Quantity
		slices = 1
	}
	remaining := order.Quantity
	for i := 0; i < slices; i++ {
		child := order
		child.ID = uuid.NewString()
		child.Quantity = childQty
		if i == slices-1 {
			child.Quantity = remaining
		}
		remaining -= child.Quantity
		s.execute(ctx, child)
	}
}

func (s *Service) execute(ctx context.Context, order models.Order) {
	s.tracker.Track(order)

	fills, err := s.broker.Place(ctx, order)
	if err != nil {
		s.tracker.Release(order.ID)
		metrics.OrdersTotal.WithLabelValues(string(models.StatusRejected)).Inc()
		s.publishLifecycle(ctx, messaging.SubjectOrdersRejected, order, models.StatusRejected)
		if s.dlq != nil {
			if dlqErr := s.dlq.Write(ctx, order, err, "rejected"); dlqErr != nil {
				s.logger.ErrorContext(ctx, "failed to write DLQ entry",
					logging.OrderID(order.ID), logging.Error(dlqErr))
			} else {
				metrics.DLQWrites.Inc()
			}
		}
		s.logger.WarnContext(ctx, "order rejected",
			logging.OrderID(order.ID), logging.Symbol(order.Symbol), logging.Error(err))
		return
	}

	for _, fill := range fills {
		s.tracker.RecordFill(fill)
		metrics.SlippageBps.Observe(fill.SlippageBps)

		if err := s.archive.ArchiveFill(ctx, fill); err != nil {
			s.logger.ErrorContext(ctx, "failed to archive fill",
				logging.OrderID(fill.OrderID), logging.Error(err))
		}
		s.publishFill(ctx, fill)
	}

	if len(fills) > 0 {
		metrics.OrdersTotal.WithLabelValues(string(models.StatusFilled)).Inc()
	}
}

func (s *Service) publishFill(ctx context.Context, fill models.Fill) {
	env, err := envelope.New(envelope.TypeExecution, envelope.PriorityP1, agentName, "broadcast", fill)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to build fill envelope", logging.Error(err))
		return
	}
	env.CorrelationID = fill.OrderID
	data, err := env.Encode()
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to encode fill", logging.Error(err))
		return
	}
	if err := s.bus.Publish(ctx, messaging.SubjectOrdersFills, data); err != nil {
		metrics.PublishErrors.Inc()
		s.logger.ErrorContext(ctx, "failed to publish fill",
			logging.OrderID(fill.OrderID), logging.Error(err))
		return
	}
	metrics.FillsPublished.Inc()
}

func (s *Service) publishLifecycle(ctx context.Context, subject string, order models.Order, status models.OrderStatus) {
	order.Status = status
	env, err := envelope.New(envelope.TypeExecution, envelope.PriorityP1, agentName, "broadcast", order)
	if err != nil {
		return
	}
	env.CorrelationID = order.ID
	data, err := env.Encode()
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, subject, data); err != nil {
		metrics.PublishErrors.Inc()
	}
}

// handleApproved consumes the approved orders queue.
func (s *Service) handleApproved(ctx context.Context, msg *messaging.Message) error {
	env, err := envelope.Decode(msg.Data)
	if err != nil {
		s.logger.WarnContext(ctx, "dropping malformed approved order", logging.Error(err))
		return nil
	}

	var approved approvedOrder
	if err := env.DecodePayload(&approved); err != nil {
		s.logger.WarnContext(ctx, "dropping undecodable approved order", logging.Error(err))
		return nil
	}

	s.ExecuteApproved(ctx, approved)
	return nil
}

// barPayload is the bar field subset market condition tracking needs.
type barPayload struct {
	Symbol string  `json:"symbol"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// handleBar folds completed bars into per-symbol market conditions and
// keeps the paper broker's reference prices current.
func (s *Service) handleBar(_ context.Context, msg *messaging.Message) error {
	env, err := envelope.Decode(msg.Data)
	if err != nil {
		return nil
	}

	var bar barPayload
	if err := env.DecodePayload(&bar); err != nil {
		return nil
	}
	if bar.Symbol == "" || bar.Close <= 0 {
		return nil
	}

	s.mu.Lock()
	cs, ok := s.conditions[bar.Symbol]
	if !ok {
		cs = &condState{}
		s.conditions[bar.Symbol] = cs
	}
	cs.closes = appendBounded(cs.closes, bar.Close)
	cs.volumes = appendBounded(cs.volumes, bar.Volume)
	if bar.High > 0 && bar.Low > 0 && bar.High >= bar.Low {
		cs.spread = (bar.High - bar.Low) / bar.Close
	}
	s.mu.Unlock()

	if pu, ok := s.broker.(interface{ SetPrice(string, float64) }); ok {
		pu.SetPrice(bar.Symbol, bar.Close)
	}
	return nil
}

// conditionsFor estimates volatility, liquidity and spread for a symbol
// from its recent bars.
func (s *Service) conditionsFor(symbol string) models.MarketConditions {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs, ok := s.conditions[symbol]
	if !ok || len(cs.closes) < 2 {
		return models.MarketConditions{}
	}

	returns := make([]float64, 0, len(cs.closes)-1)
	for i := 1; i < len(cs.closes); i++ {
		if cs.closes[i-1] > 0 {
			returns = append(returns, cs.closes[i]/cs.closes[i-1]-1)
		}
	}

	var volMean float64
	for _, v := range cs.volumes {
		volMean += v
	}
	volMean /= float64(len(cs.volumes))

	// Annualize bar return stddev assuming minute bars.
	vol := stddev(returns) * math.Sqrt(252*390)

	return models.MarketConditions{
		Volatility:    vol,
		AverageVolume: volMean,
		Spread:        cs.spread,
	}
}

func appendBounded(s []float64, v float64) []float64 {
	s = append(s, v)
	if len(s) > conditionBars {
		s = s[len(s)-conditionBars:]
	}
	return s
}

func stddev(s []float64) float64 {
	if len(s) < 2 {
		return 0
	}
	var mean float64
	for _, v := range s {
		mean += v
	}
	mean /= float64(len(s))
	var variance float64
	for _, v := range s {
		variance += (v - mean) * (v - mean)
	}
	return math.Sqrt(variance / float64(len(s)-1))
}
