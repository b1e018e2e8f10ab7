// Package service aggregates ticks into bars, evaluates indicators,
// and publishes completed bars and signals to the bus.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/self-labs/hass-stack/common/envelope"
	"github.com/self-labs/hass-stack/common/logging"
	"github.com/self-labs/hass-stack/common/messaging"
	"github.com/self-labs/hass-stack/marketdata/internal/history"
	"github.com/self-labs/hass-stack/marketdata/internal/metrics"
	"github.com/self-labs/hass-stack/marketdata/internal/models"
	"github.com/self-labs/hass-stack/marketdata/internal/signals"
)

const agentName = "market_data"

var ErrInvalidTick = errors.New("invalid tick")

// Service is the market data agent core.
type Service struct {
	mu       sync.Mutex
	pending  map[string]*models.Bar
	interval time.Duration

	store     *history.Store
	engine    *signals.Engine
	publisher messaging.Publisher
	logger    *logging.Logger
}

// New creates a Service aggregating ticks into bars of the given interval.
func New(store *history.Store, publisher messaging.Publisher, interval time.Duration, logger *logging.Logger) *Service {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Service{
		pending:   make(map[string]*models.Bar),
		interval:  interval,
		store:     store,
		engine:    signals.NewEngine(store, agentName),
		publisher: publisher,
		logger:    logger,
	}
}

// IngestTick folds a tick into the symbol's pending bar. When the tick
// falls into a new interval window the previous bar is completed,
// stored, published, and evaluated for signals.
func (s *Service) IngestTick(ctx context.Context, tick models.Tick) error {
	if tick.Symbol == "" || tick.Price <= 0 || tick.Size < 0 {
		metrics.TicksTotal.WithLabelValues(tick.Symbol, "rejected").Inc()
		return ErrInvalidTick
	}
	if tick.Timestamp.IsZero() {
		tick.Timestamp = time.Now().UTC()
	}

	var completed *models.Bar

	s.mu.Lock()
	windowStart := tick.Timestamp.Truncate(s.interval)
	cur, ok := s.pending[tick.Symbol]
	if ok && !cur.StartTime.Equal(windowStart) {
		done := *cur
		completed = &done
		delete(s.pending, tick.Symbol)
		cur = nil
		ok = false
	}
	if !ok {
		s.pending[tick.Symbol] = &models.Bar{
			Symbol:    tick.Symbol,
			Open:      tick.Price,
			High:      tick.Price,
			Low:       tick.Price,
			Close:     tick.Price,
			Volume:    tick.Size,
			Interval:  s.interval.String(),
			StartTime: windowStart,
			EndTime:   windowStart.Add(s.interval),
		}
	} else {
		if tick.Price > cur.High {
			cur.High = tick.Price
		}
		if tick.Price < cur.Low {
			cur.Low = tick.Price
		}
		cur.Close = tick.Price
		cur.Volume += tick.Size
	}
	s.mu.Unlock()

	metrics.TicksTotal.WithLabelValues(tick.Symbol, "accepted").Inc()

	if completed != nil {
		return s.completeBar(ctx, *completed)
	}
	return nil
}

// Flush completes and publishes every pending bar. Called on shutdown
// and by the interval ticker.
func (s *Service) Flush(ctx context.Context) error {
	s.mu.Lock()
	done := make([]models.Bar, 0, len(s.pending))
	for _, bar := range s.pending {
		done = append(done, *bar)
	}
	s.pending = make(map[string]*models.Bar)
	s.mu.Unlock()

	var firstErr error
	for _, bar := range done {
		if err := s.completeBar(ctx, bar); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Indicators returns the current indicator snapshot for a symbol.
func (s *Service) Indicators(symbol string) models.IndicatorSet {
	return s.engine.Indicators(symbol)
}

// Bars returns the stored history for a symbol, oldest first.
func (s *Service) Bars(symbol string) []models.Bar {
	return s.store.Bars(symbol)
}

// completeBar stores a finished bar, publishes it, and evaluates the
// signal rules on the updated history.
func (s *Service) completeBar(ctx context.Context, bar models.Bar) error {
	s.store.Append(bar)
	metrics.BarsCompleted.WithLabelValues(bar.Symbol).Inc()

	if err := s.publishBar(ctx, bar); err != nil {
		metrics.PublishErrors.Inc()
		s.logger.ErrorContext(ctx, "failed to publish bar",
			logging.Symbol(bar.Symbol), logging.Error(err))
		return err
	}

	start := time.Now()
	sigs := s.engine.Evaluate(bar.Symbol)
	metrics.IndicatorDuration.Observe(time.Since(start).Seconds())

	for _, sig := range sigs {
		if err := s.publishSignal(ctx, sig); err != nil {
			metrics.PublishErrors.Inc()
			s.logger.ErrorContext(ctx, "failed to publish signal",
				logging.Symbol(sig.Symbol), logging.SignalID(sig.ID), logging.Error(err))
			continue
		}
		metrics.SignalsEmitted.WithLabelValues(sig.Indicator, string(sig.Direction)).Inc()
		s.logger.InfoContext(ctx, "signal emitted",
			logging.Symbol(sig.Symbol),
			logging.SignalID(sig.ID),
			logging.Priority(string(envelope.PriorityP1)),
		)
	}
	return nil
}

func (s *Service) publishBar(ctx context.Context, bar models.Bar) error {
	env, err := envelope.New(envelope.TypeMarketData, envelope.PriorityP2, agentName, "broadcast", bar)
	if err != nil {
		return err
	}
	data, err := env.Encode()
	if err != nil {
		return err
	}
	return s.publisher.Publish(ctx, messaging.MarketBarSubject(bar.Symbol), data)
}

func (s *Service) publishSignal(ctx context.Context, sig models.Signal) error {
	env, err := envelope.New(envelope.TypeSignal, envelope.PriorityP1, agentName, "risk_management", sig)
	if err != nil {
		return fmt.Errorf("build signal envelope: %w", err)
	}
	env.CorrelationID = sig.ID
	data, err := env.Encode()
	if err != nil {
		return err
	}
	return s.publisher.Publish(ctx, messaging.SubjectMarketSignals, data)
}
