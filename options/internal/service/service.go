// Package service enriches chain snapshots with computed Greeks,
// runs flow analysis, and publishes the results to the bus.
package service

import (
	"context"
	"math"
	"time"

	"github.com/self-labs/hass-stack/common/envelope"
	"github.com/self-labs/hass-stack/common/logging"
	"github.com/self-labs/hass-stack/common/messaging"
	"github.com/self-labs/hass-stack/options/internal/flow"
	"github.com/self-labs/hass-stack/options/internal/greeks"
	"github.com/self-labs/hass-stack/options/internal/metrics"
	"github.com/self-labs/hass-stack/options/internal/models"
)

const agentName = "options_chain"

// Surface is the published per-snapshot Greeks summary.
type Surface struct {
	Symbol       string    `json:"symbol"`
	Contracts    int       `json:"contracts"`
	PutCallRatio float64   `json:"put_call_ratio"`
	NetDelta     float64   `json:"net_delta"`
	NetGamma     float64   `json:"net_gamma"`
	Timestamp    time.Time `json:"timestamp"`
}

type Service struct {
	analyzer  *flow.Analyzer
	publisher messaging.Publisher
	logger    *logging.Logger
	rate      float64 // risk-free rate for IV solving
}

func New(publisher messaging.Publisher, riskFreeRate float64, logger *logging.Logger) *Service {
	return &Service{
		analyzer:  flow.NewAnalyzer(),
		publisher: publisher,
		logger:    logger,
		rate:      riskFreeRate,
	}
}

// ProcessChain enriches and analyzes one snapshot for a single
// underlying, publishing any signals plus a Greeks surface summary.
// It returns the signals for the caller's response.
func (s *Service) ProcessChain(ctx context.Context, quotes []models.Quote) ([]models.FlowSignal, error) {
	if len(quotes) == 0 {
		return nil, nil
	}

	start := time.Now()
	enriched := make([]models.Quote, len(quotes))
	for i, q := range quotes {
		enriched[i] = s.enrich(q)
	}
	metrics.EnrichDuration.Observe(time.Since(start).Seconds())
	metrics.ContractsProcessed.Add(float64(len(enriched)))

	signals := s.analyzer.Analyze(enriched)
	for _, sig := range signals {
		if err := s.publishSignal(ctx, sig); err != nil {
			metrics.PublishErrors.Inc()
			s.logger.ErrorContext(ctx, "failed to publish flow signal",
				logging.Symbol(sig.Symbol), logging.SignalID(sig.ID), logging.Error(err))
			continue
		}
		metrics.SignalsEmitted.WithLabelValues(sig.SignalType, sig.Direction).Inc()
	}

	if err := s.publishSurface(ctx, enriched); err != nil {
		metrics.PublishErrors.Inc()
		s.logger.ErrorContext(ctx, "failed to publish greeks surface",
			logging.Symbol(quotes[0].Symbol), logging.Error(err))
	}

	return signals, nil
}

// enrich fills in IV and Greeks for quotes the feed left blank.
// Quotes that cannot be priced (expired, zero mid) pass through as is.
func (s *Service) enrich(q models.Quote) models.Quote {
	tte := time.Until(q.Expiration).Hours() / 24 / 365
	if tte <= 0 || q.Mid() <= 0 || q.Underlying <= 0 {
		return q
	}

	in := greeks.Inputs{
		Spot:         q.Underlying,
		Strike:       q.Strike,
		TimeToExpiry: tte,
		Rate:         s.rate,
		Type:         q.Type,
	}

	if q.ImpliedVol <= 0 {
		iv, err := greeks.ImpliedVolatility(in, q.Mid())
		if err != nil {
			return q
		}
		q.ImpliedVol = iv
	}

	if q.Delta == 0 && q.Gamma == 0 {
		in.Vol = q.ImpliedVol
		g, err := greeks.Compute(in)
		if err != nil {
			return q
		}
		q.Delta = g.Delta
		q.Gamma = g.Gamma
	}
	return q
}

func (s *Service) publishSignal(ctx context.Context, sig models.FlowSignal) error {
	env, err := envelope.New(envelope.TypeSignal, envelope.PriorityP1, agentName, "risk_management", sig)
	if err != nil {
		return err
	}
	env.CorrelationID = sig.ID
	data, err := env.Encode()
	if err != nil {
		return err
	}
	return s.publisher.Publish(ctx, messaging.SubjectOptionsFlow, data)
}

func (s *Service) publishSurface(ctx context.Context, quotes []models.Quote) error {
	var netDelta, netGamma float64
	for _, q := range quotes {
		netDelta += q.Delta * float64(q.Volume)
		netGamma += q.Gamma * float64(q.Volume)
	}

	// JSON cannot carry +Inf; clamp the all-puts case.
	pcr := flow.PutCallRatio(quotes)
	if math.IsInf(pcr, 1) {
		pcr = 9999
	}

	surface := Surface{
		Symbol:       quotes[0].Symbol,
		Contracts:    len(quotes),
		PutCallRatio: pcr,
		NetDelta:     netDelta,
		NetGamma:     netGamma,
		Timestamp:    time.Now().UTC(),
	}

	env, err := envelope.New(envelope.TypeMarketData, envelope.PriorityP3, agentName, "broadcast", surface)
	if err != nil {
		return err
	}
	data, err := env.Encode()
	if err != nil {
		return err
	}
	return s.publisher.Publish(ctx, messaging.SubjectOptionsSurface, data)
}
