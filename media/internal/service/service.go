// Package service scores news batches and publishes sentiment signals
// strong enough to act on.
package service

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/self-labs/hass-stack/common/envelope"
	"github.com/self-labs/hass-stack/common/logging"
	"github.com/self-labs/hass-stack/common/messaging"
	"github.com/self-labs/hass-stack/media/internal/metrics"
	"github.com/self-labs/hass-stack/media/internal/models"
	"github.com/self-labs/hass-stack/media/internal/sentiment"
)

const agentName = "media_analysis"

// Aggregation thresholds. A signal requires a strong weighted average
// with low disagreement across at least minSources items.
const (
	sentimentThreshold = 0.7
	stdDevLimit        = 0.3
	minSources         = 3
)

// signalTTL bounds how long a sentiment signal stays actionable.
const signalTTL = 24 * time.Hour

// CredibilityReader resolves a source's reliability weight.
type CredibilityReader interface {
	Score(ctx context.Context, source string) (float64, error)
}

type Service struct {
	credibility CredibilityReader
	publisher   messaging.Publisher
	logger      *logging.Logger
}

func New(cred CredibilityReader, publisher messaging.Publisher, logger *logging.Logger) *Service {
	return &Service{
		credibility: cred,
		publisher:   publisher,
		logger:      logger,
	}
}

// ProcessBatch scores a batch of news items grouped by symbol and
// publishes a sentiment signal for every symbol whose weighted
// sentiment clears the thresholds. Returns the published signals.
func (s *Service) ProcessBatch(ctx context.Context, items []models.NewsItem) ([]models.SentimentSignal, error) {
	bySymbol := make(map[string][]models.NewsItem)
	for _, item := range items {
		if item.Symbol == "" {
			continue
		}
		bySymbol[item.Symbol] = append(bySymbol[item.Symbol], item)
	}

	var out []models.SentimentSignal
	for symbol, group := range bySymbol {
		metrics.ItemsProcessed.Add(float64(len(group)))
		if len(group) < minSources {
			continue
		}

		sig, ok, err := s.aggregate(ctx, symbol, group)
		if err != nil {
			return out, err
		}
		if !ok {
			continue
		}

		if err := s.publishSignal(ctx, sig); err != nil {
			metrics.PublishErrors.Inc()
			s.logger.ErrorContext(ctx, "failed to publish sentiment signal",
				logging.Symbol(symbol), logging.SignalID(sig.ID), logging.Error(err))
			continue
		}
		metrics.SignalsEmitted.WithLabelValues(sig.Direction).Inc()
		out = append(out, sig)
	}
	return out, nil
}

// aggregate computes the credibility-weighted sentiment for one
// symbol's items.
func (s *Service) aggregate(ctx context.Context, symbol string, items []models.NewsItem) (models.SentimentSignal, bool, error) {
	weighted := make([]float64, 0, len(items))
	for _, item := range items {
		weight, err := s.credibility.Score(ctx, item.Source)
		if err != nil {
			return models.SentimentSignal{}, false, err
		}
		score := sentiment.Score(item.Headline + " " + item.Body)
		weighted = append(weighted, score*weight)
	}

	mean := 0.0
	for _, w := range weighted {
		mean += w
	}
	mean /= float64(len(weighted))

	variance := 0.0
	for _, w := range weighted {
		variance += (w - mean) * (w - mean)
	}
	std := math.Sqrt(variance / float64(len(weighted)))

	if math.Abs(mean) <= sentimentThreshold || std >= stdDevLimit {
		return models.SentimentSignal{}, false, nil
	}

	direction := "SELL"
	if mean > 0 {
		direction = "BUY"
	}
	now := time.Now().UTC()
	return models.SentimentSignal{
		ID:         uuid.New().String(),
		Symbol:     symbol,
		Direction:  direction,
		Confidence: math.Min(math.Abs(mean), 1.0),
		Score:      mean,
		StdDev:     std,
		NumSources: len(items),
		Timestamp:  now,
		ExpiresAt:  now.Add(signalTTL),
	}, true, nil
}

func (s *Service) publishSignal(ctx context.Context, sig models.SentimentSignal) error {
	env, err := envelope.New(envelope.TypeSignal, envelope.PriorityP2, agentName, "risk_management", sig)
	if err != nil {
		return err
	}
	env.CorrelationID = sig.ID
	return messaging.PublishEnvelope(ctx, s.publisher, messaging.SubjectMediaSentiment, env)
}
