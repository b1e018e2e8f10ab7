package credibility

import (
	"context"
	"fmt"
	"sync"
)

// Tracker reads and updates source credibility. Implemented by the
// Redis-backed Store and the in-memory Memory fallback.
type Tracker interface {
	Score(ctx context.Context, source string) (float64, error)
	RecordAccuracy(ctx context.Context, source string, accuracy float64) (float64, error)
	Close() error
}

// Memory keeps credibility state in process. Used when Redis is not
// reachable; scores do not survive a restart.
type Memory struct {
	mu      sync.Mutex
	scores  map[string]float64
	history map[string][]float64
}

// NewMemory returns a Memory seeded with the default source scores.
func NewMemory() *Memory {
	scores := make(map[string]float64, len(seedScores))
	for source, score := range seedScores {
		scores[source] = score
	}
	return &Memory{
		scores:  scores,
		history: map[string][]float64{},
	}
}

// Score returns a source's current credibility, or the default for
// unknown sources.
func (m *Memory) Score(_ context.Context, source string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	score, ok := m.scores[source]
	if !ok {
		return DefaultScore, nil
	}
	return score, nil
}

// RecordAccuracy appends an accuracy observation (0 to 1) for a source
// and recomputes its score as the mean of the retained history.
func (m *Memory) RecordAccuracy(_ context.Context, source string, accuracy float64) (float64, error) {
	if accuracy < 0 || accuracy > 1 {
		return 0, fmt.Errorf("accuracy %v out of range [0,1]", accuracy)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	hist := append(m.history[source], accuracy)
	if len(hist) > historyLength {
		hist = hist[len(hist)-historyLength:]
	}
	m.history[source] = hist

	var sum float64
	for _, v := range hist {
		sum += v
	}
	score := sum / float64(len(hist))
	m.scores[source] = score
	return score, nil
}

// Close is a no-op for the in-memory store.
func (m *Memory) Close() error {
	return nil
}
