// Package credibility tracks per-source reliability scores in Redis.
// A source's score is the mean of its recent signal accuracies; unknown
// sources start at 0.5.
package credibility

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultScore  = 0.5
	historyLength = 100
	keyPrefix     = "credibility:"
)

// Seed scores for well-known sources, applied once on startup.
var seedScores = map[string]float64{
	"reuters":      0.8,
	"bloomberg":    0.8,
	"wsj":          0.7,
	"seekingalpha": 0.6,
	"twitter":      0.4,
}

// Store reads and updates source credibility.
type Store struct {
	client *redis.Client
}

// NewStore connects to Redis and seeds default source scores that are
// not already present.
func NewStore(redisURL string) (*Store, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	s := &Store{client: client}
	if err := s.seed(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) seed(ctx context.Context) error {
	for source, score := range seedScores {
		key := keyPrefix + "score:" + source
		ok, err := s.client.SetNX(ctx, key, score, 0).Result()
		if err != nil {
			return fmt.Errorf("seed credibility for %s: %w", source, err)
		}
		_ = ok
	}
	return nil
}

// Score returns a source's current credibility, or the default for
// unknown sources.
func (s *Store) Score(ctx context.Context, source string) (float64, error) {
	val, err := s.client.Get(ctx, keyPrefix+"score:"+source).Result()
	if err == redis.Nil {
		return DefaultScore, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get credibility for %s: %w", source, err)
	}

	score, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("parse credibility for %s: %w", source, err)
	}
	return score, nil
}

// RecordAccuracy appends an accuracy observation (0 to 1) for a source
// and recomputes its score as the mean of the retained history.
func (s *Store) RecordAccuracy(ctx context.Context, source string, accuracy float64) (float64, error) {
	if accuracy < 0 || accuracy > 1 {
		return 0, fmt.Errorf("accuracy %v out of range [0,1]", accuracy)
	}

	histKey := keyPrefix + "history:" + source

	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, histKey, accuracy)
	pipe.LTrim(ctx, histKey, 0, historyLength-1)
	lrange := pipe.LRange(ctx, histKey, 0, historyLength-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("record accuracy for %s: %w", source, err)
	}

	vals, err := lrange.Result()
	if err != nil {
		return 0, fmt.Errorf("read accuracy history for %s: %w", source, err)
	}

	var sum float64
	for _, v := range vals {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			continue
		}
		sum += f
	}
	score := sum / float64(len(vals))

	if err := s.client.Set(ctx, keyPrefix+"score:"+source, score, 0).Err(); err != nil {
		return 0, fmt.Errorf("store credibility for %s: %w", source, err)
	}
	return score, nil
}

// Close releases the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}
