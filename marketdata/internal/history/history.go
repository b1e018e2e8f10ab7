// Package history keeps bounded in-memory bar history per symbol.
package history

import (
	"sync"

	"github.com/self-labs/hass-stack/marketdata/internal/models"
)

// Store holds a fixed-capacity ring of bars per symbol.
// Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	capacity int
	rings    map[string]*ring
}

type ring struct {
	bars  []models.Bar
	start int
	count int
}

// NewStore creates a Store keeping at most capacity bars per symbol.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = 500
	}
	return &Store{
		capacity: capacity,
		rings:    make(map[string]*ring),
	}
}

// Append adds a bar to the symbol's history, evicting the oldest bar
// when the ring is full.
func (s *Store) Append(bar models.Bar) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rings[bar.Symbol]
	if !ok {
		r = &ring{bars: make([]models.Bar, s.capacity)}
		s.rings[bar.Symbol] = r
	}

	idx := (r.start + r.count) % s.capacity
	r.bars[idx] = bar
	if r.count < s.capacity {
		r.count++
	} else {
		r.start = (r.start + 1) % s.capacity
	}
}

// Bars returns the symbol's history, oldest first.
func (s *Store) Bars(symbol string) []models.Bar {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rings[symbol]
	if !ok {
		return nil
	}

	out := make([]models.Bar, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.bars[(r.start+i)%s.capacity]
	}
	return out
}

// Closes returns the close prices for a symbol, oldest first.
func (s *Store) Closes(symbol string) []float64 {
	bars := s.Bars(symbol)
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// HighLowClose returns the high, low, and close series for a symbol.
func (s *Store) HighLowClose(symbol string) (highs, lows, closes []float64) {
	bars := s.Bars(symbol)
	highs = make([]float64, len(bars))
	lows = make([]float64, len(bars))
	closes = make([]float64, len(bars))
	for i, b := range bars {
		highs[i] = b.High
		lows[i] = b.Low
		closes[i] = b.Close
	}
	return highs, lows, closes
}

// Len returns how many bars are stored for a symbol.
func (s *Store) Len(symbol string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.rings[symbol]; ok {
		return r.count
	}
	return 0
}

// Symbols returns all symbols with stored history.
func (s *Store) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.rings))
	for sym := range s.rings {
		out = append(out, sym)
	}
	return out
}
