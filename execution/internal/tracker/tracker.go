// Package tracker follows submitted orders and watches execution quality.
package tracker

import (
	"sync"
	"time"

	"github.com/self-labs/hass-stack/execution/internal/models"
)

const (
	// MaxSlippageBps is the slippage quality limit, 10 basis points.
	MaxSlippageBps = 10.0

	// MinFillRate is the minimum acceptable fill rate.
	MinFillRate = 0.95

	// statsWindow bounds the rolling quality samples.
	statsWindow = 1000
)

// Stats summarizes recent execution quality.
type Stats struct {
	Orders          int     `json:"orders"`
	AvgSlippageBps  float64 `json:"avg_slippage_bps"`
	AvgFillRate     float64 `json:"avg_fill_rate"`
	SlippageBreach  int     `json:"slippage_breaches"`
	FillRateBreach  int     `json:"fill_rate_breaches"`
	ActiveOrders    int     `json:"active_orders"`
	CompletedOrders int     `json:"completed_orders"`
}

type tracked struct {
	order       models.Order
	submittedAt time.Time
	filled      float64
	done        bool
}

// Tracker maintains active orders and rolling quality statistics.
type Tracker struct {
	staleAfter time.Duration

	mu        sync.Mutex
	active    map[string]*tracked
	slippages []float64
	fillRates []float64
	slipOver  int
	fillUnder int
	completed int
}

func New(staleAfter time.Duration) *Tracker {
	if staleAfter <= 0 {
		staleAfter = 30 * time.Second
	}
	return &Tracker{
		staleAfter: staleAfter,
		active:     map[string]*tracked{},
	}
}

// Track registers a submitted order.
func (t *Tracker) Track(order models.Order) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active[order.ID] = &tracked{order: order, submittedAt: time.Now()}
}

// RecordFill folds a fill into the order's quality statistics. The order
// is released once fully filled.
func (t *Tracker) RecordFill(fill models.Fill) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tr, ok := t.active[fill.OrderID]
	if !ok {
		return
	}
	tr.filled += fill.Quantity

	t.slippages = appendBounded(t.slippages, fill.SlippageBps)
	if fill.SlippageBps > MaxSlippageBps {
		t.slipOver++
	}

	if tr.filled >= tr.order.Quantity-1e-9 {
		t.complete(fill.OrderID, tr)
	}
}

// Release finalizes an order that will not fill further (cancelled or
// rejected), recording its fill rate.
func (t *Tracker) Release(orderID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tr, ok := t.active[orderID]
	if !ok {
		return
	}
	t.complete(orderID, tr)
}

func (t *Tracker) complete(orderID string, tr *tracked) {
	rate := 0.0
	if tr.order.Quantity > 0 {
		rate = tr.filled / tr.order.Quantity
		if rate > 1 {
			rate = 1
		}
	}
	t.fillRates = appendBounded(t.fillRates, rate)
	if rate < MinFillRate {
		t.fillUnder++
	}
	t.completed++
	delete(t.active, orderID)
}

// Stale returns orders that have been active longer than the stale
// threshold. Quantity on the returned orders is the unfilled remainder,
// so a partially filled order is only resubmitted for what is left.
func (t *Tracker) Stale(now time.Time) []models.Order {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []models.Order
	for _, tr := range t.active {
		if now.Sub(tr.submittedAt) > t.staleAfter {
			remainder := tr.order
			remainder.Quantity -= tr.filled
			if remainder.Quantity <= 0 {
				continue
			}
			out = append(out, remainder)
		}
	}
	return out
}

// Active returns the number of orders still being tracked.
func (t *Tracker) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.active)
}

// Stats returns a snapshot of the rolling quality statistics.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	return Stats{
		Orders:          t.completed + len(t.active),
		AvgSlippageBps:  mean(t.slippages),
		AvgFillRate:     mean(t.fillRates),
		SlippageBreach:  t.slipOver,
		FillRateBreach:  t.fillUnder,
		ActiveOrders:    len(t.active),
		CompletedOrders: t.completed,
	}
}

func appendBounded(s []float64, v float64) []float64 {
	s = append(s, v)
	if len(s) > statsWindow {
		s = s[len(s)-statsWindow:]
	}
	return s
}

func mean(s []float64) float64 {
	if len(s) == 0 {
		return 0
	}
	var sum float64
	for _, v := range s {
		sum += v
	}
	return sum / float64(len(s))
}
