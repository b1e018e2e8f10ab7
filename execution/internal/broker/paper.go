package broker

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/self-labs/hass-stack/execution/internal/models"
)

// PaperConfig controls the simulated fill behavior.
type PaperConfig struct {
	// SlippageBps is the maximum adverse slippage applied to a fill,
	// drawn uniformly from [0, SlippageBps].
	SlippageBps float64

	// PartialFillRate is the probability that a market order fills
	// partially instead of completely.
	PartialFillRate float64

	// Prices maps symbols to their reference price. Orders for unknown
	// symbols are rejected.
	Prices map[string]float64
}

// DefaultPaperConfig simulates a reasonably liquid venue.
func DefaultPaperConfig() PaperConfig {
	return PaperConfig{
		SlippageBps:     5,
		PartialFillRate: 0.1,
		Prices:          map[string]float64{},
	}
}

// Paper is an in-memory broker that simulates fills with configurable
// slippage and occasional partial fills.
type Paper struct {
	cfg PaperConfig
	rng *rand.Rand

	mu     sync.Mutex
	orders map[string]*paperOrder
}

type paperOrder struct {
	order  models.Order
	filled float64
	avg    float64
	status models.OrderStatus
	last   time.Time
}

func NewPaper(cfg PaperConfig) *Paper {
	if cfg.Prices == nil {
		cfg.Prices = map[string]float64{}
	}
	return &Paper{
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		orders: map[string]*paperOrder{},
	}
}

// SetPrice updates the venue's reference price for a symbol.
func (p *Paper) SetPrice(symbol string, price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg.Prices[symbol] = price
}

// Place simulates execution of the order against the reference price.
func (p *Paper) Place(_ context.Context, order models.Order) ([]models.Fill, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ref, ok := p.cfg.Prices[order.Symbol]
	if !ok || ref <= 0 || order.Quantity <= 0 {
		p.orders[order.ID] = &paperOrder{order: order, status: models.StatusRejected, last: time.Now().UTC()}
		return nil, ErrOrderRejected
	}

	// Limit orders away from the market rest unfilled.
	if order.Type == models.Limit && order.LimitPrice > 0 {
		if (order.Direction == "BUY" && order.LimitPrice < ref) ||
			(order.Direction == "SELL" && order.LimitPrice > ref) {
			p.orders[order.ID] = &paperOrder{order: order, status: models.StatusActive, last: time.Now().UTC()}
			return nil, nil
		}
	}

	slip := ref * (p.rng.Float64() * p.cfg.SlippageBps / 10000)
	price := ref + slip
	if order.Direction == "SELL" {
		price = ref - slip
	}

	quantity := order.Quantity
	status := models.StatusFilled
	if p.rng.Float64() < p.cfg.PartialFillRate {
		quantity = order.Quantity * (0.5 + p.rng.Float64()*0.4)
		status = models.StatusPartiallyFilled
	}

	now := time.Now().UTC()
	p.orders[order.ID] = &paperOrder{
		order:  order,
		filled: quantity,
		avg:    price,
		status: status,
		last:   now,
	}

	slippageBps := (price - ref) / ref * 10000
	if order.Direction == "SELL" {
		slippageBps = (ref - price) / ref * 10000
	}

	return []models.Fill{{
		OrderID:        order.ID,
		Symbol:         order.Symbol,
		Direction:      order.Direction,
		Quantity:       quantity,
		Price:          price,
		ReferencePrice: ref,
		SlippageBps:    slippageBps,
		Strategy:       order.Strategy,
		Timestamp:      now,
	}}, nil
}

// Status returns the simulated order state.
func (p *Paper) Status(_ context.Context, orderID string) (models.OrderUpdate, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	po, ok := p.orders[orderID]
	if !ok {
		return models.OrderUpdate{}, ErrOrderNotFound
	}
	return models.OrderUpdate{
		OrderID:           orderID,
		Status:            po.status,
		FilledQuantity:    po.filled,
		RemainingQuantity: po.order.Quantity - po.filled,
		AveragePrice:      po.avg,
		LastFillTime:      po.last,
	}, nil
}

// Cancel cancels an active or partially filled order.
func (p *Paper) Cancel(_ context.Context, orderID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	po, ok := p.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	if po.status.Terminal() {
		return nil
	}
	po.status = models.StatusCancelled
	return nil
}
