package broker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/self-labs/hass-stack/execution/internal/models"
)

func newTestPaper() *Paper {
	cfg := PaperConfig{
		SlippageBps:     5,
		PartialFillRate: 0, // deterministic full fills
		Prices:          map[string]float64{"AAPL": 150},
	}
	return NewPaper(cfg)
}

func TestPaperPlaceMarketOrder(t *testing.T) {
	p := newTestPaper()
	ctx := context.Background()

	fills, err := p.Place(ctx, models.Order{
		ID:        "ord-1",
		Symbol:    "AAPL",
		Type:      models.Market,
		Direction: "BUY",
		Quantity:  100,
	})
	require.NoError(t, err)
	require.Len(t, fills, 1)

	fill := fills[0]
	assert.Equal(t, 100.0, fill.Quantity)
	assert.Equal(t, 150.0, fill.ReferencePrice)
	// Buy slippage is adverse: at or above reference, within 5bp.
	assert.GreaterOrEqual(t, fill.Price, 150.0)
	assert.LessOrEqual(t, fill.Price, 150*(1+5.0/10000))
	assert.GreaterOrEqual(t, fill.SlippageBps, 0.0)
	assert.LessOrEqual(t, fill.SlippageBps, 5.0)

	status, err := p.Status(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFilled, status.Status)
	assert.Equal(t, 100.0, status.FilledQuantity)
	assert.Zero(t, status.RemainingQuantity)
}

func TestPaperSellSlippageIsAdverse(t *testing.T) {
	p := newTestPaper()

	fills, err := p.Place(context.Background(), models.Order{
		ID:        "ord-2",
		Symbol:    "AAPL",
		Type:      models.Market,
		Direction: "SELL",
		Quantity:  50,
	})
	require.NoError(t, err)
	require.Len(t, fills, 1)

	assert.LessOrEqual(t, fills[0].Price, 150.0)
	assert.GreaterOrEqual(t, fills[0].SlippageBps, 0.0)
}

func TestPaperRejectsUnknownSymbol(t *testing.T) {
	p := newTestPaper()

	_, err := p.Place(context.Background(), models.Order{
		ID:        "ord-3",
		Symbol:    "NOPE",
		Type:      models.Market,
		Direction: "BUY",
		Quantity:  100,
	})
	assert.ErrorIs(t, err, ErrOrderRejected)

	status, err := p.Status(context.Background(), "ord-3")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, status.Status)
}

func TestPaperLimitOrderAwayFromMarketRests(t *testing.T) {
	p := newTestPaper()
	ctx := context.Background()

	fills, err := p.Place(ctx, models.Order{
		ID:         "ord-4",
		Symbol:     "AAPL",
		Type:       models.Limit,
		Direction:  "BUY",
		Quantity:   100,
		LimitPrice: 140, // below market, rests
	})
	require.NoError(t, err)
	assert.Empty(t, fills)

	status, err := p.Status(ctx, "ord-4")
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, status.Status)
}

func TestPaperCancel(t *testing.T) {
	p := newTestPaper()
	ctx := context.Background()

	_, err := p.Place(ctx, models.Order{
		ID:         "ord-5",
		Symbol:     "AAPL",
		Type:       models.Limit,
		Direction:  "BUY",
		Quantity:   100,
		LimitPrice: 140,
	})
	require.NoError(t, err)

	require.NoError(t, p.Cancel(ctx, "ord-5"))

	status, err := p.Status(ctx, "ord-5")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, status.Status)

	assert.ErrorIs(t, p.Cancel(ctx, "missing"), ErrOrderNotFound)
}

func TestPaperPartialFill(t *testing.T) {
	cfg := PaperConfig{
		SlippageBps:     0,
		PartialFillRate: 1, // always partial
		Prices:          map[string]float64{"AAPL": 150},
	}
	p := NewPaper(cfg)

	fills, err := p.Place(context.Background(), models.Order{
		ID:        "ord-6",
		Symbol:    "AAPL",
		Type:      models.Market,
		Direction: "BUY",
		Quantity:  100,
	})
	require.NoError(t, err)
	require.Len(t, fills, 1)

	assert.Greater(t, fills[0].Quantity, 0.0)
	assert.Less(t, fills[0].Quantity, 100.0)

	status, err := p.Status(context.Background(), "ord-6")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPartiallyFilled, status.Status)
}
