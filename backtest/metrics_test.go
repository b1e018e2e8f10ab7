package backtest

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func equityCurve(values ...float64) []EquityPoint {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	out := make([]EquityPoint, len(values))
	for i, v := range values {
		out[i] = EquityPoint{Timestamp: start.Add(time.Duration(i) * 24 * time.Hour), Equity: v}
	}
	return out
}

func exitTrade(pnl float64) Trade {
	return Trade{Side: "SELL", Quantity: 1, Price: 100, PnL: pnl, Exit: true}
}

func TestComputeMetrics(t *testing.T) {
	returns := []float64{0.10, -0.10, 0.055}
	equity := equityCurve(110, 99, 104.45)
	trades := []Trade{
		{Side: "BUY", Quantity: 1, Price: 100}, // entry, ignored
		exitTrade(10),
		exitTrade(-5),
		exitTrade(20),
		exitTrade(-5),
	}

	m := computeMetrics(returns, equity, trades, 252)

	assert.InDelta(t, 104.45/110-1, m.TotalReturn, 1e-9)

	mean := (0.10 - 0.10 + 0.055) / 3
	assert.InDelta(t, mean*252, m.AnnualizedReturn, 1e-9)

	sd := stddev(returns, mean)
	assert.InDelta(t, math.Sqrt(252)*mean/sd, m.SharpeRatio, 1e-9)

	// Peak 110, trough 99.
	assert.InDelta(t, 11.0/110.0, m.MaxDrawdown, 1e-9)

	assert.Equal(t, 4, m.TradeCount)
	assert.InDelta(t, 0.5, m.WinRate, 1e-9)
	assert.InDelta(t, 30.0/10.0, m.ProfitFactor, 1e-9)
	assert.InDelta(t, 5.0, m.AvgTrade, 1e-9)
}

func TestComputeMetricsNoLosingTrades(t *testing.T) {
	m := computeMetrics([]float64{0.01}, equityCurve(100, 101), []Trade{exitTrade(10)}, 252)
	assert.Equal(t, 0.0, m.ProfitFactor)
	assert.Equal(t, 1.0, m.WinRate)
}

func TestComputeMetricsEmpty(t *testing.T) {
	m := computeMetrics(nil, nil, nil, 252)
	assert.Zero(t, m.TotalReturn)
	assert.Zero(t, m.SharpeRatio)
	assert.Zero(t, m.TradeCount)
}
