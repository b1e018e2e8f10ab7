package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/self-labs/hass-stack/risk/internal/models"
)

func healthyPortfolio() models.PortfolioState {
	return models.PortfolioState{
		TotalValue:      1_000_000,
		Cash:            500_000,
		MarginUsed:      0,
		MarginAvailable: 500_000,
		Positions:       map[string]models.Position{},
	}
}

func TestValidateApprovesCleanTrade(t *testing.T) {
	e := New(DefaultLimits())
	e.SetPortfolio(healthyPortfolio())

	result := e.Validate(models.ValidationRequest{
		SignalID:   "sig-1",
		Symbol:     "AAPL",
		Direction:  models.Long,
		Confidence: 0.7,
		Price:      100,
	})

	require.True(t, result.Approved)
	assert.Empty(t, result.FailedChecks)
	assert.Equal(t, models.RiskLow, result.RiskLevel)

	// 2% of 1M scaled by 0.7 confidence.
	assert.InDelta(t, 14_000, result.PositionSize, 1e-6)
	assert.InDelta(t, 98.0, result.StopLoss, 1e-9)
	assert.InDelta(t, 104.0, result.TakeProfit, 1e-9)
}

func TestValidateShortExitLevels(t *testing.T) {
	e := New(DefaultLimits())
	e.SetPortfolio(healthyPortfolio())

	result := e.Validate(models.ValidationRequest{
		SignalID:   "sig-2",
		Symbol:     "TSLA",
		Direction:  models.Short,
		Confidence: 0.5,
		Price:      100,
	})

	require.True(t, result.Approved)
	assert.InDelta(t, 102.0, result.StopLoss, 1e-9)
	assert.InDelta(t, 96.0, result.TakeProfit, 1e-9)
}

func TestValidateRejectsWhenPositionLimitExceeded(t *testing.T) {
	p := healthyPortfolio()
	p.Positions["AAPL"] = models.Position{
		Symbol:       "AAPL",
		Direction:    models.Long,
		Quantity:     100,
		CurrentPrice: 150,
	}

	e := New(DefaultLimits())
	e.SetPortfolio(p)

	result := e.Validate(models.ValidationRequest{
		SignalID:   "sig-3",
		Symbol:     "AAPL",
		Direction:  models.Long,
		Confidence: 0.7,
		Price:      150,
	})

	require.False(t, result.Approved)
	assert.Contains(t, result.FailedChecks, "position_limit")
	assert.Equal(t, models.RiskMedium, result.RiskLevel)
	assert.Zero(t, result.PositionSize)
}

func TestValidateRejectsWhenSectorConcentrated(t *testing.T) {
	p := healthyPortfolio()
	p.Positions["MSFT"] = models.Position{
		Symbol:       "MSFT",
		Direction:    models.Long,
		Quantity:     500,
		CurrentPrice: 500,
		Sector:       "technology",
	}

	e := New(DefaultLimits())
	e.SetPortfolio(p)

	result := e.Validate(models.ValidationRequest{
		SignalID:   "sig-4",
		Symbol:     "NVDA",
		Direction:  models.Long,
		Confidence: 0.7,
		Price:      120,
		Sector:     "technology",
	})

	require.False(t, result.Approved)
	assert.Contains(t, result.FailedChecks, "sector_exposure")
}

func TestValidateRejectsWhenCashBufferBreached(t *testing.T) {
	p := healthyPortfolio()
	p.Cash = 105_000

	e := New(DefaultLimits())
	e.SetPortfolio(p)

	result := e.Validate(models.ValidationRequest{
		SignalID:   "sig-5",
		Symbol:     "AAPL",
		Direction:  models.Long,
		Confidence: 0.7,
		Price:      100,
	})

	require.False(t, result.Approved)
	assert.Contains(t, result.FailedChecks, "cash_buffer")
}

func TestValidateRejectsCorrelatedSymbol(t *testing.T) {
	p := healthyPortfolio()
	p.Positions["SPY"] = models.Position{
		Symbol:       "SPY",
		Direction:    models.Long,
		Quantity:     10,
		CurrentPrice: 500,
	}

	e := New(DefaultLimits())
	e.SetPortfolio(p)

	// Identical return series means perfect correlation.
	returns := []float64{0.01, -0.02, 0.015, 0.03}
	for _, r := range returns {
		e.RecordReturn("SPY", r)
		e.RecordReturn("VOO", r)
	}

	result := e.Validate(models.ValidationRequest{
		SignalID:   "sig-6",
		Symbol:     "VOO",
		Direction:  models.Long,
		Confidence: 0.7,
		Price:      460,
	})

	require.False(t, result.Approved)
	assert.Contains(t, result.FailedChecks, "correlation_risk")
}

func TestValidateRejectsEmptyPortfolio(t *testing.T) {
	e := New(DefaultLimits())

	result := e.Validate(models.ValidationRequest{
		SignalID:   "sig-7",
		Symbol:     "AAPL",
		Direction:  models.Long,
		Confidence: 0.7,
		Price:      100,
	})

	require.False(t, result.Approved)
	assert.Equal(t, models.RiskCritical, result.RiskLevel)
	assert.Equal(t, "portfolio has no value", result.Reason)
}

func TestValueAtRiskHistoricalSimulation(t *testing.T) {
	p := healthyPortfolio()
	p.Positions["AAPL"] = models.Position{
		Symbol:       "AAPL",
		Direction:    models.Long,
		Quantity:     100,
		CurrentPrice: 100,
	}

	e := New(DefaultLimits())
	e.SetPortfolio(p)

	// 20 observations; at 95% confidence the cutoff index is 1, so VaR
	// is the second worst simulated day.
	e.RecordReturn("AAPL", -0.05)
	e.RecordReturn("AAPL", -0.02)
	for i := 0; i < 18; i++ {
		e.RecordReturn("AAPL", 0.001*float64(i+1))
	}

	// Position value 10k; second worst return -2% loses 200.
	assert.InDelta(t, 200.0, e.ValueAtRisk(), 1e-6)
}

func TestValueAtRiskEmptyHistory(t *testing.T) {
	e := New(DefaultLimits())
	e.SetPortfolio(healthyPortfolio())
	assert.Zero(t, e.ValueAtRisk())
}

func TestStressTestScenarios(t *testing.T) {
	p := healthyPortfolio()
	p.Positions["AAPL"] = models.Position{
		Symbol:       "AAPL",
		Direction:    models.Long,
		Quantity:     1000,
		CurrentPrice: 100,
	}

	e := New(DefaultLimits())
	e.SetPortfolio(p)

	results := e.StressTest()
	require.Len(t, results, 3)

	byName := map[string]models.StressResult{}
	for _, r := range results {
		byName[r.Scenario] = r
	}

	// 100k position, -15% shock doubled by the volatility multiplier.
	crash := byName["market_crash"]
	assert.InDelta(t, -30_000, crash.PnL, 1e-6)
	assert.InDelta(t, -0.03, crash.PnLPercentage, 1e-9)

	rotation := byName["sector_rotation"]
	assert.InDelta(t, -12_000, rotation.PnL, 1e-6)

	spike := byName["volatility_spike"]
	assert.InDelta(t, -15_000, spike.PnL, 1e-6)
}

func TestStressTestShortBookProfitsInCrash(t *testing.T) {
	p := healthyPortfolio()
	p.Positions["TSLA"] = models.Position{
		Symbol:       "TSLA",
		Direction:    models.Short,
		Quantity:     100,
		CurrentPrice: 200,
	}

	e := New(DefaultLimits())
	e.SetPortfolio(p)

	results := e.StressTest()
	for _, r := range results {
		assert.Greater(t, r.PnL, 0.0, r.Scenario)
	}
}

func TestReportIncludesLeverage(t *testing.T) {
	p := healthyPortfolio()
	p.Positions["AAPL"] = models.Position{
		Symbol:       "AAPL",
		Direction:    models.Long,
		Quantity:     2000,
		CurrentPrice: 100,
	}

	e := New(DefaultLimits())
	e.SetPortfolio(p)

	report := e.Report()
	assert.InDelta(t, 200_000, report.GrossExposure, 1e-6)
	assert.InDelta(t, 0.2, report.Leverage, 1e-9)
	assert.Len(t, report.StressResults, 3)
}

func TestCorrelation(t *testing.T) {
	a := []float64{0.01, 0.02, -0.01, 0.03}
	b := []float64{-0.01, -0.02, 0.01, -0.03}

	assert.InDelta(t, 1.0, correlation(a, a), 1e-9)
	assert.InDelta(t, -1.0, correlation(a, b), 1e-9)
	assert.Zero(t, correlation(a, []float64{0.01}))
}
