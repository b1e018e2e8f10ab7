package engine

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/self-labs/hass-stack/risk/internal/models"
)

// Limits holds the portfolio risk parameters.
type Limits struct {
	MaxPositionSize     float64 // fraction of portfolio value per position
	MaxPortfolioRisk    float64 // fraction of portfolio value at risk
	MaxCorrelation      float64 // pairwise correlation ceiling
	MaxSectorExposure   float64 // fraction of portfolio per sector
	MaxLeverage         float64 // gross exposure over total value
	MarginMinimum       float64 // minimum available margin fraction
	EmergencyCashBuffer float64 // cash floor as fraction of total value
	VaRConfidence       float64
	VaRWindow           int
	StopLossPct         float64 // adverse move before forced exit
	RewardRiskRatio     float64 // take profit distance as multiple of stop distance
}

// DefaultLimits are the standing risk parameters.
func DefaultLimits() Limits {
	return Limits{
		MaxPositionSize:     0.02,
		MaxPortfolioRisk:    0.05,
		MaxCorrelation:      0.7,
		MaxSectorExposure:   0.25,
		MaxLeverage:         2.0,
		MarginMinimum:       0.3,
		EmergencyCashBuffer: 0.1,
		VaRConfidence:       0.95,
		VaRWindow:           252,
		StopLossPct:         0.02,
		RewardRiskRatio:     2.0,
	}
}

// StressScenario shocks every position by a price move with a volatility
// multiplier applied to the loss tail.
type StressScenario struct {
	Name          string
	PriceShock    float64
	VolMultiplier float64
}

// DefaultScenarios cover the standing stress tests.
func DefaultScenarios() []StressScenario {
	return []StressScenario{
		{Name: "market_crash", PriceShock: -0.15, VolMultiplier: 2.0},
		{Name: "sector_rotation", PriceShock: -0.08, VolMultiplier: 1.5},
		{Name: "volatility_spike", PriceShock: -0.05, VolMultiplier: 3.0},
	}
}

// Engine validates proposed trades against portfolio limits.
type Engine struct {
	limits    Limits
	scenarios []StressScenario

	mu        sync.RWMutex
	portfolio models.PortfolioState
	returns   map[string][]float64 // daily return history per symbol
}

func New(limits Limits) *Engine {
	return &Engine{
		limits:    limits,
		scenarios: DefaultScenarios(),
		portfolio: models.PortfolioState{Positions: map[string]models.Position{}},
		returns:   map[string][]float64{},
	}
}

// SetPortfolio replaces the tracked portfolio snapshot.
func (e *Engine) SetPortfolio(p models.PortfolioState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p.Positions == nil {
		p.Positions = map[string]models.Position{}
	}
	e.portfolio = p
}

// Portfolio returns a copy of the tracked portfolio.
func (e *Engine) Portfolio() models.PortfolioState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := e.portfolio
	out.Positions = make(map[string]models.Position, len(e.portfolio.Positions))
	for k, v := range e.portfolio.Positions {
		out.Positions[k] = v
	}
	return out
}

// RecordReturn appends a daily return observation for a symbol, keeping at
// most the VaR window.
func (e *Engine) RecordReturn(symbol string, ret float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	hist := append(e.returns[symbol], ret)
	if len(hist) > e.limits.VaRWindow {
		hist = hist[len(hist)-e.limits.VaRWindow:]
	}
	e.returns[symbol] = hist
}

// Validate runs the full check battery against a proposed trade and sizes
// the position when approved.
func (e *Engine) Validate(req models.ValidationRequest) models.ValidationResult {
	e.mu.RLock()
	defer e.mu.RUnlock()

	result := models.ValidationResult{
		SignalID:  req.SignalID,
		Timestamp: time.Now().UTC(),
	}

	if req.Price <= 0 || req.Confidence <= 0 {
		result.Reason = "invalid price or confidence"
		result.RiskLevel = models.RiskCritical
		return result
	}
	if e.portfolio.TotalValue <= 0 {
		result.Reason = "portfolio has no value"
		result.RiskLevel = models.RiskCritical
		return result
	}

	size := e.positionSize(req)
	checks := []struct {
		name string
		ok   bool
	}{
		{"position_limit", e.checkPositionLimit(req, size)},
		{"portfolio_risk", e.checkPortfolioRisk(size)},
		{"sector_exposure", e.checkSectorExposure(req, size)},
		{"correlation_risk", e.checkCorrelation(req)},
		{"leverage_limit", e.checkLeverage(size)},
		{"margin_requirement", e.checkMargin()},
		{"cash_buffer", e.checkCashBuffer(size)},
	}

	for _, c := range checks {
		if !c.ok {
			result.FailedChecks = append(result.FailedChecks, c.name)
		}
	}

	result.Approved = len(result.FailedChecks) == 0
	result.RiskLevel = gradeRisk(len(result.FailedChecks))
	if !result.Approved {
		result.Reason = fmt.Sprintf("failed %d risk checks", len(result.FailedChecks))
		return result
	}

	result.PositionSize = size
	result.StopLoss, result.TakeProfit = e.exitLevels(req)
	return result
}

// positionSize scales the base allocation by signal confidence, recent
// volatility, and portfolio concentration. The base allocation is a hard cap.
func (e *Engine) positionSize(req models.ValidationRequest) float64 {
	base := e.portfolio.TotalValue * e.limits.MaxPositionSize

	volFactor := 1.0
	if vol := e.volatility(req.Symbol); vol > 0 {
		// Higher realized volatility shrinks the allocation.
		volFactor = math.Min(1.0, 0.02/vol)
	}

	corrFactor := 1.0
	if e.maxCorrelationWith(req.Symbol) > e.limits.MaxCorrelation {
		corrFactor = 0.5
	}

	size := base * req.Confidence * volFactor * corrFactor
	return math.Min(size, base)
}

func (e *Engine) exitLevels(req models.ValidationRequest) (stop, take float64) {
	stopDist := req.Price * e.limits.StopLossPct
	if req.Direction == models.Short {
		return req.Price + stopDist, req.Price - stopDist*e.limits.RewardRiskRatio
	}
	return req.Price - stopDist, req.Price + stopDist*e.limits.RewardRiskRatio
}

func (e *Engine) checkPositionLimit(req models.ValidationRequest, size float64) bool {
	existing := 0.0
	if pos, ok := e.portfolio.Positions[req.Symbol]; ok {
		existing = pos.Value()
	}
	return existing+size <= e.portfolio.TotalValue*e.limits.MaxPositionSize+1e-9
}

func (e *Engine) checkPortfolioRisk(size float64) bool {
	atRisk := size * e.limits.StopLossPct
	for _, pos := range e.portfolio.Positions {
		atRisk += pos.Value() * e.limits.StopLossPct
	}
	return atRisk <= e.portfolio.TotalValue*e.limits.MaxPortfolioRisk
}

func (e *Engine) checkSectorExposure(req models.ValidationRequest, size float64) bool {
	if req.Sector == "" {
		return true
	}
	exposure := size
	for _, pos := range e.portfolio.Positions {
		if pos.Sector == req.Sector {
			exposure += pos.Value()
		}
	}
	return exposure <= e.portfolio.TotalValue*e.limits.MaxSectorExposure
}

func (e *Engine) checkCorrelation(req models.ValidationRequest) bool {
	return e.maxCorrelationWith(req.Symbol) <= e.limits.MaxCorrelation
}

func (e *Engine) checkLeverage(size float64) bool {
	gross := e.portfolio.GrossExposure() + size
	return gross <= e.portfolio.TotalValue*e.limits.MaxLeverage
}

func (e *Engine) checkMargin() bool {
	total := e.portfolio.MarginUsed + e.portfolio.MarginAvailable
	if total <= 0 {
		return true
	}
	return e.portfolio.MarginAvailable/total >= e.limits.MarginMinimum
}

func (e *Engine) checkCashBuffer(size float64) bool {
	return e.portfolio.Cash-size >= e.portfolio.TotalValue*e.limits.EmergencyCashBuffer
}

// maxCorrelationWith returns the highest absolute correlation between the
// candidate symbol and any held position.
func (e *Engine) maxCorrelationWith(symbol string) float64 {
	candidate := e.returns[symbol]
	if len(candidate) < 2 {
		return 0
	}
	var maxCorr float64
	for held := range e.portfolio.Positions {
		if held == symbol {
			continue
		}
		if c := math.Abs(correlation(candidate, e.returns[held])); c > maxCorr {
			maxCorr = c
		}
	}
	return maxCorr
}

// volatility is the standard deviation of the symbol's recorded returns.
func (e *Engine) volatility(symbol string) float64 {
	hist := e.returns[symbol]
	if len(hist) < 2 {
		return 0
	}
	var mean float64
	for _, r := range hist {
		mean += r
	}
	mean /= float64(len(hist))
	var variance float64
	for _, r := range hist {
		variance += (r - mean) * (r - mean)
	}
	return math.Sqrt(variance / float64(len(hist)-1))
}

// ValueAtRisk estimates the portfolio's one day VaR by historical
// simulation at the configured confidence level.
func (e *Engine) ValueAtRisk() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()

	n := 0
	for symbol := range e.portfolio.Positions {
		if len(e.returns[symbol]) > n {
			n = len(e.returns[symbol])
		}
	}
	if n < 2 {
		return 0
	}

	// Simulated daily portfolio P&L, aligned from the most recent return.
	pnls := make([]float64, n)
	for symbol, pos := range e.portfolio.Positions {
		hist := e.returns[symbol]
		value := pos.Value()
		for i := 0; i < n; i++ {
			if i < len(hist) {
				pnls[i] += value * hist[len(hist)-1-i]
			}
		}
	}

	sort.Float64s(pnls)
	idx := int(math.Floor(float64(n) * (1 - e.limits.VaRConfidence)))
	if idx >= n {
		idx = n - 1
	}
	loss := pnls[idx]
	if loss >= 0 {
		return 0
	}
	return -loss
}

// StressTest applies each scenario's price shock to the full book.
func (e *Engine) StressTest() []models.StressResult {
	e.mu.RLock()
	defer e.mu.RUnlock()

	results := make([]models.StressResult, 0, len(e.scenarios))
	for _, sc := range e.scenarios {
		var pnl float64
		for _, pos := range e.portfolio.Positions {
			move := pos.Value() * sc.PriceShock
			if pos.Direction == models.Short {
				move = -move
			}
			if move < 0 {
				move *= sc.VolMultiplier
			}
			pnl += move
		}
		pct := 0.0
		if e.portfolio.TotalValue > 0 {
			pct = pnl / e.portfolio.TotalValue
		}
		results = append(results, models.StressResult{
			Scenario:      sc.Name,
			PnL:           pnl,
			PnLPercentage: pct,
		})
	}
	return results
}

// Report assembles the periodic portfolio risk summary.
func (e *Engine) Report() models.RiskReport {
	var leverage float64
	e.mu.RLock()
	gross := e.portfolio.GrossExposure()
	if e.portfolio.TotalValue > 0 {
		leverage = gross / e.portfolio.TotalValue
	}
	e.mu.RUnlock()

	return models.RiskReport{
		ValueAtRisk:   e.ValueAtRisk(),
		GrossExposure: gross,
		Leverage:      leverage,
		StressResults: e.StressTest(),
		GeneratedAt:   time.Now().UTC(),
	}
}

func gradeRisk(failed int) models.RiskLevel {
	switch {
	case failed == 0:
		return models.RiskLow
	case failed == 1:
		return models.RiskMedium
	case failed <= 3:
		return models.RiskHigh
	default:
		return models.RiskCritical
	}
}

// correlation is the Pearson coefficient over the overlapping tail of two
// return series.
func correlation(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n < 2 {
		return 0
	}
	a = a[len(a)-n:]
	b = b[len(b)-n:]

	var meanA, meanB float64
	for i := 0; i < n; i++ {
		meanA += a[i]
		meanB += b[i]
	}
	meanA /= float64(n)
	meanB /= float64(n)

	var cov, varA, varB float64
	for i := 0; i < n; i++ {
		da := a[i] - meanA
		db := b[i] - meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		return 0
	}
	return cov / math.Sqrt(varA*varB)
}
