package backtest

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/self-labs/hass-stack/common/indicators"
)

// Rule thresholds and confidences, matching the live signal engine.
const (
	rsiOversold   = 30.0
	rsiOverbought = 70.0

	confRSI       = 0.70
	confMACD      = 0.60
	confBollinger = 0.65
	confVolume    = 0.60

	volumeSpikeRatio  = 2.0
	volumeSpikeWindow = 20

	// sizingVolWindow bounds the return history used for the
	// volatility sizing factor.
	sizingVolWindow = 20

	// impactCap bounds simulated market impact at 10 bps.
	impactCap = 0.001
)

// Trade records one simulated fill.
type Trade struct {
	Timestamp  time.Time `json:"timestamp"`
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"`
	Quantity   float64   `json:"quantity"`
	Price      float64   `json:"price"`
	Commission float64   `json:"commission"`
	PnL        float64   `json:"pnl"`
	Reason     string    `json:"reason"`
	Exit       bool      `json:"exit"`
}

// EquityPoint is one step of the equity curve.
type EquityPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Equity    float64   `json:"equity"`
}

// Result is the full outcome of a run.
type Result struct {
	Scenario    *Scenario     `json:"scenario"`
	Metrics     Metrics       `json:"metrics"`
	EquityCurve []EquityPoint `json:"equity_curve"`
	Trades      []Trade       `json:"trades"`
	FinalCash   float64       `json:"final_cash"`
}

type position struct {
	qty       float64 // signed, negative for short
	entry     float64
	entryTime time.Time
	stop      float64
	take      float64
}

type candidate struct {
	direction  string
	confidence float64
	reason     string
}

// Engine replays bars chronologically and simulates fills.
type Engine struct {
	scenario *Scenario
	series   map[string][]Bar

	cash      float64
	positions map[string]*position
	bars      map[string][]Bar     // bars seen so far per symbol
	returns   map[string][]float64 // per-bar returns per symbol

	trades      []Trade
	equity      []EquityPoint
	stepReturns []float64 // per-step portfolio returns
}

// NewEngine prepares a run over the given bar series.
func NewEngine(sc *Scenario, series map[string][]Bar) *Engine {
	return &Engine{
		scenario:  sc,
		series:    series,
		cash:      sc.InitialCapital,
		positions: make(map[string]*position),
		bars:      make(map[string][]Bar),
		returns:   make(map[string][]float64),
	}
}

// Run replays every bar and returns the aggregated result.
func (e *Engine) Run() (*Result, error) {
	timeline := e.timeline()
	if len(timeline) == 0 {
		return nil, fmt.Errorf("no bars to replay for scenario %q", e.scenario.Name)
	}

	cursor := make(map[string]int, len(e.series))
	lastEquity := e.scenario.InitialCapital

	for _, ts := range timeline {
		for _, symbol := range e.scenario.Symbols {
			bars := e.series[symbol]
			i := cursor[symbol]
			if i >= len(bars) || !bars[i].Timestamp.Equal(ts) {
				continue
			}
			cursor[symbol] = i + 1
			e.step(bars[i])
		}

		equity := e.markToMarket()
		e.equity = append(e.equity, EquityPoint{Timestamp: ts, Equity: equity})
		e.stepReturns = append(e.stepReturns, equity/lastEquity-1)
		lastEquity = equity
	}

	return &Result{
		Scenario:    e.scenario,
		Metrics:     computeMetrics(e.stepReturns, e.equity, e.trades, e.scenario.periodsPerYear()),
		EquityCurve: e.equity,
		Trades:      e.trades,
		FinalCash:   e.cash,
	}, nil
}

// step processes one bar: record history, handle exits, then entries.
func (e *Engine) step(bar Bar) {
	history := e.bars[bar.Symbol]
	if n := len(history); n > 0 && history[n-1].Close > 0 {
		e.recordReturn(bar.Symbol, bar.Close/history[n-1].Close-1)
	}
	e.bars[bar.Symbol] = append(history, bar)

	e.checkExits(bar)

	cand, ok := e.evaluate(bar)
	if !ok {
		return
	}
	e.execute(bar, cand)
}

func (e *Engine) recordReturn(symbol string, ret float64) {
	hist := append(e.returns[symbol], ret)
	if len(hist) > sizingVolWindow {
		hist = hist[len(hist)-sizingVolWindow:]
	}
	e.returns[symbol] = hist
}

// checkExits closes a position whose stop or take level traded within
// the bar's range. Stops win when both levels are inside the range.
func (e *Engine) checkExits(bar Bar) {
	pos, ok := e.positions[bar.Symbol]
	if !ok {
		return
	}

	long := pos.qty > 0
	switch {
	case long && bar.Low <= pos.stop:
		e.closePosition(bar, pos.stop, "stop_loss")
	case long && bar.High >= pos.take:
		e.closePosition(bar, pos.take, "take_profit")
	case !long && bar.High >= pos.stop:
		e.closePosition(bar, pos.stop, "stop_loss")
	case !long && bar.Low <= pos.take:
		e.closePosition(bar, pos.take, "take_profit")
	}
}

// evaluate runs the indicator rules over the accumulated history. The
// first triggered rule wins, in the live engine's evaluation order.
func (e *Engine) evaluate(bar Bar) (candidate, bool) {
	history := e.bars[bar.Symbol]
	closes := make([]float64, len(history))
	for i, b := range history {
		closes[i] = b.Close
	}

	if rsi, err := indicators.RSI(closes, indicators.RSIPeriod); err == nil {
		switch {
		case rsi < rsiOversold:
			return candidate{"BUY", confRSI, "RSI_OVERSOLD"}, true
		case rsi > rsiOverbought:
			return candidate{"SELL", confRSI, "RSI_OVERBOUGHT"}, true
		}
	}

	if dir, ok := e.macdCross(closes); ok {
		return candidate{dir, confMACD, "MACD_CROSSOVER"}, true
	}

	if bb, err := indicators.Bollinger(closes, indicators.BollingerSpan, indicators.BollingerWidth); err == nil {
		switch {
		case bar.Close < bb.Lower:
			return candidate{"BUY", confBollinger, "BB_OVERSOLD"}, true
		case bar.Close > bb.Upper:
			return candidate{"SELL", confBollinger, "BB_OVERBOUGHT"}, true
		}
	}

	if dir, ok := volumeSpike(history); ok {
		return candidate{dir, confVolume, "VOLUME_SPIKE"}, true
	}
	return candidate{}, false
}

func (e *Engine) macdCross(closes []float64) (string, bool) {
	if len(closes) < indicators.MACDSlow+indicators.MACDSignalSpan+1 {
		return "", false
	}
	cur, err := indicators.MACD(closes, indicators.MACDFast, indicators.MACDSlow, indicators.MACDSignalSpan)
	if err != nil {
		return "", false
	}
	prev, err := indicators.MACD(closes[:len(closes)-1], indicators.MACDFast, indicators.MACDSlow, indicators.MACDSignalSpan)
	if err != nil {
		return "", false
	}
	if cur.Histogram > 0 && prev.Histogram <= 0 {
		return "BUY", true
	}
	if cur.Histogram < 0 && prev.Histogram >= 0 {
		return "SELL", true
	}
	return "", false
}

func volumeSpike(history []Bar) (string, bool) {
	if len(history) < volumeSpikeWindow+1 {
		return "", false
	}
	latest := history[len(history)-1]
	window := history[len(history)-1-volumeSpikeWindow : len(history)-1]

	var sum int64
	for _, b := range window {
		sum += b.Volume
	}
	avg := float64(sum) / float64(volumeSpikeWindow)
	if avg == 0 || float64(latest.Volume) <= avg*volumeSpikeRatio {
		return "", false
	}
	if latest.Close > latest.Open {
		return "BUY", true
	}
	return "SELL", true
}

// execute turns a signal into a fill. A signal against an open
// position closes it; a signal with no position opens one.
func (e *Engine) execute(bar Bar, cand candidate) {
	pos, held := e.positions[bar.Symbol]

	if held {
		long := pos.qty > 0
		if (long && cand.direction == "SELL") || (!long && cand.direction == "BUY") {
			e.closePosition(bar, bar.Close, cand.reason)
		}
		return
	}
	e.openPosition(bar, cand)
}

func (e *Engine) openPosition(bar Bar, cand candidate) {
	equity := e.markToMarket()
	notional := equity * e.scenario.MaxPositionPct * cand.confidence

	// Higher realized volatility shrinks the allocation.
	if vol := e.volatility(bar.Symbol); vol > 0 {
		notional *= math.Min(1.0, 0.02/vol)
	}
	if notional <= 0 {
		return
	}

	buying := cand.direction == "BUY"
	price := e.fillPrice(bar, notional, buying)
	qty := notional / price
	commission := price * qty * e.scenario.CommissionRate()

	if buying && price*qty+commission > e.cash {
		return
	}

	stopDist := price * e.scenario.StopLossPct
	pos := &position{qty: qty, entry: price, entryTime: bar.Timestamp}
	if buying {
		e.cash -= price*qty + commission
		pos.stop = price - stopDist
		pos.take = price + stopDist*e.scenario.RewardRisk
	} else {
		pos.qty = -qty
		e.cash += price*qty - commission
		pos.stop = price + stopDist
		pos.take = price - stopDist*e.scenario.RewardRisk
	}
	e.positions[bar.Symbol] = pos

	e.trades = append(e.trades, Trade{
		Timestamp:  bar.Timestamp,
		Symbol:     bar.Symbol,
		Side:       cand.direction,
		Quantity:   qty,
		Price:      price,
		Commission: commission,
		Reason:     cand.reason,
	})
}

func (e *Engine) closePosition(bar Bar, base float64, reason string) {
	pos := e.positions[bar.Symbol]
	delete(e.positions, bar.Symbol)

	long := pos.qty > 0
	qty := math.Abs(pos.qty)
	notional := base * qty

	// Closing a long sells, closing a short buys.
	price := e.applyFriction(base, notional, bar, !long)
	commission := price * qty * e.scenario.CommissionRate()

	var pnl float64
	side := "SELL"
	if long {
		e.cash += price*qty - commission
		pnl = qty*(price-pos.entry) - commission
	} else {
		side = "BUY"
		e.cash -= price*qty + commission
		pnl = qty*(pos.entry-price) - commission
	}

	e.trades = append(e.trades, Trade{
		Timestamp:  bar.Timestamp,
		Symbol:     bar.Symbol,
		Side:       side,
		Quantity:   qty,
		Price:      price,
		Commission: commission,
		PnL:        pnl,
		Reason:     reason,
		Exit:       true,
	})
}

// fillPrice applies slippage and size-dependent impact to the close.
func (e *Engine) fillPrice(bar Bar, notional float64, buying bool) float64 {
	return e.applyFriction(bar.Close, notional, bar, buying)
}

func (e *Engine) applyFriction(base, notional float64, bar Bar, buying bool) float64 {
	slippage := base * e.scenario.SlippageRate()

	impact := 0.0
	if dollarVolume := bar.Close * float64(bar.Volume); dollarVolume > 0 {
		impact = base * math.Min(notional/dollarVolume, impactCap)
	}

	if buying {
		return base + slippage + impact
	}
	return base - slippage - impact
}

// volatility is the standard deviation of the symbol's recent returns.
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

// markToMarket values the book at the latest seen closes.
func (e *Engine) markToMarket() float64 {
	equity := e.cash
	for symbol, pos := range e.positions {
		bars := e.bars[symbol]
		if len(bars) == 0 {
			continue
		}
		equity += pos.qty * bars[len(bars)-1].Close
	}
	return equity
}

// timeline is the sorted union of all bar timestamps.
func (e *Engine) timeline() []time.Time {
	seen := make(map[time.Time]bool)
	var out []time.Time
	for _, bars := range e.series {
		for _, bar := range bars {
			if !seen[bar.Timestamp] {
				seen[bar.Timestamp] = true
				out = append(out, bar.Timestamp)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
