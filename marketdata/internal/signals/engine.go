// Package signals derives trading signals from computed indicators.
package signals

import (
	"time"

	"github.com/google/uuid"

	"github.com/self-labs/hass-stack/common/indicators"
	"github.com/self-labs/hass-stack/marketdata/internal/history"
	"github.com/self-labs/hass-stack/marketdata/internal/models"
)

// Rule thresholds and confidences.
const (
	rsiOversold   = 30.0
	rsiOverbought = 70.0

	confRSI       = 0.70
	confMACD      = 0.60
	confBollinger = 0.65
	confVolume    = 0.60

	volumeSpikeRatio  = 2.0
	volumeSpikeWindow = 20
)

// Engine evaluates indicator rules against a symbol's bar history.
type Engine struct {
	store  *history.Store
	source string
}

// NewEngine creates an Engine reading from the given history store.
// source labels the emitting agent on every signal.
func NewEngine(store *history.Store, source string) *Engine {
	return &Engine{store: store, source: source}
}

// Evaluate computes all indicator rules for the symbol and returns any
// triggered signals. Indicators without enough history are skipped.
func (e *Engine) Evaluate(symbol string) []models.Signal {
	closes := e.store.Closes(symbol)
	if len(closes) == 0 {
		return nil
	}

	price := closes[len(closes)-1]
	now := time.Now().UTC()
	var out []models.Signal

	if rsi, err := indicators.RSI(closes, indicators.RSIPeriod); err == nil {
		switch {
		case rsi < rsiOversold:
			out = append(out, e.signal(symbol, "RSI_OVERSOLD", models.DirectionBuy, confRSI, price, now))
		case rsi > rsiOverbought:
			out = append(out, e.signal(symbol, "RSI_OVERBOUGHT", models.DirectionSell, confRSI, price, now))
		}
	}

	if cross, dir := e.macdCross(closes); cross {
		name := "MACD_CROSSOVER"
		out = append(out, e.signal(symbol, name, dir, confMACD, price, now))
	}

	if bb, err := indicators.Bollinger(closes, indicators.BollingerSpan, indicators.BollingerWidth); err == nil {
		switch {
		case price < bb.Lower:
			out = append(out, e.signal(symbol, "BB_OVERSOLD", models.DirectionBuy, confBollinger, price, now))
		case price > bb.Upper:
			out = append(out, e.signal(symbol, "BB_OVERBOUGHT", models.DirectionSell, confBollinger, price, now))
		}
	}

	if sig, ok := e.volumeSpike(symbol); ok {
		out = append(out, sig)
	}

	return out
}

// Indicators returns the current indicator snapshot for a symbol.
// Indicators without enough history are left at zero.
func (e *Engine) Indicators(symbol string) models.IndicatorSet {
	closes := e.store.Closes(symbol)
	set := models.IndicatorSet{Symbol: symbol, UpdatedAt: time.Now().UTC()}

	if rsi, err := indicators.RSI(closes, indicators.RSIPeriod); err == nil {
		set.RSI = rsi
	}
	if m, err := indicators.MACD(closes, indicators.MACDFast, indicators.MACDSlow, indicators.MACDSignalSpan); err == nil {
		set.MACD = m.MACD
		set.MACDSignal = m.Signal
		set.MACDHist = m.Histogram
	}
	if bb, err := indicators.Bollinger(closes, indicators.BollingerSpan, indicators.BollingerWidth); err == nil {
		set.BBUpper = bb.Upper
		set.BBMiddle = bb.Middle
		set.BBLower = bb.Lower
	}
	highs, lows, cls := e.store.HighLowClose(symbol)
	if atr, err := indicators.ATR(highs, lows, cls, indicators.ATRPeriod); err == nil {
		set.ATR = atr
	}
	return set
}

// macdCross detects the MACD histogram changing sign on the latest bar.
func (e *Engine) macdCross(closes []float64) (bool, models.Direction) {
	if len(closes) < indicators.MACDSlow+indicators.MACDSignalSpan+1 {
		return false, models.DirectionHold
	}

	cur, err := indicators.MACD(closes, indicators.MACDFast, indicators.MACDSlow, indicators.MACDSignalSpan)
	if err != nil {
		return false, models.DirectionHold
	}
	prev, err := indicators.MACD(closes[:len(closes)-1], indicators.MACDFast, indicators.MACDSlow, indicators.MACDSignalSpan)
	if err != nil {
		return false, models.DirectionHold
	}

	if cur.Histogram > 0 && prev.Histogram <= 0 {
		return true, models.DirectionBuy
	}
	if cur.Histogram < 0 && prev.Histogram >= 0 {
		return true, models.DirectionSell
	}
	return false, models.DirectionHold
}

// volumeSpike fires when the latest bar's volume exceeds twice the
// average of the prior window. Direction follows the bar's close
// relative to its open.
func (e *Engine) volumeSpike(symbol string) (models.Signal, bool) {
	bars := e.store.Bars(symbol)
	if len(bars) < volumeSpikeWindow+1 {
		return models.Signal{}, false
	}

	latest := bars[len(bars)-1]
	window := bars[len(bars)-1-volumeSpikeWindow : len(bars)-1]

	var sum int64
	for _, b := range window {
		sum += b.Volume
	}
	avg := float64(sum) / float64(volumeSpikeWindow)
	if avg == 0 || float64(latest.Volume) <= avg*volumeSpikeRatio {
		return models.Signal{}, false
	}

	dir := models.DirectionSell
	if latest.Close > latest.Open {
		dir = models.DirectionBuy
	}
	return e.signal(symbol, "VOLUME_SPIKE", dir, confVolume, latest.Close, time.Now().UTC()), true
}

func (e *Engine) signal(symbol, indicator string, dir models.Direction, confidence, price float64, ts time.Time) models.Signal {
	return models.Signal{
		ID:         uuid.New().String(),
		Symbol:     symbol,
		Source:     e.source,
		Indicator:  indicator,
		Direction:  dir,
		Confidence: confidence,
		Price:      price,
		Reason:     indicator,
		Timestamp:  ts,
	}
}
