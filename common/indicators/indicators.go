// Package indicators implements the technical indicators used by the
// market data agent and the backtester. All functions operate on price
// series ordered oldest to newest.
package indicators

import (
	"errors"
	"math"
)

var ErrInsufficientData = errors.New("insufficient data for indicator")

// Default periods used by the signal engine.
const (
	RSIPeriod      = 14
	MACDFast       = 12
	MACDSlow       = 26
	MACDSignalSpan = 9
	BollingerSpan  = 20
	BollingerWidth = 2.0
	ATRPeriod      = 14
)

// SMA returns the simple moving average of the last period values.
func SMA(values []float64, period int) (float64, error) {
	if period <= 0 || len(values) < period {
		return 0, ErrInsufficientData
	}
	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period), nil
}

// EMA returns the exponential moving average series for the given span.
// The first value is seeded with the SMA of the first span values.
func EMA(values []float64, span int) ([]float64, error) {
	if span <= 0 || len(values) < span {
		return nil, ErrInsufficientData
	}

	alpha := 2.0 / float64(span+1)
	out := make([]float64, 0, len(values)-span+1)

	seed := 0.0
	for _, v := range values[:span] {
		seed += v
	}
	seed /= float64(span)
	out = append(out, seed)

	prev := seed
	for _, v := range values[span:] {
		prev = alpha*v + (1-alpha)*prev
		out = append(out, prev)
	}
	return out, nil
}

// RSI returns the relative strength index over the given period using
// Wilder smoothing. Values range 0 to 100.
func RSI(closes []float64, period int) (float64, error) {
	if period <= 0 || len(closes) < period+1 {
		return 0, ErrInsufficientData
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss -= delta
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100, nil
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), nil
}

// MACDResult holds the MACD line, signal line, and histogram.
type MACDResult struct {
	MACD      float64
	Signal    float64
	Histogram float64
}

// MACD computes the moving average convergence divergence with the
// given fast, slow, and signal spans.
func MACD(closes []float64, fast, slow, signal int) (MACDResult, error) {
	if len(closes) < slow+signal {
		return MACDResult{}, ErrInsufficientData
	}

	fastEMA, err := EMA(closes, fast)
	if err != nil {
		return MACDResult{}, err
	}
	slowEMA, err := EMA(closes, slow)
	if err != nil {
		return MACDResult{}, err
	}

	// Align the fast series to the slow series tail.
	offset := len(fastEMA) - len(slowEMA)
	macdLine := make([]float64, len(slowEMA))
	for i := range slowEMA {
		macdLine[i] = fastEMA[i+offset] - slowEMA[i]
	}

	signalEMA, err := EMA(macdLine, signal)
	if err != nil {
		return MACDResult{}, err
	}

	m := macdLine[len(macdLine)-1]
	s := signalEMA[len(signalEMA)-1]
	return MACDResult{MACD: m, Signal: s, Histogram: m - s}, nil
}

// BollingerResult holds the three Bollinger bands.
type BollingerResult struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// Bollinger computes Bollinger bands over the given span with the
// given standard deviation width.
func Bollinger(closes []float64, span int, width float64) (BollingerResult, error) {
	if span <= 0 || len(closes) < span {
		return BollingerResult{}, ErrInsufficientData
	}

	window := closes[len(closes)-span:]
	mean := 0.0
	for _, v := range window {
		mean += v
	}
	mean /= float64(span)

	variance := 0.0
	for _, v := range window {
		variance += (v - mean) * (v - mean)
	}
	stddev := math.Sqrt(variance / float64(span))

	return BollingerResult{
		Upper:  mean + width*stddev,
		Middle: mean,
		Lower:  mean - width*stddev,
	}, nil
}

// ATR computes the average true range over the given period.
// highs, lows, and closes must have equal length.
func ATR(highs, lows, closes []float64, period int) (float64, error) {
	n := len(closes)
	if period <= 0 || n < period+1 || len(highs) != n || len(lows) != n {
		return 0, ErrInsufficientData
	}

	trs := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		tr := highs[i] - lows[i]
		if hc := math.Abs(highs[i] - closes[i-1]); hc > tr {
			tr = hc
		}
		if lc := math.Abs(lows[i] - closes[i-1]); lc > tr {
			tr = lc
		}
		trs = append(trs, tr)
	}

	// Wilder smoothing seeded with the simple average of the first period.
	atr := 0.0
	for _, tr := range trs[:period] {
		atr += tr
	}
	atr /= float64(period)
	for _, tr := range trs[period:] {
		atr = (atr*float64(period-1) + tr) / float64(period)
	}
	return atr, nil
}
