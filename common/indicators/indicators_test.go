package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMA(t *testing.T) {
	v, err := SMA([]float64{1, 2, 3, 4, 5}, 5)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, v, 1e-9)

	v, err = SMA([]float64{1, 2, 3, 4, 5}, 2)
	require.NoError(t, err)
	assert.InDelta(t, 4.5, v, 1e-9)

	_, err = SMA([]float64{1, 2}, 5)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestEMA_ConstantSeries(t *testing.T) {
	series := make([]float64, 30)
	for i := range series {
		series[i] = 50
	}
	out, err := EMA(series, 12)
	require.NoError(t, err)
	for _, v := range out {
		assert.InDelta(t, 50.0, v, 1e-9)
	}
}

func TestRSI_AllGainsIsHundred(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	rsi, err := RSI(closes, RSIPeriod)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, rsi, 1e-9)
}

func TestRSI_AllLossesIsZero(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100 - float64(i)
	}
	rsi, err := RSI(closes, RSIPeriod)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, rsi, 1e-9)
}

func TestRSI_MixedBounded(t *testing.T) {
	closes := []float64{44.34, 44.09, 44.15, 43.61, 44.33, 44.83, 45.10, 45.42,
		45.84, 46.08, 45.89, 46.03, 45.61, 46.28, 46.28, 46.00, 46.03, 46.41, 46.22, 45.64}
	rsi, err := RSI(closes, RSIPeriod)
	require.NoError(t, err)
	assert.Greater(t, rsi, 0.0)
	assert.Less(t, rsi, 100.0)
}

func TestRSI_InsufficientData(t *testing.T) {
	_, err := RSI([]float64{1, 2, 3}, RSIPeriod)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestMACD_ConstantSeriesIsZero(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100
	}
	res, err := MACD(closes, MACDFast, MACDSlow, MACDSignalSpan)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, res.MACD, 1e-9)
	assert.InDelta(t, 0.0, res.Signal, 1e-9)
	assert.InDelta(t, 0.0, res.Histogram, 1e-9)
}

func TestMACD_UptrendPositive(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 * (1 + 0.01*float64(i))
	}
	res, err := MACD(closes, MACDFast, MACDSlow, MACDSignalSpan)
	require.NoError(t, err)
	assert.Greater(t, res.MACD, 0.0)
}

func TestBollinger(t *testing.T) {
	closes := make([]float64, 25)
	for i := range closes {
		closes[i] = 100
	}
	res, err := Bollinger(closes, BollingerSpan, BollingerWidth)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, res.Upper, 1e-9)
	assert.InDelta(t, 100.0, res.Middle, 1e-9)
	assert.InDelta(t, 100.0, res.Lower, 1e-9)

	// Alternating series has nonzero width and symmetric bands.
	for i := range closes {
		if i%2 == 0 {
			closes[i] = 99
		} else {
			closes[i] = 101
		}
	}
	res, err = Bollinger(closes, BollingerSpan, BollingerWidth)
	require.NoError(t, err)
	assert.Greater(t, res.Upper, res.Middle)
	assert.Less(t, res.Lower, res.Middle)
	assert.InDelta(t, res.Middle-res.Lower, res.Upper-res.Middle, 1e-9)
}

func TestATR(t *testing.T) {
	n := 20
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	for i := 0; i < n; i++ {
		highs[i] = 102
		lows[i] = 98
		closes[i] = 100
	}
	atr, err := ATR(highs, lows, closes, ATRPeriod)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, atr, 1e-9)

	_, err = ATR(highs[:5], lows[:5], closes[:5], ATRPeriod)
	assert.ErrorIs(t, err, ErrInsufficientData)
}
