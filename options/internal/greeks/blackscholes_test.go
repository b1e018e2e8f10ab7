package greeks

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/self-labs/hass-stack/options/internal/models"
)

func atmInputs(typ models.OptionType) Inputs {
	return Inputs{
		Spot:         100,
		Strike:       100,
		TimeToExpiry: 1,
		Rate:         0.05,
		Vol:          0.2,
		Type:         typ,
	}
}

func TestPrice_KnownValues(t *testing.T) {
	call, err := Price(atmInputs(models.Call))
	require.NoError(t, err)
	assert.InDelta(t, 10.4506, call, 0.001)

	put, err := Price(atmInputs(models.Put))
	require.NoError(t, err)
	assert.InDelta(t, 5.5735, put, 0.001)
}

func TestPrice_PutCallParity(t *testing.T) {
	in := atmInputs(models.Call)
	call, err := Price(in)
	require.NoError(t, err)

	in.Type = models.Put
	put, err := Price(in)
	require.NoError(t, err)

	// C - P = S - K*exp(-rT)
	parity := in.Spot - in.Strike*math.Exp(-in.Rate*in.TimeToExpiry)
	assert.InDelta(t, parity, call-put, 1e-9)
}

func TestPrice_InvalidInputs(t *testing.T) {
	in := atmInputs(models.Call)
	in.TimeToExpiry = 0
	_, err := Price(in)
	assert.ErrorIs(t, err, ErrInvalidInputs)
}

func TestCompute_CallGreeks(t *testing.T) {
	g, err := Compute(atmInputs(models.Call))
	require.NoError(t, err)

	assert.InDelta(t, 0.6368, g.Delta, 0.001)
	assert.Greater(t, g.Gamma, 0.0)
	assert.Greater(t, g.Vega, 0.0)
	assert.Less(t, g.Theta, 0.0)
}

func TestCompute_PutDeltaNegative(t *testing.T) {
	g, err := Compute(atmInputs(models.Put))
	require.NoError(t, err)

	assert.Less(t, g.Delta, 0.0)
	assert.Greater(t, g.Delta, -1.0)
}

func TestCompute_DeltaParity(t *testing.T) {
	call, err := Compute(atmInputs(models.Call))
	require.NoError(t, err)
	put, err := Compute(atmInputs(models.Put))
	require.NoError(t, err)

	assert.InDelta(t, 1.0, call.Delta-put.Delta, 1e-9)
	assert.InDelta(t, call.Gamma, put.Gamma, 1e-9)
	assert.InDelta(t, call.Vega, put.Vega, 1e-9)
}

func TestImpliedVolatility_RoundTrip(t *testing.T) {
	for _, trueVol := range []float64{0.1, 0.25, 0.6} {
		in := atmInputs(models.Call)
		in.Vol = trueVol
		price, err := Price(in)
		require.NoError(t, err)

		iv, err := ImpliedVolatility(atmInputs(models.Call), price)
		require.NoError(t, err)
		assert.InDelta(t, trueVol, iv, 0.001, "vol %v", trueVol)
	}
}

func TestImpliedVolatility_BadPrice(t *testing.T) {
	_, err := ImpliedVolatility(atmInputs(models.Call), -5)
	assert.ErrorIs(t, err, ErrInvalidInputs)
}
