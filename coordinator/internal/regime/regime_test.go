package regime

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/self-labs/hass-stack/coordinator/internal/models"
)

func TestStartsNormal(t *testing.T) {
	d := New(DefaultThresholds())

	state := d.State()
	assert.Equal(t, models.RegimeNormal, state.Regime)
	assert.Equal(t, 1.0, state.SizingMultiplier)
}

func TestVIXSpikeEntersCrisisImmediately(t *testing.T) {
	d := New(DefaultThresholds())

	state, changed := d.Evaluate(42.0, 0.0)
	assert.True(t, changed)
	assert.Equal(t, models.RegimeCrisis, state.Regime)
	assert.Equal(t, 0.25, state.SizingMultiplier)
	assert.Equal(t, 42.0, state.VIX)
}

func TestQueueSaturationEntersCrisis(t *testing.T) {
	d := New(DefaultThresholds())

	state, changed := d.Evaluate(15.0, 0.95)
	assert.True(t, changed)
	assert.Equal(t, models.RegimeCrisis, state.Regime)
}

func TestElevatedVIX(t *testing.T) {
	d := New(DefaultThresholds())

	state, changed := d.Evaluate(28.0, 0.0)
	assert.True(t, changed)
	assert.Equal(t, models.RegimeElevated, state.Regime)
	assert.Equal(t, 0.5, state.SizingMultiplier)
}

func TestExitRequiresConsecutiveCalmReadings(t *testing.T) {
	d := New(DefaultThresholds())

	_, changed := d.Evaluate(42.0, 0.0)
	assert.True(t, changed)

	// Two calm readings are not enough to step down.
	for i := 0; i < 2; i++ {
		state, changed := d.Evaluate(18.0, 0.0)
		assert.False(t, changed)
		assert.Equal(t, models.RegimeCrisis, state.Regime)
	}

	state, changed := d.Evaluate(18.0, 0.0)
	assert.True(t, changed)
	assert.Equal(t, models.RegimeNormal, state.Regime)
	assert.Equal(t, 1.0, state.SizingMultiplier)
}

func TestRelapseResetsCalmStreak(t *testing.T) {
	d := New(DefaultThresholds())

	d.Evaluate(42.0, 0.0)
	d.Evaluate(18.0, 0.0)
	d.Evaluate(18.0, 0.0)

	// A crisis reading resets the streak.
	state, changed := d.Evaluate(40.0, 0.0)
	assert.False(t, changed)
	assert.Equal(t, models.RegimeCrisis, state.Regime)

	d.Evaluate(18.0, 0.0)
	d.Evaluate(18.0, 0.0)
	state, changed = d.Evaluate(18.0, 0.0)
	assert.True(t, changed)
	assert.Equal(t, models.RegimeNormal, state.Regime)
}

func TestStepDownFromCrisisToElevated(t *testing.T) {
	d := New(DefaultThresholds())

	d.Evaluate(42.0, 0.0)
	d.Evaluate(28.0, 0.0)
	d.Evaluate(28.0, 0.0)
	state, changed := d.Evaluate(28.0, 0.0)
	assert.True(t, changed)
	assert.Equal(t, models.RegimeElevated, state.Regime)
}
