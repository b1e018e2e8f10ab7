// Package regime classifies the market into NORMAL, ELEVATED or CRISIS
// from the VIX level and the pressure on the critical dispatch lane.
// Escalation is immediate; de-escalation requires the calmer reading to
// hold for several consecutive evaluations.
package regime

import (
	"sync"
	"time"

	"github.com/self-labs/hass-stack/coordinator/internal/models"
)

// Thresholds control the regime boundaries.
type Thresholds struct {
	// CrisisVIX enters CRISIS when crossed.
	CrisisVIX float64
	// ElevatedVIX enters ELEVATED when crossed.
	ElevatedVIX float64
	// CrisisSaturation is the P0 lane fill ratio that forces CRISIS.
	CrisisSaturation float64
	// ElevatedSaturation is the P0 lane fill ratio for ELEVATED.
	ElevatedSaturation float64
	// ExitConsecutive is how many consecutive calmer evaluations are
	// needed before stepping the regime down.
	ExitConsecutive int
}

// DefaultThresholds returns the standard boundaries. VIX above 35 or a
// near-full critical lane is a crisis.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CrisisVIX:          35.0,
		ElevatedVIX:        25.0,
		CrisisSaturation:   0.9,
		ElevatedSaturation: 0.5,
		ExitConsecutive:    3,
	}
}

// Detector holds the current regime and the de-escalation streak.
type Detector struct {
	thresholds Thresholds

	mu         sync.Mutex
	state      models.RegimeState
	calmStreak int
}

// New starts the detector in the NORMAL regime.
func New(thresholds Thresholds) *Detector {
	return &Detector{
		thresholds: thresholds,
		state: models.RegimeState{
			Regime:           models.RegimeNormal,
			SizingMultiplier: models.RegimeNormal.SizingMultiplier(),
			ChangedAt:        time.Now().UTC(),
		},
	}
}

// State returns the current regime state.
func (d *Detector) State() models.RegimeState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Evaluate folds one reading into the detector and reports whether the
// regime changed. Worsening conditions take effect immediately; calmer
// conditions must persist for ExitConsecutive evaluations.
func (d *Detector) Evaluate(vix, p0Saturation float64) (models.RegimeState, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	target := d.classify(vix, p0Saturation)
	current := d.state.Regime

	changed := false
	switch {
	case rank(target) > rank(current):
		d.calmStreak = 0
		changed = d.transition(target, vix, p0Saturation)
	case rank(target) < rank(current):
		d.calmStreak++
		if d.calmStreak >= d.thresholds.ExitConsecutive {
			d.calmStreak = 0
			changed = d.transition(target, vix, p0Saturation)
		}
	default:
		d.calmStreak = 0
	}

	d.state.VIX = vix
	d.state.P0QueueSaturation = p0Saturation
	return d.state, changed
}

func (d *Detector) classify(vix, saturation float64) models.Regime {
	switch {
	case vix > d.thresholds.CrisisVIX || saturation >= d.thresholds.CrisisSaturation:
		return models.RegimeCrisis
	case vix > d.thresholds.ElevatedVIX || saturation >= d.thresholds.ElevatedSaturation:
		return models.RegimeElevated
	default:
		return models.RegimeNormal
	}
}

func (d *Detector) transition(target models.Regime, vix, saturation float64) bool {
	d.state = models.RegimeState{
		Regime:            target,
		SizingMultiplier:  target.SizingMultiplier(),
		VIX:               vix,
		P0QueueSaturation: saturation,
		ChangedAt:         time.Now().UTC(),
	}
	return true
}

func rank(r models.Regime) int {
	switch r {
	case models.RegimeCrisis:
		return 2
	case models.RegimeElevated:
		return 1
	default:
		return 0
	}
}
