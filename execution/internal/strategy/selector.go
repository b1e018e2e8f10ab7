// Package strategy scores execution strategies against market conditions
// and estimates the market impact of an order.
package strategy

import (
	"math"

	"github.com/self-labs/hass-stack/execution/internal/models"
)

const (
	// referenceVolatility normalizes annualized volatility, 20% = 1.0.
	referenceVolatility = 0.2

	// maxSpread is the widest tolerated spread, 20 basis points.
	maxSpread = 0.002

	// ImpactThreshold is the fraction of average volume above which an
	// order is sliced before submission.
	ImpactThreshold = 0.1
)

// Select scores every strategy for the order under the given conditions
// and returns the best. SMART wins ties and degenerate inputs.
func Select(order models.Order, mc models.MarketConditions) models.Strategy {
	if mc.AverageVolume <= 0 {
		return models.Smart
	}

	scores := map[models.Strategy]float64{
		models.Aggressive: scoreAggressive(order, mc),
		models.Passive:    scorePassive(order, mc),
		models.Smart:      scoreSmart(order, mc),
		models.VWAP:       scoreVWAP(order, mc),
		models.TWAP:       scoreTWAP(order, mc),
	}

	best := models.Smart
	bestScore := scores[models.Smart]
	for _, s := range []models.Strategy{models.Aggressive, models.Passive, models.VWAP, models.TWAP} {
		if scores[s] > bestScore {
			best = s
			bestScore = scores[s]
		}
	}
	return best
}

// Impact estimates market impact as a weighted blend of order size
// against average volume, volatility, and spread.
func Impact(order models.Order, mc models.MarketConditions) float64 {
	if mc.AverageVolume <= 0 {
		return math.Inf(1)
	}

	volumeFactor := order.Quantity / mc.AverageVolume
	volatilityFactor := mc.Volatility / referenceVolatility
	spreadFactor := mc.Spread / maxSpread

	return volumeFactor*0.5 + volatilityFactor*0.3 + spreadFactor*0.2
}

// SliceCount returns how many child orders an over-threshold order is
// split into. Orders at or below the threshold are not sliced.
func SliceCount(impact float64) int {
	if impact <= ImpactThreshold {
		return 1
	}
	n := int(math.Ceil(impact / ImpactThreshold))
	if n > 10 {
		n = 10
	}
	return n
}

// scoreAggressive favors small orders in liquid, tight markets where
// crossing the spread is cheap.
func scoreAggressive(order models.Order, mc models.MarketConditions) float64 {
	sizeRatio := order.Quantity / mc.AverageVolume
	score := 1.0 - sizeRatio*4
	score -= mc.Spread / maxSpread * 0.5
	score += mc.Volatility / referenceVolatility * 0.3 // urgency under volatility
	return score
}

// scorePassive favors calm markets where resting orders earn the spread.
func scorePassive(order models.Order, mc models.MarketConditions) float64 {
	score := mc.Spread / maxSpread * 0.6
	score += (1.0 - mc.Volatility/referenceVolatility) * 0.5
	score -= order.Quantity / mc.AverageVolume
	return score
}

// scoreSmart is the adaptive baseline.
func scoreSmart(models.Order, models.MarketConditions) float64 {
	return 0.5
}

// scoreVWAP favors large orders in liquid names.
func scoreVWAP(order models.Order, mc models.MarketConditions) float64 {
	sizeRatio := order.Quantity / mc.AverageVolume
	if sizeRatio < 0.05 {
		return 0
	}
	return sizeRatio*3 + (1.0-mc.Volatility/referenceVolatility)*0.2
}

// scoreTWAP favors large orders in volatile markets where spreading
// over time reduces timing risk.
func scoreTWAP(order models.Order, mc models.MarketConditions) float64 {
	sizeRatio := order.Quantity / mc.AverageVolume
	if sizeRatio < 0.05 {
		return 0
	}
	return sizeRatio*2 + mc.Volatility/referenceVolatility*0.4
}
