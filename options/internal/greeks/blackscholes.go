// Package greeks prices European options with Black-Scholes and solves
// implied volatility with Newton-Raphson.
package greeks

import (
	"errors"
	"math"

	"github.com/self-labs/hass-stack/options/internal/models"
)

var (
	ErrInvalidInputs = errors.New("invalid pricing inputs")
	ErrNoConvergence = errors.New("implied volatility did not converge")
)

const (
	ivInitialGuess = 0.5
	ivMaxIters     = 100
	ivTolerance    = 1e-4
)

// Inputs are the Black-Scholes pricing parameters.
type Inputs struct {
	Spot         float64 // underlying price
	Strike       float64
	TimeToExpiry float64 // years
	Rate         float64 // risk-free rate
	Vol          float64 // annualized volatility
	Type         models.OptionType
}

// Greeks holds the standard sensitivities.
type Greeks struct {
	Delta float64
	Gamma float64
	Vega  float64
	Theta float64
}

func normCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}

func normPDF(x float64) float64 {
	return math.Exp(-x*x/2) / math.Sqrt(2*math.Pi)
}

func d1d2(in Inputs) (float64, float64) {
	sqrtT := math.Sqrt(in.TimeToExpiry)
	d1 := (math.Log(in.Spot/in.Strike) + (in.Rate+in.Vol*in.Vol/2)*in.TimeToExpiry) / (in.Vol * sqrtT)
	return d1, d1 - in.Vol*sqrtT
}

func validate(in Inputs) error {
	if in.Spot <= 0 || in.Strike <= 0 || in.TimeToExpiry <= 0 || in.Vol <= 0 {
		return ErrInvalidInputs
	}
	return nil
}

// Price returns the Black-Scholes price for the inputs.
func Price(in Inputs) (float64, error) {
	if err := validate(in); err != nil {
		return 0, err
	}

	d1, d2 := d1d2(in)
	discount := in.Strike * math.Exp(-in.Rate*in.TimeToExpiry)

	if in.Type == models.Call {
		return in.Spot*normCDF(d1) - discount*normCDF(d2), nil
	}
	return discount*normCDF(-d2) - in.Spot*normCDF(-d1), nil
}

// Compute returns the Greeks for the inputs. Theta is per year.
func Compute(in Inputs) (Greeks, error) {
	if err := validate(in); err != nil {
		return Greeks{}, err
	}

	d1, d2 := d1d2(in)
	sqrtT := math.Sqrt(in.TimeToExpiry)
	discount := in.Strike * math.Exp(-in.Rate*in.TimeToExpiry)

	g := Greeks{
		Gamma: normPDF(d1) / (in.Spot * in.Vol * sqrtT),
		Vega:  in.Spot * sqrtT * normPDF(d1),
	}

	if in.Type == models.Call {
		g.Delta = normCDF(d1)
		g.Theta = -in.Spot*normPDF(d1)*in.Vol/(2*sqrtT) - in.Rate*discount*normCDF(d2)
	} else {
		g.Delta = normCDF(d1) - 1
		g.Theta = -in.Spot*normPDF(d1)*in.Vol/(2*sqrtT) + in.Rate*discount*normCDF(-d2)
	}
	return g, nil
}

// ImpliedVolatility solves for the volatility matching marketPrice
// using Newton-Raphson with a vega step, starting at 50% vol.
func ImpliedVolatility(in Inputs, marketPrice float64) (float64, error) {
	if marketPrice <= 0 {
		return 0, ErrInvalidInputs
	}

	in.Vol = ivInitialGuess
	for i := 0; i < ivMaxIters; i++ {
		price, err := Price(in)
		if err != nil {
			return 0, err
		}

		diff := marketPrice - price
		if math.Abs(diff) < ivTolerance {
			return in.Vol, nil
		}

		d1, _ := d1d2(in)
		vega := in.Spot * math.Sqrt(in.TimeToExpiry) * normPDF(d1)
		if vega < 1e-12 {
			return 0, ErrNoConvergence
		}

		in.Vol += diff / vega
		if in.Vol <= 0 {
			in.Vol = ivTolerance
		}
	}
	return 0, ErrNoConvergence
}
