// Package flow detects unusual options activity and aggregate
// positioning from chain snapshots.
package flow

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/self-labs/hass-stack/options/internal/models"
)

// Analysis thresholds.
const (
	FlowThreshold  = 2.0 // standard deviations for unusual flow
	MinDollarValue = 50000.0
	DeltaThreshold = 0.3
	GammaThreshold = 0.1

	historyWindow = 50 // volume observations kept per contract
)

// Analyzer tracks per-contract volume history and derives flow signals.
type Analyzer struct {
	mu      sync.Mutex
	volumes map[string][]float64
}

func NewAnalyzer() *Analyzer {
	return &Analyzer{volumes: make(map[string][]float64)}
}

// Analyze processes one chain snapshot for a single underlying and
// returns all triggered signals. Volume history is updated as a side
// effect, so repeated snapshots sharpen the baseline.
func (a *Analyzer) Analyze(quotes []models.Quote) []models.FlowSignal {
	if len(quotes) == 0 {
		return nil
	}

	var out []models.FlowSignal
	out = append(out, a.unusualActivity(quotes)...)
	if sig, ok := a.flowIntensity(quotes); ok {
		out = append(out, sig)
	}
	if sig, ok := a.greeksExposure(quotes); ok {
		out = append(out, sig)
	}
	return out
}

// PutCallRatio returns put volume over call volume for the snapshot.
// Returns +Inf when there is put volume but no call volume.
func PutCallRatio(quotes []models.Quote) float64 {
	var calls, puts int64
	for _, q := range quotes {
		switch q.Type {
		case models.Call:
			calls += q.Volume
		case models.Put:
			puts += q.Volume
		}
	}
	if calls == 0 {
		if puts == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return float64(puts) / float64(calls)
}

// unusualActivity flags contracts whose volume z-score exceeds the
// flow threshold on at least MinDollarValue of premium traded.
func (a *Analyzer) unusualActivity(quotes []models.Quote) []models.FlowSignal {
	var out []models.FlowSignal

	for _, q := range quotes {
		dollarValue := float64(q.Volume) * q.Mid() * 100
		mean, std := a.observe(q.ContractKey(), float64(q.Volume))

		if dollarValue < MinDollarValue || std <= 0 {
			continue
		}

		z := (float64(q.Volume) - mean) / std
		if math.Abs(z) <= FlowThreshold {
			continue
		}

		direction := "SELL"
		if q.Type == models.Call {
			direction = "BUY"
		}
		out = append(out, models.FlowSignal{
			ID:         uuid.New().String(),
			Symbol:     q.Symbol,
			SignalType: "UNUSUAL_ACTIVITY",
			Direction:  direction,
			Confidence: math.Min(math.Abs(z)/FlowThreshold, 1.0),
			Metadata: map[string]string{
				"contract": q.ContractKey(),
			},
			Timestamp: time.Now().UTC(),
		})
	}
	return out
}

// flowIntensity is delta-weighted call flow minus put flow. A reading
// beyond the flow threshold indicates one-sided positioning.
func (a *Analyzer) flowIntensity(quotes []models.Quote) (models.FlowSignal, bool) {
	var callFlow, putFlow float64
	for _, q := range quotes {
		weighted := float64(q.Volume) * q.Delta
		if q.Type == models.Call {
			callFlow += weighted
		} else {
			putFlow += weighted
		}
	}

	intensity := callFlow - putFlow
	if math.Abs(intensity) <= FlowThreshold {
		return models.FlowSignal{}, false
	}

	direction := "SELL"
	if intensity > 0 {
		direction = "BUY"
	}
	return models.FlowSignal{
		ID:         uuid.New().String(),
		Symbol:     quotes[0].Symbol,
		SignalType: "OPTIONS_FLOW",
		Direction:  direction,
		Confidence: math.Min(math.Abs(intensity)/FlowThreshold, 1.0),
		Timestamp:  time.Now().UTC(),
	}, true
}

// greeksExposure fires on aggregate delta or gamma imbalance,
// normalized per contract so thresholds are scale independent.
func (a *Analyzer) greeksExposure(quotes []models.Quote) (models.FlowSignal, bool) {
	var totalDelta, totalGamma, totalVolume float64
	for _, q := range quotes {
		totalDelta += q.Delta * float64(q.Volume)
		totalGamma += q.Gamma * float64(q.Volume)
		totalVolume += float64(q.Volume)
	}
	if totalVolume == 0 {
		return models.FlowSignal{}, false
	}

	avgDelta := totalDelta / totalVolume
	avgGamma := totalGamma / totalVolume
	if math.Abs(avgDelta) <= DeltaThreshold && math.Abs(avgGamma) <= GammaThreshold {
		return models.FlowSignal{}, false
	}

	direction := "SELL"
	if avgDelta > 0 {
		direction = "BUY"
	}
	return models.FlowSignal{
		ID:         uuid.New().String(),
		Symbol:     quotes[0].Symbol,
		SignalType: "GREEKS_EXPOSURE",
		Direction:  direction,
		Confidence: math.Min(math.Max(math.Abs(avgDelta), math.Abs(avgGamma)), 1.0),
		Timestamp:  time.Now().UTC(),
	}, true
}

// observe records a volume sample and returns the mean and standard
// deviation of the samples seen before it.
func (a *Analyzer) observe(key string, volume float64) (mean, std float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	hist := a.volumes[key]
	if len(hist) > 0 {
		for _, v := range hist {
			mean += v
		}
		mean /= float64(len(hist))
		for _, v := range hist {
			std += (v - mean) * (v - mean)
		}
		std = math.Sqrt(std / float64(len(hist)))
	}

	hist = append(hist, volume)
	if len(hist) > historyWindow {
		hist = hist[len(hist)-historyWindow:]
	}
	a.volumes[key] = hist
	return mean, std
}
