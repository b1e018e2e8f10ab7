// Package backtest replays historical bars through the trading rules
// and measures how the strategy would have performed.
package backtest

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default cost assumptions in basis points.
const (
	defaultCommissionBPS = 10.0
	defaultSlippageBPS   = 2.0
)

// DataConfig selects the bar source for a run. When File is empty a
// synthetic random walk is generated from Seed.
type DataConfig struct {
	File       string  `yaml:"file"`
	Seed       int64   `yaml:"seed"`
	Drift      float64 `yaml:"drift"`
	Volatility float64 `yaml:"volatility"`
}

// Scenario is the YAML run configuration.
type Scenario struct {
	Name           string     `yaml:"name"`
	Start          time.Time  `yaml:"start"`
	End            time.Time  `yaml:"end"`
	InitialCapital float64    `yaml:"initial_capital"`
	Symbols        []string   `yaml:"symbols"`
	Timeframe      string     `yaml:"timeframe"`
	CommissionBPS  float64    `yaml:"commission_bps"`
	SlippageBPS    float64    `yaml:"slippage_bps"`
	MaxPositionPct float64    `yaml:"max_position_pct"`
	StopLossPct    float64    `yaml:"stop_loss_pct"`
	RewardRisk     float64    `yaml:"reward_risk"`
	Data           DataConfig `yaml:"data"`
}

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	sc.applyDefaults()
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

func (s *Scenario) applyDefaults() {
	if s.Timeframe == "" {
		s.Timeframe = "1d"
	}
	if s.CommissionBPS == 0 {
		s.CommissionBPS = defaultCommissionBPS
	}
	if s.SlippageBPS == 0 {
		s.SlippageBPS = defaultSlippageBPS
	}
	if s.MaxPositionPct == 0 {
		s.MaxPositionPct = 0.02
	}
	if s.StopLossPct == 0 {
		s.StopLossPct = 0.02
	}
	if s.RewardRisk == 0 {
		s.RewardRisk = 2.0
	}
	if s.Data.Volatility == 0 {
		s.Data.Volatility = 0.015
	}
}

// Validate rejects scenarios that cannot produce a meaningful run.
func (s *Scenario) Validate() error {
	if s.Start.IsZero() || s.End.IsZero() {
		return fmt.Errorf("scenario requires start and end dates")
	}
	if !s.End.After(s.Start) {
		return fmt.Errorf("scenario end %s is not after start %s",
			s.End.Format("2006-01-02"), s.Start.Format("2006-01-02"))
	}
	if s.InitialCapital <= 0 {
		return fmt.Errorf("initial capital must be positive, got %.2f", s.InitialCapital)
	}
	if len(s.Symbols) == 0 {
		return fmt.Errorf("scenario requires at least one symbol")
	}
	if s.Timeframe != "1d" && s.Timeframe != "1h" {
		return fmt.Errorf("unsupported timeframe %q", s.Timeframe)
	}
	if s.MaxPositionPct <= 0 || s.MaxPositionPct > 1 {
		return fmt.Errorf("max position pct must be in (0, 1], got %.4f", s.MaxPositionPct)
	}
	return nil
}

// barInterval is the time step between bars for the timeframe.
func (s *Scenario) barInterval() time.Duration {
	if s.Timeframe == "1h" {
		return time.Hour
	}
	return 24 * time.Hour
}

// periodsPerYear is the annualization factor for the timeframe.
func (s *Scenario) periodsPerYear() float64 {
	if s.Timeframe == "1h" {
		// 6.5 trading hours over 252 days.
		return 252 * 6.5
	}
	return 252
}

// CommissionRate converts the basis point setting to a fraction.
func (s *Scenario) CommissionRate() float64 { return s.CommissionBPS / 10000 }

// SlippageRate converts the basis point setting to a fraction.
func (s *Scenario) SlippageRate() float64 { return s.SlippageBPS / 10000 }
