package models

import "time"

// Direction of a position or proposed trade.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// RiskLevel grades a validated trade.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// Position is one open holding.
type Position struct {
	Symbol        string    `json:"symbol"`
	Direction     Direction `json:"direction"`
	Quantity      float64   `json:"quantity"`
	EntryPrice    float64   `json:"entry_price"`
	CurrentPrice  float64   `json:"current_price"`
	UnrealizedPnL float64   `json:"unrealized_pnl"`
	Sector        string    `json:"sector"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Value returns the position's current market value.
func (p Position) Value() float64 {
	return p.Quantity * p.CurrentPrice
}

// PortfolioState is a snapshot of account health.
type PortfolioState struct {
	TotalValue      float64             `json:"total_value"`
	Cash            float64             `json:"cash"`
	MarginUsed      float64             `json:"margin_used"`
	MarginAvailable float64             `json:"margin_available"`
	Positions       map[string]Position `json:"positions"`
}

// GrossExposure returns the summed absolute value of all positions.
func (p PortfolioState) GrossExposure() float64 {
	var total float64
	for _, pos := range p.Positions {
		total += pos.Value()
	}
	return total
}

// ValidationRequest is a proposed trade sent for risk approval.
type ValidationRequest struct {
	SignalID   string    `json:"signal_id"`
	Symbol     string    `json:"symbol"`
	Direction  Direction `json:"direction"`
	Confidence float64   `json:"confidence"`
	Price      float64   `json:"price"`
	Sector     string    `json:"sector"`
}

// ValidationResult is the risk engine's verdict on a proposed trade.
type ValidationResult struct {
	SignalID     string    `json:"signal_id"`
	Approved     bool      `json:"approved"`
	PositionSize float64   `json:"position_size"`
	RiskLevel    RiskLevel `json:"risk_level"`
	StopLoss     float64   `json:"stop_loss"`
	TakeProfit   float64   `json:"take_profit"`
	FailedChecks []string  `json:"failed_checks,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// StressResult is one stress scenario's projected impact.
type StressResult struct {
	Scenario      string  `json:"scenario"`
	PnL           float64 `json:"pnl"`
	PnLPercentage float64 `json:"pnl_percentage"`
}

// RiskReport is the periodic portfolio risk summary.
type RiskReport struct {
	ValueAtRisk   float64        `json:"value_at_risk"`
	GrossExposure float64        `json:"gross_exposure"`
	Leverage      float64        `json:"leverage"`
	StressResults []StressResult `json:"stress_results"`
	GeneratedAt   time.Time      `json:"generated_at"`
}

// Verdict is a persisted validation decision for audit.
type Verdict struct {
	ID           string    `json:"id"`
	SignalID     string    `json:"signal_id"`
	Symbol       string    `json:"symbol"`
	Direction    Direction `json:"direction"`
	Approved     bool      `json:"approved"`
	PositionSize float64   `json:"position_size"`
	RiskLevel    RiskLevel `json:"risk_level"`
	FailedChecks []string  `json:"failed_checks"`
	CreatedAt    time.Time `json:"created_at"`
}
