package models

import (
	"fmt"
	"time"
)

// OptionType distinguishes calls from puts.
type OptionType string

const (
	Call OptionType = "CALL"
	Put  OptionType = "PUT"
)

// Quote is one contract's snapshot from a chain feed.
type Quote struct {
	Symbol       string     `json:"symbol"`
	Underlying   float64    `json:"underlying"`
	Type         OptionType `json:"type"`
	Strike       float64    `json:"strike"`
	Expiration   time.Time  `json:"expiration"`
	Bid          float64    `json:"bid"`
	Ask          float64    `json:"ask"`
	Volume       int64      `json:"volume"`
	OpenInterest int64      `json:"open_interest"`
	Delta        float64    `json:"delta"`
	Gamma        float64    `json:"gamma"`
	ImpliedVol   float64    `json:"implied_vol"`
	Timestamp    time.Time  `json:"timestamp"`
}

// Mid returns the bid/ask midpoint.
func (q Quote) Mid() float64 {
	return (q.Bid + q.Ask) / 2
}

// ContractKey identifies a contract across snapshots.
// Strikes are keyed in cents to keep the key stable.
func (q Quote) ContractKey() string {
	return fmt.Sprintf("%s|%s|%s|%d",
		q.Symbol, q.Type, q.Expiration.Format("2006-01-02"), int64(q.Strike*100+0.5))
}

// FlowSignal is a signal derived from options activity.
type FlowSignal struct {
	ID         string            `json:"id"`
	Symbol     string            `json:"symbol"`
	SignalType string            `json:"signal_type"`
	Direction  string            `json:"direction"`
	Confidence float64           `json:"confidence"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}
