package models

import "time"

// Tick is a single trade print from a feed.
type Tick struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Size      int64     `json:"size"`
	Timestamp time.Time `json:"timestamp"`
}

// Bar is an aggregated OHLCV bar for one symbol and interval.
type Bar struct {
	Symbol    string    `json:"symbol"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
	Interval  string    `json:"interval"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// Direction is the trade direction a signal recommends.
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
	DirectionHold Direction = "HOLD"
)

// Signal is a trading signal produced by an analysis agent.
type Signal struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Source     string    `json:"source"`
	Indicator  string    `json:"indicator"`
	Direction  Direction `json:"direction"`
	Confidence float64   `json:"confidence"`
	Price      float64   `json:"price"`
	Reason     string    `json:"reason"`
	Timestamp  time.Time `json:"timestamp"`
}

// IndicatorSet is the latest computed indicator values for a symbol.
type IndicatorSet struct {
	Symbol     string    `json:"symbol"`
	RSI        float64   `json:"rsi"`
	MACD       float64   `json:"macd"`
	MACDSignal float64   `json:"macd_signal"`
	MACDHist   float64   `json:"macd_hist"`
	BBUpper    float64   `json:"bb_upper"`
	BBMiddle   float64   `json:"bb_middle"`
	BBLower    float64   `json:"bb_lower"`
	ATR        float64   `json:"atr"`
	UpdatedAt  time.Time `json:"updated_at"`
}
