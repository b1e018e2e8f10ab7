// Package models defines the order lifecycle types for the execution agent.
package models

import "time"

// OrderType is the broker order type.
type OrderType string

const (
	Market       OrderType = "MARKET"
	Limit        OrderType = "LIMIT"
	Stop         OrderType = "STOP"
	StopLimit    OrderType = "STOP_LIMIT"
	TrailingStop OrderType = "TRAILING_STOP"
)

// OrderStatus tracks an order through its lifecycle.
type OrderStatus string

const (
	StatusPending         OrderStatus = "PENDING"
	StatusActive          OrderStatus = "ACTIVE"
	StatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	StatusFilled          OrderStatus = "FILLED"
	StatusCancelled       OrderStatus = "CANCELLED"
	StatusRejected        OrderStatus = "REJECTED"
)

// Terminal reports whether the status is an end state.
func (s OrderStatus) Terminal() bool {
	switch s {
	case StatusFilled, StatusCancelled, StatusRejected:
		return true
	}
	return false
}

// Strategy is the execution strategy applied to an order.
type Strategy string

const (
	Aggressive Strategy = "AGGRESSIVE"
	Passive    Strategy = "PASSIVE"
	Smart      Strategy = "SMART"
	VWAP       Strategy = "VWAP"
	TWAP       Strategy = "TWAP"
)

// Order is a trade instruction accepted for execution.
type Order struct {
	ID          string      `json:"id"`
	SignalID    string      `json:"signal_id"`
	Symbol      string      `json:"symbol"`
	Type        OrderType   `json:"type"`
	Direction   string      `json:"direction"` // BUY or SELL
	Quantity    float64     `json:"quantity"`
	LimitPrice  float64     `json:"limit_price,omitempty"`
	StopPrice   float64     `json:"stop_price,omitempty"`
	TimeInForce string      `json:"time_in_force"`
	Strategy    Strategy    `json:"strategy"`
	Status      OrderStatus `json:"status"`
	SubmittedAt time.Time   `json:"submitted_at"`
	StopLoss    float64     `json:"stop_loss,omitempty"`
	TakeProfit  float64     `json:"take_profit,omitempty"`
}

// Fill records one execution against an order.
type Fill struct {
	OrderID        string    `json:"order_id"`
	Symbol         string    `json:"symbol"`
	Direction      string    `json:"direction"`
	Quantity       float64   `json:"quantity"`
	Price          float64   `json:"price"`
	ReferencePrice float64   `json:"reference_price"`
	SlippageBps    float64   `json:"slippage_bps"`
	Strategy       Strategy  `json:"strategy"`
	Timestamp      time.Time `json:"timestamp"`
}

// OrderUpdate is the tracked state of a submitted order.
type OrderUpdate struct {
	OrderID           string      `json:"order_id"`
	Status            OrderStatus `json:"status"`
	FilledQuantity    float64     `json:"filled_quantity"`
	RemainingQuantity float64     `json:"remaining_quantity"`
	AveragePrice      float64     `json:"average_price"`
	LastFillTime      time.Time   `json:"last_fill_time"`
}

// MarketConditions is the snapshot the strategy selector scores against.
type MarketConditions struct {
	Volatility    float64 `json:"volatility"`     // annualized, e.g. 0.2 = 20%
	AverageVolume float64 `json:"average_volume"` // shares per bar
	Spread        float64 `json:"spread"`         // fractional, e.g. 0.001 = 10bp
}
