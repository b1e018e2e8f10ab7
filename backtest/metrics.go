package backtest

import "math"

// Metrics summarizes a run's performance.
type Metrics struct {
	TotalReturn      float64 `json:"total_return"`
	AnnualizedReturn float64 `json:"annualized_return"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	WinRate          float64 `json:"win_rate"`
	ProfitFactor     float64 `json:"profit_factor"`
	AvgTrade         float64 `json:"avg_trade"`
	TradeCount       int     `json:"trade_count"`
}

// computeMetrics folds the step returns, equity curve and closed
// trades into the summary statistics. Profit factor is reported as
// zero when there are no losing trades.
func computeMetrics(returns []float64, equity []EquityPoint, trades []Trade, periodsPerYear float64) Metrics {
	var m Metrics
	if len(equity) == 0 {
		return m
	}

	first := equity[0].Equity
	last := equity[len(equity)-1].Equity
	if first > 0 {
		m.TotalReturn = last/first - 1
	}

	mean := meanOf(returns)
	m.AnnualizedReturn = mean * periodsPerYear
	if sd := stddev(returns, mean); sd > 0 {
		m.SharpeRatio = math.Sqrt(periodsPerYear) * mean / sd
	}

	peak := equity[0].Equity
	for _, pt := range equity {
		if pt.Equity > peak {
			peak = pt.Equity
		}
		if peak > 0 {
			if dd := (peak - pt.Equity) / peak; dd > m.MaxDrawdown {
				m.MaxDrawdown = dd
			}
		}
	}

	var wins, closed int
	var grossProfit, grossLoss, totalPnL float64
	for _, trade := range trades {
		if !trade.Exit {
			continue
		}
		closed++
		totalPnL += trade.PnL
		if trade.PnL > 0 {
			wins++
			grossProfit += trade.PnL
		} else {
			grossLoss -= trade.PnL
		}
	}
	m.TradeCount = closed
	if closed > 0 {
		m.WinRate = float64(wins) / float64(closed)
		m.AvgTrade = totalPnL / float64(closed)
	}
	if grossLoss > 0 {
		m.ProfitFactor = grossProfit / grossLoss
	}
	return m
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	return math.Sqrt(variance / float64(len(values)-1))
}
