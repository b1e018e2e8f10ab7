package backtest

import (
	"encoding/csv"
	"fmt"
	"math"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"time"
)

// Bar is one OHLCV observation.
type Bar struct {
	Symbol    string
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
	Timestamp time.Time
}

// LoadBars reads a CSV bar file with the header
// timestamp,symbol,open,high,low,close,volume. Timestamps are RFC 3339
// or plain dates. Bars are returned per symbol, oldest first.
func LoadBars(path string) (map[string][]Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bars file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read bars file: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("bars file %s has no data rows", path)
	}

	series := make(map[string][]Bar)
	for i, rec := range records[1:] {
		bar, err := parseBarRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("bars file row %d: %w", i+2, err)
		}
		series[bar.Symbol] = append(series[bar.Symbol], bar)
	}
	for symbol := range series {
		bars := series[symbol]
		sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	}
	return series, nil
}

func parseBarRecord(rec []string) (Bar, error) {
	if len(rec) != 7 {
		return Bar{}, fmt.Errorf("expected 7 columns, got %d", len(rec))
	}

	ts, err := time.Parse(time.RFC3339, rec[0])
	if err != nil {
		ts, err = time.Parse("2006-01-02", rec[0])
		if err != nil {
			return Bar{}, fmt.Errorf("invalid timestamp %q", rec[0])
		}
	}

	fields := make([]float64, 4)
	for i, raw := range rec[2:6] {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Bar{}, fmt.Errorf("invalid price %q", raw)
		}
		fields[i] = v
	}
	volume, err := strconv.ParseInt(rec[6], 10, 64)
	if err != nil {
		return Bar{}, fmt.Errorf("invalid volume %q", rec[6])
	}

	return Bar{
		Symbol:    rec[1],
		Open:      fields[0],
		High:      fields[1],
		Low:       fields[2],
		Close:     fields[3],
		Volume:    volume,
		Timestamp: ts.UTC(),
	}, nil
}

// SyntheticBars generates a geometric random walk per symbol so a
// scenario can run without a data file. The same seed always produces
// the same series.
func SyntheticBars(sc *Scenario) map[string][]Bar {
	rng := rand.New(rand.NewSource(sc.Data.Seed))
	interval := sc.barInterval()

	series := make(map[string][]Bar, len(sc.Symbols))
	for _, symbol := range sc.Symbols {
		price := 50 + rng.Float64()*200
		var bars []Bar
		for ts := sc.Start; !ts.After(sc.End); ts = ts.Add(interval) {
			if interval >= 24*time.Hour && isWeekend(ts) {
				continue
			}
			ret := sc.Data.Drift + rng.NormFloat64()*sc.Data.Volatility
			open := price
			price *= 1 + ret
			high := math.Max(open, price) * (1 + rng.Float64()*sc.Data.Volatility/2)
			low := math.Min(open, price) * (1 - rng.Float64()*sc.Data.Volatility/2)
			bars = append(bars, Bar{
				Symbol:    symbol,
				Open:      open,
				High:      high,
				Low:       low,
				Close:     price,
				Volume:    1_000_000 + rng.Int63n(9_000_000),
				Timestamp: ts.UTC(),
			})
		}
		series[symbol] = bars
	}
	return series
}

func isWeekend(ts time.Time) bool {
	return ts.Weekday() == time.Saturday || ts.Weekday() == time.Sunday
}
