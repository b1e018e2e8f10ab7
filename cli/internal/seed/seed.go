// Package seed generates realistic demo data for the ingest APIs.
package seed

import (
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/self-labs/hass-stack/cli/internal/client"
)

// TickConfig shapes a generated tick batch.
type TickConfig struct {
	Symbols     []string
	Bars        int // bars worth of history per symbol
	TicksPerBar int
	Interval    time.Duration
	Seed        int64
}

// NewsConfig shapes a generated news batch.
type NewsConfig struct {
	Symbols []string
	Count   int
	Seed    int64
}

// Headline templates that the sentiment lexicon scores. The blank is
// the symbol.
var headlines = []struct {
	template string
	body     string
}{
	{"%s beats quarterly earnings expectations", "Revenue came in ahead of consensus as margins expanded."},
	{"%s shares surge on record profit", "The company posted strong growth and raised full year guidance."},
	{"Analysts upgrade %s on bullish outlook", "A rally in the sector lifted sentiment across the board."},
	{"%s misses revenue estimates", "Weak demand weighed on the quarter and guidance was cut."},
	{"%s shares plunge after downgrade", "Concerns over slowing growth triggered a selloff in the name."},
	{"Lawsuit risk clouds outlook for %s", "Investors fear losses from the pending litigation."},
	{"%s announces new product line", "Management framed the launch as incremental to this year's plan."},
	{"%s holds investor day next month", "The agenda covers strategy and capital allocation."},
}

// Ticks generates a random walk per symbol, oldest first, shaped so
// the market data agent can aggregate them into bars.
func Ticks(cfg TickConfig) []client.Tick {
	faker := gofakeit.New(cfg.Seed)

	if cfg.Bars <= 0 {
		cfg.Bars = 30
	}
	if cfg.TicksPerBar <= 0 {
		cfg.TicksPerBar = 10
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}

	total := cfg.Bars * cfg.TicksPerBar
	start := time.Now().UTC().Add(-time.Duration(cfg.Bars) * cfg.Interval)
	tickGap := cfg.Interval / time.Duration(cfg.TicksPerBar)

	var ticks []client.Tick
	for _, symbol := range cfg.Symbols {
		price := faker.Price(20, 500)
		for i := 0; i < total; i++ {
			// Walk the price by up to 20 bps per tick.
			price *= 1 + faker.Float64Range(-0.002, 0.002)
			ticks = append(ticks, client.Tick{
				Symbol:    symbol,
				Price:     price,
				Size:      int64(faker.Number(100, 10000)),
				Timestamp: start.Add(time.Duration(i) * tickGap),
			})
		}
	}
	return ticks
}

// News generates headlines the sentiment lexicon can score.
func News(cfg NewsConfig) []client.NewsItem {
	faker := gofakeit.New(cfg.Seed)

	if cfg.Count <= 0 {
		cfg.Count = 20
	}

	sources := []string{"Reuters", "Bloomberg", "WSJ", "MarketWatch", "Barrons"}
	items := make([]client.NewsItem, 0, cfg.Count)
	for i := 0; i < cfg.Count; i++ {
		symbol := cfg.Symbols[faker.Number(0, len(cfg.Symbols)-1)]
		h := headlines[faker.Number(0, len(headlines)-1)]
		items = append(items, client.NewsItem{
			ID:          faker.UUID(),
			Symbol:      symbol,
			Source:      sources[faker.Number(0, len(sources)-1)],
			Headline:    fmt.Sprintf(h.template, symbol),
			Body:        h.body,
			PublishedAt: time.Now().UTC().Add(-time.Duration(faker.Number(0, 3600)) * time.Second),
		})
	}
	return items
}
