package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/self-labs/hass-stack/cli/internal/seed"
	"github.com/self-labs/hass-stack/cli/pkg/output"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed demo data into the stack",
}

var seedBarsCmd = &cobra.Command{
	Use:   "bars",
	Short: "Seed market bars",
	Long:  "Generate random walk tick data and post it to the market data ingest API, where it aggregates into bars.",
	Example: `  hass seed bars --symbols AAPL,MSFT
  hass seed bars --symbols SPY --bars 120 --seed 7`,
	RunE: func(cmd *cobra.Command, args []string) error {
		symbols, _ := cmd.Flags().GetStringSlice("symbols")
		bars, _ := cmd.Flags().GetInt("bars")
		ticksPerBar, _ := cmd.Flags().GetInt("ticks-per-bar")
		seedVal, _ := cmd.Flags().GetInt64("seed")

		if len(symbols) == 0 {
			return fmt.Errorf("--symbols is required")
		}

		api, err := apiClient(cmd)
		if err != nil {
			return err
		}

		ticks := seed.Ticks(seed.TickConfig{
			Symbols:     symbols,
			Bars:        bars,
			TicksPerBar: ticksPerBar,
			Interval:    time.Minute,
			Seed:        seedVal,
		})

		accepted, rejected, err := api.SendTicks(ticks)
		if err != nil {
			return err
		}

		output.Success("Seeded %d ticks across %d symbols (%d accepted, %d rejected)",
			len(ticks), len(symbols), accepted, rejected)
		return nil
	},
}

var seedNewsCmd = &cobra.Command{
	Use:     "news",
	Short:   "Seed news headlines",
	Long:    "Generate headlines the sentiment analyzer can score and post them to the media API.",
	Example: `  hass seed news --symbols AAPL,TSLA --count 40`,
	RunE: func(cmd *cobra.Command, args []string) error {
		symbols, _ := cmd.Flags().GetStringSlice("symbols")
		count, _ := cmd.Flags().GetInt("count")
		seedVal, _ := cmd.Flags().GetInt64("seed")

		if len(symbols) == 0 {
			return fmt.Errorf("--symbols is required")
		}

		api, err := apiClient(cmd)
		if err != nil {
			return err
		}

		items := seed.News(seed.NewsConfig{Symbols: symbols, Count: count, Seed: seedVal})
		processed, signals, err := api.SendNews(items)
		if err != nil {
			return err
		}

		output.Success("Seeded %d headlines (%d processed, %d sentiment signals)",
			len(items), processed, signals)
		return nil
	},
}

func init() {
	seedBarsCmd.Flags().StringSlice("symbols", nil, "symbols to seed (comma separated)")
	seedBarsCmd.Flags().Int("bars", 30, "bars of history per symbol")
	seedBarsCmd.Flags().Int("ticks-per-bar", 10, "ticks generated per bar")
	seedBarsCmd.Flags().Int64("seed", 0, "random seed")

	seedNewsCmd.Flags().StringSlice("symbols", nil, "symbols to seed (comma separated)")
	seedNewsCmd.Flags().Int("count", 20, "headlines to generate")
	seedNewsCmd.Flags().Int64("seed", 0, "random seed")

	seedCmd.AddCommand(seedBarsCmd)
	seedCmd.AddCommand(seedNewsCmd)
	rootCmd.AddCommand(seedCmd)
}
