package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/self-labs/hass-stack/backtest"
	"github.com/self-labs/hass-stack/cli/pkg/output"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run strategy backtests",
}

var backtestRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a backtest scenario",
	Long:  "Replay a scenario through the trading rules and print the results as JSON.",
	Example: `  hass backtest run -f scenario.yaml
  hass backtest run -f scenario.yaml --summary`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("file")
		summary, _ := cmd.Flags().GetBool("summary")

		if path == "" {
			return fmt.Errorf("--file is required")
		}

		scenario, err := backtest.LoadScenario(path)
		if err != nil {
			return err
		}

		var series map[string][]backtest.Bar
		if scenario.Data.File != "" {
			series, err = backtest.LoadBars(scenario.Data.File)
			if err != nil {
				return err
			}
		} else {
			series = backtest.SyntheticBars(scenario)
		}

		result, err := backtest.NewEngine(scenario, series).Run()
		if err != nil {
			return err
		}

		if summary {
			return output.JSON(result.Metrics)
		}
		return output.JSON(result)
	},
}

func init() {
	backtestRunCmd.Flags().StringP("file", "f", "", "scenario YAML file")
	backtestRunCmd.Flags().Bool("summary", false, "print only the metrics summary")

	backtestCmd.AddCommand(backtestRunCmd)
	rootCmd.AddCommand(backtestCmd)
}
