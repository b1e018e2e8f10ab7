package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/self-labs/hass-stack/cli/pkg/output"
)

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "Show recent fills",
	Long:  "List recent fills from the execution archive, newest first.",
	Example: `  hass orders
  hass orders --symbol AAPL --limit 20`,
	RunE: func(cmd *cobra.Command, args []string) error {
		symbol, _ := cmd.Flags().GetString("symbol")
		limit, _ := cmd.Flags().GetInt("limit")

		api, err := apiClient(cmd)
		if err != nil {
			return err
		}

		fills, err := api.Fills(symbol, limit)
		if err != nil {
			return err
		}

		if wantJSON(cmd) {
			return output.JSON(fills)
		}
		if len(fills) == 0 {
			output.Info("No fills found")
			return nil
		}

		table := output.NewTable([]string{"TIME", "SYMBOL", "SIDE", "QTY", "PRICE", "SLIPPAGE", "STRATEGY"})
		for _, fill := range fills {
			table.AddRow([]string{
				fill.Timestamp.Format(time.RFC3339),
				fill.Symbol,
				fill.Direction,
				fmt.Sprintf("%.2f", fill.Quantity),
				fmt.Sprintf("%.2f", fill.Price),
				fmt.Sprintf("%.1fbp", fill.SlippageBps),
				fill.Strategy,
			})
		}
		table.Render()
		return nil
	},
}

func init() {
	ordersCmd.Flags().String("symbol", "", "filter by symbol")
	ordersCmd.Flags().Int("limit", 50, "maximum fills to return")
	rootCmd.AddCommand(ordersCmd)
}
