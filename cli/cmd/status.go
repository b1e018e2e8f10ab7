package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/self-labs/hass-stack/cli/pkg/output"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "Show agent health",
	Long:  "List the agents known to the coordinator with status, priority and heartbeat age.",
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := apiClient(cmd)
		if err != nil {
			return err
		}

		agents, err := api.Agents()
		if err != nil {
			return err
		}

		if wantJSON(cmd) {
			return output.JSON(agents)
		}

		table := output.NewTable([]string{"NAME", "STATUS", "PRIORITY", "LAST HEARTBEAT", "ERRORS"})
		for _, agent := range agents {
			heartbeat := "never"
			if !agent.LastHeartbeat.IsZero() {
				heartbeat = time.Since(agent.LastHeartbeat).Round(time.Second).String() + " ago"
			}
			table.AddRow([]string{
				agent.Name,
				agent.Status,
				fmt.Sprintf("P%d", agent.Priority),
				heartbeat,
				fmt.Sprintf("%d", agent.ErrorCount),
			})
		}
		table.Render()
		return nil
	},
}

var regimeCmd = &cobra.Command{
	Use:   "regime",
	Short: "Show the current market regime",
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := apiClient(cmd)
		if err != nil {
			return err
		}

		state, err := api.Regime()
		if err != nil {
			return err
		}

		if wantJSON(cmd) {
			return output.JSON(state)
		}

		output.Info("Regime:            %s", state.Regime)
		output.Info("Sizing multiplier: %.2f", state.SizingMultiplier)
		output.Info("VIX:               %.2f", state.VIX)
		output.Info("P0 saturation:     %.0f%%", state.P0QueueSaturation*100)
		if !state.ChangedAt.IsZero() {
			output.Info("Changed:           %s", state.ChangedAt.Format(time.RFC3339))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(regimeCmd)
}
