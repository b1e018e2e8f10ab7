package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/self-labs/hass-stack/cli/internal/client"
	"github.com/self-labs/hass-stack/cli/internal/config"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "hass",
	Short: "HASS trading stack CLI",
	Long: `hass is the command-line interface for the HASS trading stack.

Seed demo market data and news, inspect agent health and the market
regime, review fills, and run backtests from your terminal.`,
	Version: "0.1.0",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.hass/config.yaml)")
	rootCmd.PersistentFlags().String("profile", "", "profile to use")
	rootCmd.PersistentFlags().String("output", "table", "output format: table, json")
}

func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not load config: %v\n", err)
		cfg = config.Default()
	}
}

// apiClient builds a client for the profile selected by --profile.
func apiClient(cmd *cobra.Command) (*client.Client, error) {
	name, _ := cmd.Flags().GetString("profile")
	profile, err := cfg.GetProfile(name)
	if err != nil {
		return nil, err
	}
	return client.New(profile), nil
}

func wantJSON(cmd *cobra.Command) bool {
	format, _ := cmd.Flags().GetString("output")
	return format == "json"
}
