package cmd

import (
	"testing"

	"github.com/self-labs/hass-stack/cli/internal/config"
)

// Test command initialization and registration
func TestCommandsRegistered(t *testing.T) {
	cfg = config.Default()

	if rootCmd == nil {
		t.Fatal("rootCmd should not be nil")
	}

	commands := rootCmd.Commands()
	expectedCommands := map[string]bool{
		"seed":     false,
		"agents":   false,
		"regime":   false,
		"orders":   false,
		"backtest": false,
	}

	for _, cmd := range commands {
		cmdName := cmd.Use
		for key := range expectedCommands {
			if len(cmdName) >= len(key) && cmdName[:len(key)] == key {
				expectedCommands[key] = true
				break
			}
		}
	}

	for cmdName, found := range expectedCommands {
		if !found {
			t.Errorf("expected command '%s' to be registered with root command", cmdName)
		}
	}
}

func TestSeedSubcommands(t *testing.T) {
	subs := map[string]bool{"bars": false, "news": false}
	for _, cmd := range seedCmd.Commands() {
		if _, ok := subs[cmd.Use]; ok {
			subs[cmd.Use] = true
		}
	}
	for name, found := range subs {
		if !found {
			t.Errorf("expected seed subcommand '%s'", name)
		}
	}
}

func TestBacktestRunRequiresFile(t *testing.T) {
	cfg = config.Default()

	backtestRunCmd.SetArgs(nil)
	if err := backtestRunCmd.RunE(backtestRunCmd, nil); err == nil {
		t.Error("expected an error when --file is missing")
	}
}
