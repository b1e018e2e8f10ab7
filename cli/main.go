package main

import (
	"os"

	"github.com/self-labs/hass-stack/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
