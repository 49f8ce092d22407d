package main

import (
	"github.com/pchchv/guess"
	"github.com/spf13/cobra"
)

// loadConfig reads the environment config, overridden by the --config file when given.
func loadConfig(path string) (*guess.Config, error) {
	if path == "" {
		return guess.GetConfig()
	}
	return guess.LoadConfigFile(path)
}

func addConfigFlag(cmd *cobra.Command, path *string) {
	cmd.Flags().StringVarP(path, "config", "c", "", "YAML config file (environment settings apply otherwise)")
}
