// Package cli implements the stonekeeper command line interface.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/stonekeeper/stonekeeper/internal/daemon"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "stonekeeper",
	Short: "Academy point and reward ledger",
	Long: `stonekeeper tracks an academy's point economy: stone balances,
rewards and purchases, missions, and Elo-rated chess matches.
Run 'stonekeeper serve' to start the API server.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.stonekeeper/config.toml)")
}

// loadConfig resolves the config file, honoring the --config flag.
func loadConfig() (daemon.Config, error) {
	path := configPath
	if path == "" {
		path = daemon.ConfigPath()
	}
	return daemon.Load(path)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
