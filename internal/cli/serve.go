package cli

import (
	"github.com/spf13/cobra"

	"github.com/stonekeeper/stonekeeper/internal/daemon"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("backend", "", "Override the store backend (sqlite, file, remote, memory)")
	serveCmd.Flags().Int("port", 0, "Override the listen port")
	serveCmd.Flags().Bool("offline", false, "Persist every mutation immediately, skipping the debounce")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long: `Start the stonekeeper daemon: binds the document session, serves the
academy REST API, the live ledger feed, and the document change feed.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if backend, _ := cmd.Flags().GetString("backend"); backend != "" {
		cfg.Store.Backend = backend
	}
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		cfg.API.Port = port
	}
	if offline, _ := cmd.Flags().GetBool("offline"); offline {
		cfg.Store.Offline = true
	}

	d, err := daemon.New(cfg)
	if err != nil {
		return err
	}
	return d.Run(cmd.Context())
}
