package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stonekeeper/stonekeeper/internal/daemon"
)

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().Bool("force", false, "Seed even if the document already has students")
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Populate the store with a demo academy",
	Long: `Write a small demo academy into the configured store: a handful of
students across the three groups, a mission board, shop items, and gacha
prizes. Useful for trying the API without real data.`,
	RunE: runSeed,
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	d, err := daemon.New(cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	if err := d.Bind(cmd.Context()); err != nil {
		return err
	}

	force, _ := cmd.Flags().GetBool("force")
	seeded, err := d.Seed(force)
	if err != nil {
		return err
	}
	if !seeded {
		fmt.Fprintln(os.Stdout, "Document already has students; use --force to seed anyway.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "Seeded demo academy for user %q.\n", cfg.Store.UserID)
	return nil
}
