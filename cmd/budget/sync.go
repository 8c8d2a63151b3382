package main

import (
	"fmt"

	"budget/internal/cli"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile with the remote replica now",
	Args:  cobra.NoArgs,
	RunE:  runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	report, err := a.svc.Sync(cmd.Context())
	fmt.Println(cli.RenderSyncStatus(report))
	return err
}
