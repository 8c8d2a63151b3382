package main

import (
	"fmt"

	"budget/internal/cli"

	"github.com/spf13/cobra"
)

var flagTop int

var monthCmd = &cobra.Command{
	Use:   "month [YYYY-MM]",
	Short: "Totals, top categories and fixed expenses of a month",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runMonth,
}

func init() {
	monthCmd.Flags().IntVar(&flagTop, "top", 5, "Number of categories to show")
	rootCmd.AddCommand(monthCmd)
}

func runMonth(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	month, err := parseMonthArg(a.svc, args, 0)
	if err != nil {
		return err
	}
	view := a.svc.Month(month)

	fmt.Println()
	fmt.Print(cli.RenderMonth(view.Label, view.Totals, view.Breakdown, view.FixedExpenses, flagTop))
	fmt.Println(cli.RenderSyncStatus(a.svc.SyncStatus()))
	return nil
}
