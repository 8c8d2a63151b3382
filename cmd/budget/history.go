package main

import (
	"fmt"

	"budget/internal/cli"

	"github.com/spf13/cobra"
)

var flagCount int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Balance of the last months with the running total",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&flagCount, "count", "n", 0, "Number of months (default HISTORY_MONTHS)")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	count := flagCount
	if count == 0 {
		count = a.cfg.HistoryMonths
	}
	if count < 1 || count > 120 {
		return fmt.Errorf("--count must be between 1 and 120")
	}

	fmt.Println()
	fmt.Print(cli.RenderHistory(a.svc.History(count)))
	return nil
}
