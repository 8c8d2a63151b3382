package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	flagOn  bool
	flagOff bool
)

var toggleCmd = &cobra.Command{
	Use:   "toggle <fixed-expense-id> [YYYY-MM]",
	Short: "Count or skip a fixed expense in one month",
	Long:  "Without --on or --off the current state is flipped.",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runToggle,
}

func init() {
	toggleCmd.Flags().BoolVar(&flagOn, "on", false, "Count the fixed expense in the month")
	toggleCmd.Flags().BoolVar(&flagOff, "off", false, "Skip the fixed expense in the month")
	toggleCmd.MarkFlagsMutuallyExclusive("on", "off")
	rootCmd.AddCommand(toggleCmd)
}

func runToggle(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	month, err := parseMonthArg(a.svc, args, 1)
	if err != nil {
		return err
	}
	id := args[0]

	active := !a.svc.IsFixedExpenseActive(id, month)
	switch {
	case flagOn:
		active = true
	case flagOff:
		active = false
	}
	if err := a.svc.SetFixedExpenseActive(cmd.Context(), id, month, active); err != nil {
		return err
	}

	for _, st := range a.svc.FixedExpenseStates(month) {
		if st.ID != id {
			continue
		}
		state := "skipped"
		if st.Applies {
			state = "counted"
		} else if !st.Enabled {
			state = "disabled, not counted in any month"
		}
		fmt.Printf("%s in %s: %s\n", st.Description, month.Label(), state)
		return nil
	}
	return errors.New("fixed expense disappeared while toggling")
}
