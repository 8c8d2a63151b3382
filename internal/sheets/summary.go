package sheets

import (
	"budget/internal/core"
	"budget/internal/ledger"

	"github.com/shopspring/decimal"
)

// Header is the first row of every summary sheet.
var Header = []string{"Month", "Label", "Income", "Fixed", "Variable", "Balance", "Cumulative"}

// SummaryRow is one month as stored in a summary sheet.
type SummaryRow struct {
	Month      core.Month
	Label      string
	Income     decimal.Decimal
	Fixed      decimal.Decimal
	Variable   decimal.Decimal
	Balance    decimal.Decimal
	Cumulative decimal.Decimal
}

// RowsFromHistory converts ledger history into summary rows.
func RowsFromHistory(entries []ledger.HistoryEntry) []SummaryRow {
	out := make([]SummaryRow, 0, len(entries))
	for _, e := range entries {
		out = append(out, SummaryRow{
			Month:      e.Month,
			Label:      e.Label,
			Income:     e.TotalIncome,
			Fixed:      e.TotalFixedExpenses,
			Variable:   e.TotalVariableExpenses,
			Balance:    e.Balance,
			Cumulative: e.CumulativeBalance,
		})
	}
	return out
}

// Equal compares two rows by value; amounts compare numerically.
func (r SummaryRow) Equal(o SummaryRow) bool {
	return r.Month == o.Month &&
		r.Label == o.Label &&
		r.Income.Equal(o.Income) &&
		r.Fixed.Equal(o.Fixed) &&
		r.Variable.Equal(o.Variable) &&
		r.Balance.Equal(o.Balance) &&
		r.Cumulative.Equal(o.Cumulative)
}

// SameRows reports whether a and b hold the same rows in the same order.
func SameRows(a, b []SummaryRow) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
