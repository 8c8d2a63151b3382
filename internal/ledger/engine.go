// Package ledger computes monthly figures from a budget snapshot.
//
// Every function is a pure read over the snapshot it is given: nothing is
// mutated, nothing is cached and no error is ever returned. Missing
// collections read as empty and dangling category references fall into
// the uncategorized bucket.
package ledger

import (
	"sort"
	"time"

	"budget/internal/core"

	"github.com/shopspring/decimal"
)

// Engine carries the clock that decides which month is "current". It
// holds no other state.
type Engine struct {
	now func() time.Time
}

// New returns an Engine reading the current month from now. A nil clock
// means time.Now.
func New(now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{now: now}
}

// CurrentMonth is the month the engine's clock is in.
func (e *Engine) CurrentMonth() core.Month {
	return core.MonthOf(e.now())
}

type (
	// Totals is the monthly summary for one month.
	Totals struct {
		TotalIncome           decimal.Decimal `json:"totalIncome"`
		TotalFixedExpenses    decimal.Decimal `json:"totalFixedExpenses"`
		TotalVariableExpenses decimal.Decimal `json:"totalVariableExpenses"`
		TotalExpenses         decimal.Decimal `json:"totalExpenses"`
		Balance               decimal.Decimal `json:"balance"`
		IsPositive            bool            `json:"isPositive"`
	}

	// CategoryTotal is one bucket of a category breakdown.
	CategoryTotal struct {
		CategoryID string          `json:"categoryId"`
		Name       string          `json:"name"`
		Color      string          `json:"color"`
		Total      decimal.Decimal `json:"total"`
		Percent    int             `json:"percent"`
	}

	// HistoryEntry is one month of a multi-month history.
	HistoryEntry struct {
		Month             core.Month      `json:"month"`
		Label             string          `json:"label"`
		Totals
		CumulativeBalance decimal.Decimal `json:"cumulativeBalance"`
	}

	// FixedExpenseState describes a template as seen from one month.
	FixedExpenseState struct {
		core.FixedExpense
		// ActiveForMonth is false when the template is deactivated for
		// the month through an override.
		ActiveForMonth bool `json:"activeForMonth"`
		// Applies is true when the template counts toward the month total.
		Applies bool `json:"applies"`
	}
)

// ApplicableFixedExpenses returns the enabled templates that apply to
// month, in template order.
//
// A month strictly before the current one gets no fixed expenses unless an
// override record exists for it; the current month and later months always
// get every enabled template that is not deactivated for them.
func (e *Engine) ApplicableFixedExpenses(s *core.Snapshot, month core.Month) []core.FixedExpense {
	out := []core.FixedExpense{}
	if s == nil {
		return out
	}
	override, hasOverride := s.Override(month)
	if month.Before(e.CurrentMonth()) && !hasOverride {
		return out
	}
	for _, f := range s.FixedExpenses {
		if f.Enabled && !override.Contains(f.ID) {
			out = append(out, f)
		}
	}
	return out
}

// FixedExpenseStates lists every template with its state for month.
func (e *Engine) FixedExpenseStates(s *core.Snapshot, month core.Month) []FixedExpenseState {
	out := []FixedExpenseState{}
	if s == nil {
		return out
	}
	applicable := make(map[string]struct{})
	for _, f := range e.ApplicableFixedExpenses(s, month) {
		applicable[f.ID] = struct{}{}
	}
	override := s.MonthOverrides[month]
	for _, f := range s.FixedExpenses {
		_, applies := applicable[f.ID]
		out = append(out, FixedExpenseState{
			FixedExpense:   f,
			ActiveForMonth: !override.Contains(f.ID),
			Applies:        applies,
		})
	}
	return out
}

// IncomesForMonth returns the incomes dated in month, most recent first.
func IncomesForMonth(s *core.Snapshot, month core.Month) []core.IncomeEntry {
	out := []core.IncomeEntry{}
	if s == nil {
		return out
	}
	for _, in := range s.Incomes {
		if month.Contains(in.Date) {
			out = append(out, in)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date.Time) })
	return out
}

// VariableExpensesForMonth returns the variable expenses dated in month,
// most recent first.
func VariableExpensesForMonth(s *core.Snapshot, month core.Month) []core.VariableExpense {
	out := []core.VariableExpense{}
	if s == nil {
		return out
	}
	for _, v := range s.VariableExpenses {
		if month.Contains(v.Date) {
			out = append(out, v)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date.Time) })
	return out
}

// MonthTotals computes the income, expense and balance figures for month.
func (e *Engine) MonthTotals(s *core.Snapshot, month core.Month) Totals {
	var t Totals
	for _, in := range IncomesForMonth(s, month) {
		t.TotalIncome = t.TotalIncome.Add(in.Amount)
	}
	for _, f := range e.ApplicableFixedExpenses(s, month) {
		t.TotalFixedExpenses = t.TotalFixedExpenses.Add(f.Amount)
	}
	for _, v := range VariableExpensesForMonth(s, month) {
		t.TotalVariableExpenses = t.TotalVariableExpenses.Add(v.Amount)
	}
	t.TotalExpenses = t.TotalFixedExpenses.Add(t.TotalVariableExpenses)
	t.Balance = t.TotalIncome.Sub(t.TotalExpenses)
	t.IsPositive = !t.Balance.IsNegative()
	return t
}

// CategoryBreakdown groups month's fixed and variable expenses by category,
// largest total first. Buckets with equal totals keep the order in which
// they were first seen: fixed expenses, then variable expenses.
//
// Names and colours come from the current category list, so renaming a
// category relabels past months too.
func (e *Engine) CategoryBreakdown(s *core.Snapshot, month core.Month) []CategoryTotal {
	out := []CategoryTotal{}
	if s == nil {
		return out
	}

	index := make(map[string]int)
	add := func(categoryID string, amount decimal.Decimal) {
		bucket := core.UncategorizedID
		cat, ok := s.CategoryByID(categoryID)
		if ok {
			bucket = cat.ID
		}
		i, seen := index[bucket]
		if !seen {
			entry := CategoryTotal{
				CategoryID: core.UncategorizedID,
				Name:       core.UncategorizedName,
				Color:      core.UncategorizedColor,
			}
			if ok {
				entry.CategoryID = cat.ID
				entry.Name = cat.Name
				if cat.Color != "" {
					entry.Color = cat.Color
				}
			}
			i = len(out)
			index[bucket] = i
			out = append(out, entry)
		}
		out[i].Total = out[i].Total.Add(amount)
	}

	for _, f := range e.ApplicableFixedExpenses(s, month) {
		add(f.CategoryID, f.Amount)
	}
	for _, v := range VariableExpensesForMonth(s, month) {
		add(v.CategoryID, v.Amount)
	}

	var total decimal.Decimal
	for _, c := range out {
		total = total.Add(c.Total)
	}
	for i := range out {
		out[i].Percent = Percent(out[i].Total, total)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Total.GreaterThan(out[j].Total) })
	return out
}

// MonthHistory returns count months ending at the current month, oldest
// first, each with its totals and the balance accumulated over the window.
func (e *Engine) MonthHistory(s *core.Snapshot, count int) []HistoryEntry {
	return e.MonthHistoryEndingAt(s, e.CurrentMonth(), count)
}

// MonthHistoryEndingAt is MonthHistory with an explicit last month.
func (e *Engine) MonthHistoryEndingAt(s *core.Snapshot, last core.Month, count int) []HistoryEntry {
	if count <= 0 {
		return []HistoryEntry{}
	}
	out := make([]HistoryEntry, count)
	m := last
	for i := count - 1; i >= 0; i-- {
		out[i] = HistoryEntry{
			Month:  m,
			Label:  m.Label(),
			Totals: e.MonthTotals(s, m),
		}
		m = m.Prev()
	}
	var running decimal.Decimal
	for i := range out {
		running = running.Add(out[i].Balance)
		out[i].CumulativeBalance = running
	}
	return out
}

// CategoryInUse reports whether any income, fixed or variable record
// references categoryID.
func CategoryInUse(s *core.Snapshot, categoryID string) bool {
	if s == nil || categoryID == "" {
		return false
	}
	for _, in := range s.Incomes {
		if in.CategoryID == categoryID {
			return true
		}
	}
	for _, f := range s.FixedExpenses {
		if f.CategoryID == categoryID {
			return true
		}
	}
	for _, v := range s.VariableExpenses {
		if v.CategoryID == categoryID {
			return true
		}
	}
	return false
}

var hundred = decimal.NewFromInt(100)

// Percent returns part as a whole percentage of total, rounded half-up.
// A zero total yields 0.
func Percent(part, total decimal.Decimal) int {
	if total.IsZero() {
		return 0
	}
	return int(part.Mul(hundred).Div(total).Round(0).IntPart())
}
