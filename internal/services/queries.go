package services

import (
	"budget/internal/core"
	"budget/internal/ledger"
)

// MonthView is everything the presentation layer shows for one month.
type MonthView struct {
	Month            core.Month                 `json:"month"`
	Label            string                     `json:"label"`
	Totals           ledger.Totals              `json:"totals"`
	Breakdown        []ledger.CategoryTotal     `json:"breakdown"`
	FixedExpenses    []ledger.FixedExpenseState `json:"fixedExpenses"`
	Incomes          []core.IncomeEntry         `json:"incomes"`
	VariableExpenses []core.VariableExpense     `json:"variableExpenses"`
}

// CurrentMonth is the month the service clock is in.
func (s *BudgetService) CurrentMonth() core.Month {
	return s.engine.CurrentMonth()
}

// Month computes every figure for month from one consistent snapshot.
func (s *BudgetService) Month(month core.Month) MonthView {
	snap := s.store.Snapshot()
	return MonthView{
		Month:            month,
		Label:            month.Label(),
		Totals:           s.engine.MonthTotals(&snap, month),
		Breakdown:        s.engine.CategoryBreakdown(&snap, month),
		FixedExpenses:    s.engine.FixedExpenseStates(&snap, month),
		Incomes:          ledger.IncomesForMonth(&snap, month),
		VariableExpenses: ledger.VariableExpensesForMonth(&snap, month),
	}
}

func (s *BudgetService) MonthTotals(month core.Month) ledger.Totals {
	snap := s.store.Snapshot()
	return s.engine.MonthTotals(&snap, month)
}

func (s *BudgetService) CategoryBreakdown(month core.Month) []ledger.CategoryTotal {
	snap := s.store.Snapshot()
	return s.engine.CategoryBreakdown(&snap, month)
}

// ApplicableFixedExpenses lists the templates that count toward month.
func (s *BudgetService) ApplicableFixedExpenses(month core.Month) []core.FixedExpense {
	snap := s.store.Snapshot()
	return s.engine.ApplicableFixedExpenses(&snap, month)
}

func (s *BudgetService) FixedExpenseStates(month core.Month) []ledger.FixedExpenseState {
	snap := s.store.Snapshot()
	return s.engine.FixedExpenseStates(&snap, month)
}

// History returns count months ending at the current one, oldest first.
func (s *BudgetService) History(count int) []ledger.HistoryEntry {
	snap := s.store.Snapshot()
	return s.engine.MonthHistory(&snap, count)
}

// Categories lists categories, optionally only those of one kind.
func (s *BudgetService) Categories(kind core.CategoryKind) []core.Category {
	snap := s.store.Snapshot()
	if kind == "" {
		return snap.Categories
	}
	return snap.CategoriesByKind(kind)
}

func (s *BudgetService) Incomes(month core.Month) []core.IncomeEntry {
	snap := s.store.Snapshot()
	return ledger.IncomesForMonth(&snap, month)
}

func (s *BudgetService) VariableExpenses(month core.Month) []core.VariableExpense {
	snap := s.store.Snapshot()
	return ledger.VariableExpensesForMonth(&snap, month)
}

// FixedExpenses lists every template, enabled or not.
func (s *BudgetService) FixedExpenses() []core.FixedExpense {
	return s.store.Snapshot().FixedExpenses
}
