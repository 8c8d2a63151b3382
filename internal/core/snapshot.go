package core

import (
	"fmt"
)

// Snapshot is the complete user data set. Its JSON form has exactly the
// five top-level keys below.
type Snapshot struct {
	Categories       []Category              `json:"categories"`
	Incomes          []IncomeEntry           `json:"incomes"`
	FixedExpenses    []FixedExpense          `json:"fixedExpenses"`
	VariableExpenses []VariableExpense       `json:"variableExpenses"`
	MonthOverrides   map[Month]MonthOverride `json:"monthOverrides"`
}

// EmptySnapshot returns a structurally complete snapshot with no records.
func EmptySnapshot() Snapshot {
	return Snapshot{
		Categories:       []Category{},
		Incomes:          []IncomeEntry{},
		FixedExpenses:    []FixedExpense{},
		VariableExpenses: []VariableExpense{},
		MonthOverrides:   map[Month]MonthOverride{},
	}
}

// Repair fills missing collections with empty ones and normalises every
// override set.
func (s *Snapshot) Repair() {
	if s.Categories == nil {
		s.Categories = []Category{}
	}
	if s.Incomes == nil {
		s.Incomes = []IncomeEntry{}
	}
	if s.FixedExpenses == nil {
		s.FixedExpenses = []FixedExpense{}
	}
	if s.VariableExpenses == nil {
		s.VariableExpenses = []VariableExpense{}
	}
	if s.MonthOverrides == nil {
		s.MonthOverrides = map[Month]MonthOverride{}
	}
	for m, o := range s.MonthOverrides {
		s.MonthOverrides[m] = o.dedupe()
	}
}

// Clone returns a deep copy; the result is always structurally complete.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Categories:       append([]Category{}, s.Categories...),
		Incomes:          append([]IncomeEntry{}, s.Incomes...),
		FixedExpenses:    append([]FixedExpense{}, s.FixedExpenses...),
		VariableExpenses: append([]VariableExpense{}, s.VariableExpenses...),
		MonthOverrides:   make(map[Month]MonthOverride, len(s.MonthOverrides)),
	}
	for m, o := range s.MonthOverrides {
		out.MonthOverrides[m] = MonthOverride{
			DeactivatedTemplateIDs: append([]string{}, o.DeactivatedTemplateIDs...),
		}
	}
	return out
}

// Validate checks every record. It is used on imported payloads; the
// engine assumes records in a store are well formed.
func (s Snapshot) Validate() error {
	for i, c := range s.Categories {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("categories[%d]: %w", i, err)
		}
	}
	for i, e := range s.Incomes {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("incomes[%d]: %w", i, err)
		}
	}
	for i, f := range s.FixedExpenses {
		if err := f.Validate(); err != nil {
			return fmt.Errorf("fixedExpenses[%d]: %w", i, err)
		}
	}
	for i, v := range s.VariableExpenses {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("variableExpenses[%d]: %w", i, err)
		}
	}
	return nil
}

// CategoryByID looks a category up by id.
func (s Snapshot) CategoryByID(id string) (Category, bool) {
	if id == "" {
		return Category{}, false
	}
	for _, c := range s.Categories {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}

// CategoriesByKind returns the categories of one kind in insertion order.
func (s Snapshot) CategoriesByKind(kind CategoryKind) []Category {
	out := []Category{}
	for _, c := range s.Categories {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// Override returns the override record for m, if one was ever created.
func (s Snapshot) Override(m Month) (MonthOverride, bool) {
	o, ok := s.MonthOverrides[m]
	return o, ok
}
