// Package store holds the authoritative in-memory budget data: the
// category registry, the three record collections and the per-month
// activation overrides.
//
// The store is permissive. It performs no validation; callers are expected
// to validate at the command boundary before mutating.
package store

import (
	"sync"
	"time"

	"budget/internal/core"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ChangeFunc is called after every successful mutation with a copy of the
// resulting snapshot. It runs while no lock is held.
type ChangeFunc func(snap core.Snapshot, rev Revision)

// Revision identifies a state of the store. Version increases by one on
// every mutation; UpdatedAt is the wall-clock time of the last one.
type Revision struct {
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Store struct {
	mu       sync.RWMutex
	data     core.Snapshot
	rev      Revision
	now      func() time.Time
	newID    func() string
	onChange ChangeFunc
}

type Option func(*Store)

// WithClock overrides the clock used for UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides the random UUID generator.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// WithOnChange registers the mutation hook.
func WithOnChange(fn ChangeFunc) Option {
	return func(s *Store) { s.onChange = fn }
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		data:  core.EmptySnapshot(),
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns a deep copy of the current data.
func (s *Store) Snapshot() core.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Clone()
}

// SnapshotWithRevision returns a deep copy together with its revision.
func (s *Store) SnapshotWithRevision() (core.Snapshot, Revision) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Clone(), s.rev
}

func (s *Store) Revision() Revision {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rev
}

// Replace swaps the whole data set. It counts as a mutation.
func (s *Store) Replace(snap core.Snapshot) {
	snap = snap.Clone()
	snap.Repair()
	s.mutate(func() bool {
		s.data = snap
		return true
	})
}

// Load swaps the whole data set and adopts rev without firing the change
// hook. It is used when the data comes from persistence.
func (s *Store) Load(snap core.Snapshot, rev Revision) {
	snap = snap.Clone()
	snap.Repair()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = snap
	s.rev = rev
}

// mutate runs fn under the write lock; when fn reports a change the
// revision is bumped and the change hook fires.
func (s *Store) mutate(fn func() bool) {
	s.mu.Lock()
	changed := fn()
	if !changed {
		s.mu.Unlock()
		return
	}
	s.rev = Revision{Version: s.rev.Version + 1, UpdatedAt: s.now().UTC()}
	snap, rev, hook := s.data.Clone(), s.rev, s.onChange
	s.mu.Unlock()

	if hook != nil {
		hook(snap, rev)
	}
}

// Categories

type CategoryPatch struct {
	Name  *string
	Kind  *core.CategoryKind
	Color *string
}

func (s *Store) CreateCategory(c core.Category) core.Category {
	c.ID = s.newID()
	s.mutate(func() bool {
		s.data.Categories = append(s.data.Categories, c)
		return true
	})
	return c
}

func (s *Store) GetCategory(id string) (core.Category, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.CategoryByID(id)
}

func (s *Store) UpdateCategory(id string, p CategoryPatch) (core.Category, bool) {
	var out core.Category
	var found bool
	s.mutate(func() bool {
		for i := range s.data.Categories {
			c := &s.data.Categories[i]
			if c.ID != id {
				continue
			}
			if p.Name != nil {
				c.Name = *p.Name
			}
			if p.Kind != nil {
				c.Kind = *p.Kind
			}
			if p.Color != nil {
				c.Color = *p.Color
			}
			out, found = *c, true
			return true
		}
		return false
	})
	return out, found
}

// DeleteCategory removes a category unless inUse reports it is still
// referenced. The lookup, the check and the removal share one lock, so
// inUse must not call back into the store. A nil inUse never blocks.
func (s *Store) DeleteCategory(id string, inUse func(*core.Snapshot, string) bool) (found, deleted bool) {
	s.mutate(func() bool {
		if _, found = s.data.CategoryByID(id); !found {
			return false
		}
		if inUse != nil && inUse(&s.data, id) {
			return false
		}
		s.data.Categories, deleted = removeByID(s.data.Categories, id, func(c core.Category) string { return c.ID })
		return deleted
	})
	return found, deleted
}

// Incomes

type IncomePatch struct {
	Date        *core.Date
	Description *string
	Amount      *decimal.Decimal
	CategoryID  *string
}

func (s *Store) CreateIncome(e core.IncomeEntry) core.IncomeEntry {
	e.ID = s.newID()
	s.mutate(func() bool {
		s.data.Incomes = append(s.data.Incomes, e)
		return true
	})
	return e
}

func (s *Store) UpdateIncome(id string, p IncomePatch) (core.IncomeEntry, bool) {
	var out core.IncomeEntry
	var found bool
	s.mutate(func() bool {
		for i := range s.data.Incomes {
			e := &s.data.Incomes[i]
			if e.ID != id {
				continue
			}
			if p.Date != nil {
				e.Date = *p.Date
			}
			if p.Description != nil {
				e.Description = *p.Description
			}
			if p.Amount != nil {
				e.Amount = *p.Amount
			}
			if p.CategoryID != nil {
				e.CategoryID = *p.CategoryID
			}
			out, found = *e, true
			return true
		}
		return false
	})
	return out, found
}

func (s *Store) DeleteIncome(id string) bool {
	var found bool
	s.mutate(func() bool {
		s.data.Incomes, found = removeByID(s.data.Incomes, id, func(e core.IncomeEntry) string { return e.ID })
		return found
	})
	return found
}

// Fixed expense templates

type FixedExpensePatch struct {
	Description *string
	Amount      *decimal.Decimal
	CategoryID  *string
	Enabled     *bool
}

// CreateFixedExpense stores a new template. New templates start enabled.
func (s *Store) CreateFixedExpense(f core.FixedExpense) core.FixedExpense {
	f.ID = s.newID()
	f.Enabled = true
	s.mutate(func() bool {
		s.data.FixedExpenses = append(s.data.FixedExpenses, f)
		return true
	})
	return f
}

func (s *Store) GetFixedExpense(id string) (core.FixedExpense, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, f := range s.data.FixedExpenses {
		if f.ID == id {
			return f, true
		}
	}
	return core.FixedExpense{}, false
}

func (s *Store) UpdateFixedExpense(id string, p FixedExpensePatch) (core.FixedExpense, bool) {
	var out core.FixedExpense
	var found bool
	s.mutate(func() bool {
		for i := range s.data.FixedExpenses {
			f := &s.data.FixedExpenses[i]
			if f.ID != id {
				continue
			}
			if p.Description != nil {
				f.Description = *p.Description
			}
			if p.Amount != nil {
				f.Amount = *p.Amount
			}
			if p.CategoryID != nil {
				f.CategoryID = *p.CategoryID
			}
			if p.Enabled != nil {
				f.Enabled = *p.Enabled
			}
			out, found = *f, true
			return true
		}
		return false
	})
	return out, found
}

// DeleteFixedExpense removes the template. Override entries that mention
// it are left in place.
func (s *Store) DeleteFixedExpense(id string) bool {
	var found bool
	s.mutate(func() bool {
		s.data.FixedExpenses, found = removeByID(s.data.FixedExpenses, id, func(f core.FixedExpense) string { return f.ID })
		return found
	})
	return found
}

// Variable expenses

type VariableExpensePatch struct {
	Date        *core.Date
	Description *string
	Amount      *decimal.Decimal
	CategoryID  *string
}

func (s *Store) CreateVariableExpense(v core.VariableExpense) core.VariableExpense {
	v.ID = s.newID()
	s.mutate(func() bool {
		s.data.VariableExpenses = append(s.data.VariableExpenses, v)
		return true
	})
	return v
}

func (s *Store) UpdateVariableExpense(id string, p VariableExpensePatch) (core.VariableExpense, bool) {
	var out core.VariableExpense
	var found bool
	s.mutate(func() bool {
		for i := range s.data.VariableExpenses {
			v := &s.data.VariableExpenses[i]
			if v.ID != id {
				continue
			}
			if p.Date != nil {
				v.Date = *p.Date
			}
			if p.Description != nil {
				v.Description = *p.Description
			}
			if p.Amount != nil {
				v.Amount = *p.Amount
			}
			if p.CategoryID != nil {
				v.CategoryID = *p.CategoryID
			}
			out, found = *v, true
			return true
		}
		return false
	})
	return out, found
}

func (s *Store) DeleteVariableExpense(id string) bool {
	var found bool
	s.mutate(func() bool {
		s.data.VariableExpenses, found = removeByID(s.data.VariableExpenses, id, func(v core.VariableExpense) string { return v.ID })
		return found
	})
	return found
}

func removeByID[T any](items []T, id string, key func(T) string) ([]T, bool) {
	for i, it := range items {
		if key(it) == id {
			return append(items[:i:i], items[i+1:]...), true
		}
	}
	return items, false
}
