package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/persistence"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	mu      sync.Mutex
	loaded  persistence.Record
	loadErr error
	saved   []persistence.Record
	synced  *persistence.Record
	syncErr error
}

func (f *fakeGateway) Load(context.Context) (persistence.Record, error) {
	return f.loaded, f.loadErr
}

func (f *fakeGateway) Save(rec persistence.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, rec)
}

func (f *fakeGateway) Sync(_ context.Context, current persistence.Record) (persistence.Record, bool, error) {
	if f.syncErr != nil {
		return current, false, f.syncErr
	}
	if f.synced != nil {
		return *f.synced, true, nil
	}
	return current, false, nil
}

func (f *fakeGateway) Status() persistence.StatusReport {
	return persistence.StatusReport{Status: persistence.StatusSynced}
}

func (f *fakeGateway) saves() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

// march2025 is the service clock in every test unless stated otherwise.
var march2025 = time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T, gw Gateway) *BudgetService {
	t.Helper()
	n := 0
	return NewBudgetService(gw, Options{
		UserID: "user-1",
		Now:    func() time.Time { return march2025 },
		Rand:   rand.New(rand.NewSource(1)),
		Logger: log.Discard(),
		NewID: func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		},
	})
}

func month(t *testing.T, s string) core.Month {
	t.Helper()
	m, err := core.ParseMonth(s)
	require.NoError(t, err)
	return m
}

func requireValidation(t *testing.T, err error, field string) {
	t.Helper()
	var ve *core.ValidationError
	require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
	assert.Equal(t, field, ve.Field)
}

func TestWorkedExample(t *testing.T) {
	ctx := context.Background()
	s := newService(t, nil)

	_, err := s.CreateIncome(ctx, EntryInput{Date: "2025-03-05", Description: "Salary", Amount: "2000"})
	require.NoError(t, err)
	_, err = s.CreateFixedExpense(ctx, FixedExpenseInput{Description: "Rent", Amount: "800"})
	require.NoError(t, err)
	_, err = s.CreateVariableExpense(ctx, EntryInput{Date: "2025-03-10", Description: "Groceries", Amount: "150"})
	require.NoError(t, err)

	got := s.MonthTotals(month(t, "2025-03"))
	assert.True(t, got.TotalIncome.Equal(decimal.NewFromInt(2000)))
	assert.True(t, got.TotalFixedExpenses.Equal(decimal.NewFromInt(800)))
	assert.True(t, got.TotalVariableExpenses.Equal(decimal.NewFromInt(150)))
	assert.True(t, got.TotalExpenses.Equal(decimal.NewFromInt(950)))
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(1050)))
	assert.True(t, got.IsPositive)
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	s := newService(t, nil)

	_, err := s.CreateIncome(ctx, EntryInput{Date: "2025-03-05", Description: "x", Amount: "abc"})
	requireValidation(t, err, "amount")
	_, err = s.CreateIncome(ctx, EntryInput{Date: "2025-03-05", Description: "x", Amount: "-3"})
	requireValidation(t, err, "amount")
	_, err = s.CreateIncome(ctx, EntryInput{Date: "05/03/2025", Description: "x", Amount: "3"})
	requireValidation(t, err, "date")
	_, err = s.CreateVariableExpense(ctx, EntryInput{Date: "2025-03-05", Description: "  ", Amount: "3"})
	requireValidation(t, err, "description")
	_, err = s.CreateVariableExpense(ctx, EntryInput{Date: "2025-03-05", Description: "x", Amount: "3", CategoryID: "nope"})
	requireValidation(t, err, "categoryId")
	_, err = s.CreateFixedExpense(ctx, FixedExpenseInput{Description: "Rent", Amount: ""})
	requireValidation(t, err, "amount")
	_, err = s.CreateCategory(ctx, CategoryInput{Name: "Food", Kind: "savings"})
	requireValidation(t, err, "kind")
	_, err = s.CreateCategory(ctx, CategoryInput{Name: "", Kind: "expense"})
	requireValidation(t, err, "name")
	_, err = s.CreateCategory(ctx, CategoryInput{Name: "Food", Kind: "expense", Color: "green"})
	requireValidation(t, err, "color")

	assert.Empty(t, s.Snapshot().Incomes, "nothing reaches the store on validation failure")
	assert.Empty(t, s.Snapshot().Categories)
	assert.Equal(t, int64(0), s.Revision().Version)
}

func TestCommaDecimalAmount(t *testing.T) {
	s := newService(t, nil)
	e, err := s.CreateVariableExpense(context.Background(), EntryInput{Date: "2025-03-01", Description: "Coffee", Amount: "2,50"})
	require.NoError(t, err)
	assert.Equal(t, "2.5", e.Amount.String())
}

func TestAmountInputJSON(t *testing.T) {
	var in EntryInput
	require.NoError(t, json.Unmarshal([]byte(`{"amount": 12.5}`), &in))
	assert.Equal(t, AmountInput("12.5"), in.Amount)
	require.NoError(t, json.Unmarshal([]byte(`{"amount": "12,50"}`), &in))
	assert.Equal(t, AmountInput("12,50"), in.Amount)
	assert.Error(t, json.Unmarshal([]byte(`{"amount": true}`), &in))
}

func TestCategoryDefaultColorFromPalette(t *testing.T) {
	s := newService(t, nil)
	c, err := s.CreateCategory(context.Background(), CategoryInput{Name: "Food", Kind: "expense"})
	require.NoError(t, err)
	assert.Contains(t, core.Palette, c.Color)
	assert.Equal(t, core.KindExpense, c.Kind)
}

func TestDeleteCategory(t *testing.T) {
	ctx := context.Background()
	s := newService(t, nil)

	food, err := s.CreateCategory(ctx, CategoryInput{Name: "Food", Kind: "expense", Color: "#22c55e"})
	require.NoError(t, err)
	spare, err := s.CreateCategory(ctx, CategoryInput{Name: "Spare", Kind: "expense"})
	require.NoError(t, err)
	_, err = s.CreateVariableExpense(ctx, EntryInput{Date: "2025-03-02", Description: "Pizza", Amount: "20", CategoryID: food.ID})
	require.NoError(t, err)

	err = s.DeleteCategory(ctx, food.ID)
	var ce *core.ConflictError
	require.True(t, errors.As(err, &ce), "got %v", err)
	assert.Len(t, s.Categories(""), 2)

	require.NoError(t, s.DeleteCategory(ctx, spare.ID))
	for _, b := range s.CategoryBreakdown(month(t, "2025-03")) {
		assert.NotEqual(t, spare.ID, b.CategoryID)
	}

	var nf *core.NotFoundError
	require.True(t, errors.As(s.DeleteCategory(ctx, spare.ID), &nf))
}

func TestDeleteCategoryInUseWritesNothing(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{}
	s := newService(t, gw)

	food, err := s.CreateCategory(ctx, CategoryInput{Name: "Food", Kind: "expense"})
	require.NoError(t, err)
	pizza, err := s.CreateVariableExpense(ctx, EntryInput{Date: "2025-03-02", Description: "Pizza", Amount: "20", CategoryID: food.ID})
	require.NoError(t, err)
	saves, rev := gw.saves(), s.Revision()

	var ce *core.ConflictError
	require.ErrorAs(t, s.DeleteCategory(ctx, food.ID), &ce)
	assert.Equal(t, saves, gw.saves())
	assert.Equal(t, rev, s.Revision())

	require.NoError(t, s.DeleteVariableExpense(ctx, pizza.ID))
	require.NoError(t, s.DeleteCategory(ctx, food.ID))
	assert.Empty(t, s.Categories(""))
	assert.Equal(t, rev.Version+2, s.Revision().Version)
}

func TestCategoryReferencedByFixedOrIncomeIsInUse(t *testing.T) {
	ctx := context.Background()
	s := newService(t, nil)
	salary, _ := s.CreateCategory(ctx, CategoryInput{Name: "Salary", Kind: "income"})
	home, _ := s.CreateCategory(ctx, CategoryInput{Name: "Home", Kind: "expense"})
	_, err := s.CreateIncome(ctx, EntryInput{Date: "2025-03-01", Description: "Pay", Amount: "10", CategoryID: salary.ID})
	require.NoError(t, err)
	_, err = s.CreateFixedExpense(ctx, FixedExpenseInput{Description: "Rent", Amount: "10", CategoryID: home.ID})
	require.NoError(t, err)

	var ce *core.ConflictError
	assert.True(t, errors.As(s.DeleteCategory(ctx, salary.ID), &ce))
	assert.True(t, errors.As(s.DeleteCategory(ctx, home.ID), &ce))
}

func TestUpdateCommands(t *testing.T) {
	ctx := context.Background()
	s := newService(t, nil)
	cat, _ := s.CreateCategory(ctx, CategoryInput{Name: "Fun", Kind: "expense"})
	v, err := s.CreateVariableExpense(ctx, EntryInput{Date: "2025-03-02", Description: "Cinema", Amount: "12", CategoryID: cat.ID})
	require.NoError(t, err)

	amount := AmountInput("15,00")
	updated, err := s.UpdateVariableExpense(ctx, v.ID, EntryUpdate{Amount: &amount})
	require.NoError(t, err)
	assert.Equal(t, "Cinema", updated.Description)
	assert.Equal(t, cat.ID, updated.CategoryID)
	assert.True(t, updated.Amount.Equal(decimal.NewFromInt(15)))

	empty := ""
	updated, err = s.UpdateVariableExpense(ctx, v.ID, EntryUpdate{CategoryID: &empty})
	require.NoError(t, err)
	assert.Equal(t, "", updated.CategoryID)

	bad := "not-a-date"
	_, err = s.UpdateVariableExpense(ctx, v.ID, EntryUpdate{Date: &bad})
	requireValidation(t, err, "date")

	var nf *core.NotFoundError
	_, err = s.UpdateIncome(ctx, "missing", EntryUpdate{Amount: &amount})
	require.True(t, errors.As(err, &nf))

	name := "Leisure"
	c, err := s.UpdateCategory(ctx, cat.ID, CategoryUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Leisure", c.Name)
	assert.Equal(t, cat.Color, c.Color)

	f, _ := s.CreateFixedExpense(ctx, FixedExpenseInput{Description: "Gym", Amount: "30"})
	off := false
	f, err = s.UpdateFixedExpense(ctx, f.ID, FixedExpenseUpdate{Enabled: &off})
	require.NoError(t, err)
	assert.False(t, f.Enabled)
	assert.Empty(t, s.ApplicableFixedExpenses(month(t, "2025-03")))
}

func TestDeleteUnknownRecords(t *testing.T) {
	ctx := context.Background()
	s := newService(t, nil)
	var nf *core.NotFoundError
	assert.True(t, errors.As(s.DeleteIncome(ctx, "x"), &nf))
	assert.True(t, errors.As(s.DeleteVariableExpense(ctx, "x"), &nf))
	assert.True(t, errors.As(s.DeleteFixedExpense(ctx, "x"), &nf))
	assert.True(t, errors.As(s.SetFixedExpenseActive(ctx, "x", month(t, "2025-03"), false), &nf))
}

func TestFreshTemplateAppliesToCurrentMonth(t *testing.T) {
	s := newService(t, nil)
	f, err := s.CreateFixedExpense(context.Background(), FixedExpenseInput{Description: "Internet", Amount: "29.99"})
	require.NoError(t, err)

	got := s.ApplicableFixedExpenses(s.CurrentMonth())
	require.Len(t, got, 1)
	assert.Equal(t, f.ID, got[0].ID)
}

func TestToggleOffThenOnIsNoOp(t *testing.T) {
	ctx := context.Background()
	s := newService(t, nil)
	a, _ := s.CreateFixedExpense(ctx, FixedExpenseInput{Description: "Rent", Amount: "800"})
	_, _ = s.CreateFixedExpense(ctx, FixedExpenseInput{Description: "Gym", Amount: "30"})

	for _, key := range []string{"2025-03", "2025-07"} {
		m := month(t, key)
		before := s.ApplicableFixedExpenses(m)

		require.NoError(t, s.SetFixedExpenseActive(ctx, a.ID, m, false))
		assert.False(t, s.IsFixedExpenseActive(a.ID, m))
		assert.Len(t, s.ApplicableFixedExpenses(m), 1)

		require.NoError(t, s.SetFixedExpenseActive(ctx, a.ID, m, true))
		assert.ElementsMatch(t, before, s.ApplicableFixedExpenses(m), key)
	}
}

func TestPastMonthToggleCountsAsActivity(t *testing.T) {
	ctx := context.Background()
	s := newService(t, nil)
	a, _ := s.CreateFixedExpense(ctx, FixedExpenseInput{Description: "Rent", Amount: "800"})
	jan := month(t, "2025-01")

	assert.Empty(t, s.ApplicableFixedExpenses(jan), "past month without overrides")

	require.NoError(t, s.SetFixedExpenseActive(ctx, a.ID, jan, false))
	assert.Empty(t, s.ApplicableFixedExpenses(jan))

	require.NoError(t, s.SetFixedExpenseActive(ctx, a.ID, jan, true))
	got := s.ApplicableFixedExpenses(jan)
	require.Len(t, got, 1, "an empty override record still marks the month as edited")
	assert.Equal(t, a.ID, got[0].ID)
}

func TestMonthView(t *testing.T) {
	ctx := context.Background()
	s := newService(t, nil)
	food, _ := s.CreateCategory(ctx, CategoryInput{Name: "Food", Kind: "expense", Color: "#22c55e"})
	_, _ = s.CreateIncome(ctx, EntryInput{Date: "2025-03-01", Description: "Pay", Amount: "100"})
	_, _ = s.CreateVariableExpense(ctx, EntryInput{Date: "2025-03-03", Description: "Bread", Amount: "3", CategoryID: food.ID})
	_, _ = s.CreateVariableExpense(ctx, EntryInput{Date: "2025-02-03", Description: "Old", Amount: "9"})
	f, _ := s.CreateFixedExpense(ctx, FixedExpenseInput{Description: "Phone", Amount: "10"})

	v := s.Month(month(t, "2025-03"))
	assert.Equal(t, "March 2025", v.Label)
	assert.Len(t, v.Incomes, 1)
	assert.Len(t, v.VariableExpenses, 1)
	require.Len(t, v.FixedExpenses, 1)
	assert.Equal(t, f.ID, v.FixedExpenses[0].ID)
	assert.True(t, v.FixedExpenses[0].Applies)
	require.Len(t, v.Breakdown, 2)
	assert.Equal(t, core.UncategorizedID, v.Breakdown[0].CategoryID)
	assert.True(t, v.Totals.Balance.Equal(decimal.NewFromInt(87)))

	h := s.History(6)
	require.Len(t, h, 6)
	assert.Equal(t, "2024-10", h[0].Month.String())
	assert.Equal(t, "2025-03", h[5].Month.String())
}

func TestMutationsAreSaved(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{}
	s := newService(t, gw)

	c, _ := s.CreateCategory(ctx, CategoryInput{Name: "Food", Kind: "expense"})
	f, _ := s.CreateFixedExpense(ctx, FixedExpenseInput{Description: "Rent", Amount: "800"})
	require.NoError(t, s.SetFixedExpenseActive(ctx, f.ID, month(t, "2025-04"), false))
	require.NoError(t, s.DeleteCategory(ctx, c.ID))
	_, _ = s.CreateIncome(ctx, EntryInput{Date: "bad", Description: "x", Amount: "1"})

	require.Equal(t, 4, gw.saves())
	last := gw.saved[3]
	assert.Equal(t, int64(4), last.Version)
	assert.Equal(t, march2025, last.UpdatedAt)
	assert.Empty(t, last.Data.Categories)
	assert.Len(t, last.Data.MonthOverrides, 1)
}

func TestRestore(t *testing.T) {
	snap := core.EmptySnapshot()
	snap.Categories = append(snap.Categories, core.Category{ID: "c1", Name: "Home", Kind: core.KindExpense})
	gw := &fakeGateway{loaded: persistence.Record{Version: 12, UpdatedAt: march2025, Data: snap}}
	s := newService(t, gw)

	require.NoError(t, s.Restore(context.Background()))
	assert.Len(t, s.Categories(core.KindExpense), 1)
	assert.Equal(t, int64(12), s.Revision().Version)
	assert.Zero(t, gw.saves(), "restoring is not a mutation")

	gw.loadErr = errors.New("disk gone")
	assert.Error(t, s.Restore(context.Background()))
}

func TestSyncAdoptsNewerRemote(t *testing.T) {
	remote := core.EmptySnapshot()
	remote.Incomes = append(remote.Incomes, core.IncomeEntry{ID: "r", Date: core.NewDate(2025, 3, 1), Description: "Remote", Amount: decimal.NewFromInt(5)})
	gw := &fakeGateway{synced: &persistence.Record{Version: 40, UpdatedAt: march2025.Add(time.Hour), Data: remote}}
	s := newService(t, gw)

	st, err := s.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, persistence.StatusSynced, st.Status)
	assert.Len(t, s.Incomes(month(t, "2025-03")), 1)
	assert.Equal(t, int64(40), s.Revision().Version)

	gw.synced, gw.syncErr = nil, errors.New("offline")
	_, err = s.Sync(context.Background())
	assert.Error(t, err)
}

func TestImportIsAtomic(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{}
	s := newService(t, gw)
	_, _ = s.CreateCategory(ctx, CategoryInput{Name: "Keep", Kind: "expense"})
	before := s.Snapshot()

	_, err := s.Import(ctx, []byte(`{"data":{"incomes":[{"id":"i","date":"2025-01-01","description":"x","amount":-1}]}}`))
	var ie *core.ImportError
	require.True(t, errors.As(err, &ie), "got %v", err)
	assert.Equal(t, before, s.Snapshot())
	assert.Equal(t, 1, gw.saves())

	_, err = s.Import(ctx, []byte(`{"categories":[{"id":"n","name":"New","kind":"income"}]}`))
	require.NoError(t, err)
	cats := s.Categories("")
	require.Len(t, cats, 1)
	assert.Equal(t, "New", cats[0].Name)
	assert.Equal(t, 2, gw.saves())
}

func TestExportThenImport(t *testing.T) {
	ctx := context.Background()
	s := newService(t, nil)
	c, _ := s.CreateCategory(ctx, CategoryInput{Name: "Home", Kind: "expense"})
	f, _ := s.CreateFixedExpense(ctx, FixedExpenseInput{Description: "Rent", Amount: "800", CategoryID: c.ID})
	require.NoError(t, s.SetFixedExpenseActive(ctx, f.ID, month(t, "2025-05"), false))

	var buf bytes.Buffer
	require.NoError(t, s.Export(&buf))

	other := newService(t, nil)
	_, err := other.Import(ctx, buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, s.Categories(""), other.Categories(""))
	assert.False(t, other.IsFixedExpenseActive(f.ID, month(t, "2025-05")))
	want, got := s.MonthTotals(month(t, "2025-03")), other.MonthTotals(month(t, "2025-03"))
	assert.True(t, want.Balance.Equal(got.Balance), "want %s got %s", want.Balance, got.Balance)
}

func TestParseMonthValidation(t *testing.T) {
	_, err := ParseMonth("2025-13")
	requireValidation(t, err, "month")
	m, err := ParseMonth(" 2025-02 ")
	require.NoError(t, err)
	assert.Equal(t, "2025-02", m.String())
}
