package services

import (
	"context"
	"encoding/json"
	"strings"

	"budget/internal/core"
	"budget/internal/ledger"
	"budget/internal/log"
	"budget/internal/store"

	"github.com/shopspring/decimal"
)

// Resource names used in NotFoundError and ConflictError.
const (
	ResourceCategory        = "category"
	ResourceIncome          = "income"
	ResourceFixedExpense    = "fixed expense"
	ResourceVariableExpense = "variable expense"
)

// CategoryInput creates a category. An empty Color picks one from the
// palette.
type CategoryInput struct {
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Color string `json:"color"`
}

// CategoryUpdate changes the provided fields only.
type CategoryUpdate struct {
	Name  *string `json:"name"`
	Kind  *string `json:"kind"`
	Color *string `json:"color"`
}

// EntryInput creates an income or a variable expense.
type EntryInput struct {
	Date        string      `json:"date"`
	Description string      `json:"description"`
	Amount      AmountInput `json:"amount"`
	CategoryID  string      `json:"categoryId"`
}

// EntryUpdate changes the provided fields only. An empty CategoryID
// clears the category.
type EntryUpdate struct {
	Date        *string      `json:"date"`
	Description *string      `json:"description"`
	Amount      *AmountInput `json:"amount"`
	CategoryID  *string      `json:"categoryId"`
}

// FixedExpenseInput creates a fixed expense template.
type FixedExpenseInput struct {
	Description string      `json:"description"`
	Amount      AmountInput `json:"amount"`
	CategoryID  string      `json:"categoryId"`
}

// FixedExpenseUpdate changes the provided fields only.
type FixedExpenseUpdate struct {
	Description *string      `json:"description"`
	Amount      *AmountInput `json:"amount"`
	CategoryID  *string      `json:"categoryId"`
	Enabled     *bool        `json:"enabled"`
}

// AmountInput is an amount as typed by the user, "12,50" or "12.50". In
// JSON it may also be a plain number.
type AmountInput string

func (a *AmountInput) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*a = AmountInput(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return &core.ValidationError{Field: "amount", Err: core.ErrInvalidAmount}
	}
	*a = AmountInput(n.String())
	return nil
}

// Categories

func (s *BudgetService) CreateCategory(ctx context.Context, in CategoryInput) (core.Category, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return core.Category{}, &core.ValidationError{Field: "name", Err: core.ErrEmptyName}
	}
	kind := core.CategoryKind(strings.TrimSpace(in.Kind))
	if !kind.IsValid() {
		return core.Category{}, &core.ValidationError{Field: "kind", Err: core.ErrInvalidKind}
	}
	color := strings.TrimSpace(in.Color)
	if color == "" {
		color = s.randomColor()
	} else if !core.ValidColor(color) {
		return core.Category{}, &core.ValidationError{Field: "color", Err: core.ErrInvalidColor}
	}

	c := s.store.CreateCategory(core.Category{Name: name, Kind: kind, Color: color})
	s.events.LogRecordChanged(ctx, log.OpCreate, ResourceCategory, c.ID)
	return c, nil
}

func (s *BudgetService) UpdateCategory(ctx context.Context, id string, in CategoryUpdate) (core.Category, error) {
	var p store.CategoryPatch
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return core.Category{}, &core.ValidationError{Field: "name", Err: core.ErrEmptyName}
		}
		p.Name = &name
	}
	if in.Kind != nil {
		kind := core.CategoryKind(strings.TrimSpace(*in.Kind))
		if !kind.IsValid() {
			return core.Category{}, &core.ValidationError{Field: "kind", Err: core.ErrInvalidKind}
		}
		p.Kind = &kind
	}
	if in.Color != nil {
		color := strings.TrimSpace(*in.Color)
		if !core.ValidColor(color) {
			return core.Category{}, &core.ValidationError{Field: "color", Err: core.ErrInvalidColor}
		}
		p.Color = &color
	}

	c, ok := s.store.UpdateCategory(id, p)
	if !ok {
		return core.Category{}, &core.NotFoundError{Resource: ResourceCategory, ID: id}
	}
	s.events.LogRecordChanged(ctx, log.OpUpdate, ResourceCategory, id)
	return c, nil
}

// DeleteCategory removes a category that no record references.
func (s *BudgetService) DeleteCategory(ctx context.Context, id string) error {
	found, deleted := s.store.DeleteCategory(id, ledger.CategoryInUse)
	if !found {
		return &core.NotFoundError{Resource: ResourceCategory, ID: id}
	}
	if !deleted {
		return &core.ConflictError{Resource: ResourceCategory, ID: id, Reason: "still referenced by budget records"}
	}
	s.events.LogRecordChanged(ctx, log.OpDelete, ResourceCategory, id)
	return nil
}

// Incomes

func (s *BudgetService) CreateIncome(ctx context.Context, in EntryInput) (core.IncomeEntry, error) {
	date, desc, amount, categoryID, err := s.parseEntry(in)
	if err != nil {
		return core.IncomeEntry{}, err
	}
	e := s.store.CreateIncome(core.IncomeEntry{Date: date, Description: desc, Amount: amount, CategoryID: categoryID})
	s.events.LogRecordChanged(ctx, log.OpCreate, ResourceIncome, e.ID)
	return e, nil
}

func (s *BudgetService) UpdateIncome(ctx context.Context, id string, in EntryUpdate) (core.IncomeEntry, error) {
	date, desc, amount, categoryID, err := s.parseEntryUpdate(in)
	if err != nil {
		return core.IncomeEntry{}, err
	}
	e, ok := s.store.UpdateIncome(id, store.IncomePatch{Date: date, Description: desc, Amount: amount, CategoryID: categoryID})
	if !ok {
		return core.IncomeEntry{}, &core.NotFoundError{Resource: ResourceIncome, ID: id}
	}
	s.events.LogRecordChanged(ctx, log.OpUpdate, ResourceIncome, id)
	return e, nil
}

func (s *BudgetService) DeleteIncome(ctx context.Context, id string) error {
	if !s.store.DeleteIncome(id) {
		return &core.NotFoundError{Resource: ResourceIncome, ID: id}
	}
	s.events.LogRecordChanged(ctx, log.OpDelete, ResourceIncome, id)
	return nil
}

// Variable expenses

func (s *BudgetService) CreateVariableExpense(ctx context.Context, in EntryInput) (core.VariableExpense, error) {
	date, desc, amount, categoryID, err := s.parseEntry(in)
	if err != nil {
		return core.VariableExpense{}, err
	}
	v := s.store.CreateVariableExpense(core.VariableExpense{Date: date, Description: desc, Amount: amount, CategoryID: categoryID})
	s.events.LogRecordChanged(ctx, log.OpCreate, ResourceVariableExpense, v.ID)
	return v, nil
}

func (s *BudgetService) UpdateVariableExpense(ctx context.Context, id string, in EntryUpdate) (core.VariableExpense, error) {
	date, desc, amount, categoryID, err := s.parseEntryUpdate(in)
	if err != nil {
		return core.VariableExpense{}, err
	}
	v, ok := s.store.UpdateVariableExpense(id, store.VariableExpensePatch{Date: date, Description: desc, Amount: amount, CategoryID: categoryID})
	if !ok {
		return core.VariableExpense{}, &core.NotFoundError{Resource: ResourceVariableExpense, ID: id}
	}
	s.events.LogRecordChanged(ctx, log.OpUpdate, ResourceVariableExpense, id)
	return v, nil
}

func (s *BudgetService) DeleteVariableExpense(ctx context.Context, id string) error {
	if !s.store.DeleteVariableExpense(id) {
		return &core.NotFoundError{Resource: ResourceVariableExpense, ID: id}
	}
	s.events.LogRecordChanged(ctx, log.OpDelete, ResourceVariableExpense, id)
	return nil
}

// Fixed expense templates

func (s *BudgetService) CreateFixedExpense(ctx context.Context, in FixedExpenseInput) (core.FixedExpense, error) {
	desc := strings.TrimSpace(in.Description)
	if err := core.ValidateDescription(desc); err != nil {
		return core.FixedExpense{}, err
	}
	amount, err := parseAmountField(string(in.Amount))
	if err != nil {
		return core.FixedExpense{}, err
	}
	categoryID := strings.TrimSpace(in.CategoryID)
	if err := s.checkCategoryRef(categoryID); err != nil {
		return core.FixedExpense{}, err
	}
	f := s.store.CreateFixedExpense(core.FixedExpense{Description: desc, Amount: amount, CategoryID: categoryID})
	s.events.LogRecordChanged(ctx, log.OpCreate, ResourceFixedExpense, f.ID)
	return f, nil
}

func (s *BudgetService) UpdateFixedExpense(ctx context.Context, id string, in FixedExpenseUpdate) (core.FixedExpense, error) {
	var p store.FixedExpensePatch
	var err error
	if p.Description, err = optionalDescription(in.Description); err != nil {
		return core.FixedExpense{}, err
	}
	if p.Amount, err = optionalAmount(in.Amount); err != nil {
		return core.FixedExpense{}, err
	}
	if p.CategoryID, err = s.optionalCategory(in.CategoryID); err != nil {
		return core.FixedExpense{}, err
	}
	p.Enabled = in.Enabled

	f, ok := s.store.UpdateFixedExpense(id, p)
	if !ok {
		return core.FixedExpense{}, &core.NotFoundError{Resource: ResourceFixedExpense, ID: id}
	}
	s.events.LogRecordChanged(ctx, log.OpUpdate, ResourceFixedExpense, id)
	return f, nil
}

// DeleteFixedExpense removes the template. Month overrides that mention it
// are kept.
func (s *BudgetService) DeleteFixedExpense(ctx context.Context, id string) error {
	if !s.store.DeleteFixedExpense(id) {
		return &core.NotFoundError{Resource: ResourceFixedExpense, ID: id}
	}
	s.events.LogRecordChanged(ctx, log.OpDelete, ResourceFixedExpense, id)
	return nil
}

// SetFixedExpenseActive switches a template on or off for one month only.
func (s *BudgetService) SetFixedExpenseActive(ctx context.Context, templateID string, month core.Month, active bool) error {
	if _, ok := s.store.GetFixedExpense(templateID); !ok {
		return &core.NotFoundError{Resource: ResourceFixedExpense, ID: templateID}
	}
	s.store.SetActiveForMonth(templateID, month, active)
	s.logger.InfoContext(ctx, "Fixed expense toggled",
		log.FieldOperation, log.OpToggle,
		log.FieldTemplateID, templateID,
		log.FieldMonth, month.String(),
		log.FieldActive, active)
	return nil
}

// IsFixedExpenseActive reports the per-month toggle of a template.
func (s *BudgetService) IsFixedExpenseActive(templateID string, month core.Month) bool {
	return s.store.IsActiveForMonth(templateID, month)
}

func (s *BudgetService) parseEntry(in EntryInput) (core.Date, string, decimal.Decimal, string, error) {
	date, err := parseDateField(in.Date)
	if err != nil {
		return core.Date{}, "", decimal.Zero, "", err
	}
	desc := strings.TrimSpace(in.Description)
	if err := core.ValidateDescription(desc); err != nil {
		return core.Date{}, "", decimal.Zero, "", err
	}
	amount, err := parseAmountField(string(in.Amount))
	if err != nil {
		return core.Date{}, "", decimal.Zero, "", err
	}
	categoryID := strings.TrimSpace(in.CategoryID)
	if err := s.checkCategoryRef(categoryID); err != nil {
		return core.Date{}, "", decimal.Zero, "", err
	}
	return date, desc, amount, categoryID, nil
}

func (s *BudgetService) parseEntryUpdate(in EntryUpdate) (*core.Date, *string, *decimal.Decimal, *string, error) {
	var date *core.Date
	if in.Date != nil {
		d, err := parseDateField(*in.Date)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		date = &d
	}
	desc, err := optionalDescription(in.Description)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	amount, err := optionalAmount(in.Amount)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	categoryID, err := s.optionalCategory(in.CategoryID)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return date, desc, amount, categoryID, nil
}

func optionalDescription(raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	desc := strings.TrimSpace(*raw)
	if err := core.ValidateDescription(desc); err != nil {
		return nil, err
	}
	return &desc, nil
}

func optionalAmount(raw *AmountInput) (*decimal.Decimal, error) {
	if raw == nil {
		return nil, nil
	}
	amount, err := parseAmountField(string(*raw))
	if err != nil {
		return nil, err
	}
	return &amount, nil
}

func (s *BudgetService) optionalCategory(raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	id := strings.TrimSpace(*raw)
	if err := s.checkCategoryRef(id); err != nil {
		return nil, err
	}
	return &id, nil
}
