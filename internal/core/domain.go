package core

import (
	"errors"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	KindIncome  CategoryKind = "income"
	KindExpense CategoryKind = "expense"
)

// Uncategorized bucket used by aggregations for records without a
// resolvable category.
const (
	UncategorizedID    = "uncategorized"
	UncategorizedName  = "Uncategorized"
	UncategorizedColor = "#6b7280"
)

const maxDescriptionLen = 200

type (
	CategoryKind string

	Category struct {
		ID    string       `json:"id"`
		Name  string       `json:"name"`
		Kind  CategoryKind `json:"kind"`
		Color string       `json:"color"`
	}

	// IncomeEntry is a one-off income dated to a calendar day.
	IncomeEntry struct {
		ID          string          `json:"id"`
		Date        Date            `json:"date"`
		Description string          `json:"description"`
		Amount      decimal.Decimal `json:"amount"`
		CategoryID  string          `json:"categoryId,omitempty"`
	}

	// FixedExpense is a recurring monthly template. Enabled=false hides it
	// from every month; per-month deactivation lives in MonthOverride.
	FixedExpense struct {
		ID          string          `json:"id"`
		Description string          `json:"description"`
		Amount      decimal.Decimal `json:"amount"`
		CategoryID  string          `json:"categoryId,omitempty"`
		Enabled     bool            `json:"enabled"`
	}

	// VariableExpense is a one-off expense dated to a calendar day.
	VariableExpense struct {
		ID          string          `json:"id"`
		Date        Date            `json:"date"`
		Description string          `json:"description"`
		Amount      decimal.Decimal `json:"amount"`
		CategoryID  string          `json:"categoryId,omitempty"`
	}

	// MonthOverride holds the templates explicitly switched off for a month.
	MonthOverride struct {
		DeactivatedTemplateIDs []string `json:"deactivatedTemplateIds"`
	}
)

var (
	ErrInvalidKind      = errors.New("kind must be income or expense")
	ErrInvalidColor     = errors.New("color must be a #rrggbb hex value")
	ErrEmptyName        = errors.New("empty name")
	ErrEmptyDescription = errors.New("empty description")
	ErrDescriptionLong  = errors.New("description too long (max 200 characters)")
	ErrMissingID        = errors.New("missing id")
)

// Palette is the set of colours offered for new categories.
var Palette = []string{
	"#ef4444", "#f97316", "#f59e0b", "#eab308", "#84cc16",
	"#22c55e", "#10b981", "#14b8a6", "#06b6d4", "#0ea5e9",
	"#3b82f6", "#6366f1", "#8b5cf6", "#a855f7", "#d946ef",
	"#ec4899", "#f43f5e",
}

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

func (k CategoryKind) IsValid() bool {
	return k == KindIncome || k == KindExpense
}

// HasCategory reports whether the record references a category at all.
func (e IncomeEntry) HasCategory() bool     { return e.CategoryID != "" }
func (f FixedExpense) HasCategory() bool    { return f.CategoryID != "" }
func (v VariableExpense) HasCategory() bool { return v.CategoryID != "" }

// ValidColor reports whether c is a #rrggbb colour.
func ValidColor(c string) bool {
	return hexColor.MatchString(c)
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return &ValidationError{Field: "id", Err: ErrMissingID}
	}
	if strings.TrimSpace(c.Name) == "" {
		return &ValidationError{Field: "name", Err: ErrEmptyName}
	}
	if !c.Kind.IsValid() {
		return &ValidationError{Field: "kind", Err: ErrInvalidKind}
	}
	if c.Color != "" && !ValidColor(c.Color) {
		return &ValidationError{Field: "color", Err: ErrInvalidColor}
	}
	return nil
}

func (e IncomeEntry) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return &ValidationError{Field: "id", Err: ErrMissingID}
	}
	if err := e.Date.Validate(); err != nil {
		return &ValidationError{Field: "date", Err: err}
	}
	return validateAmount(e.Amount)
}

func (f FixedExpense) Validate() error {
	if strings.TrimSpace(f.ID) == "" {
		return &ValidationError{Field: "id", Err: ErrMissingID}
	}
	return validateAmount(f.Amount)
}

func (v VariableExpense) Validate() error {
	if strings.TrimSpace(v.ID) == "" {
		return &ValidationError{Field: "id", Err: ErrMissingID}
	}
	if err := v.Date.Validate(); err != nil {
		return &ValidationError{Field: "date", Err: err}
	}
	return validateAmount(v.Amount)
}

// ValidateDescription applies the rules used by create/update commands.
func ValidateDescription(s string) error {
	if len(strings.TrimSpace(s)) == 0 {
		return &ValidationError{Field: "description", Err: ErrEmptyDescription}
	}
	if len(s) > maxDescriptionLen {
		return &ValidationError{Field: "description", Err: ErrDescriptionLong}
	}
	return nil
}

func validateAmount(d decimal.Decimal) error {
	if d.IsNegative() {
		return &ValidationError{Field: "amount", Err: ErrInvalidAmount}
	}
	return nil
}

// Contains reports whether templateID is deactivated.
func (o MonthOverride) Contains(templateID string) bool {
	for _, id := range o.DeactivatedTemplateIDs {
		if id == templateID {
			return true
		}
	}
	return false
}

// Add returns the override with templateID deactivated. Duplicates are
// never introduced.
func (o MonthOverride) Add(templateID string) MonthOverride {
	if o.Contains(templateID) {
		return o
	}
	ids := make([]string, 0, len(o.DeactivatedTemplateIDs)+1)
	ids = append(ids, o.DeactivatedTemplateIDs...)
	return MonthOverride{DeactivatedTemplateIDs: append(ids, templateID)}
}

// Remove returns the override with templateID no longer deactivated.
func (o MonthOverride) Remove(templateID string) MonthOverride {
	ids := make([]string, 0, len(o.DeactivatedTemplateIDs))
	for _, id := range o.DeactivatedTemplateIDs {
		if id != templateID {
			ids = append(ids, id)
		}
	}
	return MonthOverride{DeactivatedTemplateIDs: ids}
}

// dedupe drops repeated ids keeping the first occurrence.
func (o MonthOverride) dedupe() MonthOverride {
	seen := make(map[string]struct{}, len(o.DeactivatedTemplateIDs))
	ids := make([]string, 0, len(o.DeactivatedTemplateIDs))
	for _, id := range o.DeactivatedTemplateIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return MonthOverride{DeactivatedTemplateIDs: ids}
}
