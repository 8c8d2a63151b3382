package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"sync"
	"time"

	"budget/internal/core"
	"budget/internal/ledger"
	"budget/internal/log"
	"budget/internal/persistence"
	"budget/internal/store"

	"github.com/shopspring/decimal"
)

var errUnknownCategory = errors.New("unknown category")

// Gateway is the part of persistence.Gateway the service depends on.
type Gateway interface {
	Load(ctx context.Context) (persistence.Record, error)
	Save(rec persistence.Record)
	Sync(ctx context.Context, current persistence.Record) (persistence.Record, bool, error)
	Status() persistence.StatusReport
}

// Options configures a BudgetService. Zero values pick the defaults.
type Options struct {
	UserID string
	Now    func() time.Time
	Rand   *rand.Rand
	Logger *log.Logger
	// NewID replaces the random UUID generator of the store.
	NewID func() string
}

// BudgetService is the command boundary of the budget. It validates input,
// enforces reference rules, mutates the store and answers queries through
// the ledger engine. Every successful mutation is handed to the gateway.
type BudgetService struct {
	store   *store.Store
	engine  *ledger.Engine
	gateway Gateway
	userID  string
	now     func() time.Time
	logger  *log.Logger
	events  *log.StructuredLogger

	randMu sync.Mutex
	rand   *rand.Rand
}

// NewBudgetService builds a service over an empty store. Call Restore to
// load the persisted budget. A nil gateway keeps everything in memory.
func NewBudgetService(gateway Gateway, opts Options) *BudgetService {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	rnd := opts.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewSource(now().UnixNano()))
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentLedger)

	s := &BudgetService{
		engine:  ledger.New(now),
		gateway: gateway,
		userID:  opts.UserID,
		now:     now,
		logger:  logger,
		events:  log.NewStructuredLogger(logger),
		rand:    rnd,
	}
	storeOpts := []store.Option{store.WithClock(now), store.WithOnChange(s.persist)}
	if opts.NewID != nil {
		storeOpts = append(storeOpts, store.WithIDGenerator(opts.NewID))
	}
	s.store = store.New(storeOpts...)
	return s
}

// Restore replaces the store content with what the gateway loads.
func (s *BudgetService) Restore(ctx context.Context) error {
	if s.gateway == nil {
		return nil
	}
	rec, err := s.gateway.Load(ctx)
	if err != nil {
		return fmt.Errorf("restore budget: %w", err)
	}
	s.store.Load(rec.Data, store.Revision{Version: rec.Version, UpdatedAt: rec.UpdatedAt})
	s.logger.InfoContext(ctx, "Budget restored", log.FieldVersion, rec.Version,
		"categories", len(rec.Data.Categories), "fixed_expenses", len(rec.Data.FixedExpenses))
	return nil
}

func (s *BudgetService) persist(snap core.Snapshot, rev store.Revision) {
	if s.gateway == nil {
		return
	}
	s.gateway.Save(persistence.Record{Version: rev.Version, UpdatedAt: rev.UpdatedAt, Data: snap})
}

// Sync reconciles with the remote replica and adopts its copy when it is
// newer.
func (s *BudgetService) Sync(ctx context.Context) (persistence.StatusReport, error) {
	if s.gateway == nil {
		return persistence.StatusReport{Status: persistence.StatusIdle}, nil
	}
	snap, rev := s.store.SnapshotWithRevision()
	current := persistence.Record{Version: rev.Version, UpdatedAt: rev.UpdatedAt, Data: snap}
	rec, pulled, err := s.gateway.Sync(ctx, current)
	if err != nil {
		return s.gateway.Status(), fmt.Errorf("sync: %w", err)
	}
	if pulled {
		s.store.Load(rec.Data, store.Revision{Version: rec.Version, UpdatedAt: rec.UpdatedAt})
	}
	return s.gateway.Status(), nil
}

// SyncStatus reports the persistence indicator.
func (s *BudgetService) SyncStatus() persistence.StatusReport {
	if s.gateway == nil {
		return persistence.StatusReport{Status: persistence.StatusIdle}
	}
	return s.gateway.Status()
}

// Revision identifies the current state; it changes on every mutation.
func (s *BudgetService) Revision() store.Revision {
	return s.store.Revision()
}

// Export writes the whole budget as an export file.
func (s *BudgetService) Export(w io.Writer) error {
	return persistence.Export(w, s.userID, s.store.Snapshot(), s.now())
}

// Import replaces the whole budget with the payload. The store is left
// untouched unless the payload parses and validates.
func (s *BudgetService) Import(ctx context.Context, payload []byte) (core.Snapshot, error) {
	snap, err := persistence.ParseImport(payload)
	if err != nil {
		s.events.LogError(ctx, "Import rejected", err, log.ComponentLedger, log.OpImport, nil)
		return core.Snapshot{}, err
	}
	s.store.Replace(snap)
	s.logger.InfoContext(ctx, "Budget imported", log.FieldOperation, log.OpImport,
		"incomes", len(snap.Incomes), "variable_expenses", len(snap.VariableExpenses))
	return s.store.Snapshot(), nil
}

// Snapshot returns a copy of the whole budget.
func (s *BudgetService) Snapshot() core.Snapshot {
	return s.store.Snapshot()
}

func (s *BudgetService) randomColor() string {
	s.randMu.Lock()
	defer s.randMu.Unlock()
	return core.Palette[s.rand.Intn(len(core.Palette))]
}

// checkCategoryRef validates an optional category reference.
func (s *BudgetService) checkCategoryRef(id string) error {
	if id == "" {
		return nil
	}
	if _, ok := s.store.GetCategory(id); !ok {
		return &core.ValidationError{Field: "categoryId", Err: errUnknownCategory}
	}
	return nil
}

func parseAmountField(raw string) (decimal.Decimal, error) {
	amount, err := core.ParseAmount(raw)
	if err != nil {
		return decimal.Zero, &core.ValidationError{Field: "amount", Err: err}
	}
	return amount, nil
}

func parseDateField(raw string) (core.Date, error) {
	d, err := core.ParseDate(strings.TrimSpace(raw))
	if err != nil {
		return core.Date{}, &core.ValidationError{Field: "date", Err: err}
	}
	return d, nil
}

// ParseMonth parses a month key, reporting failures as validation errors.
func ParseMonth(raw string) (core.Month, error) {
	m, err := core.ParseMonth(strings.TrimSpace(raw))
	if err != nil {
		return core.Month{}, &core.ValidationError{Field: "month", Err: err}
	}
	return m, nil
}
