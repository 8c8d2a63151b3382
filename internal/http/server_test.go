package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"budget/internal/core"
	"budget/internal/ledger"
	"budget/internal/log"
	"budget/internal/persistence"
	"budget/internal/services"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var march2025 = time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)

type fakeGateway struct {
	syncErr error
}

func (f *fakeGateway) Load(context.Context) (persistence.Record, error) {
	return persistence.Record{Data: core.EmptySnapshot()}, nil
}
func (f *fakeGateway) Save(persistence.Record) {}
func (f *fakeGateway) Sync(_ context.Context, cur persistence.Record) (persistence.Record, bool, error) {
	return cur, false, f.syncErr
}
func (f *fakeGateway) Status() persistence.StatusReport {
	if f.syncErr != nil {
		return persistence.StatusReport{Status: persistence.StatusOffline, LastError: f.syncErr.Error()}
	}
	return persistence.StatusReport{Status: persistence.StatusSynced}
}

func newTestServer(t *testing.T, gw services.Gateway, opts Options) (*Server, *services.BudgetService) {
	t.Helper()
	n := 0
	svc := services.NewBudgetService(gw, services.Options{
		UserID: "user-1",
		Now:    func() time.Time { return march2025 },
		Rand:   rand.New(rand.NewSource(1)),
		Logger: log.Discard(),
		NewID: func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		},
	})
	opts.Logger = log.Discard()
	srv, err := NewServer(":0", svc, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, svc
}

func do(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	req.RemoteAddr = "203.0.113.9:5000"
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestHealthAndReady(t *testing.T) {
	srv, _ := newTestServer(t, nil, Options{Checks: map[string]ReadinessCheck{
		"db": func(context.Context) error { return nil },
	}})

	rr := do(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	rr = do(t, srv, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	body := decode[map[string]any](t, rr)
	assert.Equal(t, "ready", body["status"])
}

func TestReady_FailingCheck(t *testing.T) {
	srv, _ := newTestServer(t, nil, Options{Checks: map[string]ReadinessCheck{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	}})

	rr := do(t, srv, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	body := decode[map[string]any](t, rr)
	assert.Equal(t, "connection refused", body["checks"].(map[string]any)["redis"])
}

func TestMonthFlow(t *testing.T) {
	srv, _ := newTestServer(t, nil, Options{})

	rr := do(t, srv, http.MethodPost, "/api/categories", `{"name":"Food","kind":"expense","color":"#ef4444"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	cat := decode[core.Category](t, rr)

	rr = do(t, srv, http.MethodPost, "/api/incomes", `{"date":"2025-03-01","description":"Salary","amount":"2000"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = do(t, srv, http.MethodPost, "/api/fixed-expenses", `{"description":"Rent","amount":800}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	rent := decode[core.FixedExpense](t, rr)

	rr = do(t, srv, http.MethodPost, "/api/expenses",
		fmt.Sprintf(`{"date":"2025-03-10","description":"Groceries","amount":"45,50","categoryId":%q}`, cat.ID))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = do(t, srv, http.MethodGet, "/api/months/current", "")
	require.Equal(t, http.StatusOK, rr.Code)
	view := decode[services.MonthView](t, rr)
	assert.Equal(t, "2025-03", view.Month.String())
	assert.True(t, view.Totals.Balance.Equal(decimal.RequireFromString("1154.50")), view.Totals.Balance.String())
	require.Len(t, view.Breakdown, 2, "rent lands in the uncategorized bucket")
	names := []string{view.Breakdown[0].Name, view.Breakdown[1].Name}
	assert.Contains(t, names, "Food")
	assert.Contains(t, names, core.UncategorizedName)

	// Toggling the rent off changes the cached figures at once.
	rr = do(t, srv, http.MethodPut, "/api/months/2025-03/fixed-expenses/"+rent.ID, `{"active":false}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	state := decode[ledger.FixedExpenseState](t, rr)
	assert.False(t, state.ActiveForMonth)

	rr = do(t, srv, http.MethodGet, "/api/months/2025-03/totals", "")
	totals := decode[ledger.Totals](t, rr)
	assert.True(t, totals.Balance.Equal(decimal.RequireFromString("1954.50")), totals.Balance.String())

	rr = do(t, srv, http.MethodGet, "/api/history?count=3", "")
	require.Equal(t, http.StatusOK, rr.Code)
	history := decode[[]ledger.HistoryEntry](t, rr)
	require.Len(t, history, 3)
	assert.Equal(t, "2025-03", history[2].Month.String())
}

func TestValidationAndNotFound(t *testing.T) {
	srv, _ := newTestServer(t, nil, Options{})

	tests := []struct {
		name     string
		method   string
		target   string
		body     string
		wantCode int
	}{
		{"bad amount", http.MethodPost, "/api/incomes", `{"date":"2025-03-01","description":"x","amount":"abc"}`, http.StatusBadRequest},
		{"bad date", http.MethodPost, "/api/expenses", `{"date":"2025-02-30","description":"x","amount":"1"}`, http.StatusBadRequest},
		{"unknown category", http.MethodPost, "/api/expenses", `{"date":"2025-03-01","description":"x","amount":"1","categoryId":"nope"}`, http.StatusBadRequest},
		{"bad month", http.MethodGet, "/api/months/2025-3x", "", http.StatusBadRequest},
		{"bad kind", http.MethodGet, "/api/categories?kind=both", "", http.StatusBadRequest},
		{"unknown income", http.MethodPatch, "/api/incomes/missing", `{"description":"y"}`, http.StatusNotFound},
		{"unknown expense", http.MethodDelete, "/api/expenses/missing", "", http.StatusNotFound},
		{"toggle unknown template", http.MethodPut, "/api/months/2025-03/fixed-expenses/missing", `{"active":true}`, http.StatusNotFound},
		{"toggle without active", http.MethodPut, "/api/months/2025-03/fixed-expenses/missing", `{}`, http.StatusBadRequest},
		{"wrong method", http.MethodDelete, "/api/history", "", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.wantCode, rr.Code, rr.Body.String())
		})
	}
}

func TestDeleteCategoryInUseConflicts(t *testing.T) {
	srv, _ := newTestServer(t, nil, Options{})

	rr := do(t, srv, http.MethodPost, "/api/categories", `{"name":"Salary","kind":"income"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	cat := decode[core.Category](t, rr)

	rr = do(t, srv, http.MethodPost, "/api/incomes",
		fmt.Sprintf(`{"date":"2025-03-01","description":"March","amount":"100","categoryId":%q}`, cat.ID))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = do(t, srv, http.MethodDelete, "/api/categories/"+cat.ID, "")
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, decode[map[string]string](t, rr)["error"], cat.ID)
}

func TestExportImportRoundTrip(t *testing.T) {
	src, _ := newTestServer(t, nil, Options{})
	require.Equal(t, http.StatusCreated,
		do(t, src, http.MethodPost, "/api/incomes", `{"date":"2025-03-01","description":"Salary","amount":"2000"}`).Code)

	rr := do(t, src, http.MethodGet, "/api/export", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "attachment")
	exported := rr.Body.String()

	dst, svc := newTestServer(t, nil, Options{})
	rr = do(t, dst, http.MethodPost, "/api/import", exported)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, 1, decode[importResponse](t, rr).Incomes)
	assert.Len(t, svc.Snapshot().Incomes, 1)

	rr = do(t, dst, http.MethodPost, "/api/import", `{"hello":"world"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Len(t, svc.Snapshot().Incomes, 1, "failed import leaves the budget untouched")
}

func TestSyncEndpoints(t *testing.T) {
	gw := &fakeGateway{}
	srv, _ := newTestServer(t, gw, Options{})

	rr := do(t, srv, http.MethodGet, "/api/sync", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, persistence.StatusSynced, decode[persistence.StatusReport](t, rr).Status)

	rr = do(t, srv, http.MethodPost, "/api/sync", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	gw.syncErr = errors.New("redis down")
	rr = do(t, srv, http.MethodPost, "/api/sync", "")
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Contains(t, rr.Body.String(), "redis down")
}

func TestRateLimitOnMutations(t *testing.T) {
	srv, _ := newTestServer(t, nil, Options{RequestsPerMinute: 2})

	for i := 0; i < 2; i++ {
		rr := do(t, srv, http.MethodPost, "/api/categories", fmt.Sprintf(`{"name":"C%d","kind":"expense"}`, i))
		require.Equal(t, http.StatusCreated, rr.Code)
	}
	rr := do(t, srv, http.MethodPost, "/api/categories", `{"name":"C3","kind":"expense"}`)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))

	rr = do(t, srv, http.MethodGet, "/api/categories", "")
	assert.Equal(t, http.StatusOK, rr.Code, "reads are not limited")
	assert.Len(t, decode[[]core.Category](t, rr), 2)
}

func TestNewServer_BadTrustedProxy(t *testing.T) {
	svc := services.NewBudgetService(nil, services.Options{Logger: log.Discard()})
	_, err := NewServer(":0", svc, Options{Logger: log.Discard(), TrustedProxies: []string{"nope"}})
	assert.Error(t, err)
}
