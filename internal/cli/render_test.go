package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"budget/internal/core"
	"budget/internal/ledger"
	"budget/internal/persistence"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestRenderTable_Alignment(t *testing.T) {
	out := RenderTable(Table{
		Headers: []string{"Name", "Amount"},
		Rows: [][]string{
			{"Rent", "€800,00"},
			SeparatorRow,
			{"Coffee", "€2,50"},
		},
	})

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 7)
	for _, l := range lines[1:] {
		assert.Equal(t, lipgloss.Width(lines[0]), lipgloss.Width(l), "ragged line %q", l)
	}
	assert.Contains(t, out, "│ Rent   │ €800,00 │")
	assert.Contains(t, out, "│ Coffee │   €2,50 │", "amounts are right aligned")
	assert.True(t, strings.HasPrefix(lines[4], "├"), "separator row draws a rule")
}

func TestRenderTable_Empty(t *testing.T) {
	assert.Empty(t, RenderTable(Table{}))
}

func TestRenderMonth(t *testing.T) {
	totals := ledger.Totals{
		TotalIncome:           dec("2000"),
		TotalFixedExpenses:    dec("800"),
		TotalVariableExpenses: dec("1300"),
		Balance:               dec("-100"),
	}
	var breakdown []ledger.CategoryTotal
	for _, name := range []string{"A", "B", "C", "D", "E", "F"} {
		breakdown = append(breakdown, ledger.CategoryTotal{Name: name, Total: dec("10"), Percent: 16})
	}
	fixed := []ledger.FixedExpenseState{
		{FixedExpense: core.FixedExpense{ID: "t1", Description: "Rent", Amount: dec("800"), Enabled: true}, ActiveForMonth: true, Applies: true},
		{FixedExpense: core.FixedExpense{ID: "t2", Description: "Gym", Amount: dec("30"), Enabled: true}, ActiveForMonth: false},
	}

	out := RenderMonth("March 2025", totals, breakdown, fixed, 5)
	assert.Contains(t, out, "March 2025")
	assert.Contains(t, out, "-€100,00")
	assert.Contains(t, out, "E")
	assert.NotContains(t, out, " F ", "only the top five categories are shown")
	assert.Contains(t, out, "off this month")
	assert.Contains(t, out, "counted")
}

func TestRenderHistory(t *testing.T) {
	m := core.NewMonth(2025, time.January)
	out := RenderHistory([]ledger.HistoryEntry{{
		Month:             m,
		Label:             m.Label(),
		Totals:            ledger.Totals{TotalIncome: dec("10"), TotalExpenses: dec("4"), Balance: dec("6")},
		CumulativeBalance: dec("6"),
	}})
	assert.Contains(t, out, "January 2025")
	assert.Contains(t, out, "€6,00")
}

func TestRenderSyncStatus(t *testing.T) {
	out := RenderSyncStatus(persistence.StatusReport{Status: persistence.StatusOffline, Version: 3, LastError: "redis down"})
	assert.Contains(t, out, "offline")
	assert.Contains(t, out, "version: 3")
	assert.Contains(t, out, "error: redis down")
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, LoadEnvFile(filepath.Join(dir, "missing.env")))

	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("BUDGET_CLI_TEST_KEY=from-file\n"), 0o600))
	t.Setenv("BUDGET_CLI_TEST_KEY", "")
	require.NoError(t, os.Unsetenv("BUDGET_CLI_TEST_KEY"))
	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "from-file", os.Getenv("BUDGET_CLI_TEST_KEY"))
}

func TestSetupLogger(t *testing.T) {
	logger, err := SetupLogger("debug")
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = SetupLogger("chatty")
	assert.Error(t, err)
}
