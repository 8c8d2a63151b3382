package google

import (
	"testing"
	"time"

	"budget/internal/core"

	"github.com/shopspring/decimal"
)

func TestParseSummary(t *testing.T) {
	values := [][]interface{}{
		{"Month", "Label", "Income", "Fixed", "Variable", "Balance", "Cumulative"},
		{"2025-01", "January 2025", 2000.0, 800.0, 150.0, 1050.0, 1050.0},
		{"2025-02", "February 2025", "1500,5", 800, "", 700.5, 1750.5},
		{"total", "", 3500.5, 1600, 150, 1750.5, ""},
		{"2025-03", "March 2025"},
	}
	rows, err := parseSummary(values)
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows (total row skipped), got %d", len(rows))
	}
	if rows[0].Month != core.NewMonth(2025, time.January) || rows[0].Label != "January 2025" {
		t.Fatalf("unexpected first row: %+v", rows[0])
	}
	if !rows[1].Income.Equal(decimal.RequireFromString("1500.5")) {
		t.Fatalf("decimal comma: got %s", rows[1].Income)
	}
	if !rows[1].Variable.IsZero() {
		t.Fatalf("blank cell should read as zero, got %s", rows[1].Variable)
	}
	if !rows[2].Balance.IsZero() {
		t.Fatalf("short row should read as zero, got %s", rows[2].Balance)
	}
}

func TestParseSummary_ReorderedColumns(t *testing.T) {
	values := [][]interface{}{
		{"Balance", "Month", "Cumulative", "Label", "Variable", "Fixed", "Income"},
		{12.5, "2024-12", 40, "December 2024", 1, 2, 15.5},
	}
	rows, err := parseSummary(values)
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	if len(rows) != 1 || !rows[0].Balance.Equal(decimal.RequireFromString("12.5")) || !rows[0].Income.Equal(decimal.RequireFromString("15.5")) {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestParseSummary_BadHeader(t *testing.T) {
	_, err := parseSummary([][]interface{}{{"Month", "Label", "Income"}})
	if err == nil {
		t.Fatal("expected header error")
	}
}

func TestParseSummary_Empty(t *testing.T) {
	rows, err := parseSummary(nil)
	if err != nil || rows != nil {
		t.Fatalf("empty sheet: rows=%v err=%v", rows, err)
	}
}
