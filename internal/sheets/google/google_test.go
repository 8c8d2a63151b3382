package google

import (
	"context"
	"strings"
	"testing"
	"time"

	"budget/internal/core"
	"budget/internal/ledger"
	ports "budget/internal/sheets"

	"github.com/shopspring/decimal"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Options{})
	if err == nil {
		t.Fatal("expected error for missing spreadsheet id")
	}
	if err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := New(context.Background(), Options{SpreadsheetID: "sheet"})
	if err == nil {
		t.Fatal("expected error for missing credentials")
	}
	if !strings.Contains(err.Error(), "missing service account credentials") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNew_UnreadableCredentialsFile(t *testing.T) {
	_, err := New(context.Background(), Options{
		SpreadsheetID:      "sheet",
		ServiceAccountFile: t.TempDir() + "/missing.json",
	})
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClient_NotInitialized(t *testing.T) {
	c := &Client{spreadsheetID: "test", sheetBase: "Budget"}
	entries := []ledger.HistoryEntry{{Month: core.NewMonth(2025, time.March)}}

	if _, err := c.WriteHistory(context.Background(), "u1", entries); err == nil {
		t.Error("expected error from WriteHistory without service")
	}
	if _, err := c.ReadHistory(context.Background(), "u1", 2025); err == nil {
		t.Error("expected error from ReadHistory without service")
	}
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		base string
		year int
		want string
	}{
		{"Budget", 2025, "2025 Budget"},
		{"  Budget  ", 2024, "2024 Budget"},
		{"2023 Budget", 2025, "2023 Budget"},
		{"", 2025, ""},
		{"1800 Budget", 2025, "2025 1800 Budget"},
	}
	for _, tt := range tests {
		if got := yearPrefixedName(tt.base, tt.year); got != tt.want {
			t.Errorf("yearPrefixedName(%q, %d) = %q, want %q", tt.base, tt.year, got, tt.want)
		}
	}
}

func TestEncodeRowsRoundTrip(t *testing.T) {
	rows := []ports.SummaryRow{{
		Month:      core.NewMonth(2025, time.March),
		Label:      "March 2025",
		Income:     decimal.RequireFromString("2000.10"),
		Fixed:      decimal.NewFromInt(800),
		Variable:   decimal.RequireFromString("49.99"),
		Balance:    decimal.RequireFromString("1150.11"),
		Cumulative: decimal.RequireFromString("-20.5"),
	}}

	values := encodeRows(rows)
	if len(values) != 2 || values[0][0] != "Month" || values[1][0] != "2025-03" {
		t.Fatalf("unexpected encoding: %v", values)
	}

	// The API hands values back as []interface{} rows.
	back := make([][]interface{}, len(values))
	for i, r := range values {
		back[i] = r
	}
	parsed, err := parseSummary(back)
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	if !ports.SameRows(rows, parsed) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", parsed, rows)
	}
}
