package sheets

import (
	"context"

	"budget/internal/ledger"
)

// Ports for outbound adapters.
type (
	// HistoryWriter mirrors a month history into an external sheet.
	HistoryWriter interface {
		// WriteHistory replaces the user's summary with rows, oldest month
		// first, and returns a reference to the written range. An empty
		// reference means the sheet already matched and nothing was written.
		WriteHistory(ctx context.Context, userID string, rows []ledger.HistoryEntry) (ref string, err error)
	}

	// HistoryReader reads back a summary previously written.
	HistoryReader interface {
		ReadHistory(ctx context.Context, userID string, year int) ([]SummaryRow, error)
	}
)
