// Package memory is an in-process summary sheet, used when no spreadsheet
// is configured and in tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"budget/internal/ledger"
	ports "budget/internal/sheets"
)

type Store struct {
	mu     sync.Mutex
	sheets map[string]map[int][]ports.SummaryRow // user -> year -> rows
	writes int
}

var (
	_ ports.HistoryWriter = (*Store)(nil)
	_ ports.HistoryReader = (*Store)(nil)
)

func New() *Store {
	return &Store{sheets: map[string]map[int][]ports.SummaryRow{}}
}

// WriteHistory stores the rows and returns a synthetic range reference.
func (s *Store) WriteHistory(_ context.Context, userID string, entries []ledger.HistoryEntry) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}
	rows := ports.RowsFromHistory(entries)
	year := rows[len(rows)-1].Month.Year

	s.mu.Lock()
	defer s.mu.Unlock()
	byYear, ok := s.sheets[userID]
	if !ok {
		byYear = map[int][]ports.SummaryRow{}
		s.sheets[userID] = byYear
	}
	if ports.SameRows(byYear[year], rows) {
		return "", nil
	}
	byYear[year] = rows
	s.writes++
	return fmt.Sprintf("mem:%s:%d!A1:G%d", userID, year, len(rows)+1), nil
}

// ReadHistory returns a copy of the stored rows.
func (s *Store) ReadHistory(_ context.Context, userID string, year int) ([]ports.SummaryRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.SummaryRow(nil), s.sheets[userID][year]...), nil
}

// Writes counts the writes that changed a sheet.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
