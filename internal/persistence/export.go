package persistence

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"budget/internal/core"
)

// ExportEnvelope is the file format produced by Export.
type ExportEnvelope struct {
	UserID     string        `json:"userId"`
	Data       core.Snapshot `json:"data"`
	ExportedAt time.Time     `json:"exportedAt"`
}

var errNoBudgetData = errors.New("payload holds no budget data")

var snapshotKeys = []string{"categories", "incomes", "fixedExpenses", "variableExpenses", "monthOverrides"}

// Export writes snap as indented JSON wrapped in an ExportEnvelope.
func Export(w io.Writer, userID string, snap core.Snapshot, exportedAt time.Time) error {
	snap = snap.Clone()
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ExportEnvelope{UserID: userID, Data: snap, ExportedAt: exportedAt.UTC()}); err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	return nil
}

// ParseImport reads a payload produced by Export, or a bare snapshot
// object. Missing collections are repaired to empty ones. Every failure is
// a *core.ImportError; on success the snapshot is fully validated.
func ParseImport(b []byte) (core.Snapshot, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(bytes.TrimSpace(b), &top); err != nil {
		return core.Snapshot{}, &core.ImportError{Err: fmt.Errorf("not a JSON object: %w", err)}
	}

	payload := top
	if data, ok := top["data"]; ok {
		payload = nil
		if err := json.Unmarshal(data, &payload); err != nil {
			return core.Snapshot{}, &core.ImportError{Err: fmt.Errorf("data: %w", err)}
		}
	}
	if !hasAnyKey(payload, snapshotKeys) {
		return core.Snapshot{}, &core.ImportError{Err: errNoBudgetData}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return core.Snapshot{}, &core.ImportError{Err: err}
	}
	var snap core.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return core.Snapshot{}, &core.ImportError{Err: err}
	}
	snap.Repair()
	if err := snap.Validate(); err != nil {
		return core.Snapshot{}, &core.ImportError{Err: err}
	}
	return snap, nil
}

func hasAnyKey(m map[string]json.RawMessage, keys []string) bool {
	for _, k := range keys {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}
