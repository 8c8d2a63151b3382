// Package persistence moves budget snapshots between the in-memory store,
// the local durable store and the remote replica.
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"budget/internal/core"
)

// ErrNoSnapshot is returned by SnapshotStore.Load when nothing was saved yet.
var ErrNoSnapshot = errors.New("no snapshot stored")

// Record is a snapshot together with the revision it was taken at.
type Record struct {
	Version   int64         `json:"version"`
	UpdatedAt time.Time     `json:"updatedAt"`
	Data      core.Snapshot `json:"data"`
}

// EmptyRecord is what a first run starts from.
func EmptyRecord() Record {
	return Record{Data: core.EmptySnapshot()}
}

// NewerThan reports whether r wins a last-write-wins comparison against
// other. Ties go to other.
func (r Record) NewerThan(other Record) bool {
	return r.UpdatedAt.After(other.UpdatedAt)
}

// SnapshotStore is the local durable copy of the budget.
type SnapshotStore interface {
	Load(ctx context.Context) (Record, error)
	Save(ctx context.Context, rec Record) error
}

// Replica is the remote copy. Pull reports false when the remote holds
// nothing for the user yet.
type Replica interface {
	Pull(ctx context.Context) (Record, bool, error)
	Push(ctx context.Context, rec Record) error
}

// Notifier announces that a new revision was saved locally, so that a
// separate worker can replicate it.
type Notifier interface {
	PublishSnapshotSync(ctx context.Context, userID string, version int64) error
}

// EncodeRecord is the on-disk and on-wire form shared by every store.
func EncodeRecord(rec Record) ([]byte, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return b, nil
}

// DecodeRecord parses the EncodeRecord form and repairs missing
// collections.
func DecodeRecord(b []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}
	rec.Data.Repair()
	return rec, nil
}
