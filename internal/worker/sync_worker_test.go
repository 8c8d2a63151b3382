package worker

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/persistence"
	"budget/internal/remote"
	"budget/internal/sheets/memory"
	"budget/internal/storage"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var march = time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC)

type fakeReplica struct {
	mu     sync.Mutex
	pushed []int64
	err    error
}

func (f *fakeReplica) Pull(context.Context) (persistence.Record, bool, error) {
	return persistence.Record{}, false, nil
}

func (f *fakeReplica) Push(_ context.Context, rec persistence.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.pushed = append(f.pushed, rec.Version)
	return nil
}

func newRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "budget.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func saveRecord(t *testing.T, repo *storage.SQLiteRepository, userID string, version int64) {
	t.Helper()
	rec := persistence.EmptyRecord()
	rec.Version = version
	rec.UpdatedAt = march.Add(time.Duration(version) * time.Minute)
	rec.Data.Incomes = append(rec.Data.Incomes, core.IncomeEntry{
		ID:          "salary",
		Date:        core.NewDate(2025, time.March, 1),
		Description: "Salary",
		Amount:      decimal.NewFromInt(2000),
	})
	require.NoError(t, repo.SaveUser(context.Background(), userID, rec))
}

func newWorker(repo *storage.SQLiteRepository, replica *fakeReplica, sheet *memory.Store) *SyncWorker {
	opts := Options{
		HistoryMonths: 3,
		Now:           func() time.Time { return march },
		Logger:        log.Discard(),
	}
	if replica != nil {
		opts.Replicas = func(string) persistence.Replica { return replica }
	}
	if sheet != nil {
		opts.Sheets = sheet
	}
	return NewSyncWorker(repo, opts)
}

func TestHandleSnapshotSync(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	saveRecord(t, repo, "anna", 3)

	replica := &fakeReplica{}
	sheet := memory.New()
	w := newWorker(repo, replica, sheet)

	require.NoError(t, w.HandleSnapshotSync(ctx, amqp.NewSnapshotSyncMessage("anna", 3)))

	assert.Equal(t, []int64{3}, replica.pushed)
	rows, err := sheet.ReadHistory(ctx, "anna", 2025)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "March 2025", rows[2].Label)
	assert.True(t, rows[2].Income.Equal(decimal.NewFromInt(2000)))

	for _, target := range []string{TargetRedis, TargetSheets} {
		last, ok, err := repo.LastSync(ctx, "anna", target)
		require.NoError(t, err)
		require.True(t, ok, target)
		assert.Equal(t, int64(3), last.Version)
	}
}

func TestHandleSnapshotSync_NoSnapshot(t *testing.T) {
	replica := &fakeReplica{}
	w := newWorker(newRepo(t), replica, nil)

	require.NoError(t, w.HandleSnapshotSync(context.Background(), amqp.NewSnapshotSyncMessage("nobody", 1)))
	assert.Empty(t, replica.pushed)
}

func TestHandleSnapshotSync_StaleWriteIsNotAnError(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	saveRecord(t, repo, "anna", 2)

	w := newWorker(repo, &fakeReplica{err: remote.ErrStaleWrite}, nil)
	require.NoError(t, w.HandleSnapshotSync(ctx, amqp.NewSnapshotSyncMessage("anna", 2)))

	_, ok, err := repo.LastSync(ctx, "anna", TargetRedis)
	require.NoError(t, err)
	assert.True(t, ok, "a snapshot superseded remotely counts as synced")
}

func TestHandleSnapshotSync_ReplicaFailureRequeues(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	saveRecord(t, repo, "anna", 2)

	sheet := memory.New()
	w := newWorker(repo, &fakeReplica{err: errors.New("connection refused")}, sheet)
	err := w.HandleSnapshotSync(ctx, amqp.NewSnapshotSyncMessage("anna", 2))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")

	assert.Equal(t, 1, sheet.Writes(), "the sheet mirror still runs")
	_, ok, err := repo.LastSync(ctx, "anna", TargetRedis)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProcessPending(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	saveRecord(t, repo, "anna", 1)

	replica := &fakeReplica{}
	w := newWorker(repo, replica, nil)

	require.NoError(t, w.ProcessPending(ctx, []string{"anna", "nobody"}))
	assert.Equal(t, []int64{1}, replica.pushed)

	// Up to date: nothing is pushed again.
	require.NoError(t, w.ProcessPending(ctx, []string{"anna"}))
	assert.Equal(t, []int64{1}, replica.pushed)

	saveRecord(t, repo, "anna", 2)
	require.NoError(t, w.ProcessPending(ctx, []string{"anna"}))
	assert.Equal(t, []int64{1, 2}, replica.pushed)
}
