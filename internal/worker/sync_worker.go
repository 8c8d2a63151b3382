// Package worker replicates saved budgets to the remote replica and mirrors
// their history into a spreadsheet, driven by sync messages.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"budget/internal/amqp"
	"budget/internal/ledger"
	"budget/internal/log"
	"budget/internal/persistence"
	"budget/internal/remote"
	"budget/internal/sheets"
	"budget/internal/storage"
)

// Sync targets recorded in the sync log.
const (
	TargetRedis  = "redis"
	TargetSheets = "sheets"
)

// SnapshotSource is the local database the worker reads from and logs to.
type SnapshotSource interface {
	LoadUser(ctx context.Context, userID string) (persistence.Record, error)
	RecordSync(ctx context.Context, userID string, version int64, target string, syncErr error) error
	LastSync(ctx context.Context, userID, target string) (storage.SyncAttempt, bool, error)
}

// ReplicaFor returns the replica holding userID's snapshot.
type ReplicaFor func(userID string) persistence.Replica

// Options configures a SyncWorker. Zero values pick the defaults.
type Options struct {
	// Replicas is nil when no Redis is configured.
	Replicas      ReplicaFor
	// Sheets is nil when no spreadsheet is configured.
	Sheets        sheets.HistoryWriter
	HistoryMonths int
	Now           func() time.Time
	Logger        *log.Logger
}

// SyncWorker handles replication of snapshots from SQLite to Redis and the
// spreadsheet mirror.
type SyncWorker struct {
	source        SnapshotSource
	replicas      ReplicaFor
	sheets        sheets.HistoryWriter
	engine        *ledger.Engine
	historyMonths int
	logger        *log.Logger
}

func NewSyncWorker(source SnapshotSource, opts Options) *SyncWorker {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	if opts.HistoryMonths <= 0 {
		opts.HistoryMonths = 6
	}
	return &SyncWorker{
		source:        source,
		replicas:      opts.Replicas,
		sheets:        opts.Sheets,
		engine:        ledger.New(now),
		historyMonths: opts.HistoryMonths,
		logger:        logger.WithComponent(log.ComponentWorker),
	}
}

// HandleSnapshotSync processes a single snapshot sync message from AMQP.
// The snapshot is read from the database, so a message for an older
// version replicates the latest state. An error requeues the message.
func (w *SyncWorker) HandleSnapshotSync(ctx context.Context, msg *amqp.SnapshotSyncMessage) error {
	w.logger.InfoContext(ctx, "Processing sync message",
		log.FieldUserID, msg.UserID,
		log.FieldVersion, msg.Version)

	return w.SyncUser(ctx, msg.UserID)
}

// SyncUser replicates userID's stored snapshot to every configured target.
func (w *SyncWorker) SyncUser(ctx context.Context, userID string) error {
	rec, err := w.source.LoadUser(ctx, userID)
	if errors.Is(err, persistence.ErrNoSnapshot) {
		w.logger.WarnContext(ctx, "No snapshot stored, nothing to sync", log.FieldUserID, userID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	var errs []error
	if w.replicas != nil {
		if err := w.pushToReplica(ctx, userID, rec); err != nil {
			errs = append(errs, err)
		}
	}
	if w.sheets != nil {
		if err := w.mirrorHistory(ctx, userID, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *SyncWorker) pushToReplica(ctx context.Context, userID string, rec persistence.Record) error {
	err := w.replicas(userID).Push(ctx, rec)
	if errors.Is(err, remote.ErrStaleWrite) {
		// Another device already wrote a later snapshot; that one wins.
		err = nil
	}
	w.record(ctx, userID, rec.Version, TargetRedis, err)
	if err != nil {
		return fmt.Errorf("push to replica: %w", err)
	}
	w.logger.InfoContext(ctx, "Snapshot replicated",
		log.FieldUserID, userID,
		log.FieldVersion, rec.Version)
	return nil
}

func (w *SyncWorker) mirrorHistory(ctx context.Context, userID string, rec persistence.Record) error {
	history := w.engine.MonthHistory(&rec.Data, w.historyMonths)
	ref, err := w.sheets.WriteHistory(ctx, userID, history)
	w.record(ctx, userID, rec.Version, TargetSheets, err)
	if err != nil {
		return fmt.Errorf("write history to sheets: %w", err)
	}
	if ref == "" {
		w.logger.DebugContext(ctx, "Sheet already up to date", log.FieldUserID, userID)
		return nil
	}
	w.logger.InfoContext(ctx, "History mirrored",
		log.FieldUserID, userID,
		log.FieldVersion, rec.Version,
		"sheets_ref", ref,
		"months", len(history))
	return nil
}

func (w *SyncWorker) record(ctx context.Context, userID string, version int64, target string, syncErr error) {
	if err := w.source.RecordSync(ctx, userID, version, target, syncErr); err != nil {
		w.logger.ErrorContext(ctx, "Failed to record sync attempt",
			log.FieldUserID, userID,
			"target", target,
			log.FieldError, err)
	}
}

// ProcessPending syncs every user whose stored snapshot is ahead of the
// last successful replication. It recovers from lost messages and worker
// downtime.
func (w *SyncWorker) ProcessPending(ctx context.Context, userIDs []string) error {
	var errs []error
	synced := 0
	for _, userID := range userIDs {
		behind, err := w.isBehind(ctx, userID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !behind {
			continue
		}
		if err := w.SyncUser(ctx, userID); err != nil {
			w.logger.ErrorContext(ctx, "Failed to sync pending snapshot", log.FieldUserID, userID, log.FieldError, err)
			errs = append(errs, err)
			continue
		}
		synced++
	}
	if synced > 0 {
		w.logger.InfoContext(ctx, "Pending snapshots synced", "count", synced)
	}
	return errors.Join(errs...)
}

func (w *SyncWorker) isBehind(ctx context.Context, userID string) (bool, error) {
	rec, err := w.source.LoadUser(ctx, userID)
	if errors.Is(err, persistence.ErrNoSnapshot) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load snapshot: %w", err)
	}

	var targets []string
	if w.replicas != nil {
		targets = append(targets, TargetRedis)
	}
	if w.sheets != nil {
		targets = append(targets, TargetSheets)
	}
	for _, target := range targets {
		last, ok, err := w.source.LastSync(ctx, userID, target)
		if err != nil {
			return false, err
		}
		if !ok || last.Version < rec.Version {
			return true, nil
		}
	}
	return false, nil
}
