package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"budget/internal/persistence"

	_ "modernc.org/sqlite"
)

// SQLiteRepository keeps one budget snapshot per user in a SQLite file.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// LoadUser returns the stored snapshot of userID, or
// persistence.ErrNoSnapshot.
func (r *SQLiteRepository) LoadUser(ctx context.Context, userID string) (persistence.Record, error) {
	var (
		version   int64
		updatedAt string
		payload   string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT version, updated_at, payload FROM budget_snapshots WHERE user_id = ?`, userID,
	).Scan(&version, &updatedAt, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.Record{}, persistence.ErrNoSnapshot
	}
	if err != nil {
		return persistence.Record{}, fmt.Errorf("query snapshot: %w", err)
	}

	rec, err := persistence.DecodeRecord([]byte(payload))
	if err != nil {
		return persistence.Record{}, err
	}
	// The columns are authoritative over the copies inside the payload.
	rec.Version = version
	if rec.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return persistence.Record{}, fmt.Errorf("parse updated_at %q: %w", updatedAt, err)
	}
	return rec, nil
}

// SaveUser stores rec as the snapshot of userID, replacing any previous one.
func (r *SQLiteRepository) SaveUser(ctx context.Context, userID string, rec persistence.Record) error {
	payload, err := persistence.EncodeRecord(rec)
	if err != nil {
		return err
	}
	// An older version arriving late never replaces a newer one.
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO budget_snapshots (user_id, version, updated_at, payload, saved_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id) DO UPDATE SET
			version = excluded.version,
			updated_at = excluded.updated_at,
			payload = excluded.payload,
			saved_at = excluded.saved_at
		WHERE excluded.version >= budget_snapshots.version`,
		userID, rec.Version, rec.UpdatedAt.UTC().Format(time.RFC3339Nano), string(payload))
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		slog.WarnContext(ctx, "Stale snapshot not saved",
			"user_id", userID,
			"version", rec.Version)
		return nil
	}
	slog.DebugContext(ctx, "Snapshot saved to SQLite",
		"user_id", userID,
		"version", rec.Version,
		"bytes", len(payload))
	return nil
}

// SyncAttempt is one row of the replication log.
type SyncAttempt struct {
	UserID    string
	Version   int64
	Target    string
	Err       string
	CreatedAt time.Time
}

// RecordSync logs a replication attempt of version to target. A nil
// syncErr marks it synced.
func (r *SQLiteRepository) RecordSync(ctx context.Context, userID string, version int64, target string, syncErr error) error {
	status, msg := "synced", sql.NullString{}
	if syncErr != nil {
		status = "error"
		msg = sql.NullString{String: syncErr.Error(), Valid: true}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sync_log (user_id, version, target, status, error) VALUES (?, ?, ?, ?, ?)`,
		userID, version, target, status, msg)
	if err != nil {
		return fmt.Errorf("insert sync log: %w", err)
	}
	if syncErr != nil {
		slog.WarnContext(ctx, "Snapshot marked with sync error",
			"user_id", userID, "version", version, "target", target)
	}
	return nil
}

// LastSync returns the most recent successful replication of userID to
// target. ok is false when there was none.
func (r *SQLiteRepository) LastSync(ctx context.Context, userID, target string) (SyncAttempt, bool, error) {
	var (
		a         SyncAttempt
		createdAt string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, version, target, created_at FROM sync_log
		WHERE user_id = ? AND target = ? AND status = 'synced'
		ORDER BY id DESC LIMIT 1`, userID, target,
	).Scan(&a.UserID, &a.Version, &a.Target, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return SyncAttempt{}, false, nil
	}
	if err != nil {
		return SyncAttempt{}, false, fmt.Errorf("query sync log: %w", err)
	}
	a.CreatedAt = parseSQLiteTime(createdAt)
	return a, true, nil
}

// ForUser binds the repository to one user so it can serve as a
// persistence.SnapshotStore.
func (r *SQLiteRepository) ForUser(userID string) *UserSnapshots {
	return &UserSnapshots{repo: r, userID: userID}
}

// UserSnapshots is the SnapshotStore view of one user's row.
type UserSnapshots struct {
	repo   *SQLiteRepository
	userID string
}

func (u *UserSnapshots) Load(ctx context.Context) (persistence.Record, error) {
	return u.repo.LoadUser(ctx, u.userID)
}

func (u *UserSnapshots) Save(ctx context.Context, rec persistence.Record) error {
	return u.repo.SaveUser(ctx, u.userID, rec)
}

func parseSQLiteTime(s string) time.Time {
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
