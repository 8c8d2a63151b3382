package persistence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"budget/internal/log"
)

const defaultWriteTimeout = 10 * time.Second

// GatewayOptions configures the optional parts of a Gateway. A nil Replica
// and a nil Notifier mean the budget only lives on this machine.
type GatewayOptions struct {
	Replica  Replica
	Notifier Notifier
	UserID   string
	Logger   *log.Logger
	// WriteTimeout bounds one background write. Defaults to 10s.
	WriteTimeout time.Duration
}

// Gateway writes snapshots to the local store and forwards them to the
// replica, either directly or through a Notifier.
//
// Save never blocks on I/O: a single background writer drains the latest
// pending record, so a burst of saves results in one write of the final
// state.
type Gateway struct {
	local    SnapshotStore
	replica  Replica
	notifier Notifier
	userID   string
	logger   *log.Logger
	timeout  time.Duration

	mu      sync.Mutex
	pending *Record
	// latest is the highest version accepted for writing. Older saves
	// arriving late are dropped.
	latest  int64
	closed  bool
	report  StatusReport

	wake      chan struct{}
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewGateway starts the background writer. Close must be called to flush
// and stop it.
func NewGateway(local SnapshotStore, opts GatewayOptions) *Gateway {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	timeout := opts.WriteTimeout
	if timeout <= 0 {
		timeout = defaultWriteTimeout
	}
	g := &Gateway{
		local:    local,
		replica:  opts.Replica,
		notifier: opts.Notifier,
		userID:   opts.UserID,
		logger:   logger.WithComponent(log.ComponentPersistence),
		timeout:  timeout,
		report: StatusReport{
			Status:      StatusIdle,
			RemoteSetup: opts.Replica != nil || opts.Notifier != nil,
		},
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go g.run()
	return g
}

// Load returns the budget to start from: the local copy, replaced by the
// replica's when that one was written later. Nothing stored anywhere
// yields an empty record.
func (g *Gateway) Load(ctx context.Context) (Record, error) {
	local, err := g.local.Load(ctx)
	switch {
	case errors.Is(err, ErrNoSnapshot):
		local = EmptyRecord()
	case err != nil:
		g.setStatus(StatusError, 0, err)
		return Record{}, fmt.Errorf("load local snapshot: %w", err)
	}

	g.mu.Lock()
	g.latest = max(g.latest, local.Version)
	g.mu.Unlock()

	if g.replica == nil {
		return local, nil
	}

	rec, _, err := g.reconcile(ctx, local)
	if err != nil {
		// The local copy is still usable; the indicator shows we are offline.
		g.logger.WarnContext(ctx, "Replica unavailable at startup, using local copy", log.FieldError, err)
		return local, nil
	}
	return rec, nil
}

// Save schedules rec for writing and returns immediately.
func (g *Gateway) Save(rec Record) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		g.logger.Warn("Save after close ignored", log.FieldVersion, rec.Version)
		return
	}
	if rec.Version < g.latest {
		latest := g.latest
		g.mu.Unlock()
		g.logger.Debug("Stale save ignored", log.FieldVersion, rec.Version, "latest", latest)
		return
	}
	g.latest = rec.Version
	g.pending = &rec
	g.report.Status = StatusSyncing
	g.mu.Unlock()

	select {
	case g.wake <- struct{}{}:
	default:
	}
}

// Sync reconciles current with the replica right away. It returns the
// record the caller should now hold and whether it came from the replica.
func (g *Gateway) Sync(ctx context.Context, current Record) (Record, bool, error) {
	if g.replica == nil {
		g.setStatus(StatusSynced, current.Version, nil)
		return current, false, nil
	}
	return g.reconcile(ctx, current)
}

// Status returns the current sync indicator.
func (g *Gateway) Status() StatusReport {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.report
}

// Close writes any pending record and stops the writer.
func (g *Gateway) Close() error {
	g.closeOnce.Do(func() {
		g.mu.Lock()
		g.closed = true
		g.mu.Unlock()
		close(g.stop)
	})
	<-g.done
	return nil
}

func (g *Gateway) run() {
	defer close(g.done)
	for {
		select {
		case <-g.wake:
			g.flush()
		case <-g.stop:
			g.flush()
			return
		}
	}
}

func (g *Gateway) flush() {
	g.mu.Lock()
	rec := g.pending
	g.pending = nil
	g.mu.Unlock()
	if rec == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()
	g.write(ctx, *rec)
}

func (g *Gateway) write(ctx context.Context, rec Record) {
	if err := g.local.Save(ctx, rec); err != nil {
		g.logger.ErrorContext(ctx, "Failed to save snapshot locally",
			log.FieldVersion, rec.Version, log.FieldError, err)
		g.setStatus(StatusError, rec.Version, err)
		return
	}

	if err := g.forward(ctx, rec); err != nil {
		g.logger.WarnContext(ctx, "Snapshot saved locally but not replicated",
			log.FieldVersion, rec.Version, log.FieldError, err)
		g.setStatus(StatusOffline, rec.Version, err)
		return
	}

	g.logger.DebugContext(ctx, "Snapshot saved", log.FieldVersion, rec.Version)
	g.setStatus(StatusSynced, rec.Version, nil)
}

// forward hands rec to the broker when one is configured, falling back to
// a direct push.
func (g *Gateway) forward(ctx context.Context, rec Record) error {
	if g.notifier != nil {
		err := g.notifier.PublishSnapshotSync(ctx, g.userID, rec.Version)
		if err == nil || g.replica == nil {
			return err
		}
		g.logger.WarnContext(ctx, "Publish failed, pushing to replica directly", log.FieldError, err)
	}
	if g.replica != nil {
		return g.replica.Push(ctx, rec)
	}
	return nil
}

// reconcile applies last-write-wins between current and the replica.
func (g *Gateway) reconcile(ctx context.Context, current Record) (Record, bool, error) {
	g.setStatus(StatusSyncing, current.Version, nil)

	remote, found, err := g.replica.Pull(ctx)
	if err != nil {
		g.setStatus(StatusOffline, current.Version, err)
		return current, false, fmt.Errorf("pull replica: %w", err)
	}

	if found && remote.NewerThan(current) {
		remote = g.adopt(current, remote)
		if err := g.local.Save(ctx, remote); err != nil {
			g.setStatus(StatusError, remote.Version, err)
			return remote, true, fmt.Errorf("save pulled snapshot: %w", err)
		}
		g.logger.InfoContext(ctx, "Replica snapshot is newer, adopted it",
			log.FieldVersion, remote.Version, log.FieldUserID, g.userID)
		g.setStatus(StatusSynced, remote.Version, nil)
		return remote, true, nil
	}

	// An untouched first run has nothing worth pushing.
	if found || current.Version > 0 {
		if err := g.replica.Push(ctx, current); err != nil {
			g.setStatus(StatusOffline, current.Version, err)
			return current, false, fmt.Errorf("push replica: %w", err)
		}
	}
	g.setStatus(StatusSynced, current.Version, nil)
	return current, false, nil
}

// adopt renumbers a pulled record above every version this gateway has
// accepted, so later local saves keep increasing. Versions are a local
// counter; the pull itself was decided on UpdatedAt. A pending save older
// than the adopted record is dropped.
func (g *Gateway) adopt(current, remote Record) Record {
	g.mu.Lock()
	defer g.mu.Unlock()
	floor := max(current.Version, g.latest)
	if remote.Version <= floor {
		remote.Version = floor + 1
	}
	g.latest = remote.Version
	if g.pending != nil && g.pending.Version < remote.Version {
		g.pending = nil
	}
	return remote
}

func (g *Gateway) setStatus(s SyncStatus, version int64, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	// A newer record is queued; the indicator stays on syncing until it lands.
	if g.pending != nil && s != StatusSyncing {
		s = StatusSyncing
	}
	g.report.Status = s
	if version > 0 {
		g.report.Version = version
	}
	switch {
	case err != nil:
		g.report.LastError = err.Error()
	case s == StatusSynced:
		g.report.LastError = ""
		g.report.LastSyncAt = time.Now().UTC()
	}
}
