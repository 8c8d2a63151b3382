package persistence

import "time"

// SyncStatus is the state of the last save or reconcile.
type SyncStatus string

const (
	StatusIdle    SyncStatus = "idle"
	StatusSyncing SyncStatus = "syncing"
	StatusSynced  SyncStatus = "synced"
	StatusError   SyncStatus = "error"
	// StatusOffline means the local save worked but the replica or the
	// broker could not be reached.
	StatusOffline SyncStatus = "offline"
)

// StatusReport is what the presentation layer shows as the sync indicator.
type StatusReport struct {
	Status      SyncStatus `json:"status"`
	Version     int64      `json:"version"`
	LastSyncAt  time.Time  `json:"lastSyncAt,omitempty"`
	LastError   string     `json:"lastError,omitempty"`
	RemoteSetup bool       `json:"remote"`
}
