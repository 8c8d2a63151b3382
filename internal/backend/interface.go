// Package backend assembles the persistence stack of the budget from
// configuration: the local snapshot store, the optional replica and the
// optional change notifier.
package backend

import (
	"context"

	"budget/internal/persistence"
	"budget/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Check reports whether one dependency of the backend is usable.
type Check func(ctx context.Context) error

// BackendResult contains the gateway and everything that must be released
// with it.
type BackendResult struct {
	Gateway *persistence.Gateway

	// Repository is the SQLite store backing the gateway. Nil for the
	// memory backend.
	Repository *storage.SQLiteRepository

	// Checks are keyed by dependency name for the readiness endpoint.
	Checks map[string]Check

	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type   BackendType
	UserID string

	SQLiteDBPath string

	// AMQP is optional. Without it snapshots are pushed to Redis directly.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Redis is optional. Without it the budget only lives locally.
	RedisURL       string
	RedisKeyPrefix string
}

// BackendType represents the type of local store
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
