package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"budget/internal/amqp"
	"budget/internal/log"
	"budget/internal/persistence"
	"budget/internal/remote"
	"budget/internal/storage"

	"github.com/redis/go-redis/v9"
)

const redisStartupTimeout = 3 * time.Second

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentStorage),
	}
}

// CreateBackend builds the local store, then the optional replica and
// notifier, and starts the gateway on top of them. Remote dependencies that
// are unreachable at startup do not fail the call: the budget keeps working
// locally and the sync status reports offline.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	result := &BackendResult{Checks: make(map[string]Check)}
	var closers []func() error

	var local persistence.SnapshotStore
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		result.Repository = repo
		result.Checks["sqlite"] = repo.Ping
		closers = append(closers, repo.Close)
		local = repo.ForUser(config.UserID)
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	case MemoryBackend:
		local = storage.NewMemoryStore()
		f.logger.Info("Initialized memory backend")
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}

	opts := persistence.GatewayOptions{UserID: config.UserID, Logger: f.logger}

	if config.RedisURL != "" {
		client, err := f.redisClient(ctx, config.RedisURL)
		if err != nil {
			closeAll(closers)
			return nil, err
		}
		replica := remote.NewRedisReplica(client, config.RedisKeyPrefix, config.UserID, f.logger)
		opts.Replica = replica
		result.Checks["redis"] = replica.Ping
		closers = append(closers, client.Close)
	}

	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, pushing to the replica directly", "error", err)
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
			opts.Notifier = client
			closers = append(closers, client.Close)
		}
	}

	gateway := persistence.NewGateway(local, opts)
	result.Gateway = gateway

	// The gateway flushes its last write through the other resources, so it
	// closes first.
	closers = append([]func() error{gateway.Close}, closers...)
	result.Cleanup = func() error { return closeAll(closers) }

	f.logger.Info("Backend ready",
		"type", config.Type.String(),
		"replica", opts.Replica != nil,
		"notifier", opts.Notifier != nil)
	return result, nil
}

// redisClient parses url and checks Redis answers. A client that does not
// answer yet is still returned, since go-redis reconnects on demand.
func (f *DefaultFactory) redisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := remote.ParseRedisURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, redisStartupTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		f.logger.Warn("Redis not reachable at startup, replica is offline", "addr", opt.Addr, "error", err)
	} else {
		f.logger.Info("Connected to Redis", "addr", opt.Addr)
	}
	return client, nil
}

func closeAll(closers []func() error) error {
	var errs []error
	for _, c := range closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
