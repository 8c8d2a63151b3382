// Package remote holds the replica of the budget that lives outside this
// machine.
package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"budget/internal/log"
	"budget/internal/persistence"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultKeyPrefix = "budget"
	pingTimeout      = 5 * time.Second
)

// ErrStaleWrite is returned by Push when the replica already holds a
// snapshot written later than the one being pushed.
var ErrStaleWrite = errors.New("replica holds a newer snapshot")

// RedisReplica stores one user's snapshot under <prefix>:snapshot:<user>.
type RedisReplica struct {
	client *redis.Client
	key    string
	logger *log.Logger
}

// ParseRedisURL accepts redis://, rediss:// and bare host:port forms.
func ParseRedisURL(raw string) (*redis.Options, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("empty redis url")
	}
	if !strings.Contains(raw, "://") {
		raw = "redis://" + raw
	}
	opt, err := redis.ParseURL(raw)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return opt, nil
}

// Connect dials Redis and checks it answers.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := ParseRedisURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// NewRedisReplica binds client to userID's snapshot key.
func NewRedisReplica(client *redis.Client, prefix, userID string, logger *log.Logger) *RedisReplica {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &RedisReplica{
		client: client,
		key:    SnapshotKey(prefix, userID),
		logger: logger.WithComponent(log.ComponentRemote),
	}
}

// SnapshotKey is the Redis key holding userID's snapshot.
func SnapshotKey(prefix, userID string) string {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return prefix + ":snapshot:" + userID
}

func (r *RedisReplica) Key() string { return r.key }

// Pull implements persistence.Replica.
func (r *RedisReplica) Pull(ctx context.Context) (persistence.Record, bool, error) {
	b, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return persistence.Record{}, false, nil
	}
	if err != nil {
		return persistence.Record{}, false, fmt.Errorf("redis get %s: %w", r.key, err)
	}
	rec, err := persistence.DecodeRecord(b)
	if err != nil {
		return persistence.Record{}, false, err
	}
	return rec, true, nil
}

// Push implements persistence.Replica. The write is refused with
// ErrStaleWrite when the stored snapshot is newer, so two devices pushing
// concurrently still end on the later one.
func (r *RedisReplica) Push(ctx context.Context, rec persistence.Record) error {
	payload, err := persistence.EncodeRecord(rec)
	if err != nil {
		return err
	}

	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, r.key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			stored, err := persistence.DecodeRecord(current)
			if err == nil && stored.NewerThan(rec) {
				return ErrStaleWrite
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, r.key, payload, 0)
			return nil
		})
		return err
	}, r.key)

	if errors.Is(err, ErrStaleWrite) {
		r.logger.WarnContext(ctx, "Replica holds a newer snapshot, push skipped", log.FieldVersion, rec.Version)
		return err
	}
	if err != nil {
		return fmt.Errorf("redis set %s: %w", r.key, err)
	}
	r.logger.DebugContext(ctx, "Snapshot pushed", log.FieldVersion, rec.Version)
	return nil
}

// Ping reports whether Redis answers.
func (r *RedisReplica) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
