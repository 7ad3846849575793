// Package lock provides the named, TTL-bounded mutex that serializes
// aggregator runs for the same document.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Lllllllleong/forensicdocumentflow/internal/ports"
)

var (
	_ ports.Locker = (*Redis)(nil)
	_ ports.Locker = Noop{}
)

const keyPrefix = "forensic:lock:"

// Redis implements ports.Locker with SETNX and an owner token, so one
// instance can never release a lock another instance holds.
type Redis struct {
	client  *redis.Client
	ownerID string
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client, ownerID: uuid.NewString()}
}

// Dial connects to addr and verifies the server answers.
func Dial(ctx context.Context, addr string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to reach redis at %s: %w", addr, err)
	}
	return NewRedis(client), nil
}

func (l *Redis) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, keyPrefix+name, l.ownerID, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	return ok, nil
}

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Release is a no-op when the lock expired or belongs to someone else.
func (l *Redis) Release(ctx context.Context, name string) error {
	_, err := releaseScript.Run(ctx, l.client, []string{keyPrefix + name}, l.ownerID).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("release lock %s: %w", name, err)
	}
	return nil
}

func (l *Redis) Close() error {
	return l.client.Close()
}

// Noop always grants the lock. Used when no Redis is configured; the
// aggregator's writes are idempotent overwrites, so duplicate runs converge.
type Noop struct{}

func (Noop) Acquire(context.Context, string, time.Duration) (bool, error) { return true, nil }
func (Noop) Release(context.Context, string) error                        { return nil }
