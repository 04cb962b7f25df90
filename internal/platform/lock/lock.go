// Package lock provides short-lived distributed mutexes on top of Redis.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrNotObtained is returned when another holder owns the key.
var ErrNotObtained = errors.New("platform/lock: lock not obtained")

// Locker obtains keyed locks. A nil Locker hands out no-op locks.
type Locker struct {
	client  *redislock.Client
	ttl     time.Duration
	retries int
	backoff time.Duration
}

// Options tunes lock acquisition.
type Options struct {
	TTL     time.Duration
	Retries int
	Backoff time.Duration
}

// New constructs a Locker backed by the given redis client.
func New(rdb redis.UniversalClient, opts Options) *Locker {
	if opts.TTL <= 0 {
		opts.TTL = 10 * time.Second
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 100 * time.Millisecond
	}
	return &Locker{client: redislock.New(rdb), ttl: opts.TTL, retries: opts.Retries, backoff: opts.Backoff}
}

// Handle releases a held lock.
type Handle interface {
	Release(ctx context.Context) error
}

type noopHandle struct{}

func (noopHandle) Release(context.Context) error { return nil }

type redisHandle struct {
	lock *redislock.Lock
}

func (h redisHandle) Release(ctx context.Context) error {
	err := h.lock.Release(ctx)
	if errors.Is(err, redislock.ErrLockNotHeld) {
		return nil
	}
	return err
}

// Obtain acquires key, retrying with a linear backoff before giving up with ErrNotObtained.
func (l *Locker) Obtain(ctx context.Context, key string) (Handle, error) {
	if l == nil || l.client == nil {
		return noopHandle{}, nil
	}
	var strategy redislock.RetryStrategy = redislock.NoRetry()
	if l.retries > 0 {
		strategy = redislock.LimitRetry(redislock.LinearBackoff(l.backoff), l.retries)
	}
	held, err := l.client.Obtain(ctx, key, l.ttl, &redislock.Options{RetryStrategy: strategy})
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			return nil, fmt.Errorf("%w: %s", ErrNotObtained, key)
		}
		return nil, fmt.Errorf("platform/lock: obtain %s: %w", key, err)
	}
	return redisHandle{lock: held}, nil
}
