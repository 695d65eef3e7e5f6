package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrOwnerLocked is returned when a lock could not be taken within the
// configured wait
var ErrOwnerLocked = errors.New("lock is held by another writer")

const (
	lockPollInterval = 25 * time.Millisecond
	minKeepAlive     = 10 * time.Millisecond
)

var (
	releaseScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`)

	extendScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("pexpire", KEYS[1], ARGV[2])
		else
			return 0
		end
	`)
)

// Lock is a Redis lock guarding a read-modify-write sequence: an owner's
// window reservation or a task's outcome bookkeeping
type Lock struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration
}

// AcquireLock attempts to take the lock once.
// Returns nil without an error if someone else holds it.
func AcquireLock(ctx context.Context, client *redis.Client, key string, ttl time.Duration) (*Lock, error) {
	token := uuid.New().String()

	acquired, err := client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		return nil, nil
	}

	return &Lock{
		client: client,
		key:    key,
		token:  token,
		ttl:    ttl,
	}, nil
}

// AcquireLockWait retries AcquireLock until it succeeds or wait elapses, in
// which case it returns ErrOwnerLocked
func AcquireLockWait(ctx context.Context, client *redis.Client, key string, ttl, wait time.Duration) (*Lock, error) {
	deadline := time.Now().Add(wait)
	for {
		lock, err := AcquireLock(ctx, client, key, ttl)
		if err != nil || lock != nil {
			return lock, err
		}
		if !time.Now().Before(deadline) {
			return nil, fmt.Errorf("%s: %w", key, ErrOwnerLocked)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
}

// Release deletes the lock if this holder still owns it
func (l *Lock) Release(ctx context.Context) error {
	return releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err()
}

// Extend resets the TTL. Fails if the lock expired and was taken by
// someone else.
func (l *Lock) Extend(ctx context.Context, ttl time.Duration) error {
	result, err := extendScript.Run(ctx, l.client, []string{l.key}, l.token, ttl.Milliseconds()).Int64()
	if err != nil {
		return err
	}
	if result == 0 {
		return fmt.Errorf("lock %s no longer owned by this holder", l.key)
	}

	l.ttl = ttl
	return nil
}

// KeepAlive extends the lock by its TTL every half TTL until stop is called,
// so a holder that runs long does not lose the lock mid-sequence. onError
// receives the first failed extension; the keepalive ends after it.
func (l *Lock) KeepAlive(ctx context.Context, onError func(error)) (stop func()) {
	interval := l.ttl / 2
	if interval < minKeepAlive {
		interval = minKeepAlive
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := l.Extend(ctx, l.ttl); err != nil {
					if ctx.Err() == nil && onError != nil {
						onError(err)
					}
					return
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// Key returns the Redis key for this lock
func (l *Lock) Key() string {
	return l.key
}
