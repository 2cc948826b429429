package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrLockHeld is returned by a single acquire attempt when another holder
// owns the lock.
var ErrLockHeld = errors.New("run lock is held")

// releaseScript deletes the lock only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker implements usecase.RunLocker across processes with SET NX PX.
type Locker struct {
	client   *redis.Client
	prefix   string
	ttl      time.Duration
	maxWait  time.Duration
	interval time.Duration
}

// NewLocker creates a Locker. ttl bounds how long a crashed holder keeps the
// lock; maxWait bounds how long Lock waits for it.
func NewLocker(client *redis.Client, ttl, maxWait time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if maxWait <= 0 {
		maxWait = 10 * time.Second
	}
	return &Locker{
		client:   client,
		prefix:   "lock:run:",
		ttl:      ttl,
		maxWait:  maxWait,
		interval: 25 * time.Millisecond,
	}
}

// Lock blocks until the run lock is acquired, maxWait elapses or ctx is done.
func (l *Locker) Lock(ctx context.Context, runID string) (func(), error) {
	key := l.prefix + runID
	token := uuid.NewString()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = l.interval
	b.MaxInterval = 500 * time.Millisecond
	b.MaxElapsedTime = l.maxWait

	acquire := func() error {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return backoff.Permanent(err)
		}
		if !ok {
			return ErrLockHeld
		}
		return nil
	}

	if err := backoff.Retry(acquire, backoff.WithContext(b, ctx)); err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}

	release := func() {
		// The caller's ctx may already be cancelled; release must still run.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("failed to release run lock")
		}
	}
	return release, nil
}
