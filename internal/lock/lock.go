// Package lock implements the Workspace Lock (C13): an optional
// Redis-backed mutual-exclusion lease enforcing spec.md §5's "single
// exclusive workspace" invariant across processes and machines, not just
// within one. It is additive — a workflow with no Redis configured simply
// never acquires one and relies on single-process exclusivity alone.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotHeld reports a Renew or Release call against a lease this process
// no longer (or never did) hold.
var ErrNotHeld = errors.New("lock: lease not held")

// ErrAlreadyLocked reports that another owner currently holds the
// workspace lease. The CLI surfaces this as a misuse exit (spec.md §6),
// since a concurrent run on the same workspace is a usage error, not a
// transient fault.
var ErrAlreadyLocked = errors.New("lock: workspace is already locked by another run")

// renewScript extends the lease's TTL only if this owner still holds it,
// so a renewal never steals or resurrects a lease another owner acquired
// after this one expired.
const renewScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
else
	return 0
end
`

// releaseScript deletes the lease only if this owner still holds it.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

// Config configures a Lock.
type Config struct {
	// Redis is the client the lease is stored through. Required.
	Redis *redis.Client
	// Key is the Redis key identifying the workspace. Required; callers
	// typically derive it from the workspace's absolute path.
	Key string
	// TTL bounds how long a lease survives without renewal. Defaults to
	// 30s.
	TTL time.Duration
}

// Lock is a Redis-backed mutual-exclusion lease over one workspace.
type Lock struct {
	rdb   *redis.Client
	key   string
	ttl   time.Duration
	owner string
}

// New constructs a Lock. Each Lock instance gets its own random owner
// token so Renew/Release can distinguish this process's lease from one
// acquired by a concurrent run after this lease expired.
func New(cfg Config) (*Lock, error) {
	if cfg.Redis == nil {
		return nil, fmt.Errorf("lock: redis client is required")
	}
	if cfg.Key == "" {
		return nil, fmt.Errorf("lock: key is required")
	}
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = 30 * time.Second
	}
	return &Lock{rdb: cfg.Redis, key: cfg.Key, ttl: ttl, owner: uuid.New().String()}, nil
}

// Acquire takes the lease if no other owner currently holds it. Returns
// ErrAlreadyLocked if another owner holds a live lease.
func (l *Lock) Acquire(ctx context.Context) error {
	ok, err := l.rdb.SetNX(ctx, l.key, l.owner, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("lock: acquire: %w", err)
	}
	if !ok {
		return ErrAlreadyLocked
	}
	return nil
}

// Renew extends the lease's TTL. Callers heartbeat this on an interval
// shorter than TTL for the duration of a workflow run.
func (l *Lock) Renew(ctx context.Context) error {
	n, err := l.rdb.Eval(ctx, renewScript, []string{l.key}, l.owner, l.ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("lock: renew: %w", err)
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}

// Release drops the lease, if this process still holds it.
func (l *Lock) Release(ctx context.Context) error {
	n, err := l.rdb.Eval(ctx, releaseScript, []string{l.key}, l.owner).Int64()
	if err != nil {
		return fmt.Errorf("lock: release: %w", err)
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}

// Heartbeat renews the lease every interval until ctx is cancelled,
// logging nothing itself — callers select on the returned channel for
// renewal failures and decide how to react (typically: abort the run).
func (l *Lock) Heartbeat(ctx context.Context, interval time.Duration) <-chan error {
	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if err := l.Renew(ctx); err != nil {
					select {
					case errs <- err:
					default:
					}
					return
				}
			}
		}
	}()
	return errs
}
