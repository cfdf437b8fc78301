package lock

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/redis"
)

// newTestClient starts a throwaway Redis container for one test, skipping
// when Docker is unavailable rather than failing the whole suite — the same
// accommodation the teacher's Mongo integration tests make for CI
// environments without a Docker daemon.
func newTestClient(t *testing.T) *goredis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := redis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Skipf("docker not available, skipping workspace lock test: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	opts, err := goredis.ParseURL(uri)
	require.NoError(t, err)
	return goredis.NewClient(opts)
}

func TestAcquireThenSecondOwnerIsRejected(t *testing.T) {
	ctx := context.Background()
	rdb := newTestClient(t)

	first, err := New(Config{Redis: rdb, Key: "tdd:lock:test-acquire", TTL: time.Minute})
	require.NoError(t, err)
	require.NoError(t, first.Acquire(ctx))

	second, err := New(Config{Redis: rdb, Key: "tdd:lock:test-acquire", TTL: time.Minute})
	require.NoError(t, err)
	assert.ErrorIs(t, second.Acquire(ctx), ErrAlreadyLocked)
}

func TestReleaseThenReacquireSucceeds(t *testing.T) {
	ctx := context.Background()
	rdb := newTestClient(t)

	l, err := New(Config{Redis: rdb, Key: "tdd:lock:test-release", TTL: time.Minute})
	require.NoError(t, err)
	require.NoError(t, l.Acquire(ctx))
	require.NoError(t, l.Release(ctx))

	again, err := New(Config{Redis: rdb, Key: "tdd:lock:test-release", TTL: time.Minute})
	require.NoError(t, err)
	assert.NoError(t, again.Acquire(ctx))
}

func TestReleaseWithoutHoldingIsErrNotHeld(t *testing.T) {
	ctx := context.Background()
	rdb := newTestClient(t)

	l, err := New(Config{Redis: rdb, Key: "tdd:lock:test-not-held", TTL: time.Minute})
	require.NoError(t, err)
	assert.ErrorIs(t, l.Release(ctx), ErrNotHeld)
}

func TestRenewFailsAfterAnotherOwnerTakesOverOnExpiry(t *testing.T) {
	ctx := context.Background()
	rdb := newTestClient(t)

	expiring, err := New(Config{Redis: rdb, Key: "tdd:lock:test-renew", TTL: 50 * time.Millisecond})
	require.NoError(t, err)
	require.NoError(t, expiring.Acquire(ctx))

	time.Sleep(100 * time.Millisecond)

	other, err := New(Config{Redis: rdb, Key: "tdd:lock:test-renew", TTL: time.Minute})
	require.NoError(t, err)
	require.NoError(t, other.Acquire(ctx), "the expired lease should have freed the key")

	assert.ErrorIs(t, expiring.Renew(ctx), ErrNotHeld, "the original owner's stale token must not be able to renew")
}

func TestHeartbeatRenewsUntilContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rdb := newTestClient(t)

	l, err := New(Config{Redis: rdb, Key: "tdd:lock:test-heartbeat", TTL: time.Minute})
	require.NoError(t, err)
	require.NoError(t, l.Acquire(ctx))

	errs := l.Heartbeat(ctx, 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err, ok := <-errs:
		assert.False(t, ok, "heartbeat channel should close on cancellation without surfacing an error: %v", err)
	case <-time.After(time.Second):
		t.Fatal("heartbeat did not stop after context cancellation")
	}
}
