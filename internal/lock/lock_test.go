package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedis_AcquireIsExclusive(t *testing.T) {
	_, client := setupRedis(t)
	ctx := context.Background()
	a, b := NewRedis(client), NewRedis(client)

	ok, err := a.Acquire(ctx, "aggregate:doc-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Acquire(ctx, "aggregate:doc-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = b.Acquire(ctx, "aggregate:doc-2", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "locks are per name")
}

func TestRedis_ReleaseOnlyByOwner(t *testing.T) {
	mr, client := setupRedis(t)
	ctx := context.Background()
	a, b := NewRedis(client), NewRedis(client)

	ok, err := a.Acquire(ctx, "doc", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, b.Release(ctx, "doc"))
	assert.True(t, mr.Exists(keyPrefix+"doc"), "foreign release must not drop the lock")

	require.NoError(t, a.Release(ctx, "doc"))
	assert.False(t, mr.Exists(keyPrefix+"doc"))

	ok, err = b.Acquire(ctx, "doc", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedis_ExpiresAfterTTL(t *testing.T) {
	mr, client := setupRedis(t)
	ctx := context.Background()
	a, b := NewRedis(client), NewRedis(client)

	ok, err := a.Acquire(ctx, "doc", 10*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(11 * time.Second)

	ok, err = b.Acquire(ctx, "doc", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedis_ReleaseUnheldLock(t *testing.T) {
	_, client := setupRedis(t)
	assert.NoError(t, NewRedis(client).Release(context.Background(), "never-acquired"))
}

func TestDial(t *testing.T) {
	mr := miniredis.RunT(t)
	l, err := Dial(context.Background(), mr.Addr())
	require.NoError(t, err)
	defer l.Close()

	ok, err := l.Acquire(context.Background(), "doc", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNoop(t *testing.T) {
	ctx := context.Background()
	ok, err := Noop{}.Acquire(ctx, "doc", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, Noop{}.Release(ctx, "doc"))
}
