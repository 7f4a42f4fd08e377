package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLease(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	lease := NewRedisLease(client)
	key := leaseKey(JobBillingCycle)

	ok, err := lease.Acquire(ctx, key, "run-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = lease.Acquire(ctx, key, "run-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second instance must not get the lease")

	released, err := lease.Release(ctx, key, "run-b")
	require.NoError(t, err)
	assert.False(t, released, "non-owner cannot release")
	assert.True(t, mr.Exists(key))

	released, err = lease.Release(ctx, key, "run-a")
	require.NoError(t, err)
	assert.True(t, released)
	assert.False(t, mr.Exists(key))
}

func TestRedisLeaseExpires(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	lease := NewRedisLease(client)
	key := leaseKey(JobSuspensionCheck)

	ok, err := lease.Acquire(ctx, key, "run-a", 10*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(11 * time.Second)

	ok, err = lease.Acquire(ctx, key, "run-b", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	// The stale owner must not drop the new holder's lease.
	released, err := lease.Release(ctx, key, "run-a")
	require.NoError(t, err)
	assert.False(t, released)
	got, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "run-b", got)
}

func TestLocalLease(t *testing.T) {
	now := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	lease := NewLocalLease()
	lease.now = func() time.Time { return now }
	ctx := context.Background()

	ok, _ := lease.Acquire(ctx, "k", "a", time.Minute)
	assert.True(t, ok)
	ok, _ = lease.Acquire(ctx, "k", "b", time.Minute)
	assert.False(t, ok)

	now = now.Add(2 * time.Minute)
	ok, _ = lease.Acquire(ctx, "k", "b", time.Minute)
	assert.True(t, ok)

	released, _ := lease.Release(ctx, "k", "a")
	assert.False(t, released)
	released, _ = lease.Release(ctx, "k", "b")
	assert.True(t, released)
}
