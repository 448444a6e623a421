package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLocker_Exclusive(t *testing.T) {
	ctx := context.Background()
	a := NewMemoryLocker()
	b := a.NewSharedMemoryLocker()
	key := Keys.CatalogCheckpoint()

	ok, err := a.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	released, err := b.Release(ctx, key)
	require.NoError(t, err)
	assert.False(t, released, "only the owner can release")

	released, err = a.Release(ctx, key)
	require.NoError(t, err)
	assert.True(t, released)

	ok, err = b.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryLocker_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	base := NewMemoryLocker()
	a := base.WithClock(clock)
	b := base.NewSharedMemoryLocker().WithClock(clock)
	key := Keys.ReportDispatch("ops@corp.com")

	ok, _ := a.Acquire(ctx, key, time.Minute)
	require.True(t, ok)

	held, _ := b.IsHeld(ctx, key)
	assert.True(t, held)

	now = now.Add(time.Minute)
	held, _ = b.IsHeld(ctx, key)
	assert.False(t, held)

	extended, _ := a.Extend(ctx, key, time.Minute)
	assert.False(t, extended, "expired lock cannot be extended")

	ok, _ = b.Acquire(ctx, key, time.Minute)
	assert.True(t, ok)
}

func TestMemoryLocker_AcquireWithRetryHonorsContext(t *testing.T) {
	a := NewMemoryLocker()
	b := a.NewSharedMemoryLocker()
	key := Keys.CatalogCheckpoint()

	ok, _ := a.Acquire(context.Background(), key, time.Minute)
	require.True(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := b.AcquireWithRetry(ctx, key, time.Minute, 3, time.Second)
	require.ErrorIs(t, err, context.Canceled)
}
