package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryLocker implements Locker using in-memory locks.
// This is suitable for single-node deployments where distributed locking is not needed.
// The locks are NOT shared across process restarts or multiple instances.
// Lockers created by NewSharedMemoryLocker share one lock table, which lets
// tests model several owners in one process.
type MemoryLocker struct {
	table *lockTable
	token string
	now   func() time.Time
}

type lockTable struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

// lockEntry represents a single lock.
type lockEntry struct {
	expiresAt time.Time
	token     string
}

// NewMemoryLocker creates a new in-memory locker.
func NewMemoryLocker() *MemoryLocker {
	return newMemoryLocker(&lockTable{locks: make(map[string]*lockEntry)}, time.Now)
}

// NewSharedMemoryLocker returns a locker with its own ownership token over the
// same lock table as m.
func (m *MemoryLocker) NewSharedMemoryLocker() *MemoryLocker {
	return newMemoryLocker(m.table, m.now)
}

// WithClock returns a locker over the same table and token that reads time from now.
func (m *MemoryLocker) WithClock(now func() time.Time) *MemoryLocker {
	return &MemoryLocker{table: m.table, token: m.token, now: now}
}

func newMemoryLocker(table *lockTable, now func() time.Time) *MemoryLocker {
	return &MemoryLocker{
		table: table,
		token: uuid.NewString(),
		now:   now,
	}
}

// live returns the unexpired entry for key. Caller holds the table lock.
func (m *MemoryLocker) live(key string) (*lockEntry, bool) {
	entry, exists := m.table.locks[key]
	if !exists {
		return nil, false
	}
	if !m.now().Before(entry.expiresAt) {
		delete(m.table.locks, key)
		return nil, false
	}
	return entry, true
}

// Acquire attempts to acquire a lock.
func (m *MemoryLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	m.table.mu.Lock()
	defer m.table.mu.Unlock()

	if _, held := m.live(key); held {
		return false, nil
	}

	m.table.locks[key] = &lockEntry{
		expiresAt: m.now().Add(ttl),
		token:     m.token,
	}
	return true, nil
}

// AcquireWithRetry attempts to acquire a lock with retries.
func (m *MemoryLocker) AcquireWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (bool, error) {
	return acquireWithRetry(ctx, func() (bool, error) {
		return m.Acquire(ctx, key, ttl)
	}, maxRetries, retryDelay)
}

// Release releases a lock owned by this locker.
func (m *MemoryLocker) Release(ctx context.Context, key string) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	m.table.mu.Lock()
	defer m.table.mu.Unlock()

	entry, held := m.live(key)
	if !held || entry.token != m.token {
		return false, nil
	}
	delete(m.table.locks, key)
	return true, nil
}

// Extend extends the TTL of a lock owned by this locker.
func (m *MemoryLocker) Extend(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	m.table.mu.Lock()
	defer m.table.mu.Unlock()

	entry, held := m.live(key)
	if !held || entry.token != m.token {
		return false, nil
	}
	entry.expiresAt = m.now().Add(ttl)
	return true, nil
}

// IsHeld checks if a lock is currently held.
func (m *MemoryLocker) IsHeld(ctx context.Context, key string) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	m.table.mu.Lock()
	defer m.table.mu.Unlock()

	_, held := m.live(key)
	return held, nil
}

// Ensure MemoryLocker implements Locker.
var _ Locker = (*MemoryLocker)(nil)
