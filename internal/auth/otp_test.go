package auth

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/stockwarden/internal/cache/memory"
	"github.com/prn-tf/stockwarden/internal/domain"
	"github.com/prn-tf/stockwarden/internal/repository"
)

func newOTP(t *testing.T, maxAttempts int) (*OTPService, *testClock) {
	t.Helper()
	clk := &testClock{t: time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)}
	c := memory.NewCache(memory.WithClock(clk.Now))
	t.Cleanup(c.Stop)
	return NewOTPService(c, 5*time.Minute, maxAttempts, zerolog.Nop()), clk
}

func fixedCodes(codes ...string) func() (string, error) {
	var mu sync.Mutex
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		c := codes[0]
		codes = codes[1:]
		return c, nil
	}
}

func TestOTP_SingleUse(t *testing.T) {
	s, _ := newOTP(t, 5)
	s.generate = fixedCodes("123456")
	ctx := context.Background()

	code, err := s.Issue(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "123456", code)

	require.ErrorIs(t, s.Verify(ctx, "u1", "654321"), domain.ErrInvalidOTP)
	require.NoError(t, s.Verify(ctx, "u1", "123456"))
	require.ErrorIs(t, s.Verify(ctx, "u1", "123456"), domain.ErrInvalidOTP)
}

func TestOTP_ReissueOverwrites(t *testing.T) {
	s, _ := newOTP(t, 5)
	s.generate = fixedCodes("111111", "222222")
	ctx := context.Background()

	_, _ = s.Issue(ctx, "u1")
	_, _ = s.Issue(ctx, "u1")

	require.ErrorIs(t, s.Verify(ctx, "u1", "111111"), domain.ErrInvalidOTP)
	require.NoError(t, s.Verify(ctx, "u1", "222222"))
}

func TestOTP_Expires(t *testing.T) {
	s, clk := newOTP(t, 5)
	s.generate = fixedCodes("123456")
	ctx := context.Background()

	_, _ = s.Issue(ctx, "u1")
	clk.Advance(5 * time.Minute)

	require.ErrorIs(t, s.Verify(ctx, "u1", "123456"), domain.ErrInvalidOTP)
}

func TestOTP_AttemptLimitDiscardsCode(t *testing.T) {
	s, _ := newOTP(t, 3)
	s.generate = fixedCodes("123456", "777777")
	ctx := context.Background()

	_, _ = s.Issue(ctx, "u1")
	require.ErrorIs(t, s.Verify(ctx, "u1", "000001"), domain.ErrInvalidOTP)
	require.ErrorIs(t, s.Verify(ctx, "u1", "000002"), domain.ErrInvalidOTP)

	err := s.Verify(ctx, "u1", "000003")
	require.ErrorIs(t, err, domain.ErrInvalidOTP)
	require.ErrorIs(t, err, ErrOTPLocked)

	require.ErrorIs(t, s.Verify(ctx, "u1", "123456"), domain.ErrInvalidOTP)

	_, _ = s.Issue(ctx, "u1")
	require.ErrorIs(t, s.Verify(ctx, "u1", "000004"), domain.ErrInvalidOTP)
	require.NoError(t, s.Verify(ctx, "u1", "777777"), "reissue resets the attempt counter")
}

func TestOTP_ConcurrentVerifyConsumesOnce(t *testing.T) {
	s, _ := newOTP(t, 0)
	s.generate = fixedCodes("123456")
	ctx := context.Background()
	_, _ = s.Issue(ctx, "u1")

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Verify(ctx, "u1", "123456") == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
}

// flakyDeleteCache fails Delete once armed.
type flakyDeleteCache struct {
	repository.Cache
	armed atomic.Bool
}

func (c *flakyDeleteCache) Delete(ctx context.Context, key string) error {
	if c.armed.Load() {
		return errors.New("redis: connection reset")
	}
	return c.Cache.Delete(ctx, key)
}

func TestOTP_DeleteFailuresAreLogged(t *testing.T) {
	mem := memory.NewCache()
	t.Cleanup(mem.Stop)
	c := &flakyDeleteCache{Cache: mem}

	var logs bytes.Buffer
	s := NewOTPService(c, 5*time.Minute, 2, zerolog.New(&logs))
	s.generate = fixedCodes("123456", "222222")
	ctx := context.Background()

	_, err := s.Issue(ctx, "u1")
	require.NoError(t, err)
	c.armed.Store(true)

	require.NoError(t, s.Verify(ctx, "u1", "123456"))
	assert.Contains(t, logs.String(), "failed to clear otp attempts")

	c.armed.Store(false)
	_, err = s.Issue(ctx, "u1")
	require.NoError(t, err)
	c.armed.Store(true)
	logs.Reset()

	require.ErrorIs(t, s.Verify(ctx, "u1", "000000"), domain.ErrInvalidOTP)
	require.ErrorIs(t, s.Verify(ctx, "u1", "000000"), ErrOTPLocked)
	assert.Contains(t, logs.String(), "failed to discard locked otp")
	assert.Contains(t, logs.String(), "failed to clear otp attempts")
}
