package alert

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/stockwarden/internal/cache/memory"
	"github.com/prn-tf/stockwarden/internal/domain"
	"github.com/prn-tf/stockwarden/internal/notify"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Send(ctx context.Context, msg notify.Message) error {
	return m.Called(msg).Error(0)
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newEngine(t *testing.T, n notify.Notifier) (*Engine, *clock) {
	t.Helper()
	clk := &clock{t: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	ledger := memory.NewCache(memory.WithClock(clk.Now))
	t.Cleanup(ledger.Stop)

	e, err := NewEngine(Policy{Threshold: 20, Cooldown: 5 * time.Minute}, ledger, n, nil, zerolog.Nop())
	require.NoError(t, err)
	e.now = clk.Now
	return e, clk
}

func laptop(qty int) domain.Product {
	return domain.Product{ID: "P1", Name: "Laptop", Quantity: qty, Supplier: "TechCorp"}
}

func TestEngine_CooldownWindow(t *testing.T) {
	n := new(mockNotifier)
	n.On("Send", mock.Anything).Return(nil)
	e, clk := newEngine(t, n)
	ctx := context.Background()

	d, err := e.Check(ctx, laptop(19))
	require.NoError(t, err)
	assert.Equal(t, Fired, d)

	clk.Advance(2 * time.Minute)
	d, err = e.Check(ctx, laptop(15))
	require.NoError(t, err)
	assert.Equal(t, Suppressed, d)

	clk.Advance(3 * time.Minute)
	d, err = e.Check(ctx, laptop(15))
	require.NoError(t, err)
	assert.Equal(t, Fired, d)

	n.AssertNumberOfCalls(t, "Send", 2)
}

func TestEngine_SuppressedCheckDoesNotExtendCooldown(t *testing.T) {
	n := new(mockNotifier)
	n.On("Send", mock.Anything).Return(nil)
	e, clk := newEngine(t, n)
	ctx := context.Background()

	_, _ = e.Check(ctx, laptop(10))
	clk.Advance(4*time.Minute + 59*time.Second)
	d, _ := e.Check(ctx, laptop(10))
	assert.Equal(t, Suppressed, d)

	clk.Advance(time.Second)
	d, _ = e.Check(ctx, laptop(10))
	assert.Equal(t, Fired, d)
}

func TestEngine_ThresholdBand(t *testing.T) {
	n := new(mockNotifier)
	n.On("Send", mock.Anything).Return(nil)
	e, _ := newEngine(t, n)
	ctx := context.Background()

	tests := []struct {
		name string
		id   string
		qty  int
		want Decision
	}{
		{"negative never alerts", "neg", -5, NotDue},
		{"above threshold", "high", 21, NotDue},
		{"at threshold", "edge", 20, Fired},
		{"zero", "zero", 0, Fired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := laptop(tt.qty)
			p.ID = tt.id
			d, err := e.Check(ctx, p)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d)
		})
	}
	n.AssertNumberOfCalls(t, "Send", 2)
}

func TestEngine_MessageContent(t *testing.T) {
	n := new(mockNotifier)
	var sent notify.Message
	n.On("Send", mock.Anything).Run(func(args mock.Arguments) {
		sent = args.Get(0).(notify.Message)
	}).Return(nil)
	e, _ := newEngine(t, n)

	_, err := e.Check(context.Background(), laptop(19))
	require.NoError(t, err)

	assert.Equal(t, DefaultRecipient, sent.To)
	assert.Equal(t, "LOW STOCK ALERT: Laptop (P1)", sent.Subject)
	assert.Contains(t, sent.Body, "19 units")
	assert.Contains(t, sent.Body, "20 units")
	assert.Contains(t, sent.Body, "TechCorp")
}

func TestEngine_SendFailureConsumesCooldown(t *testing.T) {
	n := new(mockNotifier)
	n.On("Send", mock.Anything).Return(errors.New("smtp down")).Once()
	e, _ := newEngine(t, n)
	ctx := context.Background()

	d, err := e.Check(ctx, laptop(3))
	require.ErrorIs(t, err, domain.ErrNotificationFailure)
	assert.Equal(t, Fired, d)

	d, err = e.Check(ctx, laptop(2))
	require.NoError(t, err)
	assert.Equal(t, Suppressed, d)
	n.AssertNumberOfCalls(t, "Send", 1)
}

func TestEngine_ConcurrentChecksFireOnce(t *testing.T) {
	var sends atomic.Int32
	e, _ := newEngine(t, notify.NotifierFunc(func(ctx context.Context, msg notify.Message) error {
		sends.Add(1)
		return nil
	}))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = e.Check(context.Background(), laptop(5))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), sends.Load())
}

func TestEngine_SetThreshold(t *testing.T) {
	n := new(mockNotifier)
	n.On("Send", mock.Anything).Return(nil)
	e, _ := newEngine(t, n)

	require.ErrorIs(t, e.SetThreshold(-1), domain.ErrInvalidArgument)
	assert.Equal(t, 20, e.Threshold())

	require.NoError(t, e.SetThreshold(50))
	assert.True(t, e.IsLow(45))

	d, err := e.Check(context.Background(), laptop(45))
	require.NoError(t, err)
	assert.Equal(t, Fired, d)
}

func TestNewEngine_Defaults(t *testing.T) {
	ledger := memory.NewCache()
	t.Cleanup(ledger.Stop)

	e, err := NewEngine(Policy{}, ledger, new(mockNotifier), nil, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, DefaultCooldown, e.cooldown)
	assert.Equal(t, DefaultRecipient, e.recipient)

	_, err = NewEngine(Policy{Threshold: -3}, ledger, new(mockNotifier), nil, zerolog.Nop())
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}
