// Package alert turns quantity changes into rate-limited low-stock notifications.
package alert

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/stockwarden/internal/domain"
	"github.com/prn-tf/stockwarden/internal/metrics"
	"github.com/prn-tf/stockwarden/internal/notify"
	"github.com/prn-tf/stockwarden/internal/repository"
)

// Default policy values. A zero Cooldown or Recipient in Policy falls back to these.
const (
	DefaultThreshold = 20
	DefaultCooldown  = 5 * time.Minute
	DefaultRecipient = "inventory.manager@corp.com"
)

// Decision is the outcome of a Check.
type Decision int

const (
	// NotDue means the quantity is outside [0, threshold].
	NotDue Decision = iota

	// Fired means an alert was sent (or attempted) and the cooldown started.
	Fired

	// Suppressed means an alert was due but the product is inside its cooldown.
	Suppressed
)

// String returns the metric label for d.
func (d Decision) String() string {
	switch d {
	case Fired:
		return "fired"
	case Suppressed:
		return "suppressed"
	default:
		return "not_due"
	}
}

// Policy configures the engine.
type Policy struct {
	Threshold   int
	Cooldown    time.Duration
	Recipient   string
	SendTimeout time.Duration
}

// Engine applies the threshold and cooldown policy to product snapshots.
// The cooldown ledger is a Cache: SetNX with the cooldown as TTL makes the
// check-and-record step atomic per product id, in one process or across many.
type Engine struct {
	threshold   atomic.Int64
	cooldown    time.Duration
	recipient   string
	sendTimeout time.Duration

	ledger   repository.Cache
	notifier notify.Notifier
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	now      func() time.Time
	keys     repository.CacheKey
}

// NewEngine creates an Engine.
func NewEngine(policy Policy, ledger repository.Cache, notifier notify.Notifier, m *metrics.Metrics, logger zerolog.Logger) (*Engine, error) {
	if policy.Threshold < 0 {
		return nil, fmt.Errorf("%w: threshold cannot be negative", domain.ErrInvalidArgument)
	}
	if policy.Cooldown == 0 {
		policy.Cooldown = DefaultCooldown
	}
	if policy.Recipient == "" {
		policy.Recipient = DefaultRecipient
	}

	e := &Engine{
		cooldown:    policy.Cooldown,
		recipient:   policy.Recipient,
		sendTimeout: policy.SendTimeout,
		ledger:      ledger,
		notifier:    notifier,
		metrics:     m,
		logger:      logger.With().Str("service", "alert").Logger(),
		now:         time.Now,
	}
	e.threshold.Store(int64(policy.Threshold))
	return e, nil
}

// Threshold returns the current threshold.
func (e *Engine) Threshold() int {
	return int(e.threshold.Load())
}

// SetThreshold replaces the threshold. Intended for startup and configuration
// reload; checks already in flight use whichever value they loaded.
func (e *Engine) SetThreshold(value int) error {
	if value < 0 {
		return fmt.Errorf("%w: threshold cannot be negative", domain.ErrInvalidArgument)
	}
	e.threshold.Store(int64(value))
	e.logger.Info().Int("threshold", value).Msg("alert threshold changed")
	return nil
}

// IsLow reports whether quantity is inside the alert band [0, threshold].
func (e *Engine) IsLow(quantity int) bool {
	return quantity >= 0 && quantity <= e.Threshold()
}

// Check evaluates p after a quantity mutation.
// When the policy fires, the notifier is called synchronously, bounded by the
// send timeout. A failed send still consumes the cooldown and is returned as
// ErrNotificationFailure alongside the Fired decision.
func (e *Engine) Check(ctx context.Context, p domain.Product) (Decision, error) {
	threshold := e.Threshold()
	if p.Quantity < 0 || p.Quantity > threshold {
		return NotDue, nil
	}

	stamp := []byte(strconv.FormatInt(e.now().UnixNano(), 10))
	won, err := e.ledger.SetNX(ctx, e.keys.AlertCooldown(p.ID), stamp, e.cooldown)
	if err != nil {
		return NotDue, fmt.Errorf("cooldown ledger: %w", err)
	}
	if !won {
		e.metrics.Alert(Suppressed.String())
		e.logger.Debug().Str("product_id", p.ID).Int("quantity", p.Quantity).Msg("alert suppressed by cooldown")
		return Suppressed, nil
	}

	sendCtx := ctx
	if e.sendTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, e.sendTimeout)
		defer cancel()
	}

	if err := e.notifier.Send(sendCtx, notify.LowStockMessage(e.recipient, p, threshold)); err != nil {
		e.metrics.Alert("failed")
		e.logger.Warn().Err(err).Str("product_id", p.ID).Msg("low stock alert not delivered")
		return Fired, fmt.Errorf("low stock alert for %s: %w", p.ID, notify.AsFailure(err))
	}

	e.metrics.Alert(Fired.String())
	e.logger.Info().
		Str("product_id", p.ID).
		Int("quantity", p.Quantity).
		Int("threshold", threshold).
		Str("recipient", e.recipient).
		Msg("low stock alert sent")
	return Fired, nil
}
