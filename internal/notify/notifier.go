// Package notify delivers messages to people: OTP codes, low-stock alerts and
// inventory reports. Transports are interchangeable behind Notifier.
package notify

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/prn-tf/stockwarden/internal/domain"
)

// Message is one outbound notification.
type Message struct {
	// To is the recipient email address.
	To string `json:"to"`

	// Subject is the message subject line.
	Subject string `json:"subject"`

	// Body is the plain-text body.
	Body string `json:"body"`

	// AttachmentPath optionally names a local file to attach.
	AttachmentPath string `json:"attachment_path,omitempty"`
}

// Notifier sends a message. A returned error means the message was not delivered.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, msg Message) error

// Send calls f.
func (f NotifierFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// AsFailure returns err marked as ErrNotificationFailure. Nil stays nil.
func AsFailure(err error) error {
	if err == nil || errors.Is(err, domain.ErrNotificationFailure) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrNotificationFailure, err)
}

// failure wraps a transport error as a notification failure.
func failure(transport string, msg Message, err error) error {
	return fmt.Errorf("%w: %s to %s: %v", domain.ErrNotificationFailure, transport, msg.To, err)
}

// =============================================================================
// Log Notifier
// =============================================================================

// LogNotifier writes messages to the log instead of delivering them.
// Used in development and when no transport is configured.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{
		logger: logger.With().Str("notifier", "log").Logger(),
	}
}

// Send logs msg.
func (n *LogNotifier) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return failure("log", msg, err)
	}

	event := n.logger.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Str("body", msg.Body)
	if msg.AttachmentPath != "" {
		event = event.Str("attachment", filepath.Base(msg.AttachmentPath))
	}
	event.Msg("notification")
	return nil
}

var _ Notifier = (*LogNotifier)(nil)
