package notify

import (
	"context"
	"fmt"
	"net"
	"os"
	"slices"

	"github.com/wneessen/go-mail"

	"github.com/prn-tf/stockwarden/internal/config"
)

// implicitTLSPort is the SMTPS port; every other port negotiates STARTTLS when offered.
const implicitTLSPort = 465

// SMTPNotifier delivers messages through an SMTP relay.
type SMTPNotifier struct {
	host string
	from string
	opts []mail.Option

	// deliver sends a composed message; tests replace it.
	deliver func(ctx context.Context, m *mail.Msg) error
}

// NewSMTPNotifier creates an SMTPNotifier. The relay is dialled per message.
func NewSMTPNotifier(cfg config.SMTPConfig, from string) *SMTPNotifier {
	opts := []mail.Option{mail.WithTLSPolicy(mail.TLSOpportunistic)}
	if cfg.Port > 0 {
		opts = append(opts, mail.WithPort(cfg.Port))
	}
	if cfg.Port == implicitTLSPort {
		opts = append(opts, mail.WithSSL())
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	if from == "" {
		from = cfg.Username
	}

	n := &SMTPNotifier{host: cfg.Host, from: from, opts: opts}
	n.deliver = n.dialAndSend
	return n
}

// Send composes msg and delivers it. ctx bounds the whole SMTP exchange.
func (n *SMTPNotifier) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return failure("smtp", msg, err)
	}

	m, err := n.compose(msg)
	if err != nil {
		return failure("smtp", msg, err)
	}

	if err := n.deliver(ctx, m); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w (%v)", ctxErr, err)
		}
		return failure("smtp", msg, err)
	}
	return nil
}

// compose renders msg as a plain-text mail with an optional file attachment.
func (n *SMTPNotifier) compose(msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(n.from); err != nil {
		return nil, fmt.Errorf("invalid sender: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetDate()
	m.SetBodyString(mail.TypeTextPlain, msg.Body)

	if msg.AttachmentPath != "" {
		if _, err := os.Stat(msg.AttachmentPath); err != nil {
			return nil, fmt.Errorf("read attachment: %w", err)
		}
		m.AttachFile(msg.AttachmentPath)
	}
	return m, nil
}

// dialAndSend opens one connection for m. The connection is closed as soon
// as ctx ends so a stalled relay cannot outlive the caller's deadline.
func (n *SMTPNotifier) dialAndSend(ctx context.Context, m *mail.Msg) error {
	stop := func() bool { return false }
	defer func() { stop() }()

	var dialer net.Dialer
	opts := append(slices.Clone(n.opts), mail.WithDialContextFunc(
		func(dialCtx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dialer.DialContext(dialCtx, network, addr)
			if err != nil {
				return nil, err
			}
			stop = context.AfterFunc(ctx, func() { _ = conn.Close() })
			return conn, nil
		},
	))

	client, err := mail.NewClient(n.host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	return client.DialAndSendWithContext(ctx, m)
}

var _ Notifier = (*SMTPNotifier)(nil)
