package notify

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/prn-tf/stockwarden/internal/config"
)

// envelope is the JSON body published for a mail worker to deliver.
type envelope struct {
	To         string `json:"to"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
	Filename   string `json:"filename,omitempty"`
	Attachment string `json:"attachment,omitempty"` // base64
}

// publisher is the subset of *amqp.Channel used for publishing.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPNotifier publishes messages to a RabbitMQ exchange for an external mail worker.
type AMQPNotifier struct {
	mu         sync.Mutex
	conn       *amqp.Connection
	channel    publisher
	exchange   string
	routingKey string
	logger     zerolog.Logger
}

// NewAMQPNotifier dials the broker and declares a durable direct exchange.
func NewAMQPNotifier(cfg config.AMQPConfig, logger zerolog.Logger) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(cfg.Exchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", cfg.Exchange, err)
	}

	return &AMQPNotifier{
		conn:       conn,
		channel:    ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		logger:     logger.With().Str("notifier", "amqp").Logger(),
	}, nil
}

// Send publishes msg as a persistent JSON message.
func (n *AMQPNotifier) Send(ctx context.Context, msg Message) error {
	env := envelope{To: msg.To, Subject: msg.Subject, Body: msg.Body}
	if msg.AttachmentPath != "" {
		data, err := os.ReadFile(msg.AttachmentPath)
		if err != nil {
			return failure("amqp", msg, err)
		}
		env.Filename = filepath.Base(msg.AttachmentPath)
		env.Attachment = base64.StdEncoding.EncodeToString(data)
	}

	body, err := json.Marshal(env)
	if err != nil {
		return failure("amqp", msg, err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	err = n.channel.PublishWithContext(ctx, n.exchange, n.routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return failure("amqp", msg, err)
	}

	n.logger.Debug().Str("to", msg.To).Str("subject", msg.Subject).Msg("notification published")
	return nil
}

// Close closes the channel and connection.
func (n *AMQPNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if err := n.channel.Close(); err != nil {
		return err
	}
	if n.conn != nil {
		return n.conn.Close()
	}
	return nil
}

var _ Notifier = (*AMQPNotifier)(nil)
