package events

import (
	"coin_portal/internal/domain" // Domain models
	"context"                     // Publish deadline
	"encoding/json"               // Event encoding
	"fmt"                         // Error wrapping
	"sync"                        // Channel guard
	"time"                        // Timestamps and dial timeout

	amqp "github.com/rabbitmq/amqp091-go" // RabbitMQ client
	"github.com/sirupsen/logrus"          // Structured logging
)

// TransactionEvent is published for every committed ledger transaction
type TransactionEvent struct {
	TransactionID string                 `json:"transaction_id"`
	AccountID     string                 `json:"account_id"`
	Type          domain.TransactionType `json:"type"`
	Amount        int64                  `json:"amount"`
	Description   string                 `json:"description"`
	Counterparty  string                 `json:"counterparty,omitempty"`
	OccurredAt    time.Time              `json:"occurred_at"`
}

// NewTransactionEvent builds the event for tx
func NewTransactionEvent(tx domain.Transaction) TransactionEvent {
	return TransactionEvent{
		TransactionID: tx.ID,
		AccountID:     tx.AccountID,
		Type:          tx.Type,
		Amount:        tx.Amount,
		Description:   tx.Description,
		Counterparty:  tx.Counterparty,
		OccurredAt:    time.UnixMilli(tx.CreatedAt).UTC(),
	}
}

// RoutingKey returns the topic routing key for event
func RoutingKey(event TransactionEvent) string {
	return "transaction." + string(event.Type)
}

// Publisher is implemented by ledger event sinks
type Publisher interface {
	PublishTransaction(ctx context.Context, event TransactionEvent) error
	Close()
}

// NoopPublisher is used when no broker is configured
type NoopPublisher struct{}

func (NoopPublisher) PublishTransaction(context.Context, TransactionEvent) error { return nil }

func (NoopPublisher) Close() {}

// AMQPPublisher publishes ledger events to a durable topic exchange
type AMQPPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	log      *logrus.Entry
}

// NewAMQPPublisher dials url and declares exchange
func NewAMQPPublisher(url, exchange string, log *logrus.Entry) (*AMQPPublisher, error) {
	conn, err := amqp.DialConfig(url, amqp.Config{Dial: amqp.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // autoDelete
		false,    // internal
		false,    // noWait
		nil,      // args
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &AMQPPublisher{conn: conn, channel: ch, exchange: exchange, log: log}, nil
}

// PublishTransaction sends event as a persistent JSON message
func (p *AMQPPublisher) PublishTransaction(ctx context.Context, event TransactionEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channel.PublishWithContext(ctx, p.exchange, RoutingKey(event), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.TransactionID,
		Timestamp:    event.OccurredAt,
		Body:         body,
	})
}

// Close closes the channel and connection
func (p *AMQPPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

// Connect returns an AMQP publisher, or a NoopPublisher when url is empty or the broker is
// unreachable at startup.
func Connect(url, exchange string, log *logrus.Entry) Publisher {
	if url == "" {
		return NoopPublisher{}
	}
	p, err := NewAMQPPublisher(url, exchange, log)
	if err != nil {
		log.WithError(err).Warn("RabbitMQ unavailable, ledger events disabled")
		return NoopPublisher{}
	}
	return p
}
