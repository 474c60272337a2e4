package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// EventBus defines the interface for post-commit domain events.
// Supports Go channels (single node) or NATS.
type EventBus interface {
	// Publish sends a message to a topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe registers a handler for a topic.
	// Returns a subscription that can be used to unsubscribe.
	Subscribe(ctx context.Context, topic string, handler MessageHandler) (BusSubscription, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message represents an event message.
type Message struct {
	ID        string            `json:"id"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp int64             `json:"timestamp"`
}

// BusSubscription represents an active bus subscription.
type BusSubscription interface {
	// Unsubscribe stops receiving messages.
	Unsubscribe() error

	// Topic returns the subscribed topic.
	Topic() string
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "channel" or "nats"
	Type string

	// Channel settings
	ChannelBufferSize int

	// NATS settings
	NATSUrl           string
	NATSToken         string
	NATSMaxReconnects int
	NATSReconnectWait int // seconds

	// NATSQueueGroup, when set, load-balances each topic across every
	// process subscribed with the same group.
	NATSQueueGroup string
}

// Standard topic names.
const (
	TopicTransactionCreated = "finsight.transaction.created"
	TopicFraudAlert         = "finsight.fraud.alert"
)

// TransactionEvent is published after a transaction commits.
type TransactionEvent struct {
	TransactionID   string          `json:"transactionId"`
	UserID          string          `json:"userId"`
	Type            TransactionType `json:"type"`
	Amount          decimal.Decimal `json:"amount"`
	Category        string          `json:"category"`
	TransactionDate time.Time       `json:"transactionDate"`
	Fraudulent      bool            `json:"fraudulent"`
	FraudScore      float64         `json:"fraudScore"`
	AlertID         string          `json:"alertId,omitempty"`
	TraceID         string          `json:"traceId,omitempty"`
}
