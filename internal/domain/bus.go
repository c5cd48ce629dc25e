package domain

import (
	"context"
)

// EventBus defines the interface for event-driven communication.
// Supports Go channels (Community) or NATS (Pro).
type EventBus interface {
	// Publish sends a message to a topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe registers a handler for a topic.
	// Returns a subscription that can be used to unsubscribe.
	Subscribe(ctx context.Context, topic string, handler MessageHandler) (Subscription, error)

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

// Subscription represents an active subscription.
type Subscription interface {
	// Unsubscribe stops receiving messages.
	Unsubscribe() error

	// Topic returns the subscribed topic.
	Topic() string
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "channel" or "nats"
	Type string

	// Channel settings (Community tier)
	ChannelBufferSize int

	// NATS settings (Pro tier)
	NATSUrl           string
	NATSToken         string
	NATSMaxReconnects int
	NATSReconnectWait int // seconds
}

// Standard topic names for the report pipeline.
const (
	TopicReportSubmitted = "kite.report.submitted"
	TopicReportAlert     = "kite.report.alert"
)

// ReportEvent is the payload published on TopicReportSubmitted and, for
// matched watch rules, on TopicReportAlert. It carries everything the watch
// engine needs so the worker never re-reads the store.
type ReportEvent struct {
	ReportID        int64          `json:"report_id"`
	IdentifierType  IdentifierType `json:"identifier_type"`
	IdentifierValue string         `json:"identifier_value"`
	Category        string         `json:"category"`
	RiskScore       int            `json:"risk_score"`
	RiskLevel       RiskLevel      `json:"risk_level"`
	ReportCount     int            `json:"report_count"`
	AIIsScam        bool           `json:"ai_is_scam"`
	AIConfidence    float64        `json:"ai_confidence"`
}
