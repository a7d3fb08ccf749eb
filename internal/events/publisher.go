// Package events publishes fire-and-forget notification events over
// RabbitMQ: assignment.decided when the Runner reaches a terminal outcome,
// pool.escalated when a pool entry needs a human. Dashboards and admin
// queues are the downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"interpreter-engine/internal/config"
)

const (
	QueueAssignmentDecided = "assignment.decided"
	QueuePoolEscalated     = "pool.escalated"
)

// Connection wraps a RabbitMQ connection and channel.
type Connection struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// Connect establishes the RabbitMQ connection used for notification events.
func Connect(cfg config.RabbitMQConfig) (*Connection, error) {
	connStr := fmt.Sprintf("amqp://%s:%s@%s:%s/", cfg.Username, cfg.Password, cfg.Host, cfg.Port)

	conn, err := amqp.Dial(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	slog.Info("connected to RabbitMQ", "host", cfg.Host, "port", cfg.Port)
	return &Connection{conn: conn, ch: ch}, nil
}

func (c *Connection) Close() error {
	if c.ch != nil {
		if err := c.ch.Close(); err != nil {
			slog.Error("failed to close RabbitMQ channel", "error", err)
		}
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// AssignmentDecidedEvent is published whenever the Runner reaches a terminal
// outcome for a booking.
type AssignmentDecidedEvent struct {
	BookingID     string `json:"booking_id"`
	Status        string `json:"status"`
	InterpreterID string `json:"interpreter_id,omitempty"`
	Reason        string `json:"reason"`
}

// PoolEscalatedEvent is published when a pool entry is escalated, whether by
// the Pool Processor or Emergency Override.
type PoolEscalatedEvent struct {
	BookingID string `json:"booking_id"`
	Reason    string `json:"reason"`
	Source    string `json:"source"`
}

// Notifier is the publishing surface the engine components depend on, so a
// deployment without RabbitMQ can run with a nil Notifier and lose only the
// outbound events.
type Notifier interface {
	PublishAssignmentDecided(ctx context.Context, event AssignmentDecidedEvent) error
	PublishPoolEscalated(ctx context.Context, event PoolEscalatedEvent) error
}

// Publisher publishes notification events, tracking lightweight metrics the
// way notification_publisher.go does.
type Publisher struct {
	conn              *Connection
	messagesPublished int64
	messagesFailed    int64
}

func NewPublisher(conn *Connection) *Publisher {
	return &Publisher{conn: conn}
}

func (p *Publisher) publish(ctx context.Context, queue string, payload any) error {
	_, err := p.conn.ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		p.messagesFailed++
		return fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		p.messagesFailed++
		return fmt.Errorf("failed to marshal event for %s: %w", queue, err)
	}

	err = p.conn.ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Body:         body,
		Timestamp:    time.Now(),
	})
	if err != nil {
		p.messagesFailed++
		return fmt.Errorf("failed to publish event to %s: %w", queue, err)
	}

	p.messagesPublished++
	return nil
}

func (p *Publisher) PublishAssignmentDecided(ctx context.Context, event AssignmentDecidedEvent) error {
	return p.publish(ctx, QueueAssignmentDecided, event)
}

func (p *Publisher) PublishPoolEscalated(ctx context.Context, event PoolEscalatedEvent) error {
	return p.publish(ctx, QueuePoolEscalated, event)
}
