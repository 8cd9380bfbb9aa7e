// Package service holds adapters from the reservation engine to outside
// infrastructure.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/DoHyunDaniel/reservation-api-project/internal/queue"
)

// QueuePublisher publishes reservation events to RabbitMQ. The connection
// is dialed on first use and re-dialed after the broker drops it. It is safe
// for concurrent use.
type QueuePublisher struct {
	url   string
	queue string
	dial  func(url string) (*amqp.Connection, error)

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewQueuePublisher(url string) *QueuePublisher {
	return &QueuePublisher{url: url, queue: queue.ReservationEventsQueue, dial: amqp.Dial}
}

// Publish sends ev as a persistent JSON message on the events queue.
func (p *QueuePublisher) Publish(ctx context.Context, ev queue.ReservationEvent) error {
	msg, err := newPublishing(ev)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	ch, err := p.channel()
	if err != nil {
		return err
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		p.reset()
		return fmt.Errorf("rabbitmq: publish %s: %w", ev.Type, err)
	}
	return nil
}

// Close releases the broker connection.
func (p *QueuePublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn, p.ch = nil, nil
	return err
}

// channel returns the open channel, dialing when needed. Callers hold mu.
func (p *QueuePublisher) channel() (*amqp.Channel, error) {
	if p.conn != nil && !p.conn.IsClosed() && p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.reset()

	conn, err := p.dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: declare %s: %w", p.queue, err)
	}
	slog.Info("rabbitmq publisher connected", slog.String("queue", p.queue))
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *QueuePublisher) reset() {
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}

func newPublishing(ev queue.ReservationEvent) (amqp.Publishing, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal %s: %w", ev.Type, err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.EventID,
		Type:         string(ev.Type),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}, nil
}
