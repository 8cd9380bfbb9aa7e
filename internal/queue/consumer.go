package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	consumerPrefetch = 50
	maxBackoff       = 30 * time.Second
)

// StartAuditConsumer consumes the reservation events queue and appends one
// line per event to out. It reconnects with exponential backoff until ctx is
// canceled, which is the only way it returns.
func StartAuditConsumer(ctx context.Context, url string, out io.Writer) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			slog.Warn("audit consumer: dial failed", slog.Any("error", err), slog.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = time.Second

		err = consume(ctx, conn, out)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Warn("audit consumer: loop ended, reconnecting", slog.Any("error", err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func consume(ctx context.Context, conn *amqp.Connection, out io.Writer) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(consumerPrefetch, 0, false); err != nil {
		slog.Warn("audit consumer: set QoS failed", slog.Any("error", err))
	}
	if _, err := ch.QueueDeclare(ReservationEventsQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(ReservationEventsQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	slog.Info("audit consumer started", slog.String("queue", ReservationEventsQueue))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := handleMessage(out, d.Body); err != nil {
				slog.Warn("audit consumer: drop message", slog.String("message_id", d.MessageId), slog.Any("error", err))
				_ = d.Nack(false, false) // poison messages are dropped, not requeued
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func handleMessage(out io.Writer, body []byte) error {
	var ev ReservationEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" || ev.ReservationID == 0 {
		return fmt.Errorf("incomplete event %q", ev.EventID)
	}
	if _, err := io.WriteString(out, FormatAuditLine(ev)); err != nil {
		return fmt.Errorf("write audit line: %w", err)
	}
	return nil
}

// FormatAuditLine renders ev as one newline-terminated audit record.
func FormatAuditLine(ev ReservationEvent) string {
	from, to := ev.FromStatus, ev.ToStatus
	if from == "" {
		from = "-"
	}
	if to == "" {
		to = "-"
	}
	return fmt.Sprintf("[%s] %s | event_id=%s | reservation_id=%d | user_id=%d | store_id=%d | actor_id=%d | %s -> %s | reservation_time=%s\n",
		ev.OccurredAt.Format(time.RFC3339), ev.Type, ev.EventID, ev.ReservationID, ev.UserID, ev.StoreID, ev.ActorID,
		from, to, ev.ReservationTime.Format(time.RFC3339))
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
