// Package dlq writes orders that failed execution to a JetStream dead
// letter queue so they can be inspected and replayed.
package dlq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/self-labs/hass-stack/common/messaging/nats"
	"github.com/self-labs/hass-stack/execution/internal/models"
)

// FailedOrder is one DLQ entry.
type FailedOrder struct {
	Timestamp time.Time    `json:"timestamp"`
	Order     models.Order `json:"order"`
	Error     string       `json:"error"`
	Reason    string       `json:"reason"`
}

// Queue writes failed orders to NATS JetStream. Safe for use across
// multiple execution instances.
type Queue struct {
	js      *nats.JetStreamClient
	stream  jetstream.Stream
	written uint64
}

// NewQueue creates the orders DLQ backed by NATS JetStream.
func NewQueue(ctx context.Context, js *nats.JetStreamClient) (*Queue, error) {
	if js == nil {
		return nil, fmt.Errorf("jetstream client is nil")
	}

	stream, err := js.CreateOrUpdateStream(ctx, nats.OrdersDLQStream)
	if err != nil {
		return nil, fmt.Errorf("create dlq stream: %w", err)
	}

	return &Queue{js: js, stream: stream}, nil
}

// Write records a failed order. Subject format: dlq.orders.<reason>.
func (q *Queue) Write(ctx context.Context, order models.Order, cause error, reason string) error {
	if q == nil {
		return nil
	}

	entry := FailedOrder{
		Timestamp: time.Now().UTC(),
		Order:     order,
		Reason:    reason,
	}
	if cause != nil {
		entry.Error = cause.Error()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal dlq entry: %w", err)
	}

	subject := fmt.Sprintf("dlq.orders.%s", reason)
	if _, err := q.js.PublishSync(ctx, subject, data); err != nil {
		return fmt.Errorf("publish dlq entry: %w", err)
	}

	atomic.AddUint64(&q.written, 1)
	return nil
}

// Stats returns DLQ metrics from JetStream.
func (q *Queue) Stats(ctx context.Context) map[string]interface{} {
	if q == nil {
		return map[string]interface{}{"enabled": false}
	}

	info, err := q.stream.Info(ctx)
	if err != nil {
		return map[string]interface{}{
			"enabled":       true,
			"written_local": atomic.LoadUint64(&q.written),
			"error":         err.Error(),
		}
	}

	return map[string]interface{}{
		"enabled":        true,
		"written_local":  atomic.LoadUint64(&q.written),
		"total_messages": info.State.Msgs,
		"total_bytes":    info.State.Bytes,
		"first_seq":      info.State.FirstSeq,
		"last_seq":       info.State.LastSeq,
	}
}

// List returns failed orders from the DLQ.
func (q *Queue) List(ctx context.Context, limit int) ([]FailedOrder, error) {
	if q == nil {
		return nil, fmt.Errorf("dlq not enabled")
	}
	if limit <= 0 {
		limit = 100
	}

	consumer, err := q.stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		FilterSubject: "dlq.orders.>",
		AckPolicy:     jetstream.AckNonePolicy,
		DeliverPolicy: jetstream.DeliverAllPolicy,
		MaxDeliver:    1,
	})
	if err != nil {
		return nil, fmt.Errorf("create list consumer: %w", err)
	}

	msgs, err := consumer.Fetch(limit, jetstream.FetchMaxWait(2*time.Second))
	if err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}

	var entries []FailedOrder
	for msg := range msgs.Messages() {
		var entry FailedOrder
		if err := json.Unmarshal(msg.Data(), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Purge removes all entries from the DLQ stream.
func (q *Queue) Purge(ctx context.Context) error {
	if q == nil {
		return fmt.Errorf("dlq not enabled")
	}
	if err := q.stream.Purge(ctx); err != nil {
		return fmt.Errorf("purge dlq stream: %w", err)
	}
	return nil
}
