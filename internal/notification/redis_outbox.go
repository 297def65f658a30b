package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hamzahsivrikaya-del/hamza-web-site-sub000/internal/domain"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultOutboxKey = "notifications:outbox"
	deadLetterSuffix = ":dead"
)

// RedisOutbox is a domain.NotificationSink that queues notifications on a
// Redis list. Send only enqueues; the Dispatcher delivers.
type RedisOutbox struct {
	client *redis.Client
	key    string
}

func NewRedisOutbox(client *redis.Client, key string) *RedisOutbox {
	if key == "" {
		key = DefaultOutboxKey
	}
	return &RedisOutbox{client: client, key: key}
}

// Send enqueues n
func (o *RedisOutbox) Send(ctx context.Context, n domain.Notification) error {
	tracer := otel.Tracer("redis")
	ctx, span := tracer.Start(ctx, "redis.LPush",
		trace.WithAttributes(attribute.String("outbox.key", o.key)),
	)
	defer span.End()

	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := o.client.LPush(ctx, o.key, data).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}

// Pop waits up to timeout for the oldest queued notification. It returns
// nil, nil when nothing arrived in time.
func (o *RedisOutbox) Pop(ctx context.Context, timeout time.Duration) (*domain.Notification, error) {
	res, err := o.client.BRPop(ctx, timeout, o.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("dequeue notification: %w", err)
	}
	// BRPOP replies with [key, value]
	if len(res) != 2 {
		return nil, fmt.Errorf("dequeue notification: unexpected reply of %d elements", len(res))
	}

	var n domain.Notification
	if err := json.Unmarshal([]byte(res[1]), &n); err != nil {
		return nil, fmt.Errorf("decode notification: %w", err)
	}
	return &n, nil
}

// DeadLetter parks a notification that could not be delivered
func (o *RedisOutbox) DeadLetter(ctx context.Context, n domain.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	return o.client.LPush(ctx, o.key+deadLetterSuffix, data).Err()
}

// Len returns the number of queued notifications
func (o *RedisOutbox) Len(ctx context.Context) (int64, error) {
	return o.client.LLen(ctx, o.key).Result()
}
