package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/travelagency/backoffice/pkg/domain/events"
	"github.com/travelagency/backoffice/pkg/eventbus"
)

// RedisEventBus publishes events to a Redis stream and consumes them
// through a consumer group.
type RedisEventBus struct {
	client *redis.Client
	stream string
	group  string
	logger *slog.Logger
}

// NewWithRedis connects to url and prepares stream and consumer group.
func NewWithRedis(url, stream, group string, logger *slog.Logger) (*RedisEventBus, error) {
	if url == "" || stream == "" || group == "" {
		return nil, fmt.Errorf("redis event bus: url, stream, and group are required")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis event bus: invalid URL: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis event bus: connection failed: %w", err)
	}
	return NewWithRedisClient(client, stream, group, logger), nil
}

// NewWithRedisClient wraps an already connected client.
func NewWithRedisClient(client *redis.Client, stream, group string, logger *slog.Logger) *RedisEventBus {
	if logger == nil {
		logger = slog.Default()
	}
	_ = client.XGroupCreateMkStream(context.Background(), stream, group, "0").Err()
	return &RedisEventBus{
		client: client,
		stream: stream,
		group:  group,
		logger: logger.With("bus", "redis"),
	}
}

// Emit appends the event envelope to the stream.
func (b *RedisEventBus) Emit(ctx context.Context, event events.Event) error {
	if b.client == nil {
		return fmt.Errorf("redis event bus: client not initialized")
	}
	data, err := encodeEnvelope(event)
	if err != nil {
		b.logger.Error("failed to encode event", "error", err, "type", event.Type())
		return fmt.Errorf("redis event bus: %w", err)
	}
	if _, err := b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: b.stream,
		Values: map[string]any{"event": string(data)},
	}).Result(); err != nil {
		b.logger.Error("failed to emit event", "error", err, "type", event.Type())
		return fmt.Errorf("redis event bus: emit failed: %w", err)
	}
	b.logger.Debug("event emitted", "type", event.Type())
	return nil
}

// Register starts a consumer that calls handler for every event of
// eventType read through the consumer group.
func (b *RedisEventBus) Register(eventType events.EventType, handler eventbus.HandlerFunc) {
	ctx := context.Background()
	consumer := fmt.Sprintf("consumer-%s-%d", eventType, time.Now().UnixNano())
	b.logger.Info("registering handler", "event_type", eventType, "consumer", consumer)

	go func() {
		for {
			res, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
				Group:    b.group,
				Consumer: consumer,
				Streams:  []string{b.stream, ">"},
				Count:    10,
				Block:    5 * time.Second,
			}).Result()
			if err != nil {
				if errors.Is(err, redis.ErrClosed) {
					return
				}
				if !errors.Is(err, redis.Nil) {
					b.logger.Error("error reading from stream", "error", err, "consumer", consumer)
				}
				time.Sleep(time.Second)
				continue
			}
			for _, stream := range res {
				for _, msg := range stream.Messages {
					b.handle(ctx, eventType, handler, msg)
				}
			}
		}
	}()
}

func (b *RedisEventBus) handle(ctx context.Context, eventType events.EventType, handler eventbus.HandlerFunc, msg redis.XMessage) {
	defer func() {
		if err := b.client.XAck(ctx, b.stream, b.group, msg.ID).Err(); err != nil {
			b.logger.Error("failed to acknowledge message", "error", err, "msg_id", msg.ID)
		}
	}()
	raw, ok := msg.Values["event"].(string)
	if !ok {
		return
	}
	evt, err := decodeEnvelope([]byte(raw))
	if err != nil {
		b.logger.Error("failed to decode event", "error", err, "msg_id", msg.ID)
		b.pushToDLQ(ctx, msg.Values)
		return
	}
	if events.EventType(evt.Type()) != eventType {
		return
	}
	if !executeHandlers(ctx, b.logger, eventType, evt, []eventbus.HandlerFunc{handler}, msg.ID) {
		b.pushToDLQ(ctx, msg.Values)
	}
}

func (b *RedisEventBus) pushToDLQ(ctx context.Context, values map[string]any) {
	dlqStream := b.stream + "-DLQ"
	if err := b.client.XAdd(ctx, &redis.XAddArgs{Stream: dlqStream, Values: values}).Err(); err != nil {
		b.logger.Error("failed to push to DLQ", "error", err, "stream", dlqStream)
		return
	}
	b.logger.Warn("event pushed to DLQ", "stream", dlqStream)
}

// Close closes the client, stopping consumers.
func (b *RedisEventBus) Close() error {
	return b.client.Close()
}

var _ eventbus.Bus = (*RedisEventBus)(nil)
