package eventbus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/travelagency/backoffice/pkg/domain/events"
	"github.com/travelagency/backoffice/pkg/eventbus"
)

// KafkaEventBusConfig holds configuration for the Kafka event bus.
type KafkaEventBusConfig struct {
	GroupID string
	// TopicPrefix is joined with the event type to name topics.
	TopicPrefix string
}

// DefaultKafkaEventBusConfig returns default configuration for KafkaEventBus.
func DefaultKafkaEventBusConfig() *KafkaEventBusConfig {
	return &KafkaEventBusConfig{
		GroupID:     "backoffice",
		TopicPrefix: "backoffice.settlements",
	}
}

// KafkaEventBus publishes one topic per event type.
type KafkaEventBus struct {
	brokers []string
	writer  *kafka.Writer
	dialer  *kafka.Dialer
	config  *KafkaEventBusConfig
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	readersMtx sync.Mutex
	readers    []*kafka.Reader
}

// NewWithKafka creates a Kafka-backed event bus. brokers is a comma
// separated list.
func NewWithKafka(brokers string, logger *slog.Logger, config *KafkaEventBusConfig) (*KafkaEventBus, error) {
	parsed := parseBrokers(brokers)
	if len(parsed) == 0 {
		return nil, fmt.Errorf("kafka event bus: brokers are required")
	}
	if config == nil {
		config = DefaultKafkaEventBusConfig()
	}
	if config.GroupID == "" {
		config.GroupID = "backoffice"
	}
	if strings.TrimSpace(config.TopicPrefix) == "" {
		config.TopicPrefix = "backoffice.settlements"
	}
	if logger == nil {
		logger = slog.Default()
	}

	dialer := &kafka.Dialer{Timeout: 5 * time.Second}
	ctx, cancel := context.WithCancel(context.Background())
	bus := &KafkaEventBus{
		brokers: parsed,
		writer:  newWriter(parsed),
		dialer:  dialer,
		config:  config,
		logger:  logger.With("bus", "kafka"),
		ctx:     ctx,
		cancel:  cancel,
	}

	conn, err := dialer.DialContext(ctx, "tcp", parsed[0])
	if err != nil {
		cancel()
		return nil, fmt.Errorf("kafka event bus: connection failed: %w", err)
	}
	_ = conn.Close()

	bus.logger.Info("Kafka event bus initialized", "brokers", parsed, "group_id", config.GroupID)
	return bus, nil
}

// Emit writes the event envelope to the event type's topic, keyed by type.
func (b *KafkaEventBus) Emit(ctx context.Context, event events.Event) error {
	data, err := encodeEnvelope(event)
	if err != nil {
		return fmt.Errorf("kafka event bus: %w", err)
	}
	msg := kafka.Message{
		Topic: topicNameFor(b.config.TopicPrefix, events.EventType(event.Type())),
		Key:   []byte(event.Type()),
		Value: data,
		Time:  time.Now(),
	}
	if err := b.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka event bus: publish failed: %w", err)
	}
	return nil
}

// Register starts a group reader on the event type's topic.
func (b *KafkaEventBus) Register(eventType events.EventType, handler eventbus.HandlerFunc) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     b.brokers,
		GroupID:     b.config.GroupID,
		Topic:       topicNameFor(b.config.TopicPrefix, eventType),
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     time.Second,
		Dialer:      b.dialer,
	})
	b.readersMtx.Lock()
	b.readers = append(b.readers, reader)
	b.readersMtx.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.consume(eventType, handler, reader)
	}()
}

func (b *KafkaEventBus) consume(eventType events.EventType, handler eventbus.HandlerFunc, reader *kafka.Reader) {
	for {
		msg, err := reader.FetchMessage(b.ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return
			}
			b.logger.Error("kafka consume error", "error", err, "event_type", eventType)
			time.Sleep(500 * time.Millisecond)
			continue
		}
		evt, err := decodeEnvelope(msg.Value)
		if err != nil {
			b.logger.Error("failed to decode event", "error", err, "topic", msg.Topic, "offset", msg.Offset)
		} else if !executeHandlers(b.ctx, b.logger, eventType, evt, []eventbus.HandlerFunc{handler}, fmt.Sprintf("%d", msg.Offset)) {
			b.publishToDLQ(eventType, msg.Value)
		}
		if err := reader.CommitMessages(b.ctx, msg); err != nil {
			b.logger.Error("kafka commit error", "error", err, "topic", msg.Topic, "offset", msg.Offset)
		}
	}
}

func (b *KafkaEventBus) publishToDLQ(eventType events.EventType, raw []byte) {
	topic := topicNameFor(b.config.TopicPrefix, eventType) + ".dlq"
	err := b.writer.WriteMessages(b.ctx, kafka.Message{Topic: topic, Key: []byte(eventType), Value: raw, Time: time.Now()})
	if err != nil {
		b.logger.Error("kafka dlq publish failed", "error", err, "topic", topic)
		return
	}
	b.logger.Warn("message sent to DLQ", "event_type", eventType, "dlq_topic", topic)
}

// Close stops readers and flushes the writer.
func (b *KafkaEventBus) Close() error {
	b.cancel()
	b.readersMtx.Lock()
	for _, r := range b.readers {
		_ = r.Close()
	}
	b.readersMtx.Unlock()
	b.wg.Wait()
	return b.writer.Close()
}

// newWriter publishes keyed by event type so each type keeps its order.
func newWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireOne,
		Balancer:               &kafka.Hash{},
	}
}

func parseBrokers(brokers string) []string {
	var out []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func topicNameFor(prefix string, eventType events.EventType) string {
	return prefix + "." + strings.ToLower(strings.ReplaceAll(eventType.String(), ".", "_"))
}

var _ eventbus.Bus = (*KafkaEventBus)(nil)
