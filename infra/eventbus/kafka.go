package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/amirasaad/ledger/pkg/eventbus"
	"github.com/segmentio/kafka-go"
)

// KafkaEventBusConfig holds configuration for the Kafka event bus.
type KafkaEventBusConfig struct {
	GroupID     string
	TopicPrefix string
}

// DefaultKafkaEventBusConfig returns default configuration for KafkaEventBus.
func DefaultKafkaEventBusConfig() *KafkaEventBusConfig {
	return &KafkaEventBusConfig{
		GroupID:     "ledger",
		TopicPrefix: "ledger.",
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaEventBus publishes every event type to its own topic.
type KafkaEventBus struct {
	brokers   []string
	writer    messageWriter
	factories TypeFactories
	config    *KafkaEventBusConfig
	logger    *slog.Logger

	readersMtx sync.Mutex
	readers    []*kafka.Reader

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWithKafka creates a Kafka-backed event bus. Topics are created on first
// write.
func NewWithKafka(
	brokers []string,
	factories TypeFactories,
	config *KafkaEventBusConfig,
	logger *slog.Logger,
) (*KafkaEventBus, error) {
	parsed := parseBrokers(brokers)
	if len(parsed) == 0 {
		return nil, errors.New("kafka event bus: brokers are required")
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(parsed...),
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireOne,
		Balancer:               &kafka.Hash{},
	}
	return newKafkaEventBus(parsed, writer, factories, config, logger), nil
}

func newKafkaEventBus(
	brokers []string,
	writer messageWriter,
	factories TypeFactories,
	config *KafkaEventBusConfig,
	logger *slog.Logger,
) *KafkaEventBus {
	if config == nil {
		config = DefaultKafkaEventBusConfig()
	}
	if config.GroupID == "" {
		config.GroupID = "ledger"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &KafkaEventBus{
		brokers:   brokers,
		writer:    writer,
		factories: factories,
		config:    config,
		logger:    logger.With("bus", "kafka"),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Emit writes the event to the topic of its type, keyed by the type name.
func (b *KafkaEventBus) Emit(ctx context.Context, event eventbus.Event) error {
	data, err := encodeEnvelope(event)
	if err != nil {
		return fmt.Errorf("kafka event bus: %w", err)
	}
	msg := kafka.Message{
		Topic: topicNameFor(b.config.TopicPrefix, event.Type()),
		Key:   []byte(event.Type()),
		Value: data,
		Time:  time.Now(),
	}
	if err := b.writer.WriteMessages(ctx, msg); err != nil {
		b.logger.Error("failed to emit event", "error", err, "type", event.Type(), "topic", msg.Topic)
		return fmt.Errorf("kafka event bus: publish failed: %w", err)
	}
	return nil
}

// Register starts a group reader on the topic of eventType.
func (b *KafkaEventBus) Register(eventType string, handler eventbus.HandlerFunc) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     b.brokers,
		GroupID:     b.config.GroupID,
		Topic:       topicNameFor(b.config.TopicPrefix, eventType),
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     time.Second,
	})
	b.readersMtx.Lock()
	b.readers = append(b.readers, reader)
	b.readersMtx.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.consumeLoop(eventType, handler, reader)
	}()
}

func (b *KafkaEventBus) consumeLoop(eventType string, handler eventbus.HandlerFunc, reader *kafka.Reader) {
	for {
		msg, err := reader.FetchMessage(b.ctx)
		if err != nil {
			if b.ctx.Err() != nil {
				return
			}
			b.logger.Error("kafka consume error", "error", err, "event_type", eventType)
			time.Sleep(500 * time.Millisecond)
			continue
		}

		if err := b.process(handler, msg); err != nil {
			b.logger.Error("failed to process event", "error", err, "topic", msg.Topic, "offset", msg.Offset)
		}
		if err := reader.CommitMessages(b.ctx, msg); err != nil {
			b.logger.Error("kafka commit error", "error", err, "topic", msg.Topic, "offset", msg.Offset)
		}
	}
}

func (b *KafkaEventBus) process(handler eventbus.HandlerFunc, msg kafka.Message) (err error) {
	evt, err := decodeEnvelope(msg.Value, b.factories)
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(b.ctx, evt)
}

// Close stops the readers and flushes the writer.
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

func parseBrokers(brokers []string) []string {
	out := make([]string, 0, len(brokers))
	for _, raw := range brokers {
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// topicNameFor turns "Transaction.Completed" into "<prefix>transaction.completed".
func topicNameFor(prefix, eventType string) string {
	return strings.TrimSpace(prefix) + strings.ToLower(eventType)
}

var _ eventbus.Bus = (*KafkaEventBus)(nil)
