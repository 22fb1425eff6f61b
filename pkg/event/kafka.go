package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/shashiranjanraj/ferremas/pkg/logger"
)

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher forwards bus events to a Kafka topic, keyed by event name.
type KafkaPublisher struct {
	writer  MessageWriter
	timeout time.Duration
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return NewKafkaPublisherWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
	})
}

func NewKafkaPublisherWithWriter(w MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w, timeout: 5 * time.Second}
}

// Publish writes one event.
func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("event: marshal %s: %w", e.Name, err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.Name),
		Value: value,
		Time:  e.OccurredAt,
	})
}

// Handle is a bus Handler; publish errors are logged, not returned.
func (p *KafkaPublisher) Handle(ctx context.Context, e Event) {
	if err := p.Publish(ctx, e); err != nil {
		logger.WithCtx(ctx).Warn("event: kafka publish failed", "event", e.Name, "error", err)
	}
}

func (p *KafkaPublisher) Close() error { return p.writer.Close() }

// Consume reads events from topic with groupID and re-fires them on bus
// until ctx ends. Payloads arrive as generic JSON values.
func Consume(ctx context.Context, brokers []string, topic, groupID string, bus *Bus) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: groupID,
	})
	defer reader.Close()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("event: consumer shutting down", "topic", topic)
				return nil
			}
			logger.Error("event: read message", "topic", topic, "error", err)
			continue
		}

		var e Event
		if err := json.Unmarshal(msg.Value, &e); err != nil {
			logger.Warn("event: bad message", "topic", topic, "offset", msg.Offset, "error", err)
			continue
		}
		bus.Fire(ctx, e.Name, e.Payload)
	}
}
