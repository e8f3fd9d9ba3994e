package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"crosplit/internal/logger"
)

// messageWriter is the subset of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher queues messages on a Kafka topic for the worker to mail.
type Publisher struct {
	writer messageWriter
	logger *logger.Logger
}

func NewPublisher(brokers []string, topic string, logger *logger.Logger) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
		},
		logger: logger,
	}
}

func (p *Publisher) Send(ctx context.Context, msg Message) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(msg.Kind), Value: value}); err != nil {
		return fmt.Errorf("failed to publish %s: %w", msg.Kind, err)
	}
	p.logger.Debug("queued %s email for %v", msg.Kind, msg.To)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
