package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/payments-engine/internal/interfaces"
)

const DefaultTopic = "transaction_dropped"

type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher writes asynchronously; delivery failures are logged from
// the writer's completion callback.
func NewPublisher(brokers []string, topic string, logger *zap.Logger) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			Async:        true,
			BatchTimeout: 50 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
			Completion: func(messages []kafka.Message, err error) {
				if err != nil {
					logger.Error("kafka delivery failed",
						zap.String("topic", topic),
						zap.Int("messages", len(messages)),
						zap.Error(err))
				}
			},
		},
	}
}

// Publish sends event as JSON. Records with the same key land on the
// same partition, which keeps one client's events in order.
func (p *Publisher) Publish(ctx context.Context, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx,
		kafka.Message{
			Key:   []byte(key),
			Value: data,
			Time:  time.Now(),
		},
	)
}

// Close flushes pending messages.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

var _ interfaces.EventPublisher = (*Publisher)(nil)
