package kafka

import (
	"context"
	"encoding/json"

	"valutatrade-hub/internal/application"

	"github.com/segmentio/kafka-go"
)

// Publisher writes trade events to a Kafka topic, keyed by user so one
// user's trades stay ordered within a partition.
type Publisher struct {
	writer *kafka.Writer
}

var _ application.TradePublisher = (*Publisher)(nil)

func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

func (p *Publisher) PublishTrade(ctx context.Context, ev application.TradeEvent) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.UserID),
		Value: value,
		Time:  ev.ExecutedAt,
	})
}

func (p *Publisher) Close() error { return p.writer.Close() }
