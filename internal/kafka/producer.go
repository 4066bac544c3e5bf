package kafka

import (
	"context"
	"encoding/json"

	"github.com/clawplay/platform/internal/model"
	"github.com/segmentio/kafka-go"
)

// Producer publishes credit events. Thin wrapper around kafka-go Writer;
// batching and retries are the writer's concern.
type Producer struct {
	w *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{}, // key by owner keeps per-owner ordering
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
	return &Producer{w: w}
}

// PublishCreditEvent satisfies credit.Publisher.
func (p *Producer) PublishCreditEvent(ctx context.Context, ev model.CreditEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.UserID),
		Value: payload,
	})
}

func (p *Producer) Close() error { return p.w.Close() }
