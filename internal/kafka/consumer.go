package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// ConsumerConfig tunes the credit-events reader. Zero values get the
// defaults noted per field.
type ConsumerConfig struct {
	Brokers        []string
	Topic          string
	GroupID        string
	MinBytes       int           // default 1KB
	MaxBytes       int           // default 10MB
	CommitInterval time.Duration // default 1s (0 = sync each msg)
}

// Consumer reads the credit-events topic for the analytics worker. Offsets
// are committed explicitly after the event is buffered, so delivery is
// at-least-once.
type Consumer struct {
	r *kafka.Reader
}

func NewConsumer(c ConsumerConfig) *Consumer {
	minB := c.MinBytes
	if minB <= 0 {
		minB = 1 << 10
	}
	maxB := c.MaxBytes
	if maxB <= 0 {
		maxB = 10 << 20
	}
	ci := c.CommitInterval
	if ci <= 0 {
		ci = time.Second
	}

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        c.Brokers,
		GroupID:        c.GroupID,
		Topic:          c.Topic,
		MinBytes:       minB,
		MaxBytes:       maxB,
		CommitInterval: ci,
		MaxWait:        50 * time.Millisecond,
	})

	return &Consumer{r: r}
}

type Message = kafka.Message

func (c *Consumer) Fetch(ctx context.Context) (Message, error) {
	return c.r.FetchMessage(ctx)
}

func (c *Consumer) Commit(ctx context.Context, m Message) error {
	return c.r.CommitMessages(ctx, m)
}

func (c *Consumer) Close() error { return c.r.Close() }
