package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// Event is the envelope delivered to display-gateway handlers.
type Event struct {
	Topic string
	Key   string
	Value []byte
}

// Consumer reads lottery lifecycle events from a set of topics. Used by the
// display gateway to re-render public lottery state.
type Consumer struct {
	readers []*kafka.Reader
}

func NewConsumer(brokers []string, topics []string, groupID string) *Consumer {
	readers := make([]*kafka.Reader, 0, len(topics))
	for _, topic := range topics {
		readers = append(readers, kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 10e3, // 10KB
			MaxBytes: 10e6, // 10MB
		}))
	}
	return &Consumer{readers: readers}
}

// Start consumes every topic until the context is cancelled, invoking the
// handler for each message. One goroutine per topic.
func (c *Consumer) Start(ctx context.Context, handler func(Event)) {
	for _, reader := range c.readers {
		go func(r *kafka.Reader) {
			for {
				msg, err := r.ReadMessage(ctx)
				if err != nil {
					return
				}
				handler(Event{Topic: msg.Topic, Key: string(msg.Key), Value: msg.Value})
			}
		}(reader)
	}
}

// Close gracefully shuts down all readers
func (c *Consumer) Close() error {
	var firstErr error
	for _, r := range c.readers {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
