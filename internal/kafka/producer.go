package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// Producer publishes lottery lifecycle events. One writer covers all topics;
// the topic is chosen per message.
type Producer struct {
	Writer *kafka.Writer
}

func NewProducer(brokers []string) *Producer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.LeastBytes{},
	}
	return &Producer{Writer: writer}
}

// Publish writes a single message to the given topic.
func (p *Producer) Publish(topic string, key string, value []byte) error {
	return p.Writer.WriteMessages(context.Background(),
		kafka.Message{
			Topic: topic,
			Key:   []byte(key),
			Value: value,
		},
	)
}

// Close gracefully shuts down the Kafka writer
func (p *Producer) Close() error {
	return p.Writer.Close()
}
