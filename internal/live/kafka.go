package live

import (
	"context"
	"time"

	kgo "github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kgo.Message) error
	Close() error
}

// KafkaSink writes every topic to one Kafka topic; the event topic travels in
// a header.
type KafkaSink struct {
	writer messageWriter
}

func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{writer: &kgo.Writer{
		Addr:                   kgo.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kgo.Hash{},
		RequiredAcks:           kgo.RequireOne,
		AllowAutoTopicCreation: true,
	}}
}

func (s *KafkaSink) Publish(ctx context.Context, topic string, payload any) error {
	id, data, err := encode(topic, payload)
	if err != nil {
		return err
	}

	key := id
	if k, ok := payload.(Keyed); ok {
		key = k.PartitionKey()
	}

	return s.writer.WriteMessages(ctx, kgo.Message{
		Key:     []byte(key),
		Value:   data,
		Headers: []kgo.Header{{Key: "topic", Value: []byte(topic)}},
		Time:    time.Now(),
	})
}

func (s *KafkaSink) Close() error { return s.writer.Close() }
