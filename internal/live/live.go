// Package live delivers post updates to connected clients over Redis pub/sub
// or Kafka.
package live

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/redis/go-redis/v9"

	config "github.com/maheshrc27/postflow/configs"
)

// Sink publishes events on a topic.
type Sink interface {
	Publish(ctx context.Context, topic string, payload any) error
	Close() error
}

// Keyed payloads choose their own partition key.
type Keyed interface {
	PartitionKey() string
}

type Envelope struct {
	ID      string          `json:"id"`
	Topic   string          `json:"topic"`
	SentAt  time.Time       `json:"sent_at"`
	Payload json.RawMessage `json:"payload"`
}

func encode(topic string, payload any) (string, []byte, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", nil, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", nil, fmt.Errorf("encoding %s payload: %w", topic, err)
	}
	data, err := json.Marshal(Envelope{ID: id, Topic: topic, SentAt: time.Now().UTC(), Payload: body})
	if err != nil {
		return "", nil, err
	}
	return id, data, nil
}

// New builds the sink selected by cfg.Transport.
func New(cfg config.LiveUpdates, rdb redis.UniversalClient) (Sink, error) {
	switch cfg.Transport {
	case "", "redis":
		return NewRedisSink(rdb, "postflow:"), nil
	case "kafka":
		if len(cfg.KafkaBrokers) == 0 {
			return nil, fmt.Errorf("kafka live updates need at least one broker")
		}
		return NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	default:
		return nil, fmt.Errorf("unknown live update transport %q", cfg.Transport)
	}
}
