package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
	"github.com/cenkalti/backoff"
)

type KafkaConfig struct {
	Brokers       []string
	Topic         string
	ClientID      string
	RetryDuration time.Duration
}

// KafkaPublisher writes events to a single topic keyed by Event.Key so all
// events of one employee land on the same partition.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaPublisher(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func producerConfig(clientID string) *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = clientID
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Return.Successes = true
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	cfg.Producer.Retry.Max = 3
	return cfg
}

// ConnectWithRetry dials the brokers with exponential backoff, giving up after
// cfg.RetryDuration.
func ConnectWithRetry(cfg KafkaConfig) (*KafkaPublisher, error) {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.MaxElapsedTime = cfg.RetryDuration
	expBackoff.InitialInterval = 2 * time.Second

	var producer sarama.SyncProducer
	operation := func() error {
		var err error
		producer, err = sarama.NewSyncProducer(cfg.Brokers, producerConfig(cfg.ClientID))
		if err != nil {
			slog.Warn("kafka connect failed, retrying", "brokers", cfg.Brokers, "err", err)
		}
		return err
	}
	if err := backoff.Retry(operation, expBackoff); err != nil {
		return nil, fmt.Errorf("failed to connect to kafka after retries: %w", err)
	}
	return NewKafkaPublisher(producer, cfg.Topic), nil
}

func (k *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.Type, err)
	}
	msg := &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(event.Key),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event-type"), Value: []byte(event.Type)},
		},
		Timestamp: event.OccurredAt,
	}
	if _, _, err := k.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

func (k *KafkaPublisher) Close() error {
	return k.producer.Close()
}

// New returns a Kafka publisher when brokers are configured and a Noop
// publisher otherwise.
func New(cfg KafkaConfig) (Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return Noop{}, nil
	}
	return ConnectWithRetry(cfg)
}
