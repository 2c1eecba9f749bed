package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKafkaPublisherSendsKeyedMessage(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		assert.Equal(t, "timesheet-events", msg.Topic)

		key, err := msg.Key.Encode()
		require.NoError(t, err)
		assert.Equal(t, "emp-1", string(key))

		value, err := msg.Value.Encode()
		require.NoError(t, err)
		var decoded map[string]any
		require.NoError(t, json.Unmarshal(value, &decoded))
		assert.Equal(t, "timesheet.submit", decoded["type"])
		return nil
	})

	pub := NewKafkaPublisher(producer, "timesheet-events")
	err := pub.Publish(context.Background(), Event{
		Type:       "timesheet.submit",
		Key:        "emp-1",
		OccurredAt: time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC),
		Payload:    map[string]string{"id": "ts-1"},
	})
	require.NoError(t, err)
	require.NoError(t, pub.Close())
}

func TestKafkaPublisherReturnsSendError(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	pub := NewKafkaPublisher(producer, "timesheet-events")
	err := pub.Publish(context.Background(), Event{Type: "timesheet.approve", Key: "emp-2"})
	require.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, pub.Close())
}

func TestKafkaPublisherHonoursCanceledContext(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	pub := NewKafkaPublisher(producer, "timesheet-events")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, pub.Publish(ctx, Event{Type: "timesheet.save"}), context.Canceled)
	require.NoError(t, pub.Close())
}

func TestNewWithoutBrokersIsNoop(t *testing.T) {
	pub, err := New(KafkaConfig{})
	require.NoError(t, err)
	assert.IsType(t, Noop{}, pub)
	assert.NoError(t, pub.Publish(context.Background(), Event{Type: "timesheet.save"}))
}
