package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromKafkaCopiesPayload(t *testing.T) {
	key := []byte("order-1")
	value := []byte(`{"id":1}`)
	now := time.Now()

	msg := fromKafka(kafka.Message{
		Topic:   "orders.events",
		Key:     key,
		Value:   value,
		Offset:  42,
		Time:    now,
		Headers: []kafka.Header{{Key: "event", Value: []byte("order.created")}},
	})

	key[0], value[0] = 'x', 'x'

	assert.Equal(t, "orders.events", msg.Topic)
	assert.Equal(t, "order-1", string(msg.Key))
	assert.Equal(t, `{"id":1}`, string(msg.Value))
	assert.Equal(t, int64(42), msg.Offset)
	assert.Equal(t, "order.created", msg.Headers["event"])
}

func TestFromKafkaWithoutHeaders(t *testing.T) {
	msg := fromKafka(kafka.Message{Topic: "chat.messages"})
	assert.Nil(t, msg.Headers)
}

func TestNoopClient(t *testing.T) {
	client := NewNoopClient("orders.events", "chat.messages")
	require.NoError(t, client.Publish(context.Background(), "orders.events", nil, []byte("x")))
	assert.Equal(t, []string{"orders.events", "chat.messages"}, client.Topics())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := client.Consume(ctx, func(context.Context, Message) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
