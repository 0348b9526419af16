package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"ecommerce-api/internal/domain"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func testOrder() *domain.Order {
	return &domain.Order{
		ID:     uuid.New(),
		UserID: uuid.New(),
		Status: domain.OrderStatusCancelled,
		Total:  decimal.RequireFromString("42.50"),
	}
}

func TestKafkaPublisher_Publish(t *testing.T) {
	writer := &fakeWriter{}
	pub := NewKafkaPublisher(writer, zap.NewNop())
	order := testOrder()

	event := NewOrderEvent(OrderCancelled, order, domain.OrderStatusPending)
	require.NoError(t, pub.Publish(context.Background(), event))

	require.Len(t, writer.messages, 1)
	msg := writer.messages[0]
	assert.Equal(t, order.UserID.String(), string(msg.Key))
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, "order.cancelled", string(msg.Headers[0].Value))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "order.cancelled", decoded["type"])
	assert.Equal(t, order.ID.String(), decoded["order_id"])
	assert.Equal(t, "cancelled", decoded["status"])
	assert.Equal(t, "pending", decoded["previous_status"])
	assert.Equal(t, "42.5", decoded["total"])

	require.NoError(t, pub.Close())
	assert.True(t, writer.closed)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	writer := &fakeWriter{err: errors.New("broker unavailable")}
	pub := NewKafkaPublisher(writer, zap.NewNop())

	err := pub.Publish(context.Background(), NewOrderEvent(OrderPlaced, testOrder(), ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "order.placed")
	assert.ErrorIs(t, err, writer.err)
}

func TestNewOrderEvent_OmitsEmptyPreviousStatus(t *testing.T) {
	raw, err := json.Marshal(NewOrderEvent(OrderPlaced, testOrder(), ""))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "previous_status")
}

func TestLogPublisher_Publish(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	pub := NewLogPublisher(zap.New(core))
	order := testOrder()

	require.NoError(t, pub.Publish(context.Background(), NewOrderEvent(OrderStatusChanged, order, domain.OrderStatusShipped)))

	entries := logs.FilterMessage("order event").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "order.status_changed", fields["type"])
	assert.Equal(t, "shipped", fields["previous_status"])
	assert.Equal(t, "42.50", fields["total"])
}
