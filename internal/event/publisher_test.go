package event_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/orders/internal/config"
	"github.com/Additional-Code/orders/internal/entity"
	"github.com/Additional-Code/orders/internal/event"
	"github.com/Additional-Code/orders/internal/messaging/messagingtest"
)

func testConfig() config.Config {
	return config.Config{
		Messaging: config.Messaging{
			PublishTimeout: time.Second,
			Exchanges: config.Exchanges{
				OrderNotifications: "order-notifications",
				StockUpdate:        "stock-update",
				ClientDeletion:     "client-deletion",
			},
		},
	}
}

func sampleOrder() *entity.Order {
	return &entity.Order{
		ID:          42,
		ClientID:    2,
		ProductID:   1,
		TotalAmount: decimal.RequireFromString("150"),
		Quantity:    3,
	}
}

func TestOrderCreatedPublishesBothEvents(t *testing.T) {
	rec := messagingtest.New()
	pub := event.NewPublisher(rec, testConfig(), zap.NewNop())

	require.NoError(t, pub.OrderCreated(context.Background(), sampleOrder()))

	notifications := rec.Published("order-notifications")
	require.Len(t, notifications, 1)
	var created event.OrderCreated
	require.NoError(t, json.Unmarshal(notifications[0].Body, &created))
	assert.Equal(t, event.OrderCreated{OrderID: 42, ClientID: 2, ProductID: 1, TotalAmount: "150.00"}, created)
	assert.Equal(t, "42", string(notifications[0].Key))

	stock := rec.Published("stock-update")
	require.Len(t, stock, 1)
	var decrement event.StockDecrement
	require.NoError(t, json.Unmarshal(stock[0].Body, &decrement))
	assert.Equal(t, event.StockDecrement{ProductID: 1, Quantity: 1}, decrement)
}

func TestOrderCreatedUsesQuantityWhenEnabled(t *testing.T) {
	cfg := testConfig()
	cfg.Messaging.StockDecrementUseQuantity = true
	rec := messagingtest.New()
	pub := event.NewPublisher(rec, cfg, zap.NewNop())

	require.NoError(t, pub.OrderCreated(context.Background(), sampleOrder()))

	stock := rec.Published("stock-update")
	require.Len(t, stock, 1)
	assert.JSONEq(t, `{"product_id":1,"quantity":3}`, string(stock[0].Body))
}

func TestOrderCreatedAttemptsBothPublishesOnFailure(t *testing.T) {
	rec := messagingtest.New()
	brokerDown := errors.New("connection refused")
	rec.FailExchange("order-notifications", brokerDown)
	pub := event.NewPublisher(rec, testConfig(), zap.NewNop())

	err := pub.OrderCreated(context.Background(), sampleOrder())
	require.Error(t, err)
	assert.ErrorIs(t, err, brokerDown)

	var publishErr *event.PublishError
	require.True(t, errors.As(err, &publishErr))
	assert.Equal(t, "order-notifications", publishErr.Exchange)

	assert.Empty(t, rec.Published("order-notifications"))
	assert.Len(t, rec.Published("stock-update"), 1)
}

func TestClientDeletedPayload(t *testing.T) {
	rec := messagingtest.New()
	pub := event.NewPublisher(rec, testConfig(), zap.NewNop())

	require.NoError(t, pub.ClientDeleted(context.Background(), 7))

	msgs := rec.Published("client-deletion")
	require.Len(t, msgs, 1)
	assert.JSONEq(t, `{"client_id":7}`, string(msgs[0].Body))
}

func TestClientDeletedDecoding(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    *int64
		wantErr bool
	}{
		{name: "integer", body: `{"client_id":7}`, want: ptr(7)},
		{name: "string", body: `{"client_id":"7"}`, want: ptr(7)},
		{name: "float string", body: `{"client_id":"8.0"}`, want: ptr(8)},
		{name: "absent", body: `{}`},
		{name: "null", body: `{"client_id":null}`},
		{name: "word", body: `{"client_id":"seven"}`, wantErr: true},
		{name: "bool", body: `{"client_id":true}`, wantErr: true},
		{name: "fraction", body: `{"client_id":1.25}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var payload event.ClientDeleted
			err := json.Unmarshal([]byte(tt.body), &payload)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, payload.ClientID)
		})
	}
}

func ptr(v int64) *int64 { return &v }
