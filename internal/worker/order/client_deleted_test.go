package order

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Additional-Code/orders/internal/config"
	"github.com/Additional-Code/orders/internal/messaging"
)

type stubOrders struct {
	calls   []int64
	deleted int
	err     error
}

func (s *stubOrders) DeleteByClient(_ context.Context, clientID int64) (int, error) {
	s.calls = append(s.calls, clientID)
	return s.deleted, s.err
}

func handlerConfig() config.Config {
	return config.Config{
		Messaging: config.Messaging{
			Exchanges:           config.Exchanges{ClientDeletion: "client-deletion"},
			ClientDeletionQueue: "orders.client-deletion",
		},
	}
}

func TestClientDeletedRegistration(t *testing.T) {
	reg := NewClientDeletedHandler(&stubOrders{}, zap.NewNop(), handlerConfig())

	assert.Equal(t, messaging.Subscription{Exchange: "client-deletion", Queue: "orders.client-deletion"}, reg.Subscription)
	assert.NotNil(t, reg.Handler)
}

func TestClientDeletedCascades(t *testing.T) {
	orders := &stubOrders{deleted: 3}
	core, logs := observer.New(zap.InfoLevel)
	reg := NewClientDeletedHandler(orders, zap.New(core), handlerConfig())

	err := reg.Handler(context.Background(), messaging.Message{Body: []byte(`{"client_id": 7}`)})
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, orders.calls)

	entries := logs.FilterMessage("client orders deleted").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(7), entries[0].ContextMap()["client_id"])
	assert.Equal(t, int64(3), entries[0].ContextMap()["deleted"])
}

func TestClientDeletedAcksMalformedEvents(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: `client 7`},
		{name: "missing client_id", body: `{"id": 7}`},
		{name: "null client_id", body: `{"client_id": null}`},
		{name: "wrong type", body: `{"client_id": "seven"}`},
		{name: "empty string", body: `{"client_id": ""}`},
		{name: "fractional", body: `{"client_id": 7.5}`},
		{name: "object", body: `{"client_id": {"id": 7}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders := &stubOrders{}
			core, logs := observer.New(zap.WarnLevel)
			reg := NewClientDeletedHandler(orders, zap.New(core), handlerConfig())

			err := reg.Handler(context.Background(), messaging.Message{Body: []byte(tt.body)})
			require.NoError(t, err)
			assert.Empty(t, orders.calls)
			assert.Equal(t, 1, logs.Len())
		})
	}
}

func TestClientDeletedAcceptsLenientClientIDs(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int64
	}{
		{name: "numeric string", body: `{"client_id": "7"}`, want: 7},
		{name: "padded string", body: `{"client_id": " 12 "}`, want: 12},
		{name: "integral float", body: `{"client_id": 7.0}`, want: 7},
		{name: "extra fields", body: `{"client_id": 3, "deleted_at": "2024-05-01"}`, want: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders := &stubOrders{deleted: 1}
			reg := NewClientDeletedHandler(orders, zap.NewNop(), handlerConfig())

			require.NoError(t, reg.Handler(context.Background(), messaging.Message{Body: []byte(tt.body)}))
			assert.Equal(t, []int64{tt.want}, orders.calls)
		})
	}
}

func TestClientDeletedReturnsStoreErrors(t *testing.T) {
	storeErr := errors.New("deadlock detected")
	orders := &stubOrders{err: storeErr}
	core, logs := observer.New(zap.ErrorLevel)
	reg := NewClientDeletedHandler(orders, zap.New(core), handlerConfig())

	err := reg.Handler(context.Background(), messaging.Message{Body: []byte(`{"client_id": 9}`)})
	assert.ErrorIs(t, err, storeErr)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(9), entries[0].ContextMap()["client_id"])
}
