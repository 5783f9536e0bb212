package order

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/orders/internal/dto"
	"github.com/Additional-Code/orders/pkg/errorbank"
)

func decodeCreate(t *testing.T, body string) dto.CreateOrderRequest {
	t.Helper()
	var req dto.CreateOrderRequest
	require.NoError(t, json.Unmarshal([]byte(body), &req))
	return req
}

func TestToCreateInputValid(t *testing.T) {
	in, err := toCreateInput(decodeCreate(t, `{"client_id":2,"product_id":1,"total_amount":150.00}`))
	require.NoError(t, err)
	assert.Equal(t, int64(2), in.ClientID)
	assert.Equal(t, int64(1), in.ProductID)
	assert.Equal(t, "150.00", in.TotalAmount.StringFixed(2))
	assert.Nil(t, in.OrderDate)
	assert.Nil(t, in.Status)
	assert.Zero(t, in.Quantity)
}

func TestToCreateInputOptionalFields(t *testing.T) {
	in, err := toCreateInput(decodeCreate(t,
		`{"client_id":2,"product_id":1,"total_amount":"10.5","order_date":"2024-05-01","status":" shipped ","quantity":4}`))
	require.NoError(t, err)
	require.NotNil(t, in.OrderDate)
	assert.Equal(t, "2024-05-01", in.OrderDate.Format("2006-01-02"))
	require.NotNil(t, in.Status)
	assert.Equal(t, " shipped ", *in.Status)
	assert.Equal(t, 4, in.Quantity)
}

func TestToCreateInputRejects(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{name: "missing client", body: `{"product_id":1,"total_amount":1}`, field: "client_id"},
		{name: "missing product", body: `{"client_id":1,"total_amount":1}`, field: "product_id"},
		{name: "missing amount", body: `{"client_id":1,"product_id":1}`, field: "total_amount"},
		{name: "null amount", body: `{"client_id":1,"product_id":1,"total_amount":null}`, field: "total_amount"},
		{name: "negative amount", body: `{"client_id":1,"product_id":1,"total_amount":-5}`, field: "total_amount"},
		{name: "three decimals", body: `{"client_id":1,"product_id":1,"total_amount":100.505}`, field: "total_amount"},
		{name: "too large", body: `{"client_id":1,"product_id":1,"total_amount":100000000}`, field: "total_amount"},
		{name: "zero quantity", body: `{"client_id":1,"product_id":1,"total_amount":1,"quantity":0}`, field: "quantity"},
		{name: "long status", body: `{"client_id":1,"product_id":1,"total_amount":1,"status":"` + strings.Repeat("x", 101) + `"}`, field: "status"},
		{name: "bad date", body: `{"client_id":1,"product_id":1,"total_amount":1,"order_date":"01/05/2024"}`, field: "order_date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := toCreateInput(decodeCreate(t, tt.body))
			require.Error(t, err)
			appErr := errorbank.From(err)
			assert.Equal(t, errorbank.KindBadRequest, appErr.Kind())
			assert.Contains(t, appErr.Details(), tt.field)
		})
	}
}

func TestToCreateInputAcceptsTrailingZeros(t *testing.T) {
	in, err := toCreateInput(decodeCreate(t, `{"client_id":1,"product_id":1,"total_amount":100.500}`))
	require.NoError(t, err)
	assert.Equal(t, "100.50", in.TotalAmount.StringFixed(2))
}

func TestToUpdateInput(t *testing.T) {
	var req dto.UpdateOrderRequest
	require.NoError(t, json.Unmarshal([]byte(`{"status":"delivered","total_amount":"7.25"}`), &req))

	in, err := toUpdateInput(req)
	require.NoError(t, err)
	require.NotNil(t, in.Status)
	require.NotNil(t, in.TotalAmount)
	assert.Equal(t, "delivered", *in.Status)
	assert.Equal(t, "7.25", in.TotalAmount.StringFixed(2))

	var empty dto.UpdateOrderRequest
	in, err = toUpdateInput(empty)
	require.NoError(t, err)
	assert.Nil(t, in.Status)
	assert.Nil(t, in.TotalAmount)

	var blank dto.UpdateOrderRequest
	require.NoError(t, json.Unmarshal([]byte(`{"status":""}`), &blank))
	in, err = toUpdateInput(blank)
	require.NoError(t, err)
	require.NotNil(t, in.Status)
	assert.Empty(t, *in.Status)

	var long dto.UpdateOrderRequest
	require.NoError(t, json.Unmarshal([]byte(`{"status":"`+strings.Repeat("é", 101)+`"}`), &long))
	_, err = toUpdateInput(long)
	assert.True(t, errorbank.IsKind(err, errorbank.KindBadRequest))
}

func TestToCreateInputKeepsExplicitEmptyStatus(t *testing.T) {
	in, err := toCreateInput(decodeCreate(t, `{"client_id":1,"product_id":1,"total_amount":1,"status":""}`))
	require.NoError(t, err)
	require.NotNil(t, in.Status)
	assert.Empty(t, *in.Status)

	in, err = toCreateInput(decodeCreate(t, `{"client_id":1,"product_id":1,"total_amount":1,"status":"`+strings.Repeat("x", 100)+`"}`))
	require.NoError(t, err)
	assert.Len(t, *in.Status, 100)
}
