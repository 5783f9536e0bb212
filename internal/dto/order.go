package dto

import (
	"github.com/shopspring/decimal"

	"github.com/Additional-Code/orders/internal/entity"
)

// OrderResponse represents an order as exposed via transport layers.
type OrderResponse struct {
	ID          int64  `json:"id"`
	ClientID    int64  `json:"client_id"`
	ProductID   int64  `json:"product_id"`
	OrderDate   string `json:"order_date"`
	Status      string `json:"status"`
	TotalAmount string `json:"total_amount"`
	Quantity    int    `json:"quantity"`
}

// CreateOrderRequest is the raw create payload. Pointer fields distinguish
// absent values from zero values.
type CreateOrderRequest struct {
	ClientID    *int64              `json:"client_id"`
	ProductID   *int64              `json:"product_id"`
	OrderDate   *string             `json:"order_date"`
	Status      *string             `json:"status"`
	TotalAmount decimal.NullDecimal `json:"total_amount"`
	Quantity    *int                `json:"quantity"`
}

// UpdateOrderRequest is the raw update payload; only these fields are mutable.
type UpdateOrderRequest struct {
	Status      *string             `json:"status"`
	TotalAmount decimal.NullDecimal `json:"total_amount"`
}

// MessageResponse carries a human readable confirmation.
type MessageResponse struct {
	Message string `json:"message"`
}

// FromOrder maps an entity onto its transport representation.
func FromOrder(order *entity.Order) OrderResponse {
	return OrderResponse{
		ID:          order.ID,
		ClientID:    order.ClientID,
		ProductID:   order.ProductID,
		OrderDate:   order.OrderDate.Format(entity.DateLayout),
		Status:      order.Status,
		TotalAmount: order.TotalAmount.StringFixed(2),
		Quantity:    order.Quantity,
	}
}

// FromOrders maps a slice, never returning nil so JSON renders [].
func FromOrders(orders []entity.Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, FromOrder(&orders[i]))
	}
	return out
}
