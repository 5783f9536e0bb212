package event

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Additional-Code/orders/internal/entity"
)

// OrderCreated notifies downstream services that an order was committed.
type OrderCreated struct {
	OrderID     int64  `json:"order_id"`
	ClientID    int64  `json:"client_id"`
	ProductID   int64  `json:"product_id"`
	TotalAmount string `json:"total_amount"`
}

// StockDecrement asks the stock service to remove units of a product.
type StockDecrement struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// ClientDeleted is emitted by the client service when a client is removed.
// ClientID is a pointer so an absent field can be told apart from zero.
type ClientDeleted struct {
	ClientID *int64 `json:"client_id"`
}

// UnmarshalJSON accepts client_id as a JSON integer, an integral float, or
// a string holding either. Absent and null leave ClientID nil.
func (e *ClientDeleted) UnmarshalJSON(data []byte) error {
	var raw struct {
		ClientID json.RawMessage `json:"client_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	e.ClientID = nil
	if len(raw.ClientID) == 0 || string(raw.ClientID) == "null" {
		return nil
	}

	text := string(raw.ClientID)
	var quoted string
	if err := json.Unmarshal(raw.ClientID, &quoted); err == nil {
		text = strings.TrimSpace(quoted)
	}

	id, err := parseID(text)
	if err != nil {
		return fmt.Errorf("client_id %s: %w", raw.ClientID, err)
	}
	e.ClientID = &id
	return nil
}

func parseID(text string) (int64, error) {
	if id, err := strconv.ParseInt(text, 10, 64); err == nil {
		return id, nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number")
	}
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("not an integer")
	}
	return int64(f), nil
}

// NewOrderCreated builds the notification payload for an order.
func NewOrderCreated(order *entity.Order) OrderCreated {
	return OrderCreated{
		OrderID:     order.ID,
		ClientID:    order.ClientID,
		ProductID:   order.ProductID,
		TotalAmount: order.TotalAmount.StringFixed(2),
	}
}
