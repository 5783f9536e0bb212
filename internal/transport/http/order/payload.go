package order

import (
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/Additional-Code/orders/internal/dto"
	"github.com/Additional-Code/orders/internal/entity"
	service "github.com/Additional-Code/orders/internal/service/order"
	"github.com/Additional-Code/orders/pkg/errorbank"
)

// maxAmount is the exclusive upper bound of a NUMERIC(10,2) column.
var maxAmount = decimal.New(1, 8)

const maxStatusLen = 100

func toCreateInput(req dto.CreateOrderRequest) (service.CreateInput, error) {
	problems := map[string]any{}

	if req.ClientID == nil {
		problems["client_id"] = "is required"
	} else if *req.ClientID <= 0 {
		problems["client_id"] = "must be positive"
	}
	if req.ProductID == nil {
		problems["product_id"] = "is required"
	} else if *req.ProductID <= 0 {
		problems["product_id"] = "must be positive"
	}
	if !req.TotalAmount.Valid {
		problems["total_amount"] = "is required"
	} else if msg := checkAmount(req.TotalAmount.Decimal); msg != "" {
		problems["total_amount"] = msg
	}
	if req.Quantity != nil && *req.Quantity < 1 {
		problems["quantity"] = "must be at least 1"
	}
	if req.Status != nil && utf8.RuneCountInString(*req.Status) > maxStatusLen {
		problems["status"] = "is too long"
	}

	var orderDate *time.Time
	if req.OrderDate != nil {
		day, err := time.Parse(entity.DateLayout, *req.OrderDate)
		if err != nil {
			problems["order_date"] = "must be formatted as YYYY-MM-DD"
		} else {
			orderDate = &day
		}
	}

	if len(problems) > 0 {
		return service.CreateInput{}, errorbank.BadRequest("invalid order payload", errorbank.WithDetails(problems))
	}

	in := service.CreateInput{
		ClientID:    *req.ClientID,
		ProductID:   *req.ProductID,
		OrderDate:   orderDate,
		TotalAmount: req.TotalAmount.Decimal,
	}
	if req.Status != nil {
		status := *req.Status
		in.Status = &status
	}
	if req.Quantity != nil {
		in.Quantity = *req.Quantity
	}
	return in, nil
}

func toUpdateInput(req dto.UpdateOrderRequest) (service.UpdateInput, error) {
	problems := map[string]any{}
	var in service.UpdateInput

	if req.Status != nil {
		status := *req.Status
		if utf8.RuneCountInString(status) > maxStatusLen {
			problems["status"] = "is too long"
		}
		in.Status = &status
	}
	if req.TotalAmount.Valid {
		if msg := checkAmount(req.TotalAmount.Decimal); msg != "" {
			problems["total_amount"] = msg
		}
		amount := req.TotalAmount.Decimal
		in.TotalAmount = &amount
	}

	if len(problems) > 0 {
		return service.UpdateInput{}, errorbank.BadRequest("invalid order payload", errorbank.WithDetails(problems))
	}
	return in, nil
}

// checkAmount accepts non-negative amounts with at most two significant
// fractional digits that fit NUMERIC(10,2).
func checkAmount(amount decimal.Decimal) string {
	switch {
	case amount.IsNegative():
		return "must not be negative"
	case !amount.Equal(amount.Round(2)):
		return "must have at most 2 decimal places"
	case amount.GreaterThanOrEqual(maxAmount):
		return "is too large"
	default:
		return ""
	}
}
