package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// DefaultStatus is assigned to orders created without an explicit status.
const DefaultStatus = "in progress"

// DateLayout is the wire format of OrderDate.
const DateLayout = "2006-01-02"

// Order represents a purchase order stored in the relational database.
type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID          int64           `bun:"id,pk,autoincrement"`
	ClientID    int64           `bun:"client_id,notnull"`
	ProductID   int64           `bun:"product_id,notnull"`
	OrderDate   time.Time       `bun:"order_date,type:date,notnull"`
	Status      string          `bun:"status,type:varchar(100),notnull"`
	TotalAmount decimal.Decimal `bun:"total_amount,type:numeric(10,2),notnull"`
	Quantity    int             `bun:"quantity,notnull,default:1"`
	CreatedAt   time.Time       `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time       `bun:"updated_at,nullzero"`
}

// Day truncates t to a UTC calendar day, the resolution of OrderDate.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
