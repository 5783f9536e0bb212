package seeder

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orders/internal/database"
	"github.com/Additional-Code/orders/internal/entity"
)

// Module provides the seeder.
var Module = fx.Provide(New)

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	db     *bun.DB
	logger *zap.Logger
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, logger *zap.Logger) *Seeder {
	return &Seeder{db: conns.Writer, logger: logger}
}

// Orders inserts a handful of sample orders into an empty orders table.
// It returns the number of rows inserted.
func (s *Seeder) Orders(ctx context.Context) (int, error) {
	existing, err := s.db.NewSelect().Model((*entity.Order)(nil)).Count(ctx)
	if err != nil {
		return 0, err
	}
	if existing > 0 {
		if s.logger != nil {
			s.logger.Info("orders already present, skipping seed", zap.Int("existing", existing))
		}
		return 0, nil
	}

	samples := sampleOrders(time.Now().UTC())
	if _, err := s.db.NewInsert().Model(&samples).Exec(ctx); err != nil {
		return 0, err
	}

	if s.logger != nil {
		s.logger.Info("seeded orders", zap.Int("count", len(samples)))
	}
	return len(samples), nil
}

func sampleOrders(now time.Time) []entity.Order {
	today := entity.Day(now)
	return []entity.Order{
		{ClientID: 1, ProductID: 1, OrderDate: today, Status: entity.DefaultStatus, TotalAmount: decimal.RequireFromString("150.00"), Quantity: 1, CreatedAt: now},
		{ClientID: 1, ProductID: 3, OrderDate: today.AddDate(0, 0, -2), Status: "shipped", TotalAmount: decimal.RequireFromString("42.50"), Quantity: 2, CreatedAt: now},
		{ClientID: 2, ProductID: 2, OrderDate: today.AddDate(0, 0, -7), Status: "delivered", TotalAmount: decimal.RequireFromString("19.99"), Quantity: 1, CreatedAt: now},
	}
}
