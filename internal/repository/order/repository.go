package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/orders/internal/database"
	"github.com/Additional-Code/orders/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/orders/repository/order")

// ErrNotFound is returned when an order is missing.
var ErrNotFound = errors.New("order not found")

// UpdateFields lists the mutable columns of an order; nil means unchanged.
type UpdateFields struct {
	Status      *string
	TotalAmount *decimal.Decimal
}

// Repository encapsulates read/write access for orders.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// List returns every order in insertion order.
func (r *Repository) List(ctx context.Context) ([]entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.List")
	defer span.End()

	var orders []entity.Order
	if err := r.reader.NewSelect().Model(&orders).OrderExpr("o.id ASC").Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return orders, nil
}

// Create persists a new order using the write connection and back-fills its id.
func (r *Repository) Create(ctx context.Context, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Create", trace.WithAttributes(
		attribute.Int64("order.client_id", order.ClientID),
		attribute.Int64("order.product_id", order.ProductID),
	))
	defer span.End()

	_, err := r.writer.NewInsert().Model(order).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// GetByID fetches an order by primary key using the read replica when available.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order := new(entity.Order)
	err := r.reader.NewSelect().Model(order).Where("o.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return order, nil
}

// Update applies the mutable fields to an existing order in one transaction
// and returns the stored row.
func (r *Repository) Update(ctx context.Context, id int64, fields UpdateFields) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Update", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order := new(entity.Order)
	err := r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := tx.NewSelect().Model(order).Where("o.id = ?", id).Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		if fields.Status != nil {
			order.Status = *fields.Status
		}
		if fields.TotalAmount != nil {
			order.TotalAmount = *fields.TotalAmount
		}
		order.UpdatedAt = time.Now().UTC()

		_, err := tx.NewUpdate().
			Model(order).
			Column("status", "total_amount", "updated_at").
			WherePK().
			Exec(ctx)
		return err
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			span.RecordError(err)
		}
		span.SetStatus(codes.Error, "update failed")
		return nil, err
	}
	return order, nil
}

// Delete removes a single order.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Delete", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	res, err := r.writer.NewDelete().Model((*entity.Order)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		span.SetStatus(codes.Error, "not found")
		return ErrNotFound
	}
	return nil
}

// DeleteByClient removes every order of a client atomically and returns the
// ids that were deleted. Orders inserted for the client after the snapshot
// survive; the caller treats that window as eventual consistency.
func (r *Repository) DeleteByClient(ctx context.Context, clientID int64) ([]int64, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.DeleteByClient", trace.WithAttributes(attribute.Int64("order.client_id", clientID)))
	defer span.End()

	var ids []int64
	err := r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := tx.NewSelect().
			Model((*entity.Order)(nil)).
			Column("o.id").
			Where("o.client_id = ?", clientID).
			OrderExpr("o.id ASC").
			Scan(ctx, &ids); err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		res, err := tx.NewDelete().Model((*entity.Order)(nil)).Where("id IN (?)", bun.In(ids)).Exec(ctx)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if int(affected) != len(ids) {
			return fmt.Errorf("cascade delete for client %d removed %d of %d rows", clientID, affected, len(ids))
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cascade delete failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("order.deleted", len(ids)))
	return ids, nil
}
