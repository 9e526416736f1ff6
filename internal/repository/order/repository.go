package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/orderbook/internal/database"
	"github.com/Additional-Code/orderbook/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/orderbook/repository/order")

// Repository encapsulates read/write access for orders.
type Repository struct {
	conns *database.Connections
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{conns: conns}
}

// Create persists a new order after checking that its customer and item
// exist. The check and the insert share one transaction.
func (r *Repository) Create(ctx context.Context, order *entity.Order) (int64, error) {
	if order == nil {
		return 0, fmt.Errorf("%w: nil order", entity.ErrInvalidInput)
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Create", trace.WithAttributes(orderAttrs(order)...))
	defer span.End()

	err := r.conns.RunInTx(ctx, func(ctx context.Context) error {
		db := r.conns.WriterFor(ctx)
		if err := checkReferences(ctx, db, order); err != nil {
			return err
		}
		insert := db.NewInsert().
			Model(order).
			Column("customer_id", "item_id", "notes", "timestamp")
		_, err := database.ReturningID(db, insert).Exec(ctx)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return 0, database.Classify(err)
	}
	return order.ID, nil
}

// GetByID fetches an order by primary key using the read replica when available.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order := new(entity.Order)
	err := r.conns.ReaderFor(ctx).NewSelect().Model(order).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, notFound(id)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, database.Classify(err)
	}
	return order, nil
}

// List returns all orders ordered by id.
func (r *Repository) List(ctx context.Context) ([]entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.List")
	defer span.End()

	orders := make([]entity.Order, 0)
	if err := r.conns.ReaderFor(ctx).NewSelect().Model(&orders).Order("id ASC").Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, database.Classify(err)
	}
	return orders, nil
}

// Update replaces all four fields of the order with the given id,
// re-validating its references.
func (r *Repository) Update(ctx context.Context, id int64, order *entity.Order) error {
	if order == nil {
		return fmt.Errorf("%w: nil order", entity.ErrInvalidInput)
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Update", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	err := r.conns.RunInTx(ctx, func(ctx context.Context) error {
		db := r.conns.WriterFor(ctx)
		exists, err := db.NewSelect().Model((*entity.Order)(nil)).Where("id = ?", id).Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			return notFound(id)
		}
		if err := checkReferences(ctx, db, order); err != nil {
			return err
		}
		_, err = db.NewUpdate().
			Model(order).
			Column("customer_id", "item_id", "notes", "timestamp").
			Where("id = ?", id).
			Exec(ctx)
		return err
	})
	if err != nil {
		span.SetStatus(codes.Error, "update failed")
		return database.Classify(err)
	}
	order.ID = id
	return nil
}

// Delete removes the order with the given id.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Delete", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	res, err := r.conns.WriterFor(ctx).NewDelete().Model((*entity.Order)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return database.Classify(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		span.SetStatus(codes.Error, "not found")
		return notFound(id)
	}
	return nil
}

func checkReferences(ctx context.Context, db bun.IDB, order *entity.Order) error {
	refs := []struct {
		kind  string
		model any
		id    int64
	}{
		{"customer", (*entity.Customer)(nil), order.CustomerID},
		{"item", (*entity.Item)(nil), order.ItemID},
	}
	for _, ref := range refs {
		ok, err := db.NewSelect().Model(ref.model).Where("id = ?", ref.id).Exists(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s %d does not exist", entity.ErrForeignKeyViolation, ref.kind, ref.id)
		}
	}
	return nil
}

func notFound(id int64) error {
	return fmt.Errorf("%w: order %d", entity.ErrNotFound, id)
}

func orderAttrs(order *entity.Order) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int64("order.customer_id", order.CustomerID),
		attribute.Int64("order.item_id", order.ItemID),
		attribute.Int64("order.timestamp", order.Timestamp),
	}
}
