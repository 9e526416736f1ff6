package catalog

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderbook/internal/entity"
	"github.com/Additional-Code/orderbook/internal/repository/record"
	"github.com/Additional-Code/orderbook/internal/service/outcome"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/orderbook/service/catalog")

// Entity is a natural-keyed record the request layer can validate.
type Entity[T any] interface {
	record.Model[T]
	Validate() error
}

// Service exposes CRUD over one natural-keyed entity and translates store
// outcomes into errorbank errors.
type Service[T any, P Entity[T]] struct {
	repo   *record.Repository[T, P]
	logger *zap.Logger
	kind   string
}

// Customers serves entity.Customer.
type Customers = Service[entity.Customer, *entity.Customer]

// Items serves entity.Item.
type Items = Service[entity.Item, *entity.Item]

// NewCustomers wires the customer service.
func NewCustomers(repo *record.Customers, logger *zap.Logger) *Customers {
	return New(repo, logger)
}

// NewItems wires the item service.
func NewItems(repo *record.Items, logger *zap.Logger) *Items {
	return New(repo, logger)
}

// New builds a Service on repo.
func New[T any, P Entity[T]](repo *record.Repository[T, P], logger *zap.Logger) *Service[T, P] {
	if logger == nil {
		logger = zap.NewNop()
	}
	kind := P(new(T)).Kind()
	return &Service[T, P]{repo: repo, logger: logger.With(zap.String("entity", kind)), kind: kind}
}

// Create stores a new row; an existing natural key is a conflict.
func (s *Service[T, P]) Create(ctx context.Context, row P) (P, error) {
	ctx, span := serviceTracer.Start(ctx, "CatalogService.Create", trace.WithAttributes(attribute.String("entity", s.kind)))
	defer span.End()

	if err := row.Validate(); err != nil {
		return nil, outcome.Translate(err, s.kind)
	}
	if _, err := s.repo.Create(ctx, row); err != nil {
		s.fail(span, "create", err)
		return nil, outcome.Translate(err, s.kind)
	}
	return row, nil
}

// Get loads one row.
func (s *Service[T, P]) Get(ctx context.Context, id int64) (P, error) {
	ctx, span := serviceTracer.Start(ctx, "CatalogService.Get", trace.WithAttributes(
		attribute.String("entity", s.kind), attribute.Int64("id", id)))
	defer span.End()

	row, err := s.repo.Get(ctx, id)
	if err != nil {
		s.fail(span, "get", err)
		return nil, outcome.Translate(err, s.kind)
	}
	return row, nil
}

// List returns every row by ascending id.
func (s *Service[T, P]) List(ctx context.Context) ([]T, error) {
	ctx, span := serviceTracer.Start(ctx, "CatalogService.List", trace.WithAttributes(attribute.String("entity", s.kind)))
	defer span.End()

	rows, err := s.repo.List(ctx)
	if err != nil {
		s.fail(span, "list", err)
		return nil, outcome.Translate(err, s.kind)
	}
	return rows, nil
}

// Update replaces the row's mutable fields and returns the stored row.
func (s *Service[T, P]) Update(ctx context.Context, id int64, row P) (P, error) {
	ctx, span := serviceTracer.Start(ctx, "CatalogService.Update", trace.WithAttributes(
		attribute.String("entity", s.kind), attribute.Int64("id", id)))
	defer span.End()

	if err := row.Validate(); err != nil {
		return nil, outcome.Translate(err, s.kind)
	}
	if err := s.repo.Update(ctx, id, row); err != nil {
		s.fail(span, "update", err)
		return nil, outcome.Translate(err, s.kind)
	}
	return s.Get(ctx, id)
}

// Delete removes a row. Rows referenced by orders are rejected.
func (s *Service[T, P]) Delete(ctx context.Context, id int64) error {
	ctx, span := serviceTracer.Start(ctx, "CatalogService.Delete", trace.WithAttributes(
		attribute.String("entity", s.kind), attribute.Int64("id", id)))
	defer span.End()

	if err := s.repo.Delete(ctx, id); err != nil {
		s.fail(span, "delete", err)
		return outcome.Translate(err, s.kind)
	}
	return nil
}

func (s *Service[T, P]) fail(span trace.Span, op string, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, op+" failed")
	s.logger.Debug("catalog operation failed", zap.String("op", op), zap.Error(err))
}
