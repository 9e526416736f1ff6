package order

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderbook/internal/entity"
	repo "github.com/Additional-Code/orderbook/internal/repository/order"
	"github.com/Additional-Code/orderbook/internal/service/outcome"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/orderbook/service/order")

// Clock returns the current time; tests substitute a fixed one.
type Clock func() time.Time

// Service encapsulates business logic around orders.
type Service struct {
	repo   *repo.Repository
	logger *zap.Logger
	now    Clock
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository *repo.Repository
	Logger     *zap.Logger
	Clock      Clock `optional:"true"`
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	now := p.Clock
	if now == nil {
		now = time.Now
	}
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: p.Repository, logger: logger, now: now}
}

// Create stores an order. A zero timestamp is replaced by the current time.
func (s *Service) Create(ctx context.Context, order *entity.Order) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Create")
	defer span.End()

	if err := s.prepare(order); err != nil {
		return nil, outcome.Translate(err, "order")
	}
	span.SetAttributes(attribute.Int64("order.customer_id", order.CustomerID), attribute.Int64("order.item_id", order.ItemID))

	if _, err := s.repo.Create(ctx, order); err != nil {
		s.fail(span, "create", err)
		return nil, outcome.Translate(err, "order")
	}
	s.logger.Debug("order created", zap.Int64("id", order.ID), zap.Int64("customer_id", order.CustomerID))
	return order, nil
}

// Get retrieves an order by id.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Get", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.fail(span, "get", err)
		return nil, outcome.Translate(err, "order")
	}
	return order, nil
}

// List returns all orders by ascending id.
func (s *Service) List(ctx context.Context) ([]entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.List")
	defer span.End()

	orders, err := s.repo.List(ctx)
	if err != nil {
		s.fail(span, "list", err)
		return nil, outcome.Translate(err, "order")
	}
	return orders, nil
}

// Update replaces an order. A zero timestamp is replaced by the current time.
func (s *Service) Update(ctx context.Context, id int64, order *entity.Order) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Update", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if err := s.prepare(order); err != nil {
		return nil, outcome.Translate(err, "order")
	}
	if err := s.repo.Update(ctx, id, order); err != nil {
		s.fail(span, "update", err)
		return nil, outcome.Translate(err, "order")
	}
	return order, nil
}

// Delete removes an order.
func (s *Service) Delete(ctx context.Context, id int64) error {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Delete", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if err := s.repo.Delete(ctx, id); err != nil {
		s.fail(span, "delete", err)
		return outcome.Translate(err, "order")
	}
	return nil
}

func (s *Service) prepare(order *entity.Order) error {
	if order == nil {
		return entity.ErrInvalidInput
	}
	if err := order.Validate(); err != nil {
		return err
	}
	if order.Timestamp == 0 {
		order.Timestamp = s.now().UTC().Unix()
	}
	return nil
}

func (s *Service) fail(span trace.Span, op string, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, op+" failed")
	s.logger.Debug("order operation failed", zap.String("op", op), zap.Error(err))
}
