package order

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/orderbook/internal/dto"
	"github.com/Additional-Code/orderbook/internal/entity"
	"github.com/Additional-Code/orderbook/internal/presentation/http/response"
	service "github.com/Additional-Code/orderbook/internal/service/order"
	"github.com/Additional-Code/orderbook/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/orderbook/transport/http/order")

// Handler exposes order endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs an order Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo group.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/orders")
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.getByID)
	g.PUT("/:id", h.update)
	g.DELETE("/:id", h.delete)
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	id, err := response.ParamID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.getByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := h.svc.Get(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(toDTO(order)).Build()
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.list")
	defer span.End()

	orders, err := h.svc.List(ctx)
	if err != nil {
		return b.WithError(err).Build()
	}
	out := make([]dto.OrderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, toDTO(&orders[i]))
	}
	return response.WithList(b, out).Build()
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)

	order, err := bind(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.create")
	span.SetAttributes(
		attribute.Int64("order.customer_id", order.CustomerID),
		attribute.Int64("order.item_id", order.ItemID),
	)
	defer span.End()

	created, err := h.svc.Create(ctx, order)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithStatus(http.StatusCreated).WithMessage("order created").WithData(toDTO(created)).Build()
}

func (h *Handler) update(c echo.Context) error {
	b := response.New(c)

	id, err := response.ParamID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	order, err := bind(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.update", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	updated, err := h.svc.Update(ctx, id, order)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithMessage("order updated").WithData(toDTO(updated)).Build()
}

func (h *Handler) delete(c echo.Context) error {
	b := response.New(c)

	id, err := response.ParamID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.delete", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if err := h.svc.Delete(ctx, id); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithMessage("order deleted").Build()
}

func bind(c echo.Context) (*entity.Order, error) {
	var payload dto.OrderRequest
	if err := c.Bind(&payload); err != nil {
		return nil, errorbank.BadRequest("invalid payload", errorbank.WithCause(err))
	}
	return &entity.Order{
		CustomerID: payload.CustomerID,
		ItemID:     payload.ItemID,
		Notes:      payload.Notes,
		Timestamp:  payload.Timestamp,
	}, nil
}

func toDTO(order *entity.Order) dto.OrderResponse {
	return dto.OrderResponse{
		ID:         order.ID,
		CustomerID: order.CustomerID,
		ItemID:     order.ItemID,
		Notes:      order.Notes,
		Timestamp:  order.Timestamp,
	}
}
