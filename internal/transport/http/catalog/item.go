package catalog

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/orderbook/internal/dto"
	"github.com/Additional-Code/orderbook/internal/entity"
	"github.com/Additional-Code/orderbook/internal/presentation/http/response"
	"github.com/Additional-Code/orderbook/internal/service/catalog"
	"github.com/Additional-Code/orderbook/pkg/errorbank"
)

// ItemHandler exposes item endpoints over HTTP.
type ItemHandler struct {
	svc *catalog.Items
}

// NewItemHandler constructs an ItemHandler.
func NewItemHandler(svc *catalog.Items) *ItemHandler {
	return &ItemHandler{svc: svc}
}

// RegisterItems mounts item routes.
func RegisterItems(e *echo.Echo, h *ItemHandler) {
	g := e.Group("/items")
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.PUT("/:id", h.update)
	g.DELETE("/:id", h.delete)
}

func (h *ItemHandler) create(c echo.Context) error {
	b := response.New(c)

	item, err := bindItem(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "items.create", trace.WithAttributes(attribute.String("item.name", item.Name)))
	defer span.End()

	created, err := h.svc.Create(ctx, item)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithMessage("item created").WithData(itemDTO(created)).Build()
}

func (h *ItemHandler) get(c echo.Context) error {
	b := response.New(c)

	id, err := response.ParamID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "items.get", trace.WithAttributes(attribute.Int64("item.id", id)))
	defer span.End()

	item, err := h.svc.Get(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(itemDTO(item)).Build()
}

func (h *ItemHandler) list(c echo.Context) error {
	b := response.New(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "items.list")
	defer span.End()

	items, err := h.svc.List(ctx)
	if err != nil {
		return b.WithError(err).Build()
	}
	out := make([]dto.ItemResponse, 0, len(items))
	for i := range items {
		out = append(out, itemDTO(&items[i]))
	}
	return response.WithList(b, out).Build()
}

func (h *ItemHandler) update(c echo.Context) error {
	b := response.New(c)

	id, err := response.ParamID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	item, err := bindItem(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "items.update", trace.WithAttributes(attribute.Int64("item.id", id)))
	defer span.End()

	updated, err := h.svc.Update(ctx, id, item)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithMessage("item updated").WithData(itemDTO(updated)).Build()
}

func (h *ItemHandler) delete(c echo.Context) error {
	b := response.New(c)

	id, err := response.ParamID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "items.delete", trace.WithAttributes(attribute.Int64("item.id", id)))
	defer span.End()

	if err := h.svc.Delete(ctx, id); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithMessage("item deleted").Build()
}

func bindItem(c echo.Context) (*entity.Item, error) {
	var payload dto.ItemRequest
	if err := c.Bind(&payload); err != nil {
		return nil, errorbank.BadRequest("invalid payload", errorbank.WithCause(err))
	}
	return &entity.Item{Name: payload.Name, Price: payload.Price}, nil
}

func itemDTO(item *entity.Item) dto.ItemResponse {
	return dto.ItemResponse{ID: item.ID, Name: item.Name, Price: item.Price}
}
