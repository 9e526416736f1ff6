package catalog

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/orderbook/internal/dto"
	"github.com/Additional-Code/orderbook/internal/entity"
	"github.com/Additional-Code/orderbook/internal/presentation/http/response"
	"github.com/Additional-Code/orderbook/internal/service/catalog"
	"github.com/Additional-Code/orderbook/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/orderbook/transport/http/catalog")

// CustomerHandler exposes customer endpoints over HTTP.
type CustomerHandler struct {
	svc *catalog.Customers
}

// NewCustomerHandler constructs a CustomerHandler.
func NewCustomerHandler(svc *catalog.Customers) *CustomerHandler {
	return &CustomerHandler{svc: svc}
}

// RegisterCustomers mounts customer routes, including the legacy
// /all_customers listing.
func RegisterCustomers(e *echo.Echo, h *CustomerHandler) {
	g := e.Group("/customers")
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.PUT("/:id", h.update)
	g.DELETE("/:id", h.delete)
	e.GET("/all_customers", h.all)
}

func (h *CustomerHandler) create(c echo.Context) error {
	b := response.New(c)

	customer, err := bindCustomer(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "customers.create")
	defer span.End()

	created, err := h.svc.Create(ctx, customer)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithMessage("customer created").WithData(customerDTO(created)).Build()
}

func (h *CustomerHandler) get(c echo.Context) error {
	b := response.New(c)

	id, err := response.ParamID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "customers.get", trace.WithAttributes(attribute.Int64("customer.id", id)))
	defer span.End()

	customer, err := h.svc.Get(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(customerDTO(customer)).Build()
}

func (h *CustomerHandler) list(c echo.Context) error {
	b := response.New(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "customers.list")
	defer span.End()

	customers, err := h.svc.List(ctx)
	if err != nil {
		return b.WithError(err).Build()
	}
	out := make([]dto.CustomerResponse, 0, len(customers))
	for i := range customers {
		out = append(out, customerDTO(&customers[i]))
	}
	return response.WithList(b, out).Build()
}

// all keeps the original listing shape: customers keyed by id, 404 when the
// table is empty.
func (h *CustomerHandler) all(c echo.Context) error {
	b := response.New(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "customers.all")
	defer span.End()

	customers, err := h.svc.List(ctx)
	if err != nil {
		return b.WithError(err).Build()
	}
	if len(customers) == 0 {
		return b.WithError(errorbank.NotFound("no customers found")).Build()
	}
	byID := make(map[int64]dto.CustomerRequest, len(customers))
	for _, customer := range customers {
		byID[customer.ID] = dto.CustomerRequest{Name: customer.Name, Phone: customer.Phone}
	}
	return b.WithData(byID).WithMeta("count", len(byID)).Build()
}

func (h *CustomerHandler) update(c echo.Context) error {
	b := response.New(c)

	id, err := response.ParamID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	customer, err := bindCustomer(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "customers.update", trace.WithAttributes(attribute.Int64("customer.id", id)))
	defer span.End()

	updated, err := h.svc.Update(ctx, id, customer)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithMessage("customer updated").WithData(customerDTO(updated)).Build()
}

func (h *CustomerHandler) delete(c echo.Context) error {
	b := response.New(c)

	id, err := response.ParamID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "customers.delete", trace.WithAttributes(attribute.Int64("customer.id", id)))
	defer span.End()

	if err := h.svc.Delete(ctx, id); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithMessage("customer deleted").Build()
}

func bindCustomer(c echo.Context) (*entity.Customer, error) {
	var payload dto.CustomerRequest
	if err := c.Bind(&payload); err != nil {
		return nil, errorbank.BadRequest("invalid payload", errorbank.WithCause(err))
	}
	return &entity.Customer{Name: payload.Name, Phone: payload.Phone}, nil
}

func customerDTO(customer *entity.Customer) dto.CustomerResponse {
	return dto.CustomerResponse{ID: customer.ID, Name: customer.Name, Phone: customer.Phone}
}
