package feed

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Additional-Code/orderbook/internal/dto"
	"github.com/Additional-Code/orderbook/internal/loader"
	"github.com/Additional-Code/orderbook/internal/presentation/http/response"
	"github.com/Additional-Code/orderbook/internal/service/outcome"
)

const maxFeedBody = "16M"

var httpTracer = otel.Tracer("github.com/Additional-Code/orderbook/transport/http/feed")

// Handler accepts order feeds over HTTP and runs them through the loader.
type Handler struct {
	loader *loader.Loader
}

// NewHandler constructs a feed Handler.
func NewHandler(l *loader.Loader) *Handler {
	return &Handler{loader: l}
}

// Register mounts POST /feed.
func Register(e *echo.Echo, h *Handler) {
	e.POST("/feed", h.load, middleware.BodyLimit(maxFeedBody))
}

func (h *Handler) load(c echo.Context) error {
	b := response.New(c)

	records, err := loader.Decode(c.Request().Body)
	if err != nil {
		return b.WithError(outcome.Translate(err, "feed")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "feed.load")
	span.SetAttributes(attribute.Int("feed.records", len(records)))
	defer span.End()

	report, err := h.loader.Load(ctx, records)
	if err != nil {
		return b.WithError(outcome.Translate(err, "feed")).WithMeta("batch_id", report.BatchID).Build()
	}
	return b.WithMessage("feed loaded").WithData(toDTO(report)).Build()
}

func toDTO(report loader.Report) dto.FeedResponse {
	out := dto.FeedResponse{
		BatchID: report.BatchID,
		Records: report.Records,
		Loaded:  report.Loaded,
		Failed:  report.Failed,
		Orders:  report.Orders,
	}
	for _, f := range report.Failures {
		out.Failures = append(out.Failures, dto.FeedFailure{Index: f.Index, Error: f.Error})
	}
	return out
}
