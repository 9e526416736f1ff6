package loader

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderbook/internal/database"
	"github.com/Additional-Code/orderbook/internal/entity"
	"github.com/Additional-Code/orderbook/internal/repository/order"
	"github.com/Additional-Code/orderbook/internal/repository/record"
)

const instrumentation = "github.com/Additional-Code/orderbook/loader"

var (
	loaderTracer = otel.Tracer(instrumentation)
	loaderMeter  = otel.Meter(instrumentation)
)

// Report summarises one Load call.
type Report struct {
	BatchID  string    `json:"batch_id"`
	Records  int       `json:"records"`
	Loaded   int       `json:"loaded"`
	Failed   int       `json:"failed"`
	Orders   int       `json:"orders"`
	Failures []Failure `json:"failures,omitempty"`
}

// Failure describes a record that was rolled back.
type Failure struct {
	Index int    `json:"index"`
	Error string `json:"error"`
	err   error
}

// Err returns the underlying error of the failure.
func (f Failure) Err() error { return f.err }

// Loader merges feed records into the store.
type Loader struct {
	conns     *database.Connections
	customers *record.Customers
	items     *record.Items
	orders    *order.Repository
	logger    *zap.Logger
	processed metric.Int64Counter
}

// Params defines dependencies for constructing a Loader.
type Params struct {
	fx.In

	Connections *database.Connections
	Customers   *record.Customers
	Items       *record.Items
	Orders      *order.Repository
	Logger      *zap.Logger
}

// New wires a Loader.
func New(p Params) *Loader {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	processed, err := loaderMeter.Int64Counter("orderbook.loader.records",
		metric.WithDescription("Feed records processed by outcome"))
	if err != nil {
		logger.Warn("loader counter unavailable", zap.Error(err))
	}
	return &Loader{
		conns:     p.Connections,
		customers: p.Customers,
		items:     p.Items,
		orders:    p.Orders,
		logger:    logger.Named("loader"),
		processed: processed,
	}
}

// LoadFile decodes the feed at path and loads it.
func (l *Loader) LoadFile(ctx context.Context, path string) (Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return Report{}, fmt.Errorf("open feed: %w", err)
	}
	defer f.Close()

	records, err := Decode(f)
	if err != nil {
		return Report{}, err
	}
	return l.Load(ctx, records)
}

// Load applies records in order, one transaction per record. A failing
// record is rolled back and reported; the rest of the batch still loads.
// Load only returns an error when ctx ends before the batch is done.
func (l *Loader) Load(ctx context.Context, records []Record) (Report, error) {
	report := Report{BatchID: uuid.NewString(), Records: len(records)}
	ctx, span := loaderTracer.Start(ctx, "Loader.Load", trace.WithAttributes(
		attribute.String("loader.batch_id", report.BatchID),
		attribute.Int("loader.records", len(records)),
	))
	defer span.End()

	logger := l.logger.With(zap.String("batch_id", report.BatchID))
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			span.SetStatus(codes.Error, "cancelled")
			return report, fmt.Errorf("%w: batch stopped at record %d: %w", entity.ErrStoreUnavailable, i, err)
		}

		n, err := l.LoadRecord(ctx, rec)
		if err != nil {
			report.Failed++
			report.Failures = append(report.Failures, Failure{Index: i, Error: err.Error(), err: err})
			logger.Warn("feed record rolled back",
				zap.Int("index", i),
				zap.String("customer", rec.Name),
				zap.Error(err),
			)
			continue
		}
		report.Loaded++
		report.Orders += n
	}

	logger.Info("feed loaded",
		zap.Int("records", report.Records),
		zap.Int("loaded", report.Loaded),
		zap.Int("failed", report.Failed),
		zap.Int("orders", report.Orders),
	)
	return report, nil
}

// LoadRecord resolves the record's customer and items, creating them when
// absent, and stores one order per item. It returns the number of orders
// created.
func (l *Loader) LoadRecord(ctx context.Context, rec Record) (int, error) {
	ctx, span := loaderTracer.Start(ctx, "Loader.LoadRecord", trace.WithAttributes(
		attribute.String("customer.name", rec.Name),
		attribute.Int("loader.items", len(rec.Items)),
	))
	defer span.End()

	created := 0
	err := rec.Validate()
	if err == nil {
		err = l.conns.RunInTx(ctx, func(ctx context.Context) error {
			created = 0
			customerID, err := l.customers.Upsert(ctx, &entity.Customer{Name: rec.Name, Phone: rec.Phone})
			if err != nil {
				return fmt.Errorf("resolve customer: %w", err)
			}
			for _, it := range rec.Items {
				itemID, err := l.items.Upsert(ctx, &entity.Item{Name: it.Name, Price: it.Price})
				if err != nil {
					return fmt.Errorf("resolve item %q: %w", it.Name, err)
				}
				_, err = l.orders.Create(ctx, &entity.Order{
					CustomerID: customerID,
					ItemID:     itemID,
					Notes:      rec.Notes,
					Timestamp:  rec.Timestamp,
				})
				if err != nil {
					return fmt.Errorf("create order: %w", err)
				}
				created++
			}
			return nil
		})
	}

	outcome := "loaded"
	if err != nil {
		outcome = "failed"
		created = 0
		span.RecordError(err)
		span.SetStatus(codes.Error, "record failed")
		err = database.Classify(err)
	}
	if l.processed != nil {
		l.processed.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
	return created, err
}
