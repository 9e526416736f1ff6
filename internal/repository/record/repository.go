package record

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/feature"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderbook/internal/config"
	"github.com/Additional-Code/orderbook/internal/database"
	"github.com/Additional-Code/orderbook/internal/entity"
)

const instrumentation = "github.com/Additional-Code/orderbook/repository/record"

var (
	repoTracer = otel.Tracer(instrumentation)
	repoMeter  = otel.Meter(instrumentation)
)

// Model constrains P to a pointer to T implementing entity.Record.
type Model[T any] interface {
	*T
	entity.Record
}

// Repository reads and writes one natural-keyed entity table.
type Repository[T any, P Model[T]] struct {
	conns    *database.Connections
	logger   *zap.Logger
	kind     string
	span     string
	attempts int
	backoff  time.Duration
	retries  metric.Int64Counter
}

// Customers is the repository for entity.Customer, keyed on (name, phone).
type Customers = Repository[entity.Customer, *entity.Customer]

// Items is the repository for entity.Item, keyed on name.
type Items = Repository[entity.Item, *entity.Item]

// NewCustomers wires the customer repository.
func NewCustomers(conns *database.Connections, cfg config.Config, logger *zap.Logger) *Customers {
	return New[entity.Customer](conns, cfg.Database, logger)
}

// NewItems wires the item repository.
func NewItems(conns *database.Connections, cfg config.Config, logger *zap.Logger) *Items {
	return New[entity.Item](conns, cfg.Database, logger)
}

// New builds a repository for T.
func New[T any, P Model[T]](conns *database.Connections, cfg config.Database, logger *zap.Logger) *Repository[T, P] {
	kind := P(new(T)).Kind()
	if logger == nil {
		logger = zap.NewNop()
	}
	retries, err := repoMeter.Int64Counter("orderbook.upsert.retries",
		metric.WithDescription("Upsert attempts repeated after a lookup miss or transient store error"))
	if err != nil {
		logger.Warn("upsert retry counter unavailable", zap.Error(err))
	}
	return &Repository[T, P]{
		conns:    conns,
		logger:   logger.With(zap.String("entity", kind)),
		kind:     kind,
		span:     strings.ToUpper(kind[:1]) + kind[1:] + "Repository",
		attempts: max(cfg.UpsertAttempts, 1),
		backoff:  cfg.UpsertBackoff,
		retries:  retries,
	}
}

// Upsert returns the id of the row matching row's natural key, inserting row
// first when no such row exists. An existing row is never modified; row is
// refreshed with the stored values.
//
// Inside a caller's transaction every attempt runs under a savepoint, and
// transient store errors are returned instead of retried: the enclosing
// transaction has to be replayed as a whole.
func (r *Repository[T, P]) Upsert(ctx context.Context, row P) (int64, error) {
	if row == nil {
		return 0, fmt.Errorf("%w: nil %s", entity.ErrInvalidInput, r.kind)
	}
	ctx, span := repoTracer.Start(ctx, r.span+".Upsert", trace.WithAttributes(naturalKeyAttrs(row)...))
	defer span.End()

	joined := database.InTx(ctx)
	span.SetAttributes(attribute.Bool("db.tx.joined", joined))

	attempt := 0
	backoff := retry.WithMaxRetries(uint64(r.attempts-1), retry.NewExponential(max(r.backoff, time.Millisecond)))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			r.recordRetry(ctx)
		}
		err := r.conns.RunInSavepoint(ctx, func(ctx context.Context) error {
			db := r.conns.WriterFor(ctx)
			insert := db.NewInsert().
				Model(row).
				Column(row.MutableColumns()...).
				Returning("NULL")
			if _, err := ignoreConflict(db, insert).Exec(ctx); err != nil {
				return err
			}
			lookup := r.naturalKeyQuery(db.NewSelect().Model(row), row).Limit(1)
			return lockingRead(db, lookup).Scan(ctx)
		})
		retryable := errors.Is(err, sql.ErrNoRows) || (database.IsTransient(err) && !joined)
		if retryable {
			r.logger.Debug("upsert attempt failed", zap.Int("attempt", attempt), zap.Error(err))
			return retry.RetryableError(err)
		}
		return err
	})
	if err == nil {
		return row.PrimaryKey(), nil
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, "upsert failed")
	if errors.Is(err, sql.ErrNoRows) || database.IsTransient(err) {
		r.logger.Warn("upsert gave up", zap.Int("attempts", attempt), zap.Bool("joined", joined), zap.Error(err))
		return 0, fmt.Errorf("%w: upsert %s after %d attempts: %w", entity.ErrStoreUnavailable, r.kind, attempt, err)
	}
	return 0, database.Classify(err)
}

// Create inserts row and fails with entity.ErrDuplicateKey when its natural
// key is taken.
func (r *Repository[T, P]) Create(ctx context.Context, row P) (int64, error) {
	if row == nil {
		return 0, fmt.Errorf("%w: nil %s", entity.ErrInvalidInput, r.kind)
	}
	ctx, span := repoTracer.Start(ctx, r.span+".Create", trace.WithAttributes(naturalKeyAttrs(row)...))
	defer span.End()

	db := r.conns.WriterFor(ctx)
	insert := db.NewInsert().
		Model(row).
		Column(row.MutableColumns()...)
	_, err := database.ReturningID(db, insert).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return 0, database.Classify(err)
	}
	return row.PrimaryKey(), nil
}

// Get fetches a row by id.
func (r *Repository[T, P]) Get(ctx context.Context, id int64) (P, error) {
	ctx, span := repoTracer.Start(ctx, r.span+".Get", trace.WithAttributes(attribute.Int64(r.kind+".id", id)))
	defer span.End()

	row := P(new(T))
	err := r.conns.ReaderFor(ctx).NewSelect().Model(row).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			span.RecordError(err)
		}
		span.SetStatus(codes.Error, "select failed")
		return nil, r.classify(err, id)
	}
	return row, nil
}

// List returns every row ordered by id.
func (r *Repository[T, P]) List(ctx context.Context) ([]T, error) {
	ctx, span := repoTracer.Start(ctx, r.span+".List")
	defer span.End()

	rows := make([]T, 0)
	if err := r.conns.ReaderFor(ctx).NewSelect().Model(&rows).Order("id ASC").Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, database.Classify(err)
	}
	return rows, nil
}

// Update replaces the mutable columns of the row with the given id.
func (r *Repository[T, P]) Update(ctx context.Context, id int64, row P) error {
	if row == nil {
		return fmt.Errorf("%w: nil %s", entity.ErrInvalidInput, r.kind)
	}
	ctx, span := repoTracer.Start(ctx, r.span+".Update", trace.WithAttributes(attribute.Int64(r.kind+".id", id)))
	defer span.End()

	err := r.conns.RunInTx(ctx, func(ctx context.Context) error {
		db := r.conns.WriterFor(ctx)
		res, err := db.NewUpdate().
			Model(row).
			Column(row.MutableColumns()...).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			return nil
		}
		// Some drivers report zero affected rows for an unchanged row.
		exists, err := db.NewSelect().Model((*T)(nil)).Where("id = ?", id).Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			return sql.ErrNoRows
		}
		return nil
	})
	if err != nil {
		span.SetStatus(codes.Error, "update failed")
		return r.classify(err, id)
	}
	return nil
}

// Delete removes the row with the given id. Rows still referenced by orders
// are kept and entity.ErrForeignKeyViolation is returned.
func (r *Repository[T, P]) Delete(ctx context.Context, id int64) error {
	ctx, span := repoTracer.Start(ctx, r.span+".Delete", trace.WithAttributes(attribute.Int64(r.kind+".id", id)))
	defer span.End()

	res, err := r.conns.WriterFor(ctx).NewDelete().Model((*T)(nil)).Where("id = ?", id).Exec(ctx)
	if err == nil {
		if n, rerr := res.RowsAffected(); rerr == nil && n == 0 {
			err = sql.ErrNoRows
		}
	}
	if err != nil {
		span.SetStatus(codes.Error, "delete failed")
		return r.classify(err, id)
	}
	return nil
}

func (r *Repository[T, P]) naturalKeyQuery(q *bun.SelectQuery, row P) *bun.SelectQuery {
	for _, col := range row.NaturalKey() {
		q = q.Where("? = ?", bun.Ident(col.Name), col.Value)
	}
	return q
}

// lockingRead makes the natural-key lookup read the latest committed row
// rather than the transaction snapshot, so a row inserted by a concurrent
// writer is found even when this transaction started earlier. SQLite has a
// single writer and needs no lock.
func lockingRead(db bun.IDB, q *bun.SelectQuery) *bun.SelectQuery {
	switch db.Dialect().Name() {
	case dialect.PG, dialect.MySQL:
		return q.For("SHARE")
	default:
		return q
	}
}

// ignoreConflict turns insert into a no-op when it collides with an existing
// natural key.
func ignoreConflict(db bun.IDB, insert *bun.InsertQuery) *bun.InsertQuery {
	if db.Dialect().Features().Has(feature.InsertOnConflict) {
		return insert.On("CONFLICT DO NOTHING")
	}
	return insert.Ignore()
}

func (r *Repository[T, P]) classify(err error, id int64) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s %d", entity.ErrNotFound, r.kind, id)
	}
	return database.Classify(err)
}

func (r *Repository[T, P]) recordRetry(ctx context.Context) {
	if r.retries != nil {
		r.retries.Add(ctx, 1, metric.WithAttributes(attribute.String("entity", r.kind)))
	}
}

func naturalKeyAttrs(row entity.Record) []attribute.KeyValue {
	key := row.NaturalKey()
	attrs := make([]attribute.KeyValue, 0, len(key))
	for _, col := range key {
		attrs = append(attrs, attribute.String(row.Kind()+"."+col.Name, fmt.Sprint(col.Value)))
	}
	return attrs
}
