package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderbook/internal/config"
	"github.com/Additional-Code/orderbook/internal/database"
	"github.com/Additional-Code/orderbook/internal/schema"
)

// initialVersion creates customers, items and orders. It is the only
// migration.
const initialVersion int64 = 1

// Module provides the Migrator to Fx.
var Module = fx.Provide(New)

// Migrator wraps a goose provider holding the Go migrations.
type Migrator struct {
	provider *goose.Provider
	logger   *zap.Logger
}

// New constructs a goose-backed migrator on the writer connection.
func New(cfg config.Config, conns *database.Connections, logger *zap.Logger) (*Migrator, error) {
	dialect, err := gooseDialect(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}

	provider, err := goose.NewProvider(dialect, conns.Writer.DB, nil,
		goose.WithGoMigrations(initial(conns.Writer)),
	)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}

	return &Migrator{provider: provider, logger: logger}, nil
}

// initial runs through bun so the DDL matches what schema init produces.
func initial(db *bun.DB) *goose.Migration {
	return goose.NewGoMigration(initialVersion,
		&goose.GoFunc{RunDB: func(ctx context.Context, _ *sql.DB) error {
			return schema.Create(ctx, db)
		}},
		&goose.GoFunc{RunDB: func(ctx context.Context, _ *sql.DB) error {
			return schema.Drop(ctx, db)
		}},
	)
}

// Up applies all pending migrations.
func (m *Migrator) Up(ctx context.Context) error {
	results, err := m.provider.Up(ctx)
	if err != nil {
		if isNoMigrationErr(err) {
			m.logger.Info("no migrations to apply")
			return nil
		}
		return err
	}
	if len(results) == 0 {
		m.logger.Info("no migrations to apply")
		return nil
	}

	for _, r := range results {
		m.logger.Info("migration applied", zap.Int64("version", r.Source.Version), zap.Duration("took", r.Duration))
	}
	return nil
}

// Down rolls back migrations. Steps <=0 defaults to 1; all=true rolls everything back.
func (m *Migrator) Down(ctx context.Context, steps int, all bool) error {
	if all {
		if _, err := m.provider.DownTo(ctx, 0); err != nil {
			if isNoMigrationErr(err) {
				m.logger.Info("no migrations to rollback")
				return nil
			}
			return err
		}
		m.logger.Info("migrations rolled back", zap.String("mode", "all"))
		return nil
	}

	if steps <= 0 {
		steps = 1
	}

	for i := 0; i < steps; i++ {
		if _, err := m.provider.Down(ctx); err != nil {
			if isNoMigrationErr(err) {
				m.logger.Info("no migrations to rollback")
				return nil
			}
			return err
		}
	}

	m.logger.Info("migrations rolled back", zap.Int("steps", steps))
	return nil
}

// Version reports the highest applied migration, 0 when none.
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	return m.provider.GetDBVersion(ctx)
}

func gooseDialect(driver string) (goose.Dialect, error) {
	switch strings.ToLower(driver) {
	case "postgres", "pg":
		return goose.DialectPostgres, nil
	case "mysql":
		return goose.DialectMySQL, nil
	case "sqlite", "sqlite3":
		return goose.DialectSQLite3, nil
	default:
		return "", fmt.Errorf("unsupported goose dialect for driver %s", driver)
	}
}

func isNoMigrationErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, goose.ErrNoNextVersion) || errors.Is(err, goose.ErrNoMigrationFiles) {
		return true
	}
	return strings.Contains(err.Error(), "no migrations")
}
