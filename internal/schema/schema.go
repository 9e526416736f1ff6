// Package schema owns the customers, items and orders tables.
package schema

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderbook/internal/database"
	"github.com/Additional-Code/orderbook/internal/entity"
)

// Module provides the schema Manager to Fx.
var Module = fx.Provide(New)

// Manager creates and drops the store tables.
type Manager struct {
	db     *bun.DB
	logger *zap.Logger
}

// New constructs a Manager on the writer connection.
func New(conns *database.Connections, logger *zap.Logger) *Manager {
	return &Manager{db: conns.Writer, logger: logger}
}

// Initialize drops and recreates every table inside one transaction where
// the dialect allows it. All existing data is lost.
func (m *Manager) Initialize(ctx context.Context) error {
	err := m.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := Drop(ctx, tx); err != nil {
			return err
		}
		return Create(ctx, tx)
	})
	if err != nil {
		return err
	}
	if m.logger != nil {
		m.logger.Warn("schema initialized; existing data dropped")
	}
	return nil
}

// Create creates any missing table. Parents are created before orders.
func Create(ctx context.Context, db bun.IDB) error {
	if _, err := db.NewCreateTable().
		Model((*entity.Customer)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("create customers: %w", err)
	}

	if _, err := db.NewCreateTable().
		Model((*entity.Item)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("create items: %w", err)
	}

	if _, err := db.NewCreateTable().
		Model((*entity.Order)(nil)).
		IfNotExists().
		ForeignKey("(?) REFERENCES ? (?)", bun.Ident("customer_id"), bun.Ident("customers"), bun.Ident("id")).
		ForeignKey("(?) REFERENCES ? (?)", bun.Ident("item_id"), bun.Ident("items"), bun.Ident("id")).
		Exec(ctx); err != nil {
		return fmt.Errorf("create orders: %w", err)
	}

	return nil
}

// Drop removes the tables if present, children first.
func Drop(ctx context.Context, db bun.IDB) error {
	models := []struct {
		name  string
		model any
	}{
		{"orders", (*entity.Order)(nil)},
		{"items", (*entity.Item)(nil)},
		{"customers", (*entity.Customer)(nil)},
	}
	for _, m := range models {
		if _, err := db.NewDropTable().Model(m.model).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("drop %s: %w", m.name, err)
		}
	}
	return nil
}
