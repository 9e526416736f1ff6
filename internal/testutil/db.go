// Package testutil opens throwaway sqlite stores for package tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Additional-Code/orderbook/internal/config"
	"github.com/Additional-Code/orderbook/internal/database"
	"github.com/Additional-Code/orderbook/internal/schema"
)

// DatabaseConfig returns a sqlite configuration backed by a file in a
// per-test temporary directory.
func DatabaseConfig(t *testing.T) config.Database {
	t.Helper()
	return config.Database{
		Driver:         "sqlite",
		WriterDSN:      "file:" + filepath.Join(t.TempDir(), "orderbook.db"),
		MaxOpenConns:   8,
		MaxIdleConns:   8,
		LockTimeout:    5 * time.Second,
		UpsertAttempts: 3,
		UpsertBackoff:  time.Millisecond,
	}
}

// NewStore opens a fresh store with the schema initialized.
func NewStore(t *testing.T) *database.Connections {
	t.Helper()
	cfg := DatabaseConfig(t)
	cfg.ReaderDSN = cfg.WriterDSN

	conns, err := database.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = conns.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conns.Ping(ctx); err != nil {
		t.Fatalf("ping store: %v", err)
	}
	if err := schema.New(conns, zap.NewNop()).Initialize(ctx); err != nil {
		t.Fatalf("initialize schema: %v", err)
	}
	return conns
}

// Count returns the number of rows in table.
func Count(t *testing.T, conns *database.Connections, table string) int {
	t.Helper()
	n, err := conns.Writer.NewSelect().Table(table).Count(context.Background())
	if err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}
