package migration

import (
	"context"
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderbook/internal/config"
	"github.com/Additional-Code/orderbook/internal/database"
	"github.com/Additional-Code/orderbook/internal/testutil"
)

func tableExists(t *testing.T, conns *database.Connections, name string) bool {
	t.Helper()
	var n int
	err := conns.Reader.NewSelect().
		TableExpr("sqlite_master").
		ColumnExpr("count(*)").
		Where("type = 'table' AND name = ?", name).
		Scan(context.Background(), &n)
	require.NoError(t, err)
	return n == 1
}

func TestUpAndDown(t *testing.T) {
	ctx := context.Background()
	dbCfg := testutil.DatabaseConfig(t)
	conns, err := database.Open(dbCfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conns.Close() })

	m, err := New(config.Config{Database: dbCfg}, conns, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, m.Up(ctx))
	require.NoError(t, m.Up(ctx), "second run is a no-op")
	for _, table := range []string{"customers", "items", "orders"} {
		assert.True(t, tableExists(t, conns, table), table)
	}
	version, err := m.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, initialVersion, version)

	require.NoError(t, m.Down(ctx, 1, false))
	assert.False(t, tableExists(t, conns, "orders"))
	assert.False(t, tableExists(t, conns, "customers"))

	require.NoError(t, m.Down(ctx, 1, false), "nothing left to roll back")
	require.NoError(t, m.Up(ctx))
	require.NoError(t, m.Down(ctx, 0, true))
	assert.False(t, tableExists(t, conns, "items"))
}

func TestGooseDialect(t *testing.T) {
	_, err := gooseDialect("oracle")
	assert.Error(t, err)

	d, err := gooseDialect("PG")
	require.NoError(t, err)
	assert.Equal(t, goose.DialectPostgres, d)
}
