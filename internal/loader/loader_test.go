package loader_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderbook/internal/database"
	"github.com/Additional-Code/orderbook/internal/entity"
	"github.com/Additional-Code/orderbook/internal/loader"
	"github.com/Additional-Code/orderbook/internal/repository/order"
	"github.com/Additional-Code/orderbook/internal/repository/record"
	"github.com/Additional-Code/orderbook/internal/testutil"
)

func newLoader(t *testing.T) (*database.Connections, *loader.Loader) {
	t.Helper()
	conns := testutil.NewStore(t)
	cfg := testutil.DatabaseConfig(t)
	return conns, loader.New(loader.Params{
		Connections: conns,
		Customers:   record.New[entity.Customer](conns, cfg, zap.NewNop()),
		Items:       record.New[entity.Item](conns, cfg, zap.NewNop()),
		Orders:      order.NewRepository(conns),
		Logger:      zap.NewNop(),
	})
}

const aliceFeed = `[
  {"name": "Alice", "phone": "555-1", "timestamp": 1000, "items": [{"name": "Coffee", "price": 3.5}]},
  {"name": "Alice", "phone": "555-1", "timestamp": 1010, "items": [{"name": "Coffee", "price": 3.5}]}
]`

func TestLoadConvergesOnNaturalKeys(t *testing.T) {
	ctx := context.Background()
	conns, l := newLoader(t)

	records, err := loader.Decode(strings.NewReader(aliceFeed))
	require.NoError(t, err)

	report, err := l.Load(ctx, records)
	require.NoError(t, err)
	assert.NotEmpty(t, report.BatchID)
	assert.Equal(t, 2, report.Records)
	assert.Equal(t, 2, report.Loaded)
	assert.Equal(t, 2, report.Orders)
	assert.Zero(t, report.Failed)

	assert.Equal(t, 1, testutil.Count(t, conns, "customers"))
	assert.Equal(t, 1, testutil.Count(t, conns, "items"))
	assert.Equal(t, 2, testutil.Count(t, conns, "orders"))

	var orders []entity.Order
	require.NoError(t, conns.Reader.NewSelect().Model(&orders).Order("id ASC").Scan(ctx))
	require.Len(t, orders, 2)
	assert.Equal(t, orders[0].CustomerID, orders[1].CustomerID)
	assert.Equal(t, orders[0].ItemID, orders[1].ItemID)
	assert.Equal(t, []int64{1000, 1010}, []int64{orders[0].Timestamp, orders[1].Timestamp})
	assert.Nil(t, orders[0].Notes)
}

func TestLoadCreatesOneOrderPerItemWithParentNotes(t *testing.T) {
	ctx := context.Background()
	conns, l := newLoader(t)
	notes := "leave at door"

	report, err := l.Load(ctx, []loader.Record{{
		Name: "Bob", Phone: "555-2", Notes: &notes, Timestamp: 2000,
		Items: []loader.ItemRecord{{Name: "Bagel", Price: 2}, {Name: "Tea", Price: 1.5}, {Name: "Bagel", Price: 2}},
	}})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Orders)
	assert.Equal(t, 2, testutil.Count(t, conns, "items"))

	var orders []entity.Order
	require.NoError(t, conns.Reader.NewSelect().Model(&orders).Scan(ctx))
	for _, o := range orders {
		require.NotNil(t, o.Notes)
		assert.Equal(t, notes, *o.Notes)
		assert.Equal(t, int64(2000), o.Timestamp)
	}
}

func TestLoadKeepsFirstPriceForKnownItem(t *testing.T) {
	ctx := context.Background()
	conns, l := newLoader(t)

	_, err := l.Load(ctx, []loader.Record{
		{Name: "Alice", Phone: "1", Timestamp: 1, Items: []loader.ItemRecord{{Name: "Coffee", Price: 3.5}}},
		{Name: "Bob", Phone: "2", Timestamp: 2, Items: []loader.ItemRecord{{Name: "Coffee", Price: 4.25}}},
	})
	require.NoError(t, err)

	var item entity.Item
	require.NoError(t, conns.Reader.NewSelect().Model(&item).Where("name = ?", "Coffee").Scan(ctx))
	assert.Equal(t, 3.5, item.Price)
	assert.Equal(t, 2, testutil.Count(t, conns, "orders"))
}

func TestLoadReportsInvalidRecordsAndContinues(t *testing.T) {
	ctx := context.Background()
	conns, l := newLoader(t)

	report, err := l.Load(ctx, []loader.Record{
		{Name: "", Phone: "1", Timestamp: 1},
		{Name: "Carol", Phone: "3", Timestamp: 3, Items: []loader.ItemRecord{{Name: "Scone", Price: 2}}},
		{Name: "Dan", Phone: "4", Timestamp: 4, Items: []loader.ItemRecord{{Name: "Cake", Price: -1}}},
		{Name: "Eve", Phone: "5", Items: []loader.ItemRecord{{Name: "Pie", Price: 1}}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Loaded)
	assert.Equal(t, 3, report.Failed)
	require.Len(t, report.Failures, 3)
	assert.Equal(t, []int{0, 2, 3}, []int{report.Failures[0].Index, report.Failures[1].Index, report.Failures[2].Index})
	for _, f := range report.Failures {
		assert.ErrorIs(t, f.Err(), entity.ErrInvalidInput)
	}

	assert.Equal(t, 1, testutil.Count(t, conns, "customers"))
	assert.Equal(t, 1, testutil.Count(t, conns, "items"))
}

func TestLoadRecordRollsBackPartialInserts(t *testing.T) {
	ctx := context.Background()
	conns, l := newLoader(t)

	_, err := conns.Writer.NewDropTable().Model((*entity.Order)(nil)).Exec(ctx)
	require.NoError(t, err)

	n, err := l.LoadRecord(ctx, loader.Record{
		Name: "Alice", Phone: "555-1", Timestamp: 1000,
		Items: []loader.ItemRecord{{Name: "Coffee", Price: 3.5}},
	})
	require.Error(t, err)
	assert.Zero(t, n)

	assert.Equal(t, 0, testutil.Count(t, conns, "customers"), "customer insert rolled back")
	assert.Equal(t, 0, testutil.Count(t, conns, "items"), "item insert rolled back")
}

func TestLoadStopsWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	conns, l := newLoader(t)

	report, err := l.Load(ctx, []loader.Record{{Name: "Alice", Phone: "1", Timestamp: 1}})
	assert.ErrorIs(t, err, entity.ErrStoreUnavailable)
	assert.Zero(t, report.Loaded)
	assert.Equal(t, 0, testutil.Count(t, conns, "customers"))
}

func TestLoadFile(t *testing.T) {
	conns, l := newLoader(t)
	path := filepath.Join(t.TempDir(), "example_orders.json")
	require.NoError(t, os.WriteFile(path, []byte(aliceFeed), 0o600))

	report, err := l.LoadFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Loaded)
	assert.Equal(t, 2, testutil.Count(t, conns, "orders"))

	_, err = l.LoadFile(context.Background(), filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestDecodeRejectsMalformedFeed(t *testing.T) {
	_, err := loader.Decode(strings.NewReader(`{"name": "not an array"}`))
	assert.ErrorIs(t, err, entity.ErrInvalidInput)
}
