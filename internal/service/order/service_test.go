package order_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderbook/internal/entity"
	repo "github.com/Additional-Code/orderbook/internal/repository/order"
	"github.com/Additional-Code/orderbook/internal/service/order"
	"github.com/Additional-Code/orderbook/internal/testutil"
	"github.com/Additional-Code/orderbook/pkg/errorbank"
)

func TestService(t *testing.T) {
	ctx := context.Background()
	conns := testutil.NewStore(t)
	fixed := time.Unix(1_700_000_000, 0)
	svc := order.NewService(order.Params{
		Repository: repo.NewRepository(conns),
		Logger:     zap.NewNop(),
		Clock:      func() time.Time { return fixed },
	})

	customer := &entity.Customer{Name: "Alice", Phone: "555-1"}
	_, err := conns.Writer.NewInsert().Model(customer).Exec(ctx)
	require.NoError(t, err)
	item := &entity.Item{Name: "Coffee", Price: 3.5}
	_, err = conns.Writer.NewInsert().Model(item).Exec(ctx)
	require.NoError(t, err)

	kind := func(err error) errorbank.Kind {
		var appErr *errorbank.AppError
		require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
		return appErr.Kind()
	}

	t.Run("zero timestamp defaults to now", func(t *testing.T) {
		created, err := svc.Create(ctx, &entity.Order{CustomerID: customer.ID, ItemID: item.ID})
		require.NoError(t, err)
		assert.Equal(t, fixed.Unix(), created.Timestamp)
	})

	t.Run("explicit timestamp is kept", func(t *testing.T) {
		created, err := svc.Create(ctx, &entity.Order{CustomerID: customer.ID, ItemID: item.ID, Timestamp: 1000})
		require.NoError(t, err)
		assert.Equal(t, int64(1000), created.Timestamp)
	})

	t.Run("missing reference is unprocessable", func(t *testing.T) {
		before := testutil.Count(t, conns, "orders")
		_, err := svc.Create(ctx, &entity.Order{CustomerID: customer.ID, ItemID: 777, Timestamp: 1})
		assert.Equal(t, errorbank.KindUnprocessableEntity, kind(err))
		assert.Equal(t, before, testutil.Count(t, conns, "orders"))
	})

	t.Run("absent order is not found", func(t *testing.T) {
		_, err := svc.Get(ctx, 404)
		assert.Equal(t, errorbank.KindNotFound, kind(err))
		_, err = svc.Update(ctx, 404, &entity.Order{CustomerID: customer.ID, ItemID: item.ID, Timestamp: 1})
		assert.Equal(t, errorbank.KindNotFound, kind(err))
		assert.Equal(t, errorbank.KindNotFound, kind(svc.Delete(ctx, 404)))
	})

	t.Run("invalid payload is a bad request", func(t *testing.T) {
		_, err := svc.Create(ctx, &entity.Order{CustomerID: customer.ID})
		assert.Equal(t, errorbank.KindBadRequest, kind(err))
	})

	t.Run("update and list", func(t *testing.T) {
		created, err := svc.Create(ctx, &entity.Order{CustomerID: customer.ID, ItemID: item.ID, Timestamp: 5})
		require.NoError(t, err)
		notes := "decaf"
		updated, err := svc.Update(ctx, created.ID, &entity.Order{CustomerID: customer.ID, ItemID: item.ID, Notes: &notes})
		require.NoError(t, err)
		assert.Equal(t, created.ID, updated.ID)
		assert.Equal(t, fixed.Unix(), updated.Timestamp)

		all, err := svc.List(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})
}
