package http_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderbook/internal/entity"
	"github.com/Additional-Code/orderbook/internal/loader"
	orderrepo "github.com/Additional-Code/orderbook/internal/repository/order"
	"github.com/Additional-Code/orderbook/internal/repository/record"
	"github.com/Additional-Code/orderbook/internal/service/catalog"
	ordersvc "github.com/Additional-Code/orderbook/internal/service/order"
	"github.com/Additional-Code/orderbook/internal/testutil"
	catalogtransport "github.com/Additional-Code/orderbook/internal/transport/http/catalog"
	feedtransport "github.com/Additional-Code/orderbook/internal/transport/http/feed"
	ordertransport "github.com/Additional-Code/orderbook/internal/transport/http/order"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    map[string]any  `json:"meta"`
	Error   struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

func newRouter(t *testing.T) *echo.Echo {
	t.Helper()
	conns := testutil.NewStore(t)
	cfg := testutil.DatabaseConfig(t)
	logger := zap.NewNop()

	customers := record.New[entity.Customer](conns, cfg, logger)
	items := record.New[entity.Item](conns, cfg, logger)
	orders := orderrepo.NewRepository(conns)

	e := echo.New()
	catalogtransport.RegisterCustomers(e, catalogtransport.NewCustomerHandler(catalog.NewCustomers(customers, logger)))
	catalogtransport.RegisterItems(e, catalogtransport.NewItemHandler(catalog.NewItems(items, logger)))
	ordertransport.Register(e, ordertransport.NewHandler(ordersvc.NewService(ordersvc.Params{Repository: orders, Logger: logger})))
	feedtransport.Register(e, feedtransport.NewHandler(loader.New(loader.Params{
		Connections: conns, Customers: customers, Items: items, Orders: orders, Logger: logger,
	})))
	return e
}

func do(t *testing.T, e *echo.Echo, method, path, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

// createdID reads the id of the row returned by a create call.
func createdID(t *testing.T, env envelope) int64 {
	t.Helper()
	var row struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &row))
	require.NotZero(t, row.ID, "create returns the stored id")
	return row.ID
}

func TestCustomerRoutes(t *testing.T) {
	e := newRouter(t)

	code, env := do(t, e, http.MethodGet, "/all_customers", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "no customers found", env.Error.Message)

	code, env = do(t, e, http.MethodPost, "/customers", `{"name":"Zed","phone":"555-0"}`)
	require.Equal(t, http.StatusCreated, code)
	zed := createdID(t, env)

	code, env = do(t, e, http.MethodPost, "/customers", `{"name":"Alice","phone":"555-1"}`)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "customer created", env.Message)
	alice := createdID(t, env)
	assert.NotEqual(t, zed, alice)
	aliceURL := fmt.Sprintf("/customers/%d", alice)

	code, env = do(t, e, http.MethodPost, "/customers", `{"name":"Alice","phone":"555-1"}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "customer already exists", env.Error.Message)

	code, env = do(t, e, http.MethodGet, "/all_customers", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, fmt.Sprintf(`{"%d":{"name":"Zed","phone":"555-0"},"%d":{"name":"Alice","phone":"555-1"}}`, zed, alice), string(env.Data))

	code, _ = do(t, e, http.MethodPut, aliceURL, `{"name":"Alice","phone":"555-2"}`)
	assert.Equal(t, http.StatusOK, code)
	code, env = do(t, e, http.MethodGet, aliceURL, "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, fmt.Sprintf(`{"id":%d,"name":"Alice","phone":"555-2"}`, alice), string(env.Data))

	code, _ = do(t, e, http.MethodGet, "/customers/abc", "")
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = do(t, e, http.MethodPut, "/customers/99", `{"name":"Ghost","phone":"0"}`)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, e, http.MethodDelete, aliceURL, "")
	assert.Equal(t, http.StatusOK, code)
	code, _ = do(t, e, http.MethodDelete, aliceURL, "")
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = do(t, e, http.MethodGet, fmt.Sprintf("/customers/%d", zed), "")
	assert.Equal(t, http.StatusOK, code, "other rows are untouched")
}

func TestOrderRoutes(t *testing.T) {
	e := newRouter(t)

	code, env := do(t, e, http.MethodPost, "/customers", `{"name":"Alice","phone":"555-1"}`)
	require.Equal(t, http.StatusCreated, code)
	customerID := createdID(t, env)
	code, env = do(t, e, http.MethodPost, "/items", `{"name":"Coffee","price":3.5}`)
	require.Equal(t, http.StatusCreated, code)
	itemID := createdID(t, env)

	code, env = do(t, e, http.MethodPost, "/orders", fmt.Sprintf(`{"customer_id":%d,"item_id":%d,"notes":"x","timestamp":1}`, customerID, itemID+1))
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "invalid reference", env.Error.Message)

	code, env = do(t, e, http.MethodPost, "/orders", fmt.Sprintf(`{"customer_id":%d,"item_id":%d,"notes":"no sugar"}`, customerID, itemID))
	require.Equal(t, http.StatusCreated, code)
	orderID := createdID(t, env)
	var created struct {
		Timestamp int64 `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Positive(t, created.Timestamp, "missing timestamp defaults to now")
	orderURL := fmt.Sprintf("/orders/%d", orderID)

	code, env = do(t, e, http.MethodPut, orderURL, fmt.Sprintf(`{"customer_id":%d,"item_id":%d,"timestamp":7}`, customerID, itemID))
	require.Equal(t, http.StatusOK, code)
	code, env = do(t, e, http.MethodGet, orderURL, "")
	require.Equal(t, http.StatusOK, code)
	var fetched struct {
		ID        int64 `json:"id"`
		Timestamp int64 `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &fetched))
	assert.Equal(t, orderID, fetched.ID)
	assert.Equal(t, int64(7), fetched.Timestamp)

	code, _ = do(t, e, http.MethodDelete, fmt.Sprintf("/items/%d", itemID), "")
	assert.Equal(t, http.StatusUnprocessableEntity, code, "referenced item cannot be deleted")

	code, env = do(t, e, http.MethodGet, "/orders", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), env.Meta["count"])

	code, _ = do(t, e, http.MethodDelete, orderURL, "")
	assert.Equal(t, http.StatusOK, code)
	code, _ = do(t, e, http.MethodGet, orderURL, "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestFeedRoute(t *testing.T) {
	e := newRouter(t)

	feed := `[
	  {"name":"Alice","phone":"555-1","timestamp":1000,"items":[{"name":"Coffee","price":3.5}]},
	  {"name":"Alice","phone":"555-1","timestamp":1010,"items":[{"name":"Coffee","price":3.5}]},
	  {"name":"","phone":"0","timestamp":1,"items":[]}
	]`
	code, env := do(t, e, http.MethodPost, "/feed", feed)
	require.Equal(t, http.StatusOK, code)

	var report struct {
		Loaded   int `json:"loaded"`
		Failed   int `json:"failed"`
		Orders   int `json:"orders"`
		Failures []struct {
			Index int `json:"index"`
		} `json:"failures"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, 2, report.Loaded)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 2, report.Orders)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, 2, report.Failures[0].Index)

	code, env = do(t, e, http.MethodGet, "/customers", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), env.Meta["count"])

	code, _ = do(t, e, http.MethodPost, "/feed", `{"not":"a list"}`)
	assert.Equal(t, http.StatusBadRequest, code)
}
