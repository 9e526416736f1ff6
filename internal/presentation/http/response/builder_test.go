package response

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/orderbook/internal/entity"
	"github.com/Additional-Code/orderbook/pkg/errorbank"
)

func render(t *testing.T, build func(echo.Context) error) (int, map[string]any) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	require.NoError(t, build(c))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestBuildSuccess(t *testing.T) {
	code, body := render(t, func(c echo.Context) error {
		return New(c).WithStatus(http.StatusCreated).WithMessage("customer created").WithData(map[string]int{"id": 1}).Build()
	})
	assert.Equal(t, http.StatusCreated, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "customer created", body["message"])
	assert.Equal(t, map[string]any{"id": float64(1)}, body["data"])
}

func TestWithListRendersEmptySlice(t *testing.T) {
	code, body := render(t, func(c echo.Context) error {
		var none []string
		return WithList(New(c), none).Build()
	})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{}, body["data"])
	assert.Equal(t, map[string]any{"count": float64(0)}, body["meta"])
}

func TestBuildError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		kind   string
	}{
		{errorbank.NotFound("customer not found"), http.StatusNotFound, "not_found"},
		{errorbank.Conflict("customer already exists"), http.StatusConflict, "conflict"},
		{errorbank.Unprocessable("invalid reference"), http.StatusUnprocessableEntity, "unprocessable_entity"},
		{errorbank.Unavailable("store unavailable"), http.StatusServiceUnavailable, "unavailable"},
		{fmt.Errorf("raw: %w", entity.ErrNotFound), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		code, body := render(t, func(c echo.Context) error {
			return New(c).WithError(tc.err).Build()
		})
		assert.Equal(t, tc.status, code)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, tc.kind, body["error"].(map[string]any)["kind"])
	}
}
