package catalog

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// Module wires HTTP customer and item handlers.
var Module = fx.Options(
	fx.Provide(NewCustomerHandler, NewItemHandler),
	fx.Invoke(func(e *echo.Echo, customers *CustomerHandler, items *ItemHandler) {
		RegisterCustomers(e, customers)
		RegisterItems(e, items)
	}),
)
