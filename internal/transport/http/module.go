package http

import (
	"go.uber.org/fx"

	catalogtransport "github.com/Additional-Code/orderbook/internal/transport/http/catalog"
	feedtransport "github.com/Additional-Code/orderbook/internal/transport/http/feed"
	ordertransport "github.com/Additional-Code/orderbook/internal/transport/http/order"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	catalogtransport.Module,
	ordertransport.Module,
	feedtransport.Module,
)
