package app

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/orderbook/internal/config"
	"github.com/Additional-Code/orderbook/internal/database"
	"github.com/Additional-Code/orderbook/internal/loader"
	"github.com/Additional-Code/orderbook/internal/logger"
	"github.com/Additional-Code/orderbook/internal/messaging"
	"github.com/Additional-Code/orderbook/internal/observability"
	repositoryorder "github.com/Additional-Code/orderbook/internal/repository/order"
	"github.com/Additional-Code/orderbook/internal/repository/record"
	"github.com/Additional-Code/orderbook/internal/schema"
	grpcserver "github.com/Additional-Code/orderbook/internal/server/grpc"
	httpserver "github.com/Additional-Code/orderbook/internal/server/http"
	"github.com/Additional-Code/orderbook/internal/service/catalog"
	serviceorder "github.com/Additional-Code/orderbook/internal/service/order"
	transporthttp "github.com/Additional-Code/orderbook/internal/transport/http"
	"github.com/Additional-Code/orderbook/internal/worker"
	workerfeed "github.com/Additional-Code/orderbook/internal/worker/feed"
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	config.Module,
	database.Module,
	logger.Module,
	messaging.Module,
	observability.Module,
	record.Module,
	repositoryorder.Module,
	catalog.Module,
	serviceorder.Module,
	loader.Module,
	schema.Module,
)

// HTTP wires the HTTP transport and the gRPC health server on top of the
// core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	grpcserver.Module,
	transporthttp.Module,
)

// Worker consumes the order feed topic into the store.
var Worker = fx.Options(
	Core,
	worker.Module,
	workerfeed.Module,
)

// Module is the default application wiring (HTTP only).
var Module = HTTP
