package app

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/orders/internal/auth"
	"github.com/Additional-Code/orders/internal/cache"
	"github.com/Additional-Code/orders/internal/config"
	"github.com/Additional-Code/orders/internal/database"
	"github.com/Additional-Code/orders/internal/event"
	"github.com/Additional-Code/orders/internal/logger"
	"github.com/Additional-Code/orders/internal/messaging"
	"github.com/Additional-Code/orders/internal/observability"
	repositoryorder "github.com/Additional-Code/orders/internal/repository/order"
	grpcserver "github.com/Additional-Code/orders/internal/server/grpc"
	httpserver "github.com/Additional-Code/orders/internal/server/http"
	serviceorder "github.com/Additional-Code/orders/internal/service/order"
	transporthttp "github.com/Additional-Code/orders/internal/transport/http"
	"github.com/Additional-Code/orders/internal/worker"
	workerorder "github.com/Additional-Code/orders/internal/worker/order"
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	config.Module,
	cache.Module,
	database.Module,
	logger.Module,
	messaging.Module,
	event.Module,
	observability.Module,
	repositoryorder.Module,
	serviceorder.Module,
)

// HTTP wires the HTTP and gRPC health transports on top of the core modules.
var HTTP = fx.Options(
	Core,
	auth.Module,
	httpserver.Module,
	grpcserver.Module,
	transporthttp.Module,
)

// Worker exposes background worker processing.
var Worker = fx.Options(
	Core,
	worker.Module,
	workerorder.Module,
)

// Module is the default application wiring: the HTTP API plus the
// client-deletion listener in one process.
var Module = fx.Options(
	HTTP,
	worker.Module,
	workerorder.Module,
)
