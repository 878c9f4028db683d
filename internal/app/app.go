package app

import (
	"go.uber.org/fx"

	"github.com/itsmewidii/fitriacookry/internal/broadcast"
	"github.com/itsmewidii/fitriacookry/internal/cache"
	"github.com/itsmewidii/fitriacookry/internal/config"
	"github.com/itsmewidii/fitriacookry/internal/database"
	"github.com/itsmewidii/fitriacookry/internal/logger"
	"github.com/itsmewidii/fitriacookry/internal/messaging"
	"github.com/itsmewidii/fitriacookry/internal/observability"
	"github.com/itsmewidii/fitriacookry/internal/presentation/http/flash"
	"github.com/itsmewidii/fitriacookry/internal/presentation/http/view"
	repositorylookup "github.com/itsmewidii/fitriacookry/internal/repository/lookup"
	repositoryorder "github.com/itsmewidii/fitriacookry/internal/repository/order"
	grpcserver "github.com/itsmewidii/fitriacookry/internal/server/grpc"
	httpserver "github.com/itsmewidii/fitriacookry/internal/server/http"
	servicechat "github.com/itsmewidii/fitriacookry/internal/service/chat"
	serviceorder "github.com/itsmewidii/fitriacookry/internal/service/order"
	"github.com/itsmewidii/fitriacookry/internal/storage"
	transporthttp "github.com/itsmewidii/fitriacookry/internal/transport/http"
	"github.com/itsmewidii/fitriacookry/internal/validation"
	"github.com/itsmewidii/fitriacookry/internal/worker"
	workerchat "github.com/itsmewidii/fitriacookry/internal/worker/chat"
	workerorder "github.com/itsmewidii/fitriacookry/internal/worker/order"
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	config.Module,
	cache.Module,
	database.Module,
	logger.Module,
	messaging.Module,
	observability.Module,
	storage.Module,
	broadcast.Module,
	repositoryorder.Module,
	repositorylookup.Module,
	serviceorder.Module,
	servicechat.Module,
)

// HTTP wires the HTTP and gRPC servers on top of the core modules.
var HTTP = fx.Options(
	Core,
	validation.Module,
	flash.Module,
	view.Module,
	httpserver.Module,
	grpcserver.Module,
	transporthttp.Module,
)

// Worker exposes background worker processing.
var Worker = fx.Options(
	Core,
	worker.Module,
	workerorder.Module,
	workerchat.Module,
)

// Module is the default application wiring (HTTP only).
var Module = HTTP
