package http

import (
	"go.uber.org/fx"

	chattransport "github.com/itsmewidii/fitriacookry/internal/transport/http/chat"
	ordertransport "github.com/itsmewidii/fitriacookry/internal/transport/http/order"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	ordertransport.Module,
	chattransport.Module,
)
