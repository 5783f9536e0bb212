package http

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/orders/internal/auth"
	authtransport "github.com/Additional-Code/orders/internal/transport/http/auth"
	"github.com/Additional-Code/orders/internal/transport/http/middleware"
	ordertransport "github.com/Additional-Code/orders/internal/transport/http/order"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	fx.Provide(func(s *auth.Service) middleware.TokenResolver { return s }),
	authtransport.Module,
	ordertransport.Module,
)
