package order

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/orders/internal/event"
	repo "github.com/Additional-Code/orders/internal/repository/order"
)

// Module provides the order service to Fx.
var Module = fx.Options(
	fx.Provide(NewService),
	fx.Provide(func(r *repo.Repository) Repository { return r }),
	fx.Provide(func(p *event.Publisher) Publisher { return p }),
)
