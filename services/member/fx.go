package member

import (
	"go.uber.org/fx"
)

var Module = fx.Module("member.service",
	fx.Provide(NewService),
	fx.Invoke(registerRoutes),
)
