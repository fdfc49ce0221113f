package bootstrap

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("bootstrap",
	fx.Provide(NewService),
	fx.Invoke(
		runMigration,
		registerRoutes,
	),
)

// Runs after the database connection is established.
func runMigration(lc fx.Lifecycle, s *Service) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			return s.Migrate()
		},
	})
}

type routeParams struct {
	fx.In

	Router  *gin.Engine
	Service *Service
}

func registerRoutes(p routeParams) {
	v1 := p.Router.Group("/v1/tenants/:tenant_id")

	v1.POST("/bootstrap", func(c *gin.Context) {
		if err := p.Service.EnsureDefaults(c.Request.Context(), c.Param("tenant_id")); err != nil {
			c.Error(err)
			return
		}

		c.Status(http.StatusNoContent)
	})
}
