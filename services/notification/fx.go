package notification

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("notification.service",
	fx.Provide(NewService),
	fx.Invoke(registerRoutes),
)

type routeParams struct {
	fx.In

	Router  *gin.Engine
	Service *Service
}

func registerRoutes(p routeParams) {
	v1 := p.Router.Group("/v1/tenants/:tenant_id")

	v1.GET("/members/:member_id/notifications", func(c *gin.Context) {
		notifications, err := p.Service.List(c.Request.Context(), c.Param("tenant_id"), c.Param("member_id"))
		if err != nil {
			c.Error(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": notifications})
	})

	v1.POST("/notifications/:notification_id/read", func(c *gin.Context) {
		if err := p.Service.MarkRead(c.Request.Context(), c.Param("tenant_id"), c.Param("notification_id")); err != nil {
			c.Error(err)
			return
		}

		c.Status(http.StatusNoContent)
	})
}
