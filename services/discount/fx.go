package discount

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("discount.service",
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

	v1.GET("/members/:member_id/discounts", func(c *gin.Context) {
		codes, err := p.Service.List(c.Request.Context(), c.Param("tenant_id"), c.Param("member_id"))
		if err != nil {
			c.Error(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": codes})
	})

	v1.POST("/discounts/:code/redeem", func(c *gin.Context) {
		code, err := p.Service.Redeem(c.Request.Context(), c.Param("tenant_id"), c.Param("code"))
		if err != nil {
			c.Error(err)
			return
		}

		c.JSON(http.StatusOK, code)
	})
}
