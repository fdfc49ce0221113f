package wheel

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("wheel.service",
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

	v1.GET("/wheel/config", func(c *gin.Context) {
		cfg, err := p.Service.GetConfig(c.Request.Context(), c.Param("tenant_id"))
		if err != nil {
			c.Error(err)
			return
		}

		c.JSON(http.StatusOK, cfg)
	})

	v1.PUT("/wheel/config", func(c *gin.Context) {
		var body struct {
			Enabled       bool     `json:"enabled"`
			MaxDailySpins int64    `json:"max_daily_spins" binding:"required"`
			Sectors       []Sector `json:"sectors" binding:"required"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": err.Error()}})
			return
		}

		cfg, err := p.Service.UpsertConfig(c.Request.Context(), UpsertConfigParams{
			TenantID:      c.Param("tenant_id"),
			Enabled:       body.Enabled,
			MaxDailySpins: body.MaxDailySpins,
			Sectors:       body.Sectors,
		})
		if err != nil {
			c.Error(err)
			return
		}

		c.JSON(http.StatusOK, cfg)
	})

	v1.POST("/members/:member_id/wheel/spin", func(c *gin.Context) {
		result, err := p.Service.Spin(c.Request.Context(), c.Param("tenant_id"), c.Param("member_id"))
		if err != nil {
			c.Error(err)
			return
		}

		c.JSON(http.StatusOK, result)
	})

	v1.GET("/members/:member_id/wheel/spins", func(c *gin.Context) {
		spins, err := p.Service.History(c.Request.Context(), c.Param("tenant_id"), c.Param("member_id"))
		if err != nil {
			c.Error(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": spins})
	})
}
