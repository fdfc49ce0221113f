package badge

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("badge.service",
	fx.Provide(NewService),
	fx.Invoke(registerRoutes),
)

var TaskModule = fx.Module("badge.task",
	fx.Provide(NewTask),
	fx.Invoke(registerTaskHandlers),
)

type routeParams struct {
	fx.In

	Router  *gin.Engine
	Service *Service
}

func registerRoutes(p routeParams) {
	v1 := p.Router.Group("/v1/tenants/:tenant_id")

	v1.GET("/badges", func(c *gin.Context) {
		badges, err := p.Service.List(c.Request.Context(), c.Param("tenant_id"))
		if err != nil {
			c.Error(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": badges})
	})

	v1.POST("/badges", func(c *gin.Context) {
		var body struct {
			Name         string     `json:"name" binding:"required"`
			Description  string     `json:"description"`
			Icon         string     `json:"icon"`
			Rule         UnlockRule `json:"rule" binding:"required"`
			RewardPoints int64      `json:"reward_points"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": err.Error()}})
			return
		}

		b, err := p.Service.Create(c.Request.Context(), CreateParams{
			TenantID:     c.Param("tenant_id"),
			Name:         body.Name,
			Description:  body.Description,
			Icon:         body.Icon,
			Rule:         body.Rule,
			RewardPoints: body.RewardPoints,
		})
		if err != nil {
			c.Error(err)
			return
		}

		c.JSON(http.StatusCreated, b)
	})

	v1.GET("/members/:member_id/badges", func(c *gin.Context) {
		unlocked, err := p.Service.ListUnlocked(c.Request.Context(), c.Param("tenant_id"), c.Param("member_id"))
		if err != nil {
			c.Error(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": unlocked})
	})
}
