package member

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

type routeParams struct {
	fx.In

	Router  *gin.Engine
	Service *Service
}

func registerRoutes(p routeParams) {
	v1 := p.Router.Group("/v1")

	v1.POST("/tenants/:tenant_id/members", func(c *gin.Context) {
		var body struct {
			ExternalID string `json:"external_id" binding:"required"`
			Email      string `json:"email"`
			Name       string `json:"name"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": err.Error()}})
			return
		}

		m, err := p.Service.Register(c.Request.Context(), RegisterParams{
			TenantID:   c.Param("tenant_id"),
			ExternalID: body.ExternalID,
			Email:      body.Email,
			Name:       body.Name,
		})
		if err != nil {
			c.Error(err)
			return
		}

		c.JSON(http.StatusCreated, m)
	})

	v1.GET("/tenants/:tenant_id/members/:member_id", func(c *gin.Context) {
		m, err := p.Service.Get(c.Request.Context(), c.Param("tenant_id"), c.Param("member_id"))
		if err != nil {
			c.Error(err)
			return
		}

		c.JSON(http.StatusOK, m)
	})
}
