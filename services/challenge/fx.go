package challenge

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("challenge.service",
	fx.Provide(NewService),
	fx.Invoke(registerRoutes),
)

var TaskModule = fx.Module("challenge.task",
	fx.Provide(
		NewTask,
		NewScheduler,
	),
	fx.Invoke(
		registerTaskHandlers,
		StartScheduler,
	),
)

type routeParams struct {
	fx.In

	Router  *gin.Engine
	Service *Service
}

func registerRoutes(p routeParams) {
	v1 := p.Router.Group("/v1/tenants/:tenant_id")

	v1.GET("/challenge-templates", func(c *gin.Context) {
		templates, err := p.Service.ListTemplates(c.Request.Context(), c.Param("tenant_id"))
		if err != nil {
			c.Error(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": templates})
	})

	v1.POST("/challenge-templates", func(c *gin.Context) {
		var body struct {
			Name        string          `json:"name" binding:"required"`
			Description string          `json:"description"`
			Period      Period          `json:"period" binding:"required"`
			Requirement RequirementKind `json:"requirement" binding:"required"`
			Target      int64           `json:"target" binding:"required"`
			Rewards     []Reward        `json:"rewards"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": err.Error()}})
			return
		}

		t, err := p.Service.CreateTemplate(c.Request.Context(), CreateTemplateParams{
			TenantID:    c.Param("tenant_id"),
			Name:        body.Name,
			Description: body.Description,
			Period:      body.Period,
			Requirement: body.Requirement,
			Target:      body.Target,
			Rewards:     body.Rewards,
		})
		if err != nil {
			c.Error(err)
			return
		}

		c.JSON(http.StatusCreated, t)
	})

	v1.GET("/members/:member_id/challenges", func(c *gin.Context) {
		instances, err := p.Service.List(c.Request.Context(), c.Param("tenant_id"), c.Param("member_id"))
		if err != nil {
			c.Error(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": instances})
	})

	v1.POST("/members/:member_id/challenges/generate", func(c *gin.Context) {
		period := Period(c.DefaultQuery("period", string(PeriodDaily)))

		created, err := p.Service.Generate(c.Request.Context(), c.Param("tenant_id"), c.Param("member_id"), period)
		if err != nil {
			c.Error(err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"data": created})
	})
}
