package scratch

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("scratch.service",
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

	v1.GET("/scratch/config", func(c *gin.Context) {
		cfg, err := p.Service.GetConfig(c.Request.Context(), c.Param("tenant_id"))
		if err != nil {
			c.Error(err)
			return
		}

		c.JSON(http.StatusOK, cfg)
	})

	v1.PUT("/scratch/config", func(c *gin.Context) {
		var body struct {
			Enabled         bool       `json:"enabled"`
			MaxDailyCards   int64      `json:"max_daily_cards" binding:"required"`
			RevealThreshold float64    `json:"reveal_threshold"`
			Symbols         []Symbol   `json:"symbols" binding:"required"`
			Tiers           []TierBand `json:"tiers" binding:"required"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": err.Error()}})
			return
		}

		cfg, err := p.Service.UpsertConfig(c.Request.Context(), UpsertConfigParams{
			TenantID:        c.Param("tenant_id"),
			Enabled:         body.Enabled,
			MaxDailyCards:   body.MaxDailyCards,
			RevealThreshold: body.RevealThreshold,
			Symbols:         body.Symbols,
			Tiers:           body.Tiers,
		})
		if err != nil {
			c.Error(err)
			return
		}

		c.JSON(http.StatusOK, cfg)
	})

	v1.POST("/members/:member_id/scratch/cards", func(c *gin.Context) {
		card, err := p.Service.Buy(c.Request.Context(), c.Param("tenant_id"), c.Param("member_id"))
		if err != nil {
			c.Error(err)
			return
		}

		c.JSON(http.StatusCreated, card)
	})

	v1.GET("/members/:member_id/scratch/cards", func(c *gin.Context) {
		cards, err := p.Service.History(c.Request.Context(), c.Param("tenant_id"), c.Param("member_id"))
		if err != nil {
			c.Error(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": cards})
	})

	v1.GET("/members/:member_id/scratch/cards/:card_id", func(c *gin.Context) {
		card, err := p.Service.GetCard(c.Request.Context(), c.Param("tenant_id"), c.Param("member_id"), c.Param("card_id"))
		if err != nil {
			c.Error(err)
			return
		}

		c.JSON(http.StatusOK, card)
	})

	v1.POST("/members/:member_id/scratch/cards/:card_id/reveal", func(c *gin.Context) {
		var body struct {
			Cell *int `json:"cell" binding:"required"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": err.Error()}})
			return
		}

		result, err := p.Service.Reveal(c.Request.Context(),
			c.Param("tenant_id"), c.Param("member_id"), c.Param("card_id"), *body.Cell)
		if err != nil {
			c.Error(err)
			return
		}

		c.JSON(http.StatusOK, result)
	})
}
