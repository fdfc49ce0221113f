package activity

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"omnilypro-gaming/services/discount"
)

var Module = fx.Module("activity.service",
	fx.Provide(NewService),
	fx.Invoke(
		registerRoutes,
		registerRedemptionHook,
	),
)

// registerRedemptionHook feeds discount redemptions back through the
// activity pipeline, so the redemption counter, redeem_rewards
// challenges, and badge rules all see them.
func registerRedemptionHook(svc *Service, discounts *discount.Service) {
	discounts.OnRedeem(func(ctx context.Context, tenantID, memberID string) {
		if err := svc.Record(ctx, tenantID, memberID, KindRedemption, 1); err != nil {
			zap.L().Error("failed to record redemption activity",
				zap.String("member_id", memberID),
				zap.Error(err),
			)
		}
	})
}

type routeParams struct {
	fx.In

	Router  *gin.Engine
	Service *Service
}

func registerRoutes(p routeParams) {
	v1 := p.Router.Group("/v1/tenants/:tenant_id")

	v1.POST("/members/:member_id/activities", func(c *gin.Context) {
		var body struct {
			Kind   Kind  `json:"kind" binding:"required"`
			Amount int64 `json:"amount"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": err.Error()}})
			return
		}

		if err := p.Service.Record(c.Request.Context(), c.Param("tenant_id"), c.Param("member_id"), body.Kind, body.Amount); err != nil {
			c.Error(err)
			return
		}

		c.Status(http.StatusAccepted)
	})
}
