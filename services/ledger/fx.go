package ledger

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger.service",
	fx.Provide(NewService),
	fx.Invoke(registerRoutes),
)

type routeParams struct {
	fx.In

	Router  *gin.Engine
	Service *Service
}

func registerRoutes(p routeParams) {
	v1 := p.Router.Group("/v1/tenants/:tenant_id/members/:member_id")

	v1.GET("/balance", func(c *gin.Context) {
		balance, updatedAt, err := p.Service.GetBalance(c.Request.Context(), c.Param("tenant_id"), c.Param("member_id"))
		if err != nil {
			c.Error(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"balance":         balance,
			"last_updated_at": updatedAt.Format(time.RFC3339),
		})
	})

	v1.GET("/ledger", func(c *gin.Context) {
		entries, err := p.Service.ListEntries(c.Request.Context(), c.Param("tenant_id"), c.Param("member_id"))
		if err != nil {
			c.Error(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": entries})
	})

	v1.GET("/ledger/verify", func(c *gin.Context) {
		valid, err := p.Service.VerifyChain(c.Request.Context(), c.Param("tenant_id"), c.Param("member_id"))
		if err != nil {
			c.Error(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"valid": valid})
	})
}
