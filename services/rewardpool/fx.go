package rewardpool

import (
	"net/http"

	"betabay-platform/pkg/errutil"
	"betabay-platform/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("rewardpool.service",
	fx.Provide(NewService),
	fx.Invoke(registerRoutes),
)

func registerRoutes(engine *gin.Engine, svc *Service) {
	group := engine.Group("/v1/beta-tests", middleware.RequireUser())
	group.POST("/:id/funding-orders", svc.handleCreateFundingOrder)
	group.POST("/:id/payments/verify", svc.handleVerifyPayment)
}

func (s *Service) handleCreateFundingOrder(c *gin.Context) {
	order, err := s.CreateFundingOrder(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"))
	if err != nil {
		middleware.Abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, order)
}

func (s *Service) handleVerifyPayment(c *gin.Context) {
	var in VerifyInput
	if err := c.ShouldBindJSON(&in); err != nil {
		middleware.Abort(c, errutil.BadRequest("invalid verification payload", err))
		return
	}

	result, err := s.VerifyPayment(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"), in)
	if err != nil {
		middleware.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
