package betaapp

import (
	"net/http"
	"strconv"

	"betabay-platform/pkg/errutil"
	"betabay-platform/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("betaapp.service",
	fx.Provide(NewService),
	fx.Invoke(registerRoutes),
)

func registerRoutes(engine *gin.Engine, svc *Service) {
	tests := engine.Group("/v1/beta-tests", middleware.RequireUser())
	tests.POST("/:id/applications/:applicant/approve", svc.handleApprove)

	admin := engine.Group("/v1/admin/payouts", middleware.RequireUser())
	admin.POST("/status", svc.handleUpdatePayoutStatus)
	admin.POST("/backfill", svc.handleBackfillBreakdown)
	admin.GET("/audit", svc.handleListAuditLog)
}

func (s *Service) handleApprove(c *gin.Context) {
	result, err := s.ApproveApplication(
		c.Request.Context(),
		middleware.CurrentUserID(c),
		c.Param("id"),
		c.Param("applicant"),
	)
	if err != nil {
		middleware.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Service) handleUpdatePayoutStatus(c *gin.Context) {
	var in UpdatePayoutStatusInput
	if err := c.ShouldBindJSON(&in); err != nil {
		middleware.Abort(c, errutil.BadRequest("invalid payout status payload", err))
		return
	}

	result, err := s.UpdateCashPayoutStatus(c.Request.Context(), middleware.CurrentUserID(c), in)
	if err != nil {
		middleware.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

type backfillInput struct {
	BetaTestID      string `json:"betaTestId" binding:"required"`
	ApplicantUserID string `json:"applicantUserId" binding:"required"`
}

func (s *Service) handleListAuditLog(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	rows, err := s.ListAuditLog(
		c.Request.Context(),
		middleware.CurrentUserID(c),
		c.Query("betaTestId"),
		c.Query("applicantUserId"),
		limit,
	)
	if err != nil {
		middleware.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": rows})
}

func (s *Service) handleBackfillBreakdown(c *gin.Context) {
	var in backfillInput
	if err := c.ShouldBindJSON(&in); err != nil {
		middleware.Abort(c, errutil.BadRequest("invalid backfill payload", err))
		return
	}

	app, err := s.BackfillBreakdown(c.Request.Context(), middleware.CurrentUserID(c), in.BetaTestID, in.ApplicantUserID)
	if err != nil {
		middleware.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, app)
}
