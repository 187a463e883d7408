package adminreport

import (
	"net/http"

	"betabay-platform/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("adminreport.service",
	fx.Provide(NewService),
	fx.Invoke(registerRoutes),
)

// WorkerModule wires the background reporting pieces; it is only loaded by
// the worker binary.
var WorkerModule = fx.Module("adminreport.worker",
	fx.Provide(
		NewService,
		NewScheduler,
	),
	fx.Invoke(
		RegisterHandlers,
		StartScheduler,
	),
)

func registerRoutes(engine *gin.Engine, svc *Service) {
	group := engine.Group("/v1/admin/payouts", middleware.RequireUser())
	group.GET("/queue", svc.handleQueue)
	group.GET("/summary", svc.handleSummary)
	group.GET("/reconciliation", svc.handleReconciliation)
}

func (s *Service) handleQueue(c *gin.Context) {
	rows, err := s.PayoutQueue(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		middleware.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"payouts": rows})
}

func (s *Service) handleSummary(c *gin.Context) {
	summary, err := s.SummaryForAdmin(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		middleware.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

func (s *Service) handleReconciliation(c *gin.Context) {
	rows, err := s.Reconciliation(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		middleware.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"pools": rows})
}
