package httptransport

import (
	"log/slog"

	"github.com/coursekit/mailsched/internal/transport/http/handler"
	"github.com/coursekit/mailsched/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"

	sloggin "github.com/samber/slog-gin"
)

func NewRouter(
	logger *slog.Logger,
	programHandler *handler.ProgramHandler,
	automationHandler *handler.AutomationHandler,
	triggerHandler *handler.TriggerHandler,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Security())
	r.Use(sloggin.New(logger))
	r.Use(middleware.Metrics())

	programs := r.Group("/programs")
	programs.POST("", programHandler.Create)
	programs.GET("", programHandler.List)
	programs.GET("/:id", programHandler.GetByID)
	programs.POST("/:id/pause", programHandler.Pause)
	programs.POST("/:id/resume", programHandler.Resume)
	programs.POST("/:id/versions", programHandler.CreateVersion)
	programs.POST("/:id/versions/:versionID/approve", programHandler.ApproveVersion)
	programs.GET("/:id/runs", programHandler.ListRuns)

	r.POST("/schedules/preview", programHandler.PreviewSchedule)

	automations := r.Group("/automations")
	automations.POST("", automationHandler.Create)
	automations.GET("/:id", automationHandler.GetByID)
	automations.POST("/:id/enroll", automationHandler.Enroll)

	// Manual invocation triggers for deployments without the resident
	// scheduler daemon.
	internal := r.Group("/internal/run")
	internal.POST("/programs", triggerHandler.RunPrograms)
	internal.POST("/automations", triggerHandler.RunAutomations)

	return r
}
