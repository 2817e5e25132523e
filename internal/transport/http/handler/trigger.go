package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/coursekit/mailsched/internal/scheduler"
	"github.com/gin-gonic/gin"
)

// Runner is one scheduler invocation. Both the program and automation
// runners satisfy it.
type Runner interface {
	RunOnce(ctx context.Context) (scheduler.Summary, error)
}

// TriggerHandler exposes the manual invocation endpoints used by
// HTTP-driven deployments (a cron service hitting the API instead of a
// resident daemon).
type TriggerHandler struct {
	programs    Runner
	automations Runner
	logger      *slog.Logger
}

func NewTriggerHandler(programs, automations Runner, logger *slog.Logger) *TriggerHandler {
	return &TriggerHandler{
		programs:    programs,
		automations: automations,
		logger:      logger.With("component", "trigger_handler"),
	}
}

func (h *TriggerHandler) RunPrograms(ctx *gin.Context) {
	h.run(ctx, h.programs, "program")
}

func (h *TriggerHandler) RunAutomations(ctx *gin.Context) {
	h.run(ctx, h.automations, "automation")
}

// run reports per-item failures in the summary with 200; only a failure
// to fetch due work at all is a 500.
func (h *TriggerHandler) run(ctx *gin.Context, runner Runner, kind string) {
	summary, err := runner.RunOnce(ctx.Request.Context())
	if err != nil {
		h.logger.ErrorContext(ctx.Request.Context(), "manual trigger", "kind", kind, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer, "summary": summary})
		return
	}
	ctx.JSON(http.StatusOK, summary)
}
