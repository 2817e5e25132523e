package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coursekit/mailsched/internal/domain"
	"github.com/coursekit/mailsched/internal/usecase"
	"github.com/gin-gonic/gin"
)

type AutomationHandler struct {
	automationUsecase *usecase.AutomationUsecase
	logger            *slog.Logger
}

func NewAutomationHandler(automationUsecase *usecase.AutomationUsecase, logger *slog.Logger) *AutomationHandler {
	return &AutomationHandler{automationUsecase: automationUsecase, logger: logger.With("component", "automation_handler")}
}

type stepRequest struct {
	DelayValue int    `json:"delay_value" binding:"min=0,max=365"`
	DelayUnit  string `json:"delay_unit"  binding:"omitempty,oneof=minutes hours days weeks"`
	Subject    string `json:"subject"     binding:"required,max=998"`
	HTMLBody   string `json:"html_body"   binding:"required"`
}

type createAutomationRequest struct {
	Name  string        `json:"name"  binding:"required,max=256"`
	Steps []stepRequest `json:"steps" binding:"required,min=1,max=50,dive"`
}

type stepResponse struct {
	ID         string `json:"id,omitempty"`
	Order      int    `json:"order"`
	DelayValue int    `json:"delay_value"`
	DelayUnit  string `json:"delay_unit"`
	Subject    string `json:"subject"`
}

func toStepResponses(steps []*domain.Step) []stepResponse {
	out := make([]stepResponse, len(steps))
	for i, s := range steps {
		out[i] = stepResponse{
			ID:         s.ID,
			Order:      s.Order,
			DelayValue: s.DelayValue,
			DelayUnit:  string(s.DelayUnit),
			Subject:    s.Subject,
		}
	}
	return out
}

func (h *AutomationHandler) Create(ctx *gin.Context) {
	var req createAutomationRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	steps := make([]usecase.StepInput, len(req.Steps))
	for i, s := range req.Steps {
		steps[i] = usecase.StepInput{
			DelayValue: s.DelayValue,
			DelayUnit:  s.DelayUnit,
			Subject:    s.Subject,
			HTMLBody:   s.HTMLBody,
		}
	}

	a, created, err := h.automationUsecase.CreateAutomation(ctx.Request.Context(), usecase.CreateAutomationInput{
		Name:  req.Name,
		Steps: steps,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNoSteps):
			ctx.JSON(http.StatusBadRequest, gin.H{"error": errNoSteps})
		case errors.Is(err, domain.ErrInvalidDelay):
			ctx.JSON(http.StatusBadRequest, gin.H{"error": errInvalidDelay})
		default:
			h.logger.ErrorContext(ctx.Request.Context(), "create automation", "error", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		}
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"id":         a.ID,
		"steps":      toStepResponses(created),
		"created_at": a.CreatedAt,
	})
}

func (h *AutomationHandler) GetByID(ctx *gin.Context) {
	id := ctx.Param("id")

	a, steps, err := h.automationUsecase.GetAutomation(ctx.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrAutomationNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": errAutomationNotFound})
			return
		}
		h.logger.ErrorContext(ctx.Request.Context(), "get automation", "automation_id", id, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"id":         a.ID,
		"name":       a.Name,
		"status":     string(a.Status),
		"steps":      toStepResponses(steps),
		"created_at": a.CreatedAt,
	})
}

type enrollRequest struct {
	Email     string  `json:"email"      binding:"required,email,max=320"`
	ContactID *string `json:"contact_id" binding:"omitempty,uuid"`
}

type enrollResponse struct {
	ID          string     `json:"id"`
	CurrentStep int        `json:"current_step"`
	Status      string     `json:"status"`
	NextStepAt  *time.Time `json:"next_step_at,omitempty"`
	EnrolledAt  time.Time  `json:"enrolled_at"`
}

func (h *AutomationHandler) Enroll(ctx *gin.Context) {
	id := ctx.Param("id")

	var req enrollRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	e, err := h.automationUsecase.Enroll(ctx.Request.Context(), id, req.Email, req.ContactID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAutomationNotFound):
			ctx.JSON(http.StatusNotFound, gin.H{"error": errAutomationNotFound})
		case errors.Is(err, domain.ErrDuplicateEnrollment):
			ctx.JSON(http.StatusConflict, gin.H{"error": errEnrollmentConflict})
		case errors.Is(err, domain.ErrInvalidEmail):
			ctx.JSON(http.StatusBadRequest, gin.H{"error": errInvalidEmailAddress})
		default:
			h.logger.ErrorContext(ctx.Request.Context(), "enroll", "automation_id", id, "error", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		}
		return
	}

	ctx.JSON(http.StatusCreated, enrollResponse{
		ID:          e.ID,
		CurrentStep: e.CurrentStep,
		Status:      string(e.Status),
		NextStepAt:  e.NextStepAt,
		EnrolledAt:  e.EnrolledAt,
	})
}
