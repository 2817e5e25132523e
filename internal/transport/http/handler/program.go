package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/coursekit/mailsched/internal/domain"
	"github.com/coursekit/mailsched/internal/usecase"
	"github.com/gin-gonic/gin"
)

type ProgramHandler struct {
	programUsecase *usecase.ProgramUsecase
	logger         *slog.Logger
}

func NewProgramHandler(programUsecase *usecase.ProgramUsecase, logger *slog.Logger) *ProgramHandler {
	return &ProgramHandler{programUsecase: programUsecase, logger: logger.With("component", "program_handler")}
}

type audienceRequest struct {
	Type         string `json:"type"          binding:"omitempty,oneof=all segment"`
	Source       string `json:"source"        binding:"omitempty,max=256"`
	LastCampaign string `json:"last_campaign" binding:"omitempty,max=256"`
}

type createProgramRequest struct {
	Name         string          `json:"name"          binding:"required,max=256"`
	Kind         string          `json:"kind"          binding:"omitempty,oneof=broadcast transactional"`
	ScheduleText string          `json:"schedule_text" binding:"omitempty,max=512"`
	Timezone     string          `json:"timezone"      binding:"omitempty,max=64"`
	Audience     audienceRequest `json:"audience"`
	Subject      string          `json:"subject"       binding:"required,max=998"`
	HTMLBody     string          `json:"html_body"     binding:"required"`
	PreviewText  string          `json:"preview_text"  binding:"omitempty,max=512"`
}

type createProgramResponse struct {
	ID        string     `json:"id"`
	VersionID string     `json:"version_id"`
	NextRunAt *time.Time `json:"next_run_at,omitempty"`
	Warnings  []string   `json:"warnings,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

type programResponse struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Kind         string     `json:"kind"`
	Status       string     `json:"status"`
	ScheduleText string     `json:"schedule_text,omitempty"`
	Timezone     string     `json:"timezone,omitempty"`
	AudienceType string     `json:"audience_type"`
	VersionID    *string    `json:"version_id,omitempty"`
	NextRunAt    *time.Time `json:"next_run_at,omitempty"`
	LastRunAt    *time.Time `json:"last_run_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type runResponse struct {
	ID             string     `json:"id"`
	VersionID      string     `json:"version_id"`
	Status         string     `json:"status"`
	RecipientCount int        `json:"recipient_count"`
	AudienceSample []string   `json:"audience_sample,omitempty"`
	ProviderIDs    []string   `json:"provider_ids,omitempty"`
	Error          *string    `json:"error,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
}

func toProgramResponse(p *domain.Program) programResponse {
	return programResponse{
		ID:           p.ID,
		Name:         p.Name,
		Kind:         string(p.Kind),
		Status:       string(p.Status),
		ScheduleText: p.ScheduleText,
		Timezone:     p.Timezone,
		AudienceType: string(p.Audience.Type),
		VersionID:    p.CurrentVersionID,
		NextRunAt:    p.NextRunAt,
		LastRunAt:    p.LastRunAt,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func (h *ProgramHandler) Create(ctx *gin.Context) {
	var req createProgramRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.programUsecase.CreateProgram(ctx.Request.Context(), usecase.CreateProgramInput{
		Name:         req.Name,
		Kind:         domain.ProgramKind(req.Kind),
		ScheduleText: req.ScheduleText,
		Timezone:     req.Timezone,
		Audience: domain.AudienceSpec{
			Type:         domain.AudienceType(req.Audience.Type),
			Source:       req.Audience.Source,
			LastCampaign: req.Audience.LastCampaign,
		},
		Subject:     req.Subject,
		HTMLBody:    req.HTMLBody,
		PreviewText: req.PreviewText,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidSchedule):
			ctx.JSON(http.StatusBadRequest, gin.H{"error": errInvalidSchedule})
		case errors.Is(err, domain.ErrProgramNameConflict):
			ctx.JSON(http.StatusConflict, gin.H{"error": errProgramNameConflict})
		default:
			h.logger.ErrorContext(ctx.Request.Context(), "create program", "error", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		}
		return
	}

	ctx.JSON(http.StatusCreated, createProgramResponse{
		ID:        result.Program.ID,
		VersionID: result.Version.ID,
		NextRunAt: result.Program.NextRunAt,
		Warnings:  result.Warnings,
		CreatedAt: result.Program.CreatedAt,
	})
}

func (h *ProgramHandler) GetByID(ctx *gin.Context) {
	id := ctx.Param("id")

	p, err := h.programUsecase.GetProgram(ctx.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrProgramNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": errProgramNotFound})
			return
		}
		h.logger.ErrorContext(ctx.Request.Context(), "get program", "program_id", id, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	ctx.JSON(http.StatusOK, toProgramResponse(p))
}

func (h *ProgramHandler) List(ctx *gin.Context) {
	limit, _ := strconv.Atoi(ctx.Query("limit"))

	programs, err := h.programUsecase.ListPrograms(ctx.Request.Context(), usecase.ListProgramsInput{
		Status: ctx.Query("status"),
		Limit:  limit,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidStatus) {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": errInvalidStatus})
			return
		}
		h.logger.ErrorContext(ctx.Request.Context(), "list programs", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	items := make([]programResponse, len(programs))
	for i, p := range programs {
		items[i] = toProgramResponse(p)
	}
	ctx.JSON(http.StatusOK, gin.H{"programs": items})
}

func (h *ProgramHandler) Pause(ctx *gin.Context) {
	id := ctx.Param("id")

	if err := h.programUsecase.PauseProgram(ctx.Request.Context(), id); err != nil {
		if errors.Is(err, domain.ErrProgramNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": errProgramNotFound})
			return
		}
		h.logger.ErrorContext(ctx.Request.Context(), "pause program", "program_id", id, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	ctx.Status(http.StatusNoContent)
}

func (h *ProgramHandler) Resume(ctx *gin.Context) {
	id := ctx.Param("id")

	if err := h.programUsecase.ResumeProgram(ctx.Request.Context(), id); err != nil {
		if errors.Is(err, domain.ErrProgramNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": errProgramNotFound})
			return
		}
		h.logger.ErrorContext(ctx.Request.Context(), "resume program", "program_id", id, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	ctx.Status(http.StatusNoContent)
}

type createVersionRequest struct {
	Subject     string `json:"subject"      binding:"required,max=998"`
	HTMLBody    string `json:"html_body"    binding:"required"`
	PreviewText string `json:"preview_text" binding:"omitempty,max=512"`
}

func (h *ProgramHandler) CreateVersion(ctx *gin.Context) {
	var req createVersionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	v, err := h.programUsecase.CreateVersion(ctx.Request.Context(), usecase.CreateVersionInput{
		ProgramID:   ctx.Param("id"),
		Subject:     req.Subject,
		HTMLBody:    req.HTMLBody,
		PreviewText: req.PreviewText,
	})
	if err != nil {
		if errors.Is(err, domain.ErrProgramNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": errProgramNotFound})
			return
		}
		h.logger.ErrorContext(ctx.Request.Context(), "create version", "program_id", ctx.Param("id"), "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"id": v.ID, "status": string(v.Status), "created_at": v.CreatedAt})
}

func (h *ProgramHandler) ApproveVersion(ctx *gin.Context) {
	programID := ctx.Param("id")
	versionID := ctx.Param("versionID")

	if err := h.programUsecase.ApproveVersion(ctx.Request.Context(), programID, versionID); err != nil {
		switch {
		case errors.Is(err, domain.ErrProgramNotFound):
			ctx.JSON(http.StatusNotFound, gin.H{"error": errProgramNotFound})
		case errors.Is(err, domain.ErrVersionNotFound):
			ctx.JSON(http.StatusNotFound, gin.H{"error": errVersionNotFound})
		default:
			h.logger.ErrorContext(ctx.Request.Context(), "approve version",
				"program_id", programID, "version_id", versionID, "error", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		}
		return
	}

	ctx.Status(http.StatusNoContent)
}

func (h *ProgramHandler) ListRuns(ctx *gin.Context) {
	id := ctx.Param("id")
	limit, _ := strconv.Atoi(ctx.Query("limit"))

	runs, err := h.programUsecase.ListRuns(ctx.Request.Context(), id, limit)
	if err != nil {
		if errors.Is(err, domain.ErrProgramNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": errProgramNotFound})
			return
		}
		h.logger.ErrorContext(ctx.Request.Context(), "list runs", "program_id", id, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	items := make([]runResponse, len(runs))
	for i, r := range runs {
		items[i] = runResponse{
			ID:             r.ID,
			VersionID:      r.VersionID,
			Status:         string(r.Status),
			RecipientCount: r.RecipientCount,
			AudienceSample: r.AudienceSample,
			ProviderIDs:    r.ProviderIDs,
			Error:          r.Error,
			StartedAt:      r.StartedAt,
			FinishedAt:     r.FinishedAt,
		}
	}
	ctx.JSON(http.StatusOK, gin.H{"runs": items})
}

type previewScheduleRequest struct {
	ScheduleText string `json:"schedule_text" binding:"required,max=512"`
	Timezone     string `json:"timezone"      binding:"omitempty,max=64"`
}

func (h *ProgramHandler) PreviewSchedule(ctx *gin.Context) {
	var req previewScheduleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	preview, err := h.programUsecase.PreviewSchedule(req.ScheduleText, req.Timezone)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidSchedule) {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": errInvalidSchedule})
			return
		}
		h.logger.ErrorContext(ctx.Request.Context(), "preview schedule", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"description": preview.Description,
		"cron_expr":   preview.CronExpr,
		"next_run_at": preview.NextRunAt,
		"warnings":    preview.Warnings,
	})
}
