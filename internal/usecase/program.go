package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/coursekit/mailsched/internal/domain"
	"github.com/coursekit/mailsched/internal/repository"
	"github.com/coursekit/mailsched/internal/schedule"
)

type ProgramUsecase struct {
	programs repository.ProgramRepository
	versions repository.VersionRepository
	runs     repository.RunRepository
	now      func() time.Time
}

func NewProgramUsecase(programs repository.ProgramRepository, versions repository.VersionRepository, runs repository.RunRepository) *ProgramUsecase {
	return &ProgramUsecase{programs: programs, versions: versions, runs: runs, now: time.Now}
}

type CreateProgramInput struct {
	Name         string
	Kind         domain.ProgramKind
	ScheduleText string
	Timezone     string
	Audience     domain.AudienceSpec
	Subject      string
	HTMLBody     string
	PreviewText  string
}

type CreateProgramResult struct {
	Program *domain.Program
	Version *domain.Version
	// Warnings carries non-fatal ambiguities found in the schedule text,
	// e.g. two weekday names where only the first is honored.
	Warnings []string
}

// CreateProgram creates a program together with its first draft version.
// The program does not point at the version yet; ApproveVersion moves the
// pointer once the content is signed off.
//
// A program with schedule text gets next_run_at computed immediately. An
// empty schedule text makes the program one-shot: it becomes due right
// away and pauses itself after its only firing.
func (u *ProgramUsecase) CreateProgram(ctx context.Context, input CreateProgramInput) (CreateProgramResult, error) {
	if input.Kind == "" {
		input.Kind = domain.KindBroadcast
	}
	if input.Audience.Type == "" {
		input.Audience.Type = domain.AudienceAll
	}

	now := u.now()
	var nextRunAt time.Time
	var warnings []string
	if input.ScheduleText != "" {
		spec := schedule.Parse(input.ScheduleText)
		if isEmptySpec(spec) {
			return CreateProgramResult{}, domain.ErrInvalidSchedule
		}
		warnings = spec.Warnings
		nextRunAt = schedule.NextRun(input.ScheduleText, input.Timezone, now)
	} else {
		nextRunAt = now
	}

	program, err := u.programs.Create(ctx, &domain.Program{
		Name:         input.Name,
		Kind:         input.Kind,
		Status:       domain.ProgramActive,
		ScheduleText: input.ScheduleText,
		Timezone:     input.Timezone,
		Audience:     input.Audience,
		NextRunAt:    &nextRunAt,
	})
	if err != nil {
		return CreateProgramResult{}, err
	}

	version, err := u.versions.Create(ctx, &domain.Version{
		ProgramID:   program.ID,
		Subject:     input.Subject,
		HTMLBody:    input.HTMLBody,
		PreviewText: input.PreviewText,
		Status:      domain.VersionDraft,
	})
	if err != nil {
		return CreateProgramResult{}, fmt.Errorf("create initial version: %w", err)
	}

	return CreateProgramResult{Program: program, Version: version, Warnings: warnings}, nil
}

func isEmptySpec(spec schedule.Spec) bool {
	return spec.CronExpr == "" && spec.DayOfWeek == nil && spec.Hour == nil && spec.Interval == schedule.IntervalNone
}

func (u *ProgramUsecase) GetProgram(ctx context.Context, id string) (*domain.Program, error) {
	p, err := u.programs.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get program: %w", err)
	}
	return p, nil
}

type ListProgramsInput struct {
	Status string
	Limit  int
}

func (u *ProgramUsecase) ListPrograms(ctx context.Context, input ListProgramsInput) ([]*domain.Program, error) {
	status := domain.ProgramStatus(input.Status)
	if status != "" && status != domain.ProgramActive && status != domain.ProgramPaused {
		return nil, domain.ErrInvalidStatus
	}

	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	programs, err := u.programs.List(ctx, repository.ListProgramsInput{Status: status, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("list programs: %w", err)
	}
	return programs, nil
}

// PauseProgram parks the program; the scheduler never claims paused rows.
func (u *ProgramUsecase) PauseProgram(ctx context.Context, id string) error {
	if err := u.programs.SetStatus(ctx, id, domain.ProgramPaused, nil); err != nil {
		return fmt.Errorf("pause program: %w", err)
	}
	return nil
}

// ResumeProgram re-arms the program. Scheduled programs get a freshly
// computed next_run_at; one-shot programs become due immediately.
func (u *ProgramUsecase) ResumeProgram(ctx context.Context, id string) error {
	p, err := u.programs.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("resume program: %w", err)
	}

	next := u.now()
	if !p.OneShot() {
		next = schedule.NextRun(p.ScheduleText, p.Timezone, u.now())
	}
	if err := u.programs.SetStatus(ctx, id, domain.ProgramActive, &next); err != nil {
		return fmt.Errorf("resume program: %w", err)
	}
	return nil
}

type CreateVersionInput struct {
	ProgramID   string
	Subject     string
	HTMLBody    string
	PreviewText string
}

// CreateVersion snapshots new content as a draft. The program keeps
// sending its current version until the draft is approved.
func (u *ProgramUsecase) CreateVersion(ctx context.Context, input CreateVersionInput) (*domain.Version, error) {
	if _, err := u.programs.GetByID(ctx, input.ProgramID); err != nil {
		return nil, fmt.Errorf("get program: %w", err)
	}

	v, err := u.versions.Create(ctx, &domain.Version{
		ProgramID:   input.ProgramID,
		Subject:     input.Subject,
		HTMLBody:    input.HTMLBody,
		PreviewText: input.PreviewText,
		Status:      domain.VersionDraft,
	})
	if err != nil {
		return nil, fmt.Errorf("create version: %w", err)
	}
	return v, nil
}

// ApproveVersion approves the version and points the program at it, so
// the next firing sends the newly approved content.
func (u *ProgramUsecase) ApproveVersion(ctx context.Context, programID, versionID string) error {
	if _, err := u.programs.GetByID(ctx, programID); err != nil {
		return fmt.Errorf("get program: %w", err)
	}
	if err := u.versions.Approve(ctx, versionID); err != nil {
		return err
	}
	if err := u.programs.SetCurrentVersion(ctx, programID, versionID); err != nil {
		return fmt.Errorf("point program at version: %w", err)
	}
	return nil
}

func (u *ProgramUsecase) ListRuns(ctx context.Context, programID string, limit int) ([]*domain.Run, error) {
	if _, err := u.programs.GetByID(ctx, programID); err != nil {
		return nil, fmt.Errorf("get program: %w", err)
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	runs, err := u.runs.ListByProgramID(ctx, programID, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

type SchedulePreview struct {
	Description string
	CronExpr    string
	NextRunAt   time.Time
	Warnings    []string
}

// PreviewSchedule dry-runs a schedule description so operators can see
// how it will be interpreted before creating a program with it.
func (u *ProgramUsecase) PreviewSchedule(text, timezone string) (SchedulePreview, error) {
	spec := schedule.Parse(text)
	if isEmptySpec(spec) {
		return SchedulePreview{}, domain.ErrInvalidSchedule
	}

	cronExpr, _ := schedule.ToCron(spec)
	return SchedulePreview{
		Description: schedule.Format(spec),
		CronExpr:    cronExpr,
		NextRunAt:   schedule.NextRun(text, timezone, u.now()),
		Warnings:    spec.Warnings,
	}, nil
}
