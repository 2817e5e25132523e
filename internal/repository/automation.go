package repository

import (
	"context"
	"time"

	"github.com/coursekit/mailsched/internal/domain"
)

type AutomationRepository interface {
	Create(ctx context.Context, a *domain.Automation, steps []*domain.Step) (*domain.Automation, error)
	GetByID(ctx context.Context, id string) (*domain.Automation, error)
	// ListActiveSteps returns the automation's active steps ordered by
	// step_order ascending. Inactive steps are never returned.
	ListActiveSteps(ctx context.Context, automationID string) ([]*domain.Step, error)
}

type EnrollmentRepository interface {
	// Create inserts a fresh enrollment. Returns ErrDuplicateEnrollment
	// when an active enrollment for the same (automation, recipient)
	// pair already exists; completed enrollments never conflict.
	Create(ctx context.Context, e *domain.Enrollment) (*domain.Enrollment, error)
	FindActive(ctx context.Context, automationID, email string) (*domain.Enrollment, error)

	// ClaimDue mirrors ProgramRepository.ClaimDue for enrollments,
	// ordered by next_step_at ascending.
	ClaimDue(ctx context.Context, now, staleBefore time.Time, limit int) ([]*domain.Enrollment, error)

	// Advance moves current_step forward and releases the claim.
	Advance(ctx context.Context, id string, currentStep int, nextStepAt time.Time) error
	// Complete terminates the enrollment, clears next_step_at and
	// releases the claim. Completed enrollments are never touched again.
	Complete(ctx context.Context, id string, at time.Time) error
	// Release clears the claim without advancing, so a failed send is
	// retried on the next due cycle.
	Release(ctx context.Context, id string) error
}
