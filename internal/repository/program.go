package repository

import (
	"context"
	"time"

	"github.com/coursekit/mailsched/internal/domain"
)

type ListProgramsInput struct {
	Status domain.ProgramStatus // empty = all statuses
	Limit  int
}

// Runner and API depend on interfaces, not concrete implementations, so
// the postgres layer can be swapped and tests can pass fakes.
type ProgramRepository interface {
	Create(ctx context.Context, p *domain.Program) (*domain.Program, error)
	GetByID(ctx context.Context, id string) (*domain.Program, error)
	List(ctx context.Context, input ListProgramsInput) ([]*domain.Program, error)
	SetStatus(ctx context.Context, id string, status domain.ProgramStatus, nextRunAt *time.Time) error

	// SetCurrentVersion points the program at the version it will send
	// next time it fires. Only called after the version is approved.
	SetCurrentVersion(ctx context.Context, programID, versionID string) error

	// ClaimDue atomically claims active programs with next_run_at <= now,
	// stamping claimed_at so overlapping invocations cannot double-process
	// them. Claims older than staleBefore are considered abandoned and
	// reclaimable. Results are ordered by next_run_at ascending.
	ClaimDue(ctx context.Context, now, staleBefore time.Time, limit int) ([]*domain.Program, error)

	// Reschedule stamps last_run_at, releases the claim and sets the next
	// due time. A nil nextRunAt together with a paused status parks a
	// one-shot program after its only firing.
	Reschedule(ctx context.Context, id string, status domain.ProgramStatus, nextRunAt *time.Time) error
}

type VersionRepository interface {
	Create(ctx context.Context, v *domain.Version) (*domain.Version, error)
	// GetCurrent loads the version a program currently points at.
	GetCurrent(ctx context.Context, program *domain.Program) (*domain.Version, error)
	Approve(ctx context.Context, id string) error
}
