package repository

import (
	"context"

	"github.com/coursekit/mailsched/internal/domain"
)

type RunRepository interface {
	Create(ctx context.Context, run *domain.Run) (*domain.Run, error)
	// MarkSent and MarkFailed only apply to runs still in 'sending';
	// a run that already reached a terminal status is never mutated.
	MarkSent(ctx context.Context, id string, providerIDs []string) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
	ListByProgramID(ctx context.Context, programID string, limit int) ([]*domain.Run, error)
}
