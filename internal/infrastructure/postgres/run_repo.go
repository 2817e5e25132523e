package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/coursekit/mailsched/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const runColumns = `id, program_id, version_id, status, recipient_count,
	       audience_sample, provider_ids, error, started_at, finished_at`

type RunRepository struct {
	pool *pgxpool.Pool
}

func NewRunRepository(pool *pgxpool.Pool) *RunRepository {
	return &RunRepository{pool: pool}
}

func (r *RunRepository) Create(ctx context.Context, run *domain.Run) (*domain.Run, error) {
	query := `
		INSERT INTO runs (program_id, version_id, status, recipient_count, audience_sample)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + runColumns

	row := r.pool.QueryRow(ctx, query,
		run.ProgramID, run.VersionID, run.Status, run.RecipientCount, run.AudienceSample)
	return scanRun(row)
}

// MarkSent only touches runs still in 'sending' — terminal runs are immutable.
func (r *RunRepository) MarkSent(ctx context.Context, id string, providerIDs []string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE runs
		 SET status = 'sent', provider_ids = $2, finished_at = NOW()
		 WHERE id = $1 AND status = 'sending'`,
		id, providerIDs)
	if err != nil {
		return fmt.Errorf("mark run sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrIllegalTransition
	}
	return nil
}

func (r *RunRepository) MarkFailed(ctx context.Context, id string, errMsg string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE runs
		 SET status = 'failed', error = $2, finished_at = NOW()
		 WHERE id = $1 AND status = 'sending'`,
		id, errMsg)
	if err != nil {
		return fmt.Errorf("mark run failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrIllegalTransition
	}
	return nil
}

func (r *RunRepository) ListByProgramID(ctx context.Context, programID string, limit int) ([]*domain.Run, error) {
	query := `
		SELECT ` + runColumns + `
		FROM runs
		WHERE program_id = $1
		ORDER BY started_at DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, programID, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanRun(row rowScanner) (*domain.Run, error) {
	var run domain.Run
	err := row.Scan(
		&run.ID, &run.ProgramID, &run.VersionID, &run.Status, &run.RecipientCount,
		&run.AudienceSample, &run.ProviderIDs, &run.Error, &run.StartedAt, &run.FinishedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("run not found")
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	return &run, nil
}
