package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/coursekit/mailsched/internal/domain"
	"github.com/coursekit/mailsched/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type rowScanner interface {
	Scan(dest ...any) error
}

const programColumns = `id, name, kind, status, schedule_text, timezone,
	       audience_type, audience_source, audience_last_campaign,
	       current_version_id, next_run_at, last_run_at, claimed_at,
	       created_at, updated_at`

type ProgramRepository struct {
	pool *pgxpool.Pool
}

func NewProgramRepository(pool *pgxpool.Pool) *ProgramRepository {
	return &ProgramRepository{pool: pool}
}

func (r *ProgramRepository) Create(ctx context.Context, p *domain.Program) (*domain.Program, error) {
	query := `
		INSERT INTO programs (
			name, kind, status, schedule_text, timezone,
			audience_type, audience_source, audience_last_campaign,
			current_version_id, next_run_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + programColumns

	row := r.pool.QueryRow(ctx, query,
		p.Name, p.Kind, p.Status, p.ScheduleText, p.Timezone,
		p.Audience.Type, p.Audience.Source, p.Audience.LastCampaign,
		p.CurrentVersionID, p.NextRunAt,
	)

	created, err := scanProgram(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrProgramNameConflict
		}
		return nil, err
	}
	return created, nil
}

func (r *ProgramRepository) GetByID(ctx context.Context, id string) (*domain.Program, error) {
	query := `SELECT ` + programColumns + ` FROM programs WHERE id = $1`
	return scanProgram(r.pool.QueryRow(ctx, query, id))
}

func (r *ProgramRepository) List(ctx context.Context, input repository.ListProgramsInput) ([]*domain.Program, error) {
	args := []any{}
	where := []string{"TRUE"}

	if input.Status != "" {
		args = append(args, input.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	args = append(args, input.Limit)

	query := fmt.Sprintf(`
		SELECT %s
		FROM programs
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d`,
		programColumns, strings.Join(where, " AND "), len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list programs: %w", err)
	}
	defer rows.Close()

	var programs []*domain.Program
	for rows.Next() {
		p, err := scanProgram(rows)
		if err != nil {
			return nil, err
		}
		programs = append(programs, p)
	}
	return programs, rows.Err()
}

func (r *ProgramRepository) SetStatus(ctx context.Context, id string, status domain.ProgramStatus, nextRunAt *time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE programs
		 SET status = $2, next_run_at = $3, claimed_at = NULL, updated_at = NOW()
		 WHERE id = $1`,
		id, status, nextRunAt)
	if err != nil {
		return fmt.Errorf("set program status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrProgramNotFound
	}
	return nil
}

func (r *ProgramRepository) SetCurrentVersion(ctx context.Context, programID, versionID string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE programs SET current_version_id = $2, updated_at = NOW() WHERE id = $1`,
		programID, versionID)
	if err != nil {
		return fmt.Errorf("set current version: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrProgramNotFound
	}
	return nil
}

// ClaimDue stamps claimed_at under FOR UPDATE SKIP LOCKED so overlapping
// invocations cannot double-process the same program. Claims older than
// staleBefore are treated as abandoned by a crashed invocation.
func (r *ProgramRepository) ClaimDue(ctx context.Context, now, staleBefore time.Time, limit int) ([]*domain.Program, error) {
	query := `
		UPDATE programs
		SET    claimed_at = NOW(), updated_at = NOW()
		WHERE  id IN (
			SELECT id
			FROM   programs
			WHERE  status = 'active'
			  AND  next_run_at IS NOT NULL
			  AND  next_run_at <= $1
			  AND  (claimed_at IS NULL OR claimed_at < $2)
			ORDER  BY next_run_at ASC
			LIMIT  $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + programColumns

	rows, err := r.pool.Query(ctx, query, now, staleBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("claim due programs: %w", err)
	}
	defer rows.Close()

	var programs []*domain.Program
	for rows.Next() {
		p, err := scanProgram(rows)
		if err != nil {
			return nil, err
		}
		programs = append(programs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate due programs: %w", err)
	}

	// UPDATE ... RETURNING does not preserve the subquery's ordering.
	sort.Slice(programs, func(i, j int) bool {
		return programs[i].NextRunAt.Before(*programs[j].NextRunAt)
	})
	return programs, nil
}

func (r *ProgramRepository) Reschedule(ctx context.Context, id string, status domain.ProgramStatus, nextRunAt *time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE programs
		 SET status = $2, next_run_at = $3, last_run_at = NOW(),
		     claimed_at = NULL, updated_at = NOW()
		 WHERE id = $1`,
		id, status, nextRunAt)
	if err != nil {
		return fmt.Errorf("reschedule program: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrProgramNotFound
	}
	return nil
}

func scanProgram(row rowScanner) (*domain.Program, error) {
	var p domain.Program
	err := row.Scan(
		&p.ID, &p.Name, &p.Kind, &p.Status, &p.ScheduleText, &p.Timezone,
		&p.Audience.Type, &p.Audience.Source, &p.Audience.LastCampaign,
		&p.CurrentVersionID, &p.NextRunAt, &p.LastRunAt, &p.ClaimedAt,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProgramNotFound
		}
		return nil, fmt.Errorf("scan program: %w", err)
	}
	return &p, nil
}
