package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/coursekit/mailsched/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const enrollmentColumns = `id, automation_id, email, contact_id, current_step,
	       status, next_step_at, claimed_at, enrolled_at, completed_at`

type EnrollmentRepository struct {
	pool *pgxpool.Pool
}

func NewEnrollmentRepository(pool *pgxpool.Pool) *EnrollmentRepository {
	return &EnrollmentRepository{pool: pool}
}

// Create relies on a partial unique index over active enrollments, so a
// completed enrollment for the same pair never blocks re-enrollment.
func (r *EnrollmentRepository) Create(ctx context.Context, e *domain.Enrollment) (*domain.Enrollment, error) {
	query := `
		INSERT INTO enrollments (automation_id, email, contact_id, current_step, status, next_step_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + enrollmentColumns

	row := r.pool.QueryRow(ctx, query,
		e.AutomationID, e.Email, e.ContactID, e.CurrentStep, e.Status, e.NextStepAt)

	created, err := scanEnrollment(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrDuplicateEnrollment
		}
		return nil, err
	}
	return created, nil
}

func (r *EnrollmentRepository) FindActive(ctx context.Context, automationID, email string) (*domain.Enrollment, error) {
	query := `
		SELECT ` + enrollmentColumns + `
		FROM enrollments
		WHERE automation_id = $1 AND email = $2 AND status = 'active'`

	return scanEnrollment(r.pool.QueryRow(ctx, query, automationID, email))
}

func (r *EnrollmentRepository) ClaimDue(ctx context.Context, now, staleBefore time.Time, limit int) ([]*domain.Enrollment, error) {
	query := `
		UPDATE enrollments
		SET    claimed_at = NOW()
		WHERE  id IN (
			SELECT id
			FROM   enrollments
			WHERE  status = 'active'
			  AND  next_step_at IS NOT NULL
			  AND  next_step_at <= $1
			  AND  (claimed_at IS NULL OR claimed_at < $2)
			ORDER  BY next_step_at ASC
			LIMIT  $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + enrollmentColumns

	rows, err := r.pool.Query(ctx, query, now, staleBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("claim due enrollments: %w", err)
	}
	defer rows.Close()

	var enrollments []*domain.Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		enrollments = append(enrollments, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate due enrollments: %w", err)
	}

	// UPDATE ... RETURNING does not preserve the subquery's ordering.
	sort.Slice(enrollments, func(i, j int) bool {
		return enrollments[i].NextStepAt.Before(*enrollments[j].NextStepAt)
	})
	return enrollments, nil
}

// Advance guards monotonicity in SQL: current_step never decreases and a
// completed enrollment is never advanced.
func (r *EnrollmentRepository) Advance(ctx context.Context, id string, currentStep int, nextStepAt time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE enrollments
		 SET current_step = $2, next_step_at = $3, claimed_at = NULL
		 WHERE id = $1 AND status = 'active' AND current_step <= $2`,
		id, currentStep, nextStepAt)
	if err != nil {
		return fmt.Errorf("advance enrollment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrIllegalTransition
	}
	return nil
}

func (r *EnrollmentRepository) Complete(ctx context.Context, id string, at time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE enrollments
		 SET status = 'completed', completed_at = $2, next_step_at = NULL, claimed_at = NULL
		 WHERE id = $1 AND status = 'active'`,
		id, at)
	if err != nil {
		return fmt.Errorf("complete enrollment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrIllegalTransition
	}
	return nil
}

func (r *EnrollmentRepository) Release(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE enrollments SET claimed_at = NULL WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("release enrollment claim: %w", err)
	}
	return nil
}

func scanEnrollment(row rowScanner) (*domain.Enrollment, error) {
	var e domain.Enrollment
	err := row.Scan(
		&e.ID, &e.AutomationID, &e.Email, &e.ContactID, &e.CurrentStep,
		&e.Status, &e.NextStepAt, &e.ClaimedAt, &e.EnrolledAt, &e.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEnrollmentNotFound
		}
		return nil, fmt.Errorf("scan enrollment: %w", err)
	}
	return &e, nil
}
