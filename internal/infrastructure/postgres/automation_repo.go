package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/coursekit/mailsched/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const stepColumns = `id, automation_id, step_order, delay_value, delay_unit,
	       subject, html_body, status, created_at`

type AutomationRepository struct {
	pool *pgxpool.Pool
}

func NewAutomationRepository(pool *pgxpool.Pool) *AutomationRepository {
	return &AutomationRepository{pool: pool}
}

// Create inserts the automation and its steps in one transaction.
func (r *AutomationRepository) Create(ctx context.Context, a *domain.Automation, steps []*domain.Step) (*domain.Automation, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var created domain.Automation
	err = tx.QueryRow(ctx, `
		INSERT INTO automations (name, status)
		VALUES ($1, $2)
		RETURNING id, name, status, created_at, updated_at`,
		a.Name, a.Status,
	).Scan(&created.ID, &created.Name, &created.Status, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert automation: %w", err)
	}

	for _, s := range steps {
		_, err = tx.Exec(ctx, `
			INSERT INTO steps (automation_id, step_order, delay_value, delay_unit, subject, html_body, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			created.ID, s.Order, s.DelayValue, s.DelayUnit, s.Subject, s.HTMLBody, s.Status)
		if err != nil {
			return nil, fmt.Errorf("insert step %d: %w", s.Order, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &created, nil
}

func (r *AutomationRepository) GetByID(ctx context.Context, id string) (*domain.Automation, error) {
	var a domain.Automation
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, status, created_at, updated_at FROM automations WHERE id = $1`, id,
	).Scan(&a.ID, &a.Name, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAutomationNotFound
		}
		return nil, fmt.Errorf("scan automation: %w", err)
	}
	return &a, nil
}

func (r *AutomationRepository) ListActiveSteps(ctx context.Context, automationID string) ([]*domain.Step, error) {
	query := `
		SELECT ` + stepColumns + `
		FROM steps
		WHERE automation_id = $1 AND status = 'active'
		ORDER BY step_order ASC`

	rows, err := r.pool.Query(ctx, query, automationID)
	if err != nil {
		return nil, fmt.Errorf("list active steps: %w", err)
	}
	defer rows.Close()

	var steps []*domain.Step
	for rows.Next() {
		var s domain.Step
		err := rows.Scan(
			&s.ID, &s.AutomationID, &s.Order, &s.DelayValue, &s.DelayUnit,
			&s.Subject, &s.HTMLBody, &s.Status, &s.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		steps = append(steps, &s)
	}
	return steps, rows.Err()
}
