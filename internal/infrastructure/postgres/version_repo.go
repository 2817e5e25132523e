package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/coursekit/mailsched/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const versionColumns = `id, program_id, subject, html_body, preview_text, status, created_at`

type VersionRepository struct {
	pool *pgxpool.Pool
}

func NewVersionRepository(pool *pgxpool.Pool) *VersionRepository {
	return &VersionRepository{pool: pool}
}

func (r *VersionRepository) Create(ctx context.Context, v *domain.Version) (*domain.Version, error) {
	query := `
		INSERT INTO versions (program_id, subject, html_body, preview_text, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + versionColumns

	row := r.pool.QueryRow(ctx, query,
		v.ProgramID, v.Subject, v.HTMLBody, v.PreviewText, v.Status)
	return scanVersion(row)
}

func (r *VersionRepository) GetCurrent(ctx context.Context, program *domain.Program) (*domain.Version, error) {
	if program.CurrentVersionID == nil {
		return nil, domain.ErrVersionNotFound
	}

	query := `SELECT ` + versionColumns + ` FROM versions WHERE id = $1 AND program_id = $2`
	return scanVersion(r.pool.QueryRow(ctx, query, *program.CurrentVersionID, program.ID))
}

func (r *VersionRepository) Approve(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE versions SET status = 'approved' WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("approve version: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVersionNotFound
	}
	return nil
}

func scanVersion(row rowScanner) (*domain.Version, error) {
	var v domain.Version
	err := row.Scan(&v.ID, &v.ProgramID, &v.Subject, &v.HTMLBody, &v.PreviewText, &v.Status, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrVersionNotFound
		}
		return nil, fmt.Errorf("scan version: %w", err)
	}
	return &v, nil
}
