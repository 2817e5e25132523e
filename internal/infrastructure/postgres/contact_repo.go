package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/coursekit/mailsched/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

const contactColumns = `id, email, source, last_campaign,
	       suppressed, unsubscribed, bounced, created_at`

type ContactRepository struct {
	pool *pgxpool.Pool
}

func NewContactRepository(pool *pgxpool.Pool) *ContactRepository {
	return &ContactRepository{pool: pool}
}

func (r *ContactRepository) Create(ctx context.Context, c *domain.Contact) (*domain.Contact, error) {
	query := `
		INSERT INTO contacts (email, source, last_campaign, suppressed, unsubscribed, bounced)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + contactColumns

	row := r.pool.QueryRow(ctx, query,
		c.Email, c.Source, c.LastCampaign, c.Suppressed, c.Unsubscribed, c.Bounced)

	var created domain.Contact
	err := row.Scan(
		&created.ID, &created.Email, &created.Source, &created.LastCampaign,
		&created.Suppressed, &created.Unsubscribed, &created.Bounced, &created.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert contact: %w", err)
	}
	return &created, nil
}

// ListEligible always excludes suppressed, unsubscribed and bounced
// contacts; segment filters narrow the rest.
func (r *ContactRepository) ListEligible(ctx context.Context, spec domain.AudienceSpec) ([]*domain.Contact, error) {
	args := []any{}
	where := []string{"NOT suppressed", "NOT unsubscribed", "NOT bounced"}

	if spec.Type == domain.AudienceSegment {
		if spec.Source != "" {
			args = append(args, spec.Source)
			where = append(where, fmt.Sprintf("source = $%d", len(args)))
		}
		if spec.LastCampaign != "" {
			args = append(args, spec.LastCampaign)
			where = append(where, fmt.Sprintf("last_campaign = $%d", len(args)))
		}
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM contacts
		WHERE %s
		ORDER BY created_at ASC`,
		contactColumns, strings.Join(where, " AND "))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list eligible contacts: %w", err)
	}
	defer rows.Close()

	var contacts []*domain.Contact
	for rows.Next() {
		var c domain.Contact
		err := rows.Scan(
			&c.ID, &c.Email, &c.Source, &c.LastCampaign,
			&c.Suppressed, &c.Unsubscribed, &c.Bounced, &c.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		contacts = append(contacts, &c)
	}
	return contacts, rows.Err()
}
