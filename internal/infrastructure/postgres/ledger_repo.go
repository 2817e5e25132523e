package postgres

import (
	"context"
	"fmt"

	"github.com/coursekit/mailsched/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

type LedgerRepository struct {
	pool *pgxpool.Pool
}

func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

func (r *LedgerRepository) HasDelivered(ctx context.Context, recipient, contentKey string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM delivery_ledger
			WHERE recipient = $1 AND content_key = $2 AND status = 'sent'
		)`,
		recipient, contentKey,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check ledger: %w", err)
	}
	return exists, nil
}

// Record upserts the attempt outcome. A 'sent' entry is final — a later
// failure for the same pair never downgrades it.
func (r *LedgerRepository) Record(ctx context.Context, entry *domain.LedgerEntry) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO delivery_ledger (recipient, content_key, status, error)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (recipient, content_key) DO UPDATE
		 SET status = EXCLUDED.status, error = EXCLUDED.error
		 WHERE delivery_ledger.status <> 'sent'`,
		entry.Recipient, entry.ContentKey, entry.Status, entry.Error)
	if err != nil {
		return fmt.Errorf("record delivery: %w", err)
	}
	return nil
}
