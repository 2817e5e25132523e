package repository

import (
	"context"

	"github.com/coursekit/mailsched/internal/domain"
)

// LedgerRepository is the idempotency guard. It is written after every
// send attempt and read only to answer "was this already delivered".
type LedgerRepository interface {
	// HasDelivered reports whether a successful entry exists for the
	// (recipient, content key) pair. Failed entries do not count.
	HasDelivered(ctx context.Context, recipient, contentKey string) (bool, error)
	// Record upserts the outcome of a send attempt. A 'sent' entry is
	// never downgraded by a later failure.
	Record(ctx context.Context, entry *domain.LedgerEntry) error
}
