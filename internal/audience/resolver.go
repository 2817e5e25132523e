// Package audience resolves a program's audience specification to the
// concrete list of eligible recipients.
package audience

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/coursekit/mailsched/internal/domain"
	"github.com/coursekit/mailsched/internal/repository"
)

type Resolver struct {
	contacts repository.ContactRepository
	logger   *slog.Logger
}

func NewResolver(contacts repository.ContactRepository, logger *slog.Logger) *Resolver {
	return &Resolver{
		contacts: contacts,
		logger:   logger.With("component", "audience"),
	}
}

// Resolve returns the eligible recipients for the spec. Suppressed,
// unsubscribed and bounced contacts are excluded at the store level; an
// empty result is not an error.
func (r *Resolver) Resolve(ctx context.Context, spec domain.AudienceSpec) ([]*domain.Contact, error) {
	contacts, err := r.contacts.ListEligible(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("resolve audience: %w", err)
	}

	r.logger.Debug("audience resolved",
		"type", spec.Type,
		"source", spec.Source,
		"count", len(contacts),
	)
	return contacts, nil
}
