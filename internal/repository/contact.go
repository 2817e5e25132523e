package repository

import (
	"context"

	"github.com/coursekit/mailsched/internal/domain"
)

type ContactRepository interface {
	Create(ctx context.Context, c *domain.Contact) (*domain.Contact, error)
	// ListEligible returns contacts matching the audience spec, always
	// excluding suppressed, unsubscribed and bounced addresses.
	ListEligible(ctx context.Context, spec domain.AudienceSpec) ([]*domain.Contact, error)
}
