package usecase

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/coursekit/mailsched/internal/domain"
	"github.com/coursekit/mailsched/internal/repository"
)

// Enroller places a recipient into an automation. Implemented by the
// scheduler's automation runner so the enrollment seeding rules live in
// one place.
type Enroller interface {
	Enroll(ctx context.Context, automationID, email string, contactID *string) (*domain.Enrollment, error)
}

type AutomationUsecase struct {
	automations repository.AutomationRepository
	enroller    Enroller
}

func NewAutomationUsecase(automations repository.AutomationRepository, enroller Enroller) *AutomationUsecase {
	return &AutomationUsecase{automations: automations, enroller: enroller}
}

type StepInput struct {
	DelayValue int
	DelayUnit  string
	Subject    string
	HTMLBody   string
}

type CreateAutomationInput struct {
	Name  string
	Steps []StepInput
}

var validDelayUnits = map[domain.DelayUnit]bool{
	domain.DelayMinutes: true,
	domain.DelayHours:   true,
	domain.DelayDays:    true,
	domain.DelayWeeks:   true,
}

// CreateAutomation creates an automation with its steps in submission
// order. Step orders are assigned sequentially from zero; an omitted
// delay unit defaults to days.
func (u *AutomationUsecase) CreateAutomation(ctx context.Context, input CreateAutomationInput) (*domain.Automation, []*domain.Step, error) {
	if len(input.Steps) == 0 {
		return nil, nil, domain.ErrNoSteps
	}

	steps := make([]*domain.Step, len(input.Steps))
	for i, s := range input.Steps {
		unit := domain.DelayUnit(s.DelayUnit)
		if unit == "" {
			unit = domain.DelayDays
		}
		if s.DelayValue < 0 || !validDelayUnits[unit] {
			return nil, nil, fmt.Errorf("step %d: %w", i, domain.ErrInvalidDelay)
		}
		steps[i] = &domain.Step{
			Order:      i,
			DelayValue: s.DelayValue,
			DelayUnit:  unit,
			Subject:    s.Subject,
			HTMLBody:   s.HTMLBody,
			Status:     domain.StepActive,
		}
	}

	created, err := u.automations.Create(ctx, &domain.Automation{
		Name:   input.Name,
		Status: domain.AutomationActive,
	}, steps)
	if err != nil {
		return nil, nil, fmt.Errorf("create automation: %w", err)
	}
	return created, steps, nil
}

func (u *AutomationUsecase) GetAutomation(ctx context.Context, id string) (*domain.Automation, []*domain.Step, error) {
	a, err := u.automations.GetByID(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("get automation: %w", err)
	}
	steps, err := u.automations.ListActiveSteps(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("list steps: %w", err)
	}
	return a, steps, nil
}

// Enroll validates the address and hands off to the runner's enrollment
// logic. Enrolling an already-active recipient is a no-op that returns
// the existing enrollment.
func (u *AutomationUsecase) Enroll(ctx context.Context, automationID, email string, contactID *string) (*domain.Enrollment, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidEmail, email)
	}
	return u.enroller.Enroll(ctx, automationID, email, contactID)
}
