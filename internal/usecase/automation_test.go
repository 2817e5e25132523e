package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/coursekit/mailsched/internal/domain"
)

type fakeAutomationRepo struct {
	createFn          func(ctx context.Context, a *domain.Automation, steps []*domain.Step) (*domain.Automation, error)
	getByIDFn         func(ctx context.Context, id string) (*domain.Automation, error)
	listActiveStepsFn func(ctx context.Context, automationID string) ([]*domain.Step, error)
}

func (f *fakeAutomationRepo) Create(ctx context.Context, a *domain.Automation, steps []*domain.Step) (*domain.Automation, error) {
	return f.createFn(ctx, a, steps)
}

func (f *fakeAutomationRepo) GetByID(ctx context.Context, id string) (*domain.Automation, error) {
	return f.getByIDFn(ctx, id)
}

func (f *fakeAutomationRepo) ListActiveSteps(ctx context.Context, automationID string) ([]*domain.Step, error) {
	return f.listActiveStepsFn(ctx, automationID)
}

type fakeEnroller struct {
	enrollFn func(ctx context.Context, automationID, email string, contactID *string) (*domain.Enrollment, error)
}

func (f *fakeEnroller) Enroll(ctx context.Context, automationID, email string, contactID *string) (*domain.Enrollment, error) {
	return f.enrollFn(ctx, automationID, email, contactID)
}

func TestCreateAutomation_AssignsSequentialOrders(t *testing.T) {
	var gotSteps []*domain.Step
	repo := &fakeAutomationRepo{
		createFn: func(_ context.Context, a *domain.Automation, steps []*domain.Step) (*domain.Automation, error) {
			a.ID = "a-1"
			gotSteps = steps
			return a, nil
		},
	}
	u := NewAutomationUsecase(repo, &fakeEnroller{})

	_, steps, err := u.CreateAutomation(context.Background(), CreateAutomationInput{
		Name: "welcome",
		Steps: []StepInput{
			{DelayValue: 0, Subject: "Welcome", HTMLBody: "<p>hi</p>"},
			{DelayValue: 3, DelayUnit: "days", Subject: "Tips", HTMLBody: "<p>tips</p>"},
			{DelayValue: 2, DelayUnit: "hours", Subject: "Nudge", HTMLBody: "<p>go</p>"},
		},
	})
	if err != nil {
		t.Fatalf("CreateAutomation: %v", err)
	}
	if len(gotSteps) != 3 {
		t.Fatalf("persisted %d steps, want 3", len(gotSteps))
	}
	for i, s := range steps {
		if s.Order != i {
			t.Errorf("step %d order = %d", i, s.Order)
		}
		if s.Status != domain.StepActive {
			t.Errorf("step %d status = %s, want active", i, s.Status)
		}
	}
	if steps[0].DelayUnit != domain.DelayDays {
		t.Errorf("omitted unit = %s, want the days default", steps[0].DelayUnit)
	}
}

func TestCreateAutomation_RejectsEmptyAndInvalidSteps(t *testing.T) {
	u := NewAutomationUsecase(&fakeAutomationRepo{}, &fakeEnroller{})

	_, _, err := u.CreateAutomation(context.Background(), CreateAutomationInput{Name: "empty"})
	if !errors.Is(err, domain.ErrNoSteps) {
		t.Fatalf("err = %v, want ErrNoSteps", err)
	}

	_, _, err = u.CreateAutomation(context.Background(), CreateAutomationInput{
		Name:  "bad unit",
		Steps: []StepInput{{DelayValue: 1, DelayUnit: "fortnights"}},
	})
	if !errors.Is(err, domain.ErrInvalidDelay) {
		t.Fatalf("err = %v, want ErrInvalidDelay", err)
	}

	_, _, err = u.CreateAutomation(context.Background(), CreateAutomationInput{
		Name:  "negative delay",
		Steps: []StepInput{{DelayValue: -1, DelayUnit: "days"}},
	})
	if !errors.Is(err, domain.ErrInvalidDelay) {
		t.Fatalf("err = %v, want ErrInvalidDelay", err)
	}
}

func TestEnroll_NormalizesAndValidatesEmail(t *testing.T) {
	var gotEmail string
	u := NewAutomationUsecase(&fakeAutomationRepo{}, &fakeEnroller{
		enrollFn: func(_ context.Context, _ string, email string, _ *string) (*domain.Enrollment, error) {
			gotEmail = email
			return &domain.Enrollment{ID: "e-1", Email: email}, nil
		},
	})

	if _, err := u.Enroll(context.Background(), "a-1", "  Student@Example.COM ", nil); err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	if gotEmail != "student@example.com" {
		t.Errorf("email = %q, want lowercased trimmed form", gotEmail)
	}

	if _, err := u.Enroll(context.Background(), "a-1", "not-an-address", nil); err == nil {
		t.Fatal("Enroll accepted an invalid address")
	}
}
