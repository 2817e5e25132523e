package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrAutomationNotFound  = errors.New("automation not found")
	ErrEnrollmentNotFound  = errors.New("enrollment not found")
	ErrDuplicateEnrollment = errors.New("recipient is already enrolled in this automation")
	ErrNoSteps             = errors.New("automation needs at least one step")
	ErrInvalidDelay        = errors.New("step delay is invalid")
	ErrInvalidEmail        = errors.New("recipient address is invalid")
)

type AutomationStatus string

const (
	AutomationActive   AutomationStatus = "active"
	AutomationArchived AutomationStatus = "archived"
)

// Automation is a named ordered sequence of delayed steps (a drip campaign).
type Automation struct {
	ID        string
	Name      string
	Status    AutomationStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

type StepStatus string

const (
	StepActive   StepStatus = "active"
	StepInactive StepStatus = "inactive"
)

type DelayUnit string

const (
	DelayMinutes DelayUnit = "minutes"
	DelayHours   DelayUnit = "hours"
	DelayDays    DelayUnit = "days"
	DelayWeeks   DelayUnit = "weeks"
)

// Step is one stage of an automation. Its delay is measured from the time
// the previous step fired, or from enrollment time for the first step.
type Step struct {
	ID           string
	AutomationID string
	Order        int
	DelayValue   int
	DelayUnit    DelayUnit
	Subject      string
	HTMLBody     string
	Status       StepStatus
	CreatedAt    time.Time
}

func (s *Step) Delay() time.Duration {
	v := time.Duration(s.DelayValue)
	switch s.DelayUnit {
	case DelayMinutes:
		return v * time.Minute
	case DelayHours:
		return v * time.Hour
	case DelayWeeks:
		return v * 7 * 24 * time.Hour
	default:
		return v * 24 * time.Hour
	}
}

type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentCompleted EnrollmentStatus = "completed"
)

// Enrollment tracks one recipient's progress through an automation.
// CurrentStep is the step_order expected to fire next and never decreases.
type Enrollment struct {
	ID           string
	AutomationID string
	Email        string
	ContactID    *string
	CurrentStep  int
	Status       EnrollmentStatus
	NextStepAt   *time.Time
	ClaimedAt    *time.Time
	EnrolledAt   time.Time
	CompletedAt  *time.Time
}

// Advance moves the enrollment to the next step. Rejects moves on a
// completed enrollment and any decrease of CurrentStep.
func (e *Enrollment) Advance(nextOrder int, nextAt time.Time) error {
	if e.Status != EnrollmentActive {
		return fmt.Errorf("advance %s enrollment: %w", e.Status, ErrIllegalTransition)
	}
	if nextOrder < e.CurrentStep {
		return fmt.Errorf("step order %d < %d: %w", nextOrder, e.CurrentStep, ErrIllegalTransition)
	}
	e.CurrentStep = nextOrder
	e.NextStepAt = &nextAt
	return nil
}

// Complete terminates the enrollment. A completed enrollment never mutates again.
func (e *Enrollment) Complete(at time.Time) error {
	if e.Status != EnrollmentActive {
		return fmt.Errorf("complete %s enrollment: %w", e.Status, ErrIllegalTransition)
	}
	e.Status = EnrollmentCompleted
	e.CompletedAt = &at
	e.NextStepAt = nil
	return nil
}
