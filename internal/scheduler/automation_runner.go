package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/coursekit/mailsched/internal/domain"
	"github.com/coursekit/mailsched/internal/gateway"
	"github.com/coursekit/mailsched/internal/metrics"
	"github.com/coursekit/mailsched/internal/repository"
)

type AutomationRunnerConfig struct {
	From       string
	ClaimTTL   time.Duration
	ClaimLimit int
}

// AutomationRunner advances per-recipient drip enrollments. Each due
// enrollment delivers its current step at most once (the delivery ledger
// guards duplicates) and then moves to the next active step or completes.
type AutomationRunner struct {
	automations repository.AutomationRepository
	enrollments repository.EnrollmentRepository
	ledger      repository.LedgerRepository
	sender      gateway.Sender
	logger      *slog.Logger
	cfg         AutomationRunnerConfig
	now         func() time.Time
}

func NewAutomationRunner(
	automations repository.AutomationRepository,
	enrollments repository.EnrollmentRepository,
	ledger repository.LedgerRepository,
	sender gateway.Sender,
	logger *slog.Logger,
	cfg AutomationRunnerConfig,
) *AutomationRunner {
	if cfg.ClaimTTL <= 0 {
		cfg.ClaimTTL = 5 * time.Minute
	}
	if cfg.ClaimLimit <= 0 {
		cfg.ClaimLimit = 100
	}
	return &AutomationRunner{
		automations: automations,
		enrollments: enrollments,
		ledger:      ledger,
		sender:      sender,
		logger:      logger.With("component", "automation_runner"),
		cfg:         cfg,
		now:         time.Now,
	}
}

// Start runs the automation scheduler on a fixed cadence until ctx is done.
func (r *AutomationRunner) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("automation runner started", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("automation runner shut down")
			return
		case <-ticker.C:
			summary, err := r.RunOnce(ctx)
			if err != nil {
				r.logger.Error("automation cycle", "error", err)
				continue
			}
			if summary.Processed > 0 {
				r.logger.Info("automation cycle finished",
					"processed", summary.Processed,
					"sent", summary.Sent,
					"failed", summary.Failed,
				)
			}
		}
	}
}

// RunOnce processes every due enrollment once, inside a per-item failure
// boundary.
func (r *AutomationRunner) RunOnce(ctx context.Context) (Summary, error) {
	start := time.Now()
	defer func() {
		metrics.AutomationCycleDuration.Observe(time.Since(start).Seconds())
	}()

	var summary Summary
	now := r.now()

	due, err := r.enrollments.ClaimDue(ctx, now, now.Add(-r.cfg.ClaimTTL), r.cfg.ClaimLimit)
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("claim due enrollments: %v", err))
		return summary, fmt.Errorf("claim due enrollments: %w", err)
	}

	for _, e := range due {
		summary.Processed++

		delivered, err := r.processEnrollment(ctx, e, now)
		switch {
		case err != nil:
			summary.Failed++
			summary.Errors = append(summary.Errors, fmt.Sprintf("enrollment %s: %v", e.ID, err))
			metrics.EnrollmentsProcessedTotal.WithLabelValues("failed").Inc()
			r.logger.Warn("enrollment step failed, will retry next cycle", "enrollment_id", e.ID, "error", err)
		case delivered:
			summary.Sent++
			metrics.EnrollmentsProcessedTotal.WithLabelValues("sent").Inc()
		default:
			metrics.EnrollmentsProcessedTotal.WithLabelValues("skipped").Inc()
		}
	}

	return summary, nil
}

// processEnrollment delivers the current step and advances the state
// machine. A send failure releases the claim without advancing, so the
// step is retried on the next due cycle — at-least-once delivery, with
// the ledger turning retries into no-ops once a send has landed.
func (r *AutomationRunner) processEnrollment(ctx context.Context, e *domain.Enrollment, now time.Time) (bool, error) {
	steps, err := r.automations.ListActiveSteps(ctx, e.AutomationID)
	if err != nil {
		r.release(ctx, e)
		return false, fmt.Errorf("load steps: %w", err)
	}

	if len(steps) == 0 {
		return false, r.complete(ctx, e, now)
	}

	idx := -1
	for i, s := range steps {
		if s.Order == e.CurrentStep {
			idx = i
			break
		}
	}
	if idx == -1 {
		// The step was deactivated after enrollment. A dangling pointer
		// completes the enrollment instead of erroring forever.
		r.logger.Info("current step no longer active, completing",
			"enrollment_id", e.ID, "current_step", e.CurrentStep)
		return false, r.complete(ctx, e, now)
	}
	step := steps[idx]

	contentKey := domain.StepContentKey(e.AutomationID, step.ID)
	alreadySent, err := r.ledger.HasDelivered(ctx, e.Email, contentKey)
	if err != nil {
		r.release(ctx, e)
		return false, fmt.Errorf("check ledger: %w", err)
	}

	delivered := false
	if !alreadySent {
		msg := gateway.Message{
			From:    r.cfg.From,
			To:      e.Email,
			Subject: step.Subject,
			HTML:    step.HTMLBody,
		}
		if _, err := r.sender.SendBatch(ctx, []gateway.Message{msg}); err != nil {
			errMsg := err.Error()
			if lerr := r.ledger.Record(ctx, &domain.LedgerEntry{
				Recipient:  e.Email,
				ContentKey: contentKey,
				Status:     domain.DeliveryFailed,
				Error:      &errMsg,
			}); lerr != nil {
				r.logger.Error("record failed delivery", "enrollment_id", e.ID, "error", lerr)
			}
			r.release(ctx, e)
			return false, fmt.Errorf("send step %d: %w", step.Order, err)
		}

		metrics.EmailsSentTotal.Inc()
		if lerr := r.ledger.Record(ctx, &domain.LedgerEntry{
			Recipient:  e.Email,
			ContentKey: contentKey,
			Status:     domain.DeliverySent,
		}); lerr != nil {
			r.logger.Error("record delivery", "enrollment_id", e.ID, "error", lerr)
		}
		delivered = true
	}

	// Sent now or already ledgered — either way the step counts as
	// delivered and the enrollment advances.
	if idx+1 < len(steps) {
		next := steps[idx+1]
		nextAt := now.Add(next.Delay())
		if terr := e.Advance(next.Order, nextAt); terr != nil {
			return delivered, terr
		}
		if err := r.enrollments.Advance(ctx, e.ID, next.Order, nextAt); err != nil {
			return delivered, fmt.Errorf("advance: %w", err)
		}
		r.logger.Debug("enrollment advanced",
			"enrollment_id", e.ID, "current_step", next.Order, "next_step_at", nextAt)
		return delivered, nil
	}

	return delivered, r.complete(ctx, e, now)
}

// Enroll creates or reuses an enrollment for a recipient. An existing
// active enrollment is returned unchanged; a completed one is superseded
// by a fresh row. The first active step's delay seeds next_step_at, so
// even a zero-delay first step is delivered on the next scheduler pass,
// never synchronously.
func (r *AutomationRunner) Enroll(ctx context.Context, automationID, email string, contactID *string) (*domain.Enrollment, error) {
	if _, err := r.automations.GetByID(ctx, automationID); err != nil {
		return nil, err
	}

	existing, err := r.enrollments.FindActive(ctx, automationID, email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrEnrollmentNotFound) {
		return nil, fmt.Errorf("find enrollment: %w", err)
	}

	steps, err := r.automations.ListActiveSteps(ctx, automationID)
	if err != nil {
		return nil, fmt.Errorf("load steps: %w", err)
	}

	now := r.now()
	e := &domain.Enrollment{
		AutomationID: automationID,
		Email:        email,
		ContactID:    contactID,
		Status:       domain.EnrollmentActive,
		EnrolledAt:   now,
	}
	if len(steps) > 0 {
		e.CurrentStep = steps[0].Order
		nextAt := now.Add(steps[0].Delay())
		e.NextStepAt = &nextAt
	} else {
		// No active steps: due immediately, completed on the next pass.
		nextAt := now
		e.NextStepAt = &nextAt
	}

	created, err := r.enrollments.Create(ctx, e)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateEnrollment) {
			// Lost a race with a concurrent enrollment; return the winner.
			return r.enrollments.FindActive(ctx, automationID, email)
		}
		return nil, fmt.Errorf("create enrollment: %w", err)
	}
	return created, nil
}

func (r *AutomationRunner) complete(ctx context.Context, e *domain.Enrollment, now time.Time) error {
	if terr := e.Complete(now); terr != nil {
		return terr
	}
	if err := r.enrollments.Complete(ctx, e.ID, now); err != nil {
		return fmt.Errorf("complete: %w", err)
	}
	r.logger.Info("enrollment completed", "enrollment_id", e.ID, "automation_id", e.AutomationID)
	return nil
}

func (r *AutomationRunner) release(ctx context.Context, e *domain.Enrollment) {
	if err := r.enrollments.Release(ctx, e.ID); err != nil {
		r.logger.Error("release enrollment claim", "enrollment_id", e.ID, "error", err)
	}
}
