package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/coursekit/mailsched/internal/audience"
	"github.com/coursekit/mailsched/internal/domain"
	"github.com/coursekit/mailsched/internal/gateway"
	"github.com/coursekit/mailsched/internal/metrics"
	"github.com/coursekit/mailsched/internal/repository"
	"github.com/coursekit/mailsched/internal/schedule"
)

const audienceSampleSize = 10

type ProgramRunnerConfig struct {
	From               string
	UnsubscribeBaseURL string
	BatchSize          int
	ClaimTTL           time.Duration
	ClaimLimit         int
}

// ProgramRunner fires due broadcast and transactional programs. It is
// invoked as a discrete batch job; each invocation claims due programs,
// sends them inside a per-item failure boundary and reschedules them
// unconditionally.
type ProgramRunner struct {
	programs repository.ProgramRepository
	versions repository.VersionRepository
	runs     repository.RunRepository
	audience *audience.Resolver
	sender   gateway.Sender
	logger   *slog.Logger
	cfg      ProgramRunnerConfig
	now      func() time.Time
}

func NewProgramRunner(
	programs repository.ProgramRepository,
	versions repository.VersionRepository,
	runs repository.RunRepository,
	resolver *audience.Resolver,
	sender gateway.Sender,
	logger *slog.Logger,
	cfg ProgramRunnerConfig,
) *ProgramRunner {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.ClaimTTL <= 0 {
		cfg.ClaimTTL = 5 * time.Minute
	}
	if cfg.ClaimLimit <= 0 {
		cfg.ClaimLimit = 100
	}
	return &ProgramRunner{
		programs: programs,
		versions: versions,
		runs:     runs,
		audience: resolver,
		sender:   sender,
		logger:   logger.With("component", "program_runner"),
		cfg:      cfg,
		now:      time.Now,
	}
}

// Start runs the program scheduler on a fixed cadence until ctx is done.
func (r *ProgramRunner) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("program runner started", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("program runner shut down")
			return
		case <-ticker.C:
			summary, err := r.RunOnce(ctx)
			if err != nil {
				r.logger.Error("program cycle", "error", err)
				continue
			}
			if summary.Processed > 0 {
				r.logger.Info("program cycle finished",
					"processed", summary.Processed,
					"sent", summary.Sent,
					"failed", summary.Failed,
				)
			}
		}
	}
}

// RunOnce processes every due program once. A fetch failure aborts the
// whole invocation; any per-item failure is recorded and the batch
// continues.
func (r *ProgramRunner) RunOnce(ctx context.Context) (Summary, error) {
	start := time.Now()
	defer func() {
		metrics.ProgramCycleDuration.Observe(time.Since(start).Seconds())
	}()

	var summary Summary
	now := r.now()

	due, err := r.programs.ClaimDue(ctx, now, now.Add(-r.cfg.ClaimTTL), r.cfg.ClaimLimit)
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("claim due programs: %v", err))
		return summary, fmt.Errorf("claim due programs: %w", err)
	}

	for _, p := range due {
		summary.Processed++

		delivered, err := r.processProgram(ctx, p, now)
		switch {
		case err != nil:
			summary.Failed++
			summary.Errors = append(summary.Errors, fmt.Sprintf("program %s: %v", p.ID, err))
			metrics.ProgramsProcessedTotal.WithLabelValues("failed").Inc()
			r.logger.Warn("program failed", "program_id", p.ID, "error", err)
		case delivered:
			summary.Sent++
			metrics.ProgramsProcessedTotal.WithLabelValues("sent").Inc()
		default:
			metrics.ProgramsProcessedTotal.WithLabelValues("skipped").Inc()
		}
	}

	return summary, nil
}

// processProgram fires one program. Rescheduling happens on every path,
// send failure included — a failed cycle is not retried, the next
// opportunity is the newly computed next_run_at.
func (r *ProgramRunner) processProgram(ctx context.Context, p *domain.Program, now time.Time) (delivered bool, err error) {
	defer r.reschedule(ctx, p, now)

	version, err := r.versions.GetCurrent(ctx, p)
	if err != nil {
		return false, fmt.Errorf("resolve version: %w", err)
	}
	if version.Status != domain.VersionApproved {
		return false, fmt.Errorf("version %s: %w", version.ID, domain.ErrVersionNotApproved)
	}

	contacts, err := r.audience.Resolve(ctx, p.Audience)
	if err != nil {
		return false, err
	}
	if len(contacts) == 0 {
		r.logger.Info("audience empty, rescheduling without sending", "program_id", p.ID)
		return false, nil
	}

	sample := make([]string, 0, audienceSampleSize)
	for _, c := range contacts[:min(len(contacts), audienceSampleSize)] {
		sample = append(sample, c.Email)
	}

	run, err := r.runs.Create(ctx, &domain.Run{
		ProgramID:      p.ID,
		VersionID:      version.ID,
		Status:         domain.RunSending,
		RecipientCount: len(contacts),
		AudienceSample: sample,
	})
	if err != nil {
		return false, fmt.Errorf("create run: %w", err)
	}

	providerIDs, sendErr := r.send(ctx, p, version, contacts)
	if sendErr != nil {
		if terr := run.MarkFailed(sendErr.Error(), r.now()); terr != nil {
			r.logger.Error("run transition", "run_id", run.ID, "error", terr)
		}
		if err := r.runs.MarkFailed(ctx, run.ID, sendErr.Error()); err != nil {
			r.logger.Error("mark run failed", "run_id", run.ID, "error", err)
		}
		return false, fmt.Errorf("send: %w", sendErr)
	}

	if terr := run.MarkSent(providerIDs, r.now()); terr != nil {
		r.logger.Error("run transition", "run_id", run.ID, "error", terr)
	}
	if err := r.runs.MarkSent(ctx, run.ID, providerIDs); err != nil {
		r.logger.Error("mark run sent", "run_id", run.ID, "error", err)
	}

	r.logger.Info("program fired",
		"program_id", p.ID,
		"run_id", run.ID,
		"recipients", run.RecipientCount,
		"batches", len(providerIDs),
	)
	return true, nil
}

// send delivers the content in bounded batches and returns one gateway
// reference per batch. Broadcast content gets its unsubscribe link
// rewritten per recipient; transactional content goes out verbatim.
func (r *ProgramRunner) send(ctx context.Context, p *domain.Program, v *domain.Version, contacts []*domain.Contact) ([]string, error) {
	var providerIDs []string

	for start := 0; start < len(contacts); start += r.cfg.BatchSize {
		end := min(start+r.cfg.BatchSize, len(contacts))

		msgs := make([]gateway.Message, 0, end-start)
		for _, c := range contacts[start:end] {
			html := v.HTMLBody
			if p.Kind == domain.KindBroadcast {
				html = strings.ReplaceAll(html, domain.UnsubscribePlaceholder, r.unsubscribeURL(c))
			}
			msgs = append(msgs, gateway.Message{
				From:    r.cfg.From,
				To:      c.Email,
				Subject: v.Subject,
				HTML:    html,
			})
		}

		batchStart := time.Now()
		id, err := r.sender.SendBatch(ctx, msgs)
		if err != nil {
			metrics.GatewayBatchDuration.WithLabelValues("failure").Observe(time.Since(batchStart).Seconds())
			return nil, fmt.Errorf("batch %d: %w", len(providerIDs)+1, err)
		}
		metrics.GatewayBatchDuration.WithLabelValues("success").Observe(time.Since(batchStart).Seconds())
		metrics.EmailsSentTotal.Add(float64(len(msgs)))
		providerIDs = append(providerIDs, id)
	}

	return providerIDs, nil
}

// reschedule always runs, success or failure. A program with no schedule
// text is one-shot: it pauses itself and next_run_at stays unset.
func (r *ProgramRunner) reschedule(ctx context.Context, p *domain.Program, now time.Time) {
	if p.OneShot() {
		if err := r.programs.Reschedule(ctx, p.ID, domain.ProgramPaused, nil); err != nil {
			r.logger.Error("pause one-shot program", "program_id", p.ID, "error", err)
		}
		return
	}

	next := schedule.NextRun(p.ScheduleText, p.Timezone, now)
	if err := r.programs.Reschedule(ctx, p.ID, domain.ProgramActive, &next); err != nil {
		r.logger.Error("reschedule program", "program_id", p.ID, "error", err)
	}
}

func (r *ProgramRunner) unsubscribeURL(c *domain.Contact) string {
	return fmt.Sprintf("%s?contact=%s", r.cfg.UnsubscribeBaseURL, c.ID)
}
