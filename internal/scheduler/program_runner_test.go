package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/coursekit/mailsched/internal/audience"
	"github.com/coursekit/mailsched/internal/domain"
	"github.com/coursekit/mailsched/internal/gateway"
	"github.com/coursekit/mailsched/internal/repository"
)

type fakeProgramRepo struct {
	claimDueFn   func(ctx context.Context, now, staleBefore time.Time, limit int) ([]*domain.Program, error)
	rescheduleFn func(ctx context.Context, id string, status domain.ProgramStatus, nextRunAt *time.Time) error
}

func (f *fakeProgramRepo) Create(context.Context, *domain.Program) (*domain.Program, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeProgramRepo) GetByID(context.Context, string) (*domain.Program, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeProgramRepo) List(context.Context, repository.ListProgramsInput) ([]*domain.Program, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeProgramRepo) SetStatus(context.Context, string, domain.ProgramStatus, *time.Time) error {
	return errors.New("not implemented")
}

func (f *fakeProgramRepo) SetCurrentVersion(context.Context, string, string) error {
	return errors.New("not implemented")
}

func (f *fakeProgramRepo) ClaimDue(ctx context.Context, now, staleBefore time.Time, limit int) ([]*domain.Program, error) {
	return f.claimDueFn(ctx, now, staleBefore, limit)
}

func (f *fakeProgramRepo) Reschedule(ctx context.Context, id string, status domain.ProgramStatus, nextRunAt *time.Time) error {
	return f.rescheduleFn(ctx, id, status, nextRunAt)
}

type fakeVersionRepo struct {
	getCurrentFn func(ctx context.Context, program *domain.Program) (*domain.Version, error)
}

func (f *fakeVersionRepo) Create(context.Context, *domain.Version) (*domain.Version, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeVersionRepo) GetCurrent(ctx context.Context, program *domain.Program) (*domain.Version, error) {
	return f.getCurrentFn(ctx, program)
}

func (f *fakeVersionRepo) Approve(context.Context, string) error {
	return errors.New("not implemented")
}

type fakeRunRepo struct {
	createFn     func(ctx context.Context, run *domain.Run) (*domain.Run, error)
	markSentFn   func(ctx context.Context, id string, providerIDs []string) error
	markFailedFn func(ctx context.Context, id string, errMsg string) error
}

func (f *fakeRunRepo) Create(ctx context.Context, run *domain.Run) (*domain.Run, error) {
	return f.createFn(ctx, run)
}

func (f *fakeRunRepo) MarkSent(ctx context.Context, id string, providerIDs []string) error {
	return f.markSentFn(ctx, id, providerIDs)
}

func (f *fakeRunRepo) MarkFailed(ctx context.Context, id string, errMsg string) error {
	return f.markFailedFn(ctx, id, errMsg)
}

func (f *fakeRunRepo) ListByProgramID(context.Context, string, int) ([]*domain.Run, error) {
	return nil, errors.New("not implemented")
}

type fakeContactRepo struct {
	listEligibleFn func(ctx context.Context, spec domain.AudienceSpec) ([]*domain.Contact, error)
}

func (f *fakeContactRepo) Create(context.Context, *domain.Contact) (*domain.Contact, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeContactRepo) ListEligible(ctx context.Context, spec domain.AudienceSpec) ([]*domain.Contact, error) {
	return f.listEligibleFn(ctx, spec)
}

type fakeSender struct {
	sendBatchFn func(ctx context.Context, msgs []gateway.Message) (string, error)
}

func (f *fakeSender) SendBatch(ctx context.Context, msgs []gateway.Message) (string, error) {
	return f.sendBatchFn(ctx, msgs)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nopWriter{}, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func contactList(n int) []*domain.Contact {
	contacts := make([]*domain.Contact, n)
	for i := range contacts {
		contacts[i] = &domain.Contact{
			ID:    fmt.Sprintf("c-%d", i),
			Email: fmt.Sprintf("user%d@example.com", i),
		}
	}
	return contacts
}

var testNow = time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)

func testProgram() *domain.Program {
	vid := "v-1"
	return &domain.Program{
		ID:               "p-1",
		Name:             "weekly digest",
		Kind:             domain.KindBroadcast,
		Status:           domain.ProgramActive,
		ScheduleText:     "every monday at 9am",
		Timezone:         "UTC",
		Audience:         domain.AudienceSpec{Type: domain.AudienceAll},
		CurrentVersionID: &vid,
	}
}

func approvedVersion() *domain.Version {
	return &domain.Version{
		ID:        "v-1",
		ProgramID: "p-1",
		Subject:   "Hello",
		HTMLBody:  "<p>Hi</p><a href=\"" + domain.UnsubscribePlaceholder + "\">bye</a>",
		Status:    domain.VersionApproved,
	}
}

type programRunnerFixture struct {
	programs *fakeProgramRepo
	versions *fakeVersionRepo
	runs     *fakeRunRepo
	contacts *fakeContactRepo
	sender   *fakeSender

	rescheduled       []domain.ProgramStatus
	rescheduledNextAt []*time.Time
	createdRuns       []*domain.Run
	sentBatches       [][]gateway.Message
}

func newProgramRunnerFixture(due []*domain.Program, contacts []*domain.Contact) *programRunnerFixture {
	fx := &programRunnerFixture{}

	fx.programs = &fakeProgramRepo{
		claimDueFn: func(context.Context, time.Time, time.Time, int) ([]*domain.Program, error) {
			return due, nil
		},
		rescheduleFn: func(_ context.Context, _ string, status domain.ProgramStatus, nextRunAt *time.Time) error {
			fx.rescheduled = append(fx.rescheduled, status)
			fx.rescheduledNextAt = append(fx.rescheduledNextAt, nextRunAt)
			return nil
		},
	}
	fx.versions = &fakeVersionRepo{
		getCurrentFn: func(context.Context, *domain.Program) (*domain.Version, error) {
			return approvedVersion(), nil
		},
	}
	fx.runs = &fakeRunRepo{
		createFn: func(_ context.Context, run *domain.Run) (*domain.Run, error) {
			run.ID = "run-1"
			run.StartedAt = testNow
			fx.createdRuns = append(fx.createdRuns, run)
			return run, nil
		},
		markSentFn:   func(context.Context, string, []string) error { return nil },
		markFailedFn: func(context.Context, string, string) error { return nil },
	}
	fx.contacts = &fakeContactRepo{
		listEligibleFn: func(context.Context, domain.AudienceSpec) ([]*domain.Contact, error) {
			return contacts, nil
		},
	}
	fx.sender = &fakeSender{
		sendBatchFn: func(_ context.Context, msgs []gateway.Message) (string, error) {
			fx.sentBatches = append(fx.sentBatches, msgs)
			return fmt.Sprintf("batch-%d", len(fx.sentBatches)), nil
		},
	}
	return fx
}

func (fx *programRunnerFixture) runner(cfg ProgramRunnerConfig) *ProgramRunner {
	logger := discardLogger()
	r := NewProgramRunner(
		fx.programs,
		fx.versions,
		fx.runs,
		audience.NewResolver(fx.contacts, logger),
		fx.sender,
		logger,
		cfg,
	)
	r.now = func() time.Time { return testNow }
	return r
}

func defaultRunnerCfg() ProgramRunnerConfig {
	return ProgramRunnerConfig{
		From:               "courses@example.com",
		UnsubscribeBaseURL: "https://example.com/unsubscribe",
	}
}

func TestProgramRunner_SendsAndReschedules(t *testing.T) {
	fx := newProgramRunnerFixture([]*domain.Program{testProgram()}, contactList(3))
	r := fx.runner(defaultRunnerCfg())

	summary, err := r.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if summary.Processed != 1 || summary.Sent != 1 || summary.Failed != 0 {
		t.Fatalf("summary = %+v, want 1 processed, 1 sent", summary)
	}

	if len(fx.createdRuns) != 1 {
		t.Fatalf("created %d runs, want 1", len(fx.createdRuns))
	}
	run := fx.createdRuns[0]
	if run.Status != domain.RunSent {
		t.Errorf("run status = %s, want sent", run.Status)
	}
	if run.RecipientCount != 3 {
		t.Errorf("recipient count = %d, want 3", run.RecipientCount)
	}
	if len(run.ProviderIDs) != 1 || run.ProviderIDs[0] != "batch-1" {
		t.Errorf("provider ids = %v, want [batch-1]", run.ProviderIDs)
	}

	if len(fx.rescheduled) != 1 || fx.rescheduled[0] != domain.ProgramActive {
		t.Fatalf("rescheduled = %v, want one active reschedule", fx.rescheduled)
	}
	next := fx.rescheduledNextAt[0]
	if next == nil || !next.After(testNow) {
		t.Errorf("next run = %v, want strictly after %v", next, testNow)
	}
}

func TestProgramRunner_EmptyAudienceSkipsRunButReschedules(t *testing.T) {
	fx := newProgramRunnerFixture([]*domain.Program{testProgram()}, nil)
	r := fx.runner(defaultRunnerCfg())

	summary, err := r.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if summary.Processed != 1 || summary.Sent != 0 || summary.Failed != 0 {
		t.Fatalf("summary = %+v, want a skip, not a failure", summary)
	}
	if len(fx.createdRuns) != 0 {
		t.Errorf("created %d runs for an empty audience, want 0", len(fx.createdRuns))
	}
	if len(fx.sentBatches) != 0 {
		t.Errorf("sent %d batches for an empty audience, want 0", len(fx.sentBatches))
	}
	if len(fx.rescheduled) != 1 {
		t.Fatalf("rescheduled %d times, want 1", len(fx.rescheduled))
	}
	if fx.rescheduledNextAt[0] == nil || !fx.rescheduledNextAt[0].After(testNow) {
		t.Errorf("next run = %v, want strictly after now", fx.rescheduledNextAt[0])
	}
}

func TestProgramRunner_OneShotPausesAfterFiring(t *testing.T) {
	p := testProgram()
	p.ScheduleText = ""
	fx := newProgramRunnerFixture([]*domain.Program{p}, contactList(1))
	r := fx.runner(defaultRunnerCfg())

	summary, err := r.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if summary.Sent != 1 {
		t.Fatalf("summary = %+v, want 1 sent", summary)
	}
	if len(fx.rescheduled) != 1 || fx.rescheduled[0] != domain.ProgramPaused {
		t.Fatalf("rescheduled = %v, want paused", fx.rescheduled)
	}
	if fx.rescheduledNextAt[0] != nil {
		t.Errorf("one-shot next run = %v, want nil", fx.rescheduledNextAt[0])
	}
}

func TestProgramRunner_UnapprovedVersionFailsButReschedules(t *testing.T) {
	fx := newProgramRunnerFixture([]*domain.Program{testProgram()}, contactList(1))
	fx.versions.getCurrentFn = func(context.Context, *domain.Program) (*domain.Version, error) {
		v := approvedVersion()
		v.Status = domain.VersionDraft
		return v, nil
	}
	r := fx.runner(defaultRunnerCfg())

	summary, err := r.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if summary.Failed != 1 {
		t.Fatalf("summary = %+v, want 1 failed", summary)
	}
	if len(summary.Errors) != 1 || !strings.Contains(summary.Errors[0], domain.ErrVersionNotApproved.Error()) {
		t.Errorf("errors = %v, want a not-approved error", summary.Errors)
	}
	if len(fx.createdRuns) != 0 {
		t.Errorf("created %d runs without an approved version, want 0", len(fx.createdRuns))
	}
	if len(fx.rescheduled) != 1 {
		t.Errorf("rescheduled %d times, want 1 even on failure", len(fx.rescheduled))
	}
}

func TestProgramRunner_GatewayFailureMarksRunFailedAndReschedules(t *testing.T) {
	fx := newProgramRunnerFixture([]*domain.Program{testProgram()}, contactList(2))
	fx.sender.sendBatchFn = func(context.Context, []gateway.Message) (string, error) {
		return "", errors.New("provider down")
	}
	var failedRunID string
	fx.runs.markFailedFn = func(_ context.Context, id string, errMsg string) error {
		failedRunID = id
		if !strings.Contains(errMsg, "provider down") {
			t.Errorf("persisted error = %q, want the gateway error", errMsg)
		}
		return nil
	}
	r := fx.runner(defaultRunnerCfg())

	summary, err := r.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if summary.Failed != 1 || summary.Sent != 0 {
		t.Fatalf("summary = %+v, want 1 failed", summary)
	}
	if failedRunID != "run-1" {
		t.Errorf("marked failed run %q, want run-1", failedRunID)
	}
	if fx.createdRuns[0].Status != domain.RunFailed {
		t.Errorf("run status = %s, want failed", fx.createdRuns[0].Status)
	}
	if len(fx.rescheduled) != 1 || fx.rescheduled[0] != domain.ProgramActive {
		t.Fatalf("rescheduled = %v, want one active reschedule despite the failure", fx.rescheduled)
	}
}

func TestProgramRunner_BroadcastRewritesUnsubscribePerRecipient(t *testing.T) {
	fx := newProgramRunnerFixture([]*domain.Program{testProgram()}, contactList(2))
	r := fx.runner(defaultRunnerCfg())

	if _, err := r.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if len(fx.sentBatches) != 1 {
		t.Fatalf("sent %d batches, want 1", len(fx.sentBatches))
	}
	for i, msg := range fx.sentBatches[0] {
		if strings.Contains(msg.HTML, domain.UnsubscribePlaceholder) {
			t.Errorf("message %d still carries the placeholder", i)
		}
		want := fmt.Sprintf("https://example.com/unsubscribe?contact=c-%d", i)
		if !strings.Contains(msg.HTML, want) {
			t.Errorf("message %d html = %q, want link %q", i, msg.HTML, want)
		}
	}
}

func TestProgramRunner_TransactionalLeavesContentVerbatim(t *testing.T) {
	p := testProgram()
	p.Kind = domain.KindTransactional
	fx := newProgramRunnerFixture([]*domain.Program{p}, contactList(1))
	r := fx.runner(defaultRunnerCfg())

	if _, err := r.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	msg := fx.sentBatches[0][0]
	if !strings.Contains(msg.HTML, domain.UnsubscribePlaceholder) {
		t.Errorf("transactional html = %q, want the placeholder untouched", msg.HTML)
	}
}

func TestProgramRunner_SplitsIntoBatchesWithOneProviderIDEach(t *testing.T) {
	fx := newProgramRunnerFixture([]*domain.Program{testProgram()}, contactList(250))
	cfg := defaultRunnerCfg()
	cfg.BatchSize = 100
	r := fx.runner(cfg)

	if _, err := r.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if len(fx.sentBatches) != 3 {
		t.Fatalf("sent %d batches, want 3", len(fx.sentBatches))
	}
	for i, want := range []int{100, 100, 50} {
		if got := len(fx.sentBatches[i]); got != want {
			t.Errorf("batch %d size = %d, want %d", i, got, want)
		}
	}
	run := fx.createdRuns[0]
	if len(run.ProviderIDs) != 3 {
		t.Errorf("provider ids = %v, want one per batch", run.ProviderIDs)
	}
	if len(run.AudienceSample) != 10 {
		t.Errorf("audience sample size = %d, want 10", len(run.AudienceSample))
	}
}

func TestProgramRunner_ClaimFailureAbortsCycle(t *testing.T) {
	fx := newProgramRunnerFixture(nil, nil)
	fx.programs.claimDueFn = func(context.Context, time.Time, time.Time, int) ([]*domain.Program, error) {
		return nil, errors.New("connection refused")
	}
	r := fx.runner(defaultRunnerCfg())

	summary, err := r.RunOnce(context.Background())
	if err == nil {
		t.Fatal("RunOnce returned nil error on claim failure")
	}
	if len(summary.Errors) != 1 {
		t.Errorf("summary errors = %v, want exactly one", summary.Errors)
	}
}
