package domain

import (
	"errors"
	"time"
)

var ErrIllegalTransition = errors.New("illegal state transition")

type RunStatus string

const (
	RunSending RunStatus = "sending"
	RunSent    RunStatus = "sent"
	RunFailed  RunStatus = "failed"
)

// Run is the append-only audit record of one program firing. Once it
// reaches a terminal status it is never mutated again.
type Run struct {
	ID             string
	ProgramID      string
	VersionID      string
	Status         RunStatus
	RecipientCount int
	AudienceSample []string
	ProviderIDs    []string
	Error          *string
	StartedAt      time.Time
	FinishedAt     *time.Time
}

func (r *Run) IsTerminal() bool {
	return r.Status == RunSent || r.Status == RunFailed
}

// MarkSent transitions sending -> sent, recording one gateway reference per batch.
func (r *Run) MarkSent(providerIDs []string, at time.Time) error {
	if r.Status != RunSending {
		return ErrIllegalTransition
	}
	r.Status = RunSent
	r.ProviderIDs = providerIDs
	r.FinishedAt = &at
	return nil
}

// MarkFailed transitions sending -> failed, capturing the gateway error.
func (r *Run) MarkFailed(errMsg string, at time.Time) error {
	if r.Status != RunSending {
		return ErrIllegalTransition
	}
	r.Status = RunFailed
	r.Error = &errMsg
	r.FinishedAt = &at
	return nil
}
