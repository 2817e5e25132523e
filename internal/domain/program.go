package domain

import (
	"errors"
	"time"
)

var (
	ErrProgramNotFound     = errors.New("program not found")
	ErrProgramNameConflict = errors.New("program with this name already exists")
	ErrInvalidSchedule     = errors.New("schedule description is invalid")
	ErrVersionNotFound     = errors.New("version not found")
	ErrVersionNotApproved  = errors.New("current version is not approved")
	ErrInvalidStatus       = errors.New("invalid status value")
)

type ProgramKind string

const (
	KindBroadcast     ProgramKind = "broadcast"
	KindTransactional ProgramKind = "transactional"
)

type ProgramStatus string

const (
	ProgramActive ProgramStatus = "active"
	ProgramPaused ProgramStatus = "paused"
)

// UnsubscribePlaceholder is rewritten per recipient in broadcast content.
const UnsubscribePlaceholder = "{{unsubscribe_url}}"

type AudienceType string

const (
	AudienceAll     AudienceType = "all"
	AudienceSegment AudienceType = "segment"
)

// AudienceSpec describes which contacts a program reaches. Empty filter
// fields are unconstrained.
type AudienceSpec struct {
	Type         AudienceType
	Source       string
	LastCampaign string
}

// Program is a schedulable campaign. An empty ScheduleText makes it
// one-shot: it pauses itself after its first firing.
type Program struct {
	ID               string
	Name             string
	Kind             ProgramKind
	Status           ProgramStatus
	ScheduleText     string
	Timezone         string
	Audience         AudienceSpec
	CurrentVersionID *string
	NextRunAt        *time.Time
	LastRunAt        *time.Time
	ClaimedAt        *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (p *Program) OneShot() bool {
	return p.ScheduleText == ""
}

type VersionStatus string

const (
	VersionDraft    VersionStatus = "draft"
	VersionApproved VersionStatus = "approved"
)

// Version is an immutable content snapshot. A program sends whatever its
// current approved version holds at fire time.
type Version struct {
	ID          string
	ProgramID   string
	Subject     string
	HTMLBody    string
	PreviewText string
	Status      VersionStatus
	CreatedAt   time.Time
}
