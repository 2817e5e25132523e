package domain

import (
	"fmt"
	"time"
)

type DeliveryStatus string

const (
	DeliverySent   DeliveryStatus = "sent"
	DeliveryFailed DeliveryStatus = "failed"
)

// LedgerEntry is the idempotency guard for one (recipient, content) pair.
// It is written after every send attempt and read only before sending.
type LedgerEntry struct {
	ID         string
	Recipient  string
	ContentKey string
	Status     DeliveryStatus
	Error      *string
	CreatedAt  time.Time
}

// ProgramContentKey identifies a program firing's content for the ledger.
func ProgramContentKey(programID, versionID string) string {
	return fmt.Sprintf("program:%s:%s", programID, versionID)
}

// StepContentKey identifies an automation step's content for the ledger.
func StepContentKey(automationID, stepID string) string {
	return fmt.Sprintf("automation:%s:step:%s", automationID, stepID)
}
