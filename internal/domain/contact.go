package domain

import "time"

// Contact is a row in the audience store. Suppressed, unsubscribed and
// bounced contacts are never eligible recipients.
type Contact struct {
	ID           string
	Email        string
	Source       string
	LastCampaign string
	Suppressed   bool
	Unsubscribed bool
	Bounced      bool
	CreatedAt    time.Time
}
