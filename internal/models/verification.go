package models

import (
	"time"

	"github.com/google/uuid"
)

// Verification records the outcome of one idempotent verify call, keyed by the
// caller's request id. Replaying the same request id returns the recorded
// outcome instead of re-running the check-in, so a reconciler retrying after a
// dropped response can never double-count attendance.
type Verification struct {
	RequestID uuid.UUID   `gorm:"type:uuid;primary_key" json:"request_id"`
	TicketID  uuid.UUID   `gorm:"type:uuid;not null;index" json:"ticket_id"`
	Outcome   ScanOutcome `gorm:"not null" json:"outcome"`
	CreatedAt time.Time   `json:"created_at"`
}
