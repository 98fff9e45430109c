// Package ledger is the canonical store of ticket identity and check-in
// state. All mutation goes through CheckIn's single conditional write; request
// handlers never touch ticket rows directly.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/farellandr/spoticket-checkin/internal/models"
)

// ErrNotFound is returned when a ticket, event or verification record does
// not exist.
var ErrNotFound = errors.New("not found")

// ErrUnavailable wraps storage-level failures (connection loss, timeouts).
// Callers retry these; they are never a verdict about the ticket.
var ErrUnavailable = errors.New("ledger unavailable")

// ErrDuplicateRequest is returned when a verification record already exists
// for a request id. The caller re-reads the recorded outcome.
var ErrDuplicateRequest = errors.New("duplicate request id")

// Store is the injectable ledger abstraction. CheckIn is the only operation
// that can set a ticket's state to used, and it must be atomic: of any number
// of concurrent calls for the same ticket, exactly one observes won=true.
type Store interface {
	FindTicket(ctx context.Context, id uuid.UUID) (*models.Ticket, error)
	FindEvent(ctx context.Context, id uuid.UUID) (*models.Event, error)
	CreateTicket(ctx context.Context, ticket *models.Ticket) error

	// CheckIn atomically transitions the ticket valid→used, stamping the
	// check-in time and station. won=false means the ticket was not in the
	// valid state; callers read the ticket afterwards for the winning
	// station's stamp. The write and the read are separate operations so a
	// failed read is never answered by re-running the conditional write.
	CheckIn(ctx context.Context, ticketID uuid.UUID, stationID string, at time.Time) (won bool, err error)

	// UndoCheckIn reverses used→valid, clearing the check-in stamp.
	UndoCheckIn(ctx context.Context, ticketID uuid.UUID) (*models.Ticket, error)

	// FindVerification and CreateVerification back the idempotent verify
	// entry point. CreateVerification returns ErrDuplicateRequest when the
	// request id was already recorded.
	FindVerification(ctx context.Context, requestID uuid.UUID) (*models.Verification, error)
	CreateVerification(ctx context.Context, v *models.Verification) error

	// ValidTicketIDs lists the tickets currently valid for an event, for
	// station snapshot pulls.
	ValidTicketIDs(ctx context.Context, eventID uuid.UUID) ([]uuid.UUID, error)
}
