// Package checkin implements the validation service: the single entry point
// that checks a scanned ticket against the ledger and marks attendance at
// most once per ticket, no matter how many stations race on it.
package checkin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/farellandr/spoticket-checkin/internal/backoff"
	"github.com/farellandr/spoticket-checkin/internal/ledger"
	"github.com/farellandr/spoticket-checkin/internal/models"
)

// ErrUnavailable is surfaced when the ledger stays unreachable after the
// retry budget. It means "could not reach the ledger", never a ticket verdict.
var ErrUnavailable = errors.New("validation service unavailable")

// ErrNotCheckedIn is returned by UndoCheckIn for a ticket that is not
// currently used.
var ErrNotCheckedIn = errors.New("ticket is not checked in")

// Snapshot is the payload of a station's pre-event snapshot pull.
type Snapshot struct {
	EventID     uuid.UUID   `json:"event_id"`
	TicketIDs   []uuid.UUID `json:"ticket_ids"`
	GeneratedAt time.Time   `json:"generated_at"`
}

// Service performs the atomic check-and-mark. Storage-level failures are
// retried with the shared backoff policy before being surfaced; ticket-state
// outcomes are definitive and never retried.
type Service struct {
	store       ledger.Store
	retry       backoff.Policy
	windowSlack time.Duration
	now         func() time.Time
	log         *logrus.Entry
}

func NewService(store ledger.Store, retry backoff.Policy, windowSlack time.Duration, log *logrus.Entry) *Service {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Service{
		store:       store,
		retry:       retry,
		windowSlack: windowSlack,
		now:         time.Now,
		log:         log,
	}
}

// Validate performs the authoritative check-and-mark for one scan.
//
// Exactly one ledger write happens on a VALID outcome; no write happens on
// any other outcome. Concurrent calls for the same ticket are serialized by
// the ledger's conditional update: one wins, the rest get ALREADY_USED with
// the winner's check-in stamp.
func (s *Service) Validate(ctx context.Context, ticketID, eventID uuid.UUID, stationID string) (*models.ScanResult, error) {
	ticket, err := s.findTicket(ctx, ticketID)
	if errors.Is(err, ledger.ErrNotFound) {
		return &models.ScanResult{
			Outcome: models.OutcomeNotFound,
			Message: "Ticket not found.",
		}, nil
	}
	if err != nil {
		return nil, err
	}

	if ticket.EventID != eventID {
		return &models.ScanResult{
			Outcome: models.OutcomeEventMismatch,
			Ticket:  ticket,
			Message: "Ticket belongs to a different event.",
		}, nil
	}

	event, err := s.findEvent(ctx, eventID)
	if errors.Is(err, ledger.ErrNotFound) {
		return &models.ScanResult{
			Outcome: models.OutcomeEventMismatch,
			Message: "Event not found.",
		}, nil
	}
	if err != nil {
		return nil, err
	}
	if event.Status != models.EventStatusApproved {
		return &models.ScanResult{
			Outcome: models.OutcomeEventMismatch,
			Ticket:  ticket,
			Message: "Event is not accepting check-ins.",
		}, nil
	}

	if ticket.State == models.TicketStateUsed {
		return s.alreadyUsed(ticket), nil
	}

	at := s.now().UTC()
	won, err := s.checkIn(ctx, ticketID, stationID, at)
	if errors.Is(err, ledger.ErrNotFound) {
		return &models.ScanResult{
			Outcome: models.OutcomeNotFound,
			Message: "Ticket not found.",
		}, nil
	}
	if err != nil {
		return nil, err
	}

	// The stamp is read back separately, with its own retries. The
	// conditional write is never re-run to answer a failed read.
	updated, err := s.findTicket(ctx, ticketID)
	if errors.Is(err, ledger.ErrNotFound) {
		return &models.ScanResult{
			Outcome: models.OutcomeNotFound,
			Message: "Ticket not found.",
		}, nil
	}
	if err != nil {
		return nil, err
	}
	if !won && !stampedBy(updated, stationID, at) {
		// Lost the race to another station between our read and the
		// conditional write.
		return s.alreadyUsed(updated), nil
	}

	s.log.WithFields(logrus.Fields{
		"ticket_id":  ticketID,
		"event_id":   eventID,
		"station_id": stationID,
	}).Info("ticket checked in")

	return &models.ScanResult{
		Outcome: models.OutcomeValid,
		Ticket:  updated,
		Message: fmt.Sprintf("Welcome, %s.", updated.AttendeeName),
		Flagged: s.outsideWindow(event),
	}, nil
}

// Verify is the idempotent variant used for live scans and reconciliation
// replay. The first call with a given request id runs Validate and records
// the outcome; any replay returns the recorded outcome with a fresh ticket
// snapshot and performs no further write.
func (s *Service) Verify(ctx context.Context, requestID, ticketID, eventID uuid.UUID, stationID string) (*models.ScanResult, error) {
	if recorded, err := s.findVerification(ctx, requestID); err == nil {
		return s.replay(ctx, recorded)
	} else if !errors.Is(err, ledger.ErrNotFound) {
		return nil, err
	}

	result, err := s.Validate(ctx, ticketID, eventID, stationID)
	if err != nil {
		return nil, err
	}

	record := &models.Verification{
		RequestID: requestID,
		TicketID:  ticketID,
		Outcome:   result.Outcome,
		CreatedAt: s.now().UTC(),
	}
	err = s.store.CreateVerification(ctx, record)
	if errors.Is(err, ledger.ErrDuplicateRequest) {
		// A concurrent replay of the same request id got there first;
		// its recorded outcome is the one both callers must see.
		recorded, findErr := s.findVerification(ctx, requestID)
		if findErr != nil {
			return nil, findErr
		}
		return s.replay(ctx, recorded)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UndoCheckIn reverses a staff error: used→valid, check-in stamp cleared.
// Restricted to operators by the route middleware.
func (s *Service) UndoCheckIn(ctx context.Context, ticketID uuid.UUID, operatorStationID string) (*models.Ticket, error) {
	ticket, err := s.findTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.State != models.TicketStateUsed {
		return nil, ErrNotCheckedIn
	}

	var updated *models.Ticket
	err = s.retry.Do(ctx, func() error {
		var opErr error
		updated, opErr = s.store.UndoCheckIn(ctx, ticketID)
		return opErr
	}, s.retryable)
	if err != nil {
		return nil, s.normalize(err)
	}

	s.log.WithFields(logrus.Fields{
		"ticket_id":  ticketID,
		"station_id": operatorStationID,
	}).Warn("check-in undone")
	return updated, nil
}

// Snapshot lists the tickets currently valid for an event, timestamped so the
// station can enforce its staleness bound.
func (s *Service) Snapshot(ctx context.Context, eventID uuid.UUID) (*Snapshot, error) {
	if _, err := s.findEvent(ctx, eventID); err != nil {
		return nil, err
	}

	var ids []uuid.UUID
	err := s.retry.Do(ctx, func() error {
		var opErr error
		ids, opErr = s.store.ValidTicketIDs(ctx, eventID)
		return opErr
	}, s.retryable)
	if err != nil {
		return nil, s.normalize(err)
	}
	return &Snapshot{EventID: eventID, TicketIDs: ids, GeneratedAt: s.now().UTC()}, nil
}

func (s *Service) alreadyUsed(ticket *models.Ticket) *models.ScanResult {
	msg := "Ticket already used."
	if ticket.CheckInTime != nil && ticket.CheckInStationID != nil {
		msg = fmt.Sprintf("Ticket already used at %s by station %s.",
			ticket.CheckInTime.Format(time.RFC3339), *ticket.CheckInStationID)
	}
	return &models.ScanResult{
		Outcome: models.OutcomeAlreadyUsed,
		Ticket:  ticket,
		Message: msg,
	}
}

// replay rebuilds a ScanResult from a recorded verification without touching
// ticket state. The snapshot is re-read so the caller still sees the current
// check-in stamp.
func (s *Service) replay(ctx context.Context, recorded *models.Verification) (*models.ScanResult, error) {
	ticket, err := s.findTicket(ctx, recorded.TicketID)
	if err != nil && !errors.Is(err, ledger.ErrNotFound) {
		return nil, err
	}

	result := &models.ScanResult{Outcome: recorded.Outcome, Ticket: ticket}
	switch recorded.Outcome {
	case models.OutcomeValid:
		result.Message = "Check-in confirmed."
	case models.OutcomeAlreadyUsed:
		if ticket != nil {
			return s.alreadyUsed(ticket), nil
		}
		result.Message = "Ticket already used."
	case models.OutcomeEventMismatch:
		result.Message = "Ticket belongs to a different event."
	case models.OutcomeNotFound:
		result.Message = "Ticket not found."
	}
	return result, nil
}

func (s *Service) findTicket(ctx context.Context, id uuid.UUID) (*models.Ticket, error) {
	var ticket *models.Ticket
	err := s.retry.Do(ctx, func() error {
		var opErr error
		ticket, opErr = s.store.FindTicket(ctx, id)
		return opErr
	}, s.retryable)
	return ticket, s.normalize(err)
}

func (s *Service) findEvent(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	var event *models.Event
	err := s.retry.Do(ctx, func() error {
		var opErr error
		event, opErr = s.store.FindEvent(ctx, id)
		return opErr
	}, s.retryable)
	return event, s.normalize(err)
}

func (s *Service) findVerification(ctx context.Context, id uuid.UUID) (*models.Verification, error) {
	var v *models.Verification
	err := s.retry.Do(ctx, func() error {
		var opErr error
		v, opErr = s.store.FindVerification(ctx, id)
		return opErr
	}, s.retryable)
	return v, s.normalize(err)
}

func (s *Service) checkIn(ctx context.Context, ticketID uuid.UUID, stationID string, at time.Time) (bool, error) {
	var won bool
	err := s.retry.Do(ctx, func() error {
		var opErr error
		won, opErr = s.store.CheckIn(ctx, ticketID, stationID, at)
		return opErr
	}, s.retryable)
	return won, s.normalize(err)
}

// stampedBy reports whether the ticket carries exactly the stamp this call
// wrote. A retried conditional write whose first attempt committed but lost
// its acknowledgement observes won=false; its own stamp on the ticket means
// it was the winner after all.
func stampedBy(ticket *models.Ticket, stationID string, at time.Time) bool {
	return ticket.CheckInStationID != nil && *ticket.CheckInStationID == stationID &&
		ticket.CheckInTime != nil && ticket.CheckInTime.Equal(at)
}

func (s *Service) outsideWindow(event *models.Event) bool {
	now := s.now()
	return now.Before(event.StartTime.Add(-s.windowSlack)) || now.After(event.EndTime.Add(s.windowSlack))
}

func (s *Service) retryable(err error) bool {
	return errors.Is(err, ledger.ErrUnavailable)
}

// normalize maps an exhausted retry budget to ErrUnavailable while keeping
// definitive errors (ErrNotFound) intact.
func (s *Service) normalize(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ledger.ErrUnavailable) || errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(ErrUnavailable, err)
	}
	return err
}
