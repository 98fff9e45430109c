package station

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/farellandr/spoticket-checkin/internal/checkin"
	"github.com/farellandr/spoticket-checkin/internal/models"
)

// OfflineValidator renders a best-effort provisional verdict from the local
// snapshot when the ledger is unreachable. It never marks a ticket used;
// every accept lands in the outbox and must be confirmed on reconnect.
type OfflineValidator struct {
	store     Store
	stationID string
	maxAge    time.Duration
	now       func() time.Time
	log       *logrus.Entry
}

func NewOfflineValidator(store Store, stationID string, maxAge time.Duration, log *logrus.Entry) *OfflineValidator {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &OfflineValidator{
		store:     store,
		stationID: stationID,
		maxAge:    maxAge,
		now:       time.Now,
		log:       log,
	}
}

// Validate decides OFFLINE_PROVISIONAL or OFFLINE_UNKNOWN for one ticket.
//
// Provisional accept requires all of: a snapshot for the event, the snapshot
// younger than the staleness bound, the ticket listed valid in it, and no
// earlier provisional accept of the same ticket at this station. Anything
// less is OFFLINE_UNKNOWN: staff must use the manual override, never be
// shown a false "valid".
func (o *OfflineValidator) Validate(ticketID, eventID string) (*models.ScanResult, error) {
	meta, err := o.store.Snapshot(eventID)
	if errors.Is(err, ErrNoSnapshot) {
		return unknown("No offline snapshot for this event. Use manual override."), nil
	}
	if err != nil {
		return nil, err
	}

	if o.now().Sub(meta.FetchedAt) > o.maxAge {
		return unknown("Offline snapshot is stale. Use manual override."), nil
	}

	listed, err := o.store.SnapshotHas(eventID, ticketID)
	if err != nil {
		return nil, err
	}
	if !listed {
		return unknown("Ticket not in offline snapshot. Use manual override."), nil
	}

	accepted, err := o.store.HasPendingAccept(ticketID)
	if err != nil {
		return nil, err
	}
	if accepted {
		return unknown("Ticket was already provisionally accepted at this station."), nil
	}

	entry := &OutboxEntry{
		TicketID:        ticketID,
		EventID:         eventID,
		StationID:       o.stationID,
		ClientTimestamp: o.now().UTC(),
		LocalOutcome:    models.OutcomeOfflineProvisional,
		SyncStatus:      SyncPending,
	}
	if err := o.store.AppendOutbox(entry); err != nil {
		return nil, err
	}

	o.log.WithFields(logrus.Fields{
		"ticket_id": ticketID,
		"event_id":  eventID,
	}).Info("provisional accept queued")

	return &models.ScanResult{
		Outcome: models.OutcomeOfflineProvisional,
		Message: "PROVISIONAL: accepted offline, pending confirmation.",
	}, nil
}

// RecordOverride queues the manual override path: staff admit an attendee the
// snapshot could not confirm and record details for later reconciliation.
func (o *OfflineValidator) RecordOverride(ticketID, eventID, note string) (*OutboxEntry, error) {
	entry := &OutboxEntry{
		TicketID:        ticketID,
		EventID:         eventID,
		StationID:       o.stationID,
		ClientTimestamp: o.now().UTC(),
		LocalOutcome:    models.OutcomeOfflineUnknown,
		Note:            note,
		SyncStatus:      SyncPending,
	}
	if err := o.store.AppendOutbox(entry); err != nil {
		return nil, err
	}
	o.log.WithFields(logrus.Fields{
		"ticket_id": ticketID,
		"event_id":  eventID,
	}).Warn("manual override queued")
	return entry, nil
}

// RefreshSnapshot replaces the event's snapshot from a server pull. Called
// opportunistically whenever the station is online.
func (o *OfflineValidator) RefreshSnapshot(snap *checkin.Snapshot) error {
	ids := make([]string, 0, len(snap.TicketIDs))
	for _, id := range snap.TicketIDs {
		ids = append(ids, id.String())
	}
	return o.store.ReplaceSnapshot(snap.EventID.String(), ids, snap.GeneratedAt, o.now().UTC())
}

func unknown(message string) *models.ScanResult {
	return &models.ScanResult{
		Outcome: models.OutcomeOfflineUnknown,
		Message: message,
	}
}
