package station

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/farellandr/spoticket-checkin/internal/backoff"
	"github.com/farellandr/spoticket-checkin/internal/models"
)

// ReconcileClient is the slice of the server API the reconciler needs.
// *Client satisfies it.
type ReconcileClient interface {
	Verify(ctx context.Context, requestID, ticketID, eventID string) (*models.ScanResult, error)
	ReportConflict(ctx context.Context, entry OutboxEntry, message string) error
}

// Reconciler drains the station's outbox against the idempotent verify entry
// point once connectivity returns. Entries are processed strictly in order,
// one at a time; parallel drains would amplify load during a reconnect storm
// and lose per-station ordering.
type Reconciler struct {
	store      Store
	client     ReconcileClient
	retry      backoff.Policy
	maxRetries int
	log        *logrus.Entry
}

func NewReconciler(store Store, client ReconcileClient, retry backoff.Policy, maxRetries int, log *logrus.Entry) *Reconciler {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Reconciler{
		store:      store,
		client:     client,
		retry:      retry,
		maxRetries: maxRetries,
		log:        log,
	}
}

// Drain replays every pending outbox entry. Each entry ends SYNCED (the
// ledger confirmed the station's offline decision), REJECTED (the ledger
// disagreed, a real conflict, reported as an alert), or stays pending for
// the next drain; entries that exhaust their retry budget go to REVIEW.
// Drain stops early when the server becomes unreachable again.
func (r *Reconciler) Drain(ctx context.Context) error {
	entries, err := r.store.PendingOutbox()
	if err != nil {
		return fmt.Errorf("load outbox: %w", err)
	}

	for i := range entries {
		entry := entries[i]

		var result *models.ScanResult
		err := r.retry.Do(ctx, func() error {
			var callErr error
			result, callErr = r.client.Verify(ctx, entry.ID.String(), entry.TicketID, entry.EventID)
			return callErr
		}, IsUnreachable)

		if err != nil {
			entry.RetryCount++
			if entry.RetryCount >= r.maxRetries {
				entry.SyncStatus = SyncReview
				r.log.WithFields(logrus.Fields{
					"ticket_id": entry.TicketID,
					"retries":   entry.RetryCount,
				}).Error("outbox entry flagged for manual review")
			}
			if updateErr := r.store.UpdateOutbox(&entry); updateErr != nil {
				return fmt.Errorf("update outbox: %w", updateErr)
			}
			if IsUnreachable(err) {
				// Connectivity is gone again; the rest of the outbox
				// waits for the next regained event.
				return err
			}
			continue
		}

		r.resolve(ctx, &entry, result)
		if err := r.store.UpdateOutbox(&entry); err != nil {
			return fmt.Errorf("update outbox: %w", err)
		}
	}
	return nil
}

func (r *Reconciler) resolve(ctx context.Context, entry *OutboxEntry, result *models.ScanResult) {
	if result.Outcome == models.OutcomeValid {
		entry.SyncStatus = SyncSynced
		r.log.WithField("ticket_id", entry.TicketID).Info("offline check-in confirmed")
		return
	}

	// The authoritative outcome disagrees with the station's offline
	// decision. Most important case: the ticket was provisionally accepted
	// here, but another station had already checked it in for real. That is
	// a double-entry incident and must reach a human.
	entry.SyncStatus = SyncRejected
	message := fmt.Sprintf("offline %s overturned: %s", entry.LocalOutcome, result.Message)

	r.log.WithFields(logrus.Fields{
		"ticket_id": entry.TicketID,
		"outcome":   result.Outcome,
	}).Warn("reconciliation conflict")

	if err := r.client.ReportConflict(ctx, *entry, message); err != nil {
		// The alert could not be filed; the REJECTED status still records
		// the conflict locally for the next operator inspection.
		r.log.WithError(err).Error("failed to report reconciliation conflict")
	}
}
