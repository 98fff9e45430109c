package station

import (
	"testing"
	"time"

	"github.com/farellandr/spoticket-checkin/internal/models"
)

func newOffline(store Store, maxAge time.Duration) *OfflineValidator {
	return NewOfflineValidator(store, "gate-1", maxAge, nil)
}

func TestOfflineWithoutSnapshotIsUnknown(t *testing.T) {
	t.Parallel()
	o := newOffline(NewMemoryStore(), 15*time.Minute)

	result, err := o.Validate("t1", "e1")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if result.Outcome != models.OutcomeOfflineUnknown {
		t.Fatalf("outcome: got %s, want OFFLINE_UNKNOWN", result.Outcome)
	}
}

func TestOfflineStaleSnapshotIsUnknown(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()
	old := time.Now().Add(-time.Hour)
	if err := store.ReplaceSnapshot("e1", []string{"t1"}, old, old); err != nil {
		t.Fatalf("ReplaceSnapshot: %v", err)
	}

	o := newOffline(store, 15*time.Minute)
	result, err := o.Validate("t1", "e1")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if result.Outcome != models.OutcomeOfflineUnknown {
		t.Fatalf("outcome: got %s, want OFFLINE_UNKNOWN for stale snapshot", result.Outcome)
	}

	pending, _ := store.PendingOutbox()
	if len(pending) != 0 {
		t.Error("OFFLINE_UNKNOWN must not queue an outbox entry by itself")
	}
}

func TestOfflineProvisionalAcceptQueuesOutbox(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()
	now := time.Now()
	if err := store.ReplaceSnapshot("e1", []string{"t1", "t2"}, now, now); err != nil {
		t.Fatalf("ReplaceSnapshot: %v", err)
	}

	o := newOffline(store, 15*time.Minute)
	result, err := o.Validate("t1", "e1")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if result.Outcome != models.OutcomeOfflineProvisional {
		t.Fatalf("outcome: got %s, want OFFLINE_PROVISIONAL", result.Outcome)
	}
	if result.Outcome.Authoritative() {
		t.Error("provisional outcome must not present as authoritative")
	}

	pending, err := store.PendingOutbox()
	if err != nil {
		t.Fatalf("PendingOutbox: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("outbox entries: got %d, want 1", len(pending))
	}
	entry := pending[0]
	if entry.TicketID != "t1" || entry.EventID != "e1" || entry.StationID != "gate-1" {
		t.Errorf("entry fields: got %+v", entry)
	}
	if entry.LocalOutcome != models.OutcomeOfflineProvisional {
		t.Errorf("local outcome: got %s", entry.LocalOutcome)
	}
	if entry.SyncStatus != SyncPending {
		t.Errorf("sync status: got %s, want pending", entry.SyncStatus)
	}
}

func TestOfflineSecondScanOfAcceptedTicketIsNotProvisional(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()
	now := time.Now()
	if err := store.ReplaceSnapshot("e1", []string{"t1"}, now, now); err != nil {
		t.Fatalf("ReplaceSnapshot: %v", err)
	}

	o := newOffline(store, 15*time.Minute)
	if _, err := o.Validate("t1", "e1"); err != nil {
		t.Fatalf("first Validate: %v", err)
	}

	second, err := o.Validate("t1", "e1")
	if err != nil {
		t.Fatalf("second Validate: %v", err)
	}
	if second.Outcome != models.OutcomeOfflineUnknown {
		t.Fatalf("outcome: got %s, want OFFLINE_UNKNOWN for repeat scan", second.Outcome)
	}

	pending, _ := store.PendingOutbox()
	if len(pending) != 1 {
		t.Fatalf("outbox entries: got %d, want 1 (no duplicate accept)", len(pending))
	}
}

func TestOfflineTicketAbsentFromSnapshotIsUnknown(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()
	now := time.Now()
	if err := store.ReplaceSnapshot("e1", []string{"t1"}, now, now); err != nil {
		t.Fatalf("ReplaceSnapshot: %v", err)
	}

	o := newOffline(store, 15*time.Minute)
	result, err := o.Validate("unknown-ticket", "e1")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if result.Outcome != models.OutcomeOfflineUnknown {
		t.Fatalf("outcome: got %s, want OFFLINE_UNKNOWN", result.Outcome)
	}
}

func TestRecordOverrideQueuesEntryWithNote(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()
	o := newOffline(store, 15*time.Minute)

	entry, err := o.RecordOverride("t9", "e1", "paper ticket, name checked against guest list")
	if err != nil {
		t.Fatalf("RecordOverride: %v", err)
	}
	if entry.LocalOutcome != models.OutcomeOfflineUnknown {
		t.Errorf("local outcome: got %s, want OFFLINE_UNKNOWN", entry.LocalOutcome)
	}
	if entry.Note == "" {
		t.Error("override must carry the recorded details")
	}

	pending, _ := store.PendingOutbox()
	if len(pending) != 1 {
		t.Fatalf("outbox entries: got %d, want 1", len(pending))
	}
}
