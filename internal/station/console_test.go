package station

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/farellandr/spoticket-checkin/internal/models"
)

type recordingControl struct {
	dismissed int
	resets    int
}

func (c *recordingControl) Dismiss() { c.dismissed++ }
func (c *recordingControl) Reset()   { c.resets++ }

func runConsole(t *testing.T, input string, store Store) (*recordingControl, *Pipeline) {
	t.Helper()
	pipeline := NewPipeline()
	control := &recordingControl{}
	src := &ConsoleSource{
		R:       strings.NewReader(input),
		Control: control,
		Offline: NewOfflineValidator(store, "gate-1", 15*time.Minute, nil),
		EventID: "e1",
	}
	if err := src.Run(context.Background(), pipeline); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return control, pipeline
}

func TestConsolePlainLineIsScanCandidate(t *testing.T) {
	t.Parallel()
	_, pipeline := runConsole(t, "ticket-1\n", NewMemoryStore())

	got, err := pipeline.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if got != "ticket-1" {
		t.Errorf("Next: got %q, want %q", got, "ticket-1")
	}
}

func TestConsoleDismissAndResetCommands(t *testing.T) {
	t.Parallel()
	control, _ := runConsole(t, "/dismiss\n/reset\n/dismiss\n", NewMemoryStore())

	if control.dismissed != 2 {
		t.Errorf("dismiss calls: got %d, want 2", control.dismissed)
	}
	if control.resets != 1 {
		t.Errorf("reset calls: got %d, want 1", control.resets)
	}
}

func TestConsoleOverrideQueuesOutboxEntry(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()
	runConsole(t, "/override t9 paper ticket, name on guest list\n", store)

	pending, err := store.PendingOutbox()
	if err != nil {
		t.Fatalf("PendingOutbox: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("outbox entries: got %d, want 1", len(pending))
	}
	entry := pending[0]
	if entry.TicketID != "t9" || entry.EventID != "e1" {
		t.Errorf("entry fields: got %+v", entry)
	}
	if entry.LocalOutcome != models.OutcomeOfflineUnknown {
		t.Errorf("local outcome: got %s, want OFFLINE_UNKNOWN", entry.LocalOutcome)
	}
	if entry.Note != "paper ticket, name on guest list" {
		t.Errorf("note: got %q", entry.Note)
	}
}

func TestConsoleOverrideWithoutTicketIsRejected(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()
	control, pipeline := runConsole(t, "/override\n/unknown\n", store)

	if pending, _ := store.PendingOutbox(); len(pending) != 0 {
		t.Errorf("outbox entries: got %d, want 0", len(pending))
	}
	if control.dismissed != 0 || control.resets != 0 {
		t.Error("malformed commands must not drive the machine")
	}
	if len(pipeline.ch) != 0 {
		t.Error("commands must not become scan candidates")
	}
}
