package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/farellandr/spoticket-checkin/internal/models"
)

func TestMemoryCheckInIsAtomic(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()
	ticket := &models.Ticket{EventID: uuid.New(), State: models.TicketStateValid}
	if err := store.CreateTicket(context.Background(), ticket); err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}

	const attempts = 16
	var wg sync.WaitGroup
	wins := make([]bool, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			won, err := store.CheckIn(context.Background(), ticket.ID, "s", time.Now())
			if err != nil {
				t.Errorf("CheckIn: %v", err)
				return
			}
			wins[i] = won
		}(i)
	}
	wg.Wait()

	total := 0
	for _, won := range wins {
		if won {
			total++
		}
	}
	if total != 1 {
		t.Fatalf("winners: got %d, want exactly 1", total)
	}
}

func TestMemoryVerificationDuplicate(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()
	v := &models.Verification{RequestID: uuid.New(), TicketID: uuid.New(), Outcome: models.OutcomeValid}

	if err := store.CreateVerification(context.Background(), v); err != nil {
		t.Fatalf("first CreateVerification: %v", err)
	}
	if err := store.CreateVerification(context.Background(), v); err != ErrDuplicateRequest {
		t.Fatalf("second CreateVerification: got %v, want ErrDuplicateRequest", err)
	}
}

func TestMemoryValidTicketIDsExcludesUsed(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()
	eventID := uuid.New()

	valid := &models.Ticket{EventID: eventID, State: models.TicketStateValid}
	used := &models.Ticket{EventID: eventID, State: models.TicketStateValid}
	for _, ticket := range []*models.Ticket{valid, used} {
		if err := store.CreateTicket(context.Background(), ticket); err != nil {
			t.Fatalf("CreateTicket: %v", err)
		}
	}
	if _, err := store.CheckIn(context.Background(), used.ID, "s", time.Now()); err != nil {
		t.Fatalf("CheckIn: %v", err)
	}

	ids, err := store.ValidTicketIDs(context.Background(), eventID)
	if err != nil {
		t.Fatalf("ValidTicketIDs: %v", err)
	}
	if len(ids) != 1 || ids[0] != valid.ID {
		t.Fatalf("ids: got %v, want [%s]", ids, valid.ID)
	}
}
