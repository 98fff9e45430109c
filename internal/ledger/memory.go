package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/farellandr/spoticket-checkin/internal/models"
)

// MemoryStore is an in-process Store used by tests and by the station binary
// in demo mode. One mutex guards everything; the conditional check-in write is
// atomic under it.
type MemoryStore struct {
	mu            sync.Mutex
	tickets       map[uuid.UUID]*models.Ticket
	events        map[uuid.UUID]*models.Event
	verifications map[uuid.UUID]*models.Verification
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tickets:       make(map[uuid.UUID]*models.Ticket),
		events:        make(map[uuid.UUID]*models.Event),
		verifications: make(map[uuid.UUID]*models.Verification),
	}
}

// AddEvent seeds an event record.
func (s *MemoryStore) AddEvent(event *models.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *event
	s.events[event.ID] = &copied
}

func (s *MemoryStore) FindTicket(ctx context.Context, id uuid.UUID) (*models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *ticket
	return &copied, nil
}

func (s *MemoryStore) FindEvent(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *event
	return &copied, nil
}

func (s *MemoryStore) CreateTicket(ctx context.Context, ticket *models.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ticket.ID == uuid.Nil {
		ticket.ID = uuid.New()
	}
	if ticket.State == "" {
		ticket.State = models.TicketStateValid
	}
	copied := *ticket
	s.tickets[ticket.ID] = &copied
	return nil
}

func (s *MemoryStore) CheckIn(ctx context.Context, ticketID uuid.UUID, stationID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[ticketID]
	if !ok {
		return false, ErrNotFound
	}
	if ticket.State != models.TicketStateValid {
		return false, nil
	}
	ticket.State = models.TicketStateUsed
	t := at
	station := stationID
	ticket.CheckInTime = &t
	ticket.CheckInStationID = &station
	return true, nil
}

func (s *MemoryStore) UndoCheckIn(ctx context.Context, ticketID uuid.UUID) (*models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[ticketID]
	if !ok {
		return nil, ErrNotFound
	}
	ticket.State = models.TicketStateValid
	ticket.CheckInTime = nil
	ticket.CheckInStationID = nil
	copied := *ticket
	return &copied, nil
}

func (s *MemoryStore) FindVerification(ctx context.Context, requestID uuid.UUID) (*models.Verification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.verifications[requestID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *v
	return &copied, nil
}

func (s *MemoryStore) CreateVerification(ctx context.Context, v *models.Verification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.verifications[v.RequestID]; ok {
		return ErrDuplicateRequest
	}
	copied := *v
	s.verifications[v.RequestID] = &copied
	return nil
}

func (s *MemoryStore) ValidTicketIDs(ctx context.Context, eventID uuid.UUID) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uuid.UUID
	for id, ticket := range s.tickets {
		if ticket.EventID == eventID && ticket.State == models.TicketStateValid {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
