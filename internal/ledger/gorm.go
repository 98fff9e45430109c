package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/farellandr/spoticket-checkin/internal/models"
)

// GormStore implements Store on a gorm-managed database (Postgres in
// production). The check-in transition is a conditional UPDATE keyed on the
// previous state; RowsAffected decides the winner, so two concurrent calls
// can never both succeed.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) FindTicket(ctx context.Context, id uuid.UUID) (*models.Ticket, error) {
	var ticket models.Ticket
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&ticket).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, wrapUnavailable(err)
	}
	return &ticket, nil
}

func (s *GormStore) FindEvent(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	var event models.Event
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, wrapUnavailable(err)
	}
	return &event, nil
}

func (s *GormStore) CreateTicket(ctx context.Context, ticket *models.Ticket) error {
	if err := s.db.WithContext(ctx).Create(ticket).Error; err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

func (s *GormStore) CheckIn(ctx context.Context, ticketID uuid.UUID, stationID string, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Ticket{}).
		Where("id = ? AND state = ?", ticketID, models.TicketStateValid).
		Updates(map[string]interface{}{
			"state":               models.TicketStateUsed,
			"check_in_time":       at,
			"check_in_station_id": stationID,
		})
	if res.Error != nil {
		return false, wrapUnavailable(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *GormStore) UndoCheckIn(ctx context.Context, ticketID uuid.UUID) (*models.Ticket, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Ticket{}).
		Where("id = ? AND state = ?", ticketID, models.TicketStateUsed).
		Updates(map[string]interface{}{
			"state":               models.TicketStateValid,
			"check_in_time":       nil,
			"check_in_station_id": nil,
		})
	if res.Error != nil {
		return nil, wrapUnavailable(res.Error)
	}
	return s.FindTicket(ctx, ticketID)
}

func (s *GormStore) FindVerification(ctx context.Context, requestID uuid.UUID) (*models.Verification, error) {
	var v models.Verification
	if err := s.db.WithContext(ctx).Where("request_id = ?", requestID).First(&v).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, wrapUnavailable(err)
	}
	return &v, nil
}

func (s *GormStore) CreateVerification(ctx context.Context, v *models.Verification) error {
	err := s.db.WithContext(ctx).Create(v).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateRequest
		}
		return wrapUnavailable(err)
	}
	return nil
}

func (s *GormStore) ValidTicketIDs(ctx context.Context, eventID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.db.WithContext(ctx).
		Model(&models.Ticket{}).
		Where("event_id = ? AND state = ?", eventID, models.TicketStateValid).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, wrapUnavailable(err)
	}
	return ids, nil
}

func wrapUnavailable(err error) error {
	return errors.Join(ErrUnavailable, err)
}
