package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Alert is a reconciliation conflict surfaced to the operator view: an
// offline-accepted ticket turned out to have been checked in elsewhere.
type Alert struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	TicketID   uuid.UUID `gorm:"type:uuid;not null;index" json:"ticket_id"`
	EventID    uuid.UUID `gorm:"type:uuid;not null;index" json:"event_id"`
	StationID  string    `gorm:"not null" json:"station_id"`
	Message    string    `gorm:"not null" json:"message"`
	Resolved   bool      `gorm:"not null;default:false" json:"resolved"`
	ReportedAt time.Time `gorm:"not null" json:"reported_at"`
	CreatedAt  time.Time `json:"-"`
	UpdatedAt  time.Time `json:"-"`
}

func (alert *Alert) BeforeCreate(tx *gorm.DB) (err error) {
	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}
	return
}
