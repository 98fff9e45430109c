package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type EventStatus string

const (
	EventStatusPending  EventStatus = "pending"
	EventStatusApproved EventStatus = "approved"
	EventStatusRejected EventStatus = "rejected"
)

// Event is the admission context a ticket is scoped to. Events are authored
// and approved upstream; this subsystem only reads them.
type Event struct {
	ID        uuid.UUID   `gorm:"type:uuid;primary_key" json:"id"`
	Title     string      `gorm:"not null" json:"title"`
	Status    EventStatus `gorm:"not null;default:'pending'" json:"status"`
	StartTime time.Time   `gorm:"not null" json:"start_time"`
	EndTime   time.Time   `gorm:"not null" json:"end_time"`
	CreatedAt time.Time   `json:"-"`
	UpdatedAt time.Time   `json:"-"`
}

func (event *Event) BeforeCreate(tx *gorm.DB) (err error) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	return
}
