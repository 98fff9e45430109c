package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TicketState string

const (
	TicketStateValid TicketState = "valid"
	TicketStateUsed  TicketState = "used"
)

// Ticket is one purchased admission unit. Its ID is the exact payload encoded
// in the ticket's QR image. Tickets are created upstream and never deleted;
// the only mutation this subsystem performs is the valid→used transition.
type Ticket struct {
	ID               uuid.UUID   `gorm:"type:uuid;primary_key" json:"id"`
	EventID          uuid.UUID   `gorm:"type:uuid;not null;index" json:"event_id"`
	Event            *Event      `gorm:"foreignKey:EventID" json:"-"`
	TierID           uuid.UUID   `gorm:"type:uuid" json:"tier_id"`
	TierName         string      `gorm:"not null" json:"tier_name"`
	OwnerID          uuid.UUID   `gorm:"type:uuid;not null" json:"owner_id"`
	AttendeeName     string      `gorm:"not null" json:"attendee_name"`
	PricePaid        int         `gorm:"not null" json:"price_paid"`
	PurchaseDate     time.Time   `gorm:"not null" json:"purchase_date"`
	State            TicketState `gorm:"not null;default:'valid';index" json:"state"`
	CheckInTime      *time.Time  `json:"check_in_time,omitempty"`
	CheckInStationID *string     `json:"check_in_station_id,omitempty"`
	CreatedAt        time.Time   `json:"-"`
	UpdatedAt        time.Time   `json:"-"`
}

func (ticket *Ticket) BeforeCreate(tx *gorm.DB) (err error) {
	if ticket.ID == uuid.Nil {
		ticket.ID = uuid.New()
	}
	return
}
