package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primary_key"`
	Name      string    `gorm:"unique;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

// User is a gate staff or operator account. StationID names the scanning
// station the account operates; it travels in the JWT and ends up stamped on
// every check-in the station wins.
type User struct {
	gorm.Model
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	Email     string    `gorm:"unique;not null"`
	Password  string    `gorm:"not null"`
	StationID string    `gorm:"not null"`
	RoleID    uuid.UUID
	Role      Role
}

func (user *User) BeforeCreate(tx *gorm.DB) (err error) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	return
}
