package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is owned by the external identity collaborator; the chat core only
// reads it to resolve callers, senders and recipients.
type User struct {
	ID        uuid.UUID `gorm:"type:char(36);primaryKey" json:"id"`
	Email     string    `gorm:"type:varchar(320);unique;not null" json:"-"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"-"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"-"`
}
