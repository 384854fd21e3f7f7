package domain

import (
	"time"

	"github.com/google/uuid"
)

type ConversationParticipant struct {
	ConversationID uuid.UUID `gorm:"column:conversation_id;primaryKey;type:char(36)" json:"conversation_id"`
	UserID         uuid.UUID `gorm:"column:user_id;primaryKey;type:char(36)" json:"user_id"`
	JoinedAt       time.Time `gorm:"column:joined_at;not null" json:"joined_at"`

	Conversation Conversation `gorm:"foreignKey:ConversationID;references:ID" json:"-"`
	User         User         `gorm:"foreignKey:UserID;references:ID" json:"user"`
}
