package domain

import (
	"time"

	"github.com/google/uuid"
)

// ConversationHide suppresses a conversation from one user's list. It only
// affects the hiding user's view; the composite key makes re-hiding a no-op.
type ConversationHide struct {
	UserID         uuid.UUID `gorm:"column:user_id;primaryKey;type:char(36)" json:"user_id"`
	ConversationID uuid.UUID `gorm:"column:conversation_id;primaryKey;type:char(36)" json:"conversation_id"`
	CreatedAt      time.Time `json:"created_at"`

	User         User         `gorm:"foreignKey:UserID;references:ID" json:"-"`
	Conversation Conversation `gorm:"foreignKey:ConversationID;references:ID" json:"-"`
}

// MessageHide suppresses one message from one user's view of history, under
// the same composite-key upsert contract as ConversationHide.
type MessageHide struct {
	UserID    uuid.UUID `gorm:"column:user_id;primaryKey;type:char(36)" json:"user_id"`
	MessageID uuid.UUID `gorm:"column:message_id;primaryKey;type:char(36)" json:"message_id"`
	CreatedAt time.Time `json:"created_at"`

	User    User    `gorm:"foreignKey:UserID;references:ID" json:"-"`
	Message Message `gorm:"foreignKey:MessageID;references:ID" json:"-"`
}
