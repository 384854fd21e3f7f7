package domain

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MessageState string

const (
	MessageStateActive        MessageState = "active"
	MessageStateDeletedForAll MessageState = "deleted_for_all"
)

func (ms MessageState) IsValid() bool {
	switch ms {
	case MessageStateActive, MessageStateDeletedForAll:
		return true
	}
	return false
}

// Message is append-only; the only mutation after creation is the one-way
// active -> deleted_for_all transition performed through DeleteForAll.
type Message struct {
	ID             uuid.UUID    `gorm:"type:char(36);primaryKey" json:"id"`
	ConversationID uuid.UUID    `gorm:"column:conversation_id;not null;type:char(36)" json:"conversation_id"`
	SenderID       uuid.UUID    `gorm:"column:sender_id;not null;type:char(36)" json:"sender_id"`
	Content        string       `gorm:"column:content;not null" json:"content"`
	State          MessageState `gorm:"column:state;type:varchar(20);not null;default:'active'" json:"state"`
	DeletedAt      sql.NullTime `gorm:"column:deleted_at" json:"-"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`

	Conversation Conversation `gorm:"foreignKey:ConversationID;references:ID" json:"-"`
	Sender       User         `gorm:"foreignKey:SenderID;references:ID" json:"sender"`
}

func (m *Message) BeforeSave(tx *gorm.DB) (err error) {
	if !m.State.IsValid() {
		return fmt.Errorf("invalid message state: %s", m.State)
	}
	return nil
}

// Deleted reports whether the message has been removed for every participant.
func (m *Message) Deleted() bool {
	return m.State == MessageStateDeletedForAll
}

// DeleteForAll transitions the message to deleted_for_all. The transition is
// irreversible; calling it on an already deleted message changes nothing.
func (m *Message) DeleteForAll(at time.Time) {
	if m.Deleted() {
		return
	}
	m.State = MessageStateDeletedForAll
	m.DeletedAt = sql.NullTime{Time: at, Valid: true}
}
