package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Conversation is a two-participant thread owning an ordered sequence of
// messages. It is never hard-deleted; per-user removal is a ConversationHide.
// PairKey is the ordered user-id pair; its unique index is what guarantees
// one conversation per pair under concurrent creation.
type Conversation struct {
	ID        uuid.UUID `gorm:"primaryKey;type:char(36)" json:"id"`
	CreatorID uuid.UUID `gorm:"column:creator_id;not null;type:char(36)" json:"creator_id"`
	PairKey   string    `gorm:"column:pair_key;type:varchar(73);uniqueIndex;not null" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Creator      User                      `gorm:"foreignKey:CreatorID;references:ID" json:"-"`
	Participants []ConversationParticipant `gorm:"foreignKey:ConversationID" json:"participants"`
	Messages     []Message                 `gorm:"foreignKey:ConversationID" json:"-"`
}

// PairKeyOf builds the canonical key for an unordered user pair: both ids in
// lexical order joined by a colon, so (A,B) and (B,A) collide on the index.
func PairKeyOf(a, b uuid.UUID) string {
	as, bs := a.String(), b.String()
	if as > bs {
		as, bs = bs, as
	}
	return as + ":" + bs
}

func (c *Conversation) BeforeSave(tx *gorm.DB) (err error) {
	if len(c.Participants) == 2 && c.Participants[0].UserID == c.Participants[1].UserID {
		return fmt.Errorf("conversation participants must be distinct: %s", c.Participants[0].UserID)
	}
	return nil
}

// HasParticipant reports whether userID is a member of the conversation.
// Participants must be loaded.
func (c *Conversation) HasParticipant(userID uuid.UUID) bool {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}
