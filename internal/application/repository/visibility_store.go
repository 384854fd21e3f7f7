package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Grey-kingreys/gestion-contact-back/internal/domain"
)

// VisibilityStore owns the per-user hide markers. Every write is an
// insert-or-ignore on the composite key, so concurrent duplicate hides
// converge on one row instead of racing a read-then-insert.
type VisibilityStore interface {
	HideConversation(ctx context.Context, userID, conversationID uuid.UUID) error
	HideMessage(ctx context.Context, userID, messageID uuid.UUID) error
	IsConversationHidden(ctx context.Context, userID, conversationID uuid.UUID) (bool, error)
	IsMessageHidden(ctx context.Context, userID, messageID uuid.UUID) (bool, error)
}

type visibilityStore struct {
	db *gorm.DB
}

func NewVisibilityStore(db *gorm.DB) VisibilityStore {
	return &visibilityStore{db: db}
}

func (s *visibilityStore) HideConversation(ctx context.Context, userID, conversationID uuid.UUID) error {
	hide := domain.ConversationHide{UserID: userID, ConversationID: conversationID}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "conversation_id"}},
		DoNothing: true,
	}).Create(&hide).Error
	if err != nil {
		return errors.Wrap(err, "visibilityStore.HideConversation")
	}
	return nil
}

func (s *visibilityStore) HideMessage(ctx context.Context, userID, messageID uuid.UUID) error {
	hide := domain.MessageHide{UserID: userID, MessageID: messageID}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "message_id"}},
		DoNothing: true,
	}).Create(&hide).Error
	if err != nil {
		return errors.Wrap(err, "visibilityStore.HideMessage")
	}
	return nil
}

func (s *visibilityStore) IsConversationHidden(ctx context.Context, userID, conversationID uuid.UUID) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&domain.ConversationHide{}).
		Where("user_id = ? AND conversation_id = ?", userID, conversationID).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "visibilityStore.IsConversationHidden")
	}
	return count > 0, nil
}

func (s *visibilityStore) IsMessageHidden(ctx context.Context, userID, messageID uuid.UUID) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&domain.MessageHide{}).
		Where("user_id = ? AND message_id = ?", userID, messageID).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "visibilityStore.IsMessageHidden")
	}
	return count > 0, nil
}
