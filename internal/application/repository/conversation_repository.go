package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Grey-kingreys/gestion-contact-back/internal/domain"
	apperrors "github.com/Grey-kingreys/gestion-contact-back/pkg/errors"
)

type ConversationRepository interface {
	// FindBetween looks a conversation up by unordered pair membership.
	// Returns (nil, nil) when the pair has no conversation yet.
	FindBetween(ctx context.Context, userA, userB uuid.UUID) (*domain.Conversation, error)
	// Create persists a conversation between creator and recipient together
	// with its welcome message, in one transaction. The returned conversation
	// carries the welcome message and both participants. The insert is
	// guarded by the unique pair key; when a concurrent creator already won,
	// Create returns (nil, nil) and the caller re-reads the winner.
	Create(ctx context.Context, creator, recipient *domain.User) (*domain.Conversation, error)
	// FindByID loads a conversation with its participants, (nil, nil) when missing.
	FindByID(ctx context.Context, conversationID uuid.UUID) (*domain.Conversation, error)
	// AppendMessage adds a message to the conversation and bumps its
	// updated_at. The returned message has its sender loaded.
	AppendMessage(ctx context.Context, conversationID, senderID uuid.UUID, content string) (*domain.Message, error)
	// LatestMessage returns the most recent message regardless of visibility,
	// (nil, nil) when the conversation has none.
	LatestMessage(ctx context.Context, conversationID uuid.UUID) (*domain.Message, error)
	// FindMessageInConversation loads a message only if it belongs to the
	// conversation, (nil, nil) otherwise.
	FindMessageInConversation(ctx context.Context, messageID, conversationID uuid.UUID) (*domain.Message, error)
	// MarkDeletedForAll performs the one-way deleted-for-all transition.
	// Ownership is checked by the caller, not here.
	MarkDeletedForAll(ctx context.Context, messageID uuid.UUID) (*domain.Message, error)
	// ListForUser returns the conversations the viewer participates in and
	// has not hidden, newest activity first. Each entry carries its
	// participants and at most one message: the latest one visible to the
	// viewer (not deleted for all, not hidden by the viewer).
	ListForUser(ctx context.Context, viewerID uuid.UUID) ([]domain.Conversation, error)
	// Get loads a conversation with participants and the viewer's visible
	// message history in ascending creation order, (nil, nil) when missing.
	Get(ctx context.Context, conversationID, viewerID uuid.UUID) (*domain.Conversation, error)
}

type conversationRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewConversationRepository(db *gorm.DB, logger *zap.Logger) ConversationRepository {
	return &conversationRepository{db: db, logger: logger}
}

func (r *conversationRepository) FindBetween(ctx context.Context, userA, userB uuid.UUID) (*domain.Conversation, error) {
	var conversation domain.Conversation
	err := r.db.WithContext(ctx).
		Where("pair_key = ?", domain.PairKeyOf(userA, userB)).
		First(&conversation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "conversationRepo.FindBetween")
	}
	return &conversation, nil
}

func (r *conversationRepository) Create(ctx context.Context, creator, recipient *domain.User) (*domain.Conversation, error) {
	now := time.Now()
	conversation := domain.Conversation{
		ID:        uuid.New(),
		CreatorID: creator.ID,
		PairKey:   domain.PairKeyOf(creator.ID, recipient.ID),
		CreatedAt: now,
		UpdatedAt: now,
	}
	welcome := domain.Message{
		ID:             uuid.New(),
		ConversationID: conversation.ID,
		SenderID:       creator.ID,
		Content:        fmt.Sprintf("New conversation between %s and %s", creator.Name, recipient.Name),
		State:          domain.MessageStateActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	lostRace := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Insert-or-ignore on the pair key: two concurrent creators for the
		// same pair converge on a single row instead of both committing.
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "pair_key"}},
			DoNothing: true,
		}).Create(&conversation)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			lostRace = true
			return nil
		}
		for _, userID := range []uuid.UUID{creator.ID, recipient.ID} {
			participant := domain.ConversationParticipant{
				ConversationID: conversation.ID,
				UserID:         userID,
				JoinedAt:       now,
			}
			if err := tx.Create(&participant).Error; err != nil {
				return err
			}
		}
		return tx.Create(&welcome).Error
	})
	if err != nil {
		return nil, errors.Wrap(err, "conversationRepo.Create")
	}
	if lostRace {
		return nil, nil
	}

	r.logger.Info("conversation created",
		zap.String("conversation_id", conversation.ID.String()),
		zap.String("creator_id", creator.ID.String()),
		zap.String("recipient_id", recipient.ID.String()),
	)

	welcome.Sender = *creator
	conversation.Messages = []domain.Message{welcome}
	conversation.Participants = []domain.ConversationParticipant{
		{ConversationID: conversation.ID, UserID: creator.ID, JoinedAt: now, User: *creator},
		{ConversationID: conversation.ID, UserID: recipient.ID, JoinedAt: now, User: *recipient},
	}
	return &conversation, nil
}

func (r *conversationRepository) FindByID(ctx context.Context, conversationID uuid.UUID) (*domain.Conversation, error) {
	var conversation domain.Conversation
	err := r.db.WithContext(ctx).
		Preload("Participants.User").
		First(&conversation, "id = ?", conversationID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "conversationRepo.FindByID")
	}
	return &conversation, nil
}

func (r *conversationRepository) AppendMessage(ctx context.Context, conversationID, senderID uuid.UUID, content string) (*domain.Message, error) {
	// Enforced upstream by the service; re-checked here so no caller can
	// persist an empty message.
	if strings.TrimSpace(content) == "" {
		return nil, apperrors.ErrEmptyContent
	}

	now := time.Now()
	message := domain.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		State:          domain.MessageStateActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&message).Error; err != nil {
			return err
		}
		return tx.Model(&domain.Conversation{}).
			Where("id = ?", conversationID).
			Update("updated_at", now).Error
	})
	if err != nil {
		return nil, errors.Wrap(err, "conversationRepo.AppendMessage")
	}

	if err := r.db.WithContext(ctx).First(&message.Sender, "id = ?", senderID).Error; err != nil {
		return nil, errors.Wrap(err, "conversationRepo.AppendMessage.LoadSender")
	}
	return &message, nil
}

func (r *conversationRepository) LatestMessage(ctx context.Context, conversationID uuid.UUID) (*domain.Message, error) {
	var message domain.Message
	err := r.db.WithContext(ctx).
		Preload("Sender").
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		First(&message).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "conversationRepo.LatestMessage")
	}
	return &message, nil
}

func (r *conversationRepository) FindMessageInConversation(ctx context.Context, messageID, conversationID uuid.UUID) (*domain.Message, error) {
	var message domain.Message
	err := r.db.WithContext(ctx).
		Where("id = ? AND conversation_id = ?", messageID, conversationID).
		First(&message).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "conversationRepo.FindMessageInConversation")
	}
	return &message, nil
}

func (r *conversationRepository) MarkDeletedForAll(ctx context.Context, messageID uuid.UUID) (*domain.Message, error) {
	var message domain.Message
	if err := r.db.WithContext(ctx).First(&message, "id = ?", messageID).Error; err != nil {
		return nil, errors.Wrap(err, "conversationRepo.MarkDeletedForAll.Load")
	}

	message.DeleteForAll(time.Now())
	err := r.db.WithContext(ctx).Model(&message).
		Updates(map[string]interface{}{
			"state":      message.State,
			"deleted_at": message.DeletedAt,
		}).Error
	if err != nil {
		return nil, errors.Wrap(err, "conversationRepo.MarkDeletedForAll.Update")
	}
	return &message, nil
}

func (r *conversationRepository) ListForUser(ctx context.Context, viewerID uuid.UUID) ([]domain.Conversation, error) {
	hiddenConversations := r.db.Model(&domain.ConversationHide{}).
		Select("conversation_id").
		Where("user_id = ?", viewerID)

	var conversations []domain.Conversation
	err := r.db.WithContext(ctx).
		Joins("JOIN conversation_participants cp ON conversations.id = cp.conversation_id").
		Where("cp.user_id = ?", viewerID).
		Where("conversations.id NOT IN (?)", hiddenConversations).
		Order("conversations.updated_at DESC").
		Preload("Participants.User").
		Find(&conversations).Error
	if err != nil {
		return nil, errors.Wrap(err, "conversationRepo.ListForUser")
	}

	for i := range conversations {
		var last domain.Message
		err := r.visibleMessages(ctx, conversations[i].ID, viewerID).
			Order("created_at DESC").
			First(&last).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				conversations[i].Messages = nil
				continue
			}
			return nil, errors.Wrap(err, "conversationRepo.ListForUser.LastMessage")
		}
		conversations[i].Messages = []domain.Message{last}
	}
	return conversations, nil
}

func (r *conversationRepository) Get(ctx context.Context, conversationID, viewerID uuid.UUID) (*domain.Conversation, error) {
	conversation, err := r.FindByID(ctx, conversationID)
	if err != nil || conversation == nil {
		return conversation, err
	}

	var messages []domain.Message
	err = r.visibleMessages(ctx, conversationID, viewerID).
		Order("created_at ASC").
		Find(&messages).Error
	if err != nil {
		return nil, errors.Wrap(err, "conversationRepo.Get.Messages")
	}
	conversation.Messages = messages
	return conversation, nil
}

// visibleMessages scopes a query to the messages of one conversation that the
// viewer may read: not deleted for all, not hidden by the viewer.
func (r *conversationRepository) visibleMessages(ctx context.Context, conversationID, viewerID uuid.UUID) *gorm.DB {
	hiddenMessages := r.db.Model(&domain.MessageHide{}).
		Select("message_id").
		Where("user_id = ?", viewerID)

	return r.db.WithContext(ctx).
		Preload("Sender").
		Where("conversation_id = ?", conversationID).
		Where("state = ?", domain.MessageStateActive).
		Where("id NOT IN (?)", hiddenMessages)
}
