package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Grey-kingreys/gestion-contact-back/internal/application/repository"
	"github.com/Grey-kingreys/gestion-contact-back/internal/domain"
	apperrors "github.com/Grey-kingreys/gestion-contact-back/pkg/errors"
)

// Realtime event names, shared with connected clients.
const (
	EventNewMessage     = "chat:newMessage"
	EventMessageDeleted = "chat:messageDeleted"
)

// Broadcaster pushes an event to every connection in the conversation's room.
// Delivery is fire-and-forget; a returned error means the emission attempt
// itself failed, never that a client missed the event.
type Broadcaster interface {
	Emit(conversationID uuid.UUID, event string, payload interface{}) error
}

type UserRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type MessageView struct {
	ID        uuid.UUID `json:"id"`
	Content   string    `json:"content"`
	Sender    UserRef   `json:"sender"`
	CreatedAt time.Time `json:"created_at"`
}

type MessagePreview struct {
	Content string    `json:"content"`
	SentAt  time.Time `json:"sentAt"`
}

type ConversationSummary struct {
	ID          uuid.UUID    `json:"id"`
	UpdatedAt   time.Time    `json:"updated_at"`
	Users       []UserRef    `json:"users"`
	LastMessage *MessageView `json:"lastMessage"`
}

type ConversationDetail struct {
	ID        uuid.UUID     `json:"id"`
	UpdatedAt time.Time     `json:"updated_at"`
	Users     []UserRef     `json:"users"`
	Messages  []MessageView `json:"messages"`
}

type CreateConversationResult struct {
	ConversationID uuid.UUID       `json:"conversationId"`
	IsNew          bool            `json:"isNew"`
	LastMessage    *MessagePreview `json:"lastMessage"`
}

type SendMessageResult struct {
	Message MessageView `json:"message"`
	// Warning carries a non-fatal realtime delivery problem. The message is
	// persisted either way.
	Warning string `json:"warning,omitempty"`
}

type NewMessageEvent struct {
	ConversationID uuid.UUID   `json:"conversationId"`
	Message        MessageView `json:"message"`
}

type MessageDeletedEvent struct {
	ConversationID uuid.UUID `json:"conversationId"`
	MessageID      uuid.UUID `json:"messageId"`
	Scope          string    `json:"scope"`
}

// ChatService orchestrates conversation lifecycle, message visibility and
// realtime notification. Every method returns a taxonomy error from
// pkg/errors; nothing panics or leaks driver errors across this boundary.
type ChatService interface {
	CreateConversation(ctx context.Context, userID, recipientID uuid.UUID) (*CreateConversationResult, error)
	SendMessage(ctx context.Context, conversationID, senderID uuid.UUID, content string) (*SendMessageResult, error)
	ListConversations(ctx context.Context, userID uuid.UUID) ([]ConversationSummary, error)
	GetConversation(ctx context.Context, userID, conversationID uuid.UUID) (*ConversationDetail, error)
	HideConversation(ctx context.Context, userID, conversationID uuid.UUID) error
	HideMessage(ctx context.Context, userID, conversationID, messageID uuid.UUID) error
	DeleteMessageForAll(ctx context.Context, userID, conversationID, messageID uuid.UUID) error
}

type chatService struct {
	conversations repository.ConversationRepository
	visibility    repository.VisibilityStore
	users         repository.UserRepository
	broadcaster   Broadcaster
	logger        *zap.Logger
}

func NewChatService(
	conversations repository.ConversationRepository,
	visibility repository.VisibilityStore,
	users repository.UserRepository,
	broadcaster Broadcaster,
	logger *zap.Logger,
) ChatService {
	return &chatService{
		conversations: conversations,
		visibility:    visibility,
		users:         users,
		broadcaster:   broadcaster,
		logger:        logger,
	}
}

func (s *chatService) CreateConversation(ctx context.Context, userID, recipientID uuid.UUID) (*CreateConversationResult, error) {
	if userID == recipientID {
		return nil, apperrors.ErrSelfConversation
	}

	recipient, err := s.users.ResolveUser(ctx, recipientID)
	if err != nil {
		return nil, s.internal("resolve recipient", err)
	}
	if recipient == nil {
		return nil, apperrors.ErrRecipientNotFound
	}

	caller, err := s.users.ResolveUser(ctx, userID)
	if err != nil {
		return nil, s.internal("resolve caller", err)
	}
	if caller == nil {
		return nil, apperrors.ErrUserNotFound
	}

	existing, err := s.conversations.FindBetween(ctx, userID, recipientID)
	if err != nil {
		return nil, s.internal("find conversation", err)
	}
	if existing != nil {
		return s.existingConversationResult(ctx, existing)
	}

	created, err := s.conversations.Create(ctx, caller, recipient)
	if err != nil {
		return nil, s.internal("create conversation", err)
	}
	if created == nil {
		// A concurrent creator won the pair-key race; their conversation is
		// the one logical outcome for this pair.
		winner, err := s.conversations.FindBetween(ctx, userID, recipientID)
		if err != nil {
			return nil, s.internal("find conversation after create race", err)
		}
		if winner == nil {
			return nil, s.internal("create conversation", errors.New("conversation missing after pair-key conflict"))
		}
		return s.existingConversationResult(ctx, winner)
	}
	var welcome *domain.Message
	if len(created.Messages) > 0 {
		welcome = &created.Messages[0]
	}
	return &CreateConversationResult{
		ConversationID: created.ID,
		IsNew:          true,
		LastMessage:    previewOf(welcome),
	}, nil
}

func (s *chatService) existingConversationResult(ctx context.Context, conversation *domain.Conversation) (*CreateConversationResult, error) {
	last, err := s.conversations.LatestMessage(ctx, conversation.ID)
	if err != nil {
		return nil, s.internal("load latest message", err)
	}
	return &CreateConversationResult{
		ConversationID: conversation.ID,
		IsNew:          false,
		LastMessage:    previewOf(last),
	}, nil
}

func (s *chatService) SendMessage(ctx context.Context, conversationID, senderID uuid.UUID, content string) (*SendMessageResult, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apperrors.ErrEmptyContent
	}

	conversation, err := s.conversations.FindByID(ctx, conversationID)
	if err != nil {
		return nil, s.internal("find conversation", err)
	}
	if conversation == nil {
		return nil, apperrors.ErrConversationNotFound
	}

	sender, err := s.users.ResolveUser(ctx, senderID)
	if err != nil {
		return nil, s.internal("resolve sender", err)
	}
	if sender == nil {
		return nil, apperrors.ErrUserNotFound
	}

	message, err := s.conversations.AppendMessage(ctx, conversationID, senderID, content)
	if err != nil {
		return nil, s.internal("append message", err)
	}

	result := &SendMessageResult{Message: viewOf(message)}
	event := NewMessageEvent{ConversationID: conversationID, Message: result.Message}
	if err := s.broadcaster.Emit(conversationID, EventNewMessage, event); err != nil {
		// Persistence succeeded; realtime delivery stays best-effort.
		broadcastErr := apperrors.ErrBroadcastFailed(err)
		s.logger.Warn("new message broadcast failed",
			zap.String("conversation_id", conversationID.String()),
			zap.String("message_id", message.ID.String()),
			zap.Error(broadcastErr),
		)
		result.Warning = broadcastErr.Message
	}
	return result, nil
}

func (s *chatService) ListConversations(ctx context.Context, userID uuid.UUID) ([]ConversationSummary, error) {
	conversations, err := s.conversations.ListForUser(ctx, userID)
	if err != nil {
		return nil, s.internal("list conversations", err)
	}

	summaries := make([]ConversationSummary, 0, len(conversations))
	for i := range conversations {
		c := &conversations[i]
		summary := ConversationSummary{
			ID:        c.ID,
			UpdatedAt: c.UpdatedAt,
			Users:     userRefsOf(c.Participants),
		}
		if len(c.Messages) > 0 {
			view := viewOf(&c.Messages[0])
			summary.LastMessage = &view
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (s *chatService) GetConversation(ctx context.Context, userID, conversationID uuid.UUID) (*ConversationDetail, error) {
	caller, err := s.users.ResolveUser(ctx, userID)
	if err != nil {
		return nil, s.internal("resolve caller", err)
	}
	if caller == nil {
		return nil, apperrors.ErrUserNotFound
	}

	conversation, err := s.conversations.Get(ctx, conversationID, userID)
	if err != nil {
		return nil, s.internal("get conversation", err)
	}
	if conversation == nil {
		return nil, apperrors.ErrConversationNotFound
	}

	detail := &ConversationDetail{
		ID:        conversation.ID,
		UpdatedAt: conversation.UpdatedAt,
		Users:     userRefsOf(conversation.Participants),
		Messages:  make([]MessageView, 0, len(conversation.Messages)),
	}
	for i := range conversation.Messages {
		detail.Messages = append(detail.Messages, viewOf(&conversation.Messages[i]))
	}
	return detail, nil
}

func (s *chatService) HideConversation(ctx context.Context, userID, conversationID uuid.UUID) error {
	conversation, err := s.conversations.FindByID(ctx, conversationID)
	if err != nil {
		return s.internal("find conversation", err)
	}
	if conversation == nil {
		return apperrors.ErrConversationNotFound
	}
	if !conversation.HasParticipant(userID) {
		return apperrors.ErrNotParticipant
	}

	if err := s.visibility.HideConversation(ctx, userID, conversationID); err != nil {
		return s.internal("hide conversation", err)
	}
	return nil
}

func (s *chatService) HideMessage(ctx context.Context, userID, conversationID, messageID uuid.UUID) error {
	message, err := s.conversations.FindMessageInConversation(ctx, messageID, conversationID)
	if err != nil {
		return s.internal("find message", err)
	}
	if message == nil {
		return apperrors.ErrMessageNotFound
	}

	// Any participant may hide any message for themself; no sender check.
	if err := s.visibility.HideMessage(ctx, userID, messageID); err != nil {
		return s.internal("hide message", err)
	}
	return nil
}

func (s *chatService) DeleteMessageForAll(ctx context.Context, userID, conversationID, messageID uuid.UUID) error {
	message, err := s.conversations.FindMessageInConversation(ctx, messageID, conversationID)
	if err != nil {
		return s.internal("find message", err)
	}
	if message == nil {
		return apperrors.ErrMessageNotFound
	}
	if message.SenderID != userID {
		return apperrors.ErrNotSender
	}
	if message.Deleted() {
		// Already in the terminal state; retrying must not emit a second event.
		return nil
	}

	if _, err := s.conversations.MarkDeletedForAll(ctx, messageID); err != nil {
		return s.internal("mark deleted for all", err)
	}

	event := MessageDeletedEvent{ConversationID: conversationID, MessageID: messageID, Scope: "all"}
	if err := s.broadcaster.Emit(conversationID, EventMessageDeleted, event); err != nil {
		// A later read reflects the deletion regardless.
		s.logger.Warn("message deleted broadcast failed",
			zap.String("conversation_id", conversationID.String()),
			zap.String("message_id", messageID.String()),
			zap.Error(apperrors.ErrBroadcastFailed(err)),
		)
	}
	return nil
}

func (s *chatService) internal(op string, err error) error {
	s.logger.Error("chat service failure", zap.String("op", op), zap.Error(err))
	return apperrors.Wrap(apperrors.CodeInternal, "internal server error", err)
}

func viewOf(m *domain.Message) MessageView {
	return MessageView{
		ID:        m.ID,
		Content:   m.Content,
		Sender:    UserRef{ID: m.Sender.ID, Name: m.Sender.Name},
		CreatedAt: m.CreatedAt,
	}
}

func previewOf(m *domain.Message) *MessagePreview {
	if m == nil {
		return nil
	}
	return &MessagePreview{Content: m.Content, SentAt: m.CreatedAt}
}

func userRefsOf(participants []domain.ConversationParticipant) []UserRef {
	refs := make([]UserRef, 0, len(participants))
	for _, p := range participants {
		refs = append(refs, UserRef{ID: p.UserID, Name: p.User.Name})
	}
	return refs
}
