package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Grey-kingreys/gestion-contact-back/internal/application/services"
	"github.com/Grey-kingreys/gestion-contact-back/internal/auth"
	apperrors "github.com/Grey-kingreys/gestion-contact-back/pkg/errors"
)

type ChatHandler struct {
	chatService services.ChatService
}

func NewChatHandler(chatService services.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

type createConversationRequest struct {
	RecipientID uuid.UUID `json:"recipientId" binding:"required"`
}

type sendMessageRequest struct {
	Content string `json:"content" binding:"required,min=1"`
}

func (h *ChatHandler) CreateConversation(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "unauthorized"})
		return
	}

	var req createConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "you must provide a recipient"})
		return
	}

	result, err := h.chatService.CreateConversation(c.Request.Context(), userID, req.RecipientID)
	if err != nil {
		c.JSON(statusOf(err), gin.H{"success": false, "message": messageOf(err)})
		return
	}

	message := "conversation created successfully"
	if !result.IsNew {
		message = "existing conversation found"
	}
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"conversationId": result.ConversationID,
		"message":        message,
		"isNew":          result.IsNew,
		"lastMessage":    result.LastMessage,
	})
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": true, "message": "unauthorized"})
		return
	}
	conversationID, ok := pathUUID(c, "conversationId")
	if !ok {
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": true, "message": "a message must contain at least 1 character"})
		return
	}

	result, err := h.chatService.SendMessage(c.Request.Context(), conversationID, userID, req.Content)
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": true, "message": messageOf(err)})
		return
	}

	response := gin.H{"error": false, "message": "your message has been sent"}
	if result.Warning != "" {
		response["warning"] = result.Warning
	}
	c.JSON(http.StatusOK, response)
}

func (h *ChatHandler) ListConversations(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": true, "message": "unauthorized"})
		return
	}

	conversations, err := h.chatService.ListConversations(c.Request.Context(), userID)
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": true, "message": messageOf(err)})
		return
	}
	c.JSON(http.StatusOK, conversations)
}

func (h *ChatHandler) GetConversation(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": true, "message": "unauthorized"})
		return
	}
	conversationID, ok := pathUUID(c, "conversationId")
	if !ok {
		return
	}

	conversation, err := h.chatService.GetConversation(c.Request.Context(), userID, conversationID)
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": true, "message": messageOf(err)})
		return
	}
	c.JSON(http.StatusOK, conversation)
}

func (h *ChatHandler) HideConversation(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": true, "message": "unauthorized"})
		return
	}
	conversationID, ok := pathUUID(c, "conversationId")
	if !ok {
		return
	}

	if err := h.chatService.HideConversation(c.Request.Context(), userID, conversationID); err != nil {
		c.JSON(statusOf(err), gin.H{"error": true, "message": messageOf(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"error": false, "message": "conversation hidden"})
}

func (h *ChatHandler) HideMessage(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": true, "message": "unauthorized"})
		return
	}
	conversationID, ok := pathUUID(c, "conversationId")
	if !ok {
		return
	}
	messageID, ok := pathUUID(c, "messageId")
	if !ok {
		return
	}

	if err := h.chatService.HideMessage(c.Request.Context(), userID, conversationID, messageID); err != nil {
		c.JSON(statusOf(err), gin.H{"error": true, "message": messageOf(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"error": false, "message": "message hidden"})
}

func (h *ChatHandler) DeleteMessageForAll(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": true, "message": "unauthorized"})
		return
	}
	conversationID, ok := pathUUID(c, "conversationId")
	if !ok {
		return
	}
	messageID, ok := pathUUID(c, "messageId")
	if !ok {
		return
	}

	if err := h.chatService.DeleteMessageForAll(c.Request.Context(), userID, conversationID, messageID); err != nil {
		c.JSON(statusOf(err), gin.H{"error": true, "message": messageOf(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"error": false, "message": "message deleted for everyone"})
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": true, "message": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

func statusOf(err error) int {
	switch apperrors.CodeOf(err) {
	case apperrors.CodeInvalidArgument:
		return http.StatusBadRequest
	case apperrors.CodeNotFound:
		return http.StatusNotFound
	case apperrors.CodePermissionDenied:
		return http.StatusForbidden
	case apperrors.CodeUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func messageOf(err error) string {
	var app *apperrors.AppError
	if errors.As(err, &app) {
		return app.Message
	}
	return "internal server error"
}
