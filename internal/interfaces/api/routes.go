package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Grey-kingreys/gestion-contact-back/internal/auth"
)

// NewRouter wires the chat REST surface and the websocket endpoint.
func NewRouter(chatHandler *ChatHandler, wsHandler *WebSocketHandler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())

	chatRoute := router.Group("/chat", auth.Middleware())
	{
		chatRoute.POST("", chatHandler.CreateConversation)
		chatRoute.POST("/:conversationId", chatHandler.SendMessage)
		chatRoute.GET("", chatHandler.ListConversations)
		chatRoute.GET("/:conversationId", chatHandler.GetConversation)
		chatRoute.DELETE("/:conversationId/hide", chatHandler.HideConversation)
		chatRoute.DELETE("/:conversationId/messages/:messageId", chatHandler.HideMessage)
		chatRoute.DELETE("/:conversationId/messages/:messageId/for-all", chatHandler.DeleteMessageForAll)
	}

	router.GET("/ws", wsHandler.ServeChatWs)

	return router
}
