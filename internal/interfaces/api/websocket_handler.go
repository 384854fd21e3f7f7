package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Grey-kingreys/gestion-contact-back/internal/auth"
	"github.com/Grey-kingreys/gestion-contact-back/internal/infrastructure/websocket"
)

type WebSocketHandler struct {
	hub    *websocket.Hub
	logger *zap.Logger
}

func NewWebSocketHandler(hub *websocket.Hub, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, logger: logger}
}

// ServeChatWs authenticates the handshake and hands the connection to the
// hub. Room subscription happens afterwards through join frames.
func (h *WebSocketHandler) ServeChatWs(c *gin.Context) {
	userID, err := auth.VerifyRequest(c.Request)
	if err != nil {
		h.logger.Warn("websocket authentication failed", zap.Error(err))
		c.String(http.StatusUnauthorized, "unauthorized: %s", err.Error())
		return
	}

	websocket.ServeWs(h.hub, c.Writer, c.Request, userID)
}
