package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBufSize    = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: config check origin (in production, restrict this to frontend domains)
		return true
	},
}

// Client is one live connection of an authenticated user. It may sit in any
// number of rooms; membership is torn down when the connection drops.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID uuid.UUID
	rooms  map[uuid.UUID]bool
}

// ServeWs upgrades the request and runs the connection's pumps. The caller
// has already authenticated userID.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBufSize),
		userID: userID,
		rooms:  make(map[uuid.UUID]bool),
	}

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket read failed",
					zap.String("user_id", c.userID.String()),
					zap.Error(err),
				)
			}
			break
		}

		var event Event
		if err := json.Unmarshal(messageBytes, &event); err != nil {
			c.trySend([]byte(`{"error": "invalid message format"}`))
			continue
		}

		switch event.Event {
		case EventJoin:
			if event.ConversationID == "" {
				continue
			}
			conversationID, err := uuid.Parse(event.ConversationID)
			if err != nil {
				c.trySend([]byte(`{"error": "invalid conversation id"}`))
				continue
			}
			if err := c.hub.Join(context.Background(), c, conversationID); err != nil {
				c.hub.logger.Warn("room join refused",
					zap.String("user_id", c.userID.String()),
					zap.String("conversation_id", conversationID.String()),
					zap.Error(err),
				)
				c.trySend([]byte(`{"error": "access denied"}`))
			}
		default:
			c.hub.logger.Warn("unknown websocket event",
				zap.String("event", event.Event),
				zap.String("user_id", c.userID.String()),
			)
		}
	}
}

func (c *Client) trySend(data []byte) {
	select {
	case c.send <- data:
	default:
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
