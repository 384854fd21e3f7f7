package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Event is the wire envelope in both directions: clients send
// {"event":"join","conversationId":...}, the server pushes
// {"event":"chat:newMessage","payload":{...}}.
type Event struct {
	Event          string          `json:"event"`
	ConversationID string          `json:"conversationId,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

const EventJoin = "join"

// JoinAuthorizer decides whether a user may subscribe to a conversation's
// room. A nil authorizer admits every join, which mirrors the original
// behavior but lets any client that guesses a conversation id eavesdrop on
// live events; production wiring should pass a participant check.
type JoinAuthorizer func(ctx context.Context, userID, conversationID uuid.UUID) error

type subscription struct {
	client         *Client
	conversationID uuid.UUID
}

type outbound struct {
	conversationID uuid.UUID
	data           []byte
}

// Hub owns the process-local room registry: conversation id -> connected
// clients. Membership is ephemeral routing state; on restart clients rejoin.
type Hub struct {
	rooms   map[uuid.UUID]map[*Client]bool
	clients map[*Client]bool

	register   chan subscription
	unregister chan *Client
	broadcast  chan outbound

	mu        sync.RWMutex
	authorize JoinAuthorizer
	logger    *zap.Logger

	done     chan struct{}
	stopOnce sync.Once
}

func NewHub(authorize JoinAuthorizer, logger *zap.Logger) *Hub {
	hub := &Hub{
		rooms:      make(map[uuid.UUID]map[*Client]bool),
		clients:    make(map[*Client]bool),
		register:   make(chan subscription, 64),
		unregister: make(chan *Client, 64),
		broadcast:  make(chan outbound, 256),
		authorize:  authorize,
		logger:     logger,
	}
	hub.done = make(chan struct{})
	go hub.run()
	return hub
}

// Join subscribes the client's connection to the conversation's room. A nil
// conversation id is ignored silently.
func (h *Hub) Join(ctx context.Context, client *Client, conversationID uuid.UUID) error {
	if conversationID == uuid.Nil {
		return nil
	}
	if h.authorize != nil {
		if err := h.authorize(ctx, client.userID, conversationID); err != nil {
			return err
		}
	}
	select {
	case h.register <- subscription{client: client, conversationID: conversationID}:
		return nil
	case <-h.done:
		return errors.New("broadcast gateway stopped")
	}
}

// Emit delivers payload to every connection in the conversation's room.
// Fire-and-forget: no acknowledgement, no retry, nothing persisted for
// disconnected clients. The returned error covers the emission attempt only.
func (h *Hub) Emit(conversationID uuid.UUID, event string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "hub.Emit.MarshalPayload")
	}
	frame, err := json.Marshal(Event{Event: event, Payload: body})
	if err != nil {
		return errors.Wrap(err, "hub.Emit.MarshalFrame")
	}

	select {
	case h.broadcast <- outbound{conversationID: conversationID, data: frame}:
		return nil
	case <-h.done:
		return errors.New("broadcast gateway stopped")
	default:
		return errors.New("broadcast queue full")
	}
}

// RoomSize reports how many connections are currently in the room.
func (h *Hub) RoomSize(conversationID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[conversationID])
}

// Stop shuts the hub down and closes every connected client.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				h.drop(client)
			}
			h.mu.Unlock()
			return

		case sub := <-h.register:
			h.mu.Lock()
			if _, ok := h.rooms[sub.conversationID]; !ok {
				h.rooms[sub.conversationID] = make(map[*Client]bool)
			}
			h.rooms[sub.conversationID][sub.client] = true
			h.clients[sub.client] = true
			sub.client.rooms[sub.conversationID] = true
			h.mu.Unlock()
			h.logger.Info("client joined room",
				zap.String("user_id", sub.client.userID.String()),
				zap.String("conversation_id", sub.conversationID.String()),
			)

		case client := <-h.unregister:
			h.mu.Lock()
			if h.clients[client] {
				h.drop(client)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			room := h.rooms[message.conversationID]
			for client := range room {
				select {
				case client.send <- message.data:
				default:
					// Slow consumer; disconnect rather than block the room.
					h.drop(client)
					h.logger.Warn("client send buffer full, dropping",
						zap.String("user_id", client.userID.String()),
					)
				}
			}
			h.mu.Unlock()
		}
	}
}

// drop removes the client from every room and closes its send channel.
// Callers hold h.mu.
func (h *Hub) drop(client *Client) {
	for conversationID := range client.rooms {
		if room, ok := h.rooms[conversationID]; ok {
			delete(room, client)
			if len(room) == 0 {
				delete(h.rooms, conversationID)
			}
		}
	}
	if h.clients[client] {
		delete(h.clients, client)
		close(client.send)
	}
}
