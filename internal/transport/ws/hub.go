package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrUserNotConnected is returned when a user has no open WebSocket
var ErrUserNotConnected = errors.New("user not connected")

// MessageType defines the type of WebSocket message
type MessageType string

// Server to client message types
const (
	MsgSurveyAttributes MessageType = "survey_attributes"
	MsgShowSurvey       MessageType = "show_survey"
)

// Message is the WebSocket envelope format
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ShowSurveyPayload is sent with MsgShowSurvey
type ShowSurveyPayload struct {
	SurveyID   string                 `json:"surveyId"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// Hub manages WebSocket connections per user. A user may have several open
// tabs; every one of them receives survey messages.
type Hub struct {
	conns map[string]map[*Connection]struct{} // userID -> connections
	attrs map[string]map[string]interface{}   // userID -> last attributes

	mu sync.RWMutex

	// Channels for coordination
	register   chan *Connection
	unregister chan *Connection
	done       chan struct{}
	closeOnce  sync.Once
}

// Connection represents a WebSocket connection
type Connection struct {
	UserID string
	Send   chan []byte
	Hub    *Hub
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	h := &Hub{
		conns:      make(map[string]map[*Connection]struct{}),
		attrs:      make(map[string]map[string]interface{}),
		register:   make(chan *Connection),
		unregister: make(chan *Connection),
		done:       make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			if h.conns[conn.UserID] == nil {
				h.conns[conn.UserID] = make(map[*Connection]struct{})
			}
			h.conns[conn.UserID][conn] = struct{}{}
			h.mu.Unlock()
			log.Info().Str("userId", conn.UserID).Msg("User connected")

		case conn := <-h.unregister:
			h.mu.Lock()
			if userConns, ok := h.conns[conn.UserID]; ok {
				if _, ok := userConns[conn]; ok {
					delete(userConns, conn)
					close(conn.Send)
					if len(userConns) == 0 {
						delete(h.conns, conn.UserID)
						delete(h.attrs, conn.UserID)
					}
					log.Info().Str("userId", conn.UserID).Msg("User disconnected")
				}
			}
			h.mu.Unlock()

		case <-h.done:
			h.mu.Lock()
			for userID, userConns := range h.conns {
				for conn := range userConns {
					close(conn.Send)
				}
				delete(h.conns, userID)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Register adds a connection
func (h *Hub) Register(conn *Connection) {
	select {
	case h.register <- conn:
	case <-h.done:
		close(conn.Send)
	}
}

// Unregister removes a connection
func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Close disconnects every user and stops the hub
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// Connected reports whether the user has at least one open connection
func (h *Hub) Connected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID]) > 0
}

// SetAttributes remembers attributes for the user's next survey (implements service.SurveyDelivery)
func (h *Hub) SetAttributes(_ context.Context, userID string, attrs map[string]interface{}) error {
	h.mu.Lock()
	if len(h.conns[userID]) == 0 {
		h.mu.Unlock()
		return ErrUserNotConnected
	}
	h.attrs[userID] = attrs
	h.mu.Unlock()
	return h.send(userID, MsgSurveyAttributes, attrs)
}

// ShowSurvey pushes a survey to every connection of the user (implements service.SurveyDelivery)
func (h *Hub) ShowSurvey(_ context.Context, userID, surveyID string) error {
	h.mu.RLock()
	attrs := h.attrs[userID]
	h.mu.RUnlock()
	return h.send(userID, MsgShowSurvey, ShowSurveyPayload{SurveyID: surveyID, Attributes: attrs})
}

func (h *Hub) send(userID string, msgType MessageType, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	msg, err := json.Marshal(&Message{Type: msgType, Payload: data})
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	userConns := h.conns[userID]
	if len(userConns) == 0 {
		return ErrUserNotConnected
	}
	delivered := 0
	for conn := range userConns {
		select {
		case conn.Send <- msg:
			delivered++
		default:
			// Drop message if buffer full
		}
	}
	if delivered == 0 {
		return errors.New("all connections are backed up")
	}
	return nil
}
