package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 1024 * 1024
)

type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	mu         sync.RWMutex
}

type Client struct {
	Hub            *Hub
	Conn           *websocket.Conn
	Send           chan []byte
	ConnectionID   string
	UserID         string
	SessionID      string // interview session, set once start_interview succeeds
	MessageHandler func(*Client, []byte)
	mu             sync.RWMutex
}

// Message is the client-to-server frame. Settings is only present on
// start_interview, Content/Duration only on answer.
type Message struct {
	Type      string          `json:"type"` // "start_interview", "answer", "result"
	Content   string          `json:"content,omitempty"`
	Duration  float64         `json:"duration_seconds,omitempty"`
	Settings  json.RawMessage `json:"settings,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			slog.Info("Client registered", "connection_id", client.ConnectionID, "user_id", client.UserID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mu.Unlock()
			slog.Info("Client unregistered", "connection_id", client.ConnectionID, "session_id", client.SessionID)

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					close(client.Send)
					delete(h.clients, client)
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) RegisterClient(conn *websocket.Conn, userID string) *Client {
	client := &Client{
		Hub:          h,
		Conn:         conn,
		Send:         make(chan []byte, 256),
		ConnectionID: uuid.New().String(),
		UserID:       userID,
	}
	h.register <- client
	return client
}

// SetSession binds the client to its interview session.
func (c *Client) SetSession(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.SessionID = sessionID
}

// Session returns the bound interview session, if any.
func (c *Client) Session() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.SessionID
}

func (c *Client) ReadPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, messageBytes, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket error", "error", err, "connection_id", c.ConnectionID)
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			slog.Error("Failed to unmarshal message", "error", err, "connection_id", c.ConnectionID)
			continue
		}

		slog.Info("Message received", "type", msg.Type, "connection_id", c.ConnectionID, "session_id", c.Session())

		if c.MessageHandler != nil {
			// Handlers run asynchronously so slow LLM turns never stall the
			// read loop; the interview service serializes per-session work.
			go c.MessageHandler(c, messageBytes)
		} else {
			slog.Warn("No message handler attached", "type", msg.Type, "connection_id", c.ConnectionID)
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				slog.Error("Failed to write message", "error", err, "connection_id", c.ConnectionID)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
