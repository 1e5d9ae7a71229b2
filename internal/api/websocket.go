package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/calvinwijaya/count-jack/internal/game"
	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // origins are restricted by the CORS layer in front of the router
	},
}

// Message represents an outbound WebSocket message
type Message struct {
	Type      string       `json:"type"`
	SessionID string       `json:"sessionId,omitempty"`
	Data      any          `json:"data,omitempty"`
	Events    []game.Event `json:"events,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// Command is an inbound command, sent as a WebSocket frame or built from a REST call
type Command struct {
	Type   string       `json:"type"`
	Hand   int          `json:"hand"`
	Count  int          `json:"count"`
	Config *game.Config `json:"config,omitempty"`
}

// Client represents a connected WebSocket client watching one session
type Client struct {
	conn      *websocket.Conn
	send      chan []byte
	sessionID string
	hub       *Hub
	handle    func(Command) error

	// registered is closed once the hub will deliver broadcasts to the client
	registered chan struct{}
}

// Hub maintains the set of active clients and pushes session snapshots to them
type Hub struct {
	logger     *log.Logger
	clients    map[*Client]bool
	sessions   map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
}

// NewHub creates a new WebSocket hub
func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Hub{
		logger:     logger,
		clients:    make(map[*Client]bool),
		sessions:   make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run tracks client registrations until ctx is cancelled, then disconnects everyone
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			if _, exists := h.sessions[client.sessionID]; !exists {
				h.sessions[client.sessionID] = make(map[*Client]bool)
			}
			h.sessions[client.sessionID][client] = true
			h.mu.Unlock()
			close(client.registered)
			h.logger.Debug("Client connected", "session", client.sessionID)

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()
			h.logger.Debug("Client disconnected", "session", client.sessionID)

		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				h.remove(client)
			}
			h.mu.Unlock()
			return nil
		}
	}
}

// remove drops a client and closes its send channel. Callers hold h.mu.
func (h *Hub) remove(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)

	if peers := h.sessions[client.sessionID]; peers != nil {
		delete(peers, client)
		if len(peers) == 0 {
			delete(h.sessions, client.sessionID)
		}
	}
}

// BroadcastSnapshot sends a session's new state to every client watching it.
// It never blocks; a client with a full buffer misses the frame.
func (h *Hub) BroadcastSnapshot(sessionID string, snap game.Snapshot, events []game.Event) {
	data, err := json.Marshal(Message{
		Type:      "snapshot",
		SessionID: sessionID,
		Data:      snap,
		Events:    events,
	})
	if err != nil {
		h.logger.Error("Error marshaling snapshot", "session", sessionID, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.sessions[sessionID] {
		select {
		case client.send <- data:
		default:
			h.logger.Warn("Client buffer full, dropping snapshot", "session", sessionID)
		}
	}
}

// Clients returns the number of clients watching a session
func (h *Hub) Clients(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// sendTo queues a message for a single registered client
func (h *Hub) sendTo(client *Client, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Error marshaling message", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.clients[client] {
		return
	}
	select {
	case client.send <- data:
	default:
	}
}

// serve attaches an upgraded connection to a session. The first snapshot is
// taken after registration, so no broadcast can fall between it and the
// client joining the session.
func (h *Hub) serve(conn *websocket.Conn, sessionID string, snapshot func() game.Snapshot, handle func(Command) error) {
	client := &Client{
		conn:       conn,
		send:       make(chan []byte, sendBuffer),
		sessionID:  sessionID,
		hub:        h,
		handle:     handle,
		registered: make(chan struct{}),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}
	<-client.registered

	h.sendTo(client, Message{Type: "snapshot", SessionID: sessionID, Data: snapshot()})

	go client.readPump()
	go client.writePump()
}

// readPump executes inbound commands until the connection closes
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("WebSocket error", "session", c.sessionID, "error", err)
			}
			return
		}

		var cmd Command
		if err := json.Unmarshal(message, &cmd); err != nil {
			c.hub.sendTo(c, Message{Type: "error", SessionID: c.sessionID, Error: "invalid message"})
			continue
		}

		// Successful commands reach every client through the game's listener.
		if err := c.handle(cmd); err != nil {
			c.hub.sendTo(c, Message{Type: "error", SessionID: c.sessionID, Error: err.Error()})
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection
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
				// The hub closed the channel
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
