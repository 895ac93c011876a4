package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"weather-dashboard/dashboard"
	"weather-dashboard/logger"
)

// Message types exchanged over a session socket
const (
	MessageTypeSubscribed = "subscribed"  // sent once the client is registered
	MessageTypeViewUpdate = "view_update" // a new view for the session
	MessageTypeSelectDay  = "select_day"  // client picks a day, data {"date": "YYYY-MM-DD"}
	MessageTypeError      = "error"
)

const writeWait = 10 * time.Second

// Message is a websocket message addressed to one session
type Message struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Data      any    `json:"data,omitempty"`
}

type incomingMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// MessageHandler handles messages sent by websocket clients
type MessageHandler interface {
	HandleMessage(sessionID, messageType string, data json.RawMessage) error
}

// Client is one websocket connection subscribed to a session
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	sessionID string
	send      chan *Message
	initial   *Message // sent after the subscription, to this client only
	closed    bool     // guarded by the Run goroutine
}

// directMessage is addressed to a single client rather than its session
type directMessage struct {
	client  *Client
	message *Message
}

// Hub fans session views out to the websocket clients watching them
type Hub struct {
	clients    map[string]map[*Client]bool // session id -> clients
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
	direct     chan directMessage
	done       chan struct{}
	upgrader   websocket.Upgrader
	bufferSize int
	logger     *logger.Logger
	mu         sync.RWMutex
	handler    MessageHandler
}

var _ dashboard.Publisher = (*Hub)(nil)

// NewHub creates a hub; bufferSize is the per-client send queue length
func NewHub(bufferSize int, log *logger.Logger) *Hub {
	if bufferSize < 1 {
		bufferSize = 16
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 256),
		direct:     make(chan directMessage),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // CORS is enforced by the router
			},
		},
		bufferSize: bufferSize,
		logger:     log.Named("web-socket"),
	}
}

// SetMessageHandler sets the handler for incoming client messages
func (h *Hub) SetMessageHandler(handler MessageHandler) {
	h.handler = handler
}

// Run serves registrations and broadcasts until ctx is done
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("Starting WebSocket hub")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for _, clients := range h.clients {
				for client := range clients {
					h.closeClient(client)
				}
			}
			h.clients = make(map[string]map[*Client]bool)
			h.mu.Unlock()
			h.logger.Info("WebSocket hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.sessionID] == nil {
				h.clients[client.sessionID] = make(map[*Client]bool)
			}
			h.clients[client.sessionID][client] = true
			count := len(h.clients[client.sessionID])
			h.mu.Unlock()

			client.send <- &Message{Type: MessageTypeSubscribed, SessionID: client.sessionID}
			if client.initial != nil {
				h.deliver(client, client.initial)
				client.initial = nil
			}
			h.logger.Debug("Client registered",
				logger.String("session", client.sessionID),
				logger.Int("session_clients", count))

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()

		case dm := <-h.direct:
			h.mu.Lock()
			if h.clients[dm.client.sessionID][dm.client] {
				h.deliver(dm.client, dm.message)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients[message.SessionID] {
				h.deliver(client, message)
			}
			h.mu.Unlock()
		}
	}
}

// deliver queues message for one registered client, dropping the client when
// its queue is full. It must be called from Run with h.mu held.
func (h *Hub) deliver(client *Client, message *Message) {
	if client.closed {
		return
	}
	select {
	case client.send <- message:
	default:
		h.logger.Warn("Client send queue full, dropping connection",
			logger.String("session", client.sessionID))
		h.remove(client)
	}
}

// remove must be called with h.mu held
func (h *Hub) remove(client *Client) {
	clients, ok := h.clients[client.sessionID]
	if !ok || !clients[client] {
		return
	}
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.clients, client.sessionID)
	}
	h.closeClient(client)
	h.logger.Debug("Client unregistered", logger.String("session", client.sessionID))
}

func (h *Hub) closeClient(client *Client) {
	if !client.closed {
		client.closed = true
		close(client.send)
	}
}

// Publish queues a view update for every client of the session
func (h *Hub) Publish(sessionID string, view *dashboard.SessionView) {
	h.Broadcast(&Message{Type: MessageTypeViewUpdate, SessionID: sessionID, Data: view})
}

// Broadcast queues a message for the clients of message.SessionID. It never
// blocks; when the queue is full the message is dropped.
func (h *Hub) Broadcast(message *Message) {
	select {
	case h.broadcast <- message:
	case <-h.done:
	default:
		h.logger.Warn("Broadcast queue full, dropping message",
			logger.String("type", message.Type),
			logger.String("session", message.SessionID))
	}
}

// Clients returns the number of clients watching a session
func (h *Hub) Clients(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID])
}

// sendTo queues a message for one client only
func (h *Hub) sendTo(client *Client, message *Message) {
	select {
	case h.direct <- directMessage{client: client, message: message}:
	case <-h.done:
	}
}

// HandleConnection upgrades the request and subscribes it to sessionID.
// initial, when set, is sent to this connection right after the subscription.
func (h *Hub) HandleConnection(w http.ResponseWriter, r *http.Request, sessionID string, initial *Message) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade connection",
			logger.Error(err),
			logger.String("remote_addr", r.RemoteAddr))
		return
	}

	client := &Client{
		hub:       h,
		conn:      conn,
		sessionID: sessionID,
		send:      make(chan *Message, h.bufferSize),
		initial:   initial,
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.readPump()
	go client.writePump()
}

// readPump reads client messages until the connection fails
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.hub.logger.Error("WebSocket read error", logger.Error(err))
			}
			return
		}

		var message incomingMessage
		if err := json.Unmarshal(raw, &message); err != nil {
			c.hub.logger.Warn("Failed to parse WebSocket message", logger.Error(err))
			continue
		}
		if c.hub.handler == nil {
			continue
		}
		if err := c.hub.handler.HandleMessage(c.sessionID, message.Type, message.Data); err != nil {
			c.hub.logger.Warn("Failed to handle WebSocket message",
				logger.Error(err),
				logger.String("type", message.Type))
			c.hub.sendTo(c, &Message{
				Type:      MessageTypeError,
				SessionID: c.sessionID,
				Data:      map[string]string{"error": err.Error()},
			})
		}
	}
}

// writePump writes queued messages until the hub closes the send queue
func (c *Client) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(message); err != nil {
			c.hub.logger.Debug("WebSocket write failed", logger.Error(err))
			// closing the conn ends readPump, which unregisters and closes c.send
			c.conn.Close()
			for range c.send {
			}
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
