package hub

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Dosada05/courtside/models"
	"github.com/Dosada05/courtside/session"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 256
)

type Client struct {
	Hub        *Hub
	Conn       *websocket.Conn
	Send       chan []byte
	Handle     string
	Identity   models.Identity
	dispatcher *Dispatcher

	Mu         sync.Mutex
	IsClosed   bool
	superseded bool
	token      string
}

func NewClient(h *Hub, d *Dispatcher, conn *websocket.Conn, identity models.Identity) *Client {
	return &Client{
		Hub:        h,
		Conn:       conn,
		Send:       make(chan []byte, sendBufferSize),
		Handle:     uuid.NewString(),
		Identity:   identity,
		dispatcher: d,
	}
}

func (c *Client) joinedToken() string {
	c.Mu.Lock()
	defer c.Mu.Unlock()
	return c.token
}

func (c *Client) setToken(token string) {
	c.Mu.Lock()
	c.token = token
	c.Mu.Unlock()
}

// enqueue never blocks. It reports false when the client is closed or its
// buffer is full.
func (c *Client) enqueue(message []byte) bool {
	c.Mu.Lock()
	defer c.Mu.Unlock()
	if c.IsClosed {
		return false
	}
	select {
	case c.Send <- message:
		return true
	default:
		return false
	}
}

// Hub tracks live connections by handle and implements session.Notifier.
type Hub struct {
	clients    map[string]*Client
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
	logger     *slog.Logger
}

var _ session.Notifier = (*Hub)(nil)

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[string]*Client),
		logger:     logger,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			h.clients[client.Handle] = client
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("client registered",
				slog.String("handle", client.Handle),
				slog.String("participant_id", client.Identity.ParticipantID),
				slog.Int("clients", total))

		case client := <-h.Unregister:
			h.mu.Lock()
			if cur, ok := h.clients[client.Handle]; ok && cur == client {
				delete(h.clients, client.Handle)
			}
			h.mu.Unlock()
			client.Mu.Lock()
			if !client.IsClosed {
				close(client.Send)
				client.IsClosed = true
			}
			client.Mu.Unlock()
		}
	}
}

// Len returns the number of registered connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) lookup(handle string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[handle]
	return c, ok
}

func (h *Hub) unregisterAsync(c *Client) {
	go func() { h.Unregister <- c }()
}

// Deliver is called with the session lock held, so it only enqueues.
func (h *Hub) Deliver(handle string, ev session.Event) {
	c, ok := h.lookup(handle)
	if !ok {
		return
	}
	message, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("failed to marshal event", slog.String("type", string(ev.Type)), slog.Any("error", err))
		return
	}
	if !c.enqueue(message) {
		// A slow consumer would otherwise miss transitions; drop it and let it
		// rejoin for a fresh snapshot.
		h.logger.Warn("client send buffer full, disconnecting",
			slog.String("handle", handle), slog.String("match_token", ev.MatchToken))
		h.unregisterAsync(c)
	}
}

func (h *Hub) Supersede(handle string) {
	c, ok := h.lookup(handle)
	if !ok {
		return
	}
	c.Mu.Lock()
	c.superseded = true
	token := c.token
	c.Mu.Unlock()
	h.Deliver(handle, session.Event{Type: session.EventSuperseded, MatchToken: token})
	h.unregisterAsync(c)
}

func (h *Hub) reply(c *Client, msgType string, requestID string, token string, payload interface{}) {
	message, err := json.Marshal(Outbound{Type: msgType, RequestID: requestID, MatchToken: token, Payload: payload})
	if err != nil {
		h.logger.Error("failed to marshal reply", slog.String("type", msgType), slog.Any("error", err))
		return
	}
	if !c.enqueue(message) {
		h.logger.Warn("dropping reply for closed or slow client", slog.String("handle", c.Handle), slog.String("type", msgType))
	}
}

func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
		c.dispatcher.Disconnected(c)
		c.Hub.logger.Debug("client readPump closed", slog.String("handle", c.Handle))
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Warn("unexpected websocket close", slog.String("handle", c.Handle), slog.Any("error", err))
			}
			break
		}
		c.dispatcher.Handle(c, data)
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
			// One frame per message: clients parse each frame as a single JSON document.
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.Hub.logger.Debug("write failed", slog.String("handle", c.Handle), slog.Any("error", err))
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
