package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"openjack/internal/events"
)

var (
	upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}

	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeTimeout = 10 * time.Second

	pongMessage = []byte(`{"type":"pong"}`)
)

// WSMessage is a control message from a websocket client.
type WSMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	player string
	data   []byte
}

// Client is one websocket subscriber. An empty Player receives every event.
type Client struct {
	ID     string
	Conn   *websocket.Conn
	Send   chan []byte
	Hub    *Hub
	Player string
}

// Hub fans dealer events out to websocket clients. It implements
// events.Publisher so the dealer can feed it alongside NATS.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan outbound
	register   chan *Client
	unregister chan *Client
	pong       chan *Client
	count      chan chan int
	done       chan struct{}
	logger     *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan outbound, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		pong:       make(chan *Client),
		count:      make(chan chan int),
		done:       make(chan struct{}),
		logger:     logger.With("component", "ws"),
	}
}

// Run owns the client set until ctx is done, then disconnects everyone.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			h.logger.Info("client connected", "client_id", client.ID, "clients", len(h.clients))

		case client := <-h.unregister:
			if h.clients[client] {
				h.drop(client)
				h.logger.Info("client disconnected", "client_id", client.ID, "clients", len(h.clients))
			}

		case client := <-h.pong:
			// A dropped client's Send is already closed.
			if !h.clients[client] {
				continue
			}
			select {
			case client.Send <- pongMessage:
			default:
			}

		case reply := <-h.count:
			reply <- len(h.clients)

		case msg := <-h.broadcast:
			for client := range h.clients {
				if client.Player != "" && msg.player != "" && client.Player != msg.player {
					continue
				}
				select {
				case client.Send <- msg.data:
				default:
					h.logger.Warn("client too slow, dropping", "client_id", client.ID)
					h.drop(client)
				}
			}
		}
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.Send)
}

// ClientCount returns the number of connected clients, or 0 once stopped.
func (h *Hub) ClientCount() int {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
		return <-reply
	case <-h.done:
		return 0
	}
}

func (h *Hub) PublishRound(e events.RoundEvent) error {
	return h.publish(e.Player, events.Envelope{Type: events.TypeRound, Data: e})
}

func (h *Hub) PublishSession(e events.SessionEvent) error {
	return h.publish(e.Player, events.Envelope{Type: events.TypeSession, Data: e})
}

// publish never blocks the caller; events are dropped when the hub lags.
func (h *Hub) publish(player string, env events.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- outbound{player: player, data: data}:
	default:
		h.logger.Warn("hub backlog full, event dropped", "type", env.Type)
	}
	return nil
}

// answer queues a pong for c. Only Run sends on a client's Send channel.
func (h *Hub) answer(c *Client) {
	select {
	case h.pong <- c:
	case <-h.done:
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// ReadPump handles control messages and pongs from the client.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.leave(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(4 * 1024)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Debug("client read error", "client_id", c.ID, "err", err)
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if msg.Type == "ping" {
			c.Hub.answer(c)
		}
	}
}

// WritePump drains Send and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// HandleEvents upgrades to a websocket streaming dealer events.
// ?player=<name> limits the stream to one player's events.
func (h *Hub) HandleEvents(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "err", err)
		return
	}

	client := &Client{
		ID:     uuid.NewString(),
		Conn:   conn,
		Send:   make(chan []byte, 64),
		Hub:    h,
		Player: c.Query("player"),
	}

	// Queue the greeting before the hub can close Send.
	welcome, _ := json.Marshal(gin.H{
		"type":      "connected",
		"client_id": client.ID,
	})
	client.Send <- welcome

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}
