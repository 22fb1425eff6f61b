// Package ws pushes live stock and order updates to back-office screens
// over gorilla/websocket.
//
//	hub := ws.NewHub()
//	go hub.Run(ctx)
//	router.Get("/ws/stock", "ws.stock", func(w http.ResponseWriter, r *http.Request) {
//	    ws.Upgrade(w, r, hub, ws.TopicsFromQuery(r))
//	})
//	hub.Publish("warehouse:3", payload)
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shashiranjanraj/ferremas/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// SetCheckOrigin replaces the allow-all origin check.
func SetCheckOrigin(fn func(r *http.Request) bool) {
	upgrader.CheckOrigin = fn
}

// Client is one connected socket. An empty topic set receives everything.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	topics map[string]bool
}

func (c *Client) wants(topic string) bool {
	return len(c.topics) == 0 || c.topics[topic]
}

// readPump only keeps the connection alive; clients do not send commands.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("ws: unexpected close", "error", err)
			}
			return
		}
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
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Envelope is the JSON frame sent to clients.
type Envelope struct {
	Topic string      `json:"topic"`
	Data  interface{} `json:"data"`
}

type outbound struct {
	topic string
	frame []byte
}

// Hub tracks connected clients and fans out published frames.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan outbound
	register   chan *Client
	unregister chan *Client
	count      atomic.Int64
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan outbound, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run is the hub loop. It closes every client when ctx ends.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.count.Store(0)
			return nil

		case c := <-h.register:
			h.clients[c] = true
			h.count.Store(int64(len(h.clients)))
			logger.Debug("ws: client connected", "total", len(h.clients))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.count.Store(int64(len(h.clients)))
				logger.Debug("ws: client disconnected", "total", len(h.clients))
			}

		case msg := <-h.broadcast:
			for c := range h.clients {
				if !c.wants(msg.topic) {
					continue
				}
				select {
				case c.send <- msg.frame:
				default:
					// slow consumer
					close(c.send)
					delete(h.clients, c)
				}
			}
			h.count.Store(int64(len(h.clients)))
		}
	}
}

// Publish queues data for every client subscribed to topic. It never
// blocks the caller; frames are dropped when the hub is saturated.
func (h *Hub) Publish(topic string, data interface{}) {
	frame, err := json.Marshal(Envelope{Topic: topic, Data: data})
	if err != nil {
		logger.Error("ws: marshal frame", "topic", topic, "error", err)
		return
	}
	select {
	case h.broadcast <- outbound{topic: topic, frame: frame}:
	default:
		logger.Warn("ws: broadcast buffer full, frame dropped", "topic", topic)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int { return int(h.count.Load()) }

// TopicsFromQuery reads ?topics=warehouse:1,orders.
func TopicsFromQuery(r *http.Request) []string {
	raw := r.URL.Query().Get("topics")
	if raw == "" {
		return nil
	}
	var out []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Upgrade upgrades the request and registers the client with hub.
func Upgrade(w http.ResponseWriter, r *http.Request, hub *Hub, topics []string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("ws: upgrade failed", "error", err)
		return
	}
	c := &Client{hub: hub, conn: conn, send: make(chan []byte, 64), topics: map[string]bool{}}
	for _, t := range topics {
		c.topics[t] = true
	}
	hub.register <- c
	go c.writePump()
	go c.readPump()
}
