package api

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"logbot-service/internal/logger"
)

const (
	// writeWait is how long to wait for a write to complete
	writeWait = 10 * time.Second

	// pongWait is how long to wait for a pong response
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4096

	clientBuffer = 32
)

// Hub fans status messages out to websocket clients. Slow clients are
// dropped rather than allowed to hold up the others.
type Hub struct {
	logger *logger.Logger

	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	stop       chan struct{}
	stopOnce   sync.Once

	mu sync.RWMutex
}

func NewHub(l *logger.Logger) *Hub {
	return &Hub{
		logger:     l,
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *client),
		unregister: make(chan *client),
		stop:       make(chan struct{}),
	}
}

// Run is the hub's main loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.stop:
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Infof("Status client connected (%d total)", count)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Infof("Status client disconnected (%d remaining)", count)

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					close(c.send)
					delete(h.clients, c)
					h.logger.Warnf("Dropped slow status client")
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// BroadcastJSON encodes v and queues it for every client.
func (h *Hub) BroadcastJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warnf("Broadcast channel full, dropping status")
	}
	return nil
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// serve registers conn and blocks until it closes. initial, if set, is
// sent ahead of any broadcast.
func (h *Hub) serve(conn *websocket.Conn, initial []byte) {
	c := &client{hub: h, conn: conn, send: make(chan []byte, clientBuffer)}
	if initial != nil {
		c.send <- initial
	}
	select {
	case h.register <- c:
	case <-h.stop:
		conn.Close()
		return
	}
	go c.writePump()
	c.readPump()
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// readPump only detects disconnection and handles pongs; clients never send
// anything meaningful.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.stop:
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
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump is the only writer on the connection.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
