package controller

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeTimeout = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	sendBufSize  = 16
	maxInbound   = 4096
)

// Dashboard events.
const (
	EventSensorData = "sensorData"
	EventCalibrate  = "calibrate"
	EventReset      = "reset"
)

// Message is the JSON envelope exchanged with dashboard clients.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// CommandFunc handles a calibrate/reset request coming from a client.
type CommandFunc func(deviceID, event string, data json.RawMessage)

type envelope struct {
	deviceID string
	payload  []byte
}

// Hub fans events out to WebSocket clients. The client set is owned by the
// Run goroutine; everything else talks to it over channels.
type Hub struct {
	upgrader   websocket.Upgrader
	onCommand  CommandFunc
	register   chan *client
	unregister chan *client
	broadcast  chan envelope
	done       chan struct{}
	count      atomic.Int64
	clients    map[*client]struct{}
}

type client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	deviceID string // empty: every device
}

// NewHub creates a hub; checkOrigin nil accepts every origin.
func NewHub(onCommand CommandFunc, checkOrigin func(*http.Request) bool) *Hub {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
		onCommand:  onCommand,
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan envelope, 64),
		done:       make(chan struct{}),
		clients:    make(map[*client]struct{}),
	}
}

// Run owns the client set until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.count.Add(1)
		case c := <-h.unregister:
			h.drop(c)
		case e := <-h.broadcast:
			for c := range h.clients {
				if e.deviceID != "" && c.deviceID != "" && c.deviceID != e.deviceID {
					continue
				}
				select {
				case c.send <- e.payload:
				default:
					// buffer pieno: client lento, disconnesso
					h.drop(c)
				}
			}
		}
	}
}

func (h *Hub) drop(c *client) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		h.count.Add(-1)
	}
}

// Broadcast queues an event for the clients watching deviceID.
func (h *Hub) Broadcast(deviceID, event string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		log.Printf("controller: ws encode %s: %v", event, err)
		return
	}
	payload, _ := json.Marshal(Message{Event: event, Data: raw})
	select {
	case h.broadcast <- envelope{deviceID: deviceID, payload: payload}:
	case <-h.done:
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int { return int(h.count.Load()) }

// ServeHTTP upgrades the connection; ?device_id= restricts the events received.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, sendBufSize),
		deviceID: r.URL.Query().Get("device_id"),
	}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}
	log.Printf("controller: ws client connected device=%q", c.deviceID)

	go c.writePump()
	c.readPump()

	select {
	case h.unregister <- c:
	case <-h.done:
	}
	log.Printf("controller: ws client disconnected device=%q", c.deviceID)
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump handles calibrate/reset requests and detects disconnects.
func (c *client) readPump() {
	defer c.conn.Close()
	c.conn.SetReadLimit(maxInbound)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var m Message
		if err := json.Unmarshal(raw, &m); err != nil {
			log.Printf("controller: ws bad message: %v", err)
			continue
		}
		switch m.Event {
		case EventCalibrate, EventReset:
			if c.hub.onCommand != nil {
				c.hub.onCommand(c.deviceID, m.Event, m.Data)
			}
		default:
			log.Printf("controller: ws unknown event %q", m.Event)
		}
	}
}
