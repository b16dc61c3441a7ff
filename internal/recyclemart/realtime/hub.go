package realtime

import (
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/25x8/recyclemart/internal/recyclemart/changefeed"
	"github.com/25x8/recyclemart/internal/recyclemart/models"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 32
	broadcastQueue = 256
)

// MessageTypeChange is the only message the hub sends
const MessageTypeChange = "change"

// Message is the JSON frame pushed to dashboard clients
type Message struct {
	Type  string           `json:"type"`
	Event changefeed.Event `json:"event"`
}

// client is one open dashboard connection
type client struct {
	id    uuid.UUID
	actor models.Actor
	conn  *websocket.Conn
	send  chan Message
}

// wants reports whether the client may see ev. Staff see every change, other
// users only changes to what they own.
func (c *client) wants(ev changefeed.Event) bool {
	if c.actor.Is(models.RoleAdmin, models.RoleController) {
		return true
	}
	return ev.OwnerID != uuid.Nil && ev.OwnerID == c.actor.UserID
}

// Hub pushes change events to connected dashboards
type Hub struct {
	clients    map[*client]struct{}
	broadcast  chan changefeed.Event
	register   chan *client
	unregister chan *client
	stop       chan struct{}
	done       chan struct{}
	stopOnce   sync.Once
	connected  atomic.Int64
	upgrader   websocket.Upgrader
	log        *zap.Logger
}

// NewHub creates a hub and starts its dispatch loop
func NewHub(log *zap.Logger) *Hub {
	h := &Hub{
		clients:    make(map[*client]struct{}),
		broadcast:  make(chan changefeed.Event, broadcastQueue),
		register:   make(chan *client),
		unregister: make(chan *client),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Callers are authenticated by bearer token before the upgrade
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: log.With(zap.String("component", "realtime_hub")),
	}

	go h.run()

	return h
}

// Clients returns the number of open connections
func (h *Hub) Clients() int {
	return int(h.connected.Load())
}

// Broadcast queues ev for delivery. It never blocks; a full queue drops the
// event and dashboards catch up on their next poll.
func (h *Hub) Broadcast(ev changefeed.Event) {
	select {
	case h.broadcast <- ev:
	case <-h.stop:
	default:
		h.log.Warn("broadcast queue full, event dropped", zap.String("table", ev.Table))
	}
}

// ServeWS upgrades the request and streams change events to actor
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, actor models.Actor) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	c := &client{
		id:    uuid.New(),
		actor: actor,
		conn:  conn,
		send:  make(chan Message, sendBuffer),
	}

	select {
	case h.register <- c:
	case <-h.stop:
		_ = conn.Close()
		return fmt.Errorf("hub stopped")
	}

	go h.writePump(c)
	go h.readPump(c)

	h.log.Debug("dashboard connected",
		zap.String("conn_id", c.id.String()),
		zap.String("user_id", actor.UserID.String()),
	)
	return nil
}

// Close disconnects every client and stops the dispatch loop
func (h *Hub) Close() {
	h.stopOnce.Do(func() { close(h.stop) })
	<-h.done
}

func (h *Hub) run() {
	defer close(h.done)

	for {
		select {
		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.connected.Add(1)

		case c := <-h.unregister:
			h.drop(c)

		case ev := <-h.broadcast:
			msg := Message{Type: MessageTypeChange, Event: ev}
			for c := range h.clients {
				if !c.wants(ev) {
					continue
				}
				select {
				case c.send <- msg:
				default:
					h.log.Warn("slow dashboard client disconnected", zap.String("conn_id", c.id.String()))
					h.drop(c)
				}
			}

		case <-h.stop:
			for c := range h.clients {
				h.drop(c)
			}
			return
		}
	}
}

// drop must only be called from run
func (h *Hub) drop(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.connected.Add(-1)
}

// readPump discards client frames and notices disconnects
func (h *Hub) readPump(c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.stop:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Debug("dashboard read error", zap.String("conn_id", c.id.String()), zap.Error(err))
			}
			return
		}
	}
}

// writePump sends queued messages and keeps the connection alive
func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
