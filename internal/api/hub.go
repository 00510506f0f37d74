package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"tailspot/internal/logging"
	"tailspot/internal/scrape"
)

const clientWriteWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The daemon binds to loopback; cross-origin pages cannot reach it.
		return true
	},
}

// wsClient is one subscriber on the event stream.
type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans events out to websocket subscribers. Run owns the client set;
// registration, removal, and broadcast all go through its channels, so no
// lock guards the map.
type Hub struct {
	logger     *slog.Logger
	clients    map[*wsClient]struct{}
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *wsClient
	done       chan struct{}
}

// NewHub builds a hub. Call Run in a goroutine before serving connections.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:     logging.NewComponentLogger(logger, "events"),
		clients:    make(map[*wsClient]struct{}),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		done:       make(chan struct{}),
	}
}

// Run dispatches until ctx is cancelled, then closes every client send
// channel so their write pumps drain and exit.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		for client := range h.clients {
			close(client.send)
			delete(h.clients, client)
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.logger.Debug("subscriber connected", logging.Int(logging.FieldCount, len(h.clients)))
		case client := <-h.unregister:
			h.drop(client)
		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// A subscriber that cannot keep up loses its slot
					// rather than stalling the stream.
					h.drop(client)
				}
			}
		}
	}
}

func (h *Hub) drop(client *wsClient) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
	h.logger.Debug("subscriber disconnected", logging.Int(logging.FieldCount, len(h.clients)))
}

// Broadcast marshals an event and queues it for every subscriber. Events are
// dropped when the hub is stopped or its buffer is full.
func (h *Hub) Broadcast(eventType string, data any) {
	payload, err := json.Marshal(Event{Type: eventType, Time: time.Now().UTC(), Data: data})
	if err != nil {
		h.logger.Error("marshal event", logging.Error(err))
		return
	}
	select {
	case h.broadcast <- payload:
	case <-h.done:
	default:
	}
}

// JobChanged forwards job transitions onto the stream.
func (h *Hub) JobChanged(event scrape.JobEvent) {
	h.Broadcast(EventJob, event)
}

// HandleWS upgrades the request and subscribes the connection until the
// peer goes away or the hub stops.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", logging.Error(err))
		return
	}
	client := &wsClient{conn: conn, send: make(chan []byte, 64)}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}
	go client.writePump()
	go client.readPump(h)
}

func (c *wsClient) writePump() {
	defer c.conn.Close()
	for message := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(clientWriteWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(clientWriteWait))
	c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(clientWriteWait))
}

// readPump discards inbound frames; the loop exists to notice disconnects.
func (c *wsClient) readPump(h *Hub) {
	defer func() {
		c.remove(h)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *wsClient) remove(h *Hub) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
