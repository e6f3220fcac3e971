package gena

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/upnpctl/internal/logging"
)

const (
	clientBuffer = 32
	writeWait    = 5 * time.Second
)

// hub fans events out to websocket clients. Slow clients are disconnected
// rather than allowed to block delivery.
type hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	closed  bool
	wg      sync.WaitGroup
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func newHub() *hub {
	return &hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*wsClient]struct{}),
	}
}

func (h *hub) serveHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("Websocket upgrade failed", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, clientBuffer)}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.wg.Add(2)
	h.mu.Unlock()
	logging.LogConnection(r.RemoteAddr, "stream_connected")

	go func() {
		defer h.wg.Done()
		h.writeLoop(c)
	}()
	go func() {
		defer h.wg.Done()
		h.readLoop(c)
		h.remove(c)
		logging.LogConnection(r.RemoteAddr, "stream_closed")
	}()
}

// readLoop discards client messages and returns when the peer goes away
func (h *hub) readLoop(c *wsClient) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *hub) writeLoop(c *wsClient) {
	defer func() { _ = c.conn.Close() }()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "receiver shutting down"))
}

func (h *hub) remove(c *wsClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		c.once.Do(func() { close(c.send) })
	}
}

func (h *hub) broadcast(ev Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		logging.Error("Failed to marshal event for stream", zap.Error(err))
		return
	}

	h.mu.Lock()
	var slow []*wsClient
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.Unlock()

	for _, c := range slow {
		logging.Warn("Dropping slow event stream client", zap.String("remote_addr", c.conn.RemoteAddr().String()))
		h.remove(c)
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// close disconnects every client and refuses new ones
func (h *hub) close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*wsClient]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		c.once.Do(func() { close(c.send) })
	}
}

func (h *hub) wait() {
	h.wg.Wait()
}
