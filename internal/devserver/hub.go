package devserver

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/coder/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/taskboards/taskboards/internal/types"
)

// Message is anything broadcast to presence clients.
type Message struct {
	Type   string       `json:"type"`
	Users  []types.User `json:"users,omitempty"`
	UserID string       `json:"userId,omitempty"`
	X      float64      `json:"x,omitempty"`
	Y      float64      `json:"y,omitempty"`
}

type inbound struct {
	Type string     `json:"type"`
	User types.User `json:"user"`
	X    float64    `json:"x"`
	Y    float64    `json:"y"`
}

type client struct {
	conn *websocket.Conn
	user types.User
}

// Hub tracks presence connections and fans presence and cursor events out to
// every connected client.
type Hub struct {
	origins []string
	logger  *log.Logger

	mu      sync.RWMutex
	clients []*client

	broadcast chan []byte

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHub creates a hub. Call Start before serving connections.
func NewHub(origins []string, logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.StandardLogger()
	}
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		origins:   origins,
		logger:    logger,
		broadcast: make(chan []byte, 100),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start runs the broadcast loop.
func (h *Hub) Start() {
	h.wg.Add(1)
	go h.broadcastLoop()
}

// Stop disconnects every client and waits for the loops to exit.
func (h *Hub) Stop() {
	h.cancel()

	h.mu.Lock()
	for _, c := range h.clients {
		_ = c.conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
	h.clients = nil
	h.mu.Unlock()

	h.wg.Wait()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Users returns the joined users in join order.
func (h *Hub) Users() []types.User {
	h.mu.RLock()
	defer h.mu.RUnlock()
	users := make([]types.User, 0, len(h.clients))
	for _, c := range h.clients {
		if c.user.ID != "" {
			users = append(users, c.user)
		}
	}
	return users
}

// Broadcast queues msg for every client. Messages are dropped when the queue is full.
func (h *Hub) Broadcast(msg Message) {
	data, err := sonic.Marshal(msg)
	if err != nil {
		h.logger.WithError(err).Warn("devserver.broadcast.marshal")
		return
	}
	select {
	case h.broadcast <- data:
	case <-h.ctx.Done():
	default:
		h.logger.Warn("devserver.broadcast.dropped")
	}
}

func (h *Hub) broadcastLoop() {
	defer h.wg.Done()
	for {
		select {
		case <-h.ctx.Done():
			return
		case data := <-h.broadcast:
			h.mu.RLock()
			conns := make([]*websocket.Conn, 0, len(h.clients))
			for _, c := range h.clients {
				conns = append(conns, c.conn)
			}
			h.mu.RUnlock()

			for _, conn := range conns {
				ctx, cancel := context.WithTimeout(h.ctx, 5*time.Second)
				err := conn.Write(ctx, websocket.MessageText, data)
				cancel()
				if err != nil {
					h.logger.WithError(err).Debug("devserver.ws.write")
					h.remove(conn)
				}
			}
		}
	}
}

// ServeHTTP upgrades the request. A token query parameter is required.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("token") == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		h.logger.WithError(err).Warn("devserver.ws.accept")
		return
	}

	c := &client{conn: conn}
	h.mu.Lock()
	h.clients = append(h.clients, c)
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.WithField("clients", count).Info("devserver.ws.connected")

	h.readLoop(c)
}

func (h *Hub) readLoop(c *client) {
	defer func() {
		if h.remove(c.conn) {
			h.Broadcast(Message{Type: "presence", Users: h.Users()})
		}
	}()

	for {
		_, data, err := c.conn.Read(h.ctx)
		if err != nil {
			return
		}
		var msg inbound
		if err := sonic.Unmarshal(data, &msg); err != nil {
			continue
		}
		switch msg.Type {
		case "join":
			if msg.User.ID == "" {
				continue
			}
			h.mu.Lock()
			c.user = msg.User
			h.mu.Unlock()
			h.Broadcast(Message{Type: "presence", Users: h.Users()})
		case "cursor":
			h.mu.RLock()
			id := c.user.ID
			h.mu.RUnlock()
			if id == "" {
				continue
			}
			h.Broadcast(Message{Type: "cursor", UserID: id, X: msg.X, Y: msg.Y})
		}
	}
}

// remove drops conn and reports whether it was still registered.
func (h *Hub) remove(conn *websocket.Conn) bool {
	h.mu.Lock()
	idx := -1
	for i, c := range h.clients {
		if c.conn == conn {
			idx = i
			break
		}
	}
	if idx < 0 {
		h.mu.Unlock()
		return false
	}
	h.clients = append(h.clients[:idx], h.clients[idx+1:]...)
	count := len(h.clients)
	h.mu.Unlock()

	_ = conn.Close(websocket.StatusNormalClosure, "")
	h.logger.WithField("clients", count).Info("devserver.ws.disconnected")
	return true
}
