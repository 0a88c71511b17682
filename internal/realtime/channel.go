// Package realtime maintains the presence connection to the backend.
//
// A Channel dials {wsBase}{endpoint}?token=..., announces the local user with
// a join message, and folds inbound presence and cursor events into a
// Presence snapshot. Dropped connections are retried with exponential backoff
// until Close is called.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"github.com/taskboards/taskboards/internal/types"
)

// ErrNotOpen is returned by sends while the connection is not open.
var ErrNotOpen = errors.New("realtime channel is not open")

const (
	typeJoin     = "join"
	typePresence = "presence"
	typeCursor   = "cursor"
)

type inbound struct {
	Type   string       `json:"type"`
	Users  []types.User `json:"users"`
	UserID string       `json:"userId"`
	X      float64      `json:"x"`
	Y      float64      `json:"y"`
}

type joinMessage struct {
	Type string     `json:"type"`
	User types.User `json:"user"`
}

type cursorMessage struct {
	Type   string  `json:"type"`
	UserID string  `json:"userId"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// Config holds channel configuration.
type Config struct {
	// BaseURL is the WebSocket base, e.g. ws://localhost:3001
	BaseURL string

	// Endpoint path appended to BaseURL (default: /ws)
	Endpoint string

	// Token authenticates the connection. Without one the channel stays closed.
	Token string

	// User is announced in the join message
	User types.User

	Backoff Backoff

	// Dialer opens connections (default: WebsocketDialer)
	Dialer Dialer

	Logger *log.Logger
}

// Channel is a reconnecting realtime connection.
type Channel struct {
	config   Config
	url      string
	presence *Presence
	now      func() time.Time

	mu        sync.Mutex
	state     ConnState
	conn      Conn
	attempt   int
	started   bool
	closed    bool
	listeners []func(ConnState)

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a channel. Call Start to connect.
func New(config Config) (*Channel, error) {
	if config.Endpoint == "" {
		config.Endpoint = "/ws"
	}
	if config.Dialer == nil {
		config.Dialer = WebsocketDialer{}
	}
	if config.Logger == nil {
		config.Logger = log.StandardLogger()
	}
	config.Backoff = config.Backoff.withDefaults()

	c := &Channel{
		config:   config,
		presence: newPresence(),
		now:      time.Now,
		state:    StateClosed,
	}
	if config.Token == "" {
		return c, nil
	}
	u, err := BuildURL(config.BaseURL, config.Endpoint, config.Token)
	if err != nil {
		return nil, err
	}
	c.url = u
	return c, nil
}

// Presence returns the live presence snapshot holder.
func (c *Channel) Presence() *Presence {
	return c.presence
}

// State returns the current connection state.
func (c *Channel) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OnStateChange registers fn for every state transition. fn runs on the
// connection goroutine and must not block.
func (c *Channel) OnStateChange(fn func(ConnState)) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// Start begins connecting in the background. Without a token it does nothing
// and the state stays closed.
func (c *Channel) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("channel already closed")
	}
	if c.started || c.url == "" {
		return nil
	}
	c.started = true
	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go c.run(ctx)
	return nil
}

// Close tears the connection down. No reconnect follows.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cancel := c.cancel
	conn := c.conn
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	var err error
	if conn != nil {
		err = conn.Close()
	}
	c.wg.Wait()
	c.setState(StateClosed)
	return err
}

// SendCursor publishes the local user's pointer position.
func (c *Channel) SendCursor(ctx context.Context, x, y float64) error {
	return c.send(ctx, cursorMessage{Type: typeCursor, UserID: c.config.User.ID, X: x, Y: y})
}

func (c *Channel) send(ctx context.Context, msg any) error {
	c.mu.Lock()
	conn := c.conn
	open := c.state == StateOpen
	c.mu.Unlock()
	if conn == nil || !open {
		return ErrNotOpen
	}
	data, err := sonic.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode realtime message: %w", err)
	}
	if err := conn.Write(ctx, data); err != nil {
		return fmt.Errorf("failed to send realtime message: %w", err)
	}
	return nil
}

func (c *Channel) run(ctx context.Context) {
	defer c.wg.Done()
	logger := c.config.Logger.WithField("url", c.config.BaseURL+c.config.Endpoint)

	for {
		c.setState(StateConnecting)
		conn, err := c.config.Dialer.Dial(ctx, c.url)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.WithError(err).Debug("realtime.dial")
			c.setState(StateClosed)
			if !c.wait(ctx) {
				return
			}
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			_ = conn.Close()
			return
		}
		c.conn = conn
		c.attempt = 0
		c.mu.Unlock()

		c.setState(StateOpen)
		logger.Debug("realtime.open")
		if err := c.send(ctx, joinMessage{Type: typeJoin, User: c.config.User}); err != nil {
			logger.WithError(err).Debug("realtime.join")
		}

		c.readLoop(ctx, conn)

		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		_ = conn.Close()
		c.setState(StateClosed)
		logger.Debug("realtime.closed")

		if !c.wait(ctx) {
			return
		}
	}
}

func (c *Channel) readLoop(ctx context.Context, conn Conn) {
	for {
		data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		c.handle(data)
	}
}

// handle applies one inbound payload. Malformed payloads and unknown types
// are dropped.
func (c *Channel) handle(data []byte) {
	var msg inbound
	if err := sonic.Unmarshal(data, &msg); err != nil {
		c.config.Logger.WithError(err).Debug("realtime.message.malformed")
		return
	}
	switch msg.Type {
	case typePresence:
		c.presence.replaceUsers(msg.Users)
	case typeCursor:
		if msg.UserID == "" {
			return
		}
		c.presence.upsertCursor(msg.UserID, Cursor{X: msg.X, Y: msg.Y, At: c.now()})
	}
}

// wait sleeps for the next backoff delay. It reports false when ctx ends first.
func (c *Channel) wait(ctx context.Context) bool {
	c.mu.Lock()
	delay := c.config.Backoff.Delay(c.attempt)
	c.attempt++
	c.mu.Unlock()

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (c *Channel) setState(s ConnState) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	listeners := slices.Clone(c.listeners)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(s)
	}
}
