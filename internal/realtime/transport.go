package realtime

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/coder/websocket"
)

// Conn is one open realtime connection.
type Conn interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close() error
}

// Dialer opens connections. Tests substitute a fake.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebsocketDialer dials real WebSocket endpoints.
type WebsocketDialer struct {
	HTTPClient *http.Client
	HTTPHeader http.Header
}

// Dial opens a WebSocket connection.
func (d WebsocketDialer) Dial(ctx context.Context, u string) (Conn, error) {
	conn, _, err := websocket.Dial(ctx, u, &websocket.DialOptions{
		HTTPClient: d.HTTPClient,
		HTTPHeader: d.HTTPHeader,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to dial websocket: %w", err)
	}
	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := c.conn.Read(ctx)
	return data, err
}

func (c *wsConn) Write(ctx context.Context, data []byte) error {
	return c.conn.Write(ctx, websocket.MessageText, data)
}

func (c *wsConn) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "closing")
}

// BuildURL derives the socket URL. endpoint replaces the base path unless the
// path already ends with it; http(s) schemes become ws(s).
func BuildURL(base, endpoint, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("failed to parse websocket base: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("websocket base %q has no host", base)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	if endpoint != "" && !strings.HasSuffix(u.Path, endpoint) {
		u.Path = endpoint
		u.RawPath = ""
	}
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
