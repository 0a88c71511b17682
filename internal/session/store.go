// Package session caches the signed-in user's token and profile in a local
// SQLite file so CLI invocations share one login.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/taskboards/taskboards/internal/types"
)

// ErrNoSession is returned by Load when nobody is signed in or the cached
// token has expired.
var ErrNoSession = errors.New("no active session")

// Session is a cached login.
type Session struct {
	Token     string
	User      types.User
	CreatedAt time.Time
	// ExpiresAt is zero when the token carries no expiry.
	ExpiresAt time.Time
}

// Expired reports whether the token expired before now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Store is the session cache.
type Store struct {
	conn *sql.DB
	path string
	now  func() time.Time
}

// Open opens or creates the cache at path.
//
// The caller MUST call Close() when done.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping session database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	s := &Store{conn: conn, path: path, now: time.Now}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if err := s.InitSchema(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// InitSchema creates the session table. Safe to call repeatedly.
func (s *Store) InitSchema() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS session (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	token      TEXT    NOT NULL,
	user_json  TEXT    NOT NULL,
	created_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL DEFAULT 0
)`
	if _, err := s.conn.Exec(ddl); err != nil {
		return fmt.Errorf("failed to create session schema: %w", err)
	}
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Save replaces the cached session.
func (s *Store) Save(ctx context.Context, sess Session) error {
	if sess.Token == "" {
		return fmt.Errorf("failed to save session: token is empty")
	}
	user, err := sonic.Marshal(sess.User)
	if err != nil {
		return fmt.Errorf("failed to encode session user: %w", err)
	}
	created := sess.CreatedAt
	if created.IsZero() {
		created = s.now()
	}
	var expires int64
	if !sess.ExpiresAt.IsZero() {
		expires = sess.ExpiresAt.Unix()
	}
	_, err = s.conn.ExecContext(ctx, `
INSERT INTO session (id, token, user_json, created_at, expires_at)
VALUES (1, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	token = excluded.token,
	user_json = excluded.user_json,
	created_at = excluded.created_at,
	expires_at = excluded.expires_at`,
		sess.Token, string(user), created.Unix(), expires)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Load returns the cached session. Expired sessions are removed and reported
// as ErrNoSession.
func (s *Store) Load(ctx context.Context) (*Session, error) {
	var (
		token    string
		userJSON string
		created  int64
		expires  int64
	)
	err := s.conn.QueryRowContext(ctx,
		`SELECT token, user_json, created_at, expires_at FROM session WHERE id = 1`,
	).Scan(&token, &userJSON, &created, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	sess := &Session{Token: token, CreatedAt: time.Unix(created, 0)}
	if expires > 0 {
		sess.ExpiresAt = time.Unix(expires, 0)
	}
	// A damaged profile still leaves a usable token.
	_ = sonic.UnmarshalString(userJSON, &sess.User)

	if sess.Expired(s.now()) {
		if err := s.Clear(ctx); err != nil {
			return nil, err
		}
		return nil, ErrNoSession
	}
	return sess, nil
}

// Clear signs out.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM session`); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close session database: %w", err)
	}
	s.conn = nil
	return nil
}
