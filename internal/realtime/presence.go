package realtime

import (
	"sync"
	"time"

	"github.com/taskboards/taskboards/internal/types"
)

// Cursor is a user's last reported pointer position.
type Cursor struct {
	X  float64
	Y  float64
	At time.Time
}

// Presence holds the online users and their cursors. Entries are overwritten
// per event and never expire.
type Presence struct {
	mu      sync.RWMutex
	users   []types.User
	cursors map[string]Cursor
}

func newPresence() *Presence {
	return &Presence{cursors: make(map[string]Cursor)}
}

// Users returns the online users in server order.
func (p *Presence) Users() []types.User {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]types.User(nil), p.users...)
}

// Cursors returns a copy of the cursor map keyed by user id.
func (p *Presence) Cursors() map[string]Cursor {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]Cursor, len(p.cursors))
	for id, c := range p.cursors {
		out[id] = c
	}
	return out
}

// Cursor returns one user's cursor.
func (p *Presence) Cursor(userID string) (Cursor, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.cursors[userID]
	return c, ok
}

func (p *Presence) replaceUsers(users []types.User) {
	next := append([]types.User{}, users...)
	p.mu.Lock()
	p.users = next
	p.mu.Unlock()
}

func (p *Presence) upsertCursor(userID string, c Cursor) {
	p.mu.Lock()
	p.cursors[userID] = c
	p.mu.Unlock()
}
