// Package notify provides the process-wide notification bus.
//
// Low-level code (the REST client, the realtime channel, diagnostics) pushes
// notifications onto the bus; toast surfaces subscribe to it. The bus is the
// single piece of intentionally shared state and is created and closed by the
// application lifecycle, never reached through a global.
package notify

import (
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Level is the severity of a notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// DefaultTimeout is how long toasts built with Toast stay visible.
const DefaultTimeout = 5 * time.Second

// Notification is a single toast.
type Notification struct {
	ID      string
	Type    Level
	Title   string
	Message string
	Timeout time.Duration
}

// Toast builds a notification with the default auto-dismiss timeout.
func Toast(level Level, title, message string) Notification {
	return Notification{Type: level, Title: title, Message: message, Timeout: DefaultTimeout}
}

// EventKind tells subscribers what happened to a notification.
type EventKind int

const (
	EventPushed EventKind = iota
	EventRemoved
)

// String returns a human-readable representation of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventPushed:
		return "pushed"
	case EventRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers on every change to the active set.
type Event struct {
	Kind         EventKind
	Notification Notification
}

type subscriber struct {
	ch chan Event
}

// Bus holds the active notifications and fans changes out to subscribers.
type Bus struct {
	mu      sync.Mutex
	counter uint64
	active  []Notification
	timers  map[string]*time.Timer
	subs    map[*subscriber]struct{}
	closed  bool
	now     func() time.Time
	logger  *log.Logger
}

// NewBus creates an empty bus. A nil logger falls back to the standard logrus logger.
func NewBus(logger *log.Logger) *Bus {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Bus{
		timers: make(map[string]*time.Timer),
		subs:   make(map[*subscriber]struct{}),
		now:    time.Now,
		logger: logger,
	}
}

// Push adds a notification and returns its id.
// A positive Timeout schedules auto-dismissal; zero or negative never expires.
func (b *Bus) Push(n Notification) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.counter++
	n.ID = fmt.Sprintf("n-%d-%d", b.now().UnixMilli(), b.counter)
	if n.Type == "" {
		n.Type = LevelInfo
	}
	if b.closed {
		// A torn-down bus hands out ids but renders nothing.
		return n.ID
	}

	b.active = append(b.active, n)
	if n.Timeout > 0 {
		id := n.ID
		b.timers[id] = time.AfterFunc(n.Timeout, func() { b.expire(id) })
	}
	b.logger.WithFields(log.Fields{
		"id":    n.ID,
		"type":  n.Type,
		"title": n.Title,
	}).Debug("notify.push")
	b.publishLocked(Event{Kind: EventPushed, Notification: n})
	return n.ID
}

// Remove dismisses a notification. Unknown ids are ignored.
func (b *Bus) Remove(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(id)
}

// Clear dismisses every active notification.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for len(b.active) > 0 {
		b.removeLocked(b.active[0].ID)
	}
}

// Active returns a snapshot of the live notifications, oldest first.
func (b *Bus) Active() []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Notification, len(b.active))
	copy(out, b.active)
	return out
}

// Has reports whether id is still active.
func (b *Bus) Has(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.indexLocked(id) >= 0
}

// Subscribe registers a subscriber. Events are dropped for subscribers whose
// buffer is full.
func (b *Bus) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 16
	}
	sub := &subscriber{ch: make(chan Event, buffer)}
	b.mu.Lock()
	if b.closed {
		close(sub.ch)
	} else {
		b.subs[sub] = struct{}{}
	}
	b.mu.Unlock()
	return &Subscription{bus: b, sub: sub}
}

// Close stops every pending dismissal timer and closes all subscriptions.
// Pushes after Close are accepted and discarded.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, timer := range b.timers {
		timer.Stop()
		delete(b.timers, id)
	}
	b.active = nil
	for sub := range b.subs {
		close(sub.ch)
		delete(b.subs, sub)
	}
}

// expire runs on the dismissal timer. The entry may already be gone.
func (b *Bus) expire(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.indexLocked(id) < 0 {
		return
	}
	b.removeLocked(id)
}

func (b *Bus) removeLocked(id string) {
	if timer, ok := b.timers[id]; ok {
		timer.Stop()
		delete(b.timers, id)
	}
	idx := b.indexLocked(id)
	if idx < 0 {
		return
	}
	n := b.active[idx]
	next := make([]Notification, 0, len(b.active)-1)
	next = append(next, b.active[:idx]...)
	next = append(next, b.active[idx+1:]...)
	b.active = next
	b.publishLocked(Event{Kind: EventRemoved, Notification: n})
}

func (b *Bus) indexLocked(id string) int {
	for i := range b.active {
		if b.active[i].ID == id {
			return i
		}
	}
	return -1
}

func (b *Bus) publishLocked(ev Event) {
	for sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
			// Drop if subscriber is slow.
		}
	}
}

// Subscription is an active bus subscription.
type Subscription struct {
	bus *Bus
	sub *subscriber
}

// Events exposes the event channel. It is closed by Close or by Bus.Close.
func (s *Subscription) Events() <-chan Event {
	return s.sub.ch
}

// Close removes the subscription.
func (s *Subscription) Close() {
	if s == nil || s.bus == nil || s.sub == nil {
		return
	}
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if _, ok := s.bus.subs[s.sub]; ok {
		delete(s.bus.subs, s.sub)
		close(s.sub.ch)
	}
}

// APIErrorNotifier returns a callback for the REST client that turns request
// failures into error toasts. status is 0 when no response was received.
func (b *Bus) APIErrorNotifier() func(op string, status int, err error) {
	return func(op string, status int, err error) {
		b.Push(Toast(LevelError, "API Error", FormatAPIError(op, status, err)))
	}
}

// FormatAPIError renders "<op> (HTTP <status>): <error>", skipping the error
// text when it already carries the status code.
func FormatAPIError(op string, status int, err error) string {
	msg := op
	if msg == "" {
		msg = "Request failed"
	}
	if status != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", status)
	}
	if err != nil {
		text := err.Error()
		if status == 0 || !strings.Contains(text, fmt.Sprint(status)) {
			msg += ": " + text
		}
	}
	return msg
}
