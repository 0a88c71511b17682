// Package demo owns the authoritative live/demo mode and the demo dataset.
//
// A Coordinator starts in the mode given by configuration. It moves into demo
// mode when the backend answers 503, either to the connectivity probe or to a
// data fetch wrapped in RunWithFallback, and never leaves it again. Demo mode
// is process-wide: every page consults the same Coordinator.
package demo

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/taskboards/taskboards/internal/probe"
	"github.com/taskboards/taskboards/internal/types"
)

// ErrMutationsDisabled is returned by Guard while demo mode is on.
var ErrMutationsDisabled = errors.New("mutations are disabled in demo mode")

// Mode is the pair every page branches on.
type Mode struct {
	DemoMode     bool
	BackendReady bool
}

// State is the full connectivity state.
type State struct {
	DemoMode     bool
	BackendReady bool
	// DBConfigured is nil until the backend has told us.
	DBConfigured  *bool
	StatusDetails map[string]any
	CheckedAt     time.Time
}

func (s State) clone() State {
	out := s
	if s.DBConfigured != nil {
		v := *s.DBConfigured
		out.DBConfigured = &v
	}
	if s.StatusDetails != nil {
		out.StatusDetails = make(map[string]any, len(s.StatusDetails))
		for k, v := range s.StatusDetails {
			out.StatusDetails[k] = v
		}
	}
	return out
}

// Coordinator holds the connectivity state and the demo dataset.
type Coordinator struct {
	mu        sync.RWMutex
	state     State
	store     Store
	observers []func(State)
	logger    *log.Logger
}

// NewCoordinator creates a coordinator. demoMode seeds the initial mode; the
// backend is assumed ready unless demo mode is forced. A nil store gets a
// MemoryStore holding the built-in seed tasks.
func NewCoordinator(demoMode bool, store Store, logger *log.Logger) *Coordinator {
	if store == nil {
		store = NewMemoryStore(SeedTasks())
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Coordinator{
		state:  State{DemoMode: demoMode, BackendReady: !demoMode},
		store:  store,
		logger: logger,
	}
}

// CurrentMode returns the demo and readiness flags.
func (c *Coordinator) CurrentMode() Mode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Mode{DemoMode: c.state.DemoMode, BackendReady: c.state.BackendReady}
}

// State returns a copy of the full connectivity state.
func (c *Coordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.clone()
}

// DemoMode reports whether demo mode is on.
func (c *Coordinator) DemoMode() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.DemoMode
}

// MutationsDisabled reports whether write paths must be skipped.
func (c *Coordinator) MutationsDisabled() bool {
	return c.DemoMode()
}

// Store returns the demo dataset store.
func (c *Coordinator) Store() Store {
	return c.store
}

// OnChange registers fn to run after every state change. fn runs outside the
// coordinator lock and must not block.
func (c *Coordinator) OnChange(fn func(State)) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	c.observers = append(c.observers, fn)
	c.mu.Unlock()
}

// EnterDemo switches demo mode on for good.
func (c *Coordinator) EnterDemo(reason string) {
	c.update(func(s *State) {
		if !s.DemoMode {
			c.logger.WithField("reason", reason).Warn("demo.enter")
		}
		s.DemoMode = true
		s.BackendReady = false
		s.DBConfigured = boolPtr(false)
	})
}

// Observe applies a probe result.
func (c *Coordinator) Observe(res probe.Result) {
	c.update(func(s *State) {
		s.CheckedAt = res.CheckedAt
		switch res.Outcome {
		case probe.OutcomeSkipped:
			s.BackendReady = false
			s.DBConfigured = boolPtr(false)
		case probe.OutcomeUnreachable, probe.OutcomeNotOK:
			s.BackendReady = false
		case probe.OutcomeUnavailable:
			if !s.DemoMode {
				c.logger.WithField("reason", "status 503").Warn("demo.enter")
			}
			s.DemoMode = true
			s.BackendReady = false
			s.DBConfigured = boolPtr(false)
		case probe.OutcomeReady:
			if s.DemoMode {
				return
			}
			s.BackendReady = true
			s.DBConfigured = boolPtr(res.DBConfigured)
			s.StatusDetails = res.Details
		}
	})
}

func (c *Coordinator) update(fn func(*State)) {
	c.mu.Lock()
	before := c.state.clone()
	fn(&c.state)
	after := c.state.clone()
	observers := slices.Clone(c.observers)
	c.mu.Unlock()

	if sameState(before, after) {
		return
	}
	for _, observer := range observers {
		observer(after)
	}
}

// Tasks returns the current demo dataset. Store failures are logged and yield
// an empty collection.
func (c *Coordinator) Tasks(ctx context.Context) []types.Task {
	tasks, err := c.store.Load(ctx)
	if err != nil {
		c.logger.WithError(err).Warn("demo.store.load")
		return nil
	}
	return tasks
}

// SetTasks replaces the demo dataset.
func (c *Coordinator) SetTasks(ctx context.Context, tasks []types.Task) error {
	return c.store.Replace(ctx, tasks)
}

// Guard runs write unless mutations are disabled.
func (c *Coordinator) Guard(ctx context.Context, write func(context.Context) error) error {
	if c.MutationsDisabled() {
		return ErrMutationsDisabled
	}
	return write(ctx)
}

func sameState(a, b State) bool {
	if a.DemoMode != b.DemoMode || a.BackendReady != b.BackendReady {
		return false
	}
	if (a.DBConfigured == nil) != (b.DBConfigured == nil) {
		return false
	}
	if a.DBConfigured != nil && *a.DBConfigured != *b.DBConfigured {
		return false
	}
	return len(a.StatusDetails) == len(b.StatusDetails) && a.CheckedAt.Equal(b.CheckedAt)
}

func boolPtr(v bool) *bool {
	return &v
}
