// Package pages holds the Boards and Calendar page models. Each page loads
// tasks through the demo coordinator, projects them through the URL-bound
// filters and exports what is visible.
package pages

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/taskboards/taskboards/internal/api"
	"github.com/taskboards/taskboards/internal/demo"
	"github.com/taskboards/taskboards/internal/export"
	"github.com/taskboards/taskboards/internal/filter"
	"github.com/taskboards/taskboards/internal/types"
)

// ErrClosed is returned by Load after Close.
var ErrClosed = errors.New("page closed")

// TaskSource fetches the live task list. *api.Client satisfies it.
type TaskSource interface {
	Tasks(ctx context.Context) ([]types.Task, error)
}

// view is the state both pages share.
type view struct {
	coord  *demo.Coordinator
	source TaskSource
	binder *filter.Binder
	logger *log.Logger

	mu     sync.RWMutex
	tasks  []types.Task
	closed bool
}

func newView(coord *demo.Coordinator, source TaskSource, binder *filter.Binder, logger *log.Logger) (*view, error) {
	if coord == nil {
		return nil, fmt.Errorf("coordinator cannot be nil")
	}
	if source == nil {
		return nil, fmt.Errorf("task source cannot be nil")
	}
	if binder == nil {
		h, err := filter.NewMemoryHistory("/")
		if err != nil {
			return nil, err
		}
		binder = filter.Bind(h)
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &view{coord: coord, source: source, binder: binder, logger: logger}, nil
}

// Load fetches tasks. A 503 or demo mode yields the demo dataset. Auth
// failures are returned so the caller can send the user to login; any other
// failure leaves the demo dataset in demo mode or an empty board otherwise.
func (v *view) Load(ctx context.Context) error {
	tasks, err := demo.RunWithFallback(ctx, v.coord, v.source.Tasks, demo.Tasks)
	if err != nil {
		if api.IsAuthError(err) {
			return err
		}
		v.logger.WithError(err).Warn("pages.load")
		tasks = nil
		if v.coord.DemoMode() {
			tasks = v.coord.Tasks(ctx)
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ErrClosed
	}
	v.tasks = types.CloneAll(tasks)
	return nil
}

// Close detaches the page. Loads still in flight drop their results.
func (v *view) Close() {
	v.mu.Lock()
	v.closed = true
	v.mu.Unlock()
}

// Tasks returns the full unfiltered collection.
func (v *view) Tasks() []types.Task {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return types.CloneAll(v.tasks)
}

// Visible returns the filtered collection.
func (v *view) Visible() []types.Task {
	return v.binder.Apply(v.Tasks())
}

// Filter returns the active filters.
func (v *view) Filter() filter.State {
	return v.binder.State()
}

// SetFilter replaces the filters and rewrites the URL.
func (v *view) SetFilter(s filter.State) {
	v.binder.Set(s)
}

// Export writes the visible tasks to path and returns the path written.
func (v *view) Export(path string, format export.Format) (string, error) {
	return export.ToFile(path, format, v.Visible())
}

// ShareURL renders a link to base with the active filters.
func (v *view) ShareURL(base string) (string, error) {
	return filter.ShareURL(base, v.Filter())
}

func (v *view) replace(ctx context.Context, tasks []types.Task) bool {
	if ctx.Err() != nil {
		return false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return false
	}
	v.tasks = tasks
	return true
}
