package pages

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/taskboards/taskboards/internal/board"
	"github.com/taskboards/taskboards/internal/demo"
	"github.com/taskboards/taskboards/internal/filter"
	"github.com/taskboards/taskboards/internal/types"
)

// BoardPage is the Kanban view.
type BoardPage struct {
	*view
	reconciler *board.Reconciler
}

// NewBoardPage creates the page. binder may be nil for a detached filter.
func NewBoardPage(coord *demo.Coordinator, source TaskSource, reconciler *board.Reconciler, binder *filter.Binder, logger *log.Logger) (*BoardPage, error) {
	if reconciler == nil {
		return nil, fmt.Errorf("reconciler cannot be nil")
	}
	v, err := newView(coord, source, binder, logger)
	if err != nil {
		return nil, err
	}
	return &BoardPage{view: v, reconciler: reconciler}, nil
}

// Lanes groups the visible tasks for rendering.
func (p *BoardPage) Lanes() []board.Lane {
	return board.Lanes(p.Visible())
}

// Move drops taskID into lane to at index within the visible (filtered)
// lane. The index is translated into the full lane so hidden tasks keep
// their place. It reports whether the board changed.
func (p *BoardPage) Move(ctx context.Context, taskID string, to types.Status, index int) bool {
	tasks := p.Tasks()
	m, ok := p.translate(tasks, taskID, to, index)
	if !ok {
		return false
	}
	next, changed := p.reconciler.Reconcile(ctx, tasks, m)
	if !changed {
		return false
	}
	return p.replace(ctx, next)
}

// translate builds the Move for a drop at a visible index.
func (p *BoardPage) translate(tasks []types.Task, taskID string, to types.Status, index int) (board.Move, bool) {
	i := types.IndexOf(tasks, taskID)
	if i < 0 || !to.Valid() {
		return board.Move{}, false
	}
	from := tasks[i].Status
	lanes := board.Lanes(tasks)

	m := board.Move{TaskID: taskID, From: from, To: to}
	for _, lane := range lanes {
		if lane.Status == from {
			m.FromIndex = types.IndexOf(lane.Tasks, taskID)
		}
	}

	var dest []types.Task
	for _, lane := range lanes {
		if lane.Status != to {
			continue
		}
		for _, t := range lane.Tasks {
			if t.ID != taskID {
				dest = append(dest, t)
			}
		}
	}

	state := p.Filter()
	var visible []int
	for pos, t := range dest {
		if state.Match(t) {
			visible = append(visible, pos)
		}
	}

	if index < 0 {
		index = 0
	}
	switch {
	case len(visible) == 0:
		m.ToIndex = len(dest)
	case index < len(visible):
		m.ToIndex = visible[index]
	default:
		m.ToIndex = visible[len(visible)-1] + 1
	}
	return m, true
}
