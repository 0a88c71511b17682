// Package board applies drag-and-drop moves to a task collection.
//
// Apply is pure: it never mutates its input and reduces every invalid move to
// a no-op. The Reconciler publishes the result to the demo dataset or, when
// order persistence is enabled, writes the affected lane back to the backend.
package board

import (
	"sort"

	"github.com/taskboards/taskboards/internal/types"
)

// Move is a finished drag: the task left From at FromIndex and was dropped
// into To at ToIndex. Indexes are positions within the rendered lane.
type Move struct {
	TaskID    string
	From      types.Status
	FromIndex int
	To        types.Status
	ToIndex   int
}

// NoOp reports whether the task was dropped where it started.
func (m Move) NoOp() bool {
	return m.From == m.To && m.FromIndex == m.ToIndex
}

// Apply moves a task and returns the recomposed collection: every task outside
// the destination lane in its original order, followed by the destination
// lane with the moved task inserted. The bool is false when nothing changed,
// in which case tasks is returned as is.
func Apply(tasks []types.Task, m Move) ([]types.Task, bool) {
	if m.NoOp() || !m.To.Valid() {
		return tasks, false
	}
	idx := types.IndexOf(tasks, m.TaskID)
	if idx < 0 {
		return tasks, false
	}

	moving := tasks[idx].Clone()
	moving.Status = m.To

	var others, lane []types.Task
	for i := range tasks {
		if i == idx {
			continue
		}
		if tasks[i].Status == m.To {
			lane = append(lane, tasks[i].Clone())
		} else {
			others = append(others, tasks[i].Clone())
		}
	}
	sortLane(lane)

	pos := m.ToIndex
	if pos < 0 {
		pos = 0
	}
	if pos > len(lane) {
		pos = len(lane)
	}
	lane = append(lane, types.Task{})
	copy(lane[pos+1:], lane[pos:])
	lane[pos] = moving

	out := make([]types.Task, 0, len(tasks))
	out = append(out, others...)
	out = append(out, lane...)
	return out, true
}

// Lane is one rendered column.
type Lane struct {
	Status types.Status
	Tasks  []types.Task
}

// Lanes groups tasks into the four lanes in display order. Each lane is
// sorted by Order; ties keep collection order.
func Lanes(tasks []types.Task) []Lane {
	grouped := make(map[types.Status][]types.Task, len(types.Lanes))
	for _, t := range tasks {
		status := t.Status
		if !status.Valid() {
			status = types.StatusBacklog
		}
		grouped[status] = append(grouped[status], t)
	}
	out := make([]Lane, 0, len(types.Lanes))
	for _, status := range types.Lanes {
		lane := grouped[status]
		sortLane(lane)
		out = append(out, Lane{Status: status, Tasks: lane})
	}
	return out
}

// Renumber sets Order to the position of each lane task within the
// collection, which after Apply is the intended rendered order. It returns the
// new collection and the tasks whose Order changed.
func Renumber(tasks []types.Task, lane types.Status) ([]types.Task, []types.Task) {
	out := types.CloneAll(tasks)
	var changed []types.Task
	n := 0
	for i := range out {
		if out[i].Status != lane {
			continue
		}
		if out[i].Order != n {
			out[i].Order = n
			changed = append(changed, out[i])
		}
		n++
	}
	return out, changed
}

func sortLane(lane []types.Task) {
	sort.SliceStable(lane, func(i, j int) bool {
		return lane[i].Order < lane[j].Order
	})
}
