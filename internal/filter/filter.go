// Package filter projects a task collection through the board filters and
// keeps the filters in sync with the page URL.
package filter

import (
	"strings"

	"github.com/taskboards/taskboards/internal/types"
)

// Query parameter names.
const (
	ParamQuery    = "q"
	ParamAssignee = "assignee"
	ParamPriority = "priority"
	ParamTag      = "tag"
)

// Filter choices offered by the filters drawer.
var (
	Assignees = []string{"Alice", "Bob", "Charlie", "Dana"}
	Tags      = []string{"frontend", "backend", "bug", "feature", "ops"}
)

// State is the active filter set. Empty fields do not constrain.
type State struct {
	Query    string
	Assignee string
	Priority types.Priority
	Tag      string
}

// Empty reports whether no field is set.
func (s State) Empty() bool {
	return s == State{}
}

// Match reports whether t satisfies every set field.
func (s State) Match(t types.Task) bool {
	if s.Query != "" && !strings.Contains(strings.ToLower(t.Title), strings.ToLower(s.Query)) {
		return false
	}
	if s.Assignee != "" && t.AssigneeName() != s.Assignee {
		return false
	}
	if s.Priority != "" && t.Priority != s.Priority {
		return false
	}
	if s.Tag != "" && !t.HasTag(s.Tag) {
		return false
	}
	return true
}

// Apply returns the tasks matching s in their original order. An empty state
// returns tasks itself.
func Apply(tasks []types.Task, s State) []types.Task {
	if s.Empty() {
		return tasks
	}
	out := make([]types.Task, 0, len(tasks))
	for _, t := range tasks {
		if s.Match(t) {
			out = append(out, t)
		}
	}
	return out
}
