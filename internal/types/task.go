// Package types defines the task and user records shared by every board component.
package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Status is the lane a task belongs to.
type Status string

const (
	StatusBacklog    Status = "Backlog"
	StatusInProgress Status = "In Progress"
	StatusReview     Status = "Review"
	StatusDone       Status = "Done"
)

// Lanes lists the board lanes in display order.
var Lanes = []Status{StatusBacklog, StatusInProgress, StatusReview, StatusDone}

// ParseStatus maps a raw lane name onto a known lane.
// Matching is exact first, then case-insensitive; anything else becomes Backlog.
func ParseStatus(s string) Status {
	for _, lane := range Lanes {
		if string(lane) == s {
			return lane
		}
	}
	for _, lane := range Lanes {
		if strings.EqualFold(string(lane), strings.TrimSpace(s)) {
			return lane
		}
	}
	return StatusBacklog
}

// Valid reports whether s is one of the four lanes.
func (s Status) Valid() bool {
	for _, lane := range Lanes {
		if lane == s {
			return true
		}
	}
	return false
}

// UnmarshalJSON coerces unknown lane names to Backlog.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		// null, numbers and other junk land in Backlog as well
		*s = StatusBacklog
		return nil
	}
	*s = ParseStatus(raw)
	return nil
}

// Priority is an optional urgency marker.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
	PriorityUrgent Priority = "Urgent"
)

// Priorities lists the known priorities from lowest to highest.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

// Valid reports whether p is empty or one of the known priorities.
func (p Priority) Valid() bool {
	if p == "" {
		return true
	}
	for _, known := range Priorities {
		if known == p {
			return true
		}
	}
	return false
}

// Assignee references the person a task is assigned to.
type Assignee struct {
	Name string `json:"name" yaml:"name" toml:"name"`
}

// Task is a single board card.
type Task struct {
	ID       string    `json:"id" yaml:"id" toml:"id"`
	Title    string    `json:"title" yaml:"title" toml:"title"`
	Status   Status    `json:"status" yaml:"status" toml:"status"`
	Priority Priority  `json:"priority,omitempty" yaml:"priority,omitempty" toml:"priority,omitempty"`
	Tags     []string  `json:"tags,omitempty" yaml:"tags,omitempty" toml:"tags,omitempty"`
	Assignee *Assignee `json:"assignee,omitempty" yaml:"assignee,omitempty" toml:"assignee,omitempty"`
	DueDate  string    `json:"dueDate,omitempty" yaml:"dueDate,omitempty" toml:"dueDate,omitempty"`
	Order    int       `json:"order" yaml:"order,omitempty" toml:"order,omitempty"`
}

// Validate checks the fields the board relies on.
func (t *Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("id is required")
	}
	if !t.Priority.Valid() {
		return fmt.Errorf("unknown priority %q", t.Priority)
	}
	if t.DueDate != "" {
		if _, ok := t.Due(); !ok {
			return fmt.Errorf("invalid due date %q", t.DueDate)
		}
	}
	return nil
}

// Normalize coerces the lane to a known value.
func (t *Task) Normalize() {
	t.Status = ParseStatus(string(t.Status))
}

// AssigneeName returns the assignee's name or "" when unassigned.
func (t Task) AssigneeName() string {
	if t.Assignee == nil {
		return ""
	}
	return t.Assignee.Name
}

// HasTag reports whether tag is one of the task's tags.
func (t Task) HasTag(tag string) bool {
	for _, candidate := range t.Tags {
		if candidate == tag {
			return true
		}
	}
	return false
}

// Due parses DueDate as a calendar date or an RFC 3339 timestamp.
func (t Task) Due() (time.Time, bool) {
	if t.DueDate == "" {
		return time.Time{}, false
	}
	if d, err := time.Parse(time.DateOnly, t.DueDate); err == nil {
		return d, true
	}
	if d, err := time.Parse(time.RFC3339, t.DueDate); err == nil {
		return d, true
	}
	return time.Time{}, false
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (t Task) Clone() Task {
	out := t
	if t.Tags != nil {
		out.Tags = append([]string(nil), t.Tags...)
	}
	if t.Assignee != nil {
		a := *t.Assignee
		out.Assignee = &a
	}
	return out
}

// CloneAll deep-copies a task collection.
func CloneAll(tasks []Task) []Task {
	if tasks == nil {
		return nil
	}
	out := make([]Task, len(tasks))
	for i := range tasks {
		out[i] = tasks[i].Clone()
	}
	return out
}

// IndexOf returns the position of the task with id, or -1.
func IndexOf(tasks []Task, id string) int {
	for i := range tasks {
		if tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// User identifies the signed-in user or a member of the presence list.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}
