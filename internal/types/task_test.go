package types

import (
	"encoding/json"
	"testing"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in   string
		want Status
	}{
		{"Backlog", StatusBacklog},
		{"In Progress", StatusInProgress},
		{"review", StatusReview},
		{" DONE ", StatusDone},
		{"", StatusBacklog},
		{"archived", StatusBacklog},
	}

	for _, tt := range tests {
		if got := ParseStatus(tt.in); got != tt.want {
			t.Errorf("ParseStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTaskUnmarshalCoercesUnknownStatus(t *testing.T) {
	payload := `[
		{"id":"a","title":"A","status":"Blocked"},
		{"id":"b","title":"B","status":"Review"},
		{"id":"c","title":"C"},
		{"id":"d","title":"D","status":7}
	]`

	var tasks []Task
	if err := json.Unmarshal([]byte(payload), &tasks); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	want := []Status{StatusBacklog, StatusReview, "", StatusBacklog}
	for i, task := range tasks {
		if task.Status != want[i] {
			t.Errorf("task %s: status = %q, want %q", task.ID, task.Status, want[i])
		}
	}

	// Missing field never reaches UnmarshalJSON; Normalize covers it.
	tasks[2].Normalize()
	if tasks[2].Status != StatusBacklog {
		t.Errorf("normalized status = %q, want Backlog", tasks[2].Status)
	}
}

func TestTaskValidate(t *testing.T) {
	tests := []struct {
		name    string
		task    Task
		wantErr bool
	}{
		{name: "valid", task: Task{ID: "t1", Title: "x", Priority: PriorityHigh, DueDate: "2025-12-03"}},
		{name: "rfc3339 due", task: Task{ID: "t1", DueDate: "2025-12-03T10:00:00Z"}},
		{name: "missing id", task: Task{Title: "x"}, wantErr: true},
		{name: "bad priority", task: Task{ID: "t1", Priority: "Critical"}, wantErr: true},
		{name: "bad due", task: Task{ID: "t1", DueDate: "next week"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.task.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCloneDoesNotAlias(t *testing.T) {
	orig := Task{ID: "t1", Tags: []string{"bug"}, Assignee: &Assignee{Name: "Alice"}}
	c := orig.Clone()
	c.Tags[0] = "feature"
	c.Assignee.Name = "Bob"

	if orig.Tags[0] != "bug" {
		t.Errorf("tags aliased: %v", orig.Tags)
	}
	if orig.Assignee.Name != "Alice" {
		t.Errorf("assignee aliased: %v", orig.Assignee.Name)
	}
}

func TestHelpers(t *testing.T) {
	task := Task{ID: "t1", Tags: []string{"ops", "bug"}}
	if !task.HasTag("bug") || task.HasTag("feature") {
		t.Errorf("HasTag mismatch for %v", task.Tags)
	}
	if task.AssigneeName() != "" {
		t.Errorf("expected empty assignee name")
	}
	if IndexOf([]Task{{ID: "a"}, task}, "t1") != 1 {
		t.Errorf("IndexOf did not find t1")
	}
	if IndexOf(nil, "t1") != -1 {
		t.Errorf("IndexOf on nil should be -1")
	}
}
