package filter

import (
	"net/url"
	"testing"

	"github.com/taskboards/taskboards/internal/types"
)

func TestValuesRoundTripAllCombinations(t *testing.T) {
	full := State{Query: "flow & more", Assignee: "Alice", Priority: types.PriorityHigh, Tag: "feature"}

	for mask := 0; mask < 16; mask++ {
		var s State
		if mask&1 != 0 {
			s.Query = full.Query
		}
		if mask&2 != 0 {
			s.Assignee = full.Assignee
		}
		if mask&4 != 0 {
			s.Priority = full.Priority
		}
		if mask&8 != 0 {
			s.Tag = full.Tag
		}

		encoded := s.Encode()
		values, err := url.ParseQuery(encoded)
		if err != nil {
			t.Fatalf("mask %d: parse %q: %v", mask, encoded, err)
		}
		if got := FromValues(values); got != s {
			t.Errorf("mask %d: round trip = %+v, want %+v", mask, got, s)
		}
		if len(values) != countSet(s) {
			t.Errorf("mask %d: %q carries empty fields", mask, encoded)
		}
	}
}

func countSet(s State) int {
	n := 0
	for _, v := range []string{s.Query, s.Assignee, string(s.Priority), s.Tag} {
		if v != "" {
			n++
		}
	}
	return n
}

func TestBinderMountsFromURL(t *testing.T) {
	h, err := NewMemoryHistory("http://localhost:3000/boards?q=bug&tag=ops&view=compact")
	if err != nil {
		t.Fatal(err)
	}
	b := Bind(h)

	want := State{Query: "bug", Tag: "ops"}
	if b.State() != want {
		t.Fatalf("mounted state = %+v, want %+v", b.State(), want)
	}
	if h.Replacements() != 0 {
		t.Fatal("mounting must not rewrite the URL")
	}
}

func TestBinderSetReplacesURL(t *testing.T) {
	h, err := NewMemoryHistory("http://localhost:3000/boards?q=bug&view=compact")
	if err != nil {
		t.Fatal(err)
	}
	b := Bind(h)

	b.Set(State{Assignee: "Bob", Priority: types.PriorityLow})
	u := h.URL()
	q := u.Query()
	if q.Get("q") != "" || q.Has("q") {
		t.Errorf("cleared query still present: %s", u.RawQuery)
	}
	if q.Get("assignee") != "Bob" || q.Get("priority") != "Low" {
		t.Errorf("filters not written: %s", u.RawQuery)
	}
	if q.Get("view") != "compact" {
		t.Errorf("unrelated parameter dropped: %s", u.RawQuery)
	}
	if u.Path != "/boards" {
		t.Errorf("path changed: %s", u.Path)
	}

	b.Set(State{})
	if got := h.URL().RawQuery; got != "view=compact" {
		t.Errorf("empty state left %q", got)
	}
	if h.Replacements() != 2 {
		t.Errorf("replacements = %d, want 2", h.Replacements())
	}
}

func TestBinderApply(t *testing.T) {
	h, _ := NewMemoryHistory("/boards?assignee=Dana")
	got := Bind(h).Apply(sampleTasks())
	if len(got) != 1 || got[0].ID != "m4" {
		t.Fatalf("Apply = %v", ids(got))
	}
}

func TestShareURL(t *testing.T) {
	got, err := ShareURL("http://localhost:3000/boards?view=compact", State{Query: "bug bash", Tag: "bug"})
	if err != nil {
		t.Fatalf("ShareURL: %v", err)
	}
	if got != "http://localhost:3000/boards?q=bug+bash&tag=bug&view=compact" {
		t.Fatalf("ShareURL = %q", got)
	}
	if _, err := ShareURL("http://[::1", State{}); err == nil {
		t.Fatal("expected parse error")
	}
}
