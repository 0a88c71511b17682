package filter

import (
	"fmt"
	"net/url"
	"sync"

	"github.com/taskboards/taskboards/internal/types"
)

// FromValues reads the recognized filter parameters. Others are ignored.
func FromValues(v url.Values) State {
	return State{
		Query:    v.Get(ParamQuery),
		Assignee: v.Get(ParamAssignee),
		Priority: types.Priority(v.Get(ParamPriority)),
		Tag:      v.Get(ParamTag),
	}
}

// Values renders the set fields. Empty fields are omitted.
func (s State) Values() url.Values {
	return s.mergeInto(url.Values{})
}

// Encode renders the set fields as a query string.
func (s State) Encode() string {
	return s.Values().Encode()
}

// mergeInto writes s into v, deleting the parameters of empty fields and
// leaving unrelated parameters alone.
func (s State) mergeInto(v url.Values) url.Values {
	set := func(key, value string) {
		if value == "" {
			v.Del(key)
			return
		}
		v.Set(key, value)
	}
	set(ParamQuery, s.Query)
	set(ParamAssignee, s.Assignee)
	set(ParamPriority, string(s.Priority))
	set(ParamTag, s.Tag)
	return v
}

// ShareURL renders base with s applied to its query string.
func ShareURL(base string, s State) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("failed to parse board url: %w", err)
	}
	u.RawQuery = s.mergeInto(u.Query()).Encode()
	return u.String(), nil
}

// History is the page location. Replace swaps the current entry; there is
// no push.
type History interface {
	URL() *url.URL
	Replace(u *url.URL)
}

// MemoryHistory is a History held in memory.
type MemoryHistory struct {
	mu       sync.Mutex
	current  url.URL
	replaced int
}

// NewMemoryHistory starts at raw.
func NewMemoryHistory(raw string) (*MemoryHistory, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse url: %w", err)
	}
	return &MemoryHistory{current: *u}, nil
}

// URL returns a copy of the current location.
func (h *MemoryHistory) URL() *url.URL {
	h.mu.Lock()
	defer h.mu.Unlock()
	u := h.current
	return &u
}

// Replace swaps the current location.
func (h *MemoryHistory) Replace(u *url.URL) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current = *u
	h.replaced++
}

// Replacements counts Replace calls.
func (h *MemoryHistory) Replacements() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.replaced
}

// Binder keeps a State and a History in step.
type Binder struct {
	mu      sync.Mutex
	history History
	state   State
}

// Bind reads the initial state from the history's current URL.
func Bind(h History) *Binder {
	return &Binder{history: h, state: FromValues(h.URL().Query())}
}

// State returns the bound filters.
func (b *Binder) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Set stores s and rewrites the URL in place.
func (b *Binder) Set(s State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = s
	u := b.history.URL()
	u.RawQuery = s.mergeInto(u.Query()).Encode()
	b.history.Replace(u)
}

// Apply projects tasks through the bound filters.
func (b *Binder) Apply(tasks []types.Task) []types.Task {
	return Apply(tasks, b.State())
}
