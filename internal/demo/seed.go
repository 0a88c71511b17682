package demo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/taskboards/taskboards/internal/types"
)

// SeedTasks returns the built-in demo board.
func SeedTasks() []types.Task {
	return []types.Task{
		{ID: "m1", Title: "Draft onboarding flow", Status: types.StatusBacklog, Priority: types.PriorityHigh, Tags: []string{"feature"}, Assignee: &types.Assignee{Name: "Alice"}, DueDate: "2025-12-03"},
		{ID: "m2", Title: "Implement column reorder", Status: types.StatusInProgress, Priority: types.PriorityMedium, Tags: []string{"frontend"}, Assignee: &types.Assignee{Name: "Bob"}, DueDate: "2025-12-08"},
		{ID: "m3", Title: "Set up CI workflow", Status: types.StatusReview, Priority: types.PriorityLow, Tags: []string{"ops"}, Assignee: &types.Assignee{Name: "Charlie"}, DueDate: "2025-12-10"},
		{ID: "m4", Title: "Polish calendar styling", Status: types.StatusDone, Priority: types.PriorityMedium, Tags: []string{"frontend", "feature"}, Assignee: &types.Assignee{Name: "Dana"}, DueDate: "2025-12-06"},
		{ID: "m5", Title: "Bug bash", Status: types.StatusBacklog, Priority: types.PriorityUrgent, Tags: []string{"bug"}, Assignee: &types.Assignee{Name: "Alice"}, DueDate: "2025-12-15"},
	}
}

// seedFile is the on-disk layout of a seed file:
//
//	tasks:
//	  - id: m1
//	    title: Draft onboarding flow
//	    status: Backlog
type seedFile struct {
	Tasks []types.Task `yaml:"tasks" toml:"tasks"`
}

// LoadSeed reads a YAML or TOML seed file, chosen by extension.
func LoadSeed(path string) ([]types.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return ParseSeed(filepath.Ext(path), data)
}

// ParseSeed decodes seed data. ext is ".yaml", ".yml" or ".toml".
func ParseSeed(ext string, data []byte) ([]types.Task, error) {
	var seed seedFile
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &seed); err != nil {
			return nil, fmt.Errorf("failed to parse YAML seed: %w", err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &seed); err != nil {
			return nil, fmt.Errorf("failed to parse TOML seed: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported seed format %q", ext)
	}

	seen := make(map[string]bool, len(seed.Tasks))
	for i := range seed.Tasks {
		task := &seed.Tasks[i]
		task.Normalize()
		if err := task.Validate(); err != nil {
			return nil, fmt.Errorf("seed task %d: %w", i, err)
		}
		if seen[task.ID] {
			return nil, fmt.Errorf("seed task %d: duplicate id %q", i, task.ID)
		}
		seen[task.ID] = true
	}
	return seed.Tasks, nil
}
