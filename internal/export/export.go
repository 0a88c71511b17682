// Package export writes the visible task list to CSV or YAML.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/taskboards/taskboards/internal/types"
)

// DefaultFilename is used when the caller names no output file.
const DefaultFilename = "taskboards_export.csv"

// Header is the CSV column order.
var Header = []string{"ID", "Title", "Status", "Assignee", "Priority", "Due Date", "Tags"}

// Format selects the output encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts "csv", "yaml" or "yml". Empty means CSV.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return FormatCSV, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown export format %q", s)
	}
}

// FormatFor guesses the format from a file extension, defaulting to CSV.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatCSV
	}
}

// Row renders one task as CSV fields. Tags are joined with "|".
func Row(t types.Task) []string {
	return []string{
		t.ID,
		t.Title,
		string(t.Status),
		t.AssigneeName(),
		string(t.Priority),
		t.DueDate,
		strings.Join(t.Tags, "|"),
	}
}

// WriteCSV writes a header line followed by one row per task.
func WriteCSV(w io.Writer, tasks []types.Task) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, t := range tasks {
		if err := cw.Write(Row(t)); err != nil {
			return fmt.Errorf("failed to write task %s: %w", t.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

type yamlDoc struct {
	Tasks []types.Task `yaml:"tasks"`
}

// WriteYAML writes tasks in the same shape demo seed files use, so an export
// can be fed back in as demo.seed_file.
func WriteYAML(w io.Writer, tasks []types.Task) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(yamlDoc{Tasks: tasks}); err != nil {
		return fmt.Errorf("failed to encode yaml: %w", err)
	}
	return enc.Close()
}

// Write dispatches on format.
func Write(w io.Writer, format Format, tasks []types.Task) error {
	switch format {
	case FormatYAML:
		return WriteYAML(w, tasks)
	case FormatCSV, "":
		return WriteCSV(w, tasks)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

// ToFile writes tasks to path, creating or truncating it. An empty path
// writes DefaultFilename in the working directory. It returns the path written.
func ToFile(path string, format Format, tasks []types.Task) (string, error) {
	if path == "" {
		path = DefaultFilename
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := Write(f, format, tasks); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", path, err)
	}
	return path, nil
}
