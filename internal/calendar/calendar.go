// Package calendar groups tasks into a month grid by due date.
package calendar

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/taskboards/taskboards/internal/types"
)

const (
	// GridDays is six full weeks, enough for any month.
	GridDays = 42
	// MaxPerDay is how many tasks a cell lists before "+N more".
	MaxPerDay = 4
)

// Weekdays are the column headers; weeks start on Monday.
var Weekdays = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// Day is one grid cell.
type Day struct {
	Date    time.Time
	InMonth bool
	Today   bool
	Tasks   []types.Task
	// More counts tasks due that day beyond MaxPerDay.
	More int
}

// Key is the day as YYYY-MM-DD.
func (d Day) Key() string {
	return d.Date.Format(time.DateOnly)
}

// Month is a rendered month.
type Month struct {
	Label string
	Start time.Time
	Days  []Day
}

// Build lays out the month containing ref: 42 days starting on the Monday
// on or before the 1st. Tasks without a parseable due date are left out.
func Build(tasks []types.Task, ref, today time.Time) Month {
	first := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, time.UTC)
	offset := (int(first.Weekday()) + 6) % 7
	start := first.AddDate(0, 0, -offset)
	todayKey := today.Format(time.DateOnly)

	byDay := make(map[string][]types.Task)
	for _, t := range tasks {
		due, ok := t.Due()
		if !ok {
			continue
		}
		key := due.Format(time.DateOnly)
		byDay[key] = append(byDay[key], t)
	}

	days := make([]Day, GridDays)
	for i := range days {
		date := start.AddDate(0, 0, i)
		key := date.Format(time.DateOnly)
		due := byDay[key]
		day := Day{
			Date:    date,
			InMonth: date.Month() == first.Month(),
			Today:   key == todayKey,
		}
		if len(due) > MaxPerDay {
			day.More = len(due) - MaxPerDay
			due = due[:MaxPerDay]
		}
		day.Tasks = due
		days[i] = day
	}

	return Month{
		Label: first.Format("January 2006"),
		Start: first,
		Days:  days,
	}
}

// Weeks splits the grid into rows of seven.
func (m Month) Weeks() [][]Day {
	weeks := make([][]Day, 0, len(m.Days)/7)
	for i := 0; i+7 <= len(m.Days); i += 7 {
		weeks = append(weeks, m.Days[i:i+7])
	}
	return weeks
}

// Next returns the first day of the following month.
func (m Month) Next() time.Time {
	return m.Start.AddDate(0, 1, 0)
}

// Prev returns the first day of the preceding month.
func (m Month) Prev() time.Time {
	return m.Start.AddDate(0, -1, 0)
}

var monthLayouts = []string{"2006-01", "January 2006", "Jan 2006", "2006-01-02"}

var parser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

var (
	relativeMonths = regexp.MustCompile(`^(?:in|within)?\s*(\d+|a|an|one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve)\s+months?(\s+ago|\s+from\s+now|\s+later)?$`)
	namedOffsets   = map[string]int{"last month": -1, "previous month": -1, "this month": 0, "next month": 1}
	countWords     = map[string]int{
		"a": 1, "an": 1, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6,
		"seven": 7, "eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12,
	}
)

// relativeMonth resolves phrases such as "next month", "in 2 months" and
// "3 months ago" against now.
func relativeMonth(expr string, now time.Time) (time.Time, bool) {
	expr = strings.Join(strings.Fields(strings.ToLower(expr)), " ")
	if n, ok := namedOffsets[expr]; ok {
		return firstOf(now).AddDate(0, n, 0), true
	}
	m := relativeMonths.FindStringSubmatch(expr)
	if m == nil {
		return time.Time{}, false
	}
	n, ok := countWords[m[1]]
	if !ok {
		v, err := strconv.Atoi(m[1])
		if err != nil {
			return time.Time{}, false
		}
		n = v
	}
	if strings.TrimSpace(m[2]) == "ago" {
		n = -n
	}
	return firstOf(now).AddDate(0, n, 0), true
}

// ParseMonth reads a month such as "2025-12", "December 2025", "december"
// or a relative phrase like "in 2 months". The empty string means now.
func ParseMonth(expr string, now time.Time) (time.Time, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return firstOf(now), nil
	}
	for _, layout := range monthLayouts {
		if t, err := time.Parse(layout, expr); err == nil {
			return firstOf(t), nil
		}
	}
	for _, layout := range []string{"January", "Jan"} {
		if t, err := time.Parse(layout, expr); err == nil {
			return time.Date(now.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC), nil
		}
	}
	if t, ok := relativeMonth(expr, now); ok {
		return t, nil
	}
	r, err := parser.Parse(expr, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse month %q: %w", expr, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("unrecognized month %q", expr)
	}
	return firstOf(r.Time), nil
}

func firstOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
