package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/taskboards/taskboards/internal/board"
	"github.com/taskboards/taskboards/internal/calendar"
	"github.com/taskboards/taskboards/internal/demo"
	"github.com/taskboards/taskboards/internal/diagnostics"
	"github.com/taskboards/taskboards/internal/notify"
	"github.com/taskboards/taskboards/internal/realtime"
	"github.com/taskboards/taskboards/internal/types"
)

// Banner texts shown above the board.
const (
	BannerDemo            = "Demo mode (no DB configured)"
	BannerBackendNotReady = "Backend not ready. Some features may be unavailable."
)

const minLaneWidth = 24

// Banner returns the connectivity banner for state, or "" when the backend is ready.
func Banner(state demo.State) string {
	s := style()
	switch {
	case state.DemoMode:
		return s.banner.Inherit(s.warn).Render(BannerDemo)
	case !state.BackendReady:
		return s.banner.Inherit(s.fail).Render(BannerBackendNotReady)
	default:
		return ""
	}
}

// Card renders one task as it appears inside a lane.
func Card(t types.Task) string {
	s := style()
	who := "Unassigned"
	if name := t.AssigneeName(); name != "" {
		who = "@" + name
	}
	prio := string(t.Priority)
	if prio == "" {
		prio = "Priority N/A"
	}
	lines := []string{
		s.title.Render(t.Title),
		s.muted.Render(fmt.Sprintf("%s • %s • #%s", who, prio, t.ID)),
	}
	if len(t.Tags) > 0 {
		lines = append(lines, s.tag.Render(strings.Join(t.Tags, " ")))
	}
	if t.DueDate != "" {
		lines = append(lines, s.muted.Render("due "+t.DueDate))
	}
	return s.card.Render(strings.Join(lines, "\n"))
}

// Board renders the lanes side by side within width columns.
func Board(lanes []board.Lane, width int) string {
	s := style()
	if len(lanes) == 0 {
		return ""
	}
	laneWidth := width/len(lanes) - 4
	if laneWidth < minLaneWidth {
		laneWidth = minLaneWidth
	}

	cols := make([]string, 0, len(lanes))
	for _, lane := range lanes {
		parts := []string{s.accent.Render(fmt.Sprintf("%s (%d)", lane.Status, len(lane.Tasks)))}
		for _, t := range lane.Tasks {
			parts = append(parts, Card(t))
		}
		if len(lane.Tasks) == 0 {
			parts = append(parts, s.muted.Render("no tasks"))
		}
		cols = append(cols, s.lane.Width(laneWidth).Render(strings.Join(parts, "\n")))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
}

// Toasts renders the active notifications, oldest first.
func Toasts(active []notify.Notification) string {
	s := style()
	out := make([]string, 0, len(active))
	for _, n := range active {
		marker := s.accent
		switch n.Type {
		case notify.LevelSuccess:
			marker = s.pass
		case notify.LevelWarning:
			marker = s.warn
		case notify.LevelError:
			marker = s.fail
		}
		body := marker.Render(n.Title)
		if n.Message != "" {
			body += "\n" + n.Message
		}
		out = append(out, s.toast.BorderForeground(marker.GetForeground()).Render(body))
	}
	return strings.Join(out, "\n")
}

// PresenceLabel is "N online", or "Offline" when nobody is.
func PresenceLabel(users []types.User) string {
	if len(users) == 0 {
		return "Offline"
	}
	return fmt.Sprintf("%d online", len(users))
}

// Presence renders the online indicator, user list and known cursors.
func Presence(p *realtime.Presence, state realtime.ConnState) string {
	s := style()
	users := p.Users()
	dot := s.muted.Render("●")
	if len(users) > 0 {
		dot = s.pass.Render("●")
	}
	lines := []string{fmt.Sprintf("%s %s %s", dot, PresenceLabel(users), s.muted.Render("("+state.String()+")"))}
	for _, u := range users {
		name := u.Name
		if name == "" {
			name = u.ID
		}
		lines = append(lines, "  "+name)
	}

	cursors := p.Cursors()
	ids := make([]string, 0, len(cursors))
	for id := range cursors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		c := cursors[id]
		lines = append(lines, s.muted.Render(fmt.Sprintf("  %s @ (%.0f, %.0f)", id, c.X, c.Y)))
	}
	return strings.Join(lines, "\n")
}

// Calendar renders a month grid. Each cell lists task titles, then "+N more".
func Calendar(m calendar.Month, cellWidth int) string {
	s := style()
	if cellWidth < 8 {
		cellWidth = 8
	}
	cell := s.plain.Width(cellWidth)

	var rows []string
	rows = append(rows, s.title.Render(m.Label))

	header := make([]string, len(calendar.Weekdays))
	for i, d := range calendar.Weekdays {
		header[i] = cell.Render(s.accent.Render(d))
	}
	rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, header...))

	for _, week := range m.Weeks() {
		cells := make([]string, len(week))
		for i, day := range week {
			num := fmt.Sprintf("%2d", day.Date.Day())
			switch {
			case day.Today:
				num = s.today.Render(num)
			case !day.InMonth:
				num = s.muted.Render(num)
			}
			lines := []string{num}
			for _, t := range day.Tasks {
				lines = append(lines, truncate(t.Title, cellWidth-1))
			}
			if day.More > 0 {
				lines = append(lines, s.muted.Render(fmt.Sprintf("+%d more", day.More)))
			}
			cells[i] = cell.Render(strings.Join(lines, "\n"))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return strings.Join(rows, "\n")
}

// Diagnostics renders a diagnostics report, one block per check.
func Diagnostics(r diagnostics.Report) string {
	s := style()
	lines := []string{
		s.title.Render("Diagnostics"),
		s.muted.Render(fmt.Sprintf("API Base: %s • Started: %s", r.Base, r.StartedAt.Format("2006-01-02 15:04:05"))),
	}
	for _, res := range r.Results {
		badge := RenderPass("PASS")
		if !res.Pass {
			badge = RenderFail("FAIL")
		}
		lines = append(lines, fmt.Sprintf("%s %s", badge, s.accent.Render(res.Check)))
		lines = append(lines, s.muted.Render(fmt.Sprintf("  %s • expected %s • status %d • %dms",
			res.URL, res.Expected, res.Status, res.Duration.Milliseconds())))
		if res.Notes != "" {
			lines = append(lines, s.muted.Render("  Note: "+res.Notes))
		}
	}
	lines = append(lines, r.Summary())
	return strings.Join(lines, "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}
