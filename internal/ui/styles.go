// Package ui renders board state for the terminal.
package ui

import (
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// ColorMode controls whether output carries ANSI colors.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

var (
	colorPrimary   = lipgloss.Color("#1E3A8A")
	colorSecondary = lipgloss.Color("#F59E0B")
	colorSuccess   = lipgloss.Color("#059669")
	colorError     = lipgloss.Color("#DC2626")
	colorMuted     = lipgloss.Color("#6B7280")
	colorBorder    = lipgloss.Color("#9CA3AF")
)

type styles struct {
	accent lipgloss.Style
	pass   lipgloss.Style
	warn   lipgloss.Style
	fail   lipgloss.Style
	muted  lipgloss.Style
	title  lipgloss.Style
	lane   lipgloss.Style
	card   lipgloss.Style
	banner lipgloss.Style
	toast  lipgloss.Style
	tag    lipgloss.Style
	today  lipgloss.Style
	plain  lipgloss.Style
}

var (
	mu      sync.RWMutex
	current = newStyles(lipgloss.NewRenderer(os.Stdout))
)

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		accent: r.NewStyle().Foreground(colorPrimary).Bold(true),
		pass:   r.NewStyle().Foreground(colorSuccess).Bold(true),
		warn:   r.NewStyle().Foreground(colorSecondary).Bold(true),
		fail:   r.NewStyle().Foreground(colorError).Bold(true),
		muted:  r.NewStyle().Foreground(colorMuted),
		title:  r.NewStyle().Foreground(colorPrimary).Bold(true),
		lane: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1),
		card:   r.NewStyle().PaddingBottom(1),
		banner: r.NewStyle().Bold(true).Padding(0, 1),
		toast: r.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			Padding(0, 1),
		tag:   r.NewStyle().Foreground(colorMuted).Italic(true),
		today: r.NewStyle().Foreground(colorSecondary).Bold(true).Underline(true),
		plain: r.NewStyle(),
	}
}

// Configure points rendering at w. ColorAuto enables colors only for
// terminals that do not set NO_COLOR.
func Configure(w io.Writer, mode ColorMode) {
	r := lipgloss.NewRenderer(w)
	switch mode {
	case ColorNever:
		r.SetColorProfile(termenv.Ascii)
	case ColorAlways:
		r.SetColorProfile(termenv.TrueColor)
	default:
		if !IsTerminal(w) {
			r.SetColorProfile(termenv.Ascii)
		} else {
			r.SetColorProfile(termenv.NewOutput(w).EnvColorProfile())
		}
	}
	mu.Lock()
	current = newStyles(r)
	mu.Unlock()
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w any) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

func style() styles {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// RenderAccent highlights s in the primary color.
func RenderAccent(s string) string { return style().accent.Render(s) }

// RenderPass renders s as a success marker.
func RenderPass(s string) string { return style().pass.Render(s) }

// RenderWarn renders s as a warning marker.
func RenderWarn(s string) string { return style().warn.Render(s) }

// RenderFail renders s as a failure marker.
func RenderFail(s string) string { return style().fail.Render(s) }

// RenderMuted renders secondary text.
func RenderMuted(s string) string { return style().muted.Render(s) }
