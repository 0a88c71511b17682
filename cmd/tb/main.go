// Command tb is the TaskBoards terminal client.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/taskboards/taskboards/internal/api"
	"github.com/taskboards/taskboards/internal/app"
	"github.com/taskboards/taskboards/internal/ui"
)

var (
	configPath string
	colorMode  string
	forceDemo  bool
)

var rootCmd = &cobra.Command{
	Use:   "tb",
	Short: "TaskBoards client",
	Long: `tb shows TaskBoards boards and calendars in the terminal.

It talks to the backend configured by api_base_url (default: the origin on
port 3001) and falls back to a built-in demo board when the backend has no
database configured.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui.Configure(os.Stdout, ui.ColorMode(colorMode))
	},
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "board", Title: "Board commands:"},
		&cobra.Group{ID: "session", Title: "Session commands:"},
		&cobra.Group{ID: "advanced", Title: "Advanced commands:"},
	)
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (YAML or TOML)")
	rootCmd.PersistentFlags().StringVar(&colorMode, "color", string(ui.ColorAuto), "Color output: auto, always or never")
	rootCmd.PersistentFlags().BoolVar(&forceDemo, "demo", false, "Force demo mode")
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	cancel()
	if err != nil {
		os.Exit(1)
	}
}

// openApp builds the application for one command. The caller must Stop it.
func openApp(ctx context.Context) *app.App {
	a, err := app.New(ctx, app.Options{ConfigPath: configPath})
	if err != nil {
		fatal("failed to start: %v", err)
	}
	if forceDemo {
		a.Coordinator.EnterDemo("--demo flag")
	}
	return a
}

// exitOnError prints err and exits. Auth failures point at tb login.
func exitOnError(a *app.App, err error) {
	if err == nil {
		return
	}
	printToasts(a)
	if a != nil {
		a.Stop()
	}
	if api.IsAuthError(err) || errors.Is(err, app.ErrNotLoggedIn) {
		fatal("%v (please run tb login)", err)
	}
	fatal("%v", err)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", ui.RenderFail("Error:"), fmt.Sprintf(format, args...))
	os.Exit(1)
}

// printToasts writes pending notifications to stderr.
func printToasts(a *app.App) {
	if a == nil || a.Bus == nil {
		return
	}
	if out := ui.Toasts(a.Bus.Active()); out != "" {
		fmt.Fprintln(os.Stderr, out)
	}
}

// termWidth is the terminal width, or 120 when stdout is not a terminal.
func termWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 120
}
