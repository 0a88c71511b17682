package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskboards/taskboards/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "advanced",
	Short:   "Probe the backend and show connectivity",
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp(cmd.Context())
		defer a.Stop()

		state := a.Check(cmd.Context())
		fmt.Printf("\n%s TaskBoards status\n\n", ui.RenderAccent("📊"))
		fmt.Printf("   API base:      %s\n", a.Client.Base())
		fmt.Printf("   Demo mode:     %v\n", state.DemoMode)
		fmt.Printf("   Backend ready: %v\n", state.BackendReady)
		switch {
		case state.DBConfigured == nil:
			fmt.Printf("   Database:      unknown\n")
		case *state.DBConfigured:
			fmt.Printf("   Database:      configured\n")
		default:
			fmt.Printf("   Database:      not configured\n")
		}
		if v, ok := state.StatusDetails["app_version"]; ok {
			fmt.Printf("   Version:       %v\n", v)
		}
		if user, ok := a.User(); ok {
			fmt.Printf("   Signed in as:  %s <%s>\n", user.Name, user.Email)
		} else {
			fmt.Printf("   Signed in as:  %s\n", ui.RenderMuted("nobody"))
		}
		if banner := ui.Banner(state); banner != "" {
			fmt.Printf("\n%s\n", banner)
		}
		fmt.Println()
		printToasts(a)
	},
}

var diagnosticsCmd = &cobra.Command{
	Use:     "diagnostics",
	GroupID: "advanced",
	Short:   "Run smoke checks against the backend",
	Long: `Run smoke checks against the backend:
  1. GET / expecting 200
  2. GET /status expecting 200 JSON with the required fields
  3. GET /api/projects expecting 503 without a database, else 200/401/403`,
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp(cmd.Context())
		defer a.Stop()

		runner, err := a.Diagnostics()
		exitOnError(a, err)
		report, err := runner.Run(cmd.Context())
		exitOnError(a, err)

		fmt.Println(ui.Diagnostics(report))
		printToasts(a)
		if !report.OK() {
			a.Stop()
			fatal("%d checks need attention", len(report.Results)-report.Passed())
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd, diagnosticsCmd)
}
