package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskboards/taskboards/internal/calendar"
	"github.com/taskboards/taskboards/internal/ui"
)

var calendarCmd = &cobra.Command{
	Use:     "calendar [month]",
	GroupID: "board",
	Short:   "Show tasks on a month calendar",
	Long: `Show the filtered tasks by due date on a Monday-first month grid.

The month may be "2025-12", "December 2025", "dec" or a phrase such as
"next month" or "in 2 months". It defaults to the current month.`,
	Run: func(cmd *cobra.Command, args []string) {
		month, err := calendar.ParseMonth(strings.Join(args, " "), time.Now())
		if err != nil {
			fatal("%v", err)
		}

		ctx := cmd.Context()
		a := openApp(ctx)
		defer a.Stop()
		page, err := a.CalendarPage(filterHistory(cmd, a))
		exitOnError(a, err)
		exitOnError(a, load(ctx, a, page))

		width, _ := cmd.Flags().GetInt("cell-width")
		if width <= 0 {
			width = termWidth()/7 - 1
		}
		printBanner(a)
		fmt.Println(ui.Calendar(page.Month(month), width))
		printToasts(a)
	},
}

func init() {
	calendarCmd.Flags().Int("cell-width", 0, "Width of a day cell (default: fit the terminal)")
	rootCmd.AddCommand(calendarCmd)
}
