package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/taskboards/taskboards/internal/app"
	"github.com/taskboards/taskboards/internal/export"
	"github.com/taskboards/taskboards/internal/filter"
	"github.com/taskboards/taskboards/internal/pages"
	"github.com/taskboards/taskboards/internal/types"
	"github.com/taskboards/taskboards/internal/ui"
)

var boardCmd = &cobra.Command{
	Use:     "board",
	GroupID: "board",
	Short:   "Show the Kanban board",
	Long: `Show the four lanes of the board, filtered by the filter flags or by the
query string of --url.

Examples:
  tb board --assignee Alice
  tb board --url 'http://localhost:3000/boards?tag=bug' --share`,
	Run: func(cmd *cobra.Command, args []string) {
		a, page := openBoard(cmd)
		defer a.Stop()

		printBanner(a)
		fmt.Println(ui.Board(page.Lanes(), termWidth()))
		if share, _ := cmd.Flags().GetBool("share"); share {
			link, err := page.ShareURL(boardURL(cmd, a))
			exitOnError(a, err)
			fmt.Printf("\nShare: %s\n", link)
		}
		printToasts(a)
	},
}

var moveCmd = &cobra.Command{
	Use:     "move <task-id> <lane> [index]",
	GroupID: "board",
	Short:   "Move a task to a lane",
	Long: `Move a task into a lane at a position of the filtered lane (default: top).
Lanes are Backlog, "In Progress", Review and Done.`,
	Args: cobra.RangeArgs(2, 3),
	Run: func(cmd *cobra.Command, args []string) {
		lane, err := parseLane(args[1])
		if err != nil {
			fatal("%v", err)
		}
		index := 0
		if len(args) == 3 {
			if index, err = strconv.Atoi(args[2]); err != nil {
				fatal("invalid index %q", args[2])
			}
		}

		a, page := openBoard(cmd)
		defer a.Stop()

		if !page.Move(cmd.Context(), args[0], lane, index) {
			fmt.Printf("%s Nothing to move\n", ui.RenderWarn("⚠"))
			printToasts(a)
			return
		}
		fmt.Printf("%s Moved %s to %s\n", ui.RenderPass("✓"), args[0], lane)
		fmt.Println(ui.Board(page.Lanes(), termWidth()))
		printToasts(a)
	},
}

var exportCmd = &cobra.Command{
	Use:     "export",
	GroupID: "board",
	Short:   "Export the filtered tasks",
	Long: `Write the filtered tasks to CSV (default taskboards_export.csv) or YAML.
A YAML export can be used as demo.seed_file.`,
	Run: func(cmd *cobra.Command, args []string) {
		out, _ := cmd.Flags().GetString("output")
		formatName, _ := cmd.Flags().GetString("format")

		format := export.FormatFor(out)
		if formatName != "" {
			var err error
			if format, err = export.ParseFormat(formatName); err != nil {
				fatal("%v", err)
			}
		}

		a, page := openBoard(cmd)
		defer a.Stop()

		path, err := page.Export(out, format)
		exitOnError(a, err)
		fmt.Printf("%s Exported %d tasks to %s\n", ui.RenderPass("✓"), len(page.Visible()), path)
		printToasts(a)
	},
}

func init() {
	for _, cmd := range []*cobra.Command{boardCmd, moveCmd, exportCmd, calendarCmd} {
		addFilterFlags(cmd.Flags())
	}
	boardCmd.Flags().Bool("share", false, "Print a shareable link for the current filters")
	exportCmd.Flags().StringP("output", "o", "", "Output file (default "+export.DefaultFilename+")")
	exportCmd.Flags().String("format", "", "csv or yaml (default: from the file extension)")
	rootCmd.AddCommand(boardCmd, moveCmd, exportCmd)
}

func addFilterFlags(fs *pflag.FlagSet) {
	fs.StringP("query", "q", "", "Title contains (case-insensitive)")
	fs.String("assignee", "", "Exact assignee name")
	fs.String("priority", "", "Low, Medium, High or Urgent")
	fs.String("tag", "", "Tag the task must carry")
	fs.String("url", "", "Board URL whose query string holds the filters")
}

// filterHistory starts from --url and applies any explicit filter flags on top.
func filterHistory(cmd *cobra.Command, a *app.App) filter.History {
	h, err := filter.NewMemoryHistory(boardURL(cmd, a))
	if err != nil {
		fatal("%v", err)
	}
	state := filter.FromValues(h.URL().Query())
	flags := cmd.Flags()
	if flags.Changed("query") {
		state.Query, _ = flags.GetString("query")
	}
	if flags.Changed("assignee") {
		state.Assignee, _ = flags.GetString("assignee")
	}
	if flags.Changed("priority") {
		p, _ := flags.GetString("priority")
		state.Priority = types.Priority(p)
	}
	if flags.Changed("tag") {
		state.Tag, _ = flags.GetString("tag")
	}
	filter.Bind(h).Set(state)
	return h
}

func boardURL(cmd *cobra.Command, a *app.App) string {
	if raw, _ := cmd.Flags().GetString("url"); raw != "" {
		return raw
	}
	return strings.TrimRight(a.Config.Origin, "/") + "/boards"
}

// openBoard builds the app, probes the backend once and loads the board.
func openBoard(cmd *cobra.Command) (*app.App, *pages.BoardPage) {
	ctx := cmd.Context()
	a := openApp(ctx)
	page, err := a.BoardPage(filterHistory(cmd, a))
	exitOnError(a, err)
	exitOnError(a, load(ctx, a, page))
	return a, page
}

type loader interface {
	Load(ctx context.Context) error
}

func load(ctx context.Context, a *app.App, page loader) error {
	a.Check(ctx)
	return page.Load(ctx)
}

func printBanner(a *app.App) {
	if banner := ui.Banner(a.Coordinator.State()); banner != "" {
		fmt.Println(banner)
	}
}

func parseLane(s string) (types.Status, error) {
	for _, lane := range types.Lanes {
		if strings.EqualFold(string(lane), strings.TrimSpace(s)) {
			return lane, nil
		}
	}
	return "", fmt.Errorf("unknown lane %q", s)
}
