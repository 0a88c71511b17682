package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskboards/taskboards/internal/app"
	"github.com/taskboards/taskboards/internal/realtime"
	"github.com/taskboards/taskboards/internal/ui"
)

var presenceCmd = &cobra.Command{
	Use:     "presence",
	GroupID: "board",
	Short:   "Show who is online",
	Long: `Connect to the realtime channel for a while and show the online users and
their cursors. Requires tb login.`,
	Run: func(cmd *cobra.Command, args []string) {
		wait, _ := cmd.Flags().GetDuration("wait")
		cursor, _ := cmd.Flags().GetString("cursor")

		ctx := cmd.Context()
		a := openApp(ctx)
		defer a.Stop()
		if a.Token() == "" {
			exitOnError(a, app.ErrNotLoggedIn)
		}

		ch, err := a.Realtime(ctx)
		exitOnError(a, err)

		opened := make(chan struct{}, 1)
		ch.OnStateChange(func(s realtime.ConnState) {
			if s == realtime.StateOpen {
				select {
				case opened <- struct{}{}:
				default:
				}
			}
		})
		if ch.State() == realtime.StateOpen {
			select {
			case opened <- struct{}{}:
			default:
			}
		}

		timer := time.NewTimer(wait)
		defer timer.Stop()
		if cursor != "" {
			x, y, err := parseCursor(cursor)
			if err != nil {
				fatal("%v", err)
			}
			select {
			case <-opened:
				exitOnError(a, ch.SendCursor(ctx, x, y))
			case <-timer.C:
			case <-ctx.Done():
			}
		}
		select {
		case <-timer.C:
		case <-ctx.Done():
		}
		fmt.Println(ui.Presence(ch.Presence(), ch.State()))
		printToasts(a)
	},
}

func init() {
	presenceCmd.Flags().Duration("wait", 3*time.Second, "How long to listen before printing")
	presenceCmd.Flags().String("cursor", "", "Publish a cursor position, as x,y")
	rootCmd.AddCommand(presenceCmd)
}

func parseCursor(s string) (float64, float64, error) {
	xs, ys, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, fmt.Errorf("cursor must be x,y")
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid cursor x %q", xs)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid cursor y %q", ys)
	}
	return x, y, nil
}
