package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskboards/taskboards/internal/demo"
	"github.com/taskboards/taskboards/internal/devserver"
	"github.com/taskboards/taskboards/internal/logging"
	"github.com/taskboards/taskboards/internal/ui"
)

var devserverCmd = &cobra.Command{
	Use:     "devserver",
	GroupID: "advanced",
	Short:   "Run a stub backend for local development",
	Long: `Run a stub TaskBoards backend with the REST routes and the presence
WebSocket the client uses.

Without --db every data route answers 503, which puts clients into demo mode.

Example usage:
  tb devserver                  # listen on :3001 without a database
  tb devserver --db --seed board.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		addr, _ := cmd.Flags().GetString("addr")
		db, _ := cmd.Flags().GetBool("db")
		origins, _ := cmd.Flags().GetStringSlice("origin")
		seedFile, _ := cmd.Flags().GetString("seed")
		level, _ := cmd.Flags().GetString("log-level")

		tasks := demo.SeedTasks()
		if seedFile != "" {
			var err error
			if tasks, err = demo.LoadSeed(seedFile); err != nil {
				fatal("%v", err)
			}
		}

		logger, closer := logging.New(logging.Options{Level: level})
		defer closer.Close()

		server := devserver.NewServer(&devserver.Config{
			Addr:         addr,
			DBConfigured: db,
			Origins:      origins,
			Tasks:        tasks,
			Logger:       logger,
		})
		if err := server.Start(); err != nil {
			fatal("failed to start dev server: %v", err)
		}

		fmt.Printf("%s Dev server listening on %s\n", ui.RenderAccent("🚀"), server.Addr())
		fmt.Printf("   Database configured: %v\n", db)
		fmt.Printf("   WebSocket endpoint:  ws://%s/ws\n", server.Addr())
		fmt.Println("\nPress Ctrl+C to stop...")

		<-cmd.Context().Done()

		fmt.Println("\nShutting down dev server...")
		if err := server.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	devserverCmd.Flags().String("addr", ":3001", "Address to listen on")
	devserverCmd.Flags().Bool("db", false, "Pretend a database is configured")
	devserverCmd.Flags().StringSlice("origin", nil, "Allowed origins (default: any)")
	devserverCmd.Flags().String("seed", "", "YAML or TOML seed file for the task list")
	devserverCmd.Flags().String("log-level", "info", "Log level")
	rootCmd.AddCommand(devserverCmd)
}
