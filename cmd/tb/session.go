package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/taskboards/taskboards/internal/ui"
)

var loginCmd = &cobra.Command{
	Use:     "login",
	GroupID: "session",
	Short:   "Sign in and cache the session",
	Long: `Sign in to TaskBoards. Without --email and --password an interactive
form is shown when stdin is a terminal.`,
	Run: func(cmd *cobra.Command, args []string) {
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")

		if (email == "" || password == "") && ui.IsTerminal(os.Stdin) {
			form := huh.NewForm(huh.NewGroup(
				huh.NewInput().Title("Email").Value(&email),
				huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(&password),
			))
			if err := form.Run(); err != nil {
				fatal("login cancelled: %v", err)
			}
		}

		a := openApp(cmd.Context())
		defer a.Stop()
		user, err := a.Login(cmd.Context(), email, password)
		exitOnError(a, err)
		fmt.Printf("%s Signed in as %s <%s>\n", ui.RenderPass("✓"), user.Name, user.Email)
	},
}

var logoutCmd = &cobra.Command{
	Use:     "logout",
	GroupID: "session",
	Short:   "Forget the cached session",
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp(cmd.Context())
		defer a.Stop()
		exitOnError(a, a.Logout(cmd.Context()))
		fmt.Printf("%s Signed out\n", ui.RenderPass("✓"))
	},
}

var whoamiCmd = &cobra.Command{
	Use:     "whoami",
	GroupID: "session",
	Short:   "Show the signed-in user",
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp(cmd.Context())
		defer a.Stop()
		user, ok := a.User()
		if !ok {
			fmt.Printf("%s Not logged in\n", ui.RenderWarn("⚠"))
			return
		}
		fmt.Printf("%s <%s> (id %s)\n", user.Name, user.Email, user.ID)
	},
}

func init() {
	loginCmd.Flags().String("email", "", "Account email")
	loginCmd.Flags().String("password", "", "Account password")
	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd)
}
