package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewLogoutCmd creates the logout command
func NewLogoutCmd(app *App) *cobra.Command {
	var notifyBackend bool

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "End the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogout(cmd.Context(), app, notifyBackend)
		},
	}

	cmd.Flags().BoolVar(&notifyBackend, "remote", false, "Also call the backend logout endpoint")

	return cmd
}

func runLogout(ctx context.Context, app *App, notifyBackend bool) error {
	wasAuthenticated := app.Session.IsAuthenticated()

	if notifyBackend && wasAuthenticated {
		// Best effort: the local session is cleared regardless
		if _, err := app.Client.Auth().Logout(ctx); err != nil {
			app.Logger.Warn().Err(err).Msg("Backend logout failed")
		}
	}

	app.Session.Logout()

	if wasAuthenticated {
		fmt.Fprintln(app.Out, "✓ Logged out")
	} else {
		fmt.Fprintln(app.Out, "Not logged in.")
	}

	return nil
}
