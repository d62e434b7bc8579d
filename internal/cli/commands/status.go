package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/templeadmin/templeadmin/internal/cli/session"
)

// NewStatusCmd creates the status command
func NewStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration and session state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(app, time.Now())
		},
	}
}

func runStatus(app *App, now time.Time) error {
	cfg := app.Config
	st := app.Session.State()

	w := tabwriter.NewWriter(app.Out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Environment:\t%s\n", cfg.Env)
	if cfg.Description != "" {
		fmt.Fprintf(w, "Description:\t%s\n", cfg.Description)
	}
	fmt.Fprintf(w, "Auth mode:\t%s (%s)\n", cfg.AuthMode(), cfg.Auth.Type)
	fmt.Fprintf(w, "Bearer tokens:\t%t\n", cfg.Auth.UseBearerToken)
	fmt.Fprintf(w, "Backend:\t%s\n", cfg.Backend.URL)
	fmt.Fprintf(w, "API:\t%s\n", cfg.Backend.APIBaseURL)
	fmt.Fprintf(w, "Store:\t%s\n", cfg.Store.Backend)

	if st.Authenticated {
		fmt.Fprintf(w, "Session:\tauthenticated as %s (%s)\n", st.Identity.Username, st.Identity.Role)
	} else {
		fmt.Fprintf(w, "Session:\tnot authenticated\n")
	}

	if cfg.Auth.UseBearerToken {
		fmt.Fprintf(w, "Token valid:\t%t\n", app.Session.IsTokenValid())
		if expiry, ok := app.Session.Expiry(); ok {
			fmt.Fprintf(w, "Expires:\t%s (%s)\n", expiry.Format(time.RFC3339), describeRemaining(expiry.Sub(now)))
		}
		if st.Token != "" {
			if claims, ok := session.PeekClaims(st.Token); ok {
				if claims.Subject != "" {
					fmt.Fprintf(w, "Token subject:\t%s\n", claims.Subject)
				}
				if !claims.ExpiresAt.IsZero() {
					fmt.Fprintf(w, "Token exp claim:\t%s\n", claims.ExpiresAt.Format(time.RFC3339))
				}
			}
		}
	}

	return w.Flush()
}

func describeRemaining(d time.Duration) string {
	if d <= 0 {
		return "expired"
	}
	return "in " + d.Truncate(time.Second).String()
}
