package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/templeadmin/templeadmin/internal/cli/commands"
)

var version = "dev" // Will be set during build

// NewRootCmd builds the command tree around app. Configuration is loaded and
// the session restored before any command that talks to the backend runs.
// The caller closes app once the command returns.
func NewRootCmd(app *commands.App) *cobra.Command {
	var configPath, logLevel string

	rootCmd := &cobra.Command{
		Use:   "templeadmin",
		Short: "templeadmin - Temple management from the command line",
		Long: `templeadmin manages events, services, staff, timings, images and donors
on the temple management backend.

Run 'templeadmin login' first; the session is kept between invocations.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !needsApp(cmd) {
				return nil
			}
			return app.Init(configPath, logLevel)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to templeadmin.yaml (default: search from current directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "templeadmin version %s\n", version)
		},
	})

	rootCmd.AddCommand(commands.NewInitCmd())
	rootCmd.AddCommand(commands.NewLoginCmd(app))
	rootCmd.AddCommand(commands.NewLogoutCmd(app))
	rootCmd.AddCommand(commands.NewStatusCmd(app))
	rootCmd.AddCommand(commands.NewMeCmd(app))
	rootCmd.AddCommand(commands.NewEventsCmd(app))
	rootCmd.AddCommand(commands.NewServicesCmd(app))
	rootCmd.AddCommand(commands.NewStaffCmd(app))
	rootCmd.AddCommand(commands.NewTimingsCmd(app))
	rootCmd.AddCommand(commands.NewImagesCmd(app))
	rootCmd.AddCommand(commands.NewDonorsCmd(app))

	return rootCmd
}

// needsApp reports whether cmd uses configuration and the session
func needsApp(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "version", "init", "help", "completion":
		return false
	}
	return cmd.Runnable()
}

// Execute runs the root command
func Execute() error {
	if err := run(&commands.App{}, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// run executes one invocation. The session store is closed whether or not the
// command succeeded; cobra skips post-run hooks after an error.
func run(app *commands.App, args []string) (err error) {
	defer func() {
		if cerr := app.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close session store: %w", cerr)
		}
	}()

	rootCmd := NewRootCmd(app)
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}
