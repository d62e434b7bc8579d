package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/templeadmin/templeadmin/internal/config"
)

// credentialPrompter asks the user for missing credentials
type credentialPrompter interface {
	Username() (string, error)
	Password() (string, error)
}

// terminalPrompter prompts on the controlling terminal
type terminalPrompter struct{}

func (terminalPrompter) Username() (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("username is required in non-interactive mode (use --username flag or TEMPLEADMIN_USERNAME env var)")
	}

	prompt := promptui.Prompt{Label: "Username"}
	username, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("login cancelled: %w", err)
	}
	return username, nil
}

func (terminalPrompter) Password() (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("password is required in non-interactive mode (use --password flag or TEMPLEADMIN_PASSWORD env var)")
	}

	fmt.Fprint(os.Stderr, "Password: ")
	bytePassword, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr) // New line after password input
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(bytePassword), nil
}

// NewLoginCmd creates the login command
func NewLoginCmd(app *App) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with the temple backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd.Context(), app, username, password, terminalPrompter{})
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Username (or set TEMPLEADMIN_USERNAME)")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set TEMPLEADMIN_PASSWORD, will prompt if not provided)")

	return cmd
}

func runLogin(ctx context.Context, app *App, username, password string, prompt credentialPrompter) error {
	// Check for environment variables (useful for CI/CD)
	if username == "" {
		username = os.Getenv("TEMPLEADMIN_USERNAME")
	}
	if password == "" {
		password = os.Getenv("TEMPLEADMIN_PASSWORD")
	}

	var err error
	if username == "" {
		if username, err = prompt.Username(); err != nil {
			return err
		}
	}
	if password == "" {
		if password, err = prompt.Password(); err != nil {
			return err
		}
	}

	if app.Config.AuthMode() == config.AuthModeRemote {
		fmt.Fprintf(app.Out, "Logging in to %s...\n", app.Config.Backend.URL)
	}

	res := app.Session.Login(ctx, username, password)
	if !res.Success {
		return fmt.Errorf("login failed: %s", res.Message)
	}

	st := app.Session.State()
	fmt.Fprintln(app.Out, "✓ Login successful!")
	fmt.Fprintf(app.Out, "  User: %s (%s)\n", st.Identity.DisplayName, st.Identity.Username)
	fmt.Fprintf(app.Out, "  Role: %s\n", st.Identity.Role)

	switch {
	case st.Token != "":
		if expiry, ok := app.Session.Expiry(); ok {
			fmt.Fprintf(app.Out, "  Session expires: %s\n", expiry.Format("2006-01-02 15:04:05 MST"))
		}
	case app.Config.AuthMode() == config.AuthModeLocal:
		fmt.Fprintln(app.Out, "  Local mode: credentials verified, nothing was stored.")
	}

	return nil
}
