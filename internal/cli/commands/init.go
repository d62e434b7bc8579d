package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/templeadmin/templeadmin/internal/config"
)

// NewInitCmd creates the init command. It runs without loading configuration.
func NewInitCmd() *cobra.Command {
	var backendURL string
	var force bool

	cmd := &cobra.Command{
		Use:   "init <environment>",
		Short: "Write a templeadmin.yaml for an environment (local, development, production)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			currentDir, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get current directory: %w", err)
			}
			return runInit(cmd.OutOrStdout(), currentDir, args[0], backendURL, force)
		},
	}

	cmd.Flags().StringVar(&backendURL, "backend", "", "Backend base URL, e.g. https://api.temple.org")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing templeadmin.yaml")

	return cmd
}

func runInit(out io.Writer, dir, env, backendURL string, force bool) error {
	configPath := filepath.Join(dir, config.ConfigFileName)

	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", config.ConfigFileName)
	}

	cfg, err := config.Profile(env)
	if err != nil {
		return err
	}

	if backendURL != "" {
		cfg.Backend.URL = backendURL
		cfg.Backend.APIBaseURL = backendURL + "/api"
	}

	// Credentials stay out of the file; set them through the environment
	cfg.Auth.DefaultPassword = ""

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(out, "✓ Created %s for the %s environment\n", config.ConfigFileName, cfg.Env)
	if cfg.AuthMode() == config.AuthModeLocal {
		fmt.Fprintln(out, "  Set TEMPLEADMIN_DEFAULT_PASSWORD for local logins.")
	} else {
		fmt.Fprintln(out, "\nNext step: templeadmin login")
	}

	return nil
}
