package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/rs/zerolog"

	"github.com/templeadmin/templeadmin/internal/cli/client"
	"github.com/templeadmin/templeadmin/internal/cli/session"
	"github.com/templeadmin/templeadmin/internal/cli/store"
	"github.com/templeadmin/templeadmin/internal/config"
	"github.com/templeadmin/templeadmin/internal/logger"
)

// App holds the per-invocation wiring shared by all commands
type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Store   store.Store
	Session *session.Authority
	Client  *client.Client

	Out    io.Writer
	ErrOut io.Writer
}

// Init loads configuration and builds the app. The session is restored from
// the persistent store before any command runs.
func (a *App) Init(configPath, logLevel string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	log := logger.Init(cfg.Logging.Level, cfg.Logging.Format)

	s, err := store.Open(cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}

	a.Wire(cfg, s, log)
	return nil
}

// Wire builds the session authority and API client over an already opened store
func (a *App) Wire(cfg *config.Config, s store.Store, log zerolog.Logger) {
	a.Config = cfg
	a.Logger = log
	a.Store = s

	httpClient := &http.Client{Timeout: cfg.Backend.Timeout}

	a.Session = session.New(cfg, s,
		session.WithHTTPClient(httpClient),
		session.WithLogger(log),
	)
	a.Session.Restore()

	a.Client = client.New(cfg.Backend.APIBaseURL,
		client.WithHTTPClient(httpClient),
		client.WithHeaderProvider(a.Session),
		client.WithLogger(log.With().Str("component", "client").Logger()),
	)

	if a.Out == nil {
		a.Out = os.Stdout
	}
	if a.ErrOut == nil {
		a.ErrOut = os.Stderr
	}
}

// Close releases the session store. It is safe to call more than once.
func (a *App) Close() error {
	if a.Store == nil {
		return nil
	}
	err := a.Store.Close()
	a.Store = nil
	return err
}

// checkSession acts on an expired bearer session: it is logged out and the
// command fails. Without a session, requests go out unauthenticated.
func (a *App) checkSession() error {
	if !a.Config.Auth.UseBearerToken || !a.Session.IsAuthenticated() {
		return nil
	}

	if !a.Session.IsTokenValid() {
		a.Session.Logout()
		return fmt.Errorf("session expired. Please run 'templeadmin login' again")
	}

	return nil
}

// printJSON writes a response body indented; non-JSON bodies are written as-is
func printJSON(w io.Writer, body []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "  "); err != nil {
		_, err := w.Write(body)
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}
