// Package session implements the session authority: the single owner of the
// CLI's authentication state. It decides whether the caller is authenticated,
// checks credentials (locally or against the backend), persists and restores
// the bearer token, and derives the Authorization header for outgoing requests.
//
// State changes only through Restore, Login and Logout.
package session

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/templeadmin/templeadmin/internal/cli/store"
	"github.com/templeadmin/templeadmin/internal/config"
)

const (
	MessageLoginSuccessful    = "Login successful"
	MessageInvalidCredentials = "Invalid credentials"

	// RoleAdmin is the only role the backend grants
	RoleAdmin = "admin"

	// RestoredUsername is the placeholder identity of a session restored from
	// storage. The real username is not persisted.
	RestoredUsername = "Authenticated"
)

// Identity describes the authenticated user
type Identity struct {
	Username    string
	DisplayName string
	Role        string
}

// State is a snapshot of the session
type State struct {
	Identity      *Identity
	Authenticated bool
	Loading       bool
	Token         string
}

// Result is the outcome of a login attempt. Login never returns an error;
// every failure is reported here.
type Result struct {
	Success bool
	Message string
}

// HTTPDoer is the subset of *http.Client used for the login call
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// LoginRequest is the body posted to the login endpoint
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the success body of the login endpoint. All fields are optional.
type LoginResponse struct {
	Token string `json:"token"`
	// ExpiresIn is the token lifetime in milliseconds from now
	ExpiresIn float64 `json:"expiresIn"`
	Username  string  `json:"username"`
	Name      string  `json:"name"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// Authority owns the session state
type Authority struct {
	cfg    *config.Config
	store  store.Store
	keys   store.RecordKeys
	doer   HTTPDoer
	now    func() time.Time
	logger zerolog.Logger

	mu       sync.RWMutex
	identity *Identity
	token    string
	inflight int
}

// Option configures an Authority
type Option func(*Authority)

// WithHTTPClient sets the client used for the login call
func WithHTTPClient(doer HTTPDoer) Option {
	return func(a *Authority) {
		if doer != nil {
			a.doer = doer
		}
	}
}

// WithClock overrides the time source used for expiry
func WithClock(now func() time.Time) Option {
	return func(a *Authority) {
		if now != nil {
			a.now = now
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(a *Authority) {
		a.logger = logger
	}
}

// New creates an Authority with an empty session. Call Restore to reconcile it
// with the persistent store.
func New(cfg *config.Config, s store.Store, opts ...Option) *Authority {
	a := &Authority{
		cfg:   cfg,
		store: s,
		keys: store.RecordKeys{
			Token:  cfg.Auth.TokenStorageKey,
			Expiry: cfg.Auth.TokenExpiryStorageKey,
		},
		doer:   &http.Client{Timeout: cfg.Backend.Timeout},
		now:    time.Now,
		logger: zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(a)
	}

	a.logger = a.logger.With().Str("component", "session").Logger()
	return a
}

// Restore reconciles the in-memory session with the persisted token record.
// It only acts in bearer-token mode. A missing, unreadable or corrupt record
// leaves the session empty; Restore never fails.
func (a *Authority) Restore() {
	if !a.cfg.Auth.UseBearerToken {
		return
	}

	rec, err := store.LoadRecord(a.store, a.keys)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			a.logger.Debug().Msg("No persisted session")
		} else {
			a.logger.Warn().Err(err).Msg("Ignoring unreadable persisted session")
		}
		return
	}

	a.mu.Lock()
	a.token = rec.Token
	a.identity = &Identity{Username: RestoredUsername, Role: RoleAdmin}
	a.mu.Unlock()

	a.logger.Debug().Bool("has_expiry", rec.HasExpiry()).Msg("Restored persisted session")
}

// Login authenticates the given credentials according to the configured mode.
func (a *Authority) Login(ctx context.Context, username, password string) Result {
	if a.cfg.AuthMode() == config.AuthModeLocal {
		return a.loginLocal(username, password)
	}

	a.beginLoading()
	defer a.endLoading()

	return a.loginRemote(ctx, username, password)
}

// loginLocal compares the credentials with the configured default pair
func (a *Authority) loginLocal(username, password string) Result {
	if username != a.cfg.Auth.DefaultUsername || password != a.cfg.Auth.DefaultPassword {
		a.logger.Info().Str("username", username).Msg("Local login rejected")
		return Result{Success: false, Message: MessageInvalidCredentials}
	}

	displayName, _, _ := strings.Cut(username, "@")
	if displayName == "" {
		displayName = RoleAdmin
	}

	a.mu.Lock()
	a.identity = &Identity{Username: username, DisplayName: displayName, Role: RoleAdmin}
	a.mu.Unlock()

	a.logger.Info().Str("username", username).Msg("Local login succeeded")
	return Result{Success: true, Message: MessageLoginSuccessful}
}

// loginRemote posts the credentials to the backend login endpoint
func (a *Authority) loginRemote(ctx context.Context, username, password string) Result {
	loginURL := a.cfg.LoginURL()

	jsonData, err := json.Marshal(LoginRequest{Username: username, Password: password})
	if err != nil {
		return failure(fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, loginURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return failure(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.doer.Do(req)
	if err != nil {
		a.logger.Error().Err(err).Str("url", loginURL).Msg("Login request failed")
		return failure(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message := MessageInvalidCredentials
		var body errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Message != "" {
			message = body.Message
		}
		a.logger.Info().Int("status", resp.StatusCode).Str("username", username).Msg("Login rejected by backend")
		return Result{Success: false, Message: message}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return failure(fmt.Errorf("failed to read response: %w", err))
	}

	var loginResp LoginResponse
	if err := json.Unmarshal(data, &loginResp); err != nil {
		a.logger.Error().Err(err).Msg("Failed to decode login response")
		return failure(fmt.Errorf("failed to decode response: %w", err))
	}

	var token string
	if a.cfg.Auth.UseBearerToken && loginResp.Token != "" {
		rec := store.TokenRecord{Token: loginResp.Token}
		// A negative lifetime still records an expiry, already in the past
		if loginResp.ExpiresIn != 0 {
			rec.ExpiresAt = max(a.now().UnixMilli()+int64(loginResp.ExpiresIn), 1)
		}
		if err := store.SaveRecord(a.store, a.keys, rec); err != nil {
			a.logger.Error().Err(err).Msg("Failed to persist session")
			return failure(err)
		}
		token = loginResp.Token
	}

	identity := &Identity{
		Username:    firstNonEmpty(loginResp.Username, username),
		DisplayName: firstNonEmpty(loginResp.Name, username),
		Role:        RoleAdmin,
	}

	a.mu.Lock()
	if token != "" {
		a.token = token
	}
	a.identity = identity
	a.mu.Unlock()

	a.logger.Info().Str("username", identity.Username).Bool("bearer", token != "").Msg("Login succeeded")
	return Result{Success: true, Message: MessageLoginSuccessful}
}

// Logout clears the persisted record and the in-memory session. It is safe to
// call when no session exists.
func (a *Authority) Logout() {
	if err := store.ClearRecord(a.store, a.keys); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to clear persisted session")
	}

	a.mu.Lock()
	a.token = ""
	a.identity = nil
	a.mu.Unlock()

	a.logger.Debug().Msg("Logged out")
}

// AuthHeader returns the Authorization header for the current session. It has
// no side effects; a fresh header is returned on every call.
//
// Outside bearer mode with basic auth configured, the configured default
// credentials are sent, not those of the logged-in user.
func (a *Authority) AuthHeader() http.Header {
	h := make(http.Header)

	a.mu.RLock()
	token := a.token
	a.mu.RUnlock()

	switch {
	case a.cfg.Auth.UseBearerToken && token != "":
		h.Set("Authorization", "Bearer "+token)
	case a.cfg.Auth.Type == config.AuthTypeBasic:
		credentials := base64.StdEncoding.EncodeToString([]byte(a.cfg.Auth.DefaultUsername + ":" + a.cfg.Auth.DefaultPassword))
		h.Set("Authorization", "Basic "+credentials)
	}

	return h
}

// IsTokenValid reports whether the session token is still usable. Outside
// bearer mode validity is not tracked and it always returns true. The result is
// advisory: an expired session is not evicted.
func (a *Authority) IsTokenValid() bool {
	if !a.cfg.Auth.UseBearerToken {
		return true
	}

	rec, err := store.LoadRecord(a.store, a.keys)
	if err != nil || !rec.HasExpiry() {
		a.mu.RLock()
		defer a.mu.RUnlock()
		return a.token != ""
	}

	return a.now().UnixMilli() < rec.ExpiresAt
}

// Expiry returns the persisted token expiry, if any
func (a *Authority) Expiry() (time.Time, bool) {
	if !a.cfg.Auth.UseBearerToken {
		return time.Time{}, false
	}
	rec, err := store.LoadRecord(a.store, a.keys)
	if err != nil || !rec.HasExpiry() {
		return time.Time{}, false
	}
	return rec.Expiry(), true
}

// State returns a snapshot of the session
func (a *Authority) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()

	s := State{
		Authenticated: a.identity != nil,
		Loading:       a.inflight > 0,
		Token:         a.token,
	}
	if a.identity != nil {
		id := *a.identity
		s.Identity = &id
	}
	return s
}

// IsAuthenticated reports whether a user is logged in
func (a *Authority) IsAuthenticated() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.identity != nil
}

// Loading reports whether a remote login is in flight
func (a *Authority) Loading() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.inflight > 0
}

// Config returns the configuration the authority was built with
func (a *Authority) Config() *config.Config {
	return a.cfg
}

func (a *Authority) beginLoading() {
	a.mu.Lock()
	a.inflight++
	a.mu.Unlock()
}

func (a *Authority) endLoading() {
	a.mu.Lock()
	a.inflight--
	a.mu.Unlock()
}

func failure(err error) Result {
	return Result{Success: false, Message: err.Error()}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
