package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable Load reads so the host environment cannot leak in
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"TEMPLEADMIN_ENV", "TEMPLEADMIN_DESCRIPTION", "TEMPLEADMIN_AUTH_TYPE",
		"TEMPLEADMIN_TOKEN_KEY", "TEMPLEADMIN_TOKEN_EXPIRY_KEY",
		"TEMPLEADMIN_DEFAULT_USERNAME", "TEMPLEADMIN_DEFAULT_PASSWORD",
		"TEMPLEADMIN_BACKEND_URL", "TEMPLEADMIN_LOGIN_PATH", "TEMPLEADMIN_API_URL",
		"TEMPLEADMIN_STORE", "TEMPLEADMIN_STORE_PATH", "LOG_LEVEL", "LOG_FORMAT",
		"TEMPLEADMIN_REQUIRE_AUTH", "TEMPLEADMIN_USE_JWT", "TEMPLEADMIN_HTTP_TIMEOUT",
	} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestProfile(t *testing.T) {
	tests := []struct {
		name     string
		mode     AuthMode
		bearer   bool
		backend  string
		logLevel string
	}{
		{"local", AuthModeLocal, false, "http://localhost:8080", "info"},
		{"development", AuthModeRemote, true, "http://localhost:8080", "info"},
		{"production", AuthModeRemote, true, "https://api.temple.org", "warn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Profile(tt.name)
			require.NoError(t, err)

			assert.Equal(t, tt.name, cfg.Env)
			assert.Equal(t, tt.mode, cfg.AuthMode())
			assert.Equal(t, tt.bearer, cfg.Auth.UseBearerToken)
			assert.Equal(t, tt.backend, cfg.Backend.URL)
			assert.Equal(t, tt.logLevel, cfg.Logging.Level)
			assert.Equal(t, "token", cfg.Auth.TokenStorageKey)
			assert.Equal(t, "tokenExpiry", cfg.Auth.TokenExpiryStorageKey)
			assert.Equal(t, 30*time.Second, cfg.Backend.Timeout)
		})
	}

	_, err := Profile("staging")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown environment")
}

func TestProfile_ReturnsCopy(t *testing.T) {
	a, err := Profile("local")
	require.NoError(t, err)
	a.Backend.URL = "http://changed"

	b, err := Profile("local")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", b.Backend.URL)
}

func TestAuthMode(t *testing.T) {
	tests := []struct {
		requireAuth bool
		authType    string
		want        AuthMode
	}{
		{false, AuthTypeBasic, AuthModeLocal},
		{true, AuthTypeBasic, AuthModeRemote},
		{false, AuthTypeJWT, AuthModeRemote},
		{true, AuthTypeJWT, AuthModeRemote},
	}

	for _, tt := range tests {
		cfg := &Config{Auth: AuthConfig{RequireAuth: tt.requireAuth, Type: tt.authType}}
		assert.Equal(t, tt.want, cfg.AuthMode(), "requireAuth=%t type=%s", tt.requireAuth, tt.authType)
	}
}

func TestLoginURL(t *testing.T) {
	cfg, err := Profile("production")
	require.NoError(t, err)
	assert.Equal(t, "https://api.temple.org/api/auth/login", cfg.LoginURL())
}

func TestLoad_FileOverridesProfile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `env: development
backend:
  url: http://temple.test:9000
  apiUrl: http://temple.test:9000/api
  timeout: 5s
store:
  backend: memory
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "http://temple.test:9000", cfg.Backend.URL)
	assert.Equal(t, "/api/auth/login", cfg.Backend.LoginPath)
	assert.Equal(t, 5*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, StoreMemory, cfg.Store.Backend)
	// untouched keys keep the profile values
	assert.True(t, cfg.Auth.RequireAuth)
	assert.Equal(t, AuthTypeJWT, cfg.Auth.Type)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `env: development
store:
  backend: memory
`)

	t.Setenv("TEMPLEADMIN_BACKEND_URL", "http://override.test")
	t.Setenv("TEMPLEADMIN_USE_JWT", "false")
	t.Setenv("TEMPLEADMIN_HTTP_TIMEOUT", "2s")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://override.test", cfg.Backend.URL)
	assert.False(t, cfg.Auth.UseBearerToken)
	assert.Equal(t, 2*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_EnvSelectsProfile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "env: local\nstore:\n  backend: memory\n")
	t.Setenv("TEMPLEADMIN_ENV", "production")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, AuthModeRemote, cfg.AuthMode())
}

func TestLoad_DefaultStorePath(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)
	path := writeConfig(t, "env: development\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, StoreFile, cfg.Store.Backend)
	assert.Equal(t, filepath.Join(home, ".config", "templeadmin", "session.json"), cfg.Store.Path)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "malformed yaml",
			content: "env: [development\n",
			wantErr: "failed to parse config file",
		},
		{
			name:    "unknown environment",
			content: "env: staging\n",
			wantErr: "unknown environment",
		},
		{
			name:    "bad auth type",
			content: "env: development\nauth:\n  type: oauth\nstore:\n  backend: memory\n",
			wantErr: "Auth.Type",
		},
		{
			name:    "same storage keys",
			content: "env: development\nauth:\n  tokenStorageKey: t\n  tokenExpiryKey: t\nstore:\n  backend: memory\n",
			wantErr: "TokenExpiryStorageKey",
		},
		{
			name:    "bad backend url",
			content: "env: development\nbackend:\n  url: not a url\nstore:\n  backend: memory\n",
			wantErr: "Backend.URL",
		},
		{
			name:    "unknown store",
			content: "env: development\nstore:\n  backend: redis\n",
			wantErr: "Store.Backend",
		},
		{
			name:    "invalid bool env",
			content: "env: development\nstore:\n  backend: memory\n",
			env:     map[string]string{"TEMPLEADMIN_USE_JWT": "maybe"},
			wantErr: "invalid TEMPLEADMIN_USE_JWT",
		},
		{
			name:    "invalid timeout env",
			content: "env: development\nstore:\n  backend: memory\n",
			env:     map[string]string{"TEMPLEADMIN_HTTP_TIMEOUT": "soon"},
			wantErr: "invalid TEMPLEADMIN_HTTP_TIMEOUT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := writeConfig(t, tt.content)

			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestValidate_LocalModeNeedsUsername(t *testing.T) {
	cfg, err := Profile("local")
	require.NoError(t, err)
	cfg.Store.Backend = StoreMemory
	cfg.Auth.DefaultUsername = ""

	err = Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "defaultUsername")
}

func TestValidate_FileStoreNeedsPath(t *testing.T) {
	cfg, err := Profile("development")
	require.NoError(t, err)
	cfg.Store.Path = ""

	err = Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires store.path")
}

func TestFindConfigFile(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ConfigFileName), []byte("env: local\n"), 0644))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(nested))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	found, err := FindConfigFile()
	require.NoError(t, err)

	// Resolve symlinks (macOS /var -> /private/var)
	want, _ := filepath.EvalSymlinks(filepath.Join(root, ConfigFileName))
	got, _ := filepath.EvalSymlinks(found)
	assert.Equal(t, want, got)
}
