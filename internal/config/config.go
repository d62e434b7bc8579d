package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ConfigFileName = "templeadmin.yaml"
	configDirName  = "templeadmin"
)

// AuthMode selects how credentials are checked
type AuthMode string

const (
	AuthModeLocal  AuthMode = "local"  // Fixed credential pair compared on the client
	AuthModeRemote AuthMode = "remote" // Credentials posted to the backend login endpoint
)

// Auth types accepted in configuration
const (
	AuthTypeBasic = "basic"
	AuthTypeJWT   = "jwt"
)

// Store backends
const (
	StoreFile    = "file"
	StoreKeyring = "keyring"
	StoreBolt    = "bolt"
	StoreMemory  = "memory"
)

// Config holds all configuration for the CLI. It is read-only once loaded.
type Config struct {
	Env         string `yaml:"env" validate:"required"`
	Description string `yaml:"description"`

	Auth    AuthConfig    `yaml:"auth"`
	Backend BackendConfig `yaml:"backend"`
	Store   StoreConfig   `yaml:"store"`
	Logging LoggingConfig `yaml:"logging"`
}

// AuthConfig holds authentication settings
type AuthConfig struct {
	RequireAuth           bool   `yaml:"requireAuth"`
	Type                  string `yaml:"type" validate:"oneof=basic jwt"`
	UseBearerToken        bool   `yaml:"useJWT"`
	TokenStorageKey       string `yaml:"tokenStorageKey" validate:"required"`
	TokenExpiryStorageKey string `yaml:"tokenExpiryKey" validate:"required,nefield=TokenStorageKey"`
	DefaultUsername       string `yaml:"defaultUsername"`
	DefaultPassword       string `yaml:"defaultPassword"`
}

// BackendConfig holds the backend endpoints
type BackendConfig struct {
	URL        string        `yaml:"url" validate:"required,url"`
	LoginPath  string        `yaml:"loginPath" validate:"required,startswith=/"`
	APIBaseURL string        `yaml:"apiUrl" validate:"required,url"`
	Timeout    time.Duration `yaml:"timeout" validate:"gt=0"`
}

// StoreConfig selects the persistent session store
type StoreConfig struct {
	Backend string `yaml:"backend" validate:"oneof=file keyring bolt memory"`
	Path    string `yaml:"path"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format" validate:"omitempty,oneof=json console"`
}

// AuthMode derives the credential mode from the requireAuth and auth type flags.
func (c *Config) AuthMode() AuthMode {
	if !c.Auth.RequireAuth && c.Auth.Type == AuthTypeBasic {
		return AuthModeLocal
	}
	return AuthModeRemote
}

// LoginURL returns the absolute URL of the login endpoint
func (c *Config) LoginURL() string {
	return c.Backend.URL + c.Backend.LoginPath
}

// profiles are the built-in environment presets
var profiles = map[string]Config{
	"local": {
		Env:         "local",
		Description: "Local development with fixed admin credentials",
		Auth: AuthConfig{
			RequireAuth:     false,
			Type:            AuthTypeBasic,
			UseBearerToken:  false,
			DefaultUsername: "admin@temple.local",
			DefaultPassword: "admin123",
		},
		Backend: BackendConfig{
			URL:        "http://localhost:8080",
			APIBaseURL: "http://localhost:8080/api",
		},
	},
	"development": {
		Env:         "development",
		Description: "Development backend with token authentication",
		Auth: AuthConfig{
			RequireAuth:    true,
			Type:           AuthTypeJWT,
			UseBearerToken: true,
		},
		Backend: BackendConfig{
			URL:        "http://localhost:8080",
			APIBaseURL: "http://localhost:8080/api",
		},
	},
	"production": {
		Env:         "production",
		Description: "Production backend with token authentication",
		Auth: AuthConfig{
			RequireAuth:    true,
			Type:           AuthTypeJWT,
			UseBearerToken: true,
		},
		Backend: BackendConfig{
			URL:        "https://api.temple.org",
			APIBaseURL: "https://api.temple.org/api",
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "json",
		},
	},
}

// Profile returns a copy of the named built-in profile with shared defaults applied
func Profile(name string) (*Config, error) {
	p, ok := profiles[name]
	if !ok {
		return nil, fmt.Errorf("unknown environment '%s', must be one of: local, development, production", name)
	}
	cfg := p
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Auth.TokenStorageKey == "" {
		cfg.Auth.TokenStorageKey = "token"
	}
	if cfg.Auth.TokenExpiryStorageKey == "" {
		cfg.Auth.TokenExpiryStorageKey = "tokenExpiry"
	}
	if cfg.Backend.LoginPath == "" {
		cfg.Backend.LoginPath = "/api/auth/login"
	}
	if cfg.Backend.Timeout == 0 {
		cfg.Backend.Timeout = 30 * time.Second
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = StoreFile
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
}

// FindConfigFile searches for templeadmin.yaml in current directory and parent directories
func FindConfigFile() (string, error) {
	currentDir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}

	dir := currentDir
	for {
		configPath := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("%s not found in %s or any parent directory: %w", ConfigFileName, currentDir, os.ErrNotExist)
}

// Load resolves configuration from the selected profile, the YAML file, .env files and
// environment variables, in that order. An empty path searches for templeadmin.yaml; a
// missing file is not an error unless the path was given explicitly.
func Load(path string) (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	env := os.Getenv("TEMPLEADMIN_ENV")

	var fileCfg *Config
	if path == "" {
		found, err := FindConfigFile()
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		path = found
	}
	if path != "" {
		var err error
		fileCfg, err = readFile(path)
		if err != nil {
			return nil, err
		}
		if env == "" {
			env = fileCfg.Env
		}
	}

	if env == "" {
		env = "local"
	}

	cfg, err := Profile(env)
	if err != nil {
		return nil, err
	}

	if path != "" {
		// Re-decode over the profile so only keys present in the file override it
		if err := decodeFileInto(path, cfg); err != nil {
			return nil, err
		}
		cfg.Env = env
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	if cfg.Store.Path == "" {
		storePath, err := DefaultStorePath(cfg.Store.Backend)
		if err != nil {
			return nil, err
		}
		cfg.Store.Path = storePath
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func readFile(path string) (*Config, error) {
	var cfg Config
	if err := decodeFileInto(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decodeFileInto(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// applyEnv overrides configuration values from environment variables
func applyEnv(cfg *Config) error {
	envString("TEMPLEADMIN_DESCRIPTION", &cfg.Description)
	envString("TEMPLEADMIN_AUTH_TYPE", &cfg.Auth.Type)
	envString("TEMPLEADMIN_TOKEN_KEY", &cfg.Auth.TokenStorageKey)
	envString("TEMPLEADMIN_TOKEN_EXPIRY_KEY", &cfg.Auth.TokenExpiryStorageKey)
	envString("TEMPLEADMIN_DEFAULT_USERNAME", &cfg.Auth.DefaultUsername)
	envString("TEMPLEADMIN_DEFAULT_PASSWORD", &cfg.Auth.DefaultPassword)
	envString("TEMPLEADMIN_BACKEND_URL", &cfg.Backend.URL)
	envString("TEMPLEADMIN_LOGIN_PATH", &cfg.Backend.LoginPath)
	envString("TEMPLEADMIN_API_URL", &cfg.Backend.APIBaseURL)
	envString("TEMPLEADMIN_STORE", &cfg.Store.Backend)
	envString("TEMPLEADMIN_STORE_PATH", &cfg.Store.Path)
	envString("LOG_LEVEL", &cfg.Logging.Level)
	envString("LOG_FORMAT", &cfg.Logging.Format)

	if err := envBool("TEMPLEADMIN_REQUIRE_AUTH", &cfg.Auth.RequireAuth); err != nil {
		return err
	}
	if err := envBool("TEMPLEADMIN_USE_JWT", &cfg.Auth.UseBearerToken); err != nil {
		return err
	}

	if v := os.Getenv("TEMPLEADMIN_HTTP_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid TEMPLEADMIN_HTTP_TIMEOUT '%s': %w", v, err)
		}
		cfg.Backend.Timeout = d
	}

	return nil
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envBool(key string, dst *bool) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s '%s': %w", key, v, err)
	}
	*dst = b
	return nil
}

// DefaultStorePath returns where the given store backend keeps its data
func DefaultStorePath(backend string) (string, error) {
	var name string
	switch backend {
	case StoreFile:
		name = "session.json"
	case StoreBolt:
		name = "session.db"
	default:
		return "", nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", configDirName, name), nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration for consistency
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s failed '%s' (value %q)", fe.Namespace(), fe.Tag(), fmt.Sprint(fe.Value()))
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	if cfg.AuthMode() == AuthModeLocal && cfg.Auth.DefaultUsername == "" {
		return fmt.Errorf("invalid config: local auth mode requires auth.defaultUsername")
	}

	if (cfg.Store.Backend == StoreFile || cfg.Store.Backend == StoreBolt) && cfg.Store.Path == "" {
		return fmt.Errorf("invalid config: store backend '%s' requires store.path", cfg.Store.Backend)
	}

	return nil
}
