package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
	AuthModePassword = "password"
)

// State backends.
const (
	StateBackendFS     = "fs"
	StateBackendSQLite = "sqlite"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	State     StateConfig       `yaml:"state"`
	Auth      AuthConfig        `yaml:"auth"`
	Assistant AssistantConfig   `yaml:"assistant"`
	Palette   []string          `yaml:"palette"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.State.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	return c.Assistant.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns the HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// StateConfig holds state persistence configuration.
//
// Backend selects where blobs live:
//   - "fs" (default): one JSON file per blob under Dir, watched for
//     external edits.
//   - "sqlite": a single database file at SQLitePath.
//
// ShareToken, when set, seeds the repository at startup and wins over
// stored blobs if it decodes to at least one valid event.
// BackupSchedule is an optional cron expression for periodic snapshots.
type StateConfig struct {
	Backend        string `yaml:"backend"`
	Dir            string `yaml:"dir"`
	SQLitePath     string `yaml:"sqlite_path"`
	ShareToken     string `yaml:"share_token"`
	BackupSchedule string `yaml:"backup_schedule"`
}

// Validate validates the state configuration.
func (c *StateConfig) Validate() error {
	if c.Backend == "" {
		c.Backend = StateBackendFS
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required, validation.In(StateBackendFS, StateBackendSQLite)),
	); err != nil {
		return err
	}
	if c.Backend == StateBackendFS && c.Dir == "" {
		return fmt.Errorf("state: backend is %q but dir is empty", StateBackendFS)
	}
	if c.Backend == StateBackendSQLite && c.SQLitePath == "" {
		return fmt.Errorf("state: backend is %q but sqlite_path is empty", StateBackendSQLite)
	}
	return nil
}

// AuthConfig holds authentication configuration.
//
// Mode controls how requests are authenticated:
//   - "disabled" (default): no authentication, suitable for local use.
//   - "token": Bearer token compare; Token must be non-empty.
//   - "password": Bearer value checked against an Argon2id hash
//     produced by the hash-password subcommand.
type AuthConfig struct {
	Mode         string `yaml:"mode"`
	Token        string `yaml:"token"`
	PasswordHash string `yaml:"password_hash"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken, AuthModePassword)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	if c.Mode == AuthModePassword && c.PasswordHash == "" {
		return fmt.Errorf("auth: mode is %q but password_hash is empty", AuthModePassword)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode != AuthModeDisabled
}

// AssistantConfig holds the outbound assistant endpoint configuration.
// An empty endpoint disables the assistant routes.
type AssistantConfig struct {
	Endpoint       string `yaml:"endpoint"`
	Model          string `yaml:"model"`
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Enabled reports whether the assistant integration is configured.
func (c *AssistantConfig) Enabled() bool {
	return c.Endpoint != ""
}

// Validate validates the assistant configuration.
func (c *AssistantConfig) Validate() error {
	if !c.Enabled() {
		return nil
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Model, validation.Required),
		validation.Field(&c.TimeoutSeconds, validation.Min(0)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		State: StateConfig{
			Backend: StateBackendFS,
			Dir:     "./state",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
