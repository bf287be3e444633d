package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/commitquest/internal/github"
	"github.com/starford/commitquest/internal/graph"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Snapshots SnapshotsConfig   `yaml:"snapshots"`
	SQLite    SQLiteConfig      `yaml:"sqlite"`
	Auth      AuthConfig        `yaml:"auth"`
	GitHub    GitHubConfig      `yaml:"github"`
	Backend   BackendConfig     `yaml:"backend"`
	SSE       SSEConfig         `yaml:"sse"`
	Layout    graph.Options     `yaml:"layout"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Snapshots.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.GitHub.Validate(); err != nil {
		return fmt.Errorf("github: %w", err)
	}
	if err := c.Backend.Validate(); err != nil {
		return fmt.Errorf("backend: %w", err)
	}
	if err := c.SSE.Validate(); err != nil {
		return fmt.Errorf("sse: %w", err)
	}
	if err := validation.ValidateStruct(&c.Layout,
		validation.Field(&c.Layout.RowHeight, validation.Min(0.0)),
		validation.Field(&c.Layout.LaneWidth, validation.Min(0.0)),
		validation.Field(&c.Layout.LabelOffset, validation.Min(0.0)),
		validation.Field(&c.Layout.MaxFeatureBranches, validation.Min(0)),
		validation.Field(&c.Layout.MilestoneEvery, validation.Min(0)),
	); err != nil {
		return fmt.Errorf("layout: %w", err)
	}
	return nil
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

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SnapshotsConfig holds the local snapshot directory. Watch enables live
// reindexing when files change.
type SnapshotsConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// Validate validates the snapshot configuration.
func (c *SnapshotsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// GitHubConfig configures the GitHub commit source. An empty token still
// works against public repos at the anonymous rate limit.
type GitHubConfig struct {
	BaseURL        string        `yaml:"base_url"`
	Token          string        `yaml:"token"`
	CommitsPerPage int           `yaml:"commits_per_page"`
	BranchLimit    int           `yaml:"branch_limit"`
	BranchCommits  int           `yaml:"branch_commits"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
	Concurrency    int           `yaml:"concurrency"`
	RatePerSec     float64       `yaml:"rate_per_sec"`
}

// Validate validates the GitHub configuration.
func (c *GitHubConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required, is.URL),
		validation.Field(&c.CommitsPerPage, validation.Min(1), validation.Max(100)),
		validation.Field(&c.BranchLimit, validation.Min(0)),
		validation.Field(&c.BranchCommits, validation.Min(0), validation.Max(100)),
		validation.Field(&c.CacheTTL, validation.Min(time.Duration(0))),
		validation.Field(&c.Concurrency, validation.Min(0)),
		validation.Field(&c.RatePerSec, validation.Min(0.0)),
	)
}

// BackendConfig points at the upstream dashboard API. An empty BaseURL
// disables the event stream, session, and goal routes.
type BackendConfig struct {
	BaseURL      string        `yaml:"base_url"`
	Token        string        `yaml:"token"`
	ReconnectMax time.Duration `yaml:"reconnect_max"`
}

// Validate validates the backend configuration.
func (c *BackendConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, is.URL),
		validation.Field(&c.Token, validation.When(c.BaseURL != "", validation.Required)),
		validation.Field(&c.ReconnectMax, validation.Min(time.Duration(0))),
	)
}

// Enabled reports whether an upstream backend is configured.
func (c *BackendConfig) Enabled() bool {
	return c.BaseURL != ""
}

// SSEConfig holds push channel configuration.
type SSEConfig struct {
	GraphThrottle time.Duration `yaml:"graph_throttle"`
}

// Validate validates the SSE configuration.
func (c *SSEConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.GraphThrottle, validation.Min(time.Duration(0))),
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
		Snapshots: SnapshotsConfig{
			Path:  "./snapshots",
			Watch: true,
		},
		SQLite: SQLiteConfig{
			Path: "./commitquest.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		GitHub: GitHubConfig{
			BaseURL:        github.DefaultBaseURL,
			CommitsPerPage: 50,
			BranchLimit:    10,
			BranchCommits:  8,
			CacheTTL:       5 * time.Minute,
			Concurrency:    4,
			RatePerSec:     5,
		},
		Backend: BackendConfig{
			ReconnectMax: 30 * time.Second,
		},
		SSE: SSEConfig{
			GraphThrottle: 2 * time.Second,
		},
		Layout: graph.DefaultOptions(),
	}
}
