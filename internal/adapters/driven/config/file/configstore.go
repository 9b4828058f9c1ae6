package file

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

// Config holds provider credentials and local settings.
type Config struct {
	// Email and Password are the provider login credentials.
	Email    string `toml:"email"`
	Password string `toml:"password"`

	// APIBase overrides the provider API base URL. Empty uses the
	// provider default.
	APIBase string `toml:"api_base,omitempty"`

	// AppID is the provider application identifier sent with every
	// request. Empty uses the provider default.
	AppID string `toml:"app_id,omitempty"`

	// Origin overrides the Origin header sent to the provider. Empty
	// uses the provider default.
	Origin string `toml:"origin,omitempty"`

	// DataDir is where the SQLite database lives. Empty uses
	// ~/.cohort-tracker/data.
	DataDir string `toml:"data_dir,omitempty"`

	// RequestIntervalMS is the minimum spacing between provider
	// requests in milliseconds. Zero uses the default pacing.
	RequestIntervalMS int `toml:"request_interval_ms,omitempty"`

	// ListenAddr is the dashboard HTTP listen address for the serve
	// command.
	ListenAddr string `toml:"listen_addr,omitempty"`
}

// DefaultConfigDir returns the directory holding config.toml.
func DefaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".cohort-tracker"), nil
}

// Load reads the config file at path and applies environment overrides.
// A missing file is not an error: overrides alone can supply a complete
// configuration.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Fall through to environment overrides.
	default:
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg.applyEnv()
	return &cfg, nil
}

// Save writes the config to path, creating parent directories. The file
// is written with owner-only permissions since it holds credentials.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}
	return nil
}

// Validate reports whether the config can authenticate.
func (c *Config) Validate() error {
	if c.Email == "" {
		return fmt.Errorf("email is required")
	}
	if c.Password == "" {
		return fmt.Errorf("password is required")
	}
	return nil
}

// applyEnv overrides file values from COHORT_* environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("COHORT_EMAIL"); v != "" {
		c.Email = v
	}
	if v := os.Getenv("COHORT_PASSWORD"); v != "" {
		c.Password = v
	}
	if v := os.Getenv("COHORT_API_BASE"); v != "" {
		c.APIBase = v
	}
	if v := os.Getenv("COHORT_APP_ID"); v != "" {
		c.AppID = v
	}
	if v := os.Getenv("COHORT_ORIGIN"); v != "" {
		c.Origin = v
	}
	if v := os.Getenv("COHORT_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("COHORT_LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("COHORT_REQUEST_INTERVAL_MS"); v != "" {
		if interval, err := strconv.Atoi(v); err == nil {
			c.RequestIntervalMS = interval
		}
	}
}
