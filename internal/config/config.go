package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Database  DatabaseConfig  `yaml:"database"`
	Local     LocalConfig     `yaml:"local"`
	Auth      AuthConfig      `yaml:"auth"`
	Sync      SyncConfig      `yaml:"sync"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

// DatabaseConfig points at the remote Postgres replica.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// LocalConfig points at the on-device record store.
type LocalConfig struct {
	DataDir string `yaml:"data_dir"`
}

type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

// SyncConfig tunes the background reconciliation loop.
type SyncConfig struct {
	Enabled           bool   `yaml:"enabled"`
	Strategy          string `yaml:"strategy"`
	IntervalSeconds   int    `yaml:"interval_seconds"`
	MaxAttempts       int    `yaml:"max_attempts"`
	RetryDelaySeconds int    `yaml:"retry_delay_seconds"`
}

// Interval is the fallback poll period between sync runs.
func (s SyncConfig) Interval() time.Duration {
	return time.Duration(s.IntervalSeconds) * time.Second
}

// RetryDelay is the fixed wait between failed sync attempts.
func (s SyncConfig) RetryDelay() time.Duration {
	return time.Duration(s.RetryDelaySeconds) * time.Second
}

// DSN returns a PostgreSQL connection string for the remote replica.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Load reads config from a YAML file, then applies environment variable overrides.
// Env vars use the prefix REPSYNC_ and underscore-separated paths:
//
//	REPSYNC_SERVER_HOST, REPSYNC_SERVER_PORT,
//	REPSYNC_DB_HOST, REPSYNC_DB_PORT, REPSYNC_DB_NAME,
//	REPSYNC_DB_USER, REPSYNC_DB_PASSWORD, REPSYNC_DB_SSLMODE,
//	REPSYNC_LOCAL_DATA_DIR, REPSYNC_AUTH_API_KEY,
//	REPSYNC_SYNC_STRATEGY
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	applySyncDefaults(&cfg.Sync)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("REPSYNC_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("REPSYNC_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("REPSYNC_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("REPSYNC_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("REPSYNC_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("REPSYNC_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("REPSYNC_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("REPSYNC_DB_SSLMODE"); v != "" {
		cfg.Database.SSLMode = v
	}
	if v := os.Getenv("REPSYNC_LOCAL_DATA_DIR"); v != "" {
		cfg.Local.DataDir = v
	}
	if v := os.Getenv("REPSYNC_AUTH_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}
	if v := os.Getenv("REPSYNC_SYNC_STRATEGY"); v != "" {
		cfg.Sync.Strategy = v
	}
}

func applySyncDefaults(s *SyncConfig) {
	if s.Strategy == "" {
		s.Strategy = "merge"
	}
	if s.IntervalSeconds == 0 {
		s.IntervalSeconds = 300
	}
	if s.MaxAttempts == 0 {
		s.MaxAttempts = 3
	}
	if s.RetryDelaySeconds == 0 {
		s.RetryDelaySeconds = 2
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	if c.Local.DataDir == "" {
		return fmt.Errorf("local.data_dir is required")
	}
	if c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key is required")
	}
	if c.Sync.Enabled {
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required when sync is enabled")
		}
		if c.Database.Port == 0 {
			return fmt.Errorf("database.port is required when sync is enabled")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database.name is required when sync is enabled")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required when sync is enabled")
		}
	}
	switch c.Sync.Strategy {
	case "keep-local", "keep-remote", "merge":
	default:
		return fmt.Errorf("sync.strategy must be keep-local, keep-remote, or merge, got %q", c.Sync.Strategy)
	}
	return nil
}
