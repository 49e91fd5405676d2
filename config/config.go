// Package config handles configuration loading and defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/CrowderSoup/kanban/database"
	"github.com/CrowderSoup/kanban/drag"
)

// Default values.
const (
	DefaultPort      = "3001"
	DefaultDBPath    = "./kanban.db"
	DefaultJWTSecret = "your-default-secret-key-change-in-production"
	DefaultTokenTTL  = 24 * time.Hour
	DefaultLogLevel  = "info"
	DefaultLogFormat = "console"
	DefaultEnvFile   = ".env"

	// DefaultSessionIdle is how long a user's board session survives without a request.
	DefaultSessionIdle = 30 * time.Minute
)

var ErrInvalidConfig = errors.New("invalid config")

// Config holds the full configuration for the kanban server.
type Config struct {
	// Server
	Addr           string        `toml:"addr"`
	Port           string        `toml:"port"`
	StaticDir      string        `toml:"static_dir"` // empty disables the file server
	AllowedOrigins []string      `toml:"allowed_origins"`
	JWTSecret      string        `toml:"jwt_secret"`
	TokenTTL       time.Duration `toml:"token_ttl"`
	SessionIdle    time.Duration `toml:"session_idle"`

	// DevMagicLink returns the magic link in the login response. It has no
	// effect once SMTP is configured.
	DevMagicLink bool `toml:"dev_magic_link"`

	// Storage
	DBPath     string `toml:"db_path"`
	StorageKey string `toml:"storage_key"`

	// Logging
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"` // console or json

	Drag DragConfig `toml:"drag"`
	SMTP SMTPConfig `toml:"smtp"`
}

// DragConfig holds the drag controller timings.
type DragConfig struct {
	SameColumnDelay  time.Duration `toml:"same_column_delay"`
	CrossColumnDelay time.Duration `toml:"cross_column_delay"`
	FlipWindow       time.Duration `toml:"flip_window"`
}

type SMTPConfig struct {
	Host     string `toml:"host"`
	Port     string `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	From     string `toml:"from"`
}

// Timings converts the drag settings for drag.NewController.
func (d DragConfig) Timings() drag.Config {
	return drag.Config{
		SameColumnDelay:  d.SameColumnDelay,
		CrossColumnDelay: d.CrossColumnDelay,
		FlipWindow:       d.FlipWindow,
	}
}

// ListenAddr is the address the HTTP server binds.
func (c *Config) ListenAddr() string {
	return c.Addr + ":" + c.Port
}

// ExposeMagicLink reports whether the login response may carry the magic link.
func (c *Config) ExposeMagicLink() bool {
	return c.DevMagicLink && c.SMTP.Host == ""
}

// Load loads configuration from multiple sources in priority order:
// 1. Defaults
// 2. Config file (TOML); path if given, otherwise kanban.toml in the working directory
// 3. The .env file at envFile, when it exists
// 4. Environment variables
//
// Flags are applied afterwards with ApplyFlags.
func Load(path, envFile string) (*Config, error) {
	cfg := &Config{}
	setDefaults(cfg)

	configFile := path
	if configFile == "" {
		configFile = findConfigFile()
	}
	if configFile != "" {
		if _, err := toml.DecodeFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", configFile, err)
		}
	}

	if envFile != "" {
		if err := LoadEnv(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("loading env file %s: %w", envFile, err)
		}
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(cfg *Config) {
	cfg.Port = DefaultPort
	cfg.AllowedOrigins = []string{"*"}
	cfg.JWTSecret = DefaultJWTSecret
	cfg.TokenTTL = DefaultTokenTTL
	cfg.SessionIdle = DefaultSessionIdle
	cfg.DBPath = DefaultDBPath
	cfg.StorageKey = database.DefaultKey
	cfg.LogLevel = DefaultLogLevel
	cfg.LogFormat = DefaultLogFormat

	cfg.Drag.SameColumnDelay = drag.DefaultSameColumnDelay
	cfg.Drag.CrossColumnDelay = drag.DefaultCrossColumnDelay
	cfg.Drag.FlipWindow = drag.DefaultFlipWindow
}

func findConfigFile() string {
	for _, name := range []string{"kanban.toml", ".kanban.toml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// Validate checks the final configuration.
func (c *Config) Validate() error {
	var problems []string

	if c.Port == "" {
		problems = append(problems, "port must be set")
	}
	if c.StorageKey == "" {
		problems = append(problems, "storage_key must be set")
	}
	if c.TokenTTL <= 0 {
		problems = append(problems, "token_ttl must be positive")
	}
	if c.SessionIdle <= 0 {
		problems = append(problems, "session_idle must be positive")
	}
	if c.Drag.SameColumnDelay <= 0 || c.Drag.CrossColumnDelay <= 0 || c.Drag.FlipWindow <= 0 {
		problems = append(problems, "drag timings must be positive")
	}
	if c.Drag.FlipWindow < c.Drag.CrossColumnDelay {
		problems = append(problems, "drag.flip_window must not be shorter than drag.cross_column_delay")
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("unknown log_format %q", c.LogFormat))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
