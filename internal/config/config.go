// ABOUTME: Configuration loading and parsing for the neora client
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied when a field is absent from the config file.
const (
	DefaultResponseTimeout  = 30 * time.Second
	DefaultMinDisplayTarget = 2 * time.Second
	DefaultMinDisplayFloor  = 500 * time.Millisecond
	DefaultReconnectDelay   = 3 * time.Second
	DefaultHistoryLimit     = 50
)

// Config represents the complete neora client configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Chat    ChatConfig    `yaml:"chat"`
	Stream  StreamConfig  `yaml:"stream"`
	History HistoryConfig `yaml:"history"`
	Session SessionConfig `yaml:"session"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds backend endpoint configuration
type ServerConfig struct {
	// APIBaseURL is the HTTP API root, e.g. https://neora.example.com/api
	APIBaseURL string `yaml:"api_base_url"`
	// StreamURL is the websocket endpoint, e.g. wss://neora.example.com/ws/stream
	StreamURL string `yaml:"stream_url"`
}

// ChatConfig holds turn timing configuration
type ChatConfig struct {
	ResponseTimeout  time.Duration `yaml:"-"`
	MinDisplayTarget time.Duration `yaml:"-"`
	MinDisplayFloor  time.Duration `yaml:"-"`
	HistoryLimit     int           `yaml:"history_limit"`

	// Raw string values for YAML unmarshaling
	ResponseTimeoutRaw  string `yaml:"response_timeout"`
	MinDisplayTargetRaw string `yaml:"min_display_target"`
	MinDisplayFloorRaw  string `yaml:"min_display_floor"`
}

// StreamConfig holds stream channel configuration
type StreamConfig struct {
	ReconnectDelay time.Duration `yaml:"-"`

	ReconnectDelayRaw string `yaml:"reconnect_delay"`
}

// HistoryConfig holds the local message cache configuration
type HistoryConfig struct {
	Path string `yaml:"path"`
}

// SessionConfig holds the persisted session state configuration
type SessionConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration with all defaults applied and state files
// placed under the user config directory. Used when no config file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in zero-valued fields with defaults.
func (c *Config) applyDefaults() {
	if c.Chat.ResponseTimeout == 0 {
		c.Chat.ResponseTimeout = DefaultResponseTimeout
	}
	if c.Chat.MinDisplayTarget == 0 {
		c.Chat.MinDisplayTarget = DefaultMinDisplayTarget
	}
	if c.Chat.MinDisplayFloor == 0 {
		c.Chat.MinDisplayFloor = DefaultMinDisplayFloor
	}
	if c.Chat.HistoryLimit == 0 {
		c.Chat.HistoryLimit = DefaultHistoryLimit
	}
	if c.Stream.ReconnectDelay == 0 {
		c.Stream.ReconnectDelay = DefaultReconnectDelay
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.History.Path == "" {
		c.History.Path = stateFile("history.db")
	}
	if c.Session.Path == "" {
		c.Session.Path = stateFile("session.toml")
	}
}

// stateFile returns a path under the user config directory, falling back to
// the working directory when the home directory cannot be determined.
func stateFile(name string) string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return name
	}
	return filepath.Join(dir, "neora", name)
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.APIBaseURL == "" {
		return fmt.Errorf("server.api_base_url is required")
	}
	if c.Server.StreamURL == "" {
		return fmt.Errorf("server.stream_url is required")
	}
	if c.Chat.MinDisplayFloor > c.Chat.MinDisplayTarget {
		return fmt.Errorf("chat.min_display_floor must not exceed chat.min_display_target")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Chat.ResponseTimeoutRaw != "" {
		cfg.Chat.ResponseTimeout, err = time.ParseDuration(cfg.Chat.ResponseTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing response_timeout %q: %w", cfg.Chat.ResponseTimeoutRaw, err)
		}
	}

	if cfg.Chat.MinDisplayTargetRaw != "" {
		cfg.Chat.MinDisplayTarget, err = time.ParseDuration(cfg.Chat.MinDisplayTargetRaw)
		if err != nil {
			return fmt.Errorf("parsing min_display_target %q: %w", cfg.Chat.MinDisplayTargetRaw, err)
		}
	}

	if cfg.Chat.MinDisplayFloorRaw != "" {
		cfg.Chat.MinDisplayFloor, err = time.ParseDuration(cfg.Chat.MinDisplayFloorRaw)
		if err != nil {
			return fmt.Errorf("parsing min_display_floor %q: %w", cfg.Chat.MinDisplayFloorRaw, err)
		}
	}

	if cfg.Stream.ReconnectDelayRaw != "" {
		cfg.Stream.ReconnectDelay, err = time.ParseDuration(cfg.Stream.ReconnectDelayRaw)
		if err != nil {
			return fmt.Errorf("parsing reconnect_delay %q: %w", cfg.Stream.ReconnectDelayRaw, err)
		}
	}

	return nil
}
