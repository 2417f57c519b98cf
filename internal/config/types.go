package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultHistorySize bounds the interactive history.
	DefaultHistorySize = 500
	// DefaultDebug is the debug level when nothing sets one (errors only).
	DefaultDebug = 4

	// Environment variables read by ApplyEnv.
	EnvDebug      = "VIRSH_DEBUG"
	EnvLogFile    = "VIRSH_LOG_FILE"
	EnvConnectURI = "VIRSH_DEFAULT_CONNECT_URI"
)

// Config holds shell defaults. Command-line flags override it.
type Config struct {
	URI         string `yaml:"uri,omitempty"`          // Connection URI; empty lets the daemon choose
	Debug       int    `yaml:"debug"`                  // 0 (debug) to 4 (errors only)
	LogFile     string `yaml:"log_file,omitempty"`     // Appended to when set
	Quiet       bool   `yaml:"quiet,omitempty"`        // Suppress informational output
	Timing      bool   `yaml:"timing,omitempty"`       // Print elapsed time after each command
	ReadOnly    bool   `yaml:"readonly,omitempty"`     // Open read-only connections
	HistorySize int    `yaml:"history_size,omitempty"` // Interactive history entries kept
	Socket      string `yaml:"socket,omitempty"`       // Override the libvirtd socket path
	Timeout     string `yaml:"timeout,omitempty"`      // Dial timeout, e.g. "5s"
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Debug:       DefaultDebug,
		HistorySize: DefaultHistorySize,
	}
}

// DefaultPath returns the rc file location under home.
func DefaultPath(home string) string {
	return filepath.Join(home, ".virsh", "virsh.yaml")
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Debug < 0 || c.Debug > 4 {
		return fmt.Errorf("debug must be between 0 and 4, got %d", c.Debug)
	}
	if c.HistorySize < 0 {
		return fmt.Errorf("history_size must be >= 0, got %d", c.HistorySize)
	}
	if c.Timeout != "" {
		d, err := time.ParseDuration(c.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout %q: %w", c.Timeout, err)
		}
		if d < 0 {
			return fmt.Errorf("timeout must not be negative, got %q", c.Timeout)
		}
	}
	return nil
}

// TimeoutDuration returns the dial timeout, or zero when unset. Call after
// Validate.
func (c *Config) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// Normalize trims user input.
func (c *Config) Normalize() {
	c.URI = strings.TrimSpace(c.URI)
	c.LogFile = strings.TrimSpace(c.LogFile)
	c.Socket = strings.TrimSpace(c.Socket)
	if c.HistorySize == 0 {
		c.HistorySize = DefaultHistorySize
	}
}

// LoadFromFile reads the rc file at path over the defaults. A missing file
// yields the defaults.
func LoadFromFile(path string) (*Config, error) {
	config := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	config.Normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// ApplyEnv overrides fields from environment variables looked up with
// getenv. Unusable values are skipped and described in the returned
// warnings.
func (c *Config) ApplyEnv(getenv func(string) string) []string {
	var warnings []string

	if v := getenv(EnvDebug); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 4 {
			warnings = append(warnings, fmt.Sprintf("%s not set with a valid numeric value", EnvDebug))
		} else {
			c.Debug = n
		}
	}
	if v := getenv(EnvLogFile); v != "" {
		c.LogFile = v
	}
	if v := getenv(EnvConnectURI); v != "" {
		c.URI = v
	}
	return warnings
}
