package domain

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Default values applied when the configuration leaves a setting empty.
const (
	DefaultUserAgent      = "erp-mcp-server/1.0"
	DefaultBackendTimeout = 30 * time.Second
	DefaultRuntimeDir     = "runtime"
)

// Environment variables that override the configuration file.
const (
	EnvBaseURL            = "ERP_BASE_URL"
	EnvAccessToken        = "ERP_ACCESS_TOKEN"
	EnvUserAgent          = "ERP_USER_AGENT"
	EnvInsecureSkipVerify = "ERP_INSECURE_SKIP_VERIFY"
)

// Config represents the server configuration.
// This is the root configuration structure loaded from YAML files. It is
// read-only once LoadConfig returns.
type Config struct {
	Transport TransportConfig `yaml:"transport"`
	Backend   BackendConfig   `yaml:"backend"`
	Content   ContentConfig   `yaml:"content"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// TransportConfig defines transport settings.
// Specifies whether to use stdio or HTTP transport.
type TransportConfig struct {
	Type string     `yaml:"type"` // "stdio" or "http"
	HTTP HTTPConfig `yaml:"http,omitempty"`
}

// HTTPConfig defines HTTP transport settings.
// Only used when transport type is "http".
type HTTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// BackendConfig describes the ERP backend all tools talk to.
type BackendConfig struct {
	BaseURL     string        `yaml:"base_url"`
	AccessToken string        `yaml:"access_token,omitempty"` // static fallback credential
	UserAgent   string        `yaml:"user_agent,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
	// InsecureSkipVerify disables TLS certificate verification on outbound
	// calls. Off unless explicitly enabled.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify,omitempty"`
}

// ContentConfig controls local persistence of retrieved content.
type ContentConfig struct {
	// RuntimeDir is the marker directory name searched for in the working
	// directory and its parents.
	RuntimeDir string `yaml:"runtime_dir,omitempty"`
	Persist    *bool  `yaml:"persist,omitempty"`
}

// PersistEnabled reports whether retrieved content should be written to disk.
// Persistence is on by default.
func (c ContentConfig) PersistEnabled() bool {
	return c.Persist == nil || *c.Persist
}

// LoggingConfig selects the diagnostic log format.
type LoggingConfig struct {
	Format string `yaml:"format,omitempty"` // "json" or "terminal"; empty picks by TTY
	Debug  bool   `yaml:"debug,omitempty"`
}

// LoadConfig reads and validates configuration from a YAML file.
// Variables from a .env file in the working directory (if present) and the
// process environment override the file. Returns an error if the file is
// missing, has invalid syntax, or fails validation.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("invalid YAML syntax in configuration file: %w", err)
	}

	if err := config.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// applyEnv overrides backend settings from environment variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvBaseURL); ok && v != "" {
		c.Backend.BaseURL = v
	}
	if v, ok := lookup(EnvAccessToken); ok && v != "" {
		c.Backend.AccessToken = v
	}
	if v, ok := lookup(EnvUserAgent); ok && v != "" {
		c.Backend.UserAgent = v
	}
	if v, ok := lookup(EnvInsecureSkipVerify); ok && v != "" {
		skip, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s value %q: %w", EnvInsecureSkipVerify, v, err)
		}
		c.Backend.InsecureSkipVerify = skip
	}
	return nil
}

func (c *Config) applyDefaults() {
	c.Backend.BaseURL = strings.TrimRight(c.Backend.BaseURL, "/")
	if c.Backend.UserAgent == "" {
		c.Backend.UserAgent = DefaultUserAgent
	}
	if c.Backend.Timeout == 0 {
		c.Backend.Timeout = DefaultBackendTimeout
	}
	if c.Content.RuntimeDir == "" {
		c.Content.RuntimeDir = DefaultRuntimeDir
	}
}

// Validate checks the configuration for completeness and correctness.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errors []string

	if err := c.validateTransport(); err != nil {
		errors = append(errors, err.Error())
	}

	if err := c.Backend.Validate(); err != nil {
		errors = append(errors, err.Error())
	}

	if c.Logging.Format != "" && c.Logging.Format != "json" && c.Logging.Format != "terminal" {
		errors = append(errors, fmt.Sprintf("invalid logging format '%s': must be 'json' or 'terminal'", c.Logging.Format))
	}

	if strings.ContainsAny(c.Content.RuntimeDir, `/\`) {
		errors = append(errors, fmt.Sprintf("content runtime_dir '%s' must be a single directory name", c.Content.RuntimeDir))
	}

	if len(errors) > 0 {
		return fmt.Errorf("validation errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

// validateTransport validates the transport configuration.
func (c *Config) validateTransport() error {
	var errors []string

	if c.Transport.Type == "" {
		errors = append(errors, "transport type is required")
	} else if c.Transport.Type != "stdio" && c.Transport.Type != "http" {
		errors = append(errors, fmt.Sprintf("invalid transport type '%s': must be 'stdio' or 'http'", c.Transport.Type))
	}

	if c.Transport.Type == "http" {
		if c.Transport.HTTP.Host == "" {
			errors = append(errors, "HTTP host is required when transport type is 'http'")
		}
		if c.Transport.HTTP.Port <= 0 || c.Transport.HTTP.Port > 65535 {
			errors = append(errors, fmt.Sprintf("invalid HTTP port %d: must be between 1 and 65535", c.Transport.HTTP.Port))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "; "))
	}

	return nil
}

// Validate validates the backend configuration.
func (bc *BackendConfig) Validate() error {
	var errors []string

	if bc.BaseURL == "" {
		errors = append(errors, "backend base_url is required")
	} else {
		parsedURL, err := url.Parse(bc.BaseURL)
		if err != nil {
			errors = append(errors, fmt.Sprintf("backend base_url is invalid: %v", err))
		} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
			errors = append(errors, "backend base_url must use http or https scheme")
		} else if parsedURL.Host == "" {
			errors = append(errors, "backend base_url must include a host")
		}
	}

	if bc.Timeout < 0 {
		errors = append(errors, fmt.Sprintf("backend timeout %s must not be negative", bc.Timeout))
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "; "))
	}

	return nil
}
