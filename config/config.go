// Package config provides YAML configuration parsing for votewatch.
//
// This package enables running votewatch as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	port: 3000
//	title: Élection 2025
//	poll_interval: 30s
//
//	source:
//	  url: https://polls.example.com/api/polls/${POLL_ID}
//	  timeout: 10s
//	  headers:
//	    Authorization: Bearer ${POLL_TOKEN}
//
//	history:
//	  capacity: 2000
//
//	archive:
//	  path: votes.csv
//	  sync: false
//
//	slate:
//	  - Serena Villata
//	  - François Hug
//
//	log:
//	  level: info
//	  format: json
//
// A handful of settings can also be overridden from the environment, see
// [EnvOverrides].
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/jpalmerr/votewatch"
	"github.com/spf13/afero"
	"go-simpler.org/env"
	"gopkg.in/yaml.v3"
)

// minPollInterval is the minimum allowed polling interval.
// This prevents accidental DoS of the poll source with overly aggressive polling.
const minPollInterval = 1 * time.Second

const (
	defaultPort         = 3000
	defaultPollInterval = 30 * time.Second
	defaultTimeout      = 10 * time.Second
	defaultCapacity     = 2000
	defaultArchivePath  = "votes.csv"
	defaultLogLevel     = "info"
	defaultLogFormat    = "json"
)

// Config is the root configuration structure for votewatch.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Title is the dashboard title. Defaults to "Votewatch" if not set.
	Title string `yaml:"title"`

	// Port is the HTTP server port. Defaults to 3000.
	Port int `yaml:"port"`

	// PollInterval is the pause between the end of one poll cycle and the
	// next fetch. Defaults to 30s.
	PollInterval Duration `yaml:"poll_interval"`

	// Source describes the poll source endpoint.
	Source SourceConfig `yaml:"source"`

	// History configures the in-memory history buffer.
	History HistoryConfig `yaml:"history"`

	// Archive configures the durable CSV vote log.
	Archive ArchiveConfig `yaml:"archive"`

	// Slate lists tracked candidates in vote log column order.
	// Empty means the built-in default slate.
	Slate []string `yaml:"slate"`

	// Log configures the process logger.
	Log LogConfig `yaml:"log"`
}

// SourceConfig defines the poll source endpoint.
type SourceConfig struct {
	// URL is the poll source endpoint.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	URL string `yaml:"url"`

	// Timeout bounds a single fetch. Defaults to 10s.
	Timeout Duration `yaml:"timeout"`

	// Headers are custom HTTP headers sent with each request.
	// Values support environment variable substitution.
	Headers map[string]string `yaml:"headers"`
}

// HistoryConfig configures the in-memory history buffer.
type HistoryConfig struct {
	// Capacity is the number of snapshots kept. Defaults to 2000.
	Capacity int `yaml:"capacity"`
}

// ArchiveConfig configures the durable vote log.
type ArchiveConfig struct {
	// Path is the CSV file location. Defaults to "votes.csv".
	// Supports environment variable substitution.
	Path string `yaml:"path"`

	// Sync makes every append fsync before returning.
	Sync bool `yaml:"sync"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Defaults to info.
	Level string `yaml:"level"`

	// Format is json or text. Defaults to json.
	Format string `yaml:"format"`
}

// EnvOverrides holds settings read from the environment. Non-zero fields
// replace the corresponding file values.
type EnvOverrides struct {
	Port      int    `env:"PORT"`
	SourceURL string `env:"VOTEWATCH_SOURCE_URL"`
	LogPath   string `env:"VOTEWATCH_ARCHIVE_PATH"`
	LogLevel  string `env:"VOTEWATCH_LOG_LEVEL"`
	LogFormat string `env:"VOTEWATCH_LOG_FORMAT"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Default returns a configuration with every default applied and no source.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses a YAML configuration file from the OS filesystem.
func Load(path string) (*Config, error) {
	return LoadFS(afero.NewOsFs(), path)
}

// LoadFS reads and parses a YAML configuration file from fsys.
//
// Returns an error if the file cannot be read or parsed.
func LoadFS(fsys afero.Fs, path string) (*Config, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in the source URL, header values, and
// archive path. Defaults are applied to every unset field.
func Parse(data []byte) (*Config, error) {
	cfg, err := decode(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Resolve builds the effective configuration: the YAML file at path (or
// [Default] when path is empty) with [EnvOverrides] applied on top. The
// result is validated once, so a file may leave source.url to the
// environment.
func Resolve(fsys afero.Fs, path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := afero.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if cfg, err = decode(data); err != nil {
			return nil, err
		}
	}

	overrides, err := LoadEnv()
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(overrides); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.expand(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadEnv reads [EnvOverrides] from the process environment.
func LoadEnv() (EnvOverrides, error) {
	var o EnvOverrides
	if err := env.Load(&o, nil); err != nil {
		return EnvOverrides{}, fmt.Errorf("failed to load environment variables: %w", err)
	}
	return o, nil
}

// ApplyEnv overlays non-zero overrides onto c and re-validates.
func (c *Config) ApplyEnv(o EnvOverrides) error {
	if o.Port != 0 {
		c.Port = o.Port
	}
	if o.SourceURL != "" {
		c.Source.URL = o.SourceURL
	}
	if o.LogPath != "" {
		c.Archive.Path = o.LogPath
	}
	if o.LogLevel != "" {
		c.Log.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		c.Log.Format = o.LogFormat
	}
	return c.Validate()
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.PollInterval == 0 {
		c.PollInterval = Duration(defaultPollInterval)
	}
	if c.Source.Timeout == 0 {
		c.Source.Timeout = Duration(defaultTimeout)
	}
	if c.History.Capacity == 0 {
		c.History.Capacity = defaultCapacity
	}
	if c.Archive.Path == "" {
		c.Archive.Path = defaultArchivePath
	}
	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = defaultLogFormat
	}
}

// expand substitutes environment variables in the fields that accept them.
func (c *Config) expand() error {
	expanded, err := expandEnvVars(c.Source.URL)
	if err != nil {
		return fmt.Errorf("source.url: %w", err)
	}
	c.Source.URL = expanded

	for k, v := range c.Source.Headers {
		expanded, err := expandEnvVars(v)
		if err != nil {
			return fmt.Errorf("source.headers[%s]: %w", k, err)
		}
		c.Source.Headers[k] = expanded
	}

	expanded, err = expandEnvVars(c.Archive.Path)
	if err != nil {
		return fmt.Errorf("archive.path: %w", err)
	}
	c.Archive.Path = expanded
	return nil
}

// Validate checks every field. The source URL is required.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	if c.PollInterval.Duration() < minPollInterval {
		return fmt.Errorf("poll_interval must be at least %s, got %s", minPollInterval, c.PollInterval.Duration())
	}

	if c.Source.URL == "" {
		return errors.New("source.url is required")
	}
	parsedURL, err := url.Parse(c.Source.URL)
	if err != nil {
		return fmt.Errorf("source.url: invalid url: %w", err)
	}
	if parsedURL.Scheme == "" {
		return errors.New("source.url must have a scheme (http:// or https://)")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("source.url scheme must be http or https, got %q", parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return errors.New("source.url must include a host")
	}

	if c.Source.Timeout.Duration() < 0 {
		return fmt.Errorf("source.timeout cannot be negative, got %s", c.Source.Timeout.Duration())
	}
	if c.Source.Timeout.Duration() < time.Second {
		return fmt.Errorf("source.timeout must be at least 1s, got %s", c.Source.Timeout.Duration())
	}

	if c.History.Capacity < 1 {
		return fmt.Errorf("history.capacity must be positive, got %d", c.History.Capacity)
	}

	if len(c.Slate) > 0 {
		if _, err := votewatch.NewSlate(c.Slate...); err != nil {
			return fmt.Errorf("slate: %w", err)
		}
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn, or error, got %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text, got %q", c.Log.Format)
	}

	return nil
}
