package config

import (
	"encoding/json"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/vango-dev/headsync/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "headsync.json"

	// DefaultAddr is the default HTTP listen address.
	DefaultAddr = ":7070"

	// DefaultLogLevel is the default log level.
	DefaultLogLevel = "info"

	// DefaultLogFormat is the default log handler format.
	DefaultLogFormat = "text"
)

// Config represents the complete headsync.json configuration.
type Config struct {
	// Defer selects deferred flushing. Absent means true.
	Defer *bool `json:"defer,omitempty"`

	// Rules is the path to a YAML rule table merged over the defaults.
	Rules string `json:"rules,omitempty"`

	// Server contains HTTP server configuration.
	Server ServerConfig `json:"server,omitempty"`

	// Render contains markup rendering configuration.
	Render RenderConfig `json:"render,omitempty"`

	// Log contains logging configuration.
	Log LogConfig `json:"log,omitempty"`

	// Publish contains S3 publishing configuration. Publishing is enabled
	// when Bucket is set.
	Publish PublishConfig `json:"publish,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// Addr is the listen address.
	Addr string `json:"addr,omitempty"`

	// AllowedOrigins restricts websocket origins. Empty allows all.
	AllowedOrigins []string `json:"allowedOrigins,omitempty"`
}

// RenderConfig contains markup rendering settings.
type RenderConfig struct {
	// Pretty puts one element per line.
	Pretty bool `json:"pretty,omitempty"`

	// Indent is the indentation used in pretty mode.
	Indent string `json:"indent,omitempty"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level,omitempty"`

	// Format is text or json.
	Format string `json:"format,omitempty"`
}

// PublishConfig contains S3 publishing settings.
type PublishConfig struct {
	Bucket       string `json:"bucket,omitempty"`
	Key          string `json:"key,omitempty"`
	Region       string `json:"region,omitempty"`
	Endpoint     string `json:"endpoint,omitempty"`
	CacheControl string `json:"cacheControl,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	deferred := true
	return &Config{
		Defer: &deferred,
		Server: ServerConfig{
			Addr: DefaultAddr,
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// Load reads configuration from the specified directory.
// It looks for headsync.json in the directory.
func Load(dir string) (*Config, error) {
	configPath := filepath.Join(dir, ConfigFileName)
	return LoadFile(configPath)
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E100").
				WithDetail("No headsync.json found in " + filepath.Dir(path)).
				WithSuggestion("Create headsync.json or pass --config")
		}
		return nil, errors.New("E101").Wrap(err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("E101").
			WithDetail("Failed to parse headsync.json: " + err.Error()).
			WithSuggestion("Check that headsync.json is valid JSON")
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("E101").Wrap(err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("E101").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Defer == nil {
		deferred := true
		c.Defer = &deferred
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
		return errors.New("E102").
			WithDetailf("server.addr %q is not host:port", c.Server.Addr)
	}
	if _, ok := parseLevel(c.Log.Level); !ok {
		return errors.New("E102").
			WithDetailf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return errors.New("E102").
			WithDetailf("log.format %q is not text or json", c.Log.Format)
	}
	if c.Publish.Bucket != "" {
		if c.Publish.Key == "" {
			return errors.New("E102").
				WithDetail("publish.key is required when publish.bucket is set")
		}
		if c.Publish.Region == "" {
			return errors.New("E102").
				WithDetail("publish.region is required when publish.bucket is set")
		}
	}
	return nil
}

// Deferred reports whether flushes are deferred.
func (c *Config) Deferred() bool {
	return c.Defer == nil || *c.Defer
}

// RulesPath returns the rule table path resolved against the config
// directory, or "" when none is configured.
func (c *Config) RulesPath() string {
	if c.Rules == "" || filepath.IsAbs(c.Rules) {
		return c.Rules
	}
	return filepath.Join(c.Dir(), c.Rules)
}

// PublishEnabled returns true if S3 publishing is configured.
func (c *Config) PublishEnabled() bool {
	return c.Publish.Bucket != ""
}

// LogLevel returns the configured slog level, defaulting to info.
func (c *Config) LogLevel() slog.Level {
	level, _ := parseLevel(c.Log.Level)
	return level
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	path := filepath.Join(dir, ConfigFileName)
	_, err := os.Stat(path)
	return err == nil
}

// FindProjectRoot walks up directories to find the project root.
// Returns the directory containing headsync.json, or an error if not found.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("E100").
				WithDetail("No headsync.json found in " + startDir + " or any parent directory")
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads configuration from the current working directory,
// falling back to defaults when no headsync.json exists.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root, err := FindProjectRoot(wd)
	if err != nil {
		if errors.HasCode(err, "E100") {
			return New(), nil
		}
		return nil, err
	}

	return Load(root)
}
