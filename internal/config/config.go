package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"toolgate/pkg/fileops"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

const APP_NAME = "toolgate" // application name used for config and data directories

const (
	DefaultMaxFileSize  int64 = 10 * 1024 * 1024
	DefaultMaxRows            = 1000
	DefaultQueryLimit         = 100
	DefaultTimeout            = 30 * time.Second
	currentVersion            = "1.0"
	configFileName            = "config.yaml"
	defaultDatabaseFile       = "example.db"
	defaultFilesDirName       = "files"
)

// DefaultAllowedExtensions are the file types the file tools accept.
var DefaultAllowedExtensions = []string{".txt", ".json", ".csv", ".md", ".py"}

// Config holds toolgate configuration.
type Config struct {
	Files    FilesConfig    `yaml:"files"`
	Database DatabaseConfig `yaml:"database"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Version  string         `yaml:"version"`   // Track config version
	InitTime int64          `yaml:"init_time"` // Unix timestamp of first save
}

// FilesConfig scopes the file tools.
type FilesConfig struct {
	// Root is the only directory file tools may touch.
	Root              string   `yaml:"root"`
	MaxFileSize       int64    `yaml:"max_file_size"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
}

// DatabaseConfig scopes the database tools.
type DatabaseConfig struct {
	Path         string `yaml:"path"`
	MaxRows      int    `yaml:"max_rows"`
	DefaultLimit int    `yaml:"default_limit"`
}

// DispatchConfig holds dispatcher settings.
type DispatchConfig struct {
	Timeout Duration `yaml:"timeout"`
}

// Duration is a time.Duration written as "30s" in YAML.
type Duration time.Duration

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("line %d: duration must be a string like \"30s\": %w", value.Line, err)
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// ConfigPath returns the standard config file path for the current platform.
func ConfigPath() string {
	return filepath.Join(xdg.ConfigHome, APP_NAME, configFileName)
}

// DataDir returns the default directory for toolgate data.
func DataDir() string {
	return filepath.Join(xdg.DataHome, APP_NAME)
}

// FindConfigFile returns the path to the config file, and whether it exists.
func FindConfigFile() (string, bool) {
	primary := ConfigPath()
	if _, err := os.Stat(primary); err == nil {
		return primary, true
	}
	return primary, false
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Files: FilesConfig{
			Root:              filepath.Join(DataDir(), defaultFilesDirName),
			MaxFileSize:       DefaultMaxFileSize,
			AllowedExtensions: append([]string(nil), DefaultAllowedExtensions...),
		},
		Database: DatabaseConfig{
			Path:         filepath.Join(DataDir(), defaultDatabaseFile),
			MaxRows:      DefaultMaxRows,
			DefaultLimit: DefaultQueryLimit,
		},
		Dispatch: DispatchConfig{
			Timeout: Duration(DefaultTimeout),
		},
		Version:  currentVersion,
		InitTime: 0, // Will be set during first save
	}
}

// Load loads the config from the standard location. A missing file yields
// the defaults.
func Load() (*Config, error) {
	configPath, exists := FindConfigFile()
	if !exists {
		cfg := Default()
		return &cfg, nil
	}
	return LoadFrom(configPath)
}

// LoadFrom loads config from a specific path. Keys absent from the file
// keep their default values.
func LoadFrom(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	cfg := Default()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.Files.Root = fileops.ExpandPath(strings.TrimSpace(c.Files.Root))
	c.Database.Path = fileops.ExpandPath(strings.TrimSpace(c.Database.Path))
	c.Files.AllowedExtensions = fileops.NormalizeExtensions(c.Files.AllowedExtensions)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Files.Root) == "":
		return errors.New("files.root must not be empty")
	case c.Files.MaxFileSize <= 0:
		return fmt.Errorf("files.max_file_size must be positive, got %d", c.Files.MaxFileSize)
	case strings.TrimSpace(c.Database.Path) == "":
		return errors.New("database.path must not be empty")
	case c.Database.MaxRows <= 0:
		return fmt.Errorf("database.max_rows must be positive, got %d", c.Database.MaxRows)
	case c.Database.DefaultLimit <= 0:
		return fmt.Errorf("database.default_limit must be positive, got %d", c.Database.DefaultLimit)
	case c.Database.DefaultLimit > c.Database.MaxRows:
		return fmt.Errorf("database.default_limit (%d) exceeds database.max_rows (%d)", c.Database.DefaultLimit, c.Database.MaxRows)
	case c.Dispatch.Timeout <= 0:
		return fmt.Errorf("dispatch.timeout must be positive, got %s", c.Dispatch.Timeout.Std())
	}
	return nil
}

// Overrides are command-line values that take precedence over the file.
type Overrides struct {
	Root    string
	DBPath  string
	Timeout time.Duration
}

// Apply copies non-zero overrides into c and re-validates.
func (c *Config) Apply(o Overrides) error {
	if o.Root != "" {
		c.Files.Root = o.Root
	}
	if o.DBPath != "" {
		c.Database.Path = o.DBPath
	}
	if o.Timeout != 0 {
		c.Dispatch.Timeout = Duration(o.Timeout)
	}
	c.normalize()
	return c.Validate()
}

// Save writes the config to the standard location
func (c *Config) Save() error {
	return c.SaveTo(ConfigPath())
}

// SaveTo writes the config to a specific path
func (c *Config) SaveTo(path string) error {
	// Set init time if this is the first save
	if c.InitTime == 0 {
		c.InitTime = time.Now().Unix()
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Create file with restrictive permissions (600) for security
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	enc := yaml.NewEncoder(f)
	defer enc.Close()

	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
