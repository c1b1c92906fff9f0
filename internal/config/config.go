package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	synerrors "github.com/Aman-CERP/synexpand/internal/errors"
	"github.com/Aman-CERP/synexpand/internal/source"
)

const (
	// ProjectFile is the project configuration file name.
	ProjectFile = ".synexpand.yaml"

	// projectFileAlt is accepted when ProjectFile is absent.
	projectFileAlt = ".synexpand.yml"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "SYNEXPAND_"
)

// Config represents the complete synexpand configuration.
type Config struct {
	Version   int             `yaml:"version" json:"version"`
	Synonyms  SynonymsConfig  `yaml:"synonyms" json:"synonyms"`
	Rewrite   RewriteConfig   `yaml:"rewrite" json:"rewrite"`
	Backend   BackendConfig   `yaml:"backend" json:"backend"`
	Server    ServerConfig    `yaml:"server" json:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry" json:"telemetry"`
}

// SynonymsConfig selects where the dictionary comes from and how long a
// loaded copy stays fresh.
type SynonymsConfig struct {
	// Source is one of source.Kinds(): builtin, yaml or sqlite.
	Source string `yaml:"source" json:"source"`

	// Path is the YAML file or SQLite database. Relative paths are resolved
	// against the project directory.
	Path string `yaml:"path" json:"path"`

	// RefreshInterval is how long a snapshot is served before it is
	// reloaded in the background (e.g. "1h"). "0" selects the cache default.
	RefreshInterval string `yaml:"refresh_interval" json:"refresh_interval"`

	// CacheEntries bounds the number of distinct refresh intervals cached.
	CacheEntries int `yaml:"cache_entries" json:"cache_entries"`

	// Watch invalidates the cache when the YAML source changes on disk.
	Watch bool `yaml:"watch" json:"watch"`

	// WatchDebounce coalesces bursts of file events (e.g. "200ms").
	WatchDebounce string `yaml:"watch_debounce" json:"watch_debounce"`
}

// RewriteConfig tunes the query rewriter.
type RewriteConfig struct {
	// SynonymsSupported reports whether the target index supports synonyms.
	// When false every rewrite falls back to the original query.
	SynonymsSupported bool `yaml:"synonyms_supported" json:"synonyms_supported"`

	// PositionalExtraction treats the first should clause of a bool query
	// as the free-text clause even without the default_search tag.
	PositionalExtraction bool `yaml:"positional_extraction" json:"positional_extraction"`

	// EscapeWildcards escapes * and ? in the non-expanded remainder.
	EscapeWildcards bool `yaml:"escape_wildcards" json:"escape_wildcards"`
}

// BackendConfig configures the embedded search backend.
type BackendConfig struct {
	// IndexPath is the on-disk bleve index. Empty keeps it in memory.
	IndexPath string `yaml:"index_path" json:"index_path"`

	// MaxResults is the default number of hits returned.
	MaxResults int `yaml:"max_results" json:"max_results"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Transport string `yaml:"transport" json:"transport"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
}

// TelemetryConfig controls local rewrite telemetry. Nothing leaves the
// machine.
type TelemetryConfig struct {
	// Enabled records rewrite outcomes while serving.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Path is the telemetry database. Empty selects
	// ~/.synexpand/telemetry.db.
	Path string `yaml:"path" json:"path"`
}

// DefaultTelemetryPath returns ~/.synexpand/telemetry.db, falling back to
// the temp directory if the home directory is unavailable.
func DefaultTelemetryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".synexpand", "telemetry.db")
	}
	return filepath.Join(home, ".synexpand", "telemetry.db")
}

// TelemetryPath returns telemetry.path or the default.
func (c *Config) TelemetryPath() string {
	if c.Telemetry.Path != "" {
		return c.Telemetry.Path
	}
	return DefaultTelemetryPath()
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Synonyms: SynonymsConfig{
			Source:          source.KindBuiltin,
			RefreshInterval: "1h",
			CacheEntries:    16,
			WatchDebounce:   "200ms",
		},
		Rewrite: RewriteConfig{
			SynonymsSupported: true,
		},
		Backend: BackendConfig{
			MaxResults: 10,
		},
		Server: ServerConfig{
			Transport: "stdio",
			LogLevel:  "info",
		},
	}
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/synexpand/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/synexpand/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "synexpand", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "synexpand", "config.yaml")
	}
	return filepath.Join(home, ".config", "synexpand", "config.yaml")
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// Load loads configuration for the project in dir.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/synexpand/config.yaml)
//  3. Project config (.synexpand.yaml in dir)
//  4. Environment variables (SYNEXPAND_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	if path := projectConfigPath(dir); path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()
	cfg.resolvePaths(dir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads defaults, then path, then environment overrides. Relative
// paths inside the file resolve against its directory.
func LoadFile(path string) (*Config, error) {
	cfg := NewConfig()
	if err := cfg.loadYAML(path); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()
	cfg.resolvePaths(filepath.Dir(path))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func projectConfigPath(dir string) string {
	for _, name := range []string{ProjectFile, projectFileAlt} {
		if p := filepath.Join(dir, name); fileExists(p) {
			return p
		}
	}
	return ""
}

// loadYAML overlays a YAML file onto c. Keys absent from the file keep
// their current value.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return synerrors.New(synerrors.ErrCodeConfigNotFound, "config file not found", err).
				WithDetail("path", path)
		}
		return synerrors.New(synerrors.ErrCodeFilePermission, "failed to read config file", err).
			WithDetail("path", path)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return synerrors.ConfigError("failed to parse config file", err).
			WithDetail("path", path).
			WithSuggestion("Check the YAML syntax or regenerate it with 'synexpand init --force'")
	}
	return nil
}

// applyEnvOverrides applies SYNEXPAND_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(EnvPrefix + "SYNONYMS_SOURCE"); v != "" {
		c.Synonyms.Source = v
	}
	if v := os.Getenv(EnvPrefix + "SYNONYMS_PATH"); v != "" {
		c.Synonyms.Path = v
	}
	if v := os.Getenv(EnvPrefix + "REFRESH_INTERVAL"); v != "" {
		c.Synonyms.RefreshInterval = v
	}
	if v := os.Getenv(EnvPrefix + "WATCH"); v != "" {
		c.Synonyms.Watch = parseBool(v, c.Synonyms.Watch)
	}
	if v := os.Getenv(EnvPrefix + "SYNONYMS_SUPPORTED"); v != "" {
		c.Rewrite.SynonymsSupported = parseBool(v, c.Rewrite.SynonymsSupported)
	}
	if v := os.Getenv(EnvPrefix + "INDEX_PATH"); v != "" {
		c.Backend.IndexPath = v
	}
	if v := os.Getenv(EnvPrefix + "MAX_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Backend.MaxResults = n
		}
	}
	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv(EnvPrefix + "TRANSPORT"); v != "" {
		c.Server.Transport = v
	}
	if v := os.Getenv(EnvPrefix + "TELEMETRY"); v != "" {
		c.Telemetry.Enabled = parseBool(v, c.Telemetry.Enabled)
	}
}

func parseBool(s string, fallback bool) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return fallback
	}
	return b
}

func (c *Config) resolvePaths(dir string) {
	if dir == "" {
		return
	}
	if p := c.Synonyms.Path; p != "" && !filepath.IsAbs(p) {
		c.Synonyms.Path = filepath.Join(dir, p)
	}
	if p := c.Backend.IndexPath; p != "" && !filepath.IsAbs(p) {
		c.Backend.IndexPath = filepath.Join(dir, p)
	}
	if p := c.Telemetry.Path; p != "" && !filepath.IsAbs(p) {
		c.Telemetry.Path = filepath.Join(dir, p)
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if !isKnownSource(c.Synonyms.Source) {
		return invalid("synonyms.source", "must be one of %s, got %q",
			strings.Join(source.Kinds(), ", "), c.Synonyms.Source)
	}
	if c.Synonyms.Source != source.KindBuiltin && c.Synonyms.Path == "" {
		return invalid("synonyms.path", "is required for source %q", c.Synonyms.Source)
	}
	if _, err := c.RefreshInterval(); err != nil {
		return invalid("synonyms.refresh_interval", "must be a non-negative duration, got %q", c.Synonyms.RefreshInterval)
	}
	if _, err := c.WatchDebounce(); err != nil {
		return invalid("synonyms.watch_debounce", "must be a non-negative duration, got %q", c.Synonyms.WatchDebounce)
	}
	if c.Synonyms.CacheEntries < 0 {
		return invalid("synonyms.cache_entries", "must be non-negative, got %d", c.Synonyms.CacheEntries)
	}
	if c.Synonyms.Watch && c.Synonyms.Source != source.KindYAML {
		return invalid("synonyms.watch", "is only supported for source %q", source.KindYAML)
	}
	if c.Backend.MaxResults < 0 {
		return invalid("backend.max_results", "must be non-negative, got %d", c.Backend.MaxResults)
	}

	if !strings.EqualFold(c.Server.Transport, "stdio") {
		return invalid("server.transport", "must be 'stdio', got %q", c.Server.Transport)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return invalid("server.log_level", "must be 'debug', 'info', 'warn', or 'error', got %q", c.Server.LogLevel)
	}
	return nil
}

func isKnownSource(kind string) bool {
	for _, k := range source.Kinds() {
		if k == kind {
			return true
		}
	}
	return false
}

func invalid(key, format string, args ...any) error {
	return synerrors.ConfigError(key+" "+fmt.Sprintf(format, args...), nil).WithDetail("key", key)
}

// RefreshInterval returns synonyms.refresh_interval as a duration.
func (c *Config) RefreshInterval() (time.Duration, error) {
	return parseDuration(c.Synonyms.RefreshInterval)
}

// WatchDebounce returns synonyms.watch_debounce as a duration.
func (c *Config) WatchDebounce() (time.Duration, error) {
	return parseDuration(c.Synonyms.WatchDebounce)
}

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", d)
	}
	return d, nil
}

// FindProjectRoot walks up from startDir looking for a .git directory or a
// project config file. It returns startDir (absolute) when neither is found.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	currentDir := absDir
	for {
		if dirExists(filepath.Join(currentDir, ".git")) || projectConfigPath(currentDir) != "" {
			return currentDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return absDir, nil
		}
		currentDir = parentDir
	}
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	var buf bytes.Buffer
	if err := c.Encode(&buf); err != nil {
		return err
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Encode writes the configuration as YAML.
func (c *Config) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return enc.Close()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
