package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Theme          string             `yaml:"theme"`
	KeyMode        string             `yaml:"keymode"` // "vim" or "standard"
	LogLevel       string             `yaml:"log_level"`
	DefaultProfile string             `yaml:"default_profile,omitempty"`
	Editor         EditorConfig       `yaml:"editor"`
	Results        ResultsConfig      `yaml:"results"`
	Completion     CompletionConfig   `yaml:"completion"`
	History        HistoryConfig      `yaml:"history"`
	Catalog        CatalogConfig      `yaml:"catalog"`
	Profiles       map[string]Profile `yaml:"profiles,omitempty"`
}

// EditorConfig holds editor-related settings.
type EditorConfig struct {
	TabSize         int  `yaml:"tab_size"`
	ShowLineNumbers bool `yaml:"show_line_numbers"`
}

// ResultsConfig holds result display settings.
type ResultsConfig struct {
	RowLimit       int `yaml:"row_limit"`
	PageSize       int `yaml:"page_size"`
	MaxColumnWidth int `yaml:"max_column_width"`
}

type CompletionConfig struct {
	Fuzzy bool `yaml:"fuzzy"`
}

type HistoryConfig struct {
	Size int `yaml:"size"`
}

// CatalogConfig controls the on-disk catalog snapshot shown before the
// first live refresh.
type CatalogConfig struct {
	Cache bool `yaml:"cache"`
}

// Profile is a named connection: the adapter, its connection strings and
// any adapter options. Option values are passed to the adapter untouched.
type Profile struct {
	Adapter string         `yaml:"adapter" koanf:"adapter"`
	ConnStr []string       `yaml:"conn_str,omitempty" koanf:"conn_str"`
	Options map[string]any `yaml:"options,omitempty" koanf:"options"`
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Theme:    "default",
		KeyMode:  "standard",
		LogLevel: "info",
		Editor: EditorConfig{
			TabSize:         4,
			ShowLineNumbers: true,
		},
		Results: ResultsConfig{
			RowLimit:       10000,
			PageSize:       1000,
			MaxColumnWidth: 50,
		},
		History: HistoryConfig{Size: 1000},
		Catalog: CatalogConfig{Cache: true},
	}
}

// Dir returns the sqlharbor configuration directory, typically
// ~/.config/sqlharbor.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config dir: %w", err)
	}
	return filepath.Join(base, "sqlharbor"), nil
}

// CacheDir returns the directory for catalog snapshots, typically
// ~/.cache/sqlharbor.
func CacheDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("cache dir: %w", err)
	}
	return filepath.Join(base, "sqlharbor"), nil
}

// DefaultPath returns Dir()/config.yaml.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads a Config from the YAML file at path. If the file does not exist,
// it returns DefaultConfig without error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	for name, p := range cfg.Profiles {
		if p.Adapter == "" {
			return nil, fmt.Errorf("parse config: profile %q has no adapter", name)
		}
	}
	return cfg, nil
}

// LoadDefault loads configuration from DefaultPath.
func LoadDefault() (*Config, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return Load(path)
}

// Save writes the Config to the YAML file at path, creating any necessary
// parent directories.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// SaveDefault writes the Config to DefaultPath.
func (c *Config) SaveDefault() error {
	path, err := DefaultPath()
	if err != nil {
		return err
	}
	return c.Save(path)
}

// ProfileNames returns the configured profile names, sorted.
func (c *Config) ProfileNames() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DisplayString returns "adapter://target" with any URL password masked.
// Embedded engines with no connection string show ":memory:".
func (p Profile) DisplayString() string {
	if len(p.ConnStr) == 0 {
		return p.Adapter + "://:memory:"
	}
	targets := make([]string, len(p.ConnStr))
	for i, s := range p.ConnStr {
		targets[i] = s
		if u, err := url.Parse(s); err == nil && u.User != nil {
			targets[i] = u.Redacted()
		}
	}
	target := strings.Join(targets, ",")
	if strings.Contains(target, "://") {
		return target
	}
	return p.Adapter + "://" + target
}
