package config

import (
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed config.toml.sample
var configTemplate string

const (
	DefaultAPIURL     = "https://api.openalex.org"
	DefaultEntityType = "works"
	DefaultListen     = "127.0.0.1:8080"
	DefaultRetryMax   = 3
	DefaultTimeout    = 30 * time.Second

	// serve session limits
	DefaultMaxSessions = 1024
	DefaultSessionTTL  = 30 * time.Minute

	appName = "serp"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	APIURL            string   `toml:"api_url"`
	Mailto            string   `toml:"mailto"`
	StorageDir        string   `toml:"storage_dir"`
	Timeout           Duration `toml:"timeout"`
	RetryMax          int      `toml:"retry_max"`
	DefaultEntityType string   `toml:"default_entity_type"`
	FacetsFile        string   `toml:"facets_file,omitempty"`
	Listen            string   `toml:"listen"`
	MaxSessions       int      `toml:"max_sessions"`
	SessionTTL        Duration `toml:"session_ttl"`
	Debug             bool     `toml:"debug"`
	DebugServices     []string `toml:"debug_services,omitempty"`
}

type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func GetDefaultConfig() (*Config, error) {
	storageDir, err := GetDefaultStorageDir()
	if err != nil {
		return nil, fmt.Errorf("getting default storage directory: %w", err)
	}
	return &Config{
		APIURL:            DefaultAPIURL,
		StorageDir:        storageDir,
		Timeout:           Duration{DefaultTimeout},
		RetryMax:          DefaultRetryMax,
		DefaultEntityType: DefaultEntityType,
		Listen:            DefaultListen,
		MaxSessions:       DefaultMaxSessions,
		SessionTTL:        Duration{DefaultSessionTTL},
	}, nil
}

// LoadConfig reads the config file at configPath. A missing file yields the
// defaults; missing keys are filled with their defaults.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return GetDefaultConfig()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Config{RetryMax: -1}
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if config.StorageDir == "" {
		storageDir, err := GetDefaultStorageDir()
		if err != nil {
			return nil, fmt.Errorf("getting default storage directory: %w", err)
		}
		config.StorageDir = storageDir
	}
	if config.APIURL == "" {
		config.APIURL = DefaultAPIURL
	}
	if config.Timeout.Duration == 0 {
		config.Timeout = Duration{DefaultTimeout}
	}
	if config.RetryMax < 0 {
		config.RetryMax = DefaultRetryMax
	}
	if config.DefaultEntityType == "" {
		config.DefaultEntityType = DefaultEntityType
	}
	if config.Listen == "" {
		config.Listen = DefaultListen
	}
	if config.MaxSessions == 0 {
		config.MaxSessions = DefaultMaxSessions
	}
	if config.SessionTTL.Duration == 0 {
		config.SessionTTL = Duration{DefaultSessionTTL}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate reports values that cannot work at all.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: api_url %q is not an http(s) URL", ErrInvalidConfig, c.APIURL)
	}
	if c.Timeout.Duration < 0 {
		return fmt.Errorf("%w: negative timeout %s", ErrInvalidConfig, c.Timeout)
	}
	if c.MaxSessions < 0 || c.SessionTTL.Duration < 0 {
		return fmt.Errorf("%w: session limits must not be negative", ErrInvalidConfig)
	}
	if c.FacetsFile != "" {
		if _, err := os.Stat(c.FacetsFile); err != nil {
			return fmt.Errorf("%w: facets_file: %v", ErrInvalidConfig, err)
		}
	}
	return nil
}

// HistoryPath is the navigation history database inside the storage dir.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.StorageDir, "history.db")
}

func (c *Config) SaveConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(configPath, data, 0644)
}

// SaveTemplateConfig writes the commented sample config with this config's
// storage directory.
func (c *Config) SaveTemplateConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	template, err := c.generateConfigTemplate()
	if err != nil {
		return fmt.Errorf("generating config template: %w", err)
	}
	return os.WriteFile(configPath, []byte(template), 0644)
}

func (c *Config) generateConfigTemplate() (string, error) {
	storageDir := c.StorageDir
	if storageDir == "" {
		var err error
		storageDir, err = GetDefaultStorageDir()
		if err != nil {
			return "", fmt.Errorf("getting default storage directory: %w", err)
		}
	}
	out := strings.Replace(configTemplate, "/home/user/.local/share/serp", storageDir, 1)
	if c.FacetsFile != "" {
		out = strings.Replace(out, `# facets_file = "/home/user/.config/serp/facets.toml"`, fmt.Sprintf("facets_file = %q", c.FacetsFile), 1)
	}
	return out, nil
}

// GetDefaultStorageDir returns $XDG_DATA_HOME/serp (or ~/.local/share/serp),
// creating it when missing.
func GetDefaultStorageDir() (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	dir := filepath.Join(dataDir, appName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating storage directory %s: %w", dir, err)
	}
	return dir, nil
}

// GetConfigDir returns $XDG_CONFIG_HOME/serp (or ~/.config/serp), creating it
// when missing.
func GetConfigDir() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	dir := filepath.Join(configDir, appName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory %s: %w", dir, err)
	}
	return dir, nil
}

func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}
