// Package config loads and persists the application configuration kept
// under the kotoba dot-directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	configDirName  = ".kotoba"
	configFileName = "config.yaml"
)

// ProviderType selects the provider client implementation.
type ProviderType string

const (
	ProviderOpenAI    ProviderType = "openai"
	ProviderAnthropic ProviderType = "anthropic"
	ProviderGoogle    ProviderType = "google"
)

// Provider describes one upstream LLM provider.
type Provider struct {
	Type    ProviderType `yaml:"type" json:"type"`
	APIKey  string       `yaml:"api_key" json:"api_key"`
	APIBase string       `yaml:"api_base,omitempty" json:"api_base,omitempty"`
	Model   string       `yaml:"model" json:"model"`
}

// Translation holds the language pair the assistant works with.
type Translation struct {
	SourceLanguage string `yaml:"source_language,omitempty" json:"source_language,omitempty"`
	TargetLanguage string `yaml:"target_language,omitempty" json:"target_language,omitempty"`
}

// Compaction overrides the default payload budget. Zero values keep the
// built-in defaults.
type Compaction struct {
	HardLimitBytes   int `yaml:"hard_limit_bytes,omitempty" json:"hard_limit_bytes,omitempty"`
	SafetyMargin     int `yaml:"safety_margin_bytes,omitempty" json:"safety_margin_bytes,omitempty"`
	ImagesKeptInTail int `yaml:"images_kept_in_tail,omitempty" json:"images_kept_in_tail,omitempty"`
	SoftFloor        int `yaml:"soft_floor,omitempty" json:"soft_floor,omitempty"`
	EmergencyFloor   int `yaml:"emergency_floor,omitempty" json:"emergency_floor,omitempty"`
}

// Log configures the rotating log file. An empty File logs to stderr
// only.
type Log struct {
	File       string `yaml:"file,omitempty" json:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty" json:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty" json:"max_backups,omitempty"`
}

// Metrics configures the OTel exporter. An empty OTLPEndpoint selects
// the stdout exporter.
type Metrics struct {
	Enabled      bool   `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	OTLPEndpoint string `yaml:"otlp_endpoint,omitempty" json:"otlp_endpoint,omitempty"`
}

// Config is the persisted application configuration.
type Config struct {
	ServerPort int    `yaml:"server_port" json:"server_port"`
	JWTSecret  string `yaml:"jwt_secret" json:"jwt_secret"`
	// ControlPasswordHash is a bcrypt hash gating token generation. Empty
	// means no password is required.
	ControlPasswordHash string      `yaml:"control_password_hash,omitempty" json:"-"`
	Provider            Provider    `yaml:"provider" json:"provider"`
	Translation         Translation `yaml:"translation,omitempty" json:"translation,omitempty"`
	Compaction          Compaction  `yaml:"compaction,omitempty" json:"compaction,omitempty"`
	Log                 Log         `yaml:"log,omitempty" json:"log,omitempty"`
	Metrics             Metrics     `yaml:"metrics,omitempty" json:"metrics,omitempty"`

	configFile string
	configDir  string
	mu         sync.RWMutex
}

// Option is a functional option for NewConfig.
type Option func(*options)

type options struct {
	configDir string
}

// WithConfigDir sets a custom config directory.
func WithConfigDir(dir string) Option {
	return func(o *options) {
		o.configDir = dir
	}
}

// DefaultConfigDir returns ~/.kotoba, or a relative fallback when the
// home directory cannot be resolved.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return configDirName
	}
	return filepath.Join(home, configDirName)
}

// NewConfig loads the configuration, creating the directory and a
// default file on first run.
func NewConfig(opts ...Option) (*Config, error) {
	o := &options{configDir: DefaultConfigDir()}
	for _, opt := range opts {
		opt(o)
	}

	if err := os.MkdirAll(o.configDir, 0700); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	cfg := defaultConfig()
	cfg.configDir = o.configDir
	cfg.configFile = filepath.Join(o.configDir, configFileName)

	data, err := os.ReadFile(cfg.configFile)
	if os.IsNotExist(err) {
		if err := cfg.Save(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		ServerPort: 8765,
		Provider: Provider{
			Type:  ProviderAnthropic,
			Model: "claude-sonnet-4-5",
		},
		Translation: Translation{
			SourceLanguage: "Japanese",
			TargetLanguage: "English",
		},
	}
}

// ConfigDir returns the directory the config lives in.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// ConfigFile returns the path of the config file.
func (c *Config) ConfigFile() string {
	return c.configFile
}

// DataDir returns the directory for the session database.
func (c *Config) DataDir() string {
	return filepath.Join(c.configDir, "data")
}

// Save writes the configuration back to disk.
func (c *Config) Save() error {
	c.mu.RLock()
	data, err := yaml.Marshal(c)
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(c.configFile, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Reload re-reads the config file in place.
func (c *Config) Reload() error {
	data, err := os.ReadFile(c.configFile)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	fresh := defaultConfig()
	if err := yaml.Unmarshal(data, fresh); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	c.mu.Lock()
	c.ServerPort = fresh.ServerPort
	c.JWTSecret = fresh.JWTSecret
	c.ControlPasswordHash = fresh.ControlPasswordHash
	c.Provider = fresh.Provider
	c.Translation = fresh.Translation
	c.Compaction = fresh.Compaction
	c.Log = fresh.Log
	c.Metrics = fresh.Metrics
	c.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the mutable configuration fields, safe to
// read while a watcher reloads in the background.
func (c *Config) Snapshot() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Config{
		ServerPort:          c.ServerPort,
		JWTSecret:           c.JWTSecret,
		ControlPasswordHash: c.ControlPasswordHash,
		Provider:            c.Provider,
		Translation:         c.Translation,
		Compaction:          c.Compaction,
		Log:                 c.Log,
		Metrics:             c.Metrics,
	}
}
