// Package config handles configuration loading for workflowd.
// It layers built-in defaults, an optional YAML file, and environment
// variables (WORKFLOWD_* plus ANTHROPIC_API_KEY).
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/ShunsukeHayashi/workflowd/internal/engine"
)

// Config holds all configuration for workflowd.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Bedrock   BedrockConfig   `mapstructure:"bedrock"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Broadcast BroadcastConfig `mapstructure:"broadcast"`
	Journal   JournalConfig   `mapstructure:"journal"`
	Agents    AgentsConfig    `mapstructure:"agents"`
	Decompose DecomposeConfig `mapstructure:"decompose"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Listen is the address the HTTP server binds, e.g. ":9002".
	Listen string `mapstructure:"listen"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// BedrockConfig routes model calls through AWS Bedrock when enabled.
type BedrockConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Region  string `mapstructure:"region"`
	Profile string `mapstructure:"profile"`
}

// SchedulerConfig holds the background loop intervals.
type SchedulerConfig struct {
	AssignInterval   time.Duration `mapstructure:"assign_interval"`
	ProgressInterval time.Duration `mapstructure:"progress_interval"`
}

// BroadcastConfig holds event fan-out settings.
type BroadcastConfig struct {
	// BufferSize is the per-subscriber event buffer; a subscriber that
	// falls this far behind is dropped.
	BufferSize int `mapstructure:"buffer_size"`
}

// JournalConfig holds the event journal settings.
type JournalConfig struct {
	// Path is the SQLite file for the event journal; empty disables it.
	Path string `mapstructure:"path"`
	// RecentLimit is how many journaled events the dashboard returns.
	RecentLimit int `mapstructure:"recent_limit"`
}

// AgentsConfig holds agent seeding settings.
type AgentsConfig struct {
	// CatalogPath is a YAML agent-template catalog; empty uses the
	// built-in defaults.
	CatalogPath string `mapstructure:"catalog_path"`
}

// DecomposeConfig holds decomposition splice settings.
type DecomposeConfig struct {
	// DependencyPolicy controls how dependents of a decomposed task are
	// rewritten: keep, rewrite-all, or rewrite-last.
	DependencyPolicy string `mapstructure:"dependency_policy"`
}

// DependencyPolicy returns the validated policy, falling back to keep.
func (c *Config) DependencyPolicy() engine.DependencyPolicy {
	p := engine.DependencyPolicy(c.Decompose.DependencyPolicy)
	if !p.Valid() {
		return engine.DependencyPolicyKeep
	}
	return p
}

// Loader loads configuration and supports hot reload of the backing
// file.
type Loader struct {
	v    *viper.Viper
	path string
}

// NewLoader creates a Loader. If path is empty, workflowd.yaml is looked
// up in the working directory and in the user config directory.
func NewLoader(path string) *Loader {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("workflowd")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(userConfigDir())
	}

	v.SetEnvPrefix("WORKFLOWD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")

	return &Loader{v: v, path: path}
}

// Load reads the configuration. A missing config file is not an error;
// defaults and environment variables still apply.
func (l *Loader) Load() (*Config, error) {
	if err := l.v.ReadInConfig(); err != nil {
		if l.path != "" {
			return nil, fmt.Errorf("reading config %s: %w", l.path, err)
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := &Config{}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

// Watch re-loads the configuration whenever the backing file changes and
// hands the result to onChange. Only fields read per-operation (loop
// intervals are fixed at startup) pick up changes.
func (l *Loader) Watch(onChange func(*Config)) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		cfg := &Config{}
		if err := l.v.Unmarshal(cfg); err != nil {
			log.Printf("[config] reload after %s: %v", e.Name, err)
			return
		}
		log.Printf("[config] reloaded from %s", e.Name)
		onChange(cfg)
	})
	l.v.WatchConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", ":9002")
	v.SetDefault("anthropic.model", "")
	v.SetDefault("bedrock.enabled", false)
	v.SetDefault("scheduler.assign_interval", 10*time.Second)
	v.SetDefault("scheduler.progress_interval", 5*time.Second)
	v.SetDefault("broadcast.buffer_size", 64)
	v.SetDefault("journal.path", "")
	v.SetDefault("journal.recent_limit", 50)
	v.SetDefault("agents.catalog_path", "")
	v.SetDefault("decompose.dependency_policy", string(engine.DependencyPolicyKeep))
}

// userConfigDir returns the per-user config directory for workflowd.
func userConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "workflowd")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "workflowd")
}
