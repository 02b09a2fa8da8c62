// Package config provides TOML configuration loading for xpref.
package config

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Defaults applied to unset values.
const (
	DefaultGroup            = "239.255.1.1"
	DefaultPort             = 49707
	DefaultDiscoveryTimeout = "3s"
	DefaultMaxRetryElapsed  = "5m"
	DefaultFrequency        = 10
	DefaultStorePath        = "~/.local/state/xpref/hosts.db"
	DefaultMetricsPath      = "/metrics"
	DefaultLogLevel         = "info"
	DefaultAnnounceInterval = "1s"
)

// Config is the top-level configuration structure.
type Config struct {
	Discovery DiscoveryConfig `toml:"discovery"`
	Stream    StreamConfig    `toml:"stream"`
	Datarefs  []DatarefConfig `toml:"dataref"`
	Store     StoreConfig     `toml:"store"`
	Metrics   MetricsConfig   `toml:"metrics"`
	Log       LogConfig       `toml:"log"`
	Announce  AnnounceConfig  `toml:"announce"`
}

// DiscoveryConfig holds settings for the beacon listener.
type DiscoveryConfig struct {
	Group        string `toml:"group"`
	Port         int    `toml:"port"`
	Interface    string `toml:"interface"`
	NetworkRange string `toml:"network_range"`
	// Timeout of one discovery attempt; "0s" waits forever.
	Timeout string `toml:"timeout"`
	// Retry re-runs discovery with backoff until MaxRetryElapsed passes.
	Retry           bool   `toml:"retry"`
	MaxRetryElapsed string `toml:"max_retry_elapsed"`
}

// StreamConfig holds defaults for subscriptions.
type StreamConfig struct {
	DefaultFrequency int `toml:"default_frequency"`
}

// DatarefConfig is one dataref to subscribe to.
type DatarefConfig struct {
	Channel   string `toml:"channel"`
	Index     int32  `toml:"index"`
	Frequency int32  `toml:"frequency"`
}

// StoreConfig holds settings for the discovered host cache.
type StoreConfig struct {
	Path string `toml:"path"`
}

// MetricsConfig holds settings for Prometheus exposition. Empty Listen disables it.
type MetricsConfig struct {
	Listen string `toml:"listen"`
	Path   string `toml:"path"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// AnnounceConfig describes the beacon emitted by the announce command.
type AnnounceConfig struct {
	Hostname   string `toml:"hostname"`
	Port       uint16 `toml:"port"`
	RaknetPort uint16 `toml:"raknet_port"`
	SimVersion int32  `toml:"sim_version"`
	Interval   string `toml:"interval"`
}

// ParseTimeout parses the discovery timeout string to a time.Duration.
func (d *DiscoveryConfig) ParseTimeout() (time.Duration, error) {
	if d.Timeout == "" {
		return 3 * time.Second, nil
	}
	return time.ParseDuration(d.Timeout)
}

// ParseMaxRetryElapsed parses the retry budget string to a time.Duration.
func (d *DiscoveryConfig) ParseMaxRetryElapsed() (time.Duration, error) {
	if d.MaxRetryElapsed == "" {
		return 5 * time.Minute, nil
	}
	return time.ParseDuration(d.MaxRetryElapsed)
}

// ParseInterval parses the announce interval string to a time.Duration.
func (a *AnnounceConfig) ParseInterval() (time.Duration, error) {
	if a.Interval == "" {
		return time.Second, nil
	}
	return time.ParseDuration(a.Interval)
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.expandPaths()
	return cfg
}

// Load reads and parses a TOML config file, applying defaults for unset values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	applyDefaults(cfg)
	cfg.expandPaths()
	return cfg, nil
}

// LoadOrDefault behaves like Load but falls back to Default when path does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

func (cfg *Config) expandPaths() {
	cfg.Store.Path = ExpandPath(cfg.Store.Path)
}

// ExpandPath expands tilde (~) to the user's home directory.
func ExpandPath(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	usr, err := user.Current()
	if err != nil {
		return path
	}
	if path == "~" {
		return usr.HomeDir
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(usr.HomeDir, path[2:])
	}
	return path
}

func applyDefaults(cfg *Config) {

	// Discovery defaults
	if cfg.Discovery.Group == "" {
		cfg.Discovery.Group = DefaultGroup
	}
	if cfg.Discovery.Port == 0 {
		cfg.Discovery.Port = DefaultPort
	}
	if cfg.Discovery.Timeout == "" {
		cfg.Discovery.Timeout = DefaultDiscoveryTimeout
	}
	if cfg.Discovery.MaxRetryElapsed == "" {
		cfg.Discovery.MaxRetryElapsed = DefaultMaxRetryElapsed
	}

	// Stream defaults
	if cfg.Stream.DefaultFrequency == 0 {
		cfg.Stream.DefaultFrequency = DefaultFrequency
	}
	for i := range cfg.Datarefs {
		if cfg.Datarefs[i].Frequency == 0 {
			cfg.Datarefs[i].Frequency = int32(cfg.Stream.DefaultFrequency)
		}
	}

	if cfg.Store.Path == "" {
		cfg.Store.Path = DefaultStorePath
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}

	// Announce defaults mirror an X-Plane 11.55 master.
	if cfg.Announce.Hostname == "" {
		cfg.Announce.Hostname, _ = os.Hostname()
	}
	if cfg.Announce.Port == 0 {
		cfg.Announce.Port = 49000
	}
	if cfg.Announce.RaknetPort == 0 {
		cfg.Announce.RaknetPort = 49001
	}
	if cfg.Announce.SimVersion == 0 {
		cfg.Announce.SimVersion = 115502
	}
	if cfg.Announce.Interval == "" {
		cfg.Announce.Interval = DefaultAnnounceInterval
	}
}
