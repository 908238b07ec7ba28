// Package config loads radiowatch configuration from config.yaml.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigFile       = "config.yaml"
	DefaultStoragePath      = ".radiowatch/radiowatch.db"
	DefaultIntervalMinutes  = 5
	DefaultReconnectSeconds = 30
	DefaultSettle           = 3 * time.Second
	DefaultProbeAddress     = "8.8.8.8:53"
	DefaultProbeTimeout     = 3 * time.Second
)

type Config struct {
	Monitor    MonitorConfig    `yaml:"monitor"`
	Storage    StorageConfig    `yaml:"storage"`
	Remote     RemoteConfig     `yaml:"remote"`
	Probe      ProbeConfig      `yaml:"probe"`
	Normalizer NormalizerConfig `yaml:"normalizer"`
	Stations   []StationConfig  `yaml:"stations"`
}

type MonitorConfig struct {
	IntervalMinutes  int  `yaml:"interval_minutes"`
	ShowBrowser      bool `yaml:"show_browser"`
	ReconnectSeconds int  `yaml:"reconnect_seconds"`
	SettleMs         int  `yaml:"settle_ms"`
}

// Interval returns the cycle cooldown.
func (m MonitorConfig) Interval() time.Duration {
	return time.Duration(m.IntervalMinutes) * time.Minute
}

// Reconnect returns the offline re-probe interval.
func (m MonitorConfig) Reconnect() time.Duration {
	return time.Duration(m.ReconnectSeconds) * time.Second
}

// Settle returns the post-navigation settle delay.
func (m MonitorConfig) Settle() time.Duration {
	return time.Duration(m.SettleMs) * time.Millisecond
}

type StorageConfig struct {
	Path       string `yaml:"path"`
	ReportPath string `yaml:"report_path"`
}

type RemoteConfig struct {
	URL       string `yaml:"url"`
	APIKeyEnv string `yaml:"api_key_env"`

	// Resolved from the env var at load time.
	APIKey string `yaml:"-"`
}

type ProbeConfig struct {
	Address        string `yaml:"address"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the connectivity probe timeout.
func (p ProbeConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

type NormalizerConfig struct {
	ExtraMarkers []string `yaml:"extra_markers"`
}

// StationConfig is one locally configured fallback station, used when the
// remote registry is unavailable.
type StationConfig struct {
	Name   string `yaml:"name"`
	URL    string `yaml:"url"`
	Active bool   `yaml:"active"`
}

// Load reads config.yaml from dir, applies defaults, resolves env vars, and
// validates.
func Load(dir string) (*Config, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("config dir is required")
	}

	path := filepath.Join(dir, DefaultConfigFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)
	resolveEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Monitor.IntervalMinutes == 0 {
		cfg.Monitor.IntervalMinutes = DefaultIntervalMinutes
	}
	if cfg.Monitor.ReconnectSeconds == 0 {
		cfg.Monitor.ReconnectSeconds = DefaultReconnectSeconds
	}
	if cfg.Monitor.SettleMs == 0 {
		cfg.Monitor.SettleMs = int(DefaultSettle / time.Millisecond)
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = DefaultStoragePath
	}
	if cfg.Probe.Address == "" {
		cfg.Probe.Address = DefaultProbeAddress
	}
	if cfg.Probe.TimeoutSeconds == 0 {
		cfg.Probe.TimeoutSeconds = int(DefaultProbeTimeout / time.Second)
	}
}

func resolveEnv(cfg *Config) {
	if cfg.Remote.APIKeyEnv != "" {
		cfg.Remote.APIKey = os.Getenv(cfg.Remote.APIKeyEnv)
	}
}

func validate(cfg *Config) error {
	if cfg.Monitor.IntervalMinutes < 1 {
		return errors.New("monitor.interval_minutes: must be at least 1")
	}

	if cfg.Remote.URL != "" {
		u, err := url.Parse(cfg.Remote.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("remote.url: invalid url %q", cfg.Remote.URL)
		}
	}

	hasFallback := false
	for _, st := range cfg.Stations {
		if st.Name == "" || st.URL == "" {
			return errors.New("stations: name and url are required")
		}
		if st.Active {
			hasFallback = true
		}
	}
	if cfg.Remote.URL == "" && !hasFallback {
		return errors.New("either remote.url or at least one active fallback station must be configured")
	}

	return nil
}
