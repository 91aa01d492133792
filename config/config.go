// Package config loads and saves the YAML settings file, peer profiles
// included.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPort            = 12345
	DefaultDownloads       = "Vortex_Downloads"
	DefaultHistory         = "chat_history.log"
	DefaultDecisionTimeout = 120 * time.Second
)

var ErrInvalidPort = errors.New("port must be between 1 and 65535")

// Profile remembers who we are when talking to a given peer.
type Profile struct {
	Name string `yaml:"name"`
	Me   string `yaml:"me"`
	Addr string `yaml:"addr"`
}

type Config struct {
	Name            string        `yaml:"name,omitempty"`
	Port            int           `yaml:"port"`
	Downloads       string        `yaml:"downloads"`
	History         string        `yaml:"history"`
	DecisionTimeout time.Duration `yaml:"decision_timeout"`
	Profiles        []Profile     `yaml:"profiles,omitempty"`
	LastProfile     string        `yaml:"last_profile,omitempty"`
}

func Default() *Config {
	return &Config{
		Port:            DefaultPort,
		Downloads:       DefaultDownloads,
		History:         DefaultHistory,
		DecisionTimeout: DefaultDecisionTimeout,
	}
}

// Path is ~/vortex/config.yaml, next to the logs.
func Path() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(home, "vortex", "config.yaml"), nil
}

// Load reads path. A missing file is not an error, it yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.fill()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) fill() {
	d := Default()

	if c.Port == 0 {
		c.Port = d.Port
	}

	if c.Downloads == "" {
		c.Downloads = d.Downloads
	}

	if c.History == "" {
		c.History = d.History
	}

	if c.DecisionTimeout <= 0 {
		c.DecisionTimeout = d.DecisionTimeout
	}
}

func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Port)
	}

	return nil
}

func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

func (c *Config) Profile(name string) (Profile, bool) {
	for _, p := range c.Profiles {
		if p.Name == name {
			return p, true
		}
	}

	return Profile{}, false
}

// Use stores p, replacing a profile of the same name, and marks it as the
// one to offer on the next start.
func (c *Config) Use(p Profile) {
	c.LastProfile = p.Name

	for i := range c.Profiles {
		if c.Profiles[i].Name == p.Name {
			c.Profiles[i] = p
			return
		}
	}

	c.Profiles = append(c.Profiles, p)
}
