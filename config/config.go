package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// ModelKind selects which continuation model backs the AI.
type ModelKind string

const (
	ModelMarkov ModelKind = "markov"
	ModelRemote ModelKind = "remote"
)

// ModelConfig selects and parameterizes the generative model.
type ModelConfig struct {
	Kind ModelKind `json:"kind"`
	URL  string    `json:"url,omitempty"` // remote only
}

// SynthConfig defines the MIDI output used for sound.
type SynthConfig struct {
	PortName string `json:"portName,omitempty"`
	Channel  int    `json:"channel,omitempty"`
}

// UIConfig stores UI preferences.
type UIConfig struct {
	StartOff bool   `json:"startOff,omitempty"` // AI responses disabled at launch
	Palette  string `json:"palette,omitempty"`  // optional .gpl palette path
}

// Config is the main configuration structure.
type Config struct {
	Model       ModelConfig `json:"model"`
	Synth       SynthConfig `json:"synth,omitempty"`
	IgnorePorts []string    `json:"ignorePorts,omitempty"` // input ports that are not keyboards
	UI          UIConfig    `json:"ui,omitempty"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{Kind: ModelMarkov},
	}
}

// ConfigDir returns the config directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-duet"), nil
}

// ConfigPath returns the full path to config.json.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads a config file at an explicit path.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if cfg.Model.Kind == "" {
		cfg.Model.Kind = ModelMarkov
	}
	return cfg, nil
}

// Save writes the config to disk.
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the config to an explicit path.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
