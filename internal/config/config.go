// Package config loads hyprtagd's daemon settings. Shape and loading
// behavior directly adapted from the teacher's internal/config package:
// same nested-struct-per-concern layout, same XDG-fallback defaulting,
// same gopkg.in/yaml.v3 dependency.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the daemon's full settings tree.
type Config struct {
	Sockets  SocketsConfig `yaml:"sockets"`
	Health   HealthConfig  `yaml:"health"`
	Debug    DebugConfig   `yaml:"debug"`
	LogLevel string        `yaml:"log_level"`
}

// SocketsConfig overrides the default socket file names within the
// compositor's runtime directory.
type SocketsConfig struct {
	EventSocketName   string `yaml:"event_socket_name"`
	ControlSocketName string `yaml:"control_socket_name"`
}

// HealthConfig controls the compositor liveness watcher (internal/health).
type HealthConfig struct {
	CheckInterval    time.Duration `yaml:"check_interval"`
	FailureThreshold int           `yaml:"failure_threshold"`
}

// DebugConfig controls the optional read-only introspection server
// (internal/debugserver).
type DebugConfig struct {
	Enabled           bool          `yaml:"enabled"`
	Addr              string        `yaml:"addr"`
	RedactAddresses   bool          `yaml:"redact_addresses"`
	BroadcastThrottle time.Duration `yaml:"broadcast_throttle"`
}

// defaultConfig returns the built-in defaults used when no config file is
// present or a field is unset.
func defaultConfig() *Config {
	return &Config{
		Sockets: SocketsConfig{
			EventSocketName:   ".socket2.sock",
			ControlSocketName: ".hyprtagctl.sock",
		},
		Health: HealthConfig{
			CheckInterval:    10 * time.Second,
			FailureThreshold: 3,
		},
		Debug: DebugConfig{
			Enabled:           false,
			Addr:              "127.0.0.1:7878",
			RedactAddresses:   false,
			BroadcastThrottle: 100 * time.Millisecond,
		},
		LogLevel: "info",
	}
}

// DefaultConfigPath returns $XDG_CONFIG_HOME/hyprtagd/config.yaml, falling
// back to ~/.config/hyprtagd/config.yaml.
func DefaultConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "hyprtagd", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "hyprtagd-config.yaml"
	}
	return filepath.Join(home, ".config", "hyprtagd", "config.yaml")
}

// LoadOrDefault reads path if it exists, merging onto the built-in
// defaults; returns pure defaults if path does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}
