package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadOrDefaultMissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	want := defaultConfig()
	if cfg.Sockets != want.Sockets {
		t.Errorf("Sockets = %+v, want %+v", cfg.Sockets, want.Sockets)
	}
	if cfg.Debug.Addr != want.Debug.Addr {
		t.Errorf("Debug.Addr = %q, want %q", cfg.Debug.Addr, want.Debug.Addr)
	}
}

func TestLoadOrDefaultOverridesMerge(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "debug:\n  enabled: true\n  addr: \"0.0.0.0:9999\"\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadOrDefault(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug.Enabled {
		t.Error("Debug.Enabled = false, want true")
	}
	if cfg.Debug.Addr != "0.0.0.0:9999" {
		t.Errorf("Debug.Addr = %q, want 0.0.0.0:9999", cfg.Debug.Addr)
	}
	// Untouched sections keep their defaults.
	if cfg.Sockets.EventSocketName != defaultConfig().Sockets.EventSocketName {
		t.Error("unrelated section should keep its default")
	}
}

func TestLoadOrDefaultInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("not: [valid: yaml"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadOrDefault(path); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestDefaultConfigPathUsesXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdgtest")
	got := DefaultConfigPath()
	want := "/tmp/xdgtest/hyprtagd/config.yaml"
	if got != want {
		t.Errorf("DefaultConfigPath() = %q, want %q", got, want)
	}
}
