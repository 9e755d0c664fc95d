package core

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Device.MemoryBlockSize != DefaultMemoryBlockSize {
		t.Errorf("MemoryBlockSize = %d, want %d", cfg.Device.MemoryBlockSize, DefaultMemoryBlockSize)
	}
	if cfg.Instance.AppName != "cgpu" {
		t.Errorf("AppName = %q, want %q", cfg.Instance.AppName, "cgpu")
	}
}

func TestLoadConfigOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[instance]
app_name = "pathtracer"
version = [1, 2, 3]
validation = true

[device]
index = 1

[log]
level = "debug"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Instance.AppName != "pathtracer" {
		t.Errorf("AppName = %q, want %q", cfg.Instance.AppName, "pathtracer")
	}
	if cfg.Instance.Version != [3]uint32{1, 2, 3} {
		t.Errorf("Version = %v, want [1 2 3]", cfg.Instance.Version)
	}
	if !cfg.Instance.Validation {
		t.Error("Validation = false, want true")
	}
	if cfg.Device.Index != 1 {
		t.Errorf("Index = %d, want 1", cfg.Device.Index)
	}
	// Keys absent from the file keep their defaults.
	if cfg.Device.MemoryBlockSize != DefaultMemoryBlockSize {
		t.Errorf("MemoryBlockSize = %d, want %d", cfg.Device.MemoryBlockSize, DefaultMemoryBlockSize)
	}
	if cfg.Instance.Loader != "default" {
		t.Errorf("Loader = %q, want %q", cfg.Instance.Loader, "default")
	}
}

func TestLoadConfigRejectsUnknownLoader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[instance]\nloader = \"sdl\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); !errors.Is(err, ErrConfigInvalid) {
		t.Errorf("LoadConfig() error = %v, want %v", err, ErrConfigInvalid)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"glfw loader", func(c *Config) { c.Instance.Loader = "glfw" }, true},
		{"zero block size", func(c *Config) { c.Device.MemoryBlockSize = 0 }, false},
		{"zero testbed width", func(c *Config) { c.Testbed.Width = 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate() error = %v, want nil", err)
			}
			if !tt.ok && !errors.Is(err, ErrConfigInvalid) {
				t.Errorf("Validate() error = %v, want %v", err, ErrConfigInvalid)
			}
		})
	}
}
