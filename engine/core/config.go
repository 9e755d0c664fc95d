package core

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pelletier/go-toml/v2"
)

const DefaultMemoryBlockSize uint64 = 64 * 1024 * 1024

type InstanceConfig struct {
	AppName    string    `toml:"app_name"`
	Version    [3]uint32 `toml:"version"`
	Validation bool      `toml:"validation"`
	// Loader picks how vkGetInstanceProcAddr is resolved: "default" or "glfw".
	Loader string `toml:"loader"`
}

type DeviceConfig struct {
	Index           uint32 `toml:"index"`
	MemoryBlockSize uint64 `toml:"memory_block_size"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type ShaderConfig struct {
	Dir   string `toml:"dir"`
	Watch bool   `toml:"watch"`
}

// TestbedConfig drives the demo workloads. Zero frames runs until the
// process is interrupted.
type TestbedConfig struct {
	Frames    uint64 `toml:"frames"`
	Width     uint32 `toml:"width"`
	Height    uint32 `toml:"height"`
	OutputDir string `toml:"output_dir"`
}

type Config struct {
	Instance InstanceConfig `toml:"instance"`
	Device   DeviceConfig   `toml:"device"`
	Log      LogConfig      `toml:"log"`
	Shaders  ShaderConfig   `toml:"shaders"`
	Testbed  TestbedConfig  `toml:"testbed"`
}

func DefaultConfig() *Config {
	return &Config{
		Instance: InstanceConfig{
			AppName: "cgpu",
			Version: [3]uint32{0, 1, 0},
			Loader:  "default",
		},
		Device: DeviceConfig{
			MemoryBlockSize: DefaultMemoryBlockSize,
		},
		Log: LogConfig{
			Level: "info",
		},
		Shaders: ShaderConfig{
			Dir: "assets/shaders",
		},
		Testbed: TestbedConfig{
			Frames:    60,
			Width:     256,
			Height:    256,
			OutputDir: "out",
		},
	}
}

// LoadConfig overlays the TOML file at path on top of DefaultConfig. A
// missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		LogDebug("config file %s not found, using defaults", path)
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConfigInvalid, path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Instance.Loader {
	case "", "default", "glfw":
	default:
		return fmt.Errorf("%w: unknown loader %q", ErrConfigInvalid, c.Instance.Loader)
	}
	if c.Device.MemoryBlockSize == 0 {
		return fmt.Errorf("%w: memory_block_size must be positive", ErrConfigInvalid)
	}
	if c.Testbed.Width == 0 || c.Testbed.Height == 0 {
		return fmt.Errorf("%w: testbed extent %dx%d", ErrConfigInvalid, c.Testbed.Width, c.Testbed.Height)
	}
	return nil
}
