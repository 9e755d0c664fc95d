package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spaghettifunk/cgpu/engine/assets"
	"github.com/spaghettifunk/cgpu/engine/core"
	"github.com/spaghettifunk/cgpu/engine/gpu"
)

// headlessDriver creates instances but reports no physical device.
type headlessDriver struct {
	created   int
	destroyed int
}

func (d *headlessDriver) CreateInstance(gpu.InstanceInfo) error          { d.created++; return nil }
func (d *headlessDriver) DestroyInstance()                               { d.destroyed++ }
func (d *headlessDriver) PhysicalDevices() ([]gpu.PhysicalDevice, error) { return nil, nil }

func noopUpdate(context.Context, *Engine, time.Duration) error { return nil }

func TestNewRejectsIncompleteGame(t *testing.T) {
	if _, err := New(core.DefaultConfig(), &headlessDriver{}, &Game{}); !errors.Is(err, ErrNoUpdate) {
		t.Errorf("New() error = %v, want %v", err, ErrNoUpdate)
	}

	cfg := core.DefaultConfig()
	cfg.Device.MemoryBlockSize = 0
	_, err := New(cfg, &headlessDriver{}, &Game{FnUpdate: noopUpdate})
	if !errors.Is(err, core.ErrConfigInvalid) {
		t.Errorf("New() error = %v, want %v", err, core.ErrConfigInvalid)
	}
}

func TestInitializeReleasesOnFailure(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.Shaders.Dir = t.TempDir()
	drv := &headlessDriver{}
	e, err := New(cfg, drv, &Game{Name: "test", FnUpdate: noopUpdate})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := e.Initialize(); !errors.Is(err, gpu.ErrNoDeviceAtIndex) {
		t.Fatalf("Initialize() error = %v, want %v", err, gpu.ErrNoDeviceAtIndex)
	}
	if drv.created != 1 || drv.destroyed != 1 {
		t.Errorf("instances created/destroyed = %d/%d, want 1/1", drv.created, drv.destroyed)
	}
	if e.Stage() != EngineStageShutdown {
		t.Errorf("Stage() = %d, want %d", e.Stage(), EngineStageShutdown)
	}
	if err := e.Initialize(); !errors.Is(err, ErrInvalidStage) {
		t.Errorf("second Initialize() error = %v, want %v", err, ErrInvalidStage)
	}
}

func TestRunRequiresInitialize(t *testing.T) {
	e, err := New(core.DefaultConfig(), &headlessDriver{}, &Game{FnUpdate: noopUpdate})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := e.Run(context.Background()); !errors.Is(err, ErrInvalidStage) {
		t.Errorf("Run() error = %v, want %v", err, ErrInvalidStage)
	}
	for i := 0; i < 2; i++ {
		if err := e.Shutdown(); err != nil {
			t.Errorf("Shutdown() #%d error = %v", i, err)
		}
	}
}

func TestApplyReloadsDrainsQueue(t *testing.T) {
	e, err := New(core.DefaultConfig(), &headlessDriver{}, &Game{FnUpdate: noopUpdate})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	loader := assets.NewShaderLoader(t.TempDir(), nil)
	// Sources without a built shader are left to the next Pipeline call.
	e.shaders = assets.NewShaderLibrary(nil, gpu.Device{}, loader)

	e.queueReload(assets.ShaderSource{Name: "pattern"})
	e.queueReload(assets.ShaderSource{Name: "invert"})
	e.applyReloads()
	if len(e.reloads) != 0 {
		t.Errorf("len(reloads) = %d after applyReloads, want 0", len(e.reloads))
	}
}
