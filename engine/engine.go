package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/spaghettifunk/cgpu/engine/assets"
	"github.com/spaghettifunk/cgpu/engine/core"
	"github.com/spaghettifunk/cgpu/engine/gpu"
	"github.com/spaghettifunk/cgpu/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
	// Engine released every resource
	EngineStageShutdown
)

var (
	ErrInvalidStage = errors.New("engine is not in the required stage")
	ErrNoUpdate     = errors.New("game has no update function")
)

// Engine owns the gpu instance and device shared by every workload, the
// shader library with its optional hot reload, and the frame loop.
type Engine struct {
	currentStage Stage
	config       *core.Config
	gameInstance *Game
	driver       gpu.Driver

	jobs      *systems.JobSystem
	instance  *gpu.Instance
	device    gpu.Device
	limits    gpu.Limits
	destroyer *gpu.DeferredDestroyer
	metrics   *core.Metrics

	shaderLoader *assets.ShaderLoader
	shaders      *assets.ShaderLibrary
	watcher      *assets.Watcher

	// reloads are queued by the watcher and applied between frames, so a
	// frame never records against a pipeline a reload destroyed.
	reloadMutex sync.Mutex
	reloads     []assets.ShaderSource

	clock    *core.Clock
	lastTime time.Duration
	frames   uint64
}

func New(cfg *core.Config, driver gpu.Driver, g *Game) (*Engine, error) {
	if g == nil || g.FnUpdate == nil {
		return nil, ErrNoUpdate
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		currentStage: EngineStageUninitialized,
		config:       cfg,
		gameInstance: g,
		driver:       driver,
		clock:        core.NewClock(),
	}, nil
}

// Initialize brings up the gpu stack and the shader library. Whatever was
// created before a failure is released again.
func (e *Engine) Initialize() (err error) {
	if e.currentStage != EngineStageUninitialized {
		return fmt.Errorf("%w: initialize in stage %d", ErrInvalidStage, e.currentStage)
	}
	e.currentStage = EngineStageInitializing
	defer func() {
		if err != nil {
			core.LogError("engine initialization failed: %s", err)
			e.release()
			e.currentStage = EngineStageShutdown
		}
	}()

	if err := core.LogSetLevel(e.config.Log.Level); err != nil {
		return err
	}

	e.jobs, err = systems.NewJobSystem(runtime.NumCPU(), 64)
	if err != nil {
		return err
	}

	inst := e.config.Instance
	e.instance, err = gpu.NewInstance(e.driver, gpu.InstanceOptions{
		AppName:    inst.AppName,
		AppVersion: gpu.MakeVersion(inst.Version[0], inst.Version[1], inst.Version[2]),
		Validation: inst.Validation,
	})
	if err != nil {
		return err
	}

	e.device, err = e.instance.CreateDevice(int(e.config.Device.Index), gpu.DeviceOptions{
		MemoryBlockSize: e.config.Device.MemoryBlockSize,
	})
	if err != nil {
		return err
	}
	e.limits, err = e.instance.Limits(e.device)
	if err != nil {
		return err
	}
	e.destroyer = gpu.NewDeferredDestroyer(e.instance, e.device)
	e.metrics = core.NewMetrics(e.limits.TimestampPeriod, 0)

	if err := e.initializeShaders(); err != nil {
		return err
	}

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(e); err != nil {
			return err
		}
	}

	e.currentStage = EngineStageInitialized
	core.LogInfo("engine initialized for %s", e.gameInstance.Name)
	return nil
}

func (e *Engine) initializeShaders() error {
	dir := e.config.Shaders.Dir
	e.shaderLoader = assets.NewShaderLoader(dir, e.jobs)
	e.shaders = assets.NewShaderLibrary(e.instance, e.device, e.shaderLoader)

	if _, err := os.Stat(dir); err != nil {
		core.LogWarn("shader directory %s not available: %s", dir, err)
		return nil
	}
	sources, err := e.shaderLoader.LoadAll()
	if err != nil {
		return err
	}
	core.LogInfo("loaded %d shaders from %s", len(sources), dir)

	if !e.config.Shaders.Watch {
		return nil
	}
	e.watcher, err = assets.NewWatcher(e.shaderLoader, e.queueReload)
	if err != nil {
		return err
	}
	return e.watcher.Start()
}

func (e *Engine) queueReload(src assets.ShaderSource) {
	e.reloadMutex.Lock()
	e.reloads = append(e.reloads, src)
	e.reloadMutex.Unlock()
}

func (e *Engine) applyReloads() {
	e.reloadMutex.Lock()
	pending := e.reloads
	e.reloads = nil
	e.reloadMutex.Unlock()

	for _, src := range pending {
		if err := e.shaders.Reload(src); err != nil {
			core.LogError("reloading shader %s: %s", src.Name, err)
		}
	}
}

// Run calls the game update until ctx is done or the game returns ErrQuit.
// Every iteration advances the deferred destroyer by one frame.
func (e *Engine) Run(ctx context.Context) error {
	if e.currentStage != EngineStageInitialized {
		return fmt.Errorf("%w: run in stage %d", ErrInvalidStage, e.currentStage)
	}
	e.currentStage = EngineStageRunning
	e.clock.Start()
	e.lastTime = 0

	for {
		select {
		case <-ctx.Done():
			core.LogInfo("context done, leaving the engine loop")
			return nil
		default:
		}

		e.applyReloads()

		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime

		frameStart := time.Now()
		err := e.gameInstance.FnUpdate(ctx, e, delta)
		if errors.Is(err, ErrQuit) {
			core.LogInfo("game requested quit after %d frames", e.frames)
			return nil
		}
		if err != nil {
			core.LogError("game update failed, shutting down: %s", err)
			return err
		}
		if err := e.destroyer.NextFrame(); err != nil {
			return err
		}
		e.metrics.Record("frame", time.Since(frameStart))

		e.frames++
		e.lastTime = currentTime
	}
}

// Shutdown releases every resource in reverse creation order. Calling it
// again is a no-op.
func (e *Engine) Shutdown() error {
	switch e.currentStage {
	case EngineStageShutdown, EngineStageShuttingDown:
		return nil
	case EngineStageUninitialized:
		e.currentStage = EngineStageShutdown
		return nil
	}
	e.currentStage = EngineStageShuttingDown
	e.clock.Stop()

	var errs []error
	if e.gameInstance.FnShutdown != nil {
		if err := e.gameInstance.FnShutdown(e); err != nil {
			errs = append(errs, err)
		}
	}
	if e.metrics != nil {
		e.metrics.Report()
	}
	if err := e.release(); err != nil {
		errs = append(errs, err)
	}
	e.currentStage = EngineStageShutdown
	return errors.Join(errs...)
}

func (e *Engine) release() error {
	var errs []error
	if e.watcher != nil {
		if err := e.watcher.Close(); err != nil {
			errs = append(errs, err)
		}
		e.watcher = nil
	}
	if e.instance != nil && e.device.IsValid() {
		if err := e.instance.WaitIdle(e.device); err != nil {
			errs = append(errs, err)
		}
		if e.destroyer != nil {
			if err := e.destroyer.DestroyAll(); err != nil {
				errs = append(errs, err)
			}
		}
		if e.shaders != nil {
			e.shaders.Close()
		}
		if err := e.instance.DestroyDevice(e.device); err != nil {
			errs = append(errs, err)
		}
		e.device = gpu.Device{}
	}
	if e.instance != nil {
		if err := e.instance.Terminate(); err != nil {
			errs = append(errs, err)
		}
		e.instance = nil
	}
	if e.jobs != nil {
		if err := e.jobs.Shutdown(); err != nil {
			errs = append(errs, err)
		}
		e.jobs = nil
	}
	return errors.Join(errs...)
}

func (e *Engine) Stage() Stage                       { return e.currentStage }
func (e *Engine) Config() *core.Config               { return e.config }
func (e *Engine) Instance() *gpu.Instance            { return e.instance }
func (e *Engine) Device() gpu.Device                 { return e.device }
func (e *Engine) Limits() gpu.Limits                 { return e.limits }
func (e *Engine) Destroyer() *gpu.DeferredDestroyer  { return e.destroyer }
func (e *Engine) Metrics() *core.Metrics             { return e.metrics }
func (e *Engine) Shaders() *assets.ShaderLibrary     { return e.shaders }
func (e *Engine) ShaderLoader() *assets.ShaderLoader { return e.shaderLoader }
func (e *Engine) Jobs() *systems.JobSystem           { return e.jobs }
func (e *Engine) Frames() uint64                     { return e.frames }
