package testbed

import (
	"context"
	"fmt"
	"time"

	"github.com/spaghettifunk/cgpu/engine"
	"github.com/spaghettifunk/cgpu/engine/core"
	"github.com/spaghettifunk/cgpu/engine/gpu"
)

type TestGame struct {
	*engine.Game
}

type gameState struct {
	config core.TestbedConfig

	scope         *gpu.Scope
	commandBuffer gpu.CommandBuffer
	fence         gpu.Fence
	// timestamps is invalid when the queue cannot write timestamps.
	timestamps gpu.Buffer

	pattern *patternWorkload
	invert  *invertWorkload
}

func NewTestGame(cfg core.TestbedConfig) *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			Name:  "cgpu testbed",
			State: &gameState{config: cfg},
		},
	}
	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnShutdown = tg.Shutdown
	return tg
}

func (g *TestGame) state() *gameState {
	return g.State.(*gameState)
}

func (g *TestGame) Initialize(e *engine.Engine) error {
	core.LogInfo("initializing testbed...")
	s := g.state()
	inst, dev := e.Instance(), e.Device()
	s.scope = gpu.NewScope(inst, dev)

	var err error
	s.commandBuffer, err = gpu.Track[gpu.CommandBuffer](s.scope)(inst.CreateCommandBuffer(dev))
	if err != nil {
		return err
	}
	s.fence, err = gpu.Track[gpu.Fence](s.scope)(inst.CreateFence(dev))
	if err != nil {
		return err
	}
	if e.Limits().TimestampComputeAndGraphics {
		s.timestamps, err = gpu.Track[gpu.Buffer](s.scope)(inst.CreateBuffer(dev,
			gpu.BufferUsageTransferDst, hostMemory, 2*gpu.TimestampSize))
		if err != nil {
			return err
		}
	} else {
		core.LogWarn("device cannot write compute timestamps, gpu timings disabled")
	}

	ctx := context.Background()
	if err := s.runSelfTests(ctx, e); err != nil {
		return err
	}

	if _, ok := e.ShaderLoader().Get(patternShader); !ok {
		return fmt.Errorf("shader %s is required by the testbed", patternShader)
	}
	s.pattern, err = newPatternWorkload(e, s.scope, s.config.Width, s.config.Height)
	if err != nil {
		return err
	}
	if _, ok := e.ShaderLoader().Get(invertShader); ok {
		s.invert, err = newInvertWorkload(e, s.scope, s.config.Width, s.config.Height)
		if err != nil {
			return err
		}
	} else {
		core.LogInfo("shader %s not compiled, run mage build:shaders to enable it", invertShader)
	}
	return nil
}

func (g *TestGame) Update(ctx context.Context, e *engine.Engine, deltaTime time.Duration) error {
	s := g.state()
	frame := e.Frames()

	if err := s.pattern.run(ctx, e, s, frame); err != nil {
		return err
	}
	if s.invert != nil {
		if err := s.invert.run(ctx, e, s, s.pattern.pixels); err != nil {
			return err
		}
	}

	last := s.config.Frames > 0 && frame+1 >= s.config.Frames
	if frame == 0 || last {
		if err := s.save(e, frame); err != nil {
			return err
		}
	}
	if last {
		return engine.ErrQuit
	}
	return nil
}

func (s *gameState) save(e *engine.Engine, frame uint64) error {
	name := fmt.Sprintf("pattern_%04d", frame)
	if err := saveBuffer(e, s.pattern.pixels, s.pattern.width, s.pattern.height, s.config.OutputDir, name); err != nil {
		return err
	}
	if s.invert == nil {
		return nil
	}
	name = fmt.Sprintf("invert_%04d", frame)
	return saveBuffer(e, s.invert.pixels, s.invert.width, s.invert.height, s.config.OutputDir, name)
}

func (g *TestGame) Shutdown(e *engine.Engine) error {
	core.LogInfo("shutting down testbed...")
	s := g.state()
	if s.scope == nil {
		return nil
	}
	// Resources may still be referenced by the last submission.
	if err := e.Instance().WaitIdle(e.Device()); err != nil {
		return err
	}
	return s.scope.Release()
}
