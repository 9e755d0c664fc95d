package testbed

import (
	"context"
	"encoding/binary"
	"path/filepath"

	"github.com/spaghettifunk/cgpu/engine"
	"github.com/spaghettifunk/cgpu/engine/assets"
	"github.com/spaghettifunk/cgpu/engine/core"
	"github.com/spaghettifunk/cgpu/engine/gpu"
)

const (
	patternShader = "pattern"
	patternGroup  = 8
)

// patternWorkload fills an RGBA8 buffer with a gradient and a checker
// board that scrolls with the frame number.
type patternWorkload struct {
	width, height uint32
	params        gpu.Buffer
	pixels        gpu.Buffer
	// bound is the pipeline the buffers were last written to. A shader
	// reload hands out a new pipeline that needs its bindings again.
	bound gpu.Pipeline
}

func encodePatternParams(dst []byte, width, height uint32, frame uint64) {
	binary.LittleEndian.PutUint32(dst[0:], width)
	binary.LittleEndian.PutUint32(dst[4:], height)
	binary.LittleEndian.PutUint32(dst[8:], uint32(frame))
	binary.LittleEndian.PutUint32(dst[12:], 0)
}

func newPatternWorkload(e *engine.Engine, scope *gpu.Scope, width, height uint32) (*patternWorkload, error) {
	inst, dev := e.Instance(), e.Device()
	track := gpu.Track[gpu.Buffer](scope)

	params, err := track(inst.CreateBuffer(dev, gpu.BufferUsageStorage, hostMemory, 16))
	if err != nil {
		return nil, err
	}
	pixels, err := track(inst.CreateBuffer(dev,
		gpu.BufferUsageStorage|gpu.BufferUsageTransferSrc, hostMemory, uint64(width)*uint64(height)*4))
	if err != nil {
		return nil, err
	}
	return &patternWorkload{width: width, height: height, params: params, pixels: pixels}, nil
}

func (p *patternWorkload) bind(e *engine.Engine) (gpu.Pipeline, error) {
	pipeline, err := e.Shaders().Pipeline(patternShader, "main")
	if err != nil {
		return gpu.Pipeline{}, err
	}
	if pipeline == p.bound {
		return pipeline, nil
	}
	err = e.Instance().UpdateResources(e.Device(), pipeline, gpu.ResourceBindings{
		Buffers: []gpu.BufferBinding{
			{Binding: 0, Buffer: p.params, Size: gpu.WholeSize},
			{Binding: 1, Buffer: p.pixels, Size: gpu.WholeSize},
		},
	})
	if err != nil {
		return gpu.Pipeline{}, err
	}
	core.LogDebug("pattern bound to %s", pipeline)
	p.bound = pipeline
	return pipeline, nil
}

func (p *patternWorkload) run(ctx context.Context, e *engine.Engine, s *gameState, frame uint64) error {
	inst, dev := e.Instance(), e.Device()
	pipeline, err := p.bind(e)
	if err != nil {
		return err
	}

	data, err := inst.MapBuffer(dev, p.params)
	if err != nil {
		return err
	}
	encodePatternParams(data, p.width, p.height, frame)
	if err := inst.FlushMappedMemory(dev, p.params, 0, gpu.WholeSize); err != nil {
		return err
	}
	if err := inst.UnmapBuffer(dev, p.params); err != nil {
		return err
	}

	return s.submit(ctx, e, patternShader, func(cb gpu.CommandBuffer) error {
		if err := inst.CmdBindPipeline(cb, pipeline); err != nil {
			return err
		}
		if err := inst.CmdDispatch(cb, workgroups(p.width, patternGroup), workgroups(p.height, patternGroup), 1); err != nil {
			return err
		}
		return inst.CmdPipelineBarrier(cb, hostReadBarrier(gpu.PipelineStageComputeShader, gpu.AccessShaderWrite, p.pixels))
	})
}

// saveBuffer writes an RGBA8 buffer to dir as name.bmp.
func saveBuffer(e *engine.Engine, buffer gpu.Buffer, width, height uint32, dir, name string) error {
	inst, dev := e.Instance(), e.Device()
	data, err := inst.MapBuffer(dev, buffer)
	if err != nil {
		return err
	}
	defer inst.UnmapBuffer(dev, buffer)
	if err := inst.InvalidateMappedMemory(dev, buffer, 0, gpu.WholeSize); err != nil {
		return err
	}
	path := filepath.Join(dir, name+".bmp")
	if err := assets.SaveBMP(path, int(width), int(height), data); err != nil {
		return err
	}
	core.LogInfo("wrote %s", path)
	return nil
}
