package testbed

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/spaghettifunk/cgpu/engine"
	"github.com/spaghettifunk/cgpu/engine/core"
	"github.com/spaghettifunk/cgpu/engine/gpu"
)

const (
	selfTestElements = 1024
	hostMemory       = gpu.MemoryPropertyHostVisible | gpu.MemoryPropertyHostCoherent
)

// writeUint32s fills dst with the little endian encoding of values.
func writeUint32s(dst []byte, values func(i int) uint32) {
	for i := 0; i+4 <= len(dst); i += 4 {
		binary.LittleEndian.PutUint32(dst[i:], values(i/4))
	}
}

// firstMismatch returns the index of the first word not equal to want, or
// -1 when every word matches.
func firstMismatch(data []byte, want func(i int) uint32) int {
	for i := 0; i+4 <= len(data); i += 4 {
		if binary.LittleEndian.Uint32(data[i:]) != want(i/4) {
			return i / 4
		}
	}
	return -1
}

func copyPattern(i int) uint32 { return uint32(i)*2654435761 + 1 }

func doubleInput(i int) uint32 { return math.Float32bits(float32(i) * 0.5) }

func doubleOutput(i int) uint32 { return math.Float32bits(float32(i)) }

// runSelfTests checks a buffer to buffer copy and, when the shader is
// available, a compute dispatch against values computed on the host.
func (s *gameState) runSelfTests(ctx context.Context, e *engine.Engine) error {
	if err := s.copyReadback(ctx, e); err != nil {
		return fmt.Errorf("copy readback: %w", err)
	}
	core.LogInfo("self test: copy readback passed")

	if _, ok := e.ShaderLoader().Get("double"); !ok {
		core.LogWarn("self test: shader double not loaded, skipping dispatch check")
		return nil
	}
	if err := s.doubleDispatch(ctx, e); err != nil {
		return fmt.Errorf("double dispatch: %w", err)
	}
	core.LogInfo("self test: double dispatch passed")
	return nil
}

func (s *gameState) copyReadback(ctx context.Context, e *engine.Engine) (err error) {
	inst, dev := e.Instance(), e.Device()
	scope := gpu.NewScope(inst, dev)
	defer func() {
		if rerr := scope.Release(); err == nil {
			err = rerr
		}
	}()

	const size = selfTestElements * 4
	track := gpu.Track[gpu.Buffer](scope)
	src, err := track(inst.CreateBuffer(dev, gpu.BufferUsageTransferSrc, hostMemory, size))
	if err != nil {
		return err
	}
	dst, err := track(inst.CreateBuffer(dev, gpu.BufferUsageTransferDst, hostMemory, size))
	if err != nil {
		return err
	}

	data, err := inst.MapBuffer(dev, src)
	if err != nil {
		return err
	}
	writeUint32s(data, copyPattern)
	if err := inst.FlushMappedMemory(dev, src, 0, gpu.WholeSize); err != nil {
		return err
	}
	if err := inst.UnmapBuffer(dev, src); err != nil {
		return err
	}

	err = s.submit(ctx, e, "copy", func(cb gpu.CommandBuffer) error {
		if err := inst.CmdCopyBuffer(cb, src, 0, dst, 0, size); err != nil {
			return err
		}
		return inst.CmdPipelineBarrier(cb, hostReadBarrier(gpu.PipelineStageTransfer, gpu.AccessTransferWrite, dst))
	})
	if err != nil {
		return err
	}

	return s.verify(e, dst, copyPattern)
}

func (s *gameState) doubleDispatch(ctx context.Context, e *engine.Engine) (err error) {
	inst, dev := e.Instance(), e.Device()
	scope := gpu.NewScope(inst, dev)
	defer func() {
		if rerr := scope.Release(); err == nil {
			err = rerr
		}
	}()

	pipeline, err := e.Shaders().Pipeline("double", "main")
	if err != nil {
		return err
	}

	const size = selfTestElements * 4
	track := gpu.Track[gpu.Buffer](scope)
	input, err := track(inst.CreateBuffer(dev, gpu.BufferUsageStorage, hostMemory, size))
	if err != nil {
		return err
	}
	output, err := track(inst.CreateBuffer(dev, gpu.BufferUsageStorage, hostMemory, size))
	if err != nil {
		return err
	}

	data, err := inst.MapBuffer(dev, input)
	if err != nil {
		return err
	}
	writeUint32s(data, doubleInput)
	if err := inst.UnmapBuffer(dev, input); err != nil {
		return err
	}

	err = inst.UpdateResources(dev, pipeline, gpu.ResourceBindings{
		Buffers: []gpu.BufferBinding{
			{Binding: 0, Buffer: input, Size: gpu.WholeSize},
			{Binding: 1, Buffer: output, Size: gpu.WholeSize},
		},
	})
	if err != nil {
		return err
	}

	err = s.submit(ctx, e, "double", func(cb gpu.CommandBuffer) error {
		if err := inst.CmdBindPipeline(cb, pipeline); err != nil {
			return err
		}
		if err := inst.CmdDispatch(cb, workgroups(selfTestElements, 64), 1, 1); err != nil {
			return err
		}
		return inst.CmdPipelineBarrier(cb, hostReadBarrier(gpu.PipelineStageComputeShader, gpu.AccessShaderWrite, output))
	})
	if err != nil {
		return err
	}

	return s.verify(e, output, doubleOutput)
}

func (s *gameState) verify(e *engine.Engine, buffer gpu.Buffer, want func(i int) uint32) error {
	inst, dev := e.Instance(), e.Device()
	data, err := inst.MapBuffer(dev, buffer)
	if err != nil {
		return err
	}
	defer inst.UnmapBuffer(dev, buffer)
	if err := inst.InvalidateMappedMemory(dev, buffer, 0, gpu.WholeSize); err != nil {
		return err
	}
	if i := firstMismatch(data, want); i >= 0 {
		return fmt.Errorf("word %d = %#x, want %#x", i, binary.LittleEndian.Uint32(data[i*4:]), want(i))
	}
	return nil
}
