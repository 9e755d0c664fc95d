package testbed

import (
	"context"
	"encoding/binary"

	"github.com/spaghettifunk/cgpu/engine"
	"github.com/spaghettifunk/cgpu/engine/gpu"
)

const invertShader = "invert"

// invertWorkload uploads the pattern into a sampled image and writes the
// inverted colors to a buffer. The image goes from the copy layout to the
// shader read layout through the dispatch tracker.
type invertWorkload struct {
	width, height uint32
	image         gpu.Image
	pixels        gpu.Buffer
	bound         gpu.Pipeline
}

func encodeInvertConstants(width, height uint32) []byte {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint32(data[0:], width)
	binary.LittleEndian.PutUint32(data[4:], height)
	return data
}

func newInvertWorkload(e *engine.Engine, scope *gpu.Scope, width, height uint32) (*invertWorkload, error) {
	inst, dev := e.Instance(), e.Device()

	image, err := gpu.Track[gpu.Image](scope)(inst.CreateImage(dev, gpu.ImageInfo{
		Width:            width,
		Height:           height,
		Format:           gpu.FormatR8G8B8A8Unorm,
		Usage:            gpu.ImageUsageSampled | gpu.ImageUsageTransferDst,
		MemoryProperties: gpu.MemoryPropertyDeviceLocal,
	}))
	if err != nil {
		return nil, err
	}
	pixels, err := gpu.Track[gpu.Buffer](scope)(inst.CreateBuffer(dev,
		gpu.BufferUsageStorage, hostMemory, uint64(width)*uint64(height)*4))
	if err != nil {
		return nil, err
	}
	return &invertWorkload{width: width, height: height, image: image, pixels: pixels}, nil
}

func (w *invertWorkload) bind(e *engine.Engine) (gpu.Pipeline, error) {
	pipeline, err := e.Shaders().Pipeline(invertShader, "main")
	if err != nil {
		return gpu.Pipeline{}, err
	}
	if pipeline == w.bound {
		return pipeline, nil
	}
	err = e.Instance().UpdateResources(e.Device(), pipeline, gpu.ResourceBindings{
		Images:  []gpu.ImageBinding{{Binding: 0, Image: w.image}},
		Buffers: []gpu.BufferBinding{{Binding: 1, Buffer: w.pixels, Size: gpu.WholeSize}},
	})
	if err != nil {
		return gpu.Pipeline{}, err
	}
	w.bound = pipeline
	return pipeline, nil
}

// run inverts the contents of source, a buffer of the same extent.
func (w *invertWorkload) run(ctx context.Context, e *engine.Engine, s *gameState, source gpu.Buffer) error {
	inst := e.Instance()
	pipeline, err := w.bind(e)
	if err != nil {
		return err
	}
	constants := encodeInvertConstants(w.width, w.height)

	return s.submit(ctx, e, invertShader, func(cb gpu.CommandBuffer) error {
		if err := inst.CmdCopyBufferToImage(cb, source, w.image); err != nil {
			return err
		}
		// The copy must land before the shader samples the image.
		err := inst.CmdPipelineBarrier(cb, gpu.Barriers{
			SrcStages: gpu.PipelineStageTransfer,
			DstStages: gpu.PipelineStageComputeShader,
			Memory:    []gpu.MemoryBarrier{{SrcAccess: gpu.AccessTransferWrite, DstAccess: gpu.AccessShaderRead}},
		})
		if err != nil {
			return err
		}
		if err := inst.CmdBindPipeline(cb, pipeline); err != nil {
			return err
		}
		if err := inst.CmdPushConstants(cb, pipeline, constants); err != nil {
			return err
		}
		if err := inst.CmdDispatch(cb, workgroups(w.width, patternGroup), workgroups(w.height, patternGroup), 1); err != nil {
			return err
		}
		return inst.CmdPipelineBarrier(cb, hostReadBarrier(gpu.PipelineStageComputeShader, gpu.AccessShaderWrite, w.pixels))
	})
}
