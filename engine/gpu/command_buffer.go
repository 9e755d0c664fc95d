package gpu

import "fmt"

type commandBufferState uint8

const (
	commandBufferInitial commandBufferState = iota
	commandBufferRecording
	commandBufferEnded
)

func (s commandBufferState) String() string {
	switch s {
	case commandBufferInitial:
		return "initial"
	case commandBufferRecording:
		return "recording"
	case commandBufferEnded:
		return "ended"
	}
	return fmt.Sprintf("commandBufferState(%d)", uint8(s))
}

type commandBufferRecord struct {
	device   Device
	recorder CommandRecorder
	state    commandBufferState
	// pipeline is the pipeline bound last, consulted at dispatch.
	pipeline Pipeline
}

func (inst *Instance) CreateCommandBuffer(device Device) (CommandBuffer, error) {
	dev, err := inst.device(device)
	if err != nil {
		return CommandBuffer{}, err
	}

	var recorder CommandRecorder
	err = inst.locks.SafeCall(CommandBufferManagement, func() error {
		var err error
		recorder, err = dev.logical.AllocateCommandBuffer(dev.commandPool)
		return err
	})
	if err != nil {
		dev.log.Errorf("failed to allocate command buffer: %v", err)
		return CommandBuffer{}, fmt.Errorf("%w: %w", ErrUnableToAllocateCommandBuffer, err)
	}

	h, err := insert(inst, CommandBufferManagement, inst.commandBuffers, commandBufferRecord{
		device:   device,
		recorder: recorder,
		state:    commandBufferInitial,
	})
	if err != nil {
		dev.logical.FreeCommandBuffer(dev.commandPool, recorder)
		return CommandBuffer{}, fmt.Errorf("%w: %w", ErrUnableToAllocateCommandBuffer, err)
	}
	return CommandBuffer{handle: h}, nil
}

func (inst *Instance) DestroyCommandBuffer(device Device, commandBuffer CommandBuffer) error {
	dev, err := inst.device(device)
	if err != nil {
		return err
	}
	rec, err := remove(inst, CommandBufferManagement, inst.commandBuffers, commandBuffer.handle)
	if err != nil {
		return err
	}
	// The pool is shared by every command buffer of the device.
	return inst.locks.SafeCall(CommandBufferManagement, func() error {
		dev.logical.FreeCommandBuffer(dev.commandPool, rec.recorder)
		return nil
	})
}

// BeginCommandBuffer starts recording. Ended command buffers may be
// recorded again.
func (inst *Instance) BeginCommandBuffer(commandBuffer CommandBuffer) error {
	cb, err := inst.commandBuffer(commandBuffer)
	if err != nil {
		return err
	}
	if cb.state == commandBufferRecording {
		return fmt.Errorf("%w: begin while %s", ErrInvalidCommandBufferState, cb.state)
	}
	if err := cb.recorder.Begin(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnableToBeginCommandBuffer, err)
	}
	cb.state = commandBufferRecording
	cb.pipeline = Pipeline{}
	return nil
}

func (inst *Instance) EndCommandBuffer(commandBuffer CommandBuffer) error {
	cb, err := inst.recording(commandBuffer)
	if err != nil {
		return err
	}
	if err := cb.recorder.End(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnableToEndCommandBuffer, err)
	}
	cb.state = commandBufferEnded
	return nil
}

// CmdBindPipeline binds the pipeline and its descriptor set.
func (inst *Instance) CmdBindPipeline(commandBuffer CommandBuffer, pipeline Pipeline) error {
	cb, err := inst.recording(commandBuffer)
	if err != nil {
		return err
	}
	pipe, err := inst.pipeline(pipeline)
	if err != nil {
		return err
	}
	cb.recorder.BindComputePipeline(pipe.native)
	cb.recorder.BindDescriptorSet(pipe.layout, pipe.set)
	cb.pipeline = pipeline
	return nil
}

// CmdPushConstants pushes the first bytes of data, as many as the shader
// declares.
func (inst *Instance) CmdPushConstants(commandBuffer CommandBuffer, pipeline Pipeline, data []byte) error {
	cb, err := inst.recording(commandBuffer)
	if err != nil {
		return err
	}
	pipe, err := inst.pipeline(pipeline)
	if err != nil {
		return err
	}
	size := pipe.reflection.PushConstantSize
	if size == 0 {
		return nil
	}
	if uint32(len(data)) < size {
		return fmt.Errorf("%w: %d bytes, shader declares %d", ErrPushConstantsTooSmall, len(data), size)
	}
	cb.recorder.PushConstants(pipe.layout, data[:size])
	return nil
}

// CmdDispatch transitions the images bound to the current pipeline into
// the layouts the shader expects and records the dispatch.
func (inst *Instance) CmdDispatch(commandBuffer CommandBuffer, x, y, z uint32) error {
	cb, err := inst.recording(commandBuffer)
	if err != nil {
		return err
	}
	if !cb.pipeline.IsValid() {
		return ErrNoPipelineBound
	}
	pipe, err := inst.pipeline(cb.pipeline)
	if err != nil {
		return err
	}
	if err := inst.transitionImages(cb, pipe); err != nil {
		return err
	}
	cb.recorder.Dispatch(x, y, z)
	return nil
}

// CmdCopyBuffer copies size bytes between buffers. WholeSize copies the
// whole source buffer.
func (inst *Instance) CmdCopyBuffer(commandBuffer CommandBuffer, src Buffer, srcOffset uint64, dst Buffer, dstOffset uint64, size uint64) error {
	cb, err := inst.recording(commandBuffer)
	if err != nil {
		return err
	}
	s, err := inst.buffer(src)
	if err != nil {
		return err
	}
	d, err := inst.buffer(dst)
	if err != nil {
		return err
	}
	if size == WholeSize {
		size = s.size
	}
	if srcOffset+size > s.size || dstOffset+size > d.size {
		return fmt.Errorf("%w: %d bytes from %d of %d into %d of %d", ErrInvalidCopyRegion,
			size, srcOffset, s.size, dstOffset, d.size)
	}
	cb.recorder.CopyBuffer(s.native, d.native, BufferCopy{SrcOffset: srcOffset, DstOffset: dstOffset, Size: size})
	return nil
}

// CmdCopyBufferToImage copies tightly packed texels into the whole image.
// The image ends up in the general layout.
func (inst *Instance) CmdCopyBufferToImage(commandBuffer CommandBuffer, buffer Buffer, image Image) error {
	cb, err := inst.recording(commandBuffer)
	if err != nil {
		return err
	}
	buf, err := inst.buffer(buffer)
	if err != nil {
		return err
	}
	img, err := inst.image(image)
	if err != nil {
		return err
	}

	if img.layout != ImageLayoutGeneral {
		cb.recorder.PipelineBarrier(
			PipelineStageComputeShader|PipelineStageTransfer,
			PipelineStageTransfer,
			nil, nil,
			[]NativeImageBarrier{{
				Image:     img.native,
				SrcAccess: img.access,
				DstAccess: AccessTransferWrite,
				OldLayout: img.layout,
				NewLayout: ImageLayoutGeneral,
			}},
		)
	}
	cb.recorder.CopyBufferToImage(buf.native, img.native, ImageLayoutGeneral, img.width, img.height)
	img.layout = ImageLayoutGeneral
	img.access = AccessTransferWrite
	return nil
}

func (inst *Instance) commandBuffer(commandBuffer CommandBuffer) (*commandBufferRecord, error) {
	return resolve(inst, CommandBufferManagement, inst.commandBuffers, commandBuffer.handle)
}

// recording resolves a command buffer that must be recording.
func (inst *Instance) recording(commandBuffer CommandBuffer) (*commandBufferRecord, error) {
	cb, err := inst.commandBuffer(commandBuffer)
	if err != nil {
		return nil, err
	}
	if cb.state != commandBufferRecording {
		return nil, fmt.Errorf("%w: %s is %s", ErrInvalidCommandBufferState, commandBuffer, cb.state)
	}
	return cb, nil
}
