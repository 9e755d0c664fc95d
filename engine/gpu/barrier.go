package gpu

// DefaultBarrierStages are used for either side of an explicit barrier
// when no stages are given.
const DefaultBarrierStages = PipelineStageComputeShader | PipelineStageTransfer

type MemoryBarrier struct {
	SrcAccess AccessFlags
	DstAccess AccessFlags
}

// BufferBarrier covers [Offset, Offset+Size) of a buffer. Size may be
// WholeSize.
type BufferBarrier struct {
	Buffer    Buffer
	SrcAccess AccessFlags
	DstAccess AccessFlags
	Offset    uint64
	Size      uint64
}

// ImageBarrier makes prior accesses to an image visible to DstAccess. The
// source access is the access the image was last transitioned to; the
// layout does not change.
type ImageBarrier struct {
	Image     Image
	DstAccess AccessFlags
}

type Barriers struct {
	SrcStages PipelineStageFlags
	DstStages PipelineStageFlags
	Memory    []MemoryBarrier
	Buffers   []BufferBarrier
	Images    []ImageBarrier
}

// CmdPipelineBarrier records an explicit barrier, for example before a
// host readback. Image barriers update the access mask of their image.
func (inst *Instance) CmdPipelineBarrier(commandBuffer CommandBuffer, barriers Barriers) error {
	cb, err := inst.recording(commandBuffer)
	if err != nil {
		return err
	}

	memory := make([]NativeMemoryBarrier, 0, len(barriers.Memory))
	for _, b := range barriers.Memory {
		memory = append(memory, NativeMemoryBarrier{SrcAccess: b.SrcAccess, DstAccess: b.DstAccess})
	}

	buffers := make([]NativeBufferBarrier, 0, len(barriers.Buffers))
	for _, b := range barriers.Buffers {
		buf, err := inst.buffer(b.Buffer)
		if err != nil {
			return err
		}
		buffers = append(buffers, NativeBufferBarrier{
			Buffer:    buf.native,
			SrcAccess: b.SrcAccess,
			DstAccess: b.DstAccess,
			Offset:    b.Offset,
			Size:      b.Size,
		})
	}

	images := make([]NativeImageBarrier, 0, len(barriers.Images))
	records := make([]*imageRecord, 0, len(barriers.Images))
	for _, b := range barriers.Images {
		img, err := inst.image(b.Image)
		if err != nil {
			return err
		}
		images = append(images, NativeImageBarrier{
			Image:     img.native,
			SrcAccess: img.access,
			DstAccess: b.DstAccess,
			OldLayout: img.layout,
			NewLayout: img.layout,
		})
		records = append(records, img)
	}

	src, dst := barriers.SrcStages, barriers.DstStages
	if src == 0 {
		src = DefaultBarrierStages
	}
	if dst == 0 {
		dst = DefaultBarrierStages
	}
	cb.recorder.PipelineBarrier(src, dst, memory, buffers, images)

	for i, img := range records {
		img.access = barriers.Images[i].DstAccess
	}
	return nil
}
