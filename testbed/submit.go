package testbed

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/spaghettifunk/cgpu/engine"
	"github.com/spaghettifunk/cgpu/engine/gpu"
)

// submitTimeout bounds every wait for a submitted command buffer.
const submitTimeout = 10 * time.Second

// timestampPair decodes the begin and end timestamps copied by
// CmdCopyTimestamps with waitUntilAvailable.
func timestampPair(data []byte) (uint64, uint64, error) {
	if len(data) < 2*gpu.TimestampSize {
		return 0, 0, fmt.Errorf("timestamp readback holds %d bytes", len(data))
	}
	return binary.LittleEndian.Uint64(data), binary.LittleEndian.Uint64(data[gpu.TimestampSize:]), nil
}

// submit records into the shared command buffer, runs it and waits for the
// fence. With timing enabled the recorded work is bracketed by timestamps
// and its duration is added to the metrics section name.
func (s *gameState) submit(ctx context.Context, e *engine.Engine, name string, record func(cb gpu.CommandBuffer) error) error {
	inst, dev := e.Instance(), e.Device()
	cb := s.commandBuffer

	if err := inst.BeginCommandBuffer(cb); err != nil {
		return err
	}
	if err := s.recordTimed(inst, cb, record); err != nil {
		_ = inst.EndCommandBuffer(cb)
		return fmt.Errorf("%s: %w", name, err)
	}
	if err := inst.EndCommandBuffer(cb); err != nil {
		return err
	}

	if err := inst.ResetFence(dev, s.fence); err != nil {
		return err
	}
	if err := inst.SubmitCommandBuffer(dev, cb, s.fence); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, submitTimeout)
	defer cancel()
	if err := inst.WaitForFence(ctx, dev, s.fence); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	if s.timestamps.IsValid() {
		return s.recordTiming(e, name)
	}
	return nil
}

func (s *gameState) recordTimed(inst *gpu.Instance, cb gpu.CommandBuffer, record func(cb gpu.CommandBuffer) error) error {
	timed := s.timestamps.IsValid()
	if timed {
		if err := inst.CmdResetTimestamps(cb, 0, 2); err != nil {
			return err
		}
		if err := inst.CmdWriteTimestamp(cb, 0); err != nil {
			return err
		}
	}
	if err := record(cb); err != nil {
		return err
	}
	if timed {
		if err := inst.CmdWriteTimestamp(cb, 1); err != nil {
			return err
		}
		return inst.CmdCopyTimestamps(cb, s.timestamps, 0, 2, true)
	}
	return nil
}

func (s *gameState) recordTiming(e *engine.Engine, name string) error {
	inst, dev := e.Instance(), e.Device()
	data, err := inst.MapBuffer(dev, s.timestamps)
	if err != nil {
		return err
	}
	defer inst.UnmapBuffer(dev, s.timestamps)
	if err := inst.InvalidateMappedMemory(dev, s.timestamps, 0, gpu.WholeSize); err != nil {
		return err
	}
	begin, end, err := timestampPair(data)
	if err != nil {
		return err
	}
	_, err = e.Metrics().RecordTimestamps(name, begin, end)
	return err
}

// hostReadBarrier makes shader or transfer writes to buffers visible to
// the host after the fence signals.
func hostReadBarrier(src gpu.PipelineStageFlags, srcAccess gpu.AccessFlags, buffers ...gpu.Buffer) gpu.Barriers {
	b := gpu.Barriers{
		SrcStages: src,
		DstStages: gpu.PipelineStageHost,
	}
	for _, buf := range buffers {
		b.Buffers = append(b.Buffers, gpu.BufferBarrier{
			Buffer:    buf,
			SrcAccess: srcAccess,
			DstAccess: gpu.AccessHostRead,
			Size:      gpu.WholeSize,
		})
	}
	return b
}

// workgroups returns the number of groups of size needed to cover n.
func workgroups(n, size uint32) uint32 {
	return (n + size - 1) / size
}
