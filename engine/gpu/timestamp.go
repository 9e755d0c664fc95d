package gpu

import "fmt"

// TimestampSize is the size of one timestamp written by CmdCopyTimestamps
// when it waits for results.
const TimestampSize = 8

func timestampRange(offset, count uint32) error {
	if uint64(offset)+uint64(count) > MaxTimestampQueries {
		return fmt.Errorf("%w: [%d %d) of %d", ErrMaxTimestampQueryIndexReached, offset, offset+count, MaxTimestampQueries)
	}
	return nil
}

// CmdResetTimestamps resets count timestamp queries starting at offset.
func (inst *Instance) CmdResetTimestamps(commandBuffer CommandBuffer, offset, count uint32) error {
	cb, err := inst.recording(commandBuffer)
	if err != nil {
		return err
	}
	if err := timestampRange(offset, count); err != nil {
		return err
	}
	dev, err := inst.device(cb.device)
	if err != nil {
		return err
	}
	cb.recorder.ResetQueryPool(dev.timestampPool, offset, count)
	return nil
}

// CmdWriteTimestamp writes a timestamp once prior compute work completes.
func (inst *Instance) CmdWriteTimestamp(commandBuffer CommandBuffer, index uint32) error {
	cb, err := inst.recording(commandBuffer)
	if err != nil {
		return err
	}
	if err := timestampRange(index, 1); err != nil {
		return err
	}
	dev, err := inst.device(cb.device)
	if err != nil {
		return err
	}
	cb.recorder.WriteTimestamp(dev.timestampPool, PipelineStageComputeShader, index)
	return nil
}

// CmdCopyTimestamps copies count 64 bit timestamps to the start of buffer.
// With waitUntilAvailable the copy waits for the results; otherwise every
// timestamp is followed by a 64 bit availability word.
func (inst *Instance) CmdCopyTimestamps(commandBuffer CommandBuffer, buffer Buffer, offset, count uint32, waitUntilAvailable bool) error {
	if err := timestampRange(offset, count); err != nil {
		return err
	}
	cb, err := inst.recording(commandBuffer)
	if err != nil {
		return err
	}
	dev, err := inst.device(cb.device)
	if err != nil {
		return err
	}
	buf, err := inst.buffer(buffer)
	if err != nil {
		return err
	}

	flags := QueryResult64
	stride := uint64(TimestampSize)
	if waitUntilAvailable {
		flags |= QueryResultWait
	} else {
		flags |= QueryResultWithAvailability
		stride *= 2
	}
	if uint64(count)*stride > buf.size {
		return fmt.Errorf("%w: %d timestamps need %d bytes, buffer has %d", ErrInvalidCopyRegion,
			count, uint64(count)*stride, buf.size)
	}
	cb.recorder.CopyQueryPoolResults(dev.timestampPool, offset, count, buf.native, 0, stride, flags)
	return nil
}
