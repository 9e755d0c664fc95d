package gpu

import (
	"context"
	"fmt"
	"time"
)

// fenceWaitSlice bounds a single native wait so cancellation is noticed.
const fenceWaitSlice = 100 * time.Millisecond

type fenceRecord struct {
	device Device
	native NativeObject
}

// CreateFence creates a fence in the signaled state.
func (inst *Instance) CreateFence(device Device) (Fence, error) {
	dev, err := inst.device(device)
	if err != nil {
		return Fence{}, err
	}
	native, err := dev.logical.CreateFence(true)
	if err != nil {
		dev.log.Errorf("failed to create fence: %v", err)
		return Fence{}, fmt.Errorf("%w: %w", ErrUnableToCreateFence, err)
	}
	h, err := insert(inst, SynchronizationManagement, inst.fences, fenceRecord{device: device, native: native})
	if err != nil {
		dev.logical.DestroyFence(native)
		return Fence{}, fmt.Errorf("%w: %w", ErrUnableToCreateFence, err)
	}
	return Fence{handle: h}, nil
}

func (inst *Instance) DestroyFence(device Device, fence Fence) error {
	dev, err := inst.device(device)
	if err != nil {
		return err
	}
	rec, err := remove(inst, SynchronizationManagement, inst.fences, fence.handle)
	if err != nil {
		return err
	}
	dev.logical.DestroyFence(rec.native)
	return nil
}

// ResetFence returns a fence to the unsignaled state before it is passed
// to a submission again.
func (inst *Instance) ResetFence(device Device, fence Fence) error {
	dev, err := inst.device(device)
	if err != nil {
		return err
	}
	rec, err := inst.fence(fence)
	if err != nil {
		return err
	}
	if err := dev.logical.ResetFence(rec.native); err != nil {
		return fmt.Errorf("%w: %w", ErrUnableToResetFence, err)
	}
	return nil
}

// WaitForFence blocks until the fence is signaled or ctx is done.
func (inst *Instance) WaitForFence(ctx context.Context, device Device, fence Fence) error {
	dev, err := inst.device(device)
	if err != nil {
		return err
	}
	rec, err := inst.fence(fence)
	if err != nil {
		return err
	}

	start := time.Now()
	for {
		if err := ctx.Err(); err != nil {
			dev.log.Warnf("gave up waiting for %s after %s: %v", fence, time.Since(start), err)
			return fmt.Errorf("%w: %w", ErrUnableToWaitForFence, err)
		}

		slice := fenceWaitSlice
		if deadline, ok := ctx.Deadline(); ok {
			if remaining := time.Until(deadline); remaining < slice {
				slice = max(remaining, 0)
			}
		}
		signaled, err := dev.logical.WaitForFence(rec.native, slice)
		if err != nil {
			dev.log.Errorf("failed to wait for %s: %v", fence, err)
			return fmt.Errorf("%w: %w", ErrUnableToWaitForFence, err)
		}
		if signaled {
			return nil
		}
	}
}

// SubmitCommandBuffer queues an ended command buffer on the compute queue.
// fence is signaled once it completes.
func (inst *Instance) SubmitCommandBuffer(device Device, commandBuffer CommandBuffer, fence Fence) error {
	dev, err := inst.device(device)
	if err != nil {
		return err
	}
	cb, err := inst.commandBuffer(commandBuffer)
	if err != nil {
		return err
	}
	if cb.state != commandBufferEnded {
		return fmt.Errorf("%w: submitting %s while %s", ErrInvalidCommandBufferState, commandBuffer, cb.state)
	}
	rec, err := inst.fence(fence)
	if err != nil {
		return err
	}

	err = inst.locks.SafeQueueCall(dev.queueFamily, func() error {
		return dev.logical.Submit(cb.recorder, rec.native)
	})
	if err != nil {
		dev.log.Errorf("failed to submit %s: %v", commandBuffer, err)
		return fmt.Errorf("%w: %w", ErrUnableToSubmitCommandBuffer, err)
	}
	return nil
}

func (inst *Instance) fence(fence Fence) (*fenceRecord, error) {
	return resolve(inst, SynchronizationManagement, inst.fences, fence.handle)
}
