package gpu

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"
)

// TestBufferReadback writes a pattern into a device local, host visible
// buffer and reads it back through a transfer copy.
func TestBufferReadback(t *testing.T) {
	inst, dev, _ := newTestDevice(t)
	const size = 1 << 20

	src, err := inst.CreateBuffer(dev, BufferUsageStorage|BufferUsageTransferSrc,
		MemoryPropertyDeviceLocal|MemoryPropertyHostVisible, size)
	if err != nil {
		t.Fatalf("CreateBuffer(src) error = %v", err)
	}
	dst, err := inst.CreateBuffer(dev, BufferUsageTransferDst,
		MemoryPropertyHostVisible|MemoryPropertyHostCoherent, size)
	if err != nil {
		t.Fatalf("CreateBuffer(dst) error = %v", err)
	}

	data, err := inst.MapBuffer(dev, src)
	if err != nil {
		t.Fatalf("MapBuffer() error = %v", err)
	}
	if len(data) != size {
		t.Fatalf("len(MapBuffer()) = %d, want %d", len(data), size)
	}
	pattern := make([]byte, size)
	for i := range pattern {
		pattern[i] = byte(i * 7)
	}
	copy(data, pattern)
	if err := inst.UnmapBuffer(dev, src); err != nil {
		t.Fatalf("UnmapBuffer() error = %v", err)
	}
	if err := inst.FlushMappedMemory(dev, src, 0, WholeSize); err != nil {
		t.Fatalf("FlushMappedMemory() error = %v", err)
	}

	cb, err := inst.CreateCommandBuffer(dev)
	if err != nil {
		t.Fatalf("CreateCommandBuffer() error = %v", err)
	}
	fence, err := inst.CreateFence(dev)
	if err != nil {
		t.Fatalf("CreateFence() error = %v", err)
	}
	if err := inst.BeginCommandBuffer(cb); err != nil {
		t.Fatalf("BeginCommandBuffer() error = %v", err)
	}
	if err := inst.CmdCopyBuffer(cb, src, 0, dst, 0, WholeSize); err != nil {
		t.Fatalf("CmdCopyBuffer() error = %v", err)
	}
	if err := inst.CmdPipelineBarrier(cb, Barriers{
		DstStages: PipelineStageHost,
		Memory:    []MemoryBarrier{{SrcAccess: AccessTransferWrite, DstAccess: AccessHostRead}},
	}); err != nil {
		t.Fatalf("CmdPipelineBarrier() error = %v", err)
	}
	if err := inst.EndCommandBuffer(cb); err != nil {
		t.Fatalf("EndCommandBuffer() error = %v", err)
	}
	if err := inst.ResetFence(dev, fence); err != nil {
		t.Fatalf("ResetFence() error = %v", err)
	}
	if err := inst.SubmitCommandBuffer(dev, cb, fence); err != nil {
		t.Fatalf("SubmitCommandBuffer() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := inst.WaitForFence(ctx, dev, fence); err != nil {
		t.Fatalf("WaitForFence() error = %v", err)
	}

	if err := inst.InvalidateMappedMemory(dev, dst, 0, WholeSize); err != nil {
		t.Fatalf("InvalidateMappedMemory() error = %v", err)
	}
	readback, err := inst.MapBuffer(dev, dst)
	if err != nil {
		t.Fatalf("MapBuffer(dst) error = %v", err)
	}
	if !bytes.Equal(readback, pattern) {
		t.Errorf("readback differs from the written pattern")
	}
	if err := inst.UnmapBuffer(dev, dst); err != nil {
		t.Errorf("UnmapBuffer(dst) error = %v", err)
	}
}

func TestMapBufferNotHostVisible(t *testing.T) {
	inst, dev, _ := newTestDevice(t)

	buf, err := inst.CreateBuffer(dev, BufferUsageStorage, MemoryPropertyDeviceLocal, 128)
	if err != nil {
		t.Fatalf("CreateBuffer() error = %v", err)
	}
	if _, err := inst.MapBuffer(dev, buf); !errors.Is(err, ErrMemoryNotHostVisible) {
		t.Errorf("MapBuffer() error = %v, want %v", err, ErrMemoryNotHostVisible)
	}
}

func TestFlushNonCoherentRange(t *testing.T) {
	inst, dev, drv := newTestDevice(t)

	coherent, err := inst.CreateBuffer(dev, BufferUsageStorage, MemoryPropertyHostVisible|MemoryPropertyHostCoherent, 256)
	if err != nil {
		t.Fatalf("CreateBuffer(coherent) error = %v", err)
	}
	if err := inst.FlushMappedMemory(dev, coherent, 0, WholeSize); err != nil {
		t.Fatalf("FlushMappedMemory(coherent) error = %v", err)
	}
	if n := len(drv.logical().flushes); n != 0 {
		t.Errorf("coherent flush issued %d native flushes, want 0", n)
	}

	cached, err := inst.CreateBuffer(dev, BufferUsageStorage, MemoryPropertyHostVisible|MemoryPropertyHostCached, 1000)
	if err != nil {
		t.Fatalf("CreateBuffer(cached) error = %v", err)
	}
	if err := inst.FlushMappedMemory(dev, cached, 10, 100); err != nil {
		t.Fatalf("FlushMappedMemory(cached) error = %v", err)
	}
	flushes := drv.logical().flushes
	if len(flushes) != 1 {
		t.Fatalf("issued %d native flushes, want 1", len(flushes))
	}
	// The buffer sits at offset 0 of a fresh block; the range is widened
	// to the 64 byte atom.
	if got := flushes[0]; got.offset != 0 || got.size != 128 {
		t.Errorf("flush range = [%d %d], want [0 128]", got.offset, got.size)
	}

	if err := inst.InvalidateMappedMemory(dev, cached, 990, 20); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("InvalidateMappedMemory() past the end error = %v, want %v", err, ErrInvalidArgument)
	}
}

func TestCreateBufferFailure(t *testing.T) {
	tests := []struct {
		step string
	}{
		{"CreateBuffer"},
		{"AllocateMemory"},
		{"BindBufferMemory"},
	}
	for _, tt := range tests {
		t.Run(tt.step, func(t *testing.T) {
			inst, dev, drv := newTestDevice(t)
			drv.state.failOn(tt.step)

			_, err := inst.CreateBuffer(dev, BufferUsageStorage, MemoryPropertyDeviceLocal, 4096)
			if !errors.Is(err, ErrUnableToCreateBuffer) {
				t.Errorf("CreateBuffer() error = %v, want %v", err, ErrUnableToCreateBuffer)
			}
			if n := inst.buffers.Len(); n != 0 {
				t.Errorf("%d buffers stored after failure, want 0", n)
			}
			if n := drv.state.count("buffer"); n != 0 {
				t.Errorf("%d native buffers alive after failure, want 0", n)
			}
		})
	}
}

func TestCreateBufferZeroSize(t *testing.T) {
	inst, dev, _ := newTestDevice(t)
	if _, err := inst.CreateBuffer(dev, BufferUsageStorage, MemoryPropertyDeviceLocal, 0); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("CreateBuffer(0) error = %v, want %v", err, ErrInvalidArgument)
	}
}
