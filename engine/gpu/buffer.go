package gpu

import "fmt"

type bufferRecord struct {
	device     Device
	native     NativeObject
	memory     *allocation
	size       uint64
	usage      BufferUsageFlags
	properties MemoryPropertyFlags
}

// CreateBuffer creates a buffer of size bytes backed by memory with the
// requested properties.
func (inst *Instance) CreateBuffer(device Device, usage BufferUsageFlags, properties MemoryPropertyFlags, size uint64) (Buffer, error) {
	dev, err := inst.device(device)
	if err != nil {
		return Buffer{}, err
	}
	if size == 0 {
		return Buffer{}, fmt.Errorf("%w: zero sized buffer", ErrInvalidArgument)
	}

	native, req, err := dev.logical.CreateBuffer(BufferDesc{Size: size, Usage: usage})
	if err != nil {
		dev.log.Errorf("failed to create %d byte buffer: %v", size, err)
		return Buffer{}, fmt.Errorf("%w: %w", ErrUnableToCreateBuffer, err)
	}
	alloc, err := dev.allocator.allocate(req, properties, true)
	if err != nil {
		dev.logical.DestroyBuffer(native)
		dev.log.Errorf("failed to allocate memory for %d byte buffer: %v", size, err)
		return Buffer{}, fmt.Errorf("%w: %w", ErrUnableToCreateBuffer, err)
	}
	if err := dev.logical.BindBufferMemory(native, alloc.block.memory, alloc.offset); err != nil {
		dev.allocator.free(alloc)
		dev.logical.DestroyBuffer(native)
		dev.log.Errorf("failed to bind buffer memory: %v", err)
		return Buffer{}, fmt.Errorf("%w: %w", ErrUnableToCreateBuffer, err)
	}

	h, err := insert(inst, BufferManagement, inst.buffers, bufferRecord{
		device:     device,
		native:     native,
		memory:     alloc,
		size:       size,
		usage:      usage,
		properties: properties,
	})
	if err != nil {
		dev.allocator.free(alloc)
		dev.logical.DestroyBuffer(native)
		return Buffer{}, fmt.Errorf("%w: %w", ErrUnableToCreateBuffer, err)
	}
	return Buffer{handle: h}, nil
}

func (inst *Instance) DestroyBuffer(device Device, buffer Buffer) error {
	dev, err := inst.device(device)
	if err != nil {
		return err
	}
	rec, err := remove(inst, BufferManagement, inst.buffers, buffer.handle)
	if err != nil {
		return err
	}
	dev.logical.DestroyBuffer(rec.native)
	dev.allocator.free(rec.memory)
	return nil
}

// BufferSize returns the size the buffer was created with.
func (inst *Instance) BufferSize(buffer Buffer) (uint64, error) {
	rec, err := inst.buffer(buffer)
	if err != nil {
		return 0, err
	}
	return rec.size, nil
}

// MapBuffer returns the buffer contents. The slice is exactly the buffer
// size and stays valid until UnmapBuffer.
func (inst *Instance) MapBuffer(device Device, buffer Buffer) ([]byte, error) {
	dev, err := inst.device(device)
	if err != nil {
		return nil, err
	}
	rec, err := inst.buffer(buffer)
	if err != nil {
		return nil, err
	}
	data, err := dev.allocator.mapMemory(rec.memory)
	if err != nil {
		dev.log.Errorf("failed to map %s: %v", buffer, err)
		return nil, err
	}
	return data[:rec.size:rec.size], nil
}

func (inst *Instance) UnmapBuffer(device Device, buffer Buffer) error {
	dev, err := inst.device(device)
	if err != nil {
		return err
	}
	rec, err := inst.buffer(buffer)
	if err != nil {
		return err
	}
	dev.allocator.unmapMemory(rec.memory)
	return nil
}

// FlushMappedMemory makes host writes in [offset, offset+size) visible to
// the device. size may be WholeSize.
func (inst *Instance) FlushMappedMemory(device Device, buffer Buffer, offset, size uint64) error {
	dev, err := inst.device(device)
	if err != nil {
		return err
	}
	rec, err := inst.buffer(buffer)
	if err != nil {
		return err
	}
	if size != WholeSize && offset+size > rec.size {
		return fmt.Errorf("%w: flush range [%d %d] beyond %d bytes", ErrInvalidArgument, offset, size, rec.size)
	}
	return dev.allocator.flush(rec.memory, offset, wholeOr(size, rec.size, offset))
}

// InvalidateMappedMemory makes device writes in [offset, offset+size)
// visible to the host. size may be WholeSize.
func (inst *Instance) InvalidateMappedMemory(device Device, buffer Buffer, offset, size uint64) error {
	dev, err := inst.device(device)
	if err != nil {
		return err
	}
	rec, err := inst.buffer(buffer)
	if err != nil {
		return err
	}
	if size != WholeSize && offset+size > rec.size {
		return fmt.Errorf("%w: invalidate range [%d %d] beyond %d bytes", ErrInvalidArgument, offset, size, rec.size)
	}
	return dev.allocator.invalidate(rec.memory, offset, wholeOr(size, rec.size, offset))
}

func (inst *Instance) buffer(buffer Buffer) (*bufferRecord, error) {
	return resolve(inst, BufferManagement, inst.buffers, buffer.handle)
}

// wholeOr resolves the WholeSize sentinel against a total size.
func wholeOr(size, total, offset uint64) uint64 {
	if size != WholeSize {
		return size
	}
	if offset >= total {
		return 0
	}
	return total - offset
}
