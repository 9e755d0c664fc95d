package gpu

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/cgpu/engine/containers"
	"github.com/spaghettifunk/cgpu/engine/core"
	"github.com/spaghettifunk/cgpu/engine/math"
)

// DefaultMemoryBlockSize is the size of the device memory blocks shared by
// small allocations.
const DefaultMemoryBlockSize uint64 = 64 * 1024 * 1024

type memoryBlock struct {
	memory     NativeObject
	memoryType uint32
	size       uint64
	ranges     *containers.RangeAllocator
	dedicated  bool
	// linear blocks hold buffers and linearly tiled images only.
	linear bool

	mapped   []byte
	mapCount int
}

// allocation is a span of a memory block bound to one buffer or image.
type allocation struct {
	block  *memoryBlock
	offset uint64
	size   uint64
}

// memoryAllocator sub-allocates device memory. Allocations larger than half
// a block get a dedicated block of their own. When the buffer image
// granularity is above one, linear and optimally tiled resources never
// share a block.
type memoryAllocator struct {
	mu sync.Mutex

	device                 LogicalDevice
	props                  MemoryProperties
	blockSize              uint64
	nonCoherentAtomSize    uint64
	bufferImageGranularity uint64
	blocks                 map[uint32][]*memoryBlock
}

func newMemoryAllocator(device LogicalDevice, props MemoryProperties, blockSize uint64, limits Limits) (*memoryAllocator, error) {
	if len(props.Types) == 0 {
		return nil, fmt.Errorf("%w: device reports no memory types", ErrUnableToInitializeAllocator)
	}
	if blockSize == 0 {
		blockSize = DefaultMemoryBlockSize
	}
	return &memoryAllocator{
		device:                 device,
		props:                  props,
		blockSize:              blockSize,
		nonCoherentAtomSize:    math.Max(limits.NonCoherentAtomSize, 1),
		bufferImageGranularity: math.Max(limits.BufferImageGranularity, 1),
		blocks:                 make(map[uint32][]*memoryBlock),
	}, nil
}

// allocate finds memory for req. linear is true for buffers and linearly
// tiled images.
func (a *memoryAllocator) allocate(req MemoryRequirements, required MemoryPropertyFlags, linear bool) (*allocation, error) {
	memoryType, ok := a.props.FindMemoryType(req.MemoryTypeBits, required)
	if !ok {
		return nil, fmt.Errorf("%w: no memory type with properties %#x", ErrUnableToAllocateMemory, uint32(required))
	}
	alignment := math.Max(req.Alignment, 1)

	a.mu.Lock()
	defer a.mu.Unlock()

	if req.Size > a.blockSize/2 {
		block, err := a.newBlock(memoryType, req.Size, true, linear)
		if err != nil {
			return nil, err
		}
		r, _ := block.ranges.Allocate(req.Size, 1)
		return &allocation{block: block, offset: r.Offset, size: r.Size}, nil
	}

	for _, block := range a.blocks[memoryType] {
		if block.dedicated || !a.compatible(block, linear) {
			continue
		}
		if r, ok := block.ranges.Allocate(req.Size, alignment); ok {
			return &allocation{block: block, offset: r.Offset, size: r.Size}, nil
		}
	}

	block, err := a.newBlock(memoryType, a.blockSize, false, linear)
	if err != nil {
		return nil, err
	}
	r, ok := block.ranges.Allocate(req.Size, alignment)
	if !ok {
		return nil, fmt.Errorf("%w: %d bytes do not fit a fresh block", ErrUnableToAllocateMemory, req.Size)
	}
	return &allocation{block: block, offset: r.Offset, size: r.Size}, nil
}

func (a *memoryAllocator) compatible(block *memoryBlock, linear bool) bool {
	return a.bufferImageGranularity <= 1 || block.linear == linear
}

func (a *memoryAllocator) newBlock(memoryType uint32, size uint64, dedicated, linear bool) (*memoryBlock, error) {
	memory, err := a.device.AllocateMemory(size, memoryType)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnableToAllocateMemory, err)
	}
	block := &memoryBlock{
		memory:     memory,
		memoryType: memoryType,
		size:       size,
		ranges:     containers.NewRangeAllocator(size),
		dedicated:  dedicated,
		linear:     linear,
	}
	a.blocks[memoryType] = append(a.blocks[memoryType], block)
	core.LogDebug("allocated %d byte memory block of type %d (dedicated: %t)", size, memoryType, dedicated)
	return block, nil
}

func (a *memoryAllocator) free(alloc *allocation) {
	if alloc == nil || alloc.block == nil {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	block := alloc.block
	if !block.ranges.Free(containers.Range{Offset: alloc.offset, Size: alloc.size}) {
		core.LogWarn("freeing unknown memory range [%d %d]", alloc.offset, alloc.size)
		return
	}
	alloc.block = nil

	// Shared blocks stay around for reuse; dedicated ones go immediately.
	if block.dedicated && block.ranges.IsEmpty() {
		a.releaseBlock(block)
	}
}

func (a *memoryAllocator) releaseBlock(block *memoryBlock) {
	if block.mapCount > 0 {
		a.device.UnmapMemory(block.memory)
		block.mapped = nil
		block.mapCount = 0
	}
	a.device.FreeMemory(block.memory)

	blocks := a.blocks[block.memoryType]
	for i, b := range blocks {
		if b == block {
			a.blocks[block.memoryType] = append(blocks[:i], blocks[i+1:]...)
			break
		}
	}
}

func (a *memoryAllocator) properties(alloc *allocation) MemoryPropertyFlags {
	return a.props.Types[alloc.block.memoryType].Properties
}

// mapMemory returns the bytes of the allocation. Blocks stay mapped while
// any allocation in them is mapped.
func (a *memoryAllocator) mapMemory(alloc *allocation) ([]byte, error) {
	if !a.properties(alloc).Has(MemoryPropertyHostVisible) {
		return nil, ErrMemoryNotHostVisible
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	block := alloc.block
	if block.mapCount == 0 {
		mapped, err := a.device.MapMemory(block.memory, block.size)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnableToMapMemory, err)
		}
		block.mapped = mapped
	}
	block.mapCount++

	end := alloc.offset + alloc.size
	return block.mapped[alloc.offset:end:end], nil
}

func (a *memoryAllocator) unmapMemory(alloc *allocation) {
	a.mu.Lock()
	defer a.mu.Unlock()

	block := alloc.block
	if block.mapCount == 0 {
		return
	}
	block.mapCount--
	if block.mapCount == 0 {
		a.device.UnmapMemory(block.memory)
		block.mapped = nil
	}
}

// atomRange converts an allocation relative range to a block relative one
// rounded out to the non-coherent atom size.
func (a *memoryAllocator) atomRange(alloc *allocation, offset, size uint64) (uint64, uint64, error) {
	if offset > alloc.size {
		return 0, 0, fmt.Errorf("%w: offset %d beyond %d bytes", ErrInvalidArgument, offset, alloc.size)
	}
	if size == WholeSize {
		size = alloc.size - offset
	}
	if offset+size > alloc.size {
		return 0, 0, fmt.Errorf("%w: range [%d %d] beyond %d bytes", ErrInvalidArgument, offset, size, alloc.size)
	}

	start := math.AlignDown(alloc.offset+offset, a.nonCoherentAtomSize)
	end := math.Min(math.AlignUp(alloc.offset+offset+size, a.nonCoherentAtomSize), alloc.block.size)
	return start, end - start, nil
}

func (a *memoryAllocator) flush(alloc *allocation, offset, size uint64) error {
	start, length, err := a.atomRange(alloc, offset, size)
	if err != nil {
		return err
	}
	if a.properties(alloc).Has(MemoryPropertyHostCoherent) {
		return nil
	}
	if err := a.device.FlushMemory(alloc.block.memory, start, length); err != nil {
		return fmt.Errorf("%w: %w", ErrUnableToFlushMemory, err)
	}
	return nil
}

func (a *memoryAllocator) invalidate(alloc *allocation, offset, size uint64) error {
	start, length, err := a.atomRange(alloc, offset, size)
	if err != nil {
		return err
	}
	if a.properties(alloc).Has(MemoryPropertyHostCoherent) {
		return nil
	}
	if err := a.device.InvalidateMemory(alloc.block.memory, start, length); err != nil {
		return fmt.Errorf("%w: %w", ErrUnableToInvalidateMemory, err)
	}
	return nil
}

// blockCount returns the number of live native allocations.
func (a *memoryAllocator) blockCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := 0
	for _, blocks := range a.blocks {
		n += len(blocks)
	}
	return n
}

// destroy frees every block, including blocks that still hold allocations.
func (a *memoryAllocator) destroy() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for memoryType, blocks := range a.blocks {
		for _, block := range blocks {
			if !block.ranges.IsEmpty() {
				core.LogWarn("memory block of type %d destroyed with %d bytes in use", memoryType, block.ranges.Used())
			}
			if block.mapCount > 0 {
				a.device.UnmapMemory(block.memory)
			}
			a.device.FreeMemory(block.memory)
		}
	}
	a.blocks = make(map[uint32][]*memoryBlock)
}
