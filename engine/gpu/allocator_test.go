package gpu

import (
	"errors"
	"testing"
)

func testAllocator(t *testing.T) (*memoryAllocator, *fakeDriver) {
	t.Helper()
	inst, device, drv := newTestDevice(t)
	dev, err := inst.device(device)
	if err != nil {
		t.Fatalf("device() error = %v", err)
	}
	return dev.allocator, drv
}

func TestAllocatorSharedBlock(t *testing.T) {
	a, drv := testAllocator(t)
	req := MemoryRequirements{Size: 1000, Alignment: 256, MemoryTypeBits: 0xf}

	first, err := a.allocate(req, MemoryPropertyDeviceLocal, true)
	if err != nil {
		t.Fatalf("allocate() error = %v", err)
	}
	second, err := a.allocate(req, MemoryPropertyDeviceLocal, true)
	if err != nil {
		t.Fatalf("allocate() error = %v", err)
	}
	if first.block != second.block {
		t.Errorf("small allocations landed in different blocks")
	}
	if first.offset != 0 || second.offset != 1024 {
		t.Errorf("offsets = %d, %d, want 0, 1024", first.offset, second.offset)
	}
	if got := a.blockCount(); got != 1 {
		t.Errorf("blockCount() = %d, want 1", got)
	}

	a.free(first)
	a.free(second)
	if got := a.blockCount(); got != 1 {
		t.Errorf("blockCount() after free = %d, want 1", got)
	}
	if got := drv.state.count("memory"); got != 1 {
		t.Errorf("%d native allocations alive, want 1", got)
	}

	again, err := a.allocate(req, MemoryPropertyDeviceLocal, true)
	if err != nil {
		t.Fatalf("allocate() error = %v", err)
	}
	if again.offset != 0 {
		t.Errorf("reused offset = %d, want 0", again.offset)
	}
}

func TestAllocatorDedicatedBlock(t *testing.T) {
	a, drv := testAllocator(t)

	big, err := a.allocate(MemoryRequirements{Size: 600 << 10, Alignment: 256, MemoryTypeBits: 0xf}, MemoryPropertyDeviceLocal, true)
	if err != nil {
		t.Fatalf("allocate() error = %v", err)
	}
	if !big.block.dedicated {
		t.Errorf("allocation above half a block is not dedicated")
	}
	if big.block.size != 600<<10 {
		t.Errorf("dedicated block size = %d, want %d", big.block.size, 600<<10)
	}

	a.free(big)
	if got := a.blockCount(); got != 0 {
		t.Errorf("blockCount() after free = %d, want 0", got)
	}
	if got := drv.state.count("memory"); got != 0 {
		t.Errorf("%d native allocations alive, want 0", got)
	}
}

func TestAllocatorMemoryTypeSelection(t *testing.T) {
	tests := []struct {
		name     string
		bits     uint32
		required MemoryPropertyFlags
		want     uint32
		err      error
	}{
		{"device local", 0xf, MemoryPropertyDeviceLocal, memoryTypeDeviceLocal, nil},
		{"host visible", 0xf, MemoryPropertyHostVisible, memoryTypeHostCoherent, nil},
		{"rebar", 0xf, MemoryPropertyDeviceLocal | MemoryPropertyHostVisible, memoryTypeReBAR, nil},
		{"cached", 0xf, MemoryPropertyHostCached, memoryTypeHostCached, nil},
		{"filtered by bits", 1 << memoryTypeReBAR, MemoryPropertyDeviceLocal, memoryTypeReBAR, nil},
		{"no match", 0xf, MemoryPropertyDeviceLocal | MemoryPropertyHostCached, 0, ErrUnableToAllocateMemory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := testAllocator(t)
			alloc, err := a.allocate(MemoryRequirements{Size: 64, Alignment: 64, MemoryTypeBits: tt.bits}, tt.required, true)
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Errorf("allocate() error = %v, want %v", err, tt.err)
				}
				return
			}
			if err != nil {
				t.Fatalf("allocate() error = %v", err)
			}
			if alloc.block.memoryType != tt.want {
				t.Errorf("memory type = %d, want %d", alloc.block.memoryType, tt.want)
			}
		})
	}
}

func TestAllocatorMapSharesBlockMapping(t *testing.T) {
	a, drv := testAllocator(t)
	req := MemoryRequirements{Size: 512, Alignment: 256, MemoryTypeBits: 0xf}

	first, err := a.allocate(req, MemoryPropertyHostVisible, true)
	if err != nil {
		t.Fatalf("allocate() error = %v", err)
	}
	second, err := a.allocate(req, MemoryPropertyHostVisible, true)
	if err != nil {
		t.Fatalf("allocate() error = %v", err)
	}

	mark := drv.state.mark()
	a1, err := a.mapMemory(first)
	if err != nil {
		t.Fatalf("mapMemory() error = %v", err)
	}
	a2, err := a.mapMemory(second)
	if err != nil {
		t.Fatalf("mapMemory() error = %v", err)
	}
	if len(a1) != 512 || len(a2) != 512 || cap(a1) != 512 {
		t.Errorf("mapped lengths = %d, %d (cap %d), want 512", len(a1), len(a2), cap(a1))
	}
	a2[0] = 0xab
	if got := first.block.mapped[512]; got != 0xab {
		t.Errorf("write through second mapping landed at wrong offset")
	}

	a.unmapMemory(first)
	a.unmapMemory(second)
	if got := drv.state.callsSince(mark); len(got) != 2 || got[0] != "MapMemory" || got[1] != "UnmapMemory" {
		t.Errorf("native calls = %v, want [MapMemory UnmapMemory]", got)
	}
}

func TestAllocatorBufferImageGranularity(t *testing.T) {
	tests := []struct {
		name        string
		granularity uint64
		sameBlock   bool
	}{
		{"no granularity", 1, true},
		{"page granularity", 4096, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, drv := testAllocator(t)
			a.bufferImageGranularity = tt.granularity

			buffer, err := a.allocate(MemoryRequirements{Size: 100, Alignment: 256, MemoryTypeBits: 0xf}, MemoryPropertyDeviceLocal, true)
			if err != nil {
				t.Fatalf("allocate(linear) error = %v", err)
			}
			image, err := a.allocate(MemoryRequirements{Size: 1024, Alignment: 1024, MemoryTypeBits: 0xf}, MemoryPropertyDeviceLocal, false)
			if err != nil {
				t.Fatalf("allocate(optimal) error = %v", err)
			}
			if got := buffer.block == image.block; got != tt.sameBlock {
				t.Errorf("buffer and optimal image share a block = %t, want %t", got, tt.sameBlock)
			}

			second, err := a.allocate(MemoryRequirements{Size: 100, Alignment: 256, MemoryTypeBits: 0xf}, MemoryPropertyDeviceLocal, true)
			if err != nil {
				t.Fatalf("allocate(linear) error = %v", err)
			}
			if second.block != buffer.block {
				t.Errorf("second buffer did not reuse the linear block")
			}
			want := 1
			if !tt.sameBlock {
				want = 2
			}
			if got := drv.state.count("memory"); got != want {
				t.Errorf("%d native allocations alive, want %d", got, want)
			}
		})
	}
}
