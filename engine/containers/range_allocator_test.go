package containers

import "testing"

func TestRangeAllocator(t *testing.T) {
	a := NewRangeAllocator(1024)

	if _, ok := a.Allocate(2048, 1); ok {
		t.Error("allocation larger than the region succeeded")
	}

	first, ok := a.Allocate(512, 1)
	if !ok || first.Offset != 0 {
		t.Fatalf("Allocate(512) = %v, %v", first, ok)
	}
	if _, ok := a.Allocate(768, 1); ok {
		t.Error("Allocate(768) succeeded with 512 bytes left")
	}

	second, ok := a.Allocate(500, 1)
	if !ok || second.Offset != 512 {
		t.Fatalf("Allocate(500) = %v, %v", second, ok)
	}
	if _, ok := a.Allocate(50, 1); ok {
		t.Error("Allocate(50) succeeded with 12 bytes left")
	}

	if !a.Free(first) {
		t.Fatalf("Free(%v) failed", first)
	}
	if a.Free(first) {
		t.Errorf("second Free(%v) succeeded", first)
	}

	third, ok := a.Allocate(20, 1)
	if !ok || third.Offset != 0 {
		t.Errorf("Allocate(20) = %v, %v, want the freed head", third, ok)
	}
	if a.Used() != 520 {
		t.Errorf("Used() = %d, want 520", a.Used())
	}
}

func TestRangeAllocatorAlignment(t *testing.T) {
	a := NewRangeAllocator(4096)

	if _, ok := a.Allocate(10, 1); !ok {
		t.Fatal("Allocate(10) failed")
	}
	r, ok := a.Allocate(100, 256)
	if !ok {
		t.Fatal("aligned allocation failed")
	}
	if r.Offset != 256 {
		t.Errorf("Offset = %d, want 256", r.Offset)
	}

	// The gap [10, 256) fits an aligned 64 byte span at 64.
	g, ok := a.Allocate(64, 64)
	if !ok || g.Offset != 64 {
		t.Errorf("gap allocation = %v, %v, want offset 64", g, ok)
	}
}
