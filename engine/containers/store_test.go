package containers

import (
	"errors"
	"testing"
)

type record struct {
	name string
	size uint64
}

func TestStoreRoundTrip(t *testing.T) {
	s := NewStore[record](2, 0)

	h, r, err := s.Alloc()
	if err != nil {
		t.Fatalf("Alloc() error = %v", err)
	}
	if h == InvalidHandle {
		t.Fatalf("Alloc() returned the invalid handle")
	}
	r.name = "buffer"
	r.size = 64

	got, ok := s.Resolve(h)
	if !ok {
		t.Fatalf("Resolve(%s) not found", h)
	}
	if got.name != "buffer" || got.size != 64 {
		t.Errorf("Resolve(%s) = %+v, want the initialized record", h, *got)
	}

	if err := s.Free(h); err != nil {
		t.Fatalf("Free(%s) error = %v", h, err)
	}
	if _, ok := s.Resolve(h); ok {
		t.Errorf("Resolve(%s) after Free found a record", h)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
}

func TestStoreSlotReuseBumpsGeneration(t *testing.T) {
	s := NewStore[record](1, 0)

	first, _, _ := s.Alloc()
	if err := s.Free(first); err != nil {
		t.Fatalf("Free() error = %v", err)
	}
	second, r, _ := s.Alloc()
	r.name = "second"

	if first.Index() != second.Index() {
		t.Fatalf("slot was not reused: %s vs %s", first, second)
	}
	if first.Generation() == second.Generation() {
		t.Fatalf("generation not bumped: %s vs %s", first, second)
	}
	if _, ok := s.Resolve(first); ok {
		t.Errorf("stale handle %s resolved to the new record", first)
	}
	if got, ok := s.Resolve(second); !ok || got.name != "second" {
		t.Errorf("Resolve(%s) = %v, %v", second, got, ok)
	}
	if err := s.Free(first); !errors.Is(err, ErrStaleHandle) {
		t.Errorf("double Free() error = %v, want %v", err, ErrStaleHandle)
	}
}

func TestStoreGrowthKeepsHandles(t *testing.T) {
	s := NewStore[record](1, 0)

	handles := make([]Handle, 0, 100)
	for i := 0; i < 100; i++ {
		h, r, err := s.Alloc()
		if err != nil {
			t.Fatalf("Alloc() #%d error = %v", i, err)
		}
		r.size = uint64(i)
		handles = append(handles, h)
	}
	for i, h := range handles {
		r, ok := s.Resolve(h)
		if !ok {
			t.Fatalf("Resolve(%s) not found after growth", h)
		}
		if r.size != uint64(i) {
			t.Errorf("Resolve(%s).size = %d, want %d", h, r.size, i)
		}
	}
	if s.Cap() != 100 {
		t.Errorf("Cap() = %d, want 100", s.Cap())
	}
}

func TestStoreLimit(t *testing.T) {
	s := NewStore[record](1, 2)

	a, _, _ := s.Alloc()
	if _, _, err := s.Alloc(); err != nil {
		t.Fatalf("Alloc() error = %v", err)
	}
	if _, _, err := s.Alloc(); !errors.Is(err, ErrLimitReached) {
		t.Fatalf("Alloc() over limit error = %v, want %v", err, ErrLimitReached)
	}
	_ = s.Free(a)
	if _, _, err := s.Alloc(); err != nil {
		t.Errorf("Alloc() after Free error = %v", err)
	}
}

func TestStoreResolveUnknown(t *testing.T) {
	s := NewStore[record](4, 0)

	tests := []struct {
		name   string
		handle Handle
	}{
		{"invalid", InvalidHandle},
		{"never allocated", makeHandle(3, 1)},
		{"zero index bits", Handle(1 << 32)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := s.Resolve(tt.handle); ok {
				t.Errorf("Resolve(%s) found a record", tt.handle)
			}
		})
	}
}

func TestStoreEachAndReset(t *testing.T) {
	s := NewStore[record](4, 0)
	a, _, _ := s.Alloc()
	b, _, _ := s.Alloc()
	c, _, _ := s.Alloc()
	_ = s.Free(b)

	var seen []Handle
	s.Each(func(h Handle, _ *record) {
		seen = append(seen, h)
	})
	if len(seen) != 2 || seen[0] != a || seen[1] != c {
		t.Errorf("Each() visited %v, want [%s %s]", seen, a, c)
	}

	s.Reset()
	if s.Len() != 0 {
		t.Errorf("Len() after Reset = %d, want 0", s.Len())
	}
	if _, ok := s.Resolve(a); ok {
		t.Errorf("Resolve(%s) after Reset found a record", a)
	}
}
