package containers

import (
	"errors"
	"fmt"
)

// Handle identifies a record inside a Store. The low 32 bits hold the slot
// index plus one, the high 32 bits hold the slot generation. Zero is never
// handed out.
type Handle uint64

const InvalidHandle Handle = 0

var (
	ErrLimitReached = errors.New("store limit reached")
	ErrStaleHandle  = errors.New("stale or unknown handle")
)

func makeHandle(index, generation uint32) Handle {
	return Handle(uint64(generation)<<32 | uint64(index+1))
}

// Index returns the slot index encoded in the handle.
func (h Handle) Index() uint32 {
	return uint32(h&0xffffffff) - 1
}

// Generation returns the slot generation encoded in the handle.
func (h Handle) Generation() uint32 {
	return uint32(h >> 32)
}

func (h Handle) IsValid() bool {
	return h != InvalidHandle && uint32(h&0xffffffff) != 0
}

func (h Handle) String() string {
	if !h.IsValid() {
		return "invalid"
	}
	return fmt.Sprintf("%d#%d", h.Index(), h.Generation())
}

type slot[T any] struct {
	value      *T
	generation uint32
	live       bool
}

// Store is a slab of records addressed by generational handles. Freed slots
// are reused; the generation is bumped on free so a stale handle never
// resolves to the record that took its place. A Store is not synchronized.
type Store[T any] struct {
	slots []slot[T]
	free  []uint32
	limit int
	live  int
}

// NewStore creates a store with room for capacity records before it grows.
// A limit > 0 caps the number of live records.
func NewStore[T any](capacity, limit int) *Store[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Store[T]{
		slots: make([]slot[T], 0, capacity),
		free:  make([]uint32, 0, capacity),
		limit: limit,
	}
}

// Alloc reserves a slot and returns its handle along with a zeroed record.
func (s *Store[T]) Alloc() (Handle, *T, error) {
	if s.limit > 0 && s.live >= s.limit {
		return InvalidHandle, nil, ErrLimitReached
	}

	var index uint32
	if n := len(s.free); n > 0 {
		// Existing free spot. Take it.
		index = s.free[n-1]
		s.free = s.free[:n-1]
	} else {
		// append grows the backing array geometrically; handles stay valid
		// because they carry indices and records live behind pointers.
		s.slots = append(s.slots, slot[T]{generation: 1})
		index = uint32(len(s.slots) - 1)
	}

	sl := &s.slots[index]
	sl.value = new(T)
	sl.live = true
	s.live++
	return makeHandle(index, sl.generation), sl.value, nil
}

// Resolve looks a handle up without allocating.
func (s *Store[T]) Resolve(h Handle) (*T, bool) {
	sl := s.slot(h)
	if sl == nil {
		return nil, false
	}
	return sl.value, true
}

// Free releases the slot behind h. Freeing an unknown or stale handle is
// reported and has no effect.
func (s *Store[T]) Free(h Handle) error {
	sl := s.slot(h)
	if sl == nil {
		return fmt.Errorf("%w: %s", ErrStaleHandle, h)
	}
	sl.release()
	s.free = append(s.free, h.Index())
	s.live--
	return nil
}

func (sl *slot[T]) release() {
	sl.value = nil
	sl.live = false
	sl.generation++
	if sl.generation == 0 {
		sl.generation = 1
	}
}

func (s *Store[T]) slot(h Handle) *slot[T] {
	if !h.IsValid() {
		return nil
	}
	index := h.Index()
	if int(index) >= len(s.slots) {
		return nil
	}
	sl := &s.slots[index]
	if !sl.live || sl.generation != h.Generation() {
		return nil
	}
	return sl
}

// Len returns the number of live records.
func (s *Store[T]) Len() int {
	return s.live
}

// Cap returns the number of slots currently backed by memory.
func (s *Store[T]) Cap() int {
	return len(s.slots)
}

// Each calls fn for every live record in slot order.
func (s *Store[T]) Each(fn func(Handle, *T)) {
	for i := range s.slots {
		sl := &s.slots[i]
		if sl.live {
			fn(makeHandle(uint32(i), sl.generation), sl.value)
		}
	}
}

// Reset drops every record. Outstanding handles become stale.
func (s *Store[T]) Reset() {
	for i := range s.slots {
		if s.slots[i].live {
			s.slots[i].release()
			s.free = append(s.free, uint32(i))
		}
	}
	s.live = 0
}
