package containers

import (
	"fmt"
	"sort"

	"github.com/spaghettifunk/cgpu/engine/math"
)

// Range is a reserved [Offset, Offset+Size) span.
type Range struct {
	Offset uint64
	Size   uint64
}

func (r Range) End() uint64 {
	return r.Offset + r.Size
}

func (r Range) String() string {
	return fmt.Sprintf("[%d %d]", r.Offset, r.Size)
}

// RangeAllocator hands out aligned spans of a fixed sized region using first
// fit over the sorted list of live spans.
type RangeAllocator struct {
	size   uint64
	ranges []Range
	used   uint64
}

func NewRangeAllocator(size uint64) *RangeAllocator {
	return &RangeAllocator{size: size}
}

// Allocate reserves size bytes at an offset that is a multiple of align.
func (a *RangeAllocator) Allocate(size, align uint64) (Range, bool) {
	if size == 0 || size > a.size {
		return Range{}, false
	}

	prevEnd := uint64(0)
	for i, r := range a.ranges {
		offset := math.AlignUp(prevEnd, align)
		if offset+size <= r.Offset {
			return a.insert(i, Range{Offset: offset, Size: size}), true
		}
		prevEnd = r.End()
	}

	offset := math.AlignUp(prevEnd, align)
	if offset+size > a.size || offset+size < offset {
		return Range{}, false
	}
	return a.insert(len(a.ranges), Range{Offset: offset, Size: size}), true
}

func (a *RangeAllocator) insert(i int, r Range) Range {
	a.ranges = append(a.ranges, Range{})
	copy(a.ranges[i+1:], a.ranges[i:])
	a.ranges[i] = r
	a.used += r.Size
	return r
}

// Free releases a span previously returned by Allocate.
func (a *RangeAllocator) Free(r Range) bool {
	i := sort.Search(len(a.ranges), func(i int) bool {
		return a.ranges[i].Offset >= r.Offset
	})
	if i == len(a.ranges) || a.ranges[i] != r {
		return false
	}
	a.ranges = append(a.ranges[:i], a.ranges[i+1:]...)
	a.used -= r.Size
	return true
}

func (a *RangeAllocator) Size() uint64 {
	return a.size
}

func (a *RangeAllocator) Used() uint64 {
	return a.used
}

func (a *RangeAllocator) IsEmpty() bool {
	return len(a.ranges) == 0
}

func (a *RangeAllocator) String() string {
	return fmt.Sprintf("%v", a.ranges)
}
