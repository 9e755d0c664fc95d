package containers

import (
	"errors"
	"testing"
)

func TestRingQueue(t *testing.T) {
	q := NewRingQueue[int](2)

	if _, err := q.Dequeue(); !errors.Is(err, ErrQueueEmpty) {
		t.Errorf("Dequeue() on empty error = %v", err)
	}
	_ = q.Enqueue(1)
	_ = q.Enqueue(2)
	if err := q.Enqueue(3); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Enqueue() on full error = %v", err)
	}
	if v, _ := q.Peek(); v != 1 {
		t.Errorf("Peek() = %d, want 1", v)
	}
	if v, _ := q.Dequeue(); v != 1 {
		t.Errorf("Dequeue() = %d, want 1", v)
	}
	_ = q.Enqueue(3)
	if v, _ := q.Dequeue(); v != 2 {
		t.Errorf("Dequeue() = %d, want 2", v)
	}
	if v, _ := q.Dequeue(); v != 3 {
		t.Errorf("Dequeue() = %d, want 3", v)
	}
	if q.Len() != 0 {
		t.Errorf("Len() = %d, want 0", q.Len())
	}
}
