package gpu

import (
	"errors"
	"sync"

	"github.com/spaghettifunk/cgpu/engine/containers"
)

// DeferredFrameCount is the number of frames a deferred destruction waits.
const DeferredFrameCount = 4

// DeferredDestroyer holds handles that may still be referenced by work in
// flight. Handles queued during a frame are destroyed DeferredFrameCount
// calls to NextFrame later.
type DeferredDestroyer struct {
	inst   *Instance
	device Device

	mu      sync.Mutex
	current []Resource
	frames  *containers.RingQueue[[]Resource]
}

func NewDeferredDestroyer(inst *Instance, device Device) *DeferredDestroyer {
	return &DeferredDestroyer{
		inst:   inst,
		device: device,
		frames: containers.NewRingQueue[[]Resource](DeferredFrameCount),
	}
}

// Enqueue schedules resources for destruction.
func (d *DeferredDestroyer) Enqueue(resources ...Resource) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, r := range resources {
		if r.IsValid() {
			d.current = append(d.current, r)
		}
	}
}

// NextFrame closes the current frame and destroys the resources queued
// DeferredFrameCount frames ago.
func (d *DeferredDestroyer) NextFrame() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.frames.Enqueue(d.current); err != nil {
		return err
	}
	d.current = nil
	if !d.frames.IsFull() {
		return nil
	}
	expired, err := d.frames.Dequeue()
	if err != nil {
		return err
	}
	return d.destroy(expired)
}

// Pending returns the number of resources not yet destroyed.
func (d *DeferredDestroyer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := len(d.current)
	for i := 0; i < d.frames.Len(); i++ {
		frame, _ := d.frames.Dequeue()
		n += len(frame)
		_ = d.frames.Enqueue(frame)
	}
	return n
}

// DestroyAll destroys everything queued, oldest first. Call it after the
// device went idle.
func (d *DeferredDestroyer) DestroyAll() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	for !d.frames.IsEmpty() {
		frame, _ := d.frames.Dequeue()
		errs = append(errs, d.destroy(frame))
	}
	errs = append(errs, d.destroy(d.current))
	d.current = nil
	return errors.Join(errs...)
}

func (d *DeferredDestroyer) destroy(resources []Resource) error {
	var errs []error
	for _, r := range resources {
		if err := d.inst.Destroy(d.device, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
