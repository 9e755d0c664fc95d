package gpu

import (
	"errors"
	"fmt"
	"sync"
)

// Resource is any handle a Device creates.
type Resource interface {
	IsValid() bool
	String() string
}

// Destroy releases a handle created on device by its matching destroy
// call.
func (inst *Instance) Destroy(device Device, resource Resource) error {
	switch h := resource.(type) {
	case Buffer:
		return inst.DestroyBuffer(device, h)
	case Image:
		return inst.DestroyImage(device, h)
	case Sampler:
		return inst.DestroySampler(device, h)
	case Shader:
		return inst.DestroyShader(device, h)
	case Pipeline:
		return inst.DestroyPipeline(device, h)
	case CommandBuffer:
		return inst.DestroyCommandBuffer(device, h)
	case Fence:
		return inst.DestroyFence(device, h)
	case Device:
		return inst.DestroyDevice(h)
	}
	return fmt.Errorf("%w: cannot destroy %T", ErrInvalidArgument, resource)
}

// Scope owns handles and releases them newest first:
//
//	scope := gpu.NewScope(inst, device)
//	defer scope.Release()
//	buf, err := gpu.Track[gpu.Buffer](scope)(inst.CreateBuffer(device, usage, props, size))
type Scope struct {
	inst   *Instance
	device Device

	mu        sync.Mutex
	resources []Resource
}

func NewScope(inst *Instance, device Device) *Scope {
	return &Scope{inst: inst, device: device}
}

// Add hands r over to the scope. Invalid handles are ignored.
func (s *Scope) Add(r Resource) {
	if !r.IsValid() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resources = append(s.resources, r)
}

// Track returns a function adding the result of a create call to the scope
// when it succeeded.
func Track[T Resource](s *Scope) func(T, error) (T, error) {
	return func(r T, err error) (T, error) {
		if err == nil {
			s.Add(r)
		}
		return r, err
	}
}

// Len returns the number of handles held.
func (s *Scope) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.resources)
}

// Release destroys every handle in reverse order of addition. All handles
// are attempted; the errors are joined.
func (s *Scope) Release() error {
	s.mu.Lock()
	resources := s.resources
	s.resources = nil
	s.mu.Unlock()

	var errs []error
	for i := len(resources) - 1; i >= 0; i-- {
		if err := s.inst.Destroy(s.device, resources[i]); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", resources[i], err))
		}
	}
	return errors.Join(errs...)
}
