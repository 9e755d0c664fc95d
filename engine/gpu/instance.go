package gpu

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/spaghettifunk/cgpu/engine/containers"
	"github.com/spaghettifunk/cgpu/engine/core"
)

type InstanceOptions struct {
	AppName    string
	AppVersion Version
	// Validation turns on the validation layer when the loader has it.
	Validation bool
}

// Instance is the context every operation runs against. It owns the native
// instance and one handle store per resource kind. Several instances may
// live side by side.
type Instance struct {
	id     uuid.UUID
	driver Driver
	locks  *lockPool
	log    *log.Logger

	devices        *containers.Store[deviceRecord]
	buffers        *containers.Store[bufferRecord]
	images         *containers.Store[imageRecord]
	samplers       *containers.Store[samplerRecord]
	shaders        *containers.Store[shaderRecord]
	pipelines      *containers.Store[pipelineRecord]
	commandBuffers *containers.Store[commandBufferRecord]
	fences         *containers.Store[fenceRecord]

	terminated bool
}

// NewInstance creates the native instance through driver.
func NewInstance(driver Driver, opts InstanceOptions) (*Instance, error) {
	inst := &Instance{
		id:     uuid.New(),
		driver: driver,
		locks:  newLockPool(),

		devices:        containers.NewStore[deviceRecord](1, 0),
		buffers:        containers.NewStore[bufferRecord](16, 0),
		images:         containers.NewStore[imageRecord](64, 0),
		samplers:       containers.NewStore[samplerRecord](64, 0),
		shaders:        containers.NewStore[shaderRecord](16, 0),
		pipelines:      containers.NewStore[pipelineRecord](8, 0),
		commandBuffers: containers.NewStore[commandBufferRecord](16, 0),
		fences:         containers.NewStore[fenceRecord](8, 0),
	}
	inst.log = core.LogWith("instance", inst.id.String())

	info := InstanceInfo{
		AppName:    opts.AppName,
		AppVersion: opts.AppVersion,
		APIVersion: MinAPIVersion,
		Validation: opts.Validation,
	}
	if err := driver.CreateInstance(info); err != nil {
		inst.log.Errorf("failed to create instance: %v", err)
		return nil, fmt.Errorf("%w: %w", ErrUnableToInitializeVulkan, err)
	}

	inst.log.Infof("Instance created for %s %s (validation: %t)", opts.AppName, opts.AppVersion, opts.Validation)
	return inst, nil
}

func (inst *Instance) ID() uuid.UUID {
	return inst.id
}

// DeviceCount returns the number of physical devices.
func (inst *Instance) DeviceCount() (int, error) {
	devices, err := inst.driver.PhysicalDevices()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrUnableToInitializeVulkan, err)
	}
	return len(devices), nil
}

// Terminate destroys the native instance. Handles still alive are reported
// and released from their stores; their native objects are not destroyed.
func (inst *Instance) Terminate() error {
	if inst.terminated {
		return ErrInstanceTerminated
	}

	leaks := []struct {
		kind string
		n    int
	}{
		{"device", inst.devices.Len()},
		{"buffer", inst.buffers.Len()},
		{"image", inst.images.Len()},
		{"sampler", inst.samplers.Len()},
		{"shader", inst.shaders.Len()},
		{"pipeline", inst.pipelines.Len()},
		{"command buffer", inst.commandBuffers.Len()},
		{"fence", inst.fences.Len()},
	}
	for _, l := range leaks {
		if l.n > 0 {
			inst.log.Warnf("%d %s handle(s) still alive at termination", l.n, l.kind)
		}
	}

	inst.devices.Reset()
	inst.buffers.Reset()
	inst.images.Reset()
	inst.samplers.Reset()
	inst.shaders.Reset()
	inst.pipelines.Reset()
	inst.commandBuffers.Reset()
	inst.fences.Reset()

	inst.driver.DestroyInstance()
	inst.terminated = true
	inst.log.Info("Instance terminated")
	return nil
}

// insert stores rec under a fresh handle. The record only becomes reachable
// once it is fully built.
func insert[T any](inst *Instance, group LockGroup, store *containers.Store[T], rec T) (containers.Handle, error) {
	var h containers.Handle
	err := inst.locks.SafeCall(group, func() error {
		handle, slot, err := store.Alloc()
		if err != nil {
			return err
		}
		*slot = rec
		h = handle
		return nil
	})
	return h, err
}

func resolve[T any](inst *Instance, group LockGroup, store *containers.Store[T], h containers.Handle) (*T, error) {
	var rec *T
	_ = inst.locks.SafeCall(group, func() error {
		rec, _ = store.Resolve(h)
		return nil
	})
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidHandle, h)
	}
	return rec, nil
}

// remove frees the handle and hands back the record so the caller can
// release its native objects.
func remove[T any](inst *Instance, group LockGroup, store *containers.Store[T], h containers.Handle) (*T, error) {
	var rec *T
	err := inst.locks.SafeCall(group, func() error {
		r, ok := store.Resolve(h)
		if !ok {
			return fmt.Errorf("%w: %s", ErrInvalidHandle, h)
		}
		copied := *r
		rec = &copied
		return store.Free(h)
	})
	return rec, err
}

// count returns the number of live records in a store.
func count[T any](inst *Instance, group LockGroup, store *containers.Store[T]) int {
	n := 0
	_ = inst.locks.SafeCall(group, func() error {
		n = store.Len()
		return nil
	})
	return n
}
