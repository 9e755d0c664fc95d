package gpu

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/spaghettifunk/cgpu/engine/math"
)

// defaultSamplerAnisotropy is lowered to the device limit.
const defaultSamplerAnisotropy float32 = 16

const (
	extDescriptorIndexing = "VK_EXT_descriptor_indexing"
	extPortabilitySubset  = "VK_KHR_portability_subset"
)

type DeviceOptions struct {
	// MemoryBlockSize is the size of shared device memory blocks. Zero
	// selects DefaultMemoryBlockSize.
	MemoryBlockSize uint64
}

type deviceRecord struct {
	id          uuid.UUID
	log         *log.Logger
	physical    PhysicalDevice
	logical     LogicalDevice
	properties  DeviceProperties
	memory      MemoryProperties
	queueFamily uint32

	commandPool   NativeObject
	sampler       NativeObject
	timestampPool NativeObject
	allocator     *memoryAllocator
}

func (d *deviceRecord) limits() Limits {
	return d.properties.Limits
}

// CreateDevice opens the physical device at index. Every sub-object created
// before a failing step is destroyed again, newest first.
func (inst *Instance) CreateDevice(index int, opts DeviceOptions) (Device, error) {
	physicalDevices, err := inst.driver.PhysicalDevices()
	if err != nil {
		return Device{}, fmt.Errorf("%w: %w", ErrNoDeviceAtIndex, err)
	}
	if len(physicalDevices) > MaxPhysicalDevices {
		inst.log.Errorf("%d physical devices exceed the limit of %d", len(physicalDevices), MaxPhysicalDevices)
		return Device{}, ErrMaxPhysicalDevicesReached
	}
	if index < 0 || index >= len(physicalDevices) {
		inst.log.Errorf("no device at index %d (%d available)", index, len(physicalDevices))
		return Device{}, fmt.Errorf("%w: %d", ErrNoDeviceAtIndex, index)
	}

	rec := deviceRecord{
		id:       uuid.New(),
		physical: physicalDevices[index],
	}
	rec.properties = rec.physical.Properties()
	rec.memory = rec.physical.MemoryProperties()
	rec.log = inst.log.With("device", rec.id.String())

	props := rec.properties
	if props.APIVersion < MinAPIVersion {
		rec.log.Errorf("device %q reports API %s, need %s", props.Name, props.APIVersion, MinAPIVersion)
		return Device{}, fmt.Errorf("%w: %s", ErrVersionNotSupported, props.APIVersion)
	}
	required := SubgroupFeatureBasic | SubgroupFeatureBallot
	if !props.SubgroupCompute || props.SubgroupOperations&required != required {
		rec.log.Errorf("device %q lacks compute subgroup basic and ballot operations", props.Name)
		return Device{}, fmt.Errorf("%w: subgroup operations", ErrFeatureRequirementsNotMet)
	}

	extensions, err := rec.physical.Extensions()
	if err != nil {
		return Device{}, fmt.Errorf("%w: %w", ErrFeatureRequirementsNotMet, err)
	}
	if len(extensions) > MaxDeviceExtensions {
		rec.log.Errorf("%d device extensions exceed the limit of %d", len(extensions), MaxDeviceExtensions)
		return Device{}, ErrMaxDeviceExtensionsReached
	}
	enabled, err := deviceExtensions(extensions)
	if err != nil {
		rec.log.Errorf("device %q: %v", props.Name, err)
		return Device{}, err
	}

	families, err := rec.physical.QueueFamilies()
	if err != nil {
		return Device{}, fmt.Errorf("%w: %w", ErrDeviceHasNoComputeQueue, err)
	}
	if len(families) > MaxQueueFamilies {
		rec.log.Errorf("%d queue families exceed the limit of %d", len(families), MaxQueueFamilies)
		return Device{}, ErrMaxQueueFamiliesReached
	}
	family, ok := computeQueueFamily(families)
	if !ok {
		rec.log.Errorf("device %q has no compute and transfer queue family", props.Name)
		return Device{}, ErrDeviceHasNoComputeQueue
	}
	rec.queueFamily = family

	var unwind []func()
	fail := func(kind error, err error) (Device, error) {
		for i := len(unwind) - 1; i >= 0; i-- {
			unwind[i]()
		}
		rec.log.Errorf("device creation failed: %v: %v", kind, err)
		return Device{}, fmt.Errorf("%w: %w", kind, err)
	}

	rec.logical, err = rec.physical.CreateLogicalDevice(LogicalDeviceInfo{
		QueueFamily:        family,
		Extensions:         enabled,
		DescriptorIndexing: true,
	})
	if err != nil {
		return fail(ErrCanNotCreateLogicalDevice, err)
	}
	unwind = append(unwind, rec.logical.Destroy)

	rec.commandPool, err = rec.logical.CreateCommandPool(family)
	if err != nil {
		return fail(ErrCanNotCreateCommandPool, err)
	}
	unwind = append(unwind, func() { rec.logical.DestroyCommandPool(rec.commandPool) })

	rec.sampler, err = rec.logical.CreateSampler(SamplerDesc{
		AddressModeU:  SamplerAddressModeRepeat,
		AddressModeV:  SamplerAddressModeRepeat,
		AddressModeW:  SamplerAddressModeRepeat,
		BorderColor:   BorderColorTransparentBlack,
		MaxAnisotropy: math.Clamp(defaultSamplerAnisotropy, 1, props.Limits.MaxSamplerAnisotropy),
		CompareAlways: true,
	})
	if err != nil {
		return fail(ErrUnableToCreateSampler, err)
	}
	unwind = append(unwind, func() { rec.logical.DestroySampler(rec.sampler) })

	rec.timestampPool, err = rec.logical.CreateTimestampPool(MaxTimestampQueries)
	if err != nil {
		return fail(ErrUnableToCreateQueryPool, err)
	}
	unwind = append(unwind, func() { rec.logical.DestroyQueryPool(rec.timestampPool) })

	rec.allocator, err = newMemoryAllocator(rec.logical, rec.memory, opts.MemoryBlockSize, props.Limits)
	if err != nil {
		return fail(ErrUnableToInitializeAllocator, err)
	}
	unwind = append(unwind, rec.allocator.destroy)

	h, err := insert(inst, DeviceManagement, inst.devices, rec)
	if err != nil {
		return fail(ErrCanNotCreateLogicalDevice, err)
	}

	rec.log.Infof("Selected device: '%s' (%s)", props.Name, props.Type)
	rec.log.Infof("Vulkan API version: %s, driver version: %#x", props.APIVersion, props.DriverVersion)
	for i, heap := range rec.memory.Heaps {
		if heap.DeviceLocal {
			rec.log.Infof("Local GPU memory heap %d: %.2f GiB", i, float64(heap.Size)/(1024*1024*1024))
		} else {
			rec.log.Infof("Shared system memory heap %d: %.2f GiB", i, float64(heap.Size)/(1024*1024*1024))
		}
	}
	rec.log.Debugf("Compute queue family %d, subgroup size %d", family, props.Limits.SubgroupSize)
	return Device{handle: h}, nil
}

// deviceExtensions returns the extensions to enable from those available.
func deviceExtensions(available []string) ([]string, error) {
	has := func(name string) bool {
		for _, ext := range available {
			if ext == name {
				return true
			}
		}
		return false
	}

	if !has(extDescriptorIndexing) {
		return nil, fmt.Errorf("%w: missing %s", ErrFeatureRequirementsNotMet, extDescriptorIndexing)
	}
	enabled := []string{extDescriptorIndexing}
	if has(extPortabilitySubset) {
		enabled = append(enabled, extPortabilitySubset)
	}
	return enabled, nil
}

// computeQueueFamily picks the first family with both compute and transfer
// support.
func computeQueueFamily(families []QueueFamily) (uint32, bool) {
	for i, f := range families {
		if f.Compute && f.Transfer {
			return uint32(i), true
		}
	}
	return 0, false
}

// DestroyDevice releases the allocator, query pool, default sampler,
// command pool and logical device, in that order.
func (inst *Instance) DestroyDevice(device Device) error {
	rec, err := remove(inst, DeviceManagement, inst.devices, device.handle)
	if err != nil {
		return err
	}

	rec.allocator.destroy()
	rec.logical.DestroyQueryPool(rec.timestampPool)
	rec.logical.DestroySampler(rec.sampler)
	rec.logical.DestroyCommandPool(rec.commandPool)
	rec.logical.Destroy()
	rec.log.Info("Device destroyed")
	return nil
}

// Limits returns the cached limits of the device.
func (inst *Instance) Limits(device Device) (Limits, error) {
	rec, err := inst.device(device)
	if err != nil {
		return Limits{}, err
	}
	return rec.limits(), nil
}

// Properties returns the physical device description.
func (inst *Instance) Properties(device Device) (DeviceProperties, error) {
	rec, err := inst.device(device)
	if err != nil {
		return DeviceProperties{}, err
	}
	return rec.properties, nil
}

// WaitIdle blocks until the device finished all submitted work.
func (inst *Instance) WaitIdle(device Device) error {
	rec, err := inst.device(device)
	if err != nil {
		return err
	}
	if err := rec.logical.WaitIdle(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnableToWaitIdle, err)
	}
	return nil
}

func (inst *Instance) device(device Device) (*deviceRecord, error) {
	return resolve(inst, DeviceManagement, inst.devices, device.handle)
}
