package vulkan

import (
	"unsafe"

	"github.com/charmbracelet/log"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/cgpu/engine/gpu"
)

type physicalDevice struct {
	handle     vk.PhysicalDevice
	properties gpu.DeviceProperties
	memory     gpu.MemoryProperties
	log        *log.Logger
}

func newPhysicalDevice(handle vk.PhysicalDevice, logger *log.Logger) *physicalDevice {
	p := &physicalDevice{handle: handle}
	p.properties = queryProperties(handle)
	p.memory = queryMemoryProperties(handle)
	p.log = logger.With("device", p.properties.Name)

	p.log.Debugf("%s device, API %s, driver %d", p.properties.Type, p.properties.APIVersion, p.properties.DriverVersion)
	for _, heap := range p.memory.Heaps {
		gib := float64(heap.Size) / 1024.0 / 1024.0 / 1024.0
		if heap.DeviceLocal {
			p.log.Debugf("Local GPU memory: %.2f GiB", gib)
		} else {
			p.log.Debugf("Shared System memory: %.2f GiB", gib)
		}
	}
	return p
}

func (p *physicalDevice) Properties() gpu.DeviceProperties { return p.properties }

func (p *physicalDevice) MemoryProperties() gpu.MemoryProperties { return p.memory }

func (p *physicalDevice) Extensions() ([]string, error) {
	var count uint32
	if res := vk.EnumerateDeviceExtensionProperties(p.handle, "", &count, nil); res != vk.Success {
		return nil, check("vkEnumerateDeviceExtensionProperties", res)
	}
	if count == 0 {
		return nil, nil
	}
	list := make([]vk.ExtensionProperties, count)
	if res := vk.EnumerateDeviceExtensionProperties(p.handle, "", &count, list); res != vk.Success && res != vk.Incomplete {
		return nil, check("vkEnumerateDeviceExtensionProperties", res)
	}
	names := make([]string, 0, count)
	for i := range list[:count] {
		list[i].Deref()
		names = append(names, cString(list[i].ExtensionName[:]))
	}
	return names, nil
}

func (p *physicalDevice) QueueFamilies() ([]gpu.QueueFamily, error) {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(p.handle, &count, nil)
	if count == 0 {
		return nil, nil
	}
	props := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(p.handle, &count, props)

	families := make([]gpu.QueueFamily, count)
	for i := range props[:count] {
		props[i].Deref()
		flags := vk.QueueFlagBits(props[i].QueueFlags)
		families[i] = gpu.QueueFamily{
			Compute:            flags&vk.QueueComputeBit != 0,
			Transfer:           flags&vk.QueueTransferBit != 0,
			Graphics:           flags&vk.QueueGraphicsBit != 0,
			Count:              props[i].QueueCount,
			TimestampValidBits: props[i].TimestampValidBits,
		}
	}
	return families, nil
}

func (p *physicalDevice) CreateLogicalDevice(info gpu.LogicalDeviceInfo) (gpu.LogicalDevice, error) {
	var supported vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(p.handle, &supported)
	supported.Deref()

	features := vk.PhysicalDeviceFeatures{
		SamplerAnisotropy:                      supported.SamplerAnisotropy,
		ShaderImageGatherExtended:              supported.ShaderImageGatherExtended,
		ShaderSampledImageArrayDynamicIndexing: supported.ShaderSampledImageArrayDynamicIndexing,
	}

	queueCreateInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: info.QueueFamily,
		QueueCount:       1,
		PQueuePriorities: []float32{1.0},
	}}
	createInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		EnabledExtensionCount:   uint32(len(info.Extensions)),
		PpEnabledExtensionNames: safeStrings(info.Extensions),
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{features},
	}

	if info.DescriptorIndexing {
		indexing := vk.PhysicalDeviceDescriptorIndexingFeatures{
			SType:                                     vk.StructureTypePhysicalDeviceDescriptorIndexingFeatures,
			ShaderSampledImageArrayNonUniformIndexing: vk.True,
			ShaderStorageImageArrayNonUniformIndexing: vk.True,
		}
		cIndexing, _ := indexing.PassRef()
		defer indexing.Free()
		createInfo.PNext = unsafe.Pointer(cIndexing)
	}

	var device vk.Device
	if err := vk.Error(vk.CreateDevice(p.handle, &createInfo, nil, &device)); err != nil {
		p.log.Errorf("vkCreateDevice failed with %s", err)
		return nil, err
	}
	var queue vk.Queue
	vk.GetDeviceQueue(device, info.QueueFamily, 0, &queue)

	p.log.Debug("Logical device created", "family", info.QueueFamily, "extensions", len(info.Extensions))
	return &logicalDevice{
		physical: p,
		handle:   device,
		queue:    queue,
		log:      p.log,
	}, nil
}

func queryProperties(handle vk.PhysicalDevice) gpu.DeviceProperties {
	var props vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(handle, &props)
	props.Deref()
	props.Limits.Deref()

	out := gpu.DeviceProperties{
		Name:          cString(props.DeviceName[:]),
		Type:          deviceType(props.DeviceType),
		VendorID:      props.VendorID,
		DeviceID:      props.DeviceID,
		APIVersion:    gpu.Version(props.ApiVersion),
		DriverVersion: props.DriverVersion,
		Limits:        translateLimits(&props.Limits),
	}
	if out.APIVersion < gpu.MinAPIVersion {
		return out
	}

	subgroup := vk.PhysicalDeviceSubgroupProperties{
		SType: vk.StructureTypePhysicalDeviceSubgroupProperties,
	}
	cSubgroup, _ := subgroup.PassRef()
	defer subgroup.Free()
	props2 := vk.PhysicalDeviceProperties2{
		SType: vk.StructureTypePhysicalDeviceProperties2,
		PNext: unsafe.Pointer(cSubgroup),
	}
	vk.GetPhysicalDeviceProperties2(handle, &props2)
	subgroup.Deref()

	stages := vk.ShaderStageFlagBits(subgroup.SupportedStages)
	out.SubgroupCompute = stages&vk.ShaderStageComputeBit != 0
	out.SubgroupOperations = subgroupFeatures(subgroup.SupportedOperations)
	out.Limits.SubgroupSize = subgroup.SubgroupSize
	return out
}

func translateLimits(l *vk.PhysicalDeviceLimits) gpu.Limits {
	return gpu.Limits{
		MaxComputeSharedMemorySize:          l.MaxComputeSharedMemorySize,
		MaxComputeWorkGroupCount:            l.MaxComputeWorkGroupCount,
		MaxComputeWorkGroupInvocations:      l.MaxComputeWorkGroupInvocations,
		MaxComputeWorkGroupSize:             l.MaxComputeWorkGroupSize,
		MaxPushConstantsSize:                l.MaxPushConstantsSize,
		MaxStorageBufferRange:               l.MaxStorageBufferRange,
		MaxUniformBufferRange:               l.MaxUniformBufferRange,
		MaxBoundDescriptorSets:              l.MaxBoundDescriptorSets,
		MaxPerStageDescriptorStorageBuffers: l.MaxPerStageDescriptorStorageBuffers,
		MaxPerStageDescriptorStorageImages:  l.MaxPerStageDescriptorStorageImages,
		MaxPerStageDescriptorSampledImages:  l.MaxPerStageDescriptorSampledImages,
		MaxPerStageDescriptorSamplers:       l.MaxPerStageDescriptorSamplers,
		MaxImageDimension2D:                 l.MaxImageDimension2D,
		MaxMemoryAllocationCount:            l.MaxMemoryAllocationCount,
		MaxSamplerAnisotropy:                l.MaxSamplerAnisotropy,
		MinStorageBufferOffsetAlignment:     uint64(l.MinStorageBufferOffsetAlignment),
		MinUniformBufferOffsetAlignment:     uint64(l.MinUniformBufferOffsetAlignment),
		MinMemoryMapAlignment:               uint64(l.MinMemoryMapAlignment),
		NonCoherentAtomSize:                 uint64(l.NonCoherentAtomSize),
		BufferImageGranularity:              uint64(l.BufferImageGranularity),
		OptimalBufferCopyOffsetAlignment:    uint64(l.OptimalBufferCopyOffsetAlignment),
		TimestampPeriod:                     l.TimestampPeriod,
		TimestampComputeAndGraphics:         l.TimestampComputeAndGraphics == vk.True,
	}
}

func queryMemoryProperties(handle vk.PhysicalDevice) gpu.MemoryProperties {
	var mem vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(handle, &mem)
	mem.Deref()

	out := gpu.MemoryProperties{
		Types: make([]gpu.MemoryType, mem.MemoryTypeCount),
		Heaps: make([]gpu.MemoryHeap, mem.MemoryHeapCount),
	}
	for i := uint32(0); i < mem.MemoryTypeCount; i++ {
		mt := mem.MemoryTypes[i]
		mt.Deref()
		out.Types[i] = gpu.MemoryType{
			Properties: memoryPropertyFlags(mt.PropertyFlags),
			HeapIndex:  mt.HeapIndex,
		}
	}
	for i := uint32(0); i < mem.MemoryHeapCount; i++ {
		h := mem.MemoryHeaps[i]
		h.Deref()
		out.Heaps[i] = gpu.MemoryHeap{
			Size:        uint64(h.Size),
			DeviceLocal: vk.MemoryHeapFlagBits(h.Flags)&vk.MemoryHeapDeviceLocalBit != 0,
		}
	}
	return out
}
