package gpu

import "errors"

var (
	ErrInvalidHandle = errors.New("invalid handle")

	// Instance
	ErrUnableToInitializeLoader = errors.New("unable to initialize vulkan loader")
	ErrUnableToInitializeVulkan = errors.New("unable to initialize vulkan")
	ErrInstanceTerminated       = errors.New("instance already terminated")

	// Device selection
	ErrMaxPhysicalDevicesReached     = errors.New("max physical devices reached")
	ErrNoDeviceAtIndex               = errors.New("no device at index")
	ErrVersionNotSupported           = errors.New("vulkan version not supported")
	ErrFeatureRequirementsNotMet     = errors.New("feature requirements not met")
	ErrMaxDeviceExtensionsReached    = errors.New("max device extensions reached")
	ErrMaxQueueFamiliesReached       = errors.New("max queue families reached")
	ErrDeviceHasNoComputeQueue       = errors.New("device has no compute queue family")
	ErrCanNotCreateLogicalDevice     = errors.New("can not create logical device")
	ErrCanNotCreateCommandPool       = errors.New("can not create command pool")
	ErrUnableToCreateQueryPool       = errors.New("unable to create query pool")
	ErrUnableToInitializeAllocator   = errors.New("unable to initialize memory allocator")
	ErrUnableToWaitIdle              = errors.New("unable to wait for device idle")
	ErrMaxTimestampQueryIndexReached = errors.New("max timestamp query index reached")

	// Resources
	ErrUnableToCreateBuffer       = errors.New("unable to create buffer")
	ErrUnableToCreateImage        = errors.New("unable to create image")
	ErrUnableToCreateSampler      = errors.New("unable to create sampler")
	ErrUnableToCreateShaderModule = errors.New("unable to create shader module")
	ErrUnableToReflectShader      = errors.New("unable to reflect shader")
	ErrUnableToAllocateMemory     = errors.New("unable to allocate device memory")
	ErrUnableToMapMemory          = errors.New("unable to map memory")
	ErrUnableToFlushMemory        = errors.New("unable to flush memory")
	ErrUnableToInvalidateMemory   = errors.New("unable to invalidate memory")
	ErrMemoryNotHostVisible       = errors.New("memory is not host visible")
	ErrInvalidArgument            = errors.New("invalid argument")

	// Pipelines
	ErrMaxDescriptorBindingsReached   = errors.New("max descriptor bindings reached")
	ErrUnableToCreateDescriptorLayout = errors.New("unable to create descriptor set layout")
	ErrUnableToCreatePipelineLayout   = errors.New("unable to create pipeline layout")
	ErrUnableToCreateComputePipeline  = errors.New("unable to create compute pipeline")
	ErrUnableToCreateDescriptorPool   = errors.New("unable to create descriptor pool")
	ErrUnableToAllocateDescriptorSet  = errors.New("unable to allocate descriptor set")
	ErrUnsupportedDescriptorKind      = errors.New("unsupported descriptor kind")
	ErrBufferOffsetNotAligned         = errors.New("buffer binding offset not aligned")
	ErrDescriptorSetBindingMismatch   = errors.New("descriptor set binding mismatch")

	// Commands
	ErrUnableToAllocateCommandBuffer = errors.New("unable to allocate command buffer")
	ErrUnableToBeginCommandBuffer    = errors.New("unable to begin command buffer")
	ErrUnableToEndCommandBuffer      = errors.New("unable to end command buffer")
	ErrInvalidCommandBufferState     = errors.New("invalid command buffer state")
	ErrNoPipelineBound               = errors.New("no pipeline bound")
	ErrPushConstantsTooSmall         = errors.New("push constant data smaller than block")
	ErrInvalidCopyRegion             = errors.New("copy region out of bounds")

	// Synchronization
	ErrUnableToCreateFence         = errors.New("unable to create fence")
	ErrUnableToResetFence          = errors.New("unable to reset fence")
	ErrUnableToWaitForFence        = errors.New("unable to wait for fence")
	ErrUnableToSubmitCommandBuffer = errors.New("unable to submit command buffer")
)
