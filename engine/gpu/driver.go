package gpu

import (
	"time"

	"github.com/spaghettifunk/cgpu/engine/gpu/spirv"
)

// NativeObject is an opaque native API object owned by a driver.
type NativeObject any

// Driver is the boundary to the native graphics API. The engine/gpu/vulkan
// package provides the production implementation.
type Driver interface {
	CreateInstance(info InstanceInfo) error
	DestroyInstance()
	PhysicalDevices() ([]PhysicalDevice, error)
}

type InstanceInfo struct {
	AppName    string
	AppVersion Version
	APIVersion Version
	// Validation enables the validation layer and debug messenger when
	// they are available.
	Validation bool
}

type PhysicalDevice interface {
	Properties() DeviceProperties
	Extensions() ([]string, error)
	QueueFamilies() ([]QueueFamily, error)
	MemoryProperties() MemoryProperties
	CreateLogicalDevice(info LogicalDeviceInfo) (LogicalDevice, error)
}

type LogicalDeviceInfo struct {
	QueueFamily uint32
	Extensions  []string
	// Features always include sampler anisotropy and the descriptor
	// indexing features used by bindless compute shaders.
	DescriptorIndexing bool
}

type BufferDesc struct {
	Size  uint64
	Usage BufferUsageFlags
}

type ImageDesc struct {
	Width  uint32
	Height uint32
	Format Format
	Usage  ImageUsageFlags
	Linear bool
}

type DescriptorLayoutBinding struct {
	Binding uint32
	Kind    spirv.DescriptorKind
	Count   uint32
}

type DescriptorPoolSize struct {
	Kind  spirv.DescriptorKind
	Count uint32
}

type DescriptorBufferInfo struct {
	Buffer NativeObject
	Offset uint64
	Range  uint64
}

type DescriptorImageInfo struct {
	Sampler NativeObject
	View    NativeObject
	Layout  ImageLayout
}

// DescriptorWrite updates one array element of one binding.
type DescriptorWrite struct {
	Binding      uint32
	ArrayElement uint32
	Kind         spirv.DescriptorKind
	Buffer       *DescriptorBufferInfo
	Image        *DescriptorImageInfo
}

type ComputePipelineDesc struct {
	Layout     NativeObject
	Module     NativeObject
	EntryPoint string
	// DispatchBase allows non-zero base workgroups.
	DispatchBase bool
}

type BufferCopy struct {
	SrcOffset uint64
	DstOffset uint64
	Size      uint64
}

type NativeMemoryBarrier struct {
	SrcAccess AccessFlags
	DstAccess AccessFlags
}

type NativeBufferBarrier struct {
	Buffer    NativeObject
	SrcAccess AccessFlags
	DstAccess AccessFlags
	Offset    uint64
	Size      uint64
}

// NativeImageBarrier covers the single color subresource of an image.
type NativeImageBarrier struct {
	Image     NativeObject
	SrcAccess AccessFlags
	DstAccess AccessFlags
	OldLayout ImageLayout
	NewLayout ImageLayout
}

// LogicalDevice creates and destroys every native object a Device owns.
// Destroy calls accept the objects returned by the matching create calls.
type LogicalDevice interface {
	Destroy()
	WaitIdle() error

	CreateCommandPool(queueFamily uint32) (NativeObject, error)
	DestroyCommandPool(pool NativeObject)
	CreateSampler(desc SamplerDesc) (NativeObject, error)
	DestroySampler(sampler NativeObject)
	CreateTimestampPool(count uint32) (NativeObject, error)
	DestroyQueryPool(pool NativeObject)

	AllocateMemory(size uint64, memoryType uint32) (NativeObject, error)
	FreeMemory(memory NativeObject)
	// MapMemory maps the whole allocation.
	MapMemory(memory NativeObject, size uint64) ([]byte, error)
	UnmapMemory(memory NativeObject)
	FlushMemory(memory NativeObject, offset, size uint64) error
	InvalidateMemory(memory NativeObject, offset, size uint64) error

	CreateBuffer(desc BufferDesc) (NativeObject, MemoryRequirements, error)
	BindBufferMemory(buffer, memory NativeObject, offset uint64) error
	DestroyBuffer(buffer NativeObject)
	CreateImage(desc ImageDesc) (NativeObject, MemoryRequirements, error)
	BindImageMemory(image, memory NativeObject, offset uint64) error
	CreateImageView(image NativeObject, format Format) (NativeObject, error)
	DestroyImageView(view NativeObject)
	DestroyImage(image NativeObject)

	CreateShaderModule(code []byte) (NativeObject, error)
	DestroyShaderModule(module NativeObject)

	CreateDescriptorSetLayout(bindings []DescriptorLayoutBinding) (NativeObject, error)
	DestroyDescriptorSetLayout(layout NativeObject)
	CreatePipelineLayout(setLayout NativeObject, pushConstantSize uint32) (NativeObject, error)
	DestroyPipelineLayout(layout NativeObject)
	CreateComputePipeline(desc ComputePipelineDesc) (NativeObject, error)
	DestroyPipeline(pipeline NativeObject)
	CreateDescriptorPool(sizes []DescriptorPoolSize, maxSets uint32) (NativeObject, error)
	DestroyDescriptorPool(pool NativeObject)
	AllocateDescriptorSet(pool, layout NativeObject) (NativeObject, error)
	UpdateDescriptorSet(set NativeObject, writes []DescriptorWrite)

	AllocateCommandBuffer(pool NativeObject) (CommandRecorder, error)
	FreeCommandBuffer(pool NativeObject, cmd CommandRecorder)

	CreateFence(signaled bool) (NativeObject, error)
	DestroyFence(fence NativeObject)
	ResetFence(fence NativeObject) error
	// WaitForFence blocks for at most timeout and reports whether the
	// fence was signaled.
	WaitForFence(fence NativeObject, timeout time.Duration) (bool, error)
	Submit(cmd CommandRecorder, fence NativeObject) error
}

// CommandRecorder records into one native command buffer.
type CommandRecorder interface {
	Begin() error
	End() error
	BindComputePipeline(pipeline NativeObject)
	BindDescriptorSet(layout, set NativeObject)
	PushConstants(layout NativeObject, data []byte)
	Dispatch(x, y, z uint32)
	CopyBuffer(src, dst NativeObject, region BufferCopy)
	CopyBufferToImage(src, dst NativeObject, layout ImageLayout, width, height uint32)
	PipelineBarrier(src, dst PipelineStageFlags, memory []NativeMemoryBarrier, buffers []NativeBufferBarrier, images []NativeImageBarrier)
	ResetQueryPool(pool NativeObject, first, count uint32)
	WriteTimestamp(pool NativeObject, stage PipelineStageFlags, index uint32)
	CopyQueryPoolResults(pool NativeObject, first, count uint32, dst NativeObject, dstOffset, stride uint64, flags QueryResultFlags)
}
