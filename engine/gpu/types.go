package gpu

import "fmt"

// WholeSize selects the remainder of a buffer starting at the given offset.
const WholeSize = ^uint64(0)

const (
	MaxPhysicalDevices    = 32
	MaxDeviceExtensions   = 1024
	MaxQueueFamilies      = 64
	MaxTimestampQueries   = 32
	MaxDescriptorBindings = 128
)

// Version packs major.minor.patch the way the native API does.
type Version uint32

func MakeVersion(major, minor, patch uint32) Version {
	return Version(major<<22 | minor<<12 | patch)
}

func (v Version) Major() uint32 { return uint32(v) >> 22 }
func (v Version) Minor() uint32 { return (uint32(v) >> 12) & 0x3ff }
func (v Version) Patch() uint32 { return uint32(v) & 0xfff }

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major(), v.Minor(), v.Patch())
}

// MinAPIVersion is the lowest native API version a device may report.
var MinAPIVersion = MakeVersion(1, 1, 0)

type BufferUsageFlags uint32

const (
	BufferUsageTransferSrc BufferUsageFlags = 1 << iota
	BufferUsageTransferDst
	BufferUsageUniform
	BufferUsageStorage
	BufferUsageUniformTexel
	BufferUsageStorageTexel
)

type MemoryPropertyFlags uint32

const (
	MemoryPropertyDeviceLocal MemoryPropertyFlags = 1 << iota
	MemoryPropertyHostVisible
	MemoryPropertyHostCoherent
	MemoryPropertyHostCached
)

func (f MemoryPropertyFlags) Has(bits MemoryPropertyFlags) bool {
	return f&bits == bits
}

type ImageUsageFlags uint32

const (
	ImageUsageTransferSrc ImageUsageFlags = 1 << iota
	ImageUsageTransferDst
	ImageUsageSampled
	ImageUsageStorage
)

type ImageLayout uint8

const (
	ImageLayoutUndefined ImageLayout = iota
	ImageLayoutGeneral
	ImageLayoutShaderReadOnly
	ImageLayoutTransferSrc
	ImageLayoutTransferDst
)

func (l ImageLayout) String() string {
	switch l {
	case ImageLayoutUndefined:
		return "undefined"
	case ImageLayoutGeneral:
		return "general"
	case ImageLayoutShaderReadOnly:
		return "shader_read_only"
	case ImageLayoutTransferSrc:
		return "transfer_src"
	case ImageLayoutTransferDst:
		return "transfer_dst"
	}
	return fmt.Sprintf("ImageLayout(%d)", uint8(l))
}

type AccessFlags uint32

const AccessNone AccessFlags = 0

const (
	AccessShaderRead AccessFlags = 1 << iota
	AccessShaderWrite
	AccessTransferRead
	AccessTransferWrite
	AccessHostRead
	AccessHostWrite
	AccessMemoryRead
	AccessMemoryWrite
)

type PipelineStageFlags uint32

const (
	PipelineStageTopOfPipe PipelineStageFlags = 1 << iota
	PipelineStageComputeShader
	PipelineStageTransfer
	PipelineStageHost
	PipelineStageBottomOfPipe
	PipelineStageAllCommands
)

type SamplerAddressMode uint8

const (
	SamplerAddressModeClampToEdge SamplerAddressMode = iota
	SamplerAddressModeRepeat
	SamplerAddressModeMirroredRepeat
	// SamplerAddressModeClampToBlack clamps to an opaque black border.
	SamplerAddressModeClampToBlack
)

type BorderColor uint8

const (
	BorderColorTransparentBlack BorderColor = iota
	BorderColorOpaqueBlack
)

// SamplerDesc is the full native sampler state. Filtering is always
// linear.
type SamplerDesc struct {
	AddressModeU  SamplerAddressMode
	AddressModeV  SamplerAddressMode
	AddressModeW  SamplerAddressMode
	BorderColor   BorderColor
	MaxAnisotropy float32
	// UnclampedLOD leaves the maximum level of detail unbounded instead of 0.
	UnclampedLOD bool
	// CompareAlways sets the compare op to ALWAYS instead of NEVER.
	CompareAlways bool
}

type QueryResultFlags uint8

const (
	QueryResult64 QueryResultFlags = 1 << iota
	QueryResultWait
	QueryResultWithAvailability
)

type DeviceType uint8

const (
	DeviceTypeOther DeviceType = iota
	DeviceTypeIntegrated
	DeviceTypeDiscrete
	DeviceTypeVirtual
	DeviceTypeCPU
)

func (t DeviceType) String() string {
	switch t {
	case DeviceTypeIntegrated:
		return "integrated"
	case DeviceTypeDiscrete:
		return "discrete"
	case DeviceTypeVirtual:
		return "virtual"
	case DeviceTypeCPU:
		return "cpu"
	}
	return "other"
}

type SubgroupFeatureFlags uint32

const (
	SubgroupFeatureBasic SubgroupFeatureFlags = 1 << iota
	SubgroupFeatureVote
	SubgroupFeatureArithmetic
	SubgroupFeatureBallot
	SubgroupFeatureShuffle
)

// Limits caches the device properties the core consults.
type Limits struct {
	MaxComputeSharedMemorySize          uint32
	MaxComputeWorkGroupCount            [3]uint32
	MaxComputeWorkGroupInvocations      uint32
	MaxComputeWorkGroupSize             [3]uint32
	MaxPushConstantsSize                uint32
	MaxStorageBufferRange               uint32
	MaxUniformBufferRange               uint32
	MaxBoundDescriptorSets              uint32
	MaxPerStageDescriptorStorageBuffers uint32
	MaxPerStageDescriptorStorageImages  uint32
	MaxPerStageDescriptorSampledImages  uint32
	MaxPerStageDescriptorSamplers       uint32
	MaxImageDimension2D                 uint32
	MaxMemoryAllocationCount            uint32
	MaxSamplerAnisotropy                float32
	MinStorageBufferOffsetAlignment     uint64
	MinUniformBufferOffsetAlignment     uint64
	MinMemoryMapAlignment               uint64
	NonCoherentAtomSize                 uint64
	BufferImageGranularity              uint64
	OptimalBufferCopyOffsetAlignment    uint64
	TimestampPeriod                     float32
	TimestampComputeAndGraphics         bool
	SubgroupSize                        uint32
}

// DeviceProperties describes a physical device.
type DeviceProperties struct {
	Name               string
	Type               DeviceType
	VendorID           uint32
	DeviceID           uint32
	APIVersion         Version
	DriverVersion      uint32
	Limits             Limits
	SubgroupCompute    bool // subgroup operations available in compute shaders
	SubgroupOperations SubgroupFeatureFlags
}

type QueueFamily struct {
	Compute  bool
	Transfer bool
	Graphics bool
	Count    uint32
	// TimestampValidBits is zero when the family can not write timestamps.
	TimestampValidBits uint32
}

type MemoryType struct {
	Properties MemoryPropertyFlags
	HeapIndex  uint32
}

type MemoryHeap struct {
	Size        uint64
	DeviceLocal bool
}

type MemoryProperties struct {
	Types []MemoryType
	Heaps []MemoryHeap
}

// FindMemoryType returns the first type allowed by typeBits that carries
// all of required.
func (m MemoryProperties) FindMemoryType(typeBits uint32, required MemoryPropertyFlags) (uint32, bool) {
	for i, t := range m.Types {
		if typeBits&(1<<uint(i)) != 0 && t.Properties.Has(required) {
			return uint32(i), true
		}
	}
	return 0, false
}

// MemoryRequirements are reported by the driver for a new buffer or image.
type MemoryRequirements struct {
	Size           uint64
	Alignment      uint64
	MemoryTypeBits uint32
}
