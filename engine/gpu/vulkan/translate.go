package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/cgpu/engine/gpu"
	"github.com/spaghettifunk/cgpu/engine/gpu/spirv"
)

// Native enum values of the extension format ranges. The core range maps
// one to one onto gpu.Format.
const (
	formatYcbcrBase      = 1000156000
	formatPvrtcBase      = 1000054000
	formatAstcSfloatBase = 1000066000

	descriptorTypeAccelerationStructure = 1000150000
	pipelineCreateDispatchBase          = 0x00000010
	instanceCreateEnumeratePortability  = 0x00000001
)

func nativeFormat(f gpu.Format) (vk.Format, bool) {
	switch {
	case f <= gpu.FormatAstc12x12SrgbBlock:
		return vk.Format(f), true
	case f < gpu.FormatPvrtc12bppUnormBlockImg:
		return vk.Format(formatYcbcrBase + int32(f-gpu.FormatG8B8G8R8422Unorm)), true
	case f < gpu.FormatAstc4x4SfloatBlock:
		return vk.Format(formatPvrtcBase + int32(f-gpu.FormatPvrtc12bppUnormBlockImg)), true
	case f.IsValid():
		return vk.Format(formatAstcSfloatBase + int32(f-gpu.FormatAstc4x4SfloatBlock)), true
	}
	return vk.FormatUndefined, false
}

func nativeImageLayout(l gpu.ImageLayout) vk.ImageLayout {
	switch l {
	case gpu.ImageLayoutGeneral:
		return vk.ImageLayoutGeneral
	case gpu.ImageLayoutShaderReadOnly:
		return vk.ImageLayoutShaderReadOnlyOptimal
	case gpu.ImageLayoutTransferSrc:
		return vk.ImageLayoutTransferSrcOptimal
	case gpu.ImageLayoutTransferDst:
		return vk.ImageLayoutTransferDstOptimal
	}
	return vk.ImageLayoutUndefined
}

var accessBits = []struct {
	from gpu.AccessFlags
	to   vk.AccessFlagBits
}{
	{gpu.AccessShaderRead, vk.AccessShaderReadBit},
	{gpu.AccessShaderWrite, vk.AccessShaderWriteBit},
	{gpu.AccessTransferRead, vk.AccessTransferReadBit},
	{gpu.AccessTransferWrite, vk.AccessTransferWriteBit},
	{gpu.AccessHostRead, vk.AccessHostReadBit},
	{gpu.AccessHostWrite, vk.AccessHostWriteBit},
	{gpu.AccessMemoryRead, vk.AccessMemoryReadBit},
	{gpu.AccessMemoryWrite, vk.AccessMemoryWriteBit},
}

func nativeAccess(a gpu.AccessFlags) vk.AccessFlags {
	var out vk.AccessFlagBits
	for _, b := range accessBits {
		if a&b.from != 0 {
			out |= b.to
		}
	}
	return vk.AccessFlags(out)
}

var stageBits = []struct {
	from gpu.PipelineStageFlags
	to   vk.PipelineStageFlagBits
}{
	{gpu.PipelineStageTopOfPipe, vk.PipelineStageTopOfPipeBit},
	{gpu.PipelineStageComputeShader, vk.PipelineStageComputeShaderBit},
	{gpu.PipelineStageTransfer, vk.PipelineStageTransferBit},
	{gpu.PipelineStageHost, vk.PipelineStageHostBit},
	{gpu.PipelineStageBottomOfPipe, vk.PipelineStageBottomOfPipeBit},
	{gpu.PipelineStageAllCommands, vk.PipelineStageAllCommandsBit},
}

func nativeStageBits(s gpu.PipelineStageFlags) vk.PipelineStageFlagBits {
	var out vk.PipelineStageFlagBits
	for _, b := range stageBits {
		if s&b.from != 0 {
			out |= b.to
		}
	}
	return out
}

func nativeStages(s gpu.PipelineStageFlags) vk.PipelineStageFlags {
	return vk.PipelineStageFlags(nativeStageBits(s))
}

func nativeBufferUsage(u gpu.BufferUsageFlags) vk.BufferUsageFlags {
	var out vk.BufferUsageFlagBits
	if u&gpu.BufferUsageTransferSrc != 0 {
		out |= vk.BufferUsageTransferSrcBit
	}
	if u&gpu.BufferUsageTransferDst != 0 {
		out |= vk.BufferUsageTransferDstBit
	}
	if u&gpu.BufferUsageUniform != 0 {
		out |= vk.BufferUsageUniformBufferBit
	}
	if u&gpu.BufferUsageStorage != 0 {
		out |= vk.BufferUsageStorageBufferBit
	}
	if u&gpu.BufferUsageUniformTexel != 0 {
		out |= vk.BufferUsageUniformTexelBufferBit
	}
	if u&gpu.BufferUsageStorageTexel != 0 {
		out |= vk.BufferUsageStorageTexelBufferBit
	}
	return vk.BufferUsageFlags(out)
}

func nativeImageUsage(u gpu.ImageUsageFlags) vk.ImageUsageFlags {
	var out vk.ImageUsageFlagBits
	if u&gpu.ImageUsageTransferSrc != 0 {
		out |= vk.ImageUsageTransferSrcBit
	}
	if u&gpu.ImageUsageTransferDst != 0 {
		out |= vk.ImageUsageTransferDstBit
	}
	if u&gpu.ImageUsageSampled != 0 {
		out |= vk.ImageUsageSampledBit
	}
	if u&gpu.ImageUsageStorage != 0 {
		out |= vk.ImageUsageStorageBit
	}
	return vk.ImageUsageFlags(out)
}

func memoryPropertyFlags(f vk.MemoryPropertyFlags) gpu.MemoryPropertyFlags {
	bits := vk.MemoryPropertyFlagBits(f)
	var out gpu.MemoryPropertyFlags
	if bits&vk.MemoryPropertyDeviceLocalBit != 0 {
		out |= gpu.MemoryPropertyDeviceLocal
	}
	if bits&vk.MemoryPropertyHostVisibleBit != 0 {
		out |= gpu.MemoryPropertyHostVisible
	}
	if bits&vk.MemoryPropertyHostCoherentBit != 0 {
		out |= gpu.MemoryPropertyHostCoherent
	}
	if bits&vk.MemoryPropertyHostCachedBit != 0 {
		out |= gpu.MemoryPropertyHostCached
	}
	return out
}

func nativeDescriptorType(k spirv.DescriptorKind) (vk.DescriptorType, bool) {
	switch k {
	case spirv.DescriptorKindStorageBuffer:
		return vk.DescriptorTypeStorageBuffer, true
	case spirv.DescriptorKindStorageImage:
		return vk.DescriptorTypeStorageImage, true
	case spirv.DescriptorKindSampledImage:
		return vk.DescriptorTypeSampledImage, true
	case spirv.DescriptorKindCombinedImageSampler:
		return vk.DescriptorTypeCombinedImageSampler, true
	case spirv.DescriptorKindSampler:
		return vk.DescriptorTypeSampler, true
	case spirv.DescriptorKindUniformBuffer:
		return vk.DescriptorTypeUniformBuffer, true
	case spirv.DescriptorKindUniformTexelBuffer:
		return vk.DescriptorTypeUniformTexelBuffer, true
	case spirv.DescriptorKindStorageTexelBuffer:
		return vk.DescriptorTypeStorageTexelBuffer, true
	case spirv.DescriptorKindAccelerationStructure:
		return vk.DescriptorType(descriptorTypeAccelerationStructure), true
	}
	return 0, false
}

func nativeAddressMode(m gpu.SamplerAddressMode) vk.SamplerAddressMode {
	switch m {
	case gpu.SamplerAddressModeRepeat:
		return vk.SamplerAddressModeRepeat
	case gpu.SamplerAddressModeMirroredRepeat:
		return vk.SamplerAddressModeMirroredRepeat
	case gpu.SamplerAddressModeClampToBlack:
		return vk.SamplerAddressModeClampToBorder
	}
	return vk.SamplerAddressModeClampToEdge
}

func nativeBorderColor(c gpu.BorderColor) vk.BorderColor {
	if c == gpu.BorderColorOpaqueBlack {
		return vk.BorderColorFloatOpaqueBlack
	}
	return vk.BorderColorFloatTransparentBlack
}

func nativeQueryResultFlags(f gpu.QueryResultFlags) vk.QueryResultFlags {
	var out vk.QueryResultFlagBits
	if f&gpu.QueryResult64 != 0 {
		out |= vk.QueryResult64Bit
	}
	if f&gpu.QueryResultWait != 0 {
		out |= vk.QueryResultWaitBit
	}
	if f&gpu.QueryResultWithAvailability != 0 {
		out |= vk.QueryResultWithAvailabilityBit
	}
	return vk.QueryResultFlags(out)
}

func deviceType(t vk.PhysicalDeviceType) gpu.DeviceType {
	switch t {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return gpu.DeviceTypeIntegrated
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return gpu.DeviceTypeDiscrete
	case vk.PhysicalDeviceTypeVirtualGpu:
		return gpu.DeviceTypeVirtual
	case vk.PhysicalDeviceTypeCpu:
		return gpu.DeviceTypeCPU
	}
	return gpu.DeviceTypeOther
}

func subgroupFeatures(f vk.SubgroupFeatureFlags) gpu.SubgroupFeatureFlags {
	bits := vk.SubgroupFeatureFlagBits(f)
	var out gpu.SubgroupFeatureFlags
	if bits&vk.SubgroupFeatureBasicBit != 0 {
		out |= gpu.SubgroupFeatureBasic
	}
	if bits&vk.SubgroupFeatureVoteBit != 0 {
		out |= gpu.SubgroupFeatureVote
	}
	if bits&vk.SubgroupFeatureArithmeticBit != 0 {
		out |= gpu.SubgroupFeatureArithmetic
	}
	if bits&vk.SubgroupFeatureBallotBit != 0 {
		out |= gpu.SubgroupFeatureBallot
	}
	if bits&vk.SubgroupFeatureShuffleBit != 0 {
		out |= gpu.SubgroupFeatureShuffle
	}
	return out
}
