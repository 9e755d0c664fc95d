package vulkan

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/charmbracelet/log"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/cgpu/engine/gpu"
)

// lodClampNone is VK_LOD_CLAMP_NONE.
const lodClampNone = 1000.0

type logicalDevice struct {
	physical *physicalDevice
	handle   vk.Device
	log      *log.Logger

	queueMutex sync.Mutex
	queue      vk.Queue
}

var _ gpu.LogicalDevice = (*logicalDevice)(nil)

func (d *logicalDevice) Destroy() {
	if d.handle == nil {
		return
	}
	vk.DestroyDevice(d.handle, nil)
	d.handle = nil
	d.queue = nil
}

func (d *logicalDevice) WaitIdle() error {
	return check("vkDeviceWaitIdle", vk.DeviceWaitIdle(d.handle))
}

func (d *logicalDevice) CreateCommandPool(queueFamily uint32) (gpu.NativeObject, error) {
	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: queueFamily,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(d.handle, &poolCreateInfo, nil, &pool); res != vk.Success {
		return nil, check("vkCreateCommandPool", res)
	}
	return pool, nil
}

func (d *logicalDevice) DestroyCommandPool(pool gpu.NativeObject) {
	vk.DestroyCommandPool(d.handle, pool.(vk.CommandPool), nil)
}

func (d *logicalDevice) CreateSampler(desc gpu.SamplerDesc) (gpu.NativeObject, error) {
	samplerInfo := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.FilterLinear,
		MinFilter:               vk.FilterLinear,
		MipmapMode:              vk.SamplerMipmapModeLinear,
		AddressModeU:            nativeAddressMode(desc.AddressModeU),
		AddressModeV:            nativeAddressMode(desc.AddressModeV),
		AddressModeW:            nativeAddressMode(desc.AddressModeW),
		MipLodBias:              0,
		AnisotropyEnable:        vk.False,
		MaxAnisotropy:           1,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpNever,
		MinLod:                  0,
		MaxLod:                  0,
		BorderColor:             nativeBorderColor(desc.BorderColor),
		UnnormalizedCoordinates: vk.False,
	}
	if desc.MaxAnisotropy > 1 {
		samplerInfo.AnisotropyEnable = vk.True
		samplerInfo.MaxAnisotropy = desc.MaxAnisotropy
	}
	if desc.UnclampedLOD {
		samplerInfo.MaxLod = lodClampNone
	}
	if desc.CompareAlways {
		samplerInfo.CompareOp = vk.CompareOpAlways
	}
	var sampler vk.Sampler
	if res := vk.CreateSampler(d.handle, &samplerInfo, nil, &sampler); res != vk.Success {
		return nil, check("vkCreateSampler", res)
	}
	return sampler, nil
}

func (d *logicalDevice) DestroySampler(sampler gpu.NativeObject) {
	vk.DestroySampler(d.handle, sampler.(vk.Sampler), nil)
}

func (d *logicalDevice) CreateTimestampPool(count uint32) (gpu.NativeObject, error) {
	poolInfo := vk.QueryPoolCreateInfo{
		SType:      vk.StructureTypeQueryPoolCreateInfo,
		QueryType:  vk.QueryTypeTimestamp,
		QueryCount: count,
	}
	var pool vk.QueryPool
	if res := vk.CreateQueryPool(d.handle, &poolInfo, nil, &pool); res != vk.Success {
		return nil, check("vkCreateQueryPool", res)
	}
	return pool, nil
}

func (d *logicalDevice) DestroyQueryPool(pool gpu.NativeObject) {
	vk.DestroyQueryPool(d.handle, pool.(vk.QueryPool), nil)
}

func (d *logicalDevice) AllocateMemory(size uint64, memoryType uint32) (gpu.NativeObject, error) {
	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  vk.DeviceSize(size),
		MemoryTypeIndex: memoryType,
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(d.handle, &allocInfo, nil, &memory); res != vk.Success {
		return nil, check("vkAllocateMemory", res)
	}
	return memory, nil
}

func (d *logicalDevice) FreeMemory(memory gpu.NativeObject) {
	vk.FreeMemory(d.handle, memory.(vk.DeviceMemory), nil)
}

func (d *logicalDevice) MapMemory(memory gpu.NativeObject, size uint64) ([]byte, error) {
	var data unsafe.Pointer
	if res := vk.MapMemory(d.handle, memory.(vk.DeviceMemory), 0, vk.DeviceSize(size), 0, &data); res != vk.Success {
		return nil, check("vkMapMemory", res)
	}
	return unsafe.Slice((*byte)(data), size), nil
}

func (d *logicalDevice) UnmapMemory(memory gpu.NativeObject) {
	vk.UnmapMemory(d.handle, memory.(vk.DeviceMemory))
}

func mappedRange(memory gpu.NativeObject, offset, size uint64) []vk.MappedMemoryRange {
	return []vk.MappedMemoryRange{{
		SType:  vk.StructureTypeMappedMemoryRange,
		Memory: memory.(vk.DeviceMemory),
		Offset: vk.DeviceSize(offset),
		Size:   vk.DeviceSize(size),
	}}
}

func (d *logicalDevice) FlushMemory(memory gpu.NativeObject, offset, size uint64) error {
	return check("vkFlushMappedMemoryRanges", vk.FlushMappedMemoryRanges(d.handle, 1, mappedRange(memory, offset, size)))
}

func (d *logicalDevice) InvalidateMemory(memory gpu.NativeObject, offset, size uint64) error {
	return check("vkInvalidateMappedMemoryRanges", vk.InvalidateMappedMemoryRanges(d.handle, 1, mappedRange(memory, offset, size)))
}

func (d *logicalDevice) CreateBuffer(desc gpu.BufferDesc) (gpu.NativeObject, gpu.MemoryRequirements, error) {
	bufferInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(desc.Size),
		Usage:       nativeBufferUsage(desc.Usage),
		SharingMode: vk.SharingModeExclusive,
	}
	var buffer vk.Buffer
	if res := vk.CreateBuffer(d.handle, &bufferInfo, nil, &buffer); res != vk.Success {
		return nil, gpu.MemoryRequirements{}, check("vkCreateBuffer", res)
	}
	var memReq vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.handle, buffer, &memReq)
	memReq.Deref()
	return buffer, memoryRequirements(memReq), nil
}

func (d *logicalDevice) BindBufferMemory(buffer, memory gpu.NativeObject, offset uint64) error {
	res := vk.BindBufferMemory(d.handle, buffer.(vk.Buffer), memory.(vk.DeviceMemory), vk.DeviceSize(offset))
	return check("vkBindBufferMemory", res)
}

func (d *logicalDevice) DestroyBuffer(buffer gpu.NativeObject) {
	vk.DestroyBuffer(d.handle, buffer.(vk.Buffer), nil)
}

func (d *logicalDevice) CreateImage(desc gpu.ImageDesc) (gpu.NativeObject, gpu.MemoryRequirements, error) {
	format, ok := nativeFormat(desc.Format)
	if !ok {
		return nil, gpu.MemoryRequirements{}, fmt.Errorf("unsupported image format %s", desc.Format)
	}
	imageInfo := vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		ImageType:     vk.ImageType2d,
		Format:        format,
		Extent:        vk.Extent3D{Width: desc.Width, Height: desc.Height, Depth: 1},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        conditionalTiling(desc.Linear),
		Usage:         nativeImageUsage(desc.Usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	var image vk.Image
	if res := vk.CreateImage(d.handle, &imageInfo, nil, &image); res != vk.Success {
		return nil, gpu.MemoryRequirements{}, check("vkCreateImage", res)
	}
	var memReq vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.handle, image, &memReq)
	memReq.Deref()
	return image, memoryRequirements(memReq), nil
}

func conditionalTiling(linear bool) vk.ImageTiling {
	if linear {
		return vk.ImageTilingLinear
	}
	return vk.ImageTilingOptimal
}

func (d *logicalDevice) BindImageMemory(image, memory gpu.NativeObject, offset uint64) error {
	res := vk.BindImageMemory(d.handle, image.(vk.Image), memory.(vk.DeviceMemory), vk.DeviceSize(offset))
	return check("vkBindImageMemory", res)
}

func (d *logicalDevice) CreateImageView(image gpu.NativeObject, format gpu.Format) (gpu.NativeObject, error) {
	native, ok := nativeFormat(format)
	if !ok {
		return nil, fmt.Errorf("unsupported image format %s", format)
	}
	viewCreateInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image.(vk.Image),
		ViewType: vk.ImageViewType2d,
		Format:   native,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: colorSubresourceRange(),
	}
	var view vk.ImageView
	if res := vk.CreateImageView(d.handle, &viewCreateInfo, nil, &view); res != vk.Success {
		return nil, check("vkCreateImageView", res)
	}
	return view, nil
}

func colorSubresourceRange() vk.ImageSubresourceRange {
	return vk.ImageSubresourceRange{
		AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
		BaseMipLevel:   0,
		LevelCount:     1,
		BaseArrayLayer: 0,
		LayerCount:     1,
	}
}

func (d *logicalDevice) DestroyImageView(view gpu.NativeObject) {
	vk.DestroyImageView(d.handle, view.(vk.ImageView), nil)
}

func (d *logicalDevice) DestroyImage(image gpu.NativeObject) {
	vk.DestroyImage(d.handle, image.(vk.Image), nil)
}

func (d *logicalDevice) CreateShaderModule(code []byte) (gpu.NativeObject, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, fmt.Errorf("shader code size %d is not a multiple of 4", len(code))
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	moduleInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code)),
		PCode:    words,
	}
	var module vk.ShaderModule
	if res := vk.CreateShaderModule(d.handle, &moduleInfo, nil, &module); res != vk.Success {
		return nil, check("vkCreateShaderModule", res)
	}
	return module, nil
}

func (d *logicalDevice) DestroyShaderModule(module gpu.NativeObject) {
	vk.DestroyShaderModule(d.handle, module.(vk.ShaderModule), nil)
}

func (d *logicalDevice) CreateDescriptorSetLayout(bindings []gpu.DescriptorLayoutBinding) (gpu.NativeObject, error) {
	layoutBindings := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		kind, ok := nativeDescriptorType(b.Kind)
		if !ok {
			return nil, fmt.Errorf("binding %d: unsupported descriptor kind %s", b.Binding, b.Kind)
		}
		layoutBindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  kind,
			DescriptorCount: b.Count,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageComputeBit),
		}
	}
	layoutInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(layoutBindings)),
		PBindings:    layoutBindings,
	}
	var layout vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(d.handle, &layoutInfo, nil, &layout); res != vk.Success {
		return nil, check("vkCreateDescriptorSetLayout", res)
	}
	return layout, nil
}

func (d *logicalDevice) DestroyDescriptorSetLayout(layout gpu.NativeObject) {
	vk.DestroyDescriptorSetLayout(d.handle, layout.(vk.DescriptorSetLayout), nil)
}

func (d *logicalDevice) CreatePipelineLayout(setLayout gpu.NativeObject, pushConstantSize uint32) (gpu.NativeObject, error) {
	layoutInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: 1,
		PSetLayouts:    []vk.DescriptorSetLayout{setLayout.(vk.DescriptorSetLayout)},
	}
	if pushConstantSize > 0 {
		layoutInfo.PushConstantRangeCount = 1
		layoutInfo.PPushConstantRanges = []vk.PushConstantRange{{
			StageFlags: vk.ShaderStageFlags(vk.ShaderStageComputeBit),
			Offset:     0,
			Size:       pushConstantSize,
		}}
	}
	var layout vk.PipelineLayout
	if res := vk.CreatePipelineLayout(d.handle, &layoutInfo, nil, &layout); res != vk.Success {
		return nil, check("vkCreatePipelineLayout", res)
	}
	return layout, nil
}

func (d *logicalDevice) DestroyPipelineLayout(layout gpu.NativeObject) {
	vk.DestroyPipelineLayout(d.handle, layout.(vk.PipelineLayout), nil)
}

func (d *logicalDevice) CreateComputePipeline(desc gpu.ComputePipelineDesc) (gpu.NativeObject, error) {
	pipelineCreateInfo := vk.ComputePipelineCreateInfo{
		SType: vk.StructureTypeComputePipelineCreateInfo,
		Stage: vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageComputeBit,
			Module: desc.Module.(vk.ShaderModule),
			PName:  safeString(desc.EntryPoint),
		},
		Layout:             desc.Layout.(vk.PipelineLayout),
		BasePipelineHandle: vk.NullPipeline,
		BasePipelineIndex:  -1,
	}
	if desc.DispatchBase {
		pipelineCreateInfo.Flags = vk.PipelineCreateFlags(pipelineCreateDispatchBase)
	}
	pipelines := make([]vk.Pipeline, 1)
	res := vk.CreateComputePipelines(d.handle, vk.NullPipelineCache, 1, []vk.ComputePipelineCreateInfo{pipelineCreateInfo}, nil, pipelines)
	if res != vk.Success {
		return nil, check("vkCreateComputePipelines", res)
	}
	return pipelines[0], nil
}

func (d *logicalDevice) DestroyPipeline(pipeline gpu.NativeObject) {
	vk.DestroyPipeline(d.handle, pipeline.(vk.Pipeline), nil)
}

func (d *logicalDevice) CreateDescriptorPool(sizes []gpu.DescriptorPoolSize, maxSets uint32) (gpu.NativeObject, error) {
	poolSizes := make([]vk.DescriptorPoolSize, 0, len(sizes))
	for _, s := range sizes {
		kind, ok := nativeDescriptorType(s.Kind)
		if !ok || s.Count == 0 {
			continue
		}
		poolSizes = append(poolSizes, vk.DescriptorPoolSize{
			Type:            kind,
			DescriptorCount: s.Count,
		})
	}
	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       maxSets,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	}
	var pool vk.DescriptorPool
	if res := vk.CreateDescriptorPool(d.handle, &poolInfo, nil, &pool); res != vk.Success {
		return nil, check("vkCreateDescriptorPool", res)
	}
	return pool, nil
}

func (d *logicalDevice) DestroyDescriptorPool(pool gpu.NativeObject) {
	vk.DestroyDescriptorPool(d.handle, pool.(vk.DescriptorPool), nil)
}

func (d *logicalDevice) AllocateDescriptorSet(pool, layout gpu.NativeObject) (gpu.NativeObject, error) {
	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool.(vk.DescriptorPool),
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout.(vk.DescriptorSetLayout)},
	}
	var set vk.DescriptorSet
	if res := vk.AllocateDescriptorSets(d.handle, &allocInfo, &set); res != vk.Success {
		return nil, check("vkAllocateDescriptorSets", res)
	}
	return set, nil
}

func (d *logicalDevice) UpdateDescriptorSet(set gpu.NativeObject, writes []gpu.DescriptorWrite) {
	native := make([]vk.WriteDescriptorSet, 0, len(writes))
	for _, w := range writes {
		kind, ok := nativeDescriptorType(w.Kind)
		if !ok {
			d.log.Warnf("Skipping write to binding %d with kind %s", w.Binding, w.Kind)
			continue
		}
		write := vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set.(vk.DescriptorSet),
			DstBinding:      w.Binding,
			DstArrayElement: w.ArrayElement,
			DescriptorCount: 1,
			DescriptorType:  kind,
		}
		switch {
		case w.Buffer != nil:
			write.PBufferInfo = []vk.DescriptorBufferInfo{{
				Buffer: w.Buffer.Buffer.(vk.Buffer),
				Offset: vk.DeviceSize(w.Buffer.Offset),
				Range:  vk.DeviceSize(w.Buffer.Range),
			}}
		case w.Image != nil:
			info := vk.DescriptorImageInfo{
				Sampler:     vk.NullSampler,
				ImageView:   vk.NullImageView,
				ImageLayout: nativeImageLayout(w.Image.Layout),
			}
			if w.Image.Sampler != nil {
				info.Sampler = w.Image.Sampler.(vk.Sampler)
			}
			if w.Image.View != nil {
				info.ImageView = w.Image.View.(vk.ImageView)
			}
			write.PImageInfo = []vk.DescriptorImageInfo{info}
		default:
			continue
		}
		native = append(native, write)
	}
	if len(native) == 0 {
		return
	}
	vk.UpdateDescriptorSets(d.handle, uint32(len(native)), native, 0, nil)
}

func (d *logicalDevice) AllocateCommandBuffer(pool gpu.NativeObject) (gpu.CommandRecorder, error) {
	allocInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool.(vk.CommandPool),
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	buffers := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(d.handle, &allocInfo, buffers); res != vk.Success {
		return nil, check("vkAllocateCommandBuffers", res)
	}
	return &recorder{handle: buffers[0]}, nil
}

func (d *logicalDevice) FreeCommandBuffer(pool gpu.NativeObject, cmd gpu.CommandRecorder) {
	rec := cmd.(*recorder)
	vk.FreeCommandBuffers(d.handle, pool.(vk.CommandPool), 1, []vk.CommandBuffer{rec.handle})
}

func (d *logicalDevice) CreateFence(signaled bool) (gpu.NativeObject, error) {
	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	if res := vk.CreateFence(d.handle, &fenceCreateInfo, nil, &fence); res != vk.Success {
		return nil, check("vkCreateFence", res)
	}
	return fence, nil
}

func (d *logicalDevice) DestroyFence(fence gpu.NativeObject) {
	vk.DestroyFence(d.handle, fence.(vk.Fence), nil)
}

func (d *logicalDevice) ResetFence(fence gpu.NativeObject) error {
	return check("vkResetFences", vk.ResetFences(d.handle, 1, []vk.Fence{fence.(vk.Fence)}))
}

func (d *logicalDevice) WaitForFence(fence gpu.NativeObject, timeout time.Duration) (bool, error) {
	res := vk.WaitForFences(d.handle, 1, []vk.Fence{fence.(vk.Fence)}, vk.True, uint64(timeout.Nanoseconds()))
	switch res {
	case vk.Success:
		return true, nil
	case vk.Timeout:
		return false, nil
	}
	return false, check("vkWaitForFences", res)
}

func (d *logicalDevice) Submit(cmd gpu.CommandRecorder, fence gpu.NativeObject) error {
	rec := cmd.(*recorder)
	submitInfo := []vk.SubmitInfo{{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{rec.handle},
	}}
	nativeFence := vk.NullFence
	if fence != nil {
		nativeFence = fence.(vk.Fence)
	}

	d.queueMutex.Lock()
	defer d.queueMutex.Unlock()
	return check("vkQueueSubmit", vk.QueueSubmit(d.queue, 1, submitInfo, nativeFence))
}

func memoryRequirements(req vk.MemoryRequirements) gpu.MemoryRequirements {
	return gpu.MemoryRequirements{
		Size:           uint64(req.Size),
		Alignment:      uint64(req.Alignment),
		MemoryTypeBits: req.MemoryTypeBits,
	}
}
