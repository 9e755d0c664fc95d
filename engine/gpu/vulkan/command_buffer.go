package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/cgpu/engine/gpu"
)

// recorder wraps a primary command buffer.
type recorder struct {
	handle vk.CommandBuffer
}

var _ gpu.CommandRecorder = (*recorder)(nil)

func (r *recorder) Begin() error {
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	return check("vkBeginCommandBuffer", vk.BeginCommandBuffer(r.handle, &beginInfo))
}

func (r *recorder) End() error {
	return check("vkEndCommandBuffer", vk.EndCommandBuffer(r.handle))
}

func (r *recorder) BindComputePipeline(pipeline gpu.NativeObject) {
	vk.CmdBindPipeline(r.handle, vk.PipelineBindPointCompute, pipeline.(vk.Pipeline))
}

func (r *recorder) BindDescriptorSet(layout, set gpu.NativeObject) {
	sets := []vk.DescriptorSet{set.(vk.DescriptorSet)}
	vk.CmdBindDescriptorSets(r.handle, vk.PipelineBindPointCompute, layout.(vk.PipelineLayout), 0, 1, sets, 0, nil)
}

func (r *recorder) PushConstants(layout gpu.NativeObject, data []byte) {
	if len(data) == 0 {
		return
	}
	vk.CmdPushConstants(r.handle, layout.(vk.PipelineLayout), vk.ShaderStageFlags(vk.ShaderStageComputeBit),
		0, uint32(len(data)), unsafe.Pointer(&data[0]))
}

func (r *recorder) Dispatch(x, y, z uint32) {
	vk.CmdDispatch(r.handle, x, y, z)
}

func (r *recorder) CopyBuffer(src, dst gpu.NativeObject, region gpu.BufferCopy) {
	regions := []vk.BufferCopy{{
		SrcOffset: vk.DeviceSize(region.SrcOffset),
		DstOffset: vk.DeviceSize(region.DstOffset),
		Size:      vk.DeviceSize(region.Size),
	}}
	vk.CmdCopyBuffer(r.handle, src.(vk.Buffer), dst.(vk.Buffer), 1, regions)
}

func (r *recorder) CopyBufferToImage(src, dst gpu.NativeObject, layout gpu.ImageLayout, width, height uint32) {
	regions := []vk.BufferImageCopy{{
		BufferOffset:      0,
		BufferRowLength:   0,
		BufferImageHeight: 0,
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			MipLevel:       0,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		ImageOffset: vk.Offset3D{X: 0, Y: 0, Z: 0},
		ImageExtent: vk.Extent3D{Width: width, Height: height, Depth: 1},
	}}
	vk.CmdCopyBufferToImage(r.handle, src.(vk.Buffer), dst.(vk.Image), nativeImageLayout(layout), 1, regions)
}

func (r *recorder) PipelineBarrier(src, dst gpu.PipelineStageFlags, memory []gpu.NativeMemoryBarrier, buffers []gpu.NativeBufferBarrier, images []gpu.NativeImageBarrier) {
	var memoryBarriers []vk.MemoryBarrier
	for _, b := range memory {
		memoryBarriers = append(memoryBarriers, vk.MemoryBarrier{
			SType:         vk.StructureTypeMemoryBarrier,
			SrcAccessMask: nativeAccess(b.SrcAccess),
			DstAccessMask: nativeAccess(b.DstAccess),
		})
	}
	var bufferBarriers []vk.BufferMemoryBarrier
	for _, b := range buffers {
		bufferBarriers = append(bufferBarriers, vk.BufferMemoryBarrier{
			SType:               vk.StructureTypeBufferMemoryBarrier,
			SrcAccessMask:       nativeAccess(b.SrcAccess),
			DstAccessMask:       nativeAccess(b.DstAccess),
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Buffer:              b.Buffer.(vk.Buffer),
			Offset:              vk.DeviceSize(b.Offset),
			Size:                vk.DeviceSize(b.Size),
		})
	}
	var imageBarriers []vk.ImageMemoryBarrier
	for _, b := range images {
		imageBarriers = append(imageBarriers, vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       nativeAccess(b.SrcAccess),
			DstAccessMask:       nativeAccess(b.DstAccess),
			OldLayout:           nativeImageLayout(b.OldLayout),
			NewLayout:           nativeImageLayout(b.NewLayout),
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               b.Image.(vk.Image),
			SubresourceRange:    colorSubresourceRange(),
		})
	}
	vk.CmdPipelineBarrier(r.handle, nativeStages(src), nativeStages(dst), 0,
		uint32(len(memoryBarriers)), memoryBarriers,
		uint32(len(bufferBarriers)), bufferBarriers,
		uint32(len(imageBarriers)), imageBarriers)
}

func (r *recorder) ResetQueryPool(pool gpu.NativeObject, first, count uint32) {
	vk.CmdResetQueryPool(r.handle, pool.(vk.QueryPool), first, count)
}

func (r *recorder) WriteTimestamp(pool gpu.NativeObject, stage gpu.PipelineStageFlags, index uint32) {
	vk.CmdWriteTimestamp(r.handle, nativeStageBits(stage), pool.(vk.QueryPool), index)
}

func (r *recorder) CopyQueryPoolResults(pool gpu.NativeObject, first, count uint32, dst gpu.NativeObject, dstOffset, stride uint64, flags gpu.QueryResultFlags) {
	vk.CmdCopyQueryPoolResults(r.handle, pool.(vk.QueryPool), first, count, dst.(vk.Buffer),
		vk.DeviceSize(dstOffset), vk.DeviceSize(stride), nativeQueryResultFlags(flags))
}
