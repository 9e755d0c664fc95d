package gpu

import (
	"fmt"

	"github.com/spaghettifunk/cgpu/engine/gpu/spirv"
	"github.com/spaghettifunk/cgpu/engine/math"
)

// BufferBinding binds a range of a buffer. Size may be WholeSize.
type BufferBinding struct {
	Binding uint32
	// Index is the array element for arrayed bindings.
	Index  uint32
	Buffer Buffer
	Offset uint64
	Size   uint64
}

// ImageBinding binds an image. The zero Sampler selects the device default
// sampler for combined image samplers.
type ImageBinding struct {
	Binding uint32
	Index   uint32
	Image   Image
	Sampler Sampler
}

type SamplerBinding struct {
	Binding uint32
	Index   uint32
	Sampler Sampler
}

type ResourceBindings struct {
	Buffers  []BufferBinding
	Images   []ImageBinding
	Samplers []SamplerBinding
}

// bindingTarget checks that binding and index address a reflected resource
// of one of the accepted kinds.
func bindingTarget(reflection *spirv.Reflection, binding, index uint32, accept func(spirv.DescriptorKind) bool) (spirv.Resource, error) {
	res, ok := reflection.Resource(binding)
	if !ok {
		return res, fmt.Errorf("%w: binding %d is not used by the shader", ErrDescriptorSetBindingMismatch, binding)
	}
	if !accept(res.Kind) {
		return res, fmt.Errorf("%w: binding %d expects a %s", ErrDescriptorSetBindingMismatch, binding, res.Kind)
	}
	if count := descriptorCount(res); index >= count {
		return res, fmt.Errorf("%w: element %d of binding %d with %d elements", ErrDescriptorSetBindingMismatch, index, binding, count)
	}
	return res, nil
}

// UpdateResources writes the descriptor set of pipeline. Every binding is
// validated before anything is written, so a rejected update leaves the
// set untouched. On success the images bound here replace the images the
// layout tracker transitions at dispatch.
func (inst *Instance) UpdateResources(device Device, pipeline Pipeline, bindings ResourceBindings) error {
	dev, err := inst.device(device)
	if err != nil {
		return err
	}
	pipe, err := inst.pipeline(pipeline)
	if err != nil {
		return err
	}
	alignment := math.Max(dev.limits().MinStorageBufferOffsetAlignment, 1)

	writes := make([]DescriptorWrite, 0, len(bindings.Buffers)+len(bindings.Images)+len(bindings.Samplers))

	for _, b := range bindings.Buffers {
		res, err := bindingTarget(pipe.reflection, b.Binding, b.Index, func(k spirv.DescriptorKind) bool {
			return k == spirv.DescriptorKindStorageBuffer
		})
		if err != nil {
			dev.log.Errorf("buffer binding rejected: %v", err)
			return err
		}
		buf, err := inst.buffer(b.Buffer)
		if err != nil {
			return err
		}
		if !math.IsAligned(b.Offset, alignment) {
			dev.log.Errorf("buffer offset %d at binding %d is not a multiple of %d", b.Offset, b.Binding, alignment)
			return fmt.Errorf("%w: offset %d, alignment %d", ErrBufferOffsetNotAligned, b.Offset, alignment)
		}
		if b.Offset > buf.size {
			return fmt.Errorf("%w: offset %d beyond %d bytes", ErrInvalidArgument, b.Offset, buf.size)
		}
		size := wholeOr(b.Size, buf.size, b.Offset)
		if b.Offset+size > buf.size {
			return fmt.Errorf("%w: range [%d %d] beyond %d bytes", ErrInvalidArgument, b.Offset, size, buf.size)
		}
		writes = append(writes, DescriptorWrite{
			Binding:      b.Binding,
			ArrayElement: b.Index,
			Kind:         res.Kind,
			Buffer:       &DescriptorBufferInfo{Buffer: buf.native, Offset: b.Offset, Range: size},
		})
	}

	images := make([][]Image, len(pipe.images))
	for _, b := range bindings.Images {
		res, err := bindingTarget(pipe.reflection, b.Binding, b.Index, spirv.DescriptorKind.IsImage)
		if err != nil {
			dev.log.Errorf("image binding rejected: %v", err)
			return err
		}
		img, err := inst.image(b.Image)
		if err != nil {
			return err
		}
		sampler := dev.sampler
		if b.Sampler.IsValid() {
			s, err := inst.sampler(b.Sampler)
			if err != nil {
				return err
			}
			sampler = s.native
		}
		writes = append(writes, DescriptorWrite{
			Binding:      b.Binding,
			ArrayElement: b.Index,
			Kind:         res.Kind,
			Image:        &DescriptorImageInfo{Sampler: sampler, View: img.view, Layout: ImageLayoutGeneral},
		})

		elements := images[b.Binding]
		for uint32(len(elements)) <= b.Index {
			elements = append(elements, Image{})
		}
		elements[b.Index] = b.Image
		images[b.Binding] = elements
	}

	for _, b := range bindings.Samplers {
		res, err := bindingTarget(pipe.reflection, b.Binding, b.Index, func(k spirv.DescriptorKind) bool {
			return k == spirv.DescriptorKindSampler
		})
		if err != nil {
			dev.log.Errorf("sampler binding rejected: %v", err)
			return err
		}
		s, err := inst.sampler(b.Sampler)
		if err != nil {
			return err
		}
		writes = append(writes, DescriptorWrite{
			Binding:      b.Binding,
			ArrayElement: b.Index,
			Kind:         res.Kind,
			Image:        &DescriptorImageInfo{Sampler: s.native, Layout: ImageLayoutGeneral},
		})
	}

	dev.logical.UpdateDescriptorSet(pipe.set, writes)
	pipe.images = images
	return nil
}
