package gpu

import (
	"fmt"

	"github.com/spaghettifunk/cgpu/engine/gpu/spirv"
)

// requiredLayout is the layout an image resource must be in while the
// shader runs.
func requiredLayout(kind spirv.DescriptorKind) ImageLayout {
	if kind == spirv.DescriptorKindStorageImage {
		return ImageLayoutGeneral
	}
	return ImageLayoutShaderReadOnly
}

// resourceAccess is the access mask declared by a reflected resource.
func resourceAccess(res spirv.Resource) AccessFlags {
	access := AccessNone
	if res.ReadAccess {
		access |= AccessShaderRead
	}
	if res.WriteAccess {
		access |= AccessShaderWrite
	}
	return access
}

type imageTransition struct {
	record *imageRecord
	image  Image
	layout ImageLayout
	access AccessFlags
}

// transitionImages records a single barrier moving every image bound to the
// image resources of pipe into the layout its resource requires. Images
// already in that layout are left alone. Image state is only updated once
// every resource has been checked, so a failed dispatch changes nothing.
//
// Image state is shared by every command buffer. Recording dispatches that
// touch the same images from several goroutines must be serialized by the
// caller.
func (inst *Instance) transitionImages(cb *commandBufferRecord, pipe *pipelineRecord) error {
	var transitions []imageTransition
	seen := make(map[Image]int)

	for _, res := range pipe.reflection.Resources {
		if !res.Kind.IsImage() {
			continue
		}
		var bound []Image
		if int(res.Binding) < len(pipe.images) {
			bound = pipe.images[res.Binding]
		}
		if len(bound) == 0 {
			return fmt.Errorf("%w: no image bound at binding %d", ErrDescriptorSetBindingMismatch, res.Binding)
		}

		layout := requiredLayout(res.Kind)
		access := resourceAccess(res)
		found := false
		for _, image := range bound {
			if !image.IsValid() {
				continue
			}
			found = true
			img, err := inst.image(image)
			if err != nil {
				return fmt.Errorf("%w: binding %d: %w", ErrDescriptorSetBindingMismatch, res.Binding, err)
			}
			if i, ok := seen[image]; ok {
				if transitions[i].layout != layout {
					return fmt.Errorf("%w: %s bound as %s and %s", ErrDescriptorSetBindingMismatch,
						image, transitions[i].layout, layout)
				}
				transitions[i].access |= access
				continue
			}
			seen[image] = len(transitions)
			transitions = append(transitions, imageTransition{record: img, image: image, layout: layout, access: access})
		}
		if !found {
			return fmt.Errorf("%w: no image bound at binding %d", ErrDescriptorSetBindingMismatch, res.Binding)
		}
	}

	barriers := make([]NativeImageBarrier, 0, len(transitions))
	for _, t := range transitions {
		if t.record.layout == t.layout {
			continue
		}
		barriers = append(barriers, NativeImageBarrier{
			Image:     t.record.native,
			SrcAccess: t.record.access,
			DstAccess: t.access,
			OldLayout: t.record.layout,
			NewLayout: t.layout,
		})
	}
	if len(barriers) == 0 {
		return nil
	}

	cb.recorder.PipelineBarrier(PipelineStageComputeShader, PipelineStageComputeShader, nil, nil, barriers)
	for _, t := range transitions {
		if t.record.layout == t.layout {
			continue
		}
		t.record.layout = t.layout
		t.record.access = t.access
	}
	return nil
}
