package gpu

import (
	"fmt"

	"github.com/spaghettifunk/cgpu/engine/gpu/spirv"
)

type pipelineRecord struct {
	device     Device
	shader     Shader
	reflection *spirv.Reflection
	entryPoint string

	native    NativeObject
	layout    NativeObject
	setLayout NativeObject
	pool      NativeObject
	set       NativeObject
	poolSizes []DescriptorPoolSize

	// images holds the images last bound through UpdateResources, indexed
	// by binding and then by array element.
	images [][]Image
}

// poolKinds is the order descriptor pool sizes are emitted in.
var poolKinds = []spirv.DescriptorKind{
	spirv.DescriptorKindStorageBuffer,
	spirv.DescriptorKindStorageImage,
	spirv.DescriptorKindSampledImage,
	spirv.DescriptorKindCombinedImageSampler,
	spirv.DescriptorKindSampler,
}

func supportedKind(kind spirv.DescriptorKind) bool {
	for _, k := range poolKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// descriptorCount is the number of descriptors a resource occupies.
// Runtime sized arrays reserve a single descriptor.
func descriptorCount(res spirv.Resource) uint32 {
	if res.Count == 0 {
		return 1
	}
	return res.Count
}

// layoutBindings derives one compute stage binding per resource.
func layoutBindings(resources []spirv.Resource) ([]DescriptorLayoutBinding, error) {
	if len(resources) > MaxDescriptorBindings {
		return nil, fmt.Errorf("%w: %d resources", ErrMaxDescriptorBindingsReached, len(resources))
	}
	bindings := make([]DescriptorLayoutBinding, 0, len(resources))
	for _, res := range resources {
		if !supportedKind(res.Kind) {
			return nil, fmt.Errorf("%w: %s at binding %d", ErrUnsupportedDescriptorKind, res.Kind, res.Binding)
		}
		bindings = append(bindings, DescriptorLayoutBinding{
			Binding: res.Binding,
			Kind:    res.Kind,
			Count:   descriptorCount(res),
		})
	}
	return bindings, nil
}

// poolSizes histograms the resource kinds. Kinds without resources get no
// entry.
func poolSizes(resources []spirv.Resource) []DescriptorPoolSize {
	counts := make(map[spirv.DescriptorKind]uint32, len(poolKinds))
	for _, res := range resources {
		counts[res.Kind] += descriptorCount(res)
	}
	var sizes []DescriptorPoolSize
	for _, kind := range poolKinds {
		if n := counts[kind]; n > 0 {
			sizes = append(sizes, DescriptorPoolSize{Kind: kind, Count: n})
		}
	}
	return sizes
}

// CreatePipeline builds a compute pipeline for the entry point of shader,
// along with its descriptor set layout, pipeline layout and a pool holding
// exactly one descriptor set. A failing step unwinds everything created
// before it.
func (inst *Instance) CreatePipeline(device Device, shader Shader, entryPoint string) (Pipeline, error) {
	dev, err := inst.device(device)
	if err != nil {
		return Pipeline{}, err
	}
	sh, err := inst.shader(shader)
	if err != nil {
		return Pipeline{}, err
	}
	reflection := sh.reflection
	if len(reflection.EntryPoints) > 0 {
		ep, ok := reflection.EntryPoint(entryPoint)
		if !ok || ep.Model != spirv.ExecutionModelCompute {
			dev.log.Errorf("shader has no compute entry point %q", entryPoint)
			return Pipeline{}, fmt.Errorf("%w: no compute entry point %q", ErrInvalidArgument, entryPoint)
		}
	}

	bindings, err := layoutBindings(reflection.Resources)
	if err != nil {
		dev.log.Errorf("failed to derive descriptor layout: %v", err)
		return Pipeline{}, err
	}

	rec := pipelineRecord{
		device:     device,
		shader:     shader,
		reflection: reflection,
		entryPoint: entryPoint,
		poolSizes:  poolSizes(reflection.Resources),
		images:     make([][]Image, imageCacheSize(reflection.Resources)),
	}

	var unwind []func()
	fail := func(kind error, err error) (Pipeline, error) {
		for i := len(unwind) - 1; i >= 0; i-- {
			unwind[i]()
		}
		dev.log.Errorf("pipeline creation failed: %v: %v", kind, err)
		return Pipeline{}, fmt.Errorf("%w: %w", kind, err)
	}

	rec.setLayout, err = dev.logical.CreateDescriptorSetLayout(bindings)
	if err != nil {
		return fail(ErrUnableToCreateDescriptorLayout, err)
	}
	unwind = append(unwind, func() { dev.logical.DestroyDescriptorSetLayout(rec.setLayout) })

	rec.layout, err = dev.logical.CreatePipelineLayout(rec.setLayout, reflection.PushConstantSize)
	if err != nil {
		return fail(ErrUnableToCreatePipelineLayout, err)
	}
	unwind = append(unwind, func() { dev.logical.DestroyPipelineLayout(rec.layout) })

	rec.native, err = dev.logical.CreateComputePipeline(ComputePipelineDesc{
		Layout:       rec.layout,
		Module:       sh.native,
		EntryPoint:   entryPoint,
		DispatchBase: true,
	})
	if err != nil {
		return fail(ErrUnableToCreateComputePipeline, err)
	}
	unwind = append(unwind, func() { dev.logical.DestroyPipeline(rec.native) })

	rec.pool, err = dev.logical.CreateDescriptorPool(rec.poolSizes, 1)
	if err != nil {
		return fail(ErrUnableToCreateDescriptorPool, err)
	}
	unwind = append(unwind, func() { dev.logical.DestroyDescriptorPool(rec.pool) })

	rec.set, err = dev.logical.AllocateDescriptorSet(rec.pool, rec.setLayout)
	if err != nil {
		return fail(ErrUnableToAllocateDescriptorSet, err)
	}

	h, err := insert(inst, PipelineManagement, inst.pipelines, rec)
	if err != nil {
		return fail(ErrUnableToCreateComputePipeline, err)
	}
	dev.log.Debugf("Pipeline created for entry point %q with %d bindings", entryPoint, len(bindings))
	return Pipeline{handle: h}, nil
}

// imageCacheSize returns one past the highest image binding.
func imageCacheSize(resources []spirv.Resource) int {
	n := 0
	for _, res := range resources {
		if res.Kind.IsImage() && int(res.Binding)+1 > n {
			n = int(res.Binding) + 1
		}
	}
	return n
}

// DestroyPipeline releases the pipeline and its descriptor objects. The
// descriptor set goes away with its pool.
func (inst *Instance) DestroyPipeline(device Device, pipeline Pipeline) error {
	dev, err := inst.device(device)
	if err != nil {
		return err
	}
	rec, err := remove(inst, PipelineManagement, inst.pipelines, pipeline.handle)
	if err != nil {
		return err
	}
	dev.logical.DestroyDescriptorPool(rec.pool)
	dev.logical.DestroyPipeline(rec.native)
	dev.logical.DestroyPipelineLayout(rec.layout)
	dev.logical.DestroyDescriptorSetLayout(rec.setLayout)
	return nil
}

func (inst *Instance) pipeline(pipeline Pipeline) (*pipelineRecord, error) {
	return resolve(inst, PipelineManagement, inst.pipelines, pipeline.handle)
}
