package gpu

import (
	"encoding/binary"

	"github.com/spaghettifunk/cgpu/engine/gpu/spirv"
)

const (
	spvMagic = 0x07230203

	spvOpMemoryModel      = 14
	spvOpEntryPoint       = 15
	spvOpExecutionMode    = 16
	spvOpCapability       = 17
	spvOpTypeVoid         = 19
	spvOpTypeInt          = 21
	spvOpTypeFloat        = 22
	spvOpTypeImage        = 25
	spvOpTypeSampler      = 26
	spvOpTypeSampledImage = 27
	spvOpTypeArray        = 28
	spvOpTypeRuntimeArray = 29
	spvOpTypeStruct       = 30
	spvOpTypePointer      = 32
	spvOpTypeFunction     = 33
	spvOpConstant         = 43
	spvOpFunction         = 54
	spvOpFunctionEnd      = 56
	spvOpVariable         = 59
	spvOpLoad             = 61
	spvOpStore            = 62
	spvOpAccessChain      = 65
	spvOpDecorate         = 71
	spvOpMemberDecorate   = 72
	spvOpLabel            = 248
	spvOpReturn           = 253

	spvDecorationBlock         = 2
	spvDecorationBufferBlock   = 3
	spvDecorationArrayStride   = 6
	spvDecorationNonWritable   = 24
	spvDecorationBinding       = 33
	spvDecorationDescriptorSet = 34
	spvDecorationOffset        = 35

	spvUniformConstant = 0
	spvUniform         = 2
	spvPushConstant    = 9
)

// testResource describes one binding of a generated compute shader.
type testResource struct {
	binding  uint32
	kind     spirv.DescriptorKind
	readOnly bool
	unused   bool
	// count > 1 declares an array of that many elements.
	count uint32
	// runtime declares a runtime sized array.
	runtime bool
}

type shaderBuilder struct {
	next uint32

	head, annotations, types, variables, body []uint32
}

func (b *shaderBuilder) id() uint32 {
	b.next++
	return b.next
}

func emit(section *[]uint32, opcode uint32, operands ...uint32) {
	*section = append(*section, uint32(len(operands)+1)<<16|opcode)
	*section = append(*section, operands...)
}

// buildShader assembles a compute shader with entry point "main" using the
// given resources and a push constant block of pushSize bytes (a multiple
// of four).
func buildShader(pushSize uint32, resources ...testResource) []byte {
	b := &shaderBuilder{}

	entry, void, fnType, f32, u32, zero, uPtr, label := b.id(), b.id(), b.id(), b.id(), b.id(), b.id(), b.id(), b.id()

	emit(&b.head, spvOpCapability, 1)
	emit(&b.head, spvOpMemoryModel, 0, 1)
	emit(&b.head, spvOpEntryPoint, 5, entry, 0x6e69616d, 0) // "main"
	emit(&b.head, spvOpExecutionMode, entry, 17, 64, 1, 1)

	emit(&b.types, spvOpTypeVoid, void)
	emit(&b.types, spvOpTypeFunction, fnType, void)
	emit(&b.types, spvOpTypeFloat, f32, 32)
	emit(&b.types, spvOpTypeInt, u32, 32, 0)
	emit(&b.types, spvOpConstant, u32, zero, 0)
	emit(&b.types, spvOpTypePointer, uPtr, spvUniform, u32)

	for _, r := range resources {
		variable := b.id()
		storage := uint32(spvUniformConstant)
		var elem uint32
		buffer := false

		switch r.kind {
		case spirv.DescriptorKindStorageBuffer, spirv.DescriptorKindUniformBuffer:
			arr, st := b.id(), b.id()
			emit(&b.types, spvOpTypeRuntimeArray, arr, u32)
			emit(&b.types, spvOpTypeStruct, st, arr)
			emit(&b.annotations, spvOpDecorate, arr, spvDecorationArrayStride, 4)
			emit(&b.annotations, spvOpMemberDecorate, st, 0, spvDecorationOffset, 0)
			if r.kind == spirv.DescriptorKindStorageBuffer {
				emit(&b.annotations, spvOpDecorate, st, spvDecorationBufferBlock)
			} else {
				emit(&b.annotations, spvOpDecorate, st, spvDecorationBlock)
			}
			elem, storage, buffer = st, spvUniform, true
		case spirv.DescriptorKindStorageImage:
			elem = b.id()
			emit(&b.types, spvOpTypeImage, elem, f32, 1, 0, 0, 0, 2, 4)
		case spirv.DescriptorKindSampledImage:
			elem = b.id()
			emit(&b.types, spvOpTypeImage, elem, f32, 1, 0, 0, 0, 1, 0)
		case spirv.DescriptorKindCombinedImageSampler:
			img := b.id()
			elem = b.id()
			emit(&b.types, spvOpTypeImage, img, f32, 1, 0, 0, 0, 1, 0)
			emit(&b.types, spvOpTypeSampledImage, elem, img)
		case spirv.DescriptorKindSampler:
			elem = b.id()
			emit(&b.types, spvOpTypeSampler, elem)
		default:
			panic("buildShader: unsupported kind " + r.kind.String())
		}
		loadType := elem

		switch {
		case r.runtime:
			arr := b.id()
			emit(&b.types, spvOpTypeRuntimeArray, arr, elem)
			elem = arr
			loadType = arr
		case r.count > 1:
			n, arr := b.id(), b.id()
			emit(&b.types, spvOpConstant, u32, n, r.count)
			emit(&b.types, spvOpTypeArray, arr, elem, n)
			elem = arr
			loadType = arr
		}

		ptr := b.id()
		emit(&b.types, spvOpTypePointer, ptr, storage, elem)
		emit(&b.variables, spvOpVariable, ptr, variable, storage)
		emit(&b.annotations, spvOpDecorate, variable, spvDecorationDescriptorSet, 0)
		emit(&b.annotations, spvOpDecorate, variable, spvDecorationBinding, r.binding)
		if r.readOnly {
			emit(&b.annotations, spvOpDecorate, variable, spvDecorationNonWritable)
		}

		if r.unused {
			continue
		}
		if buffer {
			chain := b.id()
			emit(&b.body, spvOpAccessChain, uPtr, chain, variable, zero, zero)
			if r.readOnly || r.kind == spirv.DescriptorKindUniformBuffer {
				emit(&b.body, spvOpLoad, u32, b.id(), chain)
			} else {
				emit(&b.body, spvOpStore, chain, zero)
			}
			continue
		}
		emit(&b.body, spvOpLoad, loadType, b.id(), variable)
	}

	if pushSize > 0 {
		n, arr, st, ptr, pc := b.id(), b.id(), b.id(), b.id(), b.id()
		emit(&b.types, spvOpConstant, u32, n, pushSize/4)
		emit(&b.types, spvOpTypeArray, arr, u32, n)
		emit(&b.types, spvOpTypeStruct, st, arr)
		emit(&b.types, spvOpTypePointer, ptr, spvPushConstant, st)
		emit(&b.variables, spvOpVariable, ptr, pc, spvPushConstant)
		emit(&b.annotations, spvOpDecorate, arr, spvDecorationArrayStride, 4)
		emit(&b.annotations, spvOpDecorate, st, spvDecorationBlock)
		emit(&b.annotations, spvOpMemberDecorate, st, 0, spvDecorationOffset, 0)
	}

	var words []uint32
	words = append(words, spvMagic, 0x00010300, 0, b.next+1, 0)
	words = append(words, b.head...)
	words = append(words, b.annotations...)
	words = append(words, b.types...)
	words = append(words, b.variables...)
	emit(&words, spvOpFunction, void, entry, 0, fnType)
	emit(&words, spvOpLabel, label)
	words = append(words, b.body...)
	emit(&words, spvOpReturn)
	emit(&words, spvOpFunctionEnd)

	out := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[i*4:], w)
	}
	return out
}
