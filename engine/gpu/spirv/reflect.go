// Package spirv extracts descriptor bindings and push constant sizes from
// SPIR-V compute modules.
package spirv

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"strings"
)

const (
	magicNumber = 0x07230203
	headerWords = 5
)

var (
	ErrInvalidMagic       = errors.New("spirv: invalid magic number")
	ErrTruncated          = errors.New("spirv: truncated module")
	ErrMalformed          = errors.New("spirv: malformed instruction")
	ErrUnsupportedSet     = errors.New("spirv: only descriptor set 0 is supported")
	ErrConflictingBinding = errors.New("spirv: binding declared with different kinds")
)

// DescriptorKind is the kind of resource a binding expects.
type DescriptorKind uint8

const (
	DescriptorKindStorageBuffer DescriptorKind = iota
	DescriptorKindStorageImage
	DescriptorKindSampledImage
	DescriptorKindCombinedImageSampler
	DescriptorKindSampler
	DescriptorKindUniformBuffer
	DescriptorKindUniformTexelBuffer
	DescriptorKindStorageTexelBuffer
	DescriptorKindAccelerationStructure
)

func (k DescriptorKind) String() string {
	switch k {
	case DescriptorKindStorageBuffer:
		return "storage_buffer"
	case DescriptorKindStorageImage:
		return "storage_image"
	case DescriptorKindSampledImage:
		return "sampled_image"
	case DescriptorKindCombinedImageSampler:
		return "combined_image_sampler"
	case DescriptorKindSampler:
		return "sampler"
	case DescriptorKindUniformBuffer:
		return "uniform_buffer"
	case DescriptorKindUniformTexelBuffer:
		return "uniform_texel_buffer"
	case DescriptorKindStorageTexelBuffer:
		return "storage_texel_buffer"
	case DescriptorKindAccelerationStructure:
		return "acceleration_structure"
	}
	return fmt.Sprintf("DescriptorKind(%d)", uint8(k))
}

// IsImage reports whether the kind binds an image view.
func (k DescriptorKind) IsImage() bool {
	switch k {
	case DescriptorKindStorageImage, DescriptorKindSampledImage, DescriptorKindCombinedImageSampler:
		return true
	}
	return false
}

// Resource is one descriptor binding used by the module.
type Resource struct {
	Binding uint32
	Set     uint32
	// Count is the array length, 1 for plain bindings and 0 for runtime
	// sized arrays.
	Count       uint32
	Kind        DescriptorKind
	ReadAccess  bool
	WriteAccess bool
	Name        string
}

type ExecutionModel uint32

const (
	ExecutionModelVertex   ExecutionModel = 0
	ExecutionModelFragment ExecutionModel = 4
	ExecutionModelCompute  ExecutionModel = 5
)

type EntryPoint struct {
	Name      string
	Model     ExecutionModel
	LocalSize [3]uint32
}

// Reflection is the binding layout of a module. Resources are sorted by
// binding and unique per binding.
type Reflection struct {
	Resources        []Resource
	PushConstantSize uint32
	EntryPoints      []EntryPoint
}

// Resource returns the resource declared at binding.
func (r *Reflection) Resource(binding uint32) (Resource, bool) {
	i := sort.Search(len(r.Resources), func(i int) bool {
		return r.Resources[i].Binding >= binding
	})
	if i < len(r.Resources) && r.Resources[i].Binding == binding {
		return r.Resources[i], true
	}
	return Resource{}, false
}

// EntryPoint looks up an entry point by name.
func (r *Reflection) EntryPoint(name string) (EntryPoint, bool) {
	for _, ep := range r.EntryPoints {
		if ep.Name == name {
			return ep, true
		}
	}
	return EntryPoint{}, false
}

// Opcodes, decorations and storage classes used by the parser.
const (
	opName                      = 5
	opEntryPoint                = 15
	opExecutionMode             = 16
	opTypeInt                   = 21
	opTypeFloat                 = 22
	opTypeVector                = 23
	opTypeMatrix                = 24
	opTypeImage                 = 25
	opTypeSampler               = 26
	opTypeSampledImage          = 27
	opTypeArray                 = 28
	opTypeRuntimeArray          = 29
	opTypeStruct                = 30
	opTypePointer               = 32
	opConstant                  = 43
	opFunction                  = 54
	opFunctionEnd               = 56
	opFunctionCall              = 57
	opVariable                  = 59
	opImageTexelPointer         = 60
	opLoad                      = 61
	opStore                     = 62
	opCopyMemory                = 63
	opCopyMemorySized           = 64
	opAccessChain               = 65
	opInBoundsAccessChain       = 66
	opPtrAccessChain            = 67
	opArrayLength               = 68
	opInBoundsPtrAccessChain    = 70
	opDecorate                  = 71
	opMemberDecorate            = 72
	opCopyObject                = 83
	opAtomicLoad                = 227
	opAtomicStore               = 228
	opAtomicExchange            = 229
	opAtomicXor                 = 242
	opTypeAccelerationStructure = 5341

	decorationBlock         = 2
	decorationBufferBlock   = 3
	decorationArrayStride   = 6
	decorationMatrixStride  = 7
	decorationNonWritable   = 24
	decorationBinding       = 33
	decorationDescriptorSet = 34
	decorationOffset        = 35

	storageClassUniformConstant = 0
	storageClassUniform         = 2
	storageClassPushConstant    = 9
	storageClassStorageBuffer   = 12

	executionModeLocalSize = 17

	imageDimBuffer = 5
)

type typeInfo struct {
	op       uint32
	operands []uint32
}

type variable struct {
	typeID       uint32
	storageClass uint32
}

type parser struct {
	words []uint32

	names       map[uint32]string
	types       map[uint32]typeInfo
	constants   map[uint32]uint32
	variables   map[uint32]variable
	decorations map[uint32]map[uint32]uint32
	// member decorations keyed by struct id then member index
	memberDecorations map[uint32]map[uint32]map[uint32]uint32
	// access chains and copies resolve to the variable they derive from
	derived  map[uint32]uint32
	accessed map[uint32]bool

	entryPoints map[uint32]*EntryPoint
	entryOrder  []uint32
}

// Reflect parses a SPIR-V module. code must be a whole number of 32-bit
// words in either byte order.
func Reflect(code []byte) (*Reflection, error) {
	words, err := decodeWords(code)
	if err != nil {
		return nil, err
	}

	p := &parser{
		words:             words,
		names:             make(map[uint32]string),
		types:             make(map[uint32]typeInfo),
		constants:         make(map[uint32]uint32),
		variables:         make(map[uint32]variable),
		decorations:       make(map[uint32]map[uint32]uint32),
		memberDecorations: make(map[uint32]map[uint32]map[uint32]uint32),
		derived:           make(map[uint32]uint32),
		accessed:          make(map[uint32]bool),
		entryPoints:       make(map[uint32]*EntryPoint),
	}
	if err := p.parse(); err != nil {
		return nil, err
	}
	return p.reflection()
}

func decodeWords(code []byte) ([]uint32, error) {
	if len(code)%4 != 0 || len(code) < headerWords*4 {
		return nil, ErrTruncated
	}

	var order binary.ByteOrder = binary.LittleEndian
	switch {
	case binary.LittleEndian.Uint32(code) == magicNumber:
	case binary.BigEndian.Uint32(code) == magicNumber:
		order = binary.BigEndian
	default:
		return nil, ErrInvalidMagic
	}

	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = order.Uint32(code[i*4:])
	}
	return words, nil
}

func (p *parser) parse() error {
	inFunction := false
	for pos := headerWords; pos < len(p.words); {
		wordCount := int(p.words[pos] >> 16)
		opcode := p.words[pos] & 0xffff
		if wordCount == 0 || pos+wordCount > len(p.words) {
			return fmt.Errorf("%w: opcode %d at word %d", ErrMalformed, opcode, pos)
		}
		ops := p.words[pos+1 : pos+wordCount]
		pos += wordCount

		if err := p.instruction(opcode, ops, &inFunction); err != nil {
			return err
		}
	}
	return nil
}

func (p *parser) instruction(opcode uint32, ops []uint32, inFunction *bool) error {
	need := func(n int) error {
		if len(ops) < n {
			return fmt.Errorf("%w: opcode %d has %d operands, want %d", ErrMalformed, opcode, len(ops), n)
		}
		return nil
	}

	switch opcode {
	case opName:
		if err := need(2); err != nil {
			return err
		}
		p.names[ops[0]] = literalString(ops[1:])
	case opEntryPoint:
		if err := need(3); err != nil {
			return err
		}
		ep := &EntryPoint{Model: ExecutionModel(ops[0]), Name: literalString(ops[2:])}
		p.entryPoints[ops[1]] = ep
		p.entryOrder = append(p.entryOrder, ops[1])
	case opExecutionMode:
		if err := need(2); err != nil {
			return err
		}
		if ops[1] == executionModeLocalSize && len(ops) >= 5 {
			if ep, ok := p.entryPoints[ops[0]]; ok {
				ep.LocalSize = [3]uint32{ops[2], ops[3], ops[4]}
			}
		}
	case opDecorate:
		if err := need(2); err != nil {
			return err
		}
		d, ok := p.decorations[ops[0]]
		if !ok {
			d = make(map[uint32]uint32)
			p.decorations[ops[0]] = d
		}
		var value uint32
		if len(ops) > 2 {
			value = ops[2]
		}
		d[ops[1]] = value
	case opMemberDecorate:
		if err := need(3); err != nil {
			return err
		}
		members, ok := p.memberDecorations[ops[0]]
		if !ok {
			members = make(map[uint32]map[uint32]uint32)
			p.memberDecorations[ops[0]] = members
		}
		d, ok := members[ops[1]]
		if !ok {
			d = make(map[uint32]uint32)
			members[ops[1]] = d
		}
		var value uint32
		if len(ops) > 3 {
			value = ops[3]
		}
		d[ops[2]] = value
	case opTypeInt, opTypeFloat, opTypeVector, opTypeMatrix, opTypeImage, opTypeSampler,
		opTypeSampledImage, opTypeArray, opTypeRuntimeArray, opTypeStruct, opTypePointer,
		opTypeAccelerationStructure:
		if err := need(1); err != nil {
			return err
		}
		p.types[ops[0]] = typeInfo{op: opcode, operands: ops[1:]}
	case opConstant:
		if err := need(3); err != nil {
			return err
		}
		p.constants[ops[1]] = ops[2]
	case opVariable:
		if err := need(3); err != nil {
			return err
		}
		if !*inFunction {
			p.variables[ops[1]] = variable{typeID: ops[0], storageClass: ops[2]}
		}
	case opFunction:
		*inFunction = true
	case opFunctionEnd:
		*inFunction = false
	}

	if *inFunction {
		p.reference(opcode, ops)
	}
	return nil
}

// reference records which module scope variables a function body touches.
func (p *parser) reference(opcode uint32, ops []uint32) {
	switch opcode {
	case opLoad, opImageTexelPointer, opArrayLength:
		if len(ops) >= 3 {
			p.touch(ops[2])
		}
	case opStore, opAtomicStore:
		if len(ops) >= 1 {
			p.touch(ops[0])
		}
	case opCopyMemory, opCopyMemorySized:
		if len(ops) >= 2 {
			p.touch(ops[0])
			p.touch(ops[1])
		}
	case opAccessChain, opInBoundsAccessChain, opPtrAccessChain, opInBoundsPtrAccessChain, opCopyObject:
		if len(ops) >= 3 {
			p.touch(ops[2])
			p.derived[ops[1]] = p.root(ops[2])
		}
	case opFunctionCall:
		if len(ops) >= 3 {
			for _, arg := range ops[3:] {
				p.touch(arg)
			}
		}
	default:
		if opcode >= opAtomicLoad && opcode <= opAtomicXor && len(ops) >= 3 {
			p.touch(ops[2])
		}
	}
}

func (p *parser) root(id uint32) uint32 {
	if base, ok := p.derived[id]; ok {
		return base
	}
	return id
}

func (p *parser) touch(id uint32) {
	id = p.root(id)
	if _, ok := p.variables[id]; ok {
		p.accessed[id] = true
	}
}

func (p *parser) reflection() (*Reflection, error) {
	refl := &Reflection{}

	for _, id := range p.entryOrder {
		refl.EntryPoints = append(refl.EntryPoints, *p.entryPoints[id])
	}

	ids := make([]uint32, 0, len(p.variables))
	for id := range p.variables {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	byBinding := make(map[uint32]int)
	for _, id := range ids {
		v := p.variables[id]
		ptr, ok := p.types[v.typeID]
		if !ok || ptr.op != opTypePointer || len(ptr.operands) < 2 {
			continue
		}
		pointee := ptr.operands[1]

		if v.storageClass == storageClassPushConstant {
			size := p.sizeOf(pointee)
			if size > refl.PushConstantSize {
				refl.PushConstantSize = size
			}
			continue
		}

		binding, hasBinding := p.decoration(id, decorationBinding)
		if !hasBinding {
			continue
		}
		set, _ := p.decoration(id, decorationDescriptorSet)

		elem, count := p.unwrapArrays(pointee)
		kind, ok := p.kind(v.storageClass, elem)
		if !ok {
			continue
		}
		if set != 0 {
			return nil, fmt.Errorf("%w: binding %d in set %d", ErrUnsupportedSet, binding, set)
		}

		accessed := p.accessed[id]
		res := Resource{
			Binding:     binding,
			Set:         set,
			Count:       count,
			Kind:        kind,
			ReadAccess:  accessed,
			WriteAccess: accessed && writable(kind) && !p.nonWritable(id, elem),
			Name:        p.names[id],
		}

		if i, ok := byBinding[binding]; ok {
			prev := &refl.Resources[i]
			if prev.Kind != res.Kind {
				return nil, fmt.Errorf("%w: binding %d is %s and %s", ErrConflictingBinding, binding, prev.Kind, res.Kind)
			}
			prev.ReadAccess = prev.ReadAccess || res.ReadAccess
			prev.WriteAccess = prev.WriteAccess || res.WriteAccess
			continue
		}
		byBinding[binding] = len(refl.Resources)
		refl.Resources = append(refl.Resources, res)
	}

	sort.Slice(refl.Resources, func(i, j int) bool {
		return refl.Resources[i].Binding < refl.Resources[j].Binding
	})
	return refl, nil
}

func (p *parser) decoration(id, decoration uint32) (uint32, bool) {
	d, ok := p.decorations[id]
	if !ok {
		return 0, false
	}
	v, ok := d[decoration]
	return v, ok
}

func (p *parser) memberDecoration(id, member, decoration uint32) (uint32, bool) {
	d, ok := p.memberDecorations[id][member]
	if !ok {
		return 0, false
	}
	v, ok := d[decoration]
	return v, ok
}

// unwrapArrays strips array types and returns the element type along with
// the total element count (0 when any dimension is runtime sized).
func (p *parser) unwrapArrays(id uint32) (uint32, uint32) {
	count := uint32(1)
	for {
		t, ok := p.types[id]
		if !ok {
			return id, count
		}
		switch t.op {
		case opTypeArray:
			if len(t.operands) < 2 {
				return id, count
			}
			count *= p.constants[t.operands[1]]
			id = t.operands[0]
		case opTypeRuntimeArray:
			if len(t.operands) < 1 {
				return id, count
			}
			count = 0
			id = t.operands[0]
		default:
			return id, count
		}
	}
}

func (p *parser) kind(storageClass, typeID uint32) (DescriptorKind, bool) {
	t, ok := p.types[typeID]
	if !ok {
		return 0, false
	}

	switch storageClass {
	case storageClassStorageBuffer:
		return DescriptorKindStorageBuffer, t.op == opTypeStruct
	case storageClassUniform:
		if t.op != opTypeStruct {
			return 0, false
		}
		if _, ok := p.decoration(typeID, decorationBufferBlock); ok {
			return DescriptorKindStorageBuffer, true
		}
		return DescriptorKindUniformBuffer, true
	case storageClassUniformConstant:
		switch t.op {
		case opTypeSampler:
			return DescriptorKindSampler, true
		case opTypeSampledImage:
			return DescriptorKindCombinedImageSampler, true
		case opTypeAccelerationStructure:
			return DescriptorKindAccelerationStructure, true
		case opTypeImage:
			// OpTypeImage operands: sampled type, dim, depth, arrayed, ms, sampled, format
			if len(t.operands) < 6 {
				return 0, false
			}
			dim, sampled := t.operands[1], t.operands[5]
			switch {
			case dim == imageDimBuffer && sampled == 2:
				return DescriptorKindStorageTexelBuffer, true
			case dim == imageDimBuffer:
				return DescriptorKindUniformTexelBuffer, true
			case sampled == 2:
				return DescriptorKindStorageImage, true
			default:
				return DescriptorKindSampledImage, true
			}
		}
	}
	return 0, false
}

func writable(kind DescriptorKind) bool {
	switch kind {
	case DescriptorKindStorageBuffer, DescriptorKindStorageImage, DescriptorKindStorageTexelBuffer:
		return true
	}
	return false
}

// nonWritable reports whether the variable, or every member of its block,
// is decorated NonWritable.
func (p *parser) nonWritable(id, typeID uint32) bool {
	if _, ok := p.decoration(id, decorationNonWritable); ok {
		return true
	}
	if _, ok := p.decoration(typeID, decorationNonWritable); ok {
		return true
	}
	t, ok := p.types[typeID]
	if !ok || t.op != opTypeStruct || len(t.operands) == 0 {
		return false
	}
	for member := range t.operands {
		if _, ok := p.memberDecoration(typeID, uint32(member), decorationNonWritable); !ok {
			return false
		}
	}
	return true
}

// sizeOf returns the byte size of a type laid out with explicit offsets and
// strides.
func (p *parser) sizeOf(id uint32) uint32 {
	t, ok := p.types[id]
	if !ok {
		return 0
	}
	switch t.op {
	case opTypeInt, opTypeFloat:
		if len(t.operands) < 1 {
			return 0
		}
		return t.operands[0] / 8
	case opTypeVector:
		if len(t.operands) < 2 {
			return 0
		}
		return p.sizeOf(t.operands[0]) * t.operands[1]
	case opTypeMatrix:
		if len(t.operands) < 2 {
			return 0
		}
		return p.sizeOf(t.operands[0]) * t.operands[1]
	case opTypeArray:
		if len(t.operands) < 2 {
			return 0
		}
		length := p.constants[t.operands[1]]
		if stride, ok := p.decoration(id, decorationArrayStride); ok {
			return stride * length
		}
		return p.sizeOf(t.operands[0]) * length
	case opTypeStruct:
		var size uint32
		for member, memberType := range t.operands {
			offset, _ := p.memberDecoration(id, uint32(member), decorationOffset)
			memberSize := p.sizeOf(memberType)
			if stride, ok := p.memberDecoration(id, uint32(member), decorationMatrixStride); ok {
				if mt, ok := p.types[memberType]; ok && mt.op == opTypeMatrix && len(mt.operands) > 1 {
					memberSize = stride * mt.operands[1]
				}
			}
			if end := offset + memberSize; end > size {
				size = end
			}
		}
		return size
	}
	return 0
}

func literalString(words []uint32) string {
	var sb strings.Builder
	for _, w := range words {
		for shift := 0; shift < 32; shift += 8 {
			c := byte(w >> shift)
			if c == 0 {
				return sb.String()
			}
			sb.WriteByte(c)
		}
	}
	return sb.String()
}
