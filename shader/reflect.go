package shader

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/gogpu/gpurender/gpu"
)

// SPIR-V opcodes read by the reflector.
const (
	opName             = 5
	opMemberName       = 6
	opEntryPoint       = 15
	opTypeBool         = 20
	opTypeInt          = 21
	opTypeFloat        = 22
	opTypeVector       = 23
	opTypeMatrix       = 24
	opTypeImage        = 25
	opTypeSampler      = 26
	opTypeSampledImage = 27
	opTypeArray        = 28
	opTypeRuntimeArray = 29
	opTypeStruct       = 30
	opTypePointer      = 32
	opConstant         = 43
	opVariable         = 59
	opDecorate         = 71
	opMemberDecorate   = 72
)

// Decorations.
const (
	decoBlock         = 2
	decoBufferBlock   = 3
	decoArrayStride   = 6
	decoMatrixStride  = 7
	decoBuiltIn       = 11
	decoLocation      = 30
	decoBinding       = 33
	decoDescriptorSet = 34
	decoOffset        = 35
)

// Storage classes.
const (
	storageUniformConstant = 0
	storageInput           = 1
	storageUniform         = 2
	storagePushConstant    = 9
)

// Execution models.
const (
	modelVertex   = 0
	modelFragment = 4
)

// maxTypeDepth bounds recursion through nested aggregate types.
const maxTypeDepth = 32

type spvType struct {
	op       uint32
	width    uint32
	signed   bool
	elem     uint32
	count    uint32
	lengthID uint32
	members  []uint32
	storage  uint32
	sampled  uint32
}

type spvEntryPoint struct {
	model uint32
	id    uint32
	name  string
	iface []uint32
}

type spvVariable struct {
	id      uint32
	ptrType uint32
	storage uint32
}

type memberRef struct{ typ, member uint32 }

// module is the subset of a SPIR-V module needed for reflection.
type module struct {
	names       map[uint32]string
	memberNames map[memberRef]string
	entries     []spvEntryPoint
	types       map[uint32]*spvType
	constants   map[uint32]uint32
	vars        []spvVariable
	decos       map[uint32]map[uint32]uint32
	memberDecos map[memberRef]map[uint32]uint32
}

func parseModule(words []uint32) (*module, error) {
	if err := Validate(words); err != nil {
		return nil, err
	}
	m := &module{
		names:       make(map[uint32]string),
		memberNames: make(map[memberRef]string),
		types:       make(map[uint32]*spvType),
		constants:   make(map[uint32]uint32),
		decos:       make(map[uint32]map[uint32]uint32),
		memberDecos: make(map[memberRef]map[uint32]uint32),
	}
	for i := headerWords; i < len(words); {
		n := int(words[i] >> 16)
		op := words[i] & 0xFFFF
		if n == 0 || i+n > len(words) {
			return nil, fmt.Errorf("%w: truncated instruction at word %d", ErrInvalidSPIRV, i)
		}
		m.instruction(op, words[i+1:i+n])
		i += n
	}
	return m, nil
}

func (m *module) instruction(op uint32, args []uint32) {
	at := func(i int) uint32 {
		if i < len(args) {
			return args[i]
		}
		return 0
	}
	switch op {
	case opName:
		if len(args) >= 1 {
			m.names[args[0]], _ = literalString(args[1:])
		}
	case opMemberName:
		if len(args) >= 2 {
			m.memberNames[memberRef{args[0], args[1]}], _ = literalString(args[2:])
		}
	case opEntryPoint:
		if len(args) >= 2 {
			name, used := literalString(args[2:])
			m.entries = append(m.entries, spvEntryPoint{
				model: args[0],
				id:    args[1],
				name:  name,
				iface: args[min(2+used, len(args)):],
			})
		}
	case opTypeBool:
		m.types[at(0)] = &spvType{op: op, width: 32}
	case opTypeInt:
		m.types[at(0)] = &spvType{op: op, width: at(1), signed: at(2) != 0}
	case opTypeFloat:
		m.types[at(0)] = &spvType{op: op, width: at(1)}
	case opTypeVector, opTypeMatrix:
		m.types[at(0)] = &spvType{op: op, elem: at(1), count: at(2)}
	case opTypeImage:
		m.types[at(0)] = &spvType{op: op, sampled: at(6)}
	case opTypeSampler:
		m.types[at(0)] = &spvType{op: op}
	case opTypeSampledImage, opTypeRuntimeArray:
		m.types[at(0)] = &spvType{op: op, elem: at(1)}
	case opTypeArray:
		m.types[at(0)] = &spvType{op: op, elem: at(1), lengthID: at(2)}
	case opTypeStruct:
		if len(args) >= 1 {
			m.types[args[0]] = &spvType{op: op, members: args[1:]}
		}
	case opTypePointer:
		m.types[at(0)] = &spvType{op: op, storage: at(1), elem: at(2)}
	case opConstant:
		m.constants[at(1)] = at(2)
	case opVariable:
		m.vars = append(m.vars, spvVariable{ptrType: at(0), id: at(1), storage: at(2)})
	case opDecorate:
		if len(args) >= 2 {
			d := m.decos[args[0]]
			if d == nil {
				d = make(map[uint32]uint32)
				m.decos[args[0]] = d
			}
			d[args[1]] = at(2)
		}
	case opMemberDecorate:
		if len(args) >= 3 {
			ref := memberRef{args[0], args[1]}
			d := m.memberDecos[ref]
			if d == nil {
				d = make(map[uint32]uint32)
				m.memberDecos[ref] = d
			}
			d[args[2]] = at(3)
		}
	}
}

// literalString decodes a nul-terminated UTF-8 literal and reports how many
// words it occupied.
func literalString(words []uint32) (string, int) {
	buf := make([]byte, 0, len(words)*4)
	for i, w := range words {
		for shift := 0; shift < 32; shift += 8 {
			c := byte(w >> shift)
			if c == 0 {
				return string(buf), i + 1
			}
			buf = append(buf, c)
		}
	}
	return string(buf), len(words)
}

func (m *module) deco(id, d uint32) (uint32, bool) {
	v, ok := m.decos[id][d]
	return v, ok
}

// sizeOf returns the byte size of a type laid out with its explicit
// offsets and strides.
func (m *module) sizeOf(id uint32, depth int) uint64 {
	t := m.types[id]
	if t == nil || depth > maxTypeDepth {
		return 0
	}
	switch t.op {
	case opTypeBool, opTypeInt, opTypeFloat:
		return uint64(t.width / 8)
	case opTypeVector:
		return uint64(t.count) * m.sizeOf(t.elem, depth+1)
	case opTypeMatrix:
		return uint64(t.count) * m.sizeOf(t.elem, depth+1)
	case opTypeArray:
		stride, ok := m.deco(id, decoArrayStride)
		if !ok {
			return uint64(m.constants[t.lengthID]) * m.sizeOf(t.elem, depth+1)
		}
		return uint64(m.constants[t.lengthID]) * uint64(stride)
	case opTypeStruct:
		var size, next uint64
		for i, mt := range t.members {
			ref := memberRef{id, uint32(i)}
			off := next
			if o, ok := m.memberDecos[ref][decoOffset]; ok {
				off = uint64(o)
			}
			ms := m.sizeOf(mt, depth+1)
			if stride, ok := m.memberDecos[ref][decoMatrixStride]; ok {
				if mtt := m.types[mt]; mtt != nil && mtt.op == opTypeMatrix {
					ms = uint64(mtt.count) * uint64(stride)
				}
			}
			next = off + ms
			size = max(size, next)
		}
		return size
	default:
		return 0
	}
}

// resourceType strips pointers and arrays from a variable type.
func (m *module) resourceType(id uint32) (uint32, *spvType) {
	for range maxTypeDepth {
		t := m.types[id]
		if t == nil {
			return 0, nil
		}
		switch t.op {
		case opTypePointer, opTypeArray, opTypeRuntimeArray:
			id = t.elem
		default:
			return id, t
		}
	}
	return 0, nil
}

func (m *module) vertexFormat(id uint32) gpu.VertexFormat {
	t := m.types[id]
	if t == nil {
		return gpu.VertexFormatInvalid
	}
	count := uint32(1)
	scalar := t
	if t.op == opTypeVector {
		count = t.count
		scalar = m.types[t.elem]
	}
	if scalar == nil || scalar.width != 32 || count < 1 || count > 4 {
		return gpu.VertexFormatInvalid
	}
	var first gpu.VertexFormat
	switch {
	case scalar.op == opTypeFloat:
		first = gpu.VertexFormatFloat32
	case scalar.op == opTypeInt && scalar.signed:
		first = gpu.VertexFormatSint32
	case scalar.op == opTypeInt:
		first = gpu.VertexFormatUint32
	default:
		return gpu.VertexFormatInvalid
	}
	return first + gpu.VertexFormat(count-1)
}

func executionModel(stage gpu.ShaderStage) (uint32, bool) {
	switch stage {
	case gpu.ShaderStageVertex:
		return modelVertex, true
	case gpu.ShaderStageFragment:
		return modelFragment, true
	default:
		return 0, false
	}
}

// Reflect extracts the resource interface of one entry point from a SPIR-V
// module. An empty entryPoint selects the first entry point of the stage.
//
// Uniform blocks, sampled images, separate samplers and combined image
// samplers declared anywhere in the module are reported, sorted by set and
// binding. Vertex inputs are taken from the entry point's interface.
func Reflect(words []uint32, entryPoint string, stage gpu.ShaderStage) (*gpu.Reflection, error) {
	model, ok := executionModel(stage)
	if !ok {
		return nil, fmt.Errorf("shader: reflect: unsupported stage %v", stage)
	}
	m, err := parseModule(words)
	if err != nil {
		return nil, err
	}

	var ep *spvEntryPoint
	for i := range m.entries {
		e := &m.entries[i]
		if e.model == model && (entryPoint == "" || e.name == entryPoint) {
			ep = e
			break
		}
	}
	if ep == nil {
		return nil, fmt.Errorf("%w: %q (%v)", ErrEntryPointNotFound, entryPoint, stage)
	}

	r := &gpu.Reflection{EntryPoint: ep.name, Stage: stage}
	for _, v := range m.vars {
		ptr := m.types[v.ptrType]
		if ptr == nil || ptr.op != opTypePointer {
			continue
		}
		switch v.storage {
		case storageUniform:
			if b, ok := m.uniformBlock(v, ptr.elem, stage); ok {
				r.Uniforms = append(r.Uniforms, b)
			}
		case storageUniformConstant:
			m.opaqueResource(r, v, stage)
		case storagePushConstant:
			r.PushConstant = &gpu.PushConstantRange{
				Size:   uint32(m.sizeOf(ptr.elem, 0)),
				Stages: stage,
			}
		case storageInput:
			if stage != gpu.ShaderStageVertex || !slices.Contains(ep.iface, v.id) {
				continue
			}
			if _, builtin := m.deco(v.id, decoBuiltIn); builtin {
				continue
			}
			loc, ok := m.deco(v.id, decoLocation)
			if !ok {
				continue
			}
			r.VertexInputs = append(r.VertexInputs, gpu.VertexInput{
				Location: loc,
				Name:     m.names[v.id],
				Format:   m.vertexFormat(ptr.elem),
			})
		}
	}

	byBinding := func(a, b gpu.ResourceBinding) int {
		return cmp.Or(cmp.Compare(a.Set, b.Set), cmp.Compare(a.Binding, b.Binding))
	}
	slices.SortFunc(r.Uniforms, byBinding)
	slices.SortFunc(r.Textures, byBinding)
	slices.SortFunc(r.Samplers, byBinding)
	slices.SortFunc(r.VertexInputs, func(a, b gpu.VertexInput) int {
		return cmp.Compare(a.Location, b.Location)
	})
	return r, nil
}

func (m *module) uniformBlock(v spvVariable, structID uint32, stage gpu.ShaderStage) (gpu.ResourceBinding, bool) {
	id, st := m.resourceType(structID)
	if st == nil || st.op != opTypeStruct {
		return gpu.ResourceBinding{}, false
	}
	if _, isBuffer := m.deco(id, decoBufferBlock); isBuffer {
		return gpu.ResourceBinding{}, false
	}
	name := m.names[v.id]
	if name == "" {
		name = m.names[id]
	}
	set, _ := m.deco(v.id, decoDescriptorSet)
	binding, _ := m.deco(v.id, decoBinding)
	return gpu.ResourceBinding{
		Set:     set,
		Binding: binding,
		Name:    name,
		Size:    m.sizeOf(id, 0),
		Kind:    gpu.BindingUniformBuffer,
		Stages:  stage,
	}, true
}

func (m *module) opaqueResource(r *gpu.Reflection, v spvVariable, stage gpu.ShaderStage) {
	_, t := m.resourceType(v.ptrType)
	if t == nil {
		return
	}
	set, _ := m.deco(v.id, decoDescriptorSet)
	binding, _ := m.deco(v.id, decoBinding)
	b := gpu.ResourceBinding{Set: set, Binding: binding, Name: m.names[v.id], Stages: stage}
	switch t.op {
	case opTypeImage:
		// Sampled == 2 is a storage image, which the renderer never binds.
		if t.sampled == 2 {
			slogger().Debug("shader: skipping storage image", "name", b.Name, "binding", binding)
			return
		}
		b.Kind = gpu.BindingSampledTexture
		r.Textures = append(r.Textures, b)
	case opTypeSampledImage:
		b.Kind = gpu.BindingCombinedImageSampler
		r.Textures = append(r.Textures, b)
	case opTypeSampler:
		b.Kind = gpu.BindingSampler
		r.Samplers = append(r.Samplers, b)
	}
}

// MergeReflection combines the bindings of several stages. Bindings that
// share a set and binding number are merged into one entry whose Stages
// mask is the union; the larger uniform size wins.
func MergeReflection(refls ...*gpu.Reflection) []gpu.ResourceBinding {
	type slot struct{ set, binding uint32 }
	index := make(map[slot]int)
	var out []gpu.ResourceBinding
	for _, r := range refls {
		for _, b := range r.Bindings() {
			s := slot{b.Set, b.Binding}
			if i, ok := index[s]; ok {
				out[i].Stages |= b.Stages
				out[i].Size = max(out[i].Size, b.Size)
				continue
			}
			index[s] = len(out)
			out = append(out, b)
		}
	}
	slices.SortFunc(out, func(a, b gpu.ResourceBinding) int {
		return cmp.Or(cmp.Compare(a.Set, b.Set), cmp.Compare(a.Binding, b.Binding))
	})
	return out
}
