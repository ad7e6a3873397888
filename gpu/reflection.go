package gpu

// BindingKind is the kind of resource a shader binding expects.
type BindingKind uint8

// Binding kinds.
const (
	BindingUniformBuffer BindingKind = iota
	BindingSampledTexture
	BindingSampler
	BindingCombinedImageSampler
)

func (k BindingKind) String() string {
	switch k {
	case BindingUniformBuffer:
		return "uniform"
	case BindingSampledTexture:
		return "texture"
	case BindingSampler:
		return "sampler"
	case BindingCombinedImageSampler:
		return "combined"
	default:
		return "unknown"
	}
}

// ResourceBinding is one resource binding discovered by reflection.
type ResourceBinding struct {
	Set     uint32
	Binding uint32
	Name    string
	// Size is the byte size of a uniform block, 0 for other kinds.
	Size   uint64
	Kind   BindingKind
	Stages ShaderStage
}

// VertexInput is a vertex shader input attribute.
type VertexInput struct {
	Location uint32
	Name     string
	Format   VertexFormat
}

// PushConstantRange is the push-constant block of a shader.
type PushConstantRange struct {
	Offset uint32
	Size   uint32
	Stages ShaderStage
}

// Reflection is the resource interface of one compiled entry point.
type Reflection struct {
	EntryPoint string
	Stage      ShaderStage
	Uniforms   []ResourceBinding
	Textures   []ResourceBinding
	Samplers   []ResourceBinding
	// VertexInputs is empty for fragment shaders.
	VertexInputs []VertexInput
	PushConstant *PushConstantRange
}

// Bindings returns uniforms, textures and samplers in one slice.
func (r *Reflection) Bindings() []ResourceBinding {
	if r == nil {
		return nil
	}
	out := make([]ResourceBinding, 0, len(r.Uniforms)+len(r.Textures)+len(r.Samplers))
	out = append(out, r.Uniforms...)
	out = append(out, r.Textures...)
	out = append(out, r.Samplers...)
	return out
}
