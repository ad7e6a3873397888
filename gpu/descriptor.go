package gpu

// TextureDescriptor describes a texture to create.
type TextureDescriptor struct {
	Label         string
	Width         uint32
	Height        uint32
	Format        TextureFormat
	Usage         TextureUsage
	MipLevelCount uint32
	SampleCount   uint32
	StorageMode   StorageMode
}

// WithDefaults returns a copy of d with zero mip and sample counts set to 1.
func (d TextureDescriptor) WithDefaults() TextureDescriptor {
	if d.MipLevelCount == 0 {
		d.MipLevelCount = 1
	}
	if d.SampleCount == 0 {
		d.SampleCount = 1
	}
	return d
}

// Bytes returns the memory footprint of all mip levels at full size, which
// is how the renderer budgets texture memory.
func (d TextureDescriptor) Bytes() uint64 {
	d = d.WithDefaults()
	return uint64(d.Width) * uint64(d.Height) * uint64(d.Format.BytesPerPixel()) * uint64(d.MipLevelCount)
}

// SamplerDescriptor describes an immutable sampler. It is comparable and
// devices share one sampler per distinct descriptor.
type SamplerDescriptor struct {
	MagFilter    FilterMode
	MinFilter    FilterMode
	MipmapMode   MipmapMode
	AddressModeU AddressMode
	AddressModeV AddressMode
	AddressModeW AddressMode
}

// ShaderSourceType selects how ShaderFunctionDescriptor.Source is read.
type ShaderSourceType uint8

const (
	// ShaderSourceRaw is backend-native code: SPIR-V words for Vulkan.
	ShaderSourceRaw ShaderSourceType = iota
	// ShaderSourceWGX is portable WGSL compiled by the backend's shader
	// pipeline.
	ShaderSourceWGX
)

// ShaderErrorCallback receives compiler diagnostics for a failed function.
type ShaderErrorCallback func(msg string)

// ShaderFunctionDescriptor describes one shader entry point.
type ShaderFunctionDescriptor struct {
	Label      string
	Stage      ShaderStage
	SourceType ShaderSourceType
	// Source holds WGSL text when SourceType is ShaderSourceWGX.
	Source string
	// RawSPIRV holds the module when SourceType is ShaderSourceRaw.
	RawSPIRV       []uint32
	EntryPoint     string
	ConstantValues []int32
	ErrorCallback  ShaderErrorCallback
}

// VertexAttribute is one attribute within a vertex buffer.
type VertexAttribute struct {
	Format         VertexFormat
	Offset         uint64
	ShaderLocation uint32
}

// VertexBufferLayout describes one bound vertex buffer.
type VertexBufferLayout struct {
	ArrayStride uint64
	StepMode    VertexStepMode
	Attributes  []VertexAttribute
}

// BlendState is the color blend equation of a target.
type BlendState struct {
	SrcFactor BlendFactor
	DstFactor BlendFactor
	Operation BlendOperation
}

// BlendPremultipliedSrcOver is the default source-over blend for
// premultiplied colors.
var BlendPremultipliedSrcOver = BlendState{
	SrcFactor: BlendFactorOne,
	DstFactor: BlendFactorOneMinusSrcAlpha,
	Operation: BlendOpAdd,
}

// ColorTargetState describes the color attachment a pipeline renders to.
type ColorTargetState struct {
	Format TextureFormat
	// Blend is nil for opaque writes.
	Blend     *BlendState
	WriteMask ColorWriteMask
}

// StencilFaceState is the stencil test for one triangle face.
type StencilFaceState struct {
	Compare     CompareFunction
	FailOp      StencilOperation
	DepthFailOp StencilOperation
	PassOp      StencilOperation
}

// DepthStencilState configures depth and stencil testing.
type DepthStencilState struct {
	Format            TextureFormat
	EnableDepth       bool
	DepthWriteEnabled bool
	DepthCompare      CompareFunction
	EnableStencil     bool
	StencilFront      StencilFaceState
	StencilBack       StencilFaceState
	StencilReadMask   uint32
	StencilWriteMask  uint32
}

// RenderPipelineDescriptor describes an immutable render pipeline.
type RenderPipelineDescriptor struct {
	Label          string
	VertexFunction ShaderFunction
	// FragmentFunction may be nil for stencil-only passes.
	FragmentFunction ShaderFunction
	Buffers          []VertexBufferLayout
	Target           ColorTargetState
	// DepthStencil is nil when the pipeline performs no depth or stencil test.
	DepthStencil *DepthStencilState
	SampleCount  uint32
	CullMode     CullMode
	Topology     PrimitiveTopology
}

// Color is a linear RGBA clear value.
type Color struct {
	R, G, B, A float64
}

// ColorAttachment is the color target of a render pass.
type ColorAttachment struct {
	Texture Texture
	// Resolve receives the multisample resolve when Texture is multisampled.
	Resolve    Texture
	LoadOp     LoadOp
	StoreOp    StoreOp
	ClearValue Color
}

// DepthAttachment is the depth target of a render pass.
type DepthAttachment struct {
	Texture    Texture
	LoadOp     LoadOp
	StoreOp    StoreOp
	ClearValue float32
}

// StencilAttachment is the stencil target of a render pass.
type StencilAttachment struct {
	Texture    Texture
	LoadOp     LoadOp
	StoreOp    StoreOp
	ClearValue uint32
}

// RenderPassDescriptor is the attachment set shared by every command in a
// render pass.
type RenderPassDescriptor struct {
	Label             string
	ColorAttachment   ColorAttachment
	DepthAttachment   DepthAttachment
	StencilAttachment StencilAttachment
}

// Viewport is the pass viewport in framebuffer pixels.
type Viewport struct {
	X, Y, Width, Height float32
	MinDepth, MaxDepth  float32
}

// ScissorRect is a clip rectangle in framebuffer pixels. A zero width or
// height means "no scissor".
type ScissorRect struct {
	X, Y          uint32
	Width, Height uint32
}

// IsEmpty reports whether the rect clips nothing in or out.
func (r ScissorRect) IsEmpty() bool { return r.Width == 0 || r.Height == 0 }
