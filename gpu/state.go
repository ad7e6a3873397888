package gpu

// CompareFunction is a depth or stencil comparison.
type CompareFunction uint8

// Compare functions.
const (
	CompareNever CompareFunction = iota
	CompareLess
	CompareEqual
	CompareLessEqual
	CompareGreater
	CompareNotEqual
	CompareGreaterEqual
	CompareAlways
)

// StencilOperation is applied to the stencil value after a test.
type StencilOperation uint8

// Stencil operations.
const (
	StencilOpKeep StencilOperation = iota
	StencilOpZero
	StencilOpReplace
	StencilOpInvert
	StencilOpIncrementClamp
	StencilOpDecrementClamp
	StencilOpIncrementWrap
	StencilOpDecrementWrap
)

// BlendFactor scales a blend source or destination.
type BlendFactor uint8

// Blend factors.
const (
	BlendFactorZero BlendFactor = iota
	BlendFactorOne
	BlendFactorSrc
	BlendFactorOneMinusSrc
	BlendFactorSrcAlpha
	BlendFactorOneMinusSrcAlpha
	BlendFactorDst
	BlendFactorOneMinusDst
	BlendFactorDstAlpha
	BlendFactorOneMinusDstAlpha
	BlendFactorSrcAlphaSaturated
)

// BlendOperation combines the scaled source and destination.
type BlendOperation uint8

// Blend operations.
const (
	BlendOpAdd BlendOperation = iota
	BlendOpSubtract
	BlendOpReverseSubtract
	BlendOpMin
	BlendOpMax
)

// ColorWriteMask selects the color channels written by a pipeline.
type ColorWriteMask uint8

// Color write mask bits.
const (
	ColorWriteRed ColorWriteMask = 1 << iota
	ColorWriteGreen
	ColorWriteBlue
	ColorWriteAlpha

	ColorWriteNone ColorWriteMask = 0
	ColorWriteAll                 = ColorWriteRed | ColorWriteGreen | ColorWriteBlue | ColorWriteAlpha
)

// CullMode selects which triangle faces are discarded.
type CullMode uint8

// Cull modes.
const (
	CullModeNone CullMode = iota
	CullModeFront
	CullModeBack
)

// PrimitiveTopology is the primitive assembly mode.
type PrimitiveTopology uint8

// Primitive topologies.
const (
	TopologyTriangleList PrimitiveTopology = iota
	TopologyTriangleStrip
	TopologyLineList
	TopologyPointList
)

// VertexFormat is the format of one vertex attribute.
type VertexFormat uint8

// Vertex formats.
const (
	VertexFormatInvalid VertexFormat = iota
	VertexFormatFloat32
	VertexFormatFloat32x2
	VertexFormatFloat32x3
	VertexFormatFloat32x4
	VertexFormatUint32
	VertexFormatUint32x2
	VertexFormatUint32x3
	VertexFormatUint32x4
	VertexFormatSint32
	VertexFormatSint32x2
	VertexFormatSint32x3
	VertexFormatSint32x4
	VertexFormatUnorm8x4
)

// Size returns the attribute size in bytes, or 0 for an invalid format.
func (f VertexFormat) Size() uint64 {
	switch f {
	case VertexFormatFloat32, VertexFormatUint32, VertexFormatSint32, VertexFormatUnorm8x4:
		return 4
	case VertexFormatFloat32x2, VertexFormatUint32x2, VertexFormatSint32x2:
		return 8
	case VertexFormatFloat32x3, VertexFormatUint32x3, VertexFormatSint32x3:
		return 12
	case VertexFormatFloat32x4, VertexFormatUint32x4, VertexFormatSint32x4:
		return 16
	default:
		return 0
	}
}

// VertexStepMode selects per-vertex or per-instance attribute advance.
type VertexStepMode uint8

// Vertex step modes.
const (
	StepModeVertex VertexStepMode = iota
	StepModeInstance
)

// FilterMode is a texel filter.
type FilterMode uint8

// Filter modes.
const (
	FilterNearest FilterMode = iota
	FilterLinear
)

// MipmapMode is the filter between mip levels.
type MipmapMode uint8

// Mipmap modes.
const (
	MipmapNone MipmapMode = iota
	MipmapNearest
	MipmapLinear
)

// AddressMode is the texture coordinate wrapping mode.
type AddressMode uint8

// Address modes.
const (
	AddressClampToEdge AddressMode = iota
	AddressRepeat
	AddressMirrorRepeat
)

// LoadOp is the attachment load action at the start of a render pass.
type LoadOp uint8

// Load operations.
const (
	LoadOpDontCare LoadOp = iota
	LoadOpLoad
	LoadOpClear
)

// StoreOp is the attachment store action at the end of a render pass.
type StoreOp uint8

// Store operations.
const (
	StoreOpStore StoreOp = iota
	StoreOpDiscard
)
