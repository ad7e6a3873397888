package gpu

import "fmt"

// TextureFormat is the canonical texture format enum shared by all backends.
type TextureFormat uint8

// Canonical texture formats.
const (
	TextureFormatInvalid TextureFormat = iota
	TextureFormatR8Unorm
	TextureFormatRGB8Unorm
	TextureFormatRGB565Unorm
	TextureFormatRGBA8Unorm
	TextureFormatBGRA8Unorm
	TextureFormatStencil8
	TextureFormatDepth24Stencil8
)

var textureFormatNames = [...]string{
	TextureFormatInvalid:         "Invalid",
	TextureFormatR8Unorm:         "R8Unorm",
	TextureFormatRGB8Unorm:       "RGB8Unorm",
	TextureFormatRGB565Unorm:     "RGB565Unorm",
	TextureFormatRGBA8Unorm:      "RGBA8Unorm",
	TextureFormatBGRA8Unorm:      "BGRA8Unorm",
	TextureFormatStencil8:        "Stencil8",
	TextureFormatDepth24Stencil8: "Depth24Stencil8",
}

// String returns the format name.
func (f TextureFormat) String() string {
	if int(f) < len(textureFormatNames) {
		return textureFormatNames[f]
	}
	return fmt.Sprintf("TextureFormat(%d)", uint8(f))
}

// BytesPerPixel returns the tightly packed size of one texel, or 0 for
// TextureFormatInvalid and unknown values.
func (f TextureFormat) BytesPerPixel() uint32 {
	switch f {
	case TextureFormatR8Unorm, TextureFormatStencil8:
		return 1
	case TextureFormatRGB565Unorm:
		return 2
	case TextureFormatRGB8Unorm:
		return 3
	case TextureFormatRGBA8Unorm, TextureFormatBGRA8Unorm, TextureFormatDepth24Stencil8:
		return 4
	default:
		return 0
	}
}

// IsDepthStencil reports whether f is a depth and/or stencil format.
func (f TextureFormat) IsDepthStencil() bool {
	return f == TextureFormatStencil8 || f == TextureFormatDepth24Stencil8
}

// HasDepth reports whether f carries a depth aspect.
func (f TextureFormat) HasDepth() bool { return f == TextureFormatDepth24Stencil8 }

// IsValid reports whether f is one of the known non-invalid formats.
func (f TextureFormat) IsValid() bool {
	return f > TextureFormatInvalid && f <= TextureFormatDepth24Stencil8
}

// TextureUsage is a bit mask of the ways a texture may be used.
type TextureUsage uint32

// Texture usage bits.
const (
	TextureUsageCopySrc TextureUsage = 1 << iota
	TextureUsageCopyDst
	TextureUsageTextureBinding
	TextureUsageStorageBinding
	TextureUsageRenderAttachment
)

// Has reports whether all bits of u2 are set in u.
func (u TextureUsage) Has(u2 TextureUsage) bool { return u&u2 == u2 }

// StorageMode selects where texture memory lives.
type StorageMode uint8

// Storage modes.
const (
	StorageModePrivate StorageMode = iota
	StorageModeHostVisible
)

// BufferUsage is a bit mask of the ways a buffer may be bound.
type BufferUsage uint32

// Buffer usage bits.
const (
	BufferUsageVertex BufferUsage = 1 << iota
	BufferUsageIndex
	BufferUsageUniform
)

// Has reports whether all bits of u2 are set in u.
func (u BufferUsage) Has(u2 BufferUsage) bool { return u&u2 == u2 }

// ShaderStage is a bit mask of programmable pipeline stages.
type ShaderStage uint32

// Shader stages.
const (
	ShaderStageVertex   ShaderStage = 0x01
	ShaderStageFragment ShaderStage = 0x02
)

// String returns "vertex", "fragment", "vertex|fragment" or "none".
func (s ShaderStage) String() string {
	switch s {
	case ShaderStageVertex:
		return "vertex"
	case ShaderStageFragment:
		return "fragment"
	case ShaderStageVertex | ShaderStageFragment:
		return "vertex|fragment"
	case 0:
		return "none"
	default:
		return fmt.Sprintf("ShaderStage(%#x)", uint32(s))
	}
}
