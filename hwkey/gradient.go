package hwkey

import (
	"math/bits"
	"strconv"
	"strings"
)

// GradientType is the geometry of a gradient shader.
type GradientType uint32

// Gradient types.
const (
	GradientNone    GradientType = 0
	GradientLinear  GradientType = 1
	GradientRadial  GradientType = 2
	GradientConical GradientType = 3
	GradientSweep   GradientType = 4
)

func (t GradientType) String() string {
	switch t {
	case GradientLinear:
		return "Linear"
	case GradientRadial:
		return "Radial"
	case GradientConical:
		return "Conical"
	case GradientSweep:
		return "Sweep"
	default:
		return "Unknown"
	}
}

// Layout of the gradient custom bits.
const (
	gradientTypeShift     = 0
	gradientMaxColorShift = 3
	gradientOffsetFast    = 6
	gradientColorFast     = 7

	// maxColorShiftLimit is the largest log2 color count the 3-bit field holds.
	maxColorShiftLimit = 7
)

// GradientInfo is the part of a gradient shader that selects its fragment
// function. Positions is nil when the stops are implicitly evenly spaced.
type GradientInfo struct {
	Type       GradientType
	ColorCount int
	Positions  []float32
}

// GradientCustomBits encodes a gradient into the 8 custom bits of its
// fragment main key: type (3 bits), log2 of the color count rounded up
// (3 bits), the implicit-offsets flag and the two-color flag.
func GradientCustomBits(info GradientInfo) uint32 {
	custom := uint32(info.Type&0x07) << gradientTypeShift
	custom |= colorCountShift(info.ColorCount) << gradientMaxColorShift
	if info.Positions == nil {
		custom |= 1 << gradientOffsetFast
	}
	if info.ColorCount <= 2 {
		custom |= 1 << gradientColorFast
	}
	return custom
}

// colorCountShift returns ceil(log2(n)) clamped to the 3-bit field.
func colorCountShift(n int) uint32 {
	if n <= 1 {
		return 0
	}
	s := uint32(bits.Len(uint(n - 1)))
	return min(s, maxColorShiftLimit)
}

// GradientName decodes gradient custom bits into a name such as
// "GradientLinear4OffsetFast".
func GradientName(custom uint32) string {
	t := GradientType((custom >> gradientTypeShift) & 0x07)
	shift := (custom >> gradientMaxColorShift) & 0x07

	var b strings.Builder
	b.WriteString("Gradient")
	b.WriteString(t.String())
	b.WriteString(strconv.Itoa(1 << shift))
	if (custom>>gradientOffsetFast)&0x01 != 0 {
		b.WriteString("OffsetFast")
	}
	if (custom>>gradientColorFast)&0x01 != 0 {
		b.WriteString("ColorFast")
	}
	return b.String()
}

// Shading is the fragment half of a draw: its fragment type and custom
// bits.
type Shading struct {
	Type   FragmentType
	Custom uint32
}

// MainKey returns the fragment main key with its custom bits.
func (s Shading) MainKey() uint32 {
	return MakeMainKey(uint32(s.Type), s.Custom)
}

// SolidColor shades with a uniform color.
func SolidColor() Shading { return Shading{Type: FragmentSolid} }

// SolidVertexColor shades with a per-vertex color.
func SolidVertexColor() Shading { return Shading{Type: FragmentSolidVertex} }

// GradientShading shades with a gradient.
func GradientShading(info GradientInfo) Shading {
	return Shading{Type: FragmentGradient, Custom: GradientCustomBits(info)}
}

// TextureShading samples an image.
func TextureShading() Shading { return Shading{Type: FragmentTexture} }

// EmojiShading samples a color glyph atlas, optionally swapping the red
// and blue channels.
func EmojiShading(swizzleRB bool) Shading {
	s := Shading{Type: FragmentEmojiText}
	if swizzleRB {
		s.Custom = 1
	}
	return s
}

// GradientTextShading fills glyphs with a gradient.
func GradientTextShading(info GradientInfo) Shading {
	return Shading{Type: FragmentGradientText, Custom: GradientCustomBits(info)}
}
