package hwkey

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/gogpu/gpurender/gpu"
)

// GeometryType selects the vertex stage of a draw.
type GeometryType uint32

// Geometry types.
const (
	GeometryPath         GeometryType = 1
	GeometryPathAA       GeometryType = 2
	GeometryTessFill     GeometryType = 3
	GeometryTessStroke   GeometryType = 4
	GeometryColorText    GeometryType = 5
	GeometryGradientText GeometryType = 6
	GeometryRRect        GeometryType = 7
	GeometryClip         GeometryType = 8
	GeometryFilter       GeometryType = 9
)

// FragmentType selects the fragment stage of a draw.
type FragmentType uint32

// Fragment types.
const (
	FragmentSolid        FragmentType = 1
	FragmentSolidVertex  FragmentType = 2
	FragmentGradient     FragmentType = 3
	FragmentTexture      FragmentType = 4
	FragmentStencil      FragmentType = 5
	FragmentBlur         FragmentType = 6
	FragmentColorText    FragmentType = 7
	FragmentEmojiText    FragmentType = 8
	FragmentGradientText FragmentType = 9
	FragmentSDFText      FragmentType = 10
	FragmentTextureText  FragmentType = 11
	FragmentImageFilter  FragmentType = 12
)

// FilterType is a color filter stage appended to the fragment function.
type FilterType uint32

// Filter types. FilterCompose marks a chain whose members live in
// Key.Compose.
const (
	FilterUnknown           FilterType = 0
	FilterClear             FilterType = 1
	FilterSrc               FilterType = 2
	FilterDst               FilterType = 3
	FilterSrcOver           FilterType = 4
	FilterDstOver           FilterType = 5
	FilterSrcIn             FilterType = 6
	FilterDstIn             FilterType = 7
	FilterSrcOut            FilterType = 8
	FilterDstOut            FilterType = 9
	FilterSrcATop           FilterType = 10
	FilterDstATop           FilterType = 11
	FilterXor               FilterType = 12
	FilterPlus              FilterType = 13
	FilterModulate          FilterType = 14
	FilterScreen            FilterType = 15
	FilterMatrix            FilterType = 16
	FilterLinearToSRGBGamma FilterType = 17
	FilterSRGBToLinearGamma FilterType = 18
	FilterCompose           FilterType = 0xFF
)

// Field layout of a function key.
const (
	FilterKeyMask   = 0xFF
	MainKeyShift    = 16
	SubKeyShift     = 8
	CustomKeyShift  = 8
	VertexKeyShift  = 32
	functionKeyMask = 0xFFFFFFFF
)

// MakeFunctionBaseKey packs a main key, a sub type and a filter into a
// function key. main may carry custom bits produced by MakeMainKey.
func MakeFunctionBaseKey(main, sub, filter uint32) uint32 {
	return main<<MainKeyShift | sub<<SubKeyShift | filter
}

// MakeMainKey combines a main type with its custom bits.
func MakeMainKey(main, custom uint32) uint32 {
	return custom<<CustomKeyShift | main
}

// MakePipelineBaseKey concatenates a vertex and a fragment function key.
func MakePipelineBaseKey(vertex, fragment uint32) uint64 {
	return uint64(vertex)<<VertexKeyShift | uint64(fragment)
}

// Key identifies a render pipeline. Base holds the vertex and fragment
// function keys; Compose lists composed color filters in application order
// when the fragment filter field is FilterCompose.
//
// Keys are values: build a new one per draw step and never mutate the
// Compose slice of a Key that has been handed out.
type Key struct {
	Base    uint64
	Compose []uint32
}

// NewKey returns the pipeline key for a vertex and fragment function pair.
func NewKey(vertex, fragment uint32, compose []uint32) Key {
	k := Key{Base: MakePipelineBaseKey(vertex, fragment)}
	if len(compose) > 0 {
		k.Compose = slices.Clone(compose)
	}
	return k
}

// VertexKey returns the vertex function key.
func (k Key) VertexKey() uint32 { return uint32(k.Base >> VertexKeyShift) }

// FragmentKey returns the fragment function key.
func (k Key) FragmentKey() uint32 { return uint32(k.Base & functionKeyMask) }

// Equal reports whether both keys name the same pipeline.
// An empty compose list and a nil one are equal.
func (k Key) Equal(o Key) bool {
	return k.Base == o.Base && slices.Equal(k.Compose, o.Compose)
}

// Hash returns a hash consistent with Equal.
func (k Key) Hash() uint64 {
	h := uint64(17) + mix64(k.Base)
	for _, c := range k.Compose {
		h += mix64(uint64(c))
	}
	return h
}

// String returns a stable text form of the key, usable as a map key.
func (k Key) String() string {
	if len(k.Compose) == 0 {
		return fmt.Sprintf("%016x", k.Base)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%016x", k.Base)
	for _, c := range k.Compose {
		b.WriteByte(':')
		b.WriteString(strconv.FormatUint(uint64(c), 16))
	}
	return b.String()
}

// FunctionKey returns the key of one shader function of the pipeline.
// The stage is stored above the 32-bit function key so vertex and fragment
// functions never collide; only the fragment function carries the compose
// list.
func (k Key) FunctionKey(stage gpu.ShaderStage) Key {
	switch stage {
	case gpu.ShaderStageVertex:
		return Key{Base: uint64(k.VertexKey()) | uint64(stage)<<VertexKeyShift}
	case gpu.ShaderStageFragment:
		return Key{
			Base:    uint64(k.FragmentKey()) | uint64(stage)<<VertexKeyShift,
			Compose: k.Compose,
		}
	default:
		return Key{}
	}
}

// Stage returns the shader stage of a function key made by FunctionKey.
func (k Key) Stage() gpu.ShaderStage {
	return gpu.ShaderStage(k.Base >> VertexKeyShift)
}

// mix64 is the splitmix64 finalizer.
func mix64(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
