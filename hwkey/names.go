package hwkey

import (
	"strconv"
	"strings"

	"github.com/gogpu/gpurender/gpu"
)

// Shader names are diagnostic only. They also label compiled shader
// functions and pipelines so cache dumps stay readable.

func (g GeometryType) String() string {
	switch g {
	case GeometryPath:
		return "Path"
	case GeometryPathAA:
		return "PathAA"
	case GeometryTessFill:
		return "TessPathFill"
	case GeometryTessStroke:
		return "TessPathStroke"
	case GeometryColorText:
		return "TextSolidColorVertexWGSL"
	case GeometryGradientText:
		return "TextGradientVertexWGSL"
	case GeometryRRect:
		return "RRect"
	case GeometryClip:
		return "Clip"
	case GeometryFilter:
		return "CommonFilterVertexWGSL"
	default:
		return "UnknownGeometry"
	}
}

// subName is the name a geometry contributes when it is the sub type of a
// fragment function.
func (g GeometryType) subName() string {
	switch g {
	case GeometryPathAA:
		return "AA"
	case GeometryRRect:
		return "RRect"
	default:
		return "UnknownGeometry"
	}
}

// fragmentSub reports the sub type a geometry imposes on its fragment
// function. Only geometries that feed extra varyings specialize it.
func (g GeometryType) fragmentSub() uint32 {
	switch g {
	case GeometryPathAA, GeometryRRect:
		return uint32(g)
	default:
		return 0
	}
}

// standalone reports geometries with a self-contained shader whose name is
// used without a stage prefix.
func (g GeometryType) standalone() bool {
	switch g {
	case GeometryColorText, GeometryGradientText, GeometryFilter:
		return true
	default:
		return false
	}
}

func (f FragmentType) String() string {
	return fragmentName(f, 0)
}

func fragmentName(f FragmentType, custom uint32) string {
	switch f {
	case FragmentSolid:
		return "SolidColor"
	case FragmentSolidVertex:
		return "SolidVertexColor"
	case FragmentGradient:
		return GradientName(custom)
	case FragmentTexture:
		return "Texture"
	case FragmentStencil:
		return "StencilFragmentWGSL"
	case FragmentBlur:
		return "BlurFragmentWGSL"
	case FragmentColorText:
		return "ColorTextFragmentWGSL"
	case FragmentEmojiText:
		if custom > 0 {
			return "ColorEmojiSwizzleRBFragmentWGSL"
		}
		return "ColorEmojiNoSwizzleFragmentWGSL"
	case FragmentGradientText:
		return GradientName(custom) + "TextWGSL"
	case FragmentSDFText:
		return "SdfColorTextFragmentWGSL"
	case FragmentTextureText:
		return "TextureText"
	case FragmentImageFilter:
		return "ImageFilterFragmentWGSL"
	default:
		return "UnknownFragment"
	}
}

// subName is the name a fragment contributes when it is the sub type of a
// vertex function.
func (f FragmentType) subName() string {
	switch f {
	case FragmentSolidVertex:
		return "SolidVertexColor"
	case FragmentGradient:
		return "Gradient"
	case FragmentTexture:
		return "Texture"
	default:
		return "UnknownFragment"
	}
}

// vertexSub reports the sub type a fragment imposes on its vertex
// function. Only fragments that consume extra vertex outputs specialize it.
func (f FragmentType) vertexSub() uint32 {
	switch f {
	case FragmentSolidVertex, FragmentGradient, FragmentTexture:
		return uint32(f)
	default:
		return 0
	}
}

func (f FragmentType) standalone() bool {
	switch f {
	case FragmentStencil, FragmentBlur, FragmentColorText, FragmentEmojiText,
		FragmentGradientText, FragmentSDFText, FragmentImageFilter:
		return true
	default:
		return false
	}
}

func (t FilterType) String() string {
	switch t {
	case FilterClear:
		return "BlendClearFilter"
	case FilterSrc:
		return "BlendSrcFilter"
	case FilterDst:
		return "BlendDstFilter"
	case FilterSrcOver:
		return "BlendSrcOverFilter"
	case FilterDstOver:
		return "BlendDstOverFilter"
	case FilterSrcIn:
		return "BlendSrcInFilter"
	case FilterDstIn:
		return "BlendDstInFilter"
	case FilterSrcOut:
		return "BlendSrcOutFilter"
	case FilterDstOut:
		return "BlendDstOutFilter"
	case FilterSrcATop:
		return "BlendSrcATopFilter"
	case FilterDstATop:
		return "BlendDstATopFilter"
	case FilterXor:
		return "BlendXorFilter"
	case FilterPlus:
		return "BlendPlusFilter"
	case FilterModulate:
		return "BlendModulateFilter"
	case FilterScreen:
		return "BlendScreenFilter"
	case FilterMatrix:
		return "MatrixFilter"
	case FilterSRGBToLinearGamma:
		return "SRGBToLinearGammaFilter"
	case FilterLinearToSRGBGamma:
		return "LinearToSRGBGammaFilter"
	case FilterCompose:
		return "ComposeFilter"
	default:
		return "UnknownColorFilter"
	}
}

// VertexName returns the shader name of a vertex function key.
func VertexName(key uint32) string {
	main := GeometryType((key >> MainKeyShift) & 0xFF)
	sub := FragmentType((key >> SubKeyShift) & 0xFF)
	if sub == 0 {
		return main.String()
	}
	return main.String() + "_" + sub.subName()
}

// FragmentName returns the shader name of a fragment function key.
// compose lists the composed filters, in application order, of a key whose
// filter field is FilterCompose.
func FragmentName(key uint32, compose []uint32) string {
	custom := (key >> (MainKeyShift + CustomKeyShift)) & 0xFF
	main := FragmentType((key >> MainKeyShift) & 0xFF)
	sub := GeometryType((key >> SubKeyShift) & 0xFF)
	filter := FilterType(key & FilterKeyMask)

	var b strings.Builder
	b.WriteString(fragmentName(main, custom))
	if sub > 0 {
		b.WriteByte('_')
		b.WriteString(sub.subName())
	}
	if filter > 0 {
		b.WriteByte('_')
		b.WriteString(filter.String())
	}
	for _, c := range compose {
		b.WriteByte('_')
		b.WriteString(FilterType(c).String())
	}
	return b.String()
}

// FunctionName returns the stage-prefixed name of a function key made by
// Key.FunctionKey, such as "VS_RRect_SolidVertexColor".
func FunctionName(fk Key) string {
	fn := uint32(fk.Base & functionKeyMask)
	switch fk.Stage() {
	case gpu.ShaderStageVertex:
		return "VS_" + VertexName(fn)
	case gpu.ShaderStageFragment:
		return "FS_" + FragmentName(fn, fk.Compose)
	default:
		return "Unknown_" + strconv.FormatUint(fk.Base, 10)
	}
}

// PipelineName returns "<vertex name>|<fragment name>" for a pipeline key.
func PipelineName(k Key) string {
	return FunctionName(k.FunctionKey(gpu.ShaderStageVertex)) + "|" +
		FunctionName(k.FunctionKey(gpu.ShaderStageFragment))
}
