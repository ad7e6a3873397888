package hwkey

import (
	"testing"

	"github.com/gogpu/gpurender/gpu"
)

func fn(main, sub, filter uint32) uint32 { return MakeFunctionBaseKey(main, sub, filter) }

type wantStep struct {
	vertex, fragment         uint32
	vertexName, fragmentName string
}

func checkSteps(t *testing.T, got []Step, want []wantStep) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d steps, want %d", len(got), len(want))
	}
	for i, w := range want {
		s := got[i]
		if s.VertexKey() != w.vertex {
			t.Errorf("step %d vertex key = %#x, want %#x", i, s.VertexKey(), w.vertex)
		}
		if s.FragmentKey() != w.fragment {
			t.Errorf("step %d fragment key = %#x, want %#x", i, s.FragmentKey(), w.fragment)
		}
		if s.VertexName() != w.vertexName {
			t.Errorf("step %d vertex name = %q, want %q", i, s.VertexName(), w.vertexName)
		}
		if s.FragmentName() != w.fragmentName {
			t.Errorf("step %d fragment name = %q, want %q", i, s.FragmentName(), w.fragmentName)
		}
	}
}

var (
	pathVS     = fn(uint32(GeometryPath), 0, 0)
	solidFS    = fn(uint32(FragmentSolid), 0, 0)
	stencilFS  = fn(uint32(FragmentStencil), 0, 0)
	stencilRow = wantStep{pathVS, stencilFS, "VS_Path", "StencilFragmentWGSL"}
	coverRow   = wantStep{pathVS, solidFS, "VS_Path", "FS_SolidColor"}
	aaRow      = wantStep{
		fn(uint32(GeometryPathAA), 0, 0),
		fn(uint32(FragmentSolid), uint32(GeometryPathAA), 0),
		"VS_PathAA", "FS_SolidColor_AA",
	}
)

func TestPlanPathMatrix(t *testing.T) {
	tessFillVS := fn(uint32(GeometryTessFill), 0, 0)
	tessStrokeVS := fn(uint32(GeometryTessStroke), 0, 0)

	tests := []struct {
		name string
		draw PathDraw
		want []wantStep
	}{
		{"convex fill", PathDraw{Convex: true}, []wantStep{coverRow}},
		{"concave fill", PathDraw{}, []wantStep{stencilRow, coverRow}},
		{"stroke", PathDraw{Convex: true, Stroke: true}, []wantStep{stencilRow, coverRow}},
		{"convex fill aa", PathDraw{Convex: true, AntiAlias: true}, []wantStep{stencilRow, aaRow, coverRow}},
		{"concave fill aa", PathDraw{AntiAlias: true}, []wantStep{stencilRow, aaRow, coverRow}},
		{"stroke aa", PathDraw{Stroke: true, AntiAlias: true}, []wantStep{stencilRow, aaRow, coverRow}},
		{
			"convex fill tess", PathDraw{Convex: true, GPUTessellation: true},
			[]wantStep{{tessFillVS, solidFS, "VS_TessPathFill", "FS_SolidColor"}},
		},
		{
			"concave fill tess", PathDraw{GPUTessellation: true},
			[]wantStep{
				{tessFillVS, stencilFS, "VS_TessPathFill", "StencilFragmentWGSL"},
				{tessFillVS, solidFS, "VS_TessPathFill", "FS_SolidColor"},
			},
		},
		{
			"stroke tess", PathDraw{Convex: true, Stroke: true, GPUTessellation: true},
			[]wantStep{
				{tessStrokeVS, stencilFS, "VS_TessPathStroke", "StencilFragmentWGSL"},
				{tessStrokeVS, solidFS, "VS_TessPathStroke", "FS_SolidColor"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkSteps(t, PlanPath(tt.draw), tt.want)
		})
	}
}

func TestGradientKeys(t *testing.T) {
	tests := []struct {
		name   string
		info   GradientInfo
		custom uint32
		want   string
	}{
		{"linear2", GradientInfo{Type: GradientLinear, ColorCount: 2}, 0b11001001, "GradientLinear2OffsetFastColorFast"},
		{"linear3", GradientInfo{Type: GradientLinear, ColorCount: 3}, 0b01010001, "GradientLinear4OffsetFast"},
		{
			"radial11",
			GradientInfo{Type: GradientRadial, ColorCount: 11, Positions: []float32{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1}},
			0b00100010, "GradientRadial16",
		},
		{"sweep2", GradientInfo{Type: GradientSweep, ColorCount: 2, Positions: []float32{0, 1}}, 0b10001100, "GradientSweep2ColorFast"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GradientCustomBits(tt.info); got != tt.custom {
				t.Fatalf("GradientCustomBits = %#b, want %#b", got, tt.custom)
			}
			if got := GradientName(tt.custom); got != tt.want {
				t.Errorf("GradientName = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGradientPathStep(t *testing.T) {
	steps := PlanPath(PathDraw{
		Convex:          true,
		GPUTessellation: true,
		Shading:         GradientShading(GradientInfo{Type: GradientLinear, ColorCount: 2}),
	})
	checkSteps(t, steps, []wantStep{{
		fn(uint32(GeometryTessFill), uint32(FragmentGradient), 0),
		fn(MakeMainKey(uint32(FragmentGradient), 0b11001001), 0, 0),
		"VS_TessPathFill_Gradient", "FS_GradientLinear2OffsetFastColorFast",
	}})
}

func TestRRectSteps(t *testing.T) {
	vs := fn(uint32(GeometryRRect), uint32(FragmentSolidVertex), 0)
	tests := []struct {
		name   string
		filter *ColorFilter
		want   wantStep
	}{
		{"plain", nil, wantStep{
			vs, fn(uint32(FragmentSolidVertex), uint32(GeometryRRect), 0),
			"VS_RRect_SolidVertexColor", "FS_SolidVertexColor_RRect",
		}},
		{"gamma", LinearToSRGBGammaFilter(), wantStep{
			vs, fn(uint32(FragmentSolidVertex), uint32(GeometryRRect), uint32(FilterLinearToSRGBGamma)),
			"VS_RRect_SolidVertexColor", "FS_SolidVertexColor_RRect_LinearToSRGBGammaFilter",
		}},
		{"blend", BlendFilter(BlendSrcATop), wantStep{
			vs, fn(uint32(FragmentSolidVertex), uint32(GeometryRRect), uint32(FilterSrcATop)),
			"VS_RRect_SolidVertexColor", "FS_SolidVertexColor_RRect_BlendSrcATopFilter",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkSteps(t, PlanRRect(Shading{}, tt.filter), []wantStep{tt.want})
		})
	}
}

func TestComposeFilterKey(t *testing.T) {
	cf := ComposeFilter(BlendFilter(BlendSrcATop), BlendFilter(BlendSrcIn))
	steps := PlanRRect(SolidVertexColor(), cf)
	checkSteps(t, steps, []wantStep{{
		fn(uint32(GeometryRRect), uint32(FragmentSolidVertex), 0),
		fn(uint32(FragmentSolidVertex), uint32(GeometryRRect), uint32(FilterCompose)),
		"VS_RRect_SolidVertexColor",
		"FS_SolidVertexColor_RRect_ComposeFilter_BlendSrcInFilter_BlendSrcATopFilter",
	}})

	key := steps[0].PipelineKey()
	if len(key.Compose) != 2 || key.Compose[0] != uint32(FilterSrcIn) || key.Compose[1] != uint32(FilterSrcATop) {
		t.Fatalf("compose keys = %v", key.Compose)
	}
	want := NewKey(
		fn(uint32(GeometryRRect), uint32(FragmentSolidVertex), 0),
		fn(uint32(FragmentSolidVertex), uint32(GeometryRRect), uint32(FilterCompose)),
		[]uint32{uint32(FilterSrcIn), uint32(FilterSrcATop)},
	)
	if !key.Equal(want) || key.Hash() != want.Hash() || key.String() != want.String() {
		t.Errorf("key %v not equal to %v", key, want)
	}

	// Same base, different chain order.
	swapped := NewKey(want.VertexKey(), want.FragmentKey(), []uint32{uint32(FilterSrcATop), uint32(FilterSrcIn)})
	if key.Equal(swapped) || key.String() == swapped.String() {
		t.Error("compose order ignored by key equality")
	}
}

func TestNestedComposeFlattens(t *testing.T) {
	inner := ComposeFilter(MatrixFilter(), BlendFilter(BlendXor))
	cf := ComposeFilter(SRGBToLinearGammaFilter(), inner)
	filter, compose := cf.Keys()
	if filter != uint32(FilterCompose) {
		t.Fatalf("filter = %d", filter)
	}
	want := []uint32{uint32(FilterXor), uint32(FilterMatrix), uint32(FilterSRGBToLinearGamma)}
	if len(compose) != len(want) {
		t.Fatalf("compose = %v, want %v", compose, want)
	}
	for i := range want {
		if compose[i] != want[i] {
			t.Fatalf("compose = %v, want %v", compose, want)
		}
	}
	if ComposeFilter(nil, inner) != inner || ComposeFilter(inner, nil) != inner {
		t.Error("compose with nil should return the other filter")
	}
}

func TestTextureStep(t *testing.T) {
	checkSteps(t, PlanTexture(nil), []wantStep{{
		fn(uint32(GeometryRRect), uint32(FragmentTexture), 0),
		fn(uint32(FragmentTexture), uint32(GeometryRRect), 0),
		"VS_RRect_Texture", "FS_Texture_RRect",
	}})
}

func TestTextSteps(t *testing.T) {
	sdf := PlanText(TextDraw{Shading: Shading{Type: FragmentSDFText}, Filter: BlendFilter(BlendSrcATop)})
	checkSteps(t, sdf, []wantStep{{
		fn(uint32(GeometryColorText), 0, 0),
		fn(uint32(FragmentSDFText), 0, uint32(FilterSrcATop)),
		"TextSolidColorVertexWGSL", "SdfColorTextFragmentWGSL_BlendSrcATopFilter",
	}})

	if got := PlanText(TextDraw{})[0].FragmentName(); got != "ColorTextFragmentWGSL" {
		t.Errorf("color text fragment = %q", got)
	}
	if got := PlanText(TextDraw{Shading: EmojiShading(false)})[0].FragmentName(); got != "ColorEmojiNoSwizzleFragmentWGSL" {
		t.Errorf("emoji fragment = %q", got)
	}
	emoji := EmojiShading(true)
	if emoji.MainKey() != uint32(FragmentEmojiText)|1<<8 {
		t.Errorf("emoji main key = %#x", emoji.MainKey())
	}
	if got := PlanText(TextDraw{Shading: emoji})[0].FragmentName(); got != "ColorEmojiSwizzleRBFragmentWGSL" {
		t.Errorf("swizzled emoji fragment = %q", got)
	}

	grad := GradientTextShading(GradientInfo{Type: GradientSweep, ColorCount: 2, Positions: []float32{0, 1}})
	if grad.MainKey() != MakeMainKey(uint32(FragmentGradientText), 0b10001100) {
		t.Errorf("gradient text main key = %#x", grad.MainKey())
	}
	steps := PlanText(TextDraw{Shading: grad})
	if steps[0].Geometry != GeometryGradientText {
		t.Errorf("gradient text geometry = %v", steps[0].Geometry)
	}
	if got := steps[0].FragmentName(); got != "GradientSweep2ColorFastTextWGSL" {
		t.Errorf("gradient text fragment = %q", got)
	}
}

func TestBlurFilterStep(t *testing.T) {
	checkSteps(t, PlanFilter(FragmentBlur), []wantStep{{
		fn(uint32(GeometryFilter), 0, 0),
		fn(uint32(FragmentBlur), 0, 0),
		"CommonFilterVertexWGSL", "BlurFragmentWGSL",
	}})
}

func TestFunctionKeys(t *testing.T) {
	key := PlanRRect(SolidVertexColor(), ComposeFilter(BlendFilter(BlendSrcATop), BlendFilter(BlendSrcIn)))[0].PipelineKey()

	vs := key.FunctionKey(gpu.ShaderStageVertex)
	fs := key.FunctionKey(gpu.ShaderStageFragment)
	if vs.Stage() != gpu.ShaderStageVertex || fs.Stage() != gpu.ShaderStageFragment {
		t.Fatalf("stages = %v, %v", vs.Stage(), fs.Stage())
	}
	if len(vs.Compose) != 0 || len(fs.Compose) != 2 {
		t.Errorf("compose lists: vertex %v, fragment %v", vs.Compose, fs.Compose)
	}
	if got := FunctionName(vs); got != "VS_RRect_SolidVertexColor" {
		t.Errorf("vertex function name = %q", got)
	}
	if got := FunctionName(fs); got != "FS_SolidVertexColor_RRect_ComposeFilter_BlendSrcInFilter_BlendSrcATopFilter" {
		t.Errorf("fragment function name = %q", got)
	}
	if got := FunctionName(Key{Base: 42}); got != "Unknown_42" {
		t.Errorf("unknown function name = %q", got)
	}

	// A vertex and a fragment function with the same 32-bit key differ.
	same := NewKey(0x00010000, 0x00010000, nil)
	if same.FunctionKey(gpu.ShaderStageVertex).Equal(same.FunctionKey(gpu.ShaderStageFragment)) {
		t.Error("vertex and fragment function keys collide")
	}
}

func TestKeyDeterminism(t *testing.T) {
	draw := PathDraw{AntiAlias: true, Shading: GradientShading(GradientInfo{Type: GradientConical, ColorCount: 5})}
	a, b := PlanPath(draw), PlanPath(draw)
	for i := range a {
		ka, kb := a[i].PipelineKey(), b[i].PipelineKey()
		if !ka.Equal(kb) || ka.Hash() != kb.Hash() {
			t.Errorf("step %d keys differ: %v vs %v", i, ka, kb)
		}
	}
	if got := PipelineKeys(append(a, b...)); len(got) != 3 {
		t.Errorf("PipelineKeys = %d distinct, want 3", len(got))
	}
}

func TestKeyDiscrimination(t *testing.T) {
	base := PlanPath(PathDraw{Convex: true})[0].PipelineKey()
	variants := map[string]Key{
		"aa":     PlanPath(PathDraw{Convex: true, AntiAlias: true})[1].PipelineKey(),
		"stroke": PlanPath(PathDraw{Convex: true, Stroke: true, GPUTessellation: true})[1].PipelineKey(),
		"filter": PlanPath(PathDraw{Convex: true, Filter: MatrixFilter()})[0].PipelineKey(),
	}
	for name, k := range variants {
		if k.Equal(base) {
			t.Errorf("%s: key equals the plain fill key", name)
		}
	}
}

func TestUnknownNames(t *testing.T) {
	if got := VertexName(fn(200, 0, 0)); got != "UnknownGeometry" {
		t.Errorf("VertexName = %q", got)
	}
	if got := FragmentName(fn(200, 0, 0), nil); got != "UnknownFragment" {
		t.Errorf("FragmentName = %q", got)
	}
	if got := FilterType(100).String(); got != "UnknownColorFilter" {
		t.Errorf("FilterType.String = %q", got)
	}
	if got := GradientName(0); got != "GradientUnknown1" {
		t.Errorf("GradientName(0) = %q", got)
	}
	if f := BlendFilter(BlendMode(99)); f.Type() != FilterUnknown {
		t.Errorf("out of range blend mode type = %v", f.Type())
	}
}

func TestBufferLayout(t *testing.T) {
	tests := []struct {
		geometry GeometryType
		stride   uint64
		attrs    int
	}{
		{GeometryPath, 8, 1},
		{GeometryPathAA, 12, 1},
		{GeometryTessStroke, 16, 1},
		{GeometryRRect, 32, 2},
		{GeometryFilter, 16, 1},
	}
	for _, tt := range tests {
		l, ok := BufferLayout(tt.geometry)
		if !ok || l.ArrayStride != tt.stride || len(l.Attributes) != tt.attrs {
			t.Errorf("BufferLayout(%v) = %+v, %v", tt.geometry, l, ok)
		}
	}
	l, _ := BufferLayout(GeometryRRect)
	if l.Attributes[1].Offset != 16 || l.Attributes[1].ShaderLocation != 1 {
		t.Errorf("RRect second attribute = %+v", l.Attributes[1])
	}
	if _, ok := BufferLayout(GeometryType(0)); ok {
		t.Error("unknown geometry has a layout")
	}
}
