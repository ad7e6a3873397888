package hwpipeline

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/gogpu/gpurender/backend/software"
	"github.com/gogpu/gpurender/gpu"
	"github.com/gogpu/gpurender/hwkey"
)

const solidWGSL = `
@vertex
fn vs_main(@location(0) position: vec2<f32>) -> @builtin(position) vec4<f32> {
    return vec4<f32>(position, 0.0, 1.0);
}

@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return vec4<f32>(1.0, 0.0, 0.0, 1.0);
}
`

// countingGenerator serves solidWGSL for every function and counts calls
// per function name.
type countingGenerator struct {
	mu    sync.Mutex
	calls map[string]int
}

func (g *countingGenerator) GenerateShader(fk hwkey.Key) (ShaderSource, error) {
	g.mu.Lock()
	if g.calls == nil {
		g.calls = make(map[string]int)
	}
	g.calls[hwkey.FunctionName(fk)]++
	g.mu.Unlock()
	if fk.Stage() == gpu.ShaderStageVertex {
		return WGSL(solidWGSL, "vs_main"), nil
	}
	return WGSL(solidWGSL, "fs_main"), nil
}

func pathKey(fragment hwkey.FragmentType, compose []uint32) hwkey.Key {
	filter := uint32(0)
	if len(compose) > 0 {
		filter = uint32(hwkey.FilterCompose)
	}
	return hwkey.NewKey(
		hwkey.MakeFunctionBaseKey(uint32(hwkey.GeometryPath), 0, 0),
		hwkey.MakeFunctionBaseKey(uint32(fragment), 0, filter),
		compose,
	)
}

func newTestLib(t *testing.T, opts ...Option) (*Lib, *countingGenerator) {
	t.Helper()
	dev := software.NewDevice()
	gen := &countingGenerator{}
	lib := New(dev, append([]Option{WithShaderGenerator(gen)}, opts...)...)
	t.Cleanup(func() {
		lib.Close()
		dev.Close()
	})
	return lib, gen
}

func TestGetPipelineShares(t *testing.T) {
	lib, gen := newTestLib(t)
	key := pathKey(hwkey.FragmentSolid, nil)

	p1, err := lib.GetPipeline(key, &Descriptor{})
	if err != nil {
		t.Fatalf("GetPipeline: %v", err)
	}
	p2, err := lib.GetPipeline(key, &Descriptor{Label: "other label", ColorFormat: gpu.TextureFormatRGBA8Unorm})
	if err != nil {
		t.Fatal(err)
	}
	if p1 != p2 {
		t.Error("equal variants returned different pipelines")
	}

	desc := p1.Descriptor()
	if len(desc.Buffers) != 1 || desc.Buffers[0].Attributes[0].Format != gpu.VertexFormatFloat32x2 {
		t.Errorf("default buffers = %+v, want the path layout", desc.Buffers)
	}
	if desc.Target.WriteMask != gpu.ColorWriteAll || desc.SampleCount != 1 {
		t.Errorf("target %+v samples %d", desc.Target, desc.SampleCount)
	}
	if desc.Label != hwkey.PipelineName(key) {
		t.Errorf("label = %q, want %q", desc.Label, hwkey.PipelineName(key))
	}

	s := lib.Stats()
	if s.Keys != 1 || s.Pipelines != 1 || s.Functions != 2 || s.Hits != 1 || s.Misses != 1 {
		t.Errorf("Stats() = %+v", s)
	}
	if gen.calls["VS_Path"] != 1 || len(gen.calls) != 2 {
		t.Errorf("generator calls = %v", gen.calls)
	}
	if r := s.Report(); !strings.Contains(r, "1 pipelines") || !strings.Contains(r, "50.0% hit rate") {
		t.Errorf("Report() = %q", r)
	}
}

func TestGetPipelineVariants(t *testing.T) {
	lib, gen := newTestLib(t)
	key := pathKey(hwkey.FragmentSolid, nil)
	stencil := &gpu.DepthStencilState{
		Format:        gpu.TextureFormatStencil8,
		EnableStencil: true,
		StencilFront:  gpu.StencilFaceState{Compare: gpu.CompareNotEqual},
	}

	variants := []*Descriptor{
		{},
		{Blend: &gpu.BlendPremultipliedSrcOver},
		{ColorFormat: gpu.TextureFormatBGRA8Unorm},
		{ColorMask: gpu.ColorWriteMask(1)},
		{DepthStencil: stencil},
		{SampleCount: 4},
	}
	seen := make(map[gpu.RenderPipeline]bool)
	for i, d := range variants {
		p, err := lib.GetPipeline(key, d)
		if err != nil {
			t.Fatalf("variant %d: %v", i, err)
		}
		seen[p] = true
	}
	if len(seen) != len(variants) {
		t.Errorf("%d distinct pipelines for %d variants", len(seen), len(variants))
	}

	// An equal blend state behind a different pointer is the same variant.
	blend := gpu.BlendPremultipliedSrcOver
	if _, err := lib.GetPipeline(key, &Descriptor{Blend: &blend}); err != nil {
		t.Fatal(err)
	}
	s := lib.Stats()
	if s.Keys != 1 || s.Pipelines != len(variants) || s.Hits != 1 {
		t.Errorf("Stats() = %+v", s)
	}
	if gen.calls["VS_Path"] != 1 {
		t.Errorf("vertex function generated %d times", gen.calls["VS_Path"])
	}

	p, _ := lib.GetPipeline(key, &Descriptor{DepthStencil: stencil})
	if !p.HasStencilTesting() {
		t.Error("stencil variant has no stencil testing")
	}
}

func TestComposeKeysAreDistinct(t *testing.T) {
	lib, gen := newTestLib(t)
	a := pathKey(hwkey.FragmentSolid, []uint32{uint32(hwkey.FilterSrcOver), uint32(hwkey.FilterMatrix)})
	b := pathKey(hwkey.FragmentSolid, []uint32{uint32(hwkey.FilterMatrix), uint32(hwkey.FilterSrcOver)})

	pa, err := lib.GetPipeline(a, nil)
	if err != nil {
		t.Fatal(err)
	}
	pb, err := lib.GetPipeline(b, nil)
	if err != nil {
		t.Fatal(err)
	}
	if pa == pb {
		t.Error("compose order did not change the pipeline")
	}
	// The vertex function is shared; each fragment chain is its own function.
	if s := lib.Stats(); s.Keys != 2 || s.Functions != 3 {
		t.Errorf("Stats() = %+v", s)
	}
	if len(gen.calls) != 3 {
		t.Errorf("generator calls = %v", gen.calls)
	}
}

func TestGetPipelineErrors(t *testing.T) {
	dev := software.NewDevice()
	defer dev.Close()
	key := pathKey(hwkey.FragmentSolid, nil)

	lib := New(dev)
	if _, err := lib.GetPipeline(key, nil); !errors.Is(err, ErrNoGenerator) {
		t.Errorf("no generator error = %v", err)
	}

	missing := SourceMap{"VS_Path": WGSL(solidWGSL, "vs_main")}
	if _, err := lib.GetPipeline(key, &Descriptor{Generator: missing}); !errors.Is(err, ErrNoShader) {
		t.Errorf("missing fragment error = %v", err)
	}

	var diag string
	broken := ShaderGeneratorFunc(func(fk hwkey.Key) (ShaderSource, error) {
		return WGSL("@vertex fn vs_main( {", "vs_main"), nil
	})
	lib = New(dev, WithShaderGenerator(broken), WithErrorCallback(func(m string) { diag = m }))
	if _, err := lib.GetPipeline(key, nil); err == nil || diag == "" {
		t.Errorf("broken shader: err %v, diagnostics %q", err, diag)
	}

	s := lib.Stats()
	if s.Failures != 1 || s.Pipelines != 0 || s.Functions != 0 {
		t.Errorf("Stats() after failure = %+v", s)
	}
}

func TestSourceMapNames(t *testing.T) {
	key := pathKey(hwkey.FragmentSolid, nil)
	m := SourceMap{
		"VS_Path":         WGSL(solidWGSL, "vs_main"),
		"FS_SolidColor":   WGSL(solidWGSL, "fs_main"),
		"unrelated entry": {},
	}
	for _, stage := range []gpu.ShaderStage{gpu.ShaderStageVertex, gpu.ShaderStageFragment} {
		fk := key.FunctionKey(stage)
		if _, err := m.GenerateShader(fk); err != nil {
			t.Errorf("GenerateShader(%s): %v", hwkey.FunctionName(fk), err)
		}
	}
}

func TestClearRebuilds(t *testing.T) {
	lib, gen := newTestLib(t)
	key := pathKey(hwkey.FragmentSolid, nil)
	if _, err := lib.GetPipeline(key, nil); err != nil {
		t.Fatal(err)
	}
	lib.Clear()
	if s := lib.Stats(); s.Keys != 0 || s.Functions != 0 {
		t.Errorf("Stats() after Clear = %+v", s)
	}
	if _, err := lib.GetPipeline(key, nil); err != nil {
		t.Fatal(err)
	}
	if gen.calls["VS_Path"] != 2 {
		t.Errorf("vertex function generated %d times, want 2", gen.calls["VS_Path"])
	}
	if len(lib.Keys()) != 1 {
		t.Errorf("Keys() = %v", lib.Keys())
	}
}

func TestConcurrentGetPipeline(t *testing.T) {
	lib, gen := newTestLib(t)
	key := pathKey(hwkey.FragmentGradient, nil)

	var wg sync.WaitGroup
	pipelines := make([]gpu.RenderPipeline, 16)
	for i := range pipelines {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := lib.GetPipeline(key, nil)
			if err != nil {
				t.Error(err)
				return
			}
			pipelines[i] = p
		}(i)
	}
	wg.Wait()
	for _, p := range pipelines[1:] {
		if p != pipelines[0] {
			t.Fatal("concurrent requests built different pipelines")
		}
	}
	if s := lib.Stats(); s.Misses != 1 || s.Hits != 15 {
		t.Errorf("Stats() = %+v", s)
	}
	if len(gen.calls) != 2 {
		t.Errorf("generator calls = %v", gen.calls)
	}
}
