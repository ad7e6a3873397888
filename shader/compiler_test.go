package shader

import (
	"errors"
	"sync"
	"testing"

	"github.com/gogpu/gpurender/gpu"
)

const texturedWGSL = `
struct Uniforms {
    mvp: mat4x4<f32>,
    color: vec4<f32>,
}

@group(0) @binding(0) var<uniform> u: Uniforms;
@group(0) @binding(1) var tex: texture_2d<f32>;
@group(0) @binding(2) var samp: sampler;

struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) uv: vec2<f32>,
}

@vertex
fn vs_main(@location(0) position: vec2<f32>, @location(1) uv: vec2<f32>) -> VertexOutput {
    var out: VertexOutput;
    out.position = u.mvp * vec4<f32>(position, 0.0, 1.0);
    out.uv = uv;
    return out;
}

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    return textureSample(tex, samp, in.uv) * u.color;
}
`

func TestCompileWGSL(t *testing.T) {
	c := NewCompiler()

	vs := c.Compile(texturedWGSL, "vs_main", DefaultCompileOptions(gpu.ShaderStageVertex))
	if !vs.Success {
		t.Fatalf("vertex compile failed: %v", vs.Err)
	}
	if vs.SPIRV[0] != MagicNumber {
		t.Errorf("magic = %#x", vs.SPIRV[0])
	}
	if len(vs.Reflection.Uniforms) != 1 {
		t.Fatalf("uniforms = %+v", vs.Reflection.Uniforms)
	}
	if u := vs.Reflection.Uniforms[0]; u.Binding != 0 || u.Size < 80 {
		t.Errorf("uniform = %+v, want binding 0 size >= 80", u)
	}
	if got := len(vs.Reflection.VertexInputs); got != 2 {
		t.Errorf("vertex inputs = %d, want 2", got)
	}

	fs := c.Compile(texturedWGSL, "fs_main", DefaultCompileOptions(gpu.ShaderStageFragment))
	if !fs.Success {
		t.Fatalf("fragment compile failed: %v", fs.Err)
	}
	if len(fs.Reflection.Textures) != 1 || len(fs.Reflection.Samplers) != 1 {
		t.Errorf("fragment bindings: textures %+v samplers %+v", fs.Reflection.Textures, fs.Reflection.Samplers)
	}
	if fs.Reflection.Textures[0].Binding != 1 || fs.Reflection.Samplers[0].Binding != 2 {
		t.Errorf("fragment binding numbers: %+v", fs.Reflection.Bindings())
	}
}

func TestCompileCacheHit(t *testing.T) {
	c := NewCompiler()
	opts := DefaultCompileOptions(gpu.ShaderStageFragment)

	first := c.Compile(texturedWGSL, "fs_main", opts)
	second := c.Compile(texturedWGSL, "fs_main", opts)
	if !first.Success || first != second {
		t.Fatalf("second compile did not return the cached result")
	}
	if got := c.Compiles(); got != 1 {
		t.Errorf("Compiles() = %d, want 1", got)
	}
	if s := c.Stats(); s.Hits != 1 || s.Misses != 1 || s.Len != 1 {
		t.Errorf("stats = %+v", s)
	}

	// Any key component change is a different entry.
	opts.Debug = false
	if r := c.Compile(texturedWGSL, "fs_main", opts); r == first {
		t.Error("options ignored by cache key")
	}
	if got := c.Compiles(); got != 2 {
		t.Errorf("Compiles() = %d, want 2", got)
	}

	c.ClearCache()
	if s := c.Stats(); s.Len != 0 || s.Hits != 0 {
		t.Errorf("stats after clear = %+v", s)
	}
}

func TestCompileFailureNotCached(t *testing.T) {
	c := NewCompiler()
	opts := DefaultCompileOptions(gpu.ShaderStageVertex)
	for range 2 {
		r := c.Compile("fn broken( {", "vs_main", opts)
		if r.Success || !errors.Is(r.Err, ErrCompile) {
			t.Fatalf("result = %+v, want ErrCompile", r)
		}
		if r.SPIRV != nil || r.Reflection != nil {
			t.Error("failed result carries artifacts")
		}
	}
	if got := c.Compiles(); got != 2 {
		t.Errorf("Compiles() = %d, want 2 (failures must not be cached)", got)
	}
	if c.Stats().Len != 0 {
		t.Error("failure was cached")
	}
}

func TestCompileMissingEntryPoint(t *testing.T) {
	c := NewCompiler()
	r := c.Compile(texturedWGSL, "main", DefaultCompileOptions(gpu.ShaderStageFragment))
	if r.Success || !errors.Is(r.Err, ErrEntryPointNotFound) {
		t.Errorf("result = %+v, want ErrEntryPointNotFound", r)
	}
}

func TestCompileSPIRV(t *testing.T) {
	c := NewCompiler()
	r := c.CompileSPIRV(testModule(), "fs_main", DefaultCompileOptions(gpu.ShaderStageFragment))
	if !r.Success || r.Reflection.EntryPoint != "fs_main" {
		t.Fatalf("CompileSPIRV = %+v", r)
	}
	bad := c.CompileSPIRV([]uint32{1, 2, 3}, "fs_main", DefaultCompileOptions(gpu.ShaderStageFragment))
	if bad.Success || !errors.Is(bad.Err, ErrInvalidSPIRV) {
		t.Errorf("CompileSPIRV(bad) = %+v", bad)
	}
}

func TestCompileConcurrent(t *testing.T) {
	c := NewCompiler()
	opts := DefaultCompileOptions(gpu.ShaderStageVertex)

	const goroutines = 8
	results := make([]*Result, goroutines)
	var wg sync.WaitGroup
	for i := range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = c.Compile(texturedWGSL, "vs_main", opts)
		}()
	}
	wg.Wait()

	for i, r := range results {
		if !r.Success || r != results[0] {
			t.Fatalf("goroutine %d got a different result", i)
		}
	}
	if got := c.Compiles(); got != 1 {
		t.Errorf("Compiles() = %d, want 1", got)
	}
}

func TestCacheKey(t *testing.T) {
	a := CacheKey("src", "main", DefaultCompileOptions(gpu.ShaderStageVertex))
	tests := map[string]string{
		"source": CacheKey("src2", "main", DefaultCompileOptions(gpu.ShaderStageVertex)),
		"entry":  CacheKey("src", "main2", DefaultCompileOptions(gpu.ShaderStageVertex)),
		"stage":  CacheKey("src", "main", DefaultCompileOptions(gpu.ShaderStageFragment)),
	}
	for name, k := range tests {
		if k == a {
			t.Errorf("%s change kept the key", name)
		}
	}
	if a != CacheKey("src", "main", DefaultCompileOptions(gpu.ShaderStageVertex)) {
		t.Error("key not deterministic")
	}
}

func TestWithoutCache(t *testing.T) {
	c := NewCompiler(WithoutCache())
	opts := DefaultCompileOptions(gpu.ShaderStageFragment)
	c.Compile(texturedWGSL, "fs_main", opts)
	c.Compile(texturedWGSL, "fs_main", opts)
	if got := c.Compiles(); got != 2 {
		t.Errorf("Compiles() = %d, want 2", got)
	}
}
