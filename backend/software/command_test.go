package software

import (
	"bytes"
	"errors"
	"testing"
	"time"

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

func newFunction(t *testing.T, d *Device, entry string, stage gpu.ShaderStage) gpu.ShaderFunction {
	t.Helper()
	f, err := d.CreateShaderFunction(&gpu.ShaderFunctionDescriptor{
		Label:      entry,
		Stage:      stage,
		SourceType: gpu.ShaderSourceWGX,
		Source:     texturedWGSL,
		EntryPoint: entry,
	})
	if err != nil {
		t.Fatalf("CreateShaderFunction(%s): %v", entry, err)
	}
	return f
}

func newPipeline(t *testing.T, d *Device) *RenderPipeline {
	t.Helper()
	p, err := d.CreateRenderPipeline(&gpu.RenderPipelineDescriptor{
		Label:            "textured",
		VertexFunction:   newFunction(t, d, "vs_main", gpu.ShaderStageVertex),
		FragmentFunction: newFunction(t, d, "fs_main", gpu.ShaderStageFragment),
		Buffers: []gpu.VertexBufferLayout{{
			ArrayStride: 16,
			Attributes: []gpu.VertexAttribute{
				{Format: gpu.VertexFormatFloat32x2, ShaderLocation: 0},
				{Format: gpu.VertexFormatFloat32x2, Offset: 8, ShaderLocation: 1},
			},
		}},
		Target: gpu.ColorTargetState{Format: gpu.TextureFormatRGBA8Unorm, WriteMask: gpu.ColorWriteAll},
	})
	if err != nil {
		t.Fatalf("CreateRenderPipeline: %v", err)
	}
	return p.(*RenderPipeline)
}

func TestShaderErrorCallback(t *testing.T) {
	d := newTestDevice(t)
	var msg string
	_, err := d.CreateShaderFunction(&gpu.ShaderFunctionDescriptor{
		Label:         "broken",
		Stage:         gpu.ShaderStageFragment,
		SourceType:    gpu.ShaderSourceWGX,
		Source:        "@fragment fn main( {",
		ErrorCallback: func(m string) { msg = m },
	})
	if err == nil || msg == "" {
		t.Errorf("broken shader: err %v, callback %q", err, msg)
	}
	if _, err := d.CreateShaderFunction(&gpu.ShaderFunctionDescriptor{Stage: gpu.ShaderStageVertex, SourceType: 9}); !errors.Is(err, gpu.ErrInvalidDescriptor) {
		t.Errorf("unknown source type error = %v", err)
	}
}

func TestRenderPipelineValidation(t *testing.T) {
	d := newTestDevice(t)
	p := newPipeline(t, d)
	if len(p.Bindings()) != 3 || p.HasStencilTesting() {
		t.Errorf("bindings %v stencil %v", p.Bindings(), p.HasStencilTesting())
	}

	vs := newFunction(t, d, "vs_main", gpu.ShaderStageVertex)
	fs := newFunction(t, d, "fs_main", gpu.ShaderStageFragment)
	tests := []struct {
		name string
		desc gpu.RenderPipelineDescriptor
		want error
	}{
		{"no vertex function", gpu.RenderPipelineDescriptor{}, gpu.ErrInvalidDescriptor},
		{"stage mismatch", gpu.RenderPipelineDescriptor{VertexFunction: fs}, gpu.ErrInvalidDescriptor},
		{"invalid target", gpu.RenderPipelineDescriptor{VertexFunction: vs, FragmentFunction: fs}, gpu.ErrUnsupportedFormat},
		{"invalid vertex format", gpu.RenderPipelineDescriptor{
			VertexFunction: vs,
			Buffers:        []gpu.VertexBufferLayout{{Attributes: []gpu.VertexAttribute{{Format: gpu.VertexFormatInvalid}}}},
		}, gpu.ErrInvalidDescriptor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := d.CreateRenderPipeline(&tt.desc); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}

	vs.Destroy()
	if _, err := d.CreateRenderPipeline(&gpu.RenderPipelineDescriptor{VertexFunction: vs}); !errors.Is(err, gpu.ErrDestroyed) {
		t.Errorf("destroyed function error = %v", err)
	}
}

type drawFixture struct {
	color, stencil *Texture
	sampled        *Texture
	vb, ib, ubo    *Buffer
	sampler        gpu.Sampler
	pipeline       *RenderPipeline
}

func newDrawFixture(t *testing.T, d *Device) *drawFixture {
	t.Helper()
	tex := func(w, h uint32, f gpu.TextureFormat) *Texture {
		gt, err := d.CreateTexture(&gpu.TextureDescriptor{Width: w, Height: h, Format: f})
		if err != nil {
			t.Fatal(err)
		}
		return gt.(*Texture)
	}
	buf := func(n int) *Buffer {
		gb, _ := d.CreateBuffer(gpu.BufferUsageVertex)
		gb.UploadData(make([]byte, n))
		return gb.(*Buffer)
	}
	s, _ := d.CreateSampler(&gpu.SamplerDescriptor{})
	return &drawFixture{
		color:    tex(8, 4, gpu.TextureFormatBGRA8Unorm),
		stencil:  tex(8, 4, gpu.TextureFormatDepth24Stencil8),
		sampled:  tex(2, 2, gpu.TextureFormatRGBA8Unorm),
		vb:       buf(64),
		ib:       buf(24),
		ubo:      buf(80),
		sampler:  s,
		pipeline: newPipeline(t, d),
	}
}

func (f *drawFixture) command() *gpu.Command {
	return &gpu.Command{
		Pipeline:     f.pipeline,
		VertexBuffer: gpu.BufferView{Buffer: f.vb},
		IndexBuffer:  gpu.BufferView{Buffer: f.ib},
		UniformBindings: []gpu.UniformBinding{
			{Index: 0, Name: "u", Buffer: gpu.BufferView{Buffer: f.ubo}},
		},
		TextureSamplerBindings: []gpu.TextureSamplerBinding{
			{Index: 1, Name: "tex", Texture: f.sampled},
			{Index: 2, Name: "samp", Sampler: f.sampler},
		},
		IndexCount: 6,
	}
}

func TestRenderPassClearsAndCounts(t *testing.T) {
	d := newTestDevice(t)
	fx := newDrawFixture(t, d)
	cb, _ := d.CreateCommandBuffer()

	gp, err := cb.BeginRenderPass(&gpu.RenderPassDescriptor{
		Label: "main",
		ColorAttachment: gpu.ColorAttachment{
			Texture:    fx.color,
			LoadOp:     gpu.LoadOpClear,
			ClearValue: gpu.Color{R: 1, G: 0.5, B: 0, A: 1},
		},
		StencilAttachment: gpu.StencilAttachment{Texture: fx.stencil, LoadOp: gpu.LoadOpClear, ClearValue: 7},
	})
	if err != nil {
		t.Fatal(err)
	}
	pass := gp.(*RenderPass)

	missing := fx.command()
	missing.UniformBindings = nil
	zero := fx.command()
	zero.IndexCount = 0
	tooMany := fx.command()
	tooMany.IndexCount = 100

	pass.AddCommand(fx.command())
	pass.AddCommand(missing)
	pass.AddCommand(zero)
	pass.AddCommand(tooMany)
	pass.AddCommand(&gpu.Command{})
	pass.EncodeCommands(nil, nil)

	if got := pass.Stats(); got != (RenderPassStats{Commands: 5, Draws: 1, Skipped: 4}) {
		t.Errorf("Stats() = %+v", got)
	}
	if len(pass.Commands()) != 0 {
		t.Error("commands not cleared after encode")
	}

	px, _ := fx.color.ReadPixels(7, 3, 1, 1)
	if !bytes.Equal(px, []byte{0, 128, 255, 255}) {
		t.Errorf("cleared BGRA texel = %v", px)
	}
	ds, _ := fx.stencil.ReadPixels(0, 0, 1, 1)
	if !bytes.Equal(ds, []byte{0xFF, 0xFF, 0xFF, 7}) {
		t.Errorf("cleared depth/stencil texel = %v", ds)
	}

	// The clear applies once per pass.
	fx.color.UploadData(0, 0, 1, 1, []byte{1, 2, 3, 4})
	pass.AddCommand(fx.command())
	pass.EncodeCommands(nil, nil)
	if px, _ := fx.color.ReadPixels(0, 0, 1, 1); !bytes.Equal(px, []byte{1, 2, 3, 4}) {
		t.Errorf("second encode cleared again: %v", px)
	}
	if got := pass.Total(); got.Draws != 2 || got.Commands != 6 {
		t.Errorf("Total() = %+v", got)
	}

	if !cb.Submit() {
		t.Fatal("Submit failed")
	}
	pass.AddCommand(fx.command())
	pass.EncodeCommands(nil, nil)
	if pass.Stats().Draws != 0 {
		t.Error("encoded into a submitted command buffer")
	}
}

func TestCommandBufferLifecycle(t *testing.T) {
	d := newTestDevice(t)
	gcb, _ := d.CreateCommandBuffer()
	cb := gcb.(*CommandBuffer)

	if cb.State() != gpu.CommandBufferIdle {
		t.Fatalf("new state = %v", cb.State())
	}
	if _, err := cb.BeginRenderPass(nil); !errors.Is(err, gpu.ErrInvalidDescriptor) {
		t.Errorf("BeginRenderPass(nil) error = %v", err)
	}
	bp, err := cb.BeginBlitPass()
	if err != nil || cb.State() != gpu.CommandBufferRecording {
		t.Fatalf("BeginBlitPass = %v, state %v", err, cb.State())
	}
	buf, _ := d.CreateBuffer(gpu.BufferUsageUniform)
	bp.UploadBufferData(buf, []byte{1, 2})
	bp.End()
	bp.UploadBufferData(buf, []byte{1, 2, 3, 4})
	if buf.Size() != 2 {
		t.Errorf("upload after End changed buffer size to %d", buf.Size())
	}

	if !cb.Submit() || cb.Serial() != 1 || d.Submissions() != 1 {
		t.Fatalf("Submit: serial %d submissions %d", cb.Serial(), d.Submissions())
	}
	if !cb.Fence().IsSignaled() {
		t.Error("fence not signaled after Submit")
	}
	if cb.Submit() {
		t.Error("second Submit succeeded")
	}
	if _, err := cb.BeginBlitPass(); !errors.Is(err, gpu.ErrNotRecording) {
		t.Errorf("BeginBlitPass after Submit error = %v", err)
	}
	cb.Reset()
	if cb.State() != gpu.CommandBufferIdle || len(cb.Passes()) != 0 {
		t.Errorf("after Reset state %v passes %d", cb.State(), len(cb.Passes()))
	}
}

func TestFrameRing(t *testing.T) {
	d := newTestDevice(t)
	gr, err := d.NewFrameRing(0, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	r := gr.(*FrameRing)
	if r.FramesInFlight() != DefaultFramesInFlight {
		t.Errorf("FramesInFlight() = %d", r.FramesInFlight())
	}
	if err := r.EndFrame(); !errors.Is(err, gpu.ErrNotRecording) {
		t.Errorf("EndFrame without BeginFrame error = %v", err)
	}

	seen := make(map[gpu.CommandBuffer]bool)
	for i := 0; i < 5; i++ {
		cb, err := r.BeginFrame()
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if _, err := r.BeginFrame(); err == nil {
			t.Fatal("nested BeginFrame succeeded")
		}
		seen[cb] = true
		if err := r.EndFrame(); err != nil {
			t.Fatalf("frame %d EndFrame: %v", i, err)
		}
	}
	if len(seen) != DefaultFramesInFlight || r.Frames() != 5 {
		t.Errorf("buffers %d frames %d", len(seen), r.Frames())
	}

	r.Close()
	r.Close()
	if _, err := r.BeginFrame(); !errors.Is(err, gpu.ErrDeviceClosed) {
		t.Errorf("BeginFrame after Close error = %v", err)
	}
}
