package gpurender

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gogpu/gpurender/backend"
	"github.com/gogpu/gpurender/backend/software"
	"github.com/gogpu/gpurender/gpu"
	"github.com/gogpu/gpurender/hwkey"
	"github.com/gogpu/gpurender/hwpipeline"
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

func newSoftwareContext(t *testing.T, opts ...Option) *Context {
	t.Helper()
	ctx, err := NewContext(append([]Option{WithBackend(backend.BackendSoftware)}, opts...)...)
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	t.Cleanup(ctx.Close)
	return ctx
}

func TestNewContextDefaults(t *testing.T) {
	ctx := newSoftwareContext(t)
	if ctx.Backend() != backend.BackendSoftware {
		t.Errorf("Backend() = %q", ctx.Backend())
	}
	if ctx.FramesInFlight() != DefaultFramesInFlight {
		t.Errorf("FramesInFlight() = %d", ctx.FramesInFlight())
	}
	if ctx.Pipelines() == nil || ctx.Device() == nil {
		t.Fatal("context has no pipeline library or device")
	}
}

func TestNewContextUnknownBackend(t *testing.T) {
	if _, err := NewContext(WithBackend("metal")); !errors.Is(err, backend.ErrBackendNotAvailable) {
		t.Errorf("NewContext(metal) error = %v", err)
	}
}

func TestFrames(t *testing.T) {
	ctx := newSoftwareContext(t, WithFramesInFlight(3), WithFenceTimeout(time.Second))
	if ctx.FramesInFlight() != 3 {
		t.Fatalf("FramesInFlight() = %d", ctx.FramesInFlight())
	}
	if err := ctx.EndFrame(); !errors.Is(err, ErrNoFrame) {
		t.Errorf("EndFrame without frame error = %v", err)
	}

	for i := 0; i < 4; i++ {
		cb, err := ctx.BeginFrame()
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if _, err := ctx.BeginFrame(); !errors.Is(err, ErrFrameInProgress) {
			t.Errorf("nested BeginFrame error = %v", err)
		}
		if cb.State() != gpu.CommandBufferIdle {
			t.Errorf("frame %d buffer state = %v", i, cb.State())
		}
		if err := ctx.EndFrame(); err != nil {
			t.Fatalf("frame %d EndFrame: %v", i, err)
		}
	}
	if ctx.Frames() != 4 {
		t.Errorf("Frames() = %d", ctx.Frames())
	}

	ctx.Close()
	ctx.Close()
	if _, err := ctx.BeginFrame(); !errors.Is(err, ErrClosed) {
		t.Errorf("BeginFrame after Close error = %v", err)
	}
}

// lockedBuffer serializes writes from concurrent log calls.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestCloseWhileFrames(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })
	var out lockedBuffer
	SetLogger(slog.New(slog.NewTextHandler(&out, &slog.HandlerOptions{Level: slog.LevelInfo})))

	ctx := newSoftwareContext(t, WithFramesInFlight(2), WithFenceTimeout(time.Second))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			if _, err := ctx.BeginFrame(); err != nil {
				return
			}
			if err := ctx.EndFrame(); err != nil {
				return
			}
		}
	}()
	time.Sleep(5 * time.Millisecond)
	ctx.Close()
	wg.Wait()

	want := fmt.Sprintf("frames=%d", ctx.Frames())
	if !strings.Contains(out.String(), want) {
		t.Errorf("close log does not report %s:\n%s", want, out.String())
	}
}

func TestWithDeviceIsNotClosed(t *testing.T) {
	dev := software.NewDevice()
	defer dev.Close()

	ctx, err := NewContext(WithDevice(dev))
	if err != nil {
		t.Fatal(err)
	}
	ctx.Close()
	if _, err := dev.CreateBuffer(gpu.BufferUsageVertex); err != nil {
		t.Errorf("borrowed device closed by context: %v", err)
	}
}

func TestContextGetPipeline(t *testing.T) {
	sources := hwpipeline.SourceMap{
		"VS_Path":       hwpipeline.WGSL(solidWGSL, "vs_main"),
		"FS_SolidColor": hwpipeline.WGSL(solidWGSL, "fs_main"),
	}
	ctx := newSoftwareContext(t, WithShaderGenerator(sources))

	step := hwkey.PlanPath(hwkey.PathDraw{Convex: true, Shading: hwkey.SolidColor()})[0]
	key := step.PipelineKey()
	p, err := ctx.GetPipeline(key, &hwpipeline.Descriptor{Blend: &gpu.BlendPremultipliedSrcOver})
	if err != nil {
		t.Fatalf("GetPipeline(%s): %v", hwkey.PipelineName(key), err)
	}
	if p.Descriptor().Target.Blend == nil {
		t.Error("pipeline lost its blend state")
	}
	if s := ctx.Pipelines().Stats(); s.Pipelines != 1 || s.Functions != 2 {
		t.Errorf("Stats() = %+v", s)
	}

	// One frame drawing with the pipeline.
	cb, err := ctx.BeginFrame()
	if err != nil {
		t.Fatal(err)
	}
	dev := ctx.Device()
	target, _ := dev.CreateTexture(&gpu.TextureDescriptor{Width: 4, Height: 4, Format: gpu.TextureFormatRGBA8Unorm})
	vb, _ := dev.CreateBuffer(gpu.BufferUsageVertex)
	vb.UploadData(make([]byte, 24))
	ib, _ := dev.CreateBuffer(gpu.BufferUsageIndex)
	ib.UploadData(make([]byte, 12))

	rp, err := cb.BeginRenderPass(&gpu.RenderPassDescriptor{
		ColorAttachment: gpu.ColorAttachment{Texture: target, LoadOp: gpu.LoadOpClear, ClearValue: gpu.Color{A: 1}},
	})
	if err != nil {
		t.Fatal(err)
	}
	rp.AddCommand(&gpu.Command{
		Pipeline:     p,
		VertexBuffer: gpu.BufferView{Buffer: vb},
		IndexBuffer:  gpu.BufferView{Buffer: ib},
		IndexCount:   3,
	})
	rp.EncodeCommands(nil, nil)
	if stats := rp.(*software.RenderPass).Stats(); stats.Draws != 1 {
		t.Errorf("render pass stats = %+v", stats)
	}
	if err := ctx.EndFrame(); err != nil {
		t.Fatal(err)
	}

	px, err := target.(gpu.TextureReader).ReadPixels(0, 0, 1, 1)
	if err != nil || px[3] != 255 {
		t.Errorf("cleared pixel = %v, %v", px, err)
	}
}

func TestPipelineCachePathOnSoftware(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipelines.bin")
	ctx := newSoftwareContext(t, WithPipelineCachePath(path))
	ctx.Close()
	// The software device has nothing to persist; Close must still succeed
	// and leave no file behind.
	if matches, _ := filepath.Glob(path); len(matches) != 0 {
		t.Errorf("cache file written by software backend: %v", matches)
	}
}
