package hwpipeline

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/gpurender/gpu"
	"github.com/gogpu/gpurender/hwkey"
	"github.com/gogpu/gpurender/internal/cache"
)

// ErrNoGenerator is returned when neither the descriptor nor the library
// provides a shader generator.
var ErrNoGenerator = errors.New("hwpipeline: no shader generator")

// Descriptor is the render state of a pipeline request. The shader
// functions come from the key; everything else comes from here.
type Descriptor struct {
	Label string
	// ColorMask of 0 writes all channels.
	ColorMask gpu.ColorWriteMask
	// SampleCount of 0 means 1.
	SampleCount uint32
	// Buffers defaults to the layout of the key's geometry type.
	Buffers []gpu.VertexBufferLayout
	// Blend is nil for opaque writes.
	Blend *gpu.BlendState
	// ColorFormat defaults to RGBA8Unorm.
	ColorFormat  gpu.TextureFormat
	DepthStencil *gpu.DepthStencilState
	CullMode     gpu.CullMode
	Topology     gpu.PrimitiveTopology
	// Generator overrides the library's generator for this request.
	Generator ShaderGenerator
}

// variant is the state that selects one pipeline among those of a key.
type variant struct {
	colorMask   gpu.ColorWriteMask
	sampleCount uint32
	blend       gpu.BlendState
	hasBlend    bool
	colorFormat gpu.TextureFormat
	ds          gpu.DepthStencilState
	hasDS       bool
}

func (d *Descriptor) variant() variant {
	v := variant{
		colorMask:   d.ColorMask,
		sampleCount: max(d.SampleCount, 1),
		colorFormat: d.ColorFormat,
	}
	if v.colorMask == 0 {
		v.colorMask = gpu.ColorWriteAll
	}
	if v.colorFormat == gpu.TextureFormatInvalid {
		v.colorFormat = gpu.TextureFormatRGBA8Unorm
	}
	if d.Blend != nil {
		v.blend, v.hasBlend = *d.Blend, true
	}
	if d.DepthStencil != nil {
		v.ds, v.hasDS = *d.DepthStencil, true
	}
	return v
}

// keyPipelines holds every variant built for one key.
type keyPipelines struct {
	key      hwkey.Key
	variants map[variant]gpu.RenderPipeline
}

// Option configures a Lib.
type Option func(*Lib)

// WithShaderGenerator sets the default shader generator.
func WithShaderGenerator(g ShaderGenerator) Option {
	return func(l *Lib) { l.generator = g }
}

// WithErrorCallback receives shader compiler diagnostics.
func WithErrorCallback(fn gpu.ShaderErrorCallback) Option {
	return func(l *Lib) { l.onError = fn }
}

// Lib maps pipeline keys to render pipelines. Shader functions are built
// once per function key and shared by every pipeline that uses them;
// pipelines are built once per key and render state variant.
//
// Lib is safe for concurrent use.
type Lib struct {
	device    gpu.Device
	generator ShaderGenerator
	onError   gpu.ShaderErrorCallback

	functions *cache.LRU[string, gpu.ShaderFunction]

	mu        sync.Mutex
	pipelines map[string]*keyPipelines

	hits     atomic.Uint64
	misses   atomic.Uint64
	failures atomic.Uint64
}

// New creates a pipeline library on device.
func New(device gpu.Device, opts ...Option) *Lib {
	l := &Lib{
		device:    device,
		functions: cache.NewLRU[string, gpu.ShaderFunction](0),
		pipelines: make(map[string]*keyPipelines),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.functions.OnEvict(func(_ string, f gpu.ShaderFunction) { f.Destroy() })
	return l
}

// Device returns the device pipelines are created on.
func (l *Lib) Device() gpu.Device { return l.device }

// GetPipeline returns the pipeline for key and desc, creating its shader
// functions and the pipeline on first use. Requests that differ only in
// state outside the variant (label, generator) share a pipeline.
func (l *Lib) GetPipeline(key hwkey.Key, desc *Descriptor) (gpu.RenderPipeline, error) {
	if desc == nil {
		desc = &Descriptor{}
	}
	v := desc.variant()
	id := key.String()

	l.mu.Lock()
	defer l.mu.Unlock()

	kp, ok := l.pipelines[id]
	if ok {
		if p, ok := kp.variants[v]; ok {
			l.hits.Add(1)
			return p, nil
		}
	}
	l.misses.Add(1)

	p, err := l.createPipeline(key, desc, v)
	if err != nil {
		l.failures.Add(1)
		slogger().Error("hwpipeline: create pipeline failed", "pipeline", hwkey.PipelineName(key), "err", err)
		return nil, err
	}
	if kp == nil {
		kp = &keyPipelines{key: key, variants: make(map[variant]gpu.RenderPipeline)}
		l.pipelines[id] = kp
	}
	kp.variants[v] = p
	slogger().Debug("hwpipeline: pipeline created",
		"pipeline", hwkey.PipelineName(key), "variants", len(kp.variants))
	return p, nil
}

func (l *Lib) createPipeline(key hwkey.Key, desc *Descriptor, v variant) (gpu.RenderPipeline, error) {
	gen := desc.Generator
	if gen == nil {
		gen = l.generator
	}
	if gen == nil {
		return nil, ErrNoGenerator
	}
	vs, err := l.function(key.FunctionKey(gpu.ShaderStageVertex), gen)
	if err != nil {
		return nil, err
	}
	fs, err := l.function(key.FunctionKey(gpu.ShaderStageFragment), gen)
	if err != nil {
		return nil, err
	}

	buffers := desc.Buffers
	if buffers == nil {
		geometry := hwkey.GeometryType((key.VertexKey() >> hwkey.MainKeyShift) & 0xFF)
		if layout, ok := hwkey.BufferLayout(geometry); ok {
			buffers = []gpu.VertexBufferLayout{layout}
		}
	}
	label := desc.Label
	if label == "" {
		label = hwkey.PipelineName(key)
	}

	pd := &gpu.RenderPipelineDescriptor{
		Label:            label,
		VertexFunction:   vs,
		FragmentFunction: fs,
		Buffers:          buffers,
		Target: gpu.ColorTargetState{
			Format:    v.colorFormat,
			Blend:     desc.Blend,
			WriteMask: v.colorMask,
		},
		DepthStencil: desc.DepthStencil,
		SampleCount:  v.sampleCount,
		CullMode:     desc.CullMode,
		Topology:     desc.Topology,
	}
	return l.device.CreateRenderPipeline(pd)
}

// function returns the cached shader function for fk, generating and
// compiling it on first use. Failures are not cached.
func (l *Lib) function(fk hwkey.Key, gen ShaderGenerator) (gpu.ShaderFunction, error) {
	f, _, err := l.functions.GetOrCreate(fk.String(), func() (gpu.ShaderFunction, error) {
		name := hwkey.FunctionName(fk)
		src, err := gen.GenerateShader(fk)
		if err != nil {
			return nil, err
		}
		f, err := l.device.CreateShaderFunction(&gpu.ShaderFunctionDescriptor{
			Label:         name,
			Stage:         fk.Stage(),
			SourceType:    src.SourceType,
			Source:        src.Source,
			RawSPIRV:      src.RawSPIRV,
			EntryPoint:    src.EntryPoint,
			ErrorCallback: l.onError,
		})
		if err != nil {
			return nil, fmt.Errorf("hwpipeline: function %s: %w", name, err)
		}
		return f, nil
	})
	return f, err
}

// Stats is a snapshot of library counters.
type Stats struct {
	// Keys is the number of distinct pipeline keys.
	Keys int
	// Pipelines counts variants over all keys.
	Pipelines int
	Functions int
	Hits      uint64
	Misses    uint64
	// Failures counts misses whose pipeline could not be created.
	Failures      uint64
	FunctionStats cache.Stats
}

// HitRate returns Hits / (Hits + Misses), or 0 before any request.
func (s Stats) HitRate() float64 {
	if total := s.Hits + s.Misses; total > 0 {
		return float64(s.Hits) / float64(total)
	}
	return 0
}

// Report formats the counters for logs.
func (s Stats) Report() string {
	p := message.NewPrinter(language.English)
	return p.Sprintf("%d keys, %d pipelines, %d functions, %d hits, %d misses, %d failures (%.1f%% hit rate)",
		s.Keys, s.Pipelines, s.Functions, s.Hits, s.Misses, s.Failures, s.HitRate()*100)
}

// Stats returns the library counters.
func (l *Lib) Stats() Stats {
	l.mu.Lock()
	s := Stats{Keys: len(l.pipelines)}
	for _, kp := range l.pipelines {
		s.Pipelines += len(kp.variants)
	}
	l.mu.Unlock()
	s.Hits = l.hits.Load()
	s.Misses = l.misses.Load()
	s.Failures = l.failures.Load()
	s.FunctionStats = l.functions.Stats()
	s.Functions = s.FunctionStats.Len
	return s
}

// Keys returns the keys with at least one pipeline.
func (l *Lib) Keys() []hwkey.Key {
	l.mu.Lock()
	defer l.mu.Unlock()
	keys := make([]hwkey.Key, 0, len(l.pipelines))
	for _, kp := range l.pipelines {
		keys = append(keys, kp.key)
	}
	return keys
}

// Clear drops every pipeline and destroys every shader function.
// Pipelines already handed out stay usable.
func (l *Lib) Clear() {
	l.mu.Lock()
	clear(l.pipelines)
	l.mu.Unlock()
	l.functions.Clear()
	slogger().Debug("hwpipeline: cleared")
}

// Close logs the final counters and clears the library.
func (l *Lib) Close() {
	slogger().Info("hwpipeline: closed", "stats", l.Stats().Report())
	l.Clear()
}
