package software

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gpurender/backend"
	"github.com/gogpu/gpurender/gpu"
	"github.com/gogpu/gpurender/shader"
)

// BackendName is the name the backend registers under.
const BackendName = backend.BackendSoftware

// Defaults.
const (
	DefaultMaxTextureSize   = 8192
	DefaultUniformAlignment = 16
	DefaultMaxSampleCount   = 1
	DefaultFramesInFlight   = 2
)

// init registers the software backend on package import.
func init() {
	backend.Register(BackendName, func() (gpu.Device, error) {
		return NewDevice(), nil
	})
}

// Config holds device limits.
type Config struct {
	MaxTextureSize   uint32
	UniformAlignment uint32
	// MaxSampleCount above 1 makes CanUseMSAA report true; draws are still
	// only accounted, never rasterized.
	MaxSampleCount uint32
	// Compiler is shared with other devices when set; otherwise the device
	// creates its own.
	Compiler *shader.Compiler
}

// DefaultConfig returns the default limits.
func DefaultConfig() Config {
	return Config{
		MaxTextureSize:   DefaultMaxTextureSize,
		UniformAlignment: DefaultUniformAlignment,
		MaxSampleCount:   DefaultMaxSampleCount,
	}
}

// Option configures a Device.
type Option func(*Config)

// WithMaxTextureSize sets the largest accepted texture dimension.
func WithMaxTextureSize(n uint32) Option {
	return func(c *Config) {
		if n > 0 {
			c.MaxTextureSize = n
		}
	}
}

// WithMaxSampleCount sets the reported sample count limit.
func WithMaxSampleCount(n uint32) Option {
	return func(c *Config) {
		if n > 0 {
			c.MaxSampleCount = n
		}
	}
}

// WithShaderCompiler shares a shader compiler.
func WithShaderCompiler(c *shader.Compiler) Option {
	return func(cfg *Config) { cfg.Compiler = c }
}

// Device is an in-memory gpu.Device. Resources live in Go memory,
// submissions complete before Submit returns, and render passes apply
// their clears and account draws without rasterizing.
type Device struct {
	cfg      Config
	compiler *shader.Compiler
	closed   atomic.Bool

	samplerMu sync.Mutex
	samplers  map[gpu.SamplerDescriptor]*Sampler

	submissions atomic.Uint64
}

var (
	_ gpu.Device             = (*Device)(nil)
	_ gpu.PipelineCacheStore = (*Device)(nil)
)

// NewDevice creates a software device.
func NewDevice(opts ...Option) *Device {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	compiler := cfg.Compiler
	if compiler == nil {
		compiler = shader.NewCompiler()
	}
	slogger().Info("software: device opened", "maxTextureSize", cfg.MaxTextureSize)
	return &Device{
		cfg:      cfg,
		compiler: compiler,
		samplers: make(map[gpu.SamplerDescriptor]*Sampler),
	}
}

// Backend returns BackendName.
func (d *Device) Backend() string { return BackendName }

// Config returns the device limits.
func (d *Device) Config() Config { return d.cfg }

// Compiler returns the shader compiler used for WGSL functions.
func (d *Device) Compiler() *shader.Compiler { return d.compiler }

// Submissions returns the number of command buffers submitted.
func (d *Device) Submissions() uint64 { return d.submissions.Load() }

// CanUseMSAA reports whether the sample count limit is at least 4.
func (d *Device) CanUseMSAA() bool { return d.cfg.MaxSampleCount >= 4 }

// BufferAlignment returns the uniform offset alignment.
func (d *Device) BufferAlignment() uint32 { return d.cfg.UniformAlignment }

// MaxTextureSize returns the largest texture dimension.
func (d *Device) MaxTextureSize() uint32 { return d.cfg.MaxTextureSize }

func (d *Device) checkOpen() error {
	if d.closed.Load() {
		return gpu.ErrDeviceClosed
	}
	return nil
}

// CreateBuffer returns an empty buffer.
func (d *Device) CreateBuffer(usage gpu.BufferUsage) (gpu.Buffer, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	return &Buffer{usage: usage}, nil
}

// CreateTexture allocates the texel storage of every mip level.
func (d *Device) CreateTexture(desc *gpu.TextureDescriptor) (gpu.Texture, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	t, err := d.newTexture(desc)
	if err != nil {
		slogger().Error("software: create texture failed", "err", err)
		return nil, err
	}
	return t, nil
}

// CreateSampler returns the device's sampler for desc.
func (d *Device) CreateSampler(desc *gpu.SamplerDescriptor) (gpu.Sampler, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	if desc == nil {
		return nil, fmt.Errorf("%w: nil sampler descriptor", gpu.ErrInvalidDescriptor)
	}
	d.samplerMu.Lock()
	defer d.samplerMu.Unlock()
	if s, ok := d.samplers[*desc]; ok {
		return s, nil
	}
	s := &Sampler{desc: *desc}
	d.samplers[*desc] = s
	return s, nil
}

// CreateShaderFunction compiles or validates the function's module for its
// reflection.
func (d *Device) CreateShaderFunction(desc *gpu.ShaderFunctionDescriptor) (gpu.ShaderFunction, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	f, err := d.newShaderFunction(desc)
	if err != nil {
		slogger().Error("software: create shader function failed", "err", err)
		return nil, err
	}
	return f, nil
}

// CreateRenderPipeline validates desc and snapshots it.
func (d *Device) CreateRenderPipeline(desc *gpu.RenderPipelineDescriptor) (gpu.RenderPipeline, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	p, err := newRenderPipeline(desc)
	if err != nil {
		slogger().Error("software: create render pipeline failed", "err", err)
		return nil, err
	}
	return p, nil
}

// CreateCommandBuffer returns a command buffer with its own fence.
func (d *Device) CreateCommandBuffer() (gpu.CommandBuffer, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	return d.newCommandBuffer(newFence(true)), nil
}

// CreateFence creates a fence.
func (d *Device) CreateFence(signaled bool) (gpu.Fence, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	return newFence(signaled), nil
}

// NewFrameRing creates a frame ring. Submissions complete immediately, so
// BeginFrame never blocks on the GPU.
func (d *Device) NewFrameRing(framesInFlight int, timeout time.Duration) (gpu.FrameRing, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	return newFrameRing(d, framesInFlight, timeout), nil
}

// SaveCache reports false; the device has no native pipeline state to
// persist.
func (d *Device) SaveCache(path string) bool {
	slogger().Debug("software: no pipeline cache to save", "path", path)
	return false
}

// LoadCache reports false; see SaveCache.
func (d *Device) LoadCache(path string) bool {
	slogger().Debug("software: no pipeline cache to load", "path", path)
	return false
}

// Close marks the device closed. It is safe to call more than once.
func (d *Device) Close() {
	if !d.closed.CompareAndSwap(false, true) {
		return
	}
	d.samplerMu.Lock()
	clear(d.samplers)
	d.samplerMu.Unlock()
	slogger().Info("software: device closed", "submissions", d.submissions.Load())
}
