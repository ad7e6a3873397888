// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package vulkan

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	_ "github.com/gogpu/wgpu/hal/vulkan" // registers the Vulkan HAL backend

	"github.com/gogpu/gpurender/backend"
	"github.com/gogpu/gpurender/gpu"
	"github.com/gogpu/gpurender/shader"
)

// BackendName is the name the backend registers under.
const BackendName = backend.BackendVulkan

// Defaults.
const (
	// MaxFramesInFlight is the default number of frames the CPU may record
	// ahead of the GPU.
	MaxFramesInFlight = 2

	// DefaultFenceTimeout bounds the wait for a frame slot.
	DefaultFenceTimeout = 100 * time.Millisecond

	// DefaultSubmitTimeout bounds one-shot upload and readback submissions.
	DefaultSubmitTimeout = 5 * time.Second

	// DefaultUniformAlignment is the uniform buffer offset alignment used
	// when the caller does not configure one.
	DefaultUniformAlignment = 16
)

// AdapterPreference selects among enumerated adapters.
type AdapterPreference uint8

// Adapter preferences.
const (
	// PreferDiscrete picks a discrete GPU, then an integrated one.
	PreferDiscrete AdapterPreference = iota
	// PreferIntegrated picks an integrated GPU, then a discrete one.
	PreferIntegrated
)

// Config holds device settings.
type Config struct {
	AdapterPreference AdapterPreference
	// Validation validates SPIR-V headers before module creation.
	Validation       bool
	FenceTimeout     time.Duration
	SubmitTimeout    time.Duration
	UniformAlignment uint32
	// MaxSampleCount is the highest MSAA sample count offered to callers.
	MaxSampleCount uint32
	// Compiler is shared with other devices when set.
	Compiler *shader.Compiler

	halDevice hal.Device
	halQueue  hal.Queue
}

// DefaultConfig returns the default device settings.
func DefaultConfig() Config {
	return Config{
		AdapterPreference: PreferDiscrete,
		Validation:        true,
		FenceTimeout:      DefaultFenceTimeout,
		SubmitTimeout:     DefaultSubmitTimeout,
		UniformAlignment:  DefaultUniformAlignment,
		MaxSampleCount:    4,
	}
}

// Option configures a Device.
type Option func(*Config)

// WithHALDevice makes OpenDevice adopt an existing HAL device and queue
// instead of creating its own. The caller keeps ownership.
func WithHALDevice(device hal.Device, queue hal.Queue) Option {
	return func(c *Config) {
		c.halDevice = device
		c.halQueue = queue
	}
}

// WithAdapterPreference sets the adapter selection order.
func WithAdapterPreference(p AdapterPreference) Option {
	return func(c *Config) { c.AdapterPreference = p }
}

// WithValidation enables or disables SPIR-V header validation.
func WithValidation(enabled bool) Option {
	return func(c *Config) { c.Validation = enabled }
}

// WithFenceTimeout sets the bound on frame slot waits.
func WithFenceTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.FenceTimeout = d
		}
	}
}

// WithSubmitTimeout sets the bound on one-shot upload and readback
// submissions.
func WithSubmitTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.SubmitTimeout = d
		}
	}
}

// WithMinUniformAlignment sets the uniform buffer offset alignment. It
// must be a power of two.
func WithMinUniformAlignment(align uint32) Option {
	return func(c *Config) {
		if align != 0 && align&(align-1) == 0 {
			c.UniformAlignment = align
		}
	}
}

// WithShaderCompiler shares a shader compiler between devices.
func WithShaderCompiler(c *shader.Compiler) Option {
	return func(cfg *Config) { cfg.Compiler = c }
}

// AdapterInfo describes the adapter a device runs on.
type AdapterInfo struct {
	Name string
	// Discrete is true for discrete GPUs.
	Discrete bool
	// SurfaceFormat is the host surface format for provider devices,
	// TextureFormatInvalid otherwise.
	SurfaceFormat gpu.TextureFormat
}

// Device is the Vulkan implementation of gpu.Device on the gogpu HAL.
type Device struct {
	cfg      Config
	hal      hal.Device
	queue    hal.Queue
	instance hal.Instance
	owned    bool
	info     AdapterInfo
	limits   gputypes.Limits

	compiler    *shader.Compiler
	descriptors *DescriptorManager
	pipelines   *PipelineCache

	samplerMu sync.Mutex
	samplers  map[gpu.SamplerDescriptor]*Sampler

	ringMu sync.Mutex
	rings  []*FrameRing

	submitMu sync.Mutex
	serial   atomic.Uint64
	closed   atomic.Bool

	// retiring holds objects of submissions that outlived their wait; they
	// are released once their fence signals.
	retireMu sync.Mutex
	retiring []retiringSubmission
}

// retiringSubmission is a timed-out submission whose command buffer and
// resources the GPU may still be using.
type retiringSubmission struct {
	label   string
	fence   hal.Fence
	value   uint64
	release []func()
}

var _ gpu.Device = (*Device)(nil)
var _ gpu.PipelineCacheStore = (*Device)(nil)

// OpenDevice brings up a Vulkan device: HAL backend, instance, adapter
// selection, then device and queue.
func OpenDevice(opts ...Option) (*Device, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.halDevice != nil {
		return newDevice(cfg, cfg.halDevice, cfg.halQueue, AdapterInfo{Name: "external"})
	}

	halBackend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("%w: vulkan HAL backend not registered", ErrNoAdapter)
	}
	instance, err := halBackend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("vulkan: create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	selected := selectAdapter(adapters, cfg.AdapterPreference)
	if selected == nil {
		instance.Destroy()
		return nil, ErrNoAdapter
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("vulkan: open device: %w", err)
	}

	d, err := newDevice(cfg, openDev.Device, openDev.Queue, AdapterInfo{
		Name:     selected.Info.Name,
		Discrete: selected.Info.DeviceType == gputypes.DeviceTypeDiscreteGPU,
	})
	if err != nil {
		openDev.Device.Destroy()
		instance.Destroy()
		return nil, err
	}
	d.instance = instance
	d.owned = true
	slogger().Info("vulkan: device opened", "adapter", d.info.Name, "discrete", d.info.Discrete)
	return d, nil
}

// selectAdapter returns the preferred adapter, falling back to the first.
func selectAdapter(adapters []hal.ExposedAdapter, pref AdapterPreference) *hal.ExposedAdapter {
	if len(adapters) == 0 {
		return nil
	}
	order := []gputypes.DeviceType{gputypes.DeviceTypeDiscreteGPU, gputypes.DeviceTypeIntegratedGPU}
	if pref == PreferIntegrated {
		order[0], order[1] = order[1], order[0]
	}
	for _, want := range order {
		for i := range adapters {
			if adapters[i].Info.DeviceType == want {
				return &adapters[i]
			}
		}
	}
	return &adapters[0]
}

// NewDevice wraps an existing HAL device and queue. The caller keeps
// ownership of both; Close releases only objects created through the
// returned Device.
func NewDevice(device hal.Device, queue hal.Queue, opts ...Option) (*Device, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return newDevice(cfg, device, queue, AdapterInfo{Name: "external"})
}

// halProvider is implemented by gpucontext providers that expose their
// HAL objects.
type halProvider interface {
	HalDevice() any
	HalQueue() any
}

// NewDeviceFromProvider adopts the device of a host application. The
// provider must also expose HalDevice and HalQueue.
func NewDeviceFromProvider(p gpucontext.DeviceProvider, opts ...Option) (*Device, error) {
	hp, ok := p.(halProvider)
	if !ok {
		return nil, ErrNotHALProvider
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not a hal.Device", ErrNotHALProvider)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not a hal.Queue", ErrNotHALProvider)
	}
	d, err := NewDevice(device, queue, opts...)
	if err != nil {
		return nil, err
	}
	d.info.Name = "provider"
	d.info.SurfaceFormat = fromHALFormat(p.SurfaceFormat())
	return d, nil
}

// fromHALFormat maps a host surface format to the canonical format.
func fromHALFormat(f gputypes.TextureFormat) gpu.TextureFormat {
	return FromVkFormat(ColorTypeToVkFormat(surfaceColorType(f)))
}

// surfaceColorType returns the pixel layout of a host surface format.
func surfaceColorType(f gputypes.TextureFormat) ColorType {
	switch f {
	case gputypes.TextureFormatRGBA8Unorm:
		return ColorTypeRGBA
	case gputypes.TextureFormatBGRA8Unorm:
		return ColorTypeBGRA
	case gputypes.TextureFormatR8Unorm:
		return ColorTypeA8
	default:
		return ColorTypeUnknown
	}
}

func newDevice(cfg Config, device hal.Device, queue hal.Queue, info AdapterInfo) (*Device, error) {
	if device == nil || queue == nil {
		return nil, ErrNilHALDevice
	}
	compiler := cfg.Compiler
	if compiler == nil {
		compiler = shader.NewCompiler()
	}
	d := &Device{
		cfg:      cfg,
		hal:      device,
		queue:    queue,
		info:     info,
		limits:   gputypes.DefaultLimits(),
		compiler: compiler,
		samplers: make(map[gpu.SamplerDescriptor]*Sampler),
	}
	d.descriptors = newDescriptorManager(d)
	d.pipelines = newPipelineCache(d)
	return d, nil
}

// Backend returns "vulkan".
func (d *Device) Backend() string { return BackendName }

// Info returns the adapter description.
func (d *Device) Info() AdapterInfo { return d.info }

// Config returns the device settings.
func (d *Device) Config() Config { return d.cfg }

// HAL returns the underlying HAL device and queue.
func (d *Device) HAL() (hal.Device, hal.Queue) { return d.hal, d.queue }

// Compiler returns the device's shader compiler.
func (d *Device) Compiler() *shader.Compiler { return d.compiler }

// Descriptors returns the descriptor manager.
func (d *Device) Descriptors() *DescriptorManager { return d.descriptors }

// PipelineCache returns the render pipeline cache.
func (d *Device) PipelineCache() *PipelineCache { return d.pipelines }

// CanUseMSAA reports whether 4x multisampling is available.
func (d *Device) CanUseMSAA() bool { return d.cfg.MaxSampleCount >= 4 }

// BufferAlignment is the uniform buffer offset alignment.
func (d *Device) BufferAlignment() uint32 { return d.cfg.UniformAlignment }

// MaxTextureSize is the largest supported 2D texture dimension.
func (d *Device) MaxTextureSize() uint32 { return d.limits.MaxTextureDimension2D }

func (d *Device) checkOpen() error {
	if d.closed.Load() {
		return gpu.ErrDeviceClosed
	}
	return nil
}

// =============================================================================
// Factories
// =============================================================================

// CreateBuffer returns an empty buffer; storage is allocated on the first
// upload.
func (d *Device) CreateBuffer(usage gpu.BufferUsage) (gpu.Buffer, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	return newBuffer(d, usage), nil
}

// CreateTexture creates an image and its default view.
func (d *Device) CreateTexture(desc *gpu.TextureDescriptor) (gpu.Texture, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	t, err := d.newTexture(desc)
	if err != nil {
		slogger().Error("vulkan: create texture failed", "err", err)
		return nil, err
	}
	return t, nil
}

// CreateSampler returns the device's sampler for desc, creating it on
// first use.
func (d *Device) CreateSampler(desc *gpu.SamplerDescriptor) (gpu.Sampler, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	if desc == nil {
		return nil, fmt.Errorf("%w: nil sampler descriptor", gpu.ErrInvalidDescriptor)
	}
	s, err := d.sampler(*desc)
	if err != nil {
		slogger().Error("vulkan: create sampler failed", "err", err)
		return nil, err
	}
	return s, nil
}

// CreateShaderFunction compiles or adopts a shader and creates its module.
func (d *Device) CreateShaderFunction(desc *gpu.ShaderFunctionDescriptor) (gpu.ShaderFunction, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	f, err := d.newShaderFunction(desc)
	if err != nil {
		slogger().Error("vulkan: create shader function failed", "err", err)
		return nil, err
	}
	return f, nil
}

// CreateRenderPipeline returns a pipeline for desc. Equal descriptors share
// one cached pipeline.
func (d *Device) CreateRenderPipeline(desc *gpu.RenderPipelineDescriptor) (gpu.RenderPipeline, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	p, err := d.pipelines.GetOrCreatePipeline(desc)
	if err != nil {
		slogger().Error("vulkan: create render pipeline failed", "err", err)
		return nil, err
	}
	return p, nil
}

// CreateCommandBuffer returns a command buffer that waits for its own
// submission.
func (d *Device) CreateCommandBuffer() (gpu.CommandBuffer, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	cb, err := d.newCommandBuffer(SubmitModeSync, nil)
	if err != nil {
		return nil, err
	}
	return cb, nil
}

// CreateFence creates a fence, optionally already signaled.
func (d *Device) CreateFence(signaled bool) (gpu.Fence, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	f, err := newFence(d.hal, signaled)
	if err != nil {
		return nil, fmt.Errorf("vulkan: create fence: %w", err)
	}
	return f, nil
}

// NewFrameRing creates a ring of per-frame command buffers. timeout <= 0
// uses the configured fence timeout.
func (d *Device) NewFrameRing(framesInFlight int, timeout time.Duration) (gpu.FrameRing, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = d.cfg.FenceTimeout
	}
	r, err := newFrameRing(d, framesInFlight, timeout)
	if err != nil {
		return nil, err
	}
	d.ringMu.Lock()
	d.rings = append(d.rings, r)
	d.ringMu.Unlock()
	return r, nil
}

// =============================================================================
// Submission
// =============================================================================

// submit sends one command buffer to the queue, signaling fence at value.
// A nil cb submits an empty batch that only signals the fence. It returns
// the submission serial.
func (d *Device) submit(cb hal.CommandBuffer, fence hal.Fence, value uint64) (uint64, error) {
	var cbs []hal.CommandBuffer
	if cb != nil {
		cbs = []hal.CommandBuffer{cb}
	}
	d.submitMu.Lock()
	defer d.submitMu.Unlock()
	if err := d.queue.Submit(cbs, fence, value); err != nil {
		return 0, err
	}
	return d.serial.Add(1), nil
}

// errSubmitTimeout is returned when a one-shot submission does not
// complete within the submit timeout.
var errSubmitTimeout = errors.New("vulkan: submission timed out")

// oneShot records commands into a fresh encoder, submits them and waits
// for completion.
//
// inUse releases resources the recorded commands read, such as staging
// buffers. oneShot runs them only when the wait times out: the command
// buffer, its fence and inUse are then kept until the submission retires,
// and the caller must not free those resources itself. On every other
// return the caller still owns them.
func (d *Device) oneShot(label string, record func(enc hal.CommandEncoder) error, inUse ...func()) error {
	d.reclaim()

	enc, err := d.hal.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return fmt.Errorf("%w: create encoder: %w", ErrSubmit, err)
	}
	if err := enc.BeginEncoding(label); err != nil {
		return fmt.Errorf("%w: begin encoding: %w", ErrSubmit, err)
	}
	if err := record(enc); err != nil {
		enc.DiscardEncoding()
		return err
	}
	cb, err := enc.EndEncoding()
	if err != nil {
		enc.DiscardEncoding()
		return fmt.Errorf("%w: end encoding: %w", ErrSubmit, err)
	}

	fence, err := d.hal.CreateFence()
	if err != nil {
		d.hal.FreeCommandBuffer(cb)
		return fmt.Errorf("%w: create fence: %w", ErrSubmit, err)
	}
	free := func() {
		d.hal.FreeCommandBuffer(cb)
		d.hal.DestroyFence(fence)
	}

	if _, err := d.submit(cb, fence, 1); err != nil {
		free()
		return fmt.Errorf("%w: %w", ErrSubmit, err)
	}
	ok, err := d.hal.Wait(fence, 1, d.cfg.SubmitTimeout)
	if err == nil && !ok {
		d.retire(retiringSubmission{
			label:   label,
			fence:   fence,
			value:   1,
			release: append([]func(){free}, inUse...),
		})
		return fmt.Errorf("%w: %s after %v", errSubmitTimeout, label, d.cfg.SubmitTimeout)
	}
	free()
	if err != nil {
		return fmt.Errorf("%w: wait: %w", ErrSubmit, err)
	}
	return nil
}

// retire keeps a submission's objects until its fence signals.
func (d *Device) retire(s retiringSubmission) {
	d.retireMu.Lock()
	d.retiring = append(d.retiring, s)
	n := len(d.retiring)
	d.retireMu.Unlock()
	slogger().Warn("vulkan: submission still in flight, release deferred", "label", s.label, "retiring", n)
}

// reclaim releases the objects of retired submissions whose fence has
// signaled.
func (d *Device) reclaim() {
	d.retireMu.Lock()
	var done []retiringSubmission
	kept := d.retiring[:0]
	for _, s := range d.retiring {
		if ok, err := d.hal.Wait(s.fence, s.value, 0); ok && err == nil {
			done = append(done, s)
			continue
		}
		kept = append(kept, s)
	}
	clear(d.retiring[len(kept):])
	d.retiring = kept
	d.retireMu.Unlock()

	for _, s := range done {
		for _, release := range s.release {
			release()
		}
	}
}

// retiringCount returns the number of submissions awaiting release.
func (d *Device) retiringCount() int {
	d.retireMu.Lock()
	defer d.retireMu.Unlock()
	return len(d.retiring)
}

// waitIdle waits for all submitted work by submitting an empty batch that
// signals a fresh fence.
func (d *Device) waitIdle() bool {
	fence, err := d.hal.CreateFence()
	if err != nil {
		return false
	}
	defer d.hal.DestroyFence(fence)
	if _, err := d.submit(nil, fence, 1); err != nil {
		return false
	}
	ok, err := d.hal.Wait(fence, 1, d.cfg.SubmitTimeout)
	return ok && err == nil
}

// releaseRetired releases every retiring submission once the queue is
// idle. When the queue does not drain, the objects are leaked rather than
// freed under the GPU.
func (d *Device) releaseRetired() {
	if d.retiringCount() == 0 {
		return
	}
	if !d.waitIdle() {
		d.retireMu.Lock()
		n := len(d.retiring)
		d.retiring = nil
		d.retireMu.Unlock()
		slogger().Warn("vulkan: queue not idle at close, leaking in-flight submissions", "count", n)
		return
	}
	d.retireMu.Lock()
	all := d.retiring
	d.retiring = nil
	d.retireMu.Unlock()
	for _, s := range all {
		for _, release := range s.release {
			release()
		}
	}
}

// =============================================================================
// Pipeline cache persistence
// =============================================================================

// SaveCache writes the pipeline cache to path.
func (d *Device) SaveCache(path string) bool { return d.pipelines.SaveCache(path) }

// LoadCache reads a pipeline cache written by SaveCache.
func (d *Device) LoadCache(path string) bool { return d.pipelines.LoadCache(path) }

// Close closes every frame ring, releases device-owned objects and, for
// devices opened by OpenDevice, the HAL device and instance.
func (d *Device) Close() {
	if !d.closed.CompareAndSwap(false, true) {
		return
	}

	d.ringMu.Lock()
	rings := d.rings
	d.rings = nil
	d.ringMu.Unlock()
	for _, r := range rings {
		r.Close()
	}
	d.releaseRetired()

	d.pipelines.destroy()
	d.descriptors.destroy()

	d.samplerMu.Lock()
	for desc, s := range d.samplers {
		s.destroy()
		delete(d.samplers, desc)
	}
	d.samplerMu.Unlock()

	if d.owned {
		d.hal.Destroy()
		if d.instance != nil {
			d.instance.Destroy()
		}
	}
	slogger().Info("vulkan: device closed", "adapter", d.info.Name, "submissions", d.serial.Load())
}
