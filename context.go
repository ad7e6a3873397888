package gpurender

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/gpurender/backend"
	_ "github.com/gogpu/gpurender/backend/software" // always available
	"github.com/gogpu/gpurender/gpu"
	"github.com/gogpu/gpurender/hwkey"
	"github.com/gogpu/gpurender/hwpipeline"
)

// Errors returned by Context.
var (
	// ErrClosed is returned by operations on a closed context.
	ErrClosed = errors.New("gpurender: context closed")

	// ErrFrameInProgress is returned by BeginFrame while a frame is open.
	ErrFrameInProgress = errors.New("gpurender: frame already begun")

	// ErrNoFrame is returned by EndFrame without a matching BeginFrame.
	ErrNoFrame = errors.New("gpurender: no frame begun")

	// ErrProviderUnsupported is returned for WithDeviceProvider in builds
	// without a GPU backend.
	ErrProviderUnsupported = errors.New("gpurender: device provider needs a GPU backend")
)

// providerDevice adopts a host device. It is set by the GPU backend glue
// and nil in nogpu builds.
var providerDevice func(p gpucontext.DeviceProvider, cfg *config) (gpu.Device, error)

// Context owns a device, its frames in flight and the pipeline library
// draws are built against.
//
// Context is safe for concurrent use, but frames must be begun and ended
// from one goroutine at a time.
type Context struct {
	cfg    config
	device gpu.Device
	// ownsDevice is false for devices passed with WithDevice.
	ownsDevice bool
	ring       gpu.FrameRing
	pipelines  *hwpipeline.Lib

	mu     sync.Mutex
	frame  gpu.CommandBuffer
	frames uint64
	closed bool
}

// NewContext opens a device and prepares frames in flight.
//
// The device is, in order of precedence: the one passed with WithDevice,
// the host device of WithDeviceProvider, the backend named by WithBackend,
// or the best registered backend.
func NewContext(opts ...Option) (*Context, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger != nil {
		SetLogger(cfg.logger)
	}

	dev, owned, err := openDevice(&cfg)
	if err != nil {
		return nil, err
	}
	c := &Context{cfg: cfg, device: dev, ownsDevice: owned}

	if cfg.cachePath != "" {
		if store, ok := dev.(gpu.PipelineCacheStore); ok && store.LoadCache(cfg.cachePath) {
			Logger().Info("gpurender: pipeline cache loaded", "path", cfg.cachePath)
		}
	}

	ring, err := dev.NewFrameRing(cfg.framesInFlight, cfg.fenceTimeout)
	if err != nil {
		if owned {
			dev.Close()
		}
		return nil, fmt.Errorf("gpurender: create frame ring: %w", err)
	}
	c.ring = ring

	var libOpts []hwpipeline.Option
	if cfg.generator != nil {
		libOpts = append(libOpts, hwpipeline.WithShaderGenerator(cfg.generator))
	}
	c.pipelines = hwpipeline.New(dev, libOpts...)

	Logger().Info("gpurender: context created",
		"backend", dev.Backend(),
		"framesInFlight", ring.FramesInFlight(),
		"msaa", dev.CanUseMSAA())
	return c, nil
}

func openDevice(cfg *config) (gpu.Device, bool, error) {
	switch {
	case cfg.device != nil:
		return cfg.device, false, nil
	case cfg.provider != nil:
		if providerDevice == nil {
			return nil, false, ErrProviderUnsupported
		}
		d, err := providerDevice(cfg.provider, cfg)
		if err != nil {
			return nil, false, fmt.Errorf("gpurender: adopt provider device: %w", err)
		}
		return d, true, nil
	case cfg.backend != "":
		d, err := backend.Open(cfg.backend)
		if err != nil {
			return nil, false, err
		}
		return d, true, nil
	default:
		d, err := backend.Default()
		if err != nil {
			return nil, false, err
		}
		return d, true, nil
	}
}

// Device returns the context's device.
func (c *Context) Device() gpu.Device { return c.device }

// Backend returns the name of the device's backend.
func (c *Context) Backend() string { return c.device.Backend() }

// Pipelines returns the pipeline library.
func (c *Context) Pipelines() *hwpipeline.Lib { return c.pipelines }

// GetPipeline returns the pipeline for key and desc from the library.
func (c *Context) GetPipeline(key hwkey.Key, desc *hwpipeline.Descriptor) (gpu.RenderPipeline, error) {
	return c.pipelines.GetPipeline(key, desc)
}

// FramesInFlight returns the number of frame slots.
func (c *Context) FramesInFlight() int { return c.ring.FramesInFlight() }

// Frames returns the number of frames ended successfully.
func (c *Context) Frames() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames
}

// BeginFrame waits for the next frame slot and returns its command buffer.
// It returns gpu.ErrFrameTimeout when the GPU has not released the slot
// within the fence timeout; the caller may skip the frame and retry.
func (c *Context) BeginFrame() (gpu.CommandBuffer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if c.frame != nil {
		return nil, ErrFrameInProgress
	}
	cb, err := c.ring.BeginFrame()
	if err != nil {
		if errors.Is(err, gpu.ErrFrameTimeout) {
			Logger().Warn("gpurender: frame slot busy", "timeout", c.cfg.fenceTimeout)
		}
		return nil, err
	}
	c.frame = cb
	return cb, nil
}

// EndFrame submits the frame begun by BeginFrame.
func (c *Context) EndFrame() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.frame == nil {
		return ErrNoFrame
	}
	c.frame = nil
	if err := c.ring.EndFrame(); err != nil {
		return err
	}
	c.frames++
	return nil
}

// Close waits for in-flight frames, saves the pipeline cache when one is
// configured and releases the device if the context opened it. It is safe
// to call more than once.
func (c *Context) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.frame = nil
	frames := c.frames
	c.mu.Unlock()

	c.ring.Close()
	c.pipelines.Close()
	if c.cfg.cachePath != "" {
		if store, ok := c.device.(gpu.PipelineCacheStore); ok && store.SaveCache(c.cfg.cachePath) {
			Logger().Info("gpurender: pipeline cache saved", "path", c.cfg.cachePath)
		}
	}
	if c.ownsDevice {
		c.device.Close()
	}
	Logger().Info("gpurender: context closed", "frames", frames)
}
