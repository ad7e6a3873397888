package gpurender

import (
	"log/slog"
	"time"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/gpurender/gpu"
	"github.com/gogpu/gpurender/hwpipeline"
)

// Defaults.
const (
	// DefaultFramesInFlight is the number of frames the CPU may record
	// ahead of the GPU.
	DefaultFramesInFlight = 2
	// DefaultFenceTimeout bounds the wait for a frame slot.
	DefaultFenceTimeout = 100 * time.Millisecond
)

// config holds the settings applied by Options.
type config struct {
	backend        string
	framesInFlight int
	fenceTimeout   time.Duration
	cachePath      string
	provider       gpucontext.DeviceProvider
	device         gpu.Device
	logger         *slog.Logger
	generator      hwpipeline.ShaderGenerator
}

func defaultConfig() config {
	return config{
		framesInFlight: DefaultFramesInFlight,
		fenceTimeout:   DefaultFenceTimeout,
	}
}

// Option configures a Context.
//
// Example:
//
//	ctx, err := gpurender.NewContext(
//	    gpurender.WithBackend("vulkan"),
//	    gpurender.WithPipelineCachePath(filepath.Join(cacheDir, "pipelines.bin")),
//	)
type Option func(*config)

// WithBackend selects a registered backend by name ("vulkan", "software").
// Without it the best available backend is opened.
func WithBackend(name string) Option {
	return func(c *config) { c.backend = name }
}

// WithFramesInFlight sets how many frames may be recorded ahead of the GPU.
// Values below 1 are ignored.
func WithFramesInFlight(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.framesInFlight = n
		}
	}
}

// WithFenceTimeout bounds how long BeginFrame waits for a frame slot.
// Non-positive values are ignored.
func WithFenceTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.fenceTimeout = d
		}
	}
}

// WithPipelineCachePath enables the persistent pipeline cache: it is
// loaded when the context opens and saved when it closes. Backends that
// cannot persist pipelines ignore it.
func WithPipelineCachePath(path string) Option {
	return func(c *config) { c.cachePath = path }
}

// WithDeviceProvider adopts the GPU device of a host application instead
// of opening one. The provider must expose its HAL device and queue.
func WithDeviceProvider(p gpucontext.DeviceProvider) Option {
	return func(c *config) { c.provider = p }
}

// WithDevice uses an already opened device. The context does not close it.
func WithDevice(d gpu.Device) Option {
	return func(c *config) { c.device = d }
}

// WithLogger sets the package logger while the context is created. It is
// equivalent to calling SetLogger before NewContext.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithShaderGenerator sets the generator the pipeline library uses to
// produce shader code for pipeline keys.
func WithShaderGenerator(g hwpipeline.ShaderGenerator) Option {
	return func(c *config) { c.generator = g }
}
