package gpu

import "time"

// Device creates GPU resources for one backend. Devices are used from the
// rendering goroutine; resource factories are not required to be safe for
// concurrent use.
type Device interface {
	// Backend returns the registered backend name ("vulkan", "software").
	Backend() string

	CreateBuffer(usage BufferUsage) (Buffer, error)
	CreateTexture(desc *TextureDescriptor) (Texture, error)
	CreateSampler(desc *SamplerDescriptor) (Sampler, error)
	CreateShaderFunction(desc *ShaderFunctionDescriptor) (ShaderFunction, error)
	CreateRenderPipeline(desc *RenderPipelineDescriptor) (RenderPipeline, error)
	CreateCommandBuffer() (CommandBuffer, error)
	CreateFence(signaled bool) (Fence, error)

	// NewFrameRing creates a set of framesInFlight command buffers gated by
	// per-frame fences.
	NewFrameRing(framesInFlight int, timeout time.Duration) (FrameRing, error)

	CanUseMSAA() bool
	BufferAlignment() uint32
	MaxTextureSize() uint32

	// Close waits for outstanding GPU work and releases every device-owned
	// object. Resources created by the device must not be used afterwards.
	Close()
}

// PipelineCacheStore is implemented by devices that can persist their
// native pipeline cache between runs. Both methods fail soft: a missing or
// corrupt file returns false and leaves the cache empty.
type PipelineCacheStore interface {
	SaveCache(path string) bool
	LoadCache(path string) bool
}

// Buffer is a GPU buffer whose contents are replaced by UploadData.
type Buffer interface {
	Usage() BufferUsage
	// Size is the size of the current allocation, 0 before the first upload.
	Size() uint64
	// UploadData copies data into the buffer, reallocating at exactly
	// len(data) bytes when the current allocation is smaller. Allocation
	// failures are logged, reported by Err, and leave the buffer unchanged.
	UploadData(data []byte)
	// Generation increments each time the native allocation is replaced.
	Generation() uint64
	// Err returns the error of the most recent UploadData, if any.
	Err() error
	Destroy()
}

// Texture is a 2D GPU image.
type Texture interface {
	Descriptor() TextureDescriptor
	Width() uint32
	Height() uint32
	Format() TextureFormat
	// UploadData writes a w×h region at (x, y) of mip level 0. data holds
	// tightly packed texels in the texture's canonical format.
	UploadData(x, y, w, h uint32, data []byte)
	// Bytes returns the memory footprint of the texture.
	Bytes() uint64
	// IsExternal reports whether the native image is owned elsewhere.
	IsExternal() bool
	Destroy()
}

// TextureReader is implemented by textures that support CPU readback.
type TextureReader interface {
	// ReadPixels returns the w×h region at (x, y) of mip level 0 as tightly
	// packed texels in the canonical format.
	ReadPixels(x, y, w, h uint32) ([]byte, error)
}

// Sampler is an immutable texture sampler.
type Sampler interface {
	Descriptor() SamplerDescriptor
	Destroy()
}

// ShaderFunction is one compiled shader entry point. Functions are shared
// across pipelines.
type ShaderFunction interface {
	Label() string
	Stage() ShaderStage
	EntryPoint() string
	// Reflection returns the function's resource interface, or nil when the
	// backend has none.
	Reflection() *Reflection
	IsValid() bool
	Destroy()
}

// RenderPipeline is an immutable compiled pipeline.
type RenderPipeline interface {
	Label() string
	IsValid() bool
	// HasStencilTesting reports whether draws must set a stencil reference.
	HasStencilTesting() bool
	Descriptor() *RenderPipelineDescriptor
}

// CommandBufferState is the lifecycle state of a command buffer.
type CommandBufferState uint8

// Command buffer states.
const (
	CommandBufferIdle CommandBufferState = iota
	CommandBufferRecording
	CommandBufferSubmitted
)

func (s CommandBufferState) String() string {
	switch s {
	case CommandBufferIdle:
		return "Idle"
	case CommandBufferRecording:
		return "Recording"
	case CommandBufferSubmitted:
		return "Submitted"
	default:
		return "Unknown"
	}
}

// CommandBuffer records render and blit passes for one submission.
type CommandBuffer interface {
	BeginRenderPass(desc *RenderPassDescriptor) (RenderPass, error)
	BeginBlitPass() (BlitPass, error)
	// Submit ends recording and submits to the device queue. It reports
	// false when encoding or submission failed.
	Submit() bool
	// Reset drops recorded passes and returns the buffer to Idle.
	Reset()
	State() CommandBufferState
	Label() string
	SetLabel(label string)
}

// RenderPass groups commands sharing one attachment set.
type RenderPass interface {
	Descriptor() *RenderPassDescriptor
	AddCommand(cmd *Command)
	Commands() []*Command
	// EncodeCommands records every added command. viewport defaults to the
	// full color attachment; scissor defaults to no scissor.
	EncodeCommands(viewport *Viewport, scissor *ScissorRect)
}

// BlitPass performs uploads outside a render pass. Operations complete
// before they return.
type BlitPass interface {
	UploadTextureData(tex Texture, x, y, w, h uint32, data []byte)
	UploadBufferData(buf Buffer, data []byte)
	End()
}

// Fence orders the CPU after GPU work.
type Fence interface {
	// Wait blocks up to timeout and reports whether the fence signaled.
	Wait(timeout time.Duration) bool
	// Reset returns the fence to unsignaled. It fails while GPU work that
	// signals the fence is still pending.
	Reset() error
	IsSignaled() bool
	Destroy()
}

// FrameRing hands out per-frame command buffers, reusing a frame's buffer
// only after the GPU finished it.
type FrameRing interface {
	// BeginFrame waits for the next frame slot and returns its reset
	// command buffer. It returns ErrFrameTimeout when the slot is still busy
	// after the ring's timeout.
	BeginFrame() (CommandBuffer, error)
	// EndFrame submits the current frame without waiting and advances.
	EndFrame() error
	FramesInFlight() int
	// Close waits for every in-flight frame and releases the ring.
	Close()
}
