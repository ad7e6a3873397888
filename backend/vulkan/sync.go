// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package vulkan

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// =============================================================================
// Fence
// =============================================================================

// Fence orders the CPU after GPU work. It wraps a HAL timeline fence: every
// submission that signals the fence targets a fresh value, and the fence is
// signaled once the HAL fence reaches the current target.
type Fence struct {
	device hal.Device
	raw    hal.Fence

	mu        sync.Mutex
	last      uint64 // highest value reserved for a submission
	target    uint64 // value that makes the fence signaled
	completed uint64 // highest value observed as reached
	pending   bool   // target was submitted and not yet observed
}

func newFence(device hal.Device, signaled bool) (*Fence, error) {
	raw, err := device.CreateFence()
	if err != nil {
		return nil, err
	}
	f := &Fence{device: device, raw: raw}
	if !signaled {
		f.last, f.target = 1, 1
	}
	return f, nil
}

// signalValue reserves the value the next submission signals.
func (f *Fence) signalValue() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last++
	f.target = f.last
	f.pending = true
	return f.target
}

// unreserve rolls back a reservation whose submission failed.
func (f *Fence) unreserve() {
	f.mu.Lock()
	f.pending = false
	f.mu.Unlock()
}

// Wait blocks up to timeout and reports whether the fence signaled.
// An unsignaled fence with no submitted work returns false at once since
// nothing can signal it.
func (f *Fence) Wait(timeout time.Duration) bool {
	f.mu.Lock()
	target, done, pending := f.target, f.target <= f.completed, f.pending
	f.mu.Unlock()
	if done {
		return true
	}
	if !pending {
		return false
	}

	ok, err := f.device.Wait(f.raw, target, timeout)
	if err != nil {
		slogger().Warn("vulkan: fence wait failed", "value", target, "err", err)
		return false
	}
	if !ok {
		return false
	}
	f.markCompleted(target)
	return true
}

func (f *Fence) markCompleted(value uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if value > f.completed {
		f.completed = value
	}
	if f.target <= f.completed {
		f.pending = false
	}
}

// IsSignaled polls the fence without blocking.
func (f *Fence) IsSignaled() bool {
	return f.Wait(0)
}

// Reset returns the fence to unsignaled. It fails with ErrFencePending
// while submitted work has not completed.
func (f *Fence) Reset() error {
	if !f.IsSignaled() {
		f.mu.Lock()
		pending := f.pending
		f.mu.Unlock()
		if pending {
			return ErrFencePending
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last++
	f.target = f.last
	f.pending = false
	return nil
}

// Destroy releases the HAL fence.
func (f *Fence) Destroy() {
	f.mu.Lock()
	raw := f.raw
	f.raw = nil
	f.mu.Unlock()
	if raw != nil {
		f.device.DestroyFence(raw)
	}
}

// =============================================================================
// Semaphore
// =============================================================================

var semaphoreIDs atomic.Uint64

// Semaphore orders one submission after another on the GPU. The backend
// submits to a single HAL queue, so a wait is satisfied by any earlier
// submission that signaled the semaphore; the semaphore records that
// submission's serial for validation.
type Semaphore struct {
	id       uint64
	signaled atomic.Uint64
}

// NewSemaphore returns an unsignaled semaphore.
func NewSemaphore() *Semaphore {
	return &Semaphore{id: semaphoreIDs.Add(1)}
}

// ID returns the semaphore's process-unique id.
func (s *Semaphore) ID() uint64 { return s.id }

// SignalSerial returns the serial of the last submission that signaled s,
// or 0 when it was never signaled.
func (s *Semaphore) SignalSerial() uint64 { return s.signaled.Load() }

func (s *Semaphore) signal(serial uint64) { s.signaled.Store(serial) }

// =============================================================================
// Barriers
// =============================================================================

// MemoryBarrier is a global memory dependency.
type MemoryBarrier struct {
	SrcStage  PipelineStageFlags
	DstStage  PipelineStageFlags
	SrcAccess AccessFlags
	DstAccess AccessFlags
}

// ImageBarrier is a layout transition of mip levels of one texture.
type ImageBarrier struct {
	Texture    *Texture
	OldLayout  ImageLayout
	NewLayout  ImageLayout
	Aspect     ImageAspectFlags
	BaseMip    uint32
	LevelCount uint32
	SrcStage   PipelineStageFlags
	DstStage   PipelineStageFlags
	SrcAccess  AccessFlags
	DstAccess  AccessFlags
}

// BufferBarrier is a memory dependency on a buffer range.
type BufferBarrier struct {
	Buffer    *Buffer
	Offset    uint64
	Size      uint64
	SrcStage  PipelineStageFlags
	DstStage  PipelineStageFlags
	SrcAccess AccessFlags
	DstAccess AccessFlags
}

// BarrierBatch is the set of barriers issued by one pipeline barrier
// command. SrcStage and DstStage are the union of every member's stages.
type BarrierBatch struct {
	SrcStage PipelineStageFlags
	DstStage PipelineStageFlags
	Memory   []MemoryBarrier
	Images   []ImageBarrier
	Buffers  []BufferBarrier
}

// BarrierRecorder records a pipeline barrier into a command stream.
type BarrierRecorder interface {
	PipelineBarrier(batch *BarrierBatch)
}

// SyncManager batches barriers so a sequence of transitions is recorded as
// a single pipeline barrier.
type SyncManager struct {
	batch BarrierBatch
}

// AddMemoryBarrier queues a memory barrier.
func (m *SyncManager) AddMemoryBarrier(b MemoryBarrier) {
	m.batch.Memory = append(m.batch.Memory, b)
	m.batch.SrcStage |= b.SrcStage
	m.batch.DstStage |= b.DstStage
}

// AddImageBarrier queues an image layout transition.
func (m *SyncManager) AddImageBarrier(b ImageBarrier) {
	m.batch.Images = append(m.batch.Images, b)
	m.batch.SrcStage |= b.SrcStage
	m.batch.DstStage |= b.DstStage
}

// AddBufferBarrier queues a buffer barrier.
func (m *SyncManager) AddBufferBarrier(b BufferBarrier) {
	m.batch.Buffers = append(m.batch.Buffers, b)
	m.batch.SrcStage |= b.SrcStage
	m.batch.DstStage |= b.DstStage
}

// Pending returns the number of queued barriers.
func (m *SyncManager) Pending() int {
	return len(m.batch.Memory) + len(m.batch.Images) + len(m.batch.Buffers)
}

// StageMasks returns the accumulated source and destination stages.
func (m *SyncManager) StageMasks() (src, dst PipelineStageFlags) {
	return m.batch.SrcStage, m.batch.DstStage
}

// ExecuteBarriers records every queued barrier as one pipeline barrier.
// Nothing is recorded when the batch is empty. The batch is kept until
// Reset.
func (m *SyncManager) ExecuteBarriers(rec BarrierRecorder) {
	if m.Pending() == 0 || rec == nil {
		return
	}
	rec.PipelineBarrier(&m.batch)
}

// Reset drops every queued barrier and clears the stage masks.
func (m *SyncManager) Reset() {
	m.batch.Memory = m.batch.Memory[:0]
	m.batch.Images = m.batch.Images[:0]
	m.batch.Buffers = m.batch.Buffers[:0]
	m.batch.SrcStage, m.batch.DstStage = 0, 0
}

// ImageTransitionBarrier returns the barrier for a layout transition of
// mip level 0, with access masks and stages chosen from the layout pair.
// Unlisted pairs use a full memory dependency on all commands.
func ImageTransitionBarrier(tex *Texture, oldLayout, newLayout ImageLayout, aspect ImageAspectFlags) ImageBarrier {
	b := ImageBarrier{
		Texture:    tex,
		OldLayout:  oldLayout,
		NewLayout:  newLayout,
		Aspect:     aspect,
		LevelCount: 1,
	}
	switch {
	case oldLayout == ImageLayoutUndefined && newLayout == ImageLayoutTransferDstOptimal:
		b.DstAccess = AccessTransferWrite
		b.SrcStage = StageTopOfPipe
		b.DstStage = StageTransfer
	case oldLayout == ImageLayoutTransferDstOptimal && newLayout == ImageLayoutShaderReadOnlyOptimal:
		b.SrcAccess = AccessTransferWrite
		b.DstAccess = AccessShaderRead
		b.SrcStage = StageTransfer
		b.DstStage = StageFragmentShader
	case oldLayout == ImageLayoutUndefined && newLayout == ImageLayoutColorAttachmentOptimal:
		b.DstAccess = AccessColorAttachmentRead | AccessColorAttachmentWrite
		b.SrcStage = StageTopOfPipe
		b.DstStage = StageColorAttachmentOutput
	default:
		b.SrcAccess = AccessMemoryRead | AccessMemoryWrite
		b.DstAccess = AccessMemoryRead | AccessMemoryWrite
		b.SrcStage = StageAllCommands
		b.DstStage = StageAllCommands
	}
	return b
}

// BufferBarrierFor returns a barrier on a buffer range with stages derived
// from the access masks. Masks that imply no stage use all commands.
func BufferBarrierFor(buf *Buffer, srcAccess, dstAccess AccessFlags, offset, size uint64) BufferBarrier {
	b := BufferBarrier{
		Buffer:    buf,
		Offset:    offset,
		Size:      size,
		SrcAccess: srcAccess,
		DstAccess: dstAccess,
	}
	if srcAccess&(AccessVertexAttributeRead|AccessIndexRead) != 0 {
		b.SrcStage |= StageVertexInput
	}
	if srcAccess&AccessUniformRead != 0 {
		b.SrcStage |= StageVertexShader | StageFragmentShader
	}
	if srcAccess&AccessTransferWrite != 0 {
		b.SrcStage |= StageTransfer
	}
	if dstAccess&(AccessVertexAttributeRead|AccessIndexRead) != 0 {
		b.DstStage |= StageVertexInput
	}
	if dstAccess&AccessUniformRead != 0 {
		b.DstStage |= StageVertexShader | StageFragmentShader
	}
	if dstAccess&AccessTransferRead != 0 {
		b.DstStage |= StageTransfer
	}
	if b.SrcStage == 0 {
		b.SrcStage = StageAllCommands
	}
	if b.DstStage == 0 {
		b.DstStage = StageAllCommands
	}
	return b
}

// =============================================================================
// HAL lowering
// =============================================================================

// halBarrierRecorder lowers barrier batches onto a HAL command encoder.
// The HAL tracks images by usage rather than layout, so image barriers
// become usage transitions; buffer and memory barriers have no HAL
// counterpart because the HAL orders buffer access itself.
type halBarrierRecorder struct {
	encoder hal.CommandEncoder
	calls   int
}

func (r *halBarrierRecorder) PipelineBarrier(batch *BarrierBatch) {
	r.calls++
	barriers := make([]hal.TextureBarrier, 0, len(batch.Images))
	for i := range batch.Images {
		b := &batch.Images[i]
		if b.Texture == nil || b.Texture.raw == nil {
			continue
		}
		barriers = append(barriers, hal.TextureBarrier{
			Texture: b.Texture.raw,
			Usage: hal.TextureUsageTransition{
				OldUsage: layoutUsage(b.OldLayout),
				NewUsage: layoutUsage(b.NewLayout),
			},
		})
	}
	if len(barriers) > 0 {
		r.encoder.TransitionTextures(barriers)
	}
}

// layoutUsage maps an image layout to the HAL usage that implies it.
func layoutUsage(l ImageLayout) gputypes.TextureUsage {
	switch l {
	case ImageLayoutTransferSrcOptimal:
		return gputypes.TextureUsageCopySrc
	case ImageLayoutTransferDstOptimal:
		return gputypes.TextureUsageCopyDst
	case ImageLayoutShaderReadOnlyOptimal, ImageLayoutDepthStencilReadOnlyOptimal:
		return gputypes.TextureUsageTextureBinding
	case ImageLayoutColorAttachmentOptimal, ImageLayoutDepthStencilAttachmentOptimal, ImageLayoutPresentSrc:
		return gputypes.TextureUsageRenderAttachment
	case ImageLayoutGeneral:
		return gputypes.TextureUsageStorageBinding
	default:
		return 0
	}
}
