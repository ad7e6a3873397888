// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package vulkan

import (
	"fmt"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpurender/gpu"
)

// SubmitMode selects whether Submit waits for the GPU.
type SubmitMode uint8

// Submit modes.
const (
	// SubmitModeSync waits for completion; used for offscreen work.
	SubmitModeSync SubmitMode = iota
	// SubmitModeAsync returns after queueing; reuse is gated by the fence.
	SubmitModeAsync
)

func (m SubmitMode) String() string {
	switch m {
	case SubmitModeSync:
		return "sync"
	case SubmitModeAsync:
		return "async"
	default:
		return fmt.Sprintf("SubmitMode(%d)", uint8(m))
	}
}

// CommandBuffer records render and blit passes into one HAL command
// encoder and submits them with a fence signal.
//
// Lifecycle: Idle, then Recording on the first BeginRenderPass or
// BeginBlitPass, then Submitted after Submit, then Idle again after Reset.
type CommandBuffer struct {
	device    *Device
	mode      SubmitMode
	fence     *Fence
	ownsFence bool
	label     string

	state   gpu.CommandBufferState
	encoder hal.CommandEncoder
	done    hal.CommandBuffer
	serial  uint64

	sync    SyncManager
	passes  []*RenderPass
	sets    []*DescriptorSet
	waits   []*Semaphore
	signals []*Semaphore
}

var _ gpu.CommandBuffer = (*CommandBuffer)(nil)

// newCommandBuffer creates a command buffer signaling fence. A nil fence
// gives the buffer its own.
func (d *Device) newCommandBuffer(mode SubmitMode, fence *Fence) (*CommandBuffer, error) {
	cb := &CommandBuffer{device: d, mode: mode, fence: fence, label: "command_buffer"}
	if fence == nil {
		f, err := newFence(d.hal, true)
		if err != nil {
			return nil, fmt.Errorf("vulkan: create command buffer fence: %w", err)
		}
		cb.fence = f
		cb.ownsFence = true
	}
	return cb, nil
}

// Label returns the debug label.
func (cb *CommandBuffer) Label() string { return cb.label }

// SetLabel sets the debug label used for the next encoder.
func (cb *CommandBuffer) SetLabel(label string) { cb.label = label }

// State returns the lifecycle state.
func (cb *CommandBuffer) State() gpu.CommandBufferState { return cb.state }

// Mode returns the submit mode.
func (cb *CommandBuffer) Mode() SubmitMode { return cb.mode }

// Fence returns the fence signaled by Submit.
func (cb *CommandBuffer) Fence() *Fence { return cb.fence }

// Serial returns the queue serial of the last submission, 0 before the
// first.
func (cb *CommandBuffer) Serial() uint64 { return cb.serial }

// Barriers returns the barrier batch recorded before the next pass.
func (cb *CommandBuffer) Barriers() *SyncManager { return &cb.sync }

// WaitSemaphore orders this submission after the submission that signals
// s. Submissions share one queue, so the order holds once s was signaled
// by an earlier Submit.
func (cb *CommandBuffer) WaitSemaphore(s *Semaphore) {
	if s != nil {
		cb.waits = append(cb.waits, s)
	}
}

// SignalSemaphore makes this submission signal s.
func (cb *CommandBuffer) SignalSemaphore(s *Semaphore) {
	if s != nil {
		cb.signals = append(cb.signals, s)
	}
}

func (cb *CommandBuffer) begin() error {
	switch cb.state {
	case gpu.CommandBufferRecording:
		return nil
	case gpu.CommandBufferSubmitted:
		return fmt.Errorf("%w: %q was submitted and not reset", gpu.ErrNotRecording, cb.label)
	}
	if cb.device.closed.Load() {
		return gpu.ErrDeviceClosed
	}
	enc, err := cb.device.hal.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: cb.label})
	if err != nil {
		return fmt.Errorf("vulkan: create command encoder: %w", err)
	}
	if err := enc.BeginEncoding(cb.label); err != nil {
		return fmt.Errorf("vulkan: begin encoding: %w", err)
	}
	cb.encoder = enc
	cb.state = gpu.CommandBufferRecording
	return nil
}

// BeginRenderPass starts a render pass. Its commands are recorded when
// EncodeCommands is called.
func (cb *CommandBuffer) BeginRenderPass(desc *gpu.RenderPassDescriptor) (gpu.RenderPass, error) {
	if desc == nil {
		return nil, fmt.Errorf("%w: nil render pass descriptor", gpu.ErrInvalidDescriptor)
	}
	if err := cb.begin(); err != nil {
		return nil, err
	}
	rp := &RenderPass{cb: cb, desc: *desc}
	cb.passes = append(cb.passes, rp)
	return rp, nil
}

// BeginBlitPass starts a blit pass.
func (cb *CommandBuffer) BeginBlitPass() (gpu.BlitPass, error) {
	if err := cb.begin(); err != nil {
		return nil, err
	}
	return &BlitPass{cb: cb}, nil
}

// Submit ends recording and submits. A buffer with nothing recorded is
// submitted empty so its fence still signals. In sync mode Submit waits
// for completion up to the device submit timeout.
func (cb *CommandBuffer) Submit() bool {
	if cb.state == gpu.CommandBufferSubmitted {
		slogger().Warn("vulkan: command buffer submitted twice", "label", cb.label)
		return false
	}
	if err := cb.begin(); err != nil {
		slogger().Error("vulkan: submit failed", "label", cb.label, "err", err)
		return false
	}
	for _, s := range cb.waits {
		if s.SignalSerial() == 0 {
			slogger().Warn("vulkan: waiting on a semaphore no submission signals", "label", cb.label, "semaphore", s.ID())
		}
	}

	raw, err := cb.encoder.EndEncoding()
	cb.encoder = nil
	if err != nil {
		slogger().Error("vulkan: end encoding failed", "label", cb.label, "err", err)
		cb.state = gpu.CommandBufferIdle
		return false
	}

	value := cb.fence.signalValue()
	serial, err := cb.device.submit(raw, cb.fence.raw, value)
	if err != nil {
		cb.fence.unreserve()
		cb.device.hal.FreeCommandBuffer(raw)
		cb.state = gpu.CommandBufferIdle
		slogger().Error("vulkan: queue submit failed", "label", cb.label, "err", err)
		return false
	}
	cb.done = raw
	cb.serial = serial
	cb.state = gpu.CommandBufferSubmitted
	for _, s := range cb.signals {
		s.signal(serial)
	}

	slogger().Debug("vulkan: submitted", "label", cb.label, "serial", serial, "mode", cb.mode, "passes", len(cb.passes))

	if cb.mode == SubmitModeSync && !cb.fence.Wait(cb.device.cfg.SubmitTimeout) {
		slogger().Warn("vulkan: submission did not complete", "label", cb.label, "timeout", cb.device.cfg.SubmitTimeout)
		return false
	}
	return true
}

// Reset returns the buffer to Idle. Work in flight is waited for up to the
// device submit timeout before its resources are released; a submission
// that is still running after that keeps its native command buffer.
func (cb *CommandBuffer) Reset() {
	if cb.encoder != nil {
		cb.encoder.DiscardEncoding()
		cb.encoder = nil
	}
	if cb.done != nil {
		if cb.fence.Wait(cb.device.cfg.SubmitTimeout) {
			cb.device.hal.FreeCommandBuffer(cb.done)
		} else {
			// Freeing it now would pull it from under the GPU.
			slogger().Warn("vulkan: reset while submission in flight, leaking command buffer", "label", cb.label)
		}
		cb.done = nil
	}
	for _, s := range cb.sets {
		s.Destroy()
	}
	cb.sets = cb.sets[:0]
	cb.passes = cb.passes[:0]
	cb.waits = cb.waits[:0]
	cb.signals = cb.signals[:0]
	cb.sync.Reset()
	cb.state = gpu.CommandBufferIdle
}

// release frees everything the buffer owns.
func (cb *CommandBuffer) release() {
	cb.Reset()
	if cb.ownsFence {
		cb.fence.Destroy()
	}
}
