// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package vulkan

import (
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/gpurender/gpu"
)

// frameSlot is the per-frame state of a FrameRing.
type frameSlot struct {
	fence *Fence
	cb    *CommandBuffer
	// acquired is signaled by the previous frame's submission and waited on
	// by this frame; rendered is signaled by this frame's submission.
	acquired *Semaphore
	rendered *Semaphore
	// submitted is set once the slot's fence has work to wait for.
	submitted bool
}

// FrameRing rotates framesInFlight command buffers. A slot's command
// buffer is reused only after the fence of its previous submission has
// signaled, so the CPU can record at most framesInFlight frames ahead of
// the GPU.
type FrameRing struct {
	device  *Device
	timeout time.Duration

	mu      sync.Mutex
	slots   []frameSlot
	current int
	active  bool
	frames  uint64
	closed  bool
}

var _ gpu.FrameRing = (*FrameRing)(nil)

func newFrameRing(d *Device, framesInFlight int, timeout time.Duration) (*FrameRing, error) {
	if framesInFlight <= 0 {
		framesInFlight = MaxFramesInFlight
	}
	r := &FrameRing{device: d, timeout: timeout, slots: make([]frameSlot, framesInFlight)}
	for i := range r.slots {
		fence, err := newFence(d.hal, true)
		if err != nil {
			r.release()
			return nil, fmt.Errorf("vulkan: create frame %d fence: %w", i, err)
		}
		cb, err := d.newCommandBuffer(SubmitModeAsync, fence)
		if err != nil {
			fence.Destroy()
			r.release()
			return nil, err
		}
		cb.SetLabel(fmt.Sprintf("frame_%d", i))
		r.slots[i] = frameSlot{fence: fence, cb: cb, acquired: NewSemaphore(), rendered: NewSemaphore()}
	}
	slogger().Debug("vulkan: frame ring created", "frames", framesInFlight, "timeout", timeout)
	return r, nil
}

// FramesInFlight returns the number of slots.
func (r *FrameRing) FramesInFlight() int { return len(r.slots) }

// Frames returns the number of frames submitted.
func (r *FrameRing) Frames() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// BeginFrame waits for the current slot's previous submission, resets its
// fence and command buffer and returns the buffer for recording.
func (r *FrameRing) BeginFrame() (gpu.CommandBuffer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, gpu.ErrDeviceClosed
	}
	if r.active {
		return nil, fmt.Errorf("vulkan: frame %d already begun", r.current)
	}
	slot := &r.slots[r.current]
	if slot.submitted && !slot.fence.Wait(r.timeout) {
		slogger().Warn("vulkan: frame fence timeout", "slot", r.current, "timeout", r.timeout)
		return nil, gpu.ErrFrameTimeout
	}
	slot.cb.Reset()
	if err := slot.fence.Reset(); err != nil {
		return nil, fmt.Errorf("vulkan: reset frame %d fence: %w", r.current, err)
	}
	if slot.acquired.SignalSerial() > 0 {
		slot.cb.WaitSemaphore(slot.acquired)
	}
	slot.cb.SignalSemaphore(slot.rendered)
	r.active = true
	return slot.cb, nil
}

// EndFrame submits the current frame without waiting and advances to the
// next slot.
func (r *FrameRing) EndFrame() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return fmt.Errorf("%w: EndFrame without BeginFrame", gpu.ErrNotRecording)
	}
	r.active = false
	slot := &r.slots[r.current]
	next := (r.current + 1) % len(r.slots)
	// The next frame is ordered after this one.
	slot.cb.SignalSemaphore(r.slots[next].acquired)
	ok := slot.cb.Submit()
	slot.submitted = ok
	r.current = next
	if !ok {
		return fmt.Errorf("%w: frame %q", ErrSubmit, slot.cb.Label())
	}
	r.frames++
	return nil
}

// Close waits for every in-flight frame and releases the ring.
func (r *FrameRing) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	for i := range r.slots {
		s := &r.slots[i]
		if s.submitted && s.fence != nil && !s.fence.Wait(r.device.cfg.SubmitTimeout) {
			slogger().Warn("vulkan: frame still in flight at close, leaking its fence", "slot", i)
			// The command buffer keeps its native buffer on Reset; the fence
			// must outlive it too.
			s.fence = nil
		}
	}
	r.release()
}

func (r *FrameRing) release() {
	for i := range r.slots {
		s := &r.slots[i]
		if s.cb != nil {
			s.cb.release()
			s.cb = nil
		}
		if s.fence != nil {
			s.fence.Destroy()
			s.fence = nil
		}
	}
}
