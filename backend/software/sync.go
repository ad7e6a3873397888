package software

import (
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/gpurender/gpu"
)

// Fence is closed-channel signaling: Wait selects on done.
type Fence struct {
	mu   sync.Mutex
	done chan struct{}
}

var _ gpu.Fence = (*Fence)(nil)

func newFence(signaled bool) *Fence {
	f := &Fence{done: make(chan struct{})}
	if signaled {
		close(f.done)
	}
	return f
}

func (f *Fence) signal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	select {
	case <-f.done:
	default:
		close(f.done)
	}
}

func (f *Fence) channel() chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done
}

// Wait blocks up to timeout and reports whether the fence signaled.
func (f *Fence) Wait(timeout time.Duration) bool {
	done := f.channel()
	select {
	case <-done:
		return true
	default:
	}
	if timeout <= 0 {
		return false
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

// IsSignaled reports whether the fence signaled.
func (f *Fence) IsSignaled() bool { return f.Wait(0) }

// Reset returns the fence to unsignaled. Submissions complete inside
// Submit, so there is never pending work to fail on.
func (f *Fence) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	select {
	case <-f.done:
		f.done = make(chan struct{})
	default:
	}
	return nil
}

// Destroy is a no-op.
func (f *Fence) Destroy() {}

// FrameRing rotates framesInFlight command buffers with the same
// lifecycle checks as the GPU backends.
type FrameRing struct {
	timeout time.Duration

	mu      sync.Mutex
	slots   []*CommandBuffer
	current int
	active  bool
	frames  uint64
	closed  bool
}

var _ gpu.FrameRing = (*FrameRing)(nil)

func newFrameRing(d *Device, framesInFlight int, timeout time.Duration) *FrameRing {
	if framesInFlight <= 0 {
		framesInFlight = DefaultFramesInFlight
	}
	r := &FrameRing{timeout: timeout, slots: make([]*CommandBuffer, framesInFlight)}
	for i := range r.slots {
		cb := d.newCommandBuffer(newFence(true))
		cb.SetLabel(fmt.Sprintf("frame_%d", i))
		r.slots[i] = cb
	}
	return r
}

// FramesInFlight returns the number of slots.
func (r *FrameRing) FramesInFlight() int { return len(r.slots) }

// Frames returns the number of frames submitted.
func (r *FrameRing) Frames() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// BeginFrame resets and returns the current slot's command buffer.
func (r *FrameRing) BeginFrame() (gpu.CommandBuffer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, gpu.ErrDeviceClosed
	}
	if r.active {
		return nil, fmt.Errorf("software: frame %d already begun", r.current)
	}
	cb := r.slots[r.current]
	if !cb.fence.Wait(r.timeout) {
		return nil, gpu.ErrFrameTimeout
	}
	cb.Reset()
	if err := cb.fence.Reset(); err != nil {
		return nil, err
	}
	r.active = true
	return cb, nil
}

// EndFrame submits the current frame and advances.
func (r *FrameRing) EndFrame() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return fmt.Errorf("%w: EndFrame without BeginFrame", gpu.ErrNotRecording)
	}
	r.active = false
	cb := r.slots[r.current]
	r.current = (r.current + 1) % len(r.slots)
	if !cb.Submit() {
		// Leave the fence signaled so the slot is reusable.
		cb.fence.signal()
		return fmt.Errorf("software: frame %q submit failed", cb.Label())
	}
	r.frames++
	return nil
}

// Close releases the ring. It is safe to call more than once.
func (r *FrameRing) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}
