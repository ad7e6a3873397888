// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package vulkan

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpurender/gpu"
)

var bufferHandles atomic.Uint64

// Buffer is a host-written GPU buffer. Its native allocation grows on
// demand; Handle stays stable across reallocations and the native buffer
// is looked up when a descriptor set is built.
type Buffer struct {
	device *Device
	usage  gpu.BufferUsage
	handle uint64

	mu         sync.Mutex
	raw        hal.Buffer
	size       uint64
	generation uint64
	err        error
	destroyed  bool
}

func newBuffer(d *Device, usage gpu.BufferUsage) *Buffer {
	return &Buffer{device: d, usage: usage, handle: bufferHandles.Add(1)}
}

// Usage returns the usage the buffer was created with.
func (b *Buffer) Usage() gpu.BufferUsage { return b.usage }

// Handle returns the buffer's stable logical handle.
func (b *Buffer) Handle() uint64 { return b.handle }

// Size returns the size of the current allocation.
func (b *Buffer) Size() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Generation increments each time the native allocation is replaced.
func (b *Buffer) Generation() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.generation
}

// Err returns the error of the last UploadData.
func (b *Buffer) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// UploadData replaces the buffer contents with data. A smaller allocation
// is replaced by one of exactly len(data) bytes; a larger one is reused.
// A failed allocation keeps the previous allocation and contents.
func (b *Buffer) UploadData(data []byte) {
	if len(data) == 0 {
		slogger().Warn("vulkan: UploadData with empty data", "buffer", b.handle)
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		b.err = gpu.ErrDestroyed
		slogger().Warn("vulkan: UploadData on destroyed buffer", "buffer", b.handle)
		return
	}

	need := uint64(len(data))
	if b.raw == nil || b.size < need {
		if err := b.reallocate(need); err != nil {
			b.err = err
			slogger().Error("vulkan: buffer allocation failed", "buffer", b.handle, "size", need, "err", err)
			return
		}
	}

	// The queue write maps, copies and flushes the range in one step.
	b.device.queue.WriteBuffer(b.raw, 0, data)
	b.err = nil
}

// reallocate must be called with mu held.
func (b *Buffer) reallocate(size uint64) error {
	raw, err := b.device.hal.CreateBuffer(&hal.BufferDescriptor{
		Label: fmt.Sprintf("buffer-%d", b.handle),
		Size:  size,
		Usage: halBufferUsage(b.usage),
	})
	if err != nil {
		return fmt.Errorf("create buffer: %w", err)
	}
	if b.raw != nil {
		b.device.hal.DestroyBuffer(b.raw)
	}
	b.raw = raw
	b.size = size
	b.generation++
	slogger().Debug("vulkan: buffer reallocated", "buffer", b.handle, "size", size, "generation", b.generation)
	return nil
}

// readAccess returns the access masks of the buffer's consumers.
func (b *Buffer) readAccess() AccessFlags {
	var a AccessFlags
	if b.usage.Has(gpu.BufferUsageVertex) {
		a |= AccessVertexAttributeRead
	}
	if b.usage.Has(gpu.BufferUsageIndex) {
		a |= AccessIndexRead
	}
	if b.usage.Has(gpu.BufferUsageUniform) {
		a |= AccessUniformRead
	}
	return a
}

// native returns the current native buffer, or nil before the first
// successful upload.
func (b *Buffer) native() hal.Buffer {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return nil
	}
	return b.raw
}

// Destroy releases the native allocation.
func (b *Buffer) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return
	}
	b.destroyed = true
	if b.raw != nil {
		b.device.hal.DestroyBuffer(b.raw)
		b.raw = nil
	}
	b.size = 0
}
