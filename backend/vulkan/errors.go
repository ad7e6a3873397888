// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package vulkan

import "errors"

var (
	// ErrNoAdapter is returned by OpenDevice when no Vulkan adapter is found.
	ErrNoAdapter = errors.New("vulkan: no adapter available")

	// ErrNilHALDevice is returned by NewDevice without a device or queue.
	ErrNilHALDevice = errors.New("vulkan: nil HAL device or queue")

	// ErrNotHALProvider is returned when a gpucontext provider does not
	// expose HAL objects.
	ErrNotHALProvider = errors.New("vulkan: provider does not expose a HAL device")

	// ErrFencePending is returned by Fence.Reset while submitted work that
	// signals the fence has not completed.
	ErrFencePending = errors.New("vulkan: fence has pending work")

	// ErrBindingNotInLayout is returned when binding a slot the descriptor
	// set layout does not declare, or with the wrong resource kind.
	ErrBindingNotInLayout = errors.New("vulkan: binding not in layout")

	// ErrDescriptorIncomplete is returned by DescriptorSetBuilder.Build when
	// a layout slot has no resource.
	ErrDescriptorIncomplete = errors.New("vulkan: descriptor set incomplete")

	// ErrNilResource is returned when binding a nil or destroyed resource.
	ErrNilResource = errors.New("vulkan: nil resource")

	// ErrSubmit wraps encoding and queue submission failures.
	ErrSubmit = errors.New("vulkan: submit failed")

	// ErrInvalidCacheFile is returned when a pipeline cache file fails
	// header or checksum validation.
	ErrInvalidCacheFile = errors.New("vulkan: invalid pipeline cache file")
)
