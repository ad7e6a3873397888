// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package vulkan implements the gpu device contracts on the gogpu/wgpu HAL
// with its Vulkan backend.
//
// # Resources
//
// Buffers grow on upload and keep a stable handle across reallocation.
// Textures are uploaded through a staging buffer bracketed by layout
// transitions, and may be read back. Samplers are shared per descriptor.
// Shader functions are compiled from WGSL through the shader package, or
// taken as raw SPIR-V, and carry their reflection.
//
// # Pipelines
//
// A render pipeline derives its descriptor set layout from the merged
// reflection of its shader functions. Pipelines are owned by the device's
// PipelineCache, which returns one shared pipeline per distinct
// descriptor and can persist compiled modules between runs:
//
//	dev, err := vulkan.OpenDevice()
//	if err != nil {
//		return err
//	}
//	defer dev.Close()
//	dev.LoadCache(path)
//	defer dev.SaveCache(path)
//
// # Recording
//
// A CommandBuffer moves from Idle to Recording on its first pass and to
// Submitted on Submit. Render passes collect gpu.Command values and record
// them in EncodeCommands. Synchronous command buffers wait for the GPU on
// Submit; the FrameRing hands out asynchronous ones whose reuse is gated
// by per-frame fences.
//
// The HAL tracks image state by usage, so the ImageLayout values kept by
// this package are lowered to usage transitions when barriers are
// recorded.
package vulkan
