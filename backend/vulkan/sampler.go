// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package vulkan

import (
	"fmt"
	"sync"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpurender/gpu"
)

// Sampler is an immutable sampler shared by every holder of an equal
// descriptor. Destroy drops one reference; the native sampler is released
// with the last one.
type Sampler struct {
	device *Device
	desc   gpu.SamplerDescriptor

	mu   sync.Mutex
	raw  hal.Sampler
	refs int
}

var _ gpu.Sampler = (*Sampler)(nil)

// sampler returns the shared sampler for desc, adding a reference.
func (d *Device) sampler(desc gpu.SamplerDescriptor) (*Sampler, error) {
	d.samplerMu.Lock()
	defer d.samplerMu.Unlock()
	if s, ok := d.samplers[desc]; ok {
		s.mu.Lock()
		alive := s.raw != nil
		if alive {
			s.refs++
		}
		s.mu.Unlock()
		if alive {
			return s, nil
		}
	}

	raw, err := d.hal.CreateSampler(&hal.SamplerDescriptor{
		Label:        samplerLabel(desc),
		AddressModeU: halAddressMode(desc.AddressModeU),
		AddressModeV: halAddressMode(desc.AddressModeV),
		AddressModeW: halAddressMode(desc.AddressModeW),
		MagFilter:    halFilter(desc.MagFilter),
		MinFilter:    halFilter(desc.MinFilter),
		MipmapFilter: halMipmapFilter(desc.MipmapMode),
	})
	if err != nil {
		return nil, fmt.Errorf("vulkan: create sampler: %w", err)
	}
	// The device holds one reference until Close.
	s := &Sampler{device: d, desc: desc, raw: raw, refs: 2}
	d.samplers[desc] = s
	return s, nil
}

func samplerLabel(desc gpu.SamplerDescriptor) string {
	return fmt.Sprintf("sampler_%d%d%d_%d%d%d",
		desc.MagFilter, desc.MinFilter, desc.MipmapMode,
		desc.AddressModeU, desc.AddressModeV, desc.AddressModeW)
}

// Descriptor returns the sampler's descriptor.
func (s *Sampler) Descriptor() gpu.SamplerDescriptor { return s.desc }

func (s *Sampler) native() hal.Sampler {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.raw
}

// Destroy drops the caller's reference.
func (s *Sampler) Destroy() { s.release() }

func (s *Sampler) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refs == 0 {
		return
	}
	s.refs--
	if s.refs == 0 && s.raw != nil {
		s.device.hal.DestroySampler(s.raw)
		s.raw = nil
	}
}

// destroy releases the native sampler regardless of outstanding
// references. Used by Device.Close.
func (s *Sampler) destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs = 0
	if s.raw != nil {
		s.device.hal.DestroySampler(s.raw)
		s.raw = nil
	}
}
