// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package vulkan

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpurender/gpu"
	"github.com/gogpu/gpurender/shader"
)

// DescriptorType is the kind of resource a descriptor slot holds.
type DescriptorType uint8

// Descriptor types.
const (
	DescriptorUniformBuffer DescriptorType = iota
	DescriptorSampledImage
	DescriptorSampler
	DescriptorCombinedImageSampler
)

func (t DescriptorType) String() string {
	switch t {
	case DescriptorUniformBuffer:
		return "UniformBuffer"
	case DescriptorSampledImage:
		return "SampledImage"
	case DescriptorSampler:
		return "Sampler"
	case DescriptorCombinedImageSampler:
		return "CombinedImageSampler"
	default:
		return fmt.Sprintf("DescriptorType(%d)", uint8(t))
	}
}

func (t DescriptorType) acceptsTexture() bool {
	return t == DescriptorSampledImage || t == DescriptorCombinedImageSampler
}

// DescriptorBinding is one slot of a descriptor set layout.
type DescriptorBinding struct {
	Binding    uint32
	Type       DescriptorType
	Count      uint32
	StageFlags gpu.ShaderStage
	// Size is the uniform block size, 0 for other types.
	Size uint64
}

// BindingsFromReflection derives the set 0 layout of a pipeline from the
// reflection of its stages. Bindings shared by stages are merged.
func BindingsFromReflection(refls ...*gpu.Reflection) []DescriptorBinding {
	var out []DescriptorBinding
	for _, rb := range shader.MergeReflection(refls...) {
		if rb.Set != 0 {
			slogger().Warn("vulkan: binding outside set 0 ignored", "set", rb.Set, "binding", rb.Binding, "name", rb.Name)
			continue
		}
		b := DescriptorBinding{Binding: rb.Binding, Count: 1, StageFlags: rb.Stages, Size: rb.Size}
		switch rb.Kind {
		case gpu.BindingUniformBuffer:
			b.Type = DescriptorUniformBuffer
		case gpu.BindingSampledTexture:
			b.Type = DescriptorSampledImage
		case gpu.BindingCombinedImageSampler:
			b.Type = DescriptorCombinedImageSampler
		case gpu.BindingSampler:
			b.Type = DescriptorSampler
		}
		out = append(out, b)
	}
	return out
}

// MergeBindings combines per-stage binding lists. Slots with the same
// binding number are merged: stage masks are OR'd and the larger size
// wins. The result is sorted by binding number.
func MergeBindings(lists ...[]DescriptorBinding) []DescriptorBinding {
	index := make(map[uint32]int)
	var out []DescriptorBinding
	for _, list := range lists {
		for _, b := range list {
			i, ok := index[b.Binding]
			if !ok {
				index[b.Binding] = len(out)
				out = append(out, b)
				continue
			}
			if out[i].Type != b.Type {
				slogger().Warn("vulkan: conflicting descriptor types",
					"binding", b.Binding, "have", out[i].Type, "got", b.Type)
			}
			out[i].StageFlags |= b.StageFlags
			out[i].Size = max(out[i].Size, b.Size)
			out[i].Count = max(out[i].Count, b.Count)
		}
	}
	slices.SortFunc(out, func(a, b DescriptorBinding) int { return cmp.Compare(a.Binding, b.Binding) })
	return out
}

// DescriptorSetLayout is an immutable set of descriptor slots.
type DescriptorSetLayout struct {
	raw       hal.BindGroupLayout
	bindings  []DescriptorBinding
	poolSizes map[DescriptorType]uint32
	signature string
}

// Bindings returns the slots sorted by binding number.
func (l *DescriptorSetLayout) Bindings() []DescriptorBinding { return l.bindings }

// PoolSizes returns how many descriptors of each type a set of this
// layout holds.
func (l *DescriptorSetLayout) PoolSizes() map[DescriptorType]uint32 { return l.poolSizes }

func (l *DescriptorSetLayout) binding(slot uint32) (DescriptorBinding, bool) {
	i, ok := slices.BinarySearchFunc(l.bindings, slot, func(b DescriptorBinding, s uint32) int {
		return cmp.Compare(b.Binding, s)
	})
	if !ok {
		return DescriptorBinding{}, false
	}
	return l.bindings[i], true
}

func layoutSignature(bindings []DescriptorBinding) string {
	var sb strings.Builder
	for _, b := range bindings {
		fmt.Fprintf(&sb, "%d:%d:%d:%d;", b.Binding, b.Type, b.Count, b.StageFlags)
	}
	return sb.String()
}

// DescriptorManager creates descriptor set layouts, sharing one layout per
// distinct binding list.
type DescriptorManager struct {
	device *Device

	mu      sync.Mutex
	layouts map[string]*DescriptorSetLayout
}

func newDescriptorManager(d *Device) *DescriptorManager {
	return &DescriptorManager{device: d, layouts: make(map[string]*DescriptorSetLayout)}
}

// CreateLayout returns the layout for bindings, creating it on first use.
func (m *DescriptorManager) CreateLayout(bindings []DescriptorBinding) (*DescriptorSetLayout, error) {
	sorted := MergeBindings(bindings)
	sig := layoutSignature(sorted)

	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.layouts[sig]; ok {
		return l, nil
	}

	entries := make([]gputypes.BindGroupLayoutEntry, 0, len(sorted))
	pool := make(map[DescriptorType]uint32)
	for _, b := range sorted {
		entries = append(entries, layoutEntry(b))
		pool[b.Type] += max(b.Count, 1)
	}
	raw, err := m.device.hal.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   "set_layout_" + sig,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("vulkan: create descriptor set layout: %w", err)
	}
	l := &DescriptorSetLayout{raw: raw, bindings: sorted, poolSizes: pool, signature: sig}
	m.layouts[sig] = l
	slogger().Debug("vulkan: descriptor set layout created", "bindings", len(sorted), "signature", sig)
	return l, nil
}

// Len returns the number of distinct layouts.
func (m *DescriptorManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.layouts)
}

func (m *DescriptorManager) destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for sig, l := range m.layouts {
		m.device.hal.DestroyBindGroupLayout(l.raw)
		delete(m.layouts, sig)
	}
}

// layoutEntry lowers one slot. The HAL has no combined image sampler, so
// such slots become sampled textures and take their sampler from a
// separate slot.
func layoutEntry(b DescriptorBinding) gputypes.BindGroupLayoutEntry {
	e := gputypes.BindGroupLayoutEntry{Binding: b.Binding}
	if b.StageFlags&gpu.ShaderStageVertex != 0 {
		e.Visibility |= gputypes.ShaderStageVertex
	}
	if b.StageFlags&gpu.ShaderStageFragment != 0 {
		e.Visibility |= gputypes.ShaderStageFragment
	}
	switch b.Type {
	case DescriptorUniformBuffer:
		e.Buffer = &gputypes.BufferBindingLayout{
			Type:           gputypes.BufferBindingTypeUniform,
			MinBindingSize: b.Size,
		}
	case DescriptorSampledImage, DescriptorCombinedImageSampler:
		e.Texture = &gputypes.TextureBindingLayout{
			SampleType:    gputypes.TextureSampleTypeFloat,
			ViewDimension: gputypes.TextureViewDimension2D,
		}
	case DescriptorSampler:
		e.Sampler = &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering}
	}
	return e
}

// =============================================================================
// Descriptor sets
// =============================================================================

type pendingBinding struct {
	buffer  *Buffer
	offset  uint64
	size    uint64
	texture *Texture
	sampler *Sampler
}

// DescriptorSetBuilder collects resources for one descriptor set and
// creates it in a single step. Buffers are resolved to their native
// allocation at Build time, so a buffer may be reallocated between binding
// and building.
type DescriptorSetBuilder struct {
	device  *Device
	layout  *DescriptorSetLayout
	align   uint64
	pending map[uint32]pendingBinding
}

// NewDescriptorSetBuilder returns a builder for sets of layout.
func (d *Device) NewDescriptorSetBuilder(layout *DescriptorSetLayout) *DescriptorSetBuilder {
	return &DescriptorSetBuilder{
		device:  d,
		layout:  layout,
		align:   uint64(max(d.cfg.UniformAlignment, 1)),
		pending: make(map[uint32]pendingBinding),
	}
}

func (b *DescriptorSetBuilder) slot(slot uint32, accept func(DescriptorType) bool) error {
	lb, ok := b.layout.binding(slot)
	if !ok {
		return fmt.Errorf("%w: slot %d", ErrBindingNotInLayout, slot)
	}
	if !accept(lb.Type) {
		return fmt.Errorf("%w: slot %d is %v", ErrBindingNotInLayout, slot, lb.Type)
	}
	return nil
}

// BindBuffer binds a uniform buffer range. offset is rounded up to the
// uniform alignment; size 0 binds to the end of the buffer.
func (b *DescriptorSetBuilder) BindBuffer(slot uint32, buf gpu.Buffer, offset, size uint64) error {
	if err := b.slot(slot, func(t DescriptorType) bool { return t == DescriptorUniformBuffer }); err != nil {
		return err
	}
	vb, ok := buf.(*Buffer)
	if !ok || vb == nil {
		return fmt.Errorf("%w: buffer for slot %d", ErrNilResource, slot)
	}
	offset = (offset + b.align - 1) / b.align * b.align
	b.pending[slot] = pendingBinding{buffer: vb, offset: offset, size: size}
	return nil
}

// BindTexture binds a texture. sampler is only used by combined slots and
// may be nil otherwise.
func (b *DescriptorSetBuilder) BindTexture(slot uint32, tex gpu.Texture, sampler gpu.Sampler) error {
	if err := b.slot(slot, DescriptorType.acceptsTexture); err != nil {
		return err
	}
	vt, ok := tex.(*Texture)
	if !ok || vt == nil {
		return fmt.Errorf("%w: texture for slot %d", ErrNilResource, slot)
	}
	var vs *Sampler
	if sampler != nil {
		if vs, ok = sampler.(*Sampler); !ok {
			return fmt.Errorf("%w: sampler for slot %d", ErrNilResource, slot)
		}
	}
	b.pending[slot] = pendingBinding{texture: vt, sampler: vs}
	return nil
}

// BindSampler binds a standalone sampler.
func (b *DescriptorSetBuilder) BindSampler(slot uint32, sampler gpu.Sampler) error {
	if err := b.slot(slot, func(t DescriptorType) bool { return t == DescriptorSampler }); err != nil {
		return err
	}
	vs, ok := sampler.(*Sampler)
	if !ok || vs == nil {
		return fmt.Errorf("%w: sampler for slot %d", ErrNilResource, slot)
	}
	b.pending[slot] = pendingBinding{sampler: vs}
	return nil
}

// Build creates the descriptor set. Every layout slot must be bound.
func (b *DescriptorSetBuilder) Build() (*DescriptorSet, error) {
	entries := make([]gputypes.BindGroupEntry, 0, len(b.layout.bindings))
	for _, lb := range b.layout.bindings {
		p, ok := b.pending[lb.Binding]
		if !ok {
			return nil, fmt.Errorf("%w: slot %d (%v) unbound", ErrDescriptorIncomplete, lb.Binding, lb.Type)
		}
		switch lb.Type {
		case DescriptorUniformBuffer:
			raw := p.buffer.native()
			if raw == nil {
				return nil, fmt.Errorf("%w: buffer for slot %d has no storage", ErrNilResource, lb.Binding)
			}
			size := p.size
			if total := p.buffer.Size(); size == 0 || p.offset+size > total {
				if p.offset >= total {
					return nil, fmt.Errorf("%w: slot %d offset %d beyond buffer size %d", gpu.ErrInvalidDescriptor, lb.Binding, p.offset, total)
				}
				size = total - p.offset
			}
			entries = append(entries, gputypes.BindGroupEntry{
				Binding:  lb.Binding,
				Resource: gputypes.BufferBinding{Buffer: raw.NativeHandle(), Offset: p.offset, Size: size},
			})
		case DescriptorSampledImage, DescriptorCombinedImageSampler:
			view := p.texture.nativeView()
			if view == nil {
				return nil, fmt.Errorf("%w: texture for slot %d destroyed", ErrNilResource, lb.Binding)
			}
			entries = append(entries, gputypes.BindGroupEntry{
				Binding:  lb.Binding,
				Resource: gputypes.TextureViewBinding{TextureView: view.NativeHandle()},
			})
		case DescriptorSampler:
			raw := p.sampler.native()
			if raw == nil {
				return nil, fmt.Errorf("%w: sampler for slot %d destroyed", ErrNilResource, lb.Binding)
			}
			entries = append(entries, gputypes.BindGroupEntry{
				Binding:  lb.Binding,
				Resource: gputypes.SamplerBinding{Sampler: raw.NativeHandle()},
			})
		}
	}

	raw, err := b.device.hal.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   "set_" + b.layout.signature,
		Layout:  b.layout.raw,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("vulkan: create descriptor set: %w", err)
	}
	return &DescriptorSet{device: b.device, layout: b.layout, raw: raw}, nil
}

// DescriptorSet is a built set of resource bindings.
type DescriptorSet struct {
	device *Device
	layout *DescriptorSetLayout
	raw    hal.BindGroup
}

// Layout returns the set's layout.
func (s *DescriptorSet) Layout() *DescriptorSetLayout { return s.layout }

// Destroy releases the set.
func (s *DescriptorSet) Destroy() {
	if s.raw != nil {
		s.device.hal.DestroyBindGroup(s.raw)
		s.raw = nil
	}
}
