// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package vulkan

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpurender/gpu"
)

// DynamicState is pipeline state set while encoding instead of at
// creation.
type DynamicState uint8

// Dynamic states.
const (
	DynamicViewport DynamicState = iota
	DynamicScissor
	DynamicStencilReference
)

func (s DynamicState) String() string {
	switch s {
	case DynamicViewport:
		return "Viewport"
	case DynamicScissor:
		return "Scissor"
	case DynamicStencilReference:
		return "StencilReference"
	default:
		return fmt.Sprintf("DynamicState(%d)", uint8(s))
	}
}

// RenderPipeline is an immutable graphics pipeline with its descriptor set
// layout. Pipelines are created and shared by the PipelineCache.
type RenderPipeline struct {
	device         *Device
	desc           gpu.RenderPipelineDescriptor
	key            uint64
	setLayout      *DescriptorSetLayout
	pipelineLayout hal.PipelineLayout
	dynamic        []DynamicState
	stencil        bool

	mu  sync.Mutex
	raw hal.RenderPipeline
}

var _ gpu.RenderPipeline = (*RenderPipeline)(nil)

func shaderFunction(f gpu.ShaderFunction, stage gpu.ShaderStage) (*ShaderFunction, error) {
	sf, ok := f.(*ShaderFunction)
	if !ok || sf == nil {
		return nil, fmt.Errorf("%w: %v function is not a vulkan shader function", gpu.ErrInvalidDescriptor, stage)
	}
	if sf.Stage() != stage {
		return nil, fmt.Errorf("%w: %q is a %v function, want %v", gpu.ErrInvalidDescriptor, sf.Label(), sf.Stage(), stage)
	}
	if !sf.IsValid() {
		return nil, fmt.Errorf("%w: %v function %q", gpu.ErrDestroyed, stage, sf.Label())
	}
	return sf, nil
}

// pipelineFunctions returns the vertex function and the optional fragment
// function of desc.
func pipelineFunctions(desc *gpu.RenderPipelineDescriptor) (vs, fs *ShaderFunction, err error) {
	if desc.VertexFunction == nil {
		return nil, nil, fmt.Errorf("%w: pipeline %q has no vertex function", gpu.ErrInvalidDescriptor, desc.Label)
	}
	if vs, err = shaderFunction(desc.VertexFunction, gpu.ShaderStageVertex); err != nil {
		return nil, nil, err
	}
	if desc.FragmentFunction != nil {
		if fs, err = shaderFunction(desc.FragmentFunction, gpu.ShaderStageFragment); err != nil {
			return nil, nil, err
		}
	}
	return vs, fs, nil
}

func (d *Device) createRenderPipeline(desc *gpu.RenderPipelineDescriptor, key uint64) (*RenderPipeline, error) {
	vs, fs, err := pipelineFunctions(desc)
	if err != nil {
		return nil, err
	}
	if fs != nil && !desc.Target.Format.IsValid() {
		return nil, fmt.Errorf("%w: color target format %v", gpu.ErrUnsupportedFormat, desc.Target.Format)
	}

	// Layout from the merged reflection of both stages.
	refls := []*gpu.Reflection{vs.Reflection()}
	if fs != nil {
		refls = append(refls, fs.Reflection())
	}
	setLayout, err := d.descriptors.CreateLayout(BindingsFromReflection(refls...))
	if err != nil {
		return nil, err
	}
	pipelineLayout, err := d.hal.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            desc.Label + "_layout",
		BindGroupLayouts: []hal.BindGroupLayout{setLayout.raw},
	})
	if err != nil {
		return nil, fmt.Errorf("vulkan: create pipeline layout %q: %w", desc.Label, err)
	}

	buffers, err := vertexBufferLayouts(desc.Buffers)
	if err != nil {
		d.hal.DestroyPipelineLayout(pipelineLayout)
		return nil, fmt.Errorf("%w: pipeline %q: %w", gpu.ErrInvalidDescriptor, desc.Label, err)
	}

	halDesc := &hal.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: pipelineLayout,
		Vertex: hal.VertexState{
			Module:     vs.native(),
			EntryPoint: vs.EntryPoint(),
			Buffers:    buffers,
		},
		DepthStencil: depthStencilState(desc.DepthStencil),
		Multisample: gputypes.MultisampleState{
			Count: max(desc.SampleCount, 1),
			Mask:  0xFFFFFFFF,
		},
		Primitive: gputypes.PrimitiveState{
			Topology: halTopology(desc.Topology),
			CullMode: halCullMode(desc.CullMode),
		},
	}
	if fs != nil {
		halDesc.Fragment = &hal.FragmentState{
			Module:     fs.native(),
			EntryPoint: fs.EntryPoint(),
			Targets: []gputypes.ColorTargetState{{
				Format:    halTextureFormat(desc.Target.Format),
				Blend:     halBlendState(desc.Target.Blend),
				WriteMask: halWriteMask(desc.Target.WriteMask),
			}},
		}
	}

	raw, err := d.hal.CreateRenderPipeline(halDesc)
	if err != nil {
		d.hal.DestroyPipelineLayout(pipelineLayout)
		return nil, fmt.Errorf("vulkan: create render pipeline %q: %w", desc.Label, err)
	}

	stencil := desc.DepthStencil != nil && desc.DepthStencil.EnableStencil
	dynamic := []DynamicState{DynamicViewport, DynamicScissor}
	if stencil {
		dynamic = append(dynamic, DynamicStencilReference)
	}

	p := &RenderPipeline{
		device:         d,
		desc:           *desc,
		key:            key,
		setLayout:      setLayout,
		pipelineLayout: pipelineLayout,
		dynamic:        dynamic,
		stencil:        stencil,
		raw:            raw,
	}
	p.desc.Buffers = append([]gpu.VertexBufferLayout(nil), desc.Buffers...)
	if desc.DepthStencil != nil {
		ds := *desc.DepthStencil
		p.desc.DepthStencil = &ds
	}
	if desc.Target.Blend != nil {
		b := *desc.Target.Blend
		p.desc.Target.Blend = &b
	}

	slogger().Debug("vulkan: render pipeline created",
		"label", desc.Label,
		"bindings", len(setLayout.bindings),
		"buffers", len(buffers),
		"stencil", stencil,
		"samples", halDesc.Multisample.Count)
	return p, nil
}

func vertexBufferLayouts(layouts []gpu.VertexBufferLayout) ([]gputypes.VertexBufferLayout, error) {
	out := make([]gputypes.VertexBufferLayout, 0, len(layouts))
	for i, l := range layouts {
		attrs := make([]gputypes.VertexAttribute, 0, len(l.Attributes))
		for _, a := range l.Attributes {
			f, ok := halVertexFormat(a.Format)
			if !ok {
				return nil, fmt.Errorf("buffer %d location %d: invalid vertex format %d", i, a.ShaderLocation, a.Format)
			}
			attrs = append(attrs, gputypes.VertexAttribute{
				Format:         f,
				Offset:         a.Offset,
				ShaderLocation: a.ShaderLocation,
			})
		}
		out = append(out, gputypes.VertexBufferLayout{
			ArrayStride: l.ArrayStride,
			StepMode:    halStepMode(l.StepMode),
			Attributes:  attrs,
		})
	}
	return out, nil
}

func depthStencilState(ds *gpu.DepthStencilState) *hal.DepthStencilState {
	if ds == nil {
		return nil
	}
	out := &hal.DepthStencilState{
		Format:       halTextureFormat(ds.Format),
		DepthCompare: gputypes.CompareFunctionAlways,
		StencilFront: hal.StencilFaceState{
			Compare:     gputypes.CompareFunctionAlways,
			FailOp:      hal.StencilOperationKeep,
			DepthFailOp: hal.StencilOperationKeep,
			PassOp:      hal.StencilOperationKeep,
		},
	}
	out.StencilBack = out.StencilFront
	if ds.EnableDepth {
		out.DepthWriteEnabled = ds.DepthWriteEnabled
		out.DepthCompare = halCompare(ds.DepthCompare)
	}
	if ds.EnableStencil {
		out.StencilFront = stencilFace(ds.StencilFront)
		out.StencilBack = stencilFace(ds.StencilBack)
		out.StencilReadMask = ds.StencilReadMask
		out.StencilWriteMask = ds.StencilWriteMask
	}
	return out
}

func stencilFace(f gpu.StencilFaceState) hal.StencilFaceState {
	return hal.StencilFaceState{
		Compare:     halCompare(f.Compare),
		FailOp:      halStencilOp(f.FailOp),
		DepthFailOp: halStencilOp(f.DepthFailOp),
		PassOp:      halStencilOp(f.PassOp),
	}
}

// Label returns the debug label.
func (p *RenderPipeline) Label() string { return p.desc.Label }

// Key returns the pipeline cache key.
func (p *RenderPipeline) Key() uint64 { return p.key }

// Descriptor returns a copy-on-create snapshot of the descriptor.
func (p *RenderPipeline) Descriptor() *gpu.RenderPipelineDescriptor { return &p.desc }

// IsValid reports whether the native pipeline is alive.
func (p *RenderPipeline) IsValid() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.raw != nil
}

// HasStencilTesting reports whether draws must set a stencil reference.
func (p *RenderPipeline) HasStencilTesting() bool { return p.stencil }

// DynamicStates returns the states set while encoding.
func (p *RenderPipeline) DynamicStates() []DynamicState { return p.dynamic }

// Bindings returns the pipeline's descriptor slots.
func (p *RenderPipeline) Bindings() []DescriptorBinding { return p.setLayout.Bindings() }

// SetLayout returns the pipeline's descriptor set layout.
func (p *RenderPipeline) SetLayout() *DescriptorSetLayout { return p.setLayout }

// NewDescriptorSet returns a builder for a set matching the pipeline's
// layout.
func (p *RenderPipeline) NewDescriptorSet() *DescriptorSetBuilder {
	return p.device.NewDescriptorSetBuilder(p.setLayout)
}

func (p *RenderPipeline) native() hal.RenderPipeline {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.raw
}

func (p *RenderPipeline) destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.raw != nil {
		p.device.hal.DestroyRenderPipeline(p.raw)
		p.raw = nil
	}
	if p.pipelineLayout != nil {
		p.device.hal.DestroyPipelineLayout(p.pipelineLayout)
		p.pipelineLayout = nil
	}
}
