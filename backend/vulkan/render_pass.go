// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package vulkan

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpurender/gpu"
)

// RenderPassStats counts the work of the last EncodeCommands call.
type RenderPassStats struct {
	Commands       int
	Draws          int
	DescriptorSets int
	// Skipped counts commands dropped for missing or invalid state.
	Skipped int
}

// RenderPass collects draw commands for one attachment set and records
// them into the owning command buffer when EncodeCommands is called.
type RenderPass struct {
	gpu.CommandList

	cb   *CommandBuffer
	desc gpu.RenderPassDescriptor

	// native is built on the first encode and reused afterwards.
	native *hal.RenderPassDescriptor
	stats  RenderPassStats
}

var _ gpu.RenderPass = (*RenderPass)(nil)

// Descriptor returns the attachment set.
func (p *RenderPass) Descriptor() *gpu.RenderPassDescriptor { return &p.desc }

// Stats returns the counters of the last encode.
func (p *RenderPass) Stats() RenderPassStats { return p.stats }

func attachmentTexture(t gpu.Texture) *Texture {
	vt, _ := t.(*Texture)
	return vt
}

// attachments builds the HAL pass descriptor from the attachment set.
func (p *RenderPass) attachments(color *Texture) (*hal.RenderPassDescriptor, error) {
	if p.native != nil {
		return p.native, nil
	}
	view := color.nativeView()
	if view == nil {
		return nil, fmt.Errorf("%w: color attachment of %q", gpu.ErrDestroyed, p.desc.Label)
	}
	ca := p.desc.ColorAttachment
	color0 := hal.RenderPassColorAttachment{
		View:    view,
		LoadOp:  halLoadOp(ca.LoadOp),
		StoreOp: halStoreOp(ca.StoreOp),
		ClearValue: gputypes.Color{
			R: ca.ClearValue.R, G: ca.ClearValue.G, B: ca.ClearValue.B, A: ca.ClearValue.A,
		},
	}
	if resolve := attachmentTexture(ca.Resolve); resolve != nil {
		color0.ResolveTarget = resolve.nativeView()
	}
	desc := &hal.RenderPassDescriptor{
		Label:            p.desc.Label,
		ColorAttachments: []hal.RenderPassColorAttachment{color0},
	}

	// Depth and stencil share one attachment; the depth texture wins when
	// both are set.
	depth := attachmentTexture(p.desc.DepthAttachment.Texture)
	stencil := attachmentTexture(p.desc.StencilAttachment.Texture)
	if ds := depth; ds != nil || stencil != nil {
		if ds == nil {
			ds = stencil
		}
		dsView := ds.nativeView()
		if dsView == nil {
			return nil, fmt.Errorf("%w: depth/stencil attachment of %q", gpu.ErrDestroyed, p.desc.Label)
		}
		da, sa := p.desc.DepthAttachment, p.desc.StencilAttachment
		desc.DepthStencilAttachment = &hal.RenderPassDepthStencilAttachment{
			View:              dsView,
			DepthLoadOp:       halLoadOp(da.LoadOp),
			DepthStoreOp:      halStoreOp(da.StoreOp),
			DepthClearValue:   da.ClearValue,
			StencilLoadOp:     halLoadOp(sa.LoadOp),
			StencilStoreOp:    halStoreOp(sa.StoreOp),
			StencilClearValue: sa.ClearValue,
		}
		if depth == nil {
			desc.DepthStencilAttachment.DepthLoadOp = gputypes.LoadOpClear
			desc.DepthStencilAttachment.DepthStoreOp = gputypes.StoreOpDiscard
			desc.DepthStencilAttachment.DepthClearValue = 1
		}
	}
	p.native = desc
	return desc, nil
}

// EncodeCommands records every added command and clears the list. A pass
// with no commands or no color texture records nothing. viewport defaults
// to the full color attachment; scissor defaults to the full attachment.
func (p *RenderPass) EncodeCommands(viewport *gpu.Viewport, scissor *gpu.ScissorRect) {
	p.stats = RenderPassStats{}
	cmds := p.Commands()
	color := attachmentTexture(p.desc.ColorAttachment.Texture)
	if len(cmds) == 0 || color == nil {
		return
	}
	cb := p.cb
	if cb.state != gpu.CommandBufferRecording || cb.encoder == nil {
		slogger().Warn("vulkan: encode into command buffer that is not recording",
			"pass", p.desc.Label, "state", cb.state)
		return
	}
	desc, err := p.attachments(color)
	if err != nil {
		slogger().Error("vulkan: render pass attachments", "pass", p.desc.Label, "err", err)
		return
	}

	p.transitionAttachments(color)

	vp := gpu.Viewport{Width: float32(color.Width()), Height: float32(color.Height()), MaxDepth: 1}
	if viewport != nil {
		vp = *viewport
	}
	passScissor := gpu.ScissorRect{Width: color.Width(), Height: color.Height()}
	if scissor != nil && !scissor.IsEmpty() {
		passScissor = *scissor
	}

	rp := cb.encoder.BeginRenderPass(desc)
	rp.SetViewport(vp.X, vp.Y, vp.Width, vp.Height, vp.MinDepth, vp.MaxDepth)
	rp.SetScissorRect(passScissor.X, passScissor.Y, passScissor.Width, passScissor.Height)

	for _, cmd := range cmds {
		p.stats.Commands++
		if !p.encodeCommand(rp, cmd, passScissor) {
			p.stats.Skipped++
		}
	}
	rp.End()

	color.setLayout(ImageLayoutColorAttachmentOptimal)
	p.ClearCommands()
	slogger().Debug("vulkan: render pass encoded",
		"pass", p.desc.Label,
		"commands", p.stats.Commands,
		"draws", p.stats.Draws,
		"sets", p.stats.DescriptorSets,
		"skipped", p.stats.Skipped)
}

// transitionAttachments moves the attachments into their render layouts
// as one barrier batch.
func (p *RenderPass) transitionAttachments(color *Texture) {
	sm := &p.cb.sync
	if l := color.CurrentLayout(); l != ImageLayoutColorAttachmentOptimal {
		sm.AddImageBarrier(ImageTransitionBarrier(color, l, ImageLayoutColorAttachmentOptimal, AspectColor))
	}
	for _, t := range []gpu.Texture{p.desc.DepthAttachment.Texture, p.desc.StencilAttachment.Texture} {
		ds := attachmentTexture(t)
		if ds == nil {
			continue
		}
		if l := ds.CurrentLayout(); l != ImageLayoutDepthStencilAttachmentOptimal {
			sm.AddImageBarrier(ImageTransitionBarrier(ds, l, ImageLayoutDepthStencilAttachmentOptimal, AspectMask(ds.Format())))
			ds.setLayout(ImageLayoutDepthStencilAttachmentOptimal)
		}
	}
	sm.ExecuteBarriers(&halBarrierRecorder{encoder: p.cb.encoder})
	sm.Reset()
}

func (p *RenderPass) encodeCommand(rp hal.RenderPassEncoder, cmd *gpu.Command, passScissor gpu.ScissorRect) bool {
	pipeline, ok := cmd.Pipeline.(*RenderPipeline)
	if !ok || pipeline == nil {
		slogger().Warn("vulkan: draw without vulkan pipeline", "pass", p.desc.Label)
		return false
	}
	raw := pipeline.native()
	if raw == nil {
		slogger().Warn("vulkan: draw with destroyed pipeline", "pass", p.desc.Label, "pipeline", pipeline.Label())
		return false
	}
	vb, _ := cmd.VertexBuffer.Buffer.(*Buffer)
	ib, _ := cmd.IndexBuffer.Buffer.(*Buffer)
	if vb == nil || ib == nil || vb.native() == nil || ib.native() == nil {
		slogger().Warn("vulkan: draw without vertex or index buffer", "pass", p.desc.Label, "pipeline", pipeline.Label())
		return false
	}
	if cmd.IndexCount == 0 {
		return false
	}

	var set *DescriptorSet
	if len(pipeline.Bindings()) > 0 {
		var err error
		if set, err = p.buildSet(pipeline, cmd); err != nil {
			slogger().Warn("vulkan: descriptor set", "pass", p.desc.Label, "pipeline", pipeline.Label(), "err", err)
			return false
		}
	}

	rp.SetPipeline(raw)
	rp.SetVertexBuffer(0, vb.native(), cmd.VertexBuffer.Offset)
	rp.SetIndexBuffer(ib.native(), gputypes.IndexFormatUint32, cmd.IndexBuffer.Offset)
	if set != nil {
		rp.SetBindGroup(0, set.raw, nil)
		p.cb.sets = append(p.cb.sets, set)
		p.stats.DescriptorSets++
	}
	if !cmd.ScissorRect.IsEmpty() {
		s := cmd.ScissorRect
		rp.SetScissorRect(s.X, s.Y, s.Width, s.Height)
	} else {
		rp.SetScissorRect(passScissor.X, passScissor.Y, passScissor.Width, passScissor.Height)
	}
	if pipeline.HasStencilTesting() {
		rp.SetStencilReference(cmd.StencilReference)
	}
	rp.DrawIndexed(cmd.IndexCount, cmd.Instances(), 0, 0, 0)
	p.stats.Draws++
	return true
}

// buildSet binds the command's resources by slot index. Combined slots
// take the texture's own sampler; standalone sampler slots may also be fed
// from a texture binding's sampler.
func (p *RenderPass) buildSet(pipeline *RenderPipeline, cmd *gpu.Command) (*DescriptorSet, error) {
	b := pipeline.NewDescriptorSet()
	for _, u := range cmd.UniformBindings {
		if err := b.BindBuffer(u.Index, u.Buffer.Buffer, u.Buffer.Offset, u.Buffer.Range); err != nil {
			return nil, fmt.Errorf("uniform %q: %w", u.Name, err)
		}
	}
	for _, ts := range cmd.TextureSamplerBindings {
		if err := b.BindTexture(ts.Index, ts.Texture, ts.Sampler); err != nil {
			return nil, fmt.Errorf("texture %q: %w", ts.Name, err)
		}
	}
	for _, s := range cmd.SamplerBindings {
		if err := b.BindSampler(s.Index, s.Sampler); err != nil {
			return nil, fmt.Errorf("sampler %q: %w", s.Name, err)
		}
	}
	return b.Build()
}
