package software

import (
	"fmt"

	"github.com/gogpu/gpurender/gpu"
)

// =============================================================================
// CommandBuffer
// =============================================================================

// CommandBuffer runs its passes eagerly: clears and uploads take effect
// while recording and Submit completes before it returns.
type CommandBuffer struct {
	device *Device
	fence  *Fence
	label  string
	state  gpu.CommandBufferState
	passes []*RenderPass
	serial uint64
}

var _ gpu.CommandBuffer = (*CommandBuffer)(nil)

func (d *Device) newCommandBuffer(fence *Fence) *CommandBuffer {
	return &CommandBuffer{device: d, fence: fence}
}

// Label returns the debug label.
func (cb *CommandBuffer) Label() string { return cb.label }

// SetLabel sets the debug label.
func (cb *CommandBuffer) SetLabel(label string) { cb.label = label }

// State returns the lifecycle state.
func (cb *CommandBuffer) State() gpu.CommandBufferState { return cb.state }

// Fence returns the fence signaled by Submit.
func (cb *CommandBuffer) Fence() *Fence { return cb.fence }

// Serial returns the device submission number of the last Submit, 0 before
// the first.
func (cb *CommandBuffer) Serial() uint64 { return cb.serial }

// Passes returns the render passes begun since the last Reset.
func (cb *CommandBuffer) Passes() []*RenderPass { return cb.passes }

func (cb *CommandBuffer) begin() error {
	switch cb.state {
	case gpu.CommandBufferRecording:
		return nil
	case gpu.CommandBufferSubmitted:
		return fmt.Errorf("%w: %q was submitted and not reset", gpu.ErrNotRecording, cb.label)
	}
	if err := cb.device.checkOpen(); err != nil {
		return err
	}
	cb.state = gpu.CommandBufferRecording
	return nil
}

// BeginRenderPass starts a render pass.
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

// Submit signals the fence and marks the buffer submitted.
func (cb *CommandBuffer) Submit() bool {
	if cb.state == gpu.CommandBufferSubmitted {
		slogger().Warn("software: command buffer submitted twice", "label", cb.label)
		return false
	}
	if err := cb.begin(); err != nil {
		slogger().Error("software: submit failed", "label", cb.label, "err", err)
		return false
	}
	cb.serial = cb.device.submissions.Add(1)
	cb.state = gpu.CommandBufferSubmitted
	cb.fence.signal()
	slogger().Debug("software: submitted", "label", cb.label, "serial", cb.serial, "passes", len(cb.passes))
	return true
}

// Reset drops recorded passes and returns the buffer to Idle.
func (cb *CommandBuffer) Reset() {
	cb.passes = cb.passes[:0]
	cb.state = gpu.CommandBufferIdle
}

// =============================================================================
// RenderPass
// =============================================================================

// RenderPassStats counts the work of the last EncodeCommands call.
type RenderPassStats struct {
	Commands int
	Draws    int
	// Skipped counts commands dropped for missing or invalid state.
	Skipped int
}

// RenderPass applies its attachment clears on the first encode and
// validates and counts every draw.
type RenderPass struct {
	gpu.CommandList

	cb      *CommandBuffer
	desc    gpu.RenderPassDescriptor
	cleared bool
	stats   RenderPassStats
	total   RenderPassStats
}

var _ gpu.RenderPass = (*RenderPass)(nil)

// Descriptor returns the attachment set.
func (p *RenderPass) Descriptor() *gpu.RenderPassDescriptor { return &p.desc }

// Stats returns the counters of the last encode.
func (p *RenderPass) Stats() RenderPassStats { return p.stats }

// Total returns the counters summed over every encode.
func (p *RenderPass) Total() RenderPassStats { return p.total }

// EncodeCommands validates every added command and clears the list. A
// pass with no commands or no color texture does nothing.
func (p *RenderPass) EncodeCommands(viewport *gpu.Viewport, scissor *gpu.ScissorRect) {
	p.stats = RenderPassStats{}
	cmds := p.Commands()
	color, _ := p.desc.ColorAttachment.Texture.(*Texture)
	if len(cmds) == 0 || color == nil {
		return
	}
	if p.cb.state != gpu.CommandBufferRecording {
		slogger().Warn("software: encode into command buffer that is not recording",
			"pass", p.desc.Label, "state", p.cb.state)
		return
	}
	if !p.cleared {
		p.applyClears(color)
		p.cleared = true
	}
	for _, cmd := range cmds {
		p.stats.Commands++
		if err := checkCommand(cmd); err != nil {
			slogger().Warn("software: draw skipped", "pass", p.desc.Label, "err", err)
			p.stats.Skipped++
			continue
		}
		p.stats.Draws++
	}
	p.total.Commands += p.stats.Commands
	p.total.Draws += p.stats.Draws
	p.total.Skipped += p.stats.Skipped
	p.ClearCommands()
	slogger().Debug("software: render pass encoded",
		"pass", p.desc.Label,
		"commands", p.stats.Commands,
		"draws", p.stats.Draws,
		"skipped", p.stats.Skipped)
}

func (p *RenderPass) applyClears(color *Texture) {
	ca := p.desc.ColorAttachment
	if ca.LoadOp == gpu.LoadOpClear {
		color.fill(clearTexel(color.Format(), ca.ClearValue))
	}
	// Depth and stencil share one attachment; the depth texture wins when
	// both are set.
	da, sa := p.desc.DepthAttachment, p.desc.StencilAttachment
	ds, _ := da.Texture.(*Texture)
	if ds == nil {
		ds, _ = sa.Texture.(*Texture)
	}
	if ds != nil && (da.LoadOp == gpu.LoadOpClear || sa.LoadOp == gpu.LoadOpClear) {
		depth := da.ClearValue
		if da.Texture == nil {
			depth = 1
		}
		ds.fill(depthStencilTexel(ds.Format(), depth, sa.ClearValue))
	}
}

// checkCommand applies the draw rules of the GPU backends: a live pipeline
// of this backend, vertex and index buffers with storage, a non-zero index
// count and a binding for every reflected slot.
func checkCommand(cmd *gpu.Command) error {
	pipeline, ok := cmd.Pipeline.(*RenderPipeline)
	if !ok || pipeline == nil {
		return fmt.Errorf("%w: draw without software pipeline", gpu.ErrInvalidDescriptor)
	}
	vb, _ := cmd.VertexBuffer.Buffer.(*Buffer)
	ib, _ := cmd.IndexBuffer.Buffer.(*Buffer)
	if vb == nil || ib == nil || vb.Size() == 0 || ib.Size() == 0 {
		return fmt.Errorf("%w: pipeline %q draw without vertex or index buffer", gpu.ErrInvalidDescriptor, pipeline.Label())
	}
	if cmd.IndexCount == 0 {
		return fmt.Errorf("%w: pipeline %q draw with zero indices", gpu.ErrInvalidDescriptor, pipeline.Label())
	}
	if need := uint64(cmd.IndexCount)*4 + cmd.IndexBuffer.Offset; need > ib.Size() {
		return fmt.Errorf("%w: pipeline %q reads %d index bytes from %d", gpu.ErrInvalidDescriptor, pipeline.Label(), need, ib.Size())
	}

	for _, b := range pipeline.Bindings() {
		if b.Set != 0 {
			continue
		}
		if !commandBinds(cmd, b) {
			return fmt.Errorf("%w: pipeline %q slot %d (%v) unbound", gpu.ErrInvalidDescriptor, pipeline.Label(), b.Binding, b.Kind)
		}
	}
	return nil
}

// commandBinds reports whether cmd feeds slot b. Standalone sampler slots
// may also be fed from a texture binding's sampler.
func commandBinds(cmd *gpu.Command, b gpu.ResourceBinding) bool {
	switch b.Kind {
	case gpu.BindingUniformBuffer:
		for _, u := range cmd.UniformBindings {
			if u.Index == b.Binding && u.Buffer.Buffer != nil && u.Buffer.Offset < u.Buffer.Buffer.Size() {
				return true
			}
		}
	case gpu.BindingSampledTexture, gpu.BindingCombinedImageSampler:
		for _, ts := range cmd.TextureSamplerBindings {
			if ts.Index == b.Binding && ts.Texture != nil {
				return true
			}
		}
	case gpu.BindingSampler:
		for _, s := range cmd.SamplerBindings {
			if s.Index == b.Binding && s.Sampler != nil {
				return true
			}
		}
		for _, ts := range cmd.TextureSamplerBindings {
			if ts.Index == b.Binding && ts.Sampler != nil {
				return true
			}
		}
	}
	return false
}

// =============================================================================
// BlitPass
// =============================================================================

// BlitPass forwards uploads to the resources.
type BlitPass struct {
	cb    *CommandBuffer
	ended bool
}

var _ gpu.BlitPass = (*BlitPass)(nil)

// UploadTextureData writes a region of mip level 0 of tex.
func (p *BlitPass) UploadTextureData(tex gpu.Texture, x, y, w, h uint32, data []byte) {
	if p.ended || tex == nil || len(data) == 0 {
		slogger().Warn("software: blit texture upload ignored", "label", p.cb.label, "ended", p.ended)
		return
	}
	tex.UploadData(x, y, w, h, data)
}

// UploadBufferData replaces the contents of buf.
func (p *BlitPass) UploadBufferData(buf gpu.Buffer, data []byte) {
	if p.ended || buf == nil || len(data) == 0 {
		slogger().Warn("software: blit buffer upload ignored", "label", p.cb.label, "ended", p.ended)
		return
	}
	buf.UploadData(data)
}

// End closes the pass. Later uploads are ignored.
func (p *BlitPass) End() { p.ended = true }
