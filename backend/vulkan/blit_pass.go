// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package vulkan

import "github.com/gogpu/gpurender/gpu"

// BlitPass performs uploads outside a render pass. Each upload is
// submitted and completed before it returns, so data is visible to any
// render pass recorded afterwards.
type BlitPass struct {
	cb    *CommandBuffer
	ended bool
}

var _ gpu.BlitPass = (*BlitPass)(nil)

// UploadTextureData writes a region of mip level 0 of tex.
func (p *BlitPass) UploadTextureData(tex gpu.Texture, x, y, w, h uint32, data []byte) {
	if p.ended {
		slogger().Warn("vulkan: upload through ended blit pass", "label", p.cb.label)
		return
	}
	if tex == nil || len(data) == 0 {
		slogger().Warn("vulkan: blit texture upload with nil texture or empty data", "label", p.cb.label)
		return
	}
	tex.UploadData(x, y, w, h, data)
}

// UploadBufferData replaces the contents of buf. A barrier making the
// write visible to the buffer's readers is queued for the next render pass.
func (p *BlitPass) UploadBufferData(buf gpu.Buffer, data []byte) {
	if p.ended {
		slogger().Warn("vulkan: upload through ended blit pass", "label", p.cb.label)
		return
	}
	if buf == nil || len(data) == 0 {
		slogger().Warn("vulkan: blit buffer upload with nil buffer or empty data", "label", p.cb.label)
		return
	}
	buf.UploadData(data)
	if vb, ok := buf.(*Buffer); ok && vb.Err() == nil {
		p.cb.sync.AddBufferBarrier(BufferBarrierFor(vb, AccessTransferWrite, vb.readAccess(), 0, vb.Size()))
	}
}

// End closes the pass. Later uploads are ignored.
func (p *BlitPass) End() { p.ended = true }
