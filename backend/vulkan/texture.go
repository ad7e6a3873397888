// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package vulkan

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpurender/gpu"
)

// copyRowAlignment is the buffer row pitch alignment of buffer/image copies.
const copyRowAlignment = 256

// Texture is a 2D image with a default view. It tracks the image layout
// the backend last transitioned it to.
type Texture struct {
	device   *Device
	desc     gpu.TextureDescriptor
	raw      hal.Texture
	view     hal.TextureView
	external bool

	mu        sync.Mutex
	layout    ImageLayout
	destroyed bool
}

var (
	_ gpu.Texture       = (*Texture)(nil)
	_ gpu.TextureReader = (*Texture)(nil)
)

func (d *Device) newTexture(desc *gpu.TextureDescriptor) (*Texture, error) {
	if desc == nil {
		return nil, fmt.Errorf("%w: nil texture descriptor", gpu.ErrInvalidDescriptor)
	}
	td := desc.WithDefaults()
	if !td.Format.IsValid() {
		return nil, fmt.Errorf("%w: %v", gpu.ErrUnsupportedFormat, td.Format)
	}
	if td.Width == 0 || td.Height == 0 {
		return nil, fmt.Errorf("%w: texture size %dx%d", gpu.ErrInvalidDescriptor, td.Width, td.Height)
	}
	if limit := d.MaxTextureSize(); limit != 0 && (td.Width > limit || td.Height > limit) {
		return nil, fmt.Errorf("%w: texture size %dx%d exceeds %d", gpu.ErrInvalidDescriptor, td.Width, td.Height, limit)
	}
	if td.SampleCount > 1 && td.MipLevelCount > 1 {
		return nil, fmt.Errorf("%w: multisampled texture with %d mip levels", gpu.ErrInvalidDescriptor, td.MipLevelCount)
	}

	format := halTextureFormat(td.Format)
	raw, err := d.hal.CreateTexture(&hal.TextureDescriptor{
		Label:         td.Label,
		Size:          hal.Extent3D{Width: td.Width, Height: td.Height, DepthOrArrayLayers: 1},
		MipLevelCount: td.MipLevelCount,
		SampleCount:   td.SampleCount,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         halTextureUsage(td.Usage, td.Format),
	})
	if err != nil {
		return nil, fmt.Errorf("vulkan: create image %q: %w", td.Label, err)
	}
	view, err := d.hal.CreateTextureView(raw, &hal.TextureViewDescriptor{
		Label:         td.Label + "_view",
		Format:        format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: td.MipLevelCount,
	})
	if err != nil {
		d.hal.DestroyTexture(raw)
		return nil, fmt.Errorf("vulkan: create image view %q: %w", td.Label, err)
	}

	slogger().Debug("vulkan: texture created",
		"label", td.Label,
		"size", fmt.Sprintf("%dx%d", td.Width, td.Height),
		"format", td.Format,
		"vkformat", ToVkFormat(td.Format),
		"mips", td.MipLevelCount,
		"samples", td.SampleCount)

	return &Texture{
		device: d,
		desc:   td,
		raw:    raw,
		view:   view,
		layout: ImageLayoutUndefined,
	}, nil
}

// WrapExternalTexture wraps an image owned elsewhere, such as a swapchain
// image. Swapchain SRGB formats are treated as their UNORM counterpart.
// Destroy releases only the view created here; the image stays with its
// owner.
func (d *Device) WrapExternalTexture(raw hal.Texture, format Format, width, height uint32, usage gpu.TextureUsage) (*Texture, error) {
	if raw == nil {
		return nil, ErrNilResource
	}
	canonical := FromVkFormat(format)
	if canonical == gpu.TextureFormatInvalid {
		return nil, fmt.Errorf("%w: %v", gpu.ErrUnsupportedFormat, format)
	}
	view, err := d.hal.CreateTextureView(raw, &hal.TextureViewDescriptor{
		Label:         "external_view",
		Format:        halTextureFormat(canonical),
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("vulkan: create external view: %w", err)
	}
	return &Texture{
		device: d,
		desc: gpu.TextureDescriptor{
			Label:         "external",
			Width:         width,
			Height:        height,
			Format:        canonical,
			Usage:         usage,
			MipLevelCount: 1,
			SampleCount:   1,
		},
		raw:      raw,
		view:     view,
		external: true,
		layout:   ImageLayoutUndefined,
	}, nil
}

// Descriptor returns the descriptor with defaults applied.
func (t *Texture) Descriptor() gpu.TextureDescriptor { return t.desc }

// Width returns the width of mip level 0.
func (t *Texture) Width() uint32 { return t.desc.Width }

// Height returns the height of mip level 0.
func (t *Texture) Height() uint32 { return t.desc.Height }

// Format returns the canonical format.
func (t *Texture) Format() gpu.TextureFormat { return t.desc.Format }

// Bytes returns the memory footprint of all mip levels.
func (t *Texture) Bytes() uint64 { return t.desc.Bytes() }

// IsExternal reports whether the image is owned elsewhere.
func (t *Texture) IsExternal() bool { return t.external }

// CurrentLayout returns the layout of the last transition.
func (t *Texture) CurrentLayout() ImageLayout {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.layout
}

// setLayout records a transition performed by a render pass.
func (t *Texture) setLayout(l ImageLayout) {
	t.mu.Lock()
	t.layout = l
	t.mu.Unlock()
}

func (t *Texture) nativeView() hal.TextureView {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.destroyed {
		return nil
	}
	return t.view
}

func (t *Texture) inBounds(x, y, w, h uint32) bool {
	return w > 0 && h > 0 &&
		uint64(x)+uint64(w) <= uint64(t.desc.Width) &&
		uint64(y)+uint64(h) <= uint64(t.desc.Height)
}

// UploadData writes a w×h region at (x, y) of mip level 0. The image is
// transitioned to TRANSFER_DST, the region is copied from a staging
// buffer, and the image is transitioned to SHADER_READ_ONLY. When the
// upload covers all of level 0, the remaining mip levels are regenerated
// from it.
func (t *Texture) UploadData(x, y, w, h uint32, data []byte) {
	if len(data) == 0 {
		slogger().Warn("vulkan: texture upload with empty data", "label", t.desc.Label)
		return
	}
	if t.desc.Format.IsDepthStencil() {
		slogger().Warn("vulkan: texture upload to depth/stencil format", "label", t.desc.Label, "format", t.desc.Format)
		return
	}
	if !t.inBounds(x, y, w, h) {
		slogger().Warn("vulkan: texture upload out of bounds",
			"label", t.desc.Label, "x", x, "y", y, "w", w, "h", h)
		return
	}
	if need := uint64(w) * uint64(h) * uint64(t.desc.Format.BytesPerPixel()); uint64(len(data)) < need {
		slogger().Warn("vulkan: texture upload data too short", "label", t.desc.Label, "have", len(data), "need", need)
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.destroyed {
		slogger().Warn("vulkan: upload to destroyed texture", "label", t.desc.Label)
		return
	}

	texels, err := t.toStorage(data[:int(w)*int(h)*int(t.desc.Format.BytesPerPixel())])
	if err != nil {
		slogger().Error("vulkan: texture upload failed", "label", t.desc.Label, "err", err)
		return
	}

	regions := []uploadRegion{{x: x, y: y, w: w, h: h, data: texels}}
	full := x == 0 && y == 0 && w == t.desc.Width && h == t.desc.Height
	if full && t.desc.MipLevelCount > 1 && storedBytesPerPixel(t.desc.Format) == 4 {
		for i, level := range gpu.GenerateMipChain(w, h, texels, t.desc.MipLevelCount) {
			lw, lh := gpu.MipLevelSize(w, h, uint32(i+1))
			regions = append(regions, uploadRegion{mip: uint32(i + 1), w: lw, h: lh, data: level})
		}
	}

	if err := t.upload(regions); err != nil {
		slogger().Error("vulkan: texture upload failed", "label", t.desc.Label, "err", err)
	}
}

// toStorage converts tightly packed texels of the canonical format to the
// native storage format.
func (t *Texture) toStorage(texels []byte) ([]byte, error) {
	if storedBytesPerPixel(t.desc.Format) == t.desc.Format.BytesPerPixel() {
		return texels, nil
	}
	out, ok := gpu.ExpandToRGBA(t.desc.Format, texels)
	if !ok {
		return nil, fmt.Errorf("%w: cannot expand %v texels", gpu.ErrUnsupportedFormat, t.desc.Format)
	}
	return out, nil
}

// fromStorage converts tightly packed native texels back to the canonical
// format.
func (t *Texture) fromStorage(texels []byte) ([]byte, error) {
	if storedBytesPerPixel(t.desc.Format) == t.desc.Format.BytesPerPixel() {
		return texels, nil
	}
	out, ok := gpu.PackFromRGBA(t.desc.Format, texels)
	if !ok {
		return nil, fmt.Errorf("%w: cannot pack %v texels", gpu.ErrUnsupportedFormat, t.desc.Format)
	}
	return out, nil
}

type uploadRegion struct {
	mip, x, y, w, h uint32
	data            []byte
}

// upload must be called with mu held.
func (t *Texture) upload(regions []uploadRegion) error {
	d := t.device
	bpp := storedBytesPerPixel(t.desc.Format)

	// Pack every region into one staging buffer with aligned rows.
	var total uint64
	offsets := make([]uint64, len(regions))
	for i, r := range regions {
		offsets[i] = total
		total += uint64(alignUp(r.w*bpp, copyRowAlignment)) * uint64(r.h)
	}
	packed := make([]byte, total)
	for i, r := range regions {
		pitch := alignUp(r.w*bpp, copyRowAlignment)
		row := r.w * bpp
		for yy := uint32(0); yy < r.h; yy++ {
			dst := offsets[i] + uint64(yy*pitch)
			copy(packed[dst:dst+uint64(row)], r.data[yy*row:(yy+1)*row])
		}
	}

	staging, err := d.hal.CreateBuffer(&hal.BufferDescriptor{
		Label: t.desc.Label + "_staging",
		Size:  total,
		Usage: gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create staging buffer: %w", err)
	}
	freeStaging := func() { d.hal.DestroyBuffer(staging) }
	d.queue.WriteBuffer(staging, 0, packed)

	aspect := AspectMask(t.desc.Format)
	levels := uint32(1)
	if len(regions) > 1 {
		levels = t.desc.MipLevelCount
	}

	err = d.oneShot(t.desc.Label+"_upload", func(enc hal.CommandEncoder) error {
		var sm SyncManager
		// The staging write must be visible to the copy.
		sm.AddMemoryBarrier(MemoryBarrier{
			SrcStage:  StageHost,
			DstStage:  StageTransfer,
			SrcAccess: AccessHostWrite,
			DstAccess: AccessTransferRead,
		})
		b := ImageTransitionBarrier(t, t.layout, ImageLayoutTransferDstOptimal, aspect)
		b.LevelCount = levels
		sm.AddImageBarrier(b)
		sm.ExecuteBarriers(&halBarrierRecorder{encoder: enc})

		copies := make([]hal.BufferTextureCopy, len(regions))
		for i, r := range regions {
			copies[i] = hal.BufferTextureCopy{
				BufferLayout: hal.ImageDataLayout{
					Offset:       offsets[i],
					BytesPerRow:  alignUp(r.w*bpp, copyRowAlignment),
					RowsPerImage: r.h,
				},
				TextureBase: hal.ImageCopyTexture{
					Texture:  t.raw,
					MipLevel: r.mip,
					Origin:   hal.Origin3D{X: r.x, Y: r.y},
					Aspect:   gputypes.TextureAspectAll,
				},
				Size: hal.Extent3D{Width: r.w, Height: r.h, DepthOrArrayLayers: 1},
			}
		}
		enc.CopyBufferToTexture(staging, t.raw, copies)
		return nil
	}, freeStaging)
	if errors.Is(err, errSubmitTimeout) {
		// The staging buffer is released when the copy retires.
		return err
	}
	freeStaging()
	if err != nil {
		return err
	}
	t.layout = ImageLayoutTransferDstOptimal

	err = d.oneShot(t.desc.Label+"_to_shader_read", func(enc hal.CommandEncoder) error {
		var sm SyncManager
		b := ImageTransitionBarrier(t, ImageLayoutTransferDstOptimal, ImageLayoutShaderReadOnlyOptimal, aspect)
		b.LevelCount = levels
		sm.AddImageBarrier(b)
		sm.ExecuteBarriers(&halBarrierRecorder{encoder: enc})
		return nil
	})
	if err != nil {
		return err
	}
	t.layout = ImageLayoutShaderReadOnlyOptimal
	return nil
}

// ReadPixels copies a w×h region at (x, y) of mip level 0 back to the CPU
// as tightly packed texels in the texture's canonical format. The image
// layout is restored afterwards.
func (t *Texture) ReadPixels(x, y, w, h uint32) ([]byte, error) {
	if t.desc.Format.IsDepthStencil() || t.desc.SampleCount > 1 {
		return nil, gpu.ErrReadbackUnsupported
	}
	if !t.inBounds(x, y, w, h) {
		return nil, fmt.Errorf("%w: readback region %dx%d at (%d,%d)", gpu.ErrInvalidDescriptor, w, h, x, y)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.destroyed {
		return nil, gpu.ErrDestroyed
	}

	d := t.device
	bpp := storedBytesPerPixel(t.desc.Format)
	pitch := alignUp(w*bpp, copyRowAlignment)
	size := uint64(pitch) * uint64(h)

	staging, err := d.hal.CreateBuffer(&hal.BufferDescriptor{
		Label: t.desc.Label + "_readback",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("vulkan: create readback buffer: %w", err)
	}
	freeStaging := func() { d.hal.DestroyBuffer(staging) }

	restore := t.layout
	if restore == ImageLayoutUndefined {
		restore = ImageLayoutShaderReadOnlyOptimal
	}
	aspect := AspectMask(t.desc.Format)
	err = d.oneShot(t.desc.Label+"_readback", func(enc hal.CommandEncoder) error {
		var sm SyncManager
		sm.AddImageBarrier(ImageTransitionBarrier(t, t.layout, ImageLayoutTransferSrcOptimal, aspect))
		sm.ExecuteBarriers(&halBarrierRecorder{encoder: enc})

		enc.CopyTextureToBuffer(t.raw, staging, []hal.BufferTextureCopy{{
			BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: pitch, RowsPerImage: h},
			TextureBase: hal.ImageCopyTexture{
				Texture: t.raw,
				Origin:  hal.Origin3D{X: x, Y: y},
				Aspect:  gputypes.TextureAspectAll,
			},
			Size: hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		}})

		sm.Reset()
		sm.AddImageBarrier(ImageTransitionBarrier(t, ImageLayoutTransferSrcOptimal, restore, aspect))
		sm.ExecuteBarriers(&halBarrierRecorder{encoder: enc})
		return nil
	}, freeStaging)
	if errors.Is(err, errSubmitTimeout) {
		return nil, err
	}
	defer freeStaging()
	if err != nil {
		return nil, err
	}
	t.layout = restore

	raw := make([]byte, size)
	if err := d.queue.ReadBuffer(staging, 0, raw); err != nil {
		return nil, fmt.Errorf("vulkan: read back %q: %w", t.desc.Label, err)
	}

	row := w * bpp
	out := make([]byte, uint64(row)*uint64(h))
	for yy := uint32(0); yy < h; yy++ {
		copy(out[yy*row:(yy+1)*row], raw[yy*pitch:yy*pitch+row])
	}
	return t.fromStorage(out)
}

// Destroy releases the view and, unless the image is external, the image.
func (t *Texture) Destroy() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.destroyed {
		return
	}
	t.destroyed = true
	if t.view != nil {
		t.device.hal.DestroyTextureView(t.view)
		t.view = nil
	}
	if t.raw != nil && !t.external {
		t.device.hal.DestroyTexture(t.raw)
	}
	t.raw = nil
}

func alignUp(v, align uint32) uint32 {
	return (v + align - 1) &^ (align - 1)
}
