// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package vulkan

import (
	"bytes"
	"errors"
	"testing"

	"github.com/gogpu/gpurender/gpu"
)

func TestBufferGrowth(t *testing.T) {
	d := newNoopDevice(t)
	gb, err := d.CreateBuffer(gpu.BufferUsageVertex | gpu.BufferUsageIndex)
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	b := gb.(*Buffer)
	if b.Size() != 0 || b.Generation() != 0 || b.native() != nil {
		t.Fatal("new buffer has an allocation")
	}

	b.UploadData(make([]byte, 100))
	if b.Size() != 100 || b.Generation() != 1 {
		t.Errorf("after first upload: size %d, generation %d", b.Size(), b.Generation())
	}
	handle := b.Handle()

	// Smaller uploads reuse the allocation.
	b.UploadData(make([]byte, 40))
	if b.Size() != 100 || b.Generation() != 1 {
		t.Errorf("after smaller upload: size %d, generation %d", b.Size(), b.Generation())
	}

	b.UploadData(make([]byte, 300))
	if b.Size() != 300 || b.Generation() != 2 {
		t.Errorf("after growing upload: size %d, generation %d", b.Size(), b.Generation())
	}
	if b.Handle() != handle {
		t.Error("handle changed on reallocation")
	}

	b.UploadData(nil)
	if b.Size() != 300 {
		t.Error("empty upload changed the buffer")
	}
	if b.Err() != nil {
		t.Errorf("Err() = %v", b.Err())
	}

	b.Destroy()
	b.Destroy()
	b.UploadData(make([]byte, 8))
	if !errors.Is(b.Err(), gpu.ErrDestroyed) {
		t.Errorf("upload after Destroy Err() = %v", b.Err())
	}
}

func TestBufferHandlesUnique(t *testing.T) {
	d := newNoopDevice(t)
	a, _ := d.CreateBuffer(gpu.BufferUsageUniform)
	b, _ := d.CreateBuffer(gpu.BufferUsageUniform)
	if a.(*Buffer).Handle() == b.(*Buffer).Handle() {
		t.Error("buffers share a handle")
	}
}

func TestSamplerSharing(t *testing.T) {
	d := newNoopDevice(t)
	desc := &gpu.SamplerDescriptor{
		MagFilter:    gpu.FilterLinear,
		MinFilter:    gpu.FilterLinear,
		AddressModeU: gpu.AddressRepeat,
	}
	a, err := d.CreateSampler(desc)
	if err != nil {
		t.Fatalf("CreateSampler: %v", err)
	}
	b, err := d.CreateSampler(desc)
	if err != nil {
		t.Fatalf("CreateSampler: %v", err)
	}
	if a != b {
		t.Fatal("equal descriptors produced distinct samplers")
	}
	other, _ := d.CreateSampler(&gpu.SamplerDescriptor{})
	if other == a {
		t.Error("different descriptors share a sampler")
	}
	if a.Descriptor() != *desc {
		t.Errorf("Descriptor() = %+v", a.Descriptor())
	}

	s := a.(*Sampler)
	a.Destroy()
	if s.native() == nil {
		t.Fatal("sampler released while still referenced")
	}
	b.Destroy()
	if s.native() == nil {
		t.Fatal("device reference dropped by callers")
	}

	d.Close()
	if s.native() != nil {
		t.Error("sampler alive after device Close")
	}
}

func TestCreateTextureValidation(t *testing.T) {
	d := newNoopDevice(t)
	tests := []struct {
		name string
		desc *gpu.TextureDescriptor
		want error
	}{
		{"nil", nil, gpu.ErrInvalidDescriptor},
		{"invalid format", &gpu.TextureDescriptor{Width: 4, Height: 4}, gpu.ErrUnsupportedFormat},
		{"zero size", &gpu.TextureDescriptor{Format: gpu.TextureFormatRGBA8Unorm}, gpu.ErrInvalidDescriptor},
		{"too large", &gpu.TextureDescriptor{Width: d.MaxTextureSize() + 1, Height: 1, Format: gpu.TextureFormatRGBA8Unorm}, gpu.ErrInvalidDescriptor},
		{"msaa mips", &gpu.TextureDescriptor{
			Width: 4, Height: 4, Format: gpu.TextureFormatRGBA8Unorm, SampleCount: 4, MipLevelCount: 2,
		}, gpu.ErrInvalidDescriptor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tex, err := d.CreateTexture(tt.desc)
			if !errors.Is(err, tt.want) || tex != nil {
				t.Errorf("CreateTexture() = %v, %v; want %v", tex, err, tt.want)
			}
		})
	}
}

func TestTextureUpload(t *testing.T) {
	d := newNoopDevice(t)
	gt, err := d.CreateTexture(&gpu.TextureDescriptor{
		Label:         "atlas",
		Width:         16,
		Height:        8,
		Format:        gpu.TextureFormatRGBA8Unorm,
		Usage:         gpu.TextureUsageTextureBinding,
		MipLevelCount: 3,
	})
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	tex := gt.(*Texture)
	if tex.Bytes() != 16*8*4*3 {
		t.Errorf("Bytes() = %d", tex.Bytes())
	}
	if tex.CurrentLayout() != ImageLayoutUndefined {
		t.Fatalf("new texture layout = %v", tex.CurrentLayout())
	}

	tex.UploadData(0, 0, 16, 8, make([]byte, 16*8*4))
	if tex.CurrentLayout() != ImageLayoutShaderReadOnlyOptimal {
		t.Errorf("layout after full upload = %v", tex.CurrentLayout())
	}

	// Rejected uploads leave the texture alone.
	before := d.serial.Load()
	tex.UploadData(8, 4, 16, 8, make([]byte, 16*8*4))
	tex.UploadData(0, 0, 4, 4, make([]byte, 10))
	tex.UploadData(0, 0, 4, 4, nil)
	if d.serial.Load() != before {
		t.Error("rejected upload was submitted")
	}

	tex.UploadData(2, 2, 4, 4, make([]byte, 4*4*4))
	if d.serial.Load() != before+2 {
		t.Errorf("sub-region upload submitted %d times, want 2", d.serial.Load()-before)
	}

	tex.Destroy()
	tex.Destroy()
	if tex.nativeView() != nil {
		t.Error("view alive after Destroy")
	}
}

func TestTextureRGBStorage(t *testing.T) {
	d := newNoopDevice(t)
	gt, err := d.CreateTexture(&gpu.TextureDescriptor{
		Width: 3, Height: 1, Format: gpu.TextureFormatRGB8Unorm, Usage: gpu.TextureUsageTextureBinding,
	})
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	tex := gt.(*Texture)
	if tex.Format() != gpu.TextureFormatRGB8Unorm {
		t.Errorf("Format() = %v; canonical format must be preserved", tex.Format())
	}
	tex.UploadData(0, 0, 3, 1, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9})
	if tex.CurrentLayout() != ImageLayoutShaderReadOnlyOptimal {
		t.Errorf("layout after RGB upload = %v", tex.CurrentLayout())
	}
}

func TestTextureStorageConversion(t *testing.T) {
	rgb := &Texture{desc: gpu.TextureDescriptor{Format: gpu.TextureFormatRGB8Unorm}}
	stored, err := rgb.toStorage([]byte{1, 2, 3, 4, 5, 6})
	if err != nil {
		t.Fatalf("toStorage(RGB8): %v", err)
	}
	if !bytes.Equal(stored, []byte{1, 2, 3, 255, 4, 5, 6, 255}) {
		t.Errorf("RGB8 stored as %v", stored)
	}
	back, err := rgb.fromStorage(stored)
	if err != nil || !bytes.Equal(back, []byte{1, 2, 3, 4, 5, 6}) {
		t.Errorf("fromStorage(RGB8) = %v, %v", back, err)
	}

	rgba := &Texture{desc: gpu.TextureDescriptor{Format: gpu.TextureFormatRGBA8Unorm}}
	in := []byte{9, 8, 7, 6}
	if out, err := rgba.toStorage(in); err != nil || &out[0] != &in[0] {
		t.Errorf("RGBA8 texels copied or rejected: %v", err)
	}

	bad := &Texture{desc: gpu.TextureDescriptor{Format: gpu.TextureFormatInvalid}}
	if _, err := bad.toStorage([]byte{1, 2, 3, 4}); !errors.Is(err, gpu.ErrUnsupportedFormat) {
		t.Errorf("toStorage(invalid) error = %v, want ErrUnsupportedFormat", err)
	}
	if _, err := bad.fromStorage([]byte{1, 2, 3, 4}); !errors.Is(err, gpu.ErrUnsupportedFormat) {
		t.Errorf("fromStorage(invalid) error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestTextureUploadIgnoresTrailingData(t *testing.T) {
	d := newNoopDevice(t)
	gt, err := d.CreateTexture(&gpu.TextureDescriptor{
		Width: 2, Height: 2, Format: gpu.TextureFormatRGB565Unorm, Usage: gpu.TextureUsageTextureBinding,
	})
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	tex := gt.(*Texture)
	// One extra row of data past the 2x1 region.
	tex.UploadData(0, 1, 2, 1, make([]byte, 2*2*2))
	if tex.CurrentLayout() != ImageLayoutShaderReadOnlyOptimal {
		t.Errorf("layout after RGB565 upload = %v", tex.CurrentLayout())
	}
}

func TestTextureDepthStencil(t *testing.T) {
	d := newNoopDevice(t)
	gt, err := d.CreateTexture(&gpu.TextureDescriptor{
		Width: 8, Height: 8, Format: gpu.TextureFormatDepth24Stencil8, Usage: gpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	tex := gt.(*Texture)
	before := d.serial.Load()
	tex.UploadData(0, 0, 8, 8, make([]byte, 8*8*4))
	if d.serial.Load() != before {
		t.Error("depth/stencil upload was submitted")
	}
	if _, err := tex.ReadPixels(0, 0, 8, 8); !errors.Is(err, gpu.ErrReadbackUnsupported) {
		t.Errorf("ReadPixels on depth/stencil error = %v", err)
	}
}

func TestTextureReadPixelsBounds(t *testing.T) {
	d := newNoopDevice(t)
	gt, err := d.CreateTexture(&gpu.TextureDescriptor{
		Width: 4, Height: 4, Format: gpu.TextureFormatRGBA8Unorm, Usage: gpu.TextureUsageCopySrc,
	})
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	tex := gt.(*Texture)
	if _, err := tex.ReadPixels(2, 2, 4, 4); !errors.Is(err, gpu.ErrInvalidDescriptor) {
		t.Errorf("out of bounds ReadPixels error = %v", err)
	}
	tex.Destroy()
	if _, err := tex.ReadPixels(0, 0, 1, 1); !errors.Is(err, gpu.ErrDestroyed) {
		t.Errorf("ReadPixels after Destroy error = %v", err)
	}
}

func TestWrapExternalTexture(t *testing.T) {
	d := newNoopDevice(t)
	if _, err := d.WrapExternalTexture(nil, FormatB8G8R8A8Unorm, 4, 4, 0); !errors.Is(err, ErrNilResource) {
		t.Errorf("nil image error = %v", err)
	}

	owner, err := d.CreateTexture(&gpu.TextureDescriptor{
		Width: 4, Height: 4, Format: gpu.TextureFormatBGRA8Unorm, Usage: gpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	raw := owner.(*Texture).raw

	if _, err := d.WrapExternalTexture(raw, Format(12345), 4, 4, 0); !errors.Is(err, gpu.ErrUnsupportedFormat) {
		t.Errorf("unknown format error = %v", err)
	}
	ext, err := d.WrapExternalTexture(raw, FormatB8G8R8A8SRGB, 4, 4, gpu.TextureUsageRenderAttachment)
	if err != nil {
		t.Fatalf("WrapExternalTexture: %v", err)
	}
	if !ext.IsExternal() || ext.Format() != gpu.TextureFormatBGRA8Unorm {
		t.Errorf("external texture = external %v, format %v", ext.IsExternal(), ext.Format())
	}
	ext.Destroy()
	if owner.(*Texture).nativeView() == nil {
		t.Error("destroying the wrapper released the owner's image")
	}
}
