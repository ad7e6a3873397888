package software

import (
	"fmt"
	"math"
	"sync"

	"github.com/gogpu/gpurender/gpu"
)

// =============================================================================
// Buffer
// =============================================================================

// Buffer is a byte slice that grows on upload.
type Buffer struct {
	usage gpu.BufferUsage

	mu         sync.Mutex
	data       []byte
	generation uint64
	err        error
	destroyed  bool
}

var _ gpu.Buffer = (*Buffer)(nil)

// Usage returns the buffer usage.
func (b *Buffer) Usage() gpu.BufferUsage { return b.usage }

// Size returns the allocation size.
func (b *Buffer) Size() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return uint64(len(b.data))
}

// Generation increments each time the storage is replaced.
func (b *Buffer) Generation() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.generation
}

// Err returns the error of the last upload.
func (b *Buffer) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// UploadData copies data to the start of the buffer, growing it to exactly
// len(data) when it is smaller.
func (b *Buffer) UploadData(data []byte) {
	if len(data) == 0 {
		slogger().Warn("software: UploadData with empty data")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		b.err = gpu.ErrDestroyed
		return
	}
	if len(b.data) < len(data) {
		b.data = make([]byte, len(data))
		b.generation++
	}
	copy(b.data, data)
	b.err = nil
}

// Bytes returns a copy of the buffer contents.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.data...)
}

// Destroy drops the storage.
func (b *Buffer) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.destroyed = true
	b.data = nil
}

// =============================================================================
// Texture
// =============================================================================

// Texture stores tightly packed texels of its canonical format for every
// mip level.
type Texture struct {
	desc gpu.TextureDescriptor

	mu        sync.Mutex
	levels    [][]byte
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
	if td.Width > d.cfg.MaxTextureSize || td.Height > d.cfg.MaxTextureSize {
		return nil, fmt.Errorf("%w: texture size %dx%d exceeds %d", gpu.ErrInvalidDescriptor, td.Width, td.Height, d.cfg.MaxTextureSize)
	}
	if td.SampleCount > 1 && td.MipLevelCount > 1 {
		return nil, fmt.Errorf("%w: multisampled texture with %d mip levels", gpu.ErrInvalidDescriptor, td.MipLevelCount)
	}
	bpp := td.Format.BytesPerPixel()
	levels := make([][]byte, td.MipLevelCount)
	for i := range levels {
		w, h := gpu.MipLevelSize(td.Width, td.Height, uint32(i))
		levels[i] = make([]byte, w*h*bpp)
	}
	return &Texture{desc: td, levels: levels}, nil
}

// Descriptor returns the descriptor with defaults applied.
func (t *Texture) Descriptor() gpu.TextureDescriptor { return t.desc }

// Width returns the level 0 width.
func (t *Texture) Width() uint32 { return t.desc.Width }

// Height returns the level 0 height.
func (t *Texture) Height() uint32 { return t.desc.Height }

// Format returns the canonical format.
func (t *Texture) Format() gpu.TextureFormat { return t.desc.Format }

// Bytes returns the memory footprint.
func (t *Texture) Bytes() uint64 { return t.desc.Bytes() }

// IsExternal reports false; software textures are always owned.
func (t *Texture) IsExternal() bool { return false }

func (t *Texture) inBounds(x, y, w, h uint32) bool {
	return w > 0 && h > 0 &&
		uint64(x)+uint64(w) <= uint64(t.desc.Width) &&
		uint64(y)+uint64(h) <= uint64(t.desc.Height)
}

// UploadData writes a region of level 0. A full upload of a 4-byte color
// format regenerates the remaining mip levels.
func (t *Texture) UploadData(x, y, w, h uint32, data []byte) {
	if len(data) == 0 {
		slogger().Warn("software: texture upload with empty data", "label", t.desc.Label)
		return
	}
	if !t.inBounds(x, y, w, h) {
		slogger().Warn("software: texture upload out of bounds",
			"label", t.desc.Label, "x", x, "y", y, "w", w, "h", h)
		return
	}
	bpp := t.desc.Format.BytesPerPixel()
	row := w * bpp
	if uint64(len(data)) < uint64(row)*uint64(h) {
		slogger().Warn("software: texture upload data too short", "label", t.desc.Label, "have", len(data))
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.destroyed {
		slogger().Warn("software: upload to destroyed texture", "label", t.desc.Label)
		return
	}
	level0 := t.levels[0]
	pitch := t.desc.Width * bpp
	for yy := uint32(0); yy < h; yy++ {
		dst := (y+yy)*pitch + x*bpp
		copy(level0[dst:dst+row], data[yy*row:(yy+1)*row])
	}

	full := x == 0 && y == 0 && w == t.desc.Width && h == t.desc.Height
	if full && len(t.levels) > 1 && bpp == 4 && !t.desc.Format.IsDepthStencil() {
		for i, level := range gpu.GenerateMipChain(w, h, level0, uint32(len(t.levels))) {
			copy(t.levels[i+1], level)
		}
	}
}

// ReadPixels returns a region of level 0.
func (t *Texture) ReadPixels(x, y, w, h uint32) ([]byte, error) {
	return t.ReadLevel(0, x, y, w, h)
}

// ReadLevel returns a region of a mip level. Bounds are checked against
// the level's extent.
func (t *Texture) ReadLevel(level, x, y, w, h uint32) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.destroyed {
		return nil, gpu.ErrDestroyed
	}
	if int(level) >= len(t.levels) {
		return nil, fmt.Errorf("%w: mip level %d of %d", gpu.ErrInvalidDescriptor, level, len(t.levels))
	}
	lw, lh := gpu.MipLevelSize(t.desc.Width, t.desc.Height, level)
	if w == 0 || h == 0 || uint64(x)+uint64(w) > uint64(lw) || uint64(y)+uint64(h) > uint64(lh) {
		return nil, fmt.Errorf("%w: readback region %dx%d at (%d,%d)", gpu.ErrInvalidDescriptor, w, h, x, y)
	}
	bpp := t.desc.Format.BytesPerPixel()
	row := w * bpp
	out := make([]byte, row*h)
	for yy := uint32(0); yy < h; yy++ {
		src := (y+yy)*lw*bpp + x*bpp
		copy(out[yy*row:(yy+1)*row], t.levels[level][src:src+row])
	}
	return out, nil
}

// fill sets every texel of level 0 to px, which must be one texel wide.
func (t *Texture) fill(px []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.destroyed || len(px) == 0 {
		return
	}
	level0 := t.levels[0]
	for i := 0; i+len(px) <= len(level0); i += len(px) {
		copy(level0[i:], px)
	}
}

// Destroy drops the texel storage.
func (t *Texture) Destroy() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.destroyed = true
	t.levels = nil
}

// unorm8 converts a [0, 1] channel to a byte, clamping out-of-range input.
func unorm8(v float64) byte {
	return byte(math.Round(min(max(v, 0), 1) * 255))
}

// clearTexel encodes a color clear value in format f.
func clearTexel(f gpu.TextureFormat, c gpu.Color) []byte {
	rgba := []byte{unorm8(c.R), unorm8(c.G), unorm8(c.B), unorm8(c.A)}
	switch f {
	case gpu.TextureFormatR8Unorm:
		return rgba[:1]
	case gpu.TextureFormatBGRA8Unorm:
		return []byte{rgba[2], rgba[1], rgba[0], rgba[3]}
	case gpu.TextureFormatRGB8Unorm, gpu.TextureFormatRGB565Unorm:
		px, _ := gpu.PackFromRGBA(f, rgba)
		return px
	case gpu.TextureFormatRGBA8Unorm:
		return rgba
	default:
		return nil
	}
}

// depthStencilTexel encodes a depth/stencil clear. Depth24Stencil8 packs
// 24-bit depth in the low bytes and stencil in the high byte.
func depthStencilTexel(f gpu.TextureFormat, depth float32, stencil uint32) []byte {
	switch f {
	case gpu.TextureFormatStencil8:
		return []byte{byte(stencil)}
	case gpu.TextureFormatDepth24Stencil8:
		d := uint32(math.Round(float64(min(max(depth, 0), 1)) * 0xFFFFFF))
		return []byte{byte(d), byte(d >> 8), byte(d >> 16), byte(stencil)}
	default:
		return nil
	}
}

// =============================================================================
// Sampler
// =============================================================================

// Sampler is an immutable sampler shared per descriptor.
type Sampler struct {
	desc gpu.SamplerDescriptor
}

var _ gpu.Sampler = (*Sampler)(nil)

// Descriptor returns the sampler's descriptor.
func (s *Sampler) Descriptor() gpu.SamplerDescriptor { return s.desc }

// Destroy is a no-op; samplers live as long as the device.
func (s *Sampler) Destroy() {}
