package gpu

import (
	"image"

	"golang.org/x/image/draw"
)

// MipLevelSize returns the extent of a mip level, never below 1×1.
func MipLevelSize(width, height, level uint32) (uint32, uint32) {
	w, h := width>>level, height>>level
	if w == 0 {
		w = 1
	}
	if h == 0 {
		h = 1
	}
	return w, h
}

// GenerateMipChain downsamples a tightly packed 4-byte-per-texel level 0
// into levels 1..levels-1. Each level is filtered from the previous one.
// Channels are filtered independently, so BGRA input yields BGRA output.
func GenerateMipChain(width, height uint32, level0 []byte, levels uint32) [][]byte {
	if levels <= 1 || width == 0 || height == 0 || len(level0) < int(width*height*4) {
		return nil
	}
	src := &image.RGBA{
		Pix:    level0,
		Stride: int(width) * 4,
		Rect:   image.Rect(0, 0, int(width), int(height)),
	}
	out := make([][]byte, 0, levels-1)
	for level := uint32(1); level < levels; level++ {
		w, h := MipLevelSize(width, height, level)
		dst := image.NewRGBA(image.Rect(0, 0, int(w), int(h)))
		draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
		out = append(out, dst.Pix)
		src = dst
		if w == 1 && h == 1 {
			break
		}
	}
	return out
}
