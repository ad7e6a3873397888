package gpu

// ExpandToRGBA converts tightly packed texels of format f to RGBA8.
// RGBA8 and BGRA8 input is returned as is. The second result is false for
// formats with no color expansion (depth/stencil, R8, invalid).
func ExpandToRGBA(f TextureFormat, src []byte) ([]byte, bool) {
	switch f {
	case TextureFormatRGBA8Unorm, TextureFormatBGRA8Unorm:
		return src, true
	case TextureFormatRGB8Unorm:
		n := len(src) / 3
		dst := make([]byte, n*4)
		for i := 0; i < n; i++ {
			dst[i*4+0] = src[i*3+0]
			dst[i*4+1] = src[i*3+1]
			dst[i*4+2] = src[i*3+2]
			dst[i*4+3] = 0xff
		}
		return dst, true
	case TextureFormatRGB565Unorm:
		n := len(src) / 2
		dst := make([]byte, n*4)
		for i := 0; i < n; i++ {
			v := uint16(src[i*2]) | uint16(src[i*2+1])<<8
			r := uint8(v >> 11 & 0x1f)
			g := uint8(v >> 5 & 0x3f)
			b := uint8(v & 0x1f)
			dst[i*4+0] = r<<3 | r>>2
			dst[i*4+1] = g<<2 | g>>4
			dst[i*4+2] = b<<3 | b>>2
			dst[i*4+3] = 0xff
		}
		return dst, true
	default:
		return nil, false
	}
}

// PackFromRGBA is the inverse of ExpandToRGBA.
func PackFromRGBA(f TextureFormat, src []byte) ([]byte, bool) {
	switch f {
	case TextureFormatRGBA8Unorm, TextureFormatBGRA8Unorm:
		return src, true
	case TextureFormatRGB8Unorm:
		n := len(src) / 4
		dst := make([]byte, n*3)
		for i := 0; i < n; i++ {
			copy(dst[i*3:i*3+3], src[i*4:i*4+3])
		}
		return dst, true
	case TextureFormatRGB565Unorm:
		n := len(src) / 4
		dst := make([]byte, n*2)
		for i := 0; i < n; i++ {
			r := uint16(src[i*4+0] >> 3)
			g := uint16(src[i*4+1] >> 2)
			b := uint16(src[i*4+2] >> 3)
			v := r<<11 | g<<5 | b
			dst[i*2] = byte(v)
			dst[i*2+1] = byte(v >> 8)
		}
		return dst, true
	default:
		return nil, false
	}
}
