package hwkey

// BlendMode is a Porter-Duff or separable blend mode used by blend color
// filters.
type BlendMode uint8

// Blend modes with a dedicated filter shader.
const (
	BlendClear BlendMode = iota
	BlendSrc
	BlendDst
	BlendSrcOver
	BlendDstOver
	BlendSrcIn
	BlendDstIn
	BlendSrcOut
	BlendDstOut
	BlendSrcATop
	BlendDstATop
	BlendXor
	BlendPlus
	BlendModulate
	BlendScreen
)

// ColorFilter is a color filter attached to a paint. A composed filter
// applies Inner first and Outer to its result.
type ColorFilter struct {
	typ   FilterType
	outer *ColorFilter
	inner *ColorFilter
}

// BlendFilter blends the paint color with a constant using mode.
func BlendFilter(mode BlendMode) *ColorFilter {
	if mode > BlendScreen {
		return &ColorFilter{typ: FilterUnknown}
	}
	return &ColorFilter{typ: FilterClear + FilterType(mode)}
}

// MatrixFilter applies a 4x5 color matrix.
func MatrixFilter() *ColorFilter { return &ColorFilter{typ: FilterMatrix} }

// LinearToSRGBGammaFilter encodes linear color to sRGB.
func LinearToSRGBGammaFilter() *ColorFilter {
	return &ColorFilter{typ: FilterLinearToSRGBGamma}
}

// SRGBToLinearGammaFilter decodes sRGB color to linear.
func SRGBToLinearGammaFilter() *ColorFilter {
	return &ColorFilter{typ: FilterSRGBToLinearGamma}
}

// ComposeFilter returns a filter that applies inner, then outer. A nil
// argument returns the other one unchanged.
func ComposeFilter(outer, inner *ColorFilter) *ColorFilter {
	switch {
	case outer == nil:
		return inner
	case inner == nil:
		return outer
	}
	return &ColorFilter{typ: FilterCompose, outer: outer, inner: inner}
}

// Type returns the filter type stored in a fragment key's filter field.
func (f *ColorFilter) Type() FilterType {
	if f == nil {
		return FilterUnknown
	}
	return f.typ
}

// Keys returns the 8-bit filter field of the fragment key and, for a
// composed filter, the flattened sub-filter list in application order.
func (f *ColorFilter) Keys() (filter uint32, compose []uint32) {
	if f == nil {
		return 0, nil
	}
	if f.typ != FilterCompose {
		return uint32(f.typ), nil
	}
	return uint32(FilterCompose), f.appendChain(nil)
}

func (f *ColorFilter) appendChain(dst []uint32) []uint32 {
	if f.typ != FilterCompose {
		return append(dst, uint32(f.typ))
	}
	dst = f.inner.appendChain(dst)
	return f.outer.appendChain(dst)
}
