package hwkey

import "slices"

// Step is one draw step: a geometry paired with a fragment function. A
// draw expands into one or more steps, each needing its own pipeline.
type Step struct {
	Geometry GeometryType
	Shading  Shading
	Filter   uint32
	Compose  []uint32
}

func newStep(g GeometryType, s Shading, cf *ColorFilter) Step {
	filter, compose := cf.Keys()
	return Step{Geometry: g, Shading: s, Filter: filter, Compose: compose}
}

func stencilStep(g GeometryType) Step {
	return Step{Geometry: g, Shading: Shading{Type: FragmentStencil}}
}

// VertexKey returns the vertex function key of the step.
func (s Step) VertexKey() uint32 {
	return MakeFunctionBaseKey(uint32(s.Geometry), s.Shading.Type.vertexSub(), 0)
}

// FragmentKey returns the fragment function key of the step.
func (s Step) FragmentKey() uint32 {
	return MakeFunctionBaseKey(s.Shading.MainKey(), s.Geometry.fragmentSub(), s.Filter)
}

// PipelineKey returns the key of the pipeline drawing the step.
func (s Step) PipelineKey() Key {
	return NewKey(s.VertexKey(), s.FragmentKey(), s.Compose)
}

// VertexName returns the vertex shader name, "VS_" prefixed unless the
// geometry has a standalone shader.
func (s Step) VertexName() string {
	name := VertexName(s.VertexKey())
	if s.Geometry.standalone() {
		return name
	}
	return "VS_" + name
}

// FragmentName returns the fragment shader name, "FS_" prefixed unless
// the fragment has a standalone shader.
func (s Step) FragmentName() string {
	name := FragmentName(s.FragmentKey(), s.Compose)
	if s.Shading.Type.standalone() {
		return name
	}
	return "FS_" + name
}

// PathDraw describes a path fill or stroke.
type PathDraw struct {
	Convex          bool
	Stroke          bool
	AntiAlias       bool
	GPUTessellation bool
	Shading         Shading
	Filter          *ColorFilter
}

// PlanPath expands a path draw into steps.
//
// A convex fill draws directly. Anything else writes coverage into the
// stencil buffer first and then covers it. Anti-aliasing on the CPU path
// adds an edge-fringe step between stencil and cover. GPU tessellation
// produces its own edge coverage, so AntiAlias does not add a step there.
func PlanPath(d PathDraw) []Step {
	if d.Shading.Type == 0 {
		d.Shading = SolidColor()
	}

	g := GeometryPath
	if d.GPUTessellation {
		g = GeometryTessFill
		if d.Stroke {
			g = GeometryTessStroke
		}
	}

	direct := d.Convex && !d.Stroke && (d.GPUTessellation || !d.AntiAlias)
	if direct {
		return []Step{newStep(g, d.Shading, d.Filter)}
	}

	steps := make([]Step, 0, 3)
	steps = append(steps, stencilStep(g))
	if d.AntiAlias && !d.GPUTessellation {
		steps = append(steps, newStep(GeometryPathAA, d.Shading, d.Filter))
	}
	return append(steps, newStep(g, d.Shading, d.Filter))
}

// PlanRRect expands a batched rounded-rect draw. A zero Shading draws
// with per-vertex color.
func PlanRRect(s Shading, cf *ColorFilter) []Step {
	if s.Type == 0 {
		s = SolidVertexColor()
	}
	return []Step{newStep(GeometryRRect, s, cf)}
}

// PlanTexture expands an image draw, which is a textured rounded rect.
func PlanTexture(cf *ColorFilter) []Step {
	return PlanRRect(TextureShading(), cf)
}

// TextDraw describes a glyph run.
type TextDraw struct {
	// Shading is one of the text fragments: FragmentColorText,
	// FragmentEmojiText, FragmentGradientText, FragmentSDFText or
	// FragmentTextureText. Zero means FragmentColorText.
	Shading Shading
	Filter  *ColorFilter
}

// PlanText expands a glyph run into a single step. Gradient-filled text
// uses the gradient text geometry; every other kind shares the solid text
// geometry.
func PlanText(d TextDraw) []Step {
	if d.Shading.Type == 0 {
		d.Shading = Shading{Type: FragmentColorText}
	}
	g := GeometryColorText
	if d.Shading.Type == FragmentGradientText {
		g = GeometryGradientText
	}
	return []Step{newStep(g, d.Shading, d.Filter)}
}

// PlanFilter expands a full-screen image filter pass. Use FragmentBlur or
// FragmentImageFilter.
func PlanFilter(f FragmentType) []Step {
	return []Step{{Geometry: GeometryFilter, Shading: Shading{Type: f}}}
}

// PipelineKeys returns the distinct pipeline keys of steps, in order of
// first use.
func PipelineKeys(steps []Step) []Key {
	keys := make([]Key, 0, len(steps))
	for _, s := range steps {
		k := s.PipelineKey()
		if !slices.ContainsFunc(keys, k.Equal) {
			keys = append(keys, k)
		}
	}
	return keys
}
