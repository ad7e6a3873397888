package hwkey

import "github.com/gogpu/gpurender/gpu"

func attrs(formats ...gpu.VertexFormat) gpu.VertexBufferLayout {
	var l gpu.VertexBufferLayout
	for i, f := range formats {
		l.Attributes = append(l.Attributes, gpu.VertexAttribute{
			Format:         f,
			Offset:         l.ArrayStride,
			ShaderLocation: uint32(i),
		})
		l.ArrayStride += f.Size()
	}
	return l
}

// BufferLayout returns the vertex buffer layout the geometry's vertex
// function reads:
//
//	Path, Clip       position xy
//	PathAA           position xy, coverage
//	TessFill         position xy
//	TessStroke       position xy, stroke offset xy
//	text geometries  position xy, uv
//	RRect            rect xyzw, radii xy and color index, flags
//	Filter           position xy, uv
//
// The boolean is false for unknown geometry.
func BufferLayout(g GeometryType) (gpu.VertexBufferLayout, bool) {
	switch g {
	case GeometryPath, GeometryClip, GeometryTessFill:
		return attrs(gpu.VertexFormatFloat32x2), true
	case GeometryPathAA:
		return attrs(gpu.VertexFormatFloat32x3), true
	case GeometryTessStroke, GeometryColorText, GeometryGradientText, GeometryFilter:
		return attrs(gpu.VertexFormatFloat32x4), true
	case GeometryRRect:
		return attrs(gpu.VertexFormatFloat32x4, gpu.VertexFormatFloat32x4), true
	default:
		return gpu.VertexBufferLayout{}, false
	}
}
