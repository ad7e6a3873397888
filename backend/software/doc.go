// Package software provides an in-memory gpu.Device.
//
// The software device keeps buffers and textures in Go memory, compiles
// shaders through the same naga pipeline as the Vulkan backend and applies
// the same validation to pipelines and draws. Render passes apply their
// attachment clears and account draws; they do not rasterize. This makes
// the device suitable for tests and headless tools that exercise the
// render pipeline layers without a GPU.
//
// The package registers itself with the backend registry on import:
//
//	import _ "github.com/gogpu/gpurender/backend/software"
//
//	dev, err := backend.Open(backend.BackendSoftware)
package software
