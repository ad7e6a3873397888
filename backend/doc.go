// Package backend selects the GPU backend a device is opened with.
//
// Backends register a device factory from their init() functions and are
// chosen when the device is opened. The software backend registers itself
// on import; the Vulkan backend registers itself unless the nogpu build
// tag is set:
//
//	import (
//		_ "github.com/gogpu/gpurender/backend/software"
//		_ "github.com/gogpu/gpurender/backend/vulkan"
//	)
//
// # Backend Selection
//
// Use Default() to open the best available backend, or Open() to request
// a specific backend by name:
//
//	// Open the default (best available) backend
//	dev, err := backend.Default()
//
//	// Or request a specific backend
//	dev, err := backend.Open(backend.BackendSoftware)
//
// Default tries backends in priority order and falls through when a
// factory fails, so a machine without a Vulkan driver still gets the
// software device.
//
// # Available Backends
//
//   - "vulkan": Vulkan through gogpu/wgpu HAL
//   - "software": in-memory reference device (always available)
package backend
