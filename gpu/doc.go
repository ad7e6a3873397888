// Package gpu defines the backend-agnostic GPU contracts used by the
// renderer: devices, buffers, textures, samplers, shader functions, render
// pipelines, command buffers, render and blit passes, fences, and the
// descriptors and draw commands that flow between them.
//
// A backend (see backend/vulkan and backend/software) provides one
// implementation struct per contract and is selected when the device is
// opened. Callers hold only these interfaces.
//
// # Error model
//
// Factory methods on Device return (nil, err) and log the failure, so a
// failed resource degrades a single draw rather than the frame. Upload and
// bind calls given nil resources log a warning and do nothing. Fence.Wait
// reports a timeout as false, never as an error.
//
// # Buffer handles
//
// A Buffer may replace its native allocation when UploadData grows it.
// The Buffer value itself is the stable handle; backends resolve the
// current native resource at bind time, never at command-build time.
package gpu
