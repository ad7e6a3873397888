// Package gpurender is a GPU render pipeline and resource layer for a 2D
// vector renderer.
//
// # Overview
//
// gpurender sits between a draw layer that describes draws as pipeline
// keys plus commands, and a native graphics API. The abstract contracts
// live in package gpu; backends implement them:
//
//   - backend/vulkan: Vulkan through gogpu/wgpu HAL
//   - backend/software: in-memory device for tests and headless tools
//
// # Quick Start
//
//	ctx, err := gpurender.NewContext(
//	    gpurender.WithShaderGenerator(sources),
//	    gpurender.WithPipelineCachePath("pipelines.bin"),
//	)
//	if err != nil {
//	    return err
//	}
//	defer ctx.Close()
//
//	cb, err := ctx.BeginFrame()
//	if err != nil {
//	    return err // gpu.ErrFrameTimeout: skip the frame
//	}
//	pass, _ := cb.BeginRenderPass(&gpu.RenderPassDescriptor{...})
//	pipeline, _ := ctx.GetPipeline(step.PipelineKey(), &hwpipeline.Descriptor{...})
//	pass.AddCommand(&gpu.Command{Pipeline: pipeline, ...})
//	pass.EncodeCommands(nil, nil)
//	err = ctx.EndFrame()
//
// # Architecture
//
// The module is organized into:
//   - gpu: formats, descriptors and the Device/Buffer/Texture/... contracts
//   - shader: WGSL to SPIR-V compilation through naga, reflection, caching
//   - hwkey: pipeline keys and shader names derived from draw shape
//   - hwpipeline: pipeline library keyed by hwkey.Key
//   - backend: backend registry and the backend implementations
//
// # Build Tags
//
// The Vulkan backend is compiled in unless the nogpu tag is set; the
// software backend is always available.
package gpurender

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0
)
