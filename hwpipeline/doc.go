// Package hwpipeline builds and shares render pipelines by pipeline key.
//
// The draw layer describes each draw step with an hwkey.Key and the render
// state it needs. Lib turns the key into vertex and fragment shader
// functions through a ShaderGenerator, caches the functions per function
// key and the pipelines per key and state variant:
//
//	lib := hwpipeline.New(dev, hwpipeline.WithShaderGenerator(sources))
//	for _, step := range hwkey.PlanPath(draw) {
//		p, err := lib.GetPipeline(step.PipelineKey(), &hwpipeline.Descriptor{
//			Blend:        &gpu.BlendPremultipliedSrcOver,
//			ColorFormat:  target.Format(),
//			DepthStencil: stencilState,
//		})
//		...
//	}
package hwpipeline
