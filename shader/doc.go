// Package shader compiles WGSL into SPIR-V and reflects the resource
// interface of the result.
//
// A compile request runs Parse and Lower (naga front end), SPIR-V code
// generation (naga/spirv), optional validation of the module header and
// reflection of the requested entry point. Successful results are kept in
// a content-addressed cache keyed by the SHA-256 of the source, the entry
// point, the stage and the options; failures are returned but never
// cached, so fixing the source and compiling again works.
//
//	c := shader.NewCompiler()
//	res := c.Compile(src, "fs_main", shader.DefaultCompileOptions(gpu.ShaderStageFragment))
//	if !res.Success {
//	    return res.Err
//	}
//	for _, u := range res.Reflection.Uniforms {
//	    // set, binding, size
//	}
//
// Raw SPIR-V (already compiled elsewhere) goes through CompileSPIRV, which
// validates and reflects without code generation.
package shader
