package hwpipeline

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpurender/gpu"
	"github.com/gogpu/gpurender/hwkey"
)

// ErrNoShader is returned when a generator has no source for a function.
var ErrNoShader = errors.New("hwpipeline: no shader for function")

// ShaderSource is the code of one shader function.
type ShaderSource struct {
	SourceType gpu.ShaderSourceType
	// Source is WGSL text for gpu.ShaderSourceWGX.
	Source string
	// RawSPIRV is the module for gpu.ShaderSourceRaw.
	RawSPIRV   []uint32
	EntryPoint string
}

// ShaderGenerator produces the code of the shader function named by a
// function key (see hwkey.Key.FunctionKey).
type ShaderGenerator interface {
	GenerateShader(fk hwkey.Key) (ShaderSource, error)
}

// ShaderGeneratorFunc adapts a function to ShaderGenerator.
type ShaderGeneratorFunc func(fk hwkey.Key) (ShaderSource, error)

// GenerateShader calls f(fk).
func (f ShaderGeneratorFunc) GenerateShader(fk hwkey.Key) (ShaderSource, error) { return f(fk) }

// SourceMap is a ShaderGenerator over precompiled or hand-written sources
// keyed by hwkey.FunctionName, such as "VS_Path" or "FS_SolidColor".
type SourceMap map[string]ShaderSource

// GenerateShader returns the source registered under the function's name.
func (m SourceMap) GenerateShader(fk hwkey.Key) (ShaderSource, error) {
	name := hwkey.FunctionName(fk)
	src, ok := m[name]
	if !ok {
		return ShaderSource{}, fmt.Errorf("%w: %s", ErrNoShader, name)
	}
	return src, nil
}

// WGSL returns a ShaderSource for a WGSL entry point.
func WGSL(source, entryPoint string) ShaderSource {
	return ShaderSource{SourceType: gpu.ShaderSourceWGX, Source: source, EntryPoint: entryPoint}
}
