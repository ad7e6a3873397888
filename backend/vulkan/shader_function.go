// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package vulkan

import (
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpurender/gpu"
	"github.com/gogpu/gpurender/shader"
)

// ShaderFunction is a shader module plus the entry point and reflection of
// one stage. Functions are shared by the pipelines that use them.
type ShaderFunction struct {
	device     *Device
	label      string
	stage      gpu.ShaderStage
	entryPoint string
	reflection *gpu.Reflection
	spirv      []uint32
	// hash identifies the module contents in pipeline cache keys.
	hash uint64
	// compileKey is the shader cache key for WGSL sources, empty for raw
	// modules.
	compileKey string

	mu     sync.Mutex
	module hal.ShaderModule
}

var _ gpu.ShaderFunction = (*ShaderFunction)(nil)

func (d *Device) newShaderFunction(desc *gpu.ShaderFunctionDescriptor) (*ShaderFunction, error) {
	if desc == nil {
		return nil, fmt.Errorf("%w: nil shader function descriptor", gpu.ErrInvalidDescriptor)
	}
	if desc.Stage != gpu.ShaderStageVertex && desc.Stage != gpu.ShaderStageFragment {
		return nil, fmt.Errorf("%w: shader stage %v", gpu.ErrInvalidDescriptor, desc.Stage)
	}
	entry := desc.EntryPoint
	if entry == "" {
		entry = "main"
	}
	opts := shader.DefaultCompileOptions(desc.Stage)
	opts.Validate = d.cfg.Validation

	var (
		res *shader.Result
		key string
	)
	switch desc.SourceType {
	case gpu.ShaderSourceWGX:
		key = shader.CacheKey(desc.Source, entry, opts)
		if words, ok := d.pipelines.preloadedModule(key); ok {
			res = d.compiler.CompileSPIRV(words, entry, opts)
			if !res.Success {
				res = nil
			}
		}
		if res == nil {
			res = d.compiler.Compile(desc.Source, entry, opts)
		}
	case gpu.ShaderSourceRaw:
		res = d.compiler.CompileSPIRV(desc.RawSPIRV, entry, opts)
	default:
		return nil, fmt.Errorf("%w: shader source type %d", gpu.ErrInvalidDescriptor, desc.SourceType)
	}
	if !res.Success {
		if desc.ErrorCallback != nil {
			desc.ErrorCallback(res.Err.Error())
		}
		return nil, fmt.Errorf("vulkan: shader %q: %w", desc.Label, res.Err)
	}
	if len(desc.ConstantValues) > 0 {
		slogger().Debug("vulkan: specialization constants ignored", "label", desc.Label, "count", len(desc.ConstantValues))
	}

	module, err := d.hal.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  desc.Label,
		Source: hal.ShaderSource{SPIRV: res.SPIRV},
	})
	if err != nil {
		if desc.ErrorCallback != nil {
			desc.ErrorCallback(err.Error())
		}
		return nil, fmt.Errorf("vulkan: create shader module %q: %w", desc.Label, err)
	}

	f := &ShaderFunction{
		device:     d,
		label:      desc.Label,
		stage:      desc.Stage,
		entryPoint: entry,
		reflection: res.Reflection,
		spirv:      res.SPIRV,
		hash:       moduleHash(res.SPIRV),
		compileKey: key,
		module:     module,
	}
	if key != "" {
		d.pipelines.recordModule(key, res.SPIRV)
	}
	return f, nil
}

func moduleHash(words []uint32) uint64 {
	h := fnv.New64a()
	var b [4]byte
	for _, w := range words {
		b[0], b[1], b[2], b[3] = byte(w), byte(w>>8), byte(w>>16), byte(w>>24)
		h.Write(b[:])
	}
	return h.Sum64()
}

// Label returns the debug label.
func (f *ShaderFunction) Label() string { return f.label }

// Stage returns the pipeline stage.
func (f *ShaderFunction) Stage() gpu.ShaderStage { return f.stage }

// EntryPoint returns the entry point name.
func (f *ShaderFunction) EntryPoint() string { return f.entryPoint }

// Reflection returns the resource interface of the entry point.
func (f *ShaderFunction) Reflection() *gpu.Reflection { return f.reflection }

// SPIRV returns the module words.
func (f *ShaderFunction) SPIRV() []uint32 { return f.spirv }

// IsValid reports whether the module is alive.
func (f *ShaderFunction) IsValid() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.module != nil
}

func (f *ShaderFunction) native() hal.ShaderModule {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.module
}

// Destroy releases the module. Pipelines already built keep working.
func (f *ShaderFunction) Destroy() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.module != nil {
		f.device.hal.DestroyShaderModule(f.module)
		f.module = nil
	}
}
