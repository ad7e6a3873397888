package software

import (
	"fmt"
	"sync/atomic"

	"github.com/gogpu/gpurender/gpu"
	"github.com/gogpu/gpurender/shader"
)

// ShaderFunction holds the compiled module and reflection of one entry
// point. WGSL sources go through the same naga pipeline as on the GPU
// backends, so shader errors surface identically.
type ShaderFunction struct {
	label      string
	stage      gpu.ShaderStage
	entryPoint string
	reflection *gpu.Reflection
	spirv      []uint32
	destroyed  atomic.Bool
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

	var res *shader.Result
	switch desc.SourceType {
	case gpu.ShaderSourceWGX:
		res = d.compiler.Compile(desc.Source, entry, opts)
	case gpu.ShaderSourceRaw:
		res = d.compiler.CompileSPIRV(desc.RawSPIRV, entry, opts)
	default:
		return nil, fmt.Errorf("%w: shader source type %d", gpu.ErrInvalidDescriptor, desc.SourceType)
	}
	if !res.Success {
		if desc.ErrorCallback != nil {
			desc.ErrorCallback(res.Err.Error())
		}
		return nil, fmt.Errorf("software: shader %q: %w", desc.Label, res.Err)
	}
	return &ShaderFunction{
		label:      desc.Label,
		stage:      desc.Stage,
		entryPoint: entry,
		reflection: res.Reflection,
		spirv:      res.SPIRV,
	}, nil
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

// IsValid reports whether Destroy has not been called.
func (f *ShaderFunction) IsValid() bool { return !f.destroyed.Load() }

// Destroy invalidates the function for new pipelines.
func (f *ShaderFunction) Destroy() { f.destroyed.Store(true) }

// RenderPipeline is a validated snapshot of a pipeline descriptor.
type RenderPipeline struct {
	desc     gpu.RenderPipelineDescriptor
	bindings []gpu.ResourceBinding
	stencil  bool
}

var _ gpu.RenderPipeline = (*RenderPipeline)(nil)

func checkFunction(f gpu.ShaderFunction, stage gpu.ShaderStage) (*ShaderFunction, error) {
	sf, ok := f.(*ShaderFunction)
	if !ok || sf == nil {
		return nil, fmt.Errorf("%w: %v function is not a software shader function", gpu.ErrInvalidDescriptor, stage)
	}
	if sf.Stage() != stage {
		return nil, fmt.Errorf("%w: %q is a %v function, want %v", gpu.ErrInvalidDescriptor, sf.Label(), sf.Stage(), stage)
	}
	if !sf.IsValid() {
		return nil, fmt.Errorf("%w: %v function %q", gpu.ErrDestroyed, stage, sf.Label())
	}
	return sf, nil
}

func newRenderPipeline(desc *gpu.RenderPipelineDescriptor) (*RenderPipeline, error) {
	if desc == nil {
		return nil, fmt.Errorf("%w: nil render pipeline descriptor", gpu.ErrInvalidDescriptor)
	}
	if desc.VertexFunction == nil {
		return nil, fmt.Errorf("%w: pipeline %q has no vertex function", gpu.ErrInvalidDescriptor, desc.Label)
	}
	vs, err := checkFunction(desc.VertexFunction, gpu.ShaderStageVertex)
	if err != nil {
		return nil, err
	}
	refls := []*gpu.Reflection{vs.Reflection()}
	if desc.FragmentFunction != nil {
		fs, err := checkFunction(desc.FragmentFunction, gpu.ShaderStageFragment)
		if err != nil {
			return nil, err
		}
		if !desc.Target.Format.IsValid() {
			return nil, fmt.Errorf("%w: color target format %v", gpu.ErrUnsupportedFormat, desc.Target.Format)
		}
		refls = append(refls, fs.Reflection())
	}
	for i, l := range desc.Buffers {
		for _, a := range l.Attributes {
			if a.Format.Size() == 0 {
				return nil, fmt.Errorf("%w: pipeline %q buffer %d location %d: invalid vertex format %d",
					gpu.ErrInvalidDescriptor, desc.Label, i, a.ShaderLocation, a.Format)
			}
		}
	}

	p := &RenderPipeline{
		desc:     *desc,
		bindings: shader.MergeReflection(refls...),
		stencil:  desc.DepthStencil != nil && desc.DepthStencil.EnableStencil,
	}
	p.desc.Buffers = append([]gpu.VertexBufferLayout(nil), desc.Buffers...)
	if desc.DepthStencil != nil {
		ds := *desc.DepthStencil
		p.desc.DepthStencil = &ds
	}
	if desc.Target.Blend != nil {
		b := *desc.Target.Blend
		p.desc.Target.Blend = &b
	}
	slogger().Debug("software: render pipeline created",
		"label", desc.Label, "bindings", len(p.bindings), "stencil", p.stencil)
	return p, nil
}

// Label returns the debug label.
func (p *RenderPipeline) Label() string { return p.desc.Label }

// IsValid always reports true; software pipelines hold no native state.
func (p *RenderPipeline) IsValid() bool { return true }

// HasStencilTesting reports whether draws must set a stencil reference.
func (p *RenderPipeline) HasStencilTesting() bool { return p.stencil }

// Descriptor returns the snapshot the pipeline was created from.
func (p *RenderPipeline) Descriptor() *gpu.RenderPipelineDescriptor { return &p.desc }

// Bindings returns the merged resource bindings of both stages.
func (p *RenderPipeline) Bindings() []gpu.ResourceBinding { return p.bindings }
