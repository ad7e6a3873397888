package shader

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/spirv"

	"github.com/gogpu/gpurender/gpu"
	"github.com/gogpu/gpurender/internal/cache"
)

// Errors returned in Result.Err.
var (
	// ErrCompile wraps front-end and code generation failures.
	ErrCompile = errors.New("shader: compile failed")

	// ErrInvalidSPIRV is returned when a module fails validation.
	ErrInvalidSPIRV = errors.New("shader: invalid SPIR-V")

	// ErrEntryPointNotFound is returned when the module has no entry point
	// with the requested name and stage.
	ErrEntryPointNotFound = errors.New("shader: entry point not found")
)

// CompileOptions controls one compile request. Every field is part of the
// cache key.
type CompileOptions struct {
	Stage gpu.ShaderStage
	// Debug emits OpName instructions, which reflection uses for binding
	// and input names.
	Debug bool
	// Validate checks the generated module header before accepting it.
	Validate bool
}

// DefaultCompileOptions returns the options used for renderer shaders:
// debug names on and validation on.
func DefaultCompileOptions(stage gpu.ShaderStage) CompileOptions {
	return CompileOptions{Stage: stage, Debug: true, Validate: true}
}

func (o CompileOptions) key() string {
	return strconv.FormatUint(uint64(o.Stage), 10) + "|" +
		strconv.FormatBool(o.Debug) + "|" + strconv.FormatBool(o.Validate)
}

// Result is the outcome of a compile request. Results returned from the
// cache are shared; treat SPIRV and Reflection as read-only.
type Result struct {
	SPIRV      []uint32
	Reflection *gpu.Reflection
	Success    bool
	Err        error
}

func failed(err error) *Result { return &Result{Err: err} }

// Option configures a Compiler.
type Option func(*Compiler)

// WithCacheCapacity sets the number of results kept per cache shard.
// Zero keeps every result.
func WithCacheCapacity(perShard int) Option {
	return func(c *Compiler) { c.perShard = perShard }
}

// WithoutCache disables the result cache.
func WithoutCache() Option {
	return func(c *Compiler) { c.disabled = true }
}

// Compiler compiles WGSL into SPIR-V. It is safe for concurrent use.
type Compiler struct {
	perShard int
	disabled bool
	cache    *cache.Sharded[string, *Result]
	compiles atomic.Uint64
}

// DefaultCacheCapacity is the per-shard result capacity.
const DefaultCacheCapacity = 64

// NewCompiler returns a compiler with a content-addressed result cache.
func NewCompiler(opts ...Option) *Compiler {
	c := &Compiler{perShard: DefaultCacheCapacity}
	for _, opt := range opts {
		opt(c)
	}
	c.cache = cache.NewSharded[string, *Result](c.perShard, cache.StringHasher)
	return c
}

// CacheKey returns the cache key of a compile request.
func CacheKey(src, entryPoint string, opts CompileOptions) string {
	sum := sha256.Sum256([]byte(src))
	return hex.EncodeToString(sum[:]) + "|" + entryPoint + "|" + opts.key()
}

// Compile compiles WGSL source and reflects entryPoint. A cached result is
// returned without recompiling. On failure Result.Success is false and
// Result.Err describes the failing phase; nothing is cached.
func (c *Compiler) Compile(src, entryPoint string, opts CompileOptions) *Result {
	if c.disabled {
		return c.compile(src, entryPoint, opts)
	}
	key := CacheKey(src, entryPoint, opts)
	res, hit, err := c.cache.GetOrCreate(key, func() (*Result, error) {
		r := c.compile(src, entryPoint, opts)
		if !r.Success {
			return nil, r.Err
		}
		return r, nil
	})
	if err != nil {
		return failed(err)
	}
	if hit {
		slogger().Debug("shader: cache hit", "entry", entryPoint, "stage", opts.Stage)
	}
	return res
}

func (c *Compiler) compile(src, entryPoint string, opts CompileOptions) *Result {
	c.compiles.Add(1)

	ast, err := naga.Parse(src)
	if err != nil {
		return c.fail(fmt.Errorf("%w: parse: %w", ErrCompile, err), entryPoint, opts)
	}
	module, err := naga.Lower(ast)
	if err != nil {
		return c.fail(fmt.Errorf("%w: lower: %w", ErrCompile, err), entryPoint, opts)
	}
	backend := spirv.NewBackend(spirv.Options{
		Version: spirv.Version1_3,
		Debug:   opts.Debug,
	})
	code, err := backend.Compile(module)
	if err != nil {
		return c.fail(fmt.Errorf("%w: spirv: %w", ErrCompile, err), entryPoint, opts)
	}
	words, err := BytesToWords(code)
	if err != nil {
		return c.fail(err, entryPoint, opts)
	}
	return c.finish(words, entryPoint, opts)
}

// CompileSPIRV accepts an already compiled module: it validates the
// header when opts.Validate is set and reflects entryPoint. Raw modules
// are not cached.
func (c *Compiler) CompileSPIRV(words []uint32, entryPoint string, opts CompileOptions) *Result {
	return c.finish(words, entryPoint, opts)
}

func (c *Compiler) finish(words []uint32, entryPoint string, opts CompileOptions) *Result {
	if opts.Validate {
		if err := Validate(words); err != nil {
			return c.fail(err, entryPoint, opts)
		}
	}
	refl, err := Reflect(words, entryPoint, opts.Stage)
	if err != nil {
		return c.fail(err, entryPoint, opts)
	}
	slogger().Debug("shader: compiled",
		"entry", entryPoint,
		"stage", opts.Stage,
		"words", len(words),
		"uniforms", len(refl.Uniforms),
		"textures", len(refl.Textures),
		"samplers", len(refl.Samplers))
	return &Result{SPIRV: words, Reflection: refl, Success: true}
}

func (c *Compiler) fail(err error, entryPoint string, opts CompileOptions) *Result {
	slogger().Warn("shader: compile failed", "entry", entryPoint, "stage", opts.Stage, "err", err)
	return failed(err)
}

// Compiles returns how many times the compiler ran, cache hits excluded.
func (c *Compiler) Compiles() uint64 { return c.compiles.Load() }

// CacheStats is a snapshot of the result cache counters.
type CacheStats = cache.Stats

// Stats returns the result cache counters.
func (c *Compiler) Stats() CacheStats { return c.cache.Stats() }

// ClearCache drops every cached result and resets the counters.
func (c *Compiler) ClearCache() {
	c.cache.Clear()
	c.cache.ResetStats()
}
