// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package vulkan

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"hash/fnv"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/gpurender/gpu"
)

// PipelineCache shares render pipelines between equal descriptors and
// keeps the SPIR-V of compiled shader modules so a later run can skip the
// WGSL front end.
//
// PipelineCache is safe for concurrent use. Lookups take a read lock;
// creation re-checks under the write lock.
type PipelineCache struct {
	device *Device

	mu        sync.RWMutex
	pipelines map[uint64]*RenderPipeline
	// dropped holds pipelines forgotten by ClearCache. Callers may still
	// record draws with them, so they live until the device closes.
	dropped []*RenderPipeline

	hits   atomic.Uint64
	misses atomic.Uint64

	modMu   sync.Mutex
	modules map[string][]uint32
}

func newPipelineCache(d *Device) *PipelineCache {
	return &PipelineCache{
		device:    d,
		pipelines: make(map[uint64]*RenderPipeline),
		modules:   make(map[string][]uint32),
	}
}

// GetOrCreatePipeline returns the cached pipeline for desc, creating it on
// a miss. A failed creation counts as a miss and is not cached.
func (c *PipelineCache) GetOrCreatePipeline(desc *gpu.RenderPipelineDescriptor) (*RenderPipeline, error) {
	if desc == nil {
		return nil, fmt.Errorf("%w: nil render pipeline descriptor", gpu.ErrInvalidDescriptor)
	}
	vs, frag, err := pipelineFunctions(desc)
	if err != nil {
		return nil, err
	}
	key := pipelineKey(desc, vs, frag)

	c.mu.RLock()
	if p, ok := c.pipelines[key]; ok {
		c.mu.RUnlock()
		c.hits.Add(1)
		return p, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.pipelines[key]; ok {
		c.hits.Add(1)
		return p, nil
	}
	c.misses.Add(1)
	p, err := c.device.createRenderPipeline(desc, key)
	if err != nil {
		return nil, err
	}
	c.pipelines[key] = p
	return p, nil
}

// pipelineKey hashes everything that affects the native pipeline: both
// functions, vertex layouts and render state.
func pipelineKey(desc *gpu.RenderPipelineDescriptor, vs, frag *ShaderFunction) uint64 {
	h := fnv.New64a()
	for _, f := range []*ShaderFunction{vs, frag} {
		if f == nil {
			hashWriteUint64(h, 0)
			continue
		}
		hashWriteString(h, f.label)
		hashWriteUint64(h, f.hash)
		hashWriteString(h, f.entryPoint)
	}

	hashWriteUint32(h, uint32(len(desc.Buffers)))
	for _, l := range desc.Buffers {
		hashWriteUint64(h, l.ArrayStride)
		hashWriteUint32(h, uint32(l.StepMode))
		hashWriteUint32(h, uint32(len(l.Attributes)))
		for _, a := range l.Attributes {
			hashWriteUint32(h, a.ShaderLocation)
			hashWriteUint32(h, uint32(a.Format))
			hashWriteUint64(h, a.Offset)
		}
	}

	hashWriteUint32(h, uint32(desc.Target.Format))
	hashWriteUint32(h, uint32(desc.Target.WriteMask))
	if b := desc.Target.Blend; b != nil {
		hashWriteBool(h, true)
		hashWriteUint32(h, uint32(b.SrcFactor))
		hashWriteUint32(h, uint32(b.DstFactor))
		hashWriteUint32(h, uint32(b.Operation))
	} else {
		hashWriteBool(h, false)
	}

	if ds := desc.DepthStencil; ds != nil {
		hashWriteBool(h, true)
		hashWriteUint32(h, uint32(ds.Format))
		hashWriteBool(h, ds.EnableDepth)
		hashWriteBool(h, ds.DepthWriteEnabled)
		hashWriteUint32(h, uint32(ds.DepthCompare))
		hashWriteBool(h, ds.EnableStencil)
		for _, f := range []gpu.StencilFaceState{ds.StencilFront, ds.StencilBack} {
			hashWriteUint32(h, uint32(f.Compare))
			hashWriteUint32(h, uint32(f.FailOp))
			hashWriteUint32(h, uint32(f.DepthFailOp))
			hashWriteUint32(h, uint32(f.PassOp))
		}
		hashWriteUint32(h, ds.StencilReadMask)
		hashWriteUint32(h, ds.StencilWriteMask)
	} else {
		hashWriteBool(h, false)
	}

	hashWriteUint32(h, max(desc.SampleCount, 1))
	hashWriteUint32(h, uint32(desc.CullMode))
	hashWriteUint32(h, uint32(desc.Topology))
	return h.Sum64()
}

func hashWriteUint32(h hash.Hash64, v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, _ = h.Write(buf[:])
}

func hashWriteUint64(h hash.Hash64, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, _ = h.Write(buf[:])
}

func hashWriteString(h hash.Hash64, s string) {
	hashWriteUint32(h, uint32(len(s)))
	_, _ = h.Write([]byte(s))
}

func hashWriteBool(h hash.Hash64, v bool) {
	if v {
		_, _ = h.Write([]byte{1})
	} else {
		_, _ = h.Write([]byte{0})
	}
}

// =============================================================================
// Statistics
// =============================================================================

// PipelineCacheStats is a snapshot of the cache counters.
type PipelineCacheStats struct {
	Hits      uint64
	Misses    uint64
	Pipelines int
	Modules   int
}

// HitRate returns hits / (hits + misses), or 0 without lookups.
func (s PipelineCacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

func (s PipelineCacheStats) String() string {
	p := message.NewPrinter(language.English)
	return p.Sprintf("%d pipelines, %d modules, %d hits, %d misses (%.1f%% hit rate)",
		s.Pipelines, s.Modules, s.Hits, s.Misses, s.HitRate()*100)
}

// Stats returns the cache counters.
func (c *PipelineCache) Stats() PipelineCacheStats {
	c.mu.RLock()
	n := len(c.pipelines)
	c.mu.RUnlock()
	c.modMu.Lock()
	m := len(c.modules)
	c.modMu.Unlock()
	return PipelineCacheStats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Pipelines: n,
		Modules:   m,
	}
}

// ClearCache forgets every cached pipeline and stored module and resets
// the counters. Later lookups create fresh pipelines. Pipelines returned
// before the clear stay valid until the device closes.
func (c *PipelineCache) ClearCache() {
	c.mu.Lock()
	for key, p := range c.pipelines {
		c.dropped = append(c.dropped, p)
		delete(c.pipelines, key)
	}
	c.mu.Unlock()
	c.modMu.Lock()
	clear(c.modules)
	c.modMu.Unlock()
	c.hits.Store(0)
	c.misses.Store(0)
}

// destroy releases every pipeline the cache ever created.
func (c *PipelineCache) destroy() {
	stats := c.Stats()
	slogger().Info("vulkan: pipeline cache destroyed", "stats", stats.String())
	c.ClearCache()
	c.mu.Lock()
	dropped := c.dropped
	c.dropped = nil
	c.mu.Unlock()
	for _, p := range dropped {
		p.destroy()
	}
}

// =============================================================================
// Shader modules
// =============================================================================

func (c *PipelineCache) recordModule(key string, words []uint32) {
	c.modMu.Lock()
	defer c.modMu.Unlock()
	if _, ok := c.modules[key]; !ok {
		c.modules[key] = words
	}
}

// preloadedModule returns the SPIR-V stored under a shader compile key.
func (c *PipelineCache) preloadedModule(key string) ([]uint32, bool) {
	c.modMu.Lock()
	defer c.modMu.Unlock()
	words, ok := c.modules[key]
	return words, ok
}

// =============================================================================
// Persistence
// =============================================================================

// Cache file layout, little endian:
//
//	header:  magic u32, version u32, adapter id u32, payload length u32, payload crc32 u32
//	payload: count u32, then per module: key length u32, key, word count u32, words
const (
	cacheMagic      = 0x43525047 // "GPRC"
	cacheVersion    = 1
	cacheHeaderSize = 20
)

func (c *PipelineCache) adapterID() uint32 {
	return crc32.ChecksumIEEE([]byte(c.device.info.Name))
}

// SaveCache writes the stored shader modules to path. The file is written
// to a temporary name and renamed into place.
func (c *PipelineCache) SaveCache(path string) bool {
	c.modMu.Lock()
	keys := make([]string, 0, len(c.modules))
	for k := range c.modules {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	payload := binary.LittleEndian.AppendUint32(nil, uint32(len(keys)))
	for _, k := range keys {
		words := c.modules[k]
		payload = binary.LittleEndian.AppendUint32(payload, uint32(len(k)))
		payload = append(payload, k...)
		payload = binary.LittleEndian.AppendUint32(payload, uint32(len(words)))
		for _, w := range words {
			payload = binary.LittleEndian.AppendUint32(payload, w)
		}
	}
	c.modMu.Unlock()

	blob := make([]byte, 0, cacheHeaderSize+len(payload))
	blob = binary.LittleEndian.AppendUint32(blob, cacheMagic)
	blob = binary.LittleEndian.AppendUint32(blob, cacheVersion)
	blob = binary.LittleEndian.AppendUint32(blob, c.adapterID())
	blob = binary.LittleEndian.AppendUint32(blob, uint32(len(payload)))
	blob = binary.LittleEndian.AppendUint32(blob, crc32.ChecksumIEEE(payload))
	blob = append(blob, payload...)

	if err := writeFileAtomic(path, blob); err != nil {
		slogger().Warn("vulkan: pipeline cache save failed", "path", path, "err", err)
		return false
	}
	slogger().Info("vulkan: pipeline cache saved", "path", path, "modules", len(keys), "bytes", len(blob))
	return true
}

func writeFileAtomic(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return err
	}
	return nil
}

// LoadCache reads modules written by SaveCache. A missing, empty or
// corrupt file, or one written for another adapter, logs a warning and
// returns false; the cache is left empty.
func (c *PipelineCache) LoadCache(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slogger().Warn("vulkan: pipeline cache file missing", "path", path)
		} else {
			slogger().Warn("vulkan: pipeline cache read failed", "path", path, "err", err)
		}
		return false
	}
	modules, err := decodeCache(data, c.adapterID())
	if err != nil {
		slogger().Warn("vulkan: pipeline cache rejected", "path", path, "err", err)
		c.modMu.Lock()
		clear(c.modules)
		c.modMu.Unlock()
		return false
	}

	c.modMu.Lock()
	clear(c.modules)
	for k, words := range modules {
		c.modules[k] = words
	}
	c.modMu.Unlock()
	slogger().Info("vulkan: pipeline cache loaded", "path", path, "modules", len(modules))
	return true
}

func decodeCache(data []byte, adapterID uint32) (map[string][]uint32, error) {
	if len(data) < cacheHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidCacheFile, len(data))
	}
	le := binary.LittleEndian
	if le.Uint32(data[0:]) != cacheMagic {
		return nil, fmt.Errorf("%w: bad magic", ErrInvalidCacheFile)
	}
	if v := le.Uint32(data[4:]); v != cacheVersion {
		return nil, fmt.Errorf("%w: version %d", ErrInvalidCacheFile, v)
	}
	if id := le.Uint32(data[8:]); id != adapterID {
		return nil, fmt.Errorf("%w: adapter id %#x, want %#x", ErrInvalidCacheFile, id, adapterID)
	}
	payload := data[cacheHeaderSize:]
	if n := le.Uint32(data[12:]); uint64(n) != uint64(len(payload)) {
		return nil, fmt.Errorf("%w: payload length %d, have %d", ErrInvalidCacheFile, n, len(payload))
	}
	if sum := le.Uint32(data[16:]); sum != crc32.ChecksumIEEE(payload) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrInvalidCacheFile)
	}

	r := cacheReader{buf: payload}
	count := r.u32()
	modules := make(map[string][]uint32, min(count, 1024))
	for i := uint32(0); i < count && r.err == nil; i++ {
		key := string(r.bytes(uint64(r.u32())))
		n := r.u32()
		raw := r.bytes(uint64(n) * 4)
		if r.err != nil {
			break
		}
		words := make([]uint32, n)
		for j := range words {
			words[j] = le.Uint32(raw[j*4:])
		}
		modules[key] = words
	}
	if r.err != nil {
		return nil, r.err
	}
	return modules, nil
}

type cacheReader struct {
	buf []byte
	err error
}

func (r *cacheReader) bytes(n uint64) []byte {
	if r.err != nil {
		return nil
	}
	if n > uint64(len(r.buf)) {
		r.err = fmt.Errorf("%w: truncated payload", ErrInvalidCacheFile)
		return nil
	}
	out := r.buf[:n]
	r.buf = r.buf[n:]
	return out
}

func (r *cacheReader) u32() uint32 {
	b := r.bytes(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}
