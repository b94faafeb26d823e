package pipeline

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-render/engine/asset"
	"golang.org/x/sync/singleflight"
)

// CompiledPipelineHandle indexes a render pipeline in a Compiler cache. Handles are never
// reused; a handle whose entry was invalidated simply stops resolving.
type CompiledPipelineHandle uint64

// CompiledComputePipelineHandle indexes a compute pipeline in a ComputeCompiler cache.
type CompiledComputePipelineHandle uint64

// CacheStats is a snapshot of compiler cache counters.
type CacheStats struct {
	Hits     uint64
	Misses   uint64
	Compiles uint64
	Failures uint64
	Size     int
}

// HitRate returns hits / (hits + misses), or 0 when the cache has not been queried.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// specialization is the behavior the cache needs from a specialization value.
type specialization[S any] interface {
	fmt.Stringer
	Normalized() S
	Hash() uint64
	Equal(S) bool
}

// releaser is a cached compiled pipeline.
type releaser interface {
	release()
}

// cacheKey is the identity of a cache bucket: descriptor identity plus specialization hash.
type cacheKey struct {
	descriptor asset.Handle
	hash       uint64
}

func (k cacheKey) String() string {
	return fmt.Sprintf("%d:%016x", k.descriptor, k.hash)
}

type cacheEntry[S any, V any] struct {
	handle uint64
	spec   S
	value  V
}

// cache maps (descriptor, specialization) to compiled pipelines with at-most-once compilation.
// A singleflight group keyed by cacheKey guards compilation so concurrent misses on the same
// key share one backend call. Entries are only dropped by invalidate and releaseAll.
type cache[S specialization[S], V releaser] struct {
	mu           sync.RWMutex
	buckets      map[cacheKey][]*cacheEntry[S, V]
	byHandle     map[uint64]*cacheEntry[S, V]
	byDescriptor map[asset.Handle][]uint64
	generations  map[asset.Handle]uint64
	nextHandle   uint64

	inflight singleflight.Group

	hits, misses, compiles, failures atomic.Uint64
}

func newCache[S specialization[S], V releaser]() *cache[S, V] {
	return &cache[S, V]{
		buckets:      make(map[cacheKey][]*cacheEntry[S, V]),
		byHandle:     make(map[uint64]*cacheEntry[S, V]),
		byDescriptor: make(map[asset.Handle][]uint64),
		generations:  make(map[asset.Handle]uint64),
	}
}

// lookup returns the entry for an already normalized specialization.
func (c *cache[S, V]) lookup(key cacheKey, spec S) (*cacheEntry[S, V], bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.buckets[key] {
		if e.spec.Equal(spec) {
			return e, true
		}
	}
	return nil, false
}

// getOrCompile returns the cached entry for (descriptor, spec), invoking compile on a miss.
// compile receives the handle the new entry will be stored under.
func (c *cache[S, V]) getOrCompile(descriptor asset.Handle, spec S, compile func(spec S, handle uint64) (V, error)) (*cacheEntry[S, V], error) {
	spec = spec.Normalized()
	key := cacheKey{descriptor: descriptor, hash: spec.Hash()}

	if e, ok := c.lookup(key, spec); ok {
		c.hits.Add(1)
		return e, nil
	}
	c.misses.Add(1)

	for {
		v, err, _ := c.inflight.Do(key.String(), func() (any, error) {
			if e, ok := c.lookup(key, spec); ok {
				return e, nil
			}

			c.mu.Lock()
			generation := c.generations[descriptor]
			c.nextHandle++
			handle := c.nextHandle
			c.mu.Unlock()

			c.compiles.Add(1)
			value, err := compile(spec, handle)
			if err != nil {
				c.failures.Add(1)
				return nil, err
			}

			c.mu.Lock()
			defer c.mu.Unlock()
			if c.generations[descriptor] != generation {
				value.release()
				return nil, ErrDescriptorChanged
			}
			e := &cacheEntry[S, V]{handle: handle, spec: spec, value: value}
			c.buckets[key] = append(c.buckets[key], e)
			c.byHandle[handle] = e
			c.byDescriptor[descriptor] = append(c.byDescriptor[descriptor], handle)
			return e, nil
		})
		if err != nil {
			return nil, err
		}

		e := v.(*cacheEntry[S, V])
		if e.spec.Equal(spec) {
			return e, nil
		}
		// A different specialization with the same hash shared this flight; now that its
		// entry is stored the next iteration compiles ours.
	}
}

func (c *cache[S, V]) get(handle uint64) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.byHandle[handle]
	if !ok {
		var zero V
		return zero, false
	}
	return e.value, true
}

// invalidate drops and releases every entry compiled from descriptor. Compilations of the
// descriptor already in flight are discarded when they finish.
func (c *cache[S, V]) invalidate(descriptor asset.Handle) int {
	c.mu.Lock()
	c.generations[descriptor]++
	handles := c.byDescriptor[descriptor]
	delete(c.byDescriptor, descriptor)

	dropped := make([]V, 0, len(handles))
	for _, h := range handles {
		e, ok := c.byHandle[h]
		if !ok {
			continue
		}
		delete(c.byHandle, h)
		dropped = append(dropped, e.value)
	}
	for key := range c.buckets {
		if key.descriptor == descriptor {
			delete(c.buckets, key)
		}
	}
	c.mu.Unlock()

	for _, v := range dropped {
		v.release()
	}
	return len(dropped)
}

// descriptors returns the descriptors that currently have cached entries.
func (c *cache[S, V]) descriptors() []asset.Handle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]asset.Handle, 0, len(c.byDescriptor))
	for d := range c.byDescriptor {
		out = append(out, d)
	}
	return out
}

func (c *cache[S, V]) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byHandle)
}

func (c *cache[S, V]) stats() CacheStats {
	return CacheStats{
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Compiles: c.compiles.Load(),
		Failures: c.failures.Load(),
		Size:     c.len(),
	}
}

// releaseAll releases every cached pipeline and empties the cache.
func (c *cache[S, V]) releaseAll() {
	c.mu.Lock()
	entries := c.byHandle
	for d := range c.byDescriptor {
		c.generations[d]++
	}
	c.buckets = make(map[cacheKey][]*cacheEntry[S, V])
	c.byHandle = make(map[uint64]*cacheEntry[S, V])
	c.byDescriptor = make(map[asset.Handle][]uint64)
	c.mu.Unlock()

	for _, e := range entries {
		e.value.release()
	}
}
