package pipeline

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/layout"
)

// Cache builds each keyed pipeline once per device.
type Cache interface {
	// Get returns the built pipeline for key, building it with pass and opts on first use.
	// Later calls with the same key return the cached pipeline and ignore pass and opts.
	//
	// Parameters:
	//   - key: the cache key
	//   - pass: the pass whose program the pipeline runs
	//   - opts: builder options for the first build
	//
	// Returns:
	//   - Pipeline: the built pipeline
	//   - error: an error if the pipeline fails to build; nothing is cached in that case
	Get(key string, pass layout.Pass, opts ...PipelineBuilderOption) (Pipeline, error)

	// Len returns the number of cached pipelines.
	Len() int

	// Release releases every cached pipeline and empties the cache.
	Release()
}

type cache struct {
	mu        *sync.Mutex
	device    gpu.Device
	registry  layout.Registry
	pipelines map[string]Pipeline
}

var _ Cache = &cache{}

// NewCache creates a pipeline cache for device.
//
// Parameters:
//   - device: the device pipelines are built on
//   - registry: the layout registry for device
//
// Returns:
//   - Cache: the cache
func NewCache(device gpu.Device, registry layout.Registry) Cache {
	return &cache{
		mu:        &sync.Mutex{},
		device:    device,
		registry:  registry,
		pipelines: make(map[string]Pipeline),
	}
}

func (c *cache) Get(key string, pass layout.Pass, opts ...PipelineBuilderOption) (Pipeline, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.pipelines[key]; ok {
		return p, nil
	}
	p := NewPipeline(key, pass, opts...)
	if err := p.Build(c.device, c.registry); err != nil {
		return nil, err
	}
	c.pipelines[key] = p
	return p, nil
}

func (c *cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pipelines)
}

func (c *cache) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, p := range c.pipelines {
		p.Release(c.device)
		delete(c.pipelines, key)
	}
}
