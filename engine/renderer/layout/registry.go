package layout

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/gpu"
)

// Registry creates each bind group layout once per device and hands out the shared handle.
type Registry interface {
	// Layout returns the device layout for a bind group kind, creating it on first use.
	//
	// Parameters:
	//   - g: the bind group kind
	//
	// Returns:
	//   - *gpu.BindGroupLayout: the layout handle
	//   - error: an error if the device rejects the layout
	Layout(g BindGroup) (*gpu.BindGroupLayout, error)

	// PipelineLayouts returns the layouts of a pass in group index order, ready for a pipeline descriptor.
	//
	// Parameters:
	//   - p: the pass
	//
	// Returns:
	//   - []*gpu.BindGroupLayout: the layouts
	//   - error: an error if a layout cannot be created
	PipelineLayouts(p Pass) ([]*gpu.BindGroupLayout, error)
}

// registry is the implementation of the Registry interface.
type registry struct {
	mu      *sync.Mutex
	device  gpu.Device
	layouts map[BindGroup]*gpu.BindGroupLayout
}

var _ Registry = &registry{}

// NewRegistry creates a layout registry for device.
//
// Parameters:
//   - device: the device layouts are created on
//
// Returns:
//   - Registry: the registry
func NewRegistry(device gpu.Device) Registry {
	return &registry{
		mu:      &sync.Mutex{},
		device:  device,
		layouts: make(map[BindGroup]*gpu.BindGroupLayout),
	}
}

func (r *registry) Layout(g BindGroup) (*gpu.BindGroupLayout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.layouts[g]; ok {
		return l, nil
	}
	l, err := r.device.CreateBindGroupLayout(g.Descriptor())
	if err != nil {
		return nil, fmt.Errorf("failed to create %s layout: %w", g, err)
	}
	r.layouts[g] = l
	return l, nil
}

func (r *registry) PipelineLayouts(p Pass) ([]*gpu.BindGroupLayout, error) {
	groups := p.Groups()
	out := make([]*gpu.BindGroupLayout, len(groups))
	for i, g := range groups {
		l, err := r.Layout(g)
		if err != nil {
			return nil, fmt.Errorf("pass %s group %d: %w", p, i, err)
		}
		out[i] = l
	}
	return out, nil
}
