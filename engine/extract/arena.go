package extract

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-pbr/common"
	"github.com/Carmen-Shannon/oxy-pbr/engine/model"
	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/layout"
	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/material"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// GeometryBuffers are the resident vertex and index buffers of one geometry.
type GeometryBuffers struct {
	ID         uuid.UUID
	Vertices   *gpu.Buffer
	Indices    *gpu.Buffer
	IndexCount uint32
}

// materialEntry is a material's bind group and the textures it owns.
type materialEntry struct {
	group    bind_group_provider.BindGroupProvider
	textures []*gpu.Texture
	views    []*gpu.TextureView
}

// arena keeps GPU resources alive across extractions, keyed by the stable IDs of the scene data they came from.
// Every lookup marks its key; sweep releases whatever was not marked since the previous sweep.
type arena struct {
	device   gpu.Device
	registry layout.Registry
	logger   *zap.Logger

	geometries map[uuid.UUID]*GeometryBuffers
	transforms map[uuid.UUID]bind_group_provider.BindGroupProvider
	materials  map[uuid.UUID]*materialEntry

	seenGeometries map[uuid.UUID]bool
	seenTransforms map[uuid.UUID]bool
	seenMaterials  map[uuid.UUID]bool

	sampler  *gpu.Sampler
	defaults [material.TextureSlotCount]*gpu.TextureView
	owned    []gpu.Resource
}

func newArena(device gpu.Device, registry layout.Registry, logger *zap.Logger) (*arena, error) {
	a := &arena{
		device:         device,
		registry:       registry,
		logger:         logger,
		geometries:     make(map[uuid.UUID]*GeometryBuffers),
		transforms:     make(map[uuid.UUID]bind_group_provider.BindGroupProvider),
		materials:      make(map[uuid.UUID]*materialEntry),
		seenGeometries: make(map[uuid.UUID]bool),
		seenTransforms: make(map[uuid.UUID]bool),
		seenMaterials:  make(map[uuid.UUID]bool),
	}

	sampler, err := device.CreateSampler(common.SamplerStagingData{
		AddressMode: gpu.AddressModeRepeat,
		MagFilter:   gpu.FilterModeLinear,
		MinFilter:   gpu.FilterModeLinear,
	}.Descriptor("material"))
	if err != nil {
		return nil, fmt.Errorf("failed to create material sampler: %w", err)
	}
	a.sampler = sampler
	a.owned = append(a.owned, sampler)

	defaults := [material.TextureSlotCount]common.TextureStagingData{
		material.TextureSlotBaseColor:         common.SolidTexture(255, 255, 255, 255, gpu.TextureFormatRGBA8UnormSrgb),
		material.TextureSlotNormal:            common.SolidTexture(128, 128, 255, 255, gpu.TextureFormatRGBA8Unorm),
		material.TextureSlotMetallicRoughness: common.SolidTexture(255, 255, 255, 255, gpu.TextureFormatRGBA8Unorm),
		material.TextureSlotOcclusion:         common.SolidTexture(255, 255, 255, 255, gpu.TextureFormatRGBA8Unorm),
	}
	for slot, data := range defaults {
		tex, view, err := a.upload("default_"+material.TextureSlot(slot).String(), data)
		if err != nil {
			a.release()
			return nil, err
		}
		a.owned = append(a.owned, tex, view)
		a.defaults[slot] = view
	}
	return a, nil
}

// upload creates a sampled 2D texture from staging data.
func (a *arena) upload(label string, data common.TextureStagingData) (*gpu.Texture, *gpu.TextureView, error) {
	if err := data.Validate(); err != nil {
		return nil, nil, fmt.Errorf("texture %q: %w", label, err)
	}
	tex, err := a.device.CreateTexture(gpu.TextureDescriptor{
		Label:  label,
		Width:  data.Width,
		Height: data.Height,
		Layers: 1,
		Format: data.ResolvedFormat(),
		Usage:  gpu.TextureUsageTextureBinding | gpu.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("texture %q: %w", label, err)
	}
	if err := a.device.WriteTexture(tex, 0, data.Pixels); err != nil {
		a.device.Release(tex)
		return nil, nil, fmt.Errorf("texture %q: %w", label, err)
	}
	view, err := a.device.CreateTextureView(tex, gpu.TextureViewDescriptor{Label: label + "_view"})
	if err != nil {
		a.device.Release(tex)
		return nil, nil, fmt.Errorf("texture %q: %w", label, err)
	}
	return tex, view, nil
}

// geometry returns the resident buffers of g, uploading them on first use.
func (a *arena) geometry(g model.Geometry) (*GeometryBuffers, error) {
	a.seenGeometries[g.ID()] = true
	if buf, ok := a.geometries[g.ID()]; ok {
		return buf, nil
	}

	label := common.Coalesce(g.Name(), g.ID().String())
	vertices, err := a.createBuffer(label+"_vertices", g.VertexData(), gpu.BufferUsageVertex)
	if err != nil {
		return nil, err
	}
	indices, err := a.createBuffer(label+"_indices", g.IndexData(), gpu.BufferUsageIndex)
	if err != nil {
		a.device.Release(vertices)
		return nil, err
	}
	buf := &GeometryBuffers{ID: g.ID(), Vertices: vertices, Indices: indices, IndexCount: uint32(g.IndexCount())}
	a.geometries[g.ID()] = buf
	a.logger.Debug("uploaded geometry", zap.String("geometry", label), zap.Int("indices", g.IndexCount()))
	return buf, nil
}

func (a *arena) createBuffer(label string, data []byte, usage gpu.BufferUsage) (*gpu.Buffer, error) {
	buf, err := a.device.CreateBuffer(gpu.BufferDescriptor{Label: label, Size: uint64(len(data)), Usage: usage | gpu.BufferUsageCopyDst})
	if err != nil {
		return nil, fmt.Errorf("buffer %q: %w", label, err)
	}
	if err := a.device.WriteBuffer(buf, 0, data); err != nil {
		a.device.Release(buf)
		return nil, fmt.Errorf("buffer %q: %w", label, err)
	}
	return buf, nil
}

// transform returns the transform bind group of a node, creating it on first use.
func (a *arena) transform(nodeID uuid.UUID) (bind_group_provider.BindGroupProvider, error) {
	a.seenTransforms[nodeID] = true
	if p, ok := a.transforms[nodeID]; ok {
		return p, nil
	}
	p := bind_group_provider.NewBindGroupProvider("transform_"+nodeID.String(), layout.BindGroupTransform)
	if err := p.Init(a.device, a.registry); err != nil {
		return nil, err
	}
	a.transforms[nodeID] = p
	return p, nil
}

// material returns the bind group of m, uploading its textures on first use. Missing textures bind the defaults.
func (a *arena) material(m material.Material) (bind_group_provider.BindGroupProvider, error) {
	a.seenMaterials[m.ID()] = true
	if e, ok := a.materials[m.ID()]; ok {
		return e.group, nil
	}

	label := common.Coalesce(m.Name(), m.ID().String())
	e := &materialEntry{}
	opts := []bind_group_provider.BindGroupProviderOption{
		bind_group_provider.WithSampler(layout.MaterialBindingSampler, a.sampler),
	}
	for slot := range material.TextureSlotCount {
		view := a.defaults[slot]
		if data := m.Texture(slot); data != nil {
			tex, v, err := a.upload(fmt.Sprintf("%s_%s", label, slot), *data)
			if err != nil {
				a.releaseMaterial(e)
				return nil, err
			}
			e.textures = append(e.textures, tex)
			e.views = append(e.views, v)
			view = v
		}
		opts = append(opts, bind_group_provider.WithTextureView(layout.MaterialBindingBaseColor+uint32(slot), view))
	}

	e.group = bind_group_provider.NewBindGroupProvider("material_"+label, layout.BindGroupMaterial, opts...)
	if err := e.group.Init(a.device, a.registry); err != nil {
		a.releaseMaterial(e)
		return nil, err
	}
	a.materials[m.ID()] = e
	a.logger.Debug("uploaded material", zap.String("material", label), zap.Int("textures", len(e.textures)))
	return e.group, nil
}

func (a *arena) releaseMaterial(e *materialEntry) {
	if e.group != nil {
		e.group.Release()
	}
	for _, v := range e.views {
		a.device.Release(v)
	}
	for _, t := range e.textures {
		a.device.Release(t)
	}
}

// SweepStats counts the arena entries released by one sweep.
type SweepStats struct {
	Geometries int
	Transforms int
	Materials  int
}

// sweep releases every entry not touched since the last sweep and clears the marks.
func (a *arena) sweep() SweepStats {
	var s SweepStats
	for id, buf := range a.geometries {
		if !a.seenGeometries[id] {
			a.device.Release(buf.Vertices)
			a.device.Release(buf.Indices)
			delete(a.geometries, id)
			s.Geometries++
		}
	}
	for id, p := range a.transforms {
		if !a.seenTransforms[id] {
			p.Release()
			delete(a.transforms, id)
			s.Transforms++
		}
	}
	for id, e := range a.materials {
		if !a.seenMaterials[id] {
			a.releaseMaterial(e)
			delete(a.materials, id)
			s.Materials++
		}
	}
	clear(a.seenGeometries)
	clear(a.seenTransforms)
	clear(a.seenMaterials)
	if s != (SweepStats{}) {
		a.logger.Debug("swept arena",
			zap.Int("geometries", s.Geometries),
			zap.Int("transforms", s.Transforms),
			zap.Int("materials", s.Materials),
		)
	}
	return s
}

// forget drops the marks of an extraction that failed part way so the next sweep does not treat them as live.
func (a *arena) forget() {
	clear(a.seenGeometries)
	clear(a.seenTransforms)
	clear(a.seenMaterials)
}

func (a *arena) release() {
	for _, buf := range a.geometries {
		a.device.Release(buf.Vertices)
		a.device.Release(buf.Indices)
	}
	for _, p := range a.transforms {
		p.Release()
	}
	for _, e := range a.materials {
		a.releaseMaterial(e)
	}
	clear(a.geometries)
	clear(a.transforms)
	clear(a.materials)
	for i := len(a.owned) - 1; i >= 0; i-- {
		a.device.Release(a.owned[i])
	}
	a.owned = nil
}
