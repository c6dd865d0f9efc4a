// package shadow owns the omnidirectional shadow maps of point lights. Every light's depth cube lives in one shared
// cube array texture, cube i belonging to light i of the current light list, so the shading pass binds a single
// view however many lights there are. The array grows when a frame holds more lights than it has cubes.
//
// Each light also gets one 2D view per face for rendering, a cube view over its six layers and one face-camera bind
// group per face. Those are allocated the first time a light is seen and reused until the light is released.
package shadow

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-pbr/common"
	"github.com/Carmen-Shannon/oxy-pbr/engine/light"
	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/layout"
	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/pipeline"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNoCubemap is returned when a pass is recorded for a light whose cubemap was never prepared or was released.
var ErrNoCubemap = errors.New("light has no shadow cubemap")

// PipelineKey is the pipeline cache key of the depth-only shadow pipeline.
const PipelineKey = "shadow_depth_cube"

// Caster is the draw data of one shadow-casting render object.
type Caster struct {
	Transform  *gpu.BindGroup
	Vertices   *gpu.Buffer
	Indices    *gpu.Buffer
	IndexCount uint32
}

// Cubemap is the shadow state of one light: its cube in the shared array, views, face cameras and face bind groups.
type Cubemap struct {
	LightID uuid.UUID
	// Index is the cube index of the light in the shared array. Face f of the light is array layer 6*Index + f.
	Index int
	// Texture is the shared depth cube array.
	Texture   *gpu.Texture
	CubeView  *gpu.TextureView
	FaceViews [common.CubeFaceCount]*gpu.TextureView
	Faces     [common.CubeFaceCount]bind_group_provider.BindGroupProvider
	Cameras   [common.CubeFaceCount]light.FaceCamera

	position mgl32.Vec3
	placed   bool
}

// shadows is the implementation of the Shadows interface.
type shadows struct {
	mu       *sync.Mutex
	logger   *zap.Logger
	device   gpu.Device
	registry layout.Registry
	cache    pipeline.Cache

	resolution uint32
	near       float32
	far        float32

	sampler     *gpu.Sampler
	array       *gpu.Texture
	arrayView   *gpu.TextureView
	capacity    int
	cubemaps    map[uuid.UUID]*Cubemap
	allocations int
}

// Shadows defines the interface for the shadow subsystem.
type Shadows interface {
	// Prepare makes sure every light has its cubemap at cube index i of the shared array and that face cameras
	// follow the light positions. The array grows to len(lights) cubes when it is too small. Cubemaps of lights
	// missing from the list are released. Allocation happens once per light; a light that neither moved nor
	// changed index causes no device work.
	//
	// Parameters:
	//   - lights: the light states in binding order
	//
	// Returns:
	//   - []*Cubemap: the cubemaps, index i belonging to lights[i]
	//   - error: a common.StageError naming the light index that failed
	Prepare(lights []light.State) ([]*Cubemap, error)

	// Cubemap returns the cached cubemap of a light, or nil.
	//
	// Parameters:
	//   - id: the light ID
	//
	// Returns:
	//   - *Cubemap: the cubemap or nil
	Cubemap(id uuid.UUID) *Cubemap

	// Record encodes one depth-only render pass per (light, face) pair: the face is cleared to 1.0 and every
	// caster is drawn with only its transform and the face camera bound.
	//
	// Parameters:
	//   - encoder: the command encoder to record into
	//   - cubemaps: the cubemaps to render, in light order
	//   - casters: the objects to draw into every face
	//
	// Returns:
	//   - error: a common.StageError naming the light index that failed
	Record(encoder *gpu.CommandEncoder, cubemaps []*Cubemap, casters []Caster) error

	// RenderFaces records the shadow passes into their own command buffer and submits it.
	//
	// Parameters:
	//   - cubemaps: the cubemaps to render, in light order
	//   - casters: the objects to draw into every face
	//
	// Returns:
	//   - error: a common.StageError naming the stage that failed
	RenderFaces(cubemaps []*Cubemap, casters []Caster) error

	// Release frees one light's cubemap.
	//
	// Parameters:
	//   - id: the light ID
	//
	// Returns:
	//   - bool: true if the light had a cubemap
	Release(id uuid.UUID) bool

	// Sampler returns the comparison sampler shared by every shadow lookup.
	Sampler() *gpu.Sampler

	// ShadowMaps returns the cube array view over every light's depth cube. It changes when the array grows.
	ShadowMaps() *gpu.TextureView

	// Capacity returns how many cubes the shared array holds.
	Capacity() int

	// Resolution returns the face width and height in texels.
	Resolution() uint32

	// NearFar returns the face camera clip range.
	NearFar() (float32, float32)

	// Allocations returns how many cubemaps have been allocated over the lifetime of the subsystem.
	Allocations() int

	// Close releases every cubemap, the shared array and the sampler.
	Close()
}

var _ Shadows = &shadows{}

// NewShadows creates the shadow subsystem and its shared resources.
//
// Parameters:
//   - device: the device resources are created on
//   - registry: the bind group layout registry of device
//   - cache: the pipeline cache of device
//   - options: functional options such as WithResolution, WithCapacity and WithLogger
//
// Returns:
//   - Shadows: the subsystem
//   - error: a common.StageError if a shared resource cannot be created
func NewShadows(device gpu.Device, registry layout.Registry, cache pipeline.Cache, options ...ShadowsBuilderOption) (Shadows, error) {
	s := &shadows{
		mu:         &sync.Mutex{},
		logger:     zap.NewNop(),
		device:     device,
		registry:   registry,
		cache:      cache,
		resolution: light.ShadowMapResolution,
		near:       light.ShadowNear,
		far:        light.ShadowFar,
		capacity:   1,
		cubemaps:   make(map[uuid.UUID]*Cubemap),
	}
	for _, opt := range options {
		opt(s)
	}

	if err := s.initShared(); err != nil {
		s.Close()
		return nil, common.NewStageError(common.StageShadow, common.SubjectNone, 0, err)
	}
	return s, nil
}

func (s *shadows) initShared() error {
	sampler, err := s.device.CreateSampler(common.SamplerStagingData{
		AddressMode: gpu.AddressModeClampToEdge,
		MagFilter:   gpu.FilterModeLinear,
		MinFilter:   gpu.FilterModeLinear,
		Compare:     gpu.CompareFunctionLessEqual,
	}.Descriptor("shadow_comparison"))
	if err != nil {
		return fmt.Errorf("failed to create comparison sampler: %w", err)
	}
	s.sampler = sampler

	if err := s.allocateArray(s.capacity); err != nil {
		return err
	}

	if _, err := s.pipeline(); err != nil {
		return err
	}
	return nil
}

// allocateArray replaces the shared array with one of capacity cubes. Cubemaps keep pointing at the old array until
// they are rebound. Callers hold s.mu or own s exclusively.
func (s *shadows) allocateArray(capacity int) error {
	tex, err := s.device.CreateTexture(gpu.TextureDescriptor{
		Label:  fmt.Sprintf("shadow_cubes_%d", capacity),
		Width:  s.resolution,
		Height: s.resolution,
		Layers: uint32(capacity * common.CubeFaceCount),
		Format: gpu.TextureFormatDepth32Float,
		Usage:  gpu.TextureUsageRenderAttachment | gpu.TextureUsageTextureBinding,
	})
	if err != nil {
		return fmt.Errorf("failed to create depth cube array of %d cubes: %w", capacity, err)
	}
	view, err := s.device.CreateTextureView(tex, gpu.TextureViewDescriptor{Label: tex.Label() + "_view", Dimension: gpu.TextureViewDimensionCubeArray})
	if err != nil {
		s.device.Release(tex)
		return fmt.Errorf("failed to create depth cube array view: %w", err)
	}
	if s.arrayView != nil {
		s.device.Release(s.arrayView)
	}
	if s.array != nil {
		s.device.Release(s.array)
	}
	s.array, s.arrayView, s.capacity = tex, view, capacity
	return nil
}

func (s *shadows) pipeline() (pipeline.Pipeline, error) {
	return s.cache.Get(PipelineKey, layout.PassShadow,
		pipeline.WithDepthFormat(gpu.TextureFormatDepth32Float),
		pipeline.WithDepthCompare(gpu.CompareFunctionLess),
		pipeline.WithCullMode(gpu.CullModeNone),
	)
}

func (s *shadows) Prepare(lights []light.State) ([]*Cubemap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(lights) > s.capacity {
		prev := s.capacity
		if err := s.allocateArray(len(lights)); err != nil {
			return nil, common.NewStageError(common.StageShadow, common.SubjectLight, prev, err)
		}
		s.logger.Debug("grew shadow cube array", zap.Int("from", prev), zap.Int("to", s.capacity))
	}

	out := make([]*Cubemap, len(lights))
	seen := make(map[uuid.UUID]bool, len(lights))
	for i, l := range lights {
		c, err := s.ensure(l.ID)
		if err != nil {
			return nil, common.NewStageError(common.StageShadow, common.SubjectLight, i, err)
		}
		if err := s.bind(c, i); err != nil {
			return nil, common.NewStageError(common.StageShadow, common.SubjectLight, i, err)
		}
		if err := s.place(c, l.Position); err != nil {
			return nil, common.NewStageError(common.StageShadow, common.SubjectLight, i, err)
		}
		out[i] = c
		seen[l.ID] = true
	}

	for id, c := range s.cubemaps {
		if !seen[id] {
			s.logger.Debug("releasing shadow cubemap of removed light", zap.Stringer("light", id))
			s.release(c)
			delete(s.cubemaps, id)
		}
	}
	return out, nil
}

// ensure returns the light's cubemap, allocating its face bind groups on first use. Callers hold s.mu.
func (s *shadows) ensure(id uuid.UUID) (*Cubemap, error) {
	if c, ok := s.cubemaps[id]; ok {
		return c, nil
	}

	c := &Cubemap{LightID: id, Index: -1}
	for f := range common.CubeFaceCount {
		face := common.CubeFace(f)
		c.Faces[f] = bind_group_provider.NewBindGroupProvider(fmt.Sprintf("shadow_%s_%s_camera", id, face), layout.BindGroupShadowFace)
		if err := c.Faces[f].Init(s.device, s.registry); err != nil {
			s.release(c)
			return nil, fmt.Errorf("face %s: %w", face, err)
		}
	}

	s.cubemaps[id] = c
	s.allocations++
	s.logger.Debug("allocated shadow cubemap",
		zap.Stringer("light", id),
		zap.Uint32("resolution", s.resolution),
	)
	return c, nil
}

// bind points the cubemap's views at cube index of the shared array, recreating them only when the index or the
// array changed. Callers hold s.mu.
func (s *shadows) bind(c *Cubemap, index int) error {
	if c.Index == index && c.Texture == s.array {
		return nil
	}
	s.releaseViews(c)

	label := "shadow_" + c.LightID.String()
	base := uint32(index * common.CubeFaceCount)
	var err error
	c.CubeView, err = s.device.CreateTextureView(s.array, gpu.TextureViewDescriptor{
		Label:      label + "_cube",
		Dimension:  gpu.TextureViewDimensionCube,
		BaseLayer:  base,
		LayerCount: common.CubeFaceCount,
	})
	if err != nil {
		return fmt.Errorf("failed to create cube view: %w", err)
	}
	for f := range common.CubeFaceCount {
		face := common.CubeFace(f)
		c.FaceViews[f], err = s.device.CreateTextureView(s.array, gpu.TextureViewDescriptor{
			Label:      fmt.Sprintf("%s_%s", label, face),
			Dimension:  gpu.TextureViewDimension2D,
			BaseLayer:  base + uint32(f),
			LayerCount: 1,
		})
		if err != nil {
			s.releaseViews(c)
			return fmt.Errorf("face %s: failed to create view: %w", face, err)
		}
	}
	c.Texture = s.array
	c.Index = index
	return nil
}

func (s *shadows) Cubemap(id uuid.UUID) *Cubemap {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cubemaps[id]
}

func (s *shadows) Record(encoder *gpu.CommandEncoder, cubemaps []*Cubemap, casters []Caster) error {
	p, err := s.pipeline()
	if err != nil {
		return common.NewStageError(common.StageShadow, common.SubjectNone, 0, err)
	}
	faceSlot := layout.PassShadow.Slot(layout.BindGroupShadowFace)
	objectSlot := layout.PassShadow.Slot(layout.BindGroupTransform)

	for i, c := range cubemaps {
		if c == nil || c.Texture == nil {
			return common.NewStageError(common.StageShadow, common.SubjectLight, i, ErrNoCubemap)
		}
		for f := range common.CubeFaceCount {
			pass := encoder.BeginRenderPass(gpu.RenderPassDescriptor{
				Label: fmt.Sprintf("shadow/light%d/%s", i, common.CubeFace(f)),
				DepthAttachment: &gpu.DepthAttachment{
					View:       c.FaceViews[f],
					LoadOp:     gpu.LoadOpClear,
					ClearValue: 1,
				},
			})
			pass.SetPipeline(p.Render())
			pass.SetBindGroup(faceSlot, c.Faces[f].BindGroup())
			for _, obj := range casters {
				pass.SetBindGroup(objectSlot, obj.Transform)
				pass.SetVertexBuffer(0, obj.Vertices)
				pass.SetIndexBuffer(obj.Indices)
				pass.DrawIndexed(obj.IndexCount, 1)
			}
			pass.End()
		}
	}
	return nil
}

func (s *shadows) RenderFaces(cubemaps []*Cubemap, casters []Caster) error {
	encoder := gpu.NewCommandEncoder("shadow")
	if err := s.Record(encoder, cubemaps, casters); err != nil {
		return err
	}
	cb, err := encoder.Finish()
	if err != nil {
		return common.NewStageError(common.StageShadow, common.SubjectNone, 0, err)
	}
	if err := s.device.Submit(cb); err != nil {
		return common.NewStageError(common.StageShadow, common.SubjectNone, 0, err)
	}
	return nil
}

func (s *shadows) Release(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cubemaps[id]
	if !ok {
		return false
	}
	s.release(c)
	delete(s.cubemaps, id)
	return true
}

// release frees the views and face bind groups of a cubemap. The shared array stays. Callers hold s.mu.
func (s *shadows) release(c *Cubemap) {
	for f := range c.Faces {
		if c.Faces[f] != nil {
			c.Faces[f].Release()
			c.Faces[f] = nil
		}
	}
	s.releaseViews(c)
}

// releaseViews frees the cube and face views of a cubemap. Callers hold s.mu.
func (s *shadows) releaseViews(c *Cubemap) {
	for f := range c.FaceViews {
		if c.FaceViews[f] != nil {
			s.device.Release(c.FaceViews[f])
			c.FaceViews[f] = nil
		}
	}
	if c.CubeView != nil {
		s.device.Release(c.CubeView)
		c.CubeView = nil
	}
	c.Texture = nil
	c.Index = -1
}

func (s *shadows) Sampler() *gpu.Sampler {
	return s.sampler
}

func (s *shadows) ShadowMaps() *gpu.TextureView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.arrayView
}

func (s *shadows) Capacity() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capacity
}

func (s *shadows) Resolution() uint32 {
	return s.resolution
}

func (s *shadows) NearFar() (float32, float32) {
	return s.near, s.far
}

func (s *shadows) Allocations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allocations
}

func (s *shadows) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.cubemaps {
		s.release(c)
		delete(s.cubemaps, id)
	}
	if s.arrayView != nil {
		s.device.Release(s.arrayView)
		s.arrayView = nil
	}
	if s.array != nil {
		s.device.Release(s.array)
		s.array = nil
	}
	if s.sampler != nil {
		s.device.Release(s.sampler)
		s.sampler = nil
	}
}
