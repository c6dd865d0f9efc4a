// package extract turns the CPU scene graph into a RenderWorld: a flat, ordered draw list with resolved world
// transforms and absolute material indices, plus the camera, light and environment bind groups the passes consume.
//
// GPU resources live in a persistent arena keyed by geometry, node and material IDs. Each extraction reuses what
// is resident, re-uploads only transforms whose bytes changed and releases entries whose IDs disappeared.
package extract

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-pbr/common"
	"github.com/Carmen-Shannon/oxy-pbr/engine/camera"
	"github.com/Carmen-Shannon/oxy-pbr/engine/environment"
	"github.com/Carmen-Shannon/oxy-pbr/engine/light"
	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/layout"
	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-pbr/engine/scene"
	"github.com/Carmen-Shannon/oxy-pbr/engine/shadow"
	"github.com/Carmen-Shannon/oxy-pbr/engine/transform"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrMaterialIndex is the cause of the panic raised when a primitive's material index is outside its entity's
	// material list.
	ErrMaterialIndex = errors.New("material index out of range")

	// ErrNoCamera is returned when a snapshot has no camera.
	ErrNoCamera = errors.New("no camera")
)

// Snapshot is the CPU scene state one extraction reads. Light values and entity root transforms are copies, so a
// tick moving them while the extraction runs cannot make two parts of one RenderWorld disagree.
type Snapshot struct {
	Entities []EntityState
	Camera   camera.Camera
	Lights   []light.State
	Ambient  [3]float32
}

// EntityState pairs an entity with the root matrix it had when the snapshot was taken.
type EntityState struct {
	Entity scene.Entity
	Root   mgl32.Mat4
}

// EntitiesOf reads the root transform of every entity, in order.
//
// Parameters:
//   - entities: the entities
//
// Returns:
//   - []EntityState: one state per entity
func EntitiesOf(entities []scene.Entity) []EntityState {
	out := make([]EntityState, len(entities))
	for i, e := range entities {
		out[i] = EntityState{Entity: e, Root: e.Transform().Matrix()}
	}
	return out
}

// SnapshotOf captures the current entities, camera, lights and ambient color of a scene.
//
// Parameters:
//   - s: the scene
//
// Returns:
//   - Snapshot: the snapshot
func SnapshotOf(s scene.Scene) Snapshot {
	return Snapshot{
		Entities: EntitiesOf(s.Entities()),
		Camera:   s.Camera(),
		Lights:   light.StatesOf(s.Lights()),
		Ambient:  s.AmbientColor(),
	}
}

// RenderObject is one drawable primitive of the extracted frame.
type RenderObject struct {
	EntityIndex int
	NodeID      uuid.UUID
	Primitive   int
	// MaterialIndex indexes RenderWorld.Materials: the primitive's local index plus the material count of every
	// earlier entity.
	MaterialIndex int
	World         transform.World
	Geometry      *GeometryBuffers
	Transform     bind_group_provider.BindGroupProvider
}

// ExtractedMaterial is one entry of the flat material list.
type ExtractedMaterial struct {
	EntityIndex int
	Material    material.Material
	Group       bind_group_provider.BindGroupProvider
}

// CameraNode is a camera mount point found in the node trees.
type CameraNode struct {
	EntityIndex int
	NodeID      uuid.UUID
	Params      scene.CameraParams
	World       mgl32.Mat4
}

// Stats describes the device work one extraction performed.
type Stats struct {
	Objects         int
	TransformWrites int
	LightsWritten   bool
	Swept           SweepStats
}

// RenderWorld is the complete, self-consistent GPU-side snapshot of one frame. A new RenderWorld is returned by
// every extraction; the bind groups it references are owned by the extractor.
type RenderWorld struct {
	Objects   []RenderObject
	Materials []ExtractedMaterial
	Cameras   []CameraNode

	Camera      bind_group_provider.BindGroupProvider
	Lights      bind_group_provider.BindGroupProvider
	LightCount  int
	Shadows     []*shadow.Cubemap
	Skybox      bind_group_provider.BindGroupProvider
	Environment bind_group_provider.BindGroupProvider

	Stats Stats
}

// Casters returns the shadow draw data of every object, in object order.
//
// Returns:
//   - []shadow.Caster: the casters
func (w *RenderWorld) Casters() []shadow.Caster {
	out := make([]shadow.Caster, len(w.Objects))
	for i, o := range w.Objects {
		out[i] = shadow.Caster{
			Transform:  o.Transform.BindGroup(),
			Vertices:   o.Geometry.Vertices,
			Indices:    o.Geometry.Indices,
			IndexCount: o.Geometry.IndexCount,
		}
	}
	return out
}

// extractor is the implementation of the Extractor interface.
type extractor struct {
	mu       *sync.Mutex
	logger   *zap.Logger
	device   gpu.Device
	registry layout.Registry
	shadows  shadow.Shadows

	maxLights int
	arena     *arena

	camera      bind_group_provider.BindGroupProvider
	lights      bind_group_provider.BindGroupProvider
	skybox      bind_group_provider.BindGroupProvider
	environment bind_group_provider.BindGroupProvider
}

// Extractor defines the interface for the render-world extractor.
type Extractor interface {
	// Extract builds the RenderWorld of a snapshot. Entities are visited in order, each node tree depth-first
	// with primitives in mesh order, which fixes both the object order and every entity's material offset.
	//
	// A primitive whose material index is outside its entity's material list is a content bug: Extract panics
	// with a common.StageError naming the entity, node and primitive.
	//
	// Parameters:
	//   - snap: the scene state
	//   - env: the environment maps to bind, or nil to leave the skybox and environment groups unset
	//
	// Returns:
	//   - *RenderWorld: the new render world
	//   - error: a common.StageError naming the stage and the entity or light index that failed
	Extract(snap Snapshot, env environment.Environment) (*RenderWorld, error)

	// Resident returns how many geometries, transforms and materials the arena holds.
	//
	// Returns:
	//   - int: resident geometries
	//   - int: resident transforms
	//   - int: resident materials
	Resident() (int, int, int)

	// Release frees every resource the extractor owns. Shadow cubemaps belong to the shadow subsystem.
	Release()
}

var _ Extractor = &extractor{}

// NewExtractor creates an extractor with its default material textures, material sampler and the camera and
// lights bind groups.
//
// Parameters:
//   - device: the device resources are created on
//   - registry: the bind group layout registry of device
//   - shadows: the shadow subsystem that owns the light cubemaps
//   - options: functional options such as WithMaxLights and WithLogger
//
// Returns:
//   - Extractor: the extractor
//   - error: a common.StageError if a shared resource cannot be created
func NewExtractor(device gpu.Device, registry layout.Registry, shadows shadow.Shadows, options ...ExtractorBuilderOption) (Extractor, error) {
	x := &extractor{
		mu:        &sync.Mutex{},
		logger:    zap.NewNop(),
		device:    device,
		registry:  registry,
		shadows:   shadows,
	}
	for _, opt := range options {
		opt(x)
	}
	fail := func(err error) (Extractor, error) {
		x.Release()
		return nil, common.NewStageError(common.StageExtraction, common.SubjectNone, 0, err)
	}

	a, err := newArena(device, registry, x.logger)
	if err != nil {
		return fail(err)
	}
	x.arena = a

	x.camera = bind_group_provider.NewBindGroupProvider("camera", layout.BindGroupCamera)
	if err := x.camera.Init(device, registry); err != nil {
		return fail(err)
	}

	x.lights = bind_group_provider.NewBindGroupProvider("lights", layout.BindGroupLights,
		bind_group_provider.WithSampler(layout.LightsBindingSampler, shadows.Sampler()),
		bind_group_provider.WithTextureView(layout.LightsBindingShadowMaps, shadows.ShadowMaps()),
		bind_group_provider.WithBufferSize(layout.LightsBindingBuffer, light.LightBufferSize(max(x.maxLights, shadows.Capacity()))),
	)
	if err := x.lights.Init(device, registry); err != nil {
		return fail(err)
	}
	return x, nil
}

func (x *extractor) Extract(snap Snapshot, env environment.Environment) (*RenderWorld, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			x.arena.forget()
			panic(r)
		}
	}()

	w, err := x.extract(snap, env)
	if err != nil {
		x.arena.forget()
		return nil, err
	}
	w.Stats.Swept = x.arena.sweep()
	return w, nil
}

func (x *extractor) extract(snap Snapshot, env environment.Environment) (*RenderWorld, error) {
	w := &RenderWorld{}
	offset := 0
	for i, es := range snap.Entities {
		e := es.Entity
		if err := x.extractEntity(w, i, e, es.Root, offset); err != nil {
			return nil, common.NewStageError(common.StageExtraction, common.SubjectEntity, i, err)
		}
		for _, m := range e.Materials() {
			group, err := x.arena.material(m)
			if err != nil {
				return nil, common.NewStageError(common.StageExtraction, common.SubjectEntity, i, err)
			}
			p := m.Params()
			if _, err := group.WriteIfChanged(layout.MaterialBindingParams, p.Marshal()); err != nil {
				return nil, common.NewStageError(common.StageExtraction, common.SubjectEntity, i, err)
			}
			w.Materials = append(w.Materials, ExtractedMaterial{EntityIndex: i, Material: m, Group: group})
		}
		offset += len(e.Materials())
	}
	w.Stats.Objects = len(w.Objects)

	if err := x.extractCamera(w, snap.Camera); err != nil {
		return nil, common.NewStageError(common.StageExtraction, common.SubjectNone, 0, err)
	}
	if err := x.extractLights(w, snap.Lights, snap.Ambient); err != nil {
		return nil, err
	}
	if err := x.bindEnvironment(w, env); err != nil {
		return nil, common.NewStageError(common.StageExtraction, common.SubjectNone, 0, err)
	}
	return w, nil
}

// extractEntity walks one entity's node trees, appending a RenderObject per mesh primitive.
func (x *extractor) extractEntity(w *RenderWorld, index int, e scene.Entity, root mgl32.Mat4, offset int) error {
	count := len(e.Materials())
	return scene.Walk(e.Nodes(), root, scene.Visitor{
		Mesh: func(n *scene.Node, world transform.World) error {
			group, err := x.arena.transform(n.ID())
			if err != nil {
				return err
			}
			u := world.Uniform()
			wrote, err := group.WriteIfChanged(layout.TransformBindingUniform, u.Marshal())
			if err != nil {
				return err
			}
			if wrote {
				w.Stats.TransformWrites++
			}

			for p, prim := range n.Mesh().Primitives {
				if prim.Material < 0 || prim.Material >= count {
					panic(common.NewStageError(common.StageExtraction, common.SubjectEntity, index,
						fmt.Errorf("node %s primitive %d: %w: %d not in [0, %d)", n.ID(), p, ErrMaterialIndex, prim.Material, count)))
				}
				geo, err := x.arena.geometry(prim.Geometry)
				if err != nil {
					return fmt.Errorf("primitive %d: %w", p, err)
				}
				w.Objects = append(w.Objects, RenderObject{
					EntityIndex:   index,
					NodeID:        n.ID(),
					Primitive:     p,
					MaterialIndex: offset + prim.Material,
					World:         world,
					Geometry:      geo,
					Transform:     group,
				})
			}
			return nil
		},
		Camera: func(n *scene.Node, world mgl32.Mat4) error {
			w.Cameras = append(w.Cameras, CameraNode{EntityIndex: index, NodeID: n.ID(), Params: *n.Camera(), World: world})
			return nil
		},
	})
}

func (x *extractor) extractCamera(w *RenderWorld, cam camera.Camera) error {
	if cam == nil {
		return ErrNoCamera
	}
	u, err := cam.Uniform()
	if err != nil {
		return fmt.Errorf("camera: %w", err)
	}
	if _, err := x.camera.WriteIfChanged(layout.CameraBindingUniform, u.Marshal()); err != nil {
		return err
	}
	w.Camera = x.camera
	return nil
}

// extractLights prepares every light's shadow cube, binds the cube array and writes the lights buffer when its
// bytes changed. Shadow cubes and buffer records are built from the same light states.
func (x *extractor) extractLights(w *RenderWorld, lights []light.State, ambient [3]float32) error {
	if x.maxLights > 0 && len(lights) > x.maxLights {
		return common.NewStageError(common.StageExtraction, common.SubjectLight, x.maxLights,
			fmt.Errorf("%w: %d lights, at most %d", light.ErrTooManyLights, len(lights), x.maxLights))
	}
	cubemaps, err := x.shadows.Prepare(lights)
	if err != nil {
		return err
	}
	x.lights.SetTextureView(layout.LightsBindingShadowMaps, x.shadows.ShadowMaps())
	if _, err := x.lights.Commit(); err != nil {
		return common.NewStageError(common.StageExtraction, common.SubjectNone, 0, err)
	}

	near, far := x.shadows.NearFar()
	wrote, err := x.lights.WriteIfChanged(layout.LightsBindingBuffer, light.MarshalLightBuffer(ambient, lights, near, far))
	if err != nil {
		return common.NewStageError(common.StageExtraction, common.SubjectNone, 0, err)
	}
	w.Stats.LightsWritten = wrote
	w.Lights = x.lights
	w.LightCount = len(lights)
	w.Shadows = cubemaps
	return nil
}

// bindEnvironment points the skybox and environment bind groups at env's cubemaps, creating them on first use.
func (x *extractor) bindEnvironment(w *RenderWorld, env environment.Environment) error {
	if env == nil {
		return nil
	}
	if x.skybox == nil {
		x.skybox = bind_group_provider.NewBindGroupProvider("skybox", layout.BindGroupSkybox,
			bind_group_provider.WithSampler(layout.SkyboxBindingSampler, env.Sampler()),
			bind_group_provider.WithTextureView(layout.SkyboxBindingCube, env.EnvironmentView()),
		)
		if err := x.skybox.Init(x.device, x.registry); err != nil {
			x.skybox = nil
			return err
		}
		x.environment = bind_group_provider.NewBindGroupProvider("environment", layout.BindGroupEnvironment,
			bind_group_provider.WithSampler(layout.EnvironmentBindingSampler, env.Sampler()),
			bind_group_provider.WithTextureView(layout.EnvironmentBindingIrradiance, env.IrradianceView()),
			bind_group_provider.WithTextureView(layout.EnvironmentBindingCube, env.EnvironmentView()),
		)
		if err := x.environment.Init(x.device, x.registry); err != nil {
			x.skybox.Release()
			x.skybox, x.environment = nil, nil
			return err
		}
	} else {
		x.skybox.SetSampler(layout.SkyboxBindingSampler, env.Sampler())
		x.skybox.SetTextureView(layout.SkyboxBindingCube, env.EnvironmentView())
		x.environment.SetSampler(layout.EnvironmentBindingSampler, env.Sampler())
		x.environment.SetTextureView(layout.EnvironmentBindingIrradiance, env.IrradianceView())
		x.environment.SetTextureView(layout.EnvironmentBindingCube, env.EnvironmentView())
		if _, err := x.skybox.Commit(); err != nil {
			return err
		}
		if _, err := x.environment.Commit(); err != nil {
			return err
		}
	}
	w.Skybox = x.skybox
	w.Environment = x.environment
	return nil
}

func (x *extractor) Resident() (int, int, int) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.arena == nil {
		return 0, 0, 0
	}
	return len(x.arena.geometries), len(x.arena.transforms), len(x.arena.materials)
}

func (x *extractor) Release() {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, p := range []bind_group_provider.BindGroupProvider{x.camera, x.lights, x.skybox, x.environment} {
		if p != nil {
			p.Release()
		}
	}
	x.camera, x.lights, x.skybox, x.environment = nil, nil, nil, nil
	if x.arena != nil {
		x.arena.release()
		x.arena = nil
	}
}
