// package camera holds the viewer's position, orientation and projection parameters. The renderer snapshots a Camera
// into a GPUCameraUniform once per frame; input handling lives outside this package.
package camera

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-pbr/common"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// maxPitch keeps the view direction away from the up vector so the view basis never degenerates.
const maxPitch = math32.Pi/2 - 0.001

// cameraImpl is the implementation of the Camera interface.
type cameraImpl struct {
	mu *sync.Mutex

	position mgl32.Vec3
	yaw      float32
	pitch    float32
	up       mgl32.Vec3

	fov    float32
	aspect float32
	near   float32
	far    float32
}

// Camera defines the interface for a perspective camera oriented by yaw and pitch.
// Yaw 0 and pitch 0 look down -Z; positive yaw turns towards +X and positive pitch looks up.
// All accessors are safe for concurrent use.
type Camera interface {
	// Position retrieves the world-space camera position.
	//
	// Returns:
	//   - mgl32.Vec3: the position
	Position() mgl32.Vec3

	// YawPitch retrieves the camera orientation angles in radians.
	//
	// Returns:
	//   - yaw: rotation about the up axis
	//   - pitch: elevation above the horizon
	YawPitch() (yaw, pitch float32)

	// Forward returns the unit view direction derived from yaw and pitch.
	//
	// Returns:
	//   - mgl32.Vec3: the view direction
	Forward() mgl32.Vec3

	// Up retrieves the camera's up vector.
	//
	// Returns:
	//   - mgl32.Vec3: the up vector
	Up() mgl32.Vec3

	// Fov retrieves the vertical field of view in radians.
	//
	// Returns:
	//   - float32: the field of view
	Fov() float32

	// Aspect retrieves the aspect ratio (width / height).
	//
	// Returns:
	//   - float32: the aspect ratio
	Aspect() float32

	// Near retrieves the near clip distance.
	//
	// Returns:
	//   - float32: the near plane
	Near() float32

	// Far retrieves the far clip distance.
	//
	// Returns:
	//   - float32: the far plane
	Far() float32

	// SetPosition moves the camera.
	//
	// Parameters:
	//   - position: the new world-space position
	SetPosition(position mgl32.Vec3)

	// SetYawPitch orients the camera. Pitch is clamped just short of straight up or down.
	//
	// Parameters:
	//   - yaw: rotation about the up axis in radians
	//   - pitch: elevation in radians
	SetYawPitch(yaw, pitch float32)

	// SetLookDirection orients the camera along a direction, converting it to yaw and pitch.
	//
	// Parameters:
	//   - dir: the view direction, need not be normalized
	//
	// Returns:
	//   - error: common.ErrDegenerateBasis if dir has zero length
	SetLookDirection(dir mgl32.Vec3) error

	// SetAspect updates the aspect ratio, typically on window resize.
	//
	// Parameters:
	//   - aspect: width / height
	SetAspect(aspect float32)

	// SetFov updates the vertical field of view.
	//
	// Parameters:
	//   - fov: the field of view in radians
	SetFov(fov float32)

	// ViewMatrix computes the world-to-view matrix.
	//
	// Returns:
	//   - mgl32.Mat4: the view matrix
	//   - error: common.ErrDegenerateBasis if the view direction is parallel to up
	ViewMatrix() (mgl32.Mat4, error)

	// ProjectionMatrix computes the view-to-clip matrix with WebGPU [0, 1] depth.
	//
	// Returns:
	//   - mgl32.Mat4: the projection matrix
	ProjectionMatrix() mgl32.Mat4

	// Uniform snapshots the camera into its GPU uniform layout.
	//
	// Returns:
	//   - GPUCameraUniform: the uniform contents
	//   - error: common.ErrDegenerateBasis if the view basis is degenerate
	Uniform() (GPUCameraUniform, error)
}

var _ Camera = &cameraImpl{}

// NewCamera creates a new Camera at the origin looking down -Z with a 45 degree field of view, then applies options.
//
// Parameters:
//   - options: optional builder options
//
// Returns:
//   - Camera: the camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:     &sync.Mutex{},
		up:     mgl32.Vec3{0, 1, 0},
		fov:    mgl32.DegToRad(45),
		aspect: 1.0,
		near:   0.1,
		far:    100.0,
	}
	for _, option := range options {
		option(c)
	}
	return c
}

func (c *cameraImpl) Position() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

func (c *cameraImpl) YawPitch() (float32, float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.yaw, c.pitch
}

func (c *cameraImpl) Forward() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.forward()
}

func (c *cameraImpl) Up() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.up
}

func (c *cameraImpl) Fov() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fov
}

func (c *cameraImpl) Aspect() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect
}

func (c *cameraImpl) Near() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.near
}

func (c *cameraImpl) Far() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.far
}

func (c *cameraImpl) SetPosition(position mgl32.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.position = position
}

func (c *cameraImpl) SetYawPitch(yaw, pitch float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.yaw = yaw
	c.pitch = mgl32.Clamp(pitch, -maxPitch, maxPitch)
}

func (c *cameraImpl) SetLookDirection(dir mgl32.Vec3) error {
	if dir.Len() < 1e-6 {
		return common.ErrDegenerateBasis
	}
	d := dir.Normalize()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.yaw = math32.Atan2(d.X(), -d.Z())
	c.pitch = mgl32.Clamp(math32.Asin(mgl32.Clamp(d.Y(), -1, 1)), -maxPitch, maxPitch)
	return nil
}

func (c *cameraImpl) SetAspect(aspect float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aspect = aspect
}

func (c *cameraImpl) SetFov(fov float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fov = fov
}

func (c *cameraImpl) ViewMatrix() (mgl32.Mat4, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return common.LookTo(c.position, c.forward(), c.up)
}

func (c *cameraImpl) ProjectionMatrix() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return common.Perspective(c.fov, c.aspect, c.near, c.far)
}

func (c *cameraImpl) Uniform() (GPUCameraUniform, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	view, err := common.LookTo(c.position, c.forward(), c.up)
	if err != nil {
		return GPUCameraUniform{}, err
	}
	proj := common.Perspective(c.fov, c.aspect, c.near, c.far)
	return GPUCameraUniform{
		View:     view,
		Proj:     proj,
		InvView:  view.Inv(),
		InvProj:  proj.Inv(),
		Position: [4]float32{c.position.X(), c.position.Y(), c.position.Z(), 1},
	}, nil
}

// forward must be called with c.mu held.
func (c *cameraImpl) forward() mgl32.Vec3 {
	cp := math32.Cos(c.pitch)
	return mgl32.Vec3{
		cp * math32.Sin(c.yaw),
		math32.Sin(c.pitch),
		-cp * math32.Cos(c.yaw),
	}
}
