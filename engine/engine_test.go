package engine

import (
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-pbr/common"
	"github.com/Carmen-Shannon/oxy-pbr/engine/camera"
	"github.com/Carmen-Shannon/oxy-pbr/engine/config"
	"github.com/Carmen-Shannon/oxy-pbr/engine/environment"
	"github.com/Carmen-Shannon/oxy-pbr/engine/light"
	"github.com/Carmen-Shannon/oxy-pbr/engine/model"
	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer"
	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/software"
	"github.com/Carmen-Shannon/oxy-pbr/engine/scene"
	"github.com/Carmen-Shannon/oxy-pbr/engine/transform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallConfig() *config.Config {
	cfg := config.Default()
	cfg.Window.Width = 8
	cfg.Window.Height = 6
	cfg.Shadow.Resolution = 4
	cfg.Environment.CubemapSize = 8
	cfg.Environment.IrradianceSize = 4
	cfg.Environment.SampleDelta = 0.5
	return cfg
}

func testScene(lights ...light.PointLight) scene.Scene {
	floor := scene.NewEntity(
		[]*scene.Node{scene.NewMeshNode(scene.Mesh{Primitives: []scene.Primitive{{Geometry: model.Plane(5), Material: 0}}})},
		[]material.Material{material.NewMaterial()},
	)
	cube := scene.NewEntity(
		[]*scene.Node{scene.NewMeshNode(scene.Mesh{Primitives: []scene.Primitive{{Geometry: model.Cube(0.5), Material: 0}}})},
		[]material.Material{material.NewMaterial(material.WithMetallic(1))},
		scene.WithEntityTransform(transform.FromTranslation(0, 1, 0)),
	)
	return scene.NewScene("test", camera.NewCamera(),
		scene.WithEntities(floor, cube),
		scene.WithLights(lights...),
	)
}

func newTestEngine(t *testing.T, options ...EngineBuilderOption) Engine {
	t.Helper()
	e, err := NewEngine(append([]EngineBuilderOption{WithConfig(smallConfig())}, options...)...)
	require.NoError(t, err)
	t.Cleanup(e.Release)
	return e
}

func softwareDevice(t *testing.T, e Engine) software.Device {
	t.Helper()
	d, ok := e.Renderer().Device().(software.Device)
	require.True(t, ok)
	return d
}

func TestHeadlessEngineUsesSoftwareRenderer(t *testing.T) {
	e := newTestEngine(t)
	assert.Equal(t, renderer.BackendTypeSoftware, e.Renderer().BackendType())
	assert.Nil(t, e.Window())
	assert.NotNil(t, e.Environment())

	w, h := e.Renderer().Size()
	assert.Equal(t, uint32(8), w)
	assert.Equal(t, uint32(6), h)
	assert.Equal(t, uint32(8), e.Pipeline().Targets().Width)
	assert.Equal(t, uint32(8), e.Environment().EnvironmentTexture().Width())
}

func TestRenderFrameRunsEveryPass(t *testing.T) {
	e := newTestEngine(t, WithScene(testScene(light.NewPointLight(light.WithPosition(0, 4, 0)))))
	d := softwareDevice(t, e)
	d.ResetSubmissions()

	frame, err := e.RenderFrame()
	require.NoError(t, err)
	assert.Equal(t, 2, frame.Objects)
	assert.Equal(t, 1, frame.Lights)
	assert.Equal(t, 6, frame.ShadowFaces)
	assert.Len(t, frame.Passes, 6+3)
	assert.Equal(t, uint64(1), e.Frames())

	subs := d.Submissions()
	require.Len(t, subs, len(frame.Passes))
	assert.Equal(t, "tonemap", subs[len(subs)-1].Pass)

	_, err = e.RenderFrame()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), e.Frames())
}

func TestRenderFrameWithMoreLightsThanShadowCapacity(t *testing.T) {
	lights := make([]light.PointLight, 6)
	for i := range lights {
		lights[i] = light.NewPointLight(light.WithPosition(float32(i)-3, 4, 0))
	}
	e := newTestEngine(t, WithScene(testScene(lights...)))
	assert.Equal(t, 4, e.Shadows().Capacity())

	frame, err := e.RenderFrame()
	require.NoError(t, err)
	assert.Equal(t, 6, frame.Lights)
	assert.Equal(t, 36, frame.ShadowFaces)
	assert.Equal(t, 6, e.Shadows().Capacity())
}

func TestRenderFrameWithoutSceneDoesNothing(t *testing.T) {
	e := newTestEngine(t)
	d := softwareDevice(t, e)
	d.ResetSubmissions()

	frame, err := e.RenderFrame()
	require.NoError(t, err)
	assert.Empty(t, frame.Passes)
	assert.Empty(t, d.Submissions())
	assert.Zero(t, e.Frames())
}

func TestResizeKeepsShadowCubemaps(t *testing.T) {
	l := light.NewPointLight(light.WithPosition(0, 4, 0))
	s := testScene(l)
	e := newTestEngine(t, WithScene(s))
	assert.InDelta(t, 8.0/6.0, s.Camera().Aspect(), 1e-6)

	_, err := e.RenderFrame()
	require.NoError(t, err)
	before := e.Shadows().Cubemap(l.ID())
	require.NotNil(t, before)
	texture := before.Texture
	color := e.Pipeline().Targets().Color

	e.Resize(16, 12)
	_, err = e.RenderFrame()
	require.NoError(t, err)

	targets := e.Pipeline().Targets()
	assert.Equal(t, uint32(16), targets.Width)
	assert.Equal(t, uint32(12), targets.Height)
	assert.NotSame(t, color, targets.Color)
	assert.InDelta(t, 16.0/12.0, s.Camera().Aspect(), 1e-6)

	after := e.Shadows().Cubemap(l.ID())
	assert.Same(t, before, after)
	assert.Same(t, texture, after.Texture)
	assert.Equal(t, uint32(4), after.Texture.Width())
}

func TestResizeToZeroIsIgnored(t *testing.T) {
	e := newTestEngine(t, WithScene(testScene()))
	e.Resize(0, 0)
	_, err := e.RenderFrame()
	require.NoError(t, err)
	assert.Equal(t, uint32(8), e.Pipeline().Targets().Width)
}

func TestHDRPathNeedsLoader(t *testing.T) {
	cfg := smallConfig()
	cfg.Environment.HDRPath = "studio.hdr"
	_, err := NewEngine(WithConfig(cfg))
	assert.ErrorIs(t, err, ErrNoHDRLoader)

	var se *common.StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, common.StageEnvironment, se.Stage)

	var loaded string
	e, err := NewEngine(WithConfig(cfg), WithHDRLoader(func(path string) (*common.HDRImage, error) {
		loaded = path
		return environment.Procedural(16, 8, [3]float32{1, 1, 1}, [3]float32{0, 0, 0})
	}))
	require.NoError(t, err)
	defer e.Release()
	assert.Equal(t, "studio.hdr", loaded)
}

func TestInvalidConfigIsRejected(t *testing.T) {
	cfg := smallConfig()
	cfg.Shadow.Resolution = 0
	_, err := NewEngine(WithConfig(cfg))
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestRunHeadlessUntilQuit(t *testing.T) {
	e := newTestEngine(t, WithScene(testScene()))
	var frames atomic.Int32
	e.SetRenderCallback(func(float32) {
		if frames.Add(1) == 3 {
			e.Quit()
		}
	})

	done := make(chan struct{})
	go func() {
		e.Run()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after Quit")
	}
	assert.GreaterOrEqual(t, e.Frames(), uint64(3))
}

func TestFrameFailureIsFatal(t *testing.T) {
	cfg := smallConfig()
	cfg.Renderer.MaxPointLights = 1
	failures := make(chan error, 1)
	e, err := NewEngine(WithConfig(cfg), withFatal(func(err error) { failures <- err }),
		WithScene(testScene(light.NewPointLight(), light.NewPointLight(light.WithPosition(1, 2, 3)))),
	)
	require.NoError(t, err)
	defer e.Release()

	done := make(chan struct{})
	go func() {
		e.Run()
		close(done)
	}()

	select {
	case err := <-failures:
		var se *common.StageError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, common.StageExtraction, se.Stage)
		assert.Equal(t, common.SubjectLight, se.Subject)
		assert.ErrorIs(t, err, light.ErrTooManyLights)
	case <-time.After(10 * time.Second):
		t.Fatal("no fatal frame error")
	}
	<-done
	assert.Zero(t, e.Frames())
}

func TestConfigWatchReloadsExposure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("renderer:\n  exposure: 1.0\n"), 0o644))

	e := newTestEngine(t, WithScene(testScene()), WithConfigWatch(path), WithRenderFrameLimit(200))
	done := make(chan struct{})
	go func() {
		e.Run()
		close(done)
	}()
	defer func() {
		e.Quit()
		<-done
	}()

	require.Eventually(t, func() bool { return e.Frames() > 0 }, 10*time.Second, 5*time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("renderer:\n  exposure: 2.5\n"), 0o644))
	assert.Eventually(t, func() bool { return e.Pipeline().Exposure() == 2.5 }, 5*time.Second, 10*time.Millisecond)
}

func TestSetTickRateWhileStopped(t *testing.T) {
	e := newTestEngine(t, WithTickRate(30))
	impl := e.(*engine)
	assert.Equal(t, time.Second/30, impl.engineTickRate)
	e.SetTickRate(0)
	assert.Equal(t, time.Second/60, impl.engineTickRate)
}
