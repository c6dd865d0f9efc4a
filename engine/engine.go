package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-pbr/common"
	"github.com/Carmen-Shannon/oxy-pbr/engine/config"
	"github.com/Carmen-Shannon/oxy-pbr/engine/environment"
	"github.com/Carmen-Shannon/oxy-pbr/engine/extract"
	"github.com/Carmen-Shannon/oxy-pbr/engine/pass"
	"github.com/Carmen-Shannon/oxy-pbr/engine/profiler"
	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer"
	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-pbr/engine/scene"
	"github.com/Carmen-Shannon/oxy-pbr/engine/shadow"
	"github.com/Carmen-Shannon/oxy-pbr/engine/window"
	"go.uber.org/zap"
)

// Colors of the procedural sky built when no HDR environment is configured.
var (
	ProceduralSky    = [3]float32{0.55, 0.7, 1.0}
	ProceduralGround = [3]float32{0.18, 0.16, 0.14}
)

// ErrNoHDRLoader is returned when the config names an HDR environment but no loader was given to decode it.
var ErrNoHDRLoader = errors.New("hdr environment configured without a loader")

// HDRLoader decodes the equirectangular HDR image at path.
type HDRLoader func(path string) (*common.HDRImage, error)

// engine implements the Engine interface.
// Coordinates engine, render, and window threads.
type engine struct {
	mu     *sync.Mutex
	logger *zap.Logger
	base   *zap.Logger

	cfg        *config.Config
	configPath string

	tickRateChannel chan time.Duration // Channel for dynamic tick rate updates

	running atomic.Bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	window window.Window

	renderer     renderer.Renderer
	ownsRenderer bool
	shadows      shadow.Shadows
	extractor    extract.Extractor
	env          environment.Environment
	ownsEnv      bool
	hdrLoader    HDRLoader
	pipeline     pass.Pipeline

	profiler         *profiler.Profiler
	profilingEnabled atomic.Bool

	engineTickRate time.Duration
	tickCallback   func(deltaTime float32)
	renderCallback func(deltaTime float32)

	scene scene.Scene

	resizePending bool
	resizeWidth   int
	resizeHeight  int

	frames uint64
	fatal  func(err error)

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped
}

// Engine is the main entry point for the engine.
// It owns the device-side subsystems and runs the per-frame extract, render and present sequence.
type Engine interface {
	// Window returns the underlying window, or nil for a headless engine.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// Renderer returns the device facade frames are presented through.
	Renderer() renderer.Renderer

	// Pipeline returns the pass pipeline.
	Pipeline() pass.Pipeline

	// Environment returns the environment the skybox and PBR passes sample.
	Environment() environment.Environment

	// Shadows returns the shadow subsystem.
	Shadows() shadow.Shadows

	// Config returns the configuration the engine was built with.
	Config() *config.Config

	// SetScene sets the scene rendered from the next frame on and fits its camera to the output aspect.
	//
	// Parameters:
	//   - s: the scene, or nil to render nothing
	SetScene(s scene.Scene)

	// Scene returns the current scene.
	Scene() scene.Scene

	// Resize requests new output dimensions. The renderer surface, HDR targets and camera aspect are updated before
	// the next frame renders. Shadow cubemaps are never touched.
	//
	// Parameters:
	//   - width: the new width in pixels
	//   - height: the new height in pixels
	Resize(width, height int)

	// SetExposure sets the tone-map exposure used from the next frame on.
	SetExposure(exposure float32)

	// RenderFrame renders one frame of the current scene and presents it.
	//
	// Returns:
	//   - pass.Frame: what was recorded; zero when no scene is set
	//   - error: a common.StageError naming the stage and index that failed
	RenderFrame() (pass.Frame, error)

	// Frames returns the number of frames presented.
	Frames() uint64

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickRate sets the engine tick rate in frames per second.
	// The tick callback will be called at this rate for game logic updates.
	//
	// Parameters:
	//   - fps: target frames per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick.
	// Use this for camera control, input processing and scene updates.
	//
	// Parameters:
	//   - callback: function to call at the configured tick rate, receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers the function called after each presented frame.
	//
	// Parameters:
	//   - callback: function to call each render frame, receiving the delta time in seconds
	SetRenderCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop (default).
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// Run starts the engine and render loops. With a window it polls window events on the calling goroutine and
	// blocks until the window closes or Quit is called; headless it blocks until Quit. A frame that fails is logged
	// and then panics.
	Run()

	// Quit signals all engine goroutines to stop.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()

	// Release frees the pass pipeline, the shadow and extraction resources and, when the engine created them, the
	// environment and renderer.
	Release()
}

var _ Engine = &engine{}

// NewEngine creates a new Engine instance with the provided options.
// Without WithRenderer a renderer is created from the config: WebGPU when a window is set, the software device
// otherwise.
//
// Parameters:
//   - options: functional options for engine configuration (window, config, scene, etc.)
//
// Returns:
//   - Engine: the newly created engine
//   - error: an error if the config is invalid or a subsystem cannot be created
func NewEngine(options ...EngineBuilderOption) (Engine, error) {
	e := &engine{
		mu:              &sync.Mutex{},
		base:            zap.NewNop(),
		cfg:             config.Default(),
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
		engineTickRate:  time.Second / 60,
	}
	e.fatal = func(err error) { panic(err) }

	for _, opt := range options {
		opt(e)
	}
	e.logger = e.base.Named("engine")
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}
	e.profiler = profiler.NewProfiler(profiler.WithLogger(e.base))
	if e.cfg.Profiling.Enabled {
		e.profilingEnabled.Store(true)
	}

	if err := e.init(); err != nil {
		e.Release()
		return nil, err
	}

	if e.window != nil {
		e.window.SetResizeCallback(e.Resize)
	}
	if e.scene != nil {
		e.fitCamera()
	}
	e.logger.Info("engine created",
		zap.Stringer("backend", e.renderer.BackendType()),
		zap.Stringer("surface_format", e.renderer.SurfaceFormat()),
	)
	return e, nil
}

// init creates the renderer if none was given, then the shadow, extraction, environment and pass subsystems.
func (e *engine) init() error {
	if e.renderer == nil {
		if err := e.initRenderer(); err != nil {
			return err
		}
	}
	device, registry, cache := e.renderer.Device(), e.renderer.Registry(), e.renderer.Pipelines()

	var err error
	e.shadows, err = shadow.NewShadows(device, registry, cache,
		shadow.WithResolution(e.cfg.Shadow.Resolution),
		shadow.WithNearFar(e.cfg.Shadow.Near, e.cfg.Shadow.Far),
		shadow.WithCapacity(e.cfg.Shadow.Capacity),
		shadow.WithLogger(e.base),
	)
	if err != nil {
		return err
	}
	e.extractor, err = extract.NewExtractor(device, registry, e.shadows,
		extract.WithMaxLights(e.cfg.Renderer.MaxPointLights),
		extract.WithLogger(e.base),
	)
	if err != nil {
		return err
	}
	if err := e.initEnvironment(); err != nil {
		return err
	}

	c := e.cfg.Renderer.ClearColor
	width, height := e.renderer.Size()
	e.pipeline, err = pass.NewPipeline(device, registry, cache, e.shadows, width, height,
		pass.WithExposure(e.cfg.Renderer.Exposure),
		pass.WithClearColor(gpu.Color{R: c[0], G: c[1], B: c[2], A: c[3]}),
		pass.WithLogger(e.base),
	)
	return err
}

func (e *engine) initRenderer() error {
	backend := renderer.BackendTypeSoftware
	if e.window != nil {
		backend = renderer.BackendTypeWGPU
	}
	mode := renderer.PresentModeUncapped
	if e.cfg.Window.VSync {
		mode = renderer.PresentModeVSync
	}
	r, err := renderer.NewRenderer(backend, e.window,
		renderer.WithPresentMode(mode),
		renderer.WithForceFallbackAdapter(e.cfg.Renderer.ForceFallbackAdapter),
		renderer.WithSize(uint32(e.cfg.Window.Width), uint32(e.cfg.Window.Height)),
		renderer.WithLogger(e.base),
	)
	if err != nil {
		return fmt.Errorf("failed to create renderer: %w", err)
	}
	e.renderer = r
	e.ownsRenderer = true
	return nil
}

// initEnvironment builds the environment cubemaps from the configured HDR image, or from the procedural sky when
// no path is configured. A prebuilt environment given through WithEnvironment is kept as is.
func (e *engine) initEnvironment() error {
	if e.env != nil {
		return nil
	}
	ec := e.cfg.Environment

	var source *common.HDRImage
	var err error
	if ec.HDRPath != "" {
		if e.hdrLoader == nil {
			return common.NewStageError(common.StageEnvironment, common.SubjectNone, 0,
				fmt.Errorf("%w: %s", ErrNoHDRLoader, ec.HDRPath))
		}
		source, err = e.hdrLoader(ec.HDRPath)
		if err != nil {
			return common.NewStageError(common.StageEnvironment, common.SubjectNone, 0,
				fmt.Errorf("failed to load %s: %w", ec.HDRPath, err))
		}
	} else {
		source, err = environment.Procedural(int(2*ec.CubemapSize), int(ec.CubemapSize), ProceduralSky, ProceduralGround)
		if err != nil {
			return common.NewStageError(common.StageEnvironment, common.SubjectNone, 0, err)
		}
	}

	e.env, err = environment.Build(e.renderer.Device(), e.renderer.Registry(), e.renderer.Pipelines(), source,
		environment.WithCubemapSize(ec.CubemapSize),
		environment.WithIrradianceSize(ec.IrradianceSize),
		environment.WithSampleDelta(ec.SampleDelta),
		environment.WithLogger(e.base),
	)
	if err != nil {
		return err
	}
	e.ownsEnv = true
	return nil
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Renderer() renderer.Renderer {
	return e.renderer
}

func (e *engine) Pipeline() pass.Pipeline {
	return e.pipeline
}

func (e *engine) Environment() environment.Environment {
	return e.env
}

func (e *engine) Shadows() shadow.Shadows {
	return e.shadows
}

func (e *engine) Config() *config.Config {
	return e.cfg
}

func (e *engine) SetScene(s scene.Scene) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scene = s
	e.fitCamera()
}

func (e *engine) Scene() scene.Scene {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scene
}

// fitCamera sets the scene camera's aspect to the renderer size. Callers hold mu or have not started the engine.
func (e *engine) fitCamera() {
	if e.scene == nil || e.scene.Camera() == nil {
		return
	}
	width, height := e.renderer.Size()
	if width == 0 || height == 0 {
		return
	}
	e.scene.Camera().SetAspect(float32(width) / float32(height))
}

func (e *engine) Resize(width, height int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resizePending = true
	e.resizeWidth = width
	e.resizeHeight = height
}

// applyResize propagates a pending resize to the renderer surface, the HDR targets and the camera.
func (e *engine) applyResize() error {
	if !e.resizePending {
		return nil
	}
	e.resizePending = false

	changed, err := e.renderer.Resize(e.resizeWidth, e.resizeHeight)
	if err != nil {
		return asStageError(fmt.Errorf("failed to resize surface: %w", err))
	}
	if !changed {
		return nil
	}
	width, height := e.renderer.Size()
	if err := e.pipeline.Resize(width, height); err != nil {
		return asStageError(err)
	}
	e.fitCamera()
	e.logger.Debug("resized", zap.Uint32("width", width), zap.Uint32("height", height))
	return nil
}

func (e *engine) SetExposure(exposure float32) {
	e.pipeline.SetExposure(exposure)
}

func (e *engine) RenderFrame() (pass.Frame, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.applyResize(); err != nil {
		return pass.Frame{}, err
	}
	if e.scene == nil {
		return pass.Frame{}, nil
	}

	start := time.Now()
	world, err := e.extractor.Extract(extract.SnapshotOf(e.scene), e.env)
	if err != nil {
		return pass.Frame{}, asStageError(err)
	}
	extracted := time.Now()

	output, err := e.renderer.AcquireFrame()
	if err != nil {
		return pass.Frame{}, asStageError(fmt.Errorf("failed to acquire frame: %w", err))
	}
	frame, err := e.pipeline.Render(world, output)
	if err != nil {
		return frame, asStageError(err)
	}
	if err := e.renderer.Present(); err != nil {
		return frame, asStageError(fmt.Errorf("failed to present: %w", err))
	}
	e.frames++

	if e.profilingEnabled.Load() {
		e.profiler.Tick(profiler.Sample{
			Objects:     frame.Objects,
			Draws:       frame.Draws,
			ShadowFaces: frame.ShadowFaces,
			Lights:      frame.Lights,
			Extract:     extracted.Sub(start),
			Render:      time.Since(extracted),
		})
	}
	return frame, nil
}

// asStageError leaves a StageError as is and wraps anything else as a pass-stage failure.
func asStageError(err error) error {
	var se *common.StageError
	if errors.As(err, &se) {
		return err
	}
	return common.NewStageError(common.StagePass, common.SubjectNone, 0, err)
}

func (e *engine) Frames() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frames
}

func (e *engine) Run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.watchConfig(ctx)

	e.running.Store(true)
	e.handle()
	if e.window != nil {
		// the window is closed from the thread that polls it
		e.window.SetUpdateCallback(func() {
			select {
			case <-e.quitChannel:
				_ = e.window.Close()
			default:
			}
		})
		e.window.ProcessMessages()
		e.signalQuit()
	}
	e.wg.Wait()
	e.running.Store(false)
}

// watchConfig applies exposure changes of the watched config file on the next frame. Other values need a
// restart.
func (e *engine) watchConfig(ctx context.Context) {
	if e.configPath == "" {
		return
	}
	err := config.Watch(ctx, e.configPath, func(cfg *config.Config, err error) {
		if err != nil {
			e.logger.Warn("config reload failed", zap.String("path", e.configPath), zap.Error(err))
			return
		}
		if cfg.Renderer.Exposure != e.pipeline.Exposure() {
			e.pipeline.SetExposure(cfg.Renderer.Exposure)
			e.logger.Info("exposure reloaded", zap.Float32("exposure", cfg.Renderer.Exposure))
		}
	})
	if err != nil {
		e.logger.Warn("config watch disabled", zap.String("path", e.configPath), zap.Error(err))
	}
}

// Quit signals all engine goroutines to stop and shuts down the engine.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal all goroutines to exit.
// Uses sync.Once to ensure the channel is only closed once.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
	})
}

// handle launches the engine and render goroutines.
// Each goroutine is tracked by the engine's WaitGroup.
func (e *engine) handle() {
	e.wg.Add(2)
	go e.handleEngine()
	go e.handleRender()
}

// handleEngine runs the fixed-rate engine tick loop in its own goroutine.
// Fires the tick callback at the configured tick rate and listens for dynamic rate changes
// via tickRateChannel. Exits when the quit channel is closed.
func (e *engine) handleEngine() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// handleRender runs the uncapped (or frame-limited) render loop in its own goroutine.
// A frame error stops the engine and is handed to the fatal handler, which panics by default.
func (e *engine) handleRender() {
	defer e.wg.Done()

	lastRender := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		default:
		}

		now := time.Now()
		dt := float32(now.Sub(lastRender).Seconds())
		lastRender = now

		if _, err := e.RenderFrame(); err != nil {
			e.fail(err)
			return
		}

		if e.renderCallback != nil {
			e.renderCallback(dt)
		}

		// Frame rate limiting
		if e.renderFrameLimit > 0 {
			elapsed := time.Since(lastRender)
			if remaining := e.renderFrameLimit - elapsed; remaining > 0 {
				time.Sleep(remaining)
			}
		}
	}
}

// fail logs a frame failure with its stage and index, stops the engine and hands the error to the fatal handler.
func (e *engine) fail(err error) {
	fields := []zap.Field{zap.Error(err)}
	var se *common.StageError
	if errors.As(err, &se) {
		fields = append(fields, zap.String("stage", string(se.Stage)))
		if se.Subject != common.SubjectNone {
			fields = append(fields, zap.String("subject", string(se.Subject)), zap.Int("index", se.Index))
		}
	}
	e.logger.Error("frame failed", fields...)
	e.signalQuit()
	e.fatal(err)
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled.Store(true)
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled.Store(false)
}

// SetTickRate sets the engine tick rate in frames per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Duration(float64(time.Second) / fps)

	if !e.running.Load() {
		e.engineTickRate = newRate
		return
	}
	// Non-blocking send - if channel is full, replace the pending value
	select {
	case e.tickRateChannel <- newRate:
	default:
		select {
		case <-e.tickRateChannel:
		default:
		}
		e.tickRateChannel <- newRate
	}
}

// SetTickCallback registers the function called each engine tick.
func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

// SetRenderCallback registers the function called each render frame.
func (e *engine) SetRenderCallback(callback func(deltaTime float32)) {
	e.renderCallback = callback
}

// SetRenderFrameLimit sets an optional render frame rate cap.
// Pass 0 to uncap the render loop.
func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
}

func (e *engine) Release() {
	if e.pipeline != nil {
		e.pipeline.Release()
		e.pipeline = nil
	}
	if e.env != nil && e.ownsEnv {
		e.env.Release()
	}
	e.env = nil
	if e.extractor != nil {
		e.extractor.Release()
		e.extractor = nil
	}
	if e.shadows != nil {
		e.shadows.Close()
		e.shadows = nil
	}
	if e.renderer != nil && e.ownsRenderer {
		e.renderer.Release()
	}
	e.renderer = nil
}
