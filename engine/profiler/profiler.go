package profiler

import (
	"runtime"
	"time"

	"go.uber.org/zap"
)

// Sample is what one frame reports to the profiler.
type Sample struct {
	Objects     int
	Draws       int
	ShadowFaces int
	Lights      int
	Extract     time.Duration
	Render      time.Duration
}

// Stats are the aggregates of one reporting interval.
type Stats struct {
	Frames        int
	FPS           float64
	AvgObjects    float64
	AvgDraws      float64
	MaxLights     int
	AvgExtract    time.Duration
	AvgRender     time.Duration
	HeapMB        float64
	AllocRateMBps float64
	GCCount       uint32
	MaxPauseUs    uint64
	SysMB         float64
}

// Profiler aggregates frame samples and logs them once per interval.
type Profiler struct {
	logger   *zap.Logger
	interval time.Duration
	now      func() time.Time

	start   time.Time
	frames  int
	objects int
	draws   int
	lights  int
	extract time.Duration
	render  time.Duration

	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
	last           Stats
}

// ProfilerBuilderOption configures a Profiler.
type ProfilerBuilderOption func(*Profiler)

// WithInterval sets how often statistics are logged. The default is one second.
func WithInterval(d time.Duration) ProfilerBuilderOption {
	return func(p *Profiler) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithLogger sets the logger statistics are written to.
//
// Parameters:
//   - logger: the parent logger; the profiler logs under the "profiler" name
//
// Returns:
//   - ProfilerBuilderOption: option function to apply
func WithLogger(logger *zap.Logger) ProfilerBuilderOption {
	return func(p *Profiler) {
		if logger != nil {
			p.logger = logger.Named("profiler")
		}
	}
}

func withClock(now func() time.Time) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.now = now
	}
}

// NewProfiler creates a Profiler whose first interval starts now.
//
// Parameters:
//   - options: functional options to configure the profiler
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		logger:   zap.NewNop(),
		interval: time.Second,
		now:      time.Now,
	}
	for _, opt := range options {
		opt(p)
	}
	p.start = p.now()
	return p
}

// Tick records one frame and, when the interval has elapsed, logs the interval's statistics and starts a new one.
//
// Parameters:
//   - s: the frame's sample
//
// Returns:
//   - bool: true if stats were logged this tick
func (p *Profiler) Tick(s Sample) bool {
	p.frames++
	p.objects += s.Objects
	p.draws += s.Draws
	p.lights = max(p.lights, s.Lights)
	p.extract += s.Extract
	p.render += s.Render

	now := p.now()
	elapsed := now.Sub(p.start)
	if elapsed < p.interval {
		return false
	}

	stats := p.aggregate(elapsed)
	p.logger.Info("frame stats",
		zap.Float64("fps", stats.FPS),
		zap.Float64("objects", stats.AvgObjects),
		zap.Float64("draws", stats.AvgDraws),
		zap.Int("lights", stats.MaxLights),
		zap.Duration("extract", stats.AvgExtract),
		zap.Duration("render", stats.AvgRender),
		zap.Float64("heap_mb", stats.HeapMB),
		zap.Float64("alloc_mb_s", stats.AllocRateMBps),
		zap.Uint32("gc", stats.GCCount),
		zap.Uint64("gc_max_pause_us", stats.MaxPauseUs),
		zap.Float64("sys_mb", stats.SysMB),
	)
	p.last = stats

	p.start = now
	p.frames, p.objects, p.draws, p.lights = 0, 0, 0, 0
	p.extract, p.render = 0, 0
	return true
}

func (p *Profiler) aggregate(elapsed time.Duration) Stats {
	n := float64(p.frames)
	s := Stats{
		Frames:     p.frames,
		FPS:        n / elapsed.Seconds(),
		AvgObjects: float64(p.objects) / n,
		AvgDraws:   float64(p.draws) / n,
		MaxLights:  p.lights,
		AvgExtract: p.extract / time.Duration(p.frames),
		AvgRender:  p.render / time.Duration(p.frames),
	}

	runtime.ReadMemStats(&p.memStats)
	s.HeapMB = float64(p.memStats.Alloc) / 1024 / 1024
	s.SysMB = float64(p.memStats.Sys) / 1024 / 1024
	s.AllocRateMBps = float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds()

	// PauseNs is a circular buffer of the last 256 pauses
	s.GCCount = p.memStats.NumGC
	from := p.lastGCCount
	if s.GCCount-from > 256 {
		from = s.GCCount - 256
	}
	for i := from; i < s.GCCount; i++ {
		s.MaxPauseUs = max(s.MaxPauseUs, p.memStats.PauseNs[i%256]/1000)
	}

	p.lastGCCount = s.GCCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return s
}

// Last returns the statistics of the most recently completed interval.
func (p *Profiler) Last() Stats {
	return p.last
}
