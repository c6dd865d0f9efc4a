package profiler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestTickAggregatesInterval(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	core, logs := observer.New(zap.InfoLevel)
	p := NewProfiler(withClock(clock.now), WithLogger(zap.New(core)), WithInterval(time.Second))

	for i := range 3 {
		clock.t = clock.t.Add(250 * time.Millisecond)
		logged := p.Tick(Sample{Objects: 10, Draws: 20 + i, Lights: i, Extract: time.Millisecond, Render: 3 * time.Millisecond})
		assert.False(t, logged)
	}
	clock.t = clock.t.Add(250 * time.Millisecond)
	require.True(t, p.Tick(Sample{Objects: 14, Draws: 21, Lights: 1, Extract: 5 * time.Millisecond, Render: 3 * time.Millisecond}))

	s := p.Last()
	assert.Equal(t, 4, s.Frames)
	assert.InDelta(t, 4.0, s.FPS, 1e-9)
	assert.InDelta(t, 11.0, s.AvgObjects, 1e-9)
	assert.InDelta(t, 21.0, s.AvgDraws, 1e-9)
	assert.Equal(t, 2, s.MaxLights)
	assert.Equal(t, 2*time.Millisecond, s.AvgExtract)
	assert.Equal(t, 3*time.Millisecond, s.AvgRender)
	assert.Greater(t, s.HeapMB, 0.0)

	entries := logs.FilterMessage("frame stats").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "profiler", entries[0].LoggerName)
	assert.InDelta(t, 4.0, entries[0].ContextMap()["fps"], 1e-9)
}

func TestIntervalResets(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	p := NewProfiler(withClock(clock.now), WithInterval(100*time.Millisecond))

	clock.t = clock.t.Add(100 * time.Millisecond)
	require.True(t, p.Tick(Sample{Draws: 8}))
	clock.t = clock.t.Add(50 * time.Millisecond)
	assert.False(t, p.Tick(Sample{Draws: 2}))
	clock.t = clock.t.Add(50 * time.Millisecond)
	require.True(t, p.Tick(Sample{Draws: 4}))

	assert.Equal(t, 2, p.Last().Frames)
	assert.InDelta(t, 3.0, p.Last().AvgDraws, 1e-9)
}

func TestWithIntervalIgnoresNonPositive(t *testing.T) {
	p := NewProfiler(WithInterval(0))
	assert.Equal(t, time.Second, p.interval)
}
