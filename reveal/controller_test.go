package reveal

import (
	"image"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stateRecorder collects OnStateChange events.
type stateRecorder struct {
	mu     sync.Mutex
	states []State
}

func (r *stateRecorder) record(s State) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
}

func (r *stateRecorder) snapshot() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func fastOptions(seed int64) Options {
	return Options{
		ApertureCount: 3,
		DelayStep:     2 * time.Millisecond,
		GrowthDivisor: 1,
		FrameInterval: 2 * time.Millisecond,
		Rand:          rand.New(rand.NewSource(seed)),
	}
}

func TestController_TriggerRequiresImages(t *testing.T) {
	t.Parallel()

	c := NewController(fastOptions(1))
	rec := &stateRecorder{}
	c.OnStateChange(rec.record)

	assert.False(t, c.Trigger(nil, nil))
	assert.False(t, c.Trigger(solidNRGBA(10, 10, red), nil))
	assert.False(t, c.Trigger(solidNRGBA(10, 10, red), image.NewNRGBA(image.Rectangle{})))

	assert.Equal(t, StateIdle, c.State())
	assert.Nil(t, c.Frame())
	assert.Nil(t, c.Apertures())
	assert.Empty(t, rec.snapshot())
}

func TestController_RunToCompletion(t *testing.T) {
	t.Parallel()

	c := NewController(fastOptions(2))
	rec := &stateRecorder{}
	c.OnStateChange(rec.record)

	base := solidNRGBA(10, 10, red)
	result := solidNRGBA(10, 10, blue)
	require.True(t, c.Trigger(base, result))
	assert.Equal(t, StateRunning, c.State())

	require.Eventually(t, func() bool { return c.State() == StateCompleted },
		5*time.Second, time.Millisecond)

	assert.Equal(t, []State{StateRunning, StateCompleted}, rec.snapshot())

	frame := c.Frame()
	require.NotNil(t, frame)
	assert.Equal(t, blue, frame.NRGBAAt(0, 0), "completed surface is the result image")
	assert.Equal(t, blue, frame.NRGBAAt(9, 9))
}

func TestController_ResetCancelsRun(t *testing.T) {
	t.Parallel()

	opts := fastOptions(3)
	opts.GrowthDivisor = 1e6 // effectively frozen, run never completes
	opts.FrameInterval = time.Millisecond
	c := NewController(opts)
	rec := &stateRecorder{}
	c.OnStateChange(rec.record)

	require.True(t, c.Trigger(solidNRGBA(10, 10, red), solidNRGBA(10, 10, blue)))
	require.Eventually(t, func() bool {
		set := c.Apertures()
		return len(set) > 0 && set[0].Active
	}, 5*time.Second, time.Millisecond)

	c.Reset()
	assert.Equal(t, StateIdle, c.State())
	assert.Nil(t, c.Frame())
	assert.Nil(t, c.Apertures())

	// Idempotent: nothing mutates after reset, repeated resets are no-ops.
	c.Reset()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, StateIdle, c.State())
	assert.Nil(t, c.Frame())
	assert.Equal(t, []State{StateRunning, StateIdle}, rec.snapshot())
}

func TestController_RetriggerDiscardsPreviousRun(t *testing.T) {
	t.Parallel()

	opts := fastOptions(4)
	opts.GrowthDivisor = 1e6
	opts.FrameInterval = 50 * time.Millisecond
	c := NewController(opts)

	base := solidNRGBA(10, 10, red)
	result := solidNRGBA(10, 10, blue)
	require.True(t, c.Trigger(base, result))
	require.Eventually(t, func() bool {
		set := c.Apertures()
		return len(set) > 0 && set[0].Active
	}, 5*time.Second, time.Millisecond)
	first := c.Apertures()

	// Second trigger supersedes the first run: fresh positions, radii
	// back to zero, nothing inherited.
	require.True(t, c.Trigger(base, result))
	second := c.Apertures()
	require.Len(t, second, len(first))
	assert.NotEqual(t, first[0].X, second[0].X)
	for _, a := range second {
		assert.False(t, a.Active)
		assert.Zero(t, a.Radius)
	}
	assert.Equal(t, StateRunning, c.State())

	c.Reset()
}

func TestController_IdleUntilTriggered(t *testing.T) {
	t.Parallel()

	c := NewController(fastOptions(5))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateIdle, c.State())
	assert.Nil(t, c.Frame())
}
