package reveal

import (
	"image"
	"sync"
	"time"
)

// State of one reveal run.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
)

// Controller owns the lifecycle of a reveal run: it generates the
// aperture set, drives the frame clock, and reports state transitions.
// The surrounding code only observes; it never touches aperture data.
//
// All methods are safe for concurrent use. The frame clock goroutine is
// the only mutator of the compositor; readers get pixel copies.
type Controller struct {
	mu      sync.Mutex
	opts    Options
	state   State
	comp    *Compositor
	clock   *frameClock
	onState func(State)
}

func NewController(opts Options) *Controller {
	return &Controller{
		opts:  opts.withDefaults(),
		state: StateIdle,
	}
}

// OnStateChange registers the state observer. The callback runs outside
// the controller lock, on whichever goroutine caused the transition.
func (c *Controller) OnStateChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onState = fn
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Trigger starts a reveal run over the two images. Both must already be
// decoded with known, non-zero dimensions; otherwise Trigger is a no-op
// and the controller stays idle. Triggering while a run is in flight
// discards that run entirely: its clock is cancelled and a fresh
// aperture set starts from zero.
func (c *Controller) Trigger(base, result *image.NRGBA) bool {
	if base == nil || result == nil {
		return false
	}
	if result.Bounds().Dx() == 0 || result.Bounds().Dy() == 0 {
		return false
	}

	c.mu.Lock()
	if c.clock != nil {
		c.clock.Stop()
	}
	comp := newCompositor(base, result, c.opts)
	clock := newFrameClock(c.opts.FrameInterval)
	c.comp = comp
	c.clock = clock
	c.state = StateRunning
	notify := c.onState
	c.mu.Unlock()

	// Observers hear running before the clock can possibly report
	// completion.
	if notify != nil {
		notify(StateRunning)
	}
	go clock.Run(func(elapsed time.Duration) bool {
		return c.step(comp, clock, elapsed)
	})
	return true
}

// step advances one frame. A step that belongs to a superseded run is
// detected by identity and bails out without touching anything.
func (c *Controller) step(comp *Compositor, clock *frameClock, elapsed time.Duration) bool {
	c.mu.Lock()
	if c.comp != comp || c.clock != clock {
		c.mu.Unlock()
		return true
	}
	done := comp.Step(elapsed)
	var notify func(State)
	if done {
		c.state = StateCompleted
		notify = c.onState
	}
	c.mu.Unlock()

	if notify != nil {
		notify(StateCompleted)
	}
	return done
}

// Frame returns a copy of the current render surface, or nil when no run
// has been triggered since the last reset.
func (c *Controller) Frame() *image.NRGBA {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.comp == nil {
		return nil
	}
	src := c.comp.Surface()
	out := image.NewNRGBA(src.Bounds())
	copy(out.Pix, src.Pix)
	return out
}

// Apertures returns a snapshot of the current run's aperture set, nil
// when idle.
func (c *Controller) Apertures() []Aperture {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.comp == nil {
		return nil
	}
	return c.comp.Apertures()
}

// Reset cancels any in-flight run and returns to idle, discarding the
// aperture set and render surface. Idempotent; resetting an idle
// controller does nothing and emits no state change.
func (c *Controller) Reset() {
	c.mu.Lock()
	if c.clock != nil {
		c.clock.Stop()
	}
	changed := c.state != StateIdle
	c.comp = nil
	c.clock = nil
	c.state = StateIdle
	notify := c.onState
	c.mu.Unlock()

	if changed && notify != nil {
		notify(StateIdle)
	}
}
