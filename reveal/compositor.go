package reveal

import (
	"image"
	"image/draw"
	"math"
	"time"
)

// maxRadiusFactor scales the canvas's longest edge into the terminal
// aperture radius. 0.8 is enough to carry every circle past the nearest
// canvas edge from any interior position.
const maxRadiusFactor = 0.8

// Compositor renders one reveal run: every Step redraws the base image
// and then reveals the result image inside each active aperture. It is
// not safe for concurrent use; the Controller serializes access.
type Compositor struct {
	base      *image.NRGBA
	result    *image.NRGBA
	surface   *image.NRGBA
	apertures []Aperture
	maxRadius float64
	opts      Options
	done      bool
}

func newCompositor(base, result *image.NRGBA, opts Options) *Compositor {
	bounds := result.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	return &Compositor{
		base:      base,
		result:    result,
		surface:   image.NewNRGBA(image.Rect(0, 0, w, h)),
		apertures: newApertureSet(float64(w), float64(h), opts.ApertureCount, opts.DelayStep, opts.Rand),
		maxRadius: maxRadiusFactor * math.Max(float64(w), float64(h)),
		opts:      opts,
	}
}

// Step advances the run to the given elapsed time and re-renders the
// surface. It reports whether the run has completed. A zero-sized
// surface makes Step a no-op; the run simply makes no visible progress
// until the surface is valid.
func (c *Compositor) Step(elapsed time.Duration) bool {
	if c.done {
		return true
	}
	bounds := c.surface.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return false
	}

	elapsedMs := float64(elapsed) / float64(time.Millisecond)
	span := c.maxRadius * c.opts.GrowthDivisor // ms from activation to full size
	for i := range c.apertures {
		a := &c.apertures[i]
		delayMs := float64(a.Delay) / float64(time.Millisecond)
		if elapsedMs <= delayMs {
			continue
		}
		a.Active = true
		t := (elapsedMs - delayMs) / span
		if t > 1 {
			t = 1
		}
		r := c.maxRadius * c.opts.Easing(t)
		if r > c.maxRadius {
			r = c.maxRadius
		}
		// Radius never shrinks, whatever the easing curve does.
		if r > a.Radius {
			a.Radius = r
		}
	}

	c.render()

	for i := range c.apertures {
		a := &c.apertures[i]
		if !a.Active || a.Radius < c.maxRadius {
			return false
		}
	}

	// Random placement can leave uncovered slivers, so completion always
	// ends with one full-surface draw of the result.
	draw.Draw(c.surface, bounds, c.result, c.result.Bounds().Min, draw.Src)
	c.done = true
	return true
}

// render redraws the surface: the base image first, then the result
// image inside every active circle. Pixels inside a circle's bounding
// box but outside the circle itself keep the base layer, so overlapping
// apertures union their revealed area and compositing order cannot
// affect the final pixels.
func (c *Compositor) render() {
	bounds := c.surface.Bounds()
	draw.Draw(c.surface, bounds, c.base, c.base.Bounds().Min, draw.Src)
	for i := range c.apertures {
		if c.apertures[i].Active {
			c.revealCircle(&c.apertures[i])
		}
	}
}

// revealCircle copies result pixels into the surface where they fall
// strictly inside the aperture's circle, clipped to the surface bounds.
func (c *Compositor) revealCircle(a *Aperture) {
	bounds := c.surface.Bounds()
	x0 := max(int(math.Floor(a.X-a.Radius)), bounds.Min.X)
	y0 := max(int(math.Floor(a.Y-a.Radius)), bounds.Min.Y)
	x1 := min(int(math.Ceil(a.X+a.Radius)), bounds.Max.X)
	y1 := min(int(math.Ceil(a.Y+a.Radius)), bounds.Max.Y)

	off := c.result.Bounds().Min.Sub(bounds.Min)
	rr := a.Radius * a.Radius
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			dx := float64(x) + 0.5 - a.X
			dy := float64(y) + 0.5 - a.Y
			if dx*dx+dy*dy < rr {
				si := c.surface.PixOffset(x, y)
				ri := c.result.PixOffset(x+off.X, y+off.Y)
				copy(c.surface.Pix[si:si+4], c.result.Pix[ri:ri+4])
			}
		}
	}
}

// Surface exposes the render target. Callers that hand pixels to another
// goroutine must copy; see Controller.Frame.
func (c *Compositor) Surface() *image.NRGBA { return c.surface }

// Apertures returns a snapshot of the aperture set.
func (c *Compositor) Apertures() []Aperture {
	out := make([]Aperture, len(c.apertures))
	copy(out, c.apertures)
	return out
}
