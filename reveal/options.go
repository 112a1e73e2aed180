package reveal

import (
	"math/rand"
	"time"

	"github.com/fogleman/ease"
)

const (
	defaultApertureCount = 12
	defaultDelayStep     = 80 * time.Millisecond
	defaultGrowthDivisor = 5.0
	defaultFrameInterval = 33 * time.Millisecond
)

// Options configures a reveal run. The zero value asks for the defaults.
type Options struct {
	// ApertureCount is the number of wipe circles per run.
	ApertureCount int

	// DelayStep staggers aperture activation: aperture i starts expanding
	// DelayStep*i after the run is triggered.
	DelayStep time.Duration

	// GrowthDivisor controls expansion speed in ms per radius unit.
	GrowthDivisor float64

	// Easing shapes radius growth over an aperture's lifetime. Must be
	// monotone on [0,1] with Easing(0)=0 and Easing(1)=1. The default,
	// ease.Linear, grows the radius (elapsed-delay)/GrowthDivisor units.
	Easing ease.Function

	// FrameInterval is the frame clock period.
	FrameInterval time.Duration

	// Rand supplies aperture positions. Nil means time-seeded.
	Rand *rand.Rand
}

func (o Options) withDefaults() Options {
	if o.ApertureCount <= 0 {
		o.ApertureCount = defaultApertureCount
	}
	if o.DelayStep <= 0 {
		o.DelayStep = defaultDelayStep
	}
	if o.GrowthDivisor <= 0 {
		o.GrowthDivisor = defaultGrowthDivisor
	}
	if o.Easing == nil {
		o.Easing = ease.Linear
	}
	if o.FrameInterval <= 0 {
		o.FrameInterval = defaultFrameInterval
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return o
}
