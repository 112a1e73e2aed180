package reveal

import (
	"math/rand"
	"time"
)

// An Aperture is one circular wipe region. Its position is fixed when the
// set is generated; Active and Radius advance as the run plays out.
type Aperture struct {
	X, Y   float64
	Delay  time.Duration
	Active bool
	Radius float64
}

// newApertureSet places count apertures uniformly inside a w*h canvas.
// Activation delays are index*step, so aperture 0 opens immediately and
// the reveal staggers outward from there.
func newApertureSet(w, h float64, count int, step time.Duration, rng *rand.Rand) []Aperture {
	set := make([]Aperture, count)
	for i := range set {
		set[i] = Aperture{
			X:     rng.Float64() * w,
			Y:     rng.Float64() * h,
			Delay: time.Duration(i) * step,
		}
	}
	return set
}
