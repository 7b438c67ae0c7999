package app

import (
	"math"
	"math/rand"
	"time"

	"github.com/guidoenr/backdrop/internal/env"
)

// demoDriver synthesizes a wandering pointer and a slow scroll so the
// parallax layers move without a real input device.
type demoDriver struct {
	rng         *rand.Rand
	phaseX      float64
	phaseY      float64
	phaseScroll float64
}

func newDemoDriver() *demoDriver {
	return &demoDriver{
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next advances the driver by delta seconds and returns a pointer position
// inside vp and a scroll offset in [0, 2*height].
func (d *demoDriver) Next(delta float64, vp env.Viewport) (x, y, scroll float64) {
	d.phaseX += delta * 0.37
	d.phaseY += delta * 0.23
	d.phaseScroll += delta * 0.05

	x = vp.Width * (0.5 + 0.4*math.Sin(d.phaseX) + (d.rng.Float64()-0.5)*0.01)
	y = vp.Height * (0.5 + 0.35*math.Sin(d.phaseY+0.8) + (d.rng.Float64()-0.5)*0.01)
	scroll = vp.Height * (1 - math.Cos(d.phaseScroll))
	return clamp(x, 0, vp.Width), clamp(y, 0, vp.Height), scroll
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
