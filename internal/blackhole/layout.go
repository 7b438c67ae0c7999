// Package blackhole renders the pixel accretion disk into a low resolution
// buffer and upscales it onto the display surface.
package blackhole

import (
	"math"

	"github.com/guidoenr/backdrop/internal/params"
)

const (
	minBufferWidth  = 320
	minBufferHeight = 180

	baseSlices      = 420
	horizonFraction = 0.22
	diskThickness   = 0.14
	photonRingScale = 1.08
)

// Layout is the per-frame geometry of the disk in buffer pixels.
type Layout struct {
	DisplayW, DisplayH float64
	BufferW, BufferH   int
	CX, CY             float64
	MaxR               float64
	HorizonR           float64
	Slices             int
	Steps              int
}

// ComputeLayout derives buffer size and disk geometry for a display of
// displayW x displayH logical pixels.
func ComputeLayout(displayW, displayH float64, d params.DiskSettings) Layout {
	l := Layout{
		DisplayW: displayW,
		DisplayH: displayH,
		BufferW:  max(minBufferWidth, int(math.Floor(displayW*d.Scale))),
		BufferH:  max(minBufferHeight, int(math.Floor(displayH*d.Scale))),
	}
	l.CX = float64(l.BufferW) / 2
	l.CY = float64(l.BufferH) * 0.5

	minDim := math.Min(float64(l.BufferW), float64(l.BufferH))
	if d.TargetDisplaySize > 0 && displayW > 0 && displayH > 0 {
		sx := displayW / float64(l.BufferW)
		l.MaxR = math.Min(minDim*0.9, d.TargetDisplaySize*0.5/sx)
	} else {
		l.MaxR = minDim * d.DiskRadius
	}
	l.HorizonR = l.MaxR * horizonFraction

	slices := baseSlices
	steps := 16
	if d.HighDetail {
		steps = 20
	} else {
		slices = int(math.Floor(baseSlices * 0.85))
	}
	l.Slices = max(60, int(math.Floor(float64(slices)*math.Max(0.5, d.SliceMul))))
	l.Steps = max(8, steps+max(0, d.StepAdd))
	return l
}

// DisplayDiameter is the disk diameter in display pixels once the buffer is
// stretched over the display width.
func (l Layout) DisplayDiameter() float64 {
	if l.BufferW == 0 {
		return 0
	}
	return 2 * l.MaxR * l.DisplayW / float64(l.BufferW)
}

// Beaming returns the Doppler brightness boost at angle, in [0.25, 0.25+0.9*beaming].
func Beaming(angle float64, d params.DiskSettings) float64 {
	return 0.25 + d.Beaming*0.9*beamShape(angle, d)
}

func beamShape(angle float64, d params.DiskSettings) float64 {
	return math.Pow(math.Max(0, math.Cos(angle-d.BeamingPhase)), math.Max(1, d.BeamingGamma))
}
