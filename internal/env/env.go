// Package env is the host environment the renderers run inside: a single
// threaded loop that hands out frame callbacks, timers and host signals.
package env

import (
	"math"
	"time"

	"github.com/guidoenr/backdrop/internal/params"
)

// Viewport is the logical size of the drawing area plus its device pixel ratio.
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	DPR    float64 `json:"dpr"`
}

// MinDim returns the shorter side.
func (v Viewport) MinDim() float64 {
	return math.Min(v.Width, v.Height)
}

// Appearance carries theme colors that override renderer configuration.
// A nil color means "use the configured value".
type Appearance struct {
	Theme       string      `json:"theme,omitempty"`
	StarColor   *params.RGB `json:"starRgb,omitempty"`
	MeteorColor *params.RGB `json:"meteorRgb,omitempty"`
	Accent      *params.RGB `json:"accentRgb,omitempty"`
}

// Host is everything a renderer may ask of its environment. Every callback
// registered through it runs on the loop goroutine.
type Host interface {
	Now() time.Time
	RequestFrame(cb func(now time.Time)) int
	CancelFrame(id int)
	AfterFunc(d time.Duration, fn func()) int
	StopTimer(id int) bool
	Post(fn func())

	Viewport() Viewport
	Hidden() bool
	Appearance() Appearance
	ScrollY() float64
	Pointer() (x, y float64)

	OnResize(fn func(Viewport)) (cancel func())
	OnVisibilityChange(fn func(hidden bool)) (cancel func())
	OnAppearanceChange(fn func(Appearance)) (cancel func())
	OnScroll(fn func(y float64)) (cancel func())
	OnPointerMove(fn func(x, y float64)) (cancel func())
}

func sanitizeViewport(v Viewport) Viewport {
	if v.Width < 0 || math.IsNaN(v.Width) {
		v.Width = 0
	}
	if v.Height < 0 || math.IsNaN(v.Height) {
		v.Height = 0
	}
	if v.DPR <= 0 || math.IsNaN(v.DPR) || math.IsInf(v.DPR, 0) {
		v.DPR = 1
	}
	return v
}
