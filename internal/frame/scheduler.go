// Package frame throttles host frame callbacks to a target rate.
package frame

import (
	"math"
	"time"
)

// Source is the part of the host a Scheduler needs.
type Source interface {
	RequestFrame(cb func(now time.Time)) int
	CancelFrame(id int)
	Hidden() bool
	OnVisibilityChange(fn func(hidden bool)) (cancel func())
}

// Frame describes one accepted frame. Time is the animation clock: it only
// advances while the surface is visible, so animations resume where they
// paused instead of jumping.
type Frame struct {
	Now   time.Time
	Time  time.Duration
	Delta time.Duration
	Index uint64
}

// Millis returns the animation clock in milliseconds.
func (f Frame) Millis() float64 {
	return float64(f.Time) / float64(time.Millisecond)
}

// DrawFunc renders one frame.
type DrawFunc func(Frame)

const (
	MinFPS = 1
	MaxFPS = 240
)

// Scheduler requests host frames and forwards at most targetFps of them per
// second to the draw callback.
type Scheduler struct {
	src       Source
	fps       float64
	draw      DrawFunc
	running   bool
	frameID   int
	cancelVis func()

	hidden   bool
	resync   bool
	haveLast bool
	last     time.Time
	clock    time.Duration
	index    uint64
}

// New creates a stopped scheduler.
func New(src Source, targetFPS float64) *Scheduler {
	return &Scheduler{
		src: src,
		fps: clampFPS(targetFPS),
	}
}

// Start begins requesting frames. Calling Start on a running scheduler
// restarts it with the new callback.
func (s *Scheduler) Start(draw DrawFunc) {
	if s.running {
		s.Stop()
	}
	s.draw = draw
	s.running = true
	s.hidden = s.src.Hidden()
	s.cancelVis = s.src.OnVisibilityChange(s.onVisibility)
	s.frameID = s.src.RequestFrame(s.tick)
}

// Stop cancels the pending frame request and the visibility subscription.
// It is safe to call more than once.
func (s *Scheduler) Stop() {
	if !s.running {
		return
	}
	s.running = false
	s.src.CancelFrame(s.frameID)
	s.frameID = 0
	if s.cancelVis != nil {
		s.cancelVis()
		s.cancelVis = nil
	}
}

// Running reports whether the scheduler is requesting frames.
func (s *Scheduler) Running() bool { return s.running }

// SetTargetFPS changes the throttle; it applies from the next frame.
func (s *Scheduler) SetTargetFPS(fps float64) { s.fps = clampFPS(fps) }

// TargetFPS returns the current throttle.
func (s *Scheduler) TargetFPS() float64 { return s.fps }

// Clock returns the animation clock of the last drawn frame.
func (s *Scheduler) Clock() time.Duration { return s.clock }

func (s *Scheduler) onVisibility(hidden bool) {
	s.hidden = hidden
	if !hidden {
		s.resync = true
	}
}

func (s *Scheduler) tick(now time.Time) {
	if !s.running {
		return
	}
	s.frameID = s.src.RequestFrame(s.tick)

	if s.hidden {
		return
	}
	if s.resync {
		// first visible frame only re-bases the reference time
		s.resync = false
		s.last = now
		s.haveLast = true
		return
	}

	interval := time.Duration(float64(time.Second) / s.fps)
	var delta time.Duration
	if s.haveLast {
		delta = now.Sub(s.last)
		if delta < interval {
			return
		}
	}
	s.last = now
	s.haveLast = true
	s.clock += delta
	s.index++

	s.draw(Frame{
		Now:   now,
		Time:  s.clock,
		Delta: delta,
		Index: s.index,
	})
}

func clampFPS(fps float64) float64 {
	if math.IsNaN(fps) || fps < MinFPS {
		return MinFPS
	}
	if fps > MaxFPS {
		return MaxFPS
	}
	return fps
}
