package starfield

import (
	"io"
	"log"
	"math"
	"math/rand"

	"github.com/guidoenr/backdrop/internal/env"
	"github.com/guidoenr/backdrop/internal/frame"
	"github.com/guidoenr/backdrop/internal/params"
	"github.com/guidoenr/backdrop/internal/surface"
)

// maxFrameRate caps the scheduler: frames closer than 16ms apart are never drawn.
const maxFrameRate = 1000.0 / 16

// Renderer mounts a starfield onto a host.
type Renderer struct {
	host env.Host
	cfg  params.Provider
	log  *log.Logger
	rng  Source

	surface *surface.Surface
	sched   *frame.Scheduler
	field   *Field

	appearance       env.Appearance
	cancelAppearance func()
	mounted          bool
	active           bool
	key              populationKey
	frames           uint64
	sparkles         int
	lastErr          error
}

// populationKey holds the settings whose change requires a fresh population.
type populationKey struct {
	active    bool
	density   float64
	sizeScale float64
	showStars bool
	minStars  int
	maxStars  int
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithSource injects the random source used for stars and meteors.
func WithSource(src Source) Option {
	return func(r *Renderer) {
		if src != nil {
			r.rng = src
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Renderer) {
		if l != nil {
			r.log = l
		}
	}
}

// New creates an unmounted renderer.
func New(host env.Host, cfg params.Provider, opts ...Option) *Renderer {
	r := &Renderer{
		host: host,
		cfg:  cfg,
		log:  log.New(io.Discard, "", 0),
		rng:  rand.New(rand.NewSource(rand.Int63())),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.field = NewField(r.rng)
	return r
}

// Mount creates the surface and, when the configuration is active, populates
// the field and starts drawing.
func (r *Renderer) Mount() {
	if r.mounted {
		return
	}
	r.mounted = true
	s := r.cfg.Settings().Effective()
	r.key = keyFor(s)

	if r.surface == nil {
		r.surface = surface.New(r.host)
	} else {
		r.surface.Resize()
	}
	r.active = s.Active()
	if !r.active {
		r.field.Reset()
		r.surface.Clear()
		r.log.Printf("starfield mounted idle (enabled=%v lowPower=%v reducedMotion=%v)", s.Enabled, s.LowPower, s.ReducedMotion)
		return
	}

	r.field.Populate(r.surface.Width(), r.surface.Height(), r.surface.DPR(), s.Stars)
	r.surface.Attach(func() {
		r.field.Reposition(r.surface.Width(), r.surface.Height())
	})
	r.appearance = r.host.Appearance()
	r.cancelAppearance = r.host.OnAppearanceChange(func(a env.Appearance) {
		r.appearance = a
	})
	r.sched = frame.New(r.host, math.Min(s.TargetFPS, maxFrameRate))
	r.sched.Start(r.draw)
	r.log.Printf("starfield mounted: %d stars, meteor cap %d", len(r.field.Stars()), r.field.MaxMeteors())
}

// Unmount stops drawing and releases every subscription. It is safe to call
// more than once.
func (r *Renderer) Unmount() {
	if !r.mounted {
		return
	}
	r.mounted = false
	if r.sched != nil {
		r.sched.Stop()
		r.sched = nil
	}
	if r.cancelAppearance != nil {
		r.cancelAppearance()
		r.cancelAppearance = nil
	}
	if r.surface != nil {
		r.surface.Detach()
	}
	r.active = false
}

// Refresh remounts when a setting that shapes the population changed. Other
// settings are picked up by the next frame.
func (r *Renderer) Refresh() {
	if !r.mounted {
		return
	}
	if keyFor(r.cfg.Settings().Effective()) == r.key {
		return
	}
	r.Unmount()
	r.Mount()
}

// Mounted reports whether the renderer is mounted.
func (r *Renderer) Mounted() bool { return r.mounted }

// Active reports whether the renderer is animating.
func (r *Renderer) Active() bool { return r.active }

// Surface returns the drawing surface, nil before the first Mount.
func (r *Renderer) Surface() *surface.Surface { return r.surface }

// Frames counts drawn frames.
func (r *Renderer) Frames() uint64 { return r.frames }

// Sparkles is how many stars got sparkle arms in the last frame.
func (r *Renderer) Sparkles() int { return r.sparkles }

// Meteors counts meteors launched since the renderer was created.
func (r *Renderer) Meteors() uint64 { return r.field.Spawned() }

// Field exposes the simulation state.
func (r *Renderer) Field() *Field { return r.field }

func (r *Renderer) draw(frame.Frame) {
	s := r.cfg.Settings().Effective()
	r.sched.SetTargetFPS(math.Min(s.TargetFPS, maxFrameRate))

	starRGB, meteorRGB := s.Stars.StarColor, s.Stars.MeteorColor
	if r.appearance.StarColor != nil {
		starRGB = *r.appearance.StarColor
	}
	if r.appearance.MeteorColor != nil {
		meteorRGB = *r.appearance.MeteorColor
	}

	r.surface.Clear()
	r.field.Step()
	arms, err := r.field.Draw(r.surface, starRGB, meteorRGB, s.Stars.SparkleBudget)
	if err != nil {
		if r.lastErr == nil {
			r.log.Printf("starfield: %v", err)
		}
		r.lastErr = err
	}
	r.sparkles = arms
	r.field.MaybeSpawn()
	r.frames++
}

func keyFor(s params.Settings) populationKey {
	return populationKey{
		active:    s.Active(),
		density:   s.Stars.Density,
		sizeScale: s.Stars.SizeScale,
		showStars: s.Stars.ShowStars,
		minStars:  s.Stars.MinStars,
		maxStars:  s.Stars.MaxStars,
	}
}
