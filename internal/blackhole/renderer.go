package blackhole

import (
	"context"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/guidoenr/backdrop/internal/env"
	"github.com/guidoenr/backdrop/internal/frame"
	"github.com/guidoenr/backdrop/internal/noise"
	"github.com/guidoenr/backdrop/internal/params"
	"github.com/guidoenr/backdrop/internal/surface"
)

const sampleTimeout = 15 * time.Second

// Renderer mounts the accretion disk onto a host.
type Renderer struct {
	host   env.Host
	cfg    params.Provider
	log    *log.Logger
	client *http.Client

	display *surface.Surface
	buffer  *surface.Surface
	sched   *frame.Scheduler
	turb    *noise.Field
	disk    Disk

	appearance       env.Appearance
	cancelAppearance func()

	sampled      *params.RGB
	sampleGen    int
	cancelSample context.CancelFunc

	mounted bool
	active  bool
	key     mountKey
	frames  uint64
	lastErr error
}

// mountKey holds the settings whose change requires a remount.
type mountKey struct {
	active      bool
	imageSource string
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Renderer) {
		if l != nil {
			r.log = l
		}
	}
}

// WithHTTPClient sets the client used to fetch remote reference images.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Renderer) {
		if c != nil {
			r.client = c
		}
	}
}

// New creates an unmounted renderer.
func New(host env.Host, cfg params.Provider, opts ...Option) *Renderer {
	r := &Renderer{
		host:   host,
		cfg:    cfg,
		log:    log.New(io.Discard, "", 0),
		client: &http.Client{Timeout: sampleTimeout},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Mount sizes the display surface and, when active, starts drawing. The
// reference image, if any, is sampled in the background.
func (r *Renderer) Mount() {
	if r.mounted {
		return
	}
	r.mounted = true
	s := r.cfg.Settings().Effective()
	r.key = mountKeyFor(s)

	if r.display == nil {
		r.display = surface.New(r.host)
	} else {
		r.display.Resize()
	}
	r.active = s.Active()
	if !r.active {
		r.display.Clear()
		r.log.Printf("blackhole mounted idle (enabled=%v lowPower=%v reducedMotion=%v)", s.Enabled, s.LowPower, s.ReducedMotion)
		return
	}

	r.display.Attach(nil)
	r.appearance = r.host.Appearance()
	r.cancelAppearance = r.host.OnAppearanceChange(func(a env.Appearance) {
		r.appearance = a
	})
	if s.Disk.ImageSource != "" {
		r.sampleImage(s.Disk.ImageSource)
	}
	r.sched = frame.New(r.host, s.Disk.TargetFPS)
	r.sched.Start(r.draw)
	r.log.Printf("blackhole mounted: fps %.0f, scale %.2f, high detail %v", s.Disk.TargetFPS, s.Disk.Scale, s.Disk.HighDetail)
}

// Unmount stops drawing, abandons any pending image sample and releases
// every subscription. It is safe to call more than once.
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
	if r.cancelSample != nil {
		r.cancelSample()
		r.cancelSample = nil
	}
	r.sampleGen++
	if r.display != nil {
		r.display.Detach()
	}
	r.active = false
}

// Refresh remounts when the active state or the reference image changed.
// Everything else is re-read by the next frame.
func (r *Renderer) Refresh() {
	if !r.mounted {
		return
	}
	if mountKeyFor(r.cfg.Settings().Effective()) == r.key {
		return
	}
	r.Unmount()
	r.Mount()
}

// Mounted reports whether the renderer is mounted.
func (r *Renderer) Mounted() bool { return r.mounted }

// Active reports whether the renderer is animating.
func (r *Renderer) Active() bool { return r.active }

// Surface returns the display surface, nil before the first Mount.
func (r *Renderer) Surface() *surface.Surface { return r.display }

// Buffer returns the low resolution buffer, nil before the first frame.
func (r *Renderer) Buffer() *surface.Surface { return r.buffer }

// Frames counts drawn frames.
func (r *Renderer) Frames() uint64 { return r.frames }

// Layout returns the geometry of the last drawn frame.
func (r *Renderer) Layout() Layout { return r.disk.Layout }

// Err returns the last drawing error, if any.
func (r *Renderer) Err() error { return r.lastErr }

// RingColor resolves the disk color: appearance accent first, then the
// configured color, then the sampled image color, then gold.
func (r *Renderer) RingColor() params.RGB {
	if r.appearance.Accent != nil {
		return *r.appearance.Accent
	}
	if c := r.cfg.Settings().Disk.Color; c != nil {
		return *c
	}
	if r.sampled != nil {
		return *r.sampled
	}
	return params.Gold
}

func (r *Renderer) sampleImage(source string) {
	ctx, cancel := context.WithTimeout(context.Background(), sampleTimeout)
	r.cancelSample = cancel
	gen := r.sampleGen
	client := r.client
	logger := r.log

	go func() {
		defer cancel()
		img, err := LoadImage(ctx, client, source)
		if err != nil {
			logger.Printf("blackhole: keeping fallback color: %v", err)
			return
		}
		col, ok := DominantColor(img)
		if !ok {
			logger.Printf("blackhole: %s has no opaque pixels, keeping fallback color", source)
			return
		}
		r.host.Post(func() {
			if gen != r.sampleGen {
				return
			}
			r.sampled = &col
			r.log.Printf("blackhole: sampled ring color %s from %s", col, source)
		})
	}()
}

func (r *Renderer) draw(f frame.Frame) {
	s := r.cfg.Settings().Effective()
	r.sched.SetTargetFPS(s.Disk.TargetFPS)

	size := max(128, s.Disk.TurbSize)
	if r.turb == nil || r.turb.Size() != size {
		r.turb = noise.Build(size, noise.DefaultSeed)
	}

	layout := ComputeLayout(r.display.Width(), r.display.Height(), s.Disk)
	if r.buffer == nil {
		r.buffer = surface.NewBuffer(layout.BufferW, layout.BufferH)
	} else if r.buffer.BufferWidth() != layout.BufferW || r.buffer.BufferHeight() != layout.BufferH {
		r.buffer.SetSize(layout.BufferW, layout.BufferH)
	}

	r.disk = Disk{
		Settings:   s.Disk,
		Layout:     layout,
		Ring:       r.RingColor(),
		Turbulence: r.turb.Sample,
	}
	if err := r.disk.Paint(r.buffer, f.Millis()); err != nil {
		if r.lastErr == nil {
			r.log.Printf("blackhole: %v", err)
		}
		r.lastErr = err
	}
	r.display.Blit(r.buffer, s.Disk.HighDetail)
	r.frames++
}

func mountKeyFor(s params.Settings) mountKey {
	return mountKey{
		active:      s.Active(),
		imageSource: s.Disk.ImageSource,
	}
}
