package parallax

import (
	"io"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gogpu/gg"
	"github.com/guidoenr/backdrop/internal/env"
	"github.com/guidoenr/backdrop/internal/params"
	"github.com/guidoenr/backdrop/internal/surface"
)

// Source supplies uniform random numbers in [0,1).
type Source interface {
	Float64() float64
}

// Opener opens an image source for decoding.
type Opener func(path string) (io.ReadCloser, error)

func openFile(path string) (io.ReadCloser, error) {
	return os.Open(filepath.Clean(path))
}

// sprite is the baked, drawable form of one layer.
type sprite struct {
	spec    LayerSpec
	size    float64
	frames  []*gg.ImageBuf
	widths  []float64 // baked width in logical px at full scale
	heights []float64
	delays  []time.Duration
	current int
	timerID int
}

// Renderer draws a set of parallax layers. It has no per-frame simulation:
// it repaints only when scroll, pointer, size or an animation frame changes.
type Renderer struct {
	host env.Host
	cfg  params.Provider
	log  *log.Logger
	rng  Source
	open Opener

	surface *surface.Surface
	preset  Preset
	sprites []*sprite

	scrollY float64
	mx, my  float64
	frameID int

	cancelScroll  func()
	cancelPointer func()

	mounted bool
	active  bool
	key     mountKey
	draws   uint64
	decodes int
	lastErr error
}

// mountKey holds the settings that require decoding the layers again.
type mountKey struct {
	active  bool
	preset  string
	sources string
}

func mountKeyFor(s params.Settings) mountKey {
	k := mountKey{active: s.Active() && s.Parallax.Enabled && len(s.Parallax.Sources) > 0}
	if k.active {
		k.preset = LookupPreset(s.Parallax.Preset).Name
		k.sources = strings.Join(s.Parallax.Sources, "\n")
	}
	return k
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithSource injects the random source for size jitter.
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

// WithOpener replaces how sources are opened.
func WithOpener(open Opener) Option {
	return func(r *Renderer) {
		if open != nil {
			r.open = open
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
		open: openFile,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Mount sizes the surface and, when parallax is enabled, decodes the sources
// and subscribes to scroll, pointer and resize.
func (r *Renderer) Mount() {
	if r.mounted {
		return
	}
	r.mounted = true
	s := r.cfg.Settings().Effective()

	if r.surface == nil {
		r.surface = surface.New(r.host)
	} else {
		r.surface.Resize()
	}
	r.surface.Clear()
	r.key = mountKeyFor(s)
	r.active = r.key.active
	if !r.active {
		return
	}

	r.preset = LookupPreset(s.Parallax.Preset)
	r.load(s.Parallax.Sources)

	r.scrollY = r.host.ScrollY()
	px, py := r.host.Pointer()
	r.mx, r.my = NormalizePointer(px, py, r.surface.Width(), r.surface.Height())

	r.cancelScroll = r.host.OnScroll(func(y float64) {
		r.scrollY = y
		r.requestDraw()
	})
	r.cancelPointer = r.host.OnPointerMove(func(x, y float64) {
		r.mx, r.my = NormalizePointer(x, y, r.surface.Width(), r.surface.Height())
		r.requestDraw()
	})
	r.surface.Attach(r.requestDraw)
	for _, sp := range r.sprites {
		r.armTimer(sp)
	}
	r.requestDraw()
	r.log.Printf("parallax mounted: preset %s, %d layers", r.preset.Name, len(r.sprites))
}

// Unmount cancels the pending frame, animation timers and subscriptions.
// It is safe to call more than once.
func (r *Renderer) Unmount() {
	if !r.mounted {
		return
	}
	r.mounted = false
	if r.frameID != 0 {
		r.host.CancelFrame(r.frameID)
		r.frameID = 0
	}
	for _, sp := range r.sprites {
		if sp.timerID != 0 {
			r.host.StopTimer(sp.timerID)
			sp.timerID = 0
		}
	}
	if r.cancelScroll != nil {
		r.cancelScroll()
		r.cancelScroll = nil
	}
	if r.cancelPointer != nil {
		r.cancelPointer()
		r.cancelPointer = nil
	}
	if r.surface != nil {
		r.surface.Detach()
	}
	r.sprites = nil
	r.active = false
}

// Refresh remounts when the switches, the preset or the sources changed.
// Opacity and the other live settings are picked up by the next repaint.
func (r *Renderer) Refresh() {
	if !r.mounted {
		return
	}
	if mountKeyFor(r.cfg.Settings().Effective()) == r.key {
		r.requestDraw()
		return
	}
	r.Unmount()
	r.Mount()
}

// Mounted reports whether the renderer is mounted.
func (r *Renderer) Mounted() bool { return r.mounted }

// Active reports whether layers are being drawn.
func (r *Renderer) Active() bool { return r.active }

// Surface returns the drawing surface, nil before the first Mount.
func (r *Renderer) Surface() *surface.Surface { return r.surface }

// Frames counts repaints.
func (r *Renderer) Frames() uint64 { return r.draws }

// Decodes counts source files decoded since creation.
func (r *Renderer) Decodes() int { return r.decodes }

// Pointer returns the last normalized pointer position.
func (r *Renderer) Pointer() (float64, float64) { return r.mx, r.my }

// Layers returns the specs of the loaded layers in draw order.
func (r *Renderer) Layers() []LayerSpec {
	out := make([]LayerSpec, len(r.sprites))
	for i, sp := range r.sprites {
		out[i] = sp.spec
	}
	return out
}

// Placement returns where layer i is drawn right now: top-left corner of its
// unrotated box and the box size, in logical pixels.
func (r *Renderer) Placement(i int) (x, y, size float64) {
	sp := r.sprites[i]
	size = r.layerSize(sp)
	x, y = Box(sp.spec, size, r.surface.Width(), r.surface.Height())
	dx, dy := Offset(sp.spec, r.scrollY, r.mx, r.my)
	return x + dx, y + dy, size
}

// CurrentFrame returns the animation frame shown by layer i.
func (r *Renderer) CurrentFrame(i int) int { return r.sprites[i].current }

func (r *Renderer) load(sources []string) {
	cache := make(map[string]*asset)
	for _, spec := range r.preset.Layers {
		sp := &sprite{spec: spec}
		if spec.IsGlow() {
			r.sprites = append(r.sprites, sp)
			continue
		}
		path := sources[spec.Source%len(sources)]
		a, ok := cache[path]
		if !ok {
			var err error
			a, err = r.decode(path)
			if err != nil {
				r.log.Printf("parallax: skipping %s: %v", spec.Name, err)
				cache[path] = nil
				continue
			}
			cache[path] = a
		}
		if a == nil {
			continue
		}
		sp.size = math.Round(spec.Size + (r.rng.Float64()-0.5)*spec.Jitter)
		side := int(math.Max(1, math.Round(sp.size*BakeScale)))
		for i, fr := range a.frames {
			baked := bake(fr, side, spec)
			sp.frames = append(sp.frames, gg.ImageBufFromImage(baked))
			sp.widths = append(sp.widths, float64(baked.Rect.Dx())/BakeScale)
			sp.heights = append(sp.heights, float64(baked.Rect.Dy())/BakeScale)
			sp.delays = append(sp.delays, a.delays[i])
		}
		r.sprites = append(r.sprites, sp)
	}
}

func (r *Renderer) decode(path string) (*asset, error) {
	f, err := r.open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r.decodes++
	return decodeAsset(f)
}

func (r *Renderer) armTimer(sp *sprite) {
	if len(sp.frames) < 2 {
		return
	}
	sp.timerID = r.host.AfterFunc(sp.delays[sp.current], func() {
		sp.timerID = 0
		sp.current = (sp.current + 1) % len(sp.frames)
		r.requestDraw()
		r.armTimer(sp)
	})
}

// requestDraw coalesces every change until the next frame.
func (r *Renderer) requestDraw() {
	if !r.active || r.frameID != 0 {
		return
	}
	r.frameID = r.host.RequestFrame(func(time.Time) {
		r.frameID = 0
		r.draw()
	})
}

func (r *Renderer) layerSize(sp *sprite) float64 {
	if sp.spec.SizeVW > 0 {
		return sp.spec.SizeVW * r.surface.Width()
	}
	return sp.size
}

func (r *Renderer) draw() {
	s := r.cfg.Settings().Effective()
	r.surface.Clear()
	w := r.surface.Width()
	ctx := r.surface.Context()

	for i, sp := range r.sprites {
		if w < sp.spec.MinWidth {
			continue
		}
		opacity := math.Max(0, r.preset.Opacity+sp.spec.OpacityBias) * s.Parallax.Opacity
		if opacity <= 0 {
			continue
		}
		x, y, size := r.Placement(i)

		if sp.spec.IsGlow() {
			cr, cg, cb := sp.spec.Glow.Floats()
			col := gg.RGBA{R: cr, G: cg, B: cb, A: opacity}
			stops := []surface.Stop{{Offset: 0, Alpha: sp.spec.GlowAlpha}, {Offset: 1, Alpha: 0}}
			if err := r.surface.Glow(x+size/2, y+size/2, size/2, col, stops, surface.SourceOver); err != nil {
				if r.lastErr == nil {
					r.log.Printf("parallax: glow %s: %v", sp.spec.Name, err)
				}
				r.lastErr = err
			}
			continue
		}
		if len(sp.frames) == 0 {
			continue
		}
		fw, fh := sp.widths[sp.current], sp.heights[sp.current]
		ctx.DrawImageEx(sp.frames[sp.current], gg.DrawImageOptions{
			X:         x + size/2 - fw/2,
			Y:         y + size/2 - fh/2,
			DstWidth:  fw,
			DstHeight: fh,
			Opacity:   opacity,
			BlendMode: gg.BlendScreen,
		})
	}
	r.draws++
}
