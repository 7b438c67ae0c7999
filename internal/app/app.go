package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/eiannone/keyboard"
	"github.com/guidoenr/backdrop/internal/blackhole"
	"github.com/guidoenr/backdrop/internal/env"
	"github.com/guidoenr/backdrop/internal/params"
	"github.com/guidoenr/backdrop/internal/parallax"
	"github.com/guidoenr/backdrop/internal/render"
	"github.com/guidoenr/backdrop/internal/starfield"
	"github.com/guidoenr/backdrop/internal/surface"
	"golang.org/x/term"
)

// Config configures the application runtime.
type Config struct {
	Width         float64
	Height        float64
	DPR           float64
	LoopFPS       float64
	Output        string
	Palette       string
	UseANSI       bool
	ShowStatusBar bool
	Demo          bool
	ProfilePath   string
	Snapshots     bool
	Store         *params.Store
	Presenter     render.Presenter
	Log           *log.Logger
}

// Scene is a primary renderer the host mounts.
type Scene interface {
	Mount()
	Unmount()
	Refresh()
	Active() bool
	Frames() uint64
	Surface() *surface.Surface
}

// Status is a point-in-time summary of the running host.
type Status struct {
	Scene    params.Scene   `json:"scene"`
	Quality  params.Quality `json:"quality"`
	Active   bool           `json:"active"`
	Hidden   bool           `json:"hidden"`
	LowPower bool           `json:"lowPower"`
	FPS      float64        `json:"fps"`
	Frames   uint64         `json:"frames"`
	Parallax bool           `json:"parallax"`
	Layers   int            `json:"layers"`
	Viewport env.Viewport   `json:"viewport"`
	Output   string         `json:"output"`
}

type inputEvent int

const (
	inputEventQuit inputEvent = iota
	inputEventScene
	inputEventParallax
	inputEventLowPower
	inputEventReducedMotion
	inputEventHidden
	inputEventQuality
	inputEventAccent
)

var accents = []*params.RGB{nil, {0, 220, 255}, {255, 60, 200}, {255, 204, 0}}

// App ties the host loop, the mounted renderers and the presenter together.
type App struct {
	cfg        Config
	log        *log.Logger
	store      *params.Store
	loop       *env.Loop
	scene      Scene
	sceneName  params.Scene
	layers     *parallax.Renderer
	compositor *Compositor
	presenter  render.Presenter
	demo       *demoDriver
	prof       *profiler

	version     uint64
	last        time.Time
	hidden      bool
	accent      int
	inputEvents chan inputEvent

	mu       sync.RWMutex
	status   Status
	snapshot *image.NRGBA
}

// New constructs the application using the provided configuration.
func New(cfg Config) (*App, error) {
	if cfg.LoopFPS <= 0 {
		cfg.LoopFPS = 30
	}
	if cfg.Log == nil {
		cfg.Log = log.New(os.Stdout, "", log.LstdFlags)
	}
	if cfg.Width <= 0 {
		cfg.Width = 1280
	}
	if cfg.Height <= 0 {
		cfg.Height = 720
	}
	if cfg.DPR <= 0 {
		cfg.DPR = 1
	}
	if cfg.Output == "" {
		cfg.Output = render.OutputANSI
	}
	if cfg.Store == nil {
		cfg.Store = params.NewStore(params.Defaults())
	}

	a := &App{
		cfg:        cfg,
		log:        cfg.Log,
		store:      cfg.Store,
		loop:       env.NewLoop(env.Viewport{Width: cfg.Width, Height: cfg.Height, DPR: cfg.DPR}),
		compositor: NewCompositor(),
		prof:       newProfiler(cfg.ProfilePath, cfg.Log),
	}
	a.layers = parallax.New(a.loop, a.store, parallax.WithLogger(a.log))

	a.presenter = cfg.Presenter
	if a.presenter == nil {
		opts := render.Options{
			Title:   "backdrop",
			Palette: cfg.Palette,
			UseANSI: cfg.UseANSI,
			Status:  cfg.ShowStatusBar,
			Sink:    a.loop,
		}
		if cfg.Output != render.OutputANSI {
			opts.Width, opts.Height = int(cfg.Width), int(cfg.Height)
		}
		p, err := render.Open(cfg.Output, opts)
		if err != nil {
			return nil, fmt.Errorf("open %s output: %w", cfg.Output, err)
		}
		a.presenter = p
	}
	if cfg.Demo {
		a.demo = newDemoDriver()
		a.log.Println("demo input enabled, synthesizing scroll and pointer")
	}
	return a, nil
}

// Mount mounts the configured scene and the parallax layers.
func (a *App) Mount() {
	s := a.store.Settings()
	a.version = a.store.Version()
	a.sceneName = s.Scene
	a.scene = a.newScene(s.Scene)
	a.scene.Mount()
	a.layers.Mount()
	a.last = a.loop.Now()
	a.log.Printf("mounted scene=%s quality=%s active=%t parallax=%t", s.Scene, s.Quality, s.Active(), a.layers.Active())
}

func (a *App) newScene(name params.Scene) Scene {
	if name == params.SceneBlackhole {
		return blackhole.New(a.loop, a.store, blackhole.WithLogger(a.log))
	}
	return starfield.New(a.loop, a.store, starfield.WithLogger(a.log))
}

// Run drives the loop until ctx is cancelled or the output is closed.
func (a *App) Run(ctx context.Context) error {
	if a.scene == nil {
		a.Mount()
	}
	frameDuration := time.Duration(float64(time.Second) / a.cfg.LoopFPS)
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	inputCtx, cancelInput := context.WithCancel(ctx)
	defer cancelInput()
	if a.cfg.Output == render.OutputANSI || a.cfg.Output == render.OutputPNG || a.cfg.Output == render.OutputNone {
		a.startInputListener(inputCtx)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-a.inputEvents:
			if !ok {
				a.inputEvents = nil
				continue
			}
			if evt == inputEventQuit {
				return nil
			}
			a.handleInput(evt)
		case now := <-ticker.C:
			if err := a.Tick(now); err != nil {
				if errors.Is(err, render.ErrRendererQuit) {
					return nil
				}
				return err
			}
		}
	}
}

// RunHeadless advances the loop by a fixed interval per frame and writes each
// composed frame as a PNG into dir. It returns the written paths.
func (a *App) RunHeadless(ctx context.Context, frames int, dir string) ([]string, error) {
	if a.scene == nil {
		a.Mount()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	interval := time.Duration(float64(time.Second) / a.cfg.LoopFPS)
	now := a.loop.Now()
	paths := make([]string, 0, frames)
	for i := 0; i < frames; i++ {
		if err := ctx.Err(); err != nil {
			return paths, err
		}
		now = now.Add(interval)
		if err := a.Tick(now); err != nil && !errors.Is(err, render.ErrRendererQuit) {
			return paths, err
		}
		path := filepath.Join(dir, fmt.Sprintf("frame-%04d.png", i))
		if err := a.compositor.SavePNG(path); err != nil {
			return paths, fmt.Errorf("write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Tick runs one host turn at now: input, configuration sync, loop step,
// composition and presentation.
func (a *App) Tick(now time.Time) error {
	a.prof.beginFrame(a.sceneName)
	delta := now.Sub(a.last).Seconds()
	if delta <= 0 {
		delta = 1.0 / a.cfg.LoopFPS
	}
	a.last = now

	vp := a.loop.Viewport()
	if a.demo != nil {
		x, y, scroll := a.demo.Next(delta, vp)
		a.loop.PointerMove(x, y)
		a.loop.Scroll(scroll)
	}
	a.syncSettings()
	a.loop.Step(now)
	a.prof.markSection("step")

	var overlays []*surface.Surface
	if a.layers.Active() {
		overlays = append(overlays, a.layers.Surface())
	}
	frame := a.compositor.Compose(a.loop.Viewport(), a.scene.Surface(), overlays...)
	a.prof.markSection("compose")

	status := a.updateStatus(frame, delta)
	err := a.presenter.Present(frame, a.statusLine(status))
	a.prof.markSection("present")
	var meteors uint64
	if mc, ok := a.scene.(meteorCounter); ok {
		meteors = mc.Meteors()
	}
	a.prof.endFrame(a.sceneName, a.scene.Frames(), meteors)
	if err != nil {
		if errors.Is(err, render.ErrRendererQuit) {
			return err
		}
		return fmt.Errorf("present: %w", err)
	}
	return nil
}

// syncSettings remounts or refreshes renderers after a configuration change.
func (a *App) syncSettings() {
	v := a.store.Version()
	if v == a.version {
		return
	}
	a.version = v
	s := a.store.Settings()
	if s.Scene != a.sceneName {
		a.scene.Unmount()
		a.sceneName = s.Scene
		a.scene = a.newScene(s.Scene)
		a.scene.Mount()
		a.log.Printf("scene -> %s", s.Scene)
	} else {
		a.scene.Refresh()
	}
	a.layers.Refresh()
}

func (a *App) updateStatus(frame *image.NRGBA, delta float64) Status {
	s := a.store.Settings()
	st := Status{
		Scene:    s.Scene,
		Quality:  s.Quality,
		Active:   a.scene.Active(),
		Hidden:   a.loop.Hidden(),
		LowPower: s.LowPower,
		FPS:      1.0 / delta,
		Frames:   a.scene.Frames(),
		Parallax: a.layers.Active(),
		Layers:   len(a.layers.Layers()),
		Viewport: a.loop.Viewport(),
		Output:   a.cfg.Output,
	}
	a.mu.Lock()
	a.status = st
	if a.cfg.Snapshots && frame != nil {
		if a.snapshot == nil || !a.snapshot.Rect.Eq(frame.Rect) {
			a.snapshot = image.NewNRGBA(frame.Rect)
		}
		copy(a.snapshot.Pix, frame.Pix)
	}
	a.mu.Unlock()
	return st
}

func (a *App) statusLine(st Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s | quality=%s", strings.ToUpper(string(st.Scene)), st.Quality)
	switch {
	case st.Hidden:
		b.WriteString(" HIDDEN")
	case !st.Active:
		b.WriteString(" IDLE")
	}
	if st.Parallax {
		fmt.Fprintf(&b, " parallax=%d", st.Layers)
	}
	fmt.Fprintf(&b, " | frames %d fps %.1f", st.Frames, st.FPS)
	return b.String()
}

// Close releases held resources.
func (a *App) Close() error {
	if a.scene != nil {
		a.scene.Unmount()
	}
	a.layers.Unmount()
	var errs []error
	if err := a.presenter.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := a.prof.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Loop exposes the host loop so outer surfaces can raise signals.
func (a *App) Loop() *env.Loop { return a.loop }

// Store exposes the live settings.
func (a *App) Store() *params.Store { return a.store }

// Presenter returns the output the frames are presented to.
func (a *App) Presenter() render.Presenter { return a.presenter }

// Scene returns the mounted primary renderer.
func (a *App) Scene() Scene { return a.scene }

// Layers returns the parallax renderer.
func (a *App) Layers() *parallax.Renderer { return a.layers }

// Status returns the status recorded by the last Tick.
func (a *App) Status() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.status
}

// Snapshot returns a copy of the last composed frame, nil when snapshots are
// disabled or nothing was composed yet.
func (a *App) Snapshot() *image.NRGBA {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.snapshot == nil {
		return nil
	}
	out := image.NewNRGBA(a.snapshot.Rect)
	copy(out.Pix, a.snapshot.Pix)
	return out
}

func (a *App) handleInput(evt inputEvent) {
	switch evt {
	case inputEventScene:
		s := a.store.Update(func(s *params.Settings) {
			if s.Scene == params.SceneStars {
				s.Scene = params.SceneBlackhole
			} else {
				s.Scene = params.SceneStars
			}
		})
		a.log.Printf("scene toggled -> %s", s.Scene)
	case inputEventParallax:
		s := a.store.Update(func(s *params.Settings) { s.Parallax.Enabled = !s.Parallax.Enabled })
		if s.Parallax.Enabled && len(s.Parallax.Sources) == 0 {
			a.log.Println("parallax enabled but no sources configured")
		}
	case inputEventLowPower:
		s := a.store.Update(func(s *params.Settings) { s.LowPower = !s.LowPower })
		a.log.Printf("low power -> %t", s.LowPower)
	case inputEventReducedMotion:
		s := a.store.Update(func(s *params.Settings) { s.ReducedMotion = !s.ReducedMotion })
		a.log.Printf("reduced motion -> %t", s.ReducedMotion)
	case inputEventHidden:
		a.hidden = !a.hidden
		a.loop.SetHidden(a.hidden)
	case inputEventQuality:
		s := a.store.Update(func(s *params.Settings) { s.Quality = s.Quality.Next() })
		a.log.Printf("quality -> %s", s.Quality)
	case inputEventAccent:
		a.accent = (a.accent + 1) % len(accents)
		ap := a.loop.Appearance()
		ap.Accent = accents[a.accent]
		a.loop.SetAppearance(ap)
	}
}

func (a *App) startInputListener(ctx context.Context) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return
	}
	if err := keyboard.Open(); err != nil {
		a.log.Printf("keyboard input disabled: %v", err)
		a.inputEvents = nil
		return
	}

	events := make(chan inputEvent, 16)
	a.inputEvents = events

	closeOnce := &sync.Once{}
	go func() {
		<-ctx.Done()
		closeOnce.Do(func() {
			_ = keyboard.Close()
		})
	}()

	go func() {
		defer close(events)
		defer closeOnce.Do(func() {
			_ = keyboard.Close()
		})
		for {
			char, key, err := keyboard.GetKey()
			if err != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			default:
			}
			if key == keyboard.KeyEsc || key == keyboard.KeyCtrlC {
				events <- inputEventQuit
				return
			}
			evt, ok := keyEvents[char|0x20]
			if !ok {
				continue
			}
			if evt == inputEventQuit {
				events <- evt
				return
			}
			select {
			case events <- evt:
			default:
			}
		}
	}()
}

var keyEvents = map[rune]inputEvent{
	'q': inputEventQuit,
	'r': inputEventScene,
	'p': inputEventParallax,
	'l': inputEventLowPower,
	'm': inputEventReducedMotion,
	'h': inputEventHidden,
	't': inputEventQuality,
	'a': inputEventAccent,
}
