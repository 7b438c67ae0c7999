//go:build sdl

package render

import (
	"fmt"
	"image"

	"github.com/veandco/go-sdl2/sdl"
)

type sdlWindow struct {
	window      *sdl.Window
	renderer    *sdl.Renderer
	texture     *sdl.Texture
	width       int
	height      int
	windowTitle string
	sink        SignalSink
	scrollY     float64
}

func newSDLWindow(opts Options) (Presenter, error) {
	if err := sdl.InitSubSystem(sdl.INIT_VIDEO); err != nil {
		return nil, fmt.Errorf("sdl init: %w", err)
	}
	w, h := opts.Width, opts.Height
	if w <= 0 {
		w = 1280
	}
	if h <= 0 {
		h = 720
	}
	title := opts.Title
	if title == "" {
		title = "backdrop"
	}
	window, err := sdl.CreateWindow(
		title,
		sdl.WINDOWPOS_CENTERED, sdl.WINDOWPOS_CENTERED,
		int32(w), int32(h),
		sdl.WINDOW_SHOWN|sdl.WINDOW_RESIZABLE|sdl.WINDOW_ALLOW_HIGHDPI,
	)
	if err != nil {
		sdl.QuitSubSystem(sdl.INIT_VIDEO)
		return nil, fmt.Errorf("sdl window: %w", err)
	}
	renderer, err := sdl.CreateRenderer(window, -1, sdl.RENDERER_ACCELERATED|sdl.RENDERER_PRESENTVSYNC)
	if err != nil {
		window.Destroy()
		sdl.QuitSubSystem(sdl.INIT_VIDEO)
		return nil, fmt.Errorf("sdl renderer: %w", err)
	}
	return &sdlWindow{
		window:      window,
		renderer:    renderer,
		windowTitle: title,
		sink:        opts.Sink,
	}, nil
}

func (s *sdlWindow) ensureTexture(width, height int) error {
	if s.texture != nil && s.width == width && s.height == height {
		return nil
	}
	if s.texture != nil {
		s.texture.Destroy()
		s.texture = nil
	}
	tex, err := s.renderer.CreateTexture(
		sdl.PIXELFORMAT_ABGR8888,
		sdl.TEXTUREACCESS_STREAMING,
		int32(width), int32(height),
	)
	if err != nil {
		return err
	}
	s.texture = tex
	s.width = width
	s.height = height
	return nil
}

func (s *sdlWindow) Present(frame *image.NRGBA, status string) error {
	if frame != nil {
		if err := s.ensureTexture(frame.Rect.Dx(), frame.Rect.Dy()); err != nil {
			return err
		}
		if err := s.texture.Update(nil, frame.Pix, frame.Stride); err != nil {
			return err
		}
	}
	if status != "" && status != s.windowTitle {
		s.window.SetTitle(status)
		s.windowTitle = status
	}
	if err := s.renderer.Clear(); err != nil {
		return err
	}
	if s.texture != nil {
		if err := s.renderer.Copy(s.texture, nil, nil); err != nil {
			return err
		}
	}
	s.renderer.Present()
	return s.pollEvents()
}

func (s *sdlWindow) pollEvents() error {
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch e := event.(type) {
		case *sdl.QuitEvent:
			return ErrRendererQuit
		case *sdl.KeyboardEvent:
			if e.Type == sdl.KEYDOWN && (e.Keysym.Sym == sdl.K_ESCAPE || e.Keysym.Sym == sdl.K_q) {
				return ErrRendererQuit
			}
		case *sdl.WindowEvent:
			if s.sink == nil {
				continue
			}
			switch e.Event {
			case sdl.WINDOWEVENT_SIZE_CHANGED:
				s.sink.Resize(float64(e.Data1), float64(e.Data2), s.dpr(e.Data1))
			case sdl.WINDOWEVENT_MINIMIZED, sdl.WINDOWEVENT_HIDDEN:
				s.sink.SetHidden(true)
			case sdl.WINDOWEVENT_RESTORED, sdl.WINDOWEVENT_SHOWN:
				s.sink.SetHidden(false)
			}
		case *sdl.MouseMotionEvent:
			if s.sink != nil {
				s.sink.PointerMove(float64(e.X), float64(e.Y))
			}
		case *sdl.MouseWheelEvent:
			if s.sink != nil {
				s.scrollY = max(0, s.scrollY-float64(e.Y)*40)
				s.sink.Scroll(s.scrollY)
			}
		}
	}
	return nil
}

func (s *sdlWindow) dpr(logicalWidth int32) float64 {
	dw, _ := s.window.GLGetDrawableSize()
	if logicalWidth <= 0 || dw <= 0 {
		return 1
	}
	return float64(dw) / float64(logicalWidth)
}

func (s *sdlWindow) Close() error {
	if s.texture != nil {
		s.texture.Destroy()
		s.texture = nil
	}
	if s.renderer != nil {
		s.renderer.Destroy()
		s.renderer = nil
	}
	if s.window != nil {
		s.window.Destroy()
		s.window = nil
	}
	sdl.QuitSubSystem(sdl.INIT_VIDEO)
	return nil
}

func SupportsSDL() bool { return true }
