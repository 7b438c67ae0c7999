//go:build ebiten

package render

import (
	"errors"
	"image"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// EbitenWindow presents frames in an ebiten window. Run must be called from
// the main goroutine; Present may be called from any other.
type EbitenWindow struct {
	mu      sync.Mutex
	pending *image.NRGBA
	status  string
	closed  bool

	sink       SignalSink
	image      *ebiten.Image
	outW, outH int
	cursorX    int
	cursorY    int
	scrollY    float64
	title      string
}

// NewEbitenWindow configures the ebiten window. Nothing is shown until Run.
func NewEbitenWindow(opts Options) (*EbitenWindow, error) {
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
	ebiten.SetWindowSize(w, h)
	ebiten.SetWindowTitle(title)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	return &EbitenWindow{sink: opts.Sink, title: title, cursorX: -1, cursorY: -1}, nil
}

// Run blocks until the window is closed.
func (e *EbitenWindow) Run() error {
	err := ebiten.RunGame(e)
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	if err != nil && !errors.Is(err, ebiten.Termination) {
		return err
	}
	return nil
}

func (e *EbitenWindow) Present(frame *image.NRGBA, status string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrRendererQuit
	}
	if frame != nil {
		if e.pending == nil || !e.pending.Rect.Eq(frame.Rect) {
			e.pending = image.NewNRGBA(frame.Rect)
		}
		copy(e.pending.Pix, frame.Pix)
	}
	e.status = status
	return nil
}

func (e *EbitenWindow) Close() error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	return nil
}

func (e *EbitenWindow) Update() error {
	e.mu.Lock()
	closed := e.closed
	status := e.status
	e.mu.Unlock()
	if closed || inpututil.IsKeyJustPressed(ebiten.KeyEscape) || inpututil.IsKeyJustPressed(ebiten.KeyQ) {
		return ebiten.Termination
	}
	if status != "" && status != e.title {
		ebiten.SetWindowTitle(status)
		e.title = status
	}
	if e.sink == nil {
		return nil
	}
	if x, y := ebiten.CursorPosition(); x != e.cursorX || y != e.cursorY {
		e.cursorX, e.cursorY = x, y
		e.sink.PointerMove(float64(x), float64(y))
	}
	if _, dy := ebiten.Wheel(); dy != 0 {
		e.scrollY = max(0, e.scrollY-dy*40)
		e.sink.Scroll(e.scrollY)
	}
	return nil
}

func (e *EbitenWindow) Draw(screen *ebiten.Image) {
	e.mu.Lock()
	frame := e.pending
	if frame != nil {
		if e.image == nil || e.image.Bounds() != frame.Rect {
			if e.image != nil {
				e.image.Deallocate()
			}
			e.image = ebiten.NewImage(frame.Rect.Dx(), frame.Rect.Dy())
		}
		// Composed frames are opaque, so straight and premultiplied alpha agree.
		e.image.WritePixels(frame.Pix)
	}
	e.mu.Unlock()
	if e.image == nil {
		return
	}
	sw, sh := screen.Bounds().Dx(), screen.Bounds().Dy()
	iw, ih := e.image.Bounds().Dx(), e.image.Bounds().Dy()
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(float64(sw)/float64(iw), float64(sh)/float64(ih))
	op.Filter = ebiten.FilterLinear
	screen.DrawImage(e.image, op)
}

func (e *EbitenWindow) Layout(outsideWidth, outsideHeight int) (int, int) {
	if (outsideWidth != e.outW || outsideHeight != e.outH) && e.sink != nil {
		e.sink.Resize(float64(outsideWidth), float64(outsideHeight), ebiten.Monitor().DeviceScaleFactor())
	}
	e.outW, e.outH = outsideWidth, outsideHeight
	return outsideWidth, outsideHeight
}

func SupportsEbiten() bool { return true }
