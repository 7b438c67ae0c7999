// Package render presents composed background frames on a terminal or in a
// window.
package render

import (
	"errors"
	"fmt"
	"image"
	"strings"
)

// ErrRendererQuit is returned by Present when the user closed the output.
var ErrRendererQuit = errors.New("renderer quit")

// Presenter shows composed frames. Present is called from the host loop.
type Presenter interface {
	Present(frame *image.NRGBA, status string) error
	Close() error
}

// SignalSink receives host signals raised by a window backend.
// env.Loop satisfies it.
type SignalSink interface {
	Resize(width, height, dpr float64)
	SetHidden(hidden bool)
	PointerMove(x, y float64)
	Scroll(y float64)
}

// Options configures a presenter.
type Options struct {
	Width   int
	Height  int
	Title   string
	Palette string
	UseANSI bool
	Status  bool
	Sink    SignalSink
}

const (
	OutputANSI   = "ansi"
	OutputSDL    = "sdl"
	OutputEbiten = "ebiten"
	OutputPNG    = "png"
	OutputNone   = "none"
)

// OutputNames lists the supported output kinds.
func OutputNames() []string {
	return []string{OutputANSI, OutputSDL, OutputEbiten, OutputPNG, OutputNone}
}

// Open creates the presenter for kind. PNG output is handled by the host and
// yields a discarding presenter here.
func Open(kind string, opts Options) (Presenter, error) {
	switch strings.ToLower(kind) {
	case OutputANSI, "":
		return NewTerminal(opts), nil
	case OutputSDL:
		return newSDLWindow(opts)
	case OutputEbiten:
		w, err := NewEbitenWindow(opts)
		if err != nil {
			return nil, err
		}
		return w, nil
	case OutputPNG, OutputNone:
		return Discard{}, nil
	default:
		return nil, fmt.Errorf("unknown output %q", kind)
	}
}

// Discard drops every frame.
type Discard struct{}

func (Discard) Present(*image.NRGBA, string) error { return nil }

func (Discard) Close() error { return nil }
