//go:build !ebiten

package render

import (
	"errors"
	"image"
)

// EbitenWindow is unavailable without the ebiten build tag.
type EbitenWindow struct{}

var errNoEbiten = errors.New("ebiten backend not enabled; rebuild with -tags ebiten")

func NewEbitenWindow(Options) (*EbitenWindow, error) { return nil, errNoEbiten }

func (*EbitenWindow) Run() error { return errNoEbiten }

func (*EbitenWindow) Present(*image.NRGBA, string) error { return ErrRendererQuit }

func (*EbitenWindow) Close() error { return nil }

func SupportsEbiten() bool { return false }
