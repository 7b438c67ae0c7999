//go:build !sdl

package render

import "errors"

func newSDLWindow(Options) (Presenter, error) {
	return nil, errors.New("SDL backend not enabled; rebuild with -tags sdl")
}

func SupportsSDL() bool { return false }
