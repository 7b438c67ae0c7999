package render

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"strings"
	"testing"
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestRenderMapsBrightnessToGlyphs(t *testing.T) {
	term := newTerminal(&bytes.Buffer{}, Options{Width: 8, Height: 4})
	img := solid(80, 40, color.NRGBA{A: 255})
	for y := 0; y < 40; y++ {
		for x := 40; x < 80; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}

	f := term.Render(img, "")
	if len(f.Lines) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(f.Lines))
	}
	pal := Palette("default")
	row := []rune(f.Lines[1])
	if row[0] != pal[0] {
		t.Fatalf("black cell rendered as %q", row[0])
	}
	if row[7] != pal[len(pal)-1] {
		t.Fatalf("white cell rendered as %q", row[7])
	}
}

func TestRenderReservesStatusLine(t *testing.T) {
	term := newTerminal(&bytes.Buffer{}, Options{Width: 10, Height: 5, Status: true})
	f := term.Render(solid(10, 10, color.NRGBA{A: 255}), "scene=stars")
	if len(f.Lines) != 4 || f.Status != "scene=stars" {
		t.Fatalf("expected 4 rows plus status, got %d rows %q", len(f.Lines), f.Status)
	}
}

func TestRenderWithANSIColorsCells(t *testing.T) {
	term := newTerminal(&bytes.Buffer{}, Options{Width: 4, Height: 2, UseANSI: true})
	f := term.Render(solid(8, 4, color.NRGBA{R: 255, G: 200, A: 255}), "")
	for _, line := range f.Lines {
		if !strings.HasPrefix(line, "\x1b[38;5;") || !strings.HasSuffix(line, resetANSI) {
			t.Fatalf("line missing color codes: %q", line)
		}
		if strings.Count(line, "\x1b[38;5;") != 1 {
			t.Fatalf("uniform row should switch color once: %q", line)
		}
	}
}

func TestPresentWritesAndCloseRestores(t *testing.T) {
	var buf bytes.Buffer
	term := newTerminal(&buf, Options{Width: 6, Height: 3, Status: true})
	if err := term.Present(solid(12, 6, color.NRGBA{A: 255}), "fps 30"); err != nil {
		t.Fatalf("present: %v", err)
	}
	if err := term.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "\x1b[?1049h") || !strings.Contains(out, "\x1b[?1049l") {
		t.Fatalf("alternate screen not entered and left: %q", out)
	}
	if !strings.Contains(out, "fps 30") {
		t.Fatalf("status missing: %q", out)
	}
}

func TestRGBToANSI(t *testing.T) {
	cases := []struct {
		r, g, b float64
		want    int
	}{
		{0, 0, 0, 232},
		{1, 1, 1, 255},
		{1, 0, 0, 196},
		{0, 0, 1, 21},
		{1, 0.8, 0, 220},
	}
	for _, c := range cases {
		if got := rgbToANSI(c.r, c.g, c.b); got != c.want {
			t.Fatalf("rgbToANSI(%v,%v,%v) = %d, want %d", c.r, c.g, c.b, got, c.want)
		}
	}
}

func TestOpenKnowsOutputs(t *testing.T) {
	p, err := Open(OutputNone, Options{})
	if err != nil || p == nil {
		t.Fatalf("none output: %v", err)
	}
	if _, err := Open("hologram", Options{}); err == nil {
		t.Fatalf("expected an error for an unknown output")
	}
	if !SupportsSDL() {
		if _, err := Open(OutputSDL, Options{}); err == nil {
			t.Fatalf("expected an error without the sdl tag")
		}
	}
	if !SupportsEbiten() {
		w := &EbitenWindow{}
		if err := w.Present(nil, ""); !errors.Is(err, ErrRendererQuit) {
			t.Fatalf("stub window should report quit, got %v", err)
		}
	}
}
