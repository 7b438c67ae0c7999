package surface

import (
	"math"
	"testing"
	"time"

	"github.com/gogpu/gg"
	"github.com/guidoenr/backdrop/internal/env"
)

func TestResizeMatchesDevicePixels(t *testing.T) {
	viewports := [][2]float64{{320, 568}, {1920, 1080}}
	for _, dpr := range []float64{1, 1.5, 2, 3} {
		for _, vp := range viewports {
			loop := env.NewLoop(env.Viewport{Width: vp[0], Height: vp[1], DPR: dpr})
			s := New(loop)

			wantW := int(math.Floor(vp[0] * dpr))
			wantH := int(math.Floor(vp[1] * dpr))
			if s.BufferWidth() != wantW || s.BufferHeight() != wantH {
				t.Fatalf("dpr=%v vp=%v: buffer %dx%d, want %dx%d", dpr, vp, s.BufferWidth(), s.BufferHeight(), wantW, wantH)
			}
			if s.Width() != vp[0] || s.Height() != vp[1] {
				t.Fatalf("dpr=%v vp=%v: logical size %vx%v", dpr, vp, s.Width(), s.Height())
			}
			x, y := s.ToDevice(vp[0], vp[1])
			if math.Abs(x-vp[0]*dpr) > 1e-9 || math.Abs(y-vp[1]*dpr) > 1e-9 {
				t.Fatalf("dpr=%v: logical corner maps to (%v,%v)", dpr, x, y)
			}
		}
	}
}

func TestResizeClampsDPRAndEmptyViewport(t *testing.T) {
	loop := env.NewLoop(env.Viewport{Width: 0, Height: 0, DPR: 0.5})
	s := New(loop)
	if s.BufferWidth() != 1 || s.BufferHeight() != 1 {
		t.Fatalf("expected 1x1 buffer for empty viewport, got %dx%d", s.BufferWidth(), s.BufferHeight())
	}
	if s.DPR() != 1 {
		t.Fatalf("expected dpr clamped to 1, got %v", s.DPR())
	}
}

func TestAttachDebouncesResizeBursts(t *testing.T) {
	loop := env.NewLoop(env.Viewport{Width: 100, Height: 100, DPR: 1})
	start := loop.Now()
	s := New(loop)
	resized := 0
	s.Attach(func() { resized++ })

	at := start
	for i := 0; i < 5; i++ {
		loop.Resize(200+float64(i)*10, 150, 2)
		at = at.Add(30 * time.Millisecond)
		loop.Step(at)
	}
	if resized != 0 {
		t.Fatalf("resized during the burst")
	}
	at = at.Add(120 * time.Millisecond)
	loop.Step(at)
	if resized != 1 {
		t.Fatalf("expected a single debounced resize, got %d", resized)
	}
	if s.BufferWidth() != 480 || s.BufferHeight() != 300 {
		t.Fatalf("buffer not re-provisioned: %dx%d", s.BufferWidth(), s.BufferHeight())
	}

	s.Detach()
	s.Detach()
	loop.Resize(50, 50, 1)
	loop.Step(at.Add(time.Second))
	if resized != 1 {
		t.Fatalf("resize delivered after Detach")
	}
	if loop.Listeners() != 0 {
		t.Fatalf("resize subscription leaked")
	}
}

func TestGlowFadesOutward(t *testing.T) {
	s := NewBuffer(40, 40)
	stops := []Stop{{0, 0.9}, {0.4, 0.45}, {1, 0}}
	if err := s.Glow(20, 20, 10, gg.RGBA{R: 1, G: 1, B: 1, A: 1}, stops, SourceOver); err != nil {
		t.Fatalf("glow: %v", err)
	}

	center := s.Alpha(20, 20)
	mid := s.Alpha(25, 20)
	edge := s.Alpha(29, 20)
	outside := s.Alpha(35, 20)
	if !(center > mid && mid > edge) {
		t.Fatalf("expected alpha to fall off: center=%v mid=%v edge=%v", center, mid, edge)
	}
	if outside != 0 {
		t.Fatalf("expected nothing outside the radius, got %v", outside)
	}
}

func TestGlowBlendsShareTheGradient(t *testing.T) {
	stops := []Stop{{0, 0.8}, {1, 0}}
	col := gg.RGBA{R: 1, G: 0.5, B: 0.2, A: 0.75}
	over := NewBuffer(40, 40)
	add := NewBuffer(40, 40)
	if err := over.Glow(20.5, 20.5, 12, col, stops, SourceOver); err != nil {
		t.Fatalf("glow: %v", err)
	}
	if err := add.Glow(20.5, 20.5, 12, col, stops, Lighter); err != nil {
		t.Fatalf("glow: %v", err)
	}
	for _, x := range []int{20, 23, 27} {
		a, b := over.Alpha(x, 20), add.Alpha(x, 20)
		if math.Abs(a-b) > 0.02 {
			t.Fatalf("x=%d: source-over alpha %v, lighter alpha %v", x, a, b)
		}
	}
	if got := over.Alpha(20, 20); math.Abs(got-0.6) > 0.03 {
		t.Fatalf("expected centre alpha 0.8*0.75, got %v", got)
	}
}

func TestGlowFollowsDevicePixelRatio(t *testing.T) {
	loop := env.NewLoop(env.Viewport{Width: 40, Height: 40, DPR: 2})
	s := New(loop)
	stops := []Stop{{0, 1}, {1, 0}}
	if err := s.Glow(10, 10, 5, gg.RGBA{R: 1, G: 1, B: 1, A: 1}, stops, SourceOver); err != nil {
		t.Fatalf("glow: %v", err)
	}
	if s.Alpha(20, 20) < 0.9 {
		t.Fatalf("expected the glow centred on device pixel (20,20), got %v", s.Alpha(20, 20))
	}
	if s.Alpha(10, 10) != 0 {
		t.Fatalf("glow painted at the logical position instead of the device one")
	}
}

func TestLighterAddsAndSaturates(t *testing.T) {
	s := NewBuffer(2, 2)
	c := gg.RGBA{R: 1, G: 0.5, B: 0, A: 0.6}
	s.AddPixel(0, 0, c)
	s.AddPixel(0, 0, c)
	p := s.Pixel(0, 0)
	if p.A != 1 {
		t.Fatalf("expected alpha to saturate at 1, got %v", p.A)
	}
	if p.R < 0.99 {
		t.Fatalf("expected red to saturate, got %v", p.R)
	}
	if math.Abs(p.G-0.6) > 0.01 {
		t.Fatalf("expected green to add up to 0.6, got %v", p.G)
	}
}

func TestSourceOverOnOpaqueKeepsAlpha(t *testing.T) {
	s := NewBuffer(4, 4)
	s.Fill(gg.RGBA{A: 1})
	if err := s.FillRect(0, 0, 4, 4, gg.RGBA{R: 1, G: 1, B: 1, A: 0.5}); err != nil {
		t.Fatalf("fill: %v", err)
	}
	p := s.Pixel(1, 1)
	if p.A < 0.99 {
		t.Fatalf("alpha changed on opaque destination: %v", p.A)
	}
	if math.Abs(p.R-0.5) > 0.02 {
		t.Fatalf("expected half-grey, got %v", p.R)
	}
}

func TestSegmentRespectsProfile(t *testing.T) {
	for _, mode := range []Blend{SourceOver, Lighter} {
		s := NewBuffer(30, 10)
		err := s.Segment(5, 5, 25, 5, 2, gg.RGBA{R: 1, G: 1, B: 1, A: 1}, func(t float64) float64 { return 1 - t }, mode)
		if err != nil {
			t.Fatalf("mode %d: segment: %v", mode, err)
		}
		if s.Alpha(6, 4) <= s.Alpha(23, 4) {
			t.Fatalf("mode %d: expected start of the segment brighter than its end", mode)
		}
		if s.Alpha(15, 9) != 0 {
			t.Fatalf("mode %d: segment bled outside its width", mode)
		}
	}
}

func TestLighterSegmentsAccumulate(t *testing.T) {
	s := NewBuffer(30, 10)
	col := gg.RGBA{R: 1, G: 1, B: 1, A: 0.3}
	for i := 0; i < 2; i++ {
		if err := s.Segment(5, 5, 25, 5, 4, col, nil, Lighter); err != nil {
			t.Fatalf("segment: %v", err)
		}
	}
	if got := s.Alpha(15, 5); math.Abs(got-0.6) > 0.02 {
		t.Fatalf("expected overlapping segments to add to 0.6, got %v", got)
	}
}

func TestSnapshotUnpremultiplies(t *testing.T) {
	s := NewBuffer(2, 1)
	s.AddPixel(0, 0, gg.RGBA{R: 1, A: 0.5})
	if s.RGBA().Pix[0] > 130 {
		t.Fatalf("expected premultiplied red in the buffer, got %d", s.RGBA().Pix[0])
	}
	snap := s.Snapshot()
	if snap.Pix[0] < 250 || snap.Pix[3] < 125 || snap.Pix[3] > 130 {
		t.Fatalf("expected straight red at half alpha, got %v", snap.Pix[:4])
	}
	if snap.Pix[7] != 0 {
		t.Fatalf("expected the untouched pixel transparent")
	}
}

func TestFillEllipseIsOpaqueAtCentre(t *testing.T) {
	s := NewBuffer(40, 20)
	if err := s.FillEllipse(20, 10, 8, 4, gg.RGBA{A: 1}); err != nil {
		t.Fatalf("fill: %v", err)
	}
	if s.Alpha(20, 10) < 0.99 {
		t.Fatalf("expected opaque centre, got %v", s.Alpha(20, 10))
	}
	if s.Alpha(0, 0) != 0 {
		t.Fatalf("expected corner untouched")
	}
}

func TestStopAlphaClampsAndInterpolates(t *testing.T) {
	stops := []Stop{{0.2, 0}, {0.5, 1}, {0.8, 0}}
	cases := map[float64]float64{0: 0, 0.2: 0, 0.35: 0.5, 0.5: 1, 0.65: 0.5, 1: 0}
	for in, want := range cases {
		if got := StopAlpha(stops, in); math.Abs(got-want) > 1e-9 {
			t.Fatalf("StopAlpha(%v) = %v, want %v", in, got, want)
		}
	}
}
