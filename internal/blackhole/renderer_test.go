package blackhole

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/guidoenr/backdrop/internal/env"
	"github.com/guidoenr/backdrop/internal/params"
)

func fillImage(w, h int, fn func(x, y int) color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, fn(x, y))
		}
	}
	return img
}

func TestDominantColorPrefersBrightWarmPixels(t *testing.T) {
	img := fillImage(64, 64, func(x, y int) color.NRGBA {
		switch {
		case x < 32:
			return color.NRGBA{R: 255, G: 190, B: 20, A: 255}
		case y < 32:
			return color.NRGBA{R: 30, G: 40, B: 120, A: 255}
		default:
			return color.NRGBA{R: 255, G: 255, B: 255, A: 10}
		}
	})
	col, ok := DominantColor(img)
	if !ok {
		t.Fatalf("expected a color")
	}
	if col[0] < 230 || col[2] > 60 {
		t.Fatalf("expected a warm gold, got %v", col)
	}
}

func TestDominantColorIgnoresTransparentImage(t *testing.T) {
	img := fillImage(16, 16, func(int, int) color.NRGBA {
		return color.NRGBA{R: 255, G: 255, B: 255, A: 20}
	})
	if _, ok := DominantColor(img); ok {
		t.Fatalf("expected no color from a transparent image")
	}
	if _, ok := DominantColor(nil); ok {
		t.Fatalf("expected no color from nil")
	}
}

func writePNG(t *testing.T, img image.Image) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ref.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return path
}

func redImage() image.Image {
	return fillImage(8, 8, func(int, int) color.NRGBA {
		return color.NRGBA{R: 240, G: 40, B: 20, A: 255}
	})
}

func TestLoadImageFromFileAndHTTP(t *testing.T) {
	path := writePNG(t, redImage())
	if _, err := LoadImage(context.Background(), nil, path); err != nil {
		t.Fatalf("load file: %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ref.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_ = png.Encode(w, redImage())
	}))
	defer srv.Close()

	if _, err := LoadImage(context.Background(), srv.Client(), srv.URL+"/ref.png"); err != nil {
		t.Fatalf("load url: %v", err)
	}
	if _, err := LoadImage(context.Background(), srv.Client(), srv.URL+"/missing.png"); err == nil {
		t.Fatalf("expected an error for a missing remote image")
	}
	if _, err := LoadImage(context.Background(), nil, filepath.Join(t.TempDir(), "nope.png")); err == nil {
		t.Fatalf("expected an error for a missing file")
	}
}

func mountDisk(t *testing.T, s params.Settings) (*env.Loop, *params.Store, *Renderer) {
	t.Helper()
	loop := env.NewLoop(env.Viewport{Width: 640, Height: 360, DPR: 1})
	store := params.NewStore(s)
	r := New(loop, store)
	r.Mount()
	return loop, store, r
}

func stepUntil(loop *env.Loop, deadline time.Duration, done func() bool) bool {
	start := time.Now()
	at := loop.Now()
	for time.Since(start) < deadline {
		at = at.Add(10 * time.Millisecond)
		loop.Step(at)
		if done() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}

func TestRendererSamplesReferenceImage(t *testing.T) {
	s := params.Defaults()
	s.Scene = params.SceneBlackhole
	s.Disk.ImageSource = writePNG(t, redImage())
	loop, _, r := mountDisk(t, s)
	defer r.Unmount()

	if r.RingColor() != params.Gold {
		t.Fatalf("expected gold before sampling finished")
	}
	if !stepUntil(loop, 5*time.Second, func() bool { return r.RingColor() != params.Gold }) {
		t.Fatalf("sampled color never arrived")
	}
	if got := r.RingColor(); got != (params.RGB{240, 40, 20}) {
		t.Fatalf("sampled %v", got)
	}
	if r.Frames() == 0 {
		t.Fatalf("no frames drawn while sampling")
	}
}

func TestRendererKeepsGoldWhenImageMissing(t *testing.T) {
	s := params.Defaults()
	s.Disk.ImageSource = filepath.Join(t.TempDir(), "missing.webp")
	loop, _, r := mountDisk(t, s)
	defer r.Unmount()

	stepUntil(loop, 100*time.Millisecond, func() bool { return false })
	if r.RingColor() != params.Gold {
		t.Fatalf("expected gold fallback, got %v", r.RingColor())
	}
	if r.Frames() == 0 {
		t.Fatalf("rendering blocked on the failed sample")
	}
}

func TestRingColorPrecedence(t *testing.T) {
	s := params.Defaults()
	loop, store, r := mountDisk(t, s)
	defer r.Unmount()

	sampled := params.RGB{1, 2, 3}
	r.sampled = &sampled
	if r.RingColor() != sampled {
		t.Fatalf("expected sampled color")
	}

	configured := params.RGB{10, 20, 30}
	store.Update(func(s *params.Settings) { s.Disk.Color = &configured })
	if r.RingColor() != configured {
		t.Fatalf("expected configured color to win over the sample")
	}

	accent := params.RGB{100, 0, 200}
	loop.SetAppearance(env.Appearance{Accent: &accent})
	loop.Step(loop.Now().Add(time.Millisecond))
	if r.RingColor() != accent {
		t.Fatalf("expected appearance accent to win, got %v", r.RingColor())
	}
}

func TestDisabledDiskOnlyClears(t *testing.T) {
	s := params.Defaults()
	s.Enabled = false
	loop, _, r := mountDisk(t, s)
	stepUntil(loop, 50*time.Millisecond, func() bool { return false })

	if r.Frames() != 0 || r.Buffer() != nil {
		t.Fatalf("disabled renderer drew")
	}
	if frames, timers := loop.Pending(); frames != 0 || timers != 0 {
		t.Fatalf("disabled renderer scheduled work: %d frames %d timers", frames, timers)
	}
	d := r.Surface()
	if d.BufferWidth() != 640 || d.Alpha(320, 180) != 0 {
		t.Fatalf("display not sized and cleared")
	}
	r.Unmount()
}

func TestTurbulenceResizedOnConfigChange(t *testing.T) {
	loop, store, r := mountDisk(t, params.Defaults())
	defer r.Unmount()
	stepUntil(loop, 50*time.Millisecond, func() bool { return r.Frames() > 0 })
	if r.turb.Size() != 256 {
		t.Fatalf("expected default turbulence size, got %d", r.turb.Size())
	}

	store.Update(func(s *params.Settings) {
		s.Disk.TurbSize = 512
		s.Disk.Scale = 0.6
	})
	before := r.Frames()
	stepUntil(loop, 500*time.Millisecond, func() bool { return r.Frames() > before })
	if r.turb.Size() != 512 {
		t.Fatalf("turbulence not rebuilt: %d", r.turb.Size())
	}
	if r.Buffer().BufferWidth() != 384 || r.Buffer().BufferHeight() != 216 {
		t.Fatalf("buffer not re-provisioned: %dx%d", r.Buffer().BufferWidth(), r.Buffer().BufferHeight())
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

// postSignal reports every task posted to the loop.
type postSignal struct {
	*env.Loop
	posted chan struct{}
}

func (p *postSignal) Post(fn func()) {
	p.Loop.Post(fn)
	p.posted <- struct{}{}
}

func TestUnmountReleasesDisk(t *testing.T) {
	var body bytes.Buffer
	if err := png.Encode(&body, redImage()); err != nil {
		t.Fatalf("encode: %v", err)
	}
	release := make(chan struct{})
	// The transport ignores cancellation so the result still arrives after
	// unmount and has to be dropped by the renderer.
	client := &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		<-release
		return &http.Response{
			StatusCode: http.StatusOK,
			Status:     "200 OK",
			Header:     http.Header{"Content-Type": {"image/png"}},
			Body:       io.NopCloser(bytes.NewReader(body.Bytes())),
			Request:    req,
		}, nil
	})}

	s := params.Defaults()
	s.Disk.ImageSource = "http://images.test/ref.png"
	host := &postSignal{
		Loop:   env.NewLoop(env.Viewport{Width: 640, Height: 360, DPR: 1}),
		posted: make(chan struct{}, 1),
	}
	r := New(host, params.NewStore(s), WithHTTPClient(client))
	r.Mount()
	host.Step(host.Now().Add(40 * time.Millisecond))
	r.Unmount()
	r.Unmount()

	if frames, timers := host.Pending(); frames != 0 || timers != 0 {
		t.Fatalf("%d frames and %d timers left", frames, timers)
	}
	if host.Listeners() != 0 {
		t.Fatalf("%d listeners left", host.Listeners())
	}

	close(release)
	select {
	case <-host.posted:
	case <-time.After(5 * time.Second):
		t.Fatalf("sample result never posted")
	}
	host.Step(host.Now().Add(40 * time.Millisecond))
	if r.sampled != nil {
		t.Fatalf("sample delivered after unmount")
	}
}
