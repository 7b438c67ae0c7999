// Package surface owns the drawing buffers the renderers paint into.
package surface

import (
	"image"
	"math"
	"time"

	"github.com/gogpu/gg"
	"github.com/guidoenr/backdrop/internal/env"
	"golang.org/x/image/draw"
)

// DefaultDebounce is how long a burst of resize events must settle before
// the buffer is re-provisioned.
const DefaultDebounce = 100 * time.Millisecond

// ViewportSource is the part of the host a Surface needs.
type ViewportSource interface {
	Viewport() env.Viewport
	OnResize(fn func(env.Viewport)) (cancel func())
	AfterFunc(d time.Duration, fn func()) int
	StopTimer(id int) bool
}

// Surface is a DPR-aware canvas. Drawing happens in logical pixels; the
// backing buffer holds floor(logical*dpr) device pixels.
type Surface struct {
	src      ViewportSource
	ctx      *gg.Context
	width    float64
	height   float64
	dpr      float64
	debounce time.Duration

	cancelResize func()
	timerID      int
}

// Option configures a Surface.
type Option func(*Surface)

// WithDebounce overrides the resize debounce interval.
func WithDebounce(d time.Duration) Option {
	return func(s *Surface) {
		if d >= 0 {
			s.debounce = d
		}
	}
}

// New creates a surface sized to the current viewport of src.
func New(src ViewportSource, opts ...Option) *Surface {
	s := &Surface{
		src:      src,
		ctx:      gg.NewContext(1, 1),
		dpr:      1,
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Resize()
	return s
}

// NewBuffer creates an offscreen surface with a fixed device size and no DPR scaling.
func NewBuffer(width, height int) *Surface {
	s := &Surface{
		ctx:      gg.NewContext(1, 1),
		dpr:      1,
		debounce: DefaultDebounce,
	}
	s.SetSize(width, height)
	return s
}

// Resize re-reads the viewport and re-provisions the buffer.
func (s *Surface) Resize() {
	if s.src == nil {
		return
	}
	s.ResizeTo(s.src.Viewport())
}

// ResizeTo sizes the buffer for vp: floor(w*dpr) x floor(h*dpr), at least 1x1,
// with the transform reset so one drawing unit is one logical pixel.
func (s *Surface) ResizeTo(vp env.Viewport) {
	dpr := math.Max(1, vp.DPR)
	if math.IsNaN(dpr) || math.IsInf(dpr, 0) {
		dpr = 1
	}
	w := int(math.Floor(math.Max(0, vp.Width) * dpr))
	h := int(math.Floor(math.Max(0, vp.Height) * dpr))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	// Resize only fails for non-positive sizes, which are excluded above.
	_ = s.ctx.Resize(w, h)
	s.width = math.Max(0, vp.Width)
	s.height = math.Max(0, vp.Height)
	s.dpr = dpr
	s.ctx.SetTransform(gg.Scale(dpr, dpr))
}

// SetSize sizes an offscreen buffer in device pixels with an identity transform.
func (s *Surface) SetSize(width, height int) {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	_ = s.ctx.Resize(width, height)
	s.width = float64(width)
	s.height = float64(height)
	s.dpr = 1
	s.ctx.SetTransform(gg.Identity())
}

// Attach subscribes to viewport changes. Each burst of events collapses into a
// single Resize after the debounce interval, followed by onResized.
func (s *Surface) Attach(onResized func()) {
	if s.src == nil || s.cancelResize != nil {
		return
	}
	s.cancelResize = s.src.OnResize(func(env.Viewport) {
		if s.timerID != 0 {
			s.src.StopTimer(s.timerID)
		}
		s.timerID = s.src.AfterFunc(s.debounce, func() {
			s.timerID = 0
			s.Resize()
			if onResized != nil {
				onResized()
			}
		})
	})
}

// Detach cancels the resize subscription and any pending debounce timer.
func (s *Surface) Detach() {
	if s.cancelResize != nil {
		s.cancelResize()
		s.cancelResize = nil
	}
	if s.timerID != 0 && s.src != nil {
		s.src.StopTimer(s.timerID)
		s.timerID = 0
	}
}

// Context exposes the gg canvas for path drawing.
func (s *Surface) Context() *gg.Context { return s.ctx }

// Width is the logical width.
func (s *Surface) Width() float64 { return s.width }

// Height is the logical height.
func (s *Surface) Height() float64 { return s.height }

// DPR is the device pixel ratio currently applied.
func (s *Surface) DPR() float64 { return s.dpr }

// BufferWidth is the backing width in device pixels.
func (s *Surface) BufferWidth() int { return s.ctx.Width() }

// BufferHeight is the backing height in device pixels.
func (s *Surface) BufferHeight() int { return s.ctx.Height() }

// Clear makes every pixel fully transparent.
func (s *Surface) Clear() { s.ctx.Clear() }

// Fill paints every pixel with an opaque or translucent color, replacing content.
func (s *Surface) Fill(col gg.RGBA) { s.ctx.ClearWithColor(col) }

// RGBA returns a premultiplied image view sharing the surface pixels. It is
// only valid until the next resize.
func (s *Surface) RGBA() *image.RGBA {
	pm := s.ctx.ResizeTarget()
	w, h := pm.Width(), pm.Height()
	return &image.RGBA{
		Pix:    pm.Data(),
		Stride: w * 4,
		Rect:   image.Rect(0, 0, w, h),
	}
}

// NRGBA returns an image view sharing the surface pixels. gg keeps pixels
// premultiplied, so the view is exact only for opaque surfaces such as a
// composed frame. It is only valid until the next resize.
func (s *Surface) NRGBA() *image.NRGBA {
	v := s.RGBA()
	return &image.NRGBA{Pix: v.Pix, Stride: v.Stride, Rect: v.Rect}
}

// Snapshot copies the surface into a new straight-alpha image.
func (s *Surface) Snapshot() *image.NRGBA {
	src := s.RGBA()
	out := image.NewNRGBA(src.Rect)
	draw.Draw(out, out.Rect, src, image.Point{}, draw.Src)
	return out
}

// CompositeOnto draws the surface over dst, scaling it to fill dst's bounds.
func (s *Surface) CompositeOnto(dst draw.Image) {
	src := s.RGBA()
	if src.Rect.Eq(dst.Bounds()) {
		draw.Draw(dst, dst.Bounds(), src, image.Point{}, draw.Over)
		return
	}
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Rect, draw.Over, nil)
}

// Blit stretches src over the whole buffer, replacing its content. Nearest
// neighbor keeps hard pixel edges; smooth switches to bilinear filtering.
func (s *Surface) Blit(src *Surface, smooth bool) {
	dst := s.RGBA()
	img := src.RGBA()
	var scaler draw.Scaler = draw.NearestNeighbor
	if smooth {
		scaler = draw.BiLinear
	}
	scaler.Scale(dst, dst.Rect, img, img.Rect, draw.Src, nil)
}

// ToDevice maps a logical point to device pixel space.
func (s *Surface) ToDevice(x, y float64) (float64, float64) {
	return s.ctx.TransformPoint(x, y)
}
