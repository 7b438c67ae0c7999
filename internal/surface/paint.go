package surface

import (
	"math"

	"github.com/gogpu/gg"
)

// Blend selects how a painted pixel combines with what is already there.
type Blend int

const (
	// SourceOver is ordinary alpha compositing, done by the gg rasterizer.
	SourceOver Blend = iota
	// Lighter adds premultiplied color, like the canvas "lighter" operation.
	Lighter
)

// profileStops is how many color stops a Segment profile is sampled into.
const profileStops = 16

// Stop is one alpha stop of a gradient. Offsets are in [0,1].
type Stop struct {
	Offset float64
	Alpha  float64
}

// StopAlpha interpolates a stop list at t, clamping outside the first and last stop.
func StopAlpha(stops []Stop, t float64) float64 {
	if len(stops) == 0 {
		return 0
	}
	if t <= stops[0].Offset {
		return stops[0].Alpha
	}
	for i := 1; i < len(stops); i++ {
		if t <= stops[i].Offset {
			a, b := stops[i-1], stops[i]
			span := b.Offset - a.Offset
			if span <= 0 {
				return b.Alpha
			}
			return a.Alpha + (b.Alpha-a.Alpha)*(t-a.Offset)/span
		}
	}
	return stops[len(stops)-1].Alpha
}

// RadialBrush builds a gradient centred at (cx, cy) reaching radius r, both
// in logical units. Stop alphas are scaled by col.A. The brush is sampled in
// device pixels, so it is only valid until the next resize.
func (s *Surface) RadialBrush(cx, cy, r float64, col gg.RGBA, stops []Stop) *gg.RadialGradientBrush {
	dcx, dcy := s.ToDevice(cx, cy)
	b := gg.NewRadialGradientBrush(dcx, dcy, 0, r*s.dpr).SetExtend(gg.ExtendPad)
	for _, st := range stops {
		b.AddColorStop(st.Offset, withAlpha(col, st.Alpha*col.A))
	}
	return b
}

// profileBrush samples profile along the segment into a linear gradient.
func (s *Surface) profileBrush(x0, y0, x1, y1 float64, col gg.RGBA, profile func(t float64) float64) *gg.LinearGradientBrush {
	ax, ay := s.ToDevice(x0, y0)
	bx, by := s.ToDevice(x1, y1)
	b := gg.NewLinearGradientBrush(ax, ay, bx, by).SetExtend(gg.ExtendPad)
	for i := 0; i < profileStops; i++ {
		t := float64(i) / (profileStops - 1)
		b.AddColorStop(t, withAlpha(col, col.A*profile(t)))
	}
	return b
}

// AddPixel adds col to the device pixel (px, py), saturating each
// premultiplied channel at 1. col is straight RGBA in [0,1].
func (s *Surface) AddPixel(px, py int, col gg.RGBA) {
	pm := s.ctx.ResizeTarget()
	w, h := pm.Width(), pm.Height()
	if px < 0 || py < 0 || px >= w || py >= h {
		return
	}
	sa := clamp01(col.A)
	if sa <= 0 {
		return
	}
	data := pm.Data()
	i := (py*w + px) * 4
	data[i] = add8(data[i], col.R*sa)
	data[i+1] = add8(data[i+1], col.G*sa)
	data[i+2] = add8(data[i+2], col.B*sa)
	data[i+3] = add8(data[i+3], sa)
}

// FillRect fills an axis-aligned rectangle given in logical units.
func (s *Surface) FillRect(x, y, w, h float64, col gg.RGBA) error {
	if w <= 0 || h <= 0 || col.A <= 0 {
		return nil
	}
	s.ctx.SetRGBA(col.R, col.G, col.B, col.A)
	s.ctx.DrawRectangle(x, y, w, h)
	return s.ctx.Fill()
}

// FillRectBrush fills an axis-aligned rectangle given in logical units with b.
func (s *Surface) FillRectBrush(x, y, w, h float64, b gg.Brush) error {
	if w <= 0 || h <= 0 {
		return nil
	}
	s.ctx.SetFillBrush(b)
	s.ctx.DrawRectangle(x, y, w, h)
	return s.ctx.Fill()
}

// Glow paints a radial gradient disc centred at (cx, cy) with radius r in
// logical units. col supplies the color; its alpha scales the stop alphas.
func (s *Surface) Glow(cx, cy, r float64, col gg.RGBA, stops []Stop, mode Blend) error {
	if r <= 0 || col.A <= 0 {
		return nil
	}
	b := s.RadialBrush(cx, cy, r, col, stops)
	if mode != Lighter {
		s.ctx.SetFillBrush(b)
		s.ctx.DrawCircle(cx, cy, r)
		return s.ctx.Fill()
	}

	dcx, dcy := s.ToDevice(cx, cy)
	dr := r * s.dpr
	s.addBox(dcx-dr, dcy-dr, dcx+dr, dcy+dr, func(x, y float64) gg.RGBA {
		if math.Hypot(x-dcx, y-dcy) > dr {
			return gg.Transparent
		}
		return b.ColorAt(x, y)
	})
	return nil
}

// Segment paints a round-capped line from (x0, y0) to (x1, y1) with the given
// width in logical units. profile maps the position along the segment
// (0 at the start, 1 at the end, clamped on the caps) to an alpha multiplier.
func (s *Surface) Segment(x0, y0, x1, y1, width float64, col gg.RGBA, profile func(t float64) float64, mode Blend) error {
	if width <= 0 || col.A <= 0 {
		return nil
	}
	if profile == nil {
		profile = func(float64) float64 { return 1 }
	}
	if mode != Lighter {
		// fill and stroke share one brush in gg
		s.ctx.SetFillBrush(s.profileBrush(x0, y0, x1, y1, col, profile))
		s.ctx.SetLineWidth(width)
		s.ctx.SetLineCap(gg.LineCapRound)
		s.ctx.DrawLine(x0, y0, x1, y1)
		return s.ctx.Stroke()
	}

	ax, ay := s.ToDevice(x0, y0)
	bx, by := s.ToDevice(x1, y1)
	half := width * s.dpr / 2
	vx, vy := bx-ax, by-ay
	lenSq := vx*vx + vy*vy
	s.addBox(math.Min(ax, bx)-half-1, math.Min(ay, by)-half-1, math.Max(ax, bx)+half+1, math.Max(ay, by)+half+1,
		func(x, y float64) gg.RGBA {
			t := 0.0
			if lenSq > 0 {
				t = clamp01(((x-ax)*vx + (y-ay)*vy) / lenSq)
			}
			d := math.Hypot(x-(ax+vx*t), y-(ay+vy*t))
			return withAlpha(col, col.A*clamp01(half-d+0.5)*profile(t))
		})
	return nil
}

// addBox adds shade, sampled at each device pixel centre, over the box.
func (s *Surface) addBox(x0, y0, x1, y1 float64, shade func(x, y float64) gg.RGBA) {
	minX, minY := int(math.Floor(x0)), int(math.Floor(y0))
	maxX, maxY := int(math.Ceil(x1)), int(math.Ceil(y1))
	for py := minY; py <= maxY; py++ {
		for px := minX; px <= maxX; px++ {
			s.AddPixel(px, py, shade(float64(px)+0.5, float64(py)+0.5))
		}
	}
}

// FillEllipse fills an ellipse through the gg path rasterizer.
func (s *Surface) FillEllipse(cx, cy, rx, ry float64, col gg.RGBA) error {
	if rx <= 0 || ry <= 0 {
		return nil
	}
	s.ctx.SetRGBA(col.R, col.G, col.B, col.A)
	s.ctx.DrawEllipse(cx, cy, rx, ry)
	return s.ctx.Fill()
}

// Alpha returns the alpha of the device pixel (px, py) in [0,1].
func (s *Surface) Alpha(px, py int) float64 {
	return s.ctx.ResizeTarget().GetPixel(px, py).A
}

// Pixel returns the straight RGBA color at (px, py).
func (s *Surface) Pixel(px, py int) gg.RGBA {
	return s.ctx.ResizeTarget().GetPixel(px, py)
}

func withAlpha(col gg.RGBA, a float64) gg.RGBA {
	return gg.RGBA{R: col.R, G: col.G, B: col.B, A: clamp01(a)}
}

func add8(dst uint8, v float64) uint8 {
	return to8(float64(dst)/255 + v)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func to8(v float64) uint8 {
	return uint8(clamp01(v)*255 + 0.5)
}
