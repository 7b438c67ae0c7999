package blackhole

import (
	"fmt"
	"math"

	"github.com/gogpu/gg"
	"github.com/guidoenr/backdrop/internal/params"
	"github.com/guidoenr/backdrop/internal/surface"
)

const (
	azimuthDrift   = 0.00055
	spiralJitter   = 0.006
	turbSharpen    = 1.35
	paletteSplit   = 0.6
	vignetteAlpha  = 0.5
	hotSpotWhiten  = 0.35
	minLensDivisor = 6
)

// Disk paints one frame of the accretion disk. It holds no state between
// frames besides what the caller sets.
type Disk struct {
	Settings   params.DiskSettings
	Layout     Layout
	Ring       params.RGB
	Turbulence func(u, v float64) float64
}

// emission is the color and position of one disk sample.
type emission struct {
	col   params.RGB
	alpha float64
	x, y  float64
}

func (e emission) brightness() float64 {
	return e.alpha * float64(int(e.col[0])+int(e.col[1])+int(e.col[2])) / 765
}

// Paint renders the frame at animation time t (milliseconds) into s, which
// must be sized to the layout's buffer.
func (d *Disk) Paint(s *surface.Surface, t float64) error {
	l := d.Layout
	s.Fill(gg.RGBA{A: 1})

	if err := d.arc(s, t, false); err != nil {
		return fmt.Errorf("back arc: %w", err)
	}

	err := s.FillEllipse(l.CX, l.CY, l.HorizonR, l.HorizonR*d.Settings.YScale, gg.RGBA{A: 1})
	if err != nil {
		return fmt.Errorf("event horizon: %w", err)
	}

	if err := d.arc(s, t, true); err != nil {
		return fmt.Errorf("front arc: %w", err)
	}
	if err := d.photonRing(s); err != nil {
		return fmt.Errorf("photon ring: %w", err)
	}
	if err := d.vignette(s); err != nil {
		return fmt.Errorf("vignette: %w", err)
	}
	return nil
}

// arc paints either the near (front, lower) or far (back, upper) half.
func (d *Disk) arc(s *surface.Surface, t float64, front bool) error {
	l := d.Layout
	ps := float64(d.Settings.PixelSize)
	for slice := 0; slice < l.Slices; slice++ {
		ang := float64(slice) / float64(l.Slices) * 2 * math.Pi
		if (math.Sin(ang) < 0) != front {
			continue
		}
		for step := 0; step < l.Steps; step++ {
			e := d.emit(ang, step, t, front)
			if e.alpha <= 0 {
				continue
			}
			x, y := math.Floor(e.x), math.Floor(e.y)
			col := rgba(e.col, e.alpha)
			if err := s.FillRect(x, y, ps, ps, col); err != nil {
				return err
			}
			if front && step%4 == 0 {
				col.A = e.alpha * math.Min(0.3, e.alpha*0.8)
				if err := s.FillRect(x-1, y, 1, 1, col); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// emit computes one sample of the disk at angle ang and radial step.
func (d *Disk) emit(ang float64, step int, t float64, front bool) emission {
	cfg := d.Settings
	l := d.Layout
	sy, sx := math.Sin(ang), math.Cos(ang)

	spiral := math.Sin(t*0.0007+ang*5) * 0.6
	baseR := l.MaxR * (1 + spiral*spiralJitter)
	boost := Beaming(ang, cfg)

	frac := 0.0
	if l.Steps > 1 {
		frac = float64(step)/float64(l.Steps-1)*2 - 1
	}
	rr := baseR * (1 + frac*diskThickness*(0.8+0.2*math.Sin(ang*2)))
	if cfg.InflowRate > 0 {
		rr = math.Max(l.HorizonR*1.01, rr-cfg.InflowRate*t*0.001)
	}

	inner := math.Max(0, 1-(rr-l.HorizonR)/(l.MaxR*0.25))
	hot1 := t*0.00042 + 0.8
	hot2 := t*-0.00035 + 3.2
	hotSpot := math.Max(
		math.Exp(-wrapAngle(ang-hot1)*2.5),
		math.Exp(-wrapAngle(ang-hot2)*2.2),
	)
	whiten := clamp01(inner*cfg.InnerHot*(0.65+0.35*boost) + hotSpot*hotSpotWhiten)
	col := d.baseColor(rr).Mix(params.White, whiten)

	x0 := l.CX + sx*rr
	y0 := l.CY + sy*rr*cfg.YScale

	u := ang/(2*math.Pi) + t*azimuthDrift + rr/(l.MaxR*4)
	v := rr/(l.MaxR*1.5) + math.Sin(ang*3)*0.03
	turb := math.Pow(d.sample(u, v), turbSharpen)

	lens := cfg.Lensing * l.HorizonR * l.HorizonR / math.Max(minLensDivisor, math.Abs(rr-l.HorizonR*1.02))
	edge := math.Exp(-math.Abs(frac) * 2.2)

	e := emission{col: col, x: x0}
	if front {
		e.alpha = (0.035 + 0.07*boost*edge) * (0.75 + 0.6*turb) * cfg.UnderGlow
		if cfg.FlickerAmp > 0 {
			flick := math.Sin(t*0.006 + ang*5 + frac*3)
			e.alpha *= 1 + cfg.FlickerAmp*(0.5*flick+0.5*(turb-0.5))
		}
		e.y = y0
		if sy < 0 {
			e.y += lens * 0.35
		}
		return e
	}

	e.alpha = (0.028 + 0.06*boost*edge) * (0.75 + 0.6*turb) * cfg.BackGlow
	if cfg.FlickerAmp > 0 {
		flick := math.Sin(t*0.005 + ang*4 + frac*2)
		e.alpha *= 1 + cfg.FlickerAmp*(0.5*flick+0.5*(turb-0.5))
	}
	// lifted over the hole, then pulled slightly toward the centre line
	e.y = (y0-lens)*0.98 + l.CY*0.02
	return e
}

func (d *Disk) baseColor(rr float64) params.RGB {
	cfg := d.Settings
	if !cfg.UseRadialPalette {
		return d.Ring.Scale(1.12)
	}
	l := d.Layout
	t := clamp01(1 - (rr-l.HorizonR)/math.Max(1, l.MaxR-l.HorizonR))
	if t < paletteSplit {
		return cfg.PaletteOuter.Mix(cfg.PaletteMid, t/paletteSplit)
	}
	return cfg.PaletteMid.Mix(cfg.PaletteInner, (t-paletteSplit)/(1-paletteSplit))
}

func (d *Disk) sample(u, v float64) float64 {
	if d.Turbulence == nil {
		return 0.5
	}
	return d.Turbulence(u, v)
}

func (d *Disk) photonRing(s *surface.Surface) error {
	cfg := d.Settings
	l := d.Layout
	pr := l.MaxR * photonRingScale
	col := d.Ring.Scale(1.12)
	passes := max(1, cfg.PhotonRingPasses)
	step := math.Max(1, math.Round(float64(cfg.PixelSize)))
	ps := float64(cfg.PixelSize)

	for slice := 0; slice < l.Slices; slice++ {
		ang := float64(slice) / float64(l.Slices) * 2 * math.Pi
		sY := math.Sin(ang)
		shape := beamShape(ang, cfg)
		for k := -passes / 2; k <= passes/2; k++ {
			off := float64(k) * step
			falloff := 1 - math.Abs(float64(k))/float64(passes)
			x := math.Floor(l.CX + math.Cos(ang)*(pr+off))

			yTop := l.CY + sY*(pr+off)*(cfg.YScale*0.78)
			if sY > 0 {
				yTop -= cfg.Lensing * 12
			}
			yBot := l.CY + sY*(pr+off)*(cfg.YScale*0.62)
			if sY < 0 {
				yBot += cfg.Lensing * 6
			}

			aTop := cfg.Glow * math.Max(0, sY) * (0.2 + 0.55*shape) * falloff
			aBot := cfg.Glow * math.Max(0, -sY) * 0.16 * (0.16 + 0.35*shape) * falloff
			if aTop > 0.01 {
				if err := s.FillRect(x, math.Floor(yTop), ps, ps, rgba(col, aTop)); err != nil {
					return err
				}
			}
			if aBot > 0.01 {
				if err := s.FillRect(x, math.Floor(yBot), ps, ps, rgba(col, aBot)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// vignette darkens toward the buffer edges with a radial ramp from 0.3 to 2
// disk radii.
func (d *Disk) vignette(s *surface.Surface) error {
	l := d.Layout
	r0, r1 := l.MaxR*0.3, l.MaxR*2
	if r1 <= r0 {
		return nil
	}
	ramp := s.RadialBrush(l.CX, l.CY, r1, gg.RGBA{A: 1}, []surface.Stop{
		{Offset: r0 / r1, Alpha: 0},
		{Offset: 1, Alpha: vignetteAlpha},
	})
	return s.FillRectBrush(0, 0, s.Width(), s.Height(), ramp)
}

func rgba(c params.RGB, alpha float64) gg.RGBA {
	r, g, b := c.Floats()
	return gg.RGBA{R: r, G: g, B: b, A: alpha}
}

func wrapAngle(v float64) float64 {
	const tau = 2 * math.Pi
	return math.Mod(math.Mod(v, tau)+tau, tau)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
